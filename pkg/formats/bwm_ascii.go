package formats

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/aurora-mdl/pkg/geometry"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// The text walkmesh form carries only source geometry: vertices, faces
// with surface materials, the placement vectors and any area
// transitions on the perimeter. Adjacency, the AABB tree and the
// perimeter loops are derived, so reading rebuilds them and writing
// never emits them.

type bwmASCIIParser struct {
	asciiParser
}

// ReadWalkmeshASCII parses the text form of a walkmesh. The derived
// sections are rebuilt before return so the result is directly
// serializable by WriteWalkmesh.
func ReadWalkmeshASCII(data []byte, opts *CodecOptions) (*model.Walkmesh, error) {
	p := &bwmASCIIParser{asciiParser{log: opts.logger()}}
	p.tokenize(data)

	wm := &model.Walkmesh{Type: model.WalkmeshArea}
	var links map[int]int
	seen := false

	for {
		l, ok := p.next()
		if !ok {
			break
		}
		switch strings.ToLower(l.tokens[0]) {
		case "beginwalkmeshgeom":
			seen = true
		case "endwalkmeshgeom":
			return p.finish(wm, links)
		case "walkmeshtype":
			if len(l.tokens) < 2 {
				return nil, p.errf(l, "walkmeshtype needs a value")
			}
			switch strings.ToLower(l.tokens[1]) {
			case "area":
				wm.Type = model.WalkmeshArea
			case "hook":
				wm.Type = model.WalkmeshHook
			default:
				return nil, p.errf(l, "unknown walkmesh type %q", l.tokens[1])
			}
		case "position":
			v, err := p.vec3At(l, 1)
			if err != nil {
				return nil, err
			}
			wm.Position = v
		case "usevector1":
			v, err := p.vec3At(l, 1)
			if err != nil {
				return nil, err
			}
			wm.UseVec1 = v
		case "usevector2":
			v, err := p.vec3At(l, 1)
			if err != nil {
				return nil, err
			}
			wm.UseVec2 = v
		case "verts":
			err := p.readList(l, func(e asciiLine) error {
				v, err := p.vec3At(e, 0)
				if err != nil {
					return err
				}
				wm.Verts = append(wm.Verts, v)
				return nil
			})
			if err != nil {
				return nil, err
			}
		case "faces":
			err := p.readList(l, func(e asciiLine) error {
				var f model.WalkmeshFace
				for i := 0; i < 3; i++ {
					idx, err := p.intAt(e, i)
					if err != nil {
						return err
					}
					if idx < 0 || idx >= len(wm.Verts) {
						return p.errf(e, "face vertex index %d out of range", idx)
					}
					f.V[i] = idx
				}
				mat, err := p.intAt(e, 3)
				if err != nil {
					return err
				}
				f.Material = uint32(mat)
				wm.Faces = append(wm.Faces, f)
				return nil
			})
			if err != nil {
				return nil, err
			}
		case "roomlinks":
			links = make(map[int]int)
			err := p.readList(l, func(e asciiLine) error {
				edge, err := p.intAt(e, 0)
				if err != nil {
					return err
				}
				room, err := p.intAt(e, 1)
				if err != nil {
					return err
				}
				links[edge] = room
				return nil
			})
			if err != nil {
				return nil, err
			}
		default:
			p.log.Debug("skipping unknown walkmesh directive",
				zap.String("keyword", l.tokens[0]),
				zap.Int("line", l.no))
		}
	}
	if !seen {
		return nil, fmt.Errorf("%w: no beginwalkmeshgeom block", ErrASCIISyntax)
	}
	return nil, fmt.Errorf("%w: unterminated walkmesh block", ErrASCIISyntax)
}

func (p *bwmASCIIParser) finish(wm *model.Walkmesh, links map[int]int) (*model.Walkmesh, error) {
	gopts := geometry.DefaultOptions()
	gopts.Logger = p.log
	geometry.ProcessWalkmesh(wm, gopts)

	// Transitions attach to perimeter edges by edge index, which only
	// exist once the loops are traced.
	for pi := range wm.Perimeters {
		for ei := range wm.Perimeters[pi] {
			e := &wm.Perimeters[pi][ei]
			if room, ok := links[e.Edge]; ok {
				e.Transition = room
				delete(links, e.Edge)
			}
		}
	}
	for edge := range links {
		p.log.Warn("roomlink references a non-perimeter edge", zap.Int("edge", edge))
	}
	return wm, nil
}

// WriteWalkmeshASCII renders the text form of a walkmesh.
func WriteWalkmeshASCII(wm *model.Walkmesh, opts *CodecOptions) ([]byte, error) {
	var b strings.Builder

	b.WriteString("beginwalkmeshgeom\n")
	switch wm.Type {
	case model.WalkmeshHook:
		b.WriteString("  walkmeshtype hook\n")
	default:
		b.WriteString("  walkmeshtype area\n")
	}
	fmt.Fprintf(&b, "  position %s %s %s\n", ft(wm.Position.X), ft(wm.Position.Y), ft(wm.Position.Z))
	if wm.Type == model.WalkmeshHook {
		fmt.Fprintf(&b, "  usevector1 %s %s %s\n", ft(wm.UseVec1.X), ft(wm.UseVec1.Y), ft(wm.UseVec1.Z))
		fmt.Fprintf(&b, "  usevector2 %s %s %s\n", ft(wm.UseVec2.X), ft(wm.UseVec2.Y), ft(wm.UseVec2.Z))
	}

	fmt.Fprintf(&b, "  verts %d\n", len(wm.Verts))
	for _, v := range wm.Verts {
		fmt.Fprintf(&b, "    %s %s %s\n", ft(v.X), ft(v.Y), ft(v.Z))
	}

	fmt.Fprintf(&b, "  faces %d\n", len(wm.Faces))
	for _, f := range wm.Faces {
		fmt.Fprintf(&b, "    %d %d %d %d\n", f.V[0], f.V[1], f.V[2], f.Material)
	}

	var links [][2]int
	for _, loop := range wm.Perimeters {
		for _, e := range loop {
			if e.Transition >= 0 {
				links = append(links, [2]int{e.Edge, e.Transition})
			}
		}
	}
	if len(links) > 0 {
		fmt.Fprintf(&b, "  roomlinks %d\n", len(links))
		for _, ln := range links {
			fmt.Fprintf(&b, "    %d %d\n", ln[0], ln[1])
		}
	}

	b.WriteString("endwalkmeshgeom\n")
	return []byte(b.String()), nil
}
