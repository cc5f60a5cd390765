package formats

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/aurora-mdl/pkg/geometry"
	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// ErrASCIISyntax wraps every text-form parse failure; use errors.Is to
// classify and the wrapped message for the offending line.
var ErrASCIISyntax = errors.New("ascii model syntax error")

// asciiLine is one pre-tokenized source line.
type asciiLine struct {
	no     int
	tokens []string
}

type asciiParser struct {
	lines []asciiLine
	pos   int
	log   *zap.Logger

	m *model.Model
	// parent names are resolved once the whole tree is read, so
	// declaration order does not matter.
	parents map[*model.Node]string
	weld    float32
}

// ReadASCII parses the text form of a model. Geometry is welded into
// per-node vertex lists as it is read; derived data (normals, planes,
// bone maps) is left for the post-processing pass.
func ReadASCII(data []byte, opts *CodecOptions) (*model.Model, error) {
	p := &asciiParser{
		log:     opts.logger(),
		m:       &model.Model{AnimScale: 1, AffectedByFog: true},
		parents: make(map[*model.Node]string),
		weld:    geometry.DefaultOptions().WeldTolerance,
	}
	p.tokenize(data)
	if err := p.parse(); err != nil {
		return nil, err
	}
	if err := p.resolveParents(p.m.Nodes); err != nil {
		return nil, err
	}
	for _, anim := range p.m.Anims {
		if err := p.resolveParents(anim.Nodes); err != nil {
			return nil, err
		}
	}
	return p.m, nil
}

func (p *asciiParser) tokenize(data []byte) {
	for no, raw := range bytes.Split(data, []byte("\n")) {
		line := string(raw)
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		p.lines = append(p.lines, asciiLine{no: no + 1, tokens: tokens})
	}
}

func (p *asciiParser) next() (asciiLine, bool) {
	if p.pos >= len(p.lines) {
		return asciiLine{}, false
	}
	l := p.lines[p.pos]
	p.pos++
	return l, true
}

func (p *asciiParser) errf(l asciiLine, format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", ErrASCIISyntax, l.no, fmt.Sprintf(format, args...))
}

func parseF32(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	return float32(v), err
}

func (p *asciiParser) f32At(l asciiLine, i int) (float32, error) {
	if i >= len(l.tokens) {
		return 0, p.errf(l, "expected numeric field %d", i)
	}
	v, err := parseF32(l.tokens[i])
	if err != nil {
		return 0, p.errf(l, "bad number %q", l.tokens[i])
	}
	return v, nil
}

func (p *asciiParser) intAt(l asciiLine, i int) (int, error) {
	if i >= len(l.tokens) {
		return 0, p.errf(l, "expected integer field %d", i)
	}
	v, err := strconv.Atoi(l.tokens[i])
	if err != nil {
		// Some exporters write counts and flags as floats.
		f, ferr := parseF32(l.tokens[i])
		if ferr != nil {
			return 0, p.errf(l, "bad integer %q", l.tokens[i])
		}
		v = int(f)
	}
	return v, nil
}

func (p *asciiParser) parse() error {
	for {
		l, ok := p.next()
		if !ok {
			return nil
		}
		switch strings.ToLower(l.tokens[0]) {
		case "newmodel":
			if len(l.tokens) < 2 {
				return p.errf(l, "newmodel needs a name")
			}
			p.m.Name = l.tokens[1]
		case "setsupermodel":
			if len(l.tokens) >= 3 && !strings.EqualFold(l.tokens[2], "null") {
				p.m.Supermodel = l.tokens[2]
			}
		case "classification":
			if len(l.tokens) >= 2 {
				p.m.Classification = model.ParseClassification(l.tokens[1])
			}
		case "setanimationscale":
			v, err := p.f32At(l, 1)
			if err != nil {
				return err
			}
			p.m.AnimScale = v
		case "ignorefog":
			v, err := p.intAt(l, 1)
			if err != nil {
				return err
			}
			p.m.AffectedByFog = v == 0
		case "beginmodelgeom":
			// Body is the node list that follows.
		case "endmodelgeom", "donemodel":
		case "bmin":
			v, err := p.vec3At(l, 1)
			if err != nil {
				return err
			}
			p.m.BoundingMin = v
		case "bmax":
			v, err := p.vec3At(l, 1)
			if err != nil {
				return err
			}
			p.m.BoundingMax = v
		case "radius":
			v, err := p.f32At(l, 1)
			if err != nil {
				return err
			}
			p.m.Radius = v
		case "node":
			if err := p.parseNode(l); err != nil {
				return err
			}
		case "newanim":
			if err := p.parseAnim(l); err != nil {
				return err
			}
		default:
			p.log.Debug("skipping unknown model directive",
				zap.Int("line", l.no), zap.String("keyword", l.tokens[0]))
		}
	}
}

func (p *asciiParser) vec3At(l asciiLine, i int) (math.Vec3, error) {
	x, err := p.f32At(l, i)
	if err != nil {
		return math.Vec3{}, err
	}
	y, err := p.f32At(l, i+1)
	if err != nil {
		return math.Vec3{}, err
	}
	z, err := p.f32At(l, i+2)
	if err != nil {
		return math.Vec3{}, err
	}
	return math.Vec3{X: x, Y: y, Z: z}, nil
}

// asciiFace is one "faces" line before welding.
type asciiFace struct {
	v           [3]int
	t           [3]int
	smoothGroup uint32
	material    uint32
}

// nodeScratch accumulates the raw per-node geometry lists; they are
// joined into welded vertices once the node block ends.
type nodeScratch struct {
	verts       []math.Vec3
	tverts      [4][]math.Vec2
	tindices1   [][3]int
	colors      []math.Vec3
	weights     [][]model.VertexWeight
	constraints []float32
	faces       []asciiFace
	tangents    bool
}

func (p *asciiParser) parseNode(head asciiLine) error {
	if len(head.tokens) < 3 {
		return p.errf(head, "node needs a type and a name")
	}
	flags := model.ParseNodeType(head.tokens[1])
	if flags == 0 {
		return p.errf(head, "unknown node type %q", head.tokens[1])
	}
	name := head.tokens[2]

	n := &model.Node{
		Index:       len(p.m.Nodes),
		Number:      uint16(len(p.m.Nodes)),
		NameIndex:   len(p.m.Names),
		Flags:       flags,
		Parent:      -1,
		Orientation: math.QuatIdentity(),
	}
	p.m.Names = append(p.m.Names, name)
	p.m.Nodes = append(p.m.Nodes, n)

	var mesh *model.Mesh
	if flags&model.FlagMesh != 0 {
		mesh = &model.Mesh{Render: true, Diffuse: math.Vec3{X: 0.8, Y: 0.8, Z: 0.8}}
		n.Mesh = mesh
	}
	if flags&model.FlagLight != 0 {
		n.Light = &model.Light{}
	}
	if flags&model.FlagEmitter != 0 {
		n.Emitter = &model.Emitter{}
	}
	if flags&model.FlagReference != 0 {
		n.Reference = &model.Reference{}
	}

	var scratch nodeScratch
	for {
		l, ok := p.next()
		if !ok {
			return p.errf(head, "node %q not closed", name)
		}
		kw := strings.ToLower(l.tokens[0])
		if kw == "endnode" {
			break
		}
		if err := p.nodeDirective(n, &scratch, l, kw); err != nil {
			return err
		}
	}
	if mesh != nil {
		p.buildMesh(n, mesh, &scratch)
	}
	return nil
}

func (p *asciiParser) nodeDirective(n *model.Node, s *nodeScratch, l asciiLine, kw string) error {
	mesh := n.Mesh
	switch kw {
	case "parent":
		if len(l.tokens) >= 2 && !strings.EqualFold(l.tokens[1], "null") {
			p.parents[n] = l.tokens[1]
		}
	case "position":
		v, err := p.vec3At(l, 1)
		if err != nil {
			return err
		}
		n.Position = v
	case "orientation":
		axis, err := p.vec3At(l, 1)
		if err != nil {
			return err
		}
		angle, err := p.f32At(l, 4)
		if err != nil {
			return err
		}
		n.Orientation = math.QuatFromAxisAngle(axis, angle)
	case "scale":
		v, err := p.f32At(l, 1)
		if err != nil {
			return err
		}
		n.Controllers = append(n.Controllers, model.Controller{
			ID: model.CtrlScale, Columns: 1,
			Keys: []model.Key{{Values: []float32{v}}},
		})
	case "alpha", "selfillumcolor":
		if mesh == nil {
			return p.errf(l, "%s outside a mesh node", kw)
		}
		id, _ := model.ParseControllerID(n.Flags, kw)
		vals := make([]float32, len(l.tokens)-1)
		for i := range vals {
			v, err := p.f32At(l, i+1)
			if err != nil {
				return err
			}
			vals[i] = v
		}
		n.Controllers = append(n.Controllers, model.Controller{
			ID: id, Columns: len(vals),
			Keys: []model.Key{{Values: vals}},
		})
	case "verts":
		return p.readList(l, func(line asciiLine) error {
			v, err := p.vec3At(line, 0)
			if err != nil {
				return err
			}
			s.verts = append(s.verts, v)
			return nil
		})
	case "faces":
		return p.readList(l, func(line asciiLine) error {
			var f asciiFace
			for c := 0; c < 3; c++ {
				v, err := p.intAt(line, c)
				if err != nil {
					return err
				}
				f.v[c] = v
			}
			sg, err := p.intAt(line, 3)
			if err != nil {
				return err
			}
			f.smoothGroup = uint32(sg)
			for c := 0; c < 3; c++ {
				t, err := p.intAt(line, 4+c)
				if err != nil {
					return err
				}
				f.t[c] = t
			}
			mat, err := p.intAt(line, 7)
			if err != nil {
				return err
			}
			f.material = uint32(mat)
			s.faces = append(s.faces, f)
			return nil
		})
	case "tverts", "tverts1", "tverts2", "tverts3":
		ch := 0
		if kw != "tverts" {
			ch = int(kw[len(kw)-1] - '0')
		}
		return p.readList(l, func(line asciiLine) error {
			u, err := p.f32At(line, 0)
			if err != nil {
				return err
			}
			v, err := p.f32At(line, 1)
			if err != nil {
				return err
			}
			s.tverts[ch] = append(s.tverts[ch], math.Vec2{X: u, Y: v})
			return nil
		})
	case "texindices1":
		return p.readList(l, func(line asciiLine) error {
			var ti [3]int
			for c := 0; c < 3; c++ {
				t, err := p.intAt(line, c)
				if err != nil {
					return err
				}
				ti[c] = t
			}
			s.tindices1 = append(s.tindices1, ti)
			return nil
		})
	case "colors":
		return p.readList(l, func(line asciiLine) error {
			v, err := p.vec3At(line, 0)
			if err != nil {
				return err
			}
			s.colors = append(s.colors, v)
			return nil
		})
	case "weights":
		return p.readList(l, func(line asciiLine) error {
			var ws []model.VertexWeight
			for i := 0; i+1 < len(line.tokens); i += 2 {
				w, err := p.f32At(line, i+1)
				if err != nil {
					return err
				}
				ws = append(ws, model.VertexWeight{
					BoneName: line.tokens[i], BoneIndex: -1, Weight: w,
				})
			}
			s.weights = append(s.weights, ws)
			return nil
		})
	case "constraints":
		return p.readList(l, func(line asciiLine) error {
			v, err := p.f32At(line, 0)
			if err != nil {
				return err
			}
			s.constraints = append(s.constraints, v)
			return nil
		})
	case "tangentspace":
		v, err := p.intAt(l, 1)
		if err != nil {
			return err
		}
		s.tangents = v != 0
	case "aabb":
		// The serialized tree is derived data; consume it here and
		// let the post-processor rebuild it from the faces.
		for p.pos < len(p.lines) {
			if _, err := parseF32(p.lines[p.pos].tokens[0]); err != nil {
				break
			}
			p.pos++
		}
	default:
		if strings.HasSuffix(kw, "key") {
			return p.parseKeyedController(n, l, l.tokens[0])
		}
		return p.meshDirective(n, l, kw)
	}
	return nil
}

// meshDirective handles the scalar property keywords of mesh, light,
// emitter and reference nodes.
func (p *asciiParser) meshDirective(n *model.Node, l asciiLine, kw string) error {
	boolVal := func() (bool, error) {
		v, err := p.intAt(l, 1)
		return v != 0, err
	}
	u32Val := func() (uint32, error) {
		v, err := p.intAt(l, 1)
		return uint32(v), err
	}
	strVal := func() string {
		if len(l.tokens) < 2 {
			return ""
		}
		return l.tokens[1]
	}

	if mesh := n.Mesh; mesh != nil {
		switch kw {
		case "bitmap", "texture0":
			mesh.Textures[0] = strVal()
			return nil
		case "lightmap", "bitmap2", "texture1":
			mesh.Textures[1] = strVal()
			if mesh.Textures[1] != "" && !strings.EqualFold(mesh.Textures[1], "null") {
				mesh.Lightmapped = true
			}
			return nil
		case "ambient":
			v, err := p.vec3At(l, 1)
			mesh.Ambient = v
			return err
		case "diffuse":
			v, err := p.vec3At(l, 1)
			mesh.Diffuse = v
			return err
		case "transparencyhint":
			v, err := u32Val()
			mesh.TransparencyHint = v
			return err
		case "render":
			v, err := boolVal()
			mesh.Render = v
			return err
		case "shadow":
			v, err := boolVal()
			mesh.Shadow = v
			return err
		case "beaming":
			v, err := boolVal()
			mesh.Beaming = v
			return err
		case "lightmapped":
			v, err := boolVal()
			mesh.Lightmapped = v
			return err
		case "rotatetexture":
			v, err := boolVal()
			mesh.RotateTexture = v
			return err
		case "background_geometry":
			v, err := boolVal()
			mesh.BackgroundGeometry = v
			return err
		case "animateuv":
			v, err := boolVal()
			mesh.AnimateUV = v
			return err
		case "uvdirectionx":
			v, err := p.f32At(l, 1)
			mesh.UVDirectionX = v
			return err
		case "uvdirectiony":
			v, err := p.f32At(l, 1)
			mesh.UVDirectionY = v
			return err
		case "uvjitter":
			v, err := p.f32At(l, 1)
			mesh.UVJitter = v
			return err
		case "uvjitterspeed":
			v, err := p.f32At(l, 1)
			mesh.UVJitterSpeed = v
			return err
		case "displacement":
			p.ensureDangly(mesh).Displacement, _ = p.f32At(l, 1)
			return nil
		case "tightness":
			p.ensureDangly(mesh).Tightness, _ = p.f32At(l, 1)
			return nil
		case "period":
			p.ensureDangly(mesh).Period, _ = p.f32At(l, 1)
			return nil
		}
	}
	if light := n.Light; light != nil {
		switch kw {
		case "flareradius":
			light.FlareRadius, _ = p.f32At(l, 1)
			return nil
		case "lightpriority":
			v, err := u32Val()
			light.LightPriority = v
			return err
		case "ambientonly":
			v, err := u32Val()
			light.AmbientOnly = v
			return err
		case "ndynamictype", "isdynamic":
			v, err := u32Val()
			light.DynamicType = v
			return err
		case "affectdynamic":
			v, err := u32Val()
			light.AffectDynamic = v
			return err
		case "lightshadow":
			v, err := u32Val()
			light.Shadow = v
			return err
		case "flare":
			v, err := u32Val()
			light.Flare = v
			return err
		case "fadinglight":
			v, err := u32Val()
			light.FadingLight = v
			return err
		case "flaresizes":
			return p.readList(l, func(line asciiLine) error {
				v, err := p.f32At(line, 0)
				light.FlareSizes = append(light.FlareSizes, v)
				return err
			})
		case "flarepositions":
			return p.readList(l, func(line asciiLine) error {
				v, err := p.f32At(line, 0)
				light.FlarePositions = append(light.FlarePositions, v)
				return err
			})
		case "flarecolorshifts":
			return p.readList(l, func(line asciiLine) error {
				v, err := p.vec3At(line, 0)
				light.FlareColorShift = append(light.FlareColorShift, v)
				return err
			})
		case "texturenames":
			return p.readList(l, func(line asciiLine) error {
				light.FlareTextures = append(light.FlareTextures, line.tokens[0])
				return nil
			})
		}
	}
	if em := n.Emitter; em != nil {
		if p.emitterDirective(em, l, kw) {
			return nil
		}
	}
	if ref := n.Reference; ref != nil {
		switch kw {
		case "refmodel":
			ref.RefModel = strVal()
			return nil
		case "reattachable":
			v, err := boolVal()
			ref.Reattachable = v
			return err
		}
	}

	// Light and emitter animation channels appear as bare value lines
	// when they hold a single key. Matched against the original token:
	// the emitter track names are case-sensitive.
	if id, ok := model.ParseControllerID(n.Flags, l.tokens[0]); ok {
		vals := make([]float32, len(l.tokens)-1)
		for i := range vals {
			v, err := p.f32At(l, i+1)
			if err != nil {
				return err
			}
			vals[i] = v
		}
		n.Controllers = append(n.Controllers, model.Controller{
			ID: id, Columns: len(vals),
			Keys: []model.Key{{Values: vals}},
		})
		return nil
	}

	p.log.Debug("skipping unknown node directive",
		zap.Int("line", l.no), zap.String("keyword", kw))
	return nil
}

func (p *asciiParser) ensureDangly(mesh *model.Mesh) *model.Dangly {
	if mesh.Dangly == nil {
		mesh.Dangly = &model.Dangly{}
	}
	return mesh.Dangly
}

func (p *asciiParser) emitterDirective(em *model.Emitter, l asciiLine, kw string) bool {
	f32 := func(dst *float32) { *dst, _ = p.f32At(l, 1) }
	u32 := func(dst *uint32) {
		v, _ := p.intAt(l, 1)
		*dst = uint32(v)
	}
	str := func(dst *string) {
		if len(l.tokens) >= 2 {
			*dst = l.tokens[1]
		}
	}
	flag := func(bit uint32) {
		v, _ := p.intAt(l, 1)
		if v != 0 {
			em.Flags |= bit
		} else {
			em.Flags &^= bit
		}
	}
	switch kw {
	case "deadspace":
		f32(&em.DeadSpace)
	case "blastradius":
		f32(&em.BlastRadius)
	case "blastlength":
		f32(&em.BlastLength)
	case "numbranches":
		u32(&em.BranchCount)
	case "controlptsmoothing":
		f32(&em.ControlPtSmooth)
	case "xgrid":
		u32(&em.XGrid)
	case "ygrid":
		u32(&em.YGrid)
	case "spawntype":
		u32(&em.SpawnType)
	case "update":
		str(&em.Update)
	case "render":
		str(&em.Render)
	case "blend":
		str(&em.Blend)
	case "texture":
		str(&em.Texture)
	case "chunkname":
		str(&em.ChunkName)
	case "twosidedtex":
		u32(&em.TwoSidedTex)
	case "loop":
		u32(&em.Loop)
	case "renderorder":
		v, _ := p.intAt(l, 1)
		em.RenderOrder = uint16(v)
	case "frameblending":
		v, _ := p.intAt(l, 1)
		em.FrameBlending = uint8(v)
	case "depthtexturename":
		str(&em.DepthTextureName)
	case "p2p":
		flag(model.EmitterFlagP2P)
	case "p2p_sel":
		flag(model.EmitterFlagP2PSel)
	case "affectedbywind":
		flag(model.EmitterFlagAffectWind)
	case "m_istinted":
		flag(model.EmitterFlagTinted)
	case "bounce":
		flag(model.EmitterFlagBounce)
	case "random":
		flag(model.EmitterFlagRandom)
	case "inherit":
		flag(model.EmitterFlagInherit)
	case "inheritvel":
		flag(model.EmitterFlagInheritVel)
	case "inherit_local":
		flag(model.EmitterFlagInheritLocal)
	case "splat":
		flag(model.EmitterFlagSplat)
	case "inherit_part":
		flag(model.EmitterFlagInheritPart)
	case "depth_texture":
		flag(model.EmitterFlagDepthTexture)
	default:
		return false
	}
	return true
}

// readList consumes the N lines announced by a count directive.
func (p *asciiParser) readList(head asciiLine, each func(asciiLine) error) error {
	count, err := p.intAt(head, 1)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		l, ok := p.next()
		if !ok {
			return p.errf(head, "%s list truncated: want %d entries, got %d", head.tokens[0], count, i)
		}
		if err := each(l); err != nil {
			return err
		}
	}
	return nil
}

// buildMesh welds the node's raw corner lists into the compact vertex
// form the rest of the pipeline works on.
func (p *asciiParser) buildMesh(n *model.Node, mesh *model.Mesh, s *nodeScratch) {
	attr := model.AttrPosition | model.AttrNormal
	if len(s.tverts[0]) > 0 {
		attr |= model.AttrUV1
	}
	if len(s.tverts[1]) > 0 {
		attr |= model.AttrUV2
	}
	if len(s.colors) > 0 {
		attr |= model.AttrColor
	}
	if n.Flags&model.FlagSkin != 0 {
		attr |= model.AttrWeights | model.AttrIndices
	}
	if s.tangents {
		attr |= model.AttrTangent
	}
	mesh.Attr = attr

	at := func(list []math.Vec3, i int) math.Vec3 {
		if i >= 0 && i < len(list) {
			return list[i]
		}
		return math.Vec3{}
	}
	uvAt := func(ch, i int) math.Vec2 {
		if i >= 0 && i < len(s.tverts[ch]) {
			return s.tverts[ch][i]
		}
		return math.Vec2{}
	}

	corners := make([]geometry.Corner, 0, len(s.faces)*3)
	for fi, f := range s.faces {
		for c := 0; c < 3; c++ {
			corner := geometry.Corner{
				Position:    at(s.verts, f.v[c]),
				SmoothGroup: f.smoothGroup,
			}
			if attr&model.AttrUV1 != 0 {
				corner.UV[0] = uvAt(0, f.t[c])
			}
			if attr&model.AttrUV2 != 0 && fi < len(s.tindices1) {
				corner.UV[1] = uvAt(1, s.tindices1[fi][c])
			}
			if attr&model.AttrColor != 0 {
				corner.Color = at(s.colors, f.v[c])
			}
			if f.v[c] < len(s.weights) {
				corner.Weights = s.weights[f.v[c]]
			}
			if f.v[c] < len(s.constraints) {
				corner.Constraint = s.constraints[f.v[c]]
			}
			corners = append(corners, corner)
		}
	}

	verts, faceIdx := geometry.Weld(attr, corners, p.weld)
	mesh.Verts = verts
	mesh.Faces = make([]model.Face, len(s.faces))
	for fi, f := range s.faces {
		mesh.Faces[fi] = model.Face{
			V:           faceIdx[fi],
			Material:    f.material,
			SmoothGroup: f.smoothGroup,
			Adjacent:    [3]int{-1, -1, -1},
		}
	}
}

func (p *asciiParser) resolveParents(nodes []*model.Node) error {
	byName := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if n.NameIndex < len(p.m.Names) {
			byName[strings.ToLower(p.m.Names[n.NameIndex])] = i
		}
	}
	for _, n := range nodes {
		pname, ok := p.parents[n]
		if !ok {
			continue
		}
		pi, ok := byName[strings.ToLower(pname)]
		if !ok {
			return fmt.Errorf("%w: node %q has unknown parent %q",
				ErrASCIISyntax, p.m.Names[n.NameIndex], pname)
		}
		n.Parent = pi
		nodes[pi].Children = append(nodes[pi].Children, n.Index)
	}
	return nil
}

func (p *asciiParser) parseAnim(head asciiLine) error {
	if len(head.tokens) < 2 {
		return p.errf(head, "newanim needs a name")
	}
	anim := &model.Animation{Name: head.tokens[1]}
	p.m.Anims = append(p.m.Anims, anim)

	for {
		l, ok := p.next()
		if !ok {
			return p.errf(head, "animation %q not closed", anim.Name)
		}
		switch kw := strings.ToLower(l.tokens[0]); kw {
		case "doneanim":
			return nil
		case "length":
			v, err := p.f32At(l, 1)
			if err != nil {
				return err
			}
			anim.Length = v
		case "transtime":
			v, err := p.f32At(l, 1)
			if err != nil {
				return err
			}
			anim.TransTime = v
		case "animroot":
			if len(l.tokens) >= 2 {
				anim.AnimRoot = l.tokens[1]
			}
		case "event":
			t, err := p.f32At(l, 1)
			if err != nil {
				return err
			}
			if len(l.tokens) < 3 {
				return p.errf(l, "event needs a name")
			}
			anim.Events = append(anim.Events, model.AnimEvent{Time: t, Name: l.tokens[2]})
		case "node":
			if err := p.parseAnimNode(anim, l); err != nil {
				return err
			}
		default:
			p.log.Debug("skipping unknown animation directive",
				zap.Int("line", l.no), zap.String("keyword", kw))
		}
	}
}

func (p *asciiParser) parseAnimNode(anim *model.Animation, head asciiLine) error {
	if len(head.tokens) < 3 {
		return p.errf(head, "node needs a type and a name")
	}
	flags := model.ParseNodeType(head.tokens[1])
	if flags == 0 {
		flags = model.NodeTypeDummy
	}
	name := head.tokens[2]

	n := &model.Node{
		Index:       len(anim.Nodes),
		Flags:       flags,
		Parent:      -1,
		NameIndex:   p.nameIndex(name),
		Orientation: math.QuatIdentity(),
	}
	// Numbers mirror the base tree so controller tracks can be
	// matched against it.
	if base := p.m.NodeByName(name); base != nil {
		n.Number = base.Number
	} else {
		p.log.Warn("animation node does not exist in the base tree",
			zap.String("anim", anim.Name), zap.String("node", name))
	}
	anim.Nodes = append(anim.Nodes, n)

	for {
		l, ok := p.next()
		if !ok {
			return p.errf(head, "node %q not closed", name)
		}
		kw := strings.ToLower(l.tokens[0])
		switch {
		case kw == "endnode":
			return nil
		case kw == "parent":
			if len(l.tokens) >= 2 && !strings.EqualFold(l.tokens[1], "null") {
				p.parents[n] = l.tokens[1]
			}
		case strings.HasSuffix(kw, "key"):
			// Track names are case-sensitive ("alphaEndkey"), so
			// hand the original token over.
			if err := p.parseKeyedController(n, l, l.tokens[0]); err != nil {
				return err
			}
		default:
			p.log.Debug("skipping unknown animation node directive",
				zap.Int("line", l.no), zap.String("keyword", kw))
		}
	}
}

func (p *asciiParser) nameIndex(name string) int {
	for i, existing := range p.m.Names {
		if strings.EqualFold(existing, name) {
			return i
		}
	}
	p.m.Names = append(p.m.Names, name)
	return len(p.m.Names) - 1
}

// parseKeyedController handles "<track>key N" and "<track>bezierkey N"
// directives. Orientation keys are axis-angle in the text form and
// quaternions in memory.
func (p *asciiParser) parseKeyedController(n *model.Node, head asciiLine, kw string) error {
	name := strings.TrimSuffix(kw, "key")
	bezier := strings.HasSuffix(name, "bezier")
	name = strings.TrimSuffix(name, "bezier")

	id, ok := model.ParseControllerID(n.Flags, name)
	if !ok {
		p.log.Warn("skipping unknown controller track",
			zap.String("track", name),
			zap.Int("line", head.no))
		return p.skipKeyBlock(head)
	}
	c := model.Controller{ID: id, Bezier: bezier}
	isOrientation := id == model.CtrlOrientation

	each := func(line asciiLine) error {
		t, err := p.f32At(line, 0)
		if err != nil {
			return err
		}
		vals := make([]float32, len(line.tokens)-1)
		for i := range vals {
			v, err := p.f32At(line, i+1)
			if err != nil {
				return err
			}
			vals[i] = v
		}
		if isOrientation && !bezier && len(vals) >= 4 {
			q := math.QuatFromAxisAngle(
				math.Vec3{X: vals[0], Y: vals[1], Z: vals[2]}, vals[3])
			vals = []float32{q.X, q.Y, q.Z, q.W}
		}
		c.Keys = append(c.Keys, model.Key{Time: t, Values: vals})
		return nil
	}

	// Key blocks come in two forms: a declared count after the
	// keyword, or an open list terminated by endlist.
	if len(head.tokens) > 1 {
		if err := p.readList(head, each); err != nil {
			return err
		}
	} else {
		for {
			line, ok := p.next()
			if !ok {
				return p.errf(head, "%s block missing endlist", kw)
			}
			if strings.EqualFold(line.tokens[0], "endlist") {
				break
			}
			if err := each(line); err != nil {
				return err
			}
		}
	}
	if len(c.Keys) > 0 {
		c.Columns = len(c.Keys[0].Values)
		if bezier {
			c.Columns /= 3
		}
	}
	n.Controllers = append(n.Controllers, c)
	return nil
}

// skipKeyBlock consumes an unrecognized key block without recording
// anything.
func (p *asciiParser) skipKeyBlock(head asciiLine) error {
	if len(head.tokens) > 1 {
		return p.readList(head, func(asciiLine) error { return nil })
	}
	for {
		line, ok := p.next()
		if !ok {
			return p.errf(head, "%s block missing endlist", head.tokens[0])
		}
		if strings.EqualFold(line.tokens[0], "endlist") {
			return nil
		}
	}
}
