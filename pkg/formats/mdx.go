package formats

import (
	"encoding/binary"
	gomath "math"

	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// MDX vertex rows end on a 16-byte boundary; the slack is filled with
// a large float guard pattern the engine checks for, and one full
// guard row terminates each node's span. Skin nodes use a distinct
// guard value.
const (
	mdxRowAlign     = 16
	mdxPadValue     = float32(10000000.0)
	mdxPadValueSkin = float32(1000000.0)
)

// rowLayout is the byte layout of one vertex row, derived from a mesh
// node's attribute-presence bitmask. Offsets are -1 for absent
// attributes.
type rowLayout struct {
	position int32
	normal   int32
	color    int32
	uv       [4]int32
	tangent  int32
	weights  int32
	indices  int32

	rawSize int32 // before alignment
	size    int32 // after 16-byte alignment
}

// computeRowLayout lays attributes out in a fixed order: position,
// normal, color, UV channels, tangent basis, bone weights, bone
// indices.
func computeRowLayout(attr model.Attr) rowLayout {
	l := rowLayout{
		position: -1, normal: -1, color: -1,
		uv: [4]int32{-1, -1, -1, -1},
		tangent: -1, weights: -1, indices: -1,
	}
	var off int32
	take := func(n int32) int32 {
		o := off
		off += n
		return o
	}
	if attr&model.AttrPosition != 0 {
		l.position = take(12)
	}
	if attr&model.AttrNormal != 0 {
		l.normal = take(12)
	}
	if attr&model.AttrColor != 0 {
		l.color = take(12)
	}
	for ch := 0; ch < 4; ch++ {
		if attr&(model.AttrUV1<<uint(ch)) != 0 {
			l.uv[ch] = take(8)
		}
	}
	if attr&model.AttrTangent != 0 {
		l.tangent = take(24)
	}
	if attr&model.AttrWeights != 0 {
		l.weights = take(16)
	}
	if attr&model.AttrIndices != 0 {
		l.indices = take(16)
	}
	l.rawSize = off
	l.size = (off + mdxRowAlign - 1) / mdxRowAlign * mdxRowAlign
	if l.size == 0 {
		l.size = mdxRowAlign
	}
	return l
}

func putF32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, gomath.Float32bits(v))
}

func getF32(b []byte) float32 {
	return gomath.Float32frombits(binary.LittleEndian.Uint32(b))
}

func putVec3(b []byte, v math.Vec3) {
	putF32(b[0:], v.X)
	putF32(b[4:], v.Y)
	putF32(b[8:], v.Z)
}

func getVec3(b []byte) math.Vec3 {
	return math.Vec3{X: getF32(b[0:]), Y: getF32(b[4:]), Z: getF32(b[8:])}
}

// encodeMDXRows serializes a mesh node's vertices into vertex-stream
// rows, including the trailing guard row. Pad bytes reproduce the
// guard pattern byte-exactly. For skin meshes, slots maps bone names
// to the mesh-local slots that the on-disk bone indices use.
func encodeMDXRows(mesh *model.Mesh, isSkin bool, slots map[string]int16) []byte {
	l := computeRowLayout(mesh.Attr)
	pad := mdxPadValue
	if isSkin {
		pad = mdxPadValueSkin
	}

	out := make([]byte, int(l.size)*(len(mesh.Verts)+1))
	for vi := range mesh.Verts {
		row := out[vi*int(l.size) : (vi+1)*int(l.size)]
		encodeRow(row, l, &mesh.Verts[vi], pad, slots)
	}
	// Guard row: every float slot carries the pad value.
	guard := out[len(mesh.Verts)*int(l.size):]
	for o := 0; o+4 <= len(guard); o += 4 {
		putF32(guard[o:], pad)
	}
	return out
}

func encodeRow(row []byte, l rowLayout, v *model.Vertex, pad float32, slots map[string]int16) {
	// Sentinel-fill first so alignment slack keeps the guard pattern.
	for o := int(l.rawSize); o+4 <= len(row); o += 4 {
		putF32(row[o:], pad)
	}
	if l.position >= 0 {
		putVec3(row[l.position:], v.Position)
	}
	if l.normal >= 0 {
		putVec3(row[l.normal:], v.Normal)
	}
	if l.color >= 0 {
		putVec3(row[l.color:], v.Color)
	}
	for ch := 0; ch < 4; ch++ {
		if l.uv[ch] >= 0 {
			putF32(row[l.uv[ch]:], v.UV[ch].X)
			putF32(row[l.uv[ch]+4:], v.UV[ch].Y)
		}
	}
	if l.tangent >= 0 {
		putVec3(row[l.tangent:], v.Tangent)
		putVec3(row[l.tangent+12:], v.Bitangent)
	}
	if l.weights >= 0 {
		for s := 0; s < 4; s++ {
			w := float32(0)
			if s < len(v.Weights) {
				w = v.Weights[s].Weight
			}
			putF32(row[l.weights+int32(s*4):], w)
		}
	}
	if l.indices >= 0 {
		for s := 0; s < 4; s++ {
			idx := float32(-1)
			if s < len(v.Weights) {
				w := v.Weights[s]
				if slot, ok := slots[w.BoneName]; ok {
					idx = float32(slot)
				} else {
					idx = float32(w.BoneIndex)
				}
			}
			putF32(row[l.indices+int32(s*4):], idx)
		}
	}
}

// decodeMDXRows parses vertexCount rows at mdxOffset in the vertex
// stream back into mesh vertices.
func decodeMDXRows(mdx []byte, mdxOffset uint32, vertexCount int, rowSize int32, attr model.Attr) ([]model.Vertex, error) {
	l := computeRowLayout(attr)
	if rowSize > 0 {
		// The stored row size may legitimately exceed the layout's
		// packed size (alignment slack), but a smaller one would put
		// field offsets past the row.
		if rowSize < l.rawSize {
			return nil, ErrTruncatedMDXData
		}
		l.size = rowSize
	}
	end := int(mdxOffset) + int(l.size)*vertexCount
	if end > len(mdx) {
		return nil, ErrTruncatedMDXData
	}

	verts := make([]model.Vertex, vertexCount)
	for vi := 0; vi < vertexCount; vi++ {
		row := mdx[int(mdxOffset)+vi*int(l.size):]
		v := &verts[vi]
		if l.position >= 0 {
			v.Position = getVec3(row[l.position:])
		}
		if l.normal >= 0 {
			v.Normal = getVec3(row[l.normal:])
		}
		if l.color >= 0 {
			v.Color = getVec3(row[l.color:])
		}
		for ch := 0; ch < 4; ch++ {
			if l.uv[ch] >= 0 {
				v.UV[ch] = math.Vec2{X: getF32(row[l.uv[ch]:]), Y: getF32(row[l.uv[ch]+4:])}
			}
		}
		if l.tangent >= 0 {
			v.Tangent = getVec3(row[l.tangent:])
			v.Bitangent = getVec3(row[l.tangent+12:])
		}
		if l.weights >= 0 && l.indices >= 0 {
			for s := 0; s < 4; s++ {
				w := getF32(row[l.weights+int32(s*4):])
				idx := getF32(row[l.indices+int32(s*4):])
				if idx < 0 || w == 0 {
					continue
				}
				v.Weights = append(v.Weights, model.VertexWeight{
					BoneIndex: int(idx),
					Weight:    w,
				})
			}
		}
	}
	return verts, nil
}
