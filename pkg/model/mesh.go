package model

import "github.com/Faultbox/aurora-mdl/pkg/math"

// Attr is the per-node vertex attribute presence bitmask. The binary
// vertex-stream row layout is variable width, so every optional
// attribute is gated by a bit here.
type Attr uint32

// Vertex attribute presence bits.
const (
	AttrPosition Attr = 0x0001
	AttrUV1      Attr = 0x0002
	AttrUV2      Attr = 0x0004
	AttrUV3      Attr = 0x0008
	AttrUV4      Attr = 0x0010
	AttrNormal   Attr = 0x0020
	AttrColor    Attr = 0x0040
	AttrTangent  Attr = 0x0080
	AttrWeights  Attr = 0x0100
	AttrIndices  Attr = 0x0200
)

// UVCount returns how many UV channels are present.
func (a Attr) UVCount() int {
	n := 0
	for _, bit := range []Attr{AttrUV1, AttrUV2, AttrUV3, AttrUV4} {
		if a&bit != 0 {
			n++
		}
	}
	return n
}

// Face is one triangle of a mesh.
//
// Adjacent holds per-edge neighbour face indices (-1 for none); it is
// derived by the geometry post-processor, never read from source data.
type Face struct {
	V           [3]int
	Material    uint32
	SmoothGroup uint32

	Normal        math.Vec3
	PlaneDistance float32
	Adjacent      [3]int
}

// VertexWeight binds a vertex to one bone.
type VertexWeight struct {
	BoneName  string
	BoneIndex int // resolved against the model's bone table; -1 unresolved
	Weight    float32
}

// Vertex is one welded vertex of a mesh node. Attribute presence is
// governed by the owning mesh's Attr bitmask.
type Vertex struct {
	Position  math.Vec3
	Normal    math.Vec3
	UV        [4]math.Vec2
	Color     math.Vec3
	Tangent   math.Vec3
	Bitangent math.Vec3

	Weights []VertexWeight // skin meshes only, at most 4

	Constraint float32 // dangly meshes only
}

// Skin is the extension payload of a skin mesh node.
type Skin struct {
	// BoneMap maps mesh-local bone slots to model node numbers.
	BoneMap []int16
	// QBones/TBones are per-bone inverse-bind orientation and
	// position, anchored so the skin node's own entry is zero.
	QBones []math.Quat
	TBones []math.Vec3
}

// Dangly is the extension payload of a dangly mesh node.
type Dangly struct {
	Displacement float32
	Tightness    float32
	Period       float32
}

// Saber is the extension payload of a lightsaber mesh node.
type Saber struct {
	Verts                []math.Vec3
	UVs                  []math.Vec2
	Normals              []math.Vec3
	InvCount1, InvCount2 uint32
}

// Mesh is the payload of a mesh-capable node.
type Mesh struct {
	Faces []Face
	Verts []Vertex
	Attr  Attr

	Diffuse          math.Vec3
	Ambient          math.Vec3
	TransparencyHint uint32
	Textures         [4]string

	Render             bool
	Shadow             bool
	Beaming            bool
	BackgroundGeometry bool
	Lightmapped        bool
	RotateTexture      bool

	AnimateUV     bool
	UVDirectionX  float32
	UVDirectionY  float32
	UVJitter      float32
	UVJitterSpeed float32

	BoundingMin math.Vec3
	BoundingMax math.Vec3
	Radius      float32
	Average     math.Vec3
	TotalArea   float32

	// InvCounters round-trips the reverse-engineered inverted
	// counter array verbatim; regenerated when absent.
	InvCounters []uint32

	Skin   *Skin
	Dangly *Dangly
	Saber  *Saber

	// AABBRoot is set on aabb nodes only, built by the geometry
	// post-processor and owned by this mesh.
	AABBRoot *AABBNode
}

// HasUVs returns true if any UV channel is present.
func (m *Mesh) HasUVs() bool {
	return m.Attr.UVCount() > 0
}

// Bounds returns the min/max corners over all vertex positions, and
// false for an empty mesh.
func (m *Mesh) Bounds() (math.Vec3, math.Vec3, bool) {
	if len(m.Verts) == 0 {
		return math.Vec3{}, math.Vec3{}, false
	}
	lo := m.Verts[0].Position
	hi := lo
	for _, v := range m.Verts[1:] {
		lo = lo.Min(v.Position)
		hi = hi.Max(v.Position)
	}
	return lo, hi, true
}
