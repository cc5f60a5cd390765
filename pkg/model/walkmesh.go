package model

import "github.com/Faultbox/aurora-mdl/pkg/math"

// WalkmeshType selects which trailing sections a walkmesh file has.
type WalkmeshType uint32

// Walkmesh type constants.
const (
	// WalkmeshHook is a non-walkable hookpoint mesh (door/placeable
	// use points): no AABB tree, adjacency or perimeter sections.
	WalkmeshHook WalkmeshType = 0
	// WalkmeshArea is a walkable navigation mesh with the full set of
	// derived sections.
	WalkmeshArea WalkmeshType = 1
)

// Surface material ids that block walking.
const (
	SurfaceUndefined    uint32 = 0
	SurfaceDirt         uint32 = 1
	SurfaceObscuring    uint32 = 2
	SurfaceGrass        uint32 = 3
	SurfaceStone        uint32 = 4
	SurfaceWood         uint32 = 5
	SurfaceWater        uint32 = 6
	SurfaceNonWalk      uint32 = 7
	SurfaceTransparent  uint32 = 8
	SurfaceCarpet       uint32 = 9
	SurfaceMetal        uint32 = 10
	SurfacePuddles      uint32 = 11
	SurfaceSwamp        uint32 = 12
	SurfaceMud          uint32 = 13
	SurfaceLeaves       uint32 = 14
	SurfaceLava         uint32 = 15
	SurfaceBottomless   uint32 = 16
	SurfaceDeepWater    uint32 = 17
	SurfaceDoor         uint32 = 18
	SurfaceNonWalkGrass uint32 = 30
)

// WalkableSurface reports whether faces with the given material take
// part in adjacency and AABB computation.
func WalkableSurface(material uint32) bool {
	switch material {
	case SurfaceNonWalk, SurfaceObscuring, SurfaceTransparent,
		SurfaceDeepWater, SurfaceLava, SurfaceBottomless, SurfaceNonWalkGrass:
		return false
	default:
		return true
	}
}

// WalkmeshFace is one triangle of a walkmesh.
type WalkmeshFace struct {
	V        [3]int
	Material uint32

	Normal        math.Vec3
	PlaneDistance float32
}

// PerimeterEdge is one boundary edge of the walkable region.
// Transition is the id of the area transition crossing this edge, or
// -1 for a plain boundary.
type PerimeterEdge struct {
	// Edge index: face index * 3 + edge slot.
	Edge       int
	Transition int
}

// Walkmesh is a parsed navigation/collision mesh.
//
// The face list invariant: all walkable faces come first, non-walkable
// faces are stably sorted to the tail. Every derived section
// (adjacency, AABB, perimeters) indexes faces under that ordering.
type Walkmesh struct {
	Type     WalkmeshType
	Position math.Vec3
	// Hook meshes carry two "relative use" points.
	UseVec1, UseVec2 math.Vec3

	Verts []math.Vec3
	Faces []WalkmeshFace

	// Derived, walkable meshes only.
	AABBRoot *AABBNode
	// Adjacency has one [3]int entry per walkable face; each slot is
	// the adjacent edge index (face*3+edge) or -1.
	Adjacency  [][3]int
	Perimeters [][]PerimeterEdge
}

// WalkableFaceCount returns the number of leading walkable faces.
func (w *Walkmesh) WalkableFaceCount() int {
	n := 0
	for _, f := range w.Faces {
		if !WalkableSurface(f.Material) {
			break
		}
		n++
	}
	return n
}

// Bounds returns the min/max corners over all vertices, and false for
// an empty mesh.
func (w *Walkmesh) Bounds() (math.Vec3, math.Vec3, bool) {
	if len(w.Verts) == 0 {
		return math.Vec3{}, math.Vec3{}, false
	}
	lo := w.Verts[0]
	hi := lo
	for _, v := range w.Verts[1:] {
		lo = lo.Min(v)
		hi = hi.Max(v)
	}
	return lo, hi, true
}
