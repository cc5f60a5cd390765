package geometry

import (
	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// Corner is one face corner's full attribute tuple before welding.
// Which attributes are meaningful is governed by the mesh's attribute
// bitmask; unused attributes must be zero so tuple comparison stays
// well defined.
type Corner struct {
	Position    math.Vec3
	UV          [4]math.Vec2
	Color       math.Vec3
	SmoothGroup uint32
	Weights     []model.VertexWeight
	Constraint  float32
}

// Weld builds the minimal vertex list for a set of face-corner tuples
// and rewrites face corner indices against it.
//
// corners holds three entries per face, in face order. Two corners
// share a vertex only when positions and UVs match within tol, every
// other attribute matches exactly, and their smoothing groups
// intersect. The binary vertex-stream format has no per-face-varying
// attributes, so this quotient is what gets serialized.
func Weld(attr model.Attr, corners []Corner, tol float32) ([]model.Vertex, [][3]int) {
	if tol <= 0 {
		tol = 1e-4
	}

	type slot struct {
		corner Corner
		index  int
	}
	byPos := make(map[positionKey][]slot, len(corners))

	verts := make([]model.Vertex, 0, len(corners))
	faces := make([][3]int, len(corners)/3)

	for ci, c := range corners {
		key := quantize(c.Position, tol)
		idx := -1
		for _, s := range byPos[key] {
			if cornersEqual(attr, s.corner, c, tol) {
				idx = s.index
				break
			}
		}
		if idx < 0 {
			idx = len(verts)
			verts = append(verts, model.Vertex{
				Position:   c.Position,
				UV:         c.UV,
				Color:      c.Color,
				Weights:    c.Weights,
				Constraint: c.Constraint,
			})
			byPos[key] = append(byPos[key], slot{corner: c, index: idx})
		}
		faces[ci/3][ci%3] = idx
	}
	return verts, faces
}

func cornersEqual(attr model.Attr, a, b Corner, tol float32) bool {
	if a.Position.Distance(b.Position) > tol {
		return false
	}
	if a.SmoothGroup&b.SmoothGroup == 0 {
		return false
	}
	for ch := 0; ch < 4; ch++ {
		bit := model.AttrUV1 << uint(ch)
		if attr&bit == 0 {
			continue
		}
		if a.UV[ch].Sub(b.UV[ch]).Length() > tol {
			return false
		}
	}
	if attr&model.AttrColor != 0 && a.Color != b.Color {
		return false
	}
	if attr&model.AttrWeights != 0 {
		if len(a.Weights) != len(b.Weights) {
			return false
		}
		for i := range a.Weights {
			if a.Weights[i] != b.Weights[i] {
				return false
			}
		}
	}
	if a.Constraint != b.Constraint {
		return false
	}
	return true
}
