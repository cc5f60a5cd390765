package geometry

import (
	"testing"

	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

func TestWeldSingleTriangle(t *testing.T) {
	// Three distinct positions, one shared smoothing group, no UVs:
	// welding emits exactly three vertices.
	corners := []Corner{
		{Position: math.Vec3{X: 0, Y: 0, Z: 0}, SmoothGroup: 1},
		{Position: math.Vec3{X: 1, Y: 0, Z: 0}, SmoothGroup: 1},
		{Position: math.Vec3{X: 0, Y: 1, Z: 0}, SmoothGroup: 1},
	}
	verts, faces := Weld(model.AttrPosition, corners, 1e-4)
	if len(verts) != 3 {
		t.Fatalf("welded vertex count = %d, want 3", len(verts))
	}
	if len(faces) != 1 {
		t.Fatalf("face count = %d, want 1", len(faces))
	}
	if faces[0] != [3]int{0, 1, 2} {
		t.Errorf("face indices = %v, want [0 1 2]", faces[0])
	}
}

func TestWeldSharedEdge(t *testing.T) {
	// Two triangles sharing an edge and smoothing group weld the two
	// shared corners.
	a := math.Vec3{X: 0, Y: 0, Z: 0}
	b := math.Vec3{X: 1, Y: 0, Z: 0}
	c := math.Vec3{X: 0, Y: 1, Z: 0}
	d := math.Vec3{X: 1, Y: 1, Z: 0}
	corners := []Corner{
		{Position: a, SmoothGroup: 1}, {Position: b, SmoothGroup: 1}, {Position: c, SmoothGroup: 1},
		{Position: b, SmoothGroup: 1}, {Position: d, SmoothGroup: 1}, {Position: c, SmoothGroup: 1},
	}
	verts, _ := Weld(model.AttrPosition, corners, 1e-4)
	if len(verts) != 4 {
		t.Errorf("welded vertex count = %d, want 4", len(verts))
	}
}

func TestWeldUVSeamSplits(t *testing.T) {
	// Same position, different UV: the corner must not be shared.
	p := math.Vec3{X: 0, Y: 0, Z: 0}
	corners := []Corner{
		{Position: p, UV: [4]math.Vec2{{X: 0, Y: 0}}, SmoothGroup: 1},
		{Position: math.Vec3{X: 1, Y: 0, Z: 0}, UV: [4]math.Vec2{{X: 1, Y: 0}}, SmoothGroup: 1},
		{Position: math.Vec3{X: 0, Y: 1, Z: 0}, UV: [4]math.Vec2{{X: 0, Y: 1}}, SmoothGroup: 1},
		{Position: p, UV: [4]math.Vec2{{X: 0.5, Y: 0.5}}, SmoothGroup: 1},
		{Position: math.Vec3{X: 1, Y: 0, Z: 0}, UV: [4]math.Vec2{{X: 1, Y: 0}}, SmoothGroup: 1},
		{Position: math.Vec3{X: 0, Y: 1, Z: 0}, UV: [4]math.Vec2{{X: 0, Y: 1}}, SmoothGroup: 1},
	}
	verts, _ := Weld(model.AttrPosition|model.AttrUV1, corners, 1e-4)
	if len(verts) != 4 {
		t.Errorf("welded vertex count = %d, want 4 (UV seam keeps two copies)", len(verts))
	}
}

func TestWeldSmoothGroupIncompatible(t *testing.T) {
	// Disjoint smoothing groups never share a vertex.
	p := math.Vec3{X: 0, Y: 0, Z: 0}
	corners := []Corner{
		{Position: p, SmoothGroup: 1},
		{Position: math.Vec3{X: 1, Y: 0, Z: 0}, SmoothGroup: 1},
		{Position: math.Vec3{X: 0, Y: 1, Z: 0}, SmoothGroup: 1},
		{Position: p, SmoothGroup: 2},
		{Position: math.Vec3{X: -1, Y: 0, Z: 0}, SmoothGroup: 2},
		{Position: math.Vec3{X: 0, Y: -1, Z: 0}, SmoothGroup: 2},
	}
	verts, _ := Weld(model.AttrPosition, corners, 1e-4)
	if len(verts) != 6 {
		t.Errorf("welded vertex count = %d, want 6", len(verts))
	}
}

func TestWeldQuotientProperty(t *testing.T) {
	// Re-expanding welded vertices through face indices reproduces
	// every original corner tuple; count never grows.
	corners := []Corner{
		{Position: math.Vec3{X: 0, Y: 0, Z: 0}, UV: [4]math.Vec2{{X: 0, Y: 0}}, SmoothGroup: 1},
		{Position: math.Vec3{X: 1, Y: 0, Z: 0}, UV: [4]math.Vec2{{X: 1, Y: 0}}, SmoothGroup: 1},
		{Position: math.Vec3{X: 0, Y: 1, Z: 0}, UV: [4]math.Vec2{{X: 0, Y: 1}}, SmoothGroup: 1},
		{Position: math.Vec3{X: 1, Y: 0, Z: 0}, UV: [4]math.Vec2{{X: 1, Y: 0}}, SmoothGroup: 1},
		{Position: math.Vec3{X: 1, Y: 1, Z: 0}, UV: [4]math.Vec2{{X: 1, Y: 1}}, SmoothGroup: 1},
		{Position: math.Vec3{X: 0, Y: 1, Z: 0}, UV: [4]math.Vec2{{X: 0, Y: 1}}, SmoothGroup: 1},
	}
	attr := model.AttrPosition | model.AttrUV1
	verts, faces := Weld(attr, corners, 1e-4)
	if len(verts) > len(corners) {
		t.Fatalf("welded count %d exceeds corner count %d", len(verts), len(corners))
	}
	for ci, c := range corners {
		v := verts[faces[ci/3][ci%3]]
		if v.Position.Distance(c.Position) > 1e-4 {
			t.Errorf("corner %d position %v -> %v", ci, c.Position, v.Position)
		}
		if v.UV[0].Sub(c.UV[0]).Length() > 1e-4 {
			t.Errorf("corner %d UV %v -> %v", ci, c.UV[0], v.UV[0])
		}
	}
}
