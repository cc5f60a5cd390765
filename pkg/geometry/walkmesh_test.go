package geometry

import (
	"testing"

	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// stripWalkmesh returns a 2x1 quad strip: two walkable triangles and
// one non-walkable triangle listed first to exercise reordering.
func stripWalkmesh() *model.Walkmesh {
	return &model.Walkmesh{
		Type: model.WalkmeshArea,
		Verts: []math.Vec3{
			{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 2, Y: 0, Z: 0},
		},
		Faces: []model.WalkmeshFace{
			{V: [3]int{1, 4, 3}, Material: model.SurfaceNonWalk},
			{V: [3]int{0, 1, 2}, Material: model.SurfaceDirt},
			{V: [3]int{1, 3, 2}, Material: model.SurfaceStone},
		},
	}
}

func TestProcessWalkmeshOrdering(t *testing.T) {
	w := stripWalkmesh()
	ProcessWalkmesh(w, DefaultOptions())

	if got := w.WalkableFaceCount(); got != 2 {
		t.Fatalf("walkable face count = %d, want 2", got)
	}
	// Stable: walkable faces keep their relative order.
	if w.Faces[0].Material != model.SurfaceDirt || w.Faces[1].Material != model.SurfaceStone {
		t.Errorf("walkable faces out of order: %v, %v", w.Faces[0].Material, w.Faces[1].Material)
	}
	if w.Faces[2].Material != model.SurfaceNonWalk {
		t.Errorf("non-walkable face not sorted to the tail")
	}
}

func TestProcessWalkmeshAdjacency(t *testing.T) {
	w := stripWalkmesh()
	ProcessWalkmesh(w, DefaultOptions())

	if len(w.Adjacency) != 2 {
		t.Fatalf("adjacency rows = %d, want 2", len(w.Adjacency))
	}
	// After reordering, faces 0 and 1 share edge (1,2); each must
	// reference the other's edge index.
	linked := false
	for e := 0; e < 3; e++ {
		if w.Adjacency[0][e] >= 0 {
			if w.Adjacency[0][e]/3 != 1 {
				t.Errorf("face 0 edge %d links to face %d, want 1", e, w.Adjacency[0][e]/3)
			}
			back := w.Adjacency[1][w.Adjacency[0][e]%3]
			if back/3 != 0 {
				t.Errorf("adjacency not symmetric: back link %d", back)
			}
			linked = true
		}
	}
	if !linked {
		t.Error("shared edge not linked")
	}
}

func TestProcessWalkmeshPerimeter(t *testing.T) {
	w := stripWalkmesh()
	ProcessWalkmesh(w, DefaultOptions())

	if len(w.Perimeters) != 1 {
		t.Fatalf("perimeter loop count = %d, want 1", len(w.Perimeters))
	}
	loop := w.Perimeters[0]
	// The walkable quad has 4 boundary edges.
	if len(loop) != 4 {
		t.Fatalf("perimeter edge count = %d, want 4", len(loop))
	}
	// The loop is closed: each edge's end vertex is the next edge's
	// start vertex.
	endpoint := func(pe model.PerimeterEdge) (int, int) {
		f := w.Faces[pe.Edge/3]
		e := pe.Edge % 3
		return f.V[e], f.V[(e+1)%3]
	}
	for i := range loop {
		_, to := endpoint(loop[i])
		from, _ := endpoint(loop[(i+1)%len(loop)])
		if to != from {
			t.Errorf("loop break between edge %d and %d: %d != %d", i, (i+1)%len(loop), to, from)
		}
	}
}

func TestProcessWalkmeshAABB(t *testing.T) {
	w := stripWalkmesh()
	ProcessWalkmesh(w, DefaultOptions())
	if w.AABBRoot == nil {
		t.Fatal("walkable mesh missing AABB tree")
	}
	leaves := 0
	w.AABBRoot.Walk(func(n *model.AABBNode) {
		if n.IsLeaf() {
			leaves++
		}
	})
	if leaves != len(w.Faces) {
		t.Errorf("AABB leaves = %d, want %d", leaves, len(w.Faces))
	}
}

func TestProcessWalkmeshHookSkipsDerived(t *testing.T) {
	w := stripWalkmesh()
	w.Type = model.WalkmeshHook
	ProcessWalkmesh(w, DefaultOptions())
	if w.AABBRoot != nil || w.Adjacency != nil || w.Perimeters != nil {
		t.Error("hook mesh carries derived sections")
	}
}

func TestProcessWalkmeshKeepsTransitions(t *testing.T) {
	w := stripWalkmesh()
	ProcessWalkmesh(w, DefaultOptions())
	edge := w.Perimeters[0][0].Edge
	w.Perimeters[0][0].Transition = 7
	ProcessWalkmesh(w, DefaultOptions())
	for _, pe := range w.Perimeters[0] {
		if pe.Edge == edge && pe.Transition != 7 {
			t.Errorf("transition on edge %d lost on reprocess", edge)
		}
	}
}
