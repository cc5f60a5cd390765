package geometry

import (
	"go.uber.org/zap"

	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// ProcessWalkmesh normalizes a walkmesh in place: face ordering and
// plane equations always, plus the AABB tree, the walkable-face
// adjacency table and the perimeter loops for the walkable variant.
//
// Non-walkable faces are stably sorted to the end of the face list
// first; every derived section indexes faces under that ordering, and
// both codecs preserve it.
func ProcessWalkmesh(w *model.Walkmesh, opts Options) {
	log := opts.logger()
	if opts.WeldTolerance <= 0 {
		opts.WeldTolerance = 1e-4
	}

	sortNonWalkableLast(w)

	for fi := range w.Faces {
		f := &w.Faces[fi]
		p0 := w.Verts[f.V[0]]
		p1 := w.Verts[f.V[1]]
		p2 := w.Verts[f.V[2]]
		f.Normal = math.FaceNormal(p0, p1, p2)
		if f.Normal == (math.Vec3{}) {
			f.PlaneDistance = 0
			log.Debug("degenerate walkmesh triangle", zap.Int("face", fi))
			continue
		}
		f.PlaneDistance = -f.Normal.Dot(p0)
	}

	if w.Type != model.WalkmeshArea {
		w.AABBRoot = nil
		w.Adjacency = nil
		w.Perimeters = nil
		return
	}

	w.AABBRoot = BuildAABB(len(w.Faces), func(i int) [3]math.Vec3 {
		f := w.Faces[i]
		return [3]math.Vec3{w.Verts[f.V[0]], w.Verts[f.V[1]], w.Verts[f.V[2]]}
	})

	computeWalkAdjacency(w)
	tracePerimeters(w)
}

// sortNonWalkableLast stable-partitions the face list so walkable
// faces keep their relative order at the front.
func sortNonWalkableLast(w *model.Walkmesh) {
	sorted := make([]model.WalkmeshFace, 0, len(w.Faces))
	for _, f := range w.Faces {
		if model.WalkableSurface(f.Material) {
			sorted = append(sorted, f)
		}
	}
	for _, f := range w.Faces {
		if !model.WalkableSurface(f.Material) {
			sorted = append(sorted, f)
		}
	}
	w.Faces = sorted
}

// computeWalkAdjacency fills the per-walkable-face edge adjacency
// table. Slots hold the adjacent edge index (face*3 + edge) or -1;
// only walkable faces participate.
func computeWalkAdjacency(w *model.Walkmesh) {
	walkable := w.WalkableFaceCount()
	adjacency := make([][3]int, walkable)
	for i := range adjacency {
		adjacency[i] = [3]int{-1, -1, -1}
	}

	type edgeUse struct{ face, edge int }
	edges := make(map[[2]int][]edgeUse, walkable*3)
	for fi := 0; fi < walkable; fi++ {
		f := w.Faces[fi]
		for e := 0; e < 3; e++ {
			a, b := f.V[e], f.V[(e+1)%3]
			if b < a {
				a, b = b, a
			}
			edges[[2]int{a, b}] = append(edges[[2]int{a, b}], edgeUse{fi, e})
		}
	}
	for _, uses := range edges {
		if len(uses) != 2 {
			continue
		}
		adjacency[uses[0].face][uses[0].edge] = uses[1].face*3 + uses[1].edge
		adjacency[uses[1].face][uses[1].edge] = uses[0].face*3 + uses[0].edge
	}
	w.Adjacency = adjacency
}

// tracePerimeters walks boundary edges (walkable-face edges with no
// walkable neighbour) into closed loops by following shared
// endpoints.
func tracePerimeters(w *model.Walkmesh) {
	walkable := w.WalkableFaceCount()

	// Transitions survive reprocessing: remember any ids attached to
	// the previous perimeter set before rebuilding it.
	transitions := make(map[int]int)
	for _, loop := range w.Perimeters {
		for _, pe := range loop {
			if pe.Transition >= 0 {
				transitions[pe.Edge] = pe.Transition
			}
		}
	}

	// Boundary edges by starting vertex.
	type bedge struct {
		edge     int
		from, to int
	}
	byFrom := make(map[int][]int) // vertex -> indices into boundary
	var boundary []bedge
	for fi := 0; fi < walkable; fi++ {
		f := w.Faces[fi]
		for e := 0; e < 3; e++ {
			if w.Adjacency[fi][e] >= 0 {
				continue
			}
			be := bedge{edge: fi*3 + e, from: f.V[e], to: f.V[(e+1)%3]}
			byFrom[be.from] = append(byFrom[be.from], len(boundary))
			boundary = append(boundary, be)
		}
	}

	used := make([]bool, len(boundary))
	w.Perimeters = nil
	for start := range boundary {
		if used[start] {
			continue
		}
		var loop []model.PerimeterEdge
		cur := start
		for {
			used[cur] = true
			tr := -1
			if t, ok := transitions[boundary[cur].edge]; ok {
				tr = t
			}
			loop = append(loop, model.PerimeterEdge{Edge: boundary[cur].edge, Transition: tr})
			next := -1
			for _, cand := range byFrom[boundary[cur].to] {
				if !used[cand] {
					next = cand
					break
				}
			}
			if next < 0 {
				break
			}
			cur = next
		}
		w.Perimeters = append(w.Perimeters, loop)
	}
}
