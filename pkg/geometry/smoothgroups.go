package geometry

import (
	gomath "math"

	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// positionKey quantizes a point onto a fixed-precision grid so that
// nearly-equal positions hash identically.
type positionKey struct {
	x, y, z int64
}

func quantize(v math.Vec3, tol float32) positionKey {
	if tol <= 0 {
		tol = 1e-4
	}
	inv := 1 / float64(tol)
	return positionKey{
		x: int64(gomath.Round(float64(v.X) * inv)),
		y: int64(gomath.Round(float64(v.Y) * inv)),
		z: int64(gomath.Round(float64(v.Z) * inv)),
	}
}

// edgeKey identifies an undirected edge by its two quantized
// endpoints, order independent.
type edgeKey struct {
	a, b positionKey
}

func makeEdgeKey(p, q positionKey) edgeKey {
	if q.x < p.x || (q.x == p.x && (q.y < p.y || (q.y == p.y && q.z < p.z))) {
		p, q = q, p
	}
	return edgeKey{a: p, b: q}
}

// RebuildSmoothGroups reassigns the smoothing-group bitmask of every
// face in the mesh from face connectivity alone: faces sharing an
// edge (a pair of vertex positions within tolerance) are flooded into
// one component, and each component gets the next power-of-two mask.
//
// Stored group ids are ignored; this reconstruction is the source of
// truth on output. The assignment is deterministic: components are
// numbered in first-face input order.
func RebuildSmoothGroups(mesh *model.Mesh, tol float32) {
	if len(mesh.Faces) == 0 {
		return
	}

	// Edge -> faces sharing it.
	edges := make(map[edgeKey][]int, len(mesh.Faces)*3)
	for fi, f := range mesh.Faces {
		for e := 0; e < 3; e++ {
			pk := quantize(mesh.Verts[f.V[e]].Position, tol)
			qk := quantize(mesh.Verts[f.V[(e+1)%3]].Position, tol)
			k := makeEdgeKey(pk, qk)
			edges[k] = append(edges[k], fi)
		}
	}

	group := make([]int, len(mesh.Faces))
	for i := range group {
		group[i] = -1
	}

	next := 0
	for seed := range mesh.Faces {
		if group[seed] >= 0 {
			continue
		}
		// Flood fill the component containing seed.
		stack := []int{seed}
		group[seed] = next
		for len(stack) > 0 {
			fi := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			f := mesh.Faces[fi]
			for e := 0; e < 3; e++ {
				pk := quantize(mesh.Verts[f.V[e]].Position, tol)
				qk := quantize(mesh.Verts[f.V[(e+1)%3]].Position, tol)
				for _, ni := range edges[makeEdgeKey(pk, qk)] {
					if group[ni] < 0 {
						group[ni] = next
						stack = append(stack, ni)
					}
				}
			}
		}
		next++
	}

	// Power-of-two masks so components can later be OR'ed together.
	for fi := range mesh.Faces {
		mesh.Faces[fi].SmoothGroup = 1 << (uint(group[fi]) % 32)
	}
}
