package geometry

import (
	"go.uber.org/zap"

	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// Process normalizes a model in place: plane equations, smoothing
// groups, face adjacency, vertex normals and tangent bases, bounding
// volumes, AABB trees and skin bone tables are all rebuilt from the
// authoritative source data.
//
// super is an optional supermodel consulted read-only for bone-index
// numbering; pass nil when the model has none. Process always runs
// between a codec's read path and the opposite codec's write path and
// is idempotent.
func Process(m *model.Model, super *model.Model, opts Options) {
	log := opts.logger()
	if opts.WeldTolerance <= 0 {
		opts.WeldTolerance = 1e-4
	}

	for _, n := range m.Nodes {
		if n.Mesh == nil {
			continue
		}
		computePlanes(m, n, log)
		RebuildSmoothGroups(n.Mesh, opts.WeldTolerance)
		computeAdjacency(n.Mesh, opts.WeldTolerance)
		computeMeshBounds(n.Mesh)
	}

	// The cross-mesh position index inside requires every mesh's
	// planes and smoothing groups to be final first.
	computeNormals(m, &opts)

	for _, n := range m.Nodes {
		if n.Mesh == nil || n.Flags&model.FlagAABB == 0 {
			continue
		}
		mesh := n.Mesh
		mesh.AABBRoot = BuildAABB(len(mesh.Faces), func(i int) [3]math.Vec3 {
			f := mesh.Faces[i]
			return [3]math.Vec3{
				mesh.Verts[f.V[0]].Position,
				mesh.Verts[f.V[1]].Position,
				mesh.Verts[f.V[2]].Position,
			}
		})
	}

	mapSkins(m, super, log)
	computeModelBounds(m)
}

// computePlanes fills face normals and plane distances. Degenerate
// triangles get a zero-length normal and zero distance and are
// reported, not fatal.
func computePlanes(m *model.Model, n *model.Node, log *zap.Logger) {
	mesh := n.Mesh
	for fi := range mesh.Faces {
		f := &mesh.Faces[fi]
		p0 := mesh.Verts[f.V[0]].Position
		p1 := mesh.Verts[f.V[1]].Position
		p2 := mesh.Verts[f.V[2]].Position
		f.Normal = math.FaceNormal(p0, p1, p2)
		if f.Normal == (math.Vec3{}) {
			f.PlaneDistance = 0
			log.Debug("degenerate triangle",
				zap.String("node", m.NodeName(n)),
				zap.Int("face", fi))
			continue
		}
		f.PlaneDistance = -f.Normal.Dot(p0)
	}
}

// computeAdjacency fills each face's per-edge neighbour slots from
// edge sharing inside the node.
func computeAdjacency(mesh *model.Mesh, tol float32) {
	type edgeUse struct {
		face, edge int
	}
	edges := make(map[edgeKey][]edgeUse, len(mesh.Faces)*3)
	for fi, f := range mesh.Faces {
		mesh.Faces[fi].Adjacent = [3]int{-1, -1, -1}
		for e := 0; e < 3; e++ {
			pk := quantize(mesh.Verts[f.V[e]].Position, tol)
			qk := quantize(mesh.Verts[f.V[(e+1)%3]].Position, tol)
			edges[makeEdgeKey(pk, qk)] = append(edges[makeEdgeKey(pk, qk)], edgeUse{fi, e})
		}
	}
	for _, uses := range edges {
		if len(uses) != 2 {
			continue
		}
		mesh.Faces[uses[0].face].Adjacent[uses[0].edge] = uses[1].face
		mesh.Faces[uses[1].face].Adjacent[uses[1].edge] = uses[0].face
	}
}

func computeMeshBounds(mesh *model.Mesh) {
	lo, hi, ok := mesh.Bounds()
	if !ok {
		return
	}
	mesh.BoundingMin = lo
	mesh.BoundingMax = hi
	center := lo.Add(hi).Scale(0.5)
	var radius float32
	var sum math.Vec3
	for _, v := range mesh.Verts {
		if d := center.Distance(v.Position); d > radius {
			radius = d
		}
		sum = sum.Add(v.Position)
	}
	mesh.Radius = radius
	mesh.Average = sum.Scale(1 / float32(len(mesh.Verts)))

	var area float32
	for _, f := range mesh.Faces {
		area += math.FaceArea(
			mesh.Verts[f.V[0]].Position,
			mesh.Verts[f.V[1]].Position,
			mesh.Verts[f.V[2]].Position,
		)
	}
	mesh.TotalArea = area
}

func computeModelBounds(m *model.Model) {
	transforms := worldTransforms(m)
	first := true
	var lo, hi math.Vec3
	for ni, n := range m.Nodes {
		if n.Mesh == nil {
			continue
		}
		tr := transforms[ni]
		for _, v := range n.Mesh.Verts {
			world := tr.orientation.Rotate(v.Position).Add(tr.position)
			if first {
				lo, hi = world, world
				first = false
				continue
			}
			lo = lo.Min(world)
			hi = hi.Max(world)
		}
	}
	if first {
		return
	}
	m.BoundingMin = lo
	m.BoundingMax = hi
	center := lo.Add(hi).Scale(0.5)
	var radius float32
	for ni, n := range m.Nodes {
		if n.Mesh == nil {
			continue
		}
		tr := transforms[ni]
		for _, v := range n.Mesh.Verts {
			world := tr.orientation.Rotate(v.Position).Add(tr.position)
			if d := center.Distance(world); d > radius {
				radius = d
			}
		}
	}
	m.Radius = radius
}
