package geometry

import (
	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// nodeTransform is a node's accumulated world placement.
type nodeTransform struct {
	position    math.Vec3
	orientation math.Quat
}

// worldTransforms accumulates, for every node, position (vector sum)
// and orientation (quaternion product, parent then child) down the
// parent chain, taking each node's first position/orientation
// controller key when present. The result places all mesh vertices in
// one consistent space for cross-mesh normal accumulation.
func worldTransforms(m *model.Model) []nodeTransform {
	out := make([]nodeTransform, len(m.Nodes))
	for i, n := range m.Nodes {
		pos := n.Position
		orient := n.Orientation
		if c := n.FindController(model.CtrlPosition); c != nil && len(c.Keys) > 0 && len(c.Keys[0].Values) >= 3 {
			v := c.Keys[0].Values
			pos = math.Vec3{X: v[0], Y: v[1], Z: v[2]}
		}
		if c := n.FindController(model.CtrlOrientation); c != nil && len(c.Keys) > 0 && len(c.Keys[0].Values) >= 4 {
			v := c.Keys[0].Values
			orient = math.Quat{X: v[0], Y: v[1], Z: v[2], W: v[3]}
		}
		if orient == (math.Quat{}) {
			orient = math.QuatIdentity()
		}
		if n.Parent < 0 {
			out[i] = nodeTransform{position: pos, orientation: orient}
			continue
		}
		p := out[n.Parent]
		out[i] = nodeTransform{
			position:    p.position.Add(pos),
			orientation: p.orientation.Mul(orient),
		}
	}
	return out
}

// faceRef points at one face of one mesh node.
type faceRef struct {
	node int
	face int
}

// faceGeom caches a face's world-space normal, area and smoothing
// group for accumulation.
type faceGeom struct {
	normal      math.Vec3
	area        float32
	smoothGroup uint32
	render      bool
	corners     [3]math.Vec3
}

// positionIndex maps a quantized world position to every face corner
// that sits there, across all mesh nodes of the model. The index must
// be fully populated before any per-vertex normal is finalized.
type positionIndex struct {
	byPos map[positionKey][]faceRef
	geom  map[faceRef]faceGeom
	tol   float32
}

func buildPositionIndex(m *model.Model, transforms []nodeTransform, tol float32) *positionIndex {
	idx := &positionIndex{
		byPos: make(map[positionKey][]faceRef),
		geom:  make(map[faceRef]faceGeom),
		tol:   tol,
	}
	for ni, n := range m.Nodes {
		if n.Mesh == nil {
			continue
		}
		tr := transforms[ni]
		for fi, f := range n.Mesh.Faces {
			var world [3]math.Vec3
			for c := 0; c < 3; c++ {
				local := n.Mesh.Verts[f.V[c]].Position
				world[c] = tr.orientation.Rotate(local).Add(tr.position)
			}
			ref := faceRef{node: ni, face: fi}
			idx.geom[ref] = faceGeom{
				normal:      math.FaceNormal(world[0], world[1], world[2]),
				area:        math.FaceArea(world[0], world[1], world[2]),
				smoothGroup: f.SmoothGroup,
				render:      n.Mesh.Render,
				corners:     world,
			}
			for c := 0; c < 3; c++ {
				key := quantize(world[c], tol)
				idx.byPos[key] = append(idx.byPos[key], ref)
			}
		}
	}
	return idx
}

// computeNormals rebuilds per-vertex normals and tangent bases for
// every mesh node carrying the corresponding attribute bits.
func computeNormals(m *model.Model, opts *Options) {
	transforms := worldTransforms(m)
	idx := buildPositionIndex(m, transforms, opts.WeldTolerance)

	bases := make(map[int][]faceBasis)
	for ni, n := range m.Nodes {
		if n.Mesh != nil && n.Mesh.Attr&model.AttrTangent != 0 && n.Mesh.Attr&model.AttrUV1 != 0 {
			bases[ni] = meshFaceBases(n.Mesh, opts.logger())
		}
	}

	for ni, n := range m.Nodes {
		if n.Mesh == nil {
			continue
		}
		mesh := n.Mesh
		tr := transforms[ni]
		inv := tr.orientation.Inverse()

		// The vertex's own face set and OR'ed smoothing mask.
		ownFaces := make([][]int, len(mesh.Verts))
		ownMask := make([]uint32, len(mesh.Verts))
		for fi, f := range mesh.Faces {
			for c := 0; c < 3; c++ {
				ownFaces[f.V[c]] = append(ownFaces[f.V[c]], fi)
				ownMask[f.V[c]] |= f.SmoothGroup
			}
		}

		wantNormal := mesh.Attr&model.AttrNormal != 0
		wantTangent := mesh.Attr&model.AttrTangent != 0 && mesh.Attr&model.AttrUV1 != 0
		if !wantNormal && !wantTangent {
			continue
		}
		// AABB geometry never blends normals across other meshes.
		crossMesh := n.Flags&model.FlagAABB == 0

		for vi := range mesh.Verts {
			if len(ownFaces[vi]) == 0 {
				continue
			}
			world := tr.orientation.Rotate(mesh.Verts[vi].Position).Add(tr.position)
			key := quantize(world, opts.WeldTolerance)

			var acc, accT, accB math.Vec3
			for _, ref := range idx.byPos[key] {
				if !crossMesh && ref.node != ni {
					continue
				}
				g := idx.geom[ref]
				if g.render != mesh.Render {
					continue
				}
				if g.smoothGroup&ownMask[vi] == 0 {
					continue
				}

				w := float32(1)
				if opts.AreaWeight {
					w *= g.area
				}
				if opts.AngleWeight {
					w *= cornerAngle(g.corners, world, opts.WeldTolerance)
				}
				if w == 0 {
					continue
				}

				if wantNormal {
					if opts.CreaseAngle > 0 && acc.Length() > 0 &&
						acc.Angle(g.normal) > opts.CreaseAngle {
						// Crease gate applies to normals only.
					} else {
						acc = acc.Add(g.normal.Scale(w))
					}
				}
				if wantTangent {
					if fb, ok := bases[ref.node]; ok {
						b := fb[ref.face]
						accT = accT.Add(b.tangent.Scale(w))
						accB = accB.Add(b.bitangent.Scale(w))
					}
				}
			}

			if wantNormal {
				n := acc.Normalize()
				if n == (math.Vec3{}) {
					n = math.Vec3{Z: 1}
				}
				mesh.Verts[vi].Normal = inv.Rotate(n)
			}
			if wantTangent {
				mesh.Verts[vi].Tangent = inv.Rotate(accT.Normalize())
				mesh.Verts[vi].Bitangent = inv.Rotate(accB.Normalize())
			}
		}
	}
}

// cornerAngle returns the angle the face subtends at the corner that
// matches pos, or zero when no corner matches.
func cornerAngle(corners [3]math.Vec3, pos math.Vec3, tol float32) float32 {
	for c := 0; c < 3; c++ {
		if corners[c].Distance(pos) <= tol {
			e1 := corners[(c+1)%3].Sub(corners[c])
			e2 := corners[(c+2)%3].Sub(corners[c])
			return e1.Angle(e2)
		}
	}
	return 0
}
