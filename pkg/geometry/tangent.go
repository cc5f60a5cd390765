package geometry

import (
	"go.uber.org/zap"

	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// Fallback basis used when a face's UV triangle is degenerate.
var (
	fallbackTangent   = math.Vec3{X: 1}
	fallbackBitangent = math.Vec3{Y: 1}
)

// faceBasis is one face's tangent-space basis in world space.
type faceBasis struct {
	tangent   math.Vec3
	bitangent math.Vec3
}

// faceTangentBasis solves the 2x2 system mapping the UV-space basis to
// the two world-space edge vectors of the triangle.
//
// The handedness convention is fixed: cross(normal, tangent) dotted
// with the bitangent must come out negative; a mirrored UV winding
// flips both vectors.
func faceTangentBasis(p0, p1, p2 math.Vec3, uv0, uv1, uv2 math.Vec2, normal math.Vec3, log *zap.Logger) faceBasis {
	e1 := p1.Sub(p0)
	e2 := p2.Sub(p0)
	d1 := uv1.Sub(uv0)
	d2 := uv2.Sub(uv0)

	det := d1.X*d2.Y - d2.X*d1.Y
	if absf(det) < 1e-12 {
		if log != nil {
			log.Debug("degenerate UV triangle, substituting fallback tangent")
		}
		return faceBasis{tangent: fallbackTangent, bitangent: fallbackBitangent}
	}

	r := 1 / det
	t := e1.Scale(d2.Y * r).Sub(e2.Scale(d1.Y * r)).Normalize()
	b := e2.Scale(d1.X * r).Sub(e1.Scale(d2.X * r)).Normalize()

	if normal.Cross(t).Dot(b) > 0 {
		t = t.Scale(-1)
		b = b.Scale(-1)
	}
	return faceBasis{tangent: t, bitangent: b}
}

// meshFaceBases computes a tangent-space basis per face of a mesh, in
// the positions' own space, from UV channel 0.
func meshFaceBases(mesh *model.Mesh, log *zap.Logger) []faceBasis {
	bases := make([]faceBasis, len(mesh.Faces))
	for i, f := range mesh.Faces {
		p0 := mesh.Verts[f.V[0]].Position
		p1 := mesh.Verts[f.V[1]].Position
		p2 := mesh.Verts[f.V[2]].Position
		uv0 := mesh.Verts[f.V[0]].UV[0]
		uv1 := mesh.Verts[f.V[1]].UV[0]
		uv2 := mesh.Verts[f.V[2]].UV[0]
		bases[i] = faceTangentBasis(p0, p1, p2, uv0, uv1, uv2, f.Normal, log)
	}
	return bases
}
