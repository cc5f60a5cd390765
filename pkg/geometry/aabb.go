package geometry

import (
	"sort"

	"github.com/Faultbox/aurora-mdl/pkg/math"
	"github.com/Faultbox/aurora-mdl/pkg/model"
)

// aabbFace is one input face for the tree builder.
type aabbFace struct {
	index    int
	min, max math.Vec3
	centroid math.Vec3
}

// BuildAABB constructs a bounding-box tree over a triangle list given
// by per-face corner positions. faceAt returns the three corners of
// face i; faces are identified by index 0..count-1. Returns nil for an
// empty input.
//
// The tree is canonical: ties between equal centroids keep input
// order, so the same faces always yield the same tree.
func BuildAABB(count int, faceAt func(i int) [3]math.Vec3) *model.AABBNode {
	if count == 0 {
		return nil
	}
	faces := make([]aabbFace, count)
	for i := 0; i < count; i++ {
		c := faceAt(i)
		f := aabbFace{
			index: i,
			min:   c[0].Min(c[1]).Min(c[2]),
			max:   c[0].Max(c[1]).Max(c[2]),
		}
		f.centroid = c[0].Add(c[1]).Add(c[2]).Scale(1.0 / 3.0)
		faces[i] = f
	}
	return buildAABBNode(faces)
}

func axisComponent(v math.Vec3, axis int) float32 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func buildAABBNode(faces []aabbFace) *model.AABBNode {
	lo := faces[0].min
	hi := faces[0].max
	for _, f := range faces[1:] {
		lo = lo.Min(f.min)
		hi = hi.Max(f.max)
	}

	if len(faces) == 1 {
		return &model.AABBNode{Min: lo, Max: hi, LeafFace: faces[0].index}
	}

	// Trial median split along the widest box axis, then pick the
	// final axis as the one where the two candidate children's
	// centers separate the most.
	extent := hi.Sub(lo)
	trial := 0
	if extent.Y > axisComponent(extent, trial) {
		trial = 1
	}
	if extent.Z > axisComponent(extent, trial) {
		trial = 2
	}

	sortByCentroid(faces, trial)
	mid := len(faces) / 2
	sep := centroidBoxCenter(faces[mid:]).Sub(centroidBoxCenter(faces[:mid]))

	axis := 0
	best := absf(sep.X)
	if absf(sep.Y) > best {
		axis, best = 1, absf(sep.Y)
	}
	if absf(sep.Z) > best {
		axis = 2
	}

	if axis != trial {
		sortByCentroid(faces, axis)
		sep = centroidBoxCenter(faces[mid:]).Sub(centroidBoxCenter(faces[:mid]))
	}
	plane := splitPlane(axis, axisComponent(sep, axis) >= 0)

	node := &model.AABBNode{
		Min:      lo,
		Max:      hi,
		LeafFace: -1,
		Plane:    plane,
		Left:     buildAABBNode(faces[:mid]),
		Right:    buildAABBNode(faces[mid:]),
	}
	return node
}

// sortByCentroid stable-sorts faces by centroid along one axis so that
// equal-centroid ties keep input order.
func sortByCentroid(faces []aabbFace, axis int) {
	sort.SliceStable(faces, func(i, j int) bool {
		return axisComponent(faces[i].centroid, axis) < axisComponent(faces[j].centroid, axis)
	})
}

// centroidBoxCenter returns the center of the bounding box of the
// face centroids.
func centroidBoxCenter(faces []aabbFace) math.Vec3 {
	lo := faces[0].centroid
	hi := lo
	for _, f := range faces[1:] {
		lo = lo.Min(f.centroid)
		hi = hi.Max(f.centroid)
	}
	return lo.Add(hi).Scale(0.5)
}

func splitPlane(axis int, positive bool) uint32 {
	switch axis {
	case 0:
		if positive {
			return model.PlanePosX
		}
		return model.PlaneNegX
	case 1:
		if positive {
			return model.PlanePosY
		}
		return model.PlaneNegY
	default:
		if positive {
			return model.PlanePosZ
		}
		return model.PlaneNegZ
	}
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
