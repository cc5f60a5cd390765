package model

import "github.com/Faultbox/aurora-mdl/pkg/math"

// AABB split-plane codes: the axis the children were split on, with
// the sign of the split direction.
const (
	PlanePosX uint32 = 0x01
	PlaneNegX uint32 = 0x02
	PlanePosY uint32 = 0x04
	PlaneNegY uint32 = 0x08
	PlanePosZ uint32 = 0x10
	PlaneNegZ uint32 = 0x20
)

// AABBNode is one node of an axis-aligned bounding-box tree over a
// face list. A leaf has LeafFace >= 0 and no children; an internal
// node has LeafFace == -1 and both children set.
type AABBNode struct {
	Min, Max math.Vec3
	LeafFace int
	Plane    uint32
	Left     *AABBNode
	Right    *AABBNode
}

// IsLeaf reports whether the node holds a single face.
func (n *AABBNode) IsLeaf() bool {
	return n.LeafFace >= 0
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *AABBNode) Count() int {
	if n == nil {
		return 0
	}
	return 1 + n.Left.Count() + n.Right.Count()
}

// Walk visits the subtree in pre-order (node, left, right), the order
// both binary formats store AABB trees in.
func (n *AABBNode) Walk(visit func(*AABBNode)) {
	if n == nil {
		return
	}
	visit(n)
	n.Left.Walk(visit)
	n.Right.Walk(visit)
}
