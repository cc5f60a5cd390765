// Package model holds the in-memory scene graph shared by every codec:
// the node tree, controller tracks, mesh payloads and walkmesh data.
package model

import (
	"fmt"

	"github.com/Faultbox/aurora-mdl/pkg/math"
)

// Classification identifies what kind of model this is.
type Classification uint8

// Model classification constants.
const (
	ClassOther      Classification = 0x00
	ClassEffect     Classification = 0x01
	ClassTile       Classification = 0x02
	ClassCharacter  Classification = 0x04
	ClassDoor       Classification = 0x08
	ClassLightsaber Classification = 0x10
	ClassPlaceable  Classification = 0x20
	ClassFlyer      Classification = 0x40
)

// String returns a human-readable classification name.
func (c Classification) String() string {
	switch c {
	case ClassOther:
		return "Other"
	case ClassEffect:
		return "Effect"
	case ClassTile:
		return "Tile"
	case ClassCharacter:
		return "Character"
	case ClassDoor:
		return "Door"
	case ClassLightsaber:
		return "Lightsaber"
	case ClassPlaceable:
		return "Placeable"
	case ClassFlyer:
		return "Flyer"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(c))
	}
}

// ParseClassification maps an ascii classification keyword to its enum
// value. Unknown names map to ClassOther.
func ParseClassification(name string) Classification {
	switch name {
	case "Effect", "effect":
		return ClassEffect
	case "Tile", "tile":
		return ClassTile
	case "Character", "character":
		return ClassCharacter
	case "Door", "door":
		return ClassDoor
	case "Lightsaber", "lightsaber":
		return ClassLightsaber
	case "Placeable", "placeable":
		return ClassPlaceable
	case "Flyer", "flyer":
		return ClassFlyer
	default:
		return ClassOther
	}
}

// Model is a complete parsed scene-graph model.
//
// Nodes is an arena indexed by discovery order: the slice is always a
// valid pre-order traversal of the parent/child tree and Nodes[0] is
// the tree root. Parent/child links are arena indices, never pointers,
// so the tree cannot form ownership cycles.
type Model struct {
	Name              string
	Classification    Classification
	Subclassification uint8
	AffectedByFog     bool
	Supermodel        string // empty when no supermodel reference

	BoundingMin math.Vec3
	BoundingMax math.Vec3
	Radius      float32
	AnimScale   float32

	// Names is the model-wide name table, one entry per node in
	// discovery order.
	Names []string

	Nodes []*Node
	Anims []*Animation
}

// Animation is a named controller set over a node tree that mirrors
// the base model's tree by node number.
type Animation struct {
	Name      string
	Length    float32
	TransTime float32
	AnimRoot  string
	Events    []AnimEvent
	Nodes     []*Node
}

// AnimEvent is a timed marker inside an animation.
type AnimEvent struct {
	Time float32
	Name string
}

// Root returns the root node, or nil for an empty model.
func (m *Model) Root() *Node {
	if len(m.Nodes) == 0 {
		return nil
	}
	return m.Nodes[0]
}

// NodeByName returns the node whose name-table entry matches name,
// or nil if not found.
func (m *Model) NodeByName(name string) *Node {
	for _, n := range m.Nodes {
		if m.NodeName(n) == name {
			return n
		}
	}
	return nil
}

// NodeName returns the name-table entry for a node.
func (m *Model) NodeName(n *Node) string {
	if n == nil || n.NameIndex < 0 || n.NameIndex >= len(m.Names) {
		return ""
	}
	return m.Names[n.NameIndex]
}

// Walk visits every node in pre-order, the same order the nodes were
// discovered and the same order the binary writer emits them.
func (m *Model) Walk(visit func(*Node)) {
	if len(m.Nodes) == 0 {
		return
	}
	var rec func(idx int)
	rec = func(idx int) {
		n := m.Nodes[idx]
		visit(n)
		for _, ci := range n.Children {
			rec(ci)
		}
	}
	rec(0)
}

// TotalVertexCount returns the total number of vertices across all
// mesh nodes.
func (m *Model) TotalVertexCount() int {
	total := 0
	for _, n := range m.Nodes {
		if n.Mesh != nil {
			total += len(n.Mesh.Verts)
		}
	}
	return total
}

// TotalFaceCount returns the total number of faces across all mesh
// nodes.
func (m *Model) TotalFaceCount() int {
	total := 0
	for _, n := range m.Nodes {
		if n.Mesh != nil {
			total += len(n.Mesh.Faces)
		}
	}
	return total
}
