package model

import (
	"fmt"
	"strings"

	"github.com/Faultbox/aurora-mdl/pkg/math"
)

// NodeFlags is the node capability bitmask: which structural roles a
// scene node plays. Flags combine, e.g. a skinned mesh node carries
// FlagHeader|FlagMesh|FlagSkin.
type NodeFlags uint16

// Node capability flags.
const (
	FlagHeader    NodeFlags = 0x0001
	FlagLight     NodeFlags = 0x0002
	FlagEmitter   NodeFlags = 0x0004
	FlagCamera    NodeFlags = 0x0008
	FlagReference NodeFlags = 0x0010
	FlagMesh      NodeFlags = 0x0020
	FlagSkin      NodeFlags = 0x0040
	FlagAnimMesh  NodeFlags = 0x0080
	FlagDangly    NodeFlags = 0x0100
	FlagAABB      NodeFlags = 0x0200
	FlagSaber     NodeFlags = 0x0800
)

// Composite node type values as they appear on disk.
const (
	NodeTypeDummy    = FlagHeader
	NodeTypeLight    = FlagHeader | FlagLight
	NodeTypeEmitter  = FlagHeader | FlagEmitter
	NodeTypeCamera   = FlagHeader | FlagCamera
	NodeTypeRef      = FlagHeader | FlagReference
	NodeTypeTrimesh  = FlagHeader | FlagMesh
	NodeTypeSkin     = FlagHeader | FlagMesh | FlagSkin
	NodeTypeAnimMesh = FlagHeader | FlagMesh | FlagAnimMesh
	NodeTypeDangly   = FlagHeader | FlagMesh | FlagDangly
	NodeTypeAABB     = FlagHeader | FlagMesh | FlagAABB
	NodeTypeSaber    = FlagHeader | FlagMesh | FlagSaber
)

// TypeName returns the ascii keyword for a composite node type.
func (f NodeFlags) TypeName() string {
	switch f {
	case NodeTypeDummy:
		return "dummy"
	case NodeTypeLight:
		return "light"
	case NodeTypeEmitter:
		return "emitter"
	case NodeTypeCamera:
		return "camera"
	case NodeTypeRef:
		return "reference"
	case NodeTypeTrimesh:
		return "trimesh"
	case NodeTypeSkin:
		return "skin"
	case NodeTypeAnimMesh:
		return "animmesh"
	case NodeTypeDangly:
		return "danglymesh"
	case NodeTypeAABB:
		return "aabb"
	case NodeTypeSaber:
		return "lightsaber"
	default:
		return fmt.Sprintf("unknown(0x%04x)", uint16(f))
	}
}

// ParseNodeType maps an ascii node-type keyword to its composite flag
// value. Returns 0 for an unknown keyword.
func ParseNodeType(keyword string) NodeFlags {
	switch strings.ToLower(keyword) {
	case "dummy":
		return NodeTypeDummy
	case "light":
		return NodeTypeLight
	case "emitter":
		return NodeTypeEmitter
	case "camera":
		return NodeTypeCamera
	case "reference":
		return NodeTypeRef
	case "trimesh":
		return NodeTypeTrimesh
	case "skin":
		return NodeTypeSkin
	case "animmesh":
		return NodeTypeAnimMesh
	case "danglymesh":
		return NodeTypeDangly
	case "aabb":
		return NodeTypeAABB
	case "lightsaber":
		return NodeTypeSaber
	default:
		return 0
	}
}

// Node is one entry in a model's (or animation's) node arena.
//
// Index is the node's position in discovery order. Parent is the
// arena index of the parent, or -1 for the root. The typed payload
// pointers are set iff the corresponding capability flag is set.
type Node struct {
	Index     int
	Number    uint16 // stable node number shared with the supermodel
	NameIndex int
	Flags     NodeFlags

	Parent   int
	Children []int

	Position    math.Vec3
	Orientation math.Quat

	Controllers []Controller

	Light     *Light
	Emitter   *Emitter
	Reference *Reference
	Mesh      *Mesh
}

// Light is the payload of a light-capable node.
type Light struct {
	FlareRadius     float32
	LightPriority   uint32
	AmbientOnly     uint32
	DynamicType     uint32
	AffectDynamic   uint32
	Shadow          uint32
	Flare           uint32
	FadingLight     uint32
	FlareSizes      []float32
	FlarePositions  []float32
	FlareColorShift []math.Vec3
	FlareTextures   []string
}

// Emitter is the payload of an emitter-capable node. Several of the
// flag bits are reverse engineered; they round-trip verbatim.
type Emitter struct {
	DeadSpace         float32
	BlastRadius       float32
	BlastLength       float32
	BranchCount       uint32
	ControlPtSmooth   float32
	XGrid, YGrid      uint32
	SpawnType         uint32
	Update            string
	Render            string
	Blend             string
	Texture           string
	ChunkName         string
	TwoSidedTex       uint32
	Loop              uint32
	RenderOrder       uint16
	FrameBlending     uint8
	DepthTextureName  string
	Flags             uint32
}

// Emitter flag bits.
const (
	EmitterFlagP2P          = 0x0001
	EmitterFlagP2PSel       = 0x0002
	EmitterFlagAffectWind   = 0x0004
	EmitterFlagTinted       = 0x0008
	EmitterFlagBounce       = 0x0010
	EmitterFlagRandom       = 0x0020
	EmitterFlagInherit      = 0x0040
	EmitterFlagInheritVel   = 0x0080
	EmitterFlagInheritLocal = 0x0100
	EmitterFlagSplat        = 0x0200
	EmitterFlagInheritPart  = 0x0400
	EmitterFlagDepthTexture = 0x0800
)

// Reference is the payload of a reference node: a link to another
// model re-attached at this point.
type Reference struct {
	RefModel     string
	Reattachable bool
}
