package model

// Controller ids understood by every node type.
const (
	CtrlPosition    uint32 = 8
	CtrlOrientation uint32 = 20
	CtrlScale       uint32 = 36
)

// Controller ids specific to mesh nodes.
const (
	CtrlSelfIllumColor uint32 = 100
	CtrlAlpha          uint32 = 132
)

// Controller ids specific to light nodes.
const (
	CtrlColor        uint32 = 76
	CtrlRadius       uint32 = 88
	CtrlShadowRadius uint32 = 96
	CtrlVerticalDisp uint32 = 100
	CtrlMultiplier   uint32 = 140
)

// Controller ids specific to emitter nodes.
const (
	CtrlAlphaEnd      uint32 = 80
	CtrlAlphaStart    uint32 = 84
	CtrlBirthRate     uint32 = 88
	CtrlBounceCo      uint32 = 92
	CtrlColorEnd      uint32 = 380
	CtrlColorStart    uint32 = 392
	CtrlFPS           uint32 = 124
	CtrlFrameEnd      uint32 = 128
	CtrlFrameStart    uint32 = 132
	CtrlLifeExp       uint32 = 120
	CtrlMass          uint32 = 144
	CtrlParticleRot   uint32 = 148
	CtrlRandVel       uint32 = 152
	CtrlSizeStart     uint32 = 156
	CtrlSizeEnd       uint32 = 160
	CtrlSpread        uint32 = 168
	CtrlThreshold     uint32 = 164
	CtrlVelocity      uint32 = 172
	CtrlXSize         uint32 = 176
	CtrlYSize         uint32 = 180
)

// Key is one keyframe of a controller track.
//
// Values holds the full value tuple for the key. For a bezier-keyed
// controller the tuple is three times the controller's column width:
// the value followed by its two control handles.
type Key struct {
	Time   float32
	Values []float32
}

// Controller is a keyed animation channel. The meaning of ID depends
// on the owning node's capability flags.
type Controller struct {
	ID      uint32
	Bezier  bool
	Columns int
	Keys    []Key
}

// FindController returns the first controller with the given id, or
// nil if the node has none.
func (n *Node) FindController(id uint32) *Controller {
	for i := range n.Controllers {
		if n.Controllers[i].ID == id {
			return &n.Controllers[i]
		}
	}
	return nil
}

// ControllerName returns the ascii keyword for a controller id on a
// node with the given capability flags. Returns "" for ids with no
// textual form.
func ControllerName(flags NodeFlags, id uint32) string {
	switch id {
	case CtrlPosition:
		return "position"
	case CtrlOrientation:
		return "orientation"
	case CtrlScale:
		return "scale"
	}
	switch {
	case flags&FlagLight != 0:
		switch id {
		case CtrlColor:
			return "color"
		case CtrlRadius:
			return "radius"
		case CtrlShadowRadius:
			return "shadowradius"
		case CtrlVerticalDisp:
			return "verticaldisplacement"
		case CtrlMultiplier:
			return "multiplier"
		}
	case flags&FlagEmitter != 0:
		switch id {
		case CtrlAlphaEnd:
			return "alphaEnd"
		case CtrlAlphaStart:
			return "alphaStart"
		case CtrlBirthRate:
			return "birthrate"
		case CtrlBounceCo:
			return "bounce_co"
		case CtrlColorEnd:
			return "colorEnd"
		case CtrlColorStart:
			return "colorStart"
		case CtrlFPS:
			return "fps"
		case CtrlFrameEnd:
			return "frameEnd"
		case CtrlFrameStart:
			return "frameStart"
		case CtrlLifeExp:
			return "lifeExp"
		case CtrlMass:
			return "mass"
		case CtrlParticleRot:
			return "particleRot"
		case CtrlRandVel:
			return "randvel"
		case CtrlSizeStart:
			return "sizeStart"
		case CtrlSizeEnd:
			return "sizeEnd"
		case CtrlSpread:
			return "spread"
		case CtrlThreshold:
			return "threshold"
		case CtrlVelocity:
			return "velocity"
		case CtrlXSize:
			return "xsize"
		case CtrlYSize:
			return "ysize"
		}
	case flags&FlagMesh != 0:
		switch id {
		case CtrlSelfIllumColor:
			return "selfillumcolor"
		case CtrlAlpha:
			return "alpha"
		}
	}
	return ""
}

// ParseControllerID maps an ascii controller keyword back to its id
// for a node with the given capability flags. The second result is
// false for unknown keywords.
func ParseControllerID(flags NodeFlags, name string) (uint32, bool) {
	switch name {
	case "position":
		return CtrlPosition, true
	case "orientation":
		return CtrlOrientation, true
	case "scale":
		return CtrlScale, true
	}
	switch {
	case flags&FlagLight != 0:
		switch name {
		case "color":
			return CtrlColor, true
		case "radius":
			return CtrlRadius, true
		case "shadowradius":
			return CtrlShadowRadius, true
		case "verticaldisplacement":
			return CtrlVerticalDisp, true
		case "multiplier":
			return CtrlMultiplier, true
		}
	case flags&FlagEmitter != 0:
		switch name {
		case "alphaEnd":
			return CtrlAlphaEnd, true
		case "alphaStart":
			return CtrlAlphaStart, true
		case "birthrate":
			return CtrlBirthRate, true
		case "bounce_co":
			return CtrlBounceCo, true
		case "colorEnd":
			return CtrlColorEnd, true
		case "colorStart":
			return CtrlColorStart, true
		case "fps":
			return CtrlFPS, true
		case "frameEnd":
			return CtrlFrameEnd, true
		case "frameStart":
			return CtrlFrameStart, true
		case "lifeExp":
			return CtrlLifeExp, true
		case "mass":
			return CtrlMass, true
		case "particleRot":
			return CtrlParticleRot, true
		case "randvel":
			return CtrlRandVel, true
		case "sizeStart":
			return CtrlSizeStart, true
		case "sizeEnd":
			return CtrlSizeEnd, true
		case "spread":
			return CtrlSpread, true
		case "threshold":
			return CtrlThreshold, true
		case "velocity":
			return CtrlVelocity, true
		case "xsize":
			return CtrlXSize, true
		case "ysize":
			return CtrlYSize, true
		}
	case flags&FlagMesh != 0:
		switch name {
		case "selfillumcolor":
			return CtrlSelfIllumColor, true
		case "alpha":
			return CtrlAlpha, true
		}
	}
	return 0, false
}
