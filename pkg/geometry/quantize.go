package geometry

import (
	gomath "math"

	"github.com/Faultbox/aurora-mdl/pkg/math"
)

// Compressed orientation keys pack a unit quaternion into one 32-bit
// word: x in the low 11 bits, y in the next 11, z in the top 10. W is
// reconstructed from the unit-length constraint, so the quaternion is
// sign-flipped to a non-negative w before packing.
const (
	quatScaleXY = 2046
	quatScaleZ  = 1022
)

func packComponent(c float32, scale float32) uint32 {
	if c < -1 {
		c = -1
	} else if c > 1 {
		c = 1
	}
	return uint32(gomath.Round(float64((1 + c) * scale / 2)))
}

func unpackComponent(field uint32, scale float32) float32 {
	return -1 + (float32(field)/scale)/0.5
}

// CompressQuat packs a unit quaternion into a 32-bit orientation key.
func CompressQuat(q math.Quat) uint32 {
	q = q.Normalize()
	if q.W < 0 {
		q = math.Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: -q.W}
	}
	x := packComponent(q.X, quatScaleXY)
	y := packComponent(q.Y, quatScaleXY)
	z := packComponent(q.Z, quatScaleZ)
	return x | y<<11 | z<<22
}

// DecompressQuat unpacks a 32-bit orientation key into a unit
// quaternion with non-negative w.
func DecompressQuat(word uint32) math.Quat {
	x := unpackComponent(word&0x7FF, quatScaleXY)
	y := unpackComponent((word>>11)&0x7FF, quatScaleXY)
	z := unpackComponent(word>>22, quatScaleZ)
	w2 := 1 - float64(x*x+y*y+z*z)
	if w2 < 0 {
		w2 = 0
	}
	return math.Quat{X: x, Y: y, Z: z, W: float32(gomath.Sqrt(w2))}
}
