package math

import (
	"math"
	"testing"
)

func TestVec2Add(t *testing.T) {
	a := Vec2{1, 2}
	b := Vec2{3, 4}
	got := a.Add(b)
	want := Vec2{4, 6}
	if got != want {
		t.Errorf("Vec2.Add() = %v, want %v", got, want)
	}
}

func TestVec2Length(t *testing.T) {
	v := Vec2{3, 4}
	got := v.Length()
	want := float32(5)
	if got != want {
		t.Errorf("Vec2.Length() = %v, want %v", got, want)
	}
}

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Normalize(t *testing.T) {
	v := Vec3{3, 0, 4}
	n := v.Normalize()
	l := n.Length()
	if l < 0.999 || l > 1.001 {
		t.Errorf("Vec3.Normalize().Length() = %v, want ~1", l)
	}
}

func TestVec3NormalizeZero(t *testing.T) {
	got := (Vec3{}).Normalize()
	if got != (Vec3{}) {
		t.Errorf("Vec3{}.Normalize() = %v, want zero vector", got)
	}
}

func TestVec3MinMax(t *testing.T) {
	a := Vec3{1, 5, -2}
	b := Vec3{3, 2, -4}
	if got := a.Min(b); got != (Vec3{1, 2, -4}) {
		t.Errorf("Vec3.Min() = %v", got)
	}
	if got := a.Max(b); got != (Vec3{3, 5, -2}) {
		t.Errorf("Vec3.Max() = %v", got)
	}
}

func TestVec3Angle(t *testing.T) {
	tests := []struct {
		name string
		a, b Vec3
		want float32
	}{
		{"perpendicular", Vec3{1, 0, 0}, Vec3{0, 1, 0}, float32(math.Pi / 2)},
		{"parallel", Vec3{1, 0, 0}, Vec3{2, 0, 0}, 0},
		{"opposite", Vec3{1, 0, 0}, Vec3{-1, 0, 0}, float32(math.Pi)},
		{"zero input", Vec3{}, Vec3{1, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Angle(tt.b)
			if diff := got - tt.want; diff > 1e-5 || diff < -1e-5 {
				t.Errorf("Angle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFaceNormal(t *testing.T) {
	// CCW triangle in the XY plane faces +Z.
	got := FaceNormal(Vec3{0, 0, 0}, Vec3{1, 0, 0}, Vec3{0, 1, 0})
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("FaceNormal() = %v, want %v", got, want)
	}
}

func TestFaceNormalDegenerate(t *testing.T) {
	p := Vec3{1, 2, 3}
	got := FaceNormal(p, p, p)
	if got != (Vec3{}) {
		t.Errorf("FaceNormal() on degenerate triangle = %v, want zero", got)
	}
}

func TestFaceArea(t *testing.T) {
	got := FaceArea(Vec3{0, 0, 0}, Vec3{2, 0, 0}, Vec3{0, 2, 0})
	if got != 2 {
		t.Errorf("FaceArea() = %v, want 2", got)
	}
}
