package vdpm

import (
	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is the single precision vector used by the view dependent tests.
type Vec3 struct {
	X, Y, Z float32
}

func Vec3Of(v r3.Vec) Vec3 {
	return Vec3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

func (a Vec3) Add(b Vec3) Vec3        { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3        { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float32) Vec3   { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float32     { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Length() float32        { return math32.Sqrt(a.Dot(a)) }
func (a Vec3) LengthSquared() float32 { return a.Dot(a) }
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{a.Y*b.Z - a.Z*b.Y, a.Z*b.X - a.X*b.Z, a.X*b.Y - a.Y*b.X}
}

// Normalized returns a unit vector, or the zero vector unchanged.
func (a Vec3) Normalized() Vec3 {
	l := a.Length()
	if l == 0 {
		return a
	}
	return a.Scale(1 / l)
}

// angle between unit vectors, clamped against rounding
func angle(a, b Vec3) float32 {
	return math32.Acos(math32.Max(-1, math32.Min(1, a.Dot(b))))
}
