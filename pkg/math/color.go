package math

import "github.com/chewxy/math32"

// Color is a linear RGB color. Values are unbounded radiometric quantities.
type Color struct {
	R, G, B float32
}

// Black is the zero color.
var Black = Color{}

// White is unit radiance in every channel.
var White = Color{1, 1, 1}

// Gray returns a color with every channel set to v.
func Gray(v float32) Color {
	return Color{v, v, v}
}

// Add returns c + other.
func (c Color) Add(other Color) Color {
	return Color{c.R + other.R, c.G + other.G, c.B + other.B}
}

// Sub returns c - other.
func (c Color) Sub(other Color) Color {
	return Color{c.R - other.R, c.G - other.G, c.B - other.B}
}

// Scale returns c * s.
func (c Color) Scale(s float32) Color {
	return Color{c.R * s, c.G * s, c.B * s}
}

// Mul returns the channel-wise product.
func (c Color) Mul(other Color) Color {
	return Color{c.R * other.R, c.G * other.G, c.B * other.B}
}

// Luminance returns the Rec. 709 luminance.
func (c Color) Luminance() float32 {
	return c.R*0.3 + c.G*0.59 + c.B*0.11
}

// Max returns the largest channel.
func (c Color) Max() float32 {
	return math32.Max(c.R, math32.Max(c.G, c.B))
}

// IsNearlyBlack reports whether every channel is below KindaSmall.
func (c Color) IsNearlyBlack() bool {
	return math32.Abs(c.R) < KindaSmall && math32.Abs(c.G) < KindaSmall && math32.Abs(c.B) < KindaSmall
}

// Channel returns channel i (0=R, 1=G, 2=B).
func (c Color) Channel(i int) float32 {
	switch i {
	case 0:
		return c.R
	case 1:
		return c.G
	default:
		return c.B
	}
}

// DistanceSquared returns the squared euclidean distance in RGB space.
func (c Color) DistanceSquared(other Color) float32 {
	d := c.Sub(other)
	return d.R*d.R + d.G*d.G + d.B*d.B
}

// Vec3 reinterprets the color as a vector.
func (c Color) Vec3() Vec3 {
	return Vec3{c.R, c.G, c.B}
}
