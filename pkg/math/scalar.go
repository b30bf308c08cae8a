package math

import "github.com/chewxy/math32"

// Tolerances used throughout the baker.
const (
	Delta       = 0.00001
	SmallNumber = 0.00000001
	KindaSmall  = 0.0001
	Pi          = math32.Pi
	InvPi       = 1 / math32.Pi
)

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt limits v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Square returns v*v.
func Square(v float32) float32 {
	return v * v
}

// Radians converts degrees to radians.
func Radians(deg float32) float32 {
	return deg * math32.Pi / 180
}

// SunDirection converts longitude/latitude angles in degrees to the unit
// vector pointing towards the sun. Longitude rotates around Z, latitude is
// the elevation above the horizon.
func SunDirection(longitude, latitude float32) Vec3 {
	lon := Radians(longitude)
	lat := Radians(latitude)
	return Vec3{
		X: math32.Cos(lat) * math32.Cos(lon),
		Y: math32.Cos(lat) * math32.Sin(lon),
		Z: math32.Sin(lat),
	}
}
