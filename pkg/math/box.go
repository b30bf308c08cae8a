package math

import "github.com/chewxy/math32"

// Box is an axis-aligned bounding box. A box with Min > Max on any axis is
// empty.
type Box struct {
	Min Vec3
	Max Vec3
}

// EmptyBox returns a box that contains nothing and grows with AddPoint.
func EmptyBox() Box {
	inf := float32(math32.MaxFloat32)
	return Box{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// NewBox returns the bounds of the given points.
func NewBox(points ...Vec3) Box {
	b := EmptyBox()
	for _, p := range points {
		b = b.AddPoint(p)
	}
	return b
}

// BoxFromCenter returns the box center±extent.
func BoxFromCenter(center, extent Vec3) Box {
	return Box{Min: center.Sub(extent), Max: center.Add(extent)}
}

// IsValid reports whether the box contains at least one point.
func (b Box) IsValid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// AddPoint grows the box to contain p.
func (b Box) AddPoint(p Vec3) Box {
	return Box{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Union returns the smallest box containing both boxes.
func (b Box) Union(other Box) Box {
	if !other.IsValid() {
		return b
	}
	if !b.IsValid() {
		return other
	}
	return Box{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max)}
}

// Center returns the center point.
func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Extent returns the half size.
func (b Box) Extent() Vec3 {
	return b.Max.Sub(b.Min).Scale(0.5)
}

// Size returns the full size.
func (b Box) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Radius returns the distance from center to corner (half-diagonal).
func (b Box) Radius() float32 {
	return b.Extent().Length()
}

// ExpandBy grows the box by d on every side.
func (b Box) ExpandBy(d float32) Box {
	e := Vec3{d, d, d}
	return Box{Min: b.Min.Sub(e), Max: b.Max.Add(e)}
}

// ExpandByVec grows the box by e on every side.
func (b Box) ExpandByVec(e Vec3) Box {
	return Box{Min: b.Min.Sub(e), Max: b.Max.Add(e)}
}

// Contains reports whether p lies inside the closed box.
func (b Box) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// ContainsBox reports whether other lies entirely inside b.
func (b Box) ContainsBox(other Box) bool {
	return b.Contains(other.Min) && b.Contains(other.Max)
}

// Intersects reports whether the closed boxes overlap.
func (b Box) Intersects(other Box) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}

// IntersectsSphere reports whether the sphere overlaps the box.
func (b Box) IntersectsSphere(center Vec3, radius float32) bool {
	closest := center.Max(b.Min).Min(b.Max)
	return closest.DistanceSquared(center) <= radius*radius
}

// Octant returns the child box with the given index. Bit 0 selects the upper
// half along X, bit 1 along Y, bit 2 along Z.
func (b Box) Octant(i int) Box {
	c := b.Center()
	out := Box{Min: b.Min, Max: c}
	if i&1 != 0 {
		out.Min.X, out.Max.X = c.X, b.Max.X
	}
	if i&2 != 0 {
		out.Min.Y, out.Max.Y = c.Y, b.Max.Y
	}
	if i&4 != 0 {
		out.Min.Z, out.Max.Z = c.Z, b.Max.Z
	}
	return out
}

// Corners returns the 8 corner points in Octant order.
func (b Box) Corners() [8]Vec3 {
	var out [8]Vec3
	for i := range out {
		p := b.Min
		if i&1 != 0 {
			p.X = b.Max.X
		}
		if i&2 != 0 {
			p.Y = b.Max.Y
		}
		if i&4 != 0 {
			p.Z = b.Max.Z
		}
		out[i] = p
	}
	return out
}
