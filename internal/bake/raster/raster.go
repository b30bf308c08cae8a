// Package raster implements a scanline triangle rasterizer that is generic
// over the value interpolated across the triangle.
package raster

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// Interpolant is a value that can be linearly interpolated across a
// triangle.
type Interpolant[T any] interface {
	Add(T) T
	Sub(T) T
	Scale(float32) T
}

// Policy receives the rasterized pixels. Bounds are inclusive pixel
// coordinates; pixels outside them are clipped.
type Policy[T any] interface {
	Bounds() (minX, minY, maxX, maxY int)
	Process(x, y int, v T, backFacing bool)
}

// IsBackFacing reports whether the 2D triangle is wound clockwise.
func IsBackFacing(p0, p1, p2 math.Vec2) bool {
	return p1.Sub(p0).Cross(p2.Sub(p0)) < 0
}

// DrawTriangle rasterizes the triangle p0,p1,p2 and calls the policy for
// every integer pixel whose coordinate lies inside it, with the interpolant
// linearly interpolated to that pixel. The triangle is split at its middle
// vertex into a top and a bottom trapezoid which are walked row by row.
func DrawTriangle[T Interpolant[T]](policy Policy[T], i0, i1, i2 T, p0, p1, p2 math.Vec2, backFacing bool) {
	is := [3]T{i0, i1, i2}
	ps := [3]math.Vec2{p0, p1, p2}

	// Top vertex first.
	if ps[1].Y < ps[0].Y && ps[1].Y <= ps[2].Y {
		ps[0], ps[1] = ps[1], ps[0]
		is[0], is[1] = is[1], is[0]
	} else if ps[2].Y < ps[0].Y && ps[2].Y <= ps[1].Y {
		ps[0], ps[2] = ps[2], ps[0]
		is[0], is[2] = is[2], is[0]
	}
	// Bottom vertex last.
	if ps[1].Y > ps[2].Y {
		ps[1], ps[2] = ps[2], ps[1]
		is[1], is[2] = is[2], is[1]
	}

	topHeight := ps[1].Y - ps[0].Y
	fullHeight := ps[2].Y - ps[0].Y
	bottomHeight := ps[2].Y - ps[1].Y
	if fullHeight <= 0 {
		return
	}

	var zero T
	topMinDX, topMinDI := float32(0), zero
	if topHeight > 0 {
		topMinDX = (ps[1].X - ps[0].X) / topHeight
		topMinDI = is[1].Sub(is[0]).Scale(1 / topHeight)
	}
	topMaxDX := (ps[2].X - ps[0].X) / fullHeight
	topMaxDI := is[2].Sub(is[0]).Scale(1 / fullHeight)

	bottomMinDX, bottomMinDI := float32(0), zero
	if bottomHeight > 0 {
		bottomMinDX = (ps[2].X - ps[1].X) / bottomHeight
		bottomMinDI = is[2].Sub(is[1]).Scale(1 / bottomHeight)
	}

	drawTrapezoid(policy,
		is[0], topMaxDI, is[0], topMinDI,
		ps[0].X, topMaxDX, ps[0].X, topMinDX,
		ps[0].Y, ps[1].Y, backFacing)

	drawTrapezoid(policy,
		is[0].Add(topMaxDI.Scale(topHeight)), topMaxDI, is[1], bottomMinDI,
		ps[0].X+topMaxDX*topHeight, topMaxDX, ps[1].X, bottomMinDX,
		ps[1].Y, ps[2].Y, backFacing)
}

func drawTrapezoid[T Interpolant[T]](policy Policy[T],
	topMinI, deltaMinI, topMaxI, deltaMaxI T,
	topMinX, deltaMinX, topMaxX, deltaMaxX float32,
	minY, maxY float32, backFacing bool) {

	bMinX, bMinY, bMaxX, bMaxY := policy.Bounds()
	intMinY := math.ClampInt(int(math32.Ceil(minY)), bMinY, bMaxY+1)
	intMaxY := math.ClampInt(int(math32.Ceil(maxY)), bMinY, bMaxY+1)

	for y := intMinY; y < intMaxY; y++ {
		dy := float32(y) - minY
		minX := topMinX + deltaMinX*dy
		maxX := topMaxX + deltaMaxX*dy
		minI := topMinI.Add(deltaMinI.Scale(dy))
		maxI := topMaxI.Add(deltaMaxI.Scale(dy))
		if minX > maxX {
			minX, maxX = maxX, minX
			minI, maxI = maxI, minI
		}
		if maxX <= minX {
			continue
		}

		intMinX := math.ClampInt(int(math32.Ceil(minX)), bMinX, bMaxX+1)
		intMaxX := math.ClampInt(int(math32.Ceil(maxX)), bMinX, bMaxX+1)
		deltaI := maxI.Sub(minI).Scale(1 / (maxX - minX))
		for x := intMinX; x < intMaxX; x++ {
			policy.Process(x, y, minI.Add(deltaI.Scale(float32(x)-minX)), backFacing)
		}
	}
}
