package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

type scalar float32

func (s scalar) Add(o scalar) scalar    { return s + o }
func (s scalar) Sub(o scalar) scalar    { return s - o }
func (s scalar) Scale(f float32) scalar { return s * scalar(f) }

type gridPolicy struct {
	w, h   int
	values map[[2]int]scalar
	back   []bool
}

func newGridPolicy(w, h int) *gridPolicy {
	return &gridPolicy{w: w, h: h, values: map[[2]int]scalar{}}
}

func (g *gridPolicy) Bounds() (int, int, int, int) { return 0, 0, g.w - 1, g.h - 1 }

func (g *gridPolicy) Process(x, y int, v scalar, backFacing bool) {
	g.values[[2]int{x, y}] = v
	g.back = append(g.back, backFacing)
}

func TestDrawTriangleCoversHalfSquare(t *testing.T) {
	g := newGridPolicy(8, 8)
	p0, p1, p2 := math.Vec2{X: 0, Y: 0}, math.Vec2{X: 4, Y: 0}, math.Vec2{X: 0, Y: 4}
	DrawTriangle[scalar](g, 0, 1, 2, p0, p1, p2, false)

	// Pixels with x+y < 4 inside the first quadrant are covered. The top edge
	// row y=0 is included, the hypotenuse excluded.
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			_, ok := g.values[[2]int{x, y}]
			want := x+y < 4
			assert.Equal(t, want, ok, "pixel (%d,%d)", x, y)
		}
	}
}

func TestDrawTriangleInterpolates(t *testing.T) {
	g := newGridPolicy(16, 16)
	// Interpolant equals the x coordinate.
	p0, p1, p2 := math.Vec2{X: 0, Y: 0}, math.Vec2{X: 10, Y: 0}, math.Vec2{X: 10, Y: 10}
	DrawTriangle[scalar](g, 0, 10, 10, p0, p1, p2, false)
	assert.NotEmpty(t, g.values)
	for px, v := range g.values {
		assert.InDelta(t, float32(px[0]), float32(v), 1e-4, "pixel %v", px)
	}
}

func TestDrawTriangleClipsToBounds(t *testing.T) {
	g := newGridPolicy(4, 4)
	DrawTriangle[scalar](g, 0, 0, 0, math.Vec2{X: -10, Y: -10}, math.Vec2{X: 20, Y: -10}, math.Vec2{X: -10, Y: 20}, false)
	assert.Len(t, g.values, 16)
	for px := range g.values {
		assert.True(t, px[0] >= 0 && px[0] < 4 && px[1] >= 0 && px[1] < 4)
	}
}

func TestDrawTriangleDegenerate(t *testing.T) {
	g := newGridPolicy(8, 8)
	DrawTriangle[scalar](g, 0, 0, 0, math.Vec2{X: 0, Y: 2}, math.Vec2{X: 5, Y: 2}, math.Vec2{X: 7, Y: 2}, false)
	assert.Empty(t, g.values)
}

func TestIsBackFacing(t *testing.T) {
	a, b, c := math.Vec2{X: 0, Y: 0}, math.Vec2{X: 1, Y: 0}, math.Vec2{X: 0, Y: 1}
	assert.False(t, IsBackFacing(a, b, c))
	assert.True(t, IsBackFacing(a, c, b))

	g := newGridPolicy(4, 4)
	DrawTriangle[scalar](g, 0, 0, 0, a.Scale(4), c.Scale(4), b.Scale(4), true)
	for _, back := range g.back {
		assert.True(t, back)
	}
}
