package volumetric

import (
	"context"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-lightbake/internal/bake/gather"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scheduler"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

func box(minX, minY, minZ, maxX, maxY, maxZ float32) math.Box {
	return math.Box{
		Min: math.Vec3{X: minX, Y: minY, Z: minZ},
		Max: math.Vec3{X: maxX, Y: maxY, Z: maxZ},
	}
}

func TestTriangleIntersectsBox(t *testing.T) {
	unit := box(0, 0, 0, 1, 1, 1)
	tests := []struct {
		name       string
		v0, v1, v2 math.Vec3
		want       bool
	}{
		{"inside", math.Vec3{X: .2, Y: .2, Z: .5}, math.Vec3{X: .8, Y: .2, Z: .5}, math.Vec3{X: .5, Y: .8, Z: .5}, true},
		{"spans box", math.Vec3{X: -5, Y: -5, Z: .5}, math.Vec3{X: 5, Y: -5, Z: .5}, math.Vec3{Y: 5, Z: .5}, true},
		{"above", math.Vec3{X: -5, Y: -5, Z: 2}, math.Vec3{X: 5, Y: -5, Z: 2}, math.Vec3{Y: 5, Z: 2}, false},
		{"beside", math.Vec3{X: 2, Z: 0}, math.Vec3{X: 3, Z: 0}, math.Vec3{X: 2, Y: 1, Z: 1}, false},
		// Bounding boxes overlap but the plane of the triangle misses the
		// corner at the origin.
		{"diagonal miss", math.Vec3{X: 3.5}, math.Vec3{Y: 3.5}, math.Vec3{Z: 3.5}, false},
		{"diagonal hit", math.Vec3{X: 1.5}, math.Vec3{Y: 1.5}, math.Vec3{Z: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TriangleIntersectsBox(tt.v0, tt.v1, tt.v2, unit))
		})
	}
}

func testSettings() Settings {
	s := DefaultSettings()
	s.BrickSize = 2
	s.MaxRefinementLevels = 2
	s.DetailCellSize = 10
	return s
}

// floorScene is an unmapped 80×80 floor at z=0 inside an importance volume
// of 80×80×40.
func floorScene(t *testing.T) *scene.Scene {
	t.Helper()
	sc := &scene.Scene{
		ImportanceVolumes: []math.Box{box(-40, -40, -20, 40, 40, 20)},
		Sky:               &scene.SkyLight{Color: math.White, Brightness: 1},
	}
	sc.AddMesh(scene.NewQuad("floor", math.Vec3{}, math.Vec3{X: 40}, math.Vec3{Y: 40}, nil))
	return sc
}

func newTestBuilder(t *testing.T, sc *scene.Scene, s Settings) *Builder {
	t.Helper()
	require.NoError(t, sc.Prepare())
	g := &gather.Gatherer{Tracer: sc.Aggregate(), Settings: gather.DefaultSettings()}
	radiance := func(dir math.Vec3, hit scene.Intersection) math.Color {
		if !hit.Hit {
			return sc.Sky.Radiance(dir)
		}
		return math.Gray(0.5)
	}
	return NewBuilder(sc, s, g, radiance, nil)
}

func TestShouldRefineVoxel(t *testing.T) {
	sc := floorScene(t)
	sc.AddLight(&scene.PointLight{
		Pos:               math.Vec3{X: 30, Y: 30, Z: 15},
		Color:             math.White,
		Brightness:        1,
		AttenuationRadius: 4,
		LightFlags:        scene.StaticLighting,
	})
	b := newTestBuilder(t, sc, testSettings())

	assert.True(t, b.ShouldRefineVoxel(box(0, 0, -5, 10, 10, 5)), "cell cut by the floor")
	assert.True(t, b.ShouldRefineVoxel(box(0, 0, 1, 10, 10, 11)), "floor within the expanded cell")
	assert.False(t, b.ShouldRefineVoxel(box(0, 0, 10, 10, 10, 20)), "empty space")
	assert.False(t, b.ShouldRefineVoxel(box(0, 0, 50, 10, 10, 60)), "outside the importance volume")
	assert.True(t, b.ShouldRefineVoxel(box(25, 25, 10, 35, 35, 20)), "light smaller than the voxel")
}

func TestLightmappedSurfacesBelowDensityDoNotRefine(t *testing.T) {
	sc := floorScene(t)
	scene.NewTextureMapping(sc.Meshes[0], 2, 2, false)
	b := newTestBuilder(t, sc, testSettings())
	// Two texels over 80 units is far too coarse for a 10 unit voxel.
	assert.False(t, b.ShouldRefineVoxel(box(0, 0, -5, 10, 10, 5)))

	sc = floorScene(t)
	scene.NewTextureMapping(sc.Meshes[0], 64, 64, false)
	b = newTestBuilder(t, sc, testSettings())
	assert.True(t, b.ShouldRefineVoxel(box(0, 0, -5, 10, 10, 5)))
}

func TestCellsBelowLandscapeDoNotRefine(t *testing.T) {
	sc := floorScene(t)
	heights := make([]float32, 9)
	for i := range heights {
		heights[i] = 30
	}
	sc.Landscapes = []*scene.Landscape{{
		Origin:   math.Vec3{X: -40, Y: -40},
		CellSize: 40,
		CellsX:   2,
		CellsY:   2,
		Heights:  heights,
	}}
	b := newTestBuilder(t, sc, testSettings())
	assert.False(t, b.ShouldRefineVoxel(box(0, 0, -5, 10, 10, 5)), "floor buried under the landscape")

	s := testSettings()
	s.CullBricksBelowLandscape = false
	b = newTestBuilder(t, sc, s)
	assert.True(t, b.ShouldRefineVoxel(box(0, 0, -5, 10, 10, 5)))
}

func TestQuantizeSH(t *testing.T) {
	dir := math.Vec3{X: 0.48, Y: -0.6, Z: 0.64}
	var sh math.SH3RGB
	sh = sh.AddWeighted(math.SHBasis3(dir), math.Color{R: 2, G: 1, B: 0})

	ambient, q := QuantizeSH(sh)
	assert.Equal(t, sh.Ambient(), ambient)
	for k := range q[2] {
		assert.Equal(t, uint8(128), q[2][k], "black channel")
	}

	back := q.Dequantize(ambient)
	for c := 0; c < 3; c++ {
		want, got := sh.Channel(c), back.Channel(c)
		for k := range want {
			assert.InDelta(t, want[k], got[k], 0.01, "channel %d coefficient %d", c, k)
		}
	}
}

func flatBrick(depth int, ambient math.Color, inside bool) *Brick {
	n := 27
	b := &Brick{
		Depth:   depth,
		Ambient: make([]math.Color, n),
		Inside:  bitset.New(uint(n)),
	}
	for i := range b.Ambient {
		b.Ambient[i] = ambient
		if inside {
			b.Inside.Set(uint(i))
		}
	}
	return b
}

func TestShouldCullBrick(t *testing.T) {
	assert.True(t, ShouldCullBrick(flatBrick(1, math.Gray(1), true), 0.01), "flat interior leaf")
	assert.True(t, ShouldCullBrick(flatBrick(1, math.Gray(1), false), 0.01), "flat leaf")
	assert.False(t, ShouldCullBrick(flatBrick(0, math.Gray(1), true), 0.01), "roots always stay")

	parent := flatBrick(1, math.Gray(1), true)
	parent.HasChildren = true
	assert.False(t, ShouldCullBrick(parent, 0.01))

	varied := flatBrick(2, math.Gray(1), false)
	varied.Ambient[0] = math.Gray(3)
	assert.Greater(t, varied.AmbientError(), float32(0.01))
	assert.False(t, ShouldCullBrick(varied, 0.01))
}

func TestBuild(t *testing.T) {
	sc := floorScene(t)
	b := newTestBuilder(t, sc, testSettings())
	res, err := b.Build(context.Background(), scheduler.NewPool(1, nil))
	require.NoError(t, err)

	assert.Equal(t, float32(40), res.RootSize)
	assert.Equal(t, [3]int{4, 4, 2}, res.IndirectionSize)

	var roots int
	for _, brick := range res.Bricks {
		assert.Equal(t, 27, brick.NumVoxels())
		assert.Len(t, brick.SkyBentNormal, 27)
		assert.Equal(t, uint(27-8), brick.Border.Count(), "border voxels")
		if brick.Depth == 0 {
			roots++
			assert.True(t, brick.HasChildren, "every root touches the floor")
		}
	}
	assert.Equal(t, 4, roots)
	assert.Equal(t, 4*9, len(res.Bricks)+res.Culled)
}

func TestBuildIsIndependentOfThreadCount(t *testing.T) {
	sc := floorScene(t)
	sc.AddLight(&scene.DirectionalLight{
		Direction:  math.Vec3{X: 0.3, Z: -1}.Normalize(),
		Color:      math.White,
		Brightness: 2,
		LightFlags: scene.CastShadows | scene.StaticLighting | scene.StaticShadowing,
	})
	b := newTestBuilder(t, sc, testSettings())

	single, err := b.Build(context.Background(), scheduler.NewPool(1, nil))
	require.NoError(t, err)
	multi, err := b.Build(context.Background(), scheduler.NewPool(4, nil))
	require.NoError(t, err)

	require.Equal(t, len(single.Bricks), len(multi.Bricks))
	assert.Equal(t, single.Culled, multi.Culled)
	for i := range single.Bricks {
		assert.Equal(t, single.Bricks[i], multi.Bricks[i], "brick %d", i)
	}
}
