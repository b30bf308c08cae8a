package radiosity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-lightbake/internal/bake/gather"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scheduler"
	"github.com/Faultbox/midgard-lightbake/internal/bake/texel"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

func newEngine(sc *scene.Scene, settings Settings) *Engine {
	agg := sc.Aggregate()
	reach := sc.Bounds().Size().Length() * 2
	builder := &texel.Builder{Settings: texel.DefaultSettings(), Tracer: agg}
	g := &gather.Gatherer{Tracer: agg, Settings: settings.Gather, Offsets: gather.DefaultOffsets(), MaxDistance: reach}
	d := &gather.Direct{Tracer: agg, Offsets: gather.DefaultOffsets(), MaxDistance: reach}
	return NewEngine(sc, settings, builder, g, d, nil)
}

func solve(t *testing.T, sc *scene.Scene, settings Settings, threads int) *Engine {
	t.Helper()
	e := newEngine(sc, settings)
	require.NoError(t, e.Run(context.Background(), scheduler.NewPool(threads, nil)))
	return e
}

func litQuad(t *testing.T) *scene.Scene {
	t.Helper()
	quad := scene.NewQuad("quad", math.Vec3{}, math.Vec3{X: 2}, math.Vec3{Y: 2}, nil)
	scene.NewTextureMapping(quad, 4, 4, false)
	sc := &scene.Scene{}
	sc.AddMesh(quad)
	sc.AddLight(&scene.DirectionalLight{
		Direction:  math.Vec3{Z: -1},
		Color:      math.White,
		Brightness: 3,
		LightFlags: scene.CastShadows | scene.StaticLighting,
	})
	require.NoError(t, sc.Prepare())
	return sc
}

// room is a closed box whose ceiling glows; every face is lightmapped.
func room(t *testing.T) *scene.Scene {
	t.Helper()
	glow := &scene.Material{Name: "glow", Diffuse: math.Gray(0.5), Emissive: math.White}
	box := math.Box{Min: math.Vec3{X: -1, Y: -1, Z: -1}, Max: math.Vec3{X: 1, Y: 1, Z: 1}}
	faces := scene.NewBox("room", box, true, func(face int) *scene.Material {
		if face == 4 {
			return glow
		}
		return scene.DefaultMaterial
	})
	for _, f := range faces {
		scene.NewTextureMapping(f, 8, 8, false)
	}
	sc := &scene.Scene{}
	sc.AddMesh(faces...)
	require.NoError(t, sc.Prepare())
	return sc
}

const floorMapping, watchedTexel = 5, 14

func TestDirectOnlyQuad(t *testing.T) {
	for _, bounces := range []int{0, 3} {
		settings := DefaultSettings()
		settings.NumBounces = bounces
		e := solve(t, litQuad(t), settings, 1)

		sx, sy := e.SurfaceSize(0)
		require.Equal(t, 6, sx)
		require.Equal(t, 6, sy)
		want := float32(3 * 0.5 / math.Pi)
		for i, c := range e.Final(0) {
			assert.InDelta(t, want, c.R, 1e-5, "bounces=%d texel=%d", bounces, i)
			assert.InDelta(t, want, c.B, 1e-5, "bounces=%d texel=%d", bounces, i)
		}
		for _, a := range e.Accumulated(0) {
			assert.True(t, a.IsNearlyBlack(), "no indirect light without other surfaces")
		}
	}
}

func TestIncidentGrowsWithBounces(t *testing.T) {
	variants := map[string]func(*Settings){
		"texels with hit points": func(s *Settings) { s.UseCache = false },
		"cache with regather":    func(s *Settings) { s.UseCachedHitPoints = false },
	}
	for name, tweak := range variants {
		t.Run(name, func(t *testing.T) {
			sc := room(t)
			var values []float32
			for bounces := 1; bounces <= 6; bounces++ {
				settings := DefaultSettings()
				settings.NumBounces = bounces
				tweak(&settings)
				e := solve(t, sc, settings, 2)
				values = append(values, e.Accumulated(floorMapping)[watchedTexel].Luminance())
			}
			require.Greater(t, values[0], float32(0))
			for i := 1; i < len(values); i++ {
				assert.GreaterOrEqual(t, values[i], values[i-1], "bounce %d", i+1)
			}
			last := values[len(values)-1]
			assert.Less(t, last-values[len(values)-2], 0.05*last)
		})
	}
}

func TestResultIndependentOfThreads(t *testing.T) {
	sc := room(t)
	one := solve(t, sc, DefaultSettings(), 1)
	many := solve(t, sc, DefaultSettings(), 6)
	for m := range sc.Mappings() {
		assert.Equal(t, one.Final(m), many.Final(m), "mapping %d", m)
	}
}

func TestCompressionDoesNotChangeResult(t *testing.T) {
	sc := room(t)
	packed := DefaultSettings()
	plain := DefaultSettings()
	plain.CompressHitPoints = false
	a := solve(t, sc, packed, 3)
	b := solve(t, sc, plain, 3)
	for m := range sc.Mappings() {
		assert.Equal(t, a.Final(m), b.Final(m), "mapping %d", m)
	}
}

func TestRadianceAddsEmission(t *testing.T) {
	sc := room(t)
	e := solve(t, sc, DefaultSettings(), 1)

	down := sc.Aggregate().IntersectLightRay(scene.LightRay{
		Start: math.Vec3{},
		End:   math.Vec3{Z: 5},
		Flags: scene.FindClosest,
	})
	require.True(t, down.Hit)
	ceiling := e.Radiance(down)
	assert.Greater(t, ceiling.G, float32(1), "emission plus reflected light")

	floor := e.Radiance(sc.Aggregate().IntersectLightRay(scene.LightRay{End: math.Vec3{Z: -5}, Flags: scene.FindClosest}))
	assert.Greater(t, floor.G, float32(0))
	assert.Less(t, floor.G, float32(1))

	assert.Equal(t, math.Black, e.Radiance(scene.Intersection{}))
}
