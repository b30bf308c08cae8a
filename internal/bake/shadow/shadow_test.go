package shadow

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-lightbake/internal/bake/gather"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/internal/bake/texel"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

const planeTexels = 20

type fixture struct {
	plane   *scene.Mesh
	texels  *texel.Map
	light   *scene.DirectionalLight
	builder *Builder
}

// halfShadowed is a 20×20 plane at z=0 lit from straight above, with a slab
// hovering over the x<0 half (or all of it when covered is set).
func halfShadowed(t *testing.T, covered bool) fixture {
	t.Helper()
	plane := scene.NewQuad("plane", math.Vec3{}, math.Vec3{X: 10}, math.Vec3{Y: 10}, nil)
	scene.NewTextureMapping(plane, planeTexels, planeTexels, false)
	slab := math.Box{Min: math.Vec3{X: -12, Y: -12, Z: 3}, Max: math.Vec3{X: 0, Y: 12, Z: 5}}
	if covered {
		slab.Max.X = 12
	}
	sc := &scene.Scene{}
	sc.AddMesh(plane)
	sc.AddMesh(scene.NewBox("slab", slab, false, nil)...)
	light := &scene.DirectionalLight{
		Direction:   math.Vec3{Z: -1},
		Color:       math.White,
		Brightness:  1,
		SourceAngle: 1,
		LightFlags:  scene.CastShadows | scene.StaticShadowing | scene.DistanceFieldShadows,
	}
	sc.AddLight(light)
	require.NoError(t, sc.Prepare())

	agg := sc.Aggregate()
	settings := DefaultSettings()
	settings.MaxTransitionDistance = 8
	builder := &Builder{
		Settings:    settings,
		Direct:      &gather.Direct{Tracer: agg, Offsets: gather.DefaultOffsets(), MaxDistance: 1000},
		SceneBounds: sc.Bounds(),
	}
	tb := &texel.Builder{Settings: texel.DefaultSettings(), Tracer: agg}
	return fixture{
		plane:   plane,
		texels:  tb.Build(plane, planeTexels, planeTexels, texel.CenterSample),
		light:   light,
		builder: builder,
	}
}

func TestLightBasis(t *testing.T) {
	for _, dir := range []math.Vec3{{Z: -1}, {X: 1, Y: 2, Z: -3}, {Y: 1}} {
		b := NewLightBasis(dir)
		z := b.ToLight(dir.Normalize())
		assert.InDelta(t, 1, z.Z, 1e-5)
		assert.InDelta(t, 0, z.X, 1e-5)
		assert.InDelta(t, 0, z.Y, 1e-5)

		p := math.Vec3{X: 3, Y: -7, Z: 11}
		back := b.ToWorld(b.ToLight(p))
		assert.InDelta(t, 0, back.Distance(p), 1e-4)
	}

	box := NewLightBasis(math.Vec3{Z: -1}).TransformBox(math.Box{Min: math.Vec3{Z: 1}, Max: math.Vec3{X: 1, Y: 1, Z: 2}})
	assert.InDelta(t, -2, box.Min.Z, 1e-5)
	assert.InDelta(t, -1, box.Max.Z, 1e-5)
}

func TestUpsampleFactor(t *testing.T) {
	f := halfShadowed(t, false)
	tests := []struct {
		mtd, highRes float32
		want         int
	}{
		{mtd: 50, highRes: 50, want: 3},
		{mtd: 8, highRes: 50, want: 3},
		{mtd: 8, highRes: 100, want: 7},
		{mtd: 1, highRes: 50, want: 13},
	}
	for _, tt := range tests {
		b := *f.builder
		b.Settings.MaxTransitionDistance = tt.mtd
		b.Settings.HighResTexelsPerTransition = tt.highRes
		got := b.UpsampleFactor(f.plane, planeTexels, planeTexels)
		assert.Equal(t, tt.want, got, "mtd=%v highRes=%v", tt.mtd, tt.highRes)
		assert.Equal(t, 1, got%2)
	}
}

func TestVisibilityMap(t *testing.T) {
	f := halfShadowed(t, false)
	vis := f.builder.BuildVisibility(f.texels, f.light)
	require.NotNil(t, vis)
	for i, tx := range f.texels.Texels {
		require.True(t, tx.Mapped())
		want := float32(0)
		if tx.WorldPosition.X > 0 {
			want = 1
		}
		assert.Equal(t, want, vis.Visibility[i], "texel at x=%v", tx.WorldPosition.X)
	}
}

func TestOccludedLightIsDropped(t *testing.T) {
	f := halfShadowed(t, true)
	assert.Nil(t, f.builder.BuildVisibility(f.texels, f.light))
	assert.Nil(t, f.builder.BuildTextureSpace(f.plane, f.texels, f.light))
	assert.Nil(t, f.builder.BuildLightSpace(f.plane, f.texels, f.light))

	f = halfShadowed(t, false)
	f.builder.Settings.MinUnoccludedFraction = 0.6
	assert.Nil(t, f.builder.BuildTextureSpace(f.plane, f.texels, f.light), "half the texels see the light")
	assert.Nil(t, f.builder.BuildLightSpace(f.plane, f.texels, f.light), "half the texels see the light")

	f.builder.Settings.MinUnoccludedFraction = 0.4
	assert.NotNil(t, f.builder.BuildLightSpace(f.plane, f.texels, f.light))
}

func TestDistanceFieldSignsAgree(t *testing.T) {
	f := halfShadowed(t, false)
	ts := f.builder.BuildTextureSpace(f.plane, f.texels, f.light)
	ls := f.builder.BuildLightSpace(f.plane, f.texels, f.light)
	require.NotNil(t, ts)
	require.NotNil(t, ls)

	texelSize := float32(20) / planeTexels
	for i, tx := range f.texels.Texels {
		x := tx.WorldPosition.X
		a, b := ts.Samples[i], ls.Samples[i]
		require.True(t, a.Mapped)
		require.True(t, b.Mapped)
		assert.GreaterOrEqual(t, a.Distance, float32(0))
		assert.LessOrEqual(t, a.Distance, float32(1))
		assert.GreaterOrEqual(t, b.PenumbraSize, float32(0.01))
		if math32.Abs(x) <= 1.5*texelSize {
			continue
		}
		lit := x > 0
		assert.Equal(t, lit, a.Lit(), "texture space at x=%v: %v", x, a.Distance)
		assert.Equal(t, lit, b.Lit(), "light space at x=%v: %v", x, b.Distance)
	}
}

func TestDistanceFieldFarFromTransition(t *testing.T) {
	f := halfShadowed(t, false)
	ts := f.builder.BuildTextureSpace(f.plane, f.texels, f.light)
	ls := f.builder.BuildLightSpace(f.plane, f.texels, f.light)
	require.NotNil(t, ts)
	require.NotNil(t, ls)
	for i, tx := range f.texels.Texels {
		switch x := tx.WorldPosition.X; {
		case x < -9:
			assert.Equal(t, float32(0), ts.Samples[i].Distance, "deep shadow at x=%v", x)
			assert.Equal(t, float32(0), ls.Samples[i].Distance, "deep shadow at x=%v", x)
		case x > 9:
			assert.Equal(t, float32(1), ts.Samples[i].Distance, "fully lit at x=%v", x)
			// The search window stops short of MaxTransitionDistance, so
			// nothing beyond it shrinks the penumbra.
			assert.Equal(t, Sample{Mapped: true, Distance: 1, PenumbraSize: 1}, ls.Samples[i], "fully lit at x=%v", x)
		}
	}
}

func TestPadDistanceField(t *testing.T) {
	m := newDistanceFieldMap(nil, 2, 2)
	m.Samples = []Sample{
		{Distance: 0.2, PenumbraSize: 0.5, Mapped: true},
		{Distance: 0.9, PenumbraSize: 0.5, Mapped: true},
		{Distance: 0.2, PenumbraSize: 0.5, Mapped: true},
		{Distance: 0.9, PenumbraSize: 0.5, Mapped: false},
	}
	p := m.Pad(false)
	require.Equal(t, 4, p.SizeX)
	require.Equal(t, 4, p.SizeY)
	assert.Equal(t, float32(0), p.At(0, 1).Distance, "2*0.2-0.9 clamps to 0")
	assert.Equal(t, float32(1), p.At(3, 1).Distance, "2*0.9-0.2 clamps to 1")
	assert.Equal(t, float32(0.2), p.At(1, 1).Distance)
	assert.False(t, p.At(3, 3).Mapped)

	shown := m.Pad(true)
	assert.Equal(t, float32(0.5), shown.At(0, 0).Distance)
	assert.Equal(t, float32(0.9), shown.At(2, 1).Distance)
}
