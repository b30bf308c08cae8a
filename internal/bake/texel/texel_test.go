package texel

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-lightbake/internal/bake/diag"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

const frameEpsilon = 1e-4

func assertOrthonormalFrame(t *testing.T, tv *TexelToVertex, msg string) {
	t.Helper()
	x, y, z := tv.WorldTangentX, tv.WorldTangentY, tv.WorldTangentZ
	assert.InDelta(t, 1, x.Length(), frameEpsilon, "%s: |X|", msg)
	assert.InDelta(t, 1, y.Length(), frameEpsilon, "%s: |Y|", msg)
	assert.InDelta(t, 1, z.Length(), frameEpsilon, "%s: |Z|", msg)
	assert.InDelta(t, 0, x.Dot(y), frameEpsilon, "%s: X.Y", msg)
	assert.InDelta(t, 0, y.Dot(z), frameEpsilon, "%s: Y.Z", msg)
	assert.InDelta(t, 0, x.Dot(z), frameEpsilon, "%s: X.Z", msg)
	assert.Greater(t, x.Cross(y).Dot(z), float32(0.99), "%s: handedness", msg)
}

// skewedQuad is a tilted quad whose vertex tangents are neither unit length
// nor orthogonal, and whose tangent Y is mirrored when mirrored is set.
func skewedQuad(mirrored bool) *scene.Mesh {
	q := scene.NewQuad("skewed", math.Vec3{Z: 3},
		math.Vec3{X: 4, Z: 1}, math.Vec3{Y: 3, Z: -0.5}, nil)
	for i := range q.Vertices {
		v := &q.Vertices[i]
		f := float32(i + 1)
		v.TangentX = v.TangentX.Scale(1.5 * f).Add(v.TangentZ.Scale(0.3))
		v.TangentZ = v.TangentZ.Add(math.Vec3{X: 0.05 * f, Y: -0.02 * f})
		v.TangentY = v.TangentY.Scale(0.7)
		if mirrored {
			v.TangentY = v.TangentY.Neg()
		}
	}
	return q
}

func TestBuildProducesOrthonormalRightHandedFrames(t *testing.T) {
	cases := []struct {
		name     string
		mirrored bool
		sampling Sampling
		maxW     bool
	}{
		{"grid7 max weight", false, Grid7, true},
		{"grid5 average", false, Grid5, false},
		{"center mirrored", true, CenterSample, true},
		{"grid7 mirrored average", true, Grid7, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &Builder{Settings: DefaultSettings()}
			b.Settings.UseMaxWeight = tc.maxW
			m := b.Build(skewedQuad(tc.mirrored), 9, 7, tc.sampling)
			require.Equal(t, 63, m.NumMapped())
			for i := range m.Texels {
				tv := &m.Texels[i]
				if tv.TotalSampleWeight > 0 {
					assertOrthonormalFrame(t, tv, tc.name)
				}
			}
		})
	}
}

func TestMirroredTangentKeepsBitangentSide(t *testing.T) {
	b := &Builder{Settings: DefaultSettings()}
	m := b.Build(skewedQuad(true), 4, 4, Grid7)
	tv := m.At(1, 1)
	require.True(t, tv.Mapped())
	// The input tangent Y points along -Y, so must the rebuilt one.
	assert.Less(t, tv.WorldTangentY.Y, float32(0))
}

func TestMaxWeightKeepsExactCenterPosition(t *testing.T) {
	floor := scene.NewQuad("floor", math.Vec3{}, math.Vec3{X: 10}, math.Vec3{Y: 10}, nil)
	b := &Builder{Settings: DefaultSettings()}
	m := b.Build(floor, 8, 8, Grid7)
	assert.Equal(t, 64, m.NumMapped())
	// Texel (1,0) has its center off the quad diagonal, so a single
	// triangle supplies the heaviest sample.
	tv := m.At(1, 0)
	assert.InDelta(t, -6.25, tv.WorldPosition.X, 1e-4)
	assert.InDelta(t, -8.75, tv.WorldPosition.Y, 1e-4)
	assert.InDelta(t, 0.1875, tv.LightmapUV.X, 1e-5)
	assert.InDelta(t, 1, tv.WorldTangentZ.Z, 1e-6)
	// Corner distance is half the texel diagonal.
	assert.InDelta(t, math32.Sqrt(2)*1.25, tv.TexelRadius, 1e-3)
}

func TestSubSampleWeights(t *testing.T) {
	s7 := subSamples(Grid7)
	assert.Len(t, s7, 25)
	s5 := subSamples(Grid5)
	assert.Len(t, s5, 9)
	var peak subSample
	for _, s := range s5 {
		if s.weight > peak.weight {
			peak = s
		}
	}
	assert.Equal(t, math.Vec2{X: -0.5, Y: -0.5}, peak.offset)
	assert.InDelta(t, 1, peak.weight, 1e-6)
	assert.Len(t, subSamples(CenterSample), 1)
}

func TestCornerBackfillMapsSeamTexels(t *testing.T) {
	// Lower-left half of the UV square only.
	verts := []scene.Vertex{
		{Position: math.Vec3{}, TangentX: math.Vec3{X: 1}, TangentY: math.Vec3{Y: 1}, TangentZ: math.Vec3{Z: 1}, LightmapUV: math.Vec2{}},
		{Position: math.Vec3{X: 4}, TangentX: math.Vec3{X: 1}, TangentY: math.Vec3{Y: 1}, TangentZ: math.Vec3{Z: 1}, LightmapUV: math.Vec2{X: 1}},
		{Position: math.Vec3{Y: 4}, TangentX: math.Vec3{X: 1}, TangentY: math.Vec3{Y: 1}, TangentZ: math.Vec3{Z: 1}, LightmapUV: math.Vec2{Y: 1}},
	}
	tri := scene.NewMesh("half", verts, []uint32{0, 1, 2}, nil)
	b := &Builder{Settings: DefaultSettings()}
	m := b.Build(tri, 4, 4, CenterSample)

	seam := m.At(1, 2)
	require.True(t, seam.Mapped(), "seam texel should be backfilled from its corner")
	assert.Equal(t, float32(1), seam.TotalSampleWeight)
	assertOrthonormalFrame(t, seam, "seam")
	assert.False(t, m.At(3, 3).Mapped())
}

func TestDegenerateTrianglesAreSkipped(t *testing.T) {
	verts := []scene.Vertex{
		{Position: math.Vec3{}, LightmapUV: math.Vec2{}},
		{Position: math.Vec3{X: 1}, LightmapUV: math.Vec2{X: 1}},
		{Position: math.Vec3{X: 2}, LightmapUV: math.Vec2{Y: 1}},
	}
	m := (&Builder{Settings: DefaultSettings()}).Build(scene.NewMesh("line", verts, []uint32{0, 1, 2}, nil), 4, 4, Grid7)
	assert.Equal(t, 0, m.NumMapped())
}

func TestCheckLightmapUVs(t *testing.T) {
	a := scene.NewQuad("a", math.Vec3{}, math.Vec3{X: 1}, math.Vec3{Y: 1}, nil)
	b := scene.NewQuad("b", math.Vec3{Z: 5}, math.Vec3{X: 1}, math.Vec3{Y: 1}, nil)
	merged := scene.NewMesh("overlap", append(a.Vertices, b.Vertices...),
		[]uint32{0, 1, 2, 0, 2, 3, 4, 5, 6, 4, 6, 7}, nil)

	r := CheckLightmapUVs(merged, 4, 4)
	assert.Equal(t, 16, r.WrittenTexels)
	assert.Equal(t, 16, r.OverlappingTexels)
	assert.Equal(t, 0, r.WrappingTexels)
	assert.InDelta(t, 100, r.OverlapPercent(), 1e-4)
	c, ok := r.ErrorColor(5)
	assert.True(t, ok)
	assert.Equal(t, OverlappingUVColor, c)

	collector := diag.NewCollector(nil)
	r.Report(collector, merged)
	alerts := collector.Alerts()
	require.Len(t, alerts, 2)
	assert.Equal(t, diag.ObjectOverlappedUVs, alerts[0].Kind)
	assert.Equal(t, merged.GUID, alerts[0].ObjectGUID)
	assert.Contains(t, alerts[1].Message, "100.0%")
}

func TestCheckLightmapUVsWrapping(t *testing.T) {
	q := scene.NewQuad("wrap", math.Vec3{}, math.Vec3{X: 1}, math.Vec3{Y: 1}, nil)
	for i := range q.Vertices {
		q.Vertices[i].LightmapUV = q.Vertices[i].LightmapUV.Scale(2)
	}
	r := CheckLightmapUVs(q, 4, 4)
	assert.Equal(t, 16, r.WrappingTexels)
	c, ok := r.ErrorColor(0)
	assert.True(t, ok)
	assert.Equal(t, WrappingUVColor, c)

	collector := diag.NewCollector(nil)
	r.Report(collector, q)
	require.NotEmpty(t, collector.Alerts())
	assert.Equal(t, diag.ObjectWrappedUVs, collector.Alerts()[0].Kind)
}

func TestPadNearest(t *testing.T) {
	src := []int{1, 2, 3, 4}
	out := PadNearest(src, 2, 2, nil)
	want := []int{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}
	assert.Equal(t, want, out)

	border := 9
	out = PadNearest(src, 2, 2, &border)
	assert.Equal(t, 9, out[0])
	assert.Equal(t, 1, out[5])
}

func TestPadExtrapolate(t *testing.T) {
	src := []float32{
		0.2, 0.4, 0.6,
		0.2, 0.4, 0.6,
	}
	out := PadExtrapolate(src, 3, 2)
	pw := 5
	assert.InDelta(t, 0.0, out[1*pw+0], 1e-6)
	assert.InDelta(t, 0.8, out[1*pw+4], 1e-6)
	assert.InDelta(t, 0.4, out[0*pw+2], 1e-6)
	assert.InDelta(t, 0.2, out[0*pw+0], 1e-6)
}
