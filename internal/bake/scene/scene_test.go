package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

func floorScene(t *testing.T) *Scene {
	t.Helper()
	s := &Scene{}
	floor := NewQuad("floor", math.Vec3{}, math.Vec3{X: 10}, math.Vec3{Y: 10}, nil)
	NewTextureMapping(floor, 8, 8, false)
	s.AddMesh(floor)
	require.NoError(t, s.Prepare())
	return s
}

func TestIntersectLightRayHitsQuad(t *testing.T) {
	s := floorScene(t)
	hit := s.Aggregate().IntersectLightRay(LightRay{
		Start: math.Vec3{X: 2, Y: -3, Z: 5},
		End:   math.Vec3{X: 2, Y: -3, Z: -5},
		Flags: FindClosest,
	})
	require.True(t, hit.Hit)
	assert.InDelta(t, 5, hit.Distance, 1e-4)
	assert.InDelta(t, 0, hit.Position.Z, 1e-5)
	assert.False(t, hit.BackFace)
	assert.InDelta(t, 0.6, hit.LightmapUV.X, 1e-5)
	assert.InDelta(t, 0.35, hit.LightmapUV.Y, 1e-5)
	assert.Equal(t, math.Vec3{Z: 1}, hit.GeometricNormal)
}

func TestIntersectLightRayBackFace(t *testing.T) {
	s := floorScene(t)
	hit := s.Aggregate().IntersectLightRay(LightRay{
		Start: math.Vec3{Z: -1},
		End:   math.Vec3{Z: 1},
		Flags: FindClosest,
	})
	require.True(t, hit.Hit)
	assert.True(t, hit.BackFace)
}

func TestIntersectLightRayMisses(t *testing.T) {
	s := floorScene(t)
	cases := []LightRay{
		{Start: math.Vec3{X: 20, Z: 1}, End: math.Vec3{X: 20, Z: -1}},
		{Start: math.Vec3{Z: 5}, End: math.Vec3{Z: 1}},
		{Start: math.Vec3{Z: 1}, End: math.Vec3{X: 5, Z: 1}},
	}
	for _, ray := range cases {
		assert.False(t, s.Aggregate().IntersectLightRay(ray).Hit, "ray %+v", ray)
	}
}

func TestIntersectLightRayClosestAmongMany(t *testing.T) {
	s := &Scene{}
	for i := 0; i < 20; i++ {
		z := float32(i)
		s.AddMesh(NewQuad("layer", math.Vec3{Z: z}, math.Vec3{X: 1}, math.Vec3{Y: 1}, nil))
	}
	require.NoError(t, s.Prepare())
	hit := s.Aggregate().IntersectLightRay(LightRay{
		Start: math.Vec3{Z: 30.5},
		End:   math.Vec3{Z: -1},
		Flags: FindClosest,
	})
	require.True(t, hit.Hit)
	assert.InDelta(t, 19, hit.Position.Z, 1e-4)
}

func TestShadowCastersOnly(t *testing.T) {
	s := &Scene{}
	q := NewQuad("blocker", math.Vec3{}, math.Vec3{X: 1}, math.Vec3{Y: 1}, nil)
	q.CastShadow = false
	s.AddMesh(q)
	require.NoError(t, s.Prepare())
	ray := LightRay{Start: math.Vec3{Z: 1}, End: math.Vec3{Z: -1}}
	assert.True(t, s.Aggregate().IntersectLightRay(ray).Hit)
	ray.Flags = ShadowCastersOnly
	assert.False(t, s.Aggregate().IntersectLightRay(ray).Hit)
}

func TestPrepareRejectsBadIndices(t *testing.T) {
	s := &Scene{}
	s.AddMesh(NewMesh("broken", []Vertex{{}, {}, {}}, []uint32{0, 1, 5}, nil))
	assert.ErrorIs(t, s.Prepare(), ErrInvalidScene)
}

func TestSurfaceCacheSize(t *testing.T) {
	q := NewQuad("q", math.Vec3{}, math.Vec3{X: 1}, math.Vec3{Y: 1}, nil)
	tm := NewTextureMapping(q, 34, 10, true)
	x, y := tm.CachedSize()
	assert.Equal(t, 32, x)
	assert.Equal(t, 8, y)
	x, y = tm.SurfaceCacheSize(2)
	assert.Equal(t, 16, x)
	assert.Equal(t, 6, y)
}

func TestLandscapeHeight(t *testing.T) {
	l := &Landscape{
		CellSize: 10,
		CellsX:   2,
		CellsY:   1,
		Heights:  []float32{0, 10, 20, 0, 10, 20},
	}
	assert.InDelta(t, 5, l.HeightAt(5, 5), 1e-5)
	assert.InDelta(t, 15, l.HeightAt(15, 2), 1e-5)
	assert.Len(t, l.Triangles(), 4)
	m := l.BuildMesh(nil)
	assert.Equal(t, 4, m.NumTriangles())
	for i := 0; i < m.NumTriangles(); i++ {
		assert.Greater(t, m.TriangleNormal(i).Z, float32(0))
	}
}

func TestPointLightFalloff(t *testing.T) {
	l := &PointLight{Pos: math.Vec3{Z: 10}, Color: math.White, Brightness: 1, AttenuationRadius: 20, FalloffExponent: 1}
	dir, dist, radiance := l.Incident(math.Vec3{})
	assert.Equal(t, math.Vec3{Z: 1}, dir)
	assert.InDelta(t, 10, dist, 1e-5)
	assert.InDelta(t, 0.75, radiance.R, 1e-5)
	_, _, far := l.Incident(math.Vec3{Z: -20})
	assert.Equal(t, math.Black, far)
}
