package scene

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// TraceFlags modify how a light ray is traced.
type TraceFlags uint8

const (
	// FindClosest returns the nearest hit instead of any hit.
	FindClosest TraceFlags = 1 << iota
	// ShadowCastersOnly ignores meshes that do not cast shadows.
	ShadowCastersOnly
)

// LightRay is a segment from Start to End.
type LightRay struct {
	Start math.Vec3
	End   math.Vec3
	Flags TraceFlags
}

// NewLightRay builds a ray from start along dir for length units.
func NewLightRay(start, dir math.Vec3, length float32, flags TraceFlags) LightRay {
	return LightRay{Start: start, End: start.Add(dir.Scale(length)), Flags: flags}
}

// Intersection describes where a light ray hit the scene.
type Intersection struct {
	Hit bool
	// Position is the hit point and Distance its distance from the ray start.
	Position math.Vec3
	Distance float32
	// Normal is the interpolated shading normal, facing the ray for two-sided
	// materials.
	Normal          math.Vec3
	GeometricNormal math.Vec3
	Mesh            *Mesh
	Triangle        int
	LightmapUV      math.Vec2
	TextureUV       math.Vec2
	// BackFace is set when a one-sided triangle was hit from behind.
	BackFace bool
}

// Material returns the material of the hit triangle.
func (i Intersection) Material() *Material {
	if i.Mesh == nil {
		return nil
	}
	return i.Mesh.MaterialOf(i.Triangle)
}

// Tracer answers ray queries against the scene geometry.
type Tracer interface {
	IntersectLightRay(ray LightRay) Intersection
}

// slabRay holds the precomputed reciprocal direction for box tests.
type slabRay struct {
	origin math.Vec3
	dir    math.Vec3
	inv    math.Vec3
}

func newSlabRay(origin, dir math.Vec3) slabRay {
	inv := func(d float32) float32 {
		if d == 0 {
			return math32.Inf(1)
		}
		return 1 / d
	}
	return slabRay{origin: origin, dir: dir, inv: math.Vec3{X: inv(dir.X), Y: inv(dir.Y), Z: inv(dir.Z)}}
}

// intersectBox tests the ray against an AABB using the slab method and
// returns the entry distance. Only hits with t in [0, tMax] count.
func (r slabRay) intersectBox(b math.Box, tMax float32) (float32, bool) {
	tmin := float32(0)
	tmax := tMax
	for axis := 0; axis < 3; axis++ {
		o := r.origin.Component(axis)
		inv := r.inv.Component(axis)
		lo := b.Min.Component(axis)
		hi := b.Max.Component(axis)
		if math32.IsInf(inv, 0) {
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}
		t1 := (lo - o) * inv
		t2 := (hi - o) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math32.Max(tmin, t1)
		tmax = math32.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

// intersectTriangle is the Möller-Trumbore test. It returns the ray
// parameter and barycentrics of the hit.
func intersectTriangle(origin, dir, v0, e1, e2 math.Vec3) (t, u, v float32, ok bool) {
	const eps = 1e-9
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math32.Abs(det) < eps {
		return 0, 0, 0, false
	}
	invDet := 1 / det
	s := origin.Sub(v0)
	u = s.Dot(p) * invDet
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	q := s.Cross(e1)
	v = dir.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = e2.Dot(q) * invDet
	return t, u, v, true
}
