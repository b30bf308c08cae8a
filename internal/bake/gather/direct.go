package gather

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// Direct evaluates direct lighting and shadow rays.
type Direct struct {
	Tracer  scene.Tracer
	Offsets Offsets
	// MaxDistance caps shadow rays towards directional lights.
	MaxDistance float32
}

// Visibility traces a shadow ray from p towards light. It returns whether the
// light is visible and, when it is not, the distance from p to the occluder
// along the ray.
func (d *Direct) Visibility(p scene.SurfacePoint, light scene.Light) (visible bool, occluderDistance float32) {
	dir, dist, _ := light.Incident(p.Position)
	return d.VisibilityAlong(p, dir, dist, light.Flags().Has(scene.CastShadows))
}

// VisibilityAlong traces a shadow ray from p along dir for up to dist.
func (d *Direct) VisibilityAlong(p scene.SurfacePoint, dir math.Vec3, dist float32, castShadows bool) (bool, float32) {
	if !castShadows {
		return true, 0
	}
	if dir.Dot(p.TriangleNormal) <= 0 {
		if !p.Material.IsTwoSided() {
			// Facing away: self-shadowed at the surface.
			return false, 0
		}
		p = p.Flipped()
	}
	start := d.Offsets.Start(p, dir)
	length := math32.Min(dist, d.MaxDistance) - d.Offsets.Ray
	if length <= 0 {
		return true, 0
	}
	hit := d.Tracer.IntersectLightRay(scene.NewLightRay(start, dir, length, scene.ShadowCastersOnly|scene.FindClosest))
	if !hit.Hit {
		return true, 0
	}
	return false, hit.Distance + d.Offsets.Ray
}

// Incident returns the shadowed direct lighting light contributes at p as a
// lighting sample.
func (d *Direct) Incident(p scene.SurfacePoint, light scene.Light) Lighting {
	dir, dist, radiance := light.Incident(p.Position)
	if radiance.IsNearlyBlack() {
		return Lighting{}
	}
	cos := dir.Dot(p.Normal)
	if cos < 0 && p.Material.IsTwoSided() {
		p = p.Flipped()
		cos = -cos
	}
	if cos <= 0 {
		return Lighting{}
	}
	if ok, _ := d.VisibilityAlong(p, dir, dist, light.Flags().Has(scene.CastShadows)); !ok {
		return Lighting{}
	}
	return Lighting{}.AddSample(dir, radiance.Scale(cos), radiance)
}

// Unshadowed returns the direct irradiance light delivers at p ignoring
// occluders.
func Unshadowed(p scene.SurfacePoint, light scene.Light) math.Color {
	dir, _, radiance := light.Incident(p.Position)
	return radiance.Scale(math32.Max(dir.Dot(p.Normal), 0))
}
