package gather

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// Offsets move ray origins off the surface they start on.
type Offsets struct {
	// Ray is the distance skipped along the ray direction.
	Ray float32
	// Normal is the largest push along the triangle normal. The push is
	// NormalRadiusScale times the texel radius, capped by Normal.
	Normal            float32
	NormalRadiusScale float32
}

// DefaultOffsets returns the stock visibility ray offsets.
func DefaultOffsets() Offsets {
	return Offsets{Ray: 0.1, Normal: 3, NormalRadiusScale: 0.5}
}

// Start returns the origin of a ray leaving p along dir.
func (o Offsets) Start(p scene.SurfacePoint, dir math.Vec3) math.Vec3 {
	push := math32.Min(p.TexelRadius*o.NormalRadiusScale, o.Normal)
	return p.Position.Add(p.TriangleNormal.Scale(push)).Add(dir.Scale(o.Ray))
}

// Settings control final gathering.
type Settings struct {
	NumHemisphereSamples int
	// RecordRadiusScale, MinRecordRadius and MaxRecordRadius bound the
	// validity radius of lighting cache records built from a gather.
	RecordRadiusScale float32
	MinRecordRadius   float32
	MaxRecordRadius   float32
	// MaxOcclusionDistance is the ambient occlusion range. Zero disables
	// occlusion.
	MaxOcclusionDistance float32
}

// DefaultSettings returns the stock gather settings.
func DefaultSettings() Settings {
	return Settings{
		NumHemisphereSamples: 16,
		RecordRadiusScale:    0.8,
		MinRecordRadius:      1,
		MaxRecordRadius:      1024,
	}
}

// RadianceFunc returns the radiance arriving along dir from hit. For misses
// hit.Hit is false and the function should return the environment.
type RadianceFunc func(dir math.Vec3, hit scene.Intersection) math.Color

// HitFunc observes every front-face hit of a gather together with the weight
// the hit's exitant radiance has in the irradiance estimate.
type HitFunc func(hit scene.Intersection, weight float32)

// Result summarizes one hemisphere gather.
type Result struct {
	Lighting Lighting
	// HarmonicMeanDistance is the harmonic mean of the hit distances, or the
	// gather range when nothing was hit.
	HarmonicMeanDistance float32
	NumSamples           int
	NumHits              int
	NumBackfaceHits      int
}

// RecordRadius returns the cache record radius for a gather at a point with
// the given texel radius.
func (r Result) RecordRadius(s Settings, texelRadius float32) float32 {
	lo := math32.Max(texelRadius, s.MinRecordRadius)
	hi := math32.Max(s.MaxRecordRadius, lo)
	return math.Clamp(r.HarmonicMeanDistance*s.RecordRadiusScale, lo, hi)
}

// Gatherer traces final gather rays.
type Gatherer struct {
	Tracer   scene.Tracer
	Settings Settings
	Offsets  Offsets
	// MaxDistance is the ray length, normally the scene diameter.
	MaxDistance float32
}

// Hemisphere estimates the irradiance arriving at p with stratified,
// cosine-weighted rays.
func (g *Gatherer) Hemisphere(p scene.SurfacePoint, s *Stream, radiance RadianceFunc, onHit HitFunc) Result {
	rows, cols := Strata(g.Settings.NumHemisphereSamples)
	dirs := CosineHemisphere(rows, cols, s)
	n := float32(len(dirs))
	weight := math.Pi / n

	var (
		res       Result
		invDist   float32
		occluded  int
		aoEnabled = g.Settings.MaxOcclusionDistance > 0
	)
	for _, local := range dirs {
		res.NumSamples++
		dir := p.ToWorld(local).Normalize()
		if dir.Dot(p.TriangleNormal) <= 0 {
			// Below the geometric surface: the shading frame is bent.
			continue
		}
		hit := g.Tracer.IntersectLightRay(scene.NewLightRay(g.Offsets.Start(p, dir), dir, g.MaxDistance, scene.FindClosest))
		var l math.Color
		if hit.Hit {
			res.NumHits++
			invDist += 1 / math32.Max(hit.Distance, math.KindaSmall)
			if aoEnabled && hit.Distance < g.Settings.MaxOcclusionDistance {
				occluded++
			}
			if hit.BackFace {
				res.NumBackfaceHits++
			} else {
				l = radiance(dir, hit)
				if onHit != nil {
					onHit(hit, weight)
				}
			}
		} else {
			l = radiance(dir, hit)
		}
		cos := math32.Max(local.Z, 0.01)
		res.Lighting = res.Lighting.AddSample(dir, l.Scale(weight), l.Scale(weight/cos))
	}
	if res.NumHits > 0 {
		res.HarmonicMeanDistance = float32(res.NumHits) / invDist
	} else {
		res.HarmonicMeanDistance = g.MaxDistance
	}
	if aoEnabled {
		res.Lighting.Occlusion = float32(occluded) / n
	}
	return res
}

// SphereResult summarizes a full-sphere gather around a point in space.
type SphereResult struct {
	// SH is the incident radiance projected on the L2 basis.
	SH math.SH3RGB
	// BackfaceFraction is the share of rays that hit the back of a surface.
	BackfaceFraction float32
	// ClosestHit is the distance to the nearest geometry seen, or the range.
	ClosestHit float32
	// SkyBentNormal is the average unoccluded direction scaled by the
	// unoccluded fraction.
	SkyBentNormal math.Vec3
}

// Sphere gathers incident radiance from every direction at pos, tracing rays
// up to maxDistance.
func (g *Gatherer) Sphere(pos math.Vec3, maxDistance float32, s *Stream, radiance RadianceFunc) SphereResult {
	rows, cols := Strata(g.Settings.NumHemisphereSamples * 2)
	dirs := UniformSphere(rows, cols, s)
	n := float32(len(dirs))
	weight := 4 * math.Pi / n

	res := SphereResult{ClosestHit: maxDistance}
	var backfaces int
	var unoccluded math.Vec3
	for _, dir := range dirs {
		hit := g.Tracer.IntersectLightRay(scene.NewLightRay(pos, dir, maxDistance, scene.FindClosest))
		var l math.Color
		switch {
		case !hit.Hit:
			unoccluded = unoccluded.Add(dir)
			l = radiance(dir, hit)
		case hit.BackFace:
			backfaces++
		default:
			l = radiance(dir, hit)
		}
		if hit.Hit {
			res.ClosestHit = math32.Min(res.ClosestHit, hit.Distance)
		}
		res.SH = res.SH.AddWeighted(math.SHBasis3(dir), l.Scale(weight))
	}
	res.BackfaceFraction = float32(backfaces) / n
	res.SkyBentNormal = unoccluded.Scale(1 / n)
	return res
}
