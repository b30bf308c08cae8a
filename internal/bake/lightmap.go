package bake

import (
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-lightbake/internal/bake/cache"
	"github.com/Faultbox/midgard-lightbake/internal/bake/diag"
	"github.com/Faultbox/midgard-lightbake/internal/bake/gather"
	"github.com/Faultbox/midgard-lightbake/internal/bake/output"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scheduler"
	"github.com/Faultbox/midgard-lightbake/internal/bake/shadow"
	"github.com/Faultbox/midgard-lightbake/internal/bake/texel"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// seedFinalGather keys the random streams of lightmap final gathers.
const seedFinalGather uint64 = 16

// block is a rectangle of texels [x0, x1) × [y0, y1).
type block struct {
	x0, y0, x1, y1 int
}

// blocks splits a sizeX × sizeY grid into size × size blocks in row order.
func blocks(sizeX, sizeY, size int) []block {
	size = max(size, 1)
	var out []block
	for y := 0; y < sizeY; y += size {
		for x := 0; x < sizeX; x += size {
			out = append(out, block{x, y, min(x+size, sizeX), min(y+size, sizeY)})
		}
	}
	return out
}

func (b block) each(sizeX int, fn func(i int)) {
	for y := b.y0; y < b.y1; y++ {
		for x := b.x0; x < b.x1; x++ {
			fn(y*sizeX + x)
		}
	}
}

// bakeMapping produces the lightmap and shadow maps of mapping m.
func (s *System) bakeMapping(w *scheduler.Worker, m int) (*output.MappingResult, error) {
	mapping := s.scene.Mappings()[m]
	mesh := mapping.Mesh
	sizeX, sizeY := mapping.CachedSize()
	settings := s.settings.Lightmap

	sampling := texel.CenterSample
	if settings.ConservativeRasterization {
		sampling = texel.Grid7
	}
	texels := s.texels.Build(mesh, sizeX, sizeY, sampling)

	res := output.NewMappingResult(mapping)
	res.UV = texel.CheckLightmapUVs(mesh, sizeX, sizeY)
	res.UV.Report(s.reporter, mesh)

	direct := s.directLighting(mesh, texels, res, mapping.Padded)
	indirect := make([]gather.Lighting, len(texels.Texels))
	if s.gathersIndirect() {
		var err error
		if indirect, err = s.indirectLighting(w, m, texels); err != nil {
			return nil, err
		}
	}

	lm := output.NewLightmap(sizeX, sizeY)
	for i := range texels.Texels {
		t := &texels.Texels[i]
		if !t.Mapped() {
			lm.Samples[i] = output.Sample{Irradiance: settings.UnmappedTexelColor, AOMaterialMask: 1}
			continue
		}
		ao := indirect[i].Occlusion
		total := direct[i].Scale(1 - ao*settings.DirectOcclusionFraction).
			Add(indirect[i].Scale(1 - ao*settings.IndirectOcclusionFraction))
		sample := output.Sample{
			Irradiance:     total.Irradiance,
			Directional:    total.SH,
			AOMaterialMask: 1,
			Mapped:         true,
		}
		if t.Material != nil && t.Material.AOMask {
			sample.AOMaterialMask = 1 - ao
		}
		if settings.UseErrorColoring {
			if c, ok := res.UV.ErrorColor(i); ok {
				sample.Irradiance = c
			}
		}
		lm.Samples[i] = sample
	}
	if mapping.Padded {
		lm = lm.Pad(settings.ShowLightmapBorders)
	}
	res.Lightmap = lm

	s.log.Debug("mapping baked",
		zap.String("mesh", mesh.Name),
		zap.Int("texels", texels.NumMapped()),
		zap.Int("shadow_maps", len(res.ShadowMaps)),
		zap.Int("distance_fields", len(res.DistanceFields)))
	return res, nil
}

// directLighting accumulates the static lights into per-texel lighting and
// builds the shadow maps of stationary lights into res.
func (s *System) directLighting(mesh *scene.Mesh, texels *texel.Map, res *output.MappingResult, padded bool) []gather.Lighting {
	settings := s.settings.Lightmap
	out := make([]gather.Lighting, len(texels.Texels))
	for _, l := range s.scene.Lights {
		flags := l.Flags()
		switch {
		case flags.Has(scene.StaticLighting):
			for i := range texels.Texels {
				t := &texels.Texels[i]
				if t.Mapped() {
					out[i] = out[i].Add(s.direct.Incident(t.SurfacePoint(), l))
				}
			}
		case flags.Has(scene.StaticShadowing) && flags.Has(scene.DistanceFieldShadows):
			df := s.distanceField(mesh, texels, l)
			if df == nil {
				s.discarded(res, l)
				continue
			}
			if padded {
				df = df.Pad(settings.ShowLightmapBorders)
			}
			res.DistanceFields[l.ID()] = df
		case flags.Has(scene.StaticShadowing):
			vis := s.shadows.BuildVisibility(texels, l)
			if vis == nil {
				s.discarded(res, l)
				continue
			}
			if padded {
				vis = vis.Pad(settings.ShowLightmapBorders)
			}
			res.ShadowMaps[l.ID()] = vis
		}
	}
	return out
}

func (s *System) distanceField(mesh *scene.Mesh, texels *texel.Map, l scene.Light) *shadow.DistanceFieldMap {
	if dl, ok := l.(*scene.DirectionalLight); ok && s.settings.Lightmap.UseLightSpaceSDF {
		return s.shadows.BuildLightSpace(mesh, texels, dl)
	}
	return s.shadows.BuildTextureSpace(mesh, texels, l)
}

// discarded reports a shadow map dropped by the discard policy: the light
// is fully occluded or reaches fewer than MinUnoccludedFraction of the texels.
func (s *System) discarded(res *output.MappingResult, l scene.Light) {
	s.reporter.Report(diag.Alert{
		Severity:   diag.Warning,
		Kind:       diag.LightDiscarded,
		ObjectGUID: res.Mapping,
		ObjectName: res.MeshName,
		Message:    "shadow map of " + l.Name() + " dropped: too few texels see the light",
	})
}

// gathersIndirect reports whether the final gather has anything to collect:
// bounced light, ambient occlusion or a sky.
func (s *System) gathersIndirect() bool {
	sky := s.scene.Sky
	return s.settings.Radiosity.NumBounces > 0 ||
		s.settings.Radiosity.Gather.MaxOcclusionDistance > 0 ||
		(sky != nil && sky.Brightness > 0)
}

// gatherRadiance shades lightmap final gather rays. Without bounces only the
// sky is collected and surfaces hit stay black.
func (s *System) gatherRadiance(dir math.Vec3, hit scene.Intersection) math.Color {
	if s.settings.Radiosity.NumBounces > 0 {
		return s.finalRadiance(dir, hit)
	}
	if hit.Hit {
		return math.Black
	}
	return s.scene.Sky.Radiance(dir)
}

// indirectLighting final gathers the solved radiosity at every mapped texel.
// With the lighting cache enabled, texel blocks populate worker-local caches
// that are merged in block order before a second pass interpolates them.
// Two-sided texels always gather both sides directly.
func (s *System) indirectLighting(w *scheduler.Worker, m int, texels *texel.Map) ([]gather.Lighting, error) {
	out := make([]gather.Lighting, len(texels.Texels))
	useCache := s.settings.Radiosity.UseCache
	var merged *cache.Cache[gather.Lighting]

	if useCache {
		bounds := s.scene.Mappings()[m].Mesh.Bounds().ExpandBy(1)
		cacheBlocks := blocks(texels.SizeX, texels.SizeY, s.settings.Lightmap.CacheTaskSize)
		locals := make([]*cache.Cache[gather.Lighting], len(cacheBlocks))
		var g scheduler.Group
		for bi, b := range cacheBlocks {
			w.Go(&g, func(*scheduler.Worker) error {
				c := cache.New[gather.Lighting](bounds, s.settings.Radiosity.Cache)
				b.each(texels.SizeX, func(i int) { s.populate(c, m, texels, i) })
				locals[bi] = c
				return nil
			})
		}
		g.Wait(w)
		if w.Aborted() {
			return nil, scheduler.ErrAborted
		}
		merged = cache.New[gather.Lighting](bounds, s.settings.Radiosity.Cache)
		for _, c := range locals {
			merged.MergeFrom(c)
		}
	}

	var g scheduler.Group
	for _, b := range blocks(texels.SizeX, texels.SizeY, s.settings.Lightmap.InterpolateTaskSize) {
		w.Go(&g, func(*scheduler.Worker) error {
			b.each(texels.SizeX, func(i int) {
				t := &texels.Texels[i]
				if !t.Mapped() {
					return
				}
				if merged != nil && !t.Material.IsTwoSided() {
					if v, ok := merged.Interpolate(t.WorldPosition, t.WorldTangentZ, cache.SecondPass); ok {
						out[i] = v
						return
					}
				}
				out[i] = s.gatherTexel(m, i, t)
			})
			return nil
		})
	}
	g.Wait(w)
	if w.Aborted() {
		return nil, scheduler.ErrAborted
	}
	return out, nil
}

// populate adds a record for texel i to c unless c already covers it.
func (s *System) populate(c *cache.Cache[gather.Lighting], m int, texels *texel.Map, i int) {
	t := &texels.Texels[i]
	if !t.Mapped() || t.Material.IsTwoSided() {
		return
	}
	if _, ok := c.Interpolate(t.WorldPosition, t.WorldTangentZ, cache.FirstPass); ok {
		return
	}
	p := t.SurfacePoint()
	res := s.gatherer.Hemisphere(p, gather.NewStream(seedFinalGather, uint64(m), uint64(i)), s.gatherRadiance, nil)
	c.AddRecord(cache.Record[gather.Lighting]{
		Position: p.Position,
		Normal:   p.Normal,
		Radius:   res.RecordRadius(s.settings.Radiosity.Gather, p.TexelRadius),
		Value:    res.Lighting,
	})
}

// gatherTexel final gathers at texel i, averaging both sides of two-sided
// materials.
func (s *System) gatherTexel(m, i int, t *texel.TexelToVertex) gather.Lighting {
	p := t.SurfacePoint()
	front := s.gatherer.Hemisphere(p, gather.NewStream(seedFinalGather, uint64(m), uint64(i)), s.gatherRadiance, nil)
	if !t.Material.IsTwoSided() {
		return front.Lighting
	}
	back := s.gatherer.Hemisphere(p.Flipped(), gather.NewStream(seedFinalGather, uint64(m), uint64(i), 1), s.gatherRadiance, nil)
	return front.Lighting.Add(back.Lighting).Scale(0.5)
}
