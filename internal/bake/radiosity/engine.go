// Package radiosity solves diffuse interreflection between lightmapped
// surfaces on low resolution surface caches.
//
// Every mapping owns two exitant radiosity buffers. Setup gathers sky and
// emissive light into buffer 0; each later pass reads the other mappings'
// buffer written by the previous pass and writes its own other buffer, so a
// pass never reads what the same pass writes. Finalize sums every bounce with
// the direct lighting and applies the reflectance once.
package radiosity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-lightbake/internal/bake/cache"
	"github.com/Faultbox/midgard-lightbake/internal/bake/gather"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scheduler"
	"github.com/Faultbox/midgard-lightbake/internal/bake/texel"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// Settings control the radiosity solve.
type Settings struct {
	// NumBounces is the number of indirect bounces. Zero skips the solve and
	// leaves only direct lighting in the surface caches.
	NumBounces int
	// SurfaceCacheDownsample divides the lightmap size to get the surface
	// cache size.
	SurfaceCacheDownsample int
	// UseCache shares gathers between nearby texels through a lighting cache.
	UseCache bool
	// UseCachedHitPoints replays the first pass hit points in later passes
	// instead of tracing new rays.
	UseCachedHitPoints bool
	// CompressHitPoints keeps hit points and influences zstd compressed
	// between phases.
	CompressHitPoints bool
	Gather            gather.Settings
	Cache             cache.Settings
}

// DefaultSettings returns the stock radiosity settings.
func DefaultSettings() Settings {
	return Settings{
		NumBounces:             3,
		SurfaceCacheDownsample: 2,
		UseCache:               true,
		UseCachedHitPoints:     true,
		CompressHitPoints:      true,
		Gather:                 gather.DefaultSettings(),
		Cache:                  cache.DefaultSettings(),
	}
}

// Random stream keys of the radiosity passes.
const (
	seedSetup = iota + 1
	seedIteration
)

// surface is the radiosity state of one mapping.
type surface struct {
	mapping      *scene.TextureMapping
	sizeX, sizeY int
	texels       *texel.Map
	// reflectance holds rho/pi per texel.
	reflectance []math.Color
	// direct is the shadowed direct irradiance of static lights.
	direct []math.Color
	// buffers hold the exitant radiosity of the last two passes.
	buffers [2][]math.Color
	// accumulated sums the incident indirect irradiance of every bounce.
	accumulated []math.Color
	final       []math.Color

	// records are the gather locations. Without a lighting cache there is
	// one per mapped texel.
	records []scene.SurfacePoint
	// incident is scratch space for the per-record incident irradiance of
	// the current pass.
	incident []math.Color

	hitPoints  *HitPoints
	influence  *Influence
	packedHits []byte
	packedInfl []byte
}

// Engine runs the radiosity phases over every mapping of a scene.
type Engine struct {
	settings Settings
	scene    *scene.Scene
	builder  *texel.Builder
	gatherer *gather.Gatherer
	direct   *gather.Direct
	log      *zap.Logger

	surfaces []*surface
}

// NewEngine creates an engine for sc, which must be prepared.
func NewEngine(sc *scene.Scene, settings Settings, builder *texel.Builder, gatherer *gather.Gatherer, direct *gather.Direct, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		settings: settings,
		scene:    sc,
		builder:  builder,
		gatherer: gatherer,
		direct:   direct,
		log:      log,
	}
	for _, m := range sc.Mappings() {
		sx, sy := m.SurfaceCacheSize(settings.SurfaceCacheDownsample)
		e.surfaces = append(e.surfaces, &surface{mapping: m, sizeX: sx, sizeY: sy})
	}
	return e
}

// Run executes every radiosity phase on pool.
func (e *Engine) Run(ctx context.Context, pool *scheduler.Pool) error {
	start := time.Now()
	m := len(e.surfaces)
	err := pool.Run(ctx, scheduler.Phase{
		Name:  "radiosity setup",
		Units: m,
		Work:  func(_ *scheduler.Worker, unit int) error { return e.Setup(unit) },
	})
	if err != nil {
		return err
	}

	if passes := e.settings.NumBounces - 1; passes > 0 && m > 0 {
		barrier := scheduler.NewPassBarrier(passes, m)
		err = pool.Run(ctx, scheduler.Phase{
			Name:  "radiosity iterations",
			Units: passes * m,
			Work: func(w *scheduler.Worker, unit int) error {
				k := unit / m
				if !barrier.Wait(w, k-1) {
					return nil
				}
				if err := e.Iterate(k+1, unit%m); err != nil {
					return err
				}
				barrier.Done(k)
				return nil
			},
		})
		if err != nil {
			return err
		}
	}

	err = pool.Run(ctx, scheduler.Phase{
		Name:  "radiosity finalize",
		Units: m,
		Work:  func(_ *scheduler.Worker, unit int) error { e.Finalize(unit); return nil },
	})
	if err != nil {
		return err
	}
	e.log.Info("radiosity solved",
		zap.Int("mappings", m),
		zap.Int("bounces", e.settings.NumBounces),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Setup builds the surface cache of mapping m, computes its direct lighting
// and, when bounces are enabled, gathers the first bounce into buffer 0.
func (e *Engine) Setup(m int) error {
	s := e.surfaces[m]
	s.texels = e.builder.Build(s.mapping.Mesh, s.sizeX, s.sizeY, texel.Grid5)
	n := s.sizeX * s.sizeY
	s.reflectance = make([]math.Color, n)
	s.direct = make([]math.Color, n)
	s.buffers = [2][]math.Color{make([]math.Color, n), make([]math.Color, n)}
	s.accumulated = make([]math.Color, n)
	s.final = make([]math.Color, n)

	for i := range s.texels.Texels {
		t := &s.texels.Texels[i]
		if !t.Mapped() {
			continue
		}
		s.reflectance[i] = t.Material.Reflectance().Scale(math.InvPi)
		s.direct[i] = e.directIrradiance(t.SurfacePoint())
	}
	if e.settings.NumBounces < 1 {
		return nil
	}

	var records []math.Color
	if e.settings.UseCache {
		records = e.setupCached(m, s)
	} else {
		records = e.setupTexels(m, s)
	}
	for i := range s.texels.Texels {
		if !s.texels.Texels[i].Mapped() {
			continue
		}
		var incident math.Color
		for _, l := range s.influence.Texel(i) {
			incident = incident.Add(records[l.Record].Scale(l.Weight))
		}
		s.accumulated[i] = incident
		s.buffers[0][i] = s.direct[i].Add(incident).Mul(s.reflectance[i])
	}
	s.incident = make([]math.Color, len(s.records))

	if e.settings.CompressHitPoints {
		if err := s.pack(e.settings.UseCachedHitPoints); err != nil {
			return fmt.Errorf("mapping %s: %w", s.mapping.Mesh.Name, err)
		}
	}
	if !e.settings.UseCachedHitPoints {
		s.hitPoints = nil
	}
	e.log.Debug("radiosity setup",
		zap.String("mapping", s.mapping.Mesh.Name),
		zap.Int("texels", s.texels.NumMapped()),
		zap.Int("records", len(s.records)))
	return nil
}

// directIrradiance sums the shadowed direct lighting of every static light.
func (e *Engine) directIrradiance(p scene.SurfacePoint) math.Color {
	var sum math.Color
	for _, l := range e.scene.Lights {
		if !l.Flags().Has(scene.StaticLighting) && !l.Flags().Has(scene.StaticShadowing) {
			continue
		}
		sum = sum.Add(e.direct.Incident(p, l).Irradiance)
	}
	return sum
}

// gatherRecord runs the first bounce gather at p and returns the result
// together with the hit points landing on lightmapped surfaces.
func (e *Engine) gatherRecord(p scene.SurfacePoint, stream *gather.Stream) (gather.Result, []HitPoint) {
	var hits []HitPoint
	res := e.gatherer.Hemisphere(p, stream, func(dir math.Vec3, hit scene.Intersection) math.Color {
		if !hit.Hit {
			return e.scene.Sky.Radiance(dir)
		}
		return hit.Material().Emission()
	}, func(hit scene.Intersection, w float32) {
		if hit.Mesh == nil || hit.Mesh.Mapping == nil {
			return
		}
		dst := e.surfaces[hit.Mesh.Mapping.Index()]
		hits = append(hits, HitPoint{
			Mapping:      int32(hit.Mesh.Mapping.Index()),
			SurfaceIndex: int32(scene.SurfaceCacheIndex(hit.LightmapUV, dst.sizeX, dst.sizeY)),
			Weight:       w,
		})
	})
	return res, hits
}

// setupTexels gathers at every mapped texel.
func (e *Engine) setupTexels(m int, s *surface) []math.Color {
	s.hitPoints = NewHitPoints()
	s.influence = NewInfluence()
	var values []math.Color
	for i := range s.texels.Texels {
		t := &s.texels.Texels[i]
		if !t.Mapped() {
			s.influence.Append()
			continue
		}
		p := t.SurfacePoint()
		res, hits := e.gatherRecord(p, gather.NewStream(seedSetup, uint64(m), uint64(i)))
		s.influence.Append(Link{Record: int32(len(s.records)), Weight: 1})
		s.records = append(s.records, p)
		s.hitPoints.Append(hits)
		values = append(values, res.Lighting.Irradiance)
	}
	return values
}

// setupCached populates a lighting cache in a first pass and derives the
// texel influences from a relaxed second pass interpolation.
func (e *Engine) setupCached(m int, s *surface) []math.Color {
	s.hitPoints = NewHitPoints()
	s.influence = NewInfluence()
	c := cache.New[math.Color](s.mapping.Mesh.Bounds().ExpandBy(1), e.settings.Cache)
	add := func(i int, p scene.SurfacePoint) int {
		res, hits := e.gatherRecord(p, gather.NewStream(seedSetup, uint64(m), uint64(i)))
		s.records = append(s.records, p)
		s.hitPoints.Append(hits)
		return c.AddRecord(cache.Record[math.Color]{
			Position: p.Position,
			Normal:   p.Normal,
			Radius:   res.RecordRadius(e.settings.Gather, p.TexelRadius),
			Value:    res.Lighting.Irradiance,
		})
	}

	for i := range s.texels.Texels {
		t := &s.texels.Texels[i]
		if !t.Mapped() {
			continue
		}
		if _, ok := c.Interpolate(t.WorldPosition, t.WorldTangentZ, cache.FirstPass); !ok {
			add(i, t.SurfacePoint())
		}
	}
	for i := range s.texels.Texels {
		t := &s.texels.Texels[i]
		if !t.Mapped() {
			s.influence.Append()
			continue
		}
		_, influences, ok := c.InterpolateWithInfluences(t.WorldPosition, t.WorldTangentZ, cache.SecondPass)
		if !ok {
			s.influence.Append(Link{Record: int32(add(i, t.SurfacePoint())), Weight: 1})
			continue
		}
		links := make([]Link, len(influences))
		for j, in := range influences {
			links[j] = Link{Record: int32(in.RecordIndex), Weight: in.Weight}
		}
		s.influence.Append(links...)
	}

	values := make([]math.Color, c.Len())
	for i, r := range c.Records() {
		values[i] = r.Value
	}
	return values
}

// pack compresses the influences, and the hit points when they are kept.
func (s *surface) pack(withHits bool) error {
	var err error
	if withHits {
		if s.packedHits, err = CompressHitPoints(s.hitPoints); err != nil {
			return err
		}
	}
	if s.packedInfl, err = CompressInfluence(s.influence); err != nil {
		return err
	}
	s.hitPoints, s.influence = nil, nil
	return nil
}

func (s *surface) loadHitPoints() (*HitPoints, error) {
	if s.hitPoints != nil {
		return s.hitPoints, nil
	}
	return DecompressHitPoints(s.packedHits)
}

func (s *surface) loadInfluence() (*Influence, error) {
	if s.influence != nil {
		return s.influence, nil
	}
	return DecompressInfluence(s.packedInfl)
}

// Iterate runs bounce pass on mapping m. Pass 1 reads buffer 0 of every
// mapping and writes buffer 1 of m; the roles swap each pass.
func (e *Engine) Iterate(pass, m int) error {
	s := e.surfaces[m]
	dst := pass % 2
	src := 1 - dst

	if e.settings.UseCachedHitPoints {
		hits, err := s.loadHitPoints()
		if err != nil {
			return fmt.Errorf("mapping %s pass %d: %w", s.mapping.Mesh.Name, pass, err)
		}
		for r := range s.incident {
			var sum math.Color
			for _, hp := range hits.Record(r) {
				sum = sum.Add(e.surfaces[hp.Mapping].buffers[src][hp.SurfaceIndex].Scale(hp.Weight))
			}
			s.incident[r] = sum
		}
	} else {
		for r, p := range s.records {
			stream := gather.NewStream(seedIteration, uint64(m), uint64(r), uint64(pass))
			res := e.gatherer.Hemisphere(p, stream, func(_ math.Vec3, hit scene.Intersection) math.Color {
				return e.exitant(hit, src)
			}, nil)
			s.incident[r] = res.Lighting.Irradiance
		}
	}

	influence, err := s.loadInfluence()
	if err != nil {
		return fmt.Errorf("mapping %s pass %d: %w", s.mapping.Mesh.Name, pass, err)
	}
	out := s.buffers[dst]
	for i := range out {
		var incident math.Color
		for _, l := range influence.Texel(i) {
			incident = incident.Add(s.incident[l.Record].Scale(l.Weight))
		}
		s.accumulated[i] = s.accumulated[i].Add(incident)
		out[i] = incident.Mul(s.reflectance[i])
	}
	return nil
}

// exitant returns the radiosity of buffer b where hit landed.
func (e *Engine) exitant(hit scene.Intersection, b int) math.Color {
	if !hit.Hit || hit.BackFace || hit.Mesh == nil || hit.Mesh.Mapping == nil {
		return math.Black
	}
	s := e.surfaces[hit.Mesh.Mapping.Index()]
	return s.buffers[b][scene.SurfaceCacheIndex(hit.LightmapUV, s.sizeX, s.sizeY)]
}

// Finalize combines every bounce with the direct lighting of mapping m and
// releases the pass buffers.
func (e *Engine) Finalize(m int) {
	s := e.surfaces[m]
	for i := range s.final {
		s.final[i] = s.accumulated[i].Add(s.direct[i]).Mul(s.reflectance[i])
	}
	s.buffers = [2][]math.Color{}
	s.incident = nil
	s.hitPoints, s.packedHits = nil, nil
	s.influence, s.packedInfl = nil, nil
}

// SurfaceCacheLighting returns the finalized radiosity of mapping m at a
// lightmap UV.
func (e *Engine) SurfaceCacheLighting(m int, uv math.Vec2) math.Color {
	s := e.surfaces[m]
	if s.final == nil {
		return math.Black
	}
	return s.final[scene.SurfaceCacheIndex(uv, s.sizeX, s.sizeY)]
}

// Radiance returns the radiance leaving a gather hit towards the gatherer:
// the finalized radiosity of a lightmapped surface plus its emission.
func (e *Engine) Radiance(hit scene.Intersection) math.Color {
	if !hit.Hit || hit.BackFace {
		return math.Black
	}
	out := hit.Material().Emission()
	if hit.Mesh != nil && hit.Mesh.Mapping != nil {
		out = out.Add(e.SurfaceCacheLighting(hit.Mesh.Mapping.Index(), hit.LightmapUV))
	}
	return out
}

// SurfaceSize returns the surface cache size of mapping m.
func (e *Engine) SurfaceSize(m int) (int, int) {
	return e.surfaces[m].sizeX, e.surfaces[m].sizeY
}

// Final returns the finalized radiosity of mapping m.
func (e *Engine) Final(m int) []math.Color {
	return e.surfaces[m].final
}

// Accumulated returns the summed incident indirect irradiance of mapping m.
func (e *Engine) Accumulated(m int) []math.Color {
	return e.surfaces[m].accumulated
}
