// Package bake runs a complete static lighting bake: the radiosity solve on
// surface caches, the final lighting and shadows of every lightmap and the
// volumetric lightmap.
package bake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Faultbox/midgard-lightbake/internal/bake/diag"
	"github.com/Faultbox/midgard-lightbake/internal/bake/gather"
	"github.com/Faultbox/midgard-lightbake/internal/bake/output"
	"github.com/Faultbox/midgard-lightbake/internal/bake/radiosity"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scheduler"
	"github.com/Faultbox/midgard-lightbake/internal/bake/shadow"
	"github.com/Faultbox/midgard-lightbake/internal/bake/texel"
	"github.com/Faultbox/midgard-lightbake/internal/bake/volumetric"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// ErrNoScene is returned by NewSystem without a scene.
var ErrNoScene = errors.New("no scene to bake")

// Result is the output of a bake.
type Result struct {
	// Mappings are in scene mapping order.
	Mappings   []*output.MappingResult
	Volumetric *volumetric.Result
	Elapsed    time.Duration
}

// System bakes one scene.
type System struct {
	scene    *scene.Scene
	settings Settings
	log      *zap.Logger
	reporter diag.Reporter
	pool     *scheduler.Pool
	printer  *message.Printer

	texels    *texel.Builder
	gatherer  *gather.Gatherer
	direct    *gather.Direct
	shadows   *shadow.Builder
	radiosity *radiosity.Engine
}

// NewSystem prepares sc for baking and wires every stage.
func NewSystem(sc *scene.Scene, settings Settings, opts Options) (*System, error) {
	if sc == nil {
		return nil, ErrNoScene
	}
	if err := sc.Prepare(); err != nil {
		return nil, fmt.Errorf("preparing scene: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = diag.NewLogReporter(log)
	}

	agg := sc.Aggregate()
	reach := max(sc.Bounds().Size().Length(), 1)
	s := &System{
		scene:    sc,
		settings: settings,
		log:      log,
		reporter: reporter,
		pool:     scheduler.NewPool(opts.Threads, log),
		printer:  message.NewPrinter(language.English),
		texels:   &texel.Builder{Settings: settings.Texel, Tracer: agg},
		gatherer: &gather.Gatherer{
			Tracer:      agg,
			Settings:    settings.Radiosity.Gather,
			Offsets:     settings.Offsets,
			MaxDistance: reach,
		},
		direct: &gather.Direct{Tracer: agg, Offsets: settings.Offsets, MaxDistance: reach},
	}
	s.shadows = &shadow.Builder{Settings: settings.Shadows, Direct: s.direct, SceneBounds: sc.Bounds()}
	s.radiosity = radiosity.NewEngine(sc, settings.Radiosity, s.texels, s.gatherer, s.direct, log)
	return s, nil
}

// Threads returns the worker count of the bake.
func (s *System) Threads() int {
	return s.pool.Threads()
}

// Run executes every phase. The first worker fault aborts the bake and is
// returned.
func (s *System) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	mappings := s.scene.Mappings()
	s.log.Info(s.printer.Sprintf("baking %d meshes, %d mappings, %d lights",
		len(s.scene.Meshes), len(mappings), len(s.scene.Lights)),
		zap.Int("threads", s.pool.Threads()))

	if err := s.radiosity.Run(ctx, s.pool); err != nil {
		return nil, fmt.Errorf("radiosity: %w", err)
	}

	res := &Result{Mappings: make([]*output.MappingResult, len(mappings))}
	phaseStart := time.Now()
	err := s.pool.Run(ctx, scheduler.Phase{
		Name:  "lightmaps",
		Units: len(mappings),
		Work: func(w *scheduler.Worker, unit int) error {
			r, err := s.bakeMapping(w, unit)
			if err != nil {
				return err
			}
			res.Mappings[unit] = r
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("lightmaps: %w", err)
	}
	var texels int
	for _, r := range res.Mappings {
		texels += len(r.Lightmap.Samples)
	}
	s.log.Info(s.printer.Sprintf("lightmaps built: %d texels", texels),
		zap.String("phase", "lightmaps"),
		zap.Int("mappings", len(mappings)),
		zap.Duration("elapsed", time.Since(phaseStart)))

	if s.settings.BuildVolumetric {
		vb := volumetric.NewBuilder(s.scene, s.settings.Volumetric, s.gatherer, s.finalRadiance, s.log)
		if res.Volumetric, err = vb.Build(ctx, s.pool); err != nil {
			return nil, fmt.Errorf("volumetric lightmap: %w", err)
		}
	}

	res.Elapsed = time.Since(start)
	s.log.Info("bake complete", zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// finalRadiance shades final gather rays: the sky on a miss, otherwise the
// solved radiosity of the surface hit.
func (s *System) finalRadiance(dir math.Vec3, hit scene.Intersection) math.Color {
	if !hit.Hit {
		return s.scene.Sky.Radiance(dir)
	}
	return s.radiosity.Radiance(hit)
}
