package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Faultbox/midgard-lightbake/internal/bake"
	"github.com/Faultbox/midgard-lightbake/internal/bake/diag"
	"github.com/Faultbox/midgard-lightbake/internal/bake/output"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/internal/bake/texel"
	"github.com/Faultbox/midgard-lightbake/internal/config"
	"github.com/Faultbox/midgard-lightbake/internal/logger"
	"github.com/Faultbox/midgard-lightbake/internal/scenefile"
)

var errUVProblems = errors.New("lightmap UV problems found")

var printer = message.NewPrinter(language.English)

// setup loads the configuration, starts logging and reads the scene named
// by the single command argument.
func setup(args []string) (*config.Config, *scenefile.File, *scene.Scene, error) {
	if len(args) != 1 {
		return nil, nil, nil, errors.New("expected exactly one scene file")
	}
	cfg, err := config.Load(filepath.Dir(args[0]))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config: %w", err)
	}

	fileCfg := logger.FileConfig{}
	if cfg.Logging.LogFile != "" {
		fileCfg = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	logger.InitWithFileConfig(cfg.Logging.Level, fileCfg, true)
	logger.Sugar.Debugf("config: %+v", cfg)

	f, sc, err := scenefile.Load(args[0])
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, f, sc, nil
}

func cmdBake(args []string, volumeOnly bool) error {
	cfg, f, sc, err := setup(args)
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Log

	if volumeOnly {
		cfg.General.BuildVolumetric = true
	}
	collector := diag.NewCollector(diag.NewLogReporter(log))
	sys, err := bake.NewSystem(sc, cfg.BakeOptions(), bake.Options{
		Threads:  cfg.General.Threads,
		Logger:   log,
		Reporter: collector,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	res, err := sys.Run(ctx)
	if err != nil {
		log.Error("bake failed", zap.String("scene", f.Name), zap.Error(err))
		return err
	}

	outDir := cfg.Output.Dir
	prefix := cfg.Output.Prefix
	if prefix == "" {
		prefix = f.Name
	}
	dumper := output.NewDumper(filepath.Join(outDir, "debug"), prefix)
	manifest := &output.Manifest{Scene: f.Name, Volumetric: output.DescribeVolume(res.Volumetric)}
	addFiles := func(paths ...string) {
		for _, p := range paths {
			if rel, err := filepath.Rel(outDir, p); err == nil {
				p = rel
			}
			manifest.Files = append(manifest.Files, filepath.ToSlash(p))
		}
	}

	names := lightNames(sc)
	for _, r := range res.Mappings {
		manifest.Mappings = append(manifest.Mappings, output.Describe(r))
		if volumeOnly {
			continue
		}
		path, err := output.SaveLightmap(outDir, r)
		if err != nil {
			return err
		}
		addFiles(path)
		if cfg.Output.WriteTIFF {
			files, err := dumper.WriteMapping(r, names)
			addFiles(files...)
			if err != nil {
				return err
			}
		}
	}
	if res.Volumetric != nil && (volumeOnly || cfg.Output.WriteTIFF) {
		files, err := dumper.WriteVolume(res.Volumetric)
		addFiles(files...)
		if err != nil {
			return err
		}
	}

	path, err := output.SaveManifest(outDir, manifest)
	if err != nil {
		return err
	}

	var texels int
	for _, m := range manifest.Mappings {
		texels += m.MappedTexels
	}
	printer.Printf("Scene:     %s\n", f.Name)
	printer.Printf("Mappings:  %d (%d mapped texels)\n", len(res.Mappings), texels)
	if v := manifest.Volumetric; v != nil {
		printer.Printf("Bricks:    %d (%d culled)\n", v.Bricks, v.Culled)
	}
	printer.Printf("Alerts:    %d\n", len(collector.Alerts()))
	printer.Printf("Elapsed:   %v\n", res.Elapsed)
	printer.Printf("Manifest:  %s\n", path)
	return nil
}

func lightNames(sc *scene.Scene) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(sc.Lights))
	for _, l := range sc.Lights {
		names[l.ID()] = l.Name()
	}
	return names
}

func cmdInfo(args []string) error {
	_, f, sc, err := setup(args)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if err := sc.Prepare(); err != nil {
		return err
	}

	var triangles, texels int
	for _, m := range sc.Meshes {
		triangles += m.NumTriangles()
	}
	for _, m := range sc.Mappings() {
		texels += m.SizeX * m.SizeY
	}
	b := sc.Bounds()

	printer.Printf("Scene:      %s\n", f.Name)
	printer.Printf("Meshes:     %d (%d triangles)\n", len(sc.Meshes), triangles)
	printer.Printf("Mappings:   %d (%d texels)\n", len(sc.Mappings()), texels)
	printer.Printf("Lights:     %d\n", len(sc.Lights))
	printer.Printf("Landscapes: %d\n", len(sc.Landscapes))
	printer.Printf("Bounds:     (%.1f, %.1f, %.1f) - (%.1f, %.1f, %.1f)\n", b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
	if len(sc.ImportanceVolumes) > 0 {
		ib := sc.ImportanceBounds()
		printer.Printf("Importance: (%.1f, %.1f, %.1f) - (%.1f, %.1f, %.1f)\n", ib.Min.X, ib.Min.Y, ib.Min.Z, ib.Max.X, ib.Max.Y, ib.Max.Z)
	}

	fmt.Println()
	fmt.Println("Mappings:")
	for _, m := range sc.Mappings() {
		padded := ""
		if m.Padded {
			padded = " padded"
		}
		fmt.Printf("  %-24s %4dx%-4d%s\n", m.Mesh.Name, m.SizeX, m.SizeY, padded)
	}

	fmt.Println()
	fmt.Println("Lights:")
	for _, l := range sc.Lights {
		fmt.Printf("  %-24s %-12s %s\n", l.Name(), lightKind(l), lightMode(l.Flags()))
	}
	return nil
}

func lightKind(l scene.Light) string {
	switch l.(type) {
	case *scene.DirectionalLight:
		return "directional"
	case *scene.SpotLight:
		return "spot"
	case *scene.PointLight:
		return "point"
	}
	return "unknown"
}

func lightMode(f scene.LightFlags) string {
	switch {
	case f.Has(scene.StaticShadowing | scene.DistanceFieldShadows):
		return "stationary, distance field shadows"
	case f.Has(scene.StaticShadowing):
		return "stationary, shadow map"
	case f.Has(scene.StaticLighting):
		return "static"
	}
	return "unbaked"
}

func cmdUVCheck(args []string) error {
	_, _, sc, err := setup(args)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if err := sc.Prepare(); err != nil {
		return err
	}

	collector := diag.NewCollector(diag.NewLogReporter(logger.Log))
	for _, m := range sc.Mappings() {
		sx, sy := m.CachedSize()
		report := texel.CheckLightmapUVs(m.Mesh, sx, sy)
		before := len(collector.Alerts())
		report.Report(collector, m.Mesh)
		status := "ok"
		if len(collector.Alerts()) > before {
			status = "PROBLEM"
		}
		fmt.Printf("  %-24s wrapping %5d  overlapping %5d (%.1f%%)  %s\n",
			m.Mesh.Name, report.WrappingTexels, report.OverlappingTexels, report.OverlapPercent(), status)
	}

	var warnings int
	for _, a := range collector.Alerts() {
		if a.Severity >= diag.Warning {
			warnings++
		}
	}
	if warnings > 0 {
		return fmt.Errorf("%w: %d warnings", errUVProblems, warnings)
	}
	return nil
}

// cmdConfig prints the effective configuration, or writes it to the file
// given as argument.
func cmdConfig(args []string) error {
	if len(args) > 1 {
		return errors.New("expected at most one output file")
	}
	sceneDir := ""
	if len(args) == 1 {
		sceneDir = filepath.Dir(args[0])
	}
	cfg, err := config.Load(sceneDir)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(args) == 0 {
		return cfg.Write(os.Stdout)
	}
	if err := cfg.SaveTo(args[0]); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", args[0])
	return nil
}
