package config

import (
	"flag"
	"strconv"
)

// optionalBool is a bool flag that remembers whether it was given, so an
// absent flag leaves the file value alone.
type optionalBool struct {
	set, value bool
}

func (b *optionalBool) String() string {
	if b == nil || !b.set {
		return ""
	}
	return strconv.FormatBool(b.value)
}

func (b *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.set, b.value = true, v
	return nil
}

func (b *optionalBool) IsBoolFlag() bool { return true }

func (b *optionalBool) apply(dst *bool) {
	if b.set {
		*dst = b.value
	}
}

var (
	flagConfig          = flag.String("config", "", "Path to config file")
	flagDebug           = flag.Bool("debug", false, "Enable debug logging")
	flagThreads         = flag.Int("threads", 0, "Worker threads (0 uses every CPU)")
	flagBounces         = flag.Int("bounces", -1, "Indirect lighting bounces")
	flagOut             = flag.String("out", "", "Output directory")
	flagConservative    optionalBool
	flagNoCache         = flag.Bool("no-cache", false, "Disable the irradiance cache")
	flagCachedHitPoints optionalBool
	flagLightSpaceSDF   optionalBool
	flagTIFF            optionalBool
)

func init() {
	flag.Var(&flagConservative, "conservative", "Conservative texel rasterization")
	flag.Var(&flagCachedHitPoints, "cached-hitpoints", "Replay first pass hit points in later radiosity passes")
	flag.Var(&flagLightSpaceSDF, "light-space-sdf", "Build directional distance field shadows in light space")
	flag.Var(&flagTIFF, "tiff", "Dump lightmaps, shadow maps and brick slices as TIFF")
}

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagThreads > 0 {
		cfg.General.Threads = *flagThreads
	}
	if *flagBounces >= 0 {
		cfg.Radiosity.NumBounces = *flagBounces
	}
	if *flagOut != "" {
		cfg.Output.Dir = *flagOut
	}
	if *flagNoCache {
		cfg.IrradianceCache.Enabled = false
	}
	flagConservative.apply(&cfg.General.ConservativeRasterization)
	flagCachedHitPoints.apply(&cfg.Radiosity.UseCachedHitPoints)
	flagLightSpaceSDF.apply(&cfg.Shadows.UseLightSpaceSDF)
	flagTIFF.apply(&cfg.Output.WriteTIFF)
}
