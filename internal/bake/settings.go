package bake

import (
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-lightbake/internal/bake/diag"
	"github.com/Faultbox/midgard-lightbake/internal/bake/gather"
	"github.com/Faultbox/midgard-lightbake/internal/bake/radiosity"
	"github.com/Faultbox/midgard-lightbake/internal/bake/shadow"
	"github.com/Faultbox/midgard-lightbake/internal/bake/texel"
	"github.com/Faultbox/midgard-lightbake/internal/bake/volumetric"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// LightmapSettings control the final per-mapping lighting.
type LightmapSettings struct {
	// ConservativeRasterization rasterizes a 5×5 sub-texel grid so thin
	// triangles still map texels.
	ConservativeRasterization bool
	// UseErrorColoring paints texels with wrapping or overlapping UVs.
	UseErrorColoring   bool
	UnmappedTexelColor math.Color
	// ShowLightmapBorders paints the padding of padded mappings.
	ShowLightmapBorders bool
	// CacheTaskSize and InterpolateTaskSize are the texel block sizes of the
	// indirect lighting tasks.
	CacheTaskSize       int
	InterpolateTaskSize int
	// UseLightSpaceSDF builds directional distance field shadows from a
	// depth map instead of in texture space.
	UseLightSpaceSDF bool
	// Occlusion fractions scale how much ambient occlusion darkens direct
	// and indirect lighting.
	DirectOcclusionFraction   float32
	IndirectOcclusionFraction float32
}

// DefaultLightmapSettings returns the stock lightmap settings.
func DefaultLightmapSettings() LightmapSettings {
	return LightmapSettings{
		ConservativeRasterization: true,
		UnmappedTexelColor:        math.Gray(0.05),
		CacheTaskSize:             64,
		InterpolateTaskSize:       64,
		DirectOcclusionFraction:   0.5,
		IndirectOcclusionFraction: 1,
	}
}

// Settings is the complete bake configuration.
type Settings struct {
	Texel     texel.Settings
	Offsets   gather.Offsets
	Radiosity radiosity.Settings
	Lightmap  LightmapSettings
	Shadows   shadow.Settings
	// BuildVolumetric enables the volumetric lightmap.
	BuildVolumetric bool
	Volumetric      volumetric.Settings
}

// DefaultSettings returns the stock bake settings.
func DefaultSettings() Settings {
	return Settings{
		Texel:           texel.DefaultSettings(),
		Offsets:         gather.DefaultOffsets(),
		Radiosity:       radiosity.DefaultSettings(),
		Lightmap:        DefaultLightmapSettings(),
		Shadows:         shadow.DefaultSettings(),
		BuildVolumetric: true,
		Volumetric:      volumetric.DefaultSettings(),
	}
}

// Options carry the runtime environment of a bake.
type Options struct {
	// Threads is the worker count. Zero uses every CPU.
	Threads int
	// Logger receives progress. Nil discards it.
	Logger *zap.Logger
	// Reporter receives diagnostics. Nil logs them to Logger.
	Reporter diag.Reporter
}
