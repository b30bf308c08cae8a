package config

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-lightbake/internal/bake"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// defaultOcclusionDistance is the ambient occlusion range used once
// occlusion is enabled.
const defaultOcclusionDistance = 200

// ErrInvalidConfig is returned by Validate for settings no bake can run with.
var ErrInvalidConfig = errors.New("invalid config")

// Default returns a Config holding the stock bake settings.
func Default() *Config {
	s := bake.DefaultSettings()
	rad := s.Radiosity
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		General: GeneralConfig{
			ConservativeRasterization: s.Lightmap.ConservativeRasterization,
			UseErrorColoring:          s.Lightmap.UseErrorColoring,
			UnmappedTexelColor:        [3]float32{s.Lightmap.UnmappedTexelColor.R, s.Lightmap.UnmappedTexelColor.G, s.Lightmap.UnmappedTexelColor.B},
			ShowLightmapBorders:       s.Lightmap.ShowLightmapBorders,
			BuildVolumetric:           s.BuildVolumetric,
		},
		SceneConstants: SceneConstantsConfig{
			VisibilityRayOffsetDistance:              s.Offsets.Ray,
			VisibilityNormalOffsetDistance:           s.Offsets.Normal,
			VisibilityNormalOffsetSampleRadiusScale:  s.Offsets.NormalRadiusScale,
			VisibilityTangentOffsetSampleRadiusScale: s.Texel.TangentOffsetSampleRadiusScale,
			SmallestTexelRadius:                      s.Texel.SmallestTexelRadius,
		},
		Texel: TexelConfig{
			UseMaxWeight: s.Texel.UseMaxWeight,
		},
		IrradianceCache: IrradianceCacheConfig{
			Enabled:                   rad.UseCache,
			RecordRadiusScale:         rad.Gather.RecordRadiusScale,
			InterpolationMaxAngle:     rad.Cache.InterpolationMaxAngle,
			PointBehindRecordMaxAngle: rad.Cache.PointBehindRecordMaxAngle,
			DistanceSmoothFactor:      rad.Cache.DistanceSmoothFactor,
			AngleSmoothFactor:         rad.Cache.AngleSmoothFactor,
			SmoothnessReduction:       rad.Cache.SmoothnessReduction,
			MaxRecordDisagreement:     rad.Cache.MaxRecordDisagreement,
			MinRecordRadius:           rad.Gather.MinRecordRadius,
			MaxRecordRadius:           rad.Gather.MaxRecordRadius,
			CacheTaskSize:             s.Lightmap.CacheTaskSize,
			InterpolateTaskSize:       s.Lightmap.InterpolateTaskSize,
		},
		Radiosity: RadiosityConfig{
			NumBounces:                          rad.NumBounces,
			MappingSurfaceCacheDownsampleFactor: rad.SurfaceCacheDownsample,
			UseCachedHitPoints:                  rad.UseCachedHitPoints,
			CompressHitPoints:                   rad.CompressHitPoints,
		},
		FinalGather: FinalGatherConfig{
			NumHemisphereSamples: rad.Gather.NumHemisphereSamples,
		},
		AO: AOConfig{
			Enabled:                   false,
			MaxOcclusionDistance:      defaultOcclusionDistance,
			DirectOcclusionFraction:   s.Lightmap.DirectOcclusionFraction,
			IndirectOcclusionFraction: s.Lightmap.IndirectOcclusionFraction,
		},
		Shadows: ShadowsConfig{
			MaxTransitionDistance:      s.Shadows.MaxTransitionDistance,
			HighResTexelsPerTransition: s.Shadows.HighResTexelsPerTransition,
			MinUpsampleFactor:          s.Shadows.MinUpsampleFactor,
			MinUnoccludedFraction:      s.Shadows.MinUnoccludedFraction,
			MaxDepthMapSamples:         s.Shadows.MaxDepthMapSamples,
			UseLightSpaceSDF:           s.Lightmap.UseLightSpaceSDF,
		},
		Volumetric: VolumetricConfig{
			BrickSize:                            s.Volumetric.BrickSize,
			MaxRefinementLevels:                  s.Volumetric.MaxRefinementLevels,
			DetailCellSize:                       s.Volumetric.DetailCellSize,
			SurfaceCellExpansion:                 s.Volumetric.SurfaceCellExpansion,
			VolumeCellExpansion:                  s.Volumetric.VolumeCellExpansion,
			LightCellExpansion:                   s.Volumetric.LightCellExpansion,
			MinBrickError:                        s.Volumetric.MinBrickError,
			SurfaceLightmapMinTexelsPerVoxelAxis: s.Volumetric.SurfaceLightmapMinTexelsPerVoxelAxis,
			LightBrightnessSubdivideThreshold:    s.Volumetric.LightBrightnessSubdivideThreshold,
			CullBricksBelowLandscape:             s.Volumetric.CullBricksBelowLandscape,
			InsideGeometryThreshold:              s.Volumetric.InsideGeometryThreshold,
			GatherDistance:                       s.Volumetric.GatherDistance,
		},
		Output: OutputConfig{
			Dir: "lightbake-out",
		},
	}
}

// BakeOptions converts the configuration into the settings consumed by the
// bake system.
func (c *Config) BakeOptions() bake.Settings {
	s := bake.DefaultSettings()

	s.Offsets.Ray = c.SceneConstants.VisibilityRayOffsetDistance
	s.Offsets.Normal = c.SceneConstants.VisibilityNormalOffsetDistance
	s.Offsets.NormalRadiusScale = c.SceneConstants.VisibilityNormalOffsetSampleRadiusScale

	s.Texel.UseMaxWeight = c.Texel.UseMaxWeight
	s.Texel.SmallestTexelRadius = c.SceneConstants.SmallestTexelRadius
	s.Texel.TangentOffsetSampleRadiusScale = c.SceneConstants.VisibilityTangentOffsetSampleRadiusScale

	rad := &s.Radiosity
	rad.NumBounces = c.Radiosity.NumBounces
	rad.SurfaceCacheDownsample = max(c.Radiosity.MappingSurfaceCacheDownsampleFactor, 1)
	rad.UseCache = c.IrradianceCache.Enabled
	rad.UseCachedHitPoints = c.Radiosity.UseCachedHitPoints
	rad.CompressHitPoints = c.Radiosity.CompressHitPoints
	rad.Gather.NumHemisphereSamples = max(c.FinalGather.NumHemisphereSamples, 1)
	rad.Gather.RecordRadiusScale = c.IrradianceCache.RecordRadiusScale
	rad.Gather.MinRecordRadius = c.IrradianceCache.MinRecordRadius
	rad.Gather.MaxRecordRadius = c.IrradianceCache.MaxRecordRadius
	rad.Gather.MaxOcclusionDistance = 0
	if c.AO.Enabled {
		rad.Gather.MaxOcclusionDistance = c.AO.MaxOcclusionDistance
	}
	rad.Cache.InterpolationMaxAngle = c.IrradianceCache.InterpolationMaxAngle
	rad.Cache.PointBehindRecordMaxAngle = c.IrradianceCache.PointBehindRecordMaxAngle
	rad.Cache.DistanceSmoothFactor = c.IrradianceCache.DistanceSmoothFactor
	rad.Cache.AngleSmoothFactor = c.IrradianceCache.AngleSmoothFactor
	rad.Cache.SmoothnessReduction = c.IrradianceCache.SmoothnessReduction
	rad.Cache.MaxRecordDisagreement = c.IrradianceCache.MaxRecordDisagreement

	lm := &s.Lightmap
	lm.ConservativeRasterization = c.General.ConservativeRasterization
	lm.UseErrorColoring = c.General.UseErrorColoring
	u := c.General.UnmappedTexelColor
	lm.UnmappedTexelColor = math.Color{R: u[0], G: u[1], B: u[2]}
	lm.ShowLightmapBorders = c.General.ShowLightmapBorders
	lm.CacheTaskSize = max(c.IrradianceCache.CacheTaskSize, 1)
	lm.InterpolateTaskSize = max(c.IrradianceCache.InterpolateTaskSize, 1)
	lm.UseLightSpaceSDF = c.Shadows.UseLightSpaceSDF
	lm.DirectOcclusionFraction = c.AO.DirectOcclusionFraction
	lm.IndirectOcclusionFraction = c.AO.IndirectOcclusionFraction

	s.Shadows.MaxTransitionDistance = c.Shadows.MaxTransitionDistance
	s.Shadows.HighResTexelsPerTransition = c.Shadows.HighResTexelsPerTransition
	s.Shadows.MinUpsampleFactor = c.Shadows.MinUpsampleFactor
	s.Shadows.MinUnoccludedFraction = c.Shadows.MinUnoccludedFraction
	s.Shadows.MaxDepthMapSamples = c.Shadows.MaxDepthMapSamples

	s.BuildVolumetric = c.General.BuildVolumetric
	v := &s.Volumetric
	v.BrickSize = max(c.Volumetric.BrickSize, 1)
	v.MaxRefinementLevels = max(c.Volumetric.MaxRefinementLevels, 1)
	v.DetailCellSize = c.Volumetric.DetailCellSize
	v.SurfaceCellExpansion = c.Volumetric.SurfaceCellExpansion
	v.VolumeCellExpansion = c.Volumetric.VolumeCellExpansion
	v.LightCellExpansion = c.Volumetric.LightCellExpansion
	v.MinBrickError = c.Volumetric.MinBrickError
	v.SurfaceLightmapMinTexelsPerVoxelAxis = c.Volumetric.SurfaceLightmapMinTexelsPerVoxelAxis
	v.LightBrightnessSubdivideThreshold = c.Volumetric.LightBrightnessSubdivideThreshold
	v.CullBricksBelowLandscape = c.Volumetric.CullBricksBelowLandscape
	v.InsideGeometryThreshold = c.Volumetric.InsideGeometryThreshold
	v.GatherDistance = c.Volumetric.GatherDistance

	return s
}

// Validate rejects settings outside their usable range.
func (c *Config) Validate() error {
	switch {
	case c.General.Threads < 0:
		return fmt.Errorf("%w: general.threads %d is negative", ErrInvalidConfig, c.General.Threads)
	case c.Radiosity.NumBounces < 0:
		return fmt.Errorf("%w: radiosity.num_indirect_lighting_bounces %d is negative", ErrInvalidConfig, c.Radiosity.NumBounces)
	case c.Volumetric.BrickSize < 1:
		return fmt.Errorf("%w: volumetric.brick_size must be at least 1", ErrInvalidConfig)
	case c.Volumetric.MaxRefinementLevels < 1:
		return fmt.Errorf("%w: volumetric.max_refinement_levels must be at least 1", ErrInvalidConfig)
	case c.Volumetric.DetailCellSize <= 0:
		return fmt.Errorf("%w: volumetric.detail_cell_size must be positive", ErrInvalidConfig)
	case c.Shadows.MaxTransitionDistance <= 0:
		return fmt.Errorf("%w: shadows.max_transition_distance_world_space must be positive", ErrInvalidConfig)
	case c.SceneConstants.SmallestTexelRadius <= 0:
		return fmt.Errorf("%w: scene_constants.smallest_texel_radius must be positive", ErrInvalidConfig)
	}
	return nil
}
