// Package config handles bake configuration loading and management.
package config

// Config holds every bake setting.
type Config struct {
	Logging         LoggingConfig         `yaml:"logging"`
	General         GeneralConfig         `yaml:"general"`
	SceneConstants  SceneConstantsConfig  `yaml:"scene_constants"`
	Texel           TexelConfig           `yaml:"texel"`
	IrradianceCache IrradianceCacheConfig `yaml:"irradiance_cache"`
	Radiosity       RadiosityConfig       `yaml:"radiosity"`
	FinalGather     FinalGatherConfig     `yaml:"final_gather"`
	AO              AOConfig              `yaml:"ambient_occlusion"`
	Shadows         ShadowsConfig         `yaml:"shadows"`
	Volumetric      VolumetricConfig      `yaml:"volumetric"`
	Output          OutputConfig          `yaml:"output"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// GeneralConfig holds the settings that apply to the whole bake.
type GeneralConfig struct {
	Threads                   int        `yaml:"threads"` // 0 uses every CPU
	ConservativeRasterization bool       `yaml:"conservative_rasterization"`
	UseErrorColoring          bool       `yaml:"use_error_coloring"`
	UnmappedTexelColor        [3]float32 `yaml:"unmapped_texel_color"`
	ShowLightmapBorders       bool       `yaml:"show_lightmap_borders"`
	BuildVolumetric           bool       `yaml:"build_volumetric"`
}

// SceneConstantsConfig holds the ray offsets used against self-intersection.
type SceneConstantsConfig struct {
	VisibilityRayOffsetDistance              float32 `yaml:"visibility_ray_offset_distance"`
	VisibilityNormalOffsetDistance           float32 `yaml:"visibility_normal_offset_distance"`
	VisibilityNormalOffsetSampleRadiusScale  float32 `yaml:"visibility_normal_offset_sample_radius_scale"`
	VisibilityTangentOffsetSampleRadiusScale float32 `yaml:"visibility_tangent_offset_sample_radius_scale"`
	SmallestTexelRadius                      float32 `yaml:"smallest_texel_radius"`
}

// TexelConfig holds texel rasterization settings.
type TexelConfig struct {
	UseMaxWeight bool `yaml:"use_max_weight"`
}

// IrradianceCacheConfig holds lighting cache settings.
type IrradianceCacheConfig struct {
	Enabled                   bool    `yaml:"enabled"`
	RecordRadiusScale         float32 `yaml:"record_radius_scale"`
	InterpolationMaxAngle     float32 `yaml:"interpolation_max_angle"`
	PointBehindRecordMaxAngle float32 `yaml:"point_behind_record_max_angle"`
	DistanceSmoothFactor      float32 `yaml:"distance_smooth_factor"`
	AngleSmoothFactor         float32 `yaml:"angle_smooth_factor"`
	SmoothnessReduction       float32 `yaml:"sky_occlusion_smoothness_reduction"`
	MaxRecordDisagreement     float32 `yaml:"max_record_disagreement"`
	MinRecordRadius           float32 `yaml:"min_record_radius"`
	MaxRecordRadius           float32 `yaml:"max_record_radius"`
	CacheTaskSize             int     `yaml:"cache_task_size"`
	InterpolateTaskSize       int     `yaml:"interpolate_task_size"`
}

// RadiosityConfig holds the indirect lighting solve settings.
type RadiosityConfig struct {
	NumBounces                          int  `yaml:"num_indirect_lighting_bounces"`
	MappingSurfaceCacheDownsampleFactor int  `yaml:"mapping_surface_cache_downsample_factor"`
	UseCachedHitPoints                  bool `yaml:"use_cached_hit_points"`
	CompressHitPoints                   bool `yaml:"compress_hit_points"`
}

// FinalGatherConfig holds final gather settings.
type FinalGatherConfig struct {
	NumHemisphereSamples int `yaml:"num_hemisphere_samples"`
}

// AOConfig holds ambient occlusion settings.
type AOConfig struct {
	Enabled                   bool    `yaml:"enabled"`
	MaxOcclusionDistance      float32 `yaml:"max_occlusion_distance"`
	DirectOcclusionFraction   float32 `yaml:"direct_illumination_occlusion_fraction"`
	IndirectOcclusionFraction float32 `yaml:"indirect_illumination_occlusion_fraction"`
}

// ShadowsConfig holds shadow map and distance field settings.
type ShadowsConfig struct {
	MaxTransitionDistance      float32 `yaml:"max_transition_distance_world_space"`
	HighResTexelsPerTransition float32 `yaml:"approximate_high_res_texels_per_max_transition_distance"`
	MinUpsampleFactor          int     `yaml:"min_distance_field_upsample_factor"`
	MinUnoccludedFraction      float32 `yaml:"min_unoccluded_fraction"`
	MaxDepthMapSamples         int     `yaml:"max_depth_map_samples"`
	UseLightSpaceSDF           bool    `yaml:"use_light_space_sdf"`
}

// VolumetricConfig holds volumetric lightmap settings.
type VolumetricConfig struct {
	BrickSize                            int     `yaml:"brick_size"`
	MaxRefinementLevels                  int     `yaml:"max_refinement_levels"`
	DetailCellSize                       float32 `yaml:"detail_cell_size"`
	SurfaceCellExpansion                 float32 `yaml:"voxelization_cell_expansion_for_surface_geometry"`
	VolumeCellExpansion                  float32 `yaml:"voxelization_cell_expansion_for_volume_geometry"`
	LightCellExpansion                   float32 `yaml:"voxelization_cell_expansion_for_lights"`
	MinBrickError                        float32 `yaml:"min_brick_error"`
	SurfaceLightmapMinTexelsPerVoxelAxis float32 `yaml:"surface_lightmap_min_texels_per_voxel_axis"`
	LightBrightnessSubdivideThreshold    float32 `yaml:"light_brightness_subdivide_threshold"`
	CullBricksBelowLandscape             bool    `yaml:"cull_bricks_below_landscape"`
	InsideGeometryThreshold              float32 `yaml:"inside_geometry_threshold"`
	GatherDistance                       float32 `yaml:"gather_distance"`
}

// OutputConfig holds where and how bake results are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
	// WriteTIFF dumps every lightmap, shadow map and brick slice.
	WriteTIFF bool `yaml:"write_tiff"`
	// Prefix starts every dumped file name. Empty uses the scene name.
	Prefix string `yaml:"prefix"`
}
