package output

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/midgard-lightbake/internal/bake/volumetric"
)

// Manifest summarizes a bake for downstream tooling.
type Manifest struct {
	Scene      string            `yaml:"scene"`
	Mappings   []MappingManifest `yaml:"mappings"`
	Volumetric *VolumeManifest   `yaml:"volumetric,omitempty"`
	Files      []string          `yaml:"files,omitempty"`
}

// MappingManifest describes one baked mapping.
type MappingManifest struct {
	GUID           string   `yaml:"guid"`
	Mesh           string   `yaml:"mesh"`
	Size           [2]int   `yaml:"size"`
	MappedTexels   int      `yaml:"mapped_texels"`
	ShadowMaps     []string `yaml:"shadow_maps,omitempty"`
	DistanceFields []string `yaml:"distance_fields,omitempty"`
	OverlapPercent float32  `yaml:"uv_overlap_percent,omitempty"`
	WrappingTexels int      `yaml:"uv_wrapping_texels,omitempty"`
}

// VolumeManifest describes the volumetric lightmap.
type VolumeManifest struct {
	Bricks          int    `yaml:"bricks"`
	Culled          int    `yaml:"culled"`
	BrickSize       int    `yaml:"brick_size"`
	IndirectionSize [3]int `yaml:"indirection_size"`
}

// Describe builds the manifest entry of r.
func Describe(r *MappingResult) MappingManifest {
	m := MappingManifest{GUID: r.Mapping.String(), Mesh: r.MeshName}
	if r.Lightmap != nil {
		m.Size = [2]int{r.Lightmap.SizeX, r.Lightmap.SizeY}
		for _, s := range r.Lightmap.Samples {
			if s.Mapped {
				m.MappedTexels++
			}
		}
	}
	for id := range sortedKeys(r.ShadowMaps) {
		m.ShadowMaps = append(m.ShadowMaps, id.String())
	}
	for id := range sortedKeys(r.DistanceFields) {
		m.DistanceFields = append(m.DistanceFields, id.String())
	}
	if r.UV != nil {
		m.OverlapPercent = r.UV.OverlapPercent()
		m.WrappingTexels = r.UV.WrappingTexels
	}
	return m
}

// DescribeVolume builds the manifest entry of a volumetric lightmap.
func DescribeVolume(v *volumetric.Result) *VolumeManifest {
	if v == nil {
		return nil
	}
	return &VolumeManifest{
		Bricks:          len(v.Bricks),
		Culled:          v.Culled,
		BrickSize:       v.BrickSize,
		IndirectionSize: v.IndirectionSize,
	}
}

// SaveManifest writes m as manifest.yaml into dir.
func SaveManifest(dir string, m *Manifest) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	slices.Sort(m.Files)
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshaling manifest: %w", err)
	}
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing manifest: %w", err)
	}
	return path, nil
}

// LoadManifest reads a manifest written by SaveManifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}
