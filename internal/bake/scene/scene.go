// Package scene holds the geometry, materials and lights a bake runs on,
// together with the ray tracing service built over them.
package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// ErrInvalidScene is returned when scene data cannot be baked.
var ErrInvalidScene = errors.New("invalid scene")

// Scene is the complete bake input.
type Scene struct {
	Meshes            []*Mesh
	Lights            []Light
	Sky               *SkyLight
	ImportanceVolumes []math.Box
	Landscapes        []*Landscape

	mappings  []*TextureMapping
	aggregate *AggregateMesh
}

// AddMesh appends a mesh.
func (s *Scene) AddMesh(meshes ...*Mesh) {
	s.Meshes = append(s.Meshes, meshes...)
}

// AddLight appends a light.
func (s *Scene) AddLight(lights ...Light) {
	s.Lights = append(s.Lights, lights...)
}

// Prepare validates the scene, assigns mesh and mapping indices and builds
// the ray tracing hierarchy. It must be called once before baking.
func (s *Scene) Prepare() error {
	s.mappings = s.mappings[:0]
	for i, m := range s.Meshes {
		m.index = i
		if len(m.Indices)%3 != 0 {
			return fmt.Errorf("%w: mesh %q index count %d is not a multiple of 3", ErrInvalidScene, m.Name, len(m.Indices))
		}
		for _, idx := range m.Indices {
			if int(idx) >= len(m.Vertices) {
				return fmt.Errorf("%w: mesh %q index %d out of range", ErrInvalidScene, m.Name, idx)
			}
		}
		m.UpdateBounds()
		if m.Mapping == nil {
			continue
		}
		cx, cy := m.Mapping.CachedSize()
		if cx < 1 || cy < 1 {
			return fmt.Errorf("%w: mapping of mesh %q has size %dx%d", ErrInvalidScene, m.Name, m.Mapping.SizeX, m.Mapping.SizeY)
		}
		m.Mapping.index = len(s.mappings)
		s.mappings = append(s.mappings, m.Mapping)
	}
	s.aggregate = NewAggregateMesh(s.Meshes)
	return nil
}

// Mappings returns the lightmapped surfaces in mesh order.
func (s *Scene) Mappings() []*TextureMapping {
	return s.mappings
}

// Aggregate returns the ray tracing hierarchy built by Prepare.
func (s *Scene) Aggregate() *AggregateMesh {
	return s.aggregate
}

// Bounds returns the bounds of all geometry.
func (s *Scene) Bounds() math.Box {
	if s.aggregate == nil {
		return math.EmptyBox()
	}
	return s.aggregate.Bounds()
}

// ImportanceBounds returns the union of the importance volumes, or the scene
// bounds when none are set.
func (s *Scene) ImportanceBounds() math.Box {
	if len(s.ImportanceVolumes) == 0 {
		return s.Bounds()
	}
	b := math.EmptyBox()
	for _, v := range s.ImportanceVolumes {
		b = b.Union(v)
	}
	return b
}

// InImportanceVolume reports whether box overlaps any importance volume. With
// no volumes the whole scene is important.
func (s *Scene) InImportanceVolume(box math.Box) bool {
	if len(s.ImportanceVolumes) == 0 {
		return true
	}
	for _, v := range s.ImportanceVolumes {
		if v.Intersects(box) {
			return true
		}
	}
	return false
}
