// Package texel maps the texels of a lightmap grid onto the world-space
// surface of a mesh.
package texel

import (
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// TexelToVertex is the surface point a texel represents.
type TexelToVertex struct {
	WorldPosition  math.Vec3
	WorldTangentX  math.Vec3
	WorldTangentY  math.Vec3
	WorldTangentZ  math.Vec3
	TriangleNormal math.Vec3
	// TotalSampleWeight is zero for unmapped texels.
	TotalSampleWeight float32
	MaxSampleWeight   float32
	TexelRadius       float32
	Material          *scene.Material
	TextureUV         math.Vec2
	LightmapUV        math.Vec2
	// IntersectingSurface marks texels whose surface is pierced by other
	// geometry within the texel footprint.
	IntersectingSurface bool
}

// Mapped reports whether any triangle covers the texel.
func (t *TexelToVertex) Mapped() bool {
	return t.TotalSampleWeight > 0
}

// SurfacePoint returns the shading point of the texel.
func (t *TexelToVertex) SurfacePoint() scene.SurfacePoint {
	return scene.SurfacePoint{
		Position:       t.WorldPosition,
		TangentX:       t.WorldTangentX,
		TangentY:       t.WorldTangentY,
		Normal:         t.WorldTangentZ,
		TriangleNormal: t.TriangleNormal,
		TexelRadius:    t.TexelRadius,
		Material:       t.Material,
		LightmapUV:     t.LightmapUV,
	}
}

// Map is the texel-to-vertex map of one texel grid.
type Map struct {
	SizeX, SizeY int
	Texels       []TexelToVertex
}

// NewMap allocates an unmapped grid.
func NewMap(sizeX, sizeY int) *Map {
	return &Map{SizeX: sizeX, SizeY: sizeY, Texels: make([]TexelToVertex, sizeX*sizeY)}
}

// At returns the texel at (x, y).
func (m *Map) At(x, y int) *TexelToVertex {
	return &m.Texels[y*m.SizeX+x]
}

// NumMapped counts texels covered by at least one triangle.
func (m *Map) NumMapped() int {
	n := 0
	for i := range m.Texels {
		if m.Texels[i].Mapped() {
			n++
		}
	}
	return n
}

// Sampling selects how many sub-texel positions are rasterized.
type Sampling int

const (
	// CenterSample rasterizes only the texel center with weight one.
	CenterSample Sampling = iota
	// Grid5 uses the inner 3×3 points of a 5×5 lattice across the texel,
	// used for radiosity surface caches.
	Grid5
	// Grid7 uses the inner 5×5 points of a 7×7 lattice, the conservative
	// lightmap rasterization that also catches thin triangles.
	Grid7
)

type subSample struct {
	offset math.Vec2
	weight float32
}

// subSamples returns the UV-space offsets and pyramid weights of a sampling
// mode. Offsets are subtracted from texel coordinates, so -0.5 samples the
// texel center.
func subSamples(s Sampling) []subSample {
	n := 0
	switch s {
	case Grid5:
		n = 5
	case Grid7:
		n = 7
	default:
		return []subSample{{offset: math.Vec2{X: -0.5, Y: -0.5}, weight: 1}}
	}
	var out []subSample
	for y := 1; y < n-1; y++ {
		for x := 1; x < n-1; x++ {
			xo := -float32(x) / float32(n-1)
			yo := -float32(y) / float32(n-1)
			w := (1 - abs(1+xo*2)) * (1 - abs(1+yo*2))
			out = append(out, subSample{offset: math.Vec2{X: xo, Y: yo}, weight: w})
		}
	}
	return out
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
