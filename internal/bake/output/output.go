// Package output assembles the per-mapping results of a bake: padded
// lightmaps, shadow maps and distance field shadows, their 8-bit storage
// form and debug dumps.
package output

import (
	"github.com/chewxy/math32"
	"github.com/google/uuid"

	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/internal/bake/shadow"
	"github.com/Faultbox/midgard-lightbake/internal/bake/texel"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// BorderColor marks padding texels when borders are shown.
var BorderColor = math.Color{R: 1, B: 1}

// Sample is one lightmap texel.
type Sample struct {
	// Irradiance is the incident lighting, ambient term of the lightmap.
	Irradiance math.Color
	// Directional is the L1 distribution of the incident radiance.
	Directional math.SH2RGB
	// AOMaterialMask is the unoccluded fraction stored for materials.
	AOMaterialMask float32
	Mapped         bool
}

// Lightmap is the texel grid of one mapping.
type Lightmap struct {
	SizeX, SizeY int
	Samples      []Sample
}

// NewLightmap allocates an unmapped lightmap.
func NewLightmap(sizeX, sizeY int) *Lightmap {
	return &Lightmap{SizeX: sizeX, SizeY: sizeY, Samples: make([]Sample, sizeX*sizeY)}
}

// At returns the sample at (x, y).
func (l *Lightmap) At(x, y int) *Sample {
	return &l.Samples[y*l.SizeX+x]
}

// Pad grows the lightmap by one texel on every side, copying the nearest
// edge texel outwards. With showBorders the padding is painted BorderColor.
func (l *Lightmap) Pad(showBorders bool) *Lightmap {
	var border *Sample
	if showBorders {
		border = &Sample{Irradiance: BorderColor, AOMaterialMask: 1, Mapped: true}
	}
	return &Lightmap{
		SizeX:   l.SizeX + 2,
		SizeY:   l.SizeY + 2,
		Samples: texel.PadNearest(l.Samples, l.SizeX, l.SizeY, border),
	}
}

// MappingResult is everything baked for one lightmapped mesh.
type MappingResult struct {
	Mapping  uuid.UUID
	MeshName string
	Lightmap *Lightmap
	// ShadowMaps and DistanceFields are keyed by light GUID. Lights whose
	// maps carried no information are absent.
	ShadowMaps     map[uuid.UUID]*shadow.VisibilityMap
	DistanceFields map[uuid.UUID]*shadow.DistanceFieldMap
	UV             *texel.UVReport
}

// NewMappingResult creates an empty result for m.
func NewMappingResult(m *scene.TextureMapping) *MappingResult {
	return &MappingResult{
		Mapping:        m.GUID,
		MeshName:       m.Mesh.Name,
		ShadowMaps:     make(map[uuid.UUID]*shadow.VisibilityMap),
		DistanceFields: make(map[uuid.UUID]*shadow.DistanceFieldMap),
	}
}

// Log encoded range of the brightest channel, in powers of two.
const (
	minLog2 = -8
	maxLog2 = 8
)

// QuantizedSample is the 8-bit storage form of a Sample. Color holds the
// irradiance divided by its brightest channel, whose base 2 logarithm is
// stored in LogScale. Directional holds the luminance L1 terms relative to
// the luminance ambient term.
type QuantizedSample struct {
	Color          [3]uint8
	LogScale       uint8
	Directional    [3]uint8
	AOMaterialMask uint8
}

func unorm8(v float32) uint8 {
	return uint8(math32.Round(math.Clamp(v, 0, 1) * 255))
}

func snorm8(v float32) uint8 {
	return unorm8(v*0.5 + 0.5)
}

// l1Scale maps an L1 coefficient into the range of the ambient coefficient.
const l1Scale = 0.282095 / 0.488603

// Quantize encodes s for storage.
func (s Sample) Quantize() QuantizedSample {
	q := QuantizedSample{AOMaterialMask: unorm8(s.AOMaterialMask)}
	if peak := s.Irradiance.Max(); peak > 0 {
		c := s.Irradiance.Scale(1 / peak)
		q.Color = [3]uint8{unorm8(c.R), unorm8(c.G), unorm8(c.B)}
		q.LogScale = unorm8((math32.Log2(peak) - minLog2) / (maxLog2 - minLog2))
	}
	lum := luminanceSH(s.Directional)
	for k := range q.Directional {
		if lum[0] <= math.Delta {
			q.Directional[k] = 128
			continue
		}
		q.Directional[k] = snorm8(lum[k+1] / lum[0] * l1Scale)
	}
	return q
}

// Irradiance decodes the irradiance of q.
func (q QuantizedSample) Irradiance() math.Color {
	if q.LogScale == 0 && q.Color == [3]uint8{} {
		return math.Black
	}
	peak := math32.Exp2(float32(q.LogScale)/255*(maxLog2-minLog2) + minLog2)
	return math.Color{
		R: float32(q.Color[0]) / 255,
		G: float32(q.Color[1]) / 255,
		B: float32(q.Color[2]) / 255,
	}.Scale(peak)
}

func luminanceSH(sh math.SH2RGB) math.SH2 {
	var out math.SH2
	for i := range out {
		out[i] = math.Color{R: sh.R[i], G: sh.G[i], B: sh.B[i]}.Luminance()
	}
	return out
}

// Quantize encodes every sample of the lightmap.
func (l *Lightmap) Quantize() []QuantizedSample {
	out := make([]QuantizedSample, len(l.Samples))
	for i, s := range l.Samples {
		out[i] = s.Quantize()
	}
	return out
}
