// Package shadow builds the per-light shadow data stored alongside
// lightmaps: plain visibility grids for stationary lights and signed distance
// field shadows reconstructed either in texture space or from a light-space
// depth map.
//
// A distance field sample encodes the distance to the nearest shadow
// transition, normalized by MaxTransitionDistance, so that 0.5 lies exactly
// on the transition, values above it are lit and values below it are
// shadowed.
package shadow

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-lightbake/internal/bake/gather"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/internal/bake/texel"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// Settings control shadow reconstruction.
type Settings struct {
	// MaxTransitionDistance is the world-space range encoded by a distance
	// field sample.
	MaxTransitionDistance float32
	// HighResTexelsPerTransition picks the texture-space upsample factor.
	HighResTexelsPerTransition float32
	MinUpsampleFactor          int
	// MinUnoccludedFraction drops a light's map when fewer mapped texels see
	// it.
	MinUnoccludedFraction float32
	// MaxDepthMapSamples bounds the light-space depth map resolution.
	MaxDepthMapSamples int
}

// DefaultSettings returns the stock shadow settings.
func DefaultSettings() Settings {
	return Settings{
		MaxTransitionDistance:      50,
		HighResTexelsPerTransition: 50,
		MinUpsampleFactor:          3,
		MinUnoccludedFraction:      0.0005,
		MaxDepthMapSamples:         4194304,
	}
}

const maxUpsampleFactor = 13

// Sample is one texel of a distance field shadow map.
type Sample struct {
	Distance     float32
	PenumbraSize float32
	Mapped       bool
}

// Lit reports whether the sample decodes as unshadowed.
func (s Sample) Lit() bool {
	return s.Distance > 0.5
}

// DistanceFieldMap is the signed distance field shadow of one light on one
// mapping.
type DistanceFieldMap struct {
	Light        scene.Light
	SizeX, SizeY int
	Samples      []Sample
}

func newDistanceFieldMap(light scene.Light, sizeX, sizeY int) *DistanceFieldMap {
	return &DistanceFieldMap{Light: light, SizeX: sizeX, SizeY: sizeY, Samples: make([]Sample, sizeX*sizeY)}
}

// At returns the sample at (x, y).
func (m *DistanceFieldMap) At(x, y int) *Sample {
	return &m.Samples[y*m.SizeX+x]
}

// Pad adds a one texel border. Distances and penumbra sizes are extrapolated
// from the edge and clamped to [0, 1]; with showBorders the border is set to
// the transition value instead.
func (m *DistanceFieldMap) Pad(showBorders bool) *DistanceFieldMap {
	dist := make([]float32, len(m.Samples))
	pen := make([]float32, len(m.Samples))
	mapped := make([]bool, len(m.Samples))
	for i, s := range m.Samples {
		dist[i], pen[i], mapped[i] = s.Distance, s.PenumbraSize, s.Mapped
	}
	dist = texel.PadExtrapolate(dist, m.SizeX, m.SizeY)
	pen = texel.PadExtrapolate(pen, m.SizeX, m.SizeY)
	mapped = texel.PadNearest(mapped, m.SizeX, m.SizeY, nil)

	out := newDistanceFieldMap(m.Light, m.SizeX+2, m.SizeY+2)
	for i := range out.Samples {
		out.Samples[i] = Sample{
			Distance:     math.Clamp(dist[i], 0, 1),
			PenumbraSize: math.Clamp(pen[i], 0, 1),
			Mapped:       mapped[i],
		}
	}
	if showBorders {
		out.forBorder(func(s *Sample) { s.Distance = 0.5 })
	}
	return out
}

func (m *DistanceFieldMap) forBorder(fn func(*Sample)) {
	for y := 0; y < m.SizeY; y++ {
		for x := 0; x < m.SizeX; x++ {
			if x == 0 || y == 0 || x == m.SizeX-1 || y == m.SizeY-1 {
				fn(m.At(x, y))
			}
		}
	}
}

// VisibilityMap is the plain shadow map of one light on one mapping.
type VisibilityMap struct {
	Light        scene.Light
	SizeX, SizeY int
	// Visibility is in [0, 1]; unmapped texels hold zero.
	Visibility []float32
	Mapped     []bool
}

// Pad adds a one texel border, extrapolating visibility from the edge. With
// showBorders the border visibility is 0.7.
func (m *VisibilityMap) Pad(showBorders bool) *VisibilityMap {
	vis := texel.PadExtrapolate(m.Visibility, m.SizeX, m.SizeY)
	for i := range vis {
		vis[i] = math.Clamp(vis[i], 0, 1)
	}
	out := &VisibilityMap{
		Light:      m.Light,
		SizeX:      m.SizeX + 2,
		SizeY:      m.SizeY + 2,
		Visibility: vis,
		Mapped:     texel.PadNearest(m.Mapped, m.SizeX, m.SizeY, nil),
	}
	if showBorders {
		for y := 0; y < out.SizeY; y++ {
			for x := 0; x < out.SizeX; x++ {
				if x == 0 || y == 0 || x == out.SizeX-1 || y == out.SizeY-1 {
					out.Visibility[y*out.SizeX+x] = 0.7
				}
			}
		}
	}
	return out
}

// Builder reconstructs shadow data for one light and mapping at a time. It
// holds no per-mapping state and may be shared by workers.
type Builder struct {
	Settings Settings
	Direct   *gather.Direct
	// SceneBounds places the light-space depth map.
	SceneBounds math.Box
}

// affects reports whether light reaches the point p at all.
func affects(light scene.Light, p math.Vec3) bool {
	return light.AffectsBox(math.Box{Min: p, Max: p})
}

// keep applies the discard policy: a light nothing sees, or that too few
// mapped texels see, leaves no shadow map.
func (b *Builder) keep(unoccluded, mapped int) bool {
	return unoccluded > 0 && float32(unoccluded) > float32(mapped)*b.Settings.MinUnoccludedFraction
}

// BuildVisibility traces one shadow ray per mapped texel of m towards light.
// It returns nil when the discard policy drops the map.
func (b *Builder) BuildVisibility(m *texel.Map, light scene.Light) *VisibilityMap {
	out := &VisibilityMap{
		Light:      light,
		SizeX:      m.SizeX,
		SizeY:      m.SizeY,
		Visibility: make([]float32, len(m.Texels)),
		Mapped:     make([]bool, len(m.Texels)),
	}
	mapped, unoccluded := 0, 0
	for i := range m.Texels {
		t := &m.Texels[i]
		if !t.Mapped() {
			continue
		}
		mapped++
		out.Mapped[i] = true
		if !affects(light, t.WorldPosition) {
			continue
		}
		if visible, _ := b.Direct.Visibility(t.SurfacePoint(), light); visible {
			out.Visibility[i] = 1
			unoccluded++
		}
	}
	if !b.keep(unoccluded, mapped) {
		return nil
	}
	return out
}

// penumbraSize estimates the world-space half width of the penumbra cast on
// a receiver by an occluder, from the receiver-occluder and occluder-light
// distances. Directional lights use the source radius as the tangent of the
// cone half angle.
func penumbraSize(light scene.Light, receiverToOccluder, occluderToLight float32) float32 {
	receiverToOccluder = math32.Max(receiverToOccluder, 0)
	if _, ok := light.(*scene.DirectionalLight); ok {
		return receiverToOccluder * light.SourceRadius()
	}
	return receiverToOccluder * light.SourceRadius() / math32.Max(occluderToLight, math.KindaSmall)
}

// encodePenumbra normalizes a penumbra size by the transition range.
func (b *Builder) encodePenumbra(size float32) float32 {
	return math.Clamp(size/b.Settings.MaxTransitionDistance, 0.01, 1)
}

// encodeDistance maps a world-space distance to the nearest transition onto
// [0, 1] with 0.5 at the transition.
func (b *Builder) encodeDistance(dist float32, lit bool) float32 {
	n := math.Clamp(dist/b.Settings.MaxTransitionDistance, 0, 1)
	if lit {
		return 0.5 + n*0.5
	}
	return 0.5 - n*0.5
}
