package scene

import "github.com/Faultbox/midgard-lightbake/pkg/math"

// Material is the lighting-relevant part of a surface material.
type Material struct {
	Name        string
	Diffuse     math.Color
	Emissive    math.Color
	TwoSided    bool
	Translucent bool
	// AOMask marks materials that receive the ambient occlusion material mask.
	AOMask bool
}

// Reflectance returns the diffuse albedo used by the bounce solver.
// Translucent materials do not reflect.
func (m *Material) Reflectance() math.Color {
	if m == nil || m.Translucent {
		return math.Black
	}
	return m.Diffuse
}

// Emission returns the emitted radiance.
func (m *Material) Emission() math.Color {
	if m == nil {
		return math.Black
	}
	return m.Emissive
}

// IsTwoSided reports whether the material lights both faces.
func (m *Material) IsTwoSided() bool {
	return m != nil && m.TwoSided
}

// DefaultMaterial is used by meshes that do not name one.
var DefaultMaterial = &Material{Name: "default", Diffuse: math.Gray(0.5)}
