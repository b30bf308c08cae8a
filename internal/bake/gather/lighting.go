package gather

import "github.com/Faultbox/midgard-lightbake/pkg/math"

// Lighting is the incident lighting at a surface point: an irradiance
// estimate, its directional distribution and the ambient occlusion.
type Lighting struct {
	Irradiance math.Color
	SH         math.SH2RGB
	// Occlusion is the fraction of gather rays blocked within the ambient
	// occlusion distance.
	Occlusion float32
}

func (l Lighting) Add(o Lighting) Lighting {
	return Lighting{
		Irradiance: l.Irradiance.Add(o.Irradiance),
		SH:         l.SH.Add(o.SH),
		Occlusion:  l.Occlusion + o.Occlusion,
	}
}

func (l Lighting) Scale(f float32) Lighting {
	return Lighting{
		Irradiance: l.Irradiance.Scale(f),
		SH:         l.SH.Scale(f),
		Occlusion:  l.Occlusion * f,
	}
}

func (l Lighting) Luminance() float32 {
	return l.Irradiance.Luminance()
}

// AddSample adds light arriving along dir, a unit vector pointing away from
// the surface. irradiance is the sample's contribution to the irradiance
// estimate and intensity the radiance it projects into the directional term.
func (l Lighting) AddSample(dir math.Vec3, irradiance, intensity math.Color) Lighting {
	l.Irradiance = l.Irradiance.Add(irradiance)
	l.SH = l.SH.AddWeighted(math.SHBasis2(dir), intensity)
	return l
}
