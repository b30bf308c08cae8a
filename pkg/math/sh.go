package math

// Real spherical harmonic basis constants.
const (
	shBand0  = 0.282095
	shBand1  = 0.488603
	shBand2a = 1.092548
	shBand2b = 0.315392
	shBand2c = 0.546274
)

// SH2 holds the 4 coefficients of a 2-band (L1) spherical harmonic.
type SH2 [4]float32

// SH3 holds the 9 coefficients of a 3-band (L2) spherical harmonic.
type SH3 [9]float32

// SHBasis2 evaluates the L1 basis functions in direction dir (unit length).
func SHBasis2(dir Vec3) SH2 {
	return SH2{shBand0, shBand1 * dir.Y, shBand1 * dir.Z, shBand1 * dir.X}
}

// SHBasis3 evaluates the L2 basis functions in direction dir (unit length).
func SHBasis3(dir Vec3) SH3 {
	return SH3{
		shBand0,
		shBand1 * dir.Y,
		shBand1 * dir.Z,
		shBand1 * dir.X,
		shBand2a * dir.X * dir.Y,
		shBand2a * dir.Y * dir.Z,
		shBand2b * (3*dir.Z*dir.Z - 1),
		shBand2a * dir.X * dir.Z,
		shBand2c * (dir.X*dir.X - dir.Y*dir.Y),
	}
}

// SH3NormalizationScale maps each non-ambient L2 coefficient into the range
// of the ambient coefficient so it can be stored relative to it.
var SH3NormalizationScale = [8]float32{
	shBand0 / shBand1,
	shBand0 / shBand1,
	shBand0 / shBand1,
	shBand0 / shBand2a,
	shBand0 / shBand2a,
	shBand0 / (4 * shBand2b / 3),
	shBand0 / shBand2a,
	shBand0 / (2 * shBand2c / 3),
}

// SH2RGB is an L1 spherical harmonic per color channel.
type SH2RGB struct {
	R, G, B SH2
}

// AddWeighted returns s + basis*c.
func (s SH2RGB) AddWeighted(basis SH2, c Color) SH2RGB {
	for i := range basis {
		s.R[i] += basis[i] * c.R
		s.G[i] += basis[i] * c.G
		s.B[i] += basis[i] * c.B
	}
	return s
}

// Add returns s + other.
func (s SH2RGB) Add(other SH2RGB) SH2RGB {
	for i := range s.R {
		s.R[i] += other.R[i]
		s.G[i] += other.G[i]
		s.B[i] += other.B[i]
	}
	return s
}

// Scale returns s * f.
func (s SH2RGB) Scale(f float32) SH2RGB {
	for i := range s.R {
		s.R[i] *= f
		s.G[i] *= f
		s.B[i] *= f
	}
	return s
}

// Ambient returns the band 0 coefficient of every channel.
func (s SH2RGB) Ambient() Color {
	return Color{s.R[0], s.G[0], s.B[0]}
}

// SH3RGB is an L2 spherical harmonic per color channel.
type SH3RGB struct {
	R, G, B SH3
}

// AddWeighted returns s + basis*c.
func (s SH3RGB) AddWeighted(basis SH3, c Color) SH3RGB {
	for i := range basis {
		s.R[i] += basis[i] * c.R
		s.G[i] += basis[i] * c.G
		s.B[i] += basis[i] * c.B
	}
	return s
}

// Add returns s + other.
func (s SH3RGB) Add(other SH3RGB) SH3RGB {
	for i := range s.R {
		s.R[i] += other.R[i]
		s.G[i] += other.G[i]
		s.B[i] += other.B[i]
	}
	return s
}

// Scale returns s * f.
func (s SH3RGB) Scale(f float32) SH3RGB {
	for i := range s.R {
		s.R[i] *= f
		s.G[i] *= f
		s.B[i] *= f
	}
	return s
}

// Ambient returns the band 0 coefficient of every channel.
func (s SH3RGB) Ambient() Color {
	return Color{s.R[0], s.G[0], s.B[0]}
}

// Channel returns the coefficients of channel i.
func (s SH3RGB) Channel(i int) SH3 {
	switch i {
	case 0:
		return s.R
	case 1:
		return s.G
	default:
		return s.B
	}
}
