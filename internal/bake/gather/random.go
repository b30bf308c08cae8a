// Package gather shoots the rays every lighting phase is built from: final
// gather hemispheres, full-sphere probes and direct light visibility.
package gather

import (
	"math/rand/v2"

	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// Stream is a deterministic random stream. Streams are seeded from the work
// item they serve so results do not depend on which worker runs the item.
type Stream struct {
	rng *rand.Rand
}

// NewStream returns a stream seeded from the given keys.
func NewStream(keys ...uint64) *Stream {
	var a, b uint64 = 0x9e3779b97f4a7c15, 0xbf58476d1ce4e5b9
	for _, k := range keys {
		a = splitmix(a ^ k)
		b = splitmix(b + a)
	}
	return &Stream{rng: rand.New(rand.NewPCG(a, b))}
}

// Float returns a uniform value in [0, 1).
func (s *Stream) Float() float32 {
	return s.rng.Float32()
}

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// Strata splits n samples into a rows x cols grid with rows*cols >= n.
func Strata(n int) (rows, cols int) {
	if n < 1 {
		n = 1
	}
	rows = max(int(math32.Sqrt(float32(n))), 1)
	cols = (n + rows - 1) / rows
	return rows, cols
}

// CosineHemisphere returns stratified, cosine-weighted directions in tangent
// space (Z is the surface normal). The pdf of each direction is cos/pi.
func CosineHemisphere(rows, cols int, s *Stream) []math.Vec3 {
	dirs := make([]math.Vec3, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			u1 := (float32(i) + s.Float()) / float32(rows)
			u2 := (float32(j) + s.Float()) / float32(cols)
			r := math32.Sqrt(u1)
			phi := 2 * math.Pi * u2
			sin, cos := math32.Sincos(phi)
			dirs = append(dirs, math.Vec3{X: r * cos, Y: r * sin, Z: math32.Sqrt(math32.Max(1-u1, 0))})
		}
	}
	return dirs
}

// UniformSphere returns stratified directions uniformly covering the sphere.
// The pdf of each direction is 1/(4 pi).
func UniformSphere(rows, cols int, s *Stream) []math.Vec3 {
	dirs := make([]math.Vec3, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			z := 1 - 2*(float32(i)+s.Float())/float32(rows)
			r := math32.Sqrt(math32.Max(1-z*z, 0))
			phi := 2 * math.Pi * (float32(j) + s.Float()) / float32(cols)
			sin, cos := math32.Sincos(phi)
			dirs = append(dirs, math.Vec3{X: r * cos, Y: r * sin, Z: z})
		}
	}
	return dirs
}
