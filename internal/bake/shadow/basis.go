package shadow

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// LightBasis is an orthonormal frame whose Z axis is the direction a
// directional light travels. Light-space Z therefore grows away from the
// light.
type LightBasis struct {
	toWorld mgl32.Mat3
	toLight mgl32.Mat3
}

// NewLightBasis builds the frame for a light travelling along direction.
func NewLightBasis(direction math.Vec3) LightBasis {
	z := direction.Normalize()
	x, y := math.FindBestAxisVectors(z)
	toWorld := mgl32.Mat3FromCols(toMGL(x), toMGL(y), toMGL(z))
	return LightBasis{toWorld: toWorld, toLight: toWorld.Transpose()}
}

// ToLight transforms a world-space point or direction into light space.
func (b LightBasis) ToLight(v math.Vec3) math.Vec3 {
	return fromMGL(b.toLight.Mul3x1(toMGL(v)))
}

// ToWorld transforms a light-space point or direction into world space.
func (b LightBasis) ToWorld(v math.Vec3) math.Vec3 {
	return fromMGL(b.toWorld.Mul3x1(toMGL(v)))
}

// TransformBox returns the light-space bounds of a world-space box.
func (b LightBasis) TransformBox(box math.Box) math.Box {
	out := math.EmptyBox()
	for _, c := range box.Corners() {
		out = out.AddPoint(b.ToLight(c))
	}
	return out
}

func toMGL(v math.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{v.X, v.Y, v.Z}
}

func fromMGL(v mgl32.Vec3) math.Vec3 {
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}
}
