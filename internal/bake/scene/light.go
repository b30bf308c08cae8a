package scene

import (
	"github.com/chewxy/math32"
	"github.com/google/uuid"

	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// LightFlags describe how a light participates in the bake.
type LightFlags uint8

const (
	// CastShadows enables shadow rays towards the light.
	CastShadows LightFlags = 1 << iota
	// StaticLighting bakes the light's direct contribution into lightmaps.
	StaticLighting
	// StaticShadowing stores the light's shadowing in shadow maps instead of
	// baking its direct lighting (stationary lights).
	StaticShadowing
	// DistanceFieldShadows stores shadowing as a signed distance field.
	DistanceFieldShadows
)

// Has reports whether every bit of f2 is set.
func (f LightFlags) Has(f2 LightFlags) bool {
	return f&f2 == f2
}

// Light is a light source as seen by the baker.
type Light interface {
	ID() uuid.UUID
	Name() string
	Flags() LightFlags
	// Incident returns the unit direction from p towards the light, the
	// distance to the light along it, and the unshadowed radiance arriving at
	// p from that direction.
	Incident(p math.Vec3) (dir math.Vec3, dist float32, radiance math.Color)
	// SourceRadius is the emitter size used for penumbra estimates. For
	// directional lights it is the tangent of the half cone angle.
	SourceRadius() float32
	// AffectsBox reports whether any point of b may receive light.
	AffectsBox(b math.Box) bool
}

// LocalLight is a light with a finite position and influence radius.
type LocalLight interface {
	Light
	Position() math.Vec3
	Radius() float32
}

// DirectionalLight is an infinitely distant light such as the sun.
type DirectionalLight struct {
	GUID       uuid.UUID
	LightName  string
	Direction  math.Vec3 // direction the light travels, unit length
	Color      math.Color
	Brightness float32
	// SourceAngle is the angular diameter of the emitter in degrees.
	SourceAngle float32
	LightFlags  LightFlags
}

// DirectionalLightFromAngles builds a sun light from longitude/latitude in
// degrees.
func DirectionalLightFromAngles(name string, longitude, latitude float32, color math.Color, brightness float32) *DirectionalLight {
	return &DirectionalLight{
		GUID:        ObjectGUID("light", name),
		LightName:   name,
		Direction:   math.SunDirection(longitude, latitude).Neg(),
		Color:       color,
		Brightness:  brightness,
		SourceAngle: 1,
		LightFlags:  CastShadows | StaticLighting,
	}
}

func (l *DirectionalLight) ID() uuid.UUID     { return l.GUID }
func (l *DirectionalLight) Name() string      { return l.LightName }
func (l *DirectionalLight) Flags() LightFlags { return l.LightFlags }

func (l *DirectionalLight) Incident(math.Vec3) (math.Vec3, float32, math.Color) {
	return l.Direction.Normalize().Neg(), math32.MaxFloat32, l.Color.Scale(l.Brightness)
}

func (l *DirectionalLight) SourceRadius() float32 {
	return math32.Tan(math.Radians(l.SourceAngle) / 2)
}

func (l *DirectionalLight) AffectsBox(math.Box) bool { return true }

// PointLight is an omnidirectional light with a finite radius.
type PointLight struct {
	GUID       uuid.UUID
	LightName  string
	Pos        math.Vec3
	Color      math.Color
	Brightness float32
	// AttenuationRadius bounds the light's influence.
	AttenuationRadius float32
	// EmitterRadius is the physical size of the emitter.
	EmitterRadius   float32
	FalloffExponent float32
	LightFlags      LightFlags
}

func (l *PointLight) ID() uuid.UUID         { return l.GUID }
func (l *PointLight) Name() string          { return l.LightName }
func (l *PointLight) Flags() LightFlags     { return l.LightFlags }
func (l *PointLight) Position() math.Vec3   { return l.Pos }
func (l *PointLight) Radius() float32       { return l.AttenuationRadius }
func (l *PointLight) SourceRadius() float32 { return l.EmitterRadius }

func (l *PointLight) Incident(p math.Vec3) (math.Vec3, float32, math.Color) {
	d := l.Pos.Sub(p)
	dist := d.Length()
	if dist <= 0 {
		return math.Vec3{Z: 1}, 0, math.Black
	}
	return d.Scale(1 / dist), dist, l.Color.Scale(l.Brightness * l.falloff(dist))
}

func (l *PointLight) falloff(dist float32) float32 {
	if l.AttenuationRadius <= 0 || dist >= l.AttenuationRadius {
		return 0
	}
	t := 1 - math.Square(dist/l.AttenuationRadius)
	exp := l.FalloffExponent
	if exp <= 0 {
		exp = 2
	}
	return math32.Pow(t, exp)
}

func (l *PointLight) AffectsBox(b math.Box) bool {
	return b.IntersectsSphere(l.Pos, l.AttenuationRadius)
}

// SpotLight is a point light restricted to a cone.
type SpotLight struct {
	PointLight
	Direction math.Vec3 // cone axis, unit length
	// InnerConeAngle and OuterConeAngle are half angles in degrees.
	InnerConeAngle float32
	OuterConeAngle float32
}

func (l *SpotLight) Incident(p math.Vec3) (math.Vec3, float32, math.Color) {
	dir, dist, radiance := l.PointLight.Incident(p)
	return dir, dist, radiance.Scale(l.coneAttenuation(dir.Neg()))
}

func (l *SpotLight) coneAttenuation(toPoint math.Vec3) float32 {
	cosOuter := math32.Cos(math.Radians(l.OuterConeAngle))
	cosInner := math32.Cos(math.Radians(math32.Min(l.InnerConeAngle, l.OuterConeAngle)))
	c := toPoint.Dot(l.Direction.Normalize())
	if cosInner-cosOuter < math.KindaSmall {
		if c >= cosOuter {
			return 1
		}
		return 0
	}
	t := math.Clamp((c-cosOuter)/(cosInner-cosOuter), 0, 1)
	return t * t
}

// SkyLight is uniform distant environment lighting.
type SkyLight struct {
	Color      math.Color
	Brightness float32
	// LowerHemisphereIsBlack removes light arriving from below the horizon.
	LowerHemisphereIsBlack bool
}

// Radiance returns the sky radiance seen along dir.
func (s *SkyLight) Radiance(dir math.Vec3) math.Color {
	if s == nil || (s.LowerHemisphereIsBlack && dir.Z < 0) {
		return math.Black
	}
	return s.Color.Scale(s.Brightness)
}
