package scene

import "github.com/Faultbox/midgard-lightbake/pkg/math"

// Vertex is a mesh vertex with a full tangent frame. TangentZ is the shading
// normal.
type Vertex struct {
	Position   math.Vec3
	TangentX   math.Vec3
	TangentY   math.Vec3
	TangentZ   math.Vec3
	TextureUV  math.Vec2
	LightmapUV math.Vec2
}

// Add returns the component-wise sum, which lets vertices be interpolated by
// the rasterizer.
func (v Vertex) Add(o Vertex) Vertex {
	return Vertex{
		Position:   v.Position.Add(o.Position),
		TangentX:   v.TangentX.Add(o.TangentX),
		TangentY:   v.TangentY.Add(o.TangentY),
		TangentZ:   v.TangentZ.Add(o.TangentZ),
		TextureUV:  v.TextureUV.Add(o.TextureUV),
		LightmapUV: v.LightmapUV.Add(o.LightmapUV),
	}
}

// Sub returns the component-wise difference.
func (v Vertex) Sub(o Vertex) Vertex {
	return Vertex{
		Position:   v.Position.Sub(o.Position),
		TangentX:   v.TangentX.Sub(o.TangentX),
		TangentY:   v.TangentY.Sub(o.TangentY),
		TangentZ:   v.TangentZ.Sub(o.TangentZ),
		TextureUV:  v.TextureUV.Sub(o.TextureUV),
		LightmapUV: v.LightmapUV.Sub(o.LightmapUV),
	}
}

// Scale multiplies every component by s.
func (v Vertex) Scale(s float32) Vertex {
	return Vertex{
		Position:   v.Position.Scale(s),
		TangentX:   v.TangentX.Scale(s),
		TangentY:   v.TangentY.Scale(s),
		TangentZ:   v.TangentZ.Scale(s),
		TextureUV:  v.TextureUV.Scale(s),
		LightmapUV: v.LightmapUV.Scale(s),
	}
}

// SurfacePoint is a shading point on a mapping: a texel center or a cache
// record location.
type SurfacePoint struct {
	Position       math.Vec3
	TangentX       math.Vec3
	TangentY       math.Vec3
	Normal         math.Vec3
	TriangleNormal math.Vec3
	TexelRadius    float32
	Material       *Material
	LightmapUV     math.Vec2
}

// ToWorld transforms a tangent-space direction into world space.
func (p SurfacePoint) ToWorld(d math.Vec3) math.Vec3 {
	return p.TangentX.Scale(d.X).Add(p.TangentY.Scale(d.Y)).Add(p.Normal.Scale(d.Z))
}

// Flipped returns the point seen from its back side, used for two-sided
// surfaces.
func (p SurfacePoint) Flipped() SurfacePoint {
	p.Normal = p.Normal.Neg()
	p.TriangleNormal = p.TriangleNormal.Neg()
	p.TangentY = p.TangentY.Neg()
	return p
}
