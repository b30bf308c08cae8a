package scene

import "github.com/Faultbox/midgard-lightbake/pkg/math"

// NewQuad builds a two-triangle quad centered at center and spanned by the
// half-axes u and v. The normal is u×v and the lightmap UVs cover [0,1]².
func NewQuad(name string, center, u, v math.Vec3, material *Material) *Mesh {
	tx := u.Normalize()
	ty := v.Normalize()
	tz := u.Cross(v).Normalize()
	corner := func(su, sv float32, uv math.Vec2) Vertex {
		return Vertex{
			Position:   center.Add(u.Scale(su)).Add(v.Scale(sv)),
			TangentX:   tx,
			TangentY:   ty,
			TangentZ:   tz,
			TextureUV:  uv,
			LightmapUV: uv,
		}
	}
	vertices := []Vertex{
		corner(-1, -1, math.Vec2{X: 0, Y: 0}),
		corner(1, -1, math.Vec2{X: 1, Y: 0}),
		corner(1, 1, math.Vec2{X: 1, Y: 1}),
		corner(-1, 1, math.Vec2{X: 0, Y: 1}),
	}
	return NewMesh(name, vertices, []uint32{0, 1, 2, 0, 2, 3}, material)
}

// NewBox builds the six faces of a box as separate quads. With inward set the
// faces point into the box, which makes a closed room.
func NewBox(name string, b math.Box, inward bool, material func(face int) *Material) []*Mesh {
	c := b.Center()
	e := b.Extent()
	type face struct {
		suffix string
		normal math.Vec3
		u, v   math.Vec3
	}
	faces := []face{
		{"+x", math.Vec3{X: 1}, math.Vec3{Y: e.Y}, math.Vec3{Z: e.Z}},
		{"-x", math.Vec3{X: -1}, math.Vec3{Z: e.Z}, math.Vec3{Y: e.Y}},
		{"+y", math.Vec3{Y: 1}, math.Vec3{Z: e.Z}, math.Vec3{X: e.X}},
		{"-y", math.Vec3{Y: -1}, math.Vec3{X: e.X}, math.Vec3{Z: e.Z}},
		{"+z", math.Vec3{Z: 1}, math.Vec3{X: e.X}, math.Vec3{Y: e.Y}},
		{"-z", math.Vec3{Z: -1}, math.Vec3{Y: e.Y}, math.Vec3{X: e.X}},
	}
	meshes := make([]*Mesh, 0, len(faces))
	for i, f := range faces {
		offset := f.normal.Mul(e)
		u, v := f.u, f.v
		if inward {
			u, v = v, u
		}
		var m *Material
		if material != nil {
			m = material(i)
		}
		meshes = append(meshes, NewQuad(name+f.suffix, c.Add(offset), u, v, m))
	}
	return meshes
}
