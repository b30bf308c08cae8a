package scene

import "github.com/Faultbox/midgard-lightbake/pkg/math"

// Landscape is a regular heightfield laid out on the XY plane. Heights are
// stored per grid corner, row-major with (CellsX+1) corners per row.
type Landscape struct {
	Name     string
	Origin   math.Vec3
	CellSize float32
	CellsX   int
	CellsY   int
	Heights  []float32
}

// Corner returns the world position of grid corner (x, y).
func (l *Landscape) Corner(x, y int) math.Vec3 {
	return math.Vec3{
		X: l.Origin.X + float32(x)*l.CellSize,
		Y: l.Origin.Y + float32(y)*l.CellSize,
		Z: l.Origin.Z + l.Heights[y*(l.CellsX+1)+x],
	}
}

// HeightAt returns the bilinearly interpolated height at a world XY
// position, clamped to the landscape edges.
func (l *Landscape) HeightAt(wx, wy float32) float32 {
	fx := (wx - l.Origin.X) / l.CellSize
	fy := (wy - l.Origin.Y) / l.CellSize
	cx := math.ClampInt(int(fx), 0, l.CellsX-1)
	cy := math.ClampInt(int(fy), 0, l.CellsY-1)
	tx := math.Clamp(fx-float32(cx), 0, 1)
	ty := math.Clamp(fy-float32(cy), 0, 1)

	h00 := l.Corner(cx, cy).Z
	h10 := l.Corner(cx+1, cy).Z
	h01 := l.Corner(cx, cy+1).Z
	h11 := l.Corner(cx+1, cy+1).Z
	south := h00*(1-tx) + h10*tx
	north := h01*(1-tx) + h11*tx
	return south*(1-ty) + north*ty
}

// Triangles returns the two triangles of every cell, split along the
// diagonal from the lower-left to the upper-right corner.
func (l *Landscape) Triangles() [][3]math.Vec3 {
	out := make([][3]math.Vec3, 0, 2*l.CellsX*l.CellsY)
	for y := 0; y < l.CellsY; y++ {
		for x := 0; x < l.CellsX; x++ {
			c00, c10 := l.Corner(x, y), l.Corner(x+1, y)
			c01, c11 := l.Corner(x, y+1), l.Corner(x+1, y+1)
			out = append(out, [3]math.Vec3{c00, c10, c11}, [3]math.Vec3{c00, c11, c01})
		}
	}
	return out
}

// Bounds returns the world bounds of the heightfield.
func (l *Landscape) Bounds() math.Box {
	b := math.EmptyBox()
	for y := 0; y <= l.CellsY; y++ {
		for x := 0; x <= l.CellsX; x++ {
			b = b.AddPoint(l.Corner(x, y))
		}
	}
	return b
}

// BuildMesh turns the heightfield into a lightmappable mesh. Lightmap UVs
// span the whole landscape.
func (l *Landscape) BuildMesh(material *Material) *Mesh {
	var vertices []Vertex
	w := l.CellsX + 1
	for y := 0; y <= l.CellsY; y++ {
		for x := 0; x <= l.CellsX; x++ {
			// Central differences give the normal.
			hl := l.Corner(max(x-1, 0), y).Z
			hr := l.Corner(min(x+1, l.CellsX), y).Z
			hd := l.Corner(x, max(y-1, 0)).Z
			hu := l.Corner(x, min(y+1, l.CellsY)).Z
			dx := float32(min(x+1, l.CellsX)-max(x-1, 0)) * l.CellSize
			dy := float32(min(y+1, l.CellsY)-max(y-1, 0)) * l.CellSize
			tx := math.Vec3{X: dx, Z: hr - hl}.Normalize()
			ty := math.Vec3{Y: dy, Z: hu - hd}.Normalize()
			tz := tx.Cross(ty).Normalize()
			uv := math.Vec2{X: float32(x) / float32(l.CellsX), Y: float32(y) / float32(l.CellsY)}
			vertices = append(vertices, Vertex{
				Position:   l.Corner(x, y),
				TangentX:   tx,
				TangentY:   tz.Cross(tx),
				TangentZ:   tz,
				TextureUV:  uv,
				LightmapUV: uv,
			})
		}
	}
	var indices []uint32
	for y := 0; y < l.CellsY; y++ {
		for x := 0; x < l.CellsX; x++ {
			i00 := uint32(y*w + x)
			i10 := i00 + 1
			i01 := i00 + uint32(w)
			i11 := i01 + 1
			indices = append(indices, i00, i10, i11, i00, i11, i01)
		}
	}
	return NewMesh(l.Name, vertices, indices, material)
}
