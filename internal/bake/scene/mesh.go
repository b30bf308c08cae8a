package scene

import (
	"github.com/chewxy/math32"
	"github.com/google/uuid"

	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// Mesh is a triangle mesh taking part in the bake. Meshes with a Mapping
// receive lightmaps; meshes without one are volume-lit and only occlude.
type Mesh struct {
	GUID      uuid.UUID
	Name      string
	Vertices  []Vertex
	Indices   []uint32
	Materials []*Material
	// TriangleMaterial holds an index into Materials per triangle. Empty means
	// every triangle uses Materials[0].
	TriangleMaterial []int
	CastShadow       bool
	Mapping          *TextureMapping

	bounds math.Box
	index  int
}

// NewMesh creates a mesh with a name-derived GUID.
func NewMesh(name string, vertices []Vertex, indices []uint32, material *Material) *Mesh {
	if material == nil {
		material = DefaultMaterial
	}
	m := &Mesh{
		GUID:       ObjectGUID("mesh", name),
		Name:       name,
		Vertices:   vertices,
		Indices:    indices,
		Materials:  []*Material{material},
		CastShadow: true,
	}
	m.UpdateBounds()
	return m
}

// ObjectGUID derives a stable GUID for a named scene object so repeated
// bakes report diagnostics under the same key.
func ObjectGUID(kind, name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(kind+"/"+name))
}

// UpdateBounds recomputes the cached bounds after the vertices changed.
func (m *Mesh) UpdateBounds() {
	b := math.EmptyBox()
	for _, v := range m.Vertices {
		b = b.AddPoint(v.Position)
	}
	m.bounds = b
}

// Bounds returns the world-space bounds.
func (m *Mesh) Bounds() math.Box {
	return m.bounds
}

// Index returns the mesh position in its scene.
func (m *Mesh) Index() int {
	return m.index
}

// NumTriangles returns the triangle count.
func (m *Mesh) NumTriangles() int {
	return len(m.Indices) / 3
}

// Triangle returns the vertices of triangle i.
func (m *Mesh) Triangle(i int) (Vertex, Vertex, Vertex) {
	return m.Vertices[m.Indices[3*i]], m.Vertices[m.Indices[3*i+1]], m.Vertices[m.Indices[3*i+2]]
}

// MaterialOf returns the material of triangle i.
func (m *Mesh) MaterialOf(i int) *Material {
	if len(m.Materials) == 0 {
		return DefaultMaterial
	}
	if i < len(m.TriangleMaterial) {
		if idx := m.TriangleMaterial[i]; idx >= 0 && idx < len(m.Materials) {
			return m.Materials[idx]
		}
	}
	return m.Materials[0]
}

// TriangleNormal returns the unnormalized geometric normal of triangle i.
func (m *Mesh) TriangleNormal(i int) math.Vec3 {
	v0, v1, v2 := m.Triangle(i)
	return v1.Position.Sub(v0.Position).Cross(v2.Position.Sub(v0.Position))
}

// TriangleAreas returns the world-space and lightmap-UV-space areas of
// triangle i.
func (m *Mesh) TriangleAreas(i int) (world, lightmap float32) {
	v0, v1, v2 := m.Triangle(i)
	world = 0.5 * v1.Position.Sub(v0.Position).Cross(v2.Position.Sub(v0.Position)).Length()
	lightmap = 0.5 * math32.Abs(v1.LightmapUV.Sub(v0.LightmapUV).Cross(v2.LightmapUV.Sub(v0.LightmapUV)))
	return world, lightmap
}

// TextureMapping is one lightmapped UV chart: a mesh together with the size
// of its texel grid.
type TextureMapping struct {
	GUID uuid.UUID
	Mesh *Mesh
	// SizeX and SizeY include the padding border when Padded is set.
	SizeX, SizeY int
	Padded       bool

	index int
}

// NewTextureMapping attaches a lightmap of the given size to the mesh.
func NewTextureMapping(mesh *Mesh, sizeX, sizeY int, padded bool) *TextureMapping {
	tm := &TextureMapping{
		GUID:   ObjectGUID("mapping", mesh.Name),
		Mesh:   mesh,
		SizeX:  sizeX,
		SizeY:  sizeY,
		Padded: padded,
	}
	mesh.Mapping = tm
	return tm
}

// Index returns the mapping position in its scene.
func (tm *TextureMapping) Index() int {
	return tm.index
}

// CachedSize returns the size of the lit area, excluding padding.
func (tm *TextureMapping) CachedSize() (int, int) {
	if tm.Padded {
		return tm.SizeX - 2, tm.SizeY - 2
	}
	return tm.SizeX, tm.SizeY
}

// SurfaceCacheSize returns the radiosity surface cache size for the given
// downsample factor. Surface caches are never smaller than 6 texels.
func (tm *TextureMapping) SurfaceCacheSize(downsample int) (int, int) {
	if downsample < 1 {
		downsample = 1
	}
	cx, cy := tm.CachedSize()
	return max(cx/downsample, 6), max(cy/downsample, 6)
}

// SurfaceCacheIndex maps a lightmap UV to a texel of a surface cache of the
// given size.
func SurfaceCacheIndex(uv math.Vec2, sizeX, sizeY int) int {
	x := math.ClampInt(int(uv.X*float32(sizeX)), 0, sizeX-1)
	y := math.ClampInt(int(uv.Y*float32(sizeY)), 0, sizeY-1)
	return y*sizeX + x
}
