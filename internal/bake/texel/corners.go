package texel

import (
	"github.com/Faultbox/midgard-lightbake/internal/bake/raster"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// cornerOffsets move each texel corner onto the rasterizer's sample point:
// lower-left, lower-right, upper-left, upper-right.
var cornerOffsets = [4]math.Vec2{
	{X: 0, Y: 0},
	{X: -1, Y: 0},
	{X: 0, Y: -1},
	{X: -1, Y: -1},
}

// Corner is one rasterized texel corner.
type Corner struct {
	Position math.Vec3
	Valid    bool
}

// CornerInfo is the surface data found at the corners of a texel.
type CornerInfo struct {
	Corners  [4]Corner
	TangentX math.Vec3
	TangentY math.Vec3
	TangentZ math.Vec3
	Material *scene.Material
}

// AnyValid reports whether at least one corner touches a triangle.
func (c *CornerInfo) AnyValid() bool {
	for _, k := range c.Corners {
		if k.Valid {
			return true
		}
	}
	return false
}

// FirstValid returns the first valid corner position.
func (c *CornerInfo) FirstValid() (math.Vec3, bool) {
	for _, k := range c.Corners {
		if k.Valid {
			return k.Position, true
		}
	}
	return math.Vec3{}, false
}

type cornerPolicy struct {
	corners  []CornerInfo
	sizeX    int
	sizeY    int
	index    int
	material *scene.Material
}

func (p *cornerPolicy) Bounds() (int, int, int, int) { return 0, 0, p.sizeX - 1, p.sizeY - 1 }

func (p *cornerPolicy) Process(x, y int, v scene.Vertex, _ bool) {
	info := &p.corners[y*p.sizeX+x]
	info.Corners[p.index] = Corner{Position: v.Position, Valid: true}
	info.TangentX = v.TangentX
	info.TangentY = v.TangentY
	info.TangentZ = v.TangentZ
	info.Material = p.material
}

// CalculateTexelCorners rasterizes every triangle of the mesh four times,
// once per texel corner, so texels that no sub-sample reaches can still be
// placed on the surface.
func CalculateTexelCorners(mesh *scene.Mesh, sizeX, sizeY int) []CornerInfo {
	corners := make([]CornerInfo, sizeX*sizeY)
	scale := math.Vec2{X: float32(sizeX), Y: float32(sizeY)}
	for tri := 0; tri < mesh.NumTriangles(); tri++ {
		if mesh.TriangleNormal(tri).SafeNormalize() == (math.Vec3{}) {
			continue
		}
		v0, v1, v2 := mesh.Triangle(tri)
		for c, off := range cornerOffsets {
			p := &cornerPolicy{corners: corners, sizeX: sizeX, sizeY: sizeY, index: c, material: mesh.MaterialOf(tri)}
			raster.DrawTriangle[scene.Vertex](p, v0, v1, v2,
				v0.LightmapUV.Mul(scale).Add(off),
				v1.LightmapUV.Mul(scale).Add(off),
				v2.LightmapUV.Mul(scale).Add(off),
				false)
		}
	}
	return corners
}
