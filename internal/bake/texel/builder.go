package texel

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-lightbake/internal/bake/raster"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// Settings control texel-to-vertex map construction.
type Settings struct {
	// UseMaxWeight keeps the position and UVs of the heaviest sub-sample
	// instead of averaging all of them.
	UseMaxWeight bool
	// SmallestTexelRadius bounds the texel radius from below.
	SmallestTexelRadius float32
	// TangentOffsetSampleRadiusScale scales the rays that look for geometry
	// piercing the texel.
	TangentOffsetSampleRadiusScale float32
}

// DefaultSettings returns the stock texel settings.
func DefaultSettings() Settings {
	return Settings{
		UseMaxWeight:                   true,
		SmallestTexelRadius:            0.1,
		TangentOffsetSampleRadiusScale: 0.8,
	}
}

// Builder builds texel-to-vertex maps.
type Builder struct {
	Settings Settings
	// Tracer enables intersecting surface detection when set.
	Tracer scene.Tracer
}

type samplePolicy struct {
	m              *Map
	weight         float32
	triangleNormal math.Vec3
	material       *scene.Material
	maxWeight      bool
}

func (p *samplePolicy) Bounds() (int, int, int, int) { return 0, 0, p.m.SizeX - 1, p.m.SizeY - 1 }

func (p *samplePolicy) Process(x, y int, v scene.Vertex, _ bool) {
	t := p.m.At(x, y)
	w := p.weight
	if p.maxWeight {
		if w > t.MaxSampleWeight {
			t.MaxSampleWeight = w
			t.WorldPosition = v.Position
			t.Material = p.material
			t.TextureUV = v.TextureUV
			t.LightmapUV = v.LightmapUV
		}
		t.WorldTangentX = t.WorldTangentX.Add(v.TangentX.Scale(w))
		t.WorldTangentY = t.WorldTangentY.Add(v.TangentY.Scale(w))
		t.WorldTangentZ = t.WorldTangentZ.Add(v.TangentZ.Scale(w))
		t.TriangleNormal = t.TriangleNormal.Add(p.triangleNormal.Scale(w))
		t.TotalSampleWeight += w
		return
	}

	total := t.TotalSampleWeight + w
	oldW := t.TotalSampleWeight / total
	newW := w / total
	t.WorldPosition = t.WorldPosition.Scale(oldW).Add(v.Position.Scale(newW))
	t.WorldTangentX = t.WorldTangentX.Scale(oldW).Add(v.TangentX.Scale(newW))
	t.WorldTangentY = t.WorldTangentY.Scale(oldW).Add(v.TangentY.Scale(newW))
	t.WorldTangentZ = t.WorldTangentZ.Scale(oldW).Add(v.TangentZ.Scale(newW))
	t.TextureUV = t.TextureUV.Scale(oldW).Add(v.TextureUV.Scale(newW))
	t.LightmapUV = t.LightmapUV.Scale(oldW).Add(v.LightmapUV.Scale(newW))
	t.TriangleNormal = p.triangleNormal
	t.Material = p.material
	t.MaxSampleWeight = math32.Max(t.MaxSampleWeight, w)
	t.TotalSampleWeight = total
}

// Build rasterizes every triangle of the mesh into a sizeX×sizeY grid using
// the given sub-sample pattern and returns the finished map. Degenerate
// triangles are skipped. Texels no sub-sample reaches are placed on the
// nearest valid corner, and every mapped texel ends up with an orthonormal
// right-handed tangent frame.
func (b *Builder) Build(mesh *scene.Mesh, sizeX, sizeY int, sampling Sampling) *Map {
	m := NewMap(sizeX, sizeY)
	corners := CalculateTexelCorners(mesh, sizeX, sizeY)
	samples := subSamples(sampling)
	scale := math.Vec2{X: float32(sizeX), Y: float32(sizeY)}

	for tri := 0; tri < mesh.NumTriangles(); tri++ {
		normal := mesh.TriangleNormal(tri).SafeNormalize()
		if normal == (math.Vec3{}) {
			continue
		}
		v0, v1, v2 := mesh.Triangle(tri)
		for _, s := range samples {
			p := &samplePolicy{
				m:              m,
				weight:         s.weight,
				triangleNormal: normal,
				material:       mesh.MaterialOf(tri),
				maxWeight:      b.Settings.UseMaxWeight,
			}
			raster.DrawTriangle[scene.Vertex](p, v0, v1, v2,
				v0.LightmapUV.Mul(scale).Add(s.offset),
				v1.LightmapUV.Mul(scale).Add(s.offset),
				v2.LightmapUV.Mul(scale).Add(s.offset),
				false)
		}
	}

	for i := range m.Texels {
		t := &m.Texels[i]
		c := &corners[i]
		switch {
		case t.TotalSampleWeight >= math.Delta:
			if b.Settings.UseMaxWeight {
				inv := 1 / t.TotalSampleWeight
				t.WorldTangentX = t.WorldTangentX.Scale(inv)
				t.WorldTangentY = t.WorldTangentY.Scale(inv)
				t.WorldTangentZ = t.WorldTangentZ.Scale(inv)
				t.TriangleNormal = t.TriangleNormal.Scale(inv)
			}
			if (t.WorldTangentX.LengthSquared() < math.KindaSmall ||
				t.WorldTangentZ.LengthSquared() < math.KindaSmall ||
				t.TriangleNormal.LengthSquared() < math.KindaSmall) && c.AnyValid() {
				t.WorldTangentX = c.TangentX
				t.WorldTangentY = c.TangentY
				t.WorldTangentZ = c.TangentZ
				t.TriangleNormal = c.TangentZ
			}
		case c.AnyValid():
			pos, _ := c.FirstValid()
			t.TotalSampleWeight = 1
			t.MaxSampleWeight = 1
			t.WorldPosition = pos
			t.WorldTangentX = c.TangentX
			t.WorldTangentY = c.TangentY
			t.WorldTangentZ = c.TangentZ
			t.TriangleNormal = c.TangentZ
			t.Material = c.Material
			x, y := i%sizeX, i/sizeX
			t.LightmapUV = math.Vec2{X: (float32(x) + 0.5) / float32(sizeX), Y: (float32(y) + 0.5) / float32(sizeY)}
		default:
			*t = TexelToVertex{}
			continue
		}

		if !Orthonormalize(t) {
			*t = TexelToVertex{}
			continue
		}
		t.TexelRadius = texelRadius(t.WorldPosition, c, b.Settings.SmallestTexelRadius)
		if b.Tracer != nil {
			b.detectIntersectingSurface(t)
		}
	}
	return m
}

// Orthonormalize rebuilds the tangent frame of t with Gram-Schmidt. Z keeps
// its direction; Y is flipped if needed so it agrees with the accumulated
// pre-average Y, and X completes a right-handed frame. It reports false when
// no usable normal exists.
func Orthonormalize(t *TexelToVertex) bool {
	z := t.WorldTangentZ.SafeNormalize()
	tn := t.TriangleNormal.SafeNormalize()
	if z == (math.Vec3{}) {
		z = tn
	}
	if z == (math.Vec3{}) {
		return false
	}
	if tn == (math.Vec3{}) {
		tn = z
	}
	origY := t.WorldTangentY

	y := z.Cross(t.WorldTangentX).SafeNormalize()
	if y == (math.Vec3{}) {
		// Tangent X collapsed onto Z; pick any perpendicular axis.
		ax, _ := math.FindBestAxisVectors(z)
		y = z.Cross(ax).Normalize()
	}
	if y.Dot(origY) < 0 {
		y = y.Neg()
	}
	x := y.Cross(z)

	t.WorldTangentX = x
	t.WorldTangentY = y
	t.WorldTangentZ = z
	t.TriangleNormal = tn
	return true
}

func texelRadius(pos math.Vec3, c *CornerInfo, smallest float32) float32 {
	minDistSq := float32(math32.MaxFloat32)
	for _, k := range c.Corners {
		if k.Valid {
			minDistSq = math32.Min(minDistSq, k.Position.DistanceSquared(pos))
		}
	}
	if minDistSq == math32.MaxFloat32 {
		return smallest
	}
	return math32.Max(math32.Sqrt(minDistSq), smallest)
}

// detectIntersectingSurface looks for geometry crossing the texel by tracing
// short rays along the diagonals of its footprint. When such a ray leaves
// through the back of a surface, the texel sits inside that geometry and its
// shading position is moved out past the hit.
func (b *Builder) detectIntersectingSurface(t *TexelToVertex) {
	length := 2 * t.TexelRadius * b.Settings.TangentOffsetSampleRadiusScale
	start := t.WorldPosition.Add(t.TriangleNormal.Scale(math.KindaSmall))
	dirs := [4]math.Vec3{
		t.WorldTangentX.Add(t.WorldTangentY).Normalize(),
		t.WorldTangentX.Sub(t.WorldTangentY).Normalize(),
		t.WorldTangentX.Neg().Add(t.WorldTangentY).Normalize(),
		t.WorldTangentX.Neg().Sub(t.WorldTangentY).Normalize(),
	}
	closest := float32(math32.MaxFloat32)
	var moveTo math.Vec3
	for _, d := range dirs {
		hit := b.Tracer.IntersectLightRay(scene.NewLightRay(start, d, length, scene.FindClosest))
		if !hit.Hit {
			continue
		}
		t.IntersectingSurface = true
		if hit.BackFace && hit.Distance < closest {
			closest = hit.Distance
			moveTo = hit.Position.Add(d.Scale(math.KindaSmall * 10))
		}
	}
	if closest < math32.MaxFloat32 {
		t.WorldPosition = moveTo
	}
}
