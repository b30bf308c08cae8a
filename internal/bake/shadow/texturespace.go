package shadow

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-lightbake/internal/bake/raster"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/internal/bake/texel"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// coarseSample is the first, one ray per texel visibility pass.
type coarseSample struct {
	position math.Vec3
	normal   math.Vec3
	mapped   bool
	visible  bool
}

// fineSample is one sub-texel of a texel next to a shadow transition.
type fineSample struct {
	position math.Vec3
	normal   math.Vec3
	material *scene.Material
	mapped   bool
	visible  bool
	// occluder is the distance from the sample to the first occluder.
	occluder float32
}

var neighbors = [4][2]int{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}

// UpsampleFactor returns the odd sub-texel resolution used around shadow
// transitions, derived from the mesh's average texel density so that roughly
// HighResTexelsPerTransition sub-texels cover MaxTransitionDistance.
func (b *Builder) UpsampleFactor(mesh *scene.Mesh, sizeX, sizeY int) int {
	var density float32
	n := 0
	for tri := 0; tri < mesh.NumTriangles(); tri++ {
		world, uv := mesh.TriangleAreas(tri)
		if world <= math.Delta {
			continue
		}
		// Density is measured against the parallelogram spanned by the
		// triangle's UVs, twice its lightmap area.
		density += 2 * uv * float32(sizeX*sizeY) / world
		n++
	}
	if n == 0 || density <= math.Delta {
		return 1
	}
	texelsPerUnit := math32.Sqrt(2 * density / float32(n))
	target := int(math32.Trunc(b.Settings.HighResTexelsPerTransition / (texelsPerUnit * b.Settings.MaxTransitionDistance)))
	return math.ClampInt(target-target%2+1, b.Settings.MinUpsampleFactor, maxUpsampleFactor)
}

// BuildTextureSpace reconstructs the distance field shadow of light on the
// texels of m, the texel map of mesh. Texels next to a coarse visibility
// change are resampled on a dense sub-grid, and every shadowed sub-sample
// touching a lit one scatters its distance to all texels within
// MaxTransitionDistance, which keep the closest transition. It returns nil
// when the discard policy drops the map.
func (b *Builder) BuildTextureSpace(mesh *scene.Mesh, m *texel.Map, light scene.Light) *DistanceFieldMap {
	up := b.UpsampleFactor(mesh, m.SizeX, m.SizeY)
	coarse, keep := b.coarsePass(m, light)
	if !keep {
		return nil
	}

	out := newDistanceFieldMap(light, m.SizeX, m.SizeY)
	refine := bitset.New(uint(len(m.Texels)))
	for y := 0; y < m.SizeY; y++ {
		for x := 0; x < m.SizeX; x++ {
			i := y*m.SizeX + x
			c := &coarse[i]
			if !c.mapped {
				continue
			}
			s := out.At(x, y)
			s.Mapped = true
			s.PenumbraSize = 1
			if c.visible {
				s.Distance = 1
			}
			for _, d := range neighbors {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= m.SizeX || ny >= m.SizeY {
					continue
				}
				if n := &coarse[ny*m.SizeX+nx]; n.mapped && n.visible != c.visible {
					refine.Set(uint(i))
					break
				}
			}
		}
	}

	fine := b.rasterizeFine(mesh, m, up, refine)
	b.traceFine(m, light, up, refine, fine)
	b.scatter(m, light, up, coarse, refine, fine, out)
	return out
}

func (b *Builder) coarsePass(m *texel.Map, light scene.Light) ([]coarseSample, bool) {
	coarse := make([]coarseSample, len(m.Texels))
	mapped, unoccluded := 0, 0
	for i := range m.Texels {
		t := &m.Texels[i]
		if !t.Mapped() {
			continue
		}
		mapped++
		if !affects(light, t.WorldPosition) {
			continue
		}
		c := &coarse[i]
		c.position = t.WorldPosition
		c.normal = t.WorldTangentZ
		c.mapped = true
		if visible, _ := b.Direct.Visibility(t.SurfacePoint(), light); visible {
			c.visible = true
			unoccluded++
		}
	}
	return coarse, b.keep(unoccluded, mapped)
}

type finePolicy struct {
	fine     [][]fineSample
	up       int
	coarseX  int
	sizeX    int
	sizeY    int
	material *scene.Material
}

func (p *finePolicy) Bounds() (int, int, int, int) { return 0, 0, p.sizeX - 1, p.sizeY - 1 }

func (p *finePolicy) Process(x, y int, v scene.Vertex, _ bool) {
	cell := p.fine[(y/p.up)*p.coarseX+x/p.up]
	if cell == nil {
		return
	}
	s := &cell[(y%p.up)*p.up+x%p.up]
	s.mapped = true
	s.position = v.Position
	s.normal = v.TangentZ.SafeNormalize()
	s.material = p.material
}

// fineCorners places the four corner sub-samples: lower-left, lower-right,
// upper-left, upper-right.
func fineCorners(up int) [4]int {
	return [4]int{0, up - 1, (up - 1) * up, up*up - 1}
}

// rasterizeFine rasterizes the mesh at up times the texel resolution into the
// sub-grids of the texels marked in refine. Sub-grids no triangle reaches
// fall back to the texel's valid corners.
func (b *Builder) rasterizeFine(mesh *scene.Mesh, m *texel.Map, up int, refine *bitset.BitSet) [][]fineSample {
	fine := make([][]fineSample, len(m.Texels))
	for i, ok := refine.NextSet(0); ok; i, ok = refine.NextSet(i + 1) {
		fine[i] = make([]fineSample, up*up)
	}

	p := &finePolicy{fine: fine, up: up, coarseX: m.SizeX, sizeX: m.SizeX * up, sizeY: m.SizeY * up}
	scale := math.Vec2{X: float32(p.sizeX), Y: float32(p.sizeY)}
	center := math.Vec2{X: -0.5, Y: -0.5}
	for tri := 0; tri < mesh.NumTriangles(); tri++ {
		if mesh.TriangleNormal(tri).SafeNormalize() == (math.Vec3{}) {
			continue
		}
		p.material = mesh.MaterialOf(tri)
		v0, v1, v2 := mesh.Triangle(tri)
		raster.DrawTriangle[scene.Vertex](p, v0, v1, v2,
			v0.LightmapUV.Mul(scale).Add(center),
			v1.LightmapUV.Mul(scale).Add(center),
			v2.LightmapUV.Mul(scale).Add(center),
			false)
	}

	var corners []texel.CornerInfo
	for i, ok := refine.NextSet(0); ok; i, ok = refine.NextSet(i + 1) {
		cell := fine[i]
		if anyMapped(cell) {
			continue
		}
		if corners == nil {
			corners = texel.CalculateTexelCorners(mesh, m.SizeX, m.SizeY)
		}
		c := &corners[i]
		for k, idx := range fineCorners(up) {
			if !c.Corners[k].Valid {
				continue
			}
			cell[idx] = fineSample{
				position: c.Corners[k].Position,
				normal:   c.TangentZ,
				material: c.Material,
				mapped:   true,
			}
		}
	}
	return fine
}

func anyMapped(cell []fineSample) bool {
	for i := range cell {
		if cell[i].mapped {
			return true
		}
	}
	return false
}

func (b *Builder) traceFine(m *texel.Map, light scene.Light, up int, refine *bitset.BitSet, fine [][]fineSample) {
	for i, ok := refine.NextSet(0); ok; i, ok = refine.NextSet(i + 1) {
		radius := m.Texels[i].TexelRadius
		for k := range fine[i] {
			s := &fine[i][k]
			if !s.mapped || !affects(light, s.position) {
				continue
			}
			p := scene.SurfacePoint{
				Position:       s.position,
				Normal:         s.normal,
				TriangleNormal: s.normal,
				TexelRadius:    radius,
				Material:       s.material,
			}
			s.visible, s.occluder = b.Direct.Visibility(p, light)
		}
	}
}

// fineAt returns the visibility of the sub-sample at global sub-grid
// coordinates, falling back to the coarse sample for texels without a
// sub-grid.
func fineAt(m *texel.Map, up int, coarse []coarseSample, fine [][]fineSample, hx, hy int) (mapped, visible bool) {
	if hx < 0 || hy < 0 || hx >= m.SizeX*up || hy >= m.SizeY*up {
		return false, false
	}
	i := (hy/up)*m.SizeX + hx/up
	if cell := fine[i]; cell != nil {
		s := &cell[(hy%up)*up+hx%up]
		return s.mapped, s.visible
	}
	return coarse[i].mapped, coarse[i].visible
}

// subTexelSize measures the world-space size of one sub-texel at (sx, sy)
// along X and Y from its mapped neighbors in the same texel.
func subTexelSize(cell []fineSample, up, sx, sy int) (float32, float32) {
	inf := float32(math32.MaxFloat32)
	wx, wy := inf, inf
	here := cell[sy*up+sx].position
	for k, d := range neighbors {
		nx, ny := sx+d[0], sy+d[1]
		if nx < 0 || ny < 0 || nx >= up || ny >= up {
			continue
		}
		n := &cell[ny*up+nx]
		if !n.mapped {
			continue
		}
		if k >= 2 {
			wx = math32.Min(wx, n.position.Distance(here))
		} else {
			wy = math32.Min(wy, n.position.Distance(here))
		}
	}
	switch {
	case wx == inf && wy == inf:
		return 1, 1
	case wx == inf:
		wx = wy
	case wy == inf:
		wy = wx
	}
	return math32.Max(wx, math.KindaSmall), math32.Max(wy, math.KindaSmall)
}

// scatterPoint returns the position and region a transition scatters
// against in texel i: the centre sub-sample, the mapped sub-sample nearest
// the centre, or the coarse sample.
func scatterPoint(c *coarseSample, cell []fineSample, up int) (math.Vec3, bool) {
	if cell != nil {
		mid := up / 2
		if s := &cell[mid*up+mid]; s.mapped {
			return s.position, s.visible
		}
		best := -1
		bestDist := up * up * 2
		for sy := 0; sy < up; sy++ {
			for sx := 0; sx < up; sx++ {
				d := (sx-mid)*(sx-mid) + (sy-mid)*(sy-mid)
				if cell[sy*up+sx].mapped && d < bestDist {
					best, bestDist = sy*up+sx, d
				}
			}
		}
		if best >= 0 {
			return cell[best].position, cell[best].visible
		}
	}
	return c.position, c.visible
}

func (b *Builder) scatter(m *texel.Map, light scene.Light, up int, coarse []coarseSample, refine *bitset.BitSet, fine [][]fineSample, out *DistanceFieldMap) {
	const maxScatter = 100
	mtd := b.Settings.MaxTransitionDistance
	for i, ok := refine.NextSet(0); ok; i, ok = refine.NextSet(i + 1) {
		lx, ly := int(i)%m.SizeX, int(i)/m.SizeX
		cell := fine[i]
		for sy := 0; sy < up; sy++ {
			for sx := 0; sx < up; sx++ {
				s := &cell[sy*up+sx]
				if !s.mapped || s.visible {
					continue
				}
				transition := false
				for _, d := range neighbors {
					if mapped, visible := fineAt(m, up, coarse, fine, lx*up+sx+d[0], ly*up+sy+d[1]); mapped && visible {
						transition = true
						break
					}
				}
				if !transition {
					continue
				}

				wx, wy := subTexelSize(cell, up, sx, sy)
				rx := min(int(math32.Trunc(mtd/(wx*float32(up))))+1, maxScatter)
				ry := min(int(math32.Trunc(mtd/(wy*float32(up))))+1, maxScatter)
				for ty := max(ly-ry, 0); ty <= min(ly+ry, m.SizeY-1); ty++ {
					for tx := max(lx-rx, 0); tx <= min(lx+rx, m.SizeX-1); tx++ {
						j := ty*m.SizeX + tx
						if !coarse[j].mapped {
							continue
						}
						pos, lit := scatterPoint(&coarse[j], fine[j], up)
						dist := pos.Distance(s.position)
						target := out.At(tx, ty)
						if math.Clamp(dist/mtd, 0, 1)*0.5 >= math32.Abs(target.Distance-0.5) {
							continue
						}
						target.Distance = b.encodeDistance(dist, lit)
						_, toLight, _ := light.Incident(pos)
						target.PenumbraSize = b.encodePenumbra(penumbraSize(light, s.occluder, toLight-s.occluder))
					}
				}
			}
		}
	}
}
