package shadow

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/internal/bake/texel"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// depthMap is a light-space depth map over the influence bounds of one
// mapping. Depths are measured along the light from start.
type depthMap struct {
	sizeX, sizeY int
	bounds       math.Box
	start        float32
	cellX, cellY float32
	depth        []float32
}

func (d *depthMap) at(x, y int) float32 {
	return d.depth[y*d.sizeX+x]
}

// depthMapSize returns the resolution for light-space bounds, keeping the
// aspect ratio when the sample budget is exceeded.
func (b *Builder) depthMapSize(bounds math.Box) (int, int) {
	ext := bounds.Extent()
	mtd := b.Settings.MaxTransitionDistance
	sx := int(math32.Trunc(math32.Max(ext.X*2*100/mtd, 4)))
	sy := int(math32.Trunc(math32.Max(ext.Y*2*100/mtd, 4)))
	budget := b.Settings.MaxDepthMapSamples
	if budget > 0 && sx*sy > budget {
		aspect := float32(sx) / float32(sy)
		sy = max(int(math32.Trunc(math32.Sqrt(float32(budget)/aspect))), 1)
		sx = max(budget/sy, 1)
	}
	return sx, sy
}

func (b *Builder) renderDepthMap(basis LightBasis, bounds math.Box) *depthMap {
	sx, sy := b.depthMapSize(bounds)
	reach := b.SceneBounds.Radius() * 2
	d := &depthMap{
		sizeX:  sx,
		sizeY:  sy,
		bounds: bounds,
		start:  bounds.Max.Z - reach,
		cellX:  (bounds.Max.X - bounds.Min.X) / float32(sx),
		cellY:  (bounds.Max.Y - bounds.Min.Y) / float32(sy),
		depth:  make([]float32, sx*sy),
	}
	for y := 0; y < sy; y++ {
		fy := (float32(y) + 0.5) / float32(sy)
		for x := 0; x < sx; x++ {
			fx := (float32(x) + 0.5) / float32(sx)
			end := math.Vec3{
				X: bounds.Min.X + fx*(bounds.Max.X-bounds.Min.X),
				Y: bounds.Min.Y + fy*(bounds.Max.Y-bounds.Min.Y),
				Z: bounds.Max.Z,
			}
			start := end
			start.Z = d.start
			ray := scene.LightRay{
				Start: basis.ToWorld(start),
				End:   basis.ToWorld(end),
				Flags: scene.ShadowCastersOnly | scene.FindClosest,
			}
			depth := reach
			if hit := b.Direct.Tracer.IntersectLightRay(ray); hit.Hit {
				depth = hit.Distance
			}
			d.depth[y*sx+x] = depth
		}
	}
	return d
}

// tangent returns tan(asin(s)), saturating for near-grazing slopes.
func tangent(s float32) float32 {
	return s / math32.Sqrt(math32.Max(1-s*s, math.KindaSmall))
}

// BuildLightSpace reconstructs the distance field shadow of a directional
// light on the texels of m from a depth map rendered along the light over the
// mesh bounds expanded by MaxTransitionDistance. Each texel compares against
// its depth map cell with a slope-scaled and a constant bias, then searches
// the cells within MaxTransitionDistance for the nearest change of
// visibility. Lights that do not cast shadows have no light-space map and
// return nil, as do maps dropped because too few texels are lit.
func (b *Builder) BuildLightSpace(mesh *scene.Mesh, m *texel.Map, light *scene.DirectionalLight) *DistanceFieldMap {
	if !light.Flags().Has(scene.CastShadows) {
		return nil
	}
	mtd := b.Settings.MaxTransitionDistance
	basis := NewLightBasis(light.Direction)
	bounds := basis.TransformBox(mesh.Bounds().ExpandBy(mtd))
	dm := b.renderDepthMap(basis, bounds)

	size := bounds.Size()
	radiusX := int(math32.Trunc(float32(dm.sizeX) * mtd / size.X))
	radiusY := int(math32.Trunc(float32(dm.sizeY) * mtd / size.Y))
	bias := math32.Max(dm.cellX, dm.cellY)

	out := newDistanceFieldMap(light, m.SizeX, m.SizeY)
	var mapped, unoccluded int
	for y := 0; y < m.SizeY; y++ {
		for x := 0; x < m.SizeX; x++ {
			t := m.At(x, y)
			if !t.Mapped() {
				continue
			}
			pos := basis.ToLight(t.WorldPosition)
			normal := basis.ToLight(t.WorldTangentZ)
			tanX, tanY := tangent(normal.X), tangent(normal.Y)
			surface := pos.Z - dm.start

			cx := math.ClampInt(int(math32.Trunc((pos.X-bounds.Min.X)/dm.cellX)), 0, dm.sizeX-1)
			cy := math.ClampInt(int(math32.Trunc((pos.Y-bounds.Min.Y)/dm.cellY)), 0, dm.sizeY-1)
			cellDepth := dm.at(cx, cy)
			slopeBias := 4 * math32.Max(dm.cellX*math32.Abs(tanX), dm.cellY*math32.Abs(tanY))
			lit := cellDepth > surface-slopeBias-bias
			mapped++
			if lit {
				unoccluded++
			}

			closest := mtd
			bestShadowing := float32(1)
			sample := Sample{Mapped: true, Distance: 1, PenumbraSize: 1}

			for sy := max(cy-radiusY, 0); sy < min(cy+radiusY, dm.sizeY); sy++ {
				for sx := max(cx-radiusX, 0); sx < min(cx+radiusX, dm.sizeX); sx++ {
					ox := float32(sx-cx) * dm.cellX
					oy := float32(sy-cy) * dm.cellY
					searchDepth := dm.at(sx, sy)
					dist := math32.Sqrt(ox*ox + oy*oy)
					extrapolated := surface + ox*tanX + oy*tanY
					// The distance term keeps a tilted receiver from shadowing itself.
					searchLit := searchDepth > extrapolated-slopeBias-bias-dist
					if searchLit == lit {
						continue
					}
					if !lit {
						closest = math32.Min(closest, dist)
						continue
					}
					// Keep the neighbor that darkens this texel the most once
					// its penumbra is taken into account.
					encoded := b.encodeDistance(dist, true)
					penumbra := b.encodePenumbra(penumbraSize(light, surface-searchDepth, searchDepth))
					shadowing := math.Clamp(encoded/penumbra-0.5/penumbra+0.5, 0, 1)
					if shadowing < bestShadowing {
						bestShadowing = shadowing
						sample.Distance = encoded
						sample.PenumbraSize = penumbra
					}
				}
			}
			if !lit {
				sample.Distance = b.encodeDistance(closest, false)
				sample.PenumbraSize = b.encodePenumbra(penumbraSize(light, surface-cellDepth, cellDepth))
			}
			*out.At(x, y) = sample
		}
	}
	if !b.keep(unoccluded, mapped) {
		return nil
	}
	return out
}
