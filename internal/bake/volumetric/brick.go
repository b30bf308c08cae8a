package volumetric

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-lightbake/internal/bake/gather"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// QuantizedSH stores the 8 non-ambient L2 coefficients of each color channel
// relative to the channel's ambient term, mapped to [0, 255].
type QuantizedSH [3][8]uint8

// Brick is one brick of light probes. A brick of size n holds (n+1)^3
// voxels: the last voxel along each axis duplicates the first voxel of the
// neighboring brick so interpolation never reads across bricks.
type Brick struct {
	// IndirectionPosition is the brick's minimum corner in finest-level
	// brick units.
	IndirectionPosition [3]int
	Depth               int
	HasChildren         bool
	Bounds              math.Box

	AverageClosestGeometryDistance float32

	Ambient              []math.Color
	SH                   []QuantizedSH
	SkyBentNormal        [][3]uint8
	DirectionalShadowing []uint8
	// Inside marks voxels whose gather mostly saw backfaces.
	Inside *bitset.BitSet
	// Border marks the duplicated voxels.
	Border *bitset.BitSet
}

// NumVoxels returns the voxel count of the brick.
func (b *Brick) NumVoxels() int { return len(b.Ambient) }

// BuildBrick lights the voxels of n. unit and index identify the brick so its
// random streams do not depend on scheduling.
func (b *Builder) BuildBrick(n node, unit, index int) *Brick {
	size := b.settings.BrickSize + 1
	count := size * size * size
	brick := &Brick{
		IndirectionPosition:  n.position,
		Depth:                n.depth,
		HasChildren:          n.hasChildren,
		Bounds:               n.bounds,
		Ambient:              make([]math.Color, count),
		SH:                   make([]QuantizedSH, count),
		DirectionalShadowing: make([]uint8, count),
		Inside:               bitset.New(uint(count)),
		Border:               bitset.New(uint(count)),
	}
	if b.scene.Sky != nil {
		brick.SkyBentNormal = make([][3]uint8, count)
	}
	voxelSize := n.bounds.Size().Scale(1 / float32(b.settings.BrickSize))
	interior := b.reach
	if b.settings.GatherDistance > 0 {
		interior = math32.Min(b.settings.GatherDistance, b.reach)
	}
	sun := b.shadowingLight()

	var closest float32
	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				i := (z*size+y)*size + x
				pos := n.bounds.Min.Add(voxelSize.Mul(math.Vec3{X: float32(x), Y: float32(y), Z: float32(z)}))
				border := x == size-1 || y == size-1 || z == size-1
				reach := interior
				if border {
					brick.Border.Set(uint(i))
					reach = b.reach
				}

				s := gather.NewStream(seedVoxel, uint64(unit), uint64(index), uint64(i))
				res := b.gatherer.Sphere(pos, reach, s, b.radiance)
				sh := res.SH.Add(b.directLighting(pos))
				brick.Ambient[i], brick.SH[i] = QuantizeSH(sh)
				if res.BackfaceFraction > b.settings.InsideGeometryThreshold {
					brick.Inside.Set(uint(i))
				}
				closest += res.ClosestHit
				if brick.SkyBentNormal != nil {
					brick.SkyBentNormal[i] = quantizeNormal(res.SkyBentNormal)
				}
				if sun != nil && b.visible(pos, sun) {
					brick.DirectionalShadowing[i] = 255
				}
			}
		}
	}
	brick.AverageClosestGeometryDistance = closest / float32(count)
	return brick
}

// directLighting projects the static lighting of every light visible from
// pos onto the L2 basis.
func (b *Builder) directLighting(pos math.Vec3) math.SH3RGB {
	var sh math.SH3RGB
	for _, l := range b.scene.Lights {
		if !l.Flags().Has(scene.StaticLighting) {
			continue
		}
		dir, _, radiance := l.Incident(pos)
		if radiance.IsNearlyBlack() || !b.visible(pos, l) {
			continue
		}
		sh = sh.AddWeighted(math.SHBasis3(dir), radiance)
	}
	return sh
}

// shadowingLight returns the first directional light with static shadowing.
func (b *Builder) shadowingLight() scene.Light {
	for _, l := range b.scene.Lights {
		if _, ok := l.(*scene.DirectionalLight); ok && l.Flags().Has(scene.StaticShadowing) {
			return l
		}
	}
	return nil
}

func (b *Builder) visible(pos math.Vec3, l scene.Light) bool {
	if !l.Flags().Has(scene.CastShadows) {
		return true
	}
	dir, dist, _ := l.Incident(pos)
	dist = math32.Min(dist, b.reach)
	hit := b.gatherer.Tracer.IntersectLightRay(scene.NewLightRay(pos, dir, dist, scene.ShadowCastersOnly))
	return !hit.Hit
}

// QuantizeSH splits sh into its ambient term and the remaining coefficients
// normalized by that term. A black channel stores the neutral value 128.
func QuantizeSH(sh math.SH3RGB) (math.Color, QuantizedSH) {
	ambient := sh.Ambient()
	var q QuantizedSH
	for c := 0; c < 3; c++ {
		coefs := sh.Channel(c)
		amb := coefs[0]
		for k := 0; k < 8; k++ {
			if math32.Abs(amb) < math.Delta {
				q[c][k] = 128
				continue
			}
			v := coefs[k+1] / amb * math.SH3NormalizationScale[k]
			q[c][k] = uint8(math32.Round(math.Clamp(v*0.5+0.5, 0, 1) * 255))
		}
	}
	return ambient, q
}

// Dequantize rebuilds the L2 coefficients from an ambient term.
func (q QuantizedSH) Dequantize(ambient math.Color) math.SH3RGB {
	var sh math.SH3RGB
	channels := [3]*math.SH3{&sh.R, &sh.G, &sh.B}
	for c, coefs := range channels {
		amb := ambient.Channel(c)
		coefs[0] = amb
		for k := 0; k < 8; k++ {
			v := (float32(q[c][k])/255 - 0.5) * 2
			coefs[k+1] = v * amb / math.SH3NormalizationScale[k]
		}
	}
	return sh
}

func quantizeNormal(n math.Vec3) [3]uint8 {
	enc := func(v float32) uint8 {
		return uint8(math32.Round(math.Clamp(v*0.5+0.5, 0, 1) * 255))
	}
	return [3]uint8{enc(n.X), enc(n.Y), enc(n.Z)}
}

// AmbientError returns the root mean square difference of the voxels'
// ambient terms from their average.
func (b *Brick) AmbientError() float32 {
	if len(b.Ambient) == 0 {
		return 0
	}
	var avg math.Color
	for _, c := range b.Ambient {
		avg = avg.Add(c)
	}
	avg = avg.Scale(1 / float32(len(b.Ambient)))
	var sum float32
	for _, c := range b.Ambient {
		sum += c.DistanceSquared(avg)
	}
	return math32.Sqrt(sum / float32(len(b.Ambient)))
}

// ShouldCullBrick reports whether a brick can be dropped in favor of its
// parent. Roots and bricks with children are always kept. A leaf goes when
// all of its voxels are inside geometry or its lighting is flat enough.
func ShouldCullBrick(b *Brick, minError float32) bool {
	if b.Depth == 0 || b.HasChildren {
		return false
	}
	if b.Inside.Count() == uint(b.NumVoxels()) {
		return true
	}
	return b.AmbientError() < minError
}
