// Package volumetric builds the volumetric lightmap: a sparse tree of bricks
// of spherical harmonic light probes filling the important part of the
// scene. Space near geometry and bright local lights is refined up to
// MaxRefinementLevels; bricks that add nothing over their parent are culled.
package volumetric

import (
	"context"
	"time"

	"github.com/chewxy/math32"
	"github.com/dhconnelly/rtreego"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-lightbake/internal/bake/gather"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scheduler"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// Settings control volumetric lightmap construction.
type Settings struct {
	// BrickSize is the number of voxels along each brick axis, and the
	// subdivision factor between tree levels.
	BrickSize           int
	MaxRefinementLevels int
	// DetailCellSize is the voxel size of the finest level.
	DetailCellSize float32
	// Cell expansions are fractions of the voxel size added around a voxel
	// before testing it against surfaces, volume-lit geometry and lights.
	SurfaceCellExpansion float32
	VolumeCellExpansion  float32
	LightCellExpansion   float32
	// MinBrickError culls leaf bricks whose ambient term varies less.
	MinBrickError float32
	// SurfaceLightmapMinTexelsPerVoxelAxis skips lightmapped triangles too
	// coarse to need volumetric detail next to them.
	SurfaceLightmapMinTexelsPerVoxelAxis float32
	LightBrightnessSubdivideThreshold    float32
	CullBricksBelowLandscape             bool
	// InsideGeometryThreshold is the backface hit fraction above which a
	// voxel counts as inside geometry.
	InsideGeometryThreshold float32
	// GatherDistance limits the rays of interior voxels. Zero uses the scene
	// diameter.
	GatherDistance float32
}

// DefaultSettings returns the stock volumetric settings.
func DefaultSettings() Settings {
	return Settings{
		BrickSize:                            4,
		MaxRefinementLevels:                  3,
		DetailCellSize:                       200,
		SurfaceCellExpansion:                 0.1,
		VolumeCellExpansion:                  0.25,
		LightCellExpansion:                   0.1,
		MinBrickError:                        0.01,
		SurfaceLightmapMinTexelsPerVoxelAxis: 1,
		LightBrightnessSubdivideThreshold:    0.3,
		CullBricksBelowLandscape:             true,
		InsideGeometryThreshold:              0.25,
	}
}

const (
	landscapeGrid    = 10
	lightJitterCount = 8
)

// Random stream keys.
const (
	seedVoxel uint64 = iota + 1
	seedLightJitter
)

// Result is a built volumetric lightmap.
type Result struct {
	Bounds              math.Box
	BrickSize           int
	MaxRefinementLevels int
	// RootSize is the world size of a depth 0 brick.
	RootSize float32
	// IndirectionSize is the volume size in finest-level bricks.
	IndirectionSize [3]int
	Bricks          []*Brick
	Culled          int
}

// Builder builds a volumetric lightmap for one scene.
type Builder struct {
	settings Settings
	scene    *scene.Scene
	gatherer *gather.Gatherer
	radiance gather.RadianceFunc
	log      *zap.Logger

	surfaces   *rtreego.Rtree
	landscapes *rtreego.Rtree
	landZ      [2]float32
	lights     []scene.LocalLight

	volume   math.Box
	rootSize float32
	roots    [3]int
	reach    float32
}

// NewBuilder indexes the scene for voxel refinement. radiance shades gather
// rays; misses must return the sky.
func NewBuilder(sc *scene.Scene, settings Settings, gatherer *gather.Gatherer, radiance gather.RadianceFunc, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Builder{
		settings:   settings,
		scene:      sc,
		gatherer:   gatherer,
		radiance:   radiance,
		log:        log,
		surfaces:   newSurfaceIndex(sc),
		landscapes: newLandscapeIndex(sc),
		reach:      math32.Max(sc.Bounds().Size().Length(), 1),
	}
	land := math.EmptyBox()
	for _, l := range sc.Landscapes {
		land = land.Union(l.Bounds())
	}
	b.landZ = [2]float32{land.Min.Z - 1, land.Max.Z + 1}

	for _, l := range sc.Lights {
		local, ok := l.(scene.LocalLight)
		if ok && (l.Flags().Has(scene.StaticLighting) || l.Flags().Has(scene.StaticShadowing)) {
			b.lights = append(b.lights, local)
		}
	}

	b.volume = sc.ImportanceBounds()
	b.rootSize = settings.DetailCellSize * float32(pow(settings.BrickSize, settings.MaxRefinementLevels))
	size := b.volume.Size()
	for axis := 0; axis < 3; axis++ {
		b.roots[axis] = max(int(math32.Ceil(size.Component(axis)/b.rootSize)), 1)
	}
	return b
}

func pow(base, exp int) int {
	out := 1
	for range exp {
		out *= base
	}
	return out
}

// node is one brick of the refinement tree.
type node struct {
	bounds      math.Box
	depth       int
	position    [3]int
	hasChildren bool
}

// Build refines the tree under every root cell and lights its bricks. Each
// root is a unit of work whose bricks become fine-grained tasks.
func (b *Builder) Build(ctx context.Context, pool *scheduler.Pool) (*Result, error) {
	start := time.Now()
	units := b.roots[0] * b.roots[1] * b.roots[2]
	perUnit := make([][]*Brick, units)

	err := pool.Run(ctx, scheduler.Phase{
		Name:  "volumetric lightmap",
		Units: units,
		Work: func(w *scheduler.Worker, unit int) error {
			var nodes []node
			bounds, position := b.root(unit)
			b.buildTree(bounds, position, 0, &nodes)

			bricks := make([]*Brick, len(nodes))
			var g scheduler.Group
			for i := range nodes {
				w.Go(&g, func(*scheduler.Worker) error {
					bricks[i] = b.BuildBrick(nodes[i], unit, i)
					return nil
				})
			}
			g.Wait(w)
			perUnit[unit] = bricks
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Bounds:              b.volume,
		BrickSize:           b.settings.BrickSize,
		MaxRefinementLevels: b.settings.MaxRefinementLevels,
		RootSize:            b.rootSize,
	}
	scale := pow(b.settings.BrickSize, b.settings.MaxRefinementLevels-1)
	for axis := range res.IndirectionSize {
		res.IndirectionSize[axis] = b.roots[axis] * scale
	}
	for _, bricks := range perUnit {
		for _, brick := range bricks {
			if ShouldCullBrick(brick, b.settings.MinBrickError) {
				res.Culled++
				continue
			}
			res.Bricks = append(res.Bricks, brick)
		}
	}
	b.log.Info("volumetric lightmap built",
		zap.Int("roots", units),
		zap.Int("bricks", len(res.Bricks)),
		zap.Int("culled", res.Culled),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// root returns the bounds and indirection position of root cell unit.
func (b *Builder) root(unit int) (math.Box, [3]int) {
	x := unit % b.roots[0]
	y := unit / b.roots[0] % b.roots[1]
	z := unit / (b.roots[0] * b.roots[1])
	scale := pow(b.settings.BrickSize, b.settings.MaxRefinementLevels-1)
	min := b.volume.Min.Add(math.Vec3{X: float32(x), Y: float32(y), Z: float32(z)}.Scale(b.rootSize))
	bounds := math.Box{Min: min, Max: min.Add(math.Vec3{X: b.rootSize, Y: b.rootSize, Z: b.rootSize})}
	return bounds, [3]int{x * scale, y * scale, z * scale}
}

// buildTree appends the brick covering bounds and, depth first, the bricks
// of every voxel that needs refinement.
func (b *Builder) buildTree(bounds math.Box, position [3]int, depth int, out *[]node) {
	self := len(*out)
	*out = append(*out, node{bounds: bounds, depth: depth, position: position})
	if depth+1 >= b.settings.MaxRefinementLevels {
		return
	}
	n := b.settings.BrickSize
	voxel := bounds.Size().Scale(1 / float32(n))
	step := pow(n, b.settings.MaxRefinementLevels-depth-2)
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				min := bounds.Min.Add(voxel.Mul(math.Vec3{X: float32(x), Y: float32(y), Z: float32(z)}))
				cell := math.Box{Min: min, Max: min.Add(voxel)}
				if !b.ShouldRefineVoxel(cell) {
					continue
				}
				(*out)[self].hasChildren = true
				child := [3]int{position[0] + x*step, position[1] + y*step, position[2] + z*step}
				b.buildTree(cell, child, depth+1, out)
			}
		}
	}
}

// ShouldRefineVoxel decides whether the voxel cell gets a child brick. Cells
// outside the importance volume or buried under a landscape never refine;
// otherwise a cell refines when shadow casting geometry or a bright static
// local light is nearby.
func (b *Builder) ShouldRefineVoxel(cell math.Box) bool {
	if !b.scene.InImportanceVolume(cell) {
		return false
	}
	if b.belowLandscape(cell) {
		return false
	}
	return b.intersectsGeometry(cell) || b.nearBrightLight(cell)
}

func (b *Builder) intersectsGeometry(cell math.Box) bool {
	size := cell.Size().MaxComponent()
	surface := cell.ExpandBy(size * b.settings.SurfaceCellExpansion)
	volume := cell.ExpandBy(size * b.settings.VolumeCellExpansion)
	query := surface
	if b.settings.VolumeCellExpansion > b.settings.SurfaceCellExpansion {
		query = volume
	}
	minTexels := b.settings.SurfaceLightmapMinTexelsPerVoxelAxis
	hits := b.surfaces.SearchIntersect(rect(query), func(_ []rtreego.Spatial, obj rtreego.Spatial) (bool, bool) {
		t := obj.(*triangle)
		box := volume
		if !t.volume {
			if t.texelsPerUnit*size < minTexels {
				return true, false
			}
			box = surface
		}
		if TriangleIntersectsBox(t.v[0], t.v[1], t.v[2], box) {
			return false, true
		}
		return true, false
	})
	return len(hits) > 0
}

func (b *Builder) nearBrightLight(cell math.Box) bool {
	size := cell.Size().MaxComponent()
	expanded := cell.ExpandBy(size * b.settings.LightCellExpansion)
	extent := expanded.Size()
	for _, l := range b.lights {
		if !l.AffectsBox(expanded) {
			continue
		}
		if l.Radius() < size {
			return true
		}
		s := gather.NewStream(seedLightJitter,
			uint64(math32.Float32bits(cell.Min.X)),
			uint64(math32.Float32bits(cell.Min.Y)),
			uint64(math32.Float32bits(cell.Min.Z)),
			uint64(math32.Float32bits(size)))
		for range lightJitterCount {
			p := expanded.Min.Add(extent.Mul(math.Vec3{X: s.Float(), Y: s.Float(), Z: s.Float()}))
			if _, _, radiance := l.Incident(p); radiance.Luminance() > b.settings.LightBrightnessSubdivideThreshold {
				return true
			}
		}
	}
	return false
}

// belowLandscape reports whether every point of a grid over the cell's top
// face lies strictly under a landscape.
func (b *Builder) belowLandscape(cell math.Box) bool {
	if !b.settings.CullBricksBelowLandscape || b.landscapes == nil {
		return false
	}
	size := cell.Size()
	for j := 0; j < landscapeGrid; j++ {
		for i := 0; i < landscapeGrid; i++ {
			x := cell.Min.X + (float32(i)+0.5)/landscapeGrid*size.X
			y := cell.Min.Y + (float32(j)+0.5)/landscapeGrid*size.Y
			if !b.underLandscape(x, y, cell.Max.Z) {
				return false
			}
		}
	}
	return true
}

func (b *Builder) underLandscape(x, y, z float32) bool {
	column := rect(math.Box{
		Min: math.Vec3{X: x, Y: y, Z: b.landZ[0]},
		Max: math.Vec3{X: x, Y: y, Z: b.landZ[1]},
	})
	for _, obj := range b.landscapes.SearchIntersect(column) {
		if h, ok := obj.(*triangle).heightAt(x, y); ok && z < h {
			return true
		}
	}
	return false
}
