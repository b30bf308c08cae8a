package texel

import (
	"fmt"

	"github.com/Faultbox/midgard-lightbake/internal/bake/diag"
	"github.com/Faultbox/midgard-lightbake/internal/bake/raster"
	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// Error colors painted over texels with invalid lightmap UVs.
var (
	WrappingUVColor    = math.Color{R: 0.5, G: 2, B: 0}
	OverlappingUVColor = math.Color{R: 2, G: 0.7, B: 0}
)

// overlapAlertRatio is the share of overlapping texels above which UV
// overlap is reported.
const overlapAlertRatio = 1.0 / 100

// UVReport describes lightmap UV problems of one mapping.
type UVReport struct {
	SizeX, SizeY int
	// Wrapping marks texels covered by a triangle with UVs outside [0,1).
	Wrapping []bool
	// Overlapping marks texels covered by more than one triangle.
	Overlapping []bool

	WrappingTexels    int
	OverlappingTexels int
	WrittenTexels     int
}

// OverlapPercent returns the share of written texels that overlap.
func (r *UVReport) OverlapPercent() float32 {
	if r.WrittenTexels == 0 {
		return 0
	}
	return 100 * float32(r.OverlappingTexels) / float32(r.WrittenTexels)
}

// ErrorColor returns the visualization color for texel i.
func (r *UVReport) ErrorColor(i int) (math.Color, bool) {
	switch {
	case r.Wrapping[i]:
		return WrappingUVColor, true
	case r.Overlapping[i]:
		return OverlappingUVColor, true
	}
	return math.Black, false
}

type uvCountPolicy struct {
	sizeX, sizeY int
	counts       []int
	wrapping     []bool
	wraps        bool
}

func (p *uvCountPolicy) Bounds() (int, int, int, int) { return 0, 0, p.sizeX - 1, p.sizeY - 1 }

func (p *uvCountPolicy) Process(x, y int, _ scene.Vertex, _ bool) {
	i := y*p.sizeX + x
	p.counts[i]++
	if p.wraps {
		p.wrapping[i] = true
	}
}

func uvWraps(uv math.Vec2) bool {
	return uv.X < -math.Delta || uv.Y < -math.Delta || uv.X >= 1+math.Delta || uv.Y >= 1+math.Delta
}

// CheckLightmapUVs rasterizes texel centers of every triangle and finds
// texels that wrap or are covered more than once.
func CheckLightmapUVs(mesh *scene.Mesh, sizeX, sizeY int) *UVReport {
	p := &uvCountPolicy{
		sizeX:    sizeX,
		sizeY:    sizeY,
		counts:   make([]int, sizeX*sizeY),
		wrapping: make([]bool, sizeX*sizeY),
	}
	scale := math.Vec2{X: float32(sizeX), Y: float32(sizeY)}
	center := math.Vec2{X: -0.5, Y: -0.5}
	for tri := 0; tri < mesh.NumTriangles(); tri++ {
		v0, v1, v2 := mesh.Triangle(tri)
		p.wraps = uvWraps(v0.LightmapUV) || uvWraps(v1.LightmapUV) || uvWraps(v2.LightmapUV)
		raster.DrawTriangle[scene.Vertex](p, v0, v1, v2,
			v0.LightmapUV.Mul(scale).Add(center),
			v1.LightmapUV.Mul(scale).Add(center),
			v2.LightmapUV.Mul(scale).Add(center),
			false)
	}

	r := &UVReport{
		SizeX:       sizeX,
		SizeY:       sizeY,
		Wrapping:    p.wrapping,
		Overlapping: make([]bool, sizeX*sizeY),
	}
	for i, n := range p.counts {
		if n > 0 {
			r.WrittenTexels++
		}
		if n > 1 {
			r.Overlapping[i] = true
			r.OverlappingTexels++
		}
		if p.wrapping[i] {
			r.WrappingTexels++
		}
	}
	return r
}

// Report sends the alerts for this report to reporter.
func (r *UVReport) Report(reporter diag.Reporter, mesh *scene.Mesh) {
	if r.WrappingTexels > 0 {
		reporter.Report(diag.Alert{
			Severity:   diag.Warning,
			Kind:       diag.ObjectWrappedUVs,
			ObjectGUID: mesh.GUID,
			ObjectName: mesh.Name,
			Message:    "Lightmap UVs are wrapping",
		})
	}
	if r.WrittenTexels > 0 && float32(r.OverlappingTexels)/float32(r.WrittenTexels) > overlapAlertRatio {
		reporter.Report(diag.Alert{
			Severity:   diag.Warning,
			Kind:       diag.ObjectOverlappedUVs,
			ObjectGUID: mesh.GUID,
			ObjectName: mesh.Name,
			Message:    "Lightmap UVs are overlapping",
		})
		reporter.Report(diag.Alert{
			Severity:   diag.Info,
			Kind:       diag.LightmapUVOverlap,
			ObjectGUID: mesh.GUID,
			ObjectName: mesh.Name,
			Message:    fmt.Sprintf("Lightmap UV are overlapping by %.1f%%. Please adjust content - Enable Error Coloring to visualize.", r.OverlapPercent()),
		})
	}
}
