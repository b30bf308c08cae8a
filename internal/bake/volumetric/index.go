package volumetric

import (
	"github.com/chewxy/math32"
	"github.com/dhconnelly/rtreego"

	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// R-tree branching factors.
const (
	minChildren = 8
	maxChildren = 32
)

// boundsPad keeps flat triangles from producing zero-thickness rectangles,
// which rtreego never reports as intersecting a touching query.
const boundsPad = 1e-3

func rect(b math.Box) rtreego.Rect {
	r, _ := rtreego.NewRectFromPoints(
		rtreego.Point{float64(b.Min.X - boundsPad), float64(b.Min.Y - boundsPad), float64(b.Min.Z - boundsPad)},
		rtreego.Point{float64(b.Max.X + boundsPad), float64(b.Max.Y + boundsPad), float64(b.Max.Z + boundsPad)},
	)
	return r
}

// triangle is one shadow casting triangle taking part in voxel refinement.
type triangle struct {
	v      [3]math.Vec3
	bounds rtreego.Rect
	// volume marks geometry without a lightmap. Such triangles always
	// refine and use the larger cell expansion.
	volume bool
	// texelsPerUnit is the lightmap density of surface triangles.
	texelsPerUnit float32
}

func (t *triangle) Bounds() rtreego.Rect { return t.bounds }

// newSurfaceIndex indexes the shadow casting triangles of every mesh.
func newSurfaceIndex(sc *scene.Scene) *rtreego.Rtree {
	var objs []rtreego.Spatial
	for _, mesh := range sc.Meshes {
		if !mesh.CastShadow {
			continue
		}
		var sizeX, sizeY int
		if mesh.Mapping != nil {
			sizeX, sizeY = mesh.Mapping.CachedSize()
		}
		for tri := 0; tri < mesh.NumTriangles(); tri++ {
			world, uv := mesh.TriangleAreas(tri)
			if world <= math.Delta {
				continue
			}
			v0, v1, v2 := mesh.Triangle(tri)
			t := &triangle{
				v:      [3]math.Vec3{v0.Position, v1.Position, v2.Position},
				volume: mesh.Mapping == nil,
			}
			if !t.volume {
				t.texelsPerUnit = math32.Sqrt(uv * float32(sizeX*sizeY) / world)
			}
			t.bounds = rect(math.NewBox(t.v[:]...))
			objs = append(objs, t)
		}
	}
	return rtreego.NewTree(3, minChildren, maxChildren, objs...)
}

// newLandscapeIndex indexes the triangles of every landscape.
func newLandscapeIndex(sc *scene.Scene) *rtreego.Rtree {
	var objs []rtreego.Spatial
	for _, l := range sc.Landscapes {
		for _, v := range l.Triangles() {
			objs = append(objs, &triangle{v: v, bounds: rect(math.NewBox(v[:]...))})
		}
	}
	if len(objs) == 0 {
		return nil
	}
	return rtreego.NewTree(3, minChildren, maxChildren, objs...)
}

// heightAt returns the height of the triangle at (x, y) and whether the
// point lies inside the triangle's XY projection.
func (t *triangle) heightAt(x, y float32) (float32, bool) {
	a, b, c := t.v[0], t.v[1], t.v[2]
	det := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if math32.Abs(det) < math.Delta {
		return 0, false
	}
	w0 := ((b.Y-c.Y)*(x-c.X) + (c.X-b.X)*(y-c.Y)) / det
	w1 := ((c.Y-a.Y)*(x-c.X) + (a.X-c.X)*(y-c.Y)) / det
	w2 := 1 - w0 - w1
	const eps = -1e-5
	if w0 < eps || w1 < eps || w2 < eps {
		return 0, false
	}
	return w0*a.Z + w1*b.Z + w2*c.Z, true
}
