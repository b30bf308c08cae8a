package volumetric

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// TriangleIntersectsBox tests a triangle against an axis aligned box with
// the separating axis theorem: the 3 box face normals, the triangle normal
// and the 9 cross products of box axes with triangle edges.
func TriangleIntersectsBox(v0, v1, v2 math.Vec3, box math.Box) bool {
	c := box.Center()
	h := box.Extent()
	a := v0.Sub(c)
	b := v1.Sub(c)
	d := v2.Sub(c)
	edges := [3]math.Vec3{b.Sub(a), d.Sub(b), a.Sub(d)}
	axes := [3]math.Vec3{{X: 1}, {Y: 1}, {Z: 1}}

	separated := func(axis math.Vec3) bool {
		if axis.LengthSquared() < math.Delta*math.Delta {
			return false
		}
		p0, p1, p2 := a.Dot(axis), b.Dot(axis), d.Dot(axis)
		r := h.X*math32.Abs(axis.X) + h.Y*math32.Abs(axis.Y) + h.Z*math32.Abs(axis.Z)
		lo := math32.Min(p0, math32.Min(p1, p2))
		hi := math32.Max(p0, math32.Max(p1, p2))
		return lo > r || hi < -r
	}

	for _, u := range axes {
		for _, e := range edges {
			if separated(u.Cross(e)) {
				return false
			}
		}
	}
	for _, u := range axes {
		if separated(u) {
			return false
		}
	}
	return !separated(edges[0].Cross(edges[1]))
}
