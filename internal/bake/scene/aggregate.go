package scene

import (
	"sort"

	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

const (
	bvhLeafSize = 4
	// rayStartBias skips hits at the very start of a ray so that rays leaving
	// a surface do not hit it again.
	rayStartBias = 1e-4
)

type triangleRef struct {
	mesh     *Mesh
	tri      int
	v0       math.Vec3
	e1, e2   math.Vec3
	bounds   math.Box
	centroid math.Vec3
}

type bvhNode struct {
	bounds      math.Box
	left, right int32
	first       int32
	count       int32
}

// AggregateMesh is a bounding volume hierarchy over every triangle of the
// scene. It is immutable after construction and safe for concurrent use.
type AggregateMesh struct {
	tris   []triangleRef
	nodes  []bvhNode
	bounds math.Box
}

// NewAggregateMesh builds the hierarchy over the given meshes.
func NewAggregateMesh(meshes []*Mesh) *AggregateMesh {
	a := &AggregateMesh{bounds: math.EmptyBox()}
	for _, m := range meshes {
		for i := 0; i < m.NumTriangles(); i++ {
			v0, v1, v2 := m.Triangle(i)
			b := math.NewBox(v0.Position, v1.Position, v2.Position)
			a.tris = append(a.tris, triangleRef{
				mesh:     m,
				tri:      i,
				v0:       v0.Position,
				e1:       v1.Position.Sub(v0.Position),
				e2:       v2.Position.Sub(v0.Position),
				bounds:   b,
				centroid: b.Center(),
			})
			a.bounds = a.bounds.Union(b)
		}
	}
	if len(a.tris) > 0 {
		a.build(0, len(a.tris))
	}
	return a
}

// Bounds returns the bounds of all geometry.
func (a *AggregateMesh) Bounds() math.Box {
	return a.bounds
}

// build creates the node for tris[first:end] and returns its index. Triangles
// are split at the median centroid along the longest axis.
func (a *AggregateMesh) build(first, end int) int32 {
	b := math.EmptyBox()
	cb := math.EmptyBox()
	for _, t := range a.tris[first:end] {
		b = b.Union(t.bounds)
		cb = cb.AddPoint(t.centroid)
	}
	idx := int32(len(a.nodes))
	a.nodes = append(a.nodes, bvhNode{bounds: b, left: -1, right: -1, first: int32(first), count: int32(end - first)})
	if end-first <= bvhLeafSize {
		return idx
	}

	size := cb.Size()
	axis := 0
	if size.Y > size.X && size.Y >= size.Z {
		axis = 1
	} else if size.Z > size.X && size.Z > size.Y {
		axis = 2
	}
	part := a.tris[first:end]
	sort.SliceStable(part, func(i, j int) bool {
		return part[i].centroid.Component(axis) < part[j].centroid.Component(axis)
	})
	mid := first + (end-first)/2

	left := a.build(first, mid)
	right := a.build(mid, end)
	a.nodes[idx].left = left
	a.nodes[idx].right = right
	a.nodes[idx].count = 0
	return idx
}

// IntersectLightRay traces the ray segment against the scene.
func (a *AggregateMesh) IntersectLightRay(ray LightRay) Intersection {
	var result Intersection
	if len(a.nodes) == 0 {
		return result
	}
	dir := ray.End.Sub(ray.Start)
	length := dir.Length()
	if length <= 0 {
		return result
	}
	sr := newSlabRay(ray.Start, dir)
	minT := rayStartBias / length
	bestT := float32(1)
	var best *triangleRef
	var bestU, bestV float32

	var stack [64]int32
	sp := 0
	stack[sp] = 0
	sp++
	for sp > 0 {
		sp--
		n := &a.nodes[stack[sp]]
		if _, ok := sr.intersectBox(n.bounds, bestT); !ok {
			continue
		}
		if n.left < 0 {
			for i := n.first; i < n.first+n.count; i++ {
				t := &a.tris[i]
				if ray.Flags&ShadowCastersOnly != 0 && !t.mesh.CastShadow {
					continue
				}
				ht, u, v, ok := intersectTriangle(ray.Start, dir, t.v0, t.e1, t.e2)
				if !ok || ht < minT || ht > bestT {
					continue
				}
				bestT, best, bestU, bestV = ht, t, u, v
				if ray.Flags&FindClosest == 0 {
					return a.describe(ray, dir, length, best, bestT, bestU, bestV)
				}
			}
			continue
		}
		if sp+2 > len(stack) {
			continue
		}
		stack[sp] = n.left
		stack[sp+1] = n.right
		sp += 2
	}
	if best == nil {
		return result
	}
	return a.describe(ray, dir, length, best, bestT, bestU, bestV)
}

func (a *AggregateMesh) describe(ray LightRay, dir math.Vec3, length float32, t *triangleRef, ht, u, v float32) Intersection {
	v0, v1, v2 := t.mesh.Triangle(t.tri)
	w := 1 - u - v
	interp := v0.Scale(w).Add(v1.Scale(u)).Add(v2.Scale(v))
	geo := t.e1.Cross(t.e2).Normalize()
	normal := interp.TangentZ.SafeNormalize()
	if normal == (math.Vec3{}) {
		normal = geo
	}
	hit := Intersection{
		Hit:             true,
		Position:        ray.Start.Add(dir.Scale(ht)),
		Distance:        ht * length,
		Normal:          normal,
		GeometricNormal: geo,
		Mesh:            t.mesh,
		Triangle:        t.tri,
		LightmapUV:      interp.LightmapUV,
		TextureUV:       interp.TextureUV,
	}
	if geo.Dot(dir) > 0 {
		if t.mesh.MaterialOf(t.tri).IsTwoSided() {
			hit.Normal = hit.Normal.Neg()
			hit.GeometricNormal = geo.Neg()
		} else {
			hit.BackFace = true
		}
	}
	return hit
}
