package math

import (
	"testing"

	"github.com/chewxy/math32"
)

func TestVec2Add(t *testing.T) {
	a := Vec2{1, 2}
	b := Vec2{3, 4}
	got := a.Add(b)
	want := Vec2{4, 6}
	if got != want {
		t.Errorf("Vec2.Add() = %v, want %v", got, want)
	}
}

func TestVec2Cross(t *testing.T) {
	a := Vec2{1, 0}
	b := Vec2{0, 1}
	if got := a.Cross(b); got != 1 {
		t.Errorf("Vec2.Cross() = %v, want 1", got)
	}
	if got := b.Cross(a); got != -1 {
		t.Errorf("Vec2.Cross() = %v, want -1", got)
	}
}

func TestVec2Normalize(t *testing.T) {
	v := Vec2{3, 4}
	n := v.Normalize()
	l := n.Length()
	if l < 0.999 || l > 1.001 {
		t.Errorf("Vec2.Normalize().Length() = %v, want ~1", l)
	}
}

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3SafeNormalize(t *testing.T) {
	if got := (Vec3{}).SafeNormalize(); got != (Vec3{}) {
		t.Errorf("SafeNormalize(zero) = %v, want zero", got)
	}
	got := Vec3{0, 0, 5}.SafeNormalize()
	if got != (Vec3{0, 0, 1}) {
		t.Errorf("SafeNormalize() = %v, want (0,0,1)", got)
	}
}

func TestFindBestAxisVectors(t *testing.T) {
	normals := []Vec3{
		{0, 0, 1},
		{0, 0, -1},
		{1, 0, 0},
		Vec3{1, 2, 3}.Normalize(),
		Vec3{-0.3, 0.1, -0.9}.Normalize(),
	}
	for _, n := range normals {
		a, b := FindBestAxisVectors(n)
		if math32.Abs(a.Length()-1) > 1e-4 || math32.Abs(b.Length()-1) > 1e-4 {
			t.Errorf("FindBestAxisVectors(%v) not unit: %v %v", n, a, b)
		}
		if math32.Abs(a.Dot(n)) > 1e-4 || math32.Abs(b.Dot(n)) > 1e-4 || math32.Abs(a.Dot(b)) > 1e-4 {
			t.Errorf("FindBestAxisVectors(%v) not orthogonal: %v %v", n, a, b)
		}
	}
}

func TestBoxOctants(t *testing.T) {
	b := Box{Min: Vec3{0, 0, 0}, Max: Vec3{2, 2, 2}}
	total := EmptyBox()
	for i := 0; i < 8; i++ {
		o := b.Octant(i)
		if o.Size() != (Vec3{1, 1, 1}) {
			t.Errorf("Octant(%d).Size() = %v, want (1,1,1)", i, o.Size())
		}
		total = total.Union(o)
	}
	if total != b {
		t.Errorf("union of octants = %v, want %v", total, b)
	}
	if o := b.Octant(7); o.Min != (Vec3{1, 1, 1}) {
		t.Errorf("Octant(7).Min = %v, want (1,1,1)", o.Min)
	}
}

func TestBoxIntersectsSphere(t *testing.T) {
	b := Box{Min: Vec3{0, 0, 0}, Max: Vec3{1, 1, 1}}
	if !b.IntersectsSphere(Vec3{1.5, 0.5, 0.5}, 0.6) {
		t.Error("expected sphere to touch box")
	}
	if b.IntersectsSphere(Vec3{3, 3, 3}, 1) {
		t.Error("expected sphere to miss box")
	}
}

func TestSHBasisAmbient(t *testing.T) {
	b := SHBasis3(Vec3{0, 0, 1})
	if b[0] != shBand0 {
		t.Errorf("SHBasis3()[0] = %v, want %v", b[0], float32(shBand0))
	}
	if math32.Abs(b[6]-2*shBand2b) > 1e-6 {
		t.Errorf("SHBasis3()[6] = %v, want %v", b[6], float32(2*shBand2b))
	}
	var s SH3RGB
	s = s.AddWeighted(b, Color{1, 2, 4})
	if got := s.Ambient(); got != (Color{shBand0, 2 * shBand0, 4 * shBand0}) {
		t.Errorf("Ambient() = %v", got)
	}
}
