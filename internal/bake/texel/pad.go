package texel

// PadNearest returns a (w+2)×(h+2) copy of src where each border texel
// repeats the nearest interior texel. When border is not nil it is written
// to the border instead.
func PadNearest[T any](src []T, w, h int, border *T) []T {
	pw, ph := w+2, h+2
	out := make([]T, pw*ph)
	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			inner := x >= 1 && x <= w && y >= 1 && y <= h
			switch {
			case inner:
				out[y*pw+x] = src[(y-1)*w+(x-1)]
			case border != nil:
				out[y*pw+x] = *border
			default:
				sx := clampIndex(x-1, w)
				sy := clampIndex(y-1, h)
				out[y*pw+x] = src[sy*w+sx]
			}
		}
	}
	return out
}

// PadExtrapolate returns a (w+2)×(h+2) copy of src where edge texels are
// extrapolated linearly as 2*edge - inner. Corners repeat the nearest
// interior corner.
func PadExtrapolate(src []float32, w, h int) []float32 {
	pw, ph := w+2, h+2
	out := make([]float32, pw*ph)
	at := func(x, y int) float32 { return src[y*w+x] }
	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			sx, sy := x-1, y-1
			xOut := sx < 0 || sx >= w
			yOut := sy < 0 || sy >= h
			var v float32
			switch {
			case !xOut && !yOut:
				v = at(sx, sy)
			case xOut && yOut:
				v = at(clampIndex(sx, w), clampIndex(sy, h))
			case xOut:
				edge, inner := edgePair(sx, w)
				v = extrapolate(at(edge, sy), at(inner, sy), edge != inner)
			default:
				edge, inner := edgePair(sy, h)
				v = extrapolate(at(sx, edge), at(sx, inner), edge != inner)
			}
			out[y*pw+x] = v
		}
	}
	return out
}

func edgePair(i, n int) (edge, inner int) {
	if i < 0 {
		return 0, min(1, n-1)
	}
	return n - 1, max(n-2, 0)
}

func extrapolate(edge, inner float32, ok bool) float32 {
	if !ok {
		return edge
	}
	return 2*edge - inner
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
