package radiosity

// HitPoint is one final gather ray that landed on a lightmapped surface.
type HitPoint struct {
	Mapping      int32
	SurfaceIndex int32
	// Weight is the share of the hit surface's exitant radiosity in the
	// gathering record's incident irradiance.
	Weight float32
}

// HitPoints holds the hit points of every gather record of a mapping. The
// points of record r are Points[Offsets[r]:Offsets[r+1]].
type HitPoints struct {
	Offsets []int32
	Points  []HitPoint
}

// NewHitPoints returns an empty set.
func NewHitPoints() *HitPoints {
	return &HitPoints{Offsets: []int32{0}}
}

// Append adds the hit points of the next record.
func (h *HitPoints) Append(points []HitPoint) {
	h.Points = append(h.Points, points...)
	h.Offsets = append(h.Offsets, int32(len(h.Points)))
}

// Len returns the number of records.
func (h *HitPoints) Len() int {
	return len(h.Offsets) - 1
}

// Record returns the hit points of record r.
func (h *HitPoints) Record(r int) []HitPoint {
	return h.Points[h.Offsets[r]:h.Offsets[r+1]]
}

// Link ties a texel to a record that influences it.
type Link struct {
	Record int32
	Weight float32
}

// Influence lists, for every texel of a surface cache, the records whose
// values are blended into it. The links of texel t are
// Links[Offsets[t]:Offsets[t+1]]; unmapped texels have none.
type Influence struct {
	Offsets []int32
	Links   []Link
}

// NewInfluence returns an empty table.
func NewInfluence() *Influence {
	return &Influence{Offsets: []int32{0}}
}

// Append adds the links of the next texel.
func (in *Influence) Append(links ...Link) {
	in.Links = append(in.Links, links...)
	in.Offsets = append(in.Offsets, int32(len(in.Links)))
}

// Len returns the number of texels.
func (in *Influence) Len() int {
	return len(in.Offsets) - 1
}

// Texel returns the links of texel t.
func (in *Influence) Texel(t int) []Link {
	return in.Links[in.Offsets[t]:in.Offsets[t+1]]
}
