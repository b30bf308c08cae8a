// Package cache implements the lighting cache: an octree of irradiance
// records that can be interpolated at nearby surface points instead of
// gathering lighting at every texel.
package cache

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// Sample is a value stored in cache records.
type Sample[S any] interface {
	Add(S) S
	Scale(float32) S
	Luminance() float32
}

// Record is one cached lighting sample with its region of validity.
type Record[S Sample[S]] struct {
	ID       int
	Position math.Vec3
	Normal   math.Vec3
	Radius   float32
	Value    S
}

// Pass selects the interpolation quality.
type Pass int

const (
	// FirstPass is used while the cache is being populated and only accepts
	// records that cover the point tightly.
	FirstPass Pass = iota
	// SecondPass relaxes the distance and angle limits to smooth the final
	// interpolation.
	SecondPass
)

// Settings control interpolation quality.
type Settings struct {
	// InterpolationMaxAngle is the largest normal deviation, in degrees, at
	// which a record still applies.
	InterpolationMaxAngle float32
	// PointBehindRecordMaxAngle limits how far behind a record's tangent
	// plane a point may lie, in degrees.
	PointBehindRecordMaxAngle float32
	// DistanceSmoothFactor and AngleSmoothFactor scale the limits in the
	// second pass.
	DistanceSmoothFactor float32
	AngleSmoothFactor    float32
	// SmoothnessReduction scales the second pass smoothing and the
	// disagreement threshold.
	SmoothnessReduction float32
	// MaxRecordDisagreement is the largest relative luminance spread among
	// first pass records before the interpolation is rejected.
	MaxRecordDisagreement float32
}

// DefaultSettings returns the stock interpolation settings.
func DefaultSettings() Settings {
	return Settings{
		InterpolationMaxAngle:     20,
		PointBehindRecordMaxAngle: 10,
		DistanceSmoothFactor:      4,
		AngleSmoothFactor:         4,
		SmoothnessReduction:       0.5,
		MaxRecordDisagreement:     1,
	}
}

const (
	maxRecordsPerLeaf = 16
	maxDepth          = 12
)

type node struct {
	bounds   math.Box
	children *[8]*node
	items    []int32
}

// Cache is an octree of lighting records. It is not safe for concurrent
// mutation; concurrent Interpolate calls are safe once population is done.
type Cache[S Sample[S]] struct {
	settings Settings
	root     *node
	records  []Record[S]
	nextID   int
}

// New creates an empty cache covering bounds. Records outside bounds are
// kept at the root.
func New[S Sample[S]](bounds math.Box, settings Settings) *Cache[S] {
	return &Cache[S]{settings: settings, root: &node{bounds: bounds}}
}

// Len returns the number of records.
func (c *Cache[S]) Len() int {
	return len(c.records)
}

// Records returns the records in insertion order.
func (c *Cache[S]) Records() []Record[S] {
	return c.records
}

// Record returns the record at insertion index i.
func (c *Cache[S]) Record(i int) *Record[S] {
	return &c.records[i]
}

// NextID returns the id the next added record will receive.
func (c *Cache[S]) NextID() int {
	return c.nextID
}

// AddRecord inserts the record, assigns it a fresh id and returns the id.
// Records are never evicted.
func (c *Cache[S]) AddRecord(r Record[S]) int {
	r.ID = c.nextID
	c.nextID++
	c.insert(r)
	return r.ID
}

// MergeFrom replays other's records into c in insertion order. Each id is
// offset by c's next id so ids stay unique, and the offset is returned.
func (c *Cache[S]) MergeFrom(other *Cache[S]) int {
	offset := c.nextID
	for _, r := range other.records {
		r.ID += offset
		c.insert(r)
	}
	c.nextID += other.nextID
	return offset
}

func (c *Cache[S]) insert(r Record[S]) {
	idx := int32(len(c.records))
	c.records = append(c.records, r)
	c.insertInto(c.root, idx, c.influenceBox(&r), 0)
}

// influenceBox bounds the largest region a record can affect, which is its
// radius scaled for the second pass.
func (c *Cache[S]) influenceBox(r *Record[S]) math.Box {
	s := c.settings
	ext := r.Radius * math32.Max(s.DistanceSmoothFactor*s.SmoothnessReduction, 1)
	return math.BoxFromCenter(r.Position, math.Vec3{X: ext, Y: ext, Z: ext})
}

func (c *Cache[S]) insertInto(n *node, idx int32, box math.Box, depth int) {
	for {
		if n.children == nil {
			n.items = append(n.items, idx)
			if len(n.items) > maxRecordsPerLeaf && depth < maxDepth {
				c.split(n)
			}
			return
		}
		child := childContaining(n, box)
		if child == nil {
			n.items = append(n.items, idx)
			return
		}
		n = child
		depth++
	}
}

func (c *Cache[S]) split(n *node) {
	var children [8]*node
	for i := range children {
		children[i] = &node{bounds: n.bounds.Octant(i)}
	}
	n.children = &children
	items := n.items
	n.items = nil
	for _, idx := range items {
		if child := childContaining(n, c.influenceBox(&c.records[idx])); child != nil {
			child.items = append(child.items, idx)
		} else {
			n.items = append(n.items, idx)
		}
	}
}

func childContaining(n *node, box math.Box) *node {
	for _, ch := range n.children {
		if ch.bounds.ContainsBox(box) {
			return ch
		}
	}
	return nil
}

// Influence is the normalized weight a record contributes to an
// interpolation.
type Influence struct {
	RecordIndex int
	Weight      float32
}

// Interpolate blends every record covering the point (p, n) and reports
// whether the result is trustworthy.
func (c *Cache[S]) Interpolate(p, n math.Vec3, pass Pass) (S, bool) {
	v, _, ok := c.interpolate(p, n, pass, false)
	return v, ok
}

// InterpolateWithInfluences is Interpolate that also returns the contributing
// records and their normalized weights, ordered by record insertion index.
func (c *Cache[S]) InterpolateWithInfluences(p, n math.Vec3, pass Pass) (S, []Influence, bool) {
	return c.interpolate(p, n, pass, true)
}

func (c *Cache[S]) interpolate(p, n math.Vec3, pass Pass, collect bool) (S, []Influence, bool) {
	var zero S
	s := c.settings
	distScale := float32(1)
	maxAngle := s.InterpolationMaxAngle
	if pass == SecondPass {
		distScale = math32.Max(s.DistanceSmoothFactor*s.SmoothnessReduction, 1)
		maxAngle = math32.Min(maxAngle*math32.Max(s.AngleSmoothFactor*s.SmoothnessReduction, 1), 89)
	}
	cosMax := math32.Cos(math.Radians(maxAngle))
	sinBehind := math32.Sin(math.Radians(s.PointBehindRecordMaxAngle))

	var (
		total      float32
		sum        S
		influences []Influence
		lumTotal   float32
	)
	minLum, maxLum := float32(math32.MaxFloat32), float32(0)
	c.visit(c.root, p, func(idx int32) {
		r := &c.records[idx]
		radius := r.Radius * distScale
		dist := r.Position.Distance(p)
		if dist >= radius {
			return
		}
		ndot := r.Normal.Dot(n)
		if ndot <= cosMax {
			return
		}
		if dist > math.KindaSmall {
			toPoint := p.Sub(r.Position).Scale(1 / dist)
			if toPoint.Dot(r.Normal) < -sinBehind {
				return
			}
		}
		w := (1 - dist/radius) * (1 - (1-ndot)/(1-cosMax))
		if w <= 0 {
			return
		}
		total += w
		sum = sum.Add(r.Value.Scale(w))
		lum := r.Value.Luminance()
		minLum = math32.Min(minLum, lum)
		maxLum = math32.Max(maxLum, lum)
		lumTotal += lum * w
		if collect {
			influences = append(influences, Influence{RecordIndex: int(idx), Weight: w})
		}
	})
	if total <= math.Delta {
		return zero, nil, false
	}
	if pass == FirstPass && s.MaxRecordDisagreement > 0 {
		mean := lumTotal / total
		if mean > math.KindaSmall && (maxLum-minLum)/mean > s.MaxRecordDisagreement/math32.Max(s.SmoothnessReduction, math.KindaSmall) {
			return zero, nil, false
		}
	}
	if collect {
		sortInfluences(influences)
		for i := range influences {
			influences[i].Weight /= total
		}
	}
	return sum.Scale(1 / total), influences, true
}

// visit calls fn for every record stored in a node whose box contains p.
func (c *Cache[S]) visit(n *node, p math.Vec3, fn func(int32)) {
	for _, idx := range n.items {
		fn(idx)
	}
	if n.children == nil {
		return
	}
	for _, ch := range n.children {
		if ch.bounds.Contains(p) {
			c.visit(ch, p, fn)
		}
	}
}

func sortInfluences(in []Influence) {
	// Insertion sort: influence lists are short.
	for i := 1; i < len(in); i++ {
		for j := i; j > 0 && in[j].RecordIndex < in[j-1].RecordIndex; j-- {
			in[j], in[j-1] = in[j-1], in[j]
		}
	}
}
