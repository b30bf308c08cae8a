package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

var up = math.Vec3{Z: 1}

func worldBox() math.Box {
	return math.Box{Min: math.Vec3{X: -100, Y: -100, Z: -100}, Max: math.Vec3{X: 100, Y: 100, Z: 100}}
}

func record(x, y float32, radius float32, value math.Color) Record[math.Color] {
	return Record[math.Color]{Position: math.Vec3{X: x, Y: y}, Normal: up, Radius: radius, Value: value}
}

func TestAddRecordAssignsSequentialIDs(t *testing.T) {
	c := New[math.Color](worldBox(), DefaultSettings())
	for i := 0; i < 3; i++ {
		assert.Equal(t, i, c.AddRecord(record(float32(i), 0, 1, math.White)))
	}
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 3, c.NextID())
}

func TestMergeFromOffsetsIDs(t *testing.T) {
	a := New[math.Color](worldBox(), DefaultSettings())
	a.AddRecord(record(0, 0, 1, math.White))
	a.AddRecord(record(5, 0, 1, math.White))

	b := New[math.Color](worldBox(), DefaultSettings())
	for i := 0; i < 3; i++ {
		b.AddRecord(record(float32(10+i), 0, 1, math.Gray(0.5)))
	}

	offset := a.MergeFrom(b)
	assert.Equal(t, 2, offset)
	assert.Equal(t, 5, a.Len())
	assert.Equal(t, 5, a.NextID())
	for i, r := range a.Records() {
		assert.Equal(t, i, r.ID)
	}

	v, ok := a.Interpolate(math.Vec3{X: 11}, up, FirstPass)
	require.True(t, ok)
	assert.InDelta(t, 0.5, v.R, 1e-5)
}

func TestInterpolateHitAndMiss(t *testing.T) {
	c := New[math.Color](worldBox(), DefaultSettings())
	c.AddRecord(record(0, 0, 1, math.Color{R: 1, G: 2, B: 3}))

	v, ok := c.Interpolate(math.Vec3{X: 0.25}, up, FirstPass)
	require.True(t, ok)
	assert.InDelta(t, 2, v.G, 1e-5)

	_, ok = c.Interpolate(math.Vec3{X: 1.5}, up, FirstPass)
	assert.False(t, ok, "outside the record radius")

	tilted := math.Vec3{X: 1, Z: 1}.Normalize()
	_, ok = c.Interpolate(math.Vec3{X: 0.1}, tilted, FirstPass)
	assert.False(t, ok, "normal deviates by 45 degrees")

	_, ok = c.Interpolate(math.Vec3{X: 0.1, Z: -0.5}, up, FirstPass)
	assert.False(t, ok, "point lies behind the record")
}

func TestSecondPassIsMoreLenient(t *testing.T) {
	c := New[math.Color](worldBox(), DefaultSettings())
	c.AddRecord(record(0, 0, 1, math.White))

	p := math.Vec3{X: 1.5}
	_, ok := c.Interpolate(p, up, FirstPass)
	assert.False(t, ok)
	v, ok := c.Interpolate(p, up, SecondPass)
	require.True(t, ok)
	assert.InDelta(t, 1, v.R, 1e-5)
}

func TestDisagreeingRecordsRejectFirstPass(t *testing.T) {
	c := New[math.Color](worldBox(), DefaultSettings())
	c.AddRecord(record(0, 0, 1, math.Black))
	c.AddRecord(record(0.5, 0, 1, math.Gray(10)))

	_, ok := c.Interpolate(math.Vec3{}, up, FirstPass)
	assert.False(t, ok)

	_, ok = c.Interpolate(math.Vec3{}, up, SecondPass)
	assert.True(t, ok)
}

func TestInfluencesAreSortedAndNormalized(t *testing.T) {
	c := New[math.Color](worldBox(), DefaultSettings())
	// Enough records to split the octree several times.
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			c.AddRecord(record(float32(x)*0.5, float32(y)*0.5, 0.8, math.Gray(1)))
		}
	}

	for _, p := range []math.Vec3{{X: 1.1, Y: 2.3}, {X: 4, Y: 0.2}, {X: 2.75, Y: 2.75}} {
		v, infl, ok := c.InterpolateWithInfluences(p, up, SecondPass)
		require.True(t, ok)
		assert.InDelta(t, 1, v.G, 1e-4)
		require.NotEmpty(t, infl)

		var sum float32
		for i, in := range infl {
			sum += in.Weight
			if i > 0 {
				assert.Less(t, infl[i-1].RecordIndex, in.RecordIndex)
			}
		}
		assert.InDelta(t, 1, sum, 1e-4)
	}
}

func TestRecordsOutsideBoundsStayReachable(t *testing.T) {
	c := New[math.Color](math.Box{Max: math.Vec3{X: 1, Y: 1, Z: 1}}, DefaultSettings())
	for i := 0; i < 40; i++ {
		c.AddRecord(record(0.5, 0.5, 0.01, math.White))
	}
	c.AddRecord(record(50, 50, 2, math.Gray(3)))

	v, ok := c.Interpolate(math.Vec3{X: 50.5, Y: 50}, up, FirstPass)
	require.True(t, ok)
	assert.InDelta(t, 3, v.B, 1e-5)
}
