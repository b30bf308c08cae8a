package radiosity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHitPoints() *HitPoints {
	h := NewHitPoints()
	h.Append([]HitPoint{{Mapping: 0, SurfaceIndex: 3, Weight: 0.19634955}, {Mapping: 2, SurfaceIndex: 35, Weight: 0.19634955}})
	h.Append(nil)
	h.Append([]HitPoint{{Mapping: 1, SurfaceIndex: 7, Weight: 1e-7}})
	return h
}

func TestHitPointsRoundTrip(t *testing.T) {
	h := sampleHitPoints()
	packed, err := CompressHitPoints(h)
	require.NoError(t, err)

	got, err := DecompressHitPoints(packed)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Equal(t, 3, got.Len())
	assert.Empty(t, got.Record(1))
	assert.Equal(t, int32(35), got.Record(0)[1].SurfaceIndex)
}

func TestInfluenceRoundTrip(t *testing.T) {
	in := NewInfluence()
	in.Append(Link{Record: 0, Weight: 0.25}, Link{Record: 4, Weight: 0.75})
	in.Append()
	in.Append(Link{Record: 9, Weight: 1})

	packed, err := CompressInfluence(in)
	require.NoError(t, err)
	got, err := DecompressInfluence(packed)
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.Len(t, got.Texel(0), 2)
	assert.Empty(t, got.Texel(1))
}

func TestDecompressRejectsBadData(t *testing.T) {
	_, err := DecompressHitPoints([]byte("not zstd at all"))
	assert.ErrorIs(t, err, ErrCorruptHitPoints)

	in := NewInfluence()
	in.Append(Link{Record: 1, Weight: 1})
	packed, err := CompressInfluence(in)
	require.NoError(t, err)
	_, err = DecompressHitPoints(packed)
	assert.ErrorIs(t, err, ErrCorruptHitPoints, "influence data is not hit point data")

	enc, err := zstdEncoder()
	require.NoError(t, err)
	truncated := enc.EncodeAll([]byte("LBHP\x01\x00\x00\x00\x05\x00\x00\x00\x00\x00\x00\x00"), nil)
	_, err = DecompressHitPoints(truncated)
	assert.ErrorIs(t, err, ErrCorruptHitPoints)
}

func TestZstdCodersAreShared(t *testing.T) {
	enc, err := zstdEncoder()
	require.NoError(t, err)
	again, err := zstdEncoder()
	require.NoError(t, err)
	assert.Same(t, enc, again)

	dec, err := zstdDecoder()
	require.NoError(t, err)
	decAgain, err := zstdDecoder()
	require.NoError(t, err)
	assert.Same(t, dec, decAgain)

	packed, err := CompressHitPoints(sampleHitPoints())
	require.NoError(t, err)
	raw, err := dec.DecodeAll(packed, nil)
	require.NoError(t, err)
	assert.Equal(t, hitPointsMagic, string(raw[:4]))
}
