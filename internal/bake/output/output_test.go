package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/Faultbox/midgard-lightbake/internal/bake/scene"
	"github.com/Faultbox/midgard-lightbake/internal/bake/shadow"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

func TestQuantizeSample(t *testing.T) {
	tests := []math.Color{
		{R: 0.25, G: 0.5, B: 1},
		{R: 12, G: 3, B: 0.1},
		{R: 0.01, G: 0.01, B: 0.01},
	}
	for _, c := range tests {
		q := Sample{Irradiance: c, AOMaterialMask: 1, Mapped: true}.Quantize()
		got := q.Irradiance()
		peak := c.Max()
		// One log step is 2^(16/255) ≈ 4.4%.
		assert.InDelta(t, c.R, got.R, float64(peak*0.05), "%v", c)
		assert.InDelta(t, c.G, got.G, float64(peak*0.05), "%v", c)
		assert.InDelta(t, c.B, got.B, float64(peak*0.05), "%v", c)
		assert.Equal(t, uint8(255), q.AOMaterialMask)
	}

	black := Sample{}.Quantize()
	assert.Equal(t, math.Black, black.Irradiance())
	assert.Equal(t, [3]uint8{128, 128, 128}, black.Directional)
}

func TestQuantizeDirectional(t *testing.T) {
	var sh math.SH2RGB
	sh = sh.AddWeighted(math.SHBasis2(math.Vec3{Z: 1}), math.White)
	q := Sample{Irradiance: math.White, Directional: sh}.Quantize()
	// Light from straight above: only the z term is set, at full scale.
	assert.Equal(t, uint8(128), q.Directional[0])
	assert.Equal(t, uint8(255), q.Directional[1])
	assert.Equal(t, uint8(128), q.Directional[2])
}

func TestPadLightmap(t *testing.T) {
	l := NewLightmap(2, 1)
	l.Samples[0] = Sample{Irradiance: math.Gray(1), Mapped: true}
	l.Samples[1] = Sample{Irradiance: math.Gray(2), Mapped: true}

	p := l.Pad(false)
	require.Equal(t, 4, p.SizeX)
	require.Equal(t, 3, p.SizeY)
	assert.Equal(t, math.Gray(1), p.At(0, 0).Irradiance)
	assert.Equal(t, math.Gray(2), p.At(3, 2).Irradiance)

	shown := l.Pad(true)
	assert.Equal(t, BorderColor, shown.At(0, 1).Irradiance)
	assert.Equal(t, math.Gray(1), shown.At(1, 1).Irradiance)
}

func testResult() *MappingResult {
	mesh := scene.NewQuad("floor", math.Vec3{}, math.Vec3{X: 1}, math.Vec3{Y: 1}, nil)
	r := NewMappingResult(scene.NewTextureMapping(mesh, 4, 2, false))
	r.Lightmap = NewLightmap(4, 2)
	for i := range r.Lightmap.Samples {
		r.Lightmap.Samples[i] = Sample{Irradiance: math.Gray(float32(i) / 8), Mapped: i != 0}
	}
	r.ShadowMaps[uuid.New()] = &shadow.VisibilityMap{SizeX: 4, SizeY: 2, Visibility: make([]float32, 8), Mapped: make([]bool, 8)}
	return r
}

func TestDumperWritesTIFF(t *testing.T) {
	dir := t.TempDir()
	d := NewDumper(filepath.Join(dir, "debug"), "bake")
	files, err := d.WriteMapping(testResult(), nil)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "debug", "bake_floor_lightmap.tiff"), files[0])

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()
	img, err := tiff.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())

	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	r, _, _, _ := img.At(3, 1).RGBA()
	assert.Greater(t, r, uint32(0))
}

func TestManifestRoundTrip(t *testing.T) {
	r := testResult()
	m := &Manifest{
		Scene:    "test",
		Mappings: []MappingManifest{Describe(r)},
		Files:    []string{"b.tiff", "a.tiff"},
	}
	assert.Equal(t, 7, m.Mappings[0].MappedTexels)
	assert.Len(t, m.Mappings[0].ShadowMaps, 1)

	path, err := SaveManifest(t.TempDir(), m)
	require.NoError(t, err)
	loaded, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)
	assert.Equal(t, []string{"a.tiff", "b.tiff"}, loaded.Files)
}

func TestLightmapDataRoundTrip(t *testing.T) {
	r := testResult()
	path, err := SaveLightmap(t.TempDir(), r)
	require.NoError(t, err)
	assert.Equal(t, "floor.lmap.zst", filepath.Base(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	sx, sy, samples, err := DecodeLightmap(f)
	require.NoError(t, err)
	assert.Equal(t, 4, sx)
	assert.Equal(t, 2, sy)
	assert.Equal(t, r.Lightmap.Quantize(), samples)
}

func TestDecodeLightmapRejectsGarbage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeLightmap(&buf, NewLightmap(2, 2)))
	data := buf.Bytes()

	_, _, _, err := DecodeLightmap(bytes.NewReader(data[:len(data)/2]))
	assert.Error(t, err)

	_, _, _, err = DecodeLightmap(bytes.NewReader([]byte("LBLM but not zstd")))
	assert.Error(t, err)
}
