package output

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"iter"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/chewxy/math32"
	"github.com/google/uuid"
	"golang.org/x/image/tiff"

	"github.com/Faultbox/midgard-lightbake/internal/bake/shadow"
	"github.com/Faultbox/midgard-lightbake/internal/bake/volumetric"
	"github.com/Faultbox/midgard-lightbake/pkg/math"
)

// Dumper writes debug images of bake results as deflate compressed TIFF
// files.
type Dumper struct {
	outputDir string
	prefix    string
}

// NewDumper creates a dumper writing prefix_name.tiff files into outputDir.
func NewDumper(outputDir, prefix string) *Dumper {
	return &Dumper{outputDir: outputDir, prefix: prefix}
}

// Filename returns the path an image called name is written to.
func (d *Dumper) Filename(name string) string {
	filename := fmt.Sprintf("%s_%s.tiff", d.prefix, name)
	if d.outputDir != "" {
		filename = filepath.Join(d.outputDir, filename)
	}
	return filename
}

// WriteImage encodes img as name and returns the file written.
func (d *Dumper) WriteImage(name string, img image.Image) (string, error) {
	if d.outputDir != "" {
		if err := os.MkdirAll(d.outputDir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}
	filename := d.Filename(name)
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		return "", fmt.Errorf("encoding TIFF: %w", err)
	}
	return filename, nil
}

// toneMap maps linear radiance to display sRGB-ish 8-bit values.
func toneMap(v float32) uint8 {
	v = math.Clamp(v, 0, 1)
	return uint8(math32.Round(math32.Pow(v, 1/2.2) * 255))
}

// LightmapImage renders the irradiance of l. Unmapped texels are black.
func LightmapImage(l *Lightmap) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, l.SizeX, l.SizeY))
	for y := 0; y < l.SizeY; y++ {
		for x := 0; x < l.SizeX; x++ {
			s := l.At(x, y)
			if !s.Mapped {
				img.SetRGBA(x, y, color.RGBA{A: 255})
				continue
			}
			c := s.Irradiance
			img.SetRGBA(x, y, color.RGBA{R: toneMap(c.R), G: toneMap(c.G), B: toneMap(c.B), A: 255})
		}
	}
	return img
}

// DistanceFieldImage renders the encoded distances of m, 0.5 being the
// shadow edge.
func DistanceFieldImage(m *shadow.DistanceFieldMap) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.SizeX, m.SizeY))
	for y := 0; y < m.SizeY; y++ {
		for x := 0; x < m.SizeX; x++ {
			img.SetGray(x, y, color.Gray{Y: unorm8(m.At(x, y).Distance)})
		}
	}
	return img
}

// VisibilityImage renders a shadow map.
func VisibilityImage(m *shadow.VisibilityMap) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.SizeX, m.SizeY))
	for i, v := range m.Visibility {
		img.Pix[i] = unorm8(v)
	}
	return img
}

// BrickSliceImage lays out the Z slices of a brick's ambient term side by
// side.
func BrickSliceImage(b *volumetric.Brick, brickSize int) *image.RGBA {
	n := brickSize + 1
	img := image.NewRGBA(image.Rect(0, 0, n*n, n))
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				c := b.Ambient[(z*n+y)*n+x]
				img.SetRGBA(z*n+x, y, color.RGBA{R: toneMap(c.R), G: toneMap(c.G), B: toneMap(c.B), A: 255})
			}
		}
	}
	return img
}

// WriteMapping dumps the lightmap and every shadow map of r. Images are
// named after the mesh and, for shadows, the light.
func (d *Dumper) WriteMapping(r *MappingResult, lightNames map[uuid.UUID]string) ([]string, error) {
	var files []string
	write := func(name string, img image.Image) error {
		f, err := d.WriteImage(name, img)
		if err != nil {
			return fmt.Errorf("mapping %s: %w", r.MeshName, err)
		}
		files = append(files, f)
		return nil
	}
	if r.Lightmap != nil {
		if err := write(r.MeshName+"_lightmap", LightmapImage(r.Lightmap)); err != nil {
			return files, err
		}
	}
	for id, m := range sortedKeys(r.DistanceFields) {
		if err := write(r.MeshName+"_sdf_"+lightName(lightNames, id), DistanceFieldImage(m)); err != nil {
			return files, err
		}
	}
	for id, m := range sortedKeys(r.ShadowMaps) {
		if err := write(r.MeshName+"_shadow_"+lightName(lightNames, id), VisibilityImage(m)); err != nil {
			return files, err
		}
	}
	return files, nil
}

// WriteVolume dumps the ambient slices of every brick of v, named after the
// brick's refinement depth and indirection position.
func (d *Dumper) WriteVolume(v *volumetric.Result) ([]string, error) {
	var files []string
	for _, b := range v.Bricks {
		p := b.IndirectionPosition
		name := fmt.Sprintf("brick_d%d_%d_%d_%d", b.Depth, p[0], p[1], p[2])
		f, err := d.WriteImage(name, BrickSliceImage(b, v.BrickSize))
		if err != nil {
			return files, fmt.Errorf("volumetric lightmap: %w", err)
		}
		files = append(files, f)
	}
	return files, nil
}

func lightName(names map[uuid.UUID]string, id uuid.UUID) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return id.String()
}

// sortedKeys iterates m in GUID order so dumps are reproducible.
func sortedKeys[V any](m map[uuid.UUID]V) iter.Seq2[uuid.UUID, V] {
	keys := slices.SortedFunc(maps.Keys(m), func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return func(yield func(uuid.UUID, V) bool) {
		for _, k := range keys {
			if !yield(k, m[k]) {
				return
			}
		}
	}
}
