package output

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// ErrCorruptLightmap is returned when stored lightmap data cannot be decoded.
var ErrCorruptLightmap = errors.New("corrupt lightmap data")

const (
	lightmapMagic   = "LBLM"
	lightmapVersion = 1
)

// lightmapHeader precedes the quantized samples of a stored lightmap.
type lightmapHeader struct {
	Magic   [4]byte
	Version uint16
	_       uint16
	SizeX   uint32
	SizeY   uint32
}

// EncodeLightmap writes the quantized samples of l to w as a zstd stream.
func EncodeLightmap(w io.Writer, l *Lightmap) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	hdr := lightmapHeader{Version: lightmapVersion, SizeX: uint32(l.SizeX), SizeY: uint32(l.SizeY)}
	copy(hdr.Magic[:], lightmapMagic)
	if err := binary.Write(zw, binary.LittleEndian, &hdr); err != nil {
		zw.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	if err := binary.Write(zw, binary.LittleEndian, l.Quantize()); err != nil {
		zw.Close()
		return fmt.Errorf("writing samples: %w", err)
	}
	return zw.Close()
}

// DecodeLightmap reads data written by EncodeLightmap.
func DecodeLightmap(r io.Reader) (sizeX, sizeY int, samples []QuantizedSample, err error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return 0, 0, nil, err
	}
	defer zr.Close()

	var hdr lightmapHeader
	if err := binary.Read(zr, binary.LittleEndian, &hdr); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %w", ErrCorruptLightmap, err)
	}
	if string(hdr.Magic[:]) != lightmapMagic || hdr.Version != lightmapVersion {
		return 0, 0, nil, fmt.Errorf("%w: bad header %q v%d", ErrCorruptLightmap, hdr.Magic[:], hdr.Version)
	}
	samples = make([]QuantizedSample, int(hdr.SizeX)*int(hdr.SizeY))
	if err := binary.Read(zr, binary.LittleEndian, samples); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %w", ErrCorruptLightmap, err)
	}
	return int(hdr.SizeX), int(hdr.SizeY), samples, nil
}

// SaveLightmap writes the encoded lightmap of r as <mesh>.lmap.zst into dir.
func SaveLightmap(dir string, r *MappingResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(dir, r.MeshName+".lmap.zst")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := EncodeLightmap(f, r.Lightmap); err != nil {
		f.Close()
		return "", fmt.Errorf("mapping %s: %w", r.MeshName, err)
	}
	return path, f.Close()
}
