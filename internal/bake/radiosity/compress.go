package radiosity

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ErrCorruptHitPoints is returned when compressed hit point data cannot be
// decoded.
var ErrCorruptHitPoints = errors.New("corrupt hit point data")

const (
	hitPointsMagic = "LBHP"
	influenceMagic = "LBIR"
	formatVersion  = 1
)

// blobHeader precedes the zstd payload of every compressed table.
type blobHeader struct {
	Magic    [4]byte
	Version  uint16
	_        uint16
	Offsets  uint32
	Elements uint32
}

// The shared zstd coders are built on first use; EncodeAll and DecodeAll are
// safe for concurrent use.
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		return enc, nil
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		return dec, nil
	})
)

// CompressHitPoints packs h into a compact byte slice.
func CompressHitPoints(h *HitPoints) ([]byte, error) {
	return compressTable(hitPointsMagic, h.Offsets, h.Points)
}

// DecompressHitPoints restores hit points packed by CompressHitPoints.
func DecompressHitPoints(data []byte) (*HitPoints, error) {
	offsets, points, err := decompressTable[HitPoint](hitPointsMagic, data)
	if err != nil {
		return nil, err
	}
	return &HitPoints{Offsets: offsets, Points: points}, nil
}

// CompressInfluence packs an influence table.
func CompressInfluence(in *Influence) ([]byte, error) {
	return compressTable(influenceMagic, in.Offsets, in.Links)
}

// DecompressInfluence restores a table packed by CompressInfluence.
func DecompressInfluence(data []byte) (*Influence, error) {
	offsets, links, err := decompressTable[Link](influenceMagic, data)
	if err != nil {
		return nil, err
	}
	return &Influence{Offsets: offsets, Links: links}, nil
}

func compressTable[E any](magic string, offsets []int32, elements []E) ([]byte, error) {
	var raw bytes.Buffer
	hdr := blobHeader{Version: formatVersion, Offsets: uint32(len(offsets)), Elements: uint32(len(elements))}
	copy(hdr.Magic[:], magic)
	if err := binary.Write(&raw, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if err := binary.Write(&raw, binary.LittleEndian, offsets); err != nil {
		return nil, fmt.Errorf("writing offsets: %w", err)
	}
	if err := binary.Write(&raw, binary.LittleEndian, elements); err != nil {
		return nil, fmt.Errorf("writing elements: %w", err)
	}
	enc, err := zstdEncoder()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(raw.Bytes(), nil), nil
}

func decompressTable[E any](magic string, data []byte) ([]int32, []E, error) {
	dec, err := zstdDecoder()
	if err != nil {
		return nil, nil, err
	}
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCorruptHitPoints, err)
	}
	r := bytes.NewReader(raw)

	var hdr blobHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, nil, fmt.Errorf("%w: reading header: %w", ErrCorruptHitPoints, err)
	}
	if string(hdr.Magic[:]) != magic {
		return nil, nil, fmt.Errorf("%w: bad magic %q", ErrCorruptHitPoints, hdr.Magic[:])
	}
	if hdr.Version != formatVersion {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptHitPoints, hdr.Version)
	}
	var elem E
	want := int64(hdr.Offsets)*4 + int64(hdr.Elements)*int64(binary.Size(elem))
	if int64(r.Len()) != want {
		return nil, nil, fmt.Errorf("%w: payload is %d bytes, want %d", ErrCorruptHitPoints, r.Len(), want)
	}

	offsets := make([]int32, hdr.Offsets)
	elements := make([]E, hdr.Elements)
	if err := binary.Read(r, binary.LittleEndian, offsets); err != nil {
		return nil, nil, fmt.Errorf("%w: reading offsets: %w", ErrCorruptHitPoints, err)
	}
	if err := binary.Read(r, binary.LittleEndian, elements); err != nil {
		return nil, nil, fmt.Errorf("%w: reading elements: %w", ErrCorruptHitPoints, err)
	}
	return offsets, elements, nil
}
