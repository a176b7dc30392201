package progmesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"gonum.org/v1/gonum/spatial/r3"
)

// Compression of the stream body.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedCompression, s)
}

var magic = [8]byte{'V', 'D', 'P', 'M', 'P', 'M', '0', '1'}

const (
	headerSize      = 8 + 1 + 5*4
	blockHeaderSize = 8
	positionSize    = 3 * 4
	faceSize        = 3 * 4
	recordSize      = 3*4 + 3*4
)

const (
	// zstdWindowSize is the window of written zstd frames and the largest one Read accepts.
	zstdWindowSize = 8 << 20
	// lz4MaxRatio bounds the expansion of an LZ4 block.
	lz4MaxRatio = 255
)

var zstdEncoderPool sync.Pool

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithWindowSize(zstdWindowSize),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	return enc, nil
}

// Write stores pm as: magic, compression byte, five u32 counts, then one body block
// [uncompressed u32][compressed u32][data]. A compressed size of 0 means stored raw.
func Write(w io.Writer, pm *ProgMesh, c Compression) error {
	body := encodeBody(pm)
	block, err := compressBlock(body, c)
	if err != nil {
		return err
	}

	header := make([]byte, 0, headerSize)
	header = append(header, magic[:]...)
	header = append(header, byte(c))
	for _, n := range [5]uint32{
		uint32(len(pm.Positions)), uint32(len(pm.Faces)), uint32(len(pm.Splits)),
		pm.BitsForRoots, pm.MaxLevel,
	} {
		header = binary.LittleEndian.AppendUint32(header, n)
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(block)
	return err
}

// Read parses a stream written by Write and validates its indices.
func Read(r io.Reader) (*ProgMesh, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrBadMagic
		}
		return nil, err
	}
	if [8]byte(header[:8]) != magic {
		return nil, ErrBadMagic
	}
	c := Compression(header[8])
	if c > CompressionZstd {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCompression, c)
	}
	counts := header[9:]
	nv := binary.LittleEndian.Uint32(counts[0:])
	nf := binary.LittleEndian.Uint32(counts[4:])
	ns := binary.LittleEndian.Uint32(counts[8:])
	pm := &ProgMesh{
		BitsForRoots: binary.LittleEndian.Uint32(counts[12:]),
		MaxLevel:     binary.LittleEndian.Uint32(counts[16:]),
	}

	blockHeader := make([]byte, blockHeaderSize)
	if _, err := io.ReadFull(r, blockHeader); err != nil {
		return nil, fmt.Errorf("%w: block header: %v", ErrTruncated, err)
	}
	uncompressed := binary.LittleEndian.Uint32(blockHeader[0:])
	compressed := binary.LittleEndian.Uint32(blockHeader[4:])
	want := uint64(nv)*positionSize + uint64(nf)*faceSize + uint64(ns)*recordSize
	if uint64(uncompressed) != want {
		return nil, fmt.Errorf("%w: body of %d bytes for %d vertices, %d faces, %d splits", ErrTruncated, uncompressed, nv, nf, ns)
	}
	if compressed >= uncompressed && compressed != 0 {
		return nil, fmt.Errorf("%w: compressed body of %d bytes for %d bytes of data", ErrTruncated, compressed, uncompressed)
	}
	if c == CompressionLZ4 && compressed != 0 && uint64(uncompressed) > uint64(compressed)*lz4MaxRatio+blockHeaderSize {
		return nil, fmt.Errorf("%w: lz4 body of %d bytes cannot expand to %d", ErrTruncated, compressed, uncompressed)
	}
	stored := uncompressed
	if compressed != 0 {
		stored = compressed
	}
	// sizes come from the header, so the buffer only grows with the bytes actually present
	data, err := io.ReadAll(io.LimitReader(r, int64(stored)))
	if err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrTruncated, err)
	}
	if uint32(len(data)) != stored {
		return nil, fmt.Errorf("%w: body: %d of %d bytes", ErrTruncated, len(data), stored)
	}
	body, err := decompressBlock(data, uncompressed, compressed, c)
	if err != nil {
		return nil, err
	}

	decodeBody(pm, body, int(nv), int(nf), int(ns))
	if err := pm.Validate(); err != nil {
		return nil, err
	}
	return pm, nil
}

func encodeBody(pm *ProgMesh) []byte {
	buf := make([]byte, 0, len(pm.Positions)*positionSize+len(pm.Faces)*faceSize+len(pm.Splits)*recordSize)
	putVec := func(p r3.Vec) {
		for _, x := range [3]float64{p.X, p.Y, p.Z} {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(x)))
		}
	}
	for _, p := range pm.Positions {
		putVec(p)
	}
	for _, f := range pm.Faces {
		for _, v := range f {
			buf = binary.LittleEndian.AppendUint32(buf, v)
		}
	}
	for _, s := range pm.Splits {
		putVec(s.P0)
		for _, v := range [3]int32{s.V1, s.VL, s.VR} {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
		}
	}
	return buf
}

func decodeBody(pm *ProgMesh, body []byte, nv, nf, ns int) {
	off := 0
	u32 := func() uint32 {
		v := binary.LittleEndian.Uint32(body[off:])
		off += 4
		return v
	}
	vec := func() r3.Vec {
		x := math.Float32frombits(u32())
		y := math.Float32frombits(u32())
		z := math.Float32frombits(u32())
		return r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)}
	}

	pm.Positions = make([]r3.Vec, nv)
	for i := range pm.Positions {
		pm.Positions[i] = vec()
	}
	pm.Faces = make([][3]uint32, nf)
	for i := range pm.Faces {
		pm.Faces[i] = [3]uint32{u32(), u32(), u32()}
	}
	pm.Splits = make([]Record, ns)
	for i := range pm.Splits {
		p0 := vec()
		pm.Splits[i] = Record{P0: p0, V1: int32(u32()), VL: int32(u32()), VR: int32(u32())}
	}
}

func compressBlock(data []byte, c Compression) ([]byte, error) {
	var compressed []byte
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, err
		}
		compressed = dst[:n]
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCompression, c)
	}

	// incompressible input is stored raw
	if len(compressed) == 0 || len(compressed) >= len(data) {
		compressed = nil
	}
	block := make([]byte, blockHeaderSize, blockHeaderSize+max(len(compressed), len(data)))
	binary.LittleEndian.PutUint32(block[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(block[4:], uint32(len(compressed)))
	if compressed != nil {
		return append(block, compressed...), nil
	}
	return append(block, data...), nil
}

func decompressBlock(data []byte, uncompressed, compressed uint32, c Compression) ([]byte, error) {
	if compressed == 0 {
		return data, nil
	}
	switch c {
	case CompressionLZ4:
		result := make([]byte, uncompressed)
		n, err := lz4.UncompressBlock(data, result)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrTruncated, err)
		}
		if uint32(n) != uncompressed {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrTruncated)
		}
		return result, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(zstdWindowSize),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer dec.Close()
		if err := dec.Reset(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrTruncated, err)
		}
		// one extra byte tells an overlong frame from an exact one
		decoded, err := io.ReadAll(io.LimitReader(dec, int64(uncompressed)+1))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrTruncated, err)
		}
		if len(decoded) != int(uncompressed) {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrTruncated)
		}
		return decoded, nil
	}
	return nil, fmt.Errorf("%w: %s body marked compressed", ErrUnsupportedCompression, c)
}

// WriteFile writes pm to path.
func WriteFile(path string, pm *ProgMesh, c Compression) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)
	if err := Write(w, pm, c); err != nil {
		file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func ReadFile(path string) (*ProgMesh, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	pm, err := Read(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pm, nil
}
