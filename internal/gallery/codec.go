package gallery

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Blob layout (little endian):
//
//	magic "FGAL" | version u16 | flags u16 | body | crc32(body) u32
//
// body (after optional zstd decompression):
//
//	dim u32 | count u32 | count * (id str16 | label str16 | created_at i64 | dim * f32)
//
// str16 is a u16 byte length followed by the UTF-8 bytes.
const (
	codecVersion uint16 = 1
	flagZstd     uint16 = 1 << 0

	headerSize   = 8
	checksumSize = 4

	// MaxDim bounds the dimension accepted when decoding.
	MaxDim = 8192
)

var codecMagic = [4]byte{'F', 'G', 'A', 'L'}

// Encode serializes g into a self-checking blob. With compress the body is zstd-compressed.
func Encode(g Gallery, compress bool) ([]byte, error) {
	body, err := encodeBody(g)
	if err != nil {
		return nil, err
	}

	var flags uint16
	if compress {
		body, err = compressBody(body)
		if err != nil {
			return nil, err
		}
		flags |= flagZstd
	}

	out := make([]byte, 0, headerSize+len(body)+checksumSize)
	out = append(out, codecMagic[:]...)
	out = binary.LittleEndian.AppendUint16(out, codecVersion)
	out = binary.LittleEndian.AppendUint16(out, flags)
	out = append(out, body...)
	out = binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(body))
	return out, nil
}

// Decode parses a blob written by Encode. Every failure wraps ErrStorageCorrupt.
func Decode(data []byte) (Gallery, error) {
	if len(data) < headerSize+checksumSize {
		return Gallery{}, corruptf("blob too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:4], codecMagic[:]) {
		return Gallery{}, corruptf("bad magic %q", data[:4])
	}
	if version := binary.LittleEndian.Uint16(data[4:6]); version != codecVersion {
		return Gallery{}, corruptf("unsupported version %d", version)
	}
	flags := binary.LittleEndian.Uint16(data[6:8])
	if flags&^flagZstd != 0 {
		return Gallery{}, corruptf("unknown flags %#x", flags)
	}

	body := data[headerSize : len(data)-checksumSize]
	sum := binary.LittleEndian.Uint32(data[len(data)-checksumSize:])
	if got := crc32.ChecksumIEEE(body); got != sum {
		return Gallery{}, corruptf("checksum mismatch: stored %08x, computed %08x", sum, got)
	}

	if flags&flagZstd != 0 {
		var err error
		body, err = decompressBody(body)
		if err != nil {
			return Gallery{}, corruptf("decompressing body: %v", err)
		}
	}

	return decodeBody(body)
}

// AppendVector appends v as little-endian float32 values.
func AppendVector(dst []byte, v []float32) []byte {
	for _, x := range v {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(x))
	}
	return dst
}

// DecodeVector parses little-endian float32 values written by AppendVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, corruptf("vector length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func encodeBody(g Gallery) ([]byte, error) {
	if g.Dim <= 0 || g.Dim > MaxDim {
		return nil, fmt.Errorf("invalid gallery dimension %d", g.Dim)
	}

	out := make([]byte, 0, 8+len(g.Records)*(48+8+4*g.Dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(g.Dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(g.Records)))

	var err error
	for i := range g.Records {
		rec := &g.Records[i]
		if len(rec.Embedding) != g.Dim {
			return nil, &DimensionMismatchError{Expected: g.Dim, Actual: len(rec.Embedding)}
		}
		if out, err = appendString(out, rec.ID); err != nil {
			return nil, fmt.Errorf("record %d id: %w", i, err)
		}
		if out, err = appendString(out, rec.Label); err != nil {
			return nil, fmt.Errorf("record %d label: %w", i, err)
		}
		var nanos int64
		if !rec.CreatedAt.IsZero() {
			nanos = rec.CreatedAt.UnixNano()
		}
		out = binary.LittleEndian.AppendUint64(out, uint64(nanos))
		out = AppendVector(out, rec.Embedding)
	}
	return out, nil
}

func appendString(dst []byte, s string) ([]byte, error) {
	if len(s) > math.MaxUint16 {
		return dst, fmt.Errorf("string of %d bytes exceeds %d", len(s), math.MaxUint16)
	}
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...), nil
}

// bodyReader walks the body, remembering the first failure so callers check once.
type bodyReader struct {
	buf []byte
	off int
	err error
}

func (r *bodyReader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = corruptf("truncated body at offset %d", r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *bodyReader) uint16() uint16 {
	if b := r.next(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *bodyReader) uint32() uint32 {
	if b := r.next(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *bodyReader) uint64() uint64 {
	if b := r.next(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *bodyReader) string() string {
	n := int(r.uint16())
	return string(r.next(n))
}

func (r *bodyReader) remaining() int {
	return len(r.buf) - r.off
}

func decodeBody(body []byte) (Gallery, error) {
	r := &bodyReader{buf: body}
	dim := int(r.uint32())
	count := int(r.uint32())
	if r.err != nil {
		return Gallery{}, r.err
	}
	if dim <= 0 || dim > MaxDim {
		return Gallery{}, corruptf("invalid dimension %d", dim)
	}
	// Smallest possible record: two empty strings, a timestamp and the vector.
	if minRecord := 2 + 2 + 8 + 4*dim; count > r.remaining()/minRecord {
		return Gallery{}, corruptf("record count %d does not fit in %d bytes", count, r.remaining())
	}

	g := Gallery{Dim: dim}
	if count > 0 {
		g.Records = make([]Record, 0, count)
	}
	for range count {
		var rec Record
		rec.ID = r.string()
		rec.Label = r.string()
		if nanos := int64(r.uint64()); nanos != 0 {
			rec.CreatedAt = time.Unix(0, nanos).UTC()
		}
		raw := r.next(4 * dim)
		if r.err != nil {
			return Gallery{}, r.err
		}
		emb, err := DecodeVector(raw)
		if err != nil {
			return Gallery{}, err
		}
		rec.Embedding = emb
		g.Records = append(g.Records, rec)
	}
	if r.remaining() != 0 {
		return Gallery{}, corruptf("%d trailing bytes", r.remaining())
	}
	return g, nil
}

func compressBody(body []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(body, make([]byte, 0, len(body))), nil
}

func decompressBody(body []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}
