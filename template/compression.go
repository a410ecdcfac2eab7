package template

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block compression of a grid file.
type Compression uint8

const (
	// CompressionNone stores blocks raw.
	CompressionNone Compression = 0
	// CompressionLZ4 favours decode speed.
	CompressionLZ4 Compression = 1
	// CompressionZSTD favours file size; the default for remote libraries.
	CompressionZSTD Compression = 2
)

// String returns the name of the compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// blockHeaderSize is [uncompressed u32][compressed u32]; compressed 0 means raw.
const blockHeaderSize = 8

// appendBlock compresses data and appends the framed block to dst. Blocks
// that do not shrink below 90% are stored raw.
func appendBlock(dst, data []byte, c Compression) ([]byte, error) {
	var packed []byte
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		packed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		packed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrFormat, c)
	}

	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(data)))
	if len(packed) == 0 || float64(len(packed)) > 0.9*float64(len(data)) {
		dst = append(dst, hdr[:]...)
		return append(dst, data...), nil
	}
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(packed)))
	dst = append(dst, hdr[:]...)
	return append(dst, packed...), nil
}

// readBlock decodes the block at the start of src and returns its payload and
// the number of bytes consumed.
func readBlock(src []byte, c Compression) ([]byte, int, error) {
	if len(src) < blockHeaderSize {
		return nil, 0, fmt.Errorf("%w: truncated block header", ErrFormat)
	}
	rawSize := int(binary.LittleEndian.Uint32(src[0:]))
	packedSize := int(binary.LittleEndian.Uint32(src[4:]))

	if packedSize == 0 {
		end := blockHeaderSize + rawSize
		if len(src) < end {
			return nil, 0, fmt.Errorf("%w: truncated block", ErrFormat)
		}
		return src[blockHeaderSize:end], end, nil
	}

	end := blockHeaderSize + packedSize
	if len(src) < end {
		return nil, 0, fmt.Errorf("%w: truncated compressed block", ErrFormat)
	}
	packed := src[blockHeaderSize:end]
	out := make([]byte, rawSize)

	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(packed, out)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: lz4: %w", ErrFormat, err)
		}
		if n != rawSize {
			return nil, 0, fmt.Errorf("%w: lz4 size mismatch", ErrFormat)
		}
	case CompressionZSTD:
		dec := getZstdDecoder()
		decoded, err := dec.DecodeAll(packed, out[:0])
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: zstd: %w", ErrFormat, err)
		}
		if len(decoded) != rawSize {
			return nil, 0, fmt.Errorf("%w: zstd size mismatch", ErrFormat)
		}
		out = decoded
	default:
		return nil, 0, fmt.Errorf("%w: compressed block in %s file", ErrFormat, c)
	}
	return out, end, nil
}
