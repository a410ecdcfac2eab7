package template

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/hupe1980/specfit/codec"
	"github.com/hupe1980/specfit/param"
)

const (
	magic         = "SPFT"
	formatVersion = uint16(1)

	// DefaultNodesPerBlock groups node fluxes into compression blocks.
	DefaultNodesPerBlock = 16
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeOptions controls Encode.
type EncodeOptions struct {
	Compression Compression
	// Codec encodes the header. Nil selects codec.Default.
	Codec codec.Codec
	// NodesPerBlock is the number of node fluxes per block (0 = DefaultNodesPerBlock).
	NodesPerBlock int
}

type fileHeader struct {
	Setup         string      `json:"setup"`
	Params        []string    `json:"params"`
	Axes          [][]float64 `json:"axes"`
	NumWave       int         `json:"n_wave"`
	NumNodes      int         `json:"n_nodes"`
	NodesPerBlock int         `json:"nodes_per_block"`
}

// Encode serialises g into the binary grid format.
func Encode(g *Grid, opts EncodeOptions) ([]byte, error) {
	c := opts.Codec
	if c == nil {
		c = codec.Default
	}
	perBlock := opts.NodesPerBlock
	if perBlock <= 0 {
		perBlock = DefaultNodesPerBlock
	}
	name := c.Name()
	if len(name) > math.MaxUint8 {
		return nil, fmt.Errorf("template: codec name %q too long", name)
	}

	hdr, err := c.Marshal(fileHeader{
		Setup:         g.setup,
		Params:        g.space.Names(),
		Axes:          g.axes,
		NumWave:       len(g.wave),
		NumNodes:      len(g.flux),
		NodesPerBlock: perBlock,
	})
	if err != nil {
		return nil, fmt.Errorf("template: encode header: %w", err)
	}

	out := make([]byte, 0, 64+len(hdr)+8*len(g.wave)*(1+len(g.flux)))
	out = append(out, magic...)
	out = binary.LittleEndian.AppendUint16(out, formatVersion)
	out = append(out, byte(opts.Compression), byte(len(name)))
	out = append(out, name...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(hdr)))
	out = append(out, hdr...)

	if out, err = appendBlock(out, floatsToBytes(g.wave), opts.Compression); err != nil {
		return nil, err
	}
	for start := 0; start < len(g.flux); start += perBlock {
		end := min(start+perBlock, len(g.flux))
		raw := make([]byte, 0, 8*len(g.wave)*(end-start))
		for _, f := range g.flux[start:end] {
			raw = appendFloats(raw, f)
		}
		if out, err = appendBlock(out, raw, opts.Compression); err != nil {
			return nil, err
		}
	}

	return binary.LittleEndian.AppendUint32(out, crc32.Checksum(out, castagnoli)), nil
}

// Decode parses a grid file produced by Encode.
func Decode(data []byte) (*Grid, error) {
	if len(data) < len(magic)+4+4+4 {
		return nil, fmt.Errorf("%w: file too short", ErrFormat)
	}
	if string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}
	body, sum := data[:len(data)-4], binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.Checksum(body, castagnoli) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrFormat)
	}

	pos := len(magic)
	if v := binary.LittleEndian.Uint16(body[pos:]); v != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, v)
	}
	pos += 2
	comp := Compression(body[pos])
	nameLen := int(body[pos+1])
	pos += 2
	if len(body) < pos+nameLen+4 {
		return nil, fmt.Errorf("%w: truncated codec name", ErrFormat)
	}
	c, err := codec.ByName(string(body[pos : pos+nameLen]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	pos += nameLen

	hdrLen := int(binary.LittleEndian.Uint32(body[pos:]))
	pos += 4
	if len(body) < pos+hdrLen {
		return nil, fmt.Errorf("%w: truncated header", ErrFormat)
	}
	var hdr fileHeader
	if err := c.Unmarshal(body[pos:pos+hdrLen], &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrFormat, err)
	}
	pos += hdrLen
	if hdr.NumWave <= 0 || hdr.NumNodes <= 0 || hdr.NodesPerBlock <= 0 {
		return nil, fmt.Errorf("%w: invalid header sizes", ErrFormat)
	}

	space, err := param.NewSpace(hdr.Params...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	block, n, err := readBlock(body[pos:], comp)
	if err != nil {
		return nil, err
	}
	pos += n
	if len(block) != 8*hdr.NumWave {
		return nil, fmt.Errorf("%w: wavelength block has %d bytes", ErrFormat, len(block))
	}
	wave := bytesToFloats(block)

	flux := make([][]float64, 0, hdr.NumNodes)
	for len(flux) < hdr.NumNodes {
		block, n, err := readBlock(body[pos:], comp)
		if err != nil {
			return nil, err
		}
		pos += n
		if len(block)%8 != 0 {
			return nil, fmt.Errorf("%w: node block of %d bytes", ErrFormat, len(block))
		}
		vals := bytesToFloats(block)
		if len(vals)%hdr.NumWave != 0 {
			return nil, fmt.Errorf("%w: ragged node block", ErrFormat)
		}
		for off := 0; off < len(vals); off += hdr.NumWave {
			flux = append(flux, vals[off:off+hdr.NumWave:off+hdr.NumWave])
		}
	}
	if len(flux) != hdr.NumNodes || pos != len(body) {
		return nil, fmt.Errorf("%w: node count or trailing data mismatch", ErrFormat)
	}

	g, err := NewGrid(hdr.Setup, space, hdr.Axes, wave, flux)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return g, nil
}

func appendFloats(dst []byte, xs []float64) []byte {
	for _, x := range xs {
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(x))
	}
	return dst
}

func floatsToBytes(xs []float64) []byte {
	return appendFloats(make([]byte, 0, 8*len(xs)), xs)
}

func bytesToFloats(b []byte) []float64 {
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return out
}
