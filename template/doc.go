// Package template serves synthetic template spectra for points of a declared
// parameter space.
//
// A Grid holds template fluxes on a regular grid of parameter nodes (one
// sorted axis per parameter) sharing one wavelength array; Lookup
// interpolates multilinearly between the 2^d surrounding nodes. A Library is
// a Source over several instrument setups (arms), usually loaded from a
// blobstore, with an LRU cache of interpolated templates.
//
// Grids are persisted in a compact binary format (see Encode):
//
//	"SPFT" | version u16 | compression u8 | len(codec) u8 | codec name
//	| header length u32 | codec-encoded header
//	| wavelength block | node blocks ... | crc32c u32
//
// where each block is [uncompressed u32][compressed u32 (0 = raw)][payload]
// of little-endian float64 values.
package template
