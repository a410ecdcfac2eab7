// Package mmap maps template grid files read-only into memory.
//
//	m, err := mmap.Open("grids/b.spft")
//	if err != nil { ... }
//	defer m.Close()
//	m.Advise(mmap.AccessSequential)
//	hdr := m.Bytes()[:16]
//
// Unix builds use mmap(2) with madvise(2) hints; Windows uses
// CreateFileMapping/MapViewOfFile and ignores hints.
//
// A Mapping is safe for concurrent reads. Close is idempotent, but slices
// returned by Bytes must not be used after it returns.
package mmap
