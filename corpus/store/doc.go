// Package store provides the binary file formats and mmap-backed access
// layer for compiled corpora. It is used by corpus.Open and by the compile
// step's writers.
//
// Every file consists of:
//   - Header (64 bytes): magic, version, kind, shape
//   - Payload: a dense uint32 array, a CSR relation (uint64 offsets plus
//     uint32 data, with an optional per-edge values section), or a string
//     pool (mappable uint32 index plus a compressed unique-string table)
//
// All multi-byte values are little-endian. Files are opened read-only and
// memory-mapped; typed views are cached per store and released by Close.
package store
