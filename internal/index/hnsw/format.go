package hnsw

import (
	"time"
)

// Binary format constants for the on-disk graph file. The graph file and
// its sibling data file are the two fixed-layout files a save produces
// (the third, the .ids sidecar, is described below); layout and
// field order below are fixed, not an implementation choice, so a file
// written by one version of this package can be read by any other that
// shares FormatVersion.
const (
	// GraphFileMagic identifies the graph-file format: "HNS1".
	GraphFileMagic = "HNS1"

	// FormatVersion is the current on-disk format version.
	FormatVersion = uint32(1)

	// idsFileSuffix names the sidecar that maps node index to the
	// caller-supplied string ID. It isn't part of the two formats named
	// above -- those only carry structural graph/vector data -- but the
	// public API here accepts string IDs, so something has to record the
	// mapping across a save/load round trip.
	graphFileSuffix = ".graph"
	dataFileSuffix  = ".data"
	idsFileSuffix   = ".ids"
)

// graphHeader is the fixed-size header at the start of the graph file:
//
//	magic: "HNS1" | version: u16 | dim: u32 | node_count: u32 |
//	max_level: u8 | entry_point: u32 | M: u16 | ef_construction: u16
//
// Immediately after the header, node_count node records follow, each:
//
//	level: u8
//	for level in 0..=node.level: neighbor_count: u16, neighbor_count x u32
//
// A node with no data (a deleted slot kept only to preserve positional
// indexing) is written with level = deletedLevelMarker and no further
// per-level data.
type graphHeader struct {
	Version        uint16
	Dim            uint32
	NodeCount      uint32
	MaxLevel       uint8
	EntryPoint     uint32
	M              uint16
	EfConstruction uint16
}

// deletedLevelMarker flags a positional slot left behind by a delete.
// Real levels are capped at 16 (see generateLevel), so 0xFF can't collide.
const deletedLevelMarker = 0xFF

// dataHeader is the fixed-size header at the start of the data file:
//
//	dim: u32 | node_count: u32 | node_count x dim x f32 (little-endian)
//
// Vectors are written in node-index order, one per graph-file node
// record (including deleted slots, as an all-zero vector), so the two
// files can be read in lockstep without cross-referencing offsets.
type dataHeader struct {
	Dim       uint32
	NodeCount uint32
}

// HNSWPersistenceMetadata holds metadata about persisted HNSW index
type HNSWPersistenceMetadata struct {
	Version       uint32    `json:"version"`
	NodeCount     int       `json:"node_count"`
	Dimension     int       `json:"dimension"`
	MaxLevel      int       `json:"max_level"`
	CreatedAt     time.Time `json:"created_at"`
	ChecksumCRC32 uint32    `json:"checksum_crc32"`
	FileSize      int64     `json:"file_size"`
}
