// Package filterpack implements the multi-filter pack container: many
// filter envelopes concatenated into one file, followed by an index keyed
// by archive id and a fixed-size footer at end-of-file. Packs are written
// once, streaming, and read with random access by archive id.
//
// Layout:
//
//	body:   filter envelopes, back to back, byte-verbatim
//	index:  magic("CLPI") | version(u32) | entry_count(u32) |
//	        { id_len(u8) | id_bytes | offset(u64) | size(u32) } ...
//	footer: magic("CLPF") | version(u32) | body_offset(u64) |
//	        index_offset(u64) | index_size(u64)
//
// The footer magic matches the envelope magic; position (end-of-file)
// disambiguates. Entry offsets are relative to body_offset, which is
// written as zero today but honored by readers.
package filterpack

import "errors"

const (
	PackMagic  = "CLPF"
	IndexMagic = "CLPI"
	Version    = 1

	// FooterSize is the exact footer length: magic + version + three u64s.
	FooterSize = 4 + 4 + 3*8

	indexHeaderSize = 4 + 4 + 4
	maxArchiveIDLen = 255
)

var (
	ErrBadMagic      = errors.New("filter pack magic mismatch")
	ErrBadVersion    = errors.New("unsupported filter pack version")
	ErrTruncated     = errors.New("filter pack truncated")
	ErrOutOfRange    = errors.New("filter pack offsets out of range")
	ErrDuplicateID   = errors.New("duplicate archive id")
	ErrIDTooLong     = errors.New("archive id is too long to encode")
	ErrFilterTooBig  = errors.New("filter file exceeds pack entry size limit")
	ErrEmptyFilter   = errors.New("filter file is empty")
	ErrEmptyManifest = errors.New("manifest contains no entries")
)

// IndexEntry locates one filter envelope inside the pack body.
type IndexEntry struct {
	ArchiveID string
	Offset    uint64 // relative to the footer's body offset
	Size      uint32
}

// Footer is the fixed-size trailer at end-of-file.
type Footer struct {
	BodyOffset  uint64
	IndexOffset uint64
	IndexSize   uint64
}

// BuildResult summarizes a finished pack; it is emitted as the pack
// subcommand's JSON output.
type BuildResult struct {
	NumFilters  int    `json:"num_filters"`
	Size        uint64 `json:"size"`
	IndexOffset uint64 `json:"index_offset"`
	IndexSize   uint64 `json:"index_size"`
}
