package filterpack

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// Reader provides random access to a pack by archive id. The whole pack
// is buffered in memory; Lookup hands out read-only slice views, so a
// Reader may be shared by concurrent lookups.
type Reader struct {
	data    []byte
	footer  Footer
	entries map[string]IndexEntry
}

// Open reads and validates a pack file: footer first (fixed size, at
// end-of-file), then the index it points at.
func Open(path string) (*Reader, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read pack: %w", err)
	}
	return NewReader(data)
}

// NewReader parses an in-memory pack image.
func NewReader(data []byte) (*Reader, error) {
	footer, err := decodeFooter(data)
	if err != nil {
		return nil, err
	}

	indexEnd := footer.IndexOffset + footer.IndexSize
	if indexEnd < footer.IndexOffset || indexEnd > uint64(len(data)) {
		return nil, ErrOutOfRange
	}
	entries, err := decodeIndex(data[footer.IndexOffset:indexEnd])
	if err != nil {
		return nil, err
	}

	m := make(map[string]IndexEntry, len(entries))
	for _, e := range entries {
		m[e.ArchiveID] = e
	}
	return &Reader{data: data, footer: footer, entries: m}, nil
}

// Footer returns the parsed pack footer.
func (r *Reader) Footer() Footer { return r.footer }

// Len returns the number of indexed archives.
func (r *Reader) Len() int { return len(r.entries) }

// Lookup returns the envelope bytes for an archive id, or false if the id
// is absent or its recorded range does not fit inside the body. The
// returned slice aliases the pack buffer and must not be modified.
func (r *Reader) Lookup(archiveID string) ([]byte, bool) {
	e, ok := r.entries[archiveID]
	if !ok {
		return nil, false
	}
	start := r.footer.BodyOffset + e.Offset
	end := start + uint64(e.Size)
	if end < start || end > r.footer.IndexOffset || end > uint64(len(r.data)) {
		return nil, false
	}
	return r.data[start:end], true
}

func decodeFooter(data []byte) (Footer, error) {
	if len(data) < FooterSize {
		return Footer{}, ErrTruncated
	}
	buf := data[len(data)-FooterSize:]
	if string(buf[:4]) != PackMagic {
		return Footer{}, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != Version {
		return Footer{}, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	return Footer{
		BodyOffset:  binary.LittleEndian.Uint64(buf[8:16]),
		IndexOffset: binary.LittleEndian.Uint64(buf[16:24]),
		IndexSize:   binary.LittleEndian.Uint64(buf[24:32]),
	}, nil
}

func decodeIndex(data []byte) ([]IndexEntry, error) {
	if len(data) < indexHeaderSize {
		return nil, ErrTruncated
	}
	if string(data[:4]) != IndexMagic {
		return nil, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	count := binary.LittleEndian.Uint32(data[8:12])

	entries := make([]IndexEntry, 0, count)
	off := indexHeaderSize
	for i := uint32(0); i < count; i++ {
		if off >= len(data) {
			return nil, ErrTruncated
		}
		idLen := int(data[off])
		off++
		if off+idLen+12 > len(data) {
			return nil, ErrTruncated
		}
		id := string(data[off : off+idLen])
		off += idLen
		entries = append(entries, IndexEntry{
			ArchiveID: id,
			Offset:    binary.LittleEndian.Uint64(data[off : off+8]),
			Size:      binary.LittleEndian.Uint32(data[off+8 : off+12]),
		})
		off += 12
	}
	return entries, nil
}
