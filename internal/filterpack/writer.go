package filterpack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"stratalog/internal/logging"
)

// Build streams the manifest's filter files into a pack at outputPath.
// Filter bytes are copied verbatim; the index and footer are appended
// last so the writer never seeks. Duplicate archive ids and filter files
// larger than a u32 are rejected.
func Build(outputPath string, entries []ManifestEntry, logger *slog.Logger) (BuildResult, error) {
	logger = logging.Default(logger)

	if len(entries) == 0 {
		return BuildResult{}, ErrEmptyManifest
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return BuildResult{}, fmt.Errorf("create pack directory: %w", err)
		}
	}
	out, err := os.Create(filepath.Clean(outputPath))
	if err != nil {
		return BuildResult{}, fmt.Errorf("create pack: %w", err)
	}
	defer func() { _ = out.Close() }()

	seen := make(map[string]struct{}, len(entries))
	index := make([]IndexEntry, 0, len(entries))
	var written uint64

	for _, entry := range entries {
		if _, dup := seen[entry.ArchiveID]; dup {
			return BuildResult{}, fmt.Errorf("%w: %s", ErrDuplicateID, entry.ArchiveID)
		}
		seen[entry.ArchiveID] = struct{}{}
		if len(entry.ArchiveID) > maxArchiveIDLen {
			return BuildResult{}, fmt.Errorf("%w: %s", ErrIDTooLong, entry.ArchiveID)
		}

		n, err := copyFilterFile(out, entry.FilterPath)
		if err != nil {
			return BuildResult{}, err
		}
		index = append(index, IndexEntry{
			ArchiveID: entry.ArchiveID,
			Offset:    written,
			Size:      uint32(n),
		})
		written += n
	}

	indexBytes := encodeIndex(index)
	if _, err := out.Write(indexBytes); err != nil {
		return BuildResult{}, fmt.Errorf("write pack index: %w", err)
	}

	footer := Footer{
		BodyOffset:  0,
		IndexOffset: written,
		IndexSize:   uint64(len(indexBytes)),
	}
	if _, err := out.Write(encodeFooter(footer)); err != nil {
		return BuildResult{}, fmt.Errorf("write pack footer: %w", err)
	}
	if err := out.Close(); err != nil {
		return BuildResult{}, fmt.Errorf("finalize pack: %w", err)
	}

	result := BuildResult{
		NumFilters:  len(index),
		Size:        written + uint64(len(indexBytes)) + FooterSize,
		IndexOffset: footer.IndexOffset,
		IndexSize:   footer.IndexSize,
	}
	logger.Info("filter pack built",
		"path", outputPath,
		"filters", result.NumFilters,
		"size", result.Size)
	return result, nil
}

// copyFilterFile appends one filter envelope byte-verbatim and returns its
// size. Each entry must fit the index's u32 size field and may not be
// empty.
func copyFilterFile(out io.Writer, path string) (uint64, error) {
	in, err := os.Open(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("open filter file %s: %w", path, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat filter file %s: %w", path, err)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyFilter, path)
	}
	if info.Size() > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s", ErrFilterTooBig, path)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		return 0, fmt.Errorf("copy filter file %s: %w", path, err)
	}
	return uint64(n), nil
}

func encodeIndex(entries []IndexEntry) []byte {
	var buf bytes.Buffer
	buf.WriteString(IndexMagic)

	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], Version)
	buf.Write(scratch[:4])
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(entries)))
	buf.Write(scratch[:4])

	for _, e := range entries {
		buf.WriteByte(byte(len(e.ArchiveID)))
		buf.WriteString(e.ArchiveID)
		binary.LittleEndian.PutUint64(scratch[:8], e.Offset)
		buf.Write(scratch[:8])
		binary.LittleEndian.PutUint32(scratch[:4], e.Size)
		buf.Write(scratch[:4])
	}
	return buf.Bytes()
}

func encodeFooter(f Footer) []byte {
	buf := make([]byte, FooterSize)
	copy(buf, PackMagic)
	binary.LittleEndian.PutUint32(buf[4:8], Version)
	binary.LittleEndian.PutUint64(buf[8:16], f.BodyOffset)
	binary.LittleEndian.PutUint64(buf[16:24], f.IndexOffset)
	binary.LittleEndian.PutUint64(buf[24:32], f.IndexSize)
	return buf
}
