package archive

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"stratalog/internal/filter"
	"stratalog/internal/logging"
)

// DictWriter builds a variable dictionary: a zstd-compressed sequence of
// (id, value) entries, plus a companion filter envelope written at close.
//
// The filter indexes every value ever observed, including values later
// forgotten from the live map — a value that was moved elsewhere in the
// archive must still probe true, or the pre-dictionary check would
// produce false negatives.
type DictWriter struct {
	path   string
	file   *os.File
	enc    *zstd.Encoder
	logger *slog.Logger

	cfg       filter.Config
	valueToID map[string]uint64
	observed  map[string]struct{}
	nextID    uint64
	closed    bool
}

// NewDictWriter creates the dictionary file at path. cfg selects the
// companion filter; a zero FalsePositiveRate falls back to
// DefaultDictionaryFPR.
func NewDictWriter(path string, cfg filter.Config, logger *slog.Logger) (*DictWriter, error) {
	logger = logging.Default(logger)

	if cfg.FalsePositiveRate == 0 {
		cfg.FalsePositiveRate = DefaultDictionaryFPR
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("create dictionary: %w", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("init zstd writer: %w", err)
	}

	return &DictWriter{
		path:      path,
		file:      f,
		enc:       enc,
		logger:    logger.With("component", "vardict"),
		cfg:       cfg,
		valueToID: make(map[string]uint64),
		observed:  make(map[string]struct{}),
	}, nil
}

// AddEntry assigns an id to value, writing a new dictionary entry if the
// value has not been seen. Entry layout: id(u64) | len(u32) | bytes.
func (w *DictWriter) AddEntry(value string) (uint64, bool, error) {
	if w.closed {
		return 0, false, ErrClosed
	}
	if id, ok := w.valueToID[value]; ok {
		return id, false, nil
	}

	id := w.nextID
	w.nextID++
	w.valueToID[value] = id
	w.observed[value] = struct{}{}

	var hdr [12]byte
	binary.LittleEndian.PutUint64(hdr[:8], id)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(value)))
	if _, err := w.enc.Write(hdr[:]); err != nil {
		return 0, false, fmt.Errorf("write entry header: %w", err)
	}
	if _, err := w.enc.Write([]byte(value)); err != nil {
		return 0, false, fmt.Errorf("write entry value: %w", err)
	}
	return id, true, nil
}

// Forget drops a value from the live map, e.g. when the ingestor decides
// to store it elsewhere in the archive. The value stays in the observed
// set so the companion filter keeps covering it.
func (w *DictWriter) Forget(value string) {
	delete(w.valueToID, value)
}

// Len returns the number of live entries.
func (w *DictWriter) Len() int { return len(w.valueToID) }

// Close finishes the dictionary stream and emits the companion filter
// envelope at <path>.filter over the full observed value set.
func (w *DictWriter) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true

	if err := w.enc.Close(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("finish dictionary stream: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close dictionary: %w", err)
	}

	values := make([]string, 0, len(w.observed))
	for v := range w.observed {
		values = append(values, v)
	}
	env, err := filter.BuildEnvelope(w.cfg, values)
	if err != nil {
		// A failed filter build must not lose the dictionary itself; record
		// an explicit None envelope so readers fall back to a full load.
		w.logger.Warn("filter construction failed, writing None envelope", "error", err)
		env = &filter.Envelope{
			Config:      filter.Config{Kind: filter.KindNone, FalsePositiveRate: w.cfg.FalsePositiveRate},
			NumElements: uint64(len(values)),
		}
	}

	filterPath := w.path + FilterFileSuffix
	out, err := os.Create(filterPath)
	if err != nil {
		return fmt.Errorf("create dictionary filter: %w", err)
	}
	if err := env.Encode(out); err != nil {
		_ = out.Close()
		return fmt.Errorf("write dictionary filter: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close dictionary filter: %w", err)
	}

	w.logger.Debug("dictionary closed",
		"entries", len(w.valueToID),
		"observed", len(w.observed),
		"filter", env.Config.Kind.String())
	return nil
}

// Dict is a fully-loaded variable dictionary.
type Dict struct {
	byValue map[string]uint64
	byID    map[uint64]string
}

// OpenDict loads and decompresses a dictionary file.
func OpenDict(path string) (*Dict, error) {
	data, err := readCompressed(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}

	d := &Dict{
		byValue: make(map[string]uint64),
		byID:    make(map[uint64]string),
	}
	off := 0
	for off < len(data) {
		if off+12 > len(data) {
			return nil, ErrTruncatedEntry
		}
		id := binary.LittleEndian.Uint64(data[off : off+8])
		n := int(binary.LittleEndian.Uint32(data[off+8 : off+12]))
		off += 12
		if off+n > len(data) {
			return nil, ErrTruncatedEntry
		}
		value := string(data[off : off+n])
		off += n
		d.byValue[value] = id
		d.byID[id] = value
	}
	return d, nil
}

// IDFor looks up the id of a value.
func (d *Dict) IDFor(value string) (uint64, bool) {
	id, ok := d.byValue[value]
	return id, ok
}

// ValueOf looks up the value of an id.
func (d *Dict) ValueOf(id uint64) (string, bool) {
	v, ok := d.byID[id]
	return v, ok
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.byValue) }

// LoadDictFilter reads the companion filter envelope of the dictionary at
// dictPath.
func LoadDictFilter(dictPath string) (*filter.Envelope, error) {
	f, err := os.Open(filepath.Clean(dictPath + FilterFileSuffix))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return filter.DecodeEnvelope(f)
}
