package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"

	"stratalog/internal/filter"
)

// columnSelectivityThreshold decides which columns get a persisted value
// set: only columns whose distinct/total ratio stays at or below this are
// selective enough to be worth the bytes.
const columnSelectivityThreshold = 0.1

// schemaVarFilterName and friends name the per-schema artifacts.
func schemaVarFilterName(schemaID int32) string {
	return fmt.Sprintf("schema_%d.sfilter", schemaID)
}

func schemaIntFilterName(schemaID int32) string {
	return fmt.Sprintf("schema_%d.ifilter", schemaID)
}

func schemaStrFilterName(schemaID int32) string {
	return fmt.Sprintf("schema_%d.cfilter", schemaID)
}

// BuildSchemaVarFilter builds the per-schema filter over the variable
// dictionary ids a schema references, encoded as decimal strings.
func BuildSchemaVarFilter(ids []uint64, cfg filter.Config) (*filter.Envelope, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = strconv.FormatUint(id, 10)
	}
	return filter.BuildEnvelope(cfg, keys)
}

// IntColumnFilter tracks, per column, the exhaustive set of int64 values a
// schema contains. At write time only selective columns are persisted.
type IntColumnFilter struct {
	values map[int32]map[int64]struct{}
	counts map[int32]int
}

func NewIntColumnFilter() *IntColumnFilter {
	return &IntColumnFilter{
		values: make(map[int32]map[int64]struct{}),
		counts: make(map[int32]int),
	}
}

// AddValue records one occurrence of value in column.
func (f *IntColumnFilter) AddValue(columnID int32, value int64) {
	set, ok := f.values[columnID]
	if !ok {
		set = make(map[int64]struct{})
		f.values[columnID] = set
	}
	set[value] = struct{}{}
	f.counts[columnID]++
}

// Contains reports whether value might appear in column. A column with no
// persisted set admits — only selective columns are written, so absence
// proves nothing. A present set is exhaustive, so a missing value is a
// definite miss.
func (f *IntColumnFilter) Contains(columnID int32, value int64) bool {
	set, ok := f.values[columnID]
	if !ok {
		return true
	}
	_, ok = set[value]
	return ok
}

func (f *IntColumnFilter) IsEmpty() bool { return len(f.values) == 0 }

// Encode writes the selective columns:
// count(u32) | { column_id(i32) | num_values(u64) | values(i64)... }.
func (f *IntColumnFilter) Encode() []byte {
	selected := make([]int32, 0, len(f.values))
	for columnID, set := range f.values {
		total := f.counts[columnID]
		if total <= 0 {
			continue
		}
		if float64(len(set))/float64(total) <= columnSelectivityThreshold {
			selected = append(selected, columnID)
		}
	}

	var buf bytes.Buffer
	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(selected)))
	buf.Write(scratch[:4])
	for _, columnID := range selected {
		binary.LittleEndian.PutUint32(scratch[:4], uint32(columnID))
		buf.Write(scratch[:4])
		set := f.values[columnID]
		binary.LittleEndian.PutUint64(scratch[:8], uint64(len(set)))
		buf.Write(scratch[:8])
		for v := range set {
			binary.LittleEndian.PutUint64(scratch[:8], uint64(v))
			buf.Write(scratch[:8])
		}
	}
	return buf.Bytes()
}

// DecodeIntColumnFilter reads an encoded filter. Counts are not persisted;
// a decoded filter is query-only.
func DecodeIntColumnFilter(data []byte) (*IntColumnFilter, error) {
	f := NewIntColumnFilter()
	off := 0
	if len(data) < 4 {
		return nil, ErrColumnFilterData
	}
	numColumns := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	for i := uint32(0); i < numColumns; i++ {
		if off+12 > len(data) {
			return nil, ErrColumnFilterData
		}
		columnID := int32(binary.LittleEndian.Uint32(data[off : off+4]))
		num := binary.LittleEndian.Uint64(data[off+4 : off+12])
		off += 12
		if uint64(len(data)-off) < num*8 {
			return nil, ErrColumnFilterData
		}
		set := make(map[int64]struct{}, num)
		for j := uint64(0); j < num; j++ {
			set[int64(binary.LittleEndian.Uint64(data[off:off+8]))] = struct{}{}
			off += 8
		}
		f.values[columnID] = set
	}
	return f, nil
}

// StrColumnFilter is the string-column counterpart of IntColumnFilter.
type StrColumnFilter struct {
	values map[int32]map[string]struct{}
	counts map[int32]int
}

func NewStrColumnFilter() *StrColumnFilter {
	return &StrColumnFilter{
		values: make(map[int32]map[string]struct{}),
		counts: make(map[int32]int),
	}
}

func (f *StrColumnFilter) AddValue(columnID int32, value string) {
	set, ok := f.values[columnID]
	if !ok {
		set = make(map[string]struct{})
		f.values[columnID] = set
	}
	set[value] = struct{}{}
	f.counts[columnID]++
}

// Contains mirrors IntColumnFilter.Contains: absent column admits,
// present set is exhaustive.
func (f *StrColumnFilter) Contains(columnID int32, value string) bool {
	set, ok := f.values[columnID]
	if !ok {
		return true
	}
	_, ok = set[value]
	return ok
}

func (f *StrColumnFilter) IsEmpty() bool { return len(f.values) == 0 }

// Encode writes the selective columns:
// count(u32) | { column_id(i32) | num_values(u64) | { len(u64) | bytes }... }.
func (f *StrColumnFilter) Encode() []byte {
	selected := make([]int32, 0, len(f.values))
	for columnID, set := range f.values {
		total := f.counts[columnID]
		if total <= 0 {
			continue
		}
		if float64(len(set))/float64(total) <= columnSelectivityThreshold {
			selected = append(selected, columnID)
		}
	}

	var buf bytes.Buffer
	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(selected)))
	buf.Write(scratch[:4])
	for _, columnID := range selected {
		binary.LittleEndian.PutUint32(scratch[:4], uint32(columnID))
		buf.Write(scratch[:4])
		set := f.values[columnID]
		binary.LittleEndian.PutUint64(scratch[:8], uint64(len(set)))
		buf.Write(scratch[:8])
		for v := range set {
			binary.LittleEndian.PutUint64(scratch[:8], uint64(len(v)))
			buf.Write(scratch[:8])
			buf.WriteString(v)
		}
	}
	return buf.Bytes()
}

// DecodeStrColumnFilter reads an encoded filter.
func DecodeStrColumnFilter(data []byte) (*StrColumnFilter, error) {
	f := NewStrColumnFilter()
	off := 0
	if len(data) < 4 {
		return nil, ErrColumnFilterData
	}
	numColumns := binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	for i := uint32(0); i < numColumns; i++ {
		if off+12 > len(data) {
			return nil, ErrColumnFilterData
		}
		columnID := int32(binary.LittleEndian.Uint32(data[off : off+4]))
		num := binary.LittleEndian.Uint64(data[off+4 : off+12])
		off += 12
		set := make(map[string]struct{}, num)
		for j := uint64(0); j < num; j++ {
			if off+8 > len(data) {
				return nil, ErrColumnFilterData
			}
			n := binary.LittleEndian.Uint64(data[off : off+8])
			off += 8
			if uint64(len(data)-off) < n {
				return nil, ErrColumnFilterData
			}
			set[string(data[off:off+int(n)])] = struct{}{}
			off += int(n)
		}
		f.values[columnID] = set
	}
	return f, nil
}
