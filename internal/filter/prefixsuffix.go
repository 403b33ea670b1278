package filter

import (
	"fmt"
	"io"
	"strings"
)

// Prefix indexing parameters: every prefix of length prefixMinLen,
// prefixMinLen+prefixStride, ... up to the full key is inserted.
const (
	prefixMinLen = 3
	prefixStride = 1
)

// PrefixSuffixFilter answers wildcard-shaped queries with a pair of Bloom
// filters: the forward filter indexes the prefixes of each key, the
// reverse filter indexes the prefixes of each reversed key (i.e. the
// key's suffixes). Shapes it cannot decide (*infix*, prefix*suffix)
// always admit.
type PrefixSuffixFilter struct {
	forward *BloomFilter
	reverse *BloomFilter
}

// NewPrefixSuffix sizes the filter pair for the expected key count, using
// the average key length to estimate how many prefixes each key expands to.
func NewPrefixSuffix(expectedElements int, falsePositiveRate float64, avgKeyLength int) *PrefixSuffixFilter {
	perKey := 1
	if avgKeyLength > prefixMinLen {
		perKey = (avgKeyLength-prefixMinLen)/prefixStride + 1
	}
	capacity := expectedElements * perKey
	return &PrefixSuffixFilter{
		forward: NewBloom(capacity, falsePositiveRate),
		reverse: NewBloom(capacity, falsePositiveRate),
	}
}

// BuildPrefixSuffix builds the filter pair over a full key set, sizing
// from the exact prefix count instead of an estimate.
func BuildPrefixSuffix(keys []string, falsePositiveRate float64) *PrefixSuffixFilter {
	total := 0
	for _, key := range keys {
		if len(key) >= prefixMinLen {
			total += (len(key)-prefixMinLen)/prefixStride + 1
		}
	}
	if total == 0 {
		total = len(keys)
	}

	f := &PrefixSuffixFilter{
		forward: NewBloom(total, falsePositiveRate),
		reverse: NewBloom(total, falsePositiveRate),
	}
	for _, key := range keys {
		f.Add([]byte(key))
	}
	return f
}

func (f *PrefixSuffixFilter) Add(value []byte) {
	if len(value) == 0 {
		return
	}
	addPrefixes(value, f.forward)
	addPrefixes(reverseBytes(value), f.reverse)
}

func addPrefixes(value []byte, filter *BloomFilter) {
	if len(value) < prefixMinLen {
		filter.Add(value)
		return
	}
	for n := prefixMinLen; n <= len(value); n += prefixStride {
		filter.Add(value[:n])
	}
	if (len(value)-prefixMinLen)%prefixStride != 0 {
		filter.Add(value)
	}
}

// PossiblyContains interprets value as a wildcard pattern:
//
//	*infix*        always admits (substring search needs n-grams)
//	*suffix        probes the reverse filter with the reversed suffix
//	prefix*        probes the forward filter with the prefix
//	prefix*suffix  always admits (split point is unknown)
//	exact          probes the forward filter
func (f *PrefixSuffixFilter) PossiblyContains(value []byte) bool {
	if f.IsEmpty() {
		return false
	}

	pattern := string(value)
	leading := strings.HasPrefix(pattern, "*")
	trailing := strings.HasSuffix(pattern, "*")

	switch {
	case leading && trailing:
		return true
	case leading:
		suffix := pattern[1:]
		if strings.Contains(suffix, "*") {
			return true
		}
		return f.reverse.PossiblyContains(reverseBytes([]byte(suffix)))
	case trailing:
		prefix := pattern[:len(pattern)-1]
		if strings.Contains(prefix, "*") {
			return true
		}
		return f.forward.PossiblyContains([]byte(prefix))
	default:
		if strings.Contains(pattern, "*") {
			return true
		}
		return f.forward.PossiblyContains(value)
	}
}

func (f *PrefixSuffixFilter) Kind() Kind { return KindPrefixSuffix }

func (f *PrefixSuffixFilter) IsEmpty() bool {
	return f.forward == nil || f.forward.IsEmpty()
}

func (f *PrefixSuffixFilter) MemoryUsage() int {
	total := 0
	if f.forward != nil {
		total += f.forward.MemoryUsage()
	}
	if f.reverse != nil {
		total += f.reverse.MemoryUsage()
	}
	return total
}

func (f *PrefixSuffixFilter) Clone() Filter {
	cp := &PrefixSuffixFilter{}
	if f.forward != nil {
		cp.forward = f.forward.Clone().(*BloomFilter)
	}
	if f.reverse != nil {
		cp.reverse = f.reverse.Clone().(*BloomFilter)
	}
	return cp
}

// writeBody emits both inner filters with their own kind bytes:
// kind(u8=Bloom) | forward-body | kind(u8=Bloom) | reverse-body.
func (f *PrefixSuffixFilter) writeBody(w io.Writer) error {
	forward, reverse := f.forward, f.reverse
	if forward == nil {
		forward = &BloomFilter{}
	}
	if reverse == nil {
		reverse = &BloomFilter{}
	}
	if err := writeTagged(w, Probabilistic{impl: forward}); err != nil {
		return err
	}
	return writeTagged(w, Probabilistic{impl: reverse})
}

func (f *PrefixSuffixFilter) readBody(r io.Reader) error {
	forward, err := readTagged(r)
	if err != nil {
		return err
	}
	reverse, err := readTagged(r)
	if err != nil {
		return err
	}
	fb, ok := forward.impl.(*BloomFilter)
	if !ok {
		return fmt.Errorf("%w: prefix/suffix forward filter is %s", ErrUnknownKind, forward.Kind())
	}
	rb, ok := reverse.impl.(*BloomFilter)
	if !ok {
		return fmt.Errorf("%w: prefix/suffix reverse filter is %s", ErrUnknownKind, reverse.Kind())
	}
	f.forward, f.reverse = fb, rb
	return nil
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}
