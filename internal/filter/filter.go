package filter

import (
	"fmt"
	"io"
	"strings"
)

// Kind identifies a filter implementation. Serialized as a single byte in
// envelopes and in composite filter bodies; values are part of the on-disk
// format and must not be reordered.
type Kind uint8

const (
	KindNone Kind = iota
	KindBloom
	KindBinaryFuse
	KindPrefixSuffix
	KindNGramPartitioned
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBloom:
		return "bloom"
	case KindBinaryFuse:
		return "binary_fuse"
	case KindPrefixSuffix:
		return "prefix_suffix"
	case KindNGramPartitioned:
		return "ngram_partitioned"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseKind maps a configuration string to a Kind. Accepts the canonical
// names plus the legacy "bloom_v1" spelling.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(s) {
	case "none":
		return KindNone, true
	case "bloom", "bloom_v1":
		return KindBloom, true
	case "binary_fuse", "binaryfuse":
		return KindBinaryFuse, true
	case "prefix_suffix":
		return KindPrefixSuffix, true
	case "ngram_partitioned", "ngram":
		return KindNGramPartitioned, true
	}
	return KindNone, false
}

// Config carries the parameters persisted alongside a filter.
type Config struct {
	Kind              Kind
	FalsePositiveRate float64
	// Normalize records whether terms were lowercased before insertion;
	// queries against the filter must apply the same normalization.
	Normalize bool
}

// Filter is the capability set shared by every filter kind. Add is a
// build-time operation; once a filter has been serialized or returned from
// a one-shot builder it must be treated as immutable.
type Filter interface {
	Add(value []byte)
	PossiblyContains(value []byte) bool
	Kind() Kind
	IsEmpty() bool
	MemoryUsage() int
	Clone() Filter

	writeBody(w io.Writer) error
	readBody(r io.Reader) error
}

// Probabilistic wraps the closed set of filter kinds with value semantics:
// the zero value is the None filter, copies share the implementation until
// Clone is called. It is the unit the envelope and pack layers traffic in.
type Probabilistic struct {
	impl Filter
}

// Build constructs a filter of the configured kind over the key set.
// KindNone yields an always-empty filter.
func Build(cfg Config, keys []string) (Probabilistic, error) {
	normalized := keys
	if cfg.Normalize {
		normalized = make([]string, len(keys))
		for i, key := range keys {
			normalized[i] = strings.ToLower(key)
		}
		normalized = dedupe(normalized)
	}

	switch cfg.Kind {
	case KindNone:
		return Probabilistic{}, nil
	case KindBloom:
		return Probabilistic{impl: BloomFromKeys(normalized, cfg.FalsePositiveRate)}, nil
	case KindBinaryFuse:
		f, err := BuildBinaryFuse(normalized, cfg.FalsePositiveRate)
		if err != nil {
			return Probabilistic{}, err
		}
		return Probabilistic{impl: f}, nil
	case KindPrefixSuffix:
		return Probabilistic{impl: BuildPrefixSuffix(normalized, cfg.FalsePositiveRate)}, nil
	case KindNGramPartitioned:
		return Probabilistic{impl: BuildNGramPartitioned(normalized, cfg.FalsePositiveRate)}, nil
	}
	return Probabilistic{}, fmt.Errorf("%w: %d", ErrUnknownKind, cfg.Kind)
}

// newEmpty returns an unpopulated filter of the given kind, ready for
// readBody. KindNone maps to no implementation.
func newEmpty(kind Kind) (Probabilistic, error) {
	switch kind {
	case KindNone:
		return Probabilistic{}, nil
	case KindBloom:
		return Probabilistic{impl: &BloomFilter{}}, nil
	case KindBinaryFuse:
		return Probabilistic{impl: &BinaryFuseFilter{}}, nil
	case KindPrefixSuffix:
		return Probabilistic{impl: &PrefixSuffixFilter{}}, nil
	case KindNGramPartitioned:
		return Probabilistic{impl: &NGramPartitionedFilter{}}, nil
	}
	return Probabilistic{}, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
}

func (p Probabilistic) Add(value []byte) {
	if p.impl != nil {
		p.impl.Add(value)
	}
}

func (p Probabilistic) PossiblyContains(value []byte) bool {
	if p.impl == nil {
		return false
	}
	return p.impl.PossiblyContains(value)
}

func (p Probabilistic) Kind() Kind {
	if p.impl == nil {
		return KindNone
	}
	return p.impl.Kind()
}

func (p Probabilistic) IsEmpty() bool {
	return p.impl == nil || p.impl.IsEmpty()
}

func (p Probabilistic) MemoryUsage() int {
	if p.impl == nil {
		return 0
	}
	return p.impl.MemoryUsage()
}

func (p Probabilistic) Clone() Probabilistic {
	if p.impl == nil {
		return Probabilistic{}
	}
	return Probabilistic{impl: p.impl.Clone()}
}

// writeTagged frames a filter as kind(u8) | body. This is the framing used
// for inner filters inside composite bodies; the envelope header carries
// the kind for top-level filters instead.
func writeTagged(w io.Writer, p Probabilistic) error {
	ww := wireWriter{w: w}
	ww.u8(uint8(p.Kind()))
	if ww.err != nil {
		return ww.err
	}
	if p.impl == nil {
		return nil
	}
	return p.impl.writeBody(w)
}

func readTagged(r io.Reader) (Probabilistic, error) {
	rr := wireReader{r: r}
	kind := Kind(rr.u8())
	if rr.err != nil {
		return Probabilistic{}, rr.err
	}
	p, err := newEmpty(kind)
	if err != nil {
		return Probabilistic{}, err
	}
	if p.impl == nil {
		return p, nil
	}
	if err := p.impl.readBody(r); err != nil {
		return Probabilistic{}, err
	}
	return p, nil
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
