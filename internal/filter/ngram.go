package filter

import (
	"io"
	"math"
	"slices"
)

// N-gram selection parameters. The alphabet size approximates printable
// log text; the target collision rate bounds how often two distinct keys
// share an n-gram.
const (
	ngramAlphabetSize        = 96
	ngramTargetCollisionRate = 0.5
)

// NGramPartitionedFilter partitions keys by length and indexes each length
// class separately. Classes at or above the global n-gram length index the
// distinct n-grams of their keys, with the per-n-gram false positive rate
// scaled so the class costs the same bytes as a direct Bloom filter over
// its keys; shorter classes index full keys. Static after construction.
type NGramPartitionedFilter struct {
	n       uint32
	classes map[uint32]Probabilistic
}

// BuildNGramPartitioned builds the filter over a key set in one shot.
func BuildNGramPartitioned(keys []string, falsePositiveRate float64) *NGramPartitionedFilter {
	f := &NGramPartitionedFilter{classes: make(map[uint32]Probabilistic)}
	if len(keys) == 0 {
		return f
	}

	byLength := make(map[uint32][]string)
	totalLength := 0
	for _, key := range dedupe(slices.Clone(keys)) {
		byLength[uint32(len(key))] = append(byLength[uint32(len(key))], key)
		totalLength += len(key)
	}
	keyCount := 0
	for _, class := range byLength {
		keyCount += len(class)
	}

	avgKeyLength := float64(totalLength) / float64(keyCount)
	f.n = chooseNGramLength(keyCount, avgKeyLength)

	for length, class := range byLength {
		f.classes[length] = buildLengthClass(class, length, f.n, falsePositiveRate)
	}
	return f
}

// chooseNGramLength solves A^n ≈ K / -ln(1-T) for n, clamped to
// [1, floor(avg_key_length)].
func chooseNGramLength(keyCount int, avgKeyLength float64) uint32 {
	denom := -math.Log(1 - ngramTargetCollisionRate)
	n := int(math.Round(math.Log(float64(keyCount)/denom) / math.Log(ngramAlphabetSize)))
	if n < 1 {
		n = 1
	}
	if maxN := int(math.Floor(avgKeyLength)); n > maxN && maxN >= 1 {
		n = maxN
	}
	return uint32(n)
}

func buildLengthClass(class []string, length, n uint32, falsePositiveRate float64) Probabilistic {
	if length < n {
		return Probabilistic{impl: BloomFromKeys(class, falsePositiveRate)}
	}

	ngrams := distinctNGrams(class, int(n))
	if len(ngrams) == 0 {
		return Probabilistic{impl: BloomFromKeys(class, falsePositiveRate)}
	}

	// Spend the same byte budget a direct Bloom filter over the class's
	// keys would use, spread across the distinct n-grams.
	totalBits := bloomBitsPerKey(falsePositiveRate) * float64(len(class))
	bitsPerNGram := totalBits / float64(len(ngrams))
	_, perNGramRate := bloomRateFromBitsPerKey(bitsPerNGram)

	return Probabilistic{impl: BloomFromKeys(ngrams, perNGramRate)}
}

func distinctNGrams(keys []string, n int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, key := range keys {
		for pos := 0; pos+n <= len(key); pos++ {
			gram := key[pos : pos+n]
			if _, ok := seen[gram]; ok {
				continue
			}
			seen[gram] = struct{}{}
			out = append(out, gram)
		}
	}
	return out
}

// Add always panics: the partitioning is fixed at construction.
func (f *NGramPartitionedFilter) Add([]byte) {
	panic("n-gram partitioned filter is static; build it from a key set")
}

func (f *NGramPartitionedFilter) PossiblyContains(value []byte) bool {
	inner, ok := f.classes[uint32(len(value))]
	if !ok {
		return false
	}
	if uint32(len(value)) < f.n {
		return inner.PossiblyContains(value)
	}
	n := int(f.n)
	for pos := 0; pos+n <= len(value); pos++ {
		if !inner.PossiblyContains(value[pos : pos+n]) {
			return false
		}
	}
	return true
}

func (f *NGramPartitionedFilter) Kind() Kind    { return KindNGramPartitioned }
func (f *NGramPartitionedFilter) IsEmpty() bool { return len(f.classes) == 0 }

func (f *NGramPartitionedFilter) MemoryUsage() int {
	total := 0
	for _, inner := range f.classes {
		total += inner.MemoryUsage()
	}
	return total
}

func (f *NGramPartitionedFilter) Clone() Filter {
	cp := &NGramPartitionedFilter{n: f.n}
	if f.classes != nil {
		cp.classes = make(map[uint32]Probabilistic, len(f.classes))
		for length, inner := range f.classes {
			cp.classes[length] = inner.Clone()
		}
	}
	return cp
}

// writeBody emits: n(u32) | class_count(u32) | repeated
// { length(u32) | inner filter with its own kind byte }, ordered by length
// so the encoding is deterministic.
func (f *NGramPartitionedFilter) writeBody(w io.Writer) error {
	ww := wireWriter{w: w}
	ww.u32(f.n)
	ww.u32(uint32(len(f.classes)))
	if ww.err != nil {
		return ww.err
	}

	lengths := make([]uint32, 0, len(f.classes))
	for length := range f.classes {
		lengths = append(lengths, length)
	}
	slices.Sort(lengths)

	for _, length := range lengths {
		ww.u32(length)
		if ww.err != nil {
			return ww.err
		}
		if err := writeTagged(w, f.classes[length]); err != nil {
			return err
		}
	}
	return nil
}

func (f *NGramPartitionedFilter) readBody(r io.Reader) error {
	rr := wireReader{r: r}
	f.n = rr.u32()
	classCount := rr.u32()
	if rr.err != nil {
		return rr.err
	}

	f.classes = make(map[uint32]Probabilistic, classCount)
	for i := uint32(0); i < classCount; i++ {
		length := rr.u32()
		if rr.err != nil {
			return rr.err
		}
		inner, err := readTagged(r)
		if err != nil {
			return err
		}
		f.classes[length] = inner
	}
	return nil
}
