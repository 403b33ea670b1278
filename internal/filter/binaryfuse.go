package filter

import (
	"fmt"
	"io"
	"math"
)

// Binary fuse construction constants. The expansion factor keeps the
// peeling success probability high enough that a handful of seed retries
// suffices; small key sets need a wider margin.
const (
	fuseMinKeys      = 32
	fuseCritical     = 1.23
	fuseMaxExpansion = 2.0
	fuseMaxAttempts  = 500
)

// BinaryFuseFilter is a static 3-wise XOR filter with bit-packed
// fingerprints. It is built in one shot from a finite key set; Add after
// construction is a programmer error and panics.
type BinaryFuseFilter struct {
	data            *bitArray
	segmentLength   uint64
	arraySize       uint64
	fingerprintBits uint32
	fingerprintMask uint32
	seed            uint32
}

// BuildBinaryFuse constructs a filter over keys at the target false
// positive rate. Keys must be distinct; construction retries peeling with
// successive seeds and fails with ErrConstructionFailed once the attempt
// cap is exhausted (which, in practice, signals duplicate keys).
func BuildBinaryFuse(keys []string, falsePositiveRate float64) (*BinaryFuseFilter, error) {
	f := &BinaryFuseFilter{}
	if len(keys) == 0 {
		return f, nil
	}

	n := uint64(len(keys))
	if n < fuseMinKeys {
		n = fuseMinKeys
	}

	params := BinaryFusePolicy{}.Parameters(falsePositiveRate)
	f.fingerprintBits = params.NumHashes
	f.fingerprintMask = fingerprintMask(f.fingerprintBits)

	expansion := fuseCritical
	if n < 10000 {
		expansion += 0.02
	} else {
		expansion += 0.005
	}
	if expansion > fuseMaxExpansion {
		expansion = fuseMaxExpansion
	}

	f.segmentLength = uint64(math.Ceil(float64(n) * expansion / 3))
	f.arraySize = 3 * f.segmentLength
	f.data = newBitArray(f.fingerprintBits, f.arraySize)

	for seed := uint32(0); seed < fuseMaxAttempts; seed++ {
		f.seed = seed
		if f.tryConstruct(keys) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w after %d attempts over %d keys", ErrConstructionFailed, fuseMaxAttempts, len(keys))
}

// keyLocations holds the three slot positions and the fingerprint of one key.
type keyLocations struct {
	p0, p1, p2 uint64
	fp         uint32
}

func (f *BinaryFuseFilter) locate(key []byte) keyLocations {
	h := seededHash(key, f.seed)

	fp := uint32(h) & f.fingerprintMask
	if fp == 0 {
		fp = 1 // zero is the empty-slot value
	}

	h1 := h>>21 | h<<43
	h2 := h>>42 | h<<22

	return keyLocations{
		p0: fastRange(h, f.segmentLength),
		p1: f.segmentLength + fastRange(h1, f.segmentLength),
		p2: 2*f.segmentLength + fastRange(h2, f.segmentLength),
		fp: fp,
	}
}

// tryConstruct runs one peel-and-assign pass under the current seed.
func (f *BinaryFuseFilter) tryConstruct(keys []string) bool {
	n := len(keys)
	f.data.reset()

	locs := make([]keyLocations, n)
	for i, key := range keys {
		locs[i] = f.locate([]byte(key))
	}

	counts := make([]uint32, f.arraySize)
	xorKeys := make([]uint64, f.arraySize)
	for i, loc := range locs {
		counts[loc.p0]++
		xorKeys[loc.p0] ^= uint64(i)
		counts[loc.p1]++
		xorKeys[loc.p1] ^= uint64(i)
		counts[loc.p2]++
		xorKeys[loc.p2] ^= uint64(i)
	}

	// Peel: repeatedly remove slots referenced by exactly one key.
	queue := make([]uint64, 0, f.arraySize)
	for slot := uint64(0); slot < f.arraySize; slot++ {
		if counts[slot] == 1 {
			queue = append(queue, slot)
		}
	}

	type peeled struct {
		key  uint64
		slot uint64
	}
	stack := make([]peeled, 0, n)

	for head := 0; head < len(queue); head++ {
		slot := queue[head]
		if counts[slot] != 1 {
			continue
		}
		key := xorKeys[slot]
		stack = append(stack, peeled{key: key, slot: slot})

		loc := locs[key]
		for _, p := range [3]uint64{loc.p0, loc.p1, loc.p2} {
			xorKeys[p] ^= key
			counts[p]--
			if counts[p] == 1 {
				queue = append(queue, p)
			}
		}
	}

	if len(stack) != n {
		return false
	}

	// Assign in reverse peel order so each key's free slot is fixed last.
	for i := len(stack) - 1; i >= 0; i-- {
		key, slot := stack[i].key, stack[i].slot
		loc := locs[key]
		xorVal := f.data.get(loc.p0) ^ f.data.get(loc.p1) ^ f.data.get(loc.p2)
		f.data.set(slot, loc.fp^xorVal)
	}
	return true
}

// Add always panics: the filter is static after construction.
func (f *BinaryFuseFilter) Add([]byte) {
	panic("binary fuse filter is static; build it from a key set")
}

func (f *BinaryFuseFilter) PossiblyContains(value []byte) bool {
	if f.data == nil || len(f.data.bytes) == 0 {
		return false
	}
	loc := f.locate(value)
	return f.data.get(loc.p0)^f.data.get(loc.p1)^f.data.get(loc.p2) == loc.fp
}

func (f *BinaryFuseFilter) Kind() Kind    { return KindBinaryFuse }
func (f *BinaryFuseFilter) IsEmpty() bool { return f.data == nil || len(f.data.bytes) == 0 }

func (f *BinaryFuseFilter) MemoryUsage() int {
	if f.data == nil {
		return 0
	}
	return len(f.data.bytes)
}

func (f *BinaryFuseFilter) Clone() Filter {
	cp := *f
	if f.data != nil {
		data := *f.data
		data.bytes = make([]byte, len(f.data.bytes))
		copy(data.bytes, f.data.bytes)
		cp.data = &data
	}
	return &cp
}

// writeBody emits:
// fp_bits(u32) | seed(u32) | array_size(u64) | segment_length(u64) | byte_len(u64) | bytes.
func (f *BinaryFuseFilter) writeBody(w io.Writer) error {
	ww := wireWriter{w: w}
	ww.u32(f.fingerprintBits)
	ww.u32(f.seed)
	ww.u64(f.arraySize)
	ww.u64(f.segmentLength)
	if f.data == nil {
		ww.u64(0)
	} else {
		ww.u64(uint64(len(f.data.bytes)))
		ww.write(f.data.bytes)
	}
	return ww.err
}

func (f *BinaryFuseFilter) readBody(r io.Reader) error {
	rr := wireReader{r: r}
	f.fingerprintBits = rr.u32()
	f.seed = rr.u32()
	f.arraySize = rr.u64()
	f.segmentLength = rr.u64()
	byteLen := rr.u64()
	if rr.err != nil {
		return rr.err
	}
	f.fingerprintMask = fingerprintMask(f.fingerprintBits)
	if byteLen == 0 {
		f.data = nil
		return nil
	}
	f.data = &bitArray{
		width: f.fingerprintBits,
		slots: f.arraySize,
		bytes: rr.bytes(byteLen),
	}
	return rr.err
}

func fingerprintMask(bits uint32) uint32 {
	if bits >= 32 {
		return ^uint32(0)
	}
	return (1 << bits) - 1
}
