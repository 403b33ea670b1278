package filter

import (
	"io"
	"math"
)

// minBloomBits keeps degenerate inputs from producing a zero-length bit
// array; anything smaller than a byte cannot be addressed.
const minBloomBits = 8

// BloomFilter is a classic bit-array Bloom filter. Probes are generated by
// double hashing: bit (h1 + i*h2) mod m for i in [0, k).
//
// A filter built with expected element count 0 stays empty and rejects
// every query.
type BloomFilter struct {
	bits      []byte
	numBits   uint64
	numHashes uint32
}

// NewBloom sizes a Bloom filter for the expected element count at the
// target false positive rate. The filter is mutable until serialized;
// stream keys in with Add.
func NewBloom(expectedElements int, falsePositiveRate float64) *BloomFilter {
	f := &BloomFilter{}
	if expectedElements <= 0 {
		return f
	}

	params := BloomPolicy{}.Parameters(falsePositiveRate)
	numBits := uint64(math.Ceil(params.BitsPerKey * float64(expectedElements)))
	if numBits < minBloomBits {
		numBits = minBloomBits
	}

	f.numBits = numBits
	f.numHashes = params.NumHashes
	f.bits = make([]byte, (numBits+7)/8)
	return f
}

// BloomFromKeys builds a filter over a full key set in one shot.
func BloomFromKeys(keys []string, falsePositiveRate float64) *BloomFilter {
	f := NewBloom(len(keys), falsePositiveRate)
	for _, key := range keys {
		f.Add([]byte(key))
	}
	return f
}

func (f *BloomFilter) Add(value []byte) {
	if f.numBits == 0 {
		return
	}
	h1, h2 := HashPair(value)
	for i := uint32(0); i < f.numHashes; i++ {
		f.setBit((h1 + uint64(i)*h2) % f.numBits)
	}
}

func (f *BloomFilter) PossiblyContains(value []byte) bool {
	if len(f.bits) == 0 {
		return false
	}
	h1, h2 := HashPair(value)
	for i := uint32(0); i < f.numHashes; i++ {
		if !f.testBit((h1 + uint64(i)*h2) % f.numBits) {
			return false
		}
	}
	return true
}

func (f *BloomFilter) setBit(bit uint64) {
	f.bits[bit/8] |= 1 << (bit % 8)
}

func (f *BloomFilter) testBit(bit uint64) bool {
	return f.bits[bit/8]&(1<<(bit%8)) != 0
}

func (f *BloomFilter) Kind() Kind       { return KindBloom }
func (f *BloomFilter) IsEmpty() bool    { return len(f.bits) == 0 }
func (f *BloomFilter) MemoryUsage() int { return len(f.bits) }

func (f *BloomFilter) Clone() Filter {
	cp := &BloomFilter{
		numBits:   f.numBits,
		numHashes: f.numHashes,
	}
	if f.bits != nil {
		cp.bits = make([]byte, len(f.bits))
		copy(cp.bits, f.bits)
	}
	return cp
}

// writeBody emits: k(u32) | m(u64) | byte_len(u64) | bytes.
func (f *BloomFilter) writeBody(w io.Writer) error {
	ww := wireWriter{w: w}
	ww.u32(f.numHashes)
	ww.u64(f.numBits)
	ww.u64(uint64(len(f.bits)))
	ww.write(f.bits)
	return ww.err
}

func (f *BloomFilter) readBody(r io.Reader) error {
	rr := wireReader{r: r}
	f.numHashes = rr.u32()
	f.numBits = rr.u64()
	byteLen := rr.u64()
	if rr.err != nil {
		return rr.err
	}
	if byteLen > 0 {
		f.bits = rr.bytes(byteLen)
	} else {
		f.bits = nil
	}
	return rr.err
}
