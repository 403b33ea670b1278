package filter

import "math"

// Params are the sizing parameters a policy derives from a target false
// positive rate. NumHashes is the hash count for Bloom filters; for binary
// fuse filters it carries the fingerprint width in bits.
type Params struct {
	BitsPerKey float64
	NumHashes  uint32
}

// Policy computes filter sizing from a target false positive rate.
// Policies are stateless and freely shareable.
type Policy interface {
	Parameters(falsePositiveRate float64) Params
}

const (
	maxBloomHashes = 20

	minFingerprintBits = 4
	maxFingerprintBits = 32

	// fuseOverhead is the space expansion of the 3-wise fuse layout.
	fuseOverhead = 1.25
)

// BloomPolicy sizes classic Bloom filters:
//
//	bits_per_key = -log2(fpr) / ln(2)
//	k            = round(bits_per_key * ln(2)), clamped to [1, 20]
type BloomPolicy struct{}

func (BloomPolicy) Parameters(falsePositiveRate float64) Params {
	bpk := bloomBitsPerKey(falsePositiveRate)
	return Params{BitsPerKey: bpk, NumHashes: bloomNumHashes(bpk)}
}

func bloomBitsPerKey(falsePositiveRate float64) float64 {
	if falsePositiveRate <= 0 {
		return 100 // maximum precision; hash count clamps to 20
	}
	if falsePositiveRate >= 1 {
		return 0.1
	}
	return -math.Log2(falsePositiveRate) / math.Ln2
}

func bloomNumHashes(bitsPerKey float64) uint32 {
	k := math.Round(bitsPerKey * math.Ln2)
	if k < 1 {
		return 1
	}
	if k > maxBloomHashes {
		return maxBloomHashes
	}
	return uint32(k)
}

// bloomRateFromBitsPerKey inverts the policy: given a bits-per-key budget it
// returns the optimal hash count and the false positive rate that budget
// buys. Used by the n-gram filter to redistribute a length class's byte
// budget over its distinct n-grams.
func bloomRateFromBitsPerKey(bitsPerKey float64) (uint32, float64) {
	if bitsPerKey <= 0 {
		return 1, 1
	}
	k := bloomNumHashes(bitsPerKey)
	base := 1 - math.Exp(-float64(k)/bitsPerKey)
	return k, math.Pow(base, float64(k))
}

// BinaryFusePolicy sizes binary fuse filters:
//
//	fingerprint_bits = clamp(ceil(-log2(fpr)), 4, 32)
//	bits_per_key     = 1.25 * fingerprint_bits
type BinaryFusePolicy struct{}

func (BinaryFusePolicy) Parameters(falsePositiveRate float64) Params {
	fb := fingerprintBits(falsePositiveRate)
	return Params{BitsPerKey: fuseOverhead * float64(fb), NumHashes: fb}
}

func fingerprintBits(falsePositiveRate float64) uint32 {
	if falsePositiveRate <= 0 {
		return maxFingerprintBits
	}
	if falsePositiveRate >= 1 {
		return minFingerprintBits
	}
	fb := math.Ceil(-math.Log2(falsePositiveRate))
	if fb < minFingerprintBits {
		return minFingerprintBits
	}
	if fb > maxFingerprintBits {
		return maxFingerprintBits
	}
	return uint32(fb)
}
