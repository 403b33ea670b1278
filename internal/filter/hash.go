// Package filter implements the probabilistic set filters used to prune
// archive and schema work during search: Bloom, binary fuse, and the
// composite prefix/suffix and length-partitioned n-gram variants built on
// top of them. Filters answer "possibly contains" with a bounded false
// positive rate and never a false negative.
package filter

import (
	"crypto/sha256"
	"encoding/binary"
	"math/bits"
)

// bloomSalt is appended to a value before the second SHA-256 pass. Part of
// the on-disk contract: the same pair must be computed by every reader of a
// serialized Bloom filter, across languages.
const bloomSalt = "_bloom_"

// HashPair returns two independent 64-bit hashes of value. Deterministic
// and byte-exact across runs and machines; further hashes are derived as
// h1 + i*h2 (double hashing).
func HashPair(value []byte) (h1, h2 uint64) {
	d1 := sha256.Sum256(value)

	salted := make([]byte, 0, len(value)+len(bloomSalt))
	salted = append(salted, value...)
	salted = append(salted, bloomSalt...)
	d2 := sha256.Sum256(salted)

	return binary.LittleEndian.Uint64(d1[:8]), binary.LittleEndian.Uint64(d2[:8])
}

// mix64 folds a 128-bit product into 64 bits.
func mix64(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return hi ^ lo
}

// seededHash hashes key under a seed. The binary fuse construction retries
// with successive seeds until peeling succeeds, so unlike HashPair this
// must be cheap and re-seedable.
func seededHash(key []byte, seed uint32) uint64 {
	h := uint64(seed) ^ 0x9E3779B97F4A7C15
	for _, c := range key {
		h ^= uint64(c)
		h = mix64(h, 0xbf58476d1ce4e5b9)
	}
	return mix64(h, 0x94d049bb133111eb)
}

// fastRange maps hash into [0, n) via (hash*n)>>64, avoiding a modulo.
func fastRange(hash, n uint64) uint64 {
	hi, _ := bits.Mul64(hash, n)
	return hi
}
