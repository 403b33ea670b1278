package filter

import "testing"

func TestKindStringAndParse(t *testing.T) {
	for _, kind := range []Kind{KindNone, KindBloom, KindBinaryFuse, KindPrefixSuffix, KindNGramPartitioned} {
		parsed, ok := ParseKind(kind.String())
		if !ok || parsed != kind {
			t.Errorf("ParseKind(%q) = %v, %v", kind.String(), parsed, ok)
		}
	}
	if k, ok := ParseKind("bloom_v1"); !ok || k != KindBloom {
		t.Errorf("legacy spelling bloom_v1 not accepted")
	}
	if _, ok := ParseKind("bogus"); ok {
		t.Errorf("bogus kind accepted")
	}
}

func TestProbabilisticZeroValue(t *testing.T) {
	var p Probabilistic
	if p.Kind() != KindNone {
		t.Errorf("zero value kind = %v, want None", p.Kind())
	}
	if !p.IsEmpty() {
		t.Errorf("zero value not empty")
	}
	if p.PossiblyContains([]byte("x")) {
		t.Errorf("zero value admitted a query")
	}
	p.Add([]byte("x")) // must be a no-op, not a panic
	if p.MemoryUsage() != 0 {
		t.Errorf("zero value reports memory usage")
	}
}

func TestBuildDispatch(t *testing.T) {
	keys := []string{"one", "two", "three"}
	for _, kind := range []Kind{KindBloom, KindBinaryFuse, KindPrefixSuffix, KindNGramPartitioned} {
		p, err := Build(Config{Kind: kind, FalsePositiveRate: 0.05}, keys)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if p.Kind() != kind {
			t.Errorf("built kind = %v, want %v", p.Kind(), kind)
		}
		for _, key := range keys {
			if !p.PossiblyContains([]byte(key)) {
				t.Errorf("%s: member %q rejected", kind, key)
			}
		}
	}
}

func TestBuildNormalizeDeduplicates(t *testing.T) {
	// "Error" and "ERROR" collapse to one key; binary fuse construction
	// would otherwise fail on the duplicate.
	p, err := Build(Config{Kind: KindBinaryFuse, FalsePositiveRate: 0.01, Normalize: true},
		[]string{"Error", "ERROR", "warn"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !p.PossiblyContains([]byte("error")) {
		t.Errorf("lowercased member rejected")
	}
}

func TestCloneIsDeep(t *testing.T) {
	f := BloomFromKeys([]string{"alpha", "beta", "gamma"}, 0.01)
	p := Probabilistic{impl: f}
	cp := p.Clone()

	cpBloom := cp.impl.(*BloomFilter)
	if &cpBloom.bits[0] == &f.bits[0] {
		t.Fatalf("clone shares the backing bit array")
	}
	if !cp.PossiblyContains([]byte("alpha")) {
		t.Errorf("clone lost member")
	}
}
