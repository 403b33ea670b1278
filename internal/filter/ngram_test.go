package filter

import (
	"bytes"
	"strings"
	"testing"
)

func TestNGramNoFalseNegatives(t *testing.T) {
	keys := []string{
		"connection refused", "connection reset", "disk quota exceeded",
		"permission denied", "ok", "err",
	}
	f := BuildNGramPartitioned(keys, 0.01)
	for _, key := range keys {
		if !f.PossiblyContains([]byte(key)) {
			t.Fatalf("member %q rejected (n=%d)", key, f.n)
		}
	}
}

func TestNGramMissingLengthClassRejects(t *testing.T) {
	f := BuildNGramPartitioned([]string{"aaaa", "bbbb"}, 0.01)
	if f.PossiblyContains([]byte("a")) {
		t.Errorf("value with unindexed length admitted")
	}
	if f.PossiblyContains([]byte("aaaaaaaaaa")) {
		t.Errorf("value with unindexed length admitted")
	}
}

func TestNGramRejectsOnMissingGram(t *testing.T) {
	// Many keys over a tiny alphabet: the gram set is small, so each gram
	// gets a generous bit budget and an absent gram rejects reliably.
	keys := make([]string, 50)
	for i := range keys {
		b := make([]byte, 8)
		v := i
		for j := range b {
			b[j] = byte('a' + v%4)
			v /= 4
		}
		keys[i] = string(b)
	}
	f := BuildNGramPartitioned(keys, 0.01)

	// Same length as the members but made of absent grams.
	probe := strings.Repeat("z", 8)
	if f.PossiblyContains([]byte(probe)) {
		t.Errorf("value with absent n-grams admitted")
	}
}

func TestNGramEmpty(t *testing.T) {
	f := BuildNGramPartitioned(nil, 0.01)
	if f.PossiblyContains([]byte("anything")) {
		t.Errorf("empty filter admitted a value")
	}
	if !f.IsEmpty() {
		t.Errorf("IsEmpty() = false on empty filter")
	}
}

func TestNGramLengthChoice(t *testing.T) {
	// n must stay within [1, floor(avg key length)].
	short := BuildNGramPartitioned([]string{"ab", "cd", "ef"}, 0.01)
	if short.n < 1 || short.n > 2 {
		t.Errorf("n = %d outside [1, 2]", short.n)
	}
}

func TestNGramAddPanics(t *testing.T) {
	f := BuildNGramPartitioned([]string{"abc"}, 0.01)
	defer func() {
		if recover() == nil {
			t.Errorf("Add did not panic")
		}
	}()
	f.Add([]byte("def"))
}

func TestNGramRoundTrip(t *testing.T) {
	keys := []string{"alpha_zone", "beta_zone", "gamma", "xy", "z"}
	f := BuildNGramPartitioned(keys, 0.05)

	var buf bytes.Buffer
	if err := f.writeBody(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	var back NGramPartitionedFilter
	if err := back.readBody(&buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if back.n != f.n || len(back.classes) != len(f.classes) {
		t.Fatalf("structure changed: n %d->%d classes %d->%d", f.n, back.n, len(f.classes), len(back.classes))
	}

	probes := append([]string{"nothere", "alpha_zone", "gamma", "q", "zz"}, keys...)
	for _, p := range probes {
		if f.PossiblyContains([]byte(p)) != back.PossiblyContains([]byte(p)) {
			t.Fatalf("round-trip changed answer for %q", p)
		}
	}
}
