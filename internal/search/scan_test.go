package search

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"stratalog/internal/filter"
	"stratalog/internal/filterpack"
)

// buildPack writes a pack whose archives index the given key sets.
func buildPack(t *testing.T, archives map[string][]string, normalize bool) string {
	t.Helper()
	dir := t.TempDir()

	var entries []filterpack.ManifestEntry
	for id, keys := range archives {
		// A vanishingly small FPR keeps the refutation expectations
		// deterministic at these key counts.
		cfg := filter.Config{Kind: filter.KindBloom, FalsePositiveRate: 1e-9, Normalize: normalize}
		env, err := filter.BuildEnvelope(cfg, keys)
		if err != nil {
			t.Fatalf("build envelope: %v", err)
		}
		var buf bytes.Buffer
		if err := env.Encode(&buf); err != nil {
			t.Fatalf("encode envelope: %v", err)
		}
		path := filepath.Join(dir, id+".filter")
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			t.Fatalf("write filter: %v", err)
		}
		entries = append(entries, filterpack.ManifestEntry{ArchiveID: id, FilterPath: path})
	}

	packPath := filepath.Join(dir, "filters.pack")
	if _, err := filterpack.Build(packPath, entries, nil); err != nil {
		t.Fatalf("build pack: %v", err)
	}
	return packPath
}

func TestScanEmptyArchiveList(t *testing.T) {
	result, err := ScanPack("/nonexistent", nil, `a == "x"`, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Passed) != 0 || result.Total != 0 || result.Skipped != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestScanAdmitAllOnOrExpression(t *testing.T) {
	pack := buildPack(t, map[string][]string{
		"A1": {"a"}, "A2": {"b"}, "A3": {"c"},
	}, false)

	result, err := ScanPack(pack, []string{"A1", "A2", "A3"}, `field == "x" OR field == "y"`, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.Supported {
		t.Errorf("OR query reported supported")
	}
	if result.Reason != ReasonOr {
		t.Errorf("reason = %q, want %q", result.Reason, ReasonOr)
	}
	if !slices.Equal(result.Passed, []string{"A1", "A2", "A3"}) {
		t.Errorf("passed = %v", result.Passed)
	}
	if result.Skipped != 0 {
		t.Errorf("skipped = %d, want 0", result.Skipped)
	}
}

func TestScanPrunes(t *testing.T) {
	pack := buildPack(t, map[string][]string{
		"A1": {"hay", "stack"},
		"A2": {"needle", "thread"},
		"A3": {"other"},
	}, false)

	result, err := ScanPack(pack, []string{"A1", "A2", "A3", "A4"}, `field == "needle"`, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !result.Supported {
		t.Fatalf("supported = false: %s", result.Reason)
	}
	// A2 holds the needle; A4 is not in the pack and is admitted
	// conservatively; A1 and A3 are refuted.
	if !slices.Equal(result.Passed, []string{"A2", "A4"}) {
		t.Errorf("passed = %v, want [A2 A4]", result.Passed)
	}
	if result.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", result.Skipped)
	}
	if result.Total != 4 {
		t.Errorf("total = %d, want 4", result.Total)
	}
}

func TestScanNormalizeAwareness(t *testing.T) {
	// normalize=true: keys were lowercased at build; the query term
	// "Needle" must be lowercased before probing.
	pack := buildPack(t, map[string][]string{"A1": {"Needle"}}, true)
	result, err := ScanPack(pack, []string{"A1"}, `field == "Needle"`, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !slices.Equal(result.Passed, []string{"A1"}) {
		t.Errorf("normalized pack rejected case-variant term: %+v", result)
	}

	// normalize=false: the term is probed verbatim and misses.
	pack = buildPack(t, map[string][]string{"A1": {"needle"}}, false)
	result, err = ScanPack(pack, []string{"A1"}, `field == "Needle"`, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Passed) != 0 {
		t.Errorf("verbatim probe unexpectedly admitted: %+v", result)
	}
}

func TestScanAllTermsMustPass(t *testing.T) {
	pack := buildPack(t, map[string][]string{
		"A1": {"alpha", "beta"},
		"A2": {"alpha"},
	}, false)

	result, err := ScanPack(pack, []string{"A1", "A2"}, `a == "alpha" AND b == "beta"`, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !slices.Equal(result.Passed, []string{"A1"}) {
		t.Errorf("passed = %v, want [A1]", result.Passed)
	}
}

func TestScanEmptyTermsAdmitsAll(t *testing.T) {
	pack := buildPack(t, map[string][]string{"A1": {"x"}}, false)
	// A pure wildcard equality contributes no terms.
	result, err := ScanPack(pack, []string{"A1"}, `field == "pre*"`, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !result.Supported || !slices.Equal(result.Passed, []string{"A1"}) {
		t.Errorf("result = %+v", result)
	}
}

func TestScanParseFailure(t *testing.T) {
	pack := buildPack(t, map[string][]string{"A1": {"x"}}, false)
	if _, err := ScanPack(pack, []string{"A1"}, `((`, nil); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestScanCorruptPackAborts(t *testing.T) {
	dir := t.TempDir()
	packPath := filepath.Join(dir, "bad.pack")
	if err := os.WriteFile(packPath, []byte("not a pack"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ScanPack(packPath, []string{"A1"}, `a == "x"`, nil); err == nil {
		t.Fatalf("expected pack error")
	}
}

func TestScanCorruptEnvelopeAdmits(t *testing.T) {
	dir := t.TempDir()
	// A syntactically valid pack whose entry bytes are not an envelope.
	bogus := filepath.Join(dir, "bogus.filter")
	if err := os.WriteFile(bogus, []byte("garbage-not-an-envelope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	packPath := filepath.Join(dir, "filters.pack")
	entries := []filterpack.ManifestEntry{{ArchiveID: "A1", FilterPath: bogus}}
	if _, err := filterpack.Build(packPath, entries, nil); err != nil {
		t.Fatalf("build pack: %v", err)
	}

	result, err := ScanPack(packPath, []string{"A1"}, `a == "x"`, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !slices.Equal(result.Passed, []string{"A1"}) {
		t.Errorf("corrupt envelope did not admit: %+v", result)
	}
}
