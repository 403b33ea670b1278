package search

import (
	"bytes"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"stratalog/internal/filter"
	"stratalog/internal/filterpack"
	"stratalog/internal/logging"
	"stratalog/internal/querylang"
)

// ScanResult is the outcome of a pack scan, serialized verbatim as the
// scan subcommand's JSON output.
type ScanResult struct {
	Supported bool     `json:"supported"`
	Reason    string   `json:"reason,omitempty"`
	Passed    []string `json:"passed"`
	Total     int      `json:"total"`
	Skipped   int      `json:"skipped"`
}

// ScanPack runs the bulk pruning stage: parse the query, extract its
// conjunctive terms, and test each candidate archive's filter from the
// pack. Archives the filters refute are skipped; everything else is
// admitted, including archives missing from the pack and archives whose
// envelope fails to decode. Pack-level corruption is an error — it must
// abort the scan rather than silently admit.
//
// Candidate archives are evaluated concurrently; filters are disjoint and
// the pack buffer is read-only.
func ScanPack(packPath string, archiveIDs []string, query string, logger *slog.Logger) (ScanResult, error) {
	logger = logging.Default(logger)

	if len(archiveIDs) == 0 {
		return ScanResult{Supported: true, Passed: []string{}}, nil
	}

	expr, err := querylang.Parse(query)
	if err != nil {
		return ScanResult{}, fmt.Errorf("parse query: %w", err)
	}

	extraction := ExtractTerms(expr)
	terms := dedupeTerms(extraction.Terms)

	// No usable terms means the filters cannot help; admit everything.
	if !extraction.Supported || len(terms) == 0 {
		return ScanResult{
			Supported: extraction.Supported,
			Reason:    extraction.Reason,
			Passed:    archiveIDs,
			Total:     len(archiveIDs),
			Skipped:   0,
		}, nil
	}

	pack, err := filterpack.Open(packPath)
	if err != nil {
		return ScanResult{}, fmt.Errorf("open filter pack %s: %w", packPath, err)
	}

	admitted := make([]bool, len(archiveIDs))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, id := range archiveIDs {
		i, id := i, id
		g.Go(func() error {
			admitted[i] = admitArchive(pack, id, terms, logger)
			return nil
		})
	}
	_ = g.Wait()

	passed := make([]string, 0, len(archiveIDs))
	for i, id := range archiveIDs {
		if admitted[i] {
			passed = append(passed, id)
		}
	}

	result := ScanResult{
		Supported: true,
		Passed:    passed,
		Total:     len(archiveIDs),
		Skipped:   len(archiveIDs) - len(passed),
	}
	logger.Info("filter scan",
		"pack", packPath,
		"total", result.Total,
		"passed", len(result.Passed),
		"skipped", result.Skipped)
	return result, nil
}

// admitArchive decides one archive. Absent or undecodable filters admit:
// the pipeline may only prune what it can prove empty.
func admitArchive(pack *filterpack.Reader, archiveID string, terms []string, logger *slog.Logger) bool {
	data, ok := pack.Lookup(archiveID)
	if !ok {
		return true
	}
	env, err := filter.DecodeEnvelope(bytes.NewReader(data))
	if err != nil {
		logger.Warn("undecodable filter envelope, admitting archive",
			"archive", archiveID, "error", err)
		return true
	}
	return env.MightContainAll(terms)
}
