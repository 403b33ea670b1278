// Package search implements the query-time pruning pipeline: extracting
// probe terms from a parsed query and scanning a filter pack to eliminate
// archives that provably cannot match. Per-archive and per-schema checks
// live with the archive reader; this package owns the bulk pack stage and
// the extraction rules all stages share.
package search

import (
	"stratalog/internal/querylang"
)

// Unsupported-query reasons. Reported as data, not errors: an unsupported
// query simply means the filters cannot prune and every candidate is
// admitted.
const (
	ReasonInverted    = "inverted-expression"
	ReasonOr          = "or-expression"
	ReasonUnsupported = "unsupported-expression"
)

// TermExtraction is the outcome of distilling a query into a conjunctive
// set of literal terms. When Supported is true, any record satisfying the
// query must contain every term, so a filter miss on any single term
// refutes the whole partition.
type TermExtraction struct {
	Supported bool
	Reason    string
	Terms     []string
}

// ExtractTerms walks the query and collects the equality literals of a
// pure conjunction. Disjunctions, negations, and unrecognized node kinds
// make the query unsupported; non-equality filters and wildcard literals
// are skipped (they cannot be refuted, only ignored).
func ExtractTerms(expr querylang.Expr) TermExtraction {
	result := TermExtraction{Supported: true}
	collectTerms(expr, false, &result)
	return result
}

func collectTerms(expr querylang.Expr, invertedContext bool, result *TermExtraction) {
	if !result.Supported || expr == nil {
		return
	}

	inverted := invertedContext != expr.Inverted()
	if inverted {
		result.Supported = false
		result.Reason = ReasonInverted
		return
	}

	switch node := expr.(type) {
	case *querylang.OrExpr:
		result.Supported = false
		result.Reason = ReasonOr
	case *querylang.AndExpr:
		for _, term := range node.Terms {
			collectTerms(term, inverted, result)
			if !result.Supported {
				return
			}
		}
	case *querylang.FilterExpr:
		if node.Operation() != querylang.OpEq {
			return // not contributory
		}
		value, ok := node.Operand.AsVarString(node.Op)
		if !ok {
			return
		}
		if querylang.HasUnescapedWildcards(value) {
			return // the filter cannot confirm wildcards
		}
		result.Terms = append(result.Terms, querylang.Unescape(value))
	default:
		result.Supported = false
		result.Reason = ReasonUnsupported
	}
}

// ExtractVarStrings collects every exact-match variable-string literal in
// the query, regardless of boolean structure. This feeds the pre-dictionary
// check: if none of these strings can be in the dictionary, loading it is
// pointless. EXISTS/NEXISTS filters and wildcard literals are skipped.
// The result is deduplicated in traversal order.
func ExtractVarStrings(expr querylang.Expr) []string {
	seen := make(map[string]struct{})
	var out []string
	collectVarStrings(expr, seen, &out)
	return out
}

func collectVarStrings(expr querylang.Expr, seen map[string]struct{}, out *[]string) {
	switch node := expr.(type) {
	case *querylang.AndExpr:
		for _, term := range node.Terms {
			collectVarStrings(term, seen, out)
		}
	case *querylang.OrExpr:
		for _, term := range node.Terms {
			collectVarStrings(term, seen, out)
		}
	case *querylang.FilterExpr:
		if node.Operation() == querylang.OpExists || node.Operation() == querylang.OpNexists {
			return
		}
		if !node.Column.MatchesType(querylang.VarStringT) {
			return
		}
		value, ok := node.Operand.AsVarString(node.Op)
		if !ok {
			return
		}
		if querylang.HasUnescapedWildcards(value) {
			return // wildcards need the full dictionary
		}
		unescaped := querylang.Unescape(value)
		if _, dup := seen[unescaped]; dup {
			return
		}
		seen[unescaped] = struct{}{}
		*out = append(*out, unescaped)
	}
}

// dedupeTerms removes duplicates preserving first-occurrence order.
func dedupeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
