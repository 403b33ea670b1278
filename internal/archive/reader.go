package archive

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strconv"

	"stratalog/internal/filter"
	"stratalog/internal/logging"
	"stratalog/internal/querylang"
	"stratalog/internal/search"
)

// Reader is the archive-side entry point of the pruning pipeline. It
// never produces a false negative: any missing, corrupt, or inapplicable
// filter admits, and only definite misses prune.
type Reader struct {
	dir    string
	logger *slog.Logger
	meta   Metadata

	useSchemaFilter bool

	dictFilter       *filter.Envelope
	dictFilterLoaded bool

	schemaFilters map[int32]*filter.Envelope
	intFilters    map[int32]*IntColumnFilter
	strFilters    map[int32]*StrColumnFilter
}

// OpenReader opens an archive directory by its metadata sidecar.
func OpenReader(dir string, logger *slog.Logger) (*Reader, error) {
	logger = logging.Default(logger)
	meta, err := LoadMetadata(dir)
	if err != nil {
		return nil, err
	}
	return &Reader{
		dir:             dir,
		logger:          logger.With("component", "archive", "archive", meta.ArchiveID),
		meta:            meta,
		useSchemaFilter: true,
		schemaFilters:   make(map[int32]*filter.Envelope),
		intFilters:      make(map[int32]*IntColumnFilter),
		strFilters:      make(map[int32]*StrColumnFilter),
	}, nil
}

// ArchiveID returns the archive identity from the metadata sidecar.
func (r *Reader) ArchiveID() string { return r.meta.ArchiveID }

// Metadata returns the archive metadata.
func (r *Reader) Metadata() Metadata { return r.meta }

// SetUseSchemaFilter toggles the per-schema checks; disabled, every
// schema check admits.
func (r *Reader) SetUseSchemaFilter(use bool) { r.useSchemaFilter = use }

// FilterPassed is the pre-dictionary check: decide whether loading the
// variable dictionary can possibly produce a match for expr. Admission
// paths: no filter on disk, no exact-match terms in the query, or a
// case-insensitive search against a filter that is not normalized. A
// normalized filter answers a case-insensitive search by probing the
// lowercased terms.
func (r *Reader) FilterPassed(expr querylang.Expr, ignoreCase bool) bool {
	env, ok := r.loadDictFilter()
	if !ok {
		return true
	}

	terms := search.ExtractVarStrings(expr)
	if len(terms) == 0 {
		return true
	}
	if ignoreCase && !env.Config.Normalize {
		return true
	}

	if env.MightContainAny(terms) {
		return true
	}
	r.logger.Debug("dictionary load skipped", "terms", len(terms))
	return false
}

func (r *Reader) loadDictFilter() (*filter.Envelope, bool) {
	if !r.dictFilterLoaded {
		r.dictFilterLoaded = true
		env, err := LoadDictFilter(filepath.Join(r.dir, VarDictFileName))
		if err != nil {
			r.logger.Warn("dictionary filter not available", "error", err)
		} else {
			r.dictFilter = env
		}
	}
	return r.dictFilter, r.dictFilter != nil
}

// PreloadSchemaFilters loads the per-schema variable-id filters for the
// given schema ids before any packed streams are opened. Missing or
// corrupt filters are skipped; their schemas will admit.
func (r *Reader) PreloadSchemaFilters(schemaIDs []int32) {
	if !r.useSchemaFilter {
		return
	}
	for _, id := range schemaIDs {
		if _, done := r.schemaFilters[id]; done {
			continue
		}
		data, err := readCompressed(filepath.Join(r.dir, schemaVarFilterName(id)))
		if err != nil {
			r.logger.Debug("schema var filter not available", "schema", id, "error", err)
			continue
		}
		env, err := filter.DecodeEnvelope(bytes.NewReader(data))
		if err != nil {
			r.logger.Warn("schema var filter corrupt", "schema", id, "error", err)
			continue
		}
		r.schemaFilters[id] = env
	}
}

// PreloadSchemaIntFilters loads the integer column filters for the given
// schema ids.
func (r *Reader) PreloadSchemaIntFilters(schemaIDs []int32) {
	if !r.useSchemaFilter {
		return
	}
	for _, id := range schemaIDs {
		if _, done := r.intFilters[id]; done {
			continue
		}
		data, err := readCompressed(filepath.Join(r.dir, schemaIntFilterName(id)))
		if err != nil {
			continue
		}
		f, err := DecodeIntColumnFilter(data)
		if err != nil {
			r.logger.Warn("schema int filter corrupt", "schema", id, "error", err)
			continue
		}
		r.intFilters[id] = f
	}
}

// PreloadSchemaStrFilters loads the string column filters for the given
// schema ids.
func (r *Reader) PreloadSchemaStrFilters(schemaIDs []int32) {
	if !r.useSchemaFilter {
		return
	}
	for _, id := range schemaIDs {
		if _, done := r.strFilters[id]; done {
			continue
		}
		data, err := readCompressed(filepath.Join(r.dir, schemaStrFilterName(id)))
		if err != nil {
			continue
		}
		f, err := DecodeStrColumnFilter(data)
		if err != nil {
			r.logger.Warn("schema str filter corrupt", "schema", id, "error", err)
			continue
		}
		r.strFilters[id] = f
	}
}

// SchemaFilterCheck reports whether any of the searched variable ids
// might be present in the schema. An empty id set or an unavailable
// filter admits.
func (r *Reader) SchemaFilterCheck(schemaID int32, varIDs []uint64) bool {
	if !r.useSchemaFilter || len(varIDs) == 0 {
		return true
	}
	env, ok := r.schemaFilters[schemaID]
	if !ok || env.Config.Kind == filter.KindNone {
		return true
	}
	for _, id := range varIDs {
		if env.Filter.PossiblyContains([]byte(strconv.FormatUint(id, 10))) {
			return true
		}
	}
	return false
}

// SchemaIntFilterCheck reports whether value might appear in the given
// integer column of the schema.
func (r *Reader) SchemaIntFilterCheck(schemaID, columnID int32, value int64) bool {
	if !r.useSchemaFilter {
		return true
	}
	f, ok := r.intFilters[schemaID]
	if !ok {
		return true
	}
	return f.Contains(columnID, value)
}

// SchemaStrFilterCheck reports whether value might appear in the given
// string column of the schema.
func (r *Reader) SchemaStrFilterCheck(schemaID, columnID int32, value string) bool {
	if !r.useSchemaFilter {
		return true
	}
	f, ok := r.strFilters[schemaID]
	if !ok {
		return true
	}
	return f.Contains(columnID, value)
}

// SchemaPasses runs the full per-schema stage: the variable-id check,
// then each integer or string equality filter of the schema's query
// against the matching column filter. columnIDFor maps a query column to its column id in
// this schema; a negative id means the column is not materialized and
// the check is skipped.
//
// The column checks only apply when the query is a plain conjunction of
// non-inverted filters; anything else admits — pruning on a disjunct or
// a negation could drop matching records.
func (r *Reader) SchemaPasses(schemaID int32, expr querylang.Expr, varIDs []uint64, columnIDFor func(*querylang.Column) int32) bool {
	if !r.useSchemaFilter {
		return true
	}
	if !r.SchemaFilterCheck(schemaID, varIDs) {
		return false
	}
	if expr == nil || columnIDFor == nil {
		return true
	}

	filters, plain := conjunctionFilters(expr)
	if !plain {
		return true
	}
	for _, f := range filters {
		if f.Operation() != querylang.OpEq {
			continue
		}
		columnID := columnIDFor(f.Column)
		if columnID < 0 {
			continue
		}
		if f.Column.MatchesType(querylang.IntT) {
			if v, ok := f.Operand.AsInt(f.Op); ok {
				if !r.SchemaIntFilterCheck(schemaID, columnID, v) {
					return false
				}
				continue
			}
		}
		if f.Column.MatchesType(querylang.VarStringT) {
			v, ok := f.Operand.AsVarString(f.Op)
			if !ok || querylang.HasUnescapedWildcards(v) {
				continue
			}
			if !r.SchemaStrFilterCheck(schemaID, columnID, querylang.Unescape(v)) {
				return false
			}
		}
	}
	return true
}

// conjunctionFilters flattens expr into its filter leaves, reporting
// false if the shape is anything but a non-inverted conjunction.
func conjunctionFilters(expr querylang.Expr) ([]*querylang.FilterExpr, bool) {
	if expr.Inverted() {
		return nil, false
	}
	switch node := expr.(type) {
	case *querylang.FilterExpr:
		return []*querylang.FilterExpr{node}, true
	case *querylang.AndExpr:
		var out []*querylang.FilterExpr
		for _, term := range node.Terms {
			leaves, plain := conjunctionFilters(term)
			if !plain {
				return nil, false
			}
			out = append(out, leaves...)
		}
		return out, true
	default:
		return nil, false
	}
}
