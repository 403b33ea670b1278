package archive

import (
	"bytes"
	"fmt"
	"path/filepath"

	"stratalog/internal/filter"
)

// WriteSchemaVarFilter persists the per-schema variable-id filter for
// schemaID under dir, zstd-compressed.
func WriteSchemaVarFilter(dir string, schemaID int32, ids []uint64, cfg filter.Config) error {
	env, err := BuildSchemaVarFilter(ids, cfg)
	if err != nil {
		return fmt.Errorf("build schema %d var filter: %w", schemaID, err)
	}
	var buf bytes.Buffer
	if err := env.Encode(&buf); err != nil {
		return fmt.Errorf("encode schema %d var filter: %w", schemaID, err)
	}
	return writeCompressed(filepath.Join(dir, schemaVarFilterName(schemaID)), buf.Bytes())
}

// WriteSchemaIntFilter persists a schema's integer column filter.
func WriteSchemaIntFilter(dir string, schemaID int32, f *IntColumnFilter) error {
	return writeCompressed(filepath.Join(dir, schemaIntFilterName(schemaID)), f.Encode())
}

// WriteSchemaStrFilter persists a schema's string column filter.
func WriteSchemaStrFilter(dir string, schemaID int32, f *StrColumnFilter) error {
	return writeCompressed(filepath.Join(dir, schemaStrFilterName(schemaID)), f.Encode())
}
