package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// SchemaInfo describes one schema inside an archive.
type SchemaInfo struct {
	ID          int32  `msgpack:"id"`
	RecordCount uint64 `msgpack:"record_count"`
	VarIDCount  uint64 `msgpack:"var_id_count"`
}

// Metadata is the archive sidecar: identity plus the schema inventory.
// The per-schema preloaders take their schema ids from the caller and do
// not read this inventory.
type Metadata struct {
	ArchiveID string       `msgpack:"archive_id"`
	Schemas   []SchemaInfo `msgpack:"schemas"`
}

// NewMetadata mints a fresh archive identity.
func NewMetadata() Metadata {
	return Metadata{ArchiveID: uuid.NewString()}
}

// Save writes the metadata sidecar into dir.
func (m Metadata) Save(dir string) error {
	data, err := msgpack.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFileName), data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// LoadMetadata reads the metadata sidecar from dir.
func LoadMetadata(dir string) (Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFileName))
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var m Metadata
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}
