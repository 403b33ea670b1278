package cli

import (
	"encoding/json"
	"fmt"
	"os"
)

// emitJSON writes v as a single JSON document to path. The document is
// marshaled first so the output file is never left holding partial JSON.
func emitJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}
