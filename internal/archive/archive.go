// Package archive provides the archive-side surface of the pruning
// pipeline: the variable dictionary with its companion filter (the
// pre-dictionary check), per-schema variable-id and column filters (the
// per-schema check), and the metadata sidecar that ties them together.
//
// An archive is a directory:
//
//	metadata.msgpack      archive id + schema inventory
//	var.dict              variable dictionary, zstd-compressed
//	var.dict.filter       companion filter envelope over all dictionary values
//	schema_<id>.sfilter   per-schema filter over variable ids, zstd-compressed
//	schema_<id>.ifilter   per-schema integer column filter, zstd-compressed
//	schema_<id>.cfilter   per-schema string column filter, zstd-compressed
//
// Column encoding and record storage live elsewhere; this package only
// covers the artifacts the pre-filter subsystem reads and writes.
package archive

import "errors"

const (
	MetadataFileName = "metadata.msgpack"
	VarDictFileName  = "var.dict"

	// FilterFileSuffix names the companion filter of a dictionary file:
	// <dict>.filter sits next to <dict>.
	FilterFileSuffix = ".filter"

	// DefaultDictionaryFPR is the target false positive rate for
	// dictionary companion filters.
	DefaultDictionaryFPR = 0.07
)

var (
	ErrClosed           = errors.New("dictionary writer is closed")
	ErrTruncatedEntry   = errors.New("dictionary entry truncated")
	ErrColumnFilterData = errors.New("column filter data corrupt")
)
