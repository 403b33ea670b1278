package filter

import "errors"

var (
	ErrBadMagic    = errors.New("filter magic mismatch")
	ErrBadVersion  = errors.New("unsupported filter version")
	ErrUnknownKind = errors.New("unknown filter kind")
	ErrTruncated   = errors.New("filter data truncated")

	// ErrConstructionFailed signals that binary fuse peeling exhausted its
	// seed attempts; the key set likely contains duplicates.
	ErrConstructionFailed = errors.New("binary fuse construction failed")
)
