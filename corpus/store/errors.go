package store

import "errors"

var (
	// ErrNotFound indicates that a requested corpus directory or file key
	// does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrCorrupt indicates that a file's declared shape disagrees with its
	// actual on-disk size or structure.
	ErrCorrupt = errors.New("store: corrupt file")
)
