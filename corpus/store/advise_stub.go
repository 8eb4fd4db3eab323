//go:build !unix

package store

// AccessHint describes the expected access pattern for a mapped region.
type AccessHint int

const (
	AccessDefault AccessHint = iota
	AccessSequential
	AccessRandom
)

// Advise is a no-op on platforms without madvise.
func Advise(b []byte, hint AccessHint) {}
