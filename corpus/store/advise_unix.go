//go:build unix

package store

import "golang.org/x/sys/unix"

// AccessHint describes the expected access pattern for a mapped region.
type AccessHint int

const (
	AccessDefault AccessHint = iota
	AccessSequential
	AccessRandom
)

// Advise passes an access-pattern hint for the mapped region to the OS.
// Errors are ignored: hints are best effort and never affect correctness.
func Advise(b []byte, hint AccessHint) {
	if len(b) == 0 {
		return
	}
	var advice int
	switch hint {
	case AccessSequential:
		advice = unix.MADV_SEQUENTIAL
	case AccessRandom:
		advice = unix.MADV_RANDOM
	default:
		advice = unix.MADV_NORMAL
	}
	_ = unix.Madvise(b, advice)
}
