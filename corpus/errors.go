package corpus

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad indicates a required warp structure is missing or malformed.
	// Open never returns a partially usable handle.
	ErrLoad = errors.New("corpus: load failed")

	// ErrInconsistent indicates the compiled corpus violates a structural
	// invariant: the slot-containment relation references out-of-range
	// slots, or a type range breaks the partition of 1..maxNode. Detected
	// during precompute; aborts Open.
	ErrInconsistent = errors.New("corpus: compile inconsistency")

	// ErrUnknownFeature is returned for a feature that does not exist or
	// was excluded by the feature selector.
	ErrUnknownFeature = errors.New("corpus: unknown feature")
)

// TemplateError reports a search template that failed to parse or plan.
// It identifies the offending clause; the graph is never touched before
// validation passes.
type TemplateError struct {
	Line   int    // 1-based template line, 0 when not line-specific
	Clause string // offending clause text
	Msg    string
}

func (e *TemplateError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("template line %d (%q): %s", e.Line, e.Clause, e.Msg)
	}
	return fmt.Sprintf("template: %s", e.Msg)
}

func templateErr(line int, clause, format string, args ...any) *TemplateError {
	return &TemplateError{Line: line, Clause: clause, Msg: fmt.Sprintf(format, args...)}
}
