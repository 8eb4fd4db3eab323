package corpus

// SearchLimits bounds the exploration effort of the search planner and the
// total result volume of a query.
type SearchLimits struct {
	// TryLimitFrom caps how many source candidates the planner samples per
	// relation when rating its selectivity (forward direction).
	TryLimitFrom int
	// TryLimitTo caps how many targets are probed per sampled source when
	// rating a relation (backward direction).
	TryLimitTo int
	// FailFactor caps total fetched results at FailFactor * maxNode; when
	// the cap triggers, results carry an explicit truncation flag.
	FailFactor int
}

// DefaultSearchLimits returns the default limit configuration.
func DefaultSearchLimits() *SearchLimits {
	return &SearchLimits{
		TryLimitFrom: 40,
		TryLimitTo:   40,
		FailFactor:   4,
	}
}

// OrDefault returns DefaultSearchLimits if l is nil, otherwise normalizes l.
func (l *SearchLimits) OrDefault() *SearchLimits {
	if l == nil {
		return DefaultSearchLimits()
	}
	if l.TryLimitFrom <= 0 {
		l.TryLimitFrom = 40
	}
	if l.TryLimitTo <= 0 {
		l.TryLimitTo = 40
	}
	if l.FailFactor <= 0 {
		l.FailFactor = 4
	}
	return l
}

// Option configures a Corpus handle at Open time.
type Option func(*Corpus)

// WithLogger sets the logger used for load and search progress. The
// default discards all output.
func WithLogger(l *Logger) Option {
	return func(c *Corpus) {
		if l != nil {
			c.log = l
		}
	}
}

// WithSearchLimits overrides the default search limits.
func WithSearchLimits(l SearchLimits) Option {
	return func(c *Corpus) {
		c.limits = &l
	}
}

// WithFeatures restricts feature access to the named features. Warp
// structures and the text features are always available.
func WithFeatures(names ...string) Option {
	return func(c *Corpus) {
		c.selector = make(map[string]bool, len(names))
		for _, n := range names {
			c.selector[n] = true
		}
	}
}

// WithTextFeatures sets the slot features used by Text: text holds the
// slot's surface form, after the trailing material (may be empty to join
// slots without separators). Defaults are "text" and "after".
func WithTextFeatures(text, after string) Option {
	return func(c *Corpus) {
		c.textFeature = text
		c.afterFeature = after
	}
}
