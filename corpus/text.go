package corpus

import "strings"

// Text materializes the surface text of node n by concatenating the text
// feature of the slots it spans. When the corpus carries an after feature,
// its value follows each slot verbatim; otherwise slots are joined with a
// single space.
func (c *Corpus) Text(n uint32) (string, error) {
	text, err := c.Feature(c.textFeature)
	if err != nil {
		return "", err
	}
	after, _ := c.Feature(c.afterFeature) // optional
	var b strings.Builder
	span := c.Span(n)
	for i, slot := range span {
		v, _ := text.Value(slot)
		b.WriteString(v)
		if after != nil {
			if a, ok := after.Value(slot); ok {
				b.WriteString(a)
			}
		} else if i < len(span)-1 {
			b.WriteByte(' ')
		}
	}
	return b.String(), nil
}
