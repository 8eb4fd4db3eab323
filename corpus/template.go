package corpus

import (
	"strconv"
	"strings"
)

// A template describes a structural pattern: typed placeholders (yarns)
// connected by spatial relations and feature filters, with optional
// quantified sub-templates. Syntax, line by line:
//
//	s:sentence
//	  p:phrase function=Pred
//	    word sp=verb number#plural
//	  no phrase function=Subj
//	p << word
//
// Indentation embeds a yarn in the nearest shallower yarn. A yarn line is
// [quantifier] [name:]type [feature filters]; filters are f=v, f#v (not
// equal), f>n, f<n (numeric). Relation lines connect named yarns with
// [[ (contains), ]] (within), << (precedes), <: (adjacent), = (same span).
// Quantifiers are no, min:k, count:k; a quantified yarn and its subtree
// constrain their parent by sub-match count and yield no tuple columns.

type quantKind int

const (
	quantNone quantKind = iota
	quantNo
	quantMin
	quantCount
)

type filterOp byte

const (
	opEq  filterOp = '='
	opNe  filterOp = '#'
	opGt  filterOp = '>'
	opLt  filterOp = '<'
)

type filter struct {
	feature string
	op      filterOp
	str     string
	num     int
}

type yarn struct {
	name     string
	typeName string
	filters  []filter
	parent   int // index of enclosing yarn, -1 for roots
	quant    quantKind
	quantK   int
	line     int
	clause   string

	code      uint32 // type code, resolved during validation
	quantRoot int    // index of the quantified subtree root this yarn belongs to, -1 outside
	tuplePos  int    // column in result tuples, -1 for quantified yarns
}

type relKind int

const (
	relWithin relKind = iota // a embedded in b (slot-set subset, distinct nodes)
	relPrecedes              // last slot of a before first slot of b
	relAdjacent              // last slot of a immediately before first slot of b
	relSameSpan              // identical slot sets
)

type relation struct {
	kind   relKind
	a, b   int
	line   int
	clause string
}

type template struct {
	src       string
	yarns     []*yarn
	relations []relation
	names     map[string]int
	tuple     []int // yarn indices contributing result columns, declaration order
}

var relOps = map[string]struct {
	kind relKind
	flip bool
}{
	"[[": {relWithin, true}, // a [[ b: b within a
	"]]": {relWithin, false},
	"<<": {relPrecedes, false},
	"<:": {relAdjacent, false},
	"=":  {relSameSpan, false},
}

// parseTemplate turns template source into an unvalidated template.
func parseTemplate(src string) (*template, error) {
	t := &template{src: src, names: make(map[string]int)}
	type level struct {
		indent int
		yarn   int
	}
	var stack []level
	for lineNo, raw := range strings.Split(src, "\n") {
		line := lineNo + 1
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := strings.Fields(trimmed)
		if op, ok := relOps[fieldAt(fields, 1)]; ok {
			if len(fields) != 3 {
				return nil, templateErr(line, trimmed, "relation needs exactly two yarn names")
			}
			a, okA := t.names[fields[0]]
			b, okB := t.names[fields[2]]
			if !okA {
				return nil, templateErr(line, trimmed, "unknown yarn %q", fields[0])
			}
			if !okB {
				return nil, templateErr(line, trimmed, "unknown yarn %q", fields[2])
			}
			if a == b {
				return nil, templateErr(line, trimmed, "relation joins a yarn to itself")
			}
			if op.flip {
				a, b = b, a
			}
			t.relations = append(t.relations, relation{kind: op.kind, a: a, b: b, line: line, clause: trimmed})
			continue
		}

		indent := leadingSpaces(raw)
		y := &yarn{parent: -1, quantRoot: -1, tuplePos: -1, line: line, clause: trimmed}
		rest := fields
		if q, k, ok := parseQuantifier(rest[0]); ok {
			y.quant, y.quantK = q, k
			rest = rest[1:]
			if len(rest) == 0 {
				return nil, templateErr(line, trimmed, "quantifier without a yarn")
			}
		}
		head := rest[0]
		if i := strings.IndexByte(head, ':'); i >= 0 {
			y.name = head[:i]
			y.typeName = head[i+1:]
			if y.name == "" || y.typeName == "" {
				return nil, templateErr(line, trimmed, "malformed yarn head %q", head)
			}
			if _, dup := t.names[y.name]; dup {
				return nil, templateErr(line, trimmed, "duplicate yarn name %q", y.name)
			}
		} else {
			y.typeName = head
		}
		for _, tok := range rest[1:] {
			f, err := parseFilter(tok, line, trimmed)
			if err != nil {
				return nil, err
			}
			y.filters = append(y.filters, f)
		}

		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			y.parent = stack[len(stack)-1].yarn
		}
		idx := len(t.yarns)
		t.yarns = append(t.yarns, y)
		if y.name != "" {
			t.names[y.name] = idx
		}
		if y.parent >= 0 {
			t.relations = append(t.relations, relation{kind: relWithin, a: idx, b: y.parent, line: line, clause: trimmed})
		}
		stack = append(stack, level{indent: indent, yarn: idx})
	}
	if len(t.yarns) == 0 {
		return nil, templateErr(0, "", "template has no yarns")
	}
	return t, nil
}

func fieldAt(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

func leadingSpaces(s string) int {
	n := 0
	for n < len(s) && s[n] == ' ' {
		n++
	}
	return n
}

func parseQuantifier(tok string) (quantKind, int, bool) {
	if tok == "no" {
		return quantNo, 0, true
	}
	for prefix, kind := range map[string]quantKind{"min:": quantMin, "count:": quantCount} {
		if strings.HasPrefix(tok, prefix) {
			if k, err := strconv.Atoi(tok[len(prefix):]); err == nil && k >= 0 {
				return kind, k, true
			}
		}
	}
	return quantNone, 0, false
}

func parseFilter(tok string, line int, clause string) (filter, error) {
	i := strings.IndexAny(tok, "=#><")
	if i <= 0 {
		return filter{}, templateErr(line, clause, "malformed feature filter %q", tok)
	}
	f := filter{feature: tok[:i], op: filterOp(tok[i]), str: tok[i+1:]}
	if f.op == opGt || f.op == opLt {
		n, err := strconv.Atoi(f.str)
		if err != nil {
			return filter{}, templateErr(line, clause, "filter %q needs a numeric operand", tok)
		}
		f.num = n
	}
	return f, nil
}

// validate resolves types and features against the corpus and marks the
// quantified subtrees. No graph data is touched.
func (t *template) validate(c *Corpus) error {
	for idx, y := range t.yarns {
		code, ok := c.typeCodeOf(y.typeName)
		if !ok {
			return templateErr(y.line, y.clause, "unknown node type %q", y.typeName)
		}
		y.code = code
		for _, f := range y.filters {
			poolKey := "features/" + f.feature + ".pool"
			arrKey := "features/" + f.feature + ".arr"
			switch {
			case c.st.Has(arrKey):
			case c.st.Has(poolKey):
				if f.op == opGt || f.op == opLt {
					return templateErr(y.line, y.clause, "feature %q is string-valued, numeric filter not applicable", f.feature)
				}
			default:
				return templateErr(y.line, y.clause, "unknown feature %q", f.feature)
			}
		}
		if y.quant != quantNone {
			if y.parent < 0 {
				return templateErr(y.line, y.clause, "quantifier needs an enclosing yarn")
			}
			if t.yarns[y.parent].quantRoot >= 0 || t.yarns[y.parent].quant != quantNone {
				return templateErr(y.line, y.clause, "nested quantifiers are not supported")
			}
			y.quantRoot = idx
		} else if y.parent >= 0 {
			p := t.yarns[y.parent]
			if p.quant != quantNone {
				y.quantRoot = y.parent
			} else if p.quantRoot >= 0 {
				y.quantRoot = p.quantRoot
			}
		}
	}
	for idx, y := range t.yarns {
		if y.quantRoot < 0 {
			y.tuplePos = len(t.tuple)
			t.tuple = append(t.tuple, idx)
		}
	}
	if len(t.tuple) == 0 {
		return templateErr(0, "", "template has only quantified yarns")
	}
	for _, r := range t.relations {
		ra, rb := t.yarns[r.a].quantRoot, t.yarns[r.b].quantRoot
		if ra != rb {
			// the implicit embedding of a quantified root in its parent is
			// the one sanctioned crossing
			if !(t.yarns[r.a].quant != quantNone && r.kind == relWithin && r.b == t.yarns[r.a].parent) {
				return templateErr(r.line, r.clause, "relation crosses a quantifier boundary")
			}
		}
	}
	return nil
}
