// Package compile turns parsed corpus material into the versioned binary
// layout the corpus package serves. Compilation is a one-shot,
// single-writer batch: the builder validates and renumbers the node set,
// writes warp structures and features into a staging directory, runs the
// precompute stage, and publishes the version atomically by rename.
// Concurrent compiles targeting the same output must be serialized by
// the caller.
package compile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ic-timon/loom/corpus"
	"github.com/ic-timon/loom/corpus/store"
)

// ErrBuild indicates invalid builder input: unknown types, empty or
// out-of-range spans, or mixed feature value kinds.
var ErrBuild = errors.New("compile: invalid corpus")

// NodeRef identifies a node added to a builder, for edge features.
type NodeRef int

type nodeSpec struct {
	typeName string
	slots    []uint32
	features map[string]any
}

type edgeSpec struct {
	from, to NodeRef
	value    uint32
	hasValue bool
}

// Builder accumulates a corpus in memory. Type declaration order is the
// canonical-order type precedence: declare coarser structural types
// first; the slot type is implicit and always ranks last.
type Builder struct {
	slotType string
	version  string
	types    []string // non-slot types, declaration order
	slots    []nodeSpec
	nodes    []nodeSpec // non-slot nodes, insertion order
	refs     []int      // ref -> index; negative: slot ~idx
	edges    map[string][]edgeSpec
	comp     store.CompressionType
}

// NewBuilder creates a builder whose atomic units have the given type.
func NewBuilder(slotType string) *Builder {
	return &Builder{
		slotType: slotType,
		version:  "0.0",
		edges:    make(map[string][]edgeSpec),
		comp:     store.CompressionZSTD,
	}
}

// SetVersion sets the version string recorded in meta.json.
func (b *Builder) SetVersion(v string) { b.version = v }

// SetCompression selects the string-pool table compression.
func (b *Builder) SetCompression(ct store.CompressionType) { b.comp = ct }

// AddType declares a non-slot node type. Declaration order fixes both the
// identifier layout and the identical-span tie-break in canonical order.
func (b *Builder) AddType(name string) error {
	if name == b.slotType {
		return fmt.Errorf("%w: type %q is the slot type", ErrBuild, name)
	}
	for _, t := range b.types {
		if t == name {
			return fmt.Errorf("%w: duplicate type %q", ErrBuild, name)
		}
	}
	b.types = append(b.types, name)
	return nil
}

// AddSlot appends the next slot node. Slot ordinals are assigned in
// insertion order, starting at 1.
func (b *Builder) AddSlot(features map[string]any) NodeRef {
	b.slots = append(b.slots, nodeSpec{typeName: b.slotType, features: features})
	b.refs = append(b.refs, ^(len(b.slots) - 1))
	return NodeRef(len(b.refs) - 1)
}

// AddNode appends a non-slot node spanning the given slot ordinals
// (1-based). The span is sorted and deduplicated; it must be non-empty
// and in range at Build time.
func (b *Builder) AddNode(typeName string, slots []uint32, features map[string]any) NodeRef {
	span := append([]uint32(nil), slots...)
	sort.Slice(span, func(i, j int) bool { return span[i] < span[j] })
	span = dedup(span)
	b.nodes = append(b.nodes, nodeSpec{typeName: typeName, slots: span, features: features})
	b.refs = append(b.refs, len(b.nodes)-1)
	return NodeRef(len(b.refs) - 1)
}

// SetEdge records one edge of the named edge feature, optionally carrying
// a scalar value. All edges of one feature must agree on carrying values.
func (b *Builder) SetEdge(name string, from, to NodeRef, value ...uint32) {
	e := edgeSpec{from: from, to: to}
	if len(value) > 0 {
		e.value, e.hasValue = value[0], true
	}
	b.edges[name] = append(b.edges[name], e)
}

func dedup(span []uint32) []uint32 {
	out := span[:0]
	for i, s := range span {
		if i == 0 || s != span[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// Build validates the accumulated corpus, writes it to a staging
// directory next to dir, precomputes the derived structures, and
// publishes dir atomically. A re-compile targets a new version directory
// rather than patching an old one.
func (b *Builder) Build(dir string) error {
	maxSlot := uint32(len(b.slots))
	if maxSlot == 0 {
		return fmt.Errorf("%w: corpus has no slots", ErrBuild)
	}
	maxNode := maxSlot + uint32(len(b.nodes))

	// final identifier layout: slots 1..maxSlot, then each declared type's
	// nodes as one contiguous block
	typeCode := make(map[string]uint32, len(b.types)+1)
	for i, t := range b.types {
		typeCode[t] = uint32(i)
	}
	typeCode[b.slotType] = uint32(len(b.types))

	byType := make([][]int, len(b.types))
	for i, n := range b.nodes {
		code, ok := typeCode[n.typeName]
		if !ok || n.typeName == b.slotType {
			return fmt.Errorf("%w: node of undeclared type %q", ErrBuild, n.typeName)
		}
		if len(n.slots) == 0 {
			return fmt.Errorf("%w: %q node spans no slots", ErrBuild, n.typeName)
		}
		if last := n.slots[len(n.slots)-1]; last > maxSlot || n.slots[0] < 1 {
			return fmt.Errorf("%w: %q node references slot outside [1,%d]", ErrBuild, n.typeName, maxSlot)
		}
		byType[code] = append(byType[code], i)
	}

	finalOf := make([]uint32, len(b.nodes)) // node index -> final id
	next := maxSlot + 1
	for _, nodes := range byType {
		for _, i := range nodes {
			finalOf[i] = next
			next++
		}
	}

	otype := make([]uint32, maxNode)
	for s := uint32(0); s < maxSlot; s++ {
		otype[s] = typeCode[b.slotType]
	}
	oslots := make([][]uint32, maxNode-maxSlot)
	for i, n := range b.nodes {
		final := finalOf[i]
		otype[final-1] = typeCode[n.typeName]
		oslots[final-maxSlot-1] = n.slots
	}

	tmp := dir + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return err
	}
	meta := corpus.Meta{
		Version:   b.version,
		MaxSlot:   maxSlot,
		MaxNode:   maxNode,
		SlotType:  b.slotType,
		NodeTypes: append(append([]string{}, b.types...), b.slotType),
	}
	if err := store.WriteBlob(filepath.Join(tmp, store.MetaFile), meta); err != nil {
		return err
	}
	if err := store.WriteArray(filepath.Join(tmp, "warp", "otype.arr"), otype); err != nil {
		return err
	}
	if err := store.WriteCSR(filepath.Join(tmp, "warp", "oslots.csr"), oslots, nil); err != nil {
		return err
	}
	if err := b.writeFeatures(tmp, maxNode, finalOf); err != nil {
		return err
	}

	// precompute in the staging directory, so serving loads map the
	// derived structures instead of deriving them
	c, err := corpus.Open(tmp)
	if err != nil {
		return err
	}
	if err := c.WriteComputed(); err != nil {
		c.Close()
		return err
	}
	if err := c.Close(); err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.Rename(tmp, dir)
}

func (b *Builder) finalRef(ref NodeRef, finalOf []uint32) (uint32, error) {
	if int(ref) < 0 || int(ref) >= len(b.refs) {
		return 0, fmt.Errorf("%w: unknown node ref %d", ErrBuild, ref)
	}
	idx := b.refs[ref]
	if idx < 0 {
		return uint32(^idx) + 1, nil // slot ordinal
	}
	return finalOf[idx], nil
}

// writeFeatures collects per-node feature values keyed by final id and
// writes one file per feature, in parallel.
func (b *Builder) writeFeatures(dir string, maxNode uint32, finalOf []uint32) error {
	strVals := make(map[string][]string)
	strSet := make(map[string][]bool)
	intVals := make(map[string][]uint32)

	record := func(final uint32, features map[string]any) error {
		for name, v := range features {
			switch val := v.(type) {
			case string:
				if intVals[name] != nil {
					return fmt.Errorf("%w: feature %q mixes string and int values", ErrBuild, name)
				}
				if strVals[name] == nil {
					strVals[name] = make([]string, maxNode)
					strSet[name] = make([]bool, maxNode)
				}
				strVals[name][final-1] = val
				strSet[name][final-1] = true
			case int:
				if strVals[name] != nil {
					return fmt.Errorf("%w: feature %q mixes string and int values", ErrBuild, name)
				}
				if val < 0 {
					return fmt.Errorf("%w: feature %q has negative value %d", ErrBuild, name, val)
				}
				if intVals[name] == nil {
					arr := make([]uint32, maxNode)
					for i := range arr {
						arr[i] = corpus.IntAbsent
					}
					intVals[name] = arr
				}
				intVals[name][final-1] = uint32(val)
			default:
				return fmt.Errorf("%w: feature %q has unsupported value type %T", ErrBuild, name, v)
			}
		}
		return nil
	}
	for i, s := range b.slots {
		if err := record(uint32(i)+1, s.features); err != nil {
			return err
		}
	}
	for i, n := range b.nodes {
		if err := record(finalOf[i], n.features); err != nil {
			return err
		}
	}

	edgeRows := make(map[string][][]uint32)
	edgeVals := make(map[string][][]uint32)
	for name, edges := range b.edges {
		rows := make([][]uint32, maxNode)
		var vals [][]uint32
		withValues := edges[0].hasValue
		if withValues {
			vals = make([][]uint32, maxNode)
		}
		for _, e := range edges {
			if e.hasValue != withValues {
				return fmt.Errorf("%w: edge %q mixes valued and plain edges", ErrBuild, name)
			}
			from, err := b.finalRef(e.from, finalOf)
			if err != nil {
				return err
			}
			to, err := b.finalRef(e.to, finalOf)
			if err != nil {
				return err
			}
			rows[from-1] = append(rows[from-1], to)
			if withValues {
				vals[from-1] = append(vals[from-1], e.value)
			}
		}
		edgeRows[name] = rows
		if withValues {
			edgeVals[name] = vals
		}
	}

	var g errgroup.Group
	for name := range strVals {
		name := name
		g.Go(func() error {
			path := filepath.Join(dir, "features", name+".pool")
			return store.WriteStringPool(path, strVals[name], strSet[name], b.comp)
		})
	}
	for name := range intVals {
		name := name
		g.Go(func() error {
			path := filepath.Join(dir, "features", name+".arr")
			return store.WriteArray(path, intVals[name])
		})
	}
	for name := range edgeRows {
		name := name
		g.Go(func() error {
			path := filepath.Join(dir, "features", name+".csr")
			return store.WriteCSR(path, edgeRows[name], edgeVals[name])
		})
	}
	return g.Wait()
}
