// Package corpus loads compiled corpora and answers structural pattern
// queries against them.
//
// A corpus is a graph of nodes 1..maxNode: slot nodes (the atomic ordered
// units, 1..maxSlot) and non-slot nodes, each spanning an ascending set
// of slots. Every node has exactly one type, and each type occupies one
// contiguous identifier range. Open maps the compiled binary layout
// read-only, derives (or maps) the canonical order, rank, type-range
// table, ancestor/descendant adjacency and span boundaries, and returns
// a handle exposing feature access, locality navigation, canonical
// iteration, text materialization, and template search.
//
// The engine is single-threaded and pull-based: the only suspension
// points are page faults on first touch of a mapped region. Independent
// processes may serve the same corpus directory concurrently; the OS
// shares the underlying pages.
package corpus
