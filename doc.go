// Package loom is a graph-based corpus engine. It stores a richly
// annotated hierarchical text corpus as a read-only, memory-mappable
// binary format and answers structural pattern queries against it.
//
// Quick start:
//
//	c, err := corpus.Open("corpora/demo/1.0")
//	if err != nil { ... }
//	defer c.Close()
//	res, err := c.Search("sentence\n  phrase function=Pred")
//	for res.Next() {
//		tuple := res.Tuple()
//		...
//	}
package loom
