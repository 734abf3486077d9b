package store

import "github.com/google/btree"

// Index is an ordered secondary index over objects of type T, keyed by a
// caller-supplied Less comparator (e.g. "sell_price descending, id
// ascending" for the limit order book, "collateralization ascending" for
// call orders). Backed by github.com/google/btree, the same library the
// teacher's toy matching prototype (src/mbook/side.go) uses for its
// per-price-level index, generalized here to a generic, reusable secondary
// index used by every indexed table in spec.md §3.
type Index[T any] struct {
	tree *btree.BTreeG[T]
}

// NewIndex builds an empty index ordered by less.
func NewIndex[T any](less func(a, b T) bool) *Index[T] {
	return &Index[T]{tree: btree.NewG(32, less)}
}

// Insert adds v to the index. A prior value comparing equal to v is
// replaced. Every index the engine builds tie-breaks on object id, so
// only the same object compares equal.
func (ix *Index[T]) Insert(v T) {
	ix.tree.ReplaceOrInsert(v)
}

// Delete removes v (matched by the Less comparator) from the index.
func (ix *Index[T]) Delete(v T) (T, bool) {
	return ix.tree.Delete(v)
}

// Len returns the number of indexed entries.
func (ix *Index[T]) Len() int { return ix.tree.Len() }

// Min returns the smallest element (per Less) and true, or the zero value
// and false if the index is empty.
func (ix *Index[T]) Min() (T, bool) { return ix.tree.Min() }

// Max returns the largest element and true, or the zero value and false.
func (ix *Index[T]) Max() (T, bool) { return ix.tree.Max() }

// AscendFrom walks the index in ascending order starting at (or just
// after) pivot, invoking fn for each entry until fn returns false or the
// index is exhausted. Callers that mutate the index (delete the current
// element) while iterating must snapshot the next element before calling
// back into code that might delete the current one — see matching/book.go
// for the discipline this enforces.
func (ix *Index[T]) AscendFrom(pivot T, fn func(v T) bool) {
	ix.tree.AscendGreaterOrEqual(pivot, fn)
}

// Ascend walks every entry in ascending order.
func (ix *Index[T]) Ascend(fn func(v T) bool) {
	ix.tree.Ascend(fn)
}

// DescendFrom walks the index in descending order starting at (or just
// before) pivot.
func (ix *Index[T]) DescendFrom(pivot T, fn func(v T) bool) {
	ix.tree.DescendLessOrEqual(pivot, fn)
}

// Descend walks every entry in descending order.
func (ix *Index[T]) Descend(fn func(v T) bool) {
	ix.tree.Descend(fn)
}
