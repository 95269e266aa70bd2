package bump

import (
	"iter"
	"slices"
)

// Checkpoint is a saved arena position. The zero value is not a valid checkpoint.
// Checkpoints are comparable: two checkpoints of the same arena are equal when
// they name the same position.
type Checkpoint struct {
	arena  *Arena
	blk    *block
	cursor int
}

// after reports whether the checkpoint lies strictly after position (seq, cursor).
func (cp Checkpoint) after(seq, cursor int) bool {
	return cp.blk.seq > seq || (cp.blk.seq == seq && cp.cursor > cursor)
}

// Checkpoint captures the arena's current position.
func (a *Arena) Checkpoint() Checkpoint {
	return Checkpoint{arena: a, blk: a.current, cursor: a.current.cursor}
}

// Restore rolls the arena back to cp. Every block between cp's block and the
// current one is rewound to its start and stays linked for reuse. Free chunks
// that buckets on the arena hold in the rolled-back memory are dropped.
//
// Checkpoints must be restored in stack order: restoring one that lies after the
// arena's current position panics in builds with the bumpdebug tag.
func (a *Arena) Restore(cp Checkpoint) {
	if cp.arena != a {
		panic("bump: checkpoint restored on a different arena")
	}
	if cp.blk.seq < 0 {
		panic("bump: checkpoint refers to a released block")
	}
	if debugChecks && cp.after(a.current.seq, a.current.cursor) {
		panic("bump: checkpoint restored out of order")
	}

	for b := cp.blk.next; b != nil && b.seq <= a.current.seq; b = b.next {
		b.cursor = 0
	}
	a.current = cp.blk
	a.current.cursor = cp.cursor
	a.trimBuckets(cp)
}

// Iterate returns an iterator over the bytes written since cp. The upper bound
// is the arena's position now; later allocations are not visited.
func (a *Arena) Iterate(cp Checkpoint) Iterator {
	if cp.arena != a {
		panic("bump: checkpoint iterated on a different arena")
	}
	return Iterator{
		blk:  cp.blk,
		min:  cp.cursor,
		last: a.current,
		max:  a.current.cursor,
	}
}

// Iterator walks the half-open range [checkpoint, construction) one block at a
// time. Copying an Iterator gives an independent iterator over the same range.
//
//	it := a.Iterate(cp)
//	for ok := it.Valid(); ok; ok = it.Advance() {
//		use(it.Bytes())
//	}
type Iterator struct {
	blk  *block
	min  int
	last *block
	max  int
}

// Valid reports whether the iterator points at a block.
func (it Iterator) Valid() bool {
	return it.blk != nil
}

// Bytes returns the span written in the current block.
func (it Iterator) Bytes() []byte {
	if it.blk == nil {
		return nil
	}
	end := it.blk.cursor
	if it.blk == it.last {
		end = it.max
	}
	if end <= it.min {
		return nil
	}
	return it.blk.buf[it.min:end:end]
}

// Advance moves to the next block. It returns false once the last block of
// the range has been reached.
func (it *Iterator) Advance() bool {
	if it.blk == nil || it.blk == it.last || it.blk.next == nil {
		return false
	}
	it.blk = it.blk.next
	it.min = 0
	return true
}

// CountBytes returns the total length of the range. The receiver is a copy, so
// the iterator stays where it is.
func (it Iterator) CountBytes() int {
	if !it.Valid() {
		return 0
	}
	n := 0
	for {
		n += len(it.Bytes())
		if !it.Advance() {
			return n
		}
	}
}

// All yields every non-empty span from the iterator's position onwards.
func (it Iterator) All() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if !it.Valid() {
			return
		}
		for {
			if b := it.Bytes(); len(b) > 0 && !yield(b) {
				return
			}
			if !it.Advance() {
				return
			}
		}
	}
}

// AppendTo appends the whole range to dst, growing it once.
func (it Iterator) AppendTo(dst []byte) []byte {
	dst = slices.Grow(dst, it.CountBytes())
	for b := range it.All() {
		dst = append(dst, b...)
	}
	return dst
}
