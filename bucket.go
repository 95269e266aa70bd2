package bump

import (
	"encoding/binary"
	"math/bits"
	"unsafe"

	"github.com/pkg/errors"
)

const (
	// MaxAlign is the largest alignment the bucket layer supports. It is the
	// alignment the Go heap gives every object of 16 bytes or more, above
	// unsafe.Alignof(complex128(0)) so 16-byte vector payloads fit too.
	MaxAlign = 16

	// NumClasses is the number of size classes: 8 B up to 2 GiB.
	NumClasses = 29

	minClassSize = 8

	// splitWindow limits the donor search to the five classes above the target.
	splitWindow = 1<<5 - 1
)

// ClassOf returns the size class that holds size bytes: 0 for sizes up to 8,
// otherwise the class of the next power-of-two multiple of 8.
func ClassOf(size int) int {
	if size <= minClassSize {
		return 0
	}
	return bits.Len(uint(size-1) / minClassSize)
}

// ClassSize returns the chunk size of class c.
func ClassSize(c int) int {
	return minClassSize << c
}

// classFor validates a request and returns its class. Requests are sized at
// least to their alignment so every chunk of a class is naturally aligned.
func classFor(size, align int) (int, error) {
	if !validAlign(align) {
		return 0, errors.Wrapf(ErrBadAlignment, "align %d", align)
	}
	if align > MaxAlign {
		return 0, errors.Wrapf(ErrUnsupportedAlignment, "align %d exceeds %d", align, MaxAlign)
	}
	if size < 0 {
		return 0, errors.Wrapf(ErrNegativeSize, "size %d", size)
	}
	c := ClassOf(max(size, align))
	if c >= NumClasses {
		return 0, errors.Wrapf(ErrTooLarge, "size %d", size)
	}
	return c, nil
}

// RoundedCapacity returns the number of bytes a bucket allocation of count
// elements of elemSize bytes actually provides.
func RoundedCapacity(count, elemSize, align int) (int, error) {
	if count < 0 || elemSize < 0 {
		return 0, errors.Wrapf(ErrNegativeSize, "%d x %d bytes", count, elemSize)
	}
	if elemSize > 0 && count > ClassSize(NumClasses-1)/elemSize {
		return 0, errors.Wrapf(ErrTooLarge, "%d x %d bytes", count, elemSize)
	}
	c, err := classFor(count*elemSize, align)
	if err != nil {
		return 0, err
	}
	return ClassSize(c), nil
}

// slot references a free chunk by block sequence number and offset instead of
// by address. Zero means no chunk.
type slot uint64

const (
	noSlot     slot = 0
	offsetBits      = 40
)

func makeSlot(seq, off int) slot {
	return slot(uint64(seq+1)<<offsetBits | uint64(off))
}

func (s slot) seq() int { return int(uint64(s)>>offsetBits) - 1 }
func (s slot) off() int { return int(uint64(s) & (1<<offsetBits - 1)) }

// Bucket is a size-classed free-list allocator backed by one Arena.
// Freed chunks are kept on per-class lists threaded through the chunks
// themselves; they are reused for the same class and never merged.
// Not goroutine-safe.
type Bucket struct {
	arena    *Arena
	heads    [NumClasses]slot
	counts   [NumClasses]int
	nonEmpty uint32
}

// NewBucket creates a Bucket that takes its memory from a. The bucket stays
// attached to a: rolling a back by any route drops the free chunks it held in
// the rolled-back memory.
func NewBucket(a *Arena) *Bucket {
	b := &Bucket{arena: a}
	a.buckets = append(a.buckets, b)
	return b
}

// Arena returns the arena backing the bucket.
func (b *Bucket) Arena() *Arena {
	return b.arena
}

// Allocate returns size bytes aligned to align. The slice has len size and
// cap equal to the size of its class.
func (b *Bucket) Allocate(size, align int) ([]byte, error) {
	c, err := classFor(size, align)
	if err != nil {
		return nil, err
	}
	cs := ClassSize(c)
	ca := carveAlign(c)

	// Exact class
	if b.nonEmpty&(1<<c) != 0 {
		blk, off := b.pop(c)
		return blk.buf[off : off+size : off+cs], nil
	}

	// Fresh chunk from the current block, no growth
	if blk, off, ok := b.arena.tryAllocate(cs, ca); ok {
		return blk.buf[off : off+size : off+cs], nil
	}

	// Split a chunk of a larger class into chunks of this one
	if donors := (b.nonEmpty >> (c + 1)) & splitWindow; donors != 0 {
		k := c + 1 + bits.TrailingZeros32(donors)
		blk, off := b.pop(k)
		for i := 1<<(k-c) - 1; i > 0; i-- {
			b.push(c, blk, off+i*cs)
		}
		return blk.buf[off : off+size : off+cs], nil
	}

	blk, off, err := b.arena.allocateSlow(cs, ca)
	if err != nil {
		return nil, err
	}
	b.sliceTail()
	return blk.buf[off : off+size : off+cs], nil
}

// carveAlign is the alignment a fresh chunk of class c is cut at. Requests are
// never smaller than their alignment, so a chunk needs no more than its own size.
func carveAlign(c int) int {
	return min(ClassSize(c), MaxAlign)
}

// sliceTail hands the rest of the current block to the free lists, largest
// classes first.
func (b *Bucket) sliceTail() {
	for {
		rem := b.arena.Remaining(minClassSize)
		if rem < minClassSize {
			return
		}
		c := min(bits.Len(uint(rem/minClassSize))-1, NumClasses-1)
		for ; c >= 0; c-- {
			if blk, off, ok := b.arena.tryAllocate(ClassSize(c), carveAlign(c)); ok {
				b.push(c, blk, off)
				break
			}
		}
		if c < 0 {
			return
		}
	}
}

// Deallocate returns buf to the free list of the class derived from size and
// align, which must match the values it was allocated with. The memory stays
// in the bucket; it goes back to the arena only through Restore, Reset or Release.
func (b *Bucket) Deallocate(buf []byte, size, align int) error {
	c, err := classFor(size, align)
	if err != nil {
		return err
	}
	blk, off, ok := b.arena.locate(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
	if !ok {
		return errors.Wrapf(ErrNotOwned, "deallocate %d bytes", size)
	}
	if off+ClassSize(c) > len(blk.buf) {
		return errors.Wrapf(ErrNotOwned, "deallocate %d bytes at offset %d of a %d byte block", size, off, len(blk.buf))
	}
	b.push(c, blk, off)
	return nil
}

func (b *Bucket) push(c int, blk *block, off int) {
	binary.LittleEndian.PutUint64(blk.buf[off:off+8], uint64(b.heads[c]))
	b.heads[c] = makeSlot(blk.seq, off)
	b.nonEmpty |= 1 << c
	b.counts[c]++
}

func (b *Bucket) pop(c int) (*block, int) {
	blk, off := b.resolve(b.heads[c])
	b.heads[c] = slot(binary.LittleEndian.Uint64(blk.buf[off : off+8]))
	if b.heads[c] == noSlot {
		b.nonEmpty &^= 1 << c
	}
	b.counts[c]--
	return blk, off
}

func (b *Bucket) resolve(s slot) (*block, int) {
	return b.arena.blocks[s.seq()], s.off()
}

// Checkpoint captures the position of the backing arena.
func (b *Bucket) Checkpoint() Checkpoint {
	return b.arena.Checkpoint()
}

// Restore rolls the backing arena back to cp, which drops every free chunk
// that lies in the rolled-back memory. Chunks allocated before cp and handed
// out since are not returned to the free lists.
func (b *Bucket) Restore(cp Checkpoint) {
	b.arena.Restore(cp)
}

// purgeFrom drops the free chunks at or after cp from every class.
func (b *Bucket) purgeFrom(cp Checkpoint) {
	for c := range NumClasses {
		if b.nonEmpty&(1<<c) != 0 {
			b.purge(c, cp)
		}
	}
}

// purge rebuilds the list of class c keeping only chunks before cp, in order.
func (b *Bucket) purge(c int, cp Checkpoint) {
	var head, prev slot
	kept := 0
	for s := b.heads[c]; s != noSlot; {
		blk, off := b.resolve(s)
		next := slot(binary.LittleEndian.Uint64(blk.buf[off : off+8]))
		if cp.after(s.seq(), s.off()) {
			if prev == noSlot {
				head = s
			} else {
				pb, po := b.resolve(prev)
				binary.LittleEndian.PutUint64(pb.buf[po:po+8], uint64(s))
			}
			prev = s
			kept++
		}
		s = next
	}
	if prev != noSlot {
		pb, po := b.resolve(prev)
		binary.LittleEndian.PutUint64(pb.buf[po:po+8], uint64(noSlot))
	}
	b.heads[c] = head
	b.counts[c] = kept
	if head == noSlot {
		b.nonEmpty &^= 1 << c
	}
}

// Reset resets the backing arena, which empties every free list.
func (b *Bucket) Reset() {
	b.arena.Reset()
}

// Release releases the backing arena, which empties every free list.
func (b *Bucket) Release() {
	b.arena.Release()
}

func (b *Bucket) clear() {
	b.heads = [NumClasses]slot{}
	b.counts = [NumClasses]int{}
	b.nonEmpty = 0
}

// FreeCount returns the number of free chunks in class c.
func (b *Bucket) FreeCount(c int) int {
	if c < 0 || c >= NumClasses {
		return 0
	}
	return b.counts[c]
}

// FreeBytes returns the total size of all free chunks.
func (b *Bucket) FreeBytes() int {
	n := 0
	for c, cnt := range b.counts {
		n += cnt * ClassSize(c)
	}
	return n
}

// Stats returns the backing arena's source counters.
func (b *Bucket) Stats() Snapshot {
	return b.arena.Stats()
}
