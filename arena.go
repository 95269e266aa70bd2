// Package bump implements a scoped arena (bump) allocator with checkpoint
// rollback, and a size-classed bucket allocator layered on top of it.
// Typical usage: create one arena per request or parse, take a checkpoint (or
// open a Guard), allocate freely, then roll back at the end of the scope.
package bump

import (
	"sort"
	"unsafe"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// DefaultBlockSize is the root block capacity used when New is given capacity <= 0.
const DefaultBlockSize = 4 << 10

const (
	minGrowSize = 1 << 10
	maxGrowSize = 256 << 10
)

// block is one fixed-capacity region of the chain.
type block struct {
	buf    []byte // backing memory
	cursor int    // next free offset within buf
	next   *block
	seq    int  // position in the chain, root is 0
	owned  bool // buf came from the Source
}

func (b *block) base() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b.buf)))
}

// fit returns the offset at which n bytes aligned to align would start, and
// whether they fit before the end of the block.
func (b *block) fit(n, align int) (int, bool) {
	base := b.base()
	off := int(alignUp(base+uintptr(b.cursor), align) - base)
	return off, off <= len(b.buf)-n
}

// Arena is a chain of blocks handed out by bumping a cursor. Not goroutine-safe.
type Arena struct {
	root    *block
	current *block
	blocks  []*block // indexed by seq
	byAddr  []*block // sorted by base address, for locate

	// Buckets carving chunks out of this arena. Their free lists are trimmed
	// whenever the arena rolls back.
	buckets []*Bucket

	rootBuf []byte
	source  Source
	logger  log.Logger

	// Bytes obtained from and returned to the Source. Only written on the
	// growth and release paths, so they can be read from other goroutines.
	reserved atomic.Uint64
	freed    atomic.Uint64
}

// New creates an Arena whose root block holds capacity bytes.
// If capacity <= 0, DefaultBlockSize is used.
func New(capacity int, opts ...Option) *Arena {
	if capacity <= 0 {
		capacity = DefaultBlockSize
	}
	a := &Arena{
		source: HeapSource{},
		logger: log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	buf := a.rootBuf
	if buf == nil {
		buf = make([]byte, capacity)
	}
	a.rootBuf = nil
	a.root = &block{buf: buf}
	a.current = a.root
	a.blocks = []*block{a.root}
	a.index(a.root)
	return a
}

// Allocate returns n bytes aligned to align, growing the arena if the current
// block is full. The slice has len and cap n. Returns nil, nil if n == 0.
// A failed allocation leaves the arena's position unchanged.
func (a *Arena) Allocate(n, align int) ([]byte, error) {
	if n <= 0 {
		if n < 0 {
			return nil, errors.Wrapf(ErrNegativeSize, "allocate %d bytes", n)
		}
		return nil, nil
	}
	if !validAlign(align) {
		return nil, errors.Wrapf(ErrBadAlignment, "allocate %d bytes aligned to %d", n, align)
	}

	// Fast path: bump the current block
	b := a.current
	if off, ok := b.fit(n, align); ok {
		b.cursor = off + n
		return b.buf[off : off+n : off+n], nil
	}

	b, off, err := a.allocateSlow(n, align)
	if err != nil {
		return nil, err
	}
	return b.buf[off : off+n : off+n], nil
}

// AllocateUnaligned is Allocate with an alignment of 1.
func (a *Arena) AllocateUnaligned(n int) ([]byte, error) {
	return a.Allocate(n, 1)
}

// TryAllocate is the fast path of Allocate only: it never grows the arena and
// reports false when the current block cannot hold the request.
func (a *Arena) TryAllocate(n, align int) ([]byte, bool) {
	if n <= 0 || !validAlign(align) {
		return nil, n == 0
	}
	b, off, ok := a.tryAllocate(n, align)
	if !ok {
		return nil, false
	}
	return b.buf[off : off+n : off+n], true
}

func (a *Arena) tryAllocate(n, align int) (*block, int, bool) {
	b := a.current
	off, ok := b.fit(n, align)
	if !ok {
		return nil, 0, false
	}
	b.cursor = off + n
	return b, off, true
}

// allocateSlow walks the blocks already linked after the current one, resetting
// each, before growing the chain with a new block. If growth fails the current
// block is put back; the blocks walked past hold nothing live either way.
func (a *Arena) allocateSlow(n, align int) (*block, int, error) {
	prev := a.current
	for a.current.next != nil {
		a.current = a.current.next
		a.current.cursor = 0
		if off, ok := a.current.fit(n, align); ok {
			a.current.cursor = off + n
			return a.current, off, nil
		}
	}

	b, err := a.grow(n, align)
	if err != nil {
		a.current = prev
		return nil, 0, err
	}
	off, _ := b.fit(n, align)
	b.cursor = off + n
	return b, off, nil
}

// grow links a new block after the current (tail) block and makes it current.
func (a *Arena) grow(n, align int) (*block, error) {
	size := max(minGrowSize, n+align-1)
	size = max(size, min(2*len(a.current.buf), maxGrowSize))

	buf, err := a.source.Alloc(size)
	if err != nil {
		level.Warn(a.logger).Log("msg", "arena growth failed", "size", size, "request", n, "err", err)
		return nil, errors.Wrapf(err, "grow arena by %d bytes", size)
	}
	if len(buf) < size {
		return nil, errors.Wrapf(ErrOutOfMemory, "source returned %d of %d bytes", len(buf), size)
	}
	buf = buf[:size]

	b := &block{buf: buf, seq: a.current.seq + 1, owned: true}
	a.current.next = b
	a.current = b
	a.blocks = append(a.blocks, b)
	a.index(b)
	a.reserved.Add(uint64(size))

	level.Debug(a.logger).Log("msg", "arena grew", "block", b.seq, "size", size, "request", n)
	return b, nil
}

// Remaining returns the bytes still available in the current block for an
// allocation aligned to align.
func (a *Arena) Remaining(align int) int {
	if !validAlign(align) {
		return 0
	}
	b := a.current
	off, _ := b.fit(0, align)
	return max(0, len(b.buf)-off)
}

// RemainingBytes returns the unaligned bytes left in the current block.
func (a *Arena) RemainingBytes() int {
	return len(a.current.buf) - a.current.cursor
}

// Tail returns the unused part of the current block as an empty slice whose
// capacity reaches to the end of the block. Its start is the arena's current
// write position. Writing into it does not allocate; Allocate commits it.
func (a *Arena) Tail() []byte {
	b := a.current
	return b.buf[b.cursor:b.cursor:len(b.buf)]
}

// Truncate moves the current block's cursor back to the end of mark, which must
// lie in the current block at or before the cursor.
func (a *Arena) Truncate(mark []byte) {
	b := a.current
	end := uintptr(unsafe.Pointer(unsafe.SliceData(mark))) + uintptr(len(mark))
	base := b.base()
	if end < base || end > base+uintptr(b.cursor) {
		panic("bump: truncate outside the current block")
	}
	b.cursor = int(end - base)
	a.trimBuckets(a.Checkpoint())
}

// Deallocate is a no-op: arena memory is reclaimed in bulk through Restore,
// Reset or Release. It lets *Arena satisfy Allocator.
func (a *Arena) Deallocate([]byte, int, int) error {
	return nil
}

// Reset rewinds every block to its start and makes the root current again.
// All blocks are kept for reuse. Buckets on the arena lose their free chunks.
func (a *Arena) Reset() {
	for _, bk := range a.buckets {
		bk.clear()
	}
	for _, b := range a.blocks {
		b.cursor = 0
	}
	a.current = a.root
}

// Release hands every block after the root back to the Source and rewinds the
// root. Checkpoints taken on a released block must not be restored afterwards.
// Buckets on the arena lose their free chunks.
func (a *Arena) Release() {
	for _, bk := range a.buckets {
		bk.clear()
	}
	released := 0
	for b := a.root.next; b != nil; {
		next := b.next
		if b.owned {
			a.source.Free(b.buf)
			a.freed.Add(uint64(len(b.buf)))
		}
		b.buf, b.next, b.cursor, b.seq = nil, nil, 0, -1
		released++
		b = next
	}
	a.root.next = nil
	a.root.cursor = 0
	a.current = a.root

	clear(a.blocks[1:])
	a.blocks = a.blocks[:1]
	clear(a.byAddr)
	a.byAddr = a.byAddr[:0]
	a.index(a.root)

	if released > 0 {
		level.Debug(a.logger).Log("msg", "arena released", "blocks", released)
	}
}

// trimBuckets drops the free chunks of every bucket on the arena that lie at or
// after cp.
func (a *Arena) trimBuckets(cp Checkpoint) {
	for _, bk := range a.buckets {
		bk.purgeFrom(cp)
	}
}

// index records b in the address-ordered block list.
func (a *Arena) index(b *block) {
	if len(b.buf) == 0 {
		return
	}
	base := b.base()
	i := sort.Search(len(a.byAddr), func(i int) bool { return a.byAddr[i].base() > base })
	a.byAddr = append(a.byAddr, nil)
	copy(a.byAddr[i+1:], a.byAddr[i:])
	a.byAddr[i] = b
}

// locate finds the block holding address p and p's offset within it.
func (a *Arena) locate(p uintptr) (*block, int, bool) {
	i := sort.Search(len(a.byAddr), func(i int) bool { return a.byAddr[i].base() > p }) - 1
	if i < 0 {
		return nil, 0, false
	}
	b := a.byAddr[i]
	off := p - b.base()
	if off >= uintptr(len(b.buf)) {
		return nil, 0, false
	}
	return b, int(off), true
}

// alignUp rounds addr up to a multiple of align, which must be a power of two.
func alignUp(addr uintptr, align int) uintptr {
	mask := uintptr(align) - 1
	return (addr + mask) &^ mask
}
