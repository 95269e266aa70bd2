// Package bump implements a scoped arena ("bump") allocator for Go, with
// checkpoint rollback and a size-classed bucket allocator on top.
//
// # Overview
//
// An arena hands out memory by advancing a cursor through a chain of blocks.
// Nothing is freed one allocation at a time; memory comes back in bulk when the
// arena is rolled back to a checkpoint, reset or released. This suits:
//
//   - Parsers and formatters that build short-lived intermediate data
//   - Per-request scratch memory in servers
//   - Batches of fixed-shape records with a common lifetime
//
// # Basic Usage
//
//	a := bump.New(0) // 4 KiB root block
//	defer a.Release()
//
//	buf, err := a.Allocate(128, 8)
//
//	cp := a.Checkpoint()
//	tmp, err := a.AllocateUnaligned(4096) // may grow the chain
//	a.Restore(cp)                         // tmp is gone, the grown block is kept
//
// # Guards
//
// A Guard ties a checkpoint to a scope:
//
//	err := bump.Scoped(a, func(g *bump.Guard) error {
//		row, err := bump.AllocSliceZeroed[int64](g, 64)
//		...
//	})
//
// Guards nest like stack frames and must be closed in reverse order. Build with
// -tags bumpdebug to assert the order, and to make each guard check that every
// allocation issued through it was deallocated before Close.
//
// # Bucket Allocator
//
// Bucket adds per-size reuse on top of an arena. Sizes are rounded up to
// power-of-two classes starting at 8 bytes; freed chunks go on their class's
// free list, and an empty class is refilled by splitting a chunk of a larger
// class before the arena is asked to grow.
//
//	b := bump.NewBucket(a)
//	buf, err := b.Allocate(10, 8) // 16 byte class
//	err = b.Deallocate(buf, 10, 8)
//
// # Reading Back
//
// Iterate returns the bytes written since a checkpoint, one block at a time.
// Formatter uses it to collect fmt output appended straight into arena memory.
//
// # Memory Layout
//
// The root block is allocated by New (or supplied with WithBuffer). Further
// blocks come from a Source, at least 1 KiB and doubling up to 256 KiB, or the
// size of the request if larger. A Source that runs out makes Allocate return
// an error wrapping ErrOutOfMemory.
//
// # Important Notes
//
//   - Arenas, buckets and guards are not safe for concurrent use
//   - Memory is only valid until the arena rolls back past it
//   - Arena memory is not scanned by the garbage collector: do not store Go
//     pointers in it
//   - Allocate does not zero memory; Alloc and AllocSliceZeroed do
//
// # Metrics and Monitoring
//
//	m := a.Metrics()
//	fmt.Printf("Utilization: %.2f%%\n", m.Utilization*100)
//
// Stats may be read from any goroutine; package tracker builds periodic
// reports and Prometheus metrics from it.
package bump
