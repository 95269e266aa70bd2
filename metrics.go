package bump

// SizeInUse returns the number of bytes allocated in the blocks up to and
// including the current one. This includes alignment padding.
func (a *Arena) SizeInUse() int {
	sum := 0
	for b := a.root; b != nil; b = b.next {
		sum += b.cursor
		if b == a.current {
			break
		}
	}
	return sum
}

// NumBlocks returns the number of blocks in the chain, including the root.
func (a *Arena) NumBlocks() int {
	return len(a.blocks)
}

// Capacity returns the total capacity (in bytes) of all blocks in the chain.
func (a *Arena) Capacity() int {
	sum := 0
	for _, b := range a.blocks {
		sum += len(b.buf)
	}
	return sum
}

// Utilization returns the ratio of bytes in use to total capacity (0.0 to 1.0).
// Returns 0.0 if the arena has no capacity.
func (a *Arena) Utilization() float64 {
	capacity := a.Capacity()
	if capacity == 0 {
		return 0
	}
	return float64(a.SizeInUse()) / float64(capacity)
}

// RootSize returns the capacity of the root block.
func (a *Arena) RootSize() int {
	return len(a.root.buf)
}

// Stats returns the cumulative bytes the arena obtained from and returned to
// its Source. Unlike the other metrics it may be called from any goroutine.
func (a *Arena) Stats() Snapshot {
	return Snapshot{
		Reserved: a.reserved.Load(),
		Freed:    a.freed.Load(),
	}
}

// Metrics returns a snapshot of arena statistics.
func (a *Arena) Metrics() ArenaMetrics {
	s := a.Stats()
	return ArenaMetrics{
		SizeInUse:   a.SizeInUse(),
		Capacity:    a.Capacity(),
		NumBlocks:   a.NumBlocks(),
		RootSize:    a.RootSize(),
		Utilization: a.Utilization(),
		Reserved:    s.Reserved,
		Freed:       s.Freed,
	}
}

// ArenaMetrics contains statistical information about an arena.
type ArenaMetrics struct {
	SizeInUse   int     // Bytes currently allocated
	Capacity    int     // Total capacity in bytes
	NumBlocks   int     // Number of blocks
	RootSize    int     // Capacity of the root block
	Utilization float64 // Ratio of used to total capacity (0.0-1.0)
	Reserved    uint64  // Bytes ever obtained from the Source
	Freed       uint64  // Bytes ever returned to the Source
}

// Snapshot is the pair of source counters reported for an arena.
type Snapshot struct {
	Reserved uint64
	Freed    uint64
}

// Live returns the bytes currently held from the Source.
func (s Snapshot) Live() uint64 {
	return s.Reserved - s.Freed
}
