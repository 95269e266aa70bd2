package bump

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, a *Arena, n int, c byte) []byte {
	t.Helper()
	b, err := a.AllocateUnaligned(n)
	require.NoError(t, err)
	for i := range b {
		b[i] = c
	}
	return b
}

func TestCheckpointRestoreIsNoop(t *testing.T) {
	a := New(1024)
	_, _ = a.Allocate(24, 8)

	cp := a.Checkpoint()
	a.Restore(cp)
	assert.Equal(t, cp, a.Checkpoint())

	b1, err := a.Allocate(32, 8)
	require.NoError(t, err)
	a.Restore(cp)
	b2, err := a.Allocate(32, 8)
	require.NoError(t, err)
	assert.Equal(t, addr(b1), addr(b2))
}

func TestCheckpointRestoreKeepsGrownBlock(t *testing.T) {
	a := New(64)

	first, err := a.Allocate(40, 8)
	require.NoError(t, err)
	require.Equal(t, 24, a.RemainingBytes())

	cp := a.Checkpoint()
	second, err := a.Allocate(40, 8)
	require.NoError(t, err)
	require.Equal(t, 2, a.NumBlocks())
	assert.Len(t, a.current.buf, minGrowSize)

	a.Restore(cp)
	assert.Equal(t, 24, a.RemainingBytes())
	assert.Equal(t, 2, a.NumBlocks())
	assert.Equal(t, 40, a.SizeInUse())

	// The next request that does not fit the root lands in the kept block.
	third, err := a.Allocate(40, 8)
	require.NoError(t, err)
	assert.Equal(t, 2, a.NumBlocks())
	assert.Equal(t, addr(second), addr(third))
	assert.NotEqual(t, addr(first), addr(third))
}

func TestCheckpointRestoreRewindsIntermediateBlocks(t *testing.T) {
	a := New(64)
	cp := a.Checkpoint()
	for i := 0; i < 4; i++ {
		_, err := a.Allocate(900*(i+1), 1)
		require.NoError(t, err)
	}
	require.Equal(t, 5, a.NumBlocks())

	a.Restore(cp)
	for _, b := range a.blocks {
		assert.Zero(t, b.cursor, "block %d", b.seq)
	}
	assert.Zero(t, a.SizeInUse())
}

func TestCheckpointNested(t *testing.T) {
	a := New(128)
	outer := a.Checkpoint()
	_, _ = a.Allocate(50, 1)
	inner := a.Checkpoint()
	_, _ = a.Allocate(500, 1)

	a.Restore(inner)
	assert.Equal(t, 50, a.SizeInUse())
	a.Restore(outer)
	assert.Zero(t, a.SizeInUse())
}

func TestCheckpointForeignArenaPanics(t *testing.T) {
	a, other := New(64), New(64)
	cp := other.Checkpoint()
	assert.PanicsWithValue(t, "bump: checkpoint restored on a different arena", func() {
		a.Restore(cp)
	})
	assert.Panics(t, func() { a.Iterate(cp) })
}

func TestCheckpointReleasedBlockPanics(t *testing.T) {
	a := New(64)
	_, _ = a.Allocate(1000, 1)
	cp := a.Checkpoint()
	a.Release()
	assert.PanicsWithValue(t, "bump: checkpoint refers to a released block", func() {
		a.Restore(cp)
	})
}

func TestIteratorSingleBlock(t *testing.T) {
	a := New(1024)
	_, _ = a.Allocate(7, 1)
	cp := a.Checkpoint()

	copy(fill(t, a, 5, 0), "hello")
	copy(fill(t, a, 5, 0), "world")

	it := a.Iterate(cp)
	require.True(t, it.Valid())
	assert.Equal(t, "helloworld", string(it.Bytes()))
	assert.Equal(t, 10, it.CountBytes())
	assert.False(t, it.Advance())
	assert.Equal(t, "helloworld", string(it.AppendTo(nil)))
}

func TestIteratorAcrossBlocks(t *testing.T) {
	a := New(64)
	cp := a.Checkpoint()

	fill(t, a, 40, 'a')
	fill(t, a, 100, 'b') // grows
	fill(t, a, 20, 'c')

	it := a.Iterate(cp)
	assert.Equal(t, 160, it.CountBytes())

	var frags []string
	for frag := range it.All() {
		frags = append(frags, string(frag))
	}
	assert.Equal(t, []string{
		string(bytes.Repeat([]byte{'a'}, 40)),
		string(bytes.Repeat([]byte{'b'}, 100)) + string(bytes.Repeat([]byte{'c'}, 20)),
	}, frags)

	want := string(bytes.Repeat([]byte{'a'}, 40)) +
		string(bytes.Repeat([]byte{'b'}, 100)) +
		string(bytes.Repeat([]byte{'c'}, 20))
	assert.Equal(t, want, string(it.AppendTo([]byte{})))
}

func TestIteratorSkipsRewoundBlocks(t *testing.T) {
	a := New(64)
	start := a.Checkpoint()
	fill(t, a, 1000, 'x') // block 1, 1 KiB
	fill(t, a, 1000, 'x') // block 2, 2 KiB
	require.Equal(t, 3, a.NumBlocks())
	a.Restore(start)

	// Too big for the root and block 1: the walk rewinds block 1 and lands in block 2.
	cp := a.Checkpoint()
	fill(t, a, 2000, 'y')
	require.Equal(t, 3, a.NumBlocks())

	it := a.Iterate(cp)
	var total int
	for frag := range it.All() {
		for _, c := range frag {
			require.Equal(t, byte('y'), c)
		}
		total += len(frag)
	}
	assert.Equal(t, 2000, total)
	assert.Equal(t, 2000, it.CountBytes())
}

func TestIteratorUpperBoundIsFixed(t *testing.T) {
	a := New(64)
	cp := a.Checkpoint()
	fill(t, a, 30, 'a')

	it := a.Iterate(cp)
	fill(t, a, 10, 'b')
	fill(t, a, 1000, 'c')

	assert.Equal(t, 30, it.CountBytes())
	assert.Equal(t, string(bytes.Repeat([]byte{'a'}, 30)), string(it.AppendTo(nil)))
}

func TestIteratorCopyIsIndependent(t *testing.T) {
	a := New(64)
	cp := a.Checkpoint()
	fill(t, a, 40, 'a')
	fill(t, a, 100, 'b')

	it := a.Iterate(cp)
	cpy := it
	require.True(t, cpy.Advance())
	assert.Len(t, cpy.Bytes(), 100)
	assert.Len(t, it.Bytes(), 40)
	assert.False(t, cpy.Advance())
}

func TestIteratorEmptyRange(t *testing.T) {
	a := New(64)
	_, _ = a.Allocate(10, 1)
	it := a.Iterate(a.Checkpoint())

	assert.True(t, it.Valid())
	assert.Empty(t, it.Bytes())
	assert.Zero(t, it.CountBytes())
	for range it.All() {
		t.Fatal("empty range yielded a fragment")
	}

	var zero Iterator
	assert.False(t, zero.Valid())
	assert.Zero(t, zero.CountBytes())
	assert.False(t, zero.Advance())
}
