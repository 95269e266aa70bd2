//go:build bumpdebug

package bump

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardCountsOutstanding(t *testing.T) {
	a := New(256)
	g := NewGuard(a)

	x, err := g.Allocate(16, 8)
	require.NoError(t, err)
	_, err = g.Allocate(16, 8)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Outstanding())

	require.NoError(t, g.Deallocate(x, 16, 8))
	assert.Equal(t, 1, g.Outstanding())

	assert.PanicsWithValue(t, "bump: guard closed with 1 outstanding allocations", g.Close)
}

func TestGuardFailedAllocationNotCounted(t *testing.T) {
	a := New(64, WithSource(NewLimitSource(0, nil)))
	g := NewGuard(a)

	_, err := g.Allocate(1000, 8)
	require.Error(t, err)
	assert.Zero(t, g.Outstanding())
	assert.NotPanics(t, g.Close)
}

func TestGuardUseAfterClose(t *testing.T) {
	g := NewGuard(New(64))
	g.Close()
	assert.Panics(t, func() { _, _ = g.Allocate(8, 8) })
}

func TestRestoreOutOfOrderPanics(t *testing.T) {
	a := New(64)
	outer := a.Checkpoint()
	_, _ = a.Allocate(8, 8)
	inner := a.Checkpoint()

	a.Restore(outer)
	assert.PanicsWithValue(t, "bump: checkpoint restored out of order", func() {
		a.Restore(inner)
	})
}
