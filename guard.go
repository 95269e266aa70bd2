package bump

// Allocator is the allocation contract shared by Arena, Bucket and Guard.
// Arena ignores Deallocate; Bucket reuses the memory for the same size class.
type Allocator interface {
	Allocate(size, align int) ([]byte, error)
	Deallocate(buf []byte, size, align int) error
}

// Scope is an Allocator whose position can be saved and rolled back.
type Scope interface {
	Allocator
	Checkpoint() Checkpoint
	Restore(Checkpoint)
}

var (
	_ Scope     = (*Arena)(nil)
	_ Scope     = (*Bucket)(nil)
	_ Allocator = (*Guard)(nil)
)

// Guard binds a checkpoint to a lexical scope: Close rolls the scope back,
// invalidating every allocation made through the guard, or through anything
// else layered on the same arena, since the guard was opened.
//
// Guards must be closed in the reverse order they were opened.
// With the bumpdebug build tag a guard also counts the allocations issued
// through it and panics if any are still outstanding at Close.
type Guard struct {
	scope  Scope
	cp     Checkpoint
	closed bool
	live   guardCounter
}

// NewGuard opens a guard on s.
func NewGuard(s Scope) *Guard {
	return &Guard{scope: s, cp: s.Checkpoint()}
}

// Allocate implements Allocator.
func (g *Guard) Allocate(size, align int) ([]byte, error) {
	g.live.allocated()
	buf, err := g.scope.Allocate(size, align)
	if err != nil {
		g.live.deallocated()
		return nil, err
	}
	return buf, nil
}

// Deallocate implements Allocator.
func (g *Guard) Deallocate(buf []byte, size, align int) error {
	g.live.deallocated()
	return g.scope.Deallocate(buf, size, align)
}

// Checkpoint returns the position the guard rolls back to.
func (g *Guard) Checkpoint() Checkpoint {
	return g.cp
}

// Close restores the guard's checkpoint. Calling Close more than once has no
// further effect.
func (g *Guard) Close() {
	if g.closed {
		return
	}
	g.live.close()
	g.closed = true
	g.scope.Restore(g.cp)
}

// Scoped runs fn with a guard on s and closes the guard when fn returns.
func Scoped(s Scope, fn func(g *Guard) error) error {
	g := NewGuard(s)
	defer g.Close()
	return fn(g)
}

// Outstanding returns the number of allocations issued through the guard and
// not yet deallocated. It is always 0 without the bumpdebug build tag.
func (g *Guard) Outstanding() int {
	return g.live.outstanding()
}
