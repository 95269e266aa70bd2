//go:build bumpdebug

package bump

import "fmt"

const debugChecks = true

// guardCounter counts allocations issued through a Guard that have not been
// handed back, and rejects use of a Guard after Close.
type guardCounter struct {
	live   int
	closed bool
}

func (c *guardCounter) allocated() {
	if c.closed {
		panic("bump: allocate through a closed guard")
	}
	c.live++
}

func (c *guardCounter) deallocated() {
	if c.closed {
		panic("bump: deallocate through a closed guard")
	}
	c.live--
}

func (c *guardCounter) close() {
	if c.live != 0 {
		panic(fmt.Sprintf("bump: guard closed with %d outstanding allocations", c.live))
	}
	c.closed = true
}

func (c *guardCounter) outstanding() int { return c.live }
