//go:build !bumpdebug

package bump

// debugChecks enables the assertions that guard stack discipline and guard
// allocation balance. Build with -tags bumpdebug to turn them on.
const debugChecks = false

// guardCounter tracks allocations issued through a Guard. Without the
// bumpdebug tag it is empty and every method compiles away.
type guardCounter struct{}

func (*guardCounter) allocated() {}
func (*guardCounter) deallocated() {}
func (*guardCounter) close() {}
func (*guardCounter) outstanding() int { return 0 }
