package bump

import "github.com/pkg/errors"

var (
	// ErrOutOfMemory is returned when the backing Source cannot provide a new block.
	ErrOutOfMemory = errors.New("bump: backing source exhausted")

	// ErrBadAlignment is returned for alignments that are not a positive power of two.
	ErrBadAlignment = errors.New("bump: alignment must be a positive power of two")

	// ErrUnsupportedAlignment is returned by the bucket layer for alignments above MaxAlign.
	ErrUnsupportedAlignment = errors.New("bump: unsupported alignment")

	// ErrNegativeSize is returned when a negative byte count is requested.
	ErrNegativeSize = errors.New("bump: negative size")

	// ErrTooLarge is returned when a request exceeds the largest size class.
	ErrTooLarge = errors.New("bump: request too large")

	// ErrNotOwned is returned when a slice handed to Deallocate does not live in the arena.
	ErrNotOwned = errors.New("bump: memory not owned by this arena")
)

func validAlign(align int) bool {
	return align > 0 && align&(align-1) == 0
}
