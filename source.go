package bump

import (
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// Source provides the memory for blocks an arena grows into.
// It is only touched on the growth path and by Release.
type Source interface {
	// Alloc returns a region of exactly n bytes.
	Alloc(n int) ([]byte, error)
	// Free hands a region obtained from Alloc back to the source.
	Free(buf []byte)
}

// HeapSource allocates blocks from the Go heap. Free leaves the region to the GC.
type HeapSource struct{}

// Alloc implements Source.
func (HeapSource) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrNegativeSize, "heap source: alloc %d", n)
	}
	return make([]byte, n), nil
}

// Free implements Source.
func (HeapSource) Free([]byte) {}

// LimitSource caps the number of bytes outstanding from a parent Source.
// It is safe for use by several arenas on different goroutines.
type LimitSource struct {
	parent Source
	max    int64
	used   atomic.Int64
}

// NewLimitSource returns a Source that fails with ErrOutOfMemory once more than
// max bytes would be outstanding. A nil parent means HeapSource.
func NewLimitSource(max int, parent Source) *LimitSource {
	if parent == nil {
		parent = HeapSource{}
	}
	return &LimitSource{parent: parent, max: int64(max)}
}

// Alloc implements Source.
func (s *LimitSource) Alloc(n int) ([]byte, error) {
	if used := s.used.Add(int64(n)); used > s.max {
		s.used.Sub(int64(n))
		return nil, errors.Wrapf(ErrOutOfMemory, "limit %d bytes, %d in use, %d requested", s.max, used-int64(n), n)
	}
	buf, err := s.parent.Alloc(n)
	if err != nil {
		s.used.Sub(int64(n))
		return nil, err
	}
	return buf, nil
}

// Free implements Source.
func (s *LimitSource) Free(buf []byte) {
	s.used.Sub(int64(len(buf)))
	s.parent.Free(buf)
}

// InUse returns the number of bytes currently handed out.
func (s *LimitSource) InUse() int {
	return int(s.used.Load())
}
