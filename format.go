package bump

import (
	"fmt"
)

const defaultProbeSize = 256

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithSeparator appends sep after every formatted string.
func WithSeparator(sep byte) FormatterOption {
	return func(f *Formatter) {
		f.sep, f.hasSep = sep, true
	}
}

// WithProbeSize sets how many bytes Format reserves before rendering.
func WithProbeSize(n int) FormatterOption {
	return func(f *Formatter) {
		if n > 0 {
			f.probe = n
		}
	}
}

// Formatter renders fmt-style strings straight into an arena's tail space.
// Strings produced by Append are laid out back to back and can be collected
// into one contiguous string afterwards.
type Formatter struct {
	arena *Arena
	start Checkpoint
	probe int

	sep    byte
	hasSep bool

	last     Checkpoint
	appended bool
}

// NewFormatter returns a Formatter writing into a. Collect covers everything
// allocated on a from this point on.
func NewFormatter(a *Arena, opts ...FormatterOption) *Formatter {
	f := &Formatter{
		arena: a,
		start: a.Checkpoint(),
		probe: defaultProbeSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format renders format and args into the arena and returns the rendered bytes,
// without the separator. The output is written in place when it fits in the
// current block; otherwise the arena grows once to the exact size.
func (f *Formatter) Format(format string, args ...any) ([]byte, error) {
	return f.format(f.sep, f.hasSep, format, args...)
}

// FormatNul is Format with a NUL terminator instead of the separator.
func (f *Formatter) FormatNul(format string, args ...any) ([]byte, error) {
	return f.format(0, true, format, args...)
}

func (f *Formatter) format(sep byte, hasSep bool, format string, args ...any) ([]byte, error) {
	extra := 0
	if hasSep {
		extra = 1
	}

	// Make sure the current block has at least probe bytes, then give them back
	// and render into the whole tail.
	probe, err := f.arena.AllocateUnaligned(f.probe)
	if err != nil {
		return nil, err
	}
	f.arena.Truncate(probe[:0])
	tail := f.arena.Tail()
	room := cap(tail) - extra
	out := fmt.Appendf(tail[:0:room], format, args...)

	var buf []byte
	if len(out) <= room {
		// Rendered in place; commit exactly what was written.
		buf, _ = f.arena.AllocateUnaligned(len(out) + extra)
	} else {
		buf, err = f.arena.AllocateUnaligned(len(out) + extra)
		if err != nil {
			return nil, err
		}
		copy(buf, out)
	}
	if hasSep {
		buf[len(out)] = sep
	}
	return buf[:len(out):len(out)], nil
}

// Append is Format for output that will be collected. Nothing else may be
// allocated from the arena between two Appends.
func (f *Formatter) Append(format string, args ...any) ([]byte, error) {
	f.checkAppend()
	b, err := f.Format(format, args...)
	if err != nil {
		return nil, err
	}
	f.last, f.appended = f.arena.Checkpoint(), true
	return b, nil
}

func (f *Formatter) checkAppend() {
	if f.appended && f.last != f.arena.Checkpoint() {
		panic("bump: arena used between formatter appends")
	}
}

// Collect returns a Builder over everything written since the Formatter was created.
func (f *Formatter) Collect() Builder {
	f.checkAppend()
	f.appended = false
	return Builder{arena: f.arena, it: f.arena.Iterate(f.start)}
}

// Builder is a possibly fragmented byte range of an arena, ready to be
// flattened.
type Builder struct {
	arena *Arena
	it    Iterator
}

// Iterator returns an iterator over the fragments.
func (b Builder) Iterator() Iterator {
	return b.it
}

// Len returns the total number of bytes.
func (b Builder) Len() int {
	return b.it.CountBytes()
}

// Into appends the bytes to dst.
func (b Builder) Into(dst []byte) []byte {
	return b.it.AppendTo(dst)
}

// String returns the bytes as a string.
func (b Builder) String() string {
	return string(b.Into(nil))
}

// View returns the range as one contiguous slice. A range that lives in a
// single block is returned as is; otherwise the fragments are copied into a
// fresh allocation from the arena.
func (b Builder) View() ([]byte, error) {
	var (
		first     []byte
		fragments int
	)
	for frag := range b.it.All() {
		if fragments == 0 {
			first = frag
		}
		fragments++
	}
	if fragments <= 1 {
		return first, nil
	}

	dst, err := b.arena.AllocateUnaligned(b.it.CountBytes())
	if err != nil {
		return nil, err
	}
	n := 0
	for frag := range b.it.All() {
		n += copy(dst[n:], frag)
	}
	return dst, nil
}
