package bump

import (
	"math"
	"unsafe"

	"github.com/pkg/errors"
)

// The typed helpers below place values in memory the garbage collector does
// not scan. T must not contain Go pointers (no pointers, slices, strings,
// maps, interfaces, channels or funcs).

// Alloc returns a pointer to a zeroed T allocated from a.
func Alloc[T any](a Allocator) (*T, error) {
	var zero T
	size, align := int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero))
	if size == 0 {
		return new(T), nil
	}
	b, err := a.Allocate(size, align)
	if err != nil {
		return nil, err
	}
	clear(b)
	return (*T)(unsafe.Pointer(unsafe.SliceData(b))), nil
}

// AllocUninitialized is Alloc without zeroing. The contents of *T are undefined.
func AllocUninitialized[T any](a Allocator) (*T, error) {
	var zero T
	size, align := int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero))
	if size == 0 {
		return new(T), nil
	}
	b, err := a.Allocate(size, align)
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(unsafe.SliceData(b))), nil
}

// AllocSliceZeroed allocates a zeroed slice of n elements of type T from a.
// Returns nil, nil if n == 0.
func AllocSliceZeroed[T any](a Allocator, n int) ([]T, error) {
	b, err := sliceBytes[T](a, n)
	if err != nil || b == nil {
		return nil, err
	}
	clear(b)
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n), nil
}

// AllocSlice allocates a slice of n elements of type T without zeroing it.
// Returns nil, nil if n == 0.
func AllocSlice[T any](a Allocator, n int) ([]T, error) {
	b, err := sliceBytes[T](a, n)
	if err != nil || b == nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n), nil
}

func sliceBytes[T any](a Allocator, n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrNegativeSize, "make slice of %d elements", n)
	}
	var zero T
	size, align := int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero))
	if n == 0 || size == 0 {
		return nil, nil
	}
	if n > math.MaxInt/size {
		return nil, errors.Wrapf(ErrTooLarge, "make slice of %d elements of %d bytes", n, size)
	}
	return a.Allocate(n*size, align)
}

// Free hands p, obtained from Alloc on the same allocator, back to a.
func Free[T any](a Allocator, p *T) error {
	var zero T
	size, align := int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero))
	if p == nil || size == 0 {
		return nil
	}
	return a.Deallocate(unsafe.Slice((*byte)(unsafe.Pointer(p)), size), size, align)
}

// FreeSlice hands s, obtained from AllocSlice on the same allocator, back to a.
func FreeSlice[T any](a Allocator, s []T) error {
	var zero T
	size, align := int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero))
	if len(s) == 0 || size == 0 {
		return nil
	}
	n := len(s) * size
	return a.Deallocate(unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), n), n, align)
}
