package bump

import "github.com/go-kit/log"

// Option configures an Arena.
type Option func(*Arena)

// WithBuffer makes the arena use buf as its root block instead of allocating one.
// The buffer is never handed to the Source; the capacity passed to New is ignored.
func WithBuffer(buf []byte) Option {
	return func(a *Arena) {
		if buf != nil {
			a.rootBuf = buf
		}
	}
}

// WithSource sets the Source grown blocks are obtained from. Defaults to HeapSource.
func WithSource(s Source) Option {
	return func(a *Arena) {
		if s != nil {
			a.source = s
		}
	}
}

// WithLogger sets the logger used to report block growth and release.
func WithLogger(l log.Logger) Option {
	return func(a *Arena) {
		if l != nil {
			a.logger = l
		}
	}
}
