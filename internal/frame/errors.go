package frame

import "errors"

// Decode/encode error taxonomy per spec.md §4.1.
var (
	ErrIncomplete     = errors.New("frame: incomplete")
	ErrBadMagic       = errors.New("frame: bad magic")
	ErrBadLength      = errors.New("frame: bad length")
	ErrMalformed      = errors.New("frame: malformed payload")
	ErrBufferTooSmall = errors.New("frame: buffer too small")
)
