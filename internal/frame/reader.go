package frame

import (
	"errors"
	"fmt"
	"io"
)

// StreamReader accumulates bytes read from an io.Reader and yields complete
// frames one at a time, matching spec.md §4.8: the listener's read loop
// feeds bytes in, the codec extracts frames, anything incomplete stays
// buffered for the next read.
type StreamReader struct {
	r   io.Reader
	buf []byte
	len int
}

// NewStreamReader wraps r with an initial buffer of the given capacity.
func NewStreamReader(r io.Reader, initialCap int) *StreamReader {
	return &StreamReader{
		r:   r,
		buf: make([]byte, initialCap),
	}
}

// Next blocks until a full frame is available, reading from the underlying
// io.Reader as needed, and returns it. The returned Frame's Payload aliases
// the StreamReader's internal buffer and is only valid until the next call
// to Next.
func (s *StreamReader) Next() (Frame, error) {
	for {
		f, consumed, err := Decode(s.buf[:s.len])
		if err == nil {
			rest := s.len - consumed
			if rest > 0 {
				// Move the leftover bytes into a fresh buffer so they do
				// not overwrite the payload being returned.
				next := make([]byte, len(s.buf))
				copy(next, s.buf[consumed:s.len])
				s.buf = next
			}
			s.len = rest
			return f, nil
		}
		if !errors.Is(err, ErrIncomplete) {
			return Frame{}, err
		}

		if err := s.fill(); err != nil {
			return Frame{}, err
		}
	}
}

// fill reads at least one more chunk of bytes from the underlying reader,
// growing the buffer if it is full.
func (s *StreamReader) fill() error {
	if s.len == len(s.buf) {
		grown := make([]byte, len(s.buf)*2)
		copy(grown, s.buf[:s.len])
		s.buf = grown
	}

	n, err := s.r.Read(s.buf[s.len:])
	if n > 0 {
		s.len += n
	}
	if err != nil {
		if n > 0 && err == io.EOF {
			// Bytes were delivered alongside EOF; let the next Decode
			// attempt decide whether they form a complete frame.
			return nil
		}
		return fmt.Errorf("frame: reading stream: %w", err)
	}
	return nil
}
