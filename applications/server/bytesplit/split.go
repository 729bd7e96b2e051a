// Package bytesplit cuts a byte buffer into zero-copy sub-ranges around a
// separator sequence.
package bytesplit

import "bytes"

// Splitter lazily yields the sub-slices of a buffer between consecutive
// occurrences of a separator, starting from a given offset. The yielded
// slices alias the original buffer; no bytes are copied. A Splitter is
// finite and non-restartable.
type Splitter struct {
	buf  []byte
	sep  []byte
	pos  int
	done bool
}

func New(buf, sep []byte, start int) *Splitter {
	if start > len(buf) {
		start = len(buf)
	}
	return &Splitter{buf: buf, sep: sep, pos: start}
}

// Next returns the next sub-range and true, or nil and false once the
// buffer is exhausted. The final sub-range runs from the last separator
// to the buffer end.
func (s *Splitter) Next() ([]byte, bool) {
	if s.done {
		return nil, false
	}

	i := bytes.Index(s.buf[s.pos:], s.sep)
	if i < 0 {
		s.done = true
		return s.buf[s.pos:], true
	}

	out := s.buf[s.pos : s.pos+i]
	s.pos += i + len(s.sep)

	return out, true
}

// Rest returns the unconsumed tail of the buffer without advancing.
func (s *Splitter) Rest() []byte {
	if s.done {
		return nil
	}
	return s.buf[s.pos:]
}

// Offset reports the current scan position within the buffer.
func (s *Splitter) Offset() int {
	return s.pos
}
