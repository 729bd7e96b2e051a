package formdata

import (
	"errors"
	"fmt"
)

// ErrDecoderClosed is returned by Write after the decoder has been closed
// or aborted. A decoder serves exactly one request body.
var ErrDecoderClosed = errors.New("decoder is closed")

// MalformedHeaderError reports a part header block that does not match the
// expected disposition/content-type shape.
type MalformedHeaderError struct {
	Line   string
	Reason string
}

func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("malformed part header %q: %s", e.Line, e.Reason)
}
