// Package formdata decodes streaming multipart/form-data request bodies.
//
// The decoder consumes the body as an arbitrarily-chunked sequence of byte
// spans; chunk boundaries need not align with part boundaries. Each part's
// payload is streamed straight into a sink issued by the allocator, never
// buffered whole in memory.
package formdata

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/ansmelkov/filedrop/applications/server/domain"
	"github.com/ansmelkov/filedrop/applications/server/interfaces"
	"github.com/ansmelkov/filedrop/applications/server/tasks"
)

const defaultMaxHeaderBytes = 16 * 1024

type state int

const (
	// scanning for the first boundary; bytes before it are preamble
	statePreamble state = iota
	// a non-terminal or terminal suffix decision is pending right after a boundary
	stateAfterDelim
	// consuming the three-line header block of a new part
	stateHeader
	// forwarding body bytes of the active part
	stateBody
	// a terminal boundary was seen; remaining input is ignored
	stateTerminal
	// Close or Abort was called
	stateClosed
)

var headerEnd = []byte("\r\n\r\n")

// Decoder is the multipart state machine. One decoder serves exactly one
// request body and is not reentrant: chunk N+1 must not be handed over
// before Write for chunk N returned.
type Decoder struct {
	dashDelim []byte // "--" + boundary, valid only at the very start of the body
	marker    []byte // "\r\n--" + boundary
	alloc     interfaces.SinkAllocator
	logger    log.Logger

	maxHeaderBytes int

	runner  tasks.Runner
	state   state
	atStart bool
	// pending carries withheld bytes across Write calls: a chunk tail that
	// could begin a boundary marker, or an incomplete header block.
	pending []byte
	parts   []domain.Part
	sinks   []interfaces.Sink
	failed  error
}

func NewDecoder(boundary string, alloc interfaces.SinkAllocator, logger log.Logger) (*Decoder, error) {
	if boundary == "" {
		return nil, errors.New("empty multipart boundary")
	}

	return &Decoder{
		dashDelim:      []byte("--" + boundary),
		marker:         []byte("\r\n--" + boundary),
		alloc:          alloc,
		logger:         logger,
		maxHeaderBytes: defaultMaxHeaderBytes,
		atStart:        true,
	}, nil
}

// Write consumes one chunk of the request body. It returns only after every
// write task identified in the chunk has been accepted by its sink, so a
// slow sink delays delivery of the next chunk. The chunk buffer may be
// reused by the caller once Write returns.
func (d *Decoder) Write(ctx context.Context, chunk []byte) error {
	switch {
	case d.state == stateClosed:
		return ErrDecoderClosed
	case d.failed != nil:
		return d.failed
	case d.state == stateTerminal:
		return nil
	}

	var work []byte
	if len(d.pending) > 0 {
		work = make([]byte, 0, len(d.pending)+len(chunk))
		work = append(work, d.pending...)
		work = append(work, chunk...)
	} else {
		work = chunk
	}
	d.pending = d.pending[:0]

	batch, err := d.scan(ctx, work)
	if err != nil {
		d.failed = err
		return err
	}

	if err := d.runner.Sequential(ctx, batch); err != nil {
		d.failed = fmt.Errorf("can't write part body: %w", err)
		return d.failed
	}

	return nil
}

// scan runs the per-chunk algorithm over work and collects the chunk's
// write tasks. Spans handed to tasks alias work and are consumed before
// Write returns.
func (d *Decoder) scan(ctx context.Context, work []byte) ([]tasks.Task, error) {
	var batch []tasks.Task

	cur := 0
	for {
		rest := work[cur:]

		switch d.state {
		case statePreamble:
			if d.atStart {
				if len(rest) < len(d.dashDelim) {
					if bytes.HasPrefix(d.dashDelim, rest) {
						d.hold(rest)
						return batch, nil
					}
					d.atStart = false
				} else if bytes.HasPrefix(rest, d.dashDelim) {
					cur += len(d.dashDelim)
					d.atStart = false
					d.state = stateAfterDelim
					continue
				} else {
					d.atStart = false
				}
			}

			i := bytes.Index(rest, d.marker)
			if i < 0 {
				// preamble is discarded; keep only a tail that could
				// begin a marker straddling into the next chunk
				keep := markerPrefixLen(rest, d.marker)
				d.hold(rest[len(rest)-keep:])
				return batch, nil
			}
			cur += i + len(d.marker)
			d.state = stateAfterDelim

		case stateAfterDelim:
			if len(rest) < 2 {
				d.hold(rest)
				return batch, nil
			}
			switch {
			case rest[0] == '-' && rest[1] == '-':
				d.state = stateTerminal
				return batch, nil
			case rest[0] == '\r' && rest[1] == '\n':
				cur += 2
				d.state = stateHeader
			default:
				return nil, &MalformedHeaderError{
					Line:   string(rest[:2]),
					Reason: "boundary followed by neither CRLF nor terminal marker",
				}
			}

		case stateHeader:
			j := bytes.Index(rest, headerEnd)
			if j < 0 {
				if len(rest) > d.maxHeaderBytes {
					return nil, &MalformedHeaderError{Reason: "header block too long"}
				}
				d.hold(rest)
				return batch, nil
			}

			if err := d.openPart(rest[:j]); err != nil {
				return nil, err
			}
			cur += j + len(headerEnd)
			d.state = stateBody

		case stateBody:
			i := bytes.Index(rest, d.marker)
			if i < 0 {
				keep := markerPrefixLen(rest, d.marker)
				if span := rest[:len(rest)-keep]; len(span) > 0 {
					batch = append(batch, d.writeTask(ctx, span))
				}
				d.hold(rest[len(rest)-keep:])
				return batch, nil
			}
			if span := rest[:i]; len(span) > 0 {
				batch = append(batch, d.writeTask(ctx, span))
			}
			cur += i + len(d.marker)
			d.state = stateAfterDelim

		case stateTerminal:
			return batch, nil
		}
	}
}

// openPart parses a header block and allocates the new active part's sink.
func (d *Decoder) openPart(block []byte) error {
	h, err := parsePartHeader(block)
	if err != nil {
		return err
	}

	sink, err := d.alloc.Create()
	if err != nil {
		return fmt.Errorf("can't allocate part sink: %w", err)
	}

	d.sinks = append(d.sinks, sink)
	d.parts = append(d.parts, domain.Part{
		Filename:    h.filename,
		ContentType: h.contentType,
		Path:        sink.Name(),
	})

	level.Debug(d.logger).Log("msg", "part opened",
		"filename", h.filename,
		"content_type", h.contentType,
		"path", sink.Name(),
	)

	return nil
}

// writeTask forwards span to the currently active part's sink.
func (d *Decoder) writeTask(ctx context.Context, span []byte) tasks.Task {
	sink := d.sinks[len(d.sinks)-1]
	idx := len(d.parts) - 1

	return func(done func(error)) {
		n, err := sink.Write(ctx, span)
		if err == nil {
			d.parts[idx].Size += int64(n)
		}
		done(err)
	}
}

// hold retains b for the next Write call. b may alias the caller's chunk,
// so it is copied.
func (d *Decoder) hold(b []byte) {
	d.pending = append(d.pending[:0], b...)
}

// Close signals end-of-input. Every open sink is closed concurrently and
// the decode completes only once all closes confirm. On success the decoded
// parts are returned in wire order; on failure the caller must treat every
// part as unreliable and call Abort to release the backing files.
func (d *Decoder) Close(ctx context.Context) ([]domain.Part, error) {
	if d.state == stateClosed {
		return nil, ErrDecoderClosed
	}

	// trailing withheld bytes at end-of-input are body content
	if d.failed == nil && d.state == stateBody && len(d.pending) > 0 {
		sink := d.sinks[len(d.sinks)-1]
		n, err := sink.Write(ctx, d.pending)
		if err != nil {
			d.failed = fmt.Errorf("can't flush part body: %w", err)
		} else {
			d.parts[len(d.parts)-1].Size += int64(n)
		}
	}

	batch := make([]tasks.Task, 0, len(d.sinks))
	for _, sink := range d.sinks {
		sink := sink
		batch = append(batch, func(done func(error)) {
			done(sink.Close(ctx))
		})
	}

	cerr := d.runner.Concurrent(ctx, batch)
	d.state = stateClosed

	if d.failed != nil {
		return nil, d.failed
	}
	if cerr != nil {
		return nil, fmt.Errorf("can't close part sinks: %w", cerr)
	}

	d.sinks = nil

	var total int64
	for _, p := range d.parts {
		total += p.Size
	}
	level.Debug(d.logger).Log("msg", "decode complete",
		"parts", len(d.parts),
		"total", humanize.Bytes(uint64(total)),
	)

	return d.parts, nil
}

// Abort force-closes every open sink and removes its backing file. Safe to
// call after a failed Write or instead of Close when the upstream byte
// source died mid-decode. Close errors are swallowed; removal is what
// matters here.
func (d *Decoder) Abort() error {
	d.state = stateClosed

	var first error
	for _, sink := range d.sinks {
		_ = sink.Close(context.Background())
		if err := d.alloc.Remove(sink.Name()); err != nil && first == nil {
			first = err
		}
	}
	d.sinks = nil

	return first
}

// markerPrefixLen returns the length of the longest tail of b that is a
// proper prefix of marker, i.e. the bytes that could still turn out to be
// the start of a boundary continued in the next chunk.
func markerPrefixLen(b, marker []byte) int {
	max := len(marker) - 1
	if max > len(b) {
		max = len(b)
	}
	for l := max; l > 0; l-- {
		if bytes.HasPrefix(marker, b[len(b)-l:]) {
			return l
		}
	}
	return 0
}
