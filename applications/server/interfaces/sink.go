package interfaces

import "context"

// Sink is a destination that accepts bytes incrementally. Write may block
// until the destination is ready for more data; that blocking is the
// backpressure signal callers must respect.
type Sink interface {
	Write(ctx context.Context, p []byte) (int, error)
	Close(ctx context.Context) error
	// Name returns the path of the backing file, or "" if there is none.
	Name() string
}

// SinkAllocator issues fresh write sinks. The caller owns each sink's
// lifecycle and must close it.
type SinkAllocator interface {
	Create() (Sink, error)
	// Remove deletes the backing file of a previously created sink.
	Remove(name string) error
}
