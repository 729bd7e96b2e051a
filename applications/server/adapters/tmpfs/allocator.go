// Package tmpfs issues uniquely named write sinks inside a per-instance
// temporary directory.
package tmpfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/ansmelkov/filedrop/applications/server/interfaces"
)

// Allocator owns a freshly created directory under the system temp root and
// opens append-only files with generated unique names inside it. Uniqueness
// is scoped to the instance; there is no shared process-wide state, so tests
// and concurrent servers can each hold their own allocator.
type Allocator struct {
	dir     string
	nameGen func() string
	logger  log.Logger
}

// New creates the allocator's directory under os.TempDir. Creation failure
// surfaces as-is; there is no retry.
func New(prefix string, logger log.Logger) (*Allocator, error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, fmt.Errorf("can't create temp directory: %w", err)
	}

	return &Allocator{
		dir:     dir,
		nameGen: uuid.NewString,
		logger:  logger,
	}, nil
}

// Dir returns the allocator's directory path.
func (a *Allocator) Dir() string {
	return a.dir
}

// Create opens a new append-only sink at a freshly generated name. The
// caller owns the sink and must close it. O_EXCL guards against the
// generator ever repeating a name.
func (a *Allocator) Create() (interfaces.Sink, error) {
	name := filepath.Join(a.dir, a.nameGen())

	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("can't create temp file: %w", err)
	}

	level.Debug(a.logger).Log("msg", "temp sink created", "path", name)

	return &fileSink{f: f}, nil
}

// Remove deletes the backing file of a previously created sink.
func (a *Allocator) Remove(name string) error {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("can't remove temp file: %w", err)
	}
	return nil
}

// Cleanup removes the allocator's directory and everything in it.
func (a *Allocator) Cleanup() error {
	return os.RemoveAll(a.dir)
}

// fileSink adapts an *os.File to the context-aware Sink contract. A write
// observes cancellation before touching the file; the file write itself is
// the backpressure point.
type fileSink struct {
	f *os.File
}

func (s *fileSink) Write(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.f.Write(p)
}

func (s *fileSink) Close(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

func (s *fileSink) Name() string {
	return s.f.Name()
}
