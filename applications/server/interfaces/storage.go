package interfaces

import (
	"context"

	"github.com/ansmelkov/filedrop/applications/server/domain"
)

// FileStorage keeps published files under their uploaded names.
type FileStorage interface {
	// Publish moves the file at srcPath into the storage under meta.Name.
	// Fails with ErrFileExists when the name is already taken.
	Publish(ctx context.Context, meta domain.FileMeta, srcPath string) error
	Open(ctx context.Context, name string) (domain.File, error)
	List(ctx context.Context) ([]domain.FileMeta, error)
	Delete(ctx context.Context, name string) error
}
