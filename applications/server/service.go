package server

import (
	"context"
	"io"

	"github.com/ansmelkov/filedrop/applications/server/domain"
)

type FileService interface {
	// Upload decodes a multipart/form-data body and publishes every
	// decoded part into the file storage. contentType is the raw
	// Content-Type header value carrying the boundary parameter.
	Upload(ctx context.Context, contentType string, body io.Reader) ([]domain.Part, error)
	GetFile(ctx context.Context, name string) (domain.File, error)
	ListFiles(ctx context.Context) ([]domain.FileMeta, error)
}
