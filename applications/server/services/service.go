package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/ansmelkov/filedrop/applications/server"
	"github.com/ansmelkov/filedrop/applications/server/domain"
	"github.com/ansmelkov/filedrop/applications/server/formdata"
	"github.com/ansmelkov/filedrop/applications/server/interfaces"
)

const defaultChunkSizeInBytes = 32 * 1024 // 32 kB

// ErrUploadTooLarge is returned when a request body exceeds the configured
// upload size limit.
var ErrUploadTooLarge = errors.New("upload exceeds the size limit")

// ErrNotMultipart is returned when the request content type is not a
// multipart/form-data submission with a boundary.
var ErrNotMultipart = errors.New("content type is not multipart/form-data")

type service struct {
	storage        interfaces.FileStorage
	allocator      interfaces.SinkAllocator
	logger         log.Logger
	chunkSize      int
	maxUploadBytes int64
}

// NewService builds the file service. maxUploadBytes of zero disables the
// upload size limit. The allocator is shared by every upload served by this
// instance; each request gets its own decoder.
func NewService(storage interfaces.FileStorage, allocator interfaces.SinkAllocator, maxUploadBytes int64, logger log.Logger) server.FileService {
	return &service{
		storage:        storage,
		allocator:      allocator,
		logger:         logger,
		chunkSize:      defaultChunkSizeInBytes,
		maxUploadBytes: maxUploadBytes,
	}
}

func (s *service) Upload(ctx context.Context, contentType string, body io.Reader) ([]domain.Part, error) {
	boundary, err := extractBoundary(contentType)
	if err != nil {
		return nil, err
	}

	decoder, err := formdata.NewDecoder(boundary, s.allocator, s.logger)
	if err != nil {
		return nil, fmt.Errorf("can't create decoder: %w", err)
	}

	parts, err := s.decodeBody(ctx, decoder, body)
	if err != nil {
		if aerr := decoder.Abort(); aerr != nil {
			level.Error(s.logger).Log("msg", "can't release aborted upload", "err", aerr)
		}
		return nil, err
	}

	if err := s.publish(ctx, parts); err != nil {
		return nil, err
	}

	return parts, nil
}

// decodeBody pumps the request body into the decoder chunk by chunk. The
// decoder's Write only returns once the chunk's bytes were accepted by
// their sinks, so a slow disk holds back the read loop.
func (s *service) decodeBody(ctx context.Context, decoder *formdata.Decoder, body io.Reader) ([]domain.Part, error) {
	buf := make([]byte, s.chunkSize)

	var total int64
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			total += int64(n)
			if s.maxUploadBytes > 0 && total > s.maxUploadBytes {
				return nil, ErrUploadTooLarge
			}
			if werr := decoder.Write(ctx, buf[:n]); werr != nil {
				return nil, fmt.Errorf("can't decode upload: %w", werr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("can't read request body: %w", rerr)
		}
	}

	parts, err := decoder.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't finish decode: %w", err)
	}

	return parts, nil
}

// publish moves decoded parts into the storage. On the first failure the
// remaining temp files are released; already published parts stay.
func (s *service) publish(ctx context.Context, parts []domain.Part) error {
	for i, part := range parts {
		meta := domain.FileMeta{
			Name:          part.Filename,
			ContentType:   part.ContentType,
			ContentLength: part.Size,
		}

		if err := s.storage.Publish(ctx, meta, part.Path); err != nil {
			for _, left := range parts[i:] {
				if rerr := s.allocator.Remove(left.Path); rerr != nil {
					level.Error(s.logger).Log("msg", "can't remove temp file", "path", left.Path, "err", rerr)
				}
			}
			return fmt.Errorf("can't publish %q: %w", part.Filename, err)
		}
	}

	return nil
}

func (s *service) GetFile(ctx context.Context, name string) (domain.File, error) {
	file, err := s.storage.Open(ctx, name)
	if err != nil {
		return domain.File{}, fmt.Errorf("can't get file: %w", err)
	}

	return file, nil
}

func (s *service) ListFiles(ctx context.Context) ([]domain.FileMeta, error) {
	metas, err := s.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't list files: %w", err)
	}

	return metas, nil
}

func extractBoundary(contentType string) (string, error) {
	mediatype, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotMultipart, err)
	}
	if mediatype != "multipart/form-data" {
		return "", fmt.Errorf("%w: got %q", ErrNotMultipart, mediatype)
	}
	boundary, ok := params["boundary"]
	if !ok || boundary == "" {
		return "", fmt.Errorf("%w: missing boundary", ErrNotMultipart)
	}

	return boundary, nil
}
