// Package localfs stores published files on the local filesystem.
package localfs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/ansmelkov/filedrop/applications/server/domain"
	"github.com/ansmelkov/filedrop/applications/server/interfaces"
)

const metaSuffix = ".meta.json"

// fileStorage keeps each published file next to a small JSON sidecar with
// its recorded metadata.
type fileStorage struct {
	dir   string
	log   log.Logger
	mutex sync.RWMutex
}

func NewStorage(dir string, logger log.Logger) (interfaces.FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("can't create storage directory: %w", err)
	}

	return &fileStorage{
		dir: dir,
		log: logger,
	}, nil
}

type sidecar struct {
	ContentType   string `json:"content_type"`
	ContentLength int64  `json:"content_length"`
}

func (s *fileStorage) Publish(ctx context.Context, meta domain.FileMeta, srcPath string) error {
	name, err := safeName(meta.Name)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	dst := filepath.Join(s.dir, name)
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%q: %w", meta.Name, domain.ErrFileExists)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("can't stat destination: %w", err)
	}

	side, err := json.Marshal(sidecar{
		ContentType:   meta.ContentType,
		ContentLength: meta.ContentLength,
	})
	if err != nil {
		return fmt.Errorf("can't encode file meta: %w", err)
	}
	if err := os.WriteFile(dst+metaSuffix, side, 0o600); err != nil {
		return fmt.Errorf("can't write file meta: %w", err)
	}

	if err := os.Rename(srcPath, dst); err != nil {
		// rename fails across filesystems; fall back to a copy
		if err = copyFile(srcPath, dst); err != nil {
			_ = os.Remove(dst + metaSuffix)
			return fmt.Errorf("can't publish file: %w", err)
		}
		_ = os.Remove(srcPath)
	}

	level.Info(s.log).Log("msg", "file published",
		"name", meta.Name,
		"content_type", meta.ContentType,
		"size", humanize.Bytes(uint64(meta.ContentLength)),
	)

	return nil
}

func (s *fileStorage) Open(ctx context.Context, name string) (domain.File, error) {
	cleanName, err := safeName(name)
	if err != nil {
		return domain.File{}, err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	path := filepath.Join(s.dir, cleanName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.File{}, fmt.Errorf("%q: %w", name, domain.ErrFileNotFound)
		}
		return domain.File{}, fmt.Errorf("can't open file: %w", err)
	}

	meta, err := s.readMeta(path, cleanName)
	if err != nil {
		f.Close()
		return domain.File{}, err
	}

	return domain.File{Meta: meta, Body: f}, nil
}

func (s *fileStorage) List(ctx context.Context) ([]domain.FileMeta, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("can't read storage directory: %w", err)
	}

	metas := make([]domain.FileMeta, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), metaSuffix) {
			continue
		}
		meta, err := s.readMeta(filepath.Join(s.dir, e.Name()), e.Name())
		if err != nil {
			level.Error(s.log).Log("msg", "skipping unreadable file meta",
				"name", e.Name(),
				"err", err,
			)
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })

	return metas, nil
}

func (s *fileStorage) Delete(ctx context.Context, name string) error {
	cleanName, err := safeName(name)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	path := filepath.Join(s.dir, cleanName)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%q: %w", name, domain.ErrFileNotFound)
		}
		return fmt.Errorf("can't delete file: %w", err)
	}
	_ = os.Remove(path + metaSuffix)

	return nil
}

func (s *fileStorage) readMeta(path, name string) (domain.FileMeta, error) {
	meta := domain.FileMeta{Name: name}

	info, err := os.Stat(path)
	if err != nil {
		return meta, fmt.Errorf("can't stat file: %w", err)
	}
	meta.ContentLength = info.Size()

	raw, err := os.ReadFile(path + metaSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			// file predates its sidecar or the sidecar was lost
			return meta, nil
		}
		return meta, fmt.Errorf("can't read file meta: %w", err)
	}

	var side sidecar
	if err := json.Unmarshal(raw, &side); err != nil {
		return meta, fmt.Errorf("can't decode file meta: %w", err)
	}
	meta.ContentType = side.ContentType

	return meta, nil
}

// safeName rejects names that would escape the storage directory.
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty file name")
	}
	cleaned := filepath.Base(filepath.Clean(name))
	if cleaned != name || cleaned == "." || cleaned == ".." || strings.HasSuffix(name, metaSuffix) {
		return "", fmt.Errorf("unacceptable file name %q", name)
	}
	return cleaned, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}

	if _, err = out.ReadFrom(in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}

	return out.Close()
}
