package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansmelkov/filedrop/applications/server/domain"
	"github.com/ansmelkov/filedrop/applications/server/interfaces"
)

func newTestStorage(t *testing.T) interfaces.FileStorage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "files"), log.NewNopLogger())
	require.NoError(t, err)
	return s
}

func stage(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staged")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPublishAndOpen(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	meta := domain.FileMeta{Name: "a.txt", ContentType: "text/plain", ContentLength: 5}
	require.NoError(t, s.Publish(ctx, meta, stage(t, "hello")))

	f, err := s.Open(ctx, "a.txt")
	require.NoError(t, err)
	defer f.Body.Close()

	assert.Equal(t, "a.txt", f.Meta.Name)
	assert.Equal(t, "text/plain", f.Meta.ContentType)
	assert.Equal(t, int64(5), f.Meta.ContentLength)

	data, err := io.ReadAll(f.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestPublishMovesSource(t *testing.T) {
	s := newTestStorage(t)
	src := stage(t, "content")

	err := s.Publish(context.Background(), domain.FileMeta{Name: "m.bin", ContentLength: 7}, src)
	require.NoError(t, err)

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err), "source must not remain after publish")
}

func TestPublishConflict(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	meta := domain.FileMeta{Name: "dup.txt", ContentType: "text/plain", ContentLength: 1}
	require.NoError(t, s.Publish(ctx, meta, stage(t, "x")))

	err := s.Publish(ctx, meta, stage(t, "y"))
	assert.ErrorIs(t, err, domain.ErrFileExists)
}

func TestOpenMissing(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.Open(context.Background(), "nope.txt")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestList(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Publish(ctx, domain.FileMeta{Name: "b.txt", ContentType: "text/plain", ContentLength: 2}, stage(t, "bb")))
	require.NoError(t, s.Publish(ctx, domain.FileMeta{Name: "a.txt", ContentType: "text/plain", ContentLength: 1}, stage(t, "a")))

	metas, err := s.List(ctx)
	require.NoError(t, err)

	require.Len(t, metas, 2)
	assert.Equal(t, "a.txt", metas[0].Name)
	assert.Equal(t, "b.txt", metas[1].Name)
	assert.Equal(t, int64(2), metas[1].ContentLength)
}

func TestDelete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Publish(ctx, domain.FileMeta{Name: "d.txt", ContentLength: 1}, stage(t, "z")))
	require.NoError(t, s.Delete(ctx, "d.txt"))

	_, err := s.Open(ctx, "d.txt")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	err = s.Delete(ctx, "d.txt")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestRejectsEscapingNames(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for _, name := range []string{"", "../evil", "a/b", ".", "..", "x" + metaSuffix} {
		err := s.Publish(ctx, domain.FileMeta{Name: name}, stage(t, "x"))
		assert.Error(t, err, "name %q must be rejected", name)
	}
}
