package attachment

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantsync/internal/api"
)

// fakeDownloader counts fetches and can hold them open to exercise
// coalescing.
type fakeDownloader struct {
	data    map[int64][]byte
	err     error
	calls   atomic.Int64
	release chan struct{} // when non-nil, fetches block until closed
}

func (f *fakeDownloader) DownloadAttachment(ctx context.Context, id int64) ([]byte, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.data[id], nil
}

func TestResolveIdempotent(t *testing.T) {
	dl := &fakeDownloader{data: map[int64][]byte{7: []byte("pdf-bytes")}}
	c := NewCache(dl, t.TempDir())

	path1, err := c.Resolve(context.Background(), 7)
	require.NoError(t, err)
	path2, err := c.Resolve(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, path1, path2)
	assert.EqualValues(t, 1, dl.calls.Load(), "second resolve must not refetch")

	content, err := os.ReadFile(path1)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(content))
}

func TestResolveNotFoundPermanentlyFailed(t *testing.T) {
	dl := &fakeDownloader{err: &api.Error{Kind: api.KindNotFound, Status: 404, Message: "attachment not found"}}
	c := NewCache(dl, t.TempDir())

	_, err := c.Resolve(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = c.Resolve(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.EqualValues(t, 1, dl.calls.Load(), "failed id must never be refetched")
}

func TestResolveEmptyBodyIsFailure(t *testing.T) {
	dl := &fakeDownloader{data: map[int64][]byte{}}
	c := NewCache(dl, t.TempDir())

	_, err := c.Resolve(context.Background(), 9)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveCoalescesConcurrentCalls(t *testing.T) {
	dl := &fakeDownloader{
		data:    map[int64][]byte{3: []byte("img")},
		release: make(chan struct{}),
	}
	c := NewCache(dl, t.TempDir())

	const callers = 8
	paths := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path, err := c.Resolve(context.Background(), 3)
			assert.NoError(t, err)
			paths[i] = path
		}(i)
	}

	close(dl.release)
	wg.Wait()

	assert.EqualValues(t, 1, dl.calls.Load(), "concurrent resolves must share one fetch")
	for i := 1; i < callers; i++ {
		assert.Equal(t, paths[0], paths[i])
	}
}

func TestReleaseAllRemovesBlobs(t *testing.T) {
	dl := &fakeDownloader{data: map[int64][]byte{1: []byte("a"), 2: []byte("b")}}
	c := NewCache(dl, t.TempDir())

	path1, err := c.Resolve(context.Background(), 1)
	require.NoError(t, err)
	path2, err := c.Resolve(context.Background(), 2)
	require.NoError(t, err)

	c.ReleaseAll()

	_, err = os.Stat(path1)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path2)
	assert.True(t, os.IsNotExist(err))
}

func TestSweepRemovesOrphans(t *testing.T) {
	dir := t.TempDir()
	dl := &fakeDownloader{data: map[int64][]byte{1: []byte("kept")}}
	c := NewCache(dl, dir)

	owned, err := c.Resolve(context.Background(), 1)
	require.NoError(t, err)

	orphan := filepath.Join(dir, "att_999.bin")
	require.NoError(t, os.WriteFile(orphan, []byte("stale"), 0644))

	removed, err := c.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(owned)
	assert.NoError(t, err, "owned blob must survive the sweep")
	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
}
