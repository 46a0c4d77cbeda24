package attachment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"tenantsync/internal/api"
)

// ErrUnavailable is returned for an attachment that has permanently failed.
// No further network fetches happen for it during this session.
var ErrUnavailable = errors.New("attachment unavailable")

// Downloader is the one backend operation the cache needs.
type Downloader interface {
	DownloadAttachment(ctx context.Context, attachmentID int64) ([]byte, error)
}

type inflight struct {
	done chan struct{}
	path string
	err  error
}

// Cache lazily fetches attachment binaries and memoizes the outcome per id.
//
// State machine per attachment: unrequested → loading → resolved | failed.
// "failed" is terminal: every fetch error, not just NotFound, marks the id
// permanently failed so a broken resource is never hammered. Concurrent
// Resolve calls for the same id share one in-flight fetch. Resolved blobs
// live as files under dir and are owned by the cache; ReleaseAll removes
// them on teardown.
type Cache struct {
	mu         sync.Mutex
	downloader Downloader
	dir        string
	resolved   map[int64]string
	failed     map[int64]struct{}
	loading    map[int64]*inflight
}

func NewCache(downloader Downloader, dir string) *Cache {
	return &Cache{
		downloader: downloader,
		dir:        dir,
		resolved:   make(map[int64]string),
		failed:     make(map[int64]struct{}),
		loading:    make(map[int64]*inflight),
	}
}

// Resolve returns a local file path for the attachment's binary content.
// Repeated calls after resolution are side-effect-free; a permanently failed
// id returns ErrUnavailable without any network call.
func (c *Cache) Resolve(ctx context.Context, id int64) (string, error) {
	c.mu.Lock()
	if path, ok := c.resolved[id]; ok {
		c.mu.Unlock()
		return path, nil
	}
	if _, ok := c.failed[id]; ok {
		c.mu.Unlock()
		return "", ErrUnavailable
	}
	if f, ok := c.loading[id]; ok {
		c.mu.Unlock()
		return c.await(ctx, f)
	}

	f := &inflight{done: make(chan struct{})}
	c.loading[id] = f
	c.mu.Unlock()

	go c.fetch(id, f)
	return c.await(ctx, f)
}

func (c *Cache) await(ctx context.Context, f *inflight) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-f.done:
		return f.path, f.err
	}
}

func (c *Cache) fetch(id int64, f *inflight) {
	// The fetch itself is not bound to any caller's context; whichever
	// caller started it may be gone before the others.
	data, err := c.downloader.DownloadAttachment(context.Background(), id)
	if err == nil && len(data) == 0 {
		err = &api.Error{Kind: api.KindNotFound, Message: "empty attachment body"}
	}

	var path string
	if err == nil {
		path, err = c.writeBlob(id, data)
	}

	c.mu.Lock()
	delete(c.loading, id)
	if err != nil {
		// All failures are terminal for the session, NotFound and otherwise.
		c.failed[id] = struct{}{}
		f.err = ErrUnavailable
		slog.Debug("attachment fetch failed", "id", id, "error", err)
	} else {
		c.resolved[id] = path
		f.path = path
	}
	c.mu.Unlock()
	close(f.done)
}

func (c *Cache) writeBlob(id int64, data []byte) (string, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	path := filepath.Join(c.dir, fmt.Sprintf("att_%d.bin", id))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return path, nil
}

// ReleaseAll removes every resolved blob file and resets the cache. Must be
// called when the owning view goes away so blob files don't accumulate
// across the session.
func (c *Cache) ReleaseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, path := range c.resolved {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("release blob failed", "id", id, "error", err)
		}
	}
	c.resolved = make(map[int64]string)
	c.failed = make(map[int64]struct{})
}

// Sweep deletes blob files in the cache directory that no current entry
// owns — leftovers from a previous run. Returns the number removed.
func (c *Cache) Sweep() (int, error) {
	c.mu.Lock()
	owned := make(map[string]struct{}, len(c.resolved))
	for _, path := range c.resolved {
		owned[filepath.Base(path)] = struct{}{}
	}
	c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read blob dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := owned[entry.Name()]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
