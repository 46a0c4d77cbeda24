package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tenantsync/internal/chat"
)

// Snapshot is the persisted view of the chat read model. It is opportunistic
// session state, never authoritative: the first poll cycle replaces it, and
// losing it entirely is harmless.
type Snapshot struct {
	SavedAt      time.Time   `json:"savedAt"`
	SelectedChat int64       `json:"selectedChat,omitempty"`
	Chats        []chat.Chat `json:"chats"`
}

// Cache persists snapshots to a single JSON file.
type Cache struct {
	mu   sync.Mutex
	path string
}

func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Load reads the last saved snapshot. A missing or unreadable file is not an
// error — the cache just starts cold.
func (c *Cache) Load() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("session cache read failed", "path", c.path, "error", err)
		}
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("session cache corrupt, starting cold", "path", c.path, "error", err)
		return nil
	}
	return &snap
}

// Save persists the snapshot (atomic tmp+rename write).
func (c *Cache) Save(snap *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	snap.SavedAt = time.Now()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session cache: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write session cache: %w", err)
	}
	return os.Rename(tmpPath, c.path)
}
