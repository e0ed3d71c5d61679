// Package store provides the on-disk candle cache.
//
// Each fetched (symbol, interval, range) is stored as a separate JSON file
// so repeated backtests over the same window skip the exchange entirely.
// Writes use atomic file replacement (write to .tmp, then rename) to prevent
// corruption from partial writes or crashes mid-save.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vivalaakam/new-york-calculate/pkg/types"
)

// Cache persists candle slices to JSON files in a designated directory.
// All operations are mutex-protected to prevent concurrent file corruption.
type Cache struct {
	dir string     // directory containing candles_*.json files
	mu  sync.Mutex // serializes all file operations
}

// Open creates a cache backed by the given directory.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Save atomically persists the candles for one fetch window. It writes to a
// .tmp file first, then renames over the target so the file is never left
// in a partial state.
func (c *Cache) Save(symbol types.Symbol, interval string, start, end types.Timestamp, bars []types.Bar) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("marshal candles: %w", err)
	}

	path := c.path(symbol, interval, start, end)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write candles: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores the candles for one fetch window. The second return is
// false when the window was never cached.
func (c *Cache) Load(symbol types.Symbol, interval string, start, end types.Timestamp) ([]types.Bar, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path(symbol, interval, start, end))
	if err != nil {
		return nil, false
	}

	var bars []types.Bar
	if err := json.Unmarshal(data, &bars); err != nil {
		// A corrupt cache entry is treated as a miss; the loader refetches
		// and overwrites it.
		return nil, false
	}
	return bars, true
}

func (c *Cache) path(symbol types.Symbol, interval string, start, end types.Timestamp) string {
	name := fmt.Sprintf("candles_%s_%s_%d_%d.json", symbol, interval, start, end)
	return filepath.Join(c.dir, name)
}
