package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/ports"
)

// FileCache stores one pretty-printed JSON file per URL, named by the SHA-1
// of the URL. Entries never expire.
type FileCache struct {
	dir string
}

var _ ports.ResultCache = (*FileCache)(nil)

// NewFileCache creates the directory if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		return nil, errors.New("cache directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

// Key returns the file name used for a URL.
func Key(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:]) + ".json"
}

// Load returns the cached record; a missing file is a miss, not an error.
func (c *FileCache) Load(url string) (domain.DealRecord, bool, error) {
	raw, err := os.ReadFile(filepath.Join(c.dir, Key(url)))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.DealRecord{}, false, nil
	}
	if err != nil {
		return domain.DealRecord{}, false, fmt.Errorf("read cache entry: %w", err)
	}

	var rec domain.DealRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.DealRecord{}, false, fmt.Errorf("decode cache entry %s: %w", Key(url), err)
	}
	return rec, true, nil
}

// Save writes through a temp file so readers never see a partial entry.
func (c *FileCache) Save(url string, record domain.DealRecord) error {
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp entry: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(c.dir, Key(url))); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}
