// Package swrcache is a file-backed stale-while-revalidate cache for
// slow-changing daemon answers the CLI prints, such as the server listing.
package swrcache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	DefaultFreshTTL = 30 * time.Second
	DefaultMaxStale = 10 * time.Minute
	refreshTimeout  = 15 * time.Second
)

// Freshness reports how GetOrFetch produced its value.
type Freshness int

const (
	Fetched Freshness = iota // fetched synchronously just now
	Fresh                    // served from cache within the fresh TTL
	Stale                    // served from cache while a refresh runs
)

// Cache stores JSON entries under dir. A zero-value or nil Cache, or one
// with an empty dir, always fetches.
type Cache struct {
	dir      string
	freshTTL time.Duration
	maxStale time.Duration
	now      func() time.Time

	refreshes sync.WaitGroup
}

// New returns a cache rooted at dir. Non-positive TTLs fall back to the
// defaults.
func New(dir string, freshTTL, maxStale time.Duration) *Cache {
	if freshTTL <= 0 {
		freshTTL = DefaultFreshTTL
	}
	if maxStale <= 0 {
		maxStale = DefaultMaxStale
	}
	return &Cache{dir: dir, freshTTL: freshTTL, maxStale: maxStale, now: time.Now}
}

// DefaultDir is the CLI cache directory under the OS user cache dir.
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "mcfleet")
}

// GetOrFetch returns the cached value for key while it is fresh. Between
// the fresh TTL and the stale limit the cached value is returned and a
// refresh runs in the background. Older or missing entries are fetched
// synchronously.
func GetOrFetch[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error)) (T, Freshness, error) {
	if c == nil || c.dir == "" {
		v, err := fetch(ctx)
		return v, Fetched, err
	}

	entry, ok := readEntry[T](c, key)
	if ok {
		age := entry.Age(c.now())
		switch {
		case age < 0:
		case age <= c.freshTTL:
			return entry.Data, Fresh, nil
		case age <= c.maxStale:
			c.revalidate(key, func(ctx context.Context) (any, error) { return fetch(ctx) })
			return entry.Data, Stale, nil
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, Fetched, err
	}
	_ = c.write(key, Entry[T]{Data: v, FetchedAt: c.now()})
	return v, Fetched, nil
}

// Wait blocks until background refreshes have finished. A short-lived
// process calls it before exiting so a stale hit still updates the entry.
func (c *Cache) Wait() {
	if c != nil {
		c.refreshes.Wait()
	}
}

// Invalidate removes one entry.
func (c *Cache) Invalidate(key string) error {
	if c == nil || c.dir == "" {
		return nil
	}
	err := os.Remove(c.pathForKey(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *Cache) revalidate(key string, fetch func(context.Context) (any, error)) {
	c.refreshes.Add(1)
	go func() {
		defer c.refreshes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		v, err := fetch(ctx)
		if err != nil {
			return
		}
		_ = c.write(key, Entry[any]{Data: v, FetchedAt: c.now()})
	}()
}

func readEntry[T any](c *Cache, key string) (Entry[T], bool) {
	var entry Entry[T]
	data, err := os.ReadFile(c.pathForKey(key))
	if err != nil {
		return entry, false
	}
	if err := json.Unmarshal(data, &entry); err != nil || entry.FetchedAt.IsZero() {
		return entry, false
	}
	return entry, true
}

// write replaces the entry atomically via a temp file and rename.
func (c *Cache) write(key string, entry any) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, sanitizeKey(key)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	return os.Rename(name, c.pathForKey(key))
}

func (c *Cache) pathForKey(key string) string {
	return filepath.Join(c.dir, sanitizeKey(key)+".json")
}

// sanitizeKey maps a key onto a safe file name.
func sanitizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "cache"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, key)
}
