/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package cache persists per-repository processing state keyed on commit
// SHA, so unchanged repositories can be skipped on subsequent runs. The
// whole store lives in a single pretty-printed JSON file; every mutation
// rewrites it atomically.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chainguard.dev/cookstyle-runner/metrics"
	"github.com/chainguard-dev/clog"
)

// DefaultMaxAge is how long a cache entry stays fresh when the caller
// does not specify a maximum age.
const DefaultMaxAge = 7 * 24 * time.Hour

// Entry records the most recent fully successful processing pass for one
// repository. Entries are only written whole; there are no partial updates.
type Entry struct {
	CommitSHA      string  `json:"commit_sha"`
	HadIssues      bool    `json:"had_issues"`
	Result         *string `json:"result"`
	ProcessingTime float64 `json:"processing_time"`
	Timestamp      string  `json:"timestamp"`
}

// store is the on-disk aggregate.
type store struct {
	Repositories map[string]Entry `json:"repositories"`
	LastUpdated  string           `json:"last_updated"`
}

// Cache is a SHA-keyed repository state cache backed by a JSON file. All
// methods are safe for concurrent use; the in-memory map and the on-disk
// file are guarded by one mutex for the full read-mutate-persist sequence.
type Cache struct {
	mu    sync.Mutex
	path  string
	store store
	stats Stats
}

// New loads the cache file at path, or starts fresh if it is absent or
// unreadable. A corrupt file is never fatal: it is logged and discarded.
func New(path string) *Cache {
	c := &Cache{
		path: path,
		store: store{
			Repositories: map[string]Entry{},
		},
		stats: Stats{StartTime: time.Now()},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			clog.Warnf("Unreadable cache file %s, starting fresh: %v", path, err)
		}
		return c
	}

	var st store
	if err := json.Unmarshal(data, &st); err != nil {
		clog.Warnf("Corrupt cache file %s, starting fresh: %v", path, err)
		return c
	}
	if st.Repositories == nil {
		st.Repositories = map[string]Entry{}
	}
	c.store = st
	return c
}

// UpToDate reports whether repoName was already processed at currentSHA
// within maxAge. A true result records a cache hit and credits the
// entry's own historical processing time to the time-saved counter.
// maxAge <= 0 falls back to DefaultMaxAge.
func (c *Cache) UpToDate(repoName, currentSHA string, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.store.Repositories[repoName]
	if !ok || entry.CommitSHA != currentSHA {
		return false
	}

	ts, err := time.Parse(time.RFC3339, entry.Timestamp)
	if err != nil || time.Since(ts) > maxAge {
		return false
	}

	c.stats.Hits++
	c.stats.TimeSaved += time.Duration(entry.ProcessingTime * float64(time.Second))
	metrics.CacheHits.Inc()
	return true
}

// Get returns the entry for repoName, if any.
func (c *Cache) Get(repoName string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.store.Repositories[repoName]
	return entry, ok
}

// Update records a fully successful processing pass and persists the
// store synchronously. A persistence failure is returned to the caller
// but leaves the in-memory entry in place, so the run can continue.
func (c *Cache) Update(repoName, commitSHA string, hadIssues bool, result string, processingTime float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res *string
	if result != "" {
		res = &result
	}
	c.store.Repositories[repoName] = Entry{
		CommitSHA:      commitSHA,
		HadIssues:      hadIssues,
		Result:         res,
		ProcessingTime: processingTime,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}

	c.stats.Updates++
	c.stats.Misses++
	metrics.CacheMisses.Inc()

	return c.persistLocked()
}

// ClearRepo removes the entry for repoName and persists immediately.
// Clearing an absent entry is a no-op (nothing is rewritten).
func (c *Cache) ClearRepo(repoName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.store.Repositories[repoName]; !ok {
		return nil
	}
	delete(c.store.Repositories, repoName)
	return c.persistLocked()
}

// ClearAll drops every entry and persists immediately.
func (c *Cache) ClearAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Repositories = map[string]Entry{}
	return c.persistLocked()
}

// Stats returns a snapshot of the process-local counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// persistLocked writes the whole store to disk atomically (temp file then
// rename). Callers must hold c.mu.
func (c *Cache) persistLocked() error {
	c.store.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(c.store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}
