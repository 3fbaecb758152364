// Package store persists dataset snapshots as files in a flat
// directory, one snapshot per dataset, with a bounded cache of
// decoded datasets in front of the disk.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/driftwatch/driftwatch/internal/compression"
	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/dataset"
)

// SnapshotExt is the file extension for dataset snapshots
const SnapshotExt = ".snap"

// ErrSnapshotNotFound is returned when no snapshot exists for a dataset
var ErrSnapshotNotFound = errors.New("snapshot not found")

// cachedDataset tracks a decoded dataset and its last access time
type cachedDataset struct {
	ds       *dataset.Dataset
	lastUsed time.Time
}

// Store reads and writes dataset snapshots under a data directory.
// Writes are atomic: the snapshot is written to a temp file, synced,
// then renamed over the final path.
type Store struct {
	dir  string
	algo compression.Algorithm

	mu        sync.Mutex
	cache     map[string]*cachedDataset
	maxCached int
}

// New creates a snapshot store rooted at cfg.DataDir
func New(cfg config.StoreConfig) (*Store, error) {
	algo, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Store{
		dir:       cfg.DataDir,
		algo:      algo,
		cache:     make(map[string]*cachedDataset),
		maxCached: cfg.MaxCached,
	}, nil
}

// snapshotPath builds the snapshot file path for a dataset. Names
// must not escape the data directory.
func (s *Store) snapshotPath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid dataset name: %q", name)
	}
	return filepath.Join(s.dir, name+SnapshotExt), nil
}

// Save encodes a dataset and writes its snapshot atomically
func (s *Store) Save(ds *dataset.Dataset) error {
	path, err := s.snapshotPath(ds.Name())
	if err != nil {
		return err
	}

	data, err := dataset.EncodeSnapshot(ds, s.algo)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		// Drop any cached copy so the next load re-reads disk
		s.dropCached(ds.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	s.setCached(ds.Name(), ds)

	return nil
}

// Load returns the dataset persisted under name. The result is shared
// with the cache: callers that modify it must Save it back.
func (s *Store) Load(name string) (*dataset.Dataset, error) {
	path, err := s.snapshotPath(name)
	if err != nil {
		return nil, err
	}

	if ds, ok := s.getCached(name); ok {
		return ds, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("dataset %s: %w", name, ErrSnapshotNotFound)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	ds, err := dataset.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", name, err)
	}

	s.setCached(name, ds)

	return ds, nil
}

// Delete removes the snapshot for a dataset
func (s *Store) Delete(name string) error {
	path, err := s.snapshotPath(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("dataset %s: %w", name, ErrSnapshotNotFound)
		}
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	s.dropCached(name)

	return nil
}

// List returns the names of all persisted datasets in sorted order
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, SnapshotExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, SnapshotExt))
	}

	sort.Strings(names)

	return names, nil
}

func (s *Store) getCached(name string) (*dataset.Dataset, bool) {
	if s.maxCached <= 0 {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.cache[name]
	if !ok {
		return nil, false
	}
	entry.lastUsed = time.Now()

	return entry.ds, true
}

func (s *Store) setCached(name string, ds *dataset.Dataset) {
	if s.maxCached <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cache[name]; !ok && len(s.cache) >= s.maxCached {
		s.evictOldest()
	}

	s.cache[name] = &cachedDataset{ds: ds, lastUsed: time.Now()}
}

func (s *Store) dropCached(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cache, name)
}

// evictOldest removes the least recently used entry. Caller holds mu.
func (s *Store) evictOldest() {
	var (
		oldestName string
		oldestTime time.Time
	)
	for name, entry := range s.cache {
		if oldestName == "" || entry.lastUsed.Before(oldestTime) {
			oldestName = name
			oldestTime = entry.lastUsed
		}
	}
	if oldestName != "" {
		delete(s.cache, oldestName)
	}
}

// writeFileAtomic writes data to a temp file, syncs it, and renames it
// over the final path
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"

	file, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}
