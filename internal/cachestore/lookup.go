package cachestore

import (
	"sync"

	"github.com/sonroyaalmerol/indu/internal/cachelock"
	"github.com/sonroyaalmerol/indu/internal/corelog"
)

// Store is the in-memory cache index, backed by a JSON file and guarded by
// a cachelock.Lock. Not safe for concurrent use by more than one scanner at
// a time (mirroring the single-threaded scan model); the mutex exists to
// protect bookkeeping from the rare concurrent access, not to enable it.
type Store struct {
	mu   sync.Mutex
	log  *corelog.Logger
	path string
	lock *cachelock.Lock
	idx  *index
}

// New creates a Store that logs through log (nil is fine).
func New(log *corelog.Logger) *Store {
	return &Store{log: log, lock: cachelock.New(log), idx: newIndex()}
}

// Init points the store at a cache file path without loading it.
func (s *Store) Init(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	s.lock.Init(path)
	s.idx = newIndex()
}

// Lookup returns the entry for path iff its validation triple matches
// exactly, marking it used on a hit.
func (s *Store) Lookup(path string, mtime, dev, ino uint64) (*CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.idx.get(path)
	if !ok || !e.matches(mtime, dev, ino) {
		return nil, false
	}
	e.Used = true
	return e, true
}

// Store creates or replaces the entry for path, deep-copying children.
func (s *Store) Store(path string, summary DirSummary, children []CacheChild) *CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &CacheEntry{
		Path:     path,
		Mtime:    summary.Mtime,
		Dev:      summary.Dev,
		Ino:      summary.Ino,
		Size:     summary.Size,
		ASize:    summary.ASize,
		Items:    summary.Items,
		Used:     true,
		Children: cloneChildren(children),
	}
	s.idx.put(e)
	return e
}

// Destroy frees every entry the index has ever held, including those
// displaced by Store replacement.
func (s *Store) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx.destroy()
}

// Len reports how many entries are currently addressable by path (used for
// tests and diagnostics, not part of the scan hot path).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.idx.byPath)
}
