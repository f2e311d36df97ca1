package cachestore

import (
	"errors"
	"os"

	"github.com/sonroyaalmerol/indu/internal/cacheformat"
	"github.com/sonroyaalmerol/indu/internal/cachelock"
)

const loadTimeoutSec = 5

// Load reads the whole cache file under a SHARED lock. A lock timeout, a
// missing file, and a parse error all return success with an empty (or
// unchanged) index: the cache is simply disabled for this run rather than
// aborting the scan, matching cache corruption never crashing the scanner.
// See DESIGN.md's Open Question log for this resolution.
func (s *Store) Load() error {
	s.mu.Lock()
	path := s.path
	s.mu.Unlock()

	if path == "" {
		return errors.New("cachestore: Init not called")
	}

	if err := s.lock.Acquire(cachelock.Shared, loadTimeoutSec); err != nil {
		s.log.Warn().WithField("path", path).WithMessage("cache lock unavailable, running uncached").Write()
		return nil
	}
	defer s.lock.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		s.log.Warn().WithField("path", path).WithMessage("cache read failed, running uncached").Write()
		return nil
	}

	_, records, dropped, err := cacheformat.Decode(data)
	if err != nil {
		s.log.Warn().WithField("path", path).WithMessage("cache parse failed, running uncached").Write()
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx = newIndex()
	for _, rec := range records {
		if rec.Header.Csum != 0 && cacheformat.ChecksumChildren(rec.Children) != rec.Header.Csum {
			dropped++
			s.log.Warn().WithField("path", path).WithField("record", rec.Header.Name).
				WithMessage("dropped cache record with checksum mismatch").Write()
			continue
		}
		e := &CacheEntry{
			Path:     rec.Header.Name,
			Mtime:    rec.Header.Mtime,
			Dev:      rec.Header.Dev,
			Ino:      rec.Header.Ino,
			ASize:    rec.Header.ASize,
			Size:     rec.Header.DSize,
			Children: wireChildrenToCache(rec.Children),
		}
		// A corrupt file with a duplicate path keeps the first-inserted
		// entry and discards the duplicate, rather than last-wins.
		if !s.idx.putIfAbsent(e) {
			dropped++
			s.log.Warn().WithField("path", path).WithField("record", rec.Header.Name).
				WithMessage("dropped duplicate cache record, keeping first").Write()
		}
	}
	if dropped > 0 {
		s.log.Warn().WithField("path", path).WithField("dropped", dropped).WithMessage("dropped corrupt cache records").Write()
	}
	return nil
}

// wireChildrenToCache converts one record's children, ignoring any
// deeper-than-one-level nesting a legacy writer may have produced: only
// this level's field values are kept, matching the flat-forest invariant
// that a child directory's own children belong to its own top-level
// record.
func wireChildrenToCache(wc []cacheformat.WireChild) []CacheChild {
	if len(wc) == 0 {
		return nil
	}
	out := make([]CacheChild, len(wc))
	for i, c := range wc {
		out[i] = CacheChild{
			Name:  c.Name,
			Flags: c.Flags,
			Size:  c.DSize,
			ASize: c.ASize,
			Ino:   c.Ino,
			Dev:   c.Dev,
			Mtime: c.Mtime,
			UID:   c.UID,
			GID:   c.GID,
			Mode:  c.Mode,
			Nlink: c.Nlink,
		}
	}
	return out
}
