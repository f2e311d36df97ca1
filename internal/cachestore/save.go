package cachestore

import (
	"os"
	"path/filepath"

	"github.com/sonroyaalmerol/indu/internal/cacheformat"
	"github.com/sonroyaalmerol/indu/internal/cachelock"
)

const (
	saveTimeoutSec = 10
	progname       = "indu"
	progver        = "1.0"
)

// Save writes every used entry under an EXCLUSIVE lock, using a
// temp-file-then-atomic-rename protocol so a crash mid-write never corrupts
// the existing cache. A lock timeout or any I/O failure in the write path
// is non-fatal to the caller: the temp file is unlinked and Save returns
// its error for logging only.
func (s *Store) Save(timestamp int64) error {
	s.mu.Lock()
	path := s.path
	records := s.usedRecordsLocked()
	s.mu.Unlock()

	if path == "" {
		return nil
	}

	if err := s.lock.Acquire(cachelock.Exclusive, saveTimeoutSec); err != nil {
		s.log.Warn().WithField("path", path).WithMessage("cache save skipped, lock unavailable").Write()
		return err
	}
	defer s.lock.Release()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	header := cacheformat.WireHeader{Progname: progname, Progver: progver, Timestamp: timestamp}
	if err := cacheformat.Encode(tmp, header, records); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	closeErr := tmp.Close()
	tmp = nil // disarm the defer's cleanup regardless of outcome below
	if closeErr != nil {
		os.Remove(tmpPath)
		return closeErr
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if dirFd, err := os.Open(dir); err == nil {
		if err := dirFd.Sync(); err != nil {
			s.log.Warn().WithField("dir", dir).WithMessage("fsync of cache directory failed, rename is still committed").Write()
		}
		dirFd.Close()
	}

	return nil
}

func (s *Store) usedRecordsLocked() []cacheformat.WireDirRecord {
	out := make([]cacheformat.WireDirRecord, 0, len(s.idx.byPath))
	for _, e := range s.idx.byPath {
		if !e.Used {
			continue
		}
		wireChildren := cacheChildrenToWire(e.Children)
		out = append(out, cacheformat.WireDirRecord{
			Header: cacheformat.WireDirHeader{
				Name:  e.Path,
				ASize: e.ASize,
				DSize: e.Size,
				Dev:   e.Dev,
				Ino:   e.Ino,
				Mtime: e.Mtime,
				Csum:  cacheformat.ChecksumChildren(wireChildren),
			},
			Children: wireChildren,
		})
	}
	return out
}

func cacheChildrenToWire(cc []CacheChild) []cacheformat.WireChild {
	if len(cc) == 0 {
		return nil
	}
	out := make([]cacheformat.WireChild, len(cc))
	for i, c := range cc {
		out[i] = cacheformat.WireChild{
			Name:  c.Name,
			Flags: c.Flags,
			DSize: c.Size,
			ASize: c.ASize,
			Dev:   c.Dev,
			Ino:   c.Ino,
			Mtime: c.Mtime,
			UID:   c.UID,
			GID:   c.GID,
			Mode:  c.Mode,
			Nlink: c.Nlink,
		}
	}
	return out
}
