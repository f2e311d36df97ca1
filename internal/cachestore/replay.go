package cachestore

import "path/filepath"

func extFromChild(c CacheChild) *ExtInfo {
	if c.Mtime == 0 && c.UID == 0 && c.GID == 0 && c.Mode == 0 {
		return nil
	}
	return &ExtInfo{Mtime: c.Mtime, UID: c.UID, GID: c.GID, Mode: c.Mode}
}

// Replay emits dirPath's cached subtree to sink in the same depth-first
// open/close sequence a fresh walk would produce, recursively looking up
// each child directory's own entry. It marks every visited entry used,
// transitively. Returns true if the sink aborted the walk as fatal.
func (s *Store) Replay(dirPath string, sink ItemSink) bool {
	s.mu.Lock()
	e, ok := s.idx.get(dirPath)
	s.mu.Unlock()
	if !ok {
		return false
	}

	s.mu.Lock()
	e.Used = true
	children := e.Children
	s.mu.Unlock()

	return s.replayChildren(dirPath, children, sink)
}

func (s *Store) replayChildren(dirPath string, children []CacheChild, sink ItemSink) bool {
	for _, c := range children {
		isDir := c.Flags&FFDir != 0

		// A directory's own open event never carries a size, matching a
		// fresh walk: the aggregate comes from its replayed leaf
		// descendants, not from this event, at every depth.
		item := &DirItem{Flags: c.Flags}
		if !isDir {
			item.Size = c.Size
			item.ASize = c.ASize
		}
		if fatal := sink.Item(item, c.Name, extFromChild(c), c.Nlink); fatal {
			return true
		}

		if !isDir {
			continue
		}

		childPath := filepath.Join(dirPath, c.Name)
		s.mu.Lock()
		childEntry, found := s.idx.get(childPath)
		if found {
			childEntry.Used = true
		}
		s.mu.Unlock()

		if found {
			if fatal := s.replayChildren(childPath, childEntry.Children, sink); fatal {
				return true
			}
		}
		// A directory child always gets a matching close event, even when
		// its own entry is missing and the subtree can't be expanded.
		if fatal := sink.Item(nil, "", nil, 0); fatal {
			return true
		}
	}
	return false
}
