// Package cachestore is the in-memory index of cached directory scans,
// backed by a JSON file on disk and guarded by internal/cachelock. It
// exposes Init/Load/Lookup/Store/Replay/Save/Destroy to the scanner, which
// is the only package that drives it.
package cachestore

import "github.com/sonroyaalmerol/indu/internal/cacheformat"

// Flags re-exports cacheformat's bitmask so callers don't need to import
// both packages for the same type.
type Flags = cacheformat.Flags

const (
	FFDir    = cacheformat.FFDir
	FFFile   = cacheformat.FFFile
	FFErr    = cacheformat.FFErr
	FFExl    = cacheformat.FFExl
	FFOthFS  = cacheformat.FFOthFS
	FFKernFS = cacheformat.FFKernFS
	FFFrmlnk = cacheformat.FFFrmlnk
	FFHlnkc  = cacheformat.FFHlnkc
	FFExt    = cacheformat.FFExt
	FFCached = cacheformat.FFCached
)

// CacheChild is the shallow record of one filesystem entry as a child of
// some directory.
type CacheChild struct {
	Name     string
	Flags    Flags
	Size     int64 // disk usage, blocks * 512
	ASize    int64 // apparent size
	Ino      uint64
	Dev      uint64
	Mtime    uint64
	UID      uint32
	GID      uint32
	Mode     uint32
	Nlink    uint32
	Children []CacheChild // always empty for non-directories
}

// DirSummary is the aggregate totals the scanner hands to Store after
// finishing a directory, and the validation triple Lookup checks against.
type DirSummary struct {
	Mtime uint64
	Dev   uint64
	Ino   uint64
	Size  int64
	ASize int64
	Items int64
}

// CacheEntry is the per-directory record that lives in the index.
type CacheEntry struct {
	Path     string // absolute path, the unique key
	Mtime    uint64
	Dev      uint64
	Ino      uint64
	Size     int64
	ASize    int64
	Items    int64
	Used     bool // consulted or written during the current scan
	Children []CacheChild
}

func (e *CacheEntry) matches(mtime, dev, ino uint64) bool {
	return e.Mtime == mtime && e.Dev == dev && e.Ino == ino
}

func cloneChildren(src []CacheChild) []CacheChild {
	if len(src) == 0 {
		return nil
	}
	dst := make([]CacheChild, len(src))
	copy(dst, src)
	for i := range dst {
		// Grandchildren are never copied: a child directory's own children
		// belong to that child's separate top-level CacheEntry.
		dst[i].Children = nil
	}
	return dst
}
