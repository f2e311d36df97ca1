// Package diskwalk implements the recursive, cache-aware directory walk:
// per-entry metadata capture, exclusion policy, and hierarchical
// aggregation, emitting an item-stream to an external output sink.
package diskwalk

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/sonroyaalmerol/indu/internal/cachestore"
)

// ErrNotADirectory is returned by Scan when root does not resolve to a
// directory.
var ErrNotADirectory = errors.New("diskwalk: root is not a directory")

// Scanner walks one tree per Scan call. Not safe for concurrent Scan calls
// on the same Scanner.
type Scanner struct {
	opts     Options
	rootDev  uint64
	lastPoll time.Time
}

// New creates a Scanner with the given options.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts}
}

// Scan walks root depth-first, reports every entry to sink, and consults/
// updates opts.Cache at each directory boundary. It returns true if the
// walk was aborted fatally (sink rejection, poll quit request, or an
// unusable root), in which case the caller must not save the cache.
func (s *Scanner) Scan(root string, sink cachestore.ItemSink) bool {
	abs, err := filepath.Abs(root)
	if err != nil {
		s.logErr(err, root)
		return true
	}

	var st statResult
	if err := lstat(abs, &st); err != nil {
		s.logErr(err, abs)
		return true
	}
	if !st.isDir {
		s.logErr(ErrNotADirectory, abs)
		return true
	}

	s.rootDev = st.dev
	s.lastPoll = time.Now()

	_, _, fatal := s.processEntry(abs, sink)
	return fatal
}

func (s *Scanner) logErr(err error, path string) {
	s.opts.Log.Warn().WithField("path", path).WithMessage(err.Error()).Write()
}

// poll calls opts.Poll at most once per UpdateInterval, reporting whether
// the driver wants to abort the scan.
func (s *Scanner) poll() bool {
	if s.opts.Poll == nil {
		return false
	}
	if time.Since(s.lastPoll) < s.opts.updateInterval() {
		return false
	}
	s.lastPoll = time.Now()
	return s.opts.Poll()
}

// processEntry handles one filesystem entry named by its absolute path:
// exclusion, stat, flag computation, the cache-hit short circuit, the
// CACHEDIR.TAG heuristic, and (for a plain directory) recursive descent.
// It returns the shallow CacheChild summarizing this entry for its
// parent's collection, the entry's own subtree item count, and whether the
// walk must abort.
func (s *Scanner) processEntry(path string, sink cachestore.ItemSink) (child cachestore.CacheChild, items int64, fatal bool) {
	name := filepath.Base(path)

	var flags cachestore.Flags
	if s.opts.Excludes != nil && s.opts.Excludes.Match(path) {
		flags |= cachestore.FFExl
	}

	var st statResult
	if err := lstat(path, &st); err != nil {
		flags |= cachestore.FFErr
		fatal = sink.Item(&cachestore.DirItem{Flags: flags}, name, nil, 0)
		return cachestore.CacheChild{Name: name, Flags: flags}, 1, fatal
	}

	isDir := st.isDir
	if isDir && s.opts.ExcludeKernFS && isKernFS(path) {
		flags |= cachestore.FFKernFS
	}
	if s.opts.ExcludeFirmlinks && hasFirmlinkDivergence(path) {
		flags |= cachestore.FFFrmlnk
	}

	if s.opts.FollowSymlinks && st.isSymlnk {
		if linkTarget, err := os.Readlink(path); err == nil {
			// Join via securejoin rather than naive string concatenation so
			// a relative ".." in the link body can never walk the resolved
			// path outside the directory that contains the link.
			if resolved, err := securejoin.SecureJoin(filepath.Dir(path), linkTarget); err == nil {
				var target statResult
				if err := statFollow(resolved, &target); err == nil && !target.isDir {
					st = target
					isDir = false
				}
			}
		}
	}

	if s.opts.SameFilesystem && st.dev != s.rootDev {
		flags |= cachestore.FFOthFS
	}

	excludedFromAccounting := flags&(cachestore.FFExl|cachestore.FFOthFS|cachestore.FFKernFS|cachestore.FFFrmlnk) != 0

	size, asize := int64(0), int64(0)
	if !excludedFromAccounting {
		size = st.blocks * 512
		asize = st.size
	}
	if !isDir && st.nlink > 1 {
		flags |= cachestore.FFHlnkc
	}

	clean := flags&(cachestore.FFErr|cachestore.FFExl|cachestore.FFOthFS|cachestore.FFKernFS|cachestore.FFFrmlnk) == 0

	if isDir && clean && s.opts.Cache != nil {
		if entry, ok := s.opts.Cache.Lookup(path, st.mtime, st.dev, st.ino); ok {
			cFlags := flags | cachestore.FFDir | cachestore.FFCached
			// The open event carries no size, exactly like the cold path:
			// the aggregate is delivered by the replayed children below, not
			// by this event, so a warm run's event stream matches a fresh
			// walk's byte-for-byte.
			item := &cachestore.DirItem{Flags: cFlags}
			if fatal = sink.Item(item, name, extInfo(st), st.nlink); fatal {
				return cachestore.CacheChild{}, 0, true
			}
			if fatal = s.opts.Cache.Replay(path, sink); fatal {
				return cachestore.CacheChild{}, 0, true
			}
			if fatal = sink.Item(nil, "", nil, 0); fatal {
				return cachestore.CacheChild{}, 0, true
			}
			return statChild(name, cFlags, entry.Size, entry.ASize, st), entry.Items, false
		}
	}

	if isDir && clean && s.opts.CachedirTagHeuristic && hasCachedirTag(path) {
		cFlags := flags | cachestore.FFDir | cachestore.FFExl
		item := &cachestore.DirItem{Flags: cFlags}
		if fatal = sink.Item(item, name, extInfo(st), st.nlink); fatal {
			return cachestore.CacheChild{}, 0, true
		}
		if fatal = sink.Item(nil, "", nil, 0); fatal {
			return cachestore.CacheChild{}, 0, true
		}
		return statChild(name, cFlags, 0, 0, st), 1, false
	}

	if !isDir {
		item := &cachestore.DirItem{Flags: flags, Size: size, ASize: asize}
		fatal = sink.Item(item, name, extInfo(st), st.nlink)
		return statChild(name, flags, size, asize, st), 1, fatal
	}

	if !clean {
		// Excluded/cross-fs/pseudo-fs directory: reported but not descended.
		dirFlags := flags | cachestore.FFDir
		if fatal = sink.Item(&cachestore.DirItem{Flags: dirFlags}, name, extInfo(st), st.nlink); fatal {
			return cachestore.CacheChild{}, 0, true
		}
		if fatal = sink.Item(nil, "", nil, 0); fatal {
			return cachestore.CacheChild{}, 0, true
		}
		return statChild(name, dirFlags, size, asize, st), 1, false
	}

	// Plain directory: open, descend, close.
	dirFlags := flags | cachestore.FFDir
	if fatal = sink.Item(&cachestore.DirItem{Flags: dirFlags}, name, extInfo(st), st.nlink); fatal {
		return cachestore.CacheChild{}, 0, true
	}

	names, err := opendirNames(path)
	if err != nil {
		dirFlags |= cachestore.FFErr
		if fatal = sink.Item(nil, "", nil, 0); fatal {
			return cachestore.CacheChild{}, 0, true
		}
		return statChild(name, dirFlags, 0, 0, st), 1, false
	}

	var collected []cachestore.CacheChild
	var aggSize, aggASize, aggItems int64
	for _, childName := range names {
		if s.poll() {
			return cachestore.CacheChild{}, 0, true
		}
		child, childItems, fatal := s.processEntry(filepath.Join(path, childName), sink)
		if fatal {
			return cachestore.CacheChild{}, 0, true
		}
		collected = append(collected, child)
		aggSize += child.Size
		aggASize += child.ASize
		aggItems += childItems
	}

	if fatal = sink.Item(nil, "", nil, 0); fatal {
		return cachestore.CacheChild{}, 0, true
	}

	if s.opts.Cache != nil {
		s.opts.Cache.Store(path, cachestore.DirSummary{
			Mtime: st.mtime, Dev: st.dev, Ino: st.ino,
			Size: aggSize, ASize: aggASize, Items: aggItems,
		}, collected)
	}

	return statChild(name, dirFlags, aggSize, aggASize, st), aggItems, false
}

func extInfo(st statResult) *cachestore.ExtInfo {
	if st.mtime == 0 && st.uid == 0 && st.gid == 0 && st.mode == 0 {
		return nil
	}
	return &cachestore.ExtInfo{Mtime: st.mtime, UID: st.uid, GID: st.gid, Mode: st.mode}
}

func statChild(name string, flags cachestore.Flags, size, asize int64, st statResult) cachestore.CacheChild {
	return cachestore.CacheChild{
		Name: name, Flags: flags, Size: size, ASize: asize,
		Dev: st.dev, Ino: st.ino, Mtime: st.mtime,
		UID: st.uid, GID: st.gid, Mode: st.mode, Nlink: st.nlink,
	}
}
