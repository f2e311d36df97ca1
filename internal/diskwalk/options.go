package diskwalk

import (
	"time"

	"github.com/sonroyaalmerol/indu/internal/cachestore"
	"github.com/sonroyaalmerol/indu/internal/corelog"
	"github.com/sonroyaalmerol/indu/internal/excludeset"
)

// PollFunc is polled roughly every UpdateInterval of wall-clock time between
// item callbacks, giving the driver a chance to process input or render
// progress. A true return aborts the scan exactly like a sink rejection.
type PollFunc func() (quit bool)

// Options configures one Scanner.
type Options struct {
	// SameFilesystem, when true, marks and does not descend into entries on
	// a different device than the scan root.
	SameFilesystem bool
	// FollowSymlinks, when true, follows a symlink to a non-directory and
	// reports the target's metadata instead of the link's. The link body is
	// resolved with securejoin beneath the directory that contains the link:
	// a target outside that directory, including an absolute one, is looked
	// up beneath it instead, and the link's own metadata is kept when no
	// non-directory exists at the resolved path.
	FollowSymlinks bool
	// ExcludeKernFS enables the Linux pseudo-filesystem exclusion.
	ExcludeKernFS bool
	// ExcludeFirmlinks enables the macOS firmlink-divergence exclusion.
	ExcludeFirmlinks bool
	// CachedirTagHeuristic enables the CACHEDIR.TAG exclusion.
	CachedirTagHeuristic bool
	// Excludes, if set, is consulted for every entry's absolute path.
	Excludes *excludeset.Set
	// Cache, if set, is consulted and updated for every directory boundary.
	Cache *cachestore.Store
	// Poll is called roughly every UpdateInterval; nil disables polling.
	Poll PollFunc
	// UpdateInterval is the minimum wall-clock gap between Poll calls.
	// Defaults to 100ms.
	UpdateInterval time.Duration
	// Log receives per-entry and soft-error diagnostics. nil is fine.
	Log *corelog.Logger
}

func (o *Options) updateInterval() time.Duration {
	if o.UpdateInterval <= 0 {
		return 100 * time.Millisecond
	}
	return o.UpdateInterval
}
