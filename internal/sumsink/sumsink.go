// Package sumsink is a reference ItemSink: a plain-text summary of a scan,
// standing in for the terminal browse UI that is out of scope here.
package sumsink

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/sonroyaalmerol/indu/internal/cachestore"
)

// Sink accumulates totals and writes one line per item event, indented by
// directory depth; Final writes the totals line.
type Sink struct {
	w        io.Writer
	depth    int
	topSize  int64
	topASize int64
	topItems int64
	failed   bool
}

// New creates a Sink writing to w.
func New(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Item implements cachestore.ItemSink. A directory's own open event never
// carries a usable aggregate (it's 0 on a cold walk and on a cache hit
// alike, since replayed children deliver the subtree's sizes); the total is
// instead the sum of every non-directory entry's own size, which a warm
// replay reports identically to a fresh walk.
func (s *Sink) Item(dir *cachestore.DirItem, name string, ext *cachestore.ExtInfo, nlink uint32) bool {
	if dir == nil {
		s.depth--
		return false
	}

	if dir.Flags&cachestore.FFDir == 0 {
		s.topSize += dir.Size
		s.topASize += dir.ASize
	}
	s.topItems++

	label := ""
	switch {
	case dir.Flags&cachestore.FFCached != 0:
		label = " [cached]"
	case dir.Flags&cachestore.FFExl != 0:
		label = " [excluded]"
	case dir.Flags&cachestore.FFOthFS != 0:
		label = " [other-fs]"
	case dir.Flags&cachestore.FFKernFS != 0:
		label = " [kernfs]"
	case dir.Flags&cachestore.FFErr != 0:
		label = " [error]"
	}

	fmt.Fprintf(s.w, "%*s%s  %s (apparent %s)%s\n",
		s.depth*2, "", name,
		humanize.Bytes(uint64(dir.Size)), humanize.Bytes(uint64(dir.ASize)), label)

	if dir.Flags&cachestore.FFDir != 0 {
		s.depth++
	}
	return false
}

// Final implements cachestore.ItemSink.
func (s *Sink) Final(failed bool) int {
	s.failed = failed
	fmt.Fprintf(s.w, "\ntotal: %s on disk, %s apparent, %d items\n",
		humanize.Bytes(uint64(s.topSize)), humanize.Bytes(uint64(s.topASize)), s.topItems)
	if failed {
		return 1
	}
	return 0
}
