package sumsink

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sonroyaalmerol/indu/internal/cachestore"
)

func TestSinkSumsLeafSizesNotDirOpenEvent(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	// A directory's own open event carries no size, matching both the cold
	// and the cache-hit paths in diskwalk; only its leaf children do.
	assert.False(t, s.Item(&cachestore.DirItem{Flags: cachestore.FFDir}, "root", nil, 1))
	assert.False(t, s.Item(&cachestore.DirItem{Size: 50, ASize: 40}, "f1", nil, 1))
	assert.False(t, s.Item(&cachestore.DirItem{Size: 20, ASize: 15}, "f2", nil, 1))
	assert.False(t, s.Item(nil, "", nil, 0))

	code := s.Final(false)
	assert.Equal(t, 0, code)
	assert.Equal(t, int64(70), s.topSize)
	assert.Equal(t, int64(55), s.topASize)
	assert.Contains(t, buf.String(), "total:")
}

func TestSinkTotalsMatchBetweenColdStyleAndWarmStyleEvents(t *testing.T) {
	// A cold walk's directory open event and a cache hit's directory open
	// event both carry zero size; the sink's total must come out identical
	// regardless of which one produced the stream.
	leaf := func(s *Sink) {
		s.Item(&cachestore.DirItem{Size: 50, ASize: 40}, "f1", nil, 1)
		s.Item(nil, "", nil, 0)
	}

	var coldBuf, warmBuf bytes.Buffer
	cold := New(&coldBuf)
	cold.Item(&cachestore.DirItem{Flags: cachestore.FFDir}, "root", nil, 1)
	leaf(cold)

	warm := New(&warmBuf)
	warm.Item(&cachestore.DirItem{Flags: cachestore.FFDir | cachestore.FFCached}, "root", nil, 1)
	leaf(warm)

	assert.Equal(t, cold.topSize, warm.topSize)
	assert.Equal(t, cold.topASize, warm.topASize)
}

func TestSinkReportsFailureExitCode(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)
	assert.Equal(t, 1, s.Final(true))
}
