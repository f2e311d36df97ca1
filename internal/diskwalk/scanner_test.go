package diskwalk

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/indu/internal/cachestore"
	"github.com/sonroyaalmerol/indu/internal/excludeset"
)

type capturedItem struct {
	isClose bool
	name    string
	flags   cachestore.Flags
	size    int64
	asize   int64
}

type capturingSink struct {
	events []capturedItem
}

func (s *capturingSink) Item(dir *cachestore.DirItem, name string, ext *cachestore.ExtInfo, nlink uint32) bool {
	if dir == nil {
		s.events = append(s.events, capturedItem{isClose: true})
		return false
	}
	s.events = append(s.events, capturedItem{name: name, flags: dir.Flags, size: dir.Size, asize: dir.ASize})
	return false
}

func (s *capturingSink) Final(failed bool) int { return 0 }

func writeFileN(t *testing.T, path string, n int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, n), 0644))
}

func runScan(t *testing.T, opts Options, root string) *capturingSink {
	t.Helper()
	sink := &capturingSink{}
	s := New(opts)
	fatal := s.Scan(root, sink)
	require.False(t, fatal)
	return sink
}

func itemNames(events []capturedItem) []string {
	var names []string
	for _, e := range events {
		if !e.isClose {
			names = append(names, e.name)
		}
	}
	return names
}

func TestColdScanEmitsDirRecordAndChildren(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	require.NoError(t, os.Mkdir(a, 0755))
	writeFileN(t, filepath.Join(a, "f1"), 1000)
	writeFileN(t, filepath.Join(a, "f2"), 2000)

	cachePath := filepath.Join(t.TempDir(), "cache.json")
	cache := cachestore.New(nil)
	cache.Init(cachePath)
	require.NoError(t, cache.Load())

	sink := runScan(t, Options{Cache: cache}, root)

	names := itemNames(sink.events)
	assert.Contains(t, names, "f1")
	assert.Contains(t, names, "f2")
	assert.Contains(t, names, "a")

	require.NoError(t, cache.Save(1700000000))

	reloaded := cachestore.New(nil)
	reloaded.Init(cachePath)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, cache.Len(), reloaded.Len())
}

func TestWarmHitReplaysIdenticalEventStream(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	require.NoError(t, os.Mkdir(a, 0755))
	writeFileN(t, filepath.Join(a, "f1"), 1000)
	writeFileN(t, filepath.Join(a, "f2"), 2000)

	cachePath := filepath.Join(t.TempDir(), "cache.json")

	cache := cachestore.New(nil)
	cache.Init(cachePath)
	require.NoError(t, cache.Load())
	coldSink := runScan(t, Options{Cache: cache}, root)
	require.NoError(t, cache.Save(1))

	cache2 := cachestore.New(nil)
	cache2.Init(cachePath)
	require.NoError(t, cache2.Load())
	warmSink := runScan(t, Options{Cache: cache2}, root)

	require.Equal(t, len(coldSink.events), len(warmSink.events))
	for i := range coldSink.events {
		assert.Equal(t, coldSink.events[i].name, warmSink.events[i].name)
		assert.Equal(t, coldSink.events[i].isClose, warmSink.events[i].isClose)
	}

	var sawCached bool
	for _, e := range warmSink.events {
		if e.flags&cachestore.FFCached != 0 {
			sawCached = true
		}
	}
	assert.True(t, sawCached, "warm run should report at least one FFCached directory")
}

func TestInvalidatedHitForcesFullRewalk(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	require.NoError(t, os.Mkdir(a, 0755))
	writeFileN(t, filepath.Join(a, "f1"), 1000)

	cachePath := filepath.Join(t.TempDir(), "cache.json")

	cache := cachestore.New(nil)
	cache.Init(cachePath)
	require.NoError(t, cache.Load())
	runScan(t, Options{Cache: cache}, a)
	require.NoError(t, cache.Save(1))

	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(a, future, future))

	cache2 := cachestore.New(nil)
	cache2.Init(cachePath)
	require.NoError(t, cache2.Load())
	sink := runScan(t, Options{Cache: cache2}, a)

	for _, e := range sink.events {
		assert.Zero(t, e.flags&cachestore.FFCached, "a re-walked directory must not be marked cached")
	}
}

func TestNestedFlatForestScenario(t *testing.T) {
	root := t.TempDir()
	x := filepath.Join(root, "x")
	y := filepath.Join(x, "y")
	z := filepath.Join(y, "z")
	require.NoError(t, os.MkdirAll(z, 0755))
	writeFileN(t, filepath.Join(z, "f1"), 500)

	cachePath := filepath.Join(t.TempDir(), "cache.json")

	cache := cachestore.New(nil)
	cache.Init(cachePath)
	require.NoError(t, cache.Load())
	runScan(t, Options{Cache: cache}, root)
	require.NoError(t, cache.Save(1))

	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(x, future, future))

	cache2 := cachestore.New(nil)
	cache2.Init(cachePath)
	require.NoError(t, cache2.Load())
	sink := runScan(t, Options{Cache: cache2}, root)

	cachedNames := map[string]bool{}
	for _, e := range sink.events {
		if e.flags&cachestore.FFCached != 0 {
			cachedNames[e.name] = true
		}
	}
	assert.True(t, cachedNames["z"], "z is unchanged and reachable only via a re-walked y, so it must be served from cache")
	assert.False(t, cachedNames["x"], "x was touched and must be re-walked")
}

func TestExcludedDirectoryNotDescended(t *testing.T) {
	root := t.TempDir()
	skip := filepath.Join(root, "skip")
	require.NoError(t, os.Mkdir(skip, 0755))
	writeFileN(t, filepath.Join(skip, "f1"), 100)

	excludes := excludeset.New(nil, []string{"**/skip"})
	sink := runScan(t, Options{Excludes: excludes}, root)

	for _, e := range sink.events {
		assert.NotEqual(t, "f1", e.name)
	}

	names := itemNames(sink.events)
	assert.Contains(t, names, "skip")
}

func TestSameFilesystemFlag(t *testing.T) {
	root := t.TempDir()
	writeFileN(t, filepath.Join(root, "f1"), 10)

	sink := runScan(t, Options{SameFilesystem: true}, root)
	names := itemNames(sink.events)
	assert.Contains(t, names, "f1")
}
