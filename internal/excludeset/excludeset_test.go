package excludeset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchBasicGlob(t *testing.T) {
	s := New(nil, []string{"/home/*/.cache", "*.tmp"})
	assert.True(t, s.Match("/home/alice/.cache"))
	assert.False(t, s.Match("/home/alice/bob/.cache"))
	assert.True(t, s.Match("file.tmp"))
	assert.False(t, s.Match("file.txt"))
}

func TestReloadReplacesPatterns(t *testing.T) {
	s := New(nil, []string{"*.tmp"})
	require.True(t, s.Match("a.tmp"))

	s.Reload([]string{"*.log"})
	assert.False(t, s.Match("a.tmp"))
	assert.True(t, s.Match("a.log"))
}

func TestSkipsInvalidPatternsAndComments(t *testing.T) {
	s := New(nil, []string{"# a comment", "", "*.tmp", "[unterminated"})
	assert.True(t, s.Match("a.tmp"))
}

func TestLoadFileAndWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exclude.txt")
	require.NoError(t, os.WriteFile(path, []byte("*.tmp\n"), 0644))

	patterns, err := LoadFile(path)
	require.NoError(t, err)
	s := New(nil, patterns)
	require.True(t, s.Match("a.tmp"))

	w, err := WatchFile(nil, s, path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("*.log\n"), 0644))

	require.Eventually(t, func() bool {
		return s.Match("a.log")
	}, 2*time.Second, 20*time.Millisecond)
}
