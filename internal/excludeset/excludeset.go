// Package excludeset holds the compiled set of user exclusion patterns the
// scanner consults for every entry, with optional hot-reload from disk.
package excludeset

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/sonroyaalmerol/indu/internal/corelog"
)

// Set is a compiled, swappable list of shell-glob exclusion patterns.
// Reloading is safe to call concurrently with Match.
type Set struct {
	mu       sync.RWMutex
	patterns []compiledPattern
	log      *corelog.Logger
}

type compiledPattern struct {
	raw string
	g   glob.Glob
}

// New compiles patterns immediately; a pattern that fails to compile is
// skipped and logged rather than failing the whole set.
func New(log *corelog.Logger, patterns []string) *Set {
	s := &Set{log: log}
	s.Reload(patterns)
	return s
}

// Reload atomically replaces the compiled pattern list.
func (s *Set) Reload(patterns []string) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			s.log.Warn().WithField("pattern", p).WithMessage("skipping invalid exclusion pattern").Write()
			continue
		}
		compiled = append(compiled, compiledPattern{raw: p, g: g})
	}

	s.mu.Lock()
	s.patterns = compiled
	s.mu.Unlock()
}

// Match reports whether path (absolute, slash-separated) matches any
// compiled pattern.
func (s *Set) Match(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.patterns {
		if p.g.Match(path) {
			return true
		}
	}
	return false
}

// LoadFile reads one pattern per line from path.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("excludeset: open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
