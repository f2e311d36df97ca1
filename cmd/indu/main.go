package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sonroyaalmerol/indu/internal/cachestore"
	"github.com/sonroyaalmerol/indu/internal/corelog"
	"github.com/sonroyaalmerol/indu/internal/diskwalk"
	"github.com/sonroyaalmerol/indu/internal/excludeset"
	"github.com/sonroyaalmerol/indu/internal/sumsink"
)

func main() {
	cachePath := flag.String("cache-file", "", "path to the incremental scan cache (disabled if empty)")
	excludeFile := flag.String("exclude-from", "", "file of newline-separated glob exclusion patterns")
	sameFS := flag.Bool("one-file-system", false, "do not cross filesystem boundaries")
	followSymlinks := flag.Bool("follow-symlinks", false, "follow symlinks to non-directories")
	excludeCaches := flag.Bool("exclude-caches", false, "honor CACHEDIR.TAG")
	noKernFS := flag.Bool("no-kernfs", false, "do not exclude Linux pseudo-filesystems")
	noFirmlinks := flag.Bool("no-firmlinks", false, "do not exclude diverged macOS firmlinks")
	flag.Parse()

	log := corelog.Default()

	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}

	exitCode := safeRun(func() int {
		return run(log, root, runOptions{
			cachePath:        *cachePath,
			excludeFile:      *excludeFile,
			sameFS:           *sameFS,
			followSymlinks:   *followSymlinks,
			excludeKernFS:    !*noKernFS,
			excludeFirmlinks: !*noFirmlinks,
			cachedirTag:      *excludeCaches,
		})
	}, log)

	os.Exit(exitCode)
}

type runOptions struct {
	cachePath        string
	excludeFile      string
	sameFS           bool
	followSymlinks   bool
	excludeKernFS    bool
	excludeFirmlinks bool
	cachedirTag      bool
}

// safeRun recovers a panic anywhere in the scan, logs it, and converts it
// into a failure exit code instead of crashing the process.
func safeRun(fn func() int, log *corelog.Logger) (code int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(fmt.Errorf("panic: %v", r)).WithMessage("scan aborted").Write()
			code = 1
		}
	}()
	return fn()
}

func run(log *corelog.Logger, root string, opts runOptions) int {
	var cache *cachestore.Store
	if opts.cachePath != "" {
		cache = cachestore.New(log)
		cache.Init(opts.cachePath)
		if err := cache.Load(); err != nil {
			log.Warn().WithField("path", opts.cachePath).WithMessage("cache load failed, continuing uncached").Write()
		}
	}

	var excludes *excludeset.Set
	if opts.excludeFile != "" {
		patterns, err := excludeset.LoadFile(opts.excludeFile)
		if err != nil {
			log.Warn().WithField("path", opts.excludeFile).WithMessage("failed to load exclusion file").Write()
		}
		excludes = excludeset.New(log, patterns)
		if watcher, err := excludeset.WatchFile(log, excludes, opts.excludeFile); err == nil {
			defer watcher.Close()
		}
	}

	sink := sumsink.New(os.Stdout)

	scanner := diskwalk.New(diskwalk.Options{
		SameFilesystem:       opts.sameFS,
		FollowSymlinks:       opts.followSymlinks,
		ExcludeKernFS:        opts.excludeKernFS,
		ExcludeFirmlinks:     opts.excludeFirmlinks,
		CachedirTagHeuristic: opts.cachedirTag,
		Excludes:             excludes,
		Cache:                cache,
		Log:                  log,
	})

	absRoot, err := filepath.Abs(root)
	if err != nil {
		log.Error(err).WithMessage("cannot resolve scan root").Write()
		return 1
	}

	failed := scanner.Scan(absRoot, sink)

	if !failed && cache != nil {
		if err := cache.Save(time.Now().Unix()); err != nil {
			log.Warn().WithField("path", opts.cachePath).WithMessage("cache save failed").Write()
		}
		cache.Destroy()
	}

	return sink.Final(failed)
}
