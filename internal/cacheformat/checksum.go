package cacheformat

import (
	"bufio"
	"bytes"

	"github.com/zeebo/xxh3"
)

// ChecksumChildren returns a deterministic digest of a directory's encoded
// child list, written into a DirRecord header's csum field at save time and
// verified at load time. It catches a cache file damaged by something other
// than this package (truncated write, disk bitrot, hand edit) independent
// of the mtime/dev/ino validation triple, which only detects a stale cache,
// not a corrupt one. An empty child list checksums to 0, matching the
// omit-zero-on-write convention for the field.
func ChecksumChildren(children []WireChild) uint64 {
	if len(children) == 0 {
		return 0
	}
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	e := &errWriter{w: bw}
	for _, c := range children {
		writeChild(e, c)
	}
	bw.Flush()
	return xxh3.Hash(buf.Bytes())
}
