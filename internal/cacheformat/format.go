// Package cacheformat implements the on-disk JSON wire format for the scan
// cache: encoding, decoding, and the byte-level string escaping rules.
// It knows nothing about the in-memory index; internal/cachestore builds
// CacheEntry/CacheChild values from the WireDirRecord/WireChild values this
// package produces, and vice versa.
package cacheformat

// Flags mirrors the CacheChild/CacheEntry flag bitmask from the spec: a set
// of mutually-exclusive-within-groups bits describing one filesystem entry.
type Flags uint16

const (
	FFDir     Flags = 1 << iota // directory
	FFFile                      // regular file
	FFErr                       // stat/readdir error
	FFExl                       // excluded by user pattern
	FFOthFS                     // on a different filesystem (same-fs scan)
	FFKernFS                    // Linux pseudo-filesystem
	FFFrmlnk                    // macOS firmlink divergence
	FFHlnkc                     // hard-link counted (nlink > 1, non-directory)
	FFExt                       // extended info (mtime/uid/gid/mode) present
	FFCached                    // served from cache replay
)

// MajorVersion is the only major version this implementation accepts.
const MajorVersion = 1

// MinorVersion is written into new cache files. It's advisory: readers
// don't reject on minor mismatch.
const MinorVersion = 2

// CachedirTagSignature is the standard CACHEDIR.TAG magic (first 43 bytes),
// recovered from original_source/src/dir_scan.c's has_cachedir_tag check.
const CachedirTagSignature = "Signature: 8a477f597d28d172789f06886806bc55"

// WireHeader is the metadata object that follows the version pair at the
// front of the cache file.
type WireHeader struct {
	Progname  string
	Progver   string
	Timestamp int64
}

// WireDirHeader is the first element of a DirRecord: the directory's own
// validation triple and aggregate totals.
type WireDirHeader struct {
	Name  string // absolute path, the record's key
	ASize int64
	DSize int64
	Dev   uint64
	Ino   uint64
	Mtime uint64
	Csum  uint64 // optional xxh3 checksum of the child list, 0 if absent
}

// WireChild is one ChildItem: either a file (Children == nil) or a shallow
// directory (Flags&FFDir != 0); Children holds whatever nested items this
// record carries (our own writer always emits zero or the tolerated legacy
// nesting on read).
type WireChild struct {
	Name      string
	Flags     Flags
	ASize     int64
	DSize     int64
	Dev       uint64
	Ino       uint64
	Mtime     uint64
	UID       uint32
	GID       uint32
	Mode      uint32
	Nlink     uint32
	Excluded  string // "pattern", "otherfs", "kernfs", "frmlnk", or ""
	ReadError bool
	NotReg    bool
	Children  []WireChild
}

// WireDirRecord is one top-level array entry in the cache file: a
// directory's header plus its immediate children.
type WireDirRecord struct {
	Header   WireDirHeader
	Children []WireChild
}
