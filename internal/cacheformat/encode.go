package cacheformat

import (
	"bufio"
	"io"
	"strconv"
)

// errWriter lets a long sequence of Write calls skip their individual error
// checks; the first error is sticky and returned by Err().
type errWriter struct {
	w   *bufio.Writer
	err error
}

func (e *errWriter) str(s string) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.WriteString(s)
}

func (e *errWriter) byte(b byte) {
	if e.err != nil {
		return
	}
	e.err = e.w.WriteByte(b)
}

// escaped writes s as a JSON string literal, including the quotes. Control
// bytes (<0x20) and DEL (0x7f) become \u00NN in lowercase hex; '"' and '\'
// are backslash-escaped; every other byte, including multi-byte UTF-8
// sequences and invalid-UTF-8 bytes, passes through unchanged so arbitrary
// filename bytes round-trip exactly.
func (e *errWriter) escaped(s string) {
	if e.err != nil {
		return
	}
	e.byte('"')
	const hex = "0123456789abcdef"
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			e.str(`\"`)
		case c == '\\':
			e.str(`\\`)
		case c < 0x20 || c == 0x7f:
			e.byte('\\')
			e.byte('u')
			e.byte('0')
			e.byte('0')
			e.byte(hex[c>>4])
			e.byte(hex[c&0xf])
		default:
			e.byte(c)
		}
	}
	e.byte('"')
}

func (e *errWriter) int64Field(key string, v int64, omitZero bool) {
	if omitZero && v == 0 {
		return
	}
	e.str(`,"`)
	e.str(key)
	e.str(`":`)
	e.str(formatInt64(v))
}

func (e *errWriter) uint64Field(key string, v uint64, omitZero bool) {
	if omitZero && v == 0 {
		return
	}
	e.str(`,"`)
	e.str(key)
	e.str(`":`)
	e.str(formatUint64(v))
}

func (e *errWriter) stringField(key, v string) {
	if v == "" {
		return
	}
	e.str(`,"`)
	e.str(key)
	e.str(`":`)
	e.escaped(v)
}

func (e *errWriter) boolField(key string, v bool) {
	if !v {
		return
	}
	e.str(`,"`)
	e.str(key)
	e.str(`":true`)
}

func formatInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}

func formatUint64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func excludedString(f Flags) string {
	switch {
	case f&FFExl != 0:
		return "pattern"
	case f&FFOthFS != 0:
		return "otherfs"
	case f&FFKernFS != 0:
		return "kernfs"
	case f&FFFrmlnk != 0:
		return "frmlnk"
	default:
		return ""
	}
}

func writeChild(e *errWriter, c WireChild) {
	isDir := c.Flags&FFDir != 0
	if isDir {
		e.byte('[')
	}
	e.byte('{')
	e.str(`"name":`)
	e.escaped(c.Name)
	e.int64Field("asize", c.ASize, true)
	e.int64Field("dsize", c.DSize, true)
	e.uint64Field("dev", c.Dev, true)
	e.uint64Field("ino", c.Ino, true)
	e.uint64Field("mtime", c.Mtime, true)
	e.uint64Field("uid", uint64(c.UID), true)
	e.uint64Field("gid", uint64(c.GID), true)
	e.uint64Field("mode", uint64(c.Mode), true)
	e.uint64Field("nlink", uint64(c.Nlink), true)
	e.boolField("hlnkc", c.Flags&FFHlnkc != 0)
	e.boolField("read_error", c.ReadError)
	excluded := c.Excluded
	if excluded == "" {
		excluded = excludedString(c.Flags)
	}
	e.stringField("excluded", excluded)
	e.boolField("notreg", c.NotReg)
	e.byte('}')
	if isDir {
		for _, ch := range c.Children {
			e.str(",\n")
			writeChild(e, ch)
		}
		e.byte(']')
	}
}

// Encode writes one complete cache document: the [major, minor, header]
// prefix followed by one comma-prefixed DirRecord per record.
//
// The header-then-comma-prefixed-records shape is intentional (see
// DESIGN.md's note on the original's vestigial "first" flag): writing the
// header unconditionally and always prefixing records with ",\n" needs no
// extra state.
func Encode(w io.Writer, header WireHeader, records []WireDirRecord) error {
	bw := bufio.NewWriter(w)
	e := &errWriter{w: bw}

	e.str("[")
	e.str(strconv.Itoa(MajorVersion))
	e.str(",")
	e.str(strconv.Itoa(MinorVersion))
	e.str(`,{"progname":`)
	e.escaped(header.Progname)
	e.str(`,"progver":`)
	e.escaped(header.Progver)
	e.str(`,"timestamp":`)
	e.str(strconv.FormatUint(uint64(header.Timestamp), 10))
	e.str("}")

	for _, rec := range records {
		e.str(",\n[{\"name\":")
		e.escaped(rec.Header.Name)
		e.int64Field("asize", rec.Header.ASize, true)
		e.int64Field("dsize", rec.Header.DSize, true)
		e.uint64Field("dev", rec.Header.Dev, true)
		e.uint64Field("ino", rec.Header.Ino, true)
		e.uint64Field("mtime", rec.Header.Mtime, true)
		e.uint64Field("csum", rec.Header.Csum, true)
		e.str("}")
		for _, c := range rec.Children {
			e.str(",\n")
			writeChild(e, c)
		}
		e.str("]")
	}
	e.str("]\n")

	if e.err != nil {
		return e.err
	}
	return bw.Flush()
}
