package cacheformat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrBadVersion is returned when the document's major version isn't
// MajorVersion.
var ErrBadVersion = errors.New("cacheformat: unsupported major version")

// ErrMalformed is returned for a document so broken (not a JSON array, bad
// header) that no records could be recovered at all.
var ErrMalformed = errors.New("cacheformat: malformed cache document")

// Decode parses a complete cache document. A record that fails to parse on
// its own (bad numeric field, missing name, ...) is skipped rather than
// failing the whole decode; skipped records are returned via dropped so the
// caller can log them. A document-level problem (bad JSON, bad version)
// fails the whole decode.
func Decode(data []byte) (header WireHeader, records []WireDirRecord, dropped int, err error) {
	var top []json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return WireHeader{}, nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(top) < 3 {
		return WireHeader{}, nil, 0, ErrMalformed
	}

	var major, minor int64
	if err := json.Unmarshal(top[0], &major); err != nil {
		return WireHeader{}, nil, 0, fmt.Errorf("%w: major version: %v", ErrMalformed, err)
	}
	if major != MajorVersion {
		return WireHeader{}, nil, 0, ErrBadVersion
	}
	if err := json.Unmarshal(top[1], &minor); err != nil {
		return WireHeader{}, nil, 0, fmt.Errorf("%w: minor version: %v", ErrMalformed, err)
	}

	var rawHeader struct {
		Progname  string `json:"progname"`
		Progver   string `json:"progver"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(top[2], &rawHeader); err != nil {
		return WireHeader{}, nil, 0, fmt.Errorf("%w: metadata header: %v", ErrMalformed, err)
	}
	header = WireHeader{Progname: rawHeader.Progname, Progver: rawHeader.Progver, Timestamp: rawHeader.Timestamp}

	for _, raw := range top[3:] {
		rec, ok := decodeRecord(raw)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}

	return header, records, dropped, nil
}

func decodeRecord(raw json.RawMessage) (WireDirRecord, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil || len(elems) == 0 {
		return WireDirRecord{}, false
	}

	fields, ok := decodeRawFields(elems[0])
	if !ok || fields.name == "" {
		return WireDirRecord{}, false
	}

	dirHeader := WireDirHeader{
		Name:  fields.name,
		ASize: fields.asize,
		DSize: fields.dsize,
		Dev:   fields.dev,
		Ino:   fields.ino,
		Mtime: fields.mtime,
		Csum:  fields.csum,
	}

	rec := WireDirRecord{Header: dirHeader}
	for _, e := range elems[1:] {
		child, ok := decodeItem(e, fields.dev)
		if !ok {
			continue
		}
		rec.Children = append(rec.Children, child)
	}
	return rec, true
}

// decodeItem parses one ChildItem, either an object (file) or an array
// (shallow directory, possibly legacy-nested deeper than one level). Nested
// items are decoded recursively into Children at every depth; cachestore
// keeps only the first level of a record's children and never builds index
// entries from nested items, matching the flat-forest invariant.
func decodeItem(raw json.RawMessage, parentDev uint64) (WireChild, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return WireChild{}, false
	}

	if trimmed[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil || len(elems) == 0 {
			return WireChild{}, false
		}
		fields, ok := decodeRawFields(elems[0])
		if !ok || fields.name == "" {
			return WireChild{}, false
		}
		child := fieldsToWireChild(fields, parentDev)
		child.Flags |= FFDir
		for _, e := range elems[1:] {
			gc, ok := decodeItem(e, child.Dev)
			if !ok {
				continue
			}
			child.Children = append(child.Children, gc)
		}
		return child, true
	}

	fields, ok := decodeRawFields(raw)
	if !ok || fields.name == "" {
		return WireChild{}, false
	}
	return fieldsToWireChild(fields, parentDev), true
}

type rawFields struct {
	name      string
	asize     int64
	dsize     int64
	dev       uint64
	hasDev    bool
	ino       uint64
	mtime     uint64
	uid       uint32
	gid       uint32
	mode      uint32
	nlink     uint32
	hlnkc     bool
	readError bool
	excluded  string
	notreg    bool
	csum      uint64
}

type wireNumbers struct {
	Name      *string      `json:"name"`
	ASize     *json.Number `json:"asize"`
	DSize     *json.Number `json:"dsize"`
	Dev       *json.Number `json:"dev"`
	Ino       *json.Number `json:"ino"`
	Mtime     *json.Number `json:"mtime"`
	UID       *json.Number `json:"uid"`
	GID       *json.Number `json:"gid"`
	Mode      *json.Number `json:"mode"`
	Nlink     *json.Number `json:"nlink"`
	Hlnkc     *bool        `json:"hlnkc"`
	ReadError *bool        `json:"read_error"`
	Excluded  *string      `json:"excluded"`
	NotReg    *bool        `json:"notreg"`
	Csum      *json.Number `json:"csum"`
}

// decodeRawFields parses one item's field object. A field whose number
// overflows or can't be parsed at all drops the whole item (ok=false),
// matching the "treat as parse error for that record" rule for numeric
// range problems.
func decodeRawFields(raw json.RawMessage) (rawFields, bool) {
	var w wireNumbers
	if err := json.Unmarshal(raw, &w); err != nil {
		return rawFields{}, false
	}
	if w.Name == nil {
		return rawFields{}, false
	}

	var f rawFields
	f.name = *w.Name

	var err error
	if f.asize, err = numToInt64(w.ASize); err != nil {
		return rawFields{}, false
	}
	if f.dsize, err = numToInt64(w.DSize); err != nil {
		return rawFields{}, false
	}
	if w.Dev != nil {
		if f.dev, err = numToUint64(w.Dev); err != nil {
			return rawFields{}, false
		}
		f.hasDev = true
	}
	if f.ino, err = numToUint64AllowNil(w.Ino); err != nil {
		return rawFields{}, false
	}
	if f.mtime, err = numToUint64AllowNil(w.Mtime); err != nil {
		return rawFields{}, false
	}
	if u, err := numToUint64AllowNil(w.UID); err != nil || u > math.MaxUint32 {
		return rawFields{}, false
	} else {
		f.uid = uint32(u)
	}
	if u, err := numToUint64AllowNil(w.GID); err != nil || u > math.MaxUint32 {
		return rawFields{}, false
	} else {
		f.gid = uint32(u)
	}
	if u, err := numToUint64AllowNil(w.Mode); err != nil || u > math.MaxUint32 {
		return rawFields{}, false
	} else {
		f.mode = uint32(u)
	}
	if u, err := numToUint64AllowNil(w.Nlink); err != nil || u > math.MaxUint32 {
		return rawFields{}, false
	} else {
		f.nlink = uint32(u)
	}
	if u, err := numToUint64AllowNil(w.Csum); err != nil {
		return rawFields{}, false
	} else {
		f.csum = u
	}

	f.hlnkc = w.Hlnkc != nil && *w.Hlnkc
	f.readError = w.ReadError != nil && *w.ReadError
	f.notreg = w.NotReg != nil && *w.NotReg
	if w.Excluded != nil {
		f.excluded = *w.Excluded
	}

	return f, true
}

func fieldsToWireChild(f rawFields, parentDev uint64) WireChild {
	dev := f.dev
	if !f.hasDev {
		dev = parentDev
	}
	c := WireChild{
		Name:      f.name,
		ASize:     f.asize,
		DSize:     f.dsize,
		Dev:       dev,
		Ino:       f.ino,
		Mtime:     f.mtime,
		UID:       f.uid,
		GID:       f.gid,
		Mode:      f.mode,
		Nlink:     f.nlink,
		ReadError: f.readError,
		NotReg:    f.notreg,
	}
	if f.hlnkc {
		c.Flags |= FFHlnkc
	}
	c.Flags |= excludedFlag(f.excluded)
	if f.readError {
		c.Flags |= FFErr
	}
	return c
}

func excludedFlag(s string) Flags {
	switch s {
	case "pattern":
		return FFExl
	case "otherfs", "othfs":
		return FFOthFS
	case "kernfs":
		return FFKernFS
	case "frmlnk":
		return FFFrmlnk
	default:
		return 0
	}
}

// numToInt64 truncates a fractional JSON number, per the spec's permissive
// numeric parser; a nil (absent) field decodes as zero. A value outside the
// int64 range is an error.
func numToInt64(n *json.Number) (int64, error) {
	if n == nil {
		return 0, nil
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f < -9223372036854775808.0 || f >= 9223372036854775808.0 {
		return 0, fmt.Errorf("cacheformat: value out of range for signed field")
	}
	return int64(f), nil
}

func numToUint64(n *json.Number) (uint64, error) {
	if n == nil {
		return 0, nil
	}
	if v, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, fmt.Errorf("cacheformat: negative value for unsigned field")
	}
	if f >= 18446744073709551616.0 {
		return 0, fmt.Errorf("cacheformat: value out of range for unsigned field")
	}
	return uint64(f), nil
}

func numToUint64AllowNil(n *json.Number) (uint64, error) {
	if n == nil {
		return 0, nil
	}
	return numToUint64(n)
}
