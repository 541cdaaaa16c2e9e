// Package store implements the fixed-record persistent document index
// (spec §3 "Document record", §4.F). Records are packed, little-endian,
// and written whole so a reader never observes a torn record. The
// on-disk layout follows the teacher's pkg/slotcache binary-format idiom
// (fixed offsets, explicit encode/decode functions) generalized from a
// hashed slot cache down to a simple flat, append-only record file.
package store

import (
	"bytes"
	"encoding/binary"
)

// Field sizes (spec §3).
const (
	maxTitleLen   = 200
	maxAuthorsLen = 200
	maxPathLen    = 64
)

// Record field byte offsets within one fixed-size slot.
const (
	offKey     = 0  // int32
	offTitle   = 4  // [maxTitleLen]byte, NUL-terminated
	offAuthors = offTitle + maxTitleLen     // [maxAuthorsLen]byte, NUL-terminated
	offPath    = offAuthors + maxAuthorsLen // [maxPathLen]byte, NUL-terminated
	offYear    = offPath + maxPathLen       // uint32

	// RecordSize is the fixed on-disk size of one record (spec I1: file
	// length is always an integer multiple of this).
	RecordSize = offYear + 4
)

// tombstoneKey marks a deleted slot (spec §3: key == -1 denotes a
// tombstone).
const tombstoneKey int32 = -1

// Document is the decoded, in-memory form of a record.
type Document struct {
	Key     int32
	Title   string
	Authors string
	Path    string
	Year    uint32
}

// isTombstone reports whether d represents a tombstoned slot.
func (d Document) isTombstone() bool {
	return d.Key == tombstoneKey
}

// encodeRecord packs doc into a RecordSize-byte slot, truncating and
// NUL-terminating the three text fields (spec §4.I Add: "truncates
// title/authors/path to their maximum sizes").
func encodeRecord(doc Document) []byte {
	buf := make([]byte, RecordSize)

	binary.LittleEndian.PutUint32(buf[offKey:offKey+4], uint32(doc.Key)) //nolint:gosec // two's complement round-trip
	putCString(buf[offTitle:offTitle+maxTitleLen], doc.Title)
	putCString(buf[offAuthors:offAuthors+maxAuthorsLen], doc.Authors)
	putCString(buf[offPath:offPath+maxPathLen], doc.Path)
	binary.LittleEndian.PutUint32(buf[offYear:offYear+4], doc.Year)

	return buf
}

// decodeRecord unpacks a RecordSize-byte slot into a Document.
func decodeRecord(buf []byte) Document {
	return Document{
		Key:     int32(binary.LittleEndian.Uint32(buf[offKey : offKey+4])), //nolint:gosec // two's complement round-trip
		Title:   getCString(buf[offTitle : offTitle+maxTitleLen]),
		Authors: getCString(buf[offAuthors : offAuthors+maxAuthorsLen]),
		Path:    getCString(buf[offPath : offPath+maxPathLen]),
		Year:    binary.LittleEndian.Uint32(buf[offYear : offYear+4]),
	}
}

// emptyTombstoneRecord returns the all-zero-except-key record a Delete
// writes in place of a live record.
func emptyTombstoneRecord() []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(buf[offKey:offKey+4], uint32(tombstoneKey)) //nolint:gosec // two's complement round-trip

	return buf
}

// putCString copies s into dst, truncated to leave room for the
// terminating NUL; the remainder of dst is left zeroed (which doubles
// as the NUL terminator and trailing padding).
func putCString(dst []byte, s string) {
	max := len(dst) - 1
	if len(s) < max {
		max = len(s)
	}

	copy(dst, s[:max])
}

// getCString reads a NUL-terminated (or full-width) string out of a
// fixed-size field.
func getCString(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		return string(src[:i])
	}

	return string(src)
}
