package store

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Sentinel errors, per the teacher's flat errors.go idiom of one
// exported sentinel per failure mode.
var (
	ErrAlreadyOpen   = errors.New("store: already initialized")
	ErrNegativeKey   = errors.New("store: negative key")
	ErrKeyOutOfRange = errors.New("store: key out of range")
	ErrNotLive       = errors.New("store: record is not live")
	ErrCorruptLength = errors.New("store: file length is not a multiple of record size")
	ErrLocked        = errors.New("store: already locked by another process")
)

// filePerms matches the teacher's convention of 0600 for files that hold
// only server-local state.
const filePerms = 0o600

// Store is a single-writer, many-reader fixed-record file (spec §4.F).
// The server process is the only writer across Append and Delete; it is
// not safe for concurrent writers, by design (spec §5).
type Store struct {
	path string
	file *os.File
}

// Init opens path read/write, creating it if absent, and takes a
// non-blocking exclusive advisory lock on it via unix.Flock — the
// single-writer guard spec §5 requires ("the persistent record file:
// single writer (parent), many concurrent readers"), adapted from the
// teacher's lock.go flock idiom (syscall.Flock there; unix.Flock here,
// since the domain stack already pulls in golang.org/x/sys for FIFO
// creation). Calling Init again on a path whose Store is still open
// fails with ErrLocked; Reopen on a Store that hasn't been Closed
// returns ErrAlreadyOpen (spec: "re-init without close fails with
// Error").
func Init(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, filePerms) //nolint:gosec // path is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()

		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}

		return nil, fmt.Errorf("store: flock %s: %w", path, err)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("store: seek %s: %w", path, err)
	}

	if size%RecordSize != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrCorruptLength, path, size)
	}

	return &Store{path: path, file: f}, nil
}

// Reopen re-initializes a Store value that was previously Closed. It
// returns ErrAlreadyOpen if called while the Store is still open (spec:
// "re-init without close fails with Error").
func (s *Store) Reopen() error {
	if s.file != nil {
		return ErrAlreadyOpen
	}

	reopened, err := Init(s.path)
	if err != nil {
		return err
	}

	*s = *reopened

	return nil
}

// Close closes the underlying file. After Close, Reopen may reopen the
// same Store value.
func (s *Store) Close() error {
	if s.file == nil {
		return nil
	}

	err := s.file.Close()
	s.file = nil

	return err
}

// Total returns fileSize / RecordSize: the count of live and
// tombstoned slots combined.
func (s *Store) Total() (int64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("store: stat: %w", err)
	}

	return info.Size() / RecordSize, nil
}

// Append seeks to end, derives the new key from the current length, and
// writes a full record with key := k (spec I1/I2: file stays a multiple
// of RecordSize, and the new slot's key equals its index).
func (s *Store) Append(doc Document) (int32, error) {
	size, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("store: seek end: %w", err)
	}

	if size%RecordSize != 0 {
		return 0, fmt.Errorf("%w: %d bytes", ErrCorruptLength, size)
	}

	key := int32(size / RecordSize) //nolint:gosec // file sizes here stay far below 2^31 records
	doc.Key = key

	if _, err := s.file.Write(encodeRecord(doc)); err != nil {
		return 0, fmt.Errorf("store: append: %w", err)
	}

	return key, nil
}

// Get reads the record at index k. It rejects negative or out-of-range
// keys, and returns ErrNotLive if the slot's stored key doesn't match k
// (e.g. a tombstone).
func (s *Store) Get(k int32) (Document, error) {
	if k < 0 {
		return Document{}, ErrNegativeKey
	}

	info, err := s.file.Stat()
	if err != nil {
		return Document{}, fmt.Errorf("store: stat: %w", err)
	}

	offset := int64(k) * RecordSize
	if offset+RecordSize > info.Size() {
		return Document{}, ErrKeyOutOfRange
	}

	buf := make([]byte, RecordSize)
	if _, err := s.file.ReadAt(buf, offset); err != nil {
		return Document{}, fmt.Errorf("store: read: %w", err)
	}

	doc := decodeRecord(buf)
	if doc.Key != k {
		return Document{}, ErrNotLive
	}

	return doc, nil
}

// Delete tombstones the record at index k: it requires the slot's
// stored key to equal k, then overwrites it with an all-zero record
// whose key is -1. A second Delete on the same key fails with
// ErrNotLive without modifying the file (idempotent in effect).
func (s *Store) Delete(k int32) error {
	if _, err := s.Get(k); err != nil {
		return err
	}

	offset := int64(k) * RecordSize
	if _, err := s.file.WriteAt(emptyTombstoneRecord(), offset); err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}

	return nil
}
