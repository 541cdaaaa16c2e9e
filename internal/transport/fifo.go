// Package transport implements the FIFO-based request/reply channel
// described in spec §4.C/§6: a single well-known server FIFO receiving
// all requests, and one private reply FIFO per client named by PID. The
// teacher's lock.go reaches for syscall-level primitives (flock) via
// golang.org/x/sys-equivalent stdlib syscalls for a similarly
// low-level, must-not-hide-the-syscall concern; transport follows the
// same register, using golang.org/x/sys/unix directly for Mkfifo since
// the standard library has no portable named-pipe creation call.
package transport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/dindex/internal/wire"
)

// FIFOPerm is the permission mode for both the server FIFO and each
// client's private reply FIFO (spec §6: "Permissions 0600").
const FIFOPerm = 0o600

// ServerFIFOName is the well-known request endpoint's base name.
const ServerFIFOName = "server.fifo"

var (
	ErrMkfifo    = errors.New("transport: mkfifo failed")
	ErrOpenFIFO  = errors.New("transport: open fifo failed")
	ErrReadFrame = errors.New("transport: read frame failed")
)

// ServerPath returns the well-known server request FIFO path under dir.
func ServerPath(dir string) string {
	return filepath.Join(dir, ServerFIFOName)
}

// ClientPath returns the private reply FIFO path for the client whose
// PID is pid, under dir — "/tmp/client_<pid>.fifo" per spec §6.
func ClientPath(dir string, pid int) string {
	return filepath.Join(dir, fmt.Sprintf("client_%d.fifo", pid))
}

// EnsureFIFO creates path as a FIFO with FIFOPerm if it does not already
// exist. It is not an error for the FIFO to already exist (the server
// FIFO is created once at startup and reused across requests).
func EnsureFIFO(path string) error {
	err := unix.Mkfifo(path, FIFOPerm)
	if err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("%w: %s: %w", ErrMkfifo, path, err)
	}

	return nil
}

// RemoveFIFO removes path, ignoring a not-exist error, matching spec
// §6's "endpoints are removed by their respective owners at shutdown."
func RemoveFIFO(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("transport: remove %s: %w", path, err)
	}

	return nil
}

// Server is the listening end of the server FIFO: it owns the request
// endpoint and reads one request frame per call to ReadRequest.
type Server struct {
	dir  string
	path string
	file *os.File
}

// ListenServer creates (if needed) and opens the well-known server FIFO
// under dir for reading. The FIFO is opened read-write internally so the
// server's own fd never observes EOF when the last writer closes — a
// standard FIFO idiom, since a read-only open would otherwise return EOF
// between clients and require re-opening on every request.
func ListenServer(dir string) (*Server, error) {
	path := ServerPath(dir)

	if err := EnsureFIFO(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenFIFO, path, err)
	}

	return &Server{dir: dir, path: path, file: f}, nil
}

// ReadRequest blocks until one full request frame is available and
// returns its decoded header plus the raw frame bytes (header included).
// It returns ErrReadFrame wrapping the underlying cause on a short read
// or I/O error; per spec §7, the caller should log and drop the request
// rather than reply.
func (s *Server) ReadRequest() (wire.RequestHeader, []byte, error) {
	var lenBuf [2]byte

	if _, err := readFull(s.file, lenBuf[:]); err != nil {
		return wire.RequestHeader{}, nil, fmt.Errorf("%w: %w", ErrReadFrame, err)
	}

	total := int(lenBuf[0]) | int(lenBuf[1])<<8
	if total < wire.RequestHeaderSize || total > wire.MaxFrameSize {
		return wire.RequestHeader{}, nil, fmt.Errorf("%w: %w", ErrReadFrame, wire.ErrTruncated)
	}

	frame := make([]byte, total)
	frame[0], frame[1] = lenBuf[0], lenBuf[1]

	if _, err := readFull(s.file, frame[2:]); err != nil {
		return wire.RequestHeader{}, nil, fmt.Errorf("%w: %w", ErrReadFrame, err)
	}

	header, err := wire.ParseRequestHeader(frame)
	if err != nil {
		return wire.RequestHeader{}, nil, fmt.Errorf("%w: %w", ErrReadFrame, err)
	}

	return header, frame, nil
}

// Close closes the server's own fd. The FIFO path itself is removed by
// Shutdown, not Close, so a server can be closed and reopened without
// losing the well-known path mid-run (not exercised today, but keeps
// Close and Shutdown separate concerns).
func (s *Server) Close() error {
	return s.file.Close()
}

// Shutdown closes and removes the server FIFO, per spec §6.
func (s *Server) Shutdown() error {
	closeErr := s.Close()

	removeErr := RemoveFIFO(s.path)
	if closeErr != nil {
		return closeErr
	}

	return removeErr
}

// Reply opens the requesting client's private reply FIFO write-only,
// writes frame, and closes it — the exact sequence spec §6 describes
// ("the server opens write-only to send the single reply, then
// closes").  Per spec §7 ("Transport reply failure: logged, not
// retried"), callers should log a returned error rather than retry.
func Reply(dir string, pid int, frame []byte) error {
	path := ClientPath(dir, pid)

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOpenFIFO, path, err)
	}

	defer func() { _ = f.Close() }()

	if _, err := f.Write(frame); err != nil {
		return fmt.Errorf("transport: reply write: %w", err)
	}

	return nil
}

// Client is the requesting end: it creates its own private reply FIFO,
// sends one request to the server's well-known FIFO, and reads exactly
// one reply frame.
type Client struct {
	dir  string
	pid  int
	path string
}

// Dial creates this process's private reply FIFO under dir, named by
// its own PID.
func Dial(dir string) (*Client, error) {
	pid := os.Getpid()
	path := ClientPath(dir, pid)

	if err := EnsureFIFO(path); err != nil {
		return nil, err
	}

	return &Client{dir: dir, pid: pid, path: path}, nil
}

// PID returns the client's own process ID, used as the request frame's
// pid field (spec §3) and to name its reply FIFO.
func (c *Client) PID() int { return c.pid }

// Send writes one request frame to the server's well-known FIFO.
func (c *Client) Send(request []byte) error {
	path := ServerPath(c.dir)

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOpenFIFO, path, err)
	}

	defer func() { _ = f.Close() }()

	if _, err := f.Write(request); err != nil {
		return fmt.Errorf("transport: send write: %w", err)
	}

	return nil
}

// ReadReply opens this client's own reply FIFO read-only and blocks
// until the server writes and closes exactly one reply frame.
func (c *Client) ReadReply() (wire.ResponseHeader, []byte, error) {
	f, err := os.OpenFile(c.path, os.O_RDONLY, 0)
	if err != nil {
		return wire.ResponseHeader{}, nil, fmt.Errorf("%w: %s: %w", ErrOpenFIFO, c.path, err)
	}
	defer func() { _ = f.Close() }()

	var lenBuf [2]byte

	if _, err := readFull(f, lenBuf[:]); err != nil {
		return wire.ResponseHeader{}, nil, fmt.Errorf("%w: %w", ErrReadFrame, err)
	}

	total := int(lenBuf[0]) | int(lenBuf[1])<<8
	if total < wire.ResponseHeaderSize || total > wire.MaxFrameSize {
		return wire.ResponseHeader{}, nil, fmt.Errorf("%w: %w", ErrReadFrame, wire.ErrTruncated)
	}

	frame := make([]byte, total)
	frame[0], frame[1] = lenBuf[0], lenBuf[1]

	if _, err := readFull(f, frame[2:]); err != nil {
		return wire.ResponseHeader{}, nil, fmt.Errorf("%w: %w", ErrReadFrame, err)
	}

	header, err := wire.ParseResponseHeader(frame)
	if err != nil {
		return wire.ResponseHeader{}, nil, fmt.Errorf("%w: %w", ErrReadFrame, err)
	}

	return header, frame, nil
}

// Close removes this client's private reply FIFO, per spec §6.
func (c *Client) Close() error {
	return RemoveFIFO(c.path)
}

// readFull reads exactly len(buf) bytes, retrying on EINTR per spec
// §7's "local recovery is limited to retrying on EINTR and EAGAIN."
func readFull(f *os.File, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := f.Read(buf[n:])
		n += m

		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}

			return n, err
		}

		if m == 0 {
			return n, fmt.Errorf("transport: unexpected eof after %d of %d bytes", n, len(buf))
		}
	}

	return n, nil
}
