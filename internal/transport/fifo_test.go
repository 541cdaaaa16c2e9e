package transport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dindex/internal/wire"
)

func TestServerPathAndClientPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, filepath.Join("/tmp", "server.fifo"), ServerPath("/tmp"))
	require.Equal(t, filepath.Join("/tmp", "client_42.fifo"), ClientPath("/tmp", 42))
}

func TestEnsureFIFOIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "x.fifo")

	require.NoError(t, EnsureFIFO(path))
	require.NoError(t, EnsureFIFO(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.True(t, info.Mode()&os.ModeNamedPipe != 0)
}

func TestRemoveFIFOIgnoresNotExist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, RemoveFIFO(filepath.Join(dir, "missing.fifo")))
}

// TestServerClientRoundTrip exercises a full request/reply cycle over
// real named pipes: a client sends a request, the server reads it and
// replies on the client's private FIFO, and the client reads the reply.
func TestServerClientRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	srv, err := ListenServer(dir)
	require.NoError(t, err)

	t.Cleanup(func() { _ = srv.Shutdown() })

	cli, err := Dial(dir)
	require.NoError(t, err)

	t.Cleanup(func() { _ = cli.Close() })

	b := wire.NewBuilder(64)
	require.NoError(t, b.AppendStr("p.txt"))

	req, err := wire.BuildRequest(byte('c'), int32(cli.PID()), b) //nolint:gosec // test PID fits int32
	require.NoError(t, err)

	done := make(chan struct{})

	go func() {
		defer close(done)

		header, frame, readErr := srv.ReadRequest()
		require.NoError(t, readErr)
		require.Equal(t, byte('c'), header.Opcode)
		require.Equal(t, int32(cli.PID()), header.PID) //nolint:gosec // test PID fits int32

		reply := wire.SimpleResponse(byte('c'), wire.Ok, "ok")
		require.NoError(t, Reply(dir, int(header.PID), reply))
		_ = frame
	}()

	require.NoError(t, cli.Send(req))

	// Reply blocks opening the reply FIFO until the client opens it for
	// reading, so the client must read before waiting on the server side.
	respHeader, respFrame, err := cli.ReadReply()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server goroutine did not finish in time")
	}

	require.NoError(t, err)
	require.Equal(t, wire.Ok, respHeader.Status)

	msg, err := wire.FirstString(respFrame[wire.ResponseHeaderSize:], wire.MaxFrameSize)
	require.NoError(t, err)
	require.Equal(t, "ok", msg)
}
