package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dindex/internal/command"
	"github.com/calvinalkan/dindex/internal/store"
	"github.com/calvinalkan/dindex/internal/wire"
)

func newTestDeps(t *testing.T) *Deps {
	t.Helper()

	dir := t.TempDir()

	st, err := store.Init(filepath.Join(dir, "index.bin"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	docroot := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docroot, 0o750))

	return &Deps{Store: st, DocRoot: docroot}
}

func buildRequestPayload(t *testing.T, row command.Row, toks []string) []byte {
	t.Helper()

	b := wire.NewBuilder(wire.MaxFrameSize - wire.RequestHeaderSize)

	for i, tok := range toks {
		tlvType, value, err := wire.EncodeArg(row.Types[i], tok)
		require.NoError(t, err)
		require.NoError(t, b.Append(tlvType, value))
	}

	return b.Payload()
}

func firstStringFromResponse(t *testing.T, frame []byte) string {
	t.Helper()

	msg, err := wire.FirstString(frame[wire.ResponseHeaderSize:], wire.MaxFrameSize)
	require.NoError(t, err)

	return msg
}

// TestScenarioAddConsultDeleteLifecycle walks spec §8 scenarios 1-3.
func TestScenarioAddConsultDeleteLifecycle(t *testing.T) {
	t.Parallel()

	deps := newTestDeps(t)
	require.NoError(t, os.WriteFile(filepath.Join(deps.DocRoot, "p.txt"), []byte("foo\nfoo bar\nbaz\n"), 0o600))

	addRow := command.Table[command.Add]
	payload := buildRequestPayload(t, addRow, []string{"T", "A", "2020", "p.txt"})

	frame, status := Dispatch(deps, addRow, payload)
	require.Equal(t, wire.Ok, status)
	require.Equal(t, "Document 0 indexed", firstStringFromResponse(t, frame))

	total, err := deps.Store.Total()
	require.NoError(t, err)
	require.Equal(t, int64(1), total)

	consultRow := command.Table[command.Consult]
	payload = buildRequestPayload(t, consultRow, []string{"0"})

	frame, status = Dispatch(deps, consultRow, payload)
	require.Equal(t, wire.Ok, status)

	cur := wire.NewCursor(frame[wire.ResponseHeaderSize:])

	want := []string{"Title: T", "Authors: A", "Year: 2020", "Path: p.txt"}
	for _, w := range want {
		st, typ, val := cur.Next()
		require.Equal(t, wire.Again, st)
		require.Equal(t, wire.TypeStr, typ)
		require.Equal(t, w, string(val))
	}

	deleteRow := command.Table[command.Delete]
	payload = buildRequestPayload(t, deleteRow, []string{"0"})

	frame, status = Dispatch(deps, deleteRow, payload)
	require.Equal(t, wire.Ok, status)
	require.Equal(t, "Index entry 0 deleted", firstStringFromResponse(t, frame))

	payload = buildRequestPayload(t, consultRow, []string{"0"})
	frame, status = Dispatch(deps, consultRow, payload)
	require.Equal(t, wire.Ok, status)
	require.Equal(t, "Document not found", firstStringFromResponse(t, frame))

	payload = buildRequestPayload(t, deleteRow, []string{"0"})
	frame, status = Dispatch(deps, deleteRow, payload)
	require.Equal(t, wire.Ok, status)
	require.Equal(t, "Index entry 0 not found", firstStringFromResponse(t, frame))
}

// TestScenarioListCount covers spec §8 scenario 4.
func TestScenarioListCount(t *testing.T) {
	t.Parallel()

	deps := newTestDeps(t)
	require.NoError(t, os.WriteFile(filepath.Join(deps.DocRoot, "p.txt"), []byte("foo\nfoo bar\nbaz\n"), 0o600))

	addRow := command.Table[command.Add]
	_, status := Dispatch(deps, addRow, buildRequestPayload(t, addRow, []string{"T", "A", "2020", "p.txt"}))
	require.Equal(t, wire.Ok, status)

	lcRow := command.Table[command.ListCount]
	frame, status := Dispatch(deps, lcRow, buildRequestPayload(t, lcRow, []string{"0", "foo"}))
	require.Equal(t, wire.Ok, status)

	cur := wire.NewCursor(frame[wire.ResponseHeaderSize:])
	st, typ, val := cur.Next()
	require.Equal(t, wire.Again, st)
	require.Equal(t, wire.TypeU32, typ)

	arg, err := wire.DecodeArg(wire.ArgU32, typ, val)
	require.NoError(t, err)
	require.Equal(t, uint32(2), arg.U32)
}

// TestScenarioShutdown covers spec §8 scenario 6.
func TestScenarioShutdown(t *testing.T) {
	t.Parallel()

	deps := newTestDeps(t)
	row := command.Table[command.Shutdown]

	frame, status := Dispatch(deps, row, nil)
	require.Equal(t, wire.Shutdown, status)
	require.Equal(t, "Server is shutting down", firstStringFromResponse(t, frame))
}

func TestSearchFindsMatchingDocumentsIndependentOfWorkerCount(t *testing.T) {
	t.Parallel()

	deps := newTestDeps(t)

	addRow := command.Table[command.Add]

	bodies := map[string]string{
		"a.txt": "needle here\n",
		"b.txt": "nothing to see\n",
		"c.txt": "needle again\n",
	}

	// Add in a fixed order so a.txt, b.txt, c.txt get keys 0, 1, 2.
	for _, path := range []string{"a.txt", "b.txt", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(deps.DocRoot, path), []byte(bodies[path]), 0o600))
		_, status := Dispatch(deps, addRow, buildRequestPayload(t, addRow, []string{"T", "A", "2000", path}))
		require.Equal(t, wire.Ok, status)
	}

	for _, workers := range []string{"1", "8"} {
		searchRow := command.Table[command.Search]
		frame, status := Dispatch(deps, searchRow, buildRequestPayload(t, searchRow, []string{"needle", workers}))
		require.Equal(t, wire.Ok, status)
		require.Equal(t, "0,2", firstStringFromResponse(t, frame))
	}
}

// TestSearchSkipsRecordsWithUnreadableBodies ensures a record pointing
// at a missing file contributes no match but does not abort the rest of
// the scan (spec §8's result set only counts live, readable matches).
func TestSearchSkipsRecordsWithUnreadableBodies(t *testing.T) {
	t.Parallel()

	deps := newTestDeps(t)

	addRow := command.Table[command.Add]

	require.NoError(t, os.WriteFile(filepath.Join(deps.DocRoot, "a.txt"), []byte("needle here\n"), 0o600))
	_, status := Dispatch(deps, addRow, buildRequestPayload(t, addRow, []string{"T", "A", "2000", "a.txt"}))
	require.Equal(t, wire.Ok, status)

	// This record's body was never written to disk.
	_, status = Dispatch(deps, addRow, buildRequestPayload(t, addRow, []string{"T", "A", "2000", "missing.txt"}))
	require.Equal(t, wire.Ok, status)

	require.NoError(t, os.WriteFile(filepath.Join(deps.DocRoot, "c.txt"), []byte("needle again\n"), 0o600))
	_, status = Dispatch(deps, addRow, buildRequestPayload(t, addRow, []string{"T", "A", "2000", "c.txt"}))
	require.Equal(t, wire.Ok, status)

	searchRow := command.Table[command.Search]
	frame, status := Dispatch(deps, searchRow, buildRequestPayload(t, searchRow, []string{"needle", "1"}))
	require.Equal(t, wire.Ok, status)
	require.Equal(t, "0,2", firstStringFromResponse(t, frame))
}

func TestDispatchRejectsTooFewArguments(t *testing.T) {
	t.Parallel()

	deps := newTestDeps(t)
	row := command.Table[command.Add]

	b := wire.NewBuilder(64)
	require.NoError(t, b.AppendStr("T"))

	_, status := Dispatch(deps, row, b.Payload())
	require.Equal(t, wire.Error, status)
}
