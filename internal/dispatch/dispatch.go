// Package dispatch decodes request arguments against the command table
// and invokes the matching handler (spec §4.H, §4.I), including the
// parallel keyword-search fan-out (spec §5).
package dispatch

import (
	"github.com/calvinalkan/dindex/internal/command"
	"github.com/calvinalkan/dindex/internal/docs"
	"github.com/calvinalkan/dindex/internal/store"
	"github.com/calvinalkan/dindex/internal/wire"
)

// Deps are the collaborators a handler needs. Handlers are stateless
// beyond the current request; Deps is passed in rather than held in
// package globals, per the teacher's explicit-owned-resource idiom
// (Server values passed by reference, no hidden globals).
type Deps struct {
	Store   *store.Store
	DocRoot string

	// MaxSearchWorkers bounds the §5 fan-out; 0 selects the default
	// (10 * runtime.NumCPU()).
	MaxSearchWorkers int
}

// Dispatch walks the TLV cursor for row.Max() iterations, decoding each
// position against row.Types, then invokes the handler for row.Opcode.
// It returns the response frame and Shutdown if the handler signaled
// shutdown, Error if argument decoding failed or the ListCount/Search
// handler could not produce a result (missing record, unreadable body,
// store error), or Ok otherwise — per
// spec §9(c), handlers like Consult return Ok even for a "not found"
// result; the human-readable outcome lives in the response payload, not
// in the status byte.
func Dispatch(deps *Deps, row command.Row, payload []byte) ([]byte, wire.Status) {
	args, ok := decodeArgs(row, payload)
	if !ok {
		return nil, wire.Error
	}

	switch row.Opcode {
	case command.Add:
		return handleAdd(deps, args)
	case command.Consult:
		return handleConsult(deps, args)
	case command.Delete:
		return handleDelete(deps, args)
	case command.ListCount:
		return handleListCount(deps, args)
	case command.Search:
		return handleSearch(deps, args)
	case command.Shutdown:
		return handleShutdown(deps, args)
	default:
		return nil, wire.Error
	}
}

// decodeArgs implements the per-position walk described in spec §4.H.
func decodeArgs(row command.Row, payload []byte) ([]wire.Arg, bool) {
	cur := wire.NewCursor(payload)
	args := make([]wire.Arg, 0, row.Max())

	for i := 0; i < row.Max(); i++ {
		status, tlvType, value := cur.Next()

		switch status {
		case wire.Error:
			return nil, false
		case wire.Ok:
			if i >= row.Min {
				return args, true
			}

			return nil, false
		case wire.Again:
			arg, err := wire.DecodeArg(row.Types[i], tlvType, value)
			if err != nil {
				return nil, false
			}

			args = append(args, arg)
		case wire.Shutdown:
			return nil, false
		}
	}

	return args, true
}

// docPath resolves a record's on-disk body path under the document
// root, used by both ListCount and Search.
func docPath(docroot string, doc store.Document) (string, error) {
	return docs.BuildPath(docroot, doc.Path)
}
