package dispatch

import (
	"fmt"

	"github.com/calvinalkan/dindex/internal/command"
	"github.com/calvinalkan/dindex/internal/docs"
	"github.com/calvinalkan/dindex/internal/store"
	"github.com/calvinalkan/dindex/internal/wire"
)

// handleAdd truncates title/authors/path to their maximum sizes via the
// store's own NUL-terminated encoding, appends the document, and replies
// with the newly assigned key (spec §4.I Add).
func handleAdd(deps *Deps, args []wire.Arg) ([]byte, wire.Status) {
	doc := store.Document{
		Title:   string(args[0].Str),
		Authors: string(args[1].Str),
		Year:    args[2].U32,
		Path:    string(args[3].Str),
	}

	key, err := deps.Store.Append(doc)
	if err != nil {
		return wire.SimpleResponse(byte(command.Add), wire.Ok, "Could not index document"), wire.Ok
	}

	msg := fmt.Sprintf("Document %d indexed", key)

	return wire.SimpleResponse(byte(command.Add), wire.Ok, msg), wire.Ok
}

// handleConsult loads the record named by args[0]; on success it emits
// four Str TLVs (Title/Authors/Year/Path); on failure it replies with a
// "not found" message. Per spec §9(c) the handler always returns Ok —
// the client distinguishes success from "not found" by payload content,
// not by status.
func handleConsult(deps *Deps, args []wire.Arg) ([]byte, wire.Status) {
	key := int32(args[0].U32) //nolint:gosec // keys are small, non-negative in practice

	doc, err := deps.Store.Get(key)
	if err != nil {
		return wire.SimpleResponse(byte(command.Consult), wire.Ok, "Document not found"), wire.Ok
	}

	b := wire.NewBuilder(wire.MaxFrameSize - wire.ResponseHeaderSize)
	_ = b.AppendStr(fmt.Sprintf("Title: %s", doc.Title))
	_ = b.AppendStr(fmt.Sprintf("Authors: %s", doc.Authors))
	_ = b.AppendStr(fmt.Sprintf("Year: %d", doc.Year))
	_ = b.AppendStr(fmt.Sprintf("Path: %s", doc.Path))

	frame, err := wire.BuildResponse(byte(command.Consult), wire.Ok, b)
	if err != nil {
		return wire.SimpleResponse(byte(command.Consult), wire.Ok, "Document not found"), wire.Ok
	}

	return frame, wire.Ok
}

// handleDelete attempts to tombstone args[0] and replies with a
// descriptive message regardless of outcome (spec §4.I Delete).
func handleDelete(deps *Deps, args []wire.Arg) ([]byte, wire.Status) {
	key := int32(args[0].U32) //nolint:gosec // keys are small, non-negative in practice

	if err := deps.Store.Delete(key); err != nil {
		msg := fmt.Sprintf("Index entry %d not found", key)
		return wire.SimpleResponse(byte(command.Delete), wire.Ok, msg), wire.Ok
	}

	msg := fmt.Sprintf("Index entry %d deleted", key)

	return wire.SimpleResponse(byte(command.Delete), wire.Ok, msg), wire.Ok
}

// handleListCount loads the record named by args[0] to resolve its
// path, counts lines containing args[1], and replies with one U32 TLV.
func handleListCount(deps *Deps, args []wire.Arg) ([]byte, wire.Status) {
	key := int32(args[0].U32) //nolint:gosec // keys are small, non-negative in practice

	doc, err := deps.Store.Get(key)
	if err != nil {
		return nil, wire.Error
	}

	path, err := docPath(deps.DocRoot, doc)
	if err != nil {
		return nil, wire.Error
	}

	count, err := docs.ScanKeyword(path, args[1].Str, false)
	if err != nil {
		return nil, wire.Error
	}

	b := wire.NewBuilder(16)
	if err := b.AppendU32(uint32(count)); err != nil { //nolint:gosec // line counts fit comfortably in u32
		return nil, wire.Error
	}

	frame, err := wire.BuildResponse(byte(command.ListCount), wire.Ok, b)
	if err != nil {
		return nil, wire.Error
	}

	return frame, wire.Ok
}

// handleShutdown replies that the server is shutting down and signals
// the loop to terminate after the reply is sent.
func handleShutdown(_ *Deps, _ []wire.Arg) ([]byte, wire.Status) {
	return wire.SimpleResponse(byte(command.Shutdown), wire.Ok, "Server is shutting down"), wire.Shutdown
}
