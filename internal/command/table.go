// Package command describes the static, process-lifetime opcode table:
// one row per opcode naming its flag, argument shape, and blocking
// behavior. The shape mirrors the teacher's internal/cli command
// records, generalized from a "one Command per CLI flag" table into a
// "one Command per wire opcode" table shared by both server and client.
package command

import "github.com/calvinalkan/dindex/internal/wire"

// Opcode identifies one of the six server operations.
type Opcode byte

const (
	Add        Opcode = 'a'
	Consult    Opcode = 'c'
	Delete     Opcode = 'd'
	ListCount  Opcode = 'l'
	Search     Opcode = 's'
	Shutdown   Opcode = 'f'
)

// Row describes one opcode: its CLI flag, expected argument types in
// order, the minimum and maximum argument counts, and whether its
// handler runs in the server process (blocking) or may be forked off to
// a worker (non-blocking).
type Row struct {
	Flag     string
	Opcode   Opcode
	Types    []wire.ArgType
	Min      int
	Blocking bool
}

// Max is the maximum argument count, i.e. len(Types).
func (r Row) Max() int { return len(r.Types) }

// Table is the fixed opcode → Row mapping (spec §4.E).
var Table = map[Opcode]Row{
	Add: {
		Flag:     "-a",
		Opcode:   Add,
		Types:    []wire.ArgType{wire.ArgStr, wire.ArgStr, wire.ArgU32, wire.ArgStr},
		Min:      4,
		Blocking: true,
	},
	Consult: {
		Flag:     "-c",
		Opcode:   Consult,
		Types:    []wire.ArgType{wire.ArgU32},
		Min:      1,
		Blocking: false,
	},
	Delete: {
		Flag:     "-d",
		Opcode:   Delete,
		Types:    []wire.ArgType{wire.ArgU32},
		Min:      1,
		Blocking: true,
	},
	ListCount: {
		Flag:     "-l",
		Opcode:   ListCount,
		Types:    []wire.ArgType{wire.ArgU32, wire.ArgStr},
		Min:      2,
		Blocking: false,
	},
	Search: {
		Flag:     "-s",
		Opcode:   Search,
		Types:    []wire.ArgType{wire.ArgStr, wire.ArgU32},
		Min:      1,
		Blocking: false,
	},
	Shutdown: {
		Flag:     "-f",
		Opcode:   Shutdown,
		Types:    nil,
		Min:      0,
		Blocking: true,
	},
}

// byFlag indexes Table by its CLI flag token, built once at init.
var byFlag = func() map[string]Row {
	m := make(map[string]Row, len(Table))
	for _, row := range Table {
		m[row.Flag] = row
	}

	return m
}()

// Lookup returns the row for an opcode and whether it was found.
func Lookup(op Opcode) (Row, bool) {
	row, ok := Table[op]
	return row, ok
}

// LookupFlag returns the row for a CLI flag token (e.g. "-a").
func LookupFlag(flag string) (Row, bool) {
	row, ok := byFlag[flag]
	return row, ok
}
