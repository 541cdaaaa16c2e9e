package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/calvinalkan/dindex/internal/command"
	"github.com/calvinalkan/dindex/internal/config"
	"github.com/calvinalkan/dindex/internal/transport"
	"github.com/calvinalkan/dindex/internal/wire"
)

var (
	errUnknownFlag = errors.New("dclient: unknown command flag")
	errArgCount    = errors.New("dclient: wrong number of arguments")
	errTransport   = errors.New("dclient: transport error")
)

// sendOneRequest builds a single request frame from tokens (flag
// followed by its arguments), sends it over the FIFO transport
// described by cfg, waits for the reply, prints it to stdout, and
// returns a process exit code (0 on a received reply, non-zero on a
// transport or protocol error, per spec §6).
func sendOneRequest(cfg config.Config, tokens []string) (int, error) {
	frame, err := buildRequest(tokens)
	if err != nil {
		return 1, err
	}

	cli, err := transport.Dial(cfg.FIFODir)
	if err != nil {
		return 1, fmt.Errorf("%w: %w", errTransport, err)
	}

	defer func() { _ = cli.Close() }()

	if err := cli.Send(frame); err != nil {
		return 1, fmt.Errorf("%w: %w", errTransport, err)
	}

	_, respFrame, err := cli.ReadReply()
	if err != nil {
		return 1, fmt.Errorf("%w: %w", errTransport, err)
	}

	printReply(os.Stdout, respFrame)

	return 0, nil
}

// buildRequest looks up tokens[0] as a command flag and encodes
// tokens[1:] against its row's argument types.
func buildRequest(tokens []string) ([]byte, error) {
	row, ok := command.LookupFlag(tokens[0])
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownFlag, tokens[0])
	}

	args := tokens[1:]
	if len(args) < row.Min || len(args) > row.Max() {
		return nil, fmt.Errorf("%w: %s wants %d-%d, got %d", errArgCount, row.Flag, row.Min, row.Max(), len(args))
	}

	b := wire.NewBuilder(wire.MaxFrameSize - wire.RequestHeaderSize)

	for i, tok := range args {
		tlvType, value, err := wire.EncodeArg(row.Types[i], tok)
		if err != nil {
			return nil, err
		}

		if err := b.Append(tlvType, value); err != nil {
			return nil, err
		}
	}

	return wire.BuildRequest(byte(row.Opcode), int32(os.Getpid()), b) //nolint:gosec // pid fits int32 in practice
}

// printReply walks the response payload's TLVs and prints one line per
// value: Str values verbatim, U32 values as decimal.
func printReply(w *os.File, frame []byte) {
	if len(frame) < wire.ResponseHeaderSize {
		return
	}

	cur := wire.NewCursor(frame[wire.ResponseHeaderSize:])

	var lines []string

	for {
		status, tlvType, value := cur.Next()
		if status != wire.Again {
			break
		}

		switch tlvType {
		case wire.TypeStr:
			lines = append(lines, string(value))
		case wire.TypeU32:
			if len(value) == 4 {
				v := uint32(value[0]) | uint32(value[1])<<8 | uint32(value[2])<<16 | uint32(value[3])<<24
				lines = append(lines, strconv.FormatUint(uint64(v), 10))
			}
		}
	}

	fmt.Fprintln(w, strings.Join(lines, "\n")) //nolint:errcheck // stdout write failure is unactionable here
}
