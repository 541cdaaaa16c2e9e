package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
)

// ArgType identifies the decoded shape of an Arg.
type ArgType int

const (
	ArgU32 ArgType = iota
	ArgStr
)

// Arg is the decoded tagged-union argument value. Str borrows its bytes
// from the frame that produced it; callers must not retain Str beyond
// the frame's lifetime without copying.
type Arg struct {
	Type ArgType
	U32  uint32
	Str  []byte
}

var (
	// ErrUnknownArgType is returned for an unrecognized wire TLV type.
	ErrUnknownArgType = errors.New("wire: unknown argument type")
	// ErrBadU32 is returned when a decimal token can't be parsed as a u32.
	ErrBadU32 = errors.New("wire: invalid u32 token")
	// ErrBadLen is returned when a decoded TLV's length doesn't match its type.
	ErrBadLen = errors.New("wire: bad argument length")
)

// EncodeArg turns a textual CLI token into a TLV (type, bytes) pair
// ready for Builder.Append, dispatched by the requested wire type.
//
// ArgU32 parses tok as a decimal, unsigned, 32-bit integer, rejecting
// empty, non-numeric, or out-of-range input. ArgStr forwards tok's bytes
// unchanged, bounded by the u16 TLV length field.
func EncodeArg(t ArgType, tok string) (byte, []byte, error) {
	switch t {
	case ArgU32:
		if tok == "" {
			return 0, nil, fmt.Errorf("%w: empty token", ErrBadU32)
		}

		v, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %q: %w", ErrBadU32, tok, err)
		}

		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(v))

		return TypeU32, buf[:], nil
	case ArgStr:
		if len(tok) > MaxFrameSize {
			return 0, nil, fmt.Errorf("%w: token too long", ErrTLVTooLarge)
		}

		return TypeStr, []byte(tok), nil
	default:
		return 0, nil, fmt.Errorf("%w: %d", ErrUnknownArgType, t)
	}
}

// DecodeArg decodes a raw (tlvType, value) pair, as delivered by Cursor,
// into a typed Arg according to the expected ArgType. ArgU32 requires
// len(value) == 4. ArgStr records a borrowed slice with no NUL
// assumption.
func DecodeArg(expect ArgType, tlvType byte, value []byte) (Arg, error) {
	switch expect {
	case ArgU32:
		if tlvType != TypeU32 {
			return Arg{}, fmt.Errorf("%w: expected u32 tlv", ErrBadLen)
		}

		if len(value) != 4 {
			return Arg{}, fmt.Errorf("%w: u32 must be 4 bytes, got %d", ErrBadLen, len(value))
		}

		return Arg{Type: ArgU32, U32: binary.LittleEndian.Uint32(value)}, nil
	case ArgStr:
		if tlvType != TypeStr {
			return Arg{}, fmt.Errorf("%w: expected str tlv", ErrBadLen)
		}

		return Arg{Type: ArgStr, Str: value}, nil
	default:
		return Arg{}, fmt.Errorf("%w: %d", ErrUnknownArgType, expect)
	}
}
