package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame size limits (spec §4.B): total frame size never exceeds 65535
// bytes, matching the u16 length field.
const (
	MaxFrameSize = 65535

	// RequestHeaderSize is sizeof({len:u16, opcode:u8, pid:i32}), packed.
	RequestHeaderSize = 7
	// ResponseHeaderSize is sizeof({len:u16, opcode:u8, status:u8}), packed.
	ResponseHeaderSize = 4

	// TLVHeaderSize is sizeof({type:u8, len:u16}).
	TLVHeaderSize = 3
)

// TLV type tags used by the argument codec (§4.D) and handler payloads.
const (
	TypeU32 byte = 1
	TypeStr byte = 2
)

var (
	// ErrCapacityExceeded is returned by Builder.Append when the payload
	// would exceed the builder's declared capacity.
	ErrCapacityExceeded = errors.New("wire: tlv append exceeds capacity")
	// ErrFrameTooLarge is returned when a frame would exceed MaxFrameSize.
	ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")
	// ErrTLVTooLarge is returned when a single TLV's value exceeds 65535 bytes.
	ErrTLVTooLarge = errors.New("wire: tlv value too large")
	// ErrTruncated is returned by boundary reads when a declared length
	// falls below the minimum header size or implies a corrupt frame.
	ErrTruncated = errors.New("wire: truncated or corrupt frame")
)

// Builder accumulates TLVs into a bounded payload buffer. The zero value
// is not usable; construct with NewBuilder.
//
// Failure semantics: a failed Append never partially mutates the
// builder's payload — callers either observe a fully appended TLV or an
// unchanged buffer and an error.
type Builder struct {
	payload  []byte
	capacity int
}

// NewBuilder starts an empty payload with capacity cap bytes (excluding
// whichever frame header will eventually wrap it).
func NewBuilder(capacity int) *Builder {
	return &Builder{payload: make([]byte, 0, capacity), capacity: capacity}
}

// Append adds one TLV of (tlvType, value) to the payload. It fails with
// ErrTLVTooLarge if value is too long to encode, or ErrCapacityExceeded
// if appending it would overflow the builder's declared capacity.
func (b *Builder) Append(tlvType byte, value []byte) error {
	if len(value) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrTLVTooLarge, len(value))
	}

	need := TLVHeaderSize + len(value)
	if len(b.payload)+need > b.capacity {
		return fmt.Errorf("%w: need %d, have %d of %d", ErrCapacityExceeded, need, len(b.payload), b.capacity)
	}

	buf := make([]byte, need)
	buf[0] = tlvType
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(value))) //nolint:gosec // bounded above
	copy(buf[TLVHeaderSize:], value)

	b.payload = append(b.payload, buf...)

	return nil
}

// AppendStr is a convenience wrapper for Append(TypeStr, []byte(s)).
func (b *Builder) AppendStr(s string) error {
	return b.Append(TypeStr, []byte(s))
}

// AppendU32 is a convenience wrapper for Append(TypeU32, ...) with the
// value encoded little-endian.
func (b *Builder) AppendU32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)

	return b.Append(TypeU32, buf[:])
}

// Payload returns the built payload bytes so far.
func (b *Builder) Payload() []byte {
	return b.payload
}

// BuildRequest finishes a request frame: the 7-byte header followed by
// the builder's payload.
func BuildRequest(opcode byte, pid int32, b *Builder) ([]byte, error) {
	return buildFrame(RequestHeaderSize, b.Payload(), func(buf []byte, total uint16) {
		binary.LittleEndian.PutUint16(buf[0:2], total)
		buf[2] = opcode
		binary.LittleEndian.PutUint32(buf[3:7], uint32(pid)) //nolint:gosec // two's complement round-trip
	})
}

// BuildResponse finishes a response frame: the 4-byte header followed by
// the builder's payload.
func BuildResponse(opcode byte, status Status, b *Builder) ([]byte, error) {
	return buildFrame(ResponseHeaderSize, b.Payload(), func(buf []byte, total uint16) {
		binary.LittleEndian.PutUint16(buf[0:2], total)
		buf[2] = opcode
		buf[3] = byte(status)
	})
}

func buildFrame(headerSize int, payload []byte, writeHeader func(buf []byte, total uint16)) ([]byte, error) {
	total := headerSize + len(payload)
	if total > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, total)
	}

	frame := make([]byte, total)
	writeHeader(frame[:headerSize], uint16(total)) //nolint:gosec // bounded above
	copy(frame[headerSize:], payload)

	return frame, nil
}

// SimpleResponse builds a response frame carrying exactly one Str TLV,
// the common "human readable message" reply shape used by most handlers.
func SimpleResponse(opcode byte, status Status, message string) []byte {
	b := NewBuilder(TLVHeaderSize + len(message))
	// A message built from a Go string by this package's own caller can
	// never fail to append into a builder sized for exactly that string.
	_ = b.AppendStr(message)

	frame, _ := BuildResponse(opcode, status, b)

	return frame
}

// RequestHeader is the decoded fixed portion of a request frame.
type RequestHeader struct {
	Len    uint16
	Opcode byte
	PID    int32
}

// ParseRequestHeader decodes the 7-byte request header.
func ParseRequestHeader(buf []byte) (RequestHeader, error) {
	if len(buf) < RequestHeaderSize {
		return RequestHeader{}, ErrTruncated
	}

	h := RequestHeader{
		Len:    binary.LittleEndian.Uint16(buf[0:2]),
		Opcode: buf[2],
		PID:    int32(binary.LittleEndian.Uint32(buf[3:7])), //nolint:gosec // two's complement round-trip
	}
	if int(h.Len) < RequestHeaderSize || int(h.Len) > MaxFrameSize {
		return RequestHeader{}, ErrTruncated
	}

	return h, nil
}

// ResponseHeader is the decoded fixed portion of a response frame.
type ResponseHeader struct {
	Len    uint16
	Opcode byte
	Status Status
}

// ParseResponseHeader decodes the 4-byte response header.
func ParseResponseHeader(buf []byte) (ResponseHeader, error) {
	if len(buf) < ResponseHeaderSize {
		return ResponseHeader{}, ErrTruncated
	}

	h := ResponseHeader{
		Len:    binary.LittleEndian.Uint16(buf[0:2]),
		Opcode: buf[2],
		Status: Status(buf[3]),
	}
	if int(h.Len) < ResponseHeaderSize || int(h.Len) > MaxFrameSize {
		return ResponseHeader{}, ErrTruncated
	}

	return h, nil
}

// Cursor walks TLVs in a borrowed payload slice. The zero value is not
// usable; construct with NewCursor.
type Cursor struct {
	payload []byte
	pos     int
}

// NewCursor initializes a cursor over a borrowed payload slice. The
// slice must outlive the cursor and any TLV value slices it returns.
func NewCursor(payload []byte) *Cursor {
	return &Cursor{payload: payload}
}

// Next returns (Again, type, value) when a TLV was delivered, (Ok, 0,
// nil) when the payload is exhausted cleanly, or (Error, 0, nil) when
// the declared TLV length overshoots the remaining payload.
func (c *Cursor) Next() (Status, byte, []byte) {
	if c.pos == len(c.payload) {
		return Ok, 0, nil
	}

	if c.pos+TLVHeaderSize > len(c.payload) {
		return Error, 0, nil
	}

	tlvType := c.payload[c.pos]
	tlvLen := int(binary.LittleEndian.Uint16(c.payload[c.pos+1 : c.pos+3]))
	start := c.pos + TLVHeaderSize

	if start+tlvLen > len(c.payload) {
		return Error, 0, nil
	}

	value := c.payload[start : start+tlvLen]
	c.pos = start + tlvLen

	return Again, tlvType, value
}

// FirstString extracts the first argument of a payload as a non-empty
// Str TLV, bounded by maxLen. It requires the first TLV to be of type
// Str; anything else (including U32-first or an empty payload) is an
// error.
func FirstString(payload []byte, maxLen int) (string, error) {
	cur := NewCursor(payload)

	status, tlvType, value := cur.Next()
	if status != Again {
		return "", ErrTruncated
	}

	if tlvType != TypeStr {
		return "", fmt.Errorf("%w: first argument is not a string", ErrTruncated)
	}

	if len(value) == 0 {
		return "", fmt.Errorf("%w: empty string argument", ErrTruncated)
	}

	if len(value) > maxLen {
		return "", fmt.Errorf("%w: string argument exceeds %d bytes", ErrTruncated, maxLen)
	}

	return string(value), nil
}
