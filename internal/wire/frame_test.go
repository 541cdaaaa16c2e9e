package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestBuilderCursorRoundTrip(t *testing.T) {
	t.Parallel()

	b := NewBuilder(64)
	require.NoError(t, b.AppendStr("hello"))
	require.NoError(t, b.AppendU32(42))

	cur := NewCursor(b.Payload())

	status, typ, val := cur.Next()
	require.Equal(t, Again, status)
	require.Equal(t, TypeStr, typ)
	require.Equal(t, "hello", string(val))

	status, typ, val = cur.Next()
	require.Equal(t, Again, status)
	require.Equal(t, TypeU32, typ)
	require.Len(t, val, 4)

	status, _, _ = cur.Next()
	require.Equal(t, Ok, status)
}

func TestBuilderRejectsOverflow(t *testing.T) {
	t.Parallel()

	b := NewBuilder(4)
	err := b.Append(TypeStr, []byte("toolong"))
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.Empty(t, b.Payload())
}

func TestCursorDetectsCorruptLength(t *testing.T) {
	t.Parallel()

	payload := []byte{TypeStr, 0xFF, 0xFF, 'a'} // declares 65535 bytes, has 1
	cur := NewCursor(payload)

	status, _, _ := cur.Next()
	require.Equal(t, Error, status)
}

func TestRequestFrameHeaderSelfConsistent(t *testing.T) {
	t.Parallel()

	b := NewBuilder(16)
	require.NoError(t, b.AppendU32(7))

	frame, err := BuildRequest('c', 1234, b)
	require.NoError(t, err)

	hdr, err := ParseRequestHeader(frame)
	require.NoError(t, err)

	require.Equal(t, int(hdr.Len), RequestHeaderSize+len(b.Payload()))
	require.Equal(t, byte('c'), hdr.Opcode)
	require.Equal(t, int32(1234), hdr.PID)
}

func TestResponseFrameHeaderSelfConsistent(t *testing.T) {
	t.Parallel()

	frame := SimpleResponse('s', Ok, "Document 0 indexed")

	hdr, err := ParseResponseHeader(frame)
	require.NoError(t, err)
	require.Equal(t, int(hdr.Len), len(frame))
	require.Equal(t, Ok, hdr.Status)

	msg, err := FirstString(frame[ResponseHeaderSize:], MaxFrameSize)
	require.NoError(t, err)
	require.Equal(t, "Document 0 indexed", msg)
}

func TestArgRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		typ ArgType
		tok string
	}{
		{ArgU32, "42"},
		{ArgStr, "p.txt"},
	}

	for _, tc := range cases {
		tlvType, value, err := EncodeArg(tc.typ, tc.tok)
		require.NoError(t, err)

		arg, err := DecodeArg(tc.typ, tlvType, value)
		require.NoError(t, err)

		switch tc.typ {
		case ArgU32:
			require.Equal(t, "42", itoa(arg.U32))
		case ArgStr:
			if diff := cmp.Diff(tc.tok, string(arg.Str)); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		}
	}
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}

	var buf [10]byte

	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}

	return string(buf[i:])
}

func TestEncodeArgRejectsBadU32(t *testing.T) {
	t.Parallel()

	_, _, err := EncodeArg(ArgU32, "")
	require.ErrorIs(t, err, ErrBadU32)

	_, _, err = EncodeArg(ArgU32, "not-a-number")
	require.ErrorIs(t, err, ErrBadU32)
}
