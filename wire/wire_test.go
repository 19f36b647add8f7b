package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	h := MessageHeader{Type: 300, Size: 42, Flags: HasHandle | HasSecurity, StampNs: 123456789}
	buf, err := h.Marshal()
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize)

	got, err := Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestMarshalRejectsOversizedSize(t *testing.T) {
	h := MessageHeader{Size: MaxDataLen + 1}
	_, err := h.Marshal()
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestUnmarshalRejectsShortBuffer(t *testing.T) {
	_, err := Unmarshal(make([]byte, HeaderSize-1))
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestReservedFieldAlwaysEncodesAsZero(t *testing.T) {
	h := MessageHeader{Type: 1, Size: 0, Flags: HasHandle}
	buf, err := h.Marshal()
	require.NoError(t, err)
	require.Equal(t, byte(0), buf[12])
	require.Equal(t, byte(0), buf[13])
	require.Equal(t, byte(0), buf[14])
	require.Equal(t, byte(0), buf[15])
}
