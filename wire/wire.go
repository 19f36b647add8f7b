// Package wire defines the fixed, host-endian on-the-wire framing for a
// message crossing a connection boundary that isn't purely in-process
// (e.g. a debug/trace dump, or a future remote transport) — the
// in-process ipc package itself passes *ipc.Message_t directly and
// never needs to serialize it.
package wire

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the fixed length of a MessageHeader once encoded: four
// uint32 fields plus one uint64, packed with no padding.
const HeaderSize = 4 + 4 + 4 + 4 + 8

var ErrShortBuffer = errors.New("wire: buffer too short")
var ErrTooLarge = errors.New("wire: data length exceeds maximum")

// MaxDataLen mirrors ipc.MaxMessageData; duplicated here (rather than
// imported) so this package stays usable without pulling in the ipc
// module's dependency graph for a pure codec concern.
const MaxDataLen = 16 * 1024

// Flag bits carried in MessageHeader.Flags.
const (
	HasHandle   uint32 = 1 << 0
	HasSecurity uint32 = 1 << 1
)

// hostEndian is the encoding matching this process's native byte
// order, since the header is specified as host-endian rather than a
// fixed wire endianness — both ends of this codec run on the same
// architecture by construction (a debug dump or loopback transport),
// so there's no cross-endian exchange to normalize away.
var hostEndian = binary.NativeEndian

/// MessageHeader is the packed, fixed-size prefix of an encoded
/// message, laid out as { uint32 type; uint32 size; uint32 flags;
/// uint32 reserved; uint64 timestamp_ns }: type and payload size, a
/// flags word carrying HasHandle/HasSecurity, a reserved word for
/// future use (always encoded as zero), and the sender's send-time
/// timestamp as Unix nanoseconds.
type MessageHeader struct {
	Type     uint32
	Size     uint32
	Flags    uint32
	Reserved uint32
	StampNs  uint64
}

/// Marshal encodes h into a fresh HeaderSize-byte slice.
func (h MessageHeader) Marshal() ([]byte, error) {
	if h.Size > MaxDataLen {
		return nil, ErrTooLarge
	}
	buf := make([]byte, HeaderSize)
	hostEndian.PutUint32(buf[0:4], h.Type)
	hostEndian.PutUint32(buf[4:8], h.Size)
	hostEndian.PutUint32(buf[8:12], h.Flags)
	hostEndian.PutUint32(buf[12:16], 0)
	hostEndian.PutUint64(buf[16:24], h.StampNs)
	return buf, nil
}

/// Unmarshal decodes a MessageHeader from the front of buf.
func Unmarshal(buf []byte) (MessageHeader, error) {
	var h MessageHeader
	if len(buf) < HeaderSize {
		return h, ErrShortBuffer
	}
	h.Type = hostEndian.Uint32(buf[0:4])
	h.Size = hostEndian.Uint32(buf[4:8])
	h.Flags = hostEndian.Uint32(buf[8:12])
	h.Reserved = hostEndian.Uint32(buf[12:16])
	h.StampNs = hostEndian.Uint64(buf[16:24])
	if h.Size > MaxDataLen {
		return h, ErrTooLarge
	}
	return h, nil
}
