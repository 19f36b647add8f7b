// Package ipc implements the kernel's port/connection/message rendezvous
// layer: one process listens on a port, another connects to it, and the
// resulting bidirectional connection carries a bounded stream of
// messages in each direction. It plays a role analogous to a
// byte-stream fd layer, but for framed, handle-carrying messages
// between two known endpoints rather than POSIX-style fds.
package ipc

import (
	"time"

	"defs"
	"token"
)

// MaxMessageData bounds a single message's payload.
const MaxMessageData = 16 * 1024

/// MessageType tags a message's purpose. Values at or above UserMsgBase are
/// reserved for the caller; values below are kernel-defined control
/// messages (e.g. a hangup notification queued as data).
type MessageType uint32

const UserMsgBase MessageType = 256

/// Message_t is one unit of communication: a typed, length-bounded
/// payload, an optional transferred handle, and a snapshot of the
/// sender's active security token taken at send time so the receiver
/// can make access decisions against the sender's privileges rather
/// than its own.
type Message_t struct {
	Type    MessageType
	Data    []byte
	Handle  interface{} // opaque; interpreted by the handle table, not ipc
	Token   *token.Token_t
	SentAt  time.Time
	refs    int32
}

/// NewMessage builds a message, copying data (the sender's buffer must
/// not be aliased after Send) and validating its length.
func NewMessage(mtype MessageType, data []byte, handle interface{}, tok *token.Token_t) (*Message_t, defs.Err_t) {
	if len(data) > MaxMessageData {
		return nil, defs.E2BIG
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	if tok != nil {
		tok.Get()
	}
	return &Message_t{Type: mtype, Data: cp, Handle: handle, Token: tok, refs: 1}, 0
}

/// Get adds a reference, taken by Endpoint_t.Receive for the message it
/// latches in the endpoint's pending slot.
func (m *Message_t) Get() { m.refs++ }

/// Release drops a reference, releasing the token snapshot once the
/// last reference goes away.
func (m *Message_t) Release() {
	m.refs--
	if m.refs <= 0 && m.Token != nil {
		m.Token.Release()
	}
}
