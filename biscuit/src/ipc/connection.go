package ipc

import (
	"sync"
	"time"

	"defs"
	"token"
)

type connState int

const (
	connSetup connState = iota
	connActive
	connClosed
)

/// Connection_t is a bidirectional channel between two endpoints,
/// moving through setup (after Connect, before a matching Listen),
/// active (both sides may Send/Receive), and closed (either side has
/// hung up) exactly once each, per spec. It owns the two per-direction
/// Endpoint_t queues; ConnEnd_t is the oriented handle each side
/// actually operates on.
type Connection_t struct {
	mu    sync.Mutex
	state connState
	open  *sync.Cond // signaled when state leaves connSetup

	clientToServer *Endpoint_t
	serverToClient *Endpoint_t

	// ClientToken is the security token the connecting side presented,
	// latched at Connect time so the listener's Accept can make an
	// access decision against the connector's identity.
	ClientToken *token.Token_t
}

func newConnection(tok *token.Token_t) *Connection_t {
	c := &Connection_t{
		clientToServer: newEndpoint(),
		serverToClient: newEndpoint(),
		ClientToken:    tok,
	}
	c.open = sync.NewCond(&c.mu)
	if tok != nil {
		tok.Get()
	}
	return c
}

func (c *Connection_t) accept() {
	c.mu.Lock()
	if c.state == connSetup {
		c.state = connActive
	}
	c.open.Broadcast()
	c.mu.Unlock()
}

/// Close transitions the connection to closed (idempotent) and wakes
/// every endpoint waiter with EHUNGUP.
func (c *Connection_t) Close() {
	c.mu.Lock()
	if c.state == connClosed {
		c.mu.Unlock()
		return
	}
	c.state = connClosed
	c.open.Broadcast()
	c.mu.Unlock()

	c.clientToServer.mu.Lock()
	c.clientToServer.hangupLocked()
	c.clientToServer.mu.Unlock()

	c.serverToClient.mu.Lock()
	c.serverToClient.hangupLocked()
	c.serverToClient.mu.Unlock()

	c.clientToServer.runHangupObservers()
	c.serverToClient.runHangupObservers()

	if c.ClientToken != nil {
		c.ClientToken.Release()
	}
}

/// State reports the connection's current lifecycle state.
func (c *Connection_t) State() (setup, active, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == connSetup, c.state == connActive, c.state == connClosed
}

// Side selects which pair of (send, recv) endpoints a ConnEnd_t uses —
// the client sends on clientToServer and receives on serverToClient;
// the server is the mirror image.
type Side int

const (
	ClientSide Side = iota
	ServerSide
)

/// ConnEnd_t is the oriented handle a process actually holds: it knows
/// which of the connection's two endpoint pairs is "send" and which is
/// "receive" for its side.
type ConnEnd_t struct {
	conn *Connection_t
	send *Endpoint_t
	recv *Endpoint_t
	side Side
}

func newConnEnd(c *Connection_t, side Side) *ConnEnd_t {
	e := &ConnEnd_t{conn: c, side: side}
	if side == ClientSide {
		e.send, e.recv = c.clientToServer, c.serverToClient
	} else {
		e.send, e.recv = c.serverToClient, c.clientToServer
	}
	return e
}

/// Send queues msg on this end's outbound direction, dropping this
/// end's own pending receive attachments first (spec §4.E: a send
/// drops the previous receive's unretrieved "pending attachments"
/// slot). force bypasses the peer queue's capacity limit entirely,
/// intended only for in-kernel senders that must not block.
func (e *ConnEnd_t) Send(msg *Message_t, timeout time.Duration, force bool) defs.Err_t {
	e.recv.mu.Lock()
	e.recv.dropPendingLocked()
	e.recv.mu.Unlock()
	return e.send.Send(msg, timeout, force)
}

/// Receive dequeues the next message from this end's inbound direction.
func (e *ConnEnd_t) Receive(timeout time.Duration) (*Message_t, defs.Err_t) {
	return e.recv.Receive(timeout)
}

/// TakeData returns and clears this end's pending received message's
/// data payload, reporting false if there is none.
func (e *ConnEnd_t) TakeData() ([]byte, bool) { return e.recv.TakeData() }

/// TakeHandle returns and clears this end's pending received message's
/// transferred handle, reporting false if there is none.
func (e *ConnEnd_t) TakeHandle() (interface{}, bool) { return e.recv.TakeHandle() }

/// OnHangup registers fn to run when this end's inbound direction
/// hangs up (i.e. the peer closed).
func (e *ConnEnd_t) OnHangup(fn func()) { e.recv.AddHangupObserver(fn) }

/// OnMessage registers fn to run whenever a message is enqueued onto
/// this end's inbound direction.
func (e *ConnEnd_t) OnMessage(fn func(*Message_t)) { e.recv.AddMessageObserver(fn) }

/// Close tears down the whole connection (both directions).
func (e *ConnEnd_t) Close() { e.conn.Close() }

/// Connection exposes the underlying Connection_t, e.g. so a caller can
/// poll State() without going through Send/Receive.
func (e *ConnEnd_t) Connection() *Connection_t { return e.conn }

/// PeerToken returns the security token presented at connect time,
/// valid on both ends for the life of the connection.
func (e *ConnEnd_t) PeerToken() *token.Token_t { return e.conn.ClientToken }
