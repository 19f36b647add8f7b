package ipc

import (
	"sync"
	"time"

	"defs"
	"token"
)

// RootPortID is the well-known port every process can Connect to
// without prior discovery — the bootstrap rendezvous point.
const RootPortID int64 = -1

// WellKnownMin/WellKnownMax bound the reserved well-known port-id
// range; ids in it are registered explicitly (typically by the boot
// process) rather than allocated dynamically.
const (
	WellKnownMin int64 = -16
	WellKnownMax int64 = -1
)

/// Port_t is a rendezvous endpoint owned by exactly one process:
/// Listen blocks for an incoming Connect, matching each Connect with
/// the next Listen in FIFO order. A port's identity is process-local
/// except for the well-known range, which is global.
type Port_t struct {
	id       int64
	owner    defs.Pid_t
	security *token.Security_t

	mu      sync.Mutex
	listen  *sync.Cond
	pending []*Connection_t
	closed  bool
}

type registryKey struct {
	owner defs.Pid_t
	id    int64
}

var (
	registryMu sync.Mutex
	registry   = make(map[registryKey]*Port_t)
	wellKnown  = make(map[int64]*Port_t)
)

func isWellKnown(id int64) bool { return id >= WellKnownMin && id <= WellKnownMax }

/// Create registers a new port owned by owner, listening for connects
/// by id (within owner's namespace, or globally if id is in the
/// well-known range). It fails with EEXIST if the id is already taken
/// in the relevant namespace.
func Create(owner defs.Pid_t, id int64, security *token.Security_t) (*Port_t, defs.Err_t) {
	p := &Port_t{id: id, owner: owner, security: security}
	p.listen = sync.NewCond(&p.mu)

	registryMu.Lock()
	defer registryMu.Unlock()
	if isWellKnown(id) {
		if _, ok := wellKnown[id]; ok {
			return nil, defs.EEXIST
		}
		wellKnown[id] = p
		return p, 0
	}
	key := registryKey{owner, id}
	if _, ok := registry[key]; ok {
		return nil, defs.EEXIST
	}
	registry[key] = p
	return p, 0
}

func lookup(owner defs.Pid_t, id int64) (*Port_t, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if isWellKnown(id) {
		p, ok := wellKnown[id]
		return p, ok
	}
	p, ok := registry[registryKey{owner, id}]
	return p, ok
}

/// Disown removes the port from the registry and wakes every blocked
/// Listen and every connection still waiting in setup with EHUNGUP —
/// called when the owning process exits or explicitly closes the port.
func (p *Port_t) Disown() {
	registryMu.Lock()
	if isWellKnown(p.id) {
		delete(wellKnown, p.id)
	} else {
		delete(registry, registryKey{p.owner, p.id})
	}
	registryMu.Unlock()

	p.mu.Lock()
	p.closed = true
	pending := p.pending
	p.pending = nil
	p.listen.Broadcast()
	p.mu.Unlock()

	for _, c := range pending {
		c.Close()
	}
}

/// Listen blocks (per timeout's deadline semantics) until a connection
/// is waiting, then accepts the oldest one and returns the server's
/// oriented end of it.
func (p *Port_t) Listen(tok *token.Token_t, timeout time.Duration) (*ConnEnd_t, defs.Err_t) {
	if p.security != nil {
		if err := p.security.Require(tok, token.RightListen); err != 0 {
			return nil, err
		}
	}

	dl := newDeadline(timeout)
	p.mu.Lock()
	ok := waitCond(p.listen, dl, func() bool {
		return len(p.pending) > 0 || p.closed
	})
	if p.closed {
		p.mu.Unlock()
		return nil, defs.EHUNGUP
	}
	if !ok {
		p.mu.Unlock()
		return nil, dl.timeoutErr()
	}
	conn := p.pending[0]
	p.pending = p.pending[1:]
	p.mu.Unlock()

	conn.accept()
	return newConnEnd(conn, ServerSide), 0
}

/// Connect rendezvouses with a Listen on the port identified by id in
/// owner's namespace (or the well-known namespace, if id is reserved),
/// blocking per timeout's deadline semantics until a Listen accepts it
/// or the deadline elapses.
func Connect(owner defs.Pid_t, id int64, tok *token.Token_t, timeout time.Duration) (*ConnEnd_t, defs.Err_t) {
	p, ok := lookup(owner, id)
	if !ok {
		return nil, defs.ENOENT
	}
	if p.security != nil {
		if err := p.security.Require(tok, token.RightConnect); err != 0 {
			return nil, err
		}
	}

	conn := newConnection(tok)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, defs.EHUNGUP
	}
	p.pending = append(p.pending, conn)
	p.listen.Broadcast()
	p.mu.Unlock()

	dl := newDeadline(timeout)
	conn.mu.Lock()
	accepted := waitCond(conn.open, dl, func() bool { return conn.state != connSetup })
	state := conn.state
	conn.mu.Unlock()

	if state == connActive {
		return newConnEnd(conn, ClientSide), 0
	}
	if state == connClosed {
		return nil, defs.EHUNGUP
	}
	if !accepted {
		p.removePending(conn)
		return nil, dl.timeoutErr()
	}
	return nil, defs.EHUNGUP
}

func (p *Port_t) removePending(conn *Connection_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.pending {
		if c == conn {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			return
		}
	}
}
