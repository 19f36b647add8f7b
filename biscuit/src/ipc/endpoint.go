package ipc

import (
	"sync"
	"time"

	"defs"
)

// QueueMax is the bounded depth of an endpoint's message queue, the
// back-pressure limit referenced throughout this package's blocking
// send/receive paths.
const QueueMax = 4

/// Endpoint_t is one direction of a Connection_t: a bounded FIFO of
/// queued messages that Send appends to and Receive drains, with
/// condition variables for the two ways a blocking call can become
/// unblockable (space freed up, data arrived) plus hangup, a "pending"
/// slot holding the last-received message's unretrieved attachments,
/// and the hangup/message observer lists. Ordering is FIFO per sender:
/// messages from the same Connection_t's Send calls are never
/// reordered relative to one another, matching a single queue rather
/// than per-sender sub-queues.
type Endpoint_t struct {
	mu      sync.Mutex
	dataCV  *sync.Cond
	spaceCV *sync.Cond
	queue   []*Message_t
	hungup  bool

	pending *Message_t

	hangupObservers  []func()
	messageObservers []func(*Message_t)
}

func newEndpoint() *Endpoint_t {
	e := &Endpoint_t{}
	e.dataCV = sync.NewCond(&e.mu)
	e.spaceCV = sync.NewCond(&e.mu)
	return e
}

/// AddHangupObserver registers fn to run (without the endpoint lock
/// held) when this endpoint hangs up.
func (e *Endpoint_t) AddHangupObserver(fn func()) {
	e.mu.Lock()
	e.hangupObservers = append(e.hangupObservers, fn)
	e.mu.Unlock()
}

/// AddMessageObserver registers fn to run (without the endpoint lock
/// held) whenever a message is enqueued onto this endpoint.
func (e *Endpoint_t) AddMessageObserver(fn func(*Message_t)) {
	e.mu.Lock()
	e.messageObservers = append(e.messageObservers, fn)
	e.mu.Unlock()
}

// dropPendingLocked releases the endpoint's pending attachments slot,
// if any. Caller holds e.mu.
func (e *Endpoint_t) dropPendingLocked() {
	if e.pending != nil {
		e.pending.Release()
		e.pending = nil
	}
}

/// TakeData returns and clears the data payload of the last-received
/// message still pending on this endpoint, reporting false if there is
/// none. The handle attachment, if any, is left untouched.
func (e *Endpoint_t) TakeData() ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil || e.pending.Data == nil {
		return nil, false
	}
	d := e.pending.Data
	e.pending.Data = nil
	return d, true
}

/// TakeHandle returns and clears the transferred handle of the
/// last-received message still pending on this endpoint, reporting
/// false if there is none.
func (e *Endpoint_t) TakeHandle() (interface{}, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil || e.pending.Handle == nil {
		return nil, false
	}
	h := e.pending.Handle
	e.pending.Handle = nil
	return h, true
}

/// Send enqueues msg, blocking per timeout's deadline semantics
/// (negative blocks forever, zero is an immediate would-block, positive
/// is a duration converted to a deadline once at entry) while the queue
/// is full, unless force is set, in which case capacity is bypassed
/// entirely (spec's "force is intended only for in-kernel use"). It
/// fails with EHUNGUP if the peer has already closed its end.
func (e *Endpoint_t) Send(msg *Message_t, timeout time.Duration, force bool) defs.Err_t {
	dl := newDeadline(timeout)
	e.mu.Lock()

	if e.hungup {
		e.mu.Unlock()
		return defs.EHUNGUP
	}

	if !force {
		ok := waitCond(e.spaceCV, dl, func() bool {
			return e.hungup || len(e.queue) < QueueMax
		})
		if e.hungup {
			e.mu.Unlock()
			return defs.EHUNGUP
		}
		if !ok {
			e.mu.Unlock()
			return dl.timeoutErr()
		}
	}

	e.queue = append(e.queue, msg)
	e.dataCV.Broadcast()
	observers := append([]func(*Message_t){}, e.messageObservers...)
	e.mu.Unlock()

	for _, obs := range observers {
		obs(msg)
	}
	return 0
}

/// Receive dequeues the oldest message, blocking per the same deadline
/// semantics as Send while the queue is empty. It returns (nil,
/// EHUNGUP) once the queue has drained and the peer has hung up,
/// distinguishing "hung up but still has buffered data" (messages are
/// still delivered) from "hung up and empty" (no more ever will be).
/// The dequeued message's attachments remain retrievable via
/// TakeData/TakeHandle until the next Receive here, or the next
/// ConnEnd_t.Send from the side that receives on this endpoint;
/// Endpoint_t.Send itself leaves the pending slot alone.
func (e *Endpoint_t) Receive(timeout time.Duration) (*Message_t, defs.Err_t) {
	dl := newDeadline(timeout)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.dropPendingLocked()

	_ = waitCond(e.dataCV, dl, func() bool {
		return len(e.queue) > 0 || e.hungup
	})
	if len(e.queue) == 0 {
		if e.hungup {
			return nil, defs.EHUNGUP
		}
		return nil, dl.timeoutErr()
	}
	msg := e.queue[0]
	e.queue = e.queue[1:]
	e.spaceCV.Broadcast()
	msg.Get()
	e.pending = msg
	return msg, 0
}

/// Pending reports how many messages are currently queued, for
/// non-blocking readiness checks.
func (e *Endpoint_t) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// hangupLocked marks the endpoint closed from the sender's side,
// drains its pending slot, and wakes every blocked Send/Receive so they
// can observe it immediately. Caller holds e.mu; hangup observers are
// run afterward, without the lock held.
func (e *Endpoint_t) hangupLocked() {
	e.hungup = true
	e.dropPendingLocked()
	e.dataCV.Broadcast()
	e.spaceCV.Broadcast()
}

// runHangupObservers calls every registered hangup observer. Caller
// must not hold e.mu.
func (e *Endpoint_t) runHangupObservers() {
	e.mu.Lock()
	observers := append([]func(){}, e.hangupObservers...)
	e.mu.Unlock()
	for _, obs := range observers {
		obs()
	}
}
