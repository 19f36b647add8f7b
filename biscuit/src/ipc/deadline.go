package ipc

import (
	"sync"
	"time"

	"defs"
)

// deadline captures the "timeout < 0 blocks forever, == 0 is an
// immediate would-block, > 0 is a duration converted to an absolute
// point in time exactly once at the call that received it" rule used
// throughout this package's blocking operations. immediate and forever
// are distinct from an elapsed positive deadline: a caller that gives
// up because immediate is true gets EWOULDBLOCK, never ETIMEDOUT.
type deadline struct {
	forever   bool
	immediate bool
	at        time.Time // zero value means "already expired" unless forever
}

func newDeadline(timeout time.Duration) deadline {
	switch {
	case timeout < 0:
		return deadline{forever: true}
	case timeout == 0:
		return deadline{immediate: true}
	default:
		return deadline{at: time.Now().Add(timeout)}
	}
}

func (d deadline) expired() bool {
	if d.forever {
		return false
	}
	if d.immediate {
		return true
	}
	return !time.Now().Before(d.at)
}

// timeoutErr reports the error a caller should surface once waitCond
// gives up on this deadline: EWOULDBLOCK for timeout==0, ETIMEDOUT for
// an elapsed positive deadline. Never called for a forever deadline,
// which waitCond never gives up on.
func (d deadline) timeoutErr() defs.Err_t {
	if d.immediate {
		return defs.EWOULDBLOCK
	}
	return defs.ETIMEDOUT
}

// remaining returns how long is left, and whether it's still possible
// to wait at all (false once the deadline has passed).
func (d deadline) remaining() (time.Duration, bool) {
	if d.forever {
		return time.Hour, true // arbitrary long poll slice; caller loops
	}
	left := time.Until(d.at)
	return left, left > 0
}

// waitCond blocks on cond (caller holds cond.L) until ready returns
// true or dl elapses, giving sync.Cond the deadline semantics it
// doesn't natively support: a timer broadcasts the condition so every
// waiter wakes up to recheck both ready() and the deadline.
func waitCond(cond *sync.Cond, dl deadline, ready func() bool) bool {
	for {
		if ready() {
			return true
		}
		if dl.expired() {
			return false
		}
		rem, ok := dl.remaining()
		if !ok {
			return false
		}
		timer := time.AfterFunc(rem, func() {
			cond.L.Lock()
			cond.Broadcast()
			cond.L.Unlock()
		})
		cond.Wait()
		timer.Stop()
	}
}
