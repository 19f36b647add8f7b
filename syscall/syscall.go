// Package syscall is the kernel's single validate-then-dispatch
// boundary: entry points here do argument sanity checking, and all but
// HandleFault, ListenPort, SendMessage and ReceiveMessage also do a
// privilege check against the caller's active token, before delegating
// to vm, ipc, or token — the subsystem packages themselves never see
// the external, possibly-adversarial argument shapes directly.
package syscall

import (
	"time"

	"defs"
	"ipc"
	"klog"
	"mem"
	"token"
	"vm"
)

func pageAligned(v uintptr) bool { return v%uintptr(mem.PGSIZE) == 0 }

/// MapAnonymous validates and performs an anonymous mapping request.
func MapAnonymous(as *vm.AddressSpace_t, tok *token.Token_t, base, length uintptr, flags vm.RegionFlags, fixed bool) (uintptr, defs.Err_t) {
	if !tok.HasPriv(token.PrivMapMemory) {
		return 0, defs.EPERM
	}
	if length == 0 || !pageAligned(base) || !pageAligned(length) {
		return 0, defs.EINVAL
	}
	as.Lock_pmap()
	defer as.Unlock_pmap()
	return as.MapAnonymous(base, length, flags, fixed)
}

/// MapSource validates and performs a source-backed mapping request.
func MapSource(as *vm.AddressSpace_t, tok *token.Token_t, base, length uintptr, flags vm.RegionFlags, src vm.PageSource, srcPage uintptr, fixed bool) (uintptr, defs.Err_t) {
	if !tok.HasPriv(token.PrivMapMemory) {
		return 0, defs.EPERM
	}
	if length == 0 || !pageAligned(base) || !pageAligned(length) {
		return 0, defs.EINVAL
	}
	as.Lock_pmap()
	defer as.Unlock_pmap()
	return as.MapSource(base, length, flags, src, srcPage, fixed)
}

/// Unmap validates and performs an unmap request.
func Unmap(as *vm.AddressSpace_t, tok *token.Token_t, base, length uintptr) defs.Err_t {
	if !tok.HasPriv(token.PrivMapMemory) {
		return defs.EPERM
	}
	if length == 0 || !pageAligned(base) || !pageAligned(length) {
		return defs.EINVAL
	}
	as.Lock_pmap()
	defer as.Unlock_pmap()
	as.Unmap(base, length)
	return 0
}

/// HandleFault is the trap-handler entry point: no privilege check (a
/// fault is the hardware/runtime acting on behalf of whatever already
/// ran), just the bounds/alignment-free delegation straight to the
/// address space.
func HandleFault(as *vm.AddressSpace_t, addr uintptr, write bool) defs.Err_t {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	err := as.Fault(addr, write)
	if err != 0 {
		klog.Fault("fault at %#x (write=%v): %v", addr, write, err)
	}
	return err
}

/// CreatePort validates and registers a new port.
func CreatePort(owner defs.Pid_t, tok *token.Token_t, id int64, security *token.Security_t) (*ipc.Port_t, defs.Err_t) {
	if !tok.HasPriv(token.PrivCreatePort) {
		return nil, defs.EPERM
	}
	return ipc.Create(owner, id, security)
}

/// ConnectPort validates and performs a connect.
func ConnectPort(owner defs.Pid_t, tok *token.Token_t, id int64, timeout time.Duration) (*ipc.ConnEnd_t, defs.Err_t) {
	if !tok.HasPriv(token.PrivConnect) {
		return nil, defs.EPERM
	}
	return ipc.Connect(owner, id, tok, timeout)
}

/// ListenPort validates and performs a listen/accept.
func ListenPort(p *ipc.Port_t, tok *token.Token_t, timeout time.Duration) (*ipc.ConnEnd_t, defs.Err_t) {
	return p.Listen(tok, timeout)
}

/// SendMessage validates and performs a message send. force bypasses
/// the peer queue's capacity limit; reserved for in-kernel callers.
func SendMessage(end *ipc.ConnEnd_t, mtype ipc.MessageType, data []byte, handle interface{}, tok *token.Token_t, timeout time.Duration, force bool) defs.Err_t {
	if len(data) > ipc.MaxMessageData {
		return defs.E2BIG
	}
	msg, err := ipc.NewMessage(mtype, data, handle, tok)
	if err != 0 {
		return err
	}
	return end.Send(msg, timeout, force)
}

/// ReceiveMessage validates and performs a message receive.
func ReceiveMessage(end *ipc.ConnEnd_t, timeout time.Duration) (*ipc.Message_t, defs.Err_t) {
	return end.Receive(timeout)
}

/// CreateToken validates and derives a child token.
func CreateToken(parent *token.Token_t, req token.CreateRequest) (*token.Token_t, defs.Err_t) {
	if !parent.HasPriv(token.PrivGrantToken) {
		return nil, defs.EPERM
	}
	return token.Create(parent, req)
}
