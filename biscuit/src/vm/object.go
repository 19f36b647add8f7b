package vm

import (
	"defs"
	"mem"
)

/// FaultReason distinguishes a first-touch page fault from a protection
/// fault (write to an existing read-only mapping), per spec §4.A/§4.B.
type FaultReason int

const (
	FaultReasonFault FaultReason = iota
	FaultReasonProtection
)

/// RegionFlags are the per-region permission/placement bits of spec §3.
type RegionFlags uint32

const (
	FlagRead RegionFlags = 1 << iota
	FlagWrite
	FlagExec
	FlagPrivate
	FlagReserved
)

func (f RegionFlags) allows(write bool) bool {
	if f&FlagReserved != 0 {
		return false
	}
	if write {
		return f&FlagWrite != 0
	}
	return f&FlagRead != 0
}

/// VMObject is the capability set every kind of VM object (anonymous,
/// file-backed, device-backed, shared memory) implements, per the
/// design note in spec §9: a tagged-interface "vtable with fallbacks".
/// Fault is optional — if an object doesn't implement ObjectFaulter,
/// AddressSpace.Fault runs the generic path against PageSource instead.
type VMObject interface {
	// Get/Release track how many regions reference this object. The
	// object frees its resources when the count drops to zero.
	Get()
	Release()

	// MapRegion/UnmapRegion are called when a region attaches to or
	// detaches from [off, off+length) of this object, so the object can
	// maintain its per-slot region-reference counts (spec §4.B).
	MapRegion(off, length uintptr) defs.Err_t
	UnmapRegion(off, length uintptr)

	// Copy clones the object for a COW fork of a private region
	// covering [off, off+length). Anonymous objects always support
	// this; it is the mechanism spec §4.A's Duplicate relies on.
	Copy(off, length uintptr) (VMObject, defs.Err_t)
}

/// ObjectFaulter is implemented by objects (anonymous objects, always)
/// that resolve their own page faults rather than going through the
/// generic PageSource path.
type ObjectFaulter interface {
	VMObject
	// Fault resolves a fault at the given object-relative page index.
	// It returns the physical page to map and whether it may be mapped
	// writable.
	Fault(slot uintptr, reason FaultReason, write bool) (pa mem.Pa_t, writable bool, err defs.Err_t)
}

/// PageSource is implemented by objects that don't resolve faults
/// themselves (e.g. a file-backed object contributed by the external fs
/// layer) — the generic fault path in AddressSpace.Fault calls PageGet
/// to obtain a page and, if the object doesn't report it as already
/// dirty, maps it read-only pending a subsequent protection fault.
type PageSource interface {
	VMObject
	PageGet(slot uintptr) (pa mem.Pa_t, alreadyDirty bool, err defs.Err_t)
	PageRelease(pa mem.Pa_t)
}
