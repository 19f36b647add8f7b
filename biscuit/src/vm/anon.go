package vm

import (
	"sync"

	"defs"
	"mem"

	"klog"
)

// maxRegionRef is the saturation point for a slot's region-reference
// count. Hitting it is a fatal invariant violation per spec §4.B.
const maxRegionRef = ^uint32(0) - 1

/// AnonObject_t is the sparse per-page, copy-on-write anonymous VM
/// object of spec §4.B: three parallel arrays of length MaxPages (a page
/// pointer, a region-reference count, and the page's own owner count,
/// tracked by the physical allocator) plus an optional backing source.
type AnonObject_t struct {
	mu sync.Mutex

	phys     mem.Page_i
	pages    []mem.Pa_t // PZeropg sentinel (0) == never faulted
	dirty    []bool     // per-slot: has this page ever been faulted writable
	regionRC []uint32

	source     PageSource // optional
	sourceBase uintptr    // offset into source, in pages

	refs int32 // region-list refcount (Get/Release)
}

/// NewAnonObject creates an anonymous object with room for maxPages
/// slots and no backing source.
func NewAnonObject(phys mem.Page_i, maxPages int) *AnonObject_t {
	return &AnonObject_t{
		phys:     phys,
		pages:    make([]mem.Pa_t, maxPages),
		dirty:    make([]bool, maxPages),
		regionRC: make([]uint32, maxPages),
		refs:     1,
	}
}

/// NewSourcedAnonObject creates an anonymous object backed by src at
/// sourceBasePage (in pages). Per spec §3, an object with a source may
/// only be attached to private regions.
func NewSourcedAnonObject(phys mem.Page_i, maxPages int, src PageSource, sourceBasePage uintptr) *AnonObject_t {
	o := NewAnonObject(phys, maxPages)
	o.source = src
	o.sourceBase = sourceBasePage
	return o
}

func (o *AnonObject_t) Get() {
	o.mu.Lock()
	o.refs++
	o.mu.Unlock()
}

func (o *AnonObject_t) Release() {
	o.mu.Lock()
	o.refs--
	dead := o.refs <= 0
	var freed []mem.Pa_t
	if dead {
		for i, pa := range o.pages {
			if pa != mem.PZeropg {
				freed = append(freed, pa)
				o.pages[i] = mem.PZeropg
			}
		}
	}
	o.mu.Unlock()
	for _, pa := range freed {
		o.phys.Refdown(pa)
	}
}

/// MapRegion records that a region now covers [off, off+length).
func (o *AnonObject_t) MapRegion(off, length uintptr) defs.Err_t {
	lo, hi := off/uintptr(mem.PGSIZE), (off+length)/uintptr(mem.PGSIZE)
	o.mu.Lock()
	defer o.mu.Unlock()
	if hi > uintptr(len(o.regionRC)) {
		return defs.EINVAL
	}
	for i := lo; i < hi; i++ {
		if o.regionRC[i] >= maxRegionRC {
			panic("vm: region-reference count saturated")
		}
		o.regionRC[i]++
	}
	return 0
}

const maxRegionRC = maxRegionRef

/// UnmapRegion undoes MapRegion: when a slot's region count reaches
/// zero and it has an allocated page, the page's owner count is
/// decremented and freed on zero.
func (o *AnonObject_t) UnmapRegion(off, length uintptr) {
	lo, hi := off/uintptr(mem.PGSIZE), (off+length)/uintptr(mem.PGSIZE)
	o.mu.Lock()
	var freed []mem.Pa_t
	for i := lo; i < hi && i < uintptr(len(o.regionRC)); i++ {
		if o.regionRC[i] == 0 {
			continue
		}
		o.regionRC[i]--
		if o.regionRC[i] == 0 && o.pages[i] != mem.PZeropg {
			freed = append(freed, o.pages[i])
			o.pages[i] = mem.PZeropg
			o.dirty[i] = false
		}
	}
	o.mu.Unlock()
	for _, pa := range freed {
		o.phys.Refdown(pa)
	}
}

/// Copy implements spec §4.B's COW-fork clone: for a pure anonymous
/// object, the new object's slots mirror the source's page pointers
/// with owner counts incremented; a source-backed object's copy does the
/// same and also keeps a reference to the same source at the same
/// offset, so slots the parent never faulted are fetched from it lazily.
func (o *AnonObject_t) Copy(off, length uintptr) (VMObject, defs.Err_t) {
	lo, hi := off/uintptr(mem.PGSIZE), (off+length)/uintptr(mem.PGSIZE)
	n := int(hi - lo)

	o.mu.Lock()
	defer o.mu.Unlock()
	if hi > uintptr(len(o.pages)) {
		return nil, defs.EINVAL
	}

	var dst *AnonObject_t
	if o.source != nil {
		dst = NewSourcedAnonObject(o.phys, n, o.source, o.sourceBase+lo)
	} else {
		dst = NewAnonObject(o.phys, n)
	}
	for i := 0; i < n; i++ {
		pa := o.pages[lo+uintptr(i)]
		if pa == mem.PZeropg {
			continue
		}
		o.phys.Refup(pa)
		dst.pages[i] = pa
		dst.dirty[i] = o.dirty[lo+uintptr(i)]
	}
	return dst, 0
}

/// Fault resolves a page fault at the given object-relative slot,
/// implementing the case analysis of spec §4.B exactly.
func (o *AnonObject_t) Fault(slot uintptr, reason FaultReason, write bool) (mem.Pa_t, bool, defs.Err_t) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if slot >= uintptr(len(o.pages)) {
		return 0, false, defs.EFAULT
	}

	cur := o.pages[slot]

	// Bullet 1: never-touched slot, no backing source.
	if cur == mem.PZeropg && o.source == nil {
		pg, pa, ok := o.phys.RefpgNew()
		if !ok {
			return 0, false, defs.ENOMEM
		}
		_ = pg
		o.phys.Refup(pa)
		o.pages[slot] = pa
		o.dirty[slot] = true
		return pa, true, 0
	}

	if write {
		if cur != mem.PZeropg {
			if o.phys.Refcnt(cur) > 1 {
				// COW split.
				npg, npa, ok := o.phys.RefpgNewNozero()
				if !ok {
					return 0, false, defs.ENOMEM
				}
				*npg = *o.phys.Dmap(cur)
				o.phys.Refup(npa)
				if o.phys.Refdown(cur) {
					klog.Fault("anon: freed cow parent page")
				}
				o.pages[slot] = npa
				o.dirty[slot] = true
				return npa, true, 0
			}
			// Sole owner: map writable in place.
			o.dirty[slot] = true
			return cur, true, 0
		}
		// Source-backed, not yet resident.
		var srcPa mem.Pa_t
		if reason == FaultReasonProtection {
			// Page was previously mapped read-only straight from the
			// source; the caller's page-map query already found it —
			// fetch again here since Fault is the single source of
			// truth for the physical page to copy from.
			pa, _, err := o.source.PageGet(o.sourceBase + slot)
			if err != 0 {
				return 0, false, err
			}
			srcPa = pa
		} else {
			pa, _, err := o.source.PageGet(o.sourceBase + slot)
			if err != 0 {
				return 0, false, err
			}
			srcPa = pa
		}
		npg, npa, ok := o.phys.RefpgNewNozero()
		if !ok {
			o.source.PageRelease(srcPa)
			return 0, false, defs.ENOMEM
		}
		*npg = *o.phys.Dmap(srcPa)
		o.source.PageRelease(srcPa)
		o.phys.Refup(npa)
		o.pages[slot] = npa
		o.dirty[slot] = true
		return npa, true, 0
	}

	// Read access.
	if cur != mem.PZeropg {
		writable := o.phys.Refcnt(cur) <= 1 && o.dirty[slot]
		return cur, writable, 0
	}
	pa, alreadyDirty, err := o.source.PageGet(o.sourceBase + slot)
	if err != 0 {
		return 0, false, err
	}
	_ = alreadyDirty
	// Map the source page read-only in place; no copy yet (§4.B).
	return pa, false, 0
}
