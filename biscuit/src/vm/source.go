package vm

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"

	"defs"
	"mem"
)

/// Backing is the external-fs-layer collaborator a SourceObject fetches
/// pages from: a random-access byte source (e.g. a file or device),
/// read one page at a time at a page-aligned offset. Errors other than
/// io.EOF are reported as-is; a short read (including EOF) is treated
/// as reading a partial, zero-padded page rather than a fault, matching
/// how a sparse or truncated file is normally mapped.
type Backing interface {
	ReadPageAt(p *mem.Pg_t, pageOff uintptr) error
}

/// SourceObject is a PageSource-only VM object: it has no Fault method,
/// so it never satisfies ObjectFaulter and every fault against it runs
/// the generic path in AddressSpace.Fault (spec §4.A's "(ii) generic
/// path" case) rather than an object-specific fault handler. It
/// represents a file/device-backed mapping contributed by the external
/// fs layer (§1 non-goals exclude the fs layer itself, not a mapping
/// surface for it). Concurrent faults on the same not-yet-resident page
/// collapse to a single Backing read via a singleflight.Group, so a
/// thundering herd of faulting threads on a freshly mapped page reads
/// it once rather than once per faulter.
type SourceObject struct {
	mu      sync.Mutex
	phys    mem.Page_i
	backing Backing

	pages []mem.Pa_t // PZeropg sentinel == not yet fetched
	refs  int32

	fetch singleflight.Group
}

/// NewSourceObject creates a SourceObject of maxPages slots, fetching
/// page contents from backing on first touch.
func NewSourceObject(phys mem.Page_i, backing Backing, maxPages int) *SourceObject {
	return &SourceObject{
		phys:    phys,
		backing: backing,
		pages:   make([]mem.Pa_t, maxPages),
	}
}

func (o *SourceObject) Get() {
	o.mu.Lock()
	o.refs++
	o.mu.Unlock()
}

func (o *SourceObject) Release() {
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

// MapRegion/UnmapRegion: a SourceObject's slots are immutable once
// fetched (no per-region dirty tracking, no COW split), so there is no
// per-slot region-reference count to maintain here.
func (o *SourceObject) MapRegion(off, length uintptr) defs.Err_t { return 0 }
func (o *SourceObject) UnmapRegion(off, length uintptr)          {}

/// Copy clones the [off, off+length) slice of this source mapping into
/// a fresh SourceObject reading from the same backing store at the same
/// page offsets, so a private region over a SourceObject still
/// duplicates on fork (spec §4.A) rather than forcing every SourceObject
/// mapping to be shared.
func (o *SourceObject) Copy(off, length uintptr) (VMObject, defs.Err_t) {
	lo, hi := off/uintptr(mem.PGSIZE), (off+length)/uintptr(mem.PGSIZE)
	o.mu.Lock()
	defer o.mu.Unlock()
	if hi > uintptr(len(o.pages)) {
		return nil, defs.EINVAL
	}
	dst := NewSourceObject(o.phys, &offsetBacking{o.backing, lo}, int(hi-lo))
	return dst, 0
}

// offsetBacking re-bases ReadPageAt so a Copy's destination object can
// address its own [0, hi-lo) slot range while still reading the
// original backing store at the source's page offsets.
type offsetBacking struct {
	Backing
	base uintptr
}

func (b *offsetBacking) ReadPageAt(p *mem.Pg_t, pageOff uintptr) error {
	return b.Backing.ReadPageAt(p, b.base+pageOff)
}

/// PageGet returns the physical page backing slot, fetching it from the
/// backing store on first touch. Concurrent calls for the same slot
/// dedupe onto one Backing read. The returned page is never reported
/// already-dirty, so the generic fault path maps SourceObject content
/// read-only on a read fault and writable in place only on a write
/// fault to a writable region.
func (o *SourceObject) PageGet(slot uintptr) (mem.Pa_t, bool, defs.Err_t) {
	o.mu.Lock()
	if slot >= uintptr(len(o.pages)) {
		o.mu.Unlock()
		return 0, false, defs.EFAULT
	}
	if pa := o.pages[slot]; pa != mem.PZeropg {
		o.phys.Refup(pa)
		o.mu.Unlock()
		return pa, false, 0
	}
	o.mu.Unlock()

	key := fmt.Sprintf("%d", slot)
	v, err, _ := o.fetch.Do(key, func() (interface{}, error) {
		pg, pa, ok := o.phys.RefpgNew()
		if !ok {
			return nil, defs.ENOMEM
		}
		// Refup immediately: pa must carry a live reference before any
		// error path can Refdown it back to the free list.
		o.phys.Refup(pa)
		if rerr := o.backing.ReadPageAt(pg, slot); rerr != nil && rerr != io.EOF {
			o.phys.Refdown(pa)
			return nil, rerr
		}

		o.mu.Lock()
		if existing := o.pages[slot]; existing != mem.PZeropg {
			o.mu.Unlock()
			o.phys.Refdown(pa)
			return existing, nil
		}
		o.pages[slot] = pa
		o.mu.Unlock()
		return pa, nil
	})
	if err != nil {
		if e, ok := err.(defs.Err_t); ok {
			return 0, false, e
		}
		return 0, false, defs.EFAULT
	}

	pa := v.(mem.Pa_t)
	o.mu.Lock()
	o.phys.Refup(pa)
	o.mu.Unlock()
	return pa, false, 0
}

/// PageRelease drops the reference PageGet took out on pa.
func (o *SourceObject) PageRelease(pa mem.Pa_t) {
	o.phys.Refdown(pa)
}
