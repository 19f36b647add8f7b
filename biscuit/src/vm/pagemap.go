package vm

import (
	"sync"

	"mem"
)

/// MemType selects the caching behavior of a mapping. The arch layer
/// interprets these; the VM subsystem only ever asks for Normal memory,
/// but device-backed regions (an external fs/device collaborator) may
/// request Uncached.
type MemType int

const (
	MemNormal MemType = iota
	MemUncached
)

/// PageMapDriver is the arch-agnostic contract the MMU layer exposes to
/// the VM subsystem (spec §4.C). The CPU/MMU arch layer is an external
/// collaborator (§1); this package only fixes the interface and ships a
/// software reference implementation (SoftPageMap_t) good enough to
/// drive fault resolution and the test suite.
//
// All operations are page-aligned. Insert/Remove/Protect/Lookup require
// the caller to already hold the owning address space's lock; Switch
// does not (the scheduler calls it outside any VM lock).
type PageMapDriver interface {
	// Insert installs a new mapping. It fails (ok=false) if a mapping is
	// already present at va — the caller must Remove first.
	Insert(va uintptr, pa mem.Pa_t, writable, executable bool, mt MemType) (ok bool)

	// Remove atomically clears any mapping at va and reports what was
	// there: whether anything was mapped, its physical address, and its
	// dirty/accessed bits (used to propagate dirty state back to the
	// owning VM object and to decide whether a shootdown is needed).
	Remove(va uintptr, shared bool) (wasMapped bool, pa mem.Pa_t, wasDirty, wasAccessed bool)

	// Protect changes the permissions of an existing mapping. It is a
	// no-op if nothing is mapped at va. The driver queues local and
	// remote TLB invalidation; it does not flush synchronously.
	Protect(va uintptr, writable, executable bool)

	// Lookup returns the physical address currently mapped at va, if
	// any.
	Lookup(va uintptr) (pa mem.Pa_t, ok bool)

	// Switch installs this page-map as the current CPU's active address
	// space. Called by the scheduler; takes no lock.
	Switch()

	// Destroy frees only the user-half paging structures. The kernel
	// half (shared across every address space) is never freed.
	Destroy()
}

/// PageMapFactory creates a PageMapDriver pre-populated with the shared
/// kernel half, per spec §4.C's Create/Destroy lifecycle note. Swapping
/// this out is how an embedder plugs in a real arch-specific driver
/// instead of SoftPageMap_t.
type PageMapFactory func() PageMapDriver

/// DefaultPageMapFactory constructs the in-memory reference driver.
func DefaultPageMapFactory() PageMapDriver {
	return newSoftPageMap()
}

// softEntry mirrors the minimal state a real PTE would carry that this
// package's fault-resolution logic inspects.
type softEntry struct {
	pa         mem.Pa_t
	writable   bool
	executable bool
	mt         MemType
	dirty      bool
	accessed   bool
}

/// SoftPageMap_t is a deterministic, lock-protected map[uintptr]entry
/// standing in for real hardware page tables, for use where no arch/MMU
/// layer is wired in; production embedders supply their own
/// PageMapDriver.
type SoftPageMap_t struct {
	mu      sync.Mutex
	entries map[uintptr]softEntry
}

func newSoftPageMap() *SoftPageMap_t {
	return &SoftPageMap_t{entries: make(map[uintptr]softEntry)}
}

func (s *SoftPageMap_t) Insert(va uintptr, pa mem.Pa_t, writable, executable bool, mt MemType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[va]; ok {
		return false
	}
	s.entries[va] = softEntry{pa: pa, writable: writable, executable: executable, mt: mt, accessed: true}
	return true
}

func (s *SoftPageMap_t) Remove(va uintptr, shared bool) (bool, mem.Pa_t, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[va]
	if !ok {
		return false, 0, false, false
	}
	delete(s.entries, va)
	return true, e.pa, e.dirty, e.accessed
}

func (s *SoftPageMap_t) Protect(va uintptr, writable, executable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[va]
	if !ok {
		return
	}
	e.writable = writable
	e.executable = executable
	s.entries[va] = e
}

func (s *SoftPageMap_t) Lookup(va uintptr) (mem.Pa_t, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[va]
	return e.pa, ok
}

func (s *SoftPageMap_t) Switch() {}

func (s *SoftPageMap_t) Destroy() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// markDirty sets the dirty bit of va's entry, if present, which a later
// Remove reports back.
func (s *SoftPageMap_t) markDirty(va uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[va]; ok {
		e.dirty = true
		s.entries[va] = e
	}
}
