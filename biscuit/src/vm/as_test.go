package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"defs"
	"mem"
)

func newTestAS(phys mem.Page_i) *AddressSpace_t {
	return NewAddressSpace(phys, DefaultPageMapFactory, nil, uintptr(mem.PGSIZE), 1<<30)
}

func TestAddressSpaceMapAndFaultResolvesFirstTouch(t *testing.T) {
	phys := mem.NewPhysmem(8)
	as := newTestAS(phys)
	pg := uintptr(mem.PGSIZE)

	base, err := as.MapAnonymous(0, pg, FlagRead|FlagWrite|FlagPrivate, false)
	require.Equal(t, defs.Err_t(0), err)

	require.Equal(t, defs.Err_t(0), as.Fault(base, true))

	pa, ok := as.pmap.Lookup(base)
	require.True(t, ok)
	require.Equal(t, 1, phys.Refcnt(pa))
}

func TestAddressSpaceFaultOutsideAnyRegionFails(t *testing.T) {
	phys := mem.NewPhysmem(4)
	as := newTestAS(phys)
	require.Equal(t, defs.EFAULT, as.Fault(uintptr(mem.PGSIZE)*5, false))
}

func TestAddressSpaceFaultViolatesProtectionFails(t *testing.T) {
	phys := mem.NewPhysmem(4)
	as := newTestAS(phys)
	pg := uintptr(mem.PGSIZE)
	base, err := as.MapAnonymous(0, pg, FlagRead|FlagPrivate, false)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.EACCES, as.Fault(base, true))
}

func TestAddressSpaceDuplicateCOWForksPrivateRegion(t *testing.T) {
	phys := mem.NewPhysmem(8)
	parent := newTestAS(phys)
	pg := uintptr(mem.PGSIZE)

	base, err := parent.MapAnonymous(0, pg, FlagRead|FlagWrite|FlagPrivate, false)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.Err_t(0), parent.Fault(base, true))

	parentPa, ok := parent.pmap.Lookup(base)
	require.True(t, ok)
	require.Equal(t, 1, phys.Refcnt(parentPa))

	child, err := parent.Duplicate(DefaultPageMapFactory, nil)
	require.Equal(t, defs.Err_t(0), err)
	defer child.Destroy()

	// Duplicate() shares the physical page and write-protects the
	// parent's existing mapping in place.
	require.Equal(t, 2, phys.Refcnt(parentPa))

	// Child write-faults its copy: must split into its own private page.
	require.Equal(t, defs.Err_t(0), child.Fault(base, true))
	childPa, ok := child.pmap.Lookup(base)
	require.True(t, ok)
	require.NotEqual(t, parentPa, childPa)
	require.Equal(t, 1, phys.Refcnt(parentPa))
	require.Equal(t, 1, phys.Refcnt(childPa))
}

func TestAddressSpaceUnmapFreesPageAndRemovesRegion(t *testing.T) {
	phys := mem.NewPhysmem(4)
	as := newTestAS(phys)
	pg := uintptr(mem.PGSIZE)
	base, err := as.MapAnonymous(0, pg, FlagRead|FlagWrite|FlagPrivate, false)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.Err_t(0), as.Fault(base, true))

	pa, ok := as.pmap.Lookup(base)
	require.True(t, ok)

	as.Unmap(base, pg)
	_, ok = as.pmap.Lookup(base)
	require.False(t, ok)
	require.Equal(t, 0, phys.Refcnt(pa))
	require.Nil(t, as.regions.Find(base))
}

func TestAddressSpaceDestroyIsIdempotent(t *testing.T) {
	phys := mem.NewPhysmem(4)
	as := newTestAS(phys)
	_, err := as.MapAnonymous(0, uintptr(mem.PGSIZE), FlagRead|FlagWrite|FlagPrivate, false)
	require.Equal(t, defs.Err_t(0), err)

	as.Destroy()
	require.NotPanics(t, func() { as.Destroy() })
}

func TestAddressSpaceMapSourceRejectsSharedRegion(t *testing.T) {
	phys := mem.NewPhysmem(4)
	as := newTestAS(phys)
	src := &fakeSource{phys: phys}
	_, err := as.MapSource(0, uintptr(mem.PGSIZE), FlagRead, src, 0, false)
	require.Equal(t, defs.ENOTSUP, err)
}
