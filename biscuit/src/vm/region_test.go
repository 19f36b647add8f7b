package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"defs"
	"mem"
)

func newTestAnon(phys mem.Page_i, pages int) *AnonObject_t {
	return NewAnonObject(phys, pages)
}

func TestRegionSetInsertFirstFit(t *testing.T) {
	phys := mem.NewPhysmem(8)
	var rs RegionSet_t
	pg := uintptr(mem.PGSIZE)

	r1, err := rs.Insert(0, pg, FlagRead|FlagWrite, newTestAnon(phys, 1), 0, false, pg, 1<<20)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, pg, r1.Base)

	r2, err := rs.Insert(0, pg, FlagRead|FlagWrite, newTestAnon(phys, 1), 0, false, pg, 1<<20)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, pg+pg, r2.Base)
}

func TestRegionSetFindLocatesContainingRegion(t *testing.T) {
	phys := mem.NewPhysmem(8)
	var rs RegionSet_t
	pg := uintptr(mem.PGSIZE)
	r, err := rs.Insert(pg, pg, FlagRead, newTestAnon(phys, 1), 0, true, pg, 1<<20)
	require.Equal(t, defs.Err_t(0), err)

	require.Same(t, r, rs.Find(pg))
	require.Same(t, r, rs.Find(pg+pg-1))
	require.Nil(t, rs.Find(pg+pg))
}

func TestRegionSetFixedInsertSplitsOverlappingRegion(t *testing.T) {
	phys := mem.NewPhysmem(8)
	var rs RegionSet_t
	pg := uintptr(mem.PGSIZE)

	// A 3-page region, then fix-map the middle page, which must split it
	// into a left remainder and a right remainder.
	big := newTestAnon(phys, 3)
	_, err := rs.Insert(pg, 3*pg, FlagRead|FlagWrite|FlagPrivate, big, 0, true, pg, 1<<20)
	require.Equal(t, defs.Err_t(0), err)

	small := newTestAnon(phys, 1)
	_, err = rs.Insert(pg+pg, pg, FlagRead|FlagWrite, small, 0, true, pg, 1<<20)
	require.Equal(t, defs.Err_t(0), err)

	all := rs.All()
	require.Len(t, all, 3)
	require.Equal(t, pg, all[0].Base)
	require.Equal(t, pg, all[0].Length)
	require.Equal(t, pg+pg, all[1].Base)
	require.Same(t, small, all[1].Object)
	require.Equal(t, pg+2*pg, all[2].Base)
	require.Equal(t, pg, all[2].Length)
}

func TestRegionSetRemoveReleasesObject(t *testing.T) {
	phys := mem.NewPhysmem(8)
	var rs RegionSet_t
	pg := uintptr(mem.PGSIZE)
	obj := newTestAnon(phys, 1)
	_, err := rs.Insert(pg, pg, FlagRead|FlagWrite, obj, 0, true, pg, 1<<20)
	require.Equal(t, defs.Err_t(0), err)

	pa, _, _ := obj.Fault(0, FaultReasonFault, true)
	require.Equal(t, 1, phys.Refcnt(pa))

	rs.Remove(pg, pg)
	require.Nil(t, rs.Find(pg))
	require.Equal(t, 0, phys.Refcnt(pa))
}

func TestRegionSetEmptyDetectsOverlap(t *testing.T) {
	phys := mem.NewPhysmem(8)
	var rs RegionSet_t
	pg := uintptr(mem.PGSIZE)
	_, err := rs.Insert(pg, pg, FlagRead, newTestAnon(phys, 1), 0, true, pg, 1<<20)
	require.Equal(t, defs.Err_t(0), err)

	require.False(t, rs.Empty(pg, pg))
	require.True(t, rs.Empty(pg+pg, pg))
}

func TestRegionSetInsertRejectsUnalignedLength(t *testing.T) {
	var rs RegionSet_t
	_, err := rs.Insert(uintptr(mem.PGSIZE), 1, FlagRead, reservedObject{}, 0, true, uintptr(mem.PGSIZE), 1<<20)
	require.Equal(t, defs.EINVAL, err)
}
