package vm

import (
	"sort"

	"defs"
	"mem"
	"util"
)

/// Region_t is one mapping in an address space's region set: a
/// contiguous, page-aligned virtual range backed by some offset into a
/// VMObject, per spec §3.
type Region_t struct {
	Base   uintptr
	Length uintptr
	Flags  RegionFlags
	Object VMObject
	ObjOff uintptr // offset into Object where this region's content starts
}

func (r *Region_t) end() uintptr { return r.Base + r.Length }

func (r *Region_t) overlaps(base, length uintptr) bool {
	return r.Base < base+length && base < r.end()
}

/// RegionSet_t is the ordered, non-overlapping collection of regions
/// that makes up one address space's mapped range (spec §3/§4.A). It is
/// not itself locked — callers hold the owning AddressSpace_t's lock.
type RegionSet_t struct {
	regions []*Region_t // kept sorted by Base, no two overlap
	mru     int         // index of the most recently looked-up region
}

/// Find returns the region containing addr, if any, consulting the MRU
/// slot before falling back to binary search — most fault sequences
/// touch the same region repeatedly.
func (rs *RegionSet_t) Find(addr uintptr) *Region_t {
	if rs.mru >= 0 && rs.mru < len(rs.regions) {
		if r := rs.regions[rs.mru]; r.Base <= addr && addr < r.end() {
			return r
		}
	}
	i := sort.Search(len(rs.regions), func(i int) bool { return rs.regions[i].end() > addr })
	if i < len(rs.regions) && rs.regions[i].Base <= addr {
		rs.mru = i
		return rs.regions[i]
	}
	return nil
}

// firstFit scans the gaps between (and around) existing regions for the
// first hole of at least length bytes, at or after hint. hint is only
// ever a placement suggestion (fixed placement goes through
// clearRange instead), so it is rounded up to a page boundary rather
// than rejected outright.
func (rs *RegionSet_t) firstFit(hint, length, minAddr, maxAddr uintptr) (uintptr, bool) {
	cur := util.Roundup(hint, uintptr(mem.PGSIZE))
	if cur < minAddr {
		cur = minAddr
	}
	for _, r := range rs.regions {
		if r.Base < cur {
			if r.end() > cur {
				cur = r.end()
			}
			continue
		}
		if cur+length <= r.Base {
			return cur, true
		}
		cur = r.end()
	}
	if cur+length <= maxAddr {
		return cur, true
	}
	return 0, false
}

/// Insert places a new region. If fixed is false, base is a hint and the
/// first sufficiently large hole at or after it (within [minAddr,
/// maxAddr)) is used instead. If fixed is true, any existing regions
/// overlapping [base, base+length) are shrunk, split, or removed —
/// invoking each displaced object's UnmapRegion for the displaced
/// portion — exactly as spec §4.A's fixed-address placement requires.
func (rs *RegionSet_t) Insert(base, length uintptr, flags RegionFlags, obj VMObject, objOff uintptr, fixed bool, minAddr, maxAddr uintptr) (*Region_t, defs.Err_t) {
	if length == 0 || length%uintptr(mem.PGSIZE) != 0 || base%uintptr(mem.PGSIZE) != 0 {
		return nil, defs.EINVAL
	}

	if !fixed {
		got, ok := rs.firstFit(base, length, minAddr, maxAddr)
		if !ok {
			return nil, defs.ENOMEM
		}
		base = got
	} else {
		if base < minAddr || base+length > maxAddr {
			return nil, defs.EINVAL
		}
		rs.clearRange(base, length)
	}

	r := &Region_t{Base: base, Length: length, Flags: flags, Object: obj, ObjOff: objOff}
	i := sort.Search(len(rs.regions), func(i int) bool { return rs.regions[i].Base >= base })
	rs.regions = append(rs.regions, nil)
	copy(rs.regions[i+1:], rs.regions[i:])
	rs.regions[i] = r
	rs.mru = i

	if err := obj.MapRegion(objOff, length); err != 0 {
		rs.removeAt(i)
		return nil, err
	}
	return r, 0
}

// clearRange removes or trims every region overlapping [base,
// base+length), notifying each one's object of the unmapped portion.
func (rs *RegionSet_t) clearRange(base, length uintptr) {
	end := base + length
	i := 0
	for i < len(rs.regions) {
		r := rs.regions[i]
		if !r.overlaps(base, length) {
			i++
			continue
		}
		switch {
		case r.Base >= base && r.end() <= end:
			// Fully covered: drop it.
			r.Object.UnmapRegion(r.ObjOff, r.Length)
			rs.removeAt(i)
			continue
		case r.Base < base && r.end() > end:
			// Split into a left remainder and a right remainder.
			r.Object.UnmapRegion(r.ObjOff+(base-r.Base), length)
			right := &Region_t{
				Base:   end,
				Length: r.end() - end,
				Flags:  r.Flags,
				Object: r.Object,
				ObjOff: r.ObjOff + (end - r.Base),
			}
			r.Object.Get()
			r.Length = base - r.Base
			rs.regions = append(rs.regions, nil)
			copy(rs.regions[i+2:], rs.regions[i+1:])
			rs.regions[i+1] = right
			i += 2
		case r.Base < base:
			// Trim the tail.
			cut := r.end() - base
			r.Object.UnmapRegion(r.ObjOff+(base-r.Base), cut)
			r.Length = base - r.Base
			i++
		default:
			// Trim the head.
			cut := end - r.Base
			oldEnd := r.end()
			r.Object.UnmapRegion(r.ObjOff, cut)
			r.ObjOff += cut
			r.Base = end
			r.Length = oldEnd - end
			i++
		}
	}
	rs.mru = 0
}

func (rs *RegionSet_t) removeAt(i int) {
	rs.regions = append(rs.regions[:i], rs.regions[i+1:]...)
	rs.mru = 0
}

/// Remove unmaps [base, base+length) entirely, releasing each displaced
/// region's object reference once its last region is gone.
func (rs *RegionSet_t) Remove(base, length uintptr) {
	var released []VMObject
	end := base + length
	i := 0
	for i < len(rs.regions) {
		r := rs.regions[i]
		if r.Base >= base && r.end() <= end {
			released = append(released, r.Object)
		}
		i++
	}
	rs.clearRange(base, length)
	for _, obj := range released {
		obj.Release()
	}
}

/// Empty reports whether [base, base+length) is entirely free of
/// existing regions.
func (rs *RegionSet_t) Empty(base, length uintptr) bool {
	for _, r := range rs.regions {
		if r.overlaps(base, length) {
			return false
		}
	}
	return true
}

/// Clear drops every region, invoking UnmapRegion and Release once per
/// region on its object — used when an address space is destroyed.
func (rs *RegionSet_t) Clear() {
	for _, r := range rs.regions {
		r.Object.UnmapRegion(r.ObjOff, r.Length)
		r.Object.Release()
	}
	rs.regions = nil
	rs.mru = 0
}

/// All returns every region in base order, for iteration by Duplicate.
func (rs *RegionSet_t) All() []*Region_t {
	return rs.regions
}
