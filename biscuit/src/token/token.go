// Package token implements security tokens: immutable, refcounted
// identity-and-privilege bundles that every kernel entry point latches
// onto an active-token scope before making an access decision, and
// every kernel object's ACL is checked against.
package token

import (
	"sort"
	"sync/atomic"

	"defs"
)

// MaxGroups bounds the supplementary-group list carried in a token.
const MaxGroups = 32

// Named privilege bits for the Effective/Inheritable bitmaps. Kernel
// entry points check these before letting a token perform the
// corresponding class of operation, independent of any object ACL.
const (
	PrivMapMemory  uint64 = 1 << 0 // create/fault/destroy address-space mappings
	PrivCreatePort uint64 = 1 << 1 // register a new port
	PrivConnect    uint64 = 1 << 2 // connect to a port
	PrivGrantToken uint64 = 1 << 3 // derive a child token via Create
	PrivChangeACL  uint64 = 1 << 4 // modify an object's system ACL
)

// noGroup is the sentinel padding value trailing the sorted, in-use
// prefix of a token's group array.
const noGroup int32 = -1

/// Token_t is an immutable, refcounted identity: a uid/gid, a sorted
/// supplementary-group list, and two privilege bitmaps. Effective is
/// what the holder may exercise right now; Inheritable is the subset a
/// child token derived via Create may ask to keep. The invariant
/// Inheritable &^ Effective == 0 always holds — a privilege can't be
/// inheritable without also being held.
type Token_t struct {
	refs atomic.Int32

	Uid    int32
	Gid    int32
	Groups [MaxGroups]int32 // sorted ascending, noGroup-padded

	Effective   uint64
	Inheritable uint64
}

var systemToken = newRaw(0, 0, nil, ^uint64(0), ^uint64(0))

/// System returns the boot token: uid/gid 0, every privilege held and
/// inheritable. It is never freed; Get/Release on it are no-ops beyond
/// refcount bookkeeping.
func System() *Token_t { return systemToken }

func newRaw(uid, gid int32, groups []int32, effective, inheritable uint64) *Token_t {
	t := &Token_t{Uid: uid, Gid: gid, Effective: effective, Inheritable: inheritable}
	t.refs.Store(1)
	setGroups(&t.Groups, groups)
	return t
}

func setGroups(dst *[MaxGroups]int32, groups []int32) {
	for i := range dst {
		dst[i] = noGroup
	}
	sorted := append([]int32(nil), groups...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n > MaxGroups {
		n = MaxGroups
	}
	copy(dst[:n], sorted[:n])
}

/// Get adds a reference.
func (t *Token_t) Get() { t.refs.Add(1) }

/// Release drops a reference. Tokens have no finalizer beyond
/// bookkeeping — they hold no external resources — but Release is kept
/// symmetric with Get so callers don't need to special-case System().
func (t *Token_t) Release() { t.refs.Add(-1) }

/// HasPriv reports whether every bit of want is held in Effective.
func (t *Token_t) HasPriv(want uint64) bool {
	return t.Effective&want == want
}

/// HasGroup reports whether gid appears in the token's supplementary
/// group list.
func (t *Token_t) HasGroup(gid int32) bool {
	for _, g := range t.Groups {
		if g == noGroup {
			return false
		}
		if g == gid {
			return true
		}
	}
	return false
}

/// GroupList returns the in-use prefix of the group array.
func (t *Token_t) GroupList() []int32 {
	for i, g := range t.Groups {
		if g == noGroup {
			return t.Groups[:i]
		}
	}
	return t.Groups[:]
}

/// CreateRequest describes a child token to derive from a parent.
/// Nil Uid/Gid mean "inherit the parent's".
type CreateRequest struct {
	Uid         *int32
	Gid         *int32
	Groups      []int32
	Effective   uint64
	Inheritable uint64
}

/// Create derives a child token from parent, enforcing the two subset
/// invariants spec: the child's effective set must be a subset of what
/// the parent allows to propagate (parent.Inheritable), and the child's
/// inheritable set must be a subset of its own effective set. Asking
/// for privileges outside either bound is rejected rather than
/// silently clamped, so a caller's request and the resulting token
/// never silently diverge.
func Create(parent *Token_t, req CreateRequest) (*Token_t, defs.Err_t) {
	if req.Effective&^parent.Inheritable != 0 {
		return nil, defs.EPERM
	}
	if req.Inheritable&^req.Effective != 0 {
		return nil, defs.EINVAL
	}

	uid := parent.Uid
	if req.Uid != nil {
		uid = *req.Uid
	}
	gid := parent.Gid
	if req.Gid != nil {
		gid = *req.Gid
	}
	groups := req.Groups
	if groups == nil {
		groups = parent.GroupList()
	}

	return newRaw(uid, gid, groups, req.Effective, req.Inheritable), 0
}
