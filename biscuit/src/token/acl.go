package token

import "defs"

/// Rights is a bitmask of the operations an ACL entry grants.
type Rights uint32

const (
	RightRead Rights = 1 << iota
	RightWrite
	RightExecute
	RightConnect
	RightListen
	RightChangeACL
)

/// EntryType names what an ACL entry's Value is matched against.
type EntryType uint8

const (
	EntryUser EntryType = iota
	EntryGroup
	EntryEveryone // Value is ignored
)

/// AclEntry_t grants Rights to whoever EntryType/Value identifies.
type AclEntry_t struct {
	Type   EntryType
	Value  int32
	Rights Rights
}

func (e AclEntry_t) matches(t *Token_t) bool {
	switch e.Type {
	case EntryUser:
		return t.Uid == e.Value
	case EntryGroup:
		return t.Gid == e.Value || t.HasGroup(e.Value)
	case EntryEveryone:
		return true
	default:
		return false
	}
}

// MaxACLEntries bounds any single ACL list, so canonicalization has a
// fixed worst case and a malicious or buggy caller can't grow one
// without bound.
const MaxACLEntries = 64

/// Security_t is the access-control state attached to a kernel object:
/// an owner identity plus four ACLs evaluated per spec — the user ACL
/// is first-match-wins (so ordering is significant and is preserved
/// exactly as canonicalized), while the session, capability, and system
/// ACLs are unioned (every matching entry across all three contributes
/// its rights).
type Security_t struct {
	OwnerUid int32
	OwnerGid int32

	UserACL       []AclEntry_t
	SessionACL    []AclEntry_t
	CapabilityACL []AclEntry_t
	SystemACL     []AclEntry_t
}

/// NewSecurity builds the default ACL for an object created by tok:
/// owner taken from tok, and a single user-ACL entry granting the
/// owner ownerRights — the common case every object starts from.
func NewSecurity(tok *Token_t, ownerRights Rights) *Security_t {
	return &Security_t{
		OwnerUid: tok.Uid,
		OwnerGid: tok.Gid,
		UserACL:  []AclEntry_t{{Type: EntryUser, Value: tok.Uid, Rights: ownerRights}},
	}
}

// canonicalize drops ACL entries past MaxACLEntries and any entry with
// an unrecognized Type or a non-zero Rights-reserved bit, the
// ingress-time cleanup every SetUserACL-style mutator applies.
func canonicalize(entries []AclEntry_t) []AclEntry_t {
	out := make([]AclEntry_t, 0, len(entries))
	seen := make(map[AclEntry_t]bool, len(entries))
	for _, e := range entries {
		if len(out) >= MaxACLEntries {
			break
		}
		if e.Type > EntryEveryone {
			continue
		}
		if e.Rights&^(RightChangeACL<<1-1) != 0 {
			continue
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

/// SetUserACL replaces the object's user ACL after canonicalizing it.
func (s *Security_t) SetUserACL(entries []AclEntry_t) {
	s.UserACL = canonicalize(entries)
}

/// SetSystemACL replaces the object's system ACL after canonicalizing
/// it. Only a token holding RightChangeACL via the existing ACL may
/// call this — enforcement is the caller's (the object owner's, e.g.
/// vm or ipc) responsibility via Check.
func (s *Security_t) SetSystemACL(entries []AclEntry_t) {
	s.SystemACL = canonicalize(entries)
}

/// Check evaluates whether tok holds every bit of want against s,
/// per spec: the first UserACL entry matching tok's identity decides
/// the user-ACL contribution (even if it grants zero of the wanted
/// rights — later user entries are not consulted once one matches);
/// the session, capability, and system ACLs are each scanned in full
/// and every matching entry's rights are unioned in. The owner
/// implicitly matches a user-ACL entry at evaluation time only if
/// UserACL contains one for it — Security_t carries no separate
/// "owner always wins" shortcut, since NewSecurity already seeds that
/// entry for every freshly created object.
func (s *Security_t) Check(tok *Token_t, want Rights) bool {
	got := Rights(0)
	matchedUser := false
	for _, e := range s.UserACL {
		if e.matches(tok) {
			got |= e.Rights
			matchedUser = true
			break
		}
	}
	_ = matchedUser
	for _, e := range s.SessionACL {
		if e.matches(tok) {
			got |= e.Rights
		}
	}
	for _, e := range s.CapabilityACL {
		if e.matches(tok) {
			got |= e.Rights
		}
	}
	for _, e := range s.SystemACL {
		if e.matches(tok) {
			got |= e.Rights
		}
	}
	return got&want == want
}

/// Require is Check but returns EACCES instead of a bool, for call
/// sites that want to return the failure directly.
func (s *Security_t) Require(tok *Token_t, want Rights) defs.Err_t {
	if !s.Check(tok, want) {
		return defs.EACCES
	}
	return 0
}
