package zonemodel

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// ACLRule grants a user or group access to records in a shared zone. Rule
// *evaluation* (deciding whether a given caller's request is authorized) is
// outside the core; the core only owns the rule's identity and set
// membership.
type ACLRule struct {
	ID          string
	OwnerID     string
	AccessLevel string
	RecordMask  string
}

// validate checks the independently-owned fields of a single rule. Full
// semantic validation of AccessLevel/RecordMask values is the external
// rule validator's job; this only enforces that a rule has an identifiable
// owner.
func (r ACLRule) validate() []ValidationError {
	var errs []ValidationError
	if r.OwnerID == "" {
		errs = append(errs, newFieldError("acl.rule.ownerId", "must not be empty"))
	}
	return errs
}

// contentIdentity derives a stable identity for a rule from the fields that
// define what it grants, not from when it was constructed. Two rules with
// the same owner, access level, and record mask always derive the same
// identity, so granting the same access twice lands on the same map entry
// instead of a second, distinct one.
func contentIdentity(r ACLRule) string {
	sum := sha256.Sum256([]byte(r.OwnerID + "\x1f" + r.AccessLevel + "\x1f" + r.RecordMask))
	return hex.EncodeToString(sum[:])
}

// withID returns a copy of r with its content-derived identity assigned if
// it does not already carry one.
func (r ACLRule) withID() ACLRule {
	if r.ID != "" {
		return r
	}
	cp := r
	cp.ID = contentIdentity(r)
	return cp
}

// ZoneACL is an immutable set of ACL rules, keyed by rule identity so
// addition and removal are idempotent.
type ZoneACL struct {
	rules map[string]ACLRule
}

// newZoneACL validates every rule independently and builds the resulting
// set, assigning an identity to any rule that lacks one.
func newZoneACL(rules []ACLRule) (ZoneACL, []ValidationError) {
	var errs []ValidationError
	m := make(map[string]ACLRule, len(rules))
	for _, r := range rules {
		if ruleErrs := r.validate(); len(ruleErrs) > 0 {
			errs = append(errs, ruleErrs...)
			continue
		}
		r = r.withID()
		m[r.ID] = r
	}
	return ZoneACL{rules: m}, errs
}

// NewZoneACLForStore rebuilds a ZoneACL from rules already known to be
// valid and identified, as read back from a repository. Unlike newZoneACL
// it assigns no new identities and is exported for repository backends
// outside this package to use when rehydrating a persisted Zone.
func NewZoneACLForStore(rules []ACLRule) (ZoneACL, []ValidationError) {
	m := make(map[string]ACLRule, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			return ZoneACL{}, []ValidationError{newFieldError("acl.rule.id", "must not be empty when rehydrating from storage")}
		}
		m[r.ID] = r
	}
	return ZoneACL{rules: m}, nil
}

// Rules returns the rules in the set, sorted by ID for deterministic
// iteration.
func (a ZoneACL) Rules() []ACLRule {
	out := make([]ACLRule, 0, len(a.rules))
	for _, r := range a.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Contains reports whether a rule with the given ID is in the set.
func (a ZoneACL) Contains(ruleID string) bool {
	_, ok := a.rules[ruleID]
	return ok
}

// add returns a new ZoneACL with rule inserted (or replacing the entry with
// the same ID). Re-adding an already-present rule is a no-op.
func (a ZoneACL) add(rule ACLRule) ZoneACL {
	rule = rule.withID()
	next := make(map[string]ACLRule, len(a.rules)+1)
	for k, v := range a.rules {
		next[k] = v
	}
	next[rule.ID] = rule
	return ZoneACL{rules: next}
}

// delete returns a new ZoneACL with ruleID removed. Deleting a rule not in
// the set is a no-op.
func (a ZoneACL) delete(ruleID string) ZoneACL {
	if _, ok := a.rules[ruleID]; !ok {
		return a
	}
	next := make(map[string]ACLRule, len(a.rules))
	for k, v := range a.rules {
		if k != ruleID {
			next[k] = v
		}
	}
	return ZoneACL{rules: next}
}
