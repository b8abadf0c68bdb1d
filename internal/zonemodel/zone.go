package zonemodel

import (
	"fmt"
	"strings"
	"time"

	"github.com/zonewarden/zonewarden/internal/uid"
	"github.com/zonewarden/zonewarden/internal/validate"
)

// Zone is a single managed DNS zone and its TSIG connection details.
//
// A Zone is immutable once built: every mutator (AddACLRule, DeleteACLRule)
// returns a new Zone rather than changing the receiver in place.
type Zone struct {
	ID       string
	Name     string
	Email    string
	Status   Status
	Shared   bool
	Account  string
	AdminGroupID string

	Connection         ZoneConnection
	TransferConnection ZoneConnection

	ACL ZoneACL

	Created    time.Time
	Updated    time.Time
	LatestSync time.Time
}

// ZoneFields is the raw, caller-supplied shape of a zone before validation
// and identity assignment.
type ZoneFields struct {
	Name    string
	Email   string
	Account string
	AdminGroupID string
	Shared  bool

	Connection         ZoneConnectionFields
	TransferConnection ZoneConnectionFields

	ACL []ACLRule

	Now time.Time
}

// NewZone validates fields and, if every field is valid, builds a Zone in
// StatusActive with freshly assigned ID and Created/Updated timestamps.
//
// Every field validates independently; NewZone never stops at the first
// failure, so the caller sees every problem with the request at once.
func NewZone(fields ZoneFields) (*Zone, []ValidationError) {
	var errs []ValidationError

	if !validate.StringLength(fields.Name, 2, 255) {
		errs = append(errs, newFieldError("name", "must be between 2 and 255 characters"))
	} else if !validate.FQDN(fields.Name) {
		errs = append(errs, newFieldError("name", "must be a fully-qualified domain name ending in a dot"))
	}

	if !validate.Email(fields.Email) {
		errs = append(errs, newFieldError("email", "must be a valid email address"))
	}

	if !validate.NonEmpty(fields.Account) {
		errs = append(errs, newFieldError("account", "must not be empty"))
	}

	// adminGroupId defaults to "system" the same way account does; the
	// default is applied before validation so the non-emptiness rule in
	// spec.md's validation table is unconditional, not just for shared zones.
	adminGroupID := fields.AdminGroupID
	if adminGroupID == "" {
		adminGroupID = "system"
	}
	if !validate.NonEmpty(adminGroupID) {
		errs = append(errs, newFieldError("adminGroupId", "must not be empty"))
	}

	conn, connErrs := validateConnection("connection", fields.Connection)
	errs = append(errs, connErrs...)

	xfer, xferErrs := validateConnection("transferConnection", fields.TransferConnection)
	errs = append(errs, xferErrs...)

	acl, aclErrs := newZoneACL(fields.ACL)
	errs = append(errs, aclErrs...)

	if len(errs) > 0 {
		return nil, errs
	}

	now := fields.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	return &Zone{
		ID:                 uid.New(),
		Name:               fields.Name,
		Email:              fields.Email,
		Status:             StatusActive,
		Shared:             fields.Shared,
		Account:            fields.Account,
		AdminGroupID:       adminGroupID,
		Connection:         conn,
		TransferConnection: xfer,
		ACL:                acl,
		Created:            now,
		Updated:            now,
	}, nil
}

// IsReverse reports whether z manages PTR records rather than forward
// records, judged from its zone name's suffix.
func (z *Zone) IsReverse() bool {
	return z.IsIPv4() || z.IsIPv6()
}

// IsIPv4 reports whether z is an in-addr.arpa. reverse zone.
func (z *Zone) IsIPv4() bool {
	return strings.HasSuffix(z.Name, "in-addr.arpa.")
}

// IsIPv6 reports whether z is an ip6.arpa. reverse zone.
func (z *Zone) IsIPv6() bool {
	return strings.HasSuffix(z.Name, "ip6.arpa.")
}

// AddACLRule returns a copy of z with rule added to its ACL. Re-adding a
// rule already present (by ID) is a no-op that still bumps Updated.
func (z *Zone) AddACLRule(rule ACLRule, now time.Time) (*Zone, []ValidationError) {
	if errs := rule.validate(); len(errs) > 0 {
		return nil, errs
	}
	cp := *z
	cp.ACL = z.ACL.add(rule)
	cp.Updated = now
	return &cp, nil
}

// DeleteACLRule returns a copy of z with ruleID removed from its ACL.
// Deleting a rule not present is a no-op that still bumps Updated.
func (z *Zone) DeleteACLRule(ruleID string, now time.Time) *Zone {
	cp := *z
	cp.ACL = z.ACL.delete(ruleID)
	cp.Updated = now
	return &cp
}

// WithStatus returns a copy of z with Status transitioned and Updated
// bumped to now.
func (z *Zone) WithStatus(status Status, now time.Time) *Zone {
	cp := *z
	cp.Status = status
	cp.Updated = now
	return &cp
}

// WithLatestSync returns a copy of z recording a completed AXFR/IXFR
// resync at syncedAt.
func (z *Zone) WithLatestSync(syncedAt time.Time) *Zone {
	cp := *z
	cp.LatestSync = syncedAt
	return &cp
}

// String implements fmt.Stringer, redacting both connections' TSIG keys.
func (z *Zone) String() string {
	return fmt.Sprintf(
		"Zone{ID:%s Name:%s Status:%s Shared:%v Connection:%s TransferConnection:%s ACLRules:%d}",
		z.ID, z.Name, z.Status, z.Shared, z.Connection.String(), z.TransferConnection.String(), len(z.ACL.Rules()),
	)
}

// GoString implements fmt.GoStringer for the same redaction under %#v.
func (z *Zone) GoString() string {
	return z.String()
}
