// Package uid generates the opaque unique identifiers assigned to Zones at
// creation.
package uid

import "github.com/google/uuid"

// New returns a fresh opaque identifier suitable for use as a Zone.ID. ACL
// rule identities are derived from rule content instead (see zonemodel).
func New() string {
	return uuid.NewString()
}
