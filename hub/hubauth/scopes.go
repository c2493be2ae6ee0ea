// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

// Package hubauth implements bearer credential parsing: the scope bitset,
// signed session tokens and digest hashing for stored secrets.
package hubauth

import "strings"

// Scopes is the set of operations a credential may perform, as a bitset.
type Scopes uint64

const (
	// ScopeUserRead allows reading the authenticated user, without email.
	ScopeUserRead Scopes = 1 << iota
	// ScopeUserReadEmail allows reading the authenticated user's email.
	ScopeUserReadEmail
	// ScopeUserWrite allows editing the authenticated user.
	ScopeUserWrite
	// ScopeUserDelete allows deleting the authenticated user.
	ScopeUserDelete
	// ScopeProjectRead allows reading projects the user can observe.
	ScopeProjectRead
	// ScopeProjectCreate allows creating projects.
	ScopeProjectCreate
	// ScopeProjectWrite allows editing projects and their teams.
	ScopeProjectWrite
	// ScopeProjectDelete allows deleting projects.
	ScopeProjectDelete
	// ScopeVersionRead allows reading versions the user can observe.
	ScopeVersionRead
	// ScopeVersionCreate allows uploading versions.
	ScopeVersionCreate
	// ScopeVersionWrite allows editing versions.
	ScopeVersionWrite
	// ScopeVersionDelete allows deleting versions.
	ScopeVersionDelete
	// ScopeOrganizationRead allows reading organizations.
	ScopeOrganizationRead
	// ScopeOrganizationWrite allows editing organizations and their teams.
	ScopeOrganizationWrite
	// ScopePayoutsRead allows reading payout state.
	ScopePayoutsRead
	// ScopePayoutsWrite allows changing payout state.
	ScopePayoutsWrite
	// ScopeNotificationRead allows reading notifications.
	ScopeNotificationRead
	// ScopeNotificationWrite allows acting on notifications.
	ScopeNotificationWrite
	// ScopeSessionAccess marks session-only operations and is never
	// grantable to personal access tokens or OAuth clients.
	ScopeSessionAccess
)

// AllScopes is every known scope, the set a session token carries.
const AllScopes = ScopeSessionAccess<<1 - 1

// RestrictedScopes are the scopes that may not be granted to PATs or
// OAuth clients.
const RestrictedScopes = ScopeSessionAccess

var scopeNames = []struct {
	bit  Scopes
	name string
}{
	{ScopeUserRead, "USER_READ"},
	{ScopeUserReadEmail, "USER_READ_EMAIL"},
	{ScopeUserWrite, "USER_WRITE"},
	{ScopeUserDelete, "USER_DELETE"},
	{ScopeProjectRead, "PROJECT_READ"},
	{ScopeProjectCreate, "PROJECT_CREATE"},
	{ScopeProjectWrite, "PROJECT_WRITE"},
	{ScopeProjectDelete, "PROJECT_DELETE"},
	{ScopeVersionRead, "VERSION_READ"},
	{ScopeVersionCreate, "VERSION_CREATE"},
	{ScopeVersionWrite, "VERSION_WRITE"},
	{ScopeVersionDelete, "VERSION_DELETE"},
	{ScopeOrganizationRead, "ORGANIZATION_READ"},
	{ScopeOrganizationWrite, "ORGANIZATION_WRITE"},
	{ScopePayoutsRead, "PAYOUTS_READ"},
	{ScopePayoutsWrite, "PAYOUTS_WRITE"},
	{ScopeNotificationRead, "NOTIFICATION_READ"},
	{ScopeNotificationWrite, "NOTIFICATION_WRITE"},
	{ScopeSessionAccess, "SESSION_ACCESS"},
}

// Has reports whether every scope in required is present.
func (s Scopes) Has(required Scopes) bool { return s&required == required }

// Intersect returns the scopes present in both sets.
func (s Scopes) Intersect(other Scopes) Scopes { return s & other }

// String renders the set as comma separated scope names.
func (s Scopes) String() string {
	var names []string
	for _, entry := range scopeNames {
		if s&entry.bit != 0 {
			names = append(names, entry.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseScopes parses a comma separated list of scope names.
func ParseScopes(list string) (Scopes, error) {
	var scopes Scopes
next:
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		for _, entry := range scopeNames {
			if entry.name == name {
				scopes |= entry.bit
				continue next
			}
		}
		return 0, Error.New("unknown scope %q", name)
	}
	return scopes, nil
}
