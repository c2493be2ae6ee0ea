// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"

	"github.com/shopspring/decimal"

	"modhost.io/modhost/hub/ident"
)

// RoleNameOwner is the reserved display role of a team owner.
const RoleNameOwner = "Owner"

// MaxPayoutsSplit bounds the payouts_split column.
var MaxPayoutsSplit = decimal.NewFromInt(5000)

// Team is a membership container. It carries no data of its own; exactly
// one project or one organization points at it.
type Team struct {
	ID ident.ID
}

// TeamAssociation names the single entity a team belongs to. Exactly one
// of the two ids is set; dangling teams are removed with their associate.
type TeamAssociation struct {
	ProjectID      ident.ID
	OrganizationID ident.ID
}

// IsProject reports whether the team belongs to a project.
func (a TeamAssociation) IsProject() bool { return !a.ProjectID.IsZero() }

// IsOrganization reports whether the team belongs to an organization.
func (a TeamAssociation) IsOrganization() bool { return !a.OrganizationID.IsZero() }

// TeamMember is a (team, user) edge. OrganizationPermissions is non-nil
// exactly when the team is an organization team; for organization
// members Permissions holds the fallback project bits applied to the
// organization's projects.
type TeamMember struct {
	TeamID                  ident.ID
	UserID                  ident.ID
	Role                    string
	IsOwner                 bool
	Permissions             ProjectPermissions
	OrganizationPermissions *OrganizationPermissions
	Accepted                bool
	PayoutsSplit            decimal.Decimal
	Ordering                int64
}

// Teams exposes methods to manage the teams table.
//
// architecture: Database
type Teams interface {
	// Create allocates a new empty team.
	Create(ctx context.Context) (*Team, error)
	// Get returns the team with the given id.
	Get(ctx context.Context, id ident.ID) (*Team, error)
	// Association resolves the project or organization owning the team;
	// a team referenced by neither yields the zero association.
	Association(ctx context.Context, id ident.ID) (TeamAssociation, error)
	// Delete removes the team and its members.
	Delete(ctx context.Context, id ident.ID) error
}

// TeamMembers exposes methods to manage the team_members table.
//
// architecture: Database
type TeamMembers interface {
	// Find returns the member row for (team, user), or nil when absent.
	Find(ctx context.Context, teamID, userID ident.ID) (*TeamMember, error)
	// List returns all member rows of a team ordered by ordering.
	List(ctx context.Context, teamID ident.ID) ([]TeamMember, error)
	// ListByUser returns all member rows of a user across teams.
	ListByUser(ctx context.Context, userID ident.ID) ([]TeamMember, error)
	// Insert adds a member row.
	Insert(ctx context.Context, member *TeamMember) error
	// Update rewrites a member row identified by (team, user).
	Update(ctx context.Context, member *TeamMember) error
	// Delete removes the member row for (team, user).
	Delete(ctx context.Context, teamID, userID ident.ID) error
}

// ValidatePayoutsSplit checks the payouts share at the API boundary.
func ValidatePayoutsSplit(split decimal.Decimal) error {
	if split.IsNegative() || split.GreaterThan(MaxPayoutsSplit) {
		return ErrInvalidInput.New("payouts_split must be within [0, 5000]")
	}
	return nil
}
