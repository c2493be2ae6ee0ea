// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"

	"go.uber.org/zap"

	"modhost.io/modhost/hub/ident"
)

// PermissionResolver computes the effective permission bits of a
// (user, entity) pair. Services construct one over the stores of the
// transaction they run in so permission reads share the write snapshot.
type PermissionResolver struct {
	log    *zap.Logger
	stores Stores
}

// NewPermissionResolver creates a resolver reading through the given
// stores.
func NewPermissionResolver(log *zap.Logger, stores Stores) *PermissionResolver {
	return &PermissionResolver{log: log, stores: stores}
}

// Membership is the resolver result. Empty permissions and absent
// membership are distinct: operations that need a bit check the bits,
// operations that need membership at all check Member.
type Membership struct {
	Permissions ProjectPermissions
	Member      bool
}

// ProjectPermissions returns the effective project bits of the user.
//
// Order of precedence: elevated site role, direct ownership, inherited
// organization ownership, then the organization fallback bits with the
// direct membership layered on top. An accepted direct membership
// replaces the fallback outright, including downward; an unaccepted one
// can only reduce it.
func (r *PermissionResolver) ProjectPermissions(ctx context.Context, user *User, project *Project) (_ Membership, err error) {
	defer mon.Task()(&ctx)(&err)

	if user == nil {
		return Membership{}, nil
	}
	if user.SiteRole.Elevated() {
		return Membership{Permissions: AllProjectPermissions}, nil
	}

	direct, err := r.stores.TeamMembers().Find(ctx, project.TeamID, user.ID)
	if err != nil {
		return Membership{}, ErrExternal.Wrap(err)
	}
	if direct != nil && direct.IsOwner {
		return Membership{Permissions: AllProjectPermissions, Member: true}, nil
	}

	var fallback ProjectPermissions
	var orgMember bool
	if !project.OrganizationID.IsZero() {
		org, err := r.stores.Organizations().Get(ctx, project.OrganizationID)
		if err != nil {
			return Membership{}, ErrExternal.Wrap(err)
		}
		member, err := r.stores.TeamMembers().Find(ctx, org.TeamID, user.ID)
		if err != nil {
			return Membership{}, ErrExternal.Wrap(err)
		}
		if member != nil {
			if member.IsOwner {
				return Membership{Permissions: AllProjectPermissions, Member: true}, nil
			}
			if member.Accepted {
				fallback = member.Permissions
				orgMember = true
			}
		}
	}

	switch {
	case direct == nil && !orgMember:
		return Membership{}, nil
	case direct == nil:
		return Membership{Permissions: fallback, Member: true}, nil
	case direct.Accepted:
		return Membership{Permissions: direct.Permissions, Member: true}, nil
	case orgMember:
		// unaccepted invitations reduce but never extend
		return Membership{Permissions: fallback.Intersect(direct.Permissions), Member: true}, nil
	default:
		return Membership{Member: true}, nil
	}
}

// OrgMembership is the organization analog of Membership.
type OrgMembership struct {
	Permissions OrganizationPermissions
	Member      bool
}

// OrganizationPermissions returns the effective organization bits of the
// user, restricted to the organization's own team.
func (r *PermissionResolver) OrganizationPermissions(ctx context.Context, user *User, org *Organization) (_ OrgMembership, err error) {
	defer mon.Task()(&ctx)(&err)

	if user == nil {
		return OrgMembership{}, nil
	}
	if user.SiteRole.Elevated() {
		return OrgMembership{Permissions: AllOrganizationPermissions}, nil
	}

	member, err := r.stores.TeamMembers().Find(ctx, org.TeamID, user.ID)
	if err != nil {
		return OrgMembership{}, ErrExternal.Wrap(err)
	}
	if member == nil {
		return OrgMembership{}, nil
	}
	if member.IsOwner {
		return OrgMembership{Permissions: AllOrganizationPermissions, Member: true}, nil
	}
	if !member.Accepted || member.OrganizationPermissions == nil {
		return OrgMembership{Member: true}, nil
	}
	return OrgMembership{Permissions: *member.OrganizationPermissions, Member: true}, nil
}

// isProjectOwner reports whether the user owns the project directly or
// through its organization's team.
func (r *PermissionResolver) isProjectOwner(ctx context.Context, user *User, project *Project) (bool, error) {
	if user == nil {
		return false, nil
	}
	direct, err := r.stores.TeamMembers().Find(ctx, project.TeamID, user.ID)
	if err != nil {
		return false, ErrExternal.Wrap(err)
	}
	if direct != nil && direct.IsOwner {
		return true, nil
	}
	if project.OrganizationID.IsZero() {
		return false, nil
	}
	org, err := r.stores.Organizations().Get(ctx, project.OrganizationID)
	if err != nil {
		return false, ErrExternal.Wrap(err)
	}
	inherited, err := r.stores.TeamMembers().Find(ctx, org.TeamID, user.ID)
	if err != nil {
		return false, ErrExternal.Wrap(err)
	}
	return inherited != nil && inherited.IsOwner, nil
}

// TeamPermissions resolves the bits governing membership operations on a
// team by dispatching on the team's association: project teams use
// project bits, organization teams use organization bits mapped onto the
// shared membership operations.
func (r *PermissionResolver) TeamPermissions(ctx context.Context, user *User, teamID ident.ID) (_ TeamRights, err error) {
	defer mon.Task()(&ctx)(&err)

	assoc, err := r.stores.Teams().Association(ctx, teamID)
	if err != nil {
		return TeamRights{}, err
	}
	switch {
	case assoc.IsProject():
		project, err := r.stores.Projects().Get(ctx, assoc.ProjectID)
		if err != nil {
			return TeamRights{}, err
		}
		membership, err := r.ProjectPermissions(ctx, user, project)
		if err != nil {
			return TeamRights{}, err
		}
		owner, err := r.isProjectOwner(ctx, user, project)
		if err != nil {
			return TeamRights{}, err
		}
		return TeamRights{
			Association:   assoc,
			Owner:         owner,
			Member:        membership.Member,
			ManageInvites: membership.Permissions.Has(PermManageInvites),
			RemoveMember:  membership.Permissions.Has(PermRemoveMember),
			EditMember:    membership.Permissions.Has(PermEditMember),
			GrantableBits: membership.Permissions,
		}, nil
	case assoc.IsOrganization():
		org, err := r.stores.Organizations().Get(ctx, assoc.OrganizationID)
		if err != nil {
			return TeamRights{}, err
		}
		membership, err := r.OrganizationPermissions(ctx, user, org)
		if err != nil {
			return TeamRights{}, err
		}
		var row *TeamMember
		if user != nil {
			row, err = r.stores.TeamMembers().Find(ctx, org.TeamID, user.ID)
			if err != nil {
				return TeamRights{}, ErrExternal.Wrap(err)
			}
		}
		// the project bits an organization actor may grant are its own
		// fallback bits; owners and elevated roles may grant any
		grantable := ProjectPermissions(0)
		if membership.Permissions == AllOrganizationPermissions {
			grantable = AllProjectPermissions
		} else if row != nil && row.Accepted {
			grantable = row.Permissions
		}
		owner := row != nil && row.IsOwner
		return TeamRights{
			Association:   assoc,
			Owner:         owner,
			Member:        membership.Member,
			ManageInvites: membership.Permissions.Has(OrgPermManageInvites),
			RemoveMember:  membership.Permissions.Has(OrgPermRemoveMember),
			EditMember:    membership.Permissions.Has(OrgPermEditMember),
			GrantableOrg:  membership.Permissions,
			GrantableBits: grantable,
		}, nil
	default:
		return TeamRights{}, ErrNotFound.New("team has no associate")
	}
}

// TeamRights is the association-independent view of what a user may do
// to a team's membership.
type TeamRights struct {
	Association TeamAssociation
	// Owner is true for the actual owner only, direct or inherited;
	// elevated site roles get every bit but are not owners.
	Owner         bool
	Member        bool
	ManageInvites bool
	RemoveMember  bool
	EditMember    bool
	// GrantableBits are the project bits the actor itself holds and may
	// therefore grant to others.
	GrantableBits ProjectPermissions
	// GrantableOrg are the organization bits the actor holds.
	GrantableOrg OrganizationPermissions
}
