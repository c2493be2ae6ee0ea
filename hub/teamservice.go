// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"modhost.io/modhost/hub/cache"
	"modhost.io/modhost/hub/hubauth"
	"modhost.io/modhost/hub/ident"
)

// TeamService handles team membership lifecycle: invitations,
// acceptance, member edits, removal and ownership transfer.
//
// architecture: Service
type TeamService struct {
	log   *zap.Logger
	db    DB
	cache cache.Client
}

// NewTeamService creates a team service.
func NewTeamService(log *zap.Logger, db DB, cache cache.Client) *TeamService {
	return &TeamService{log: log, db: db, cache: cache}
}

// teamScope picks the credential scope governing membership writes on a
// team from its association.
func teamScope(assoc TeamAssociation) hubauth.Scopes {
	if assoc.IsOrganization() {
		return hubauth.ScopeOrganizationWrite
	}
	return hubauth.ScopeProjectWrite
}

// Members returns the member rows of a team, hiding unaccepted
// invitations from outsiders.
func (s *TeamService) Members(ctx context.Context, principal *Principal, teamID ident.ID) (_ []TeamMember, err error) {
	defer mon.Task()(&ctx)(&err)

	members, err := s.db.TeamMembers().List(ctx, teamID)
	if err != nil {
		return nil, ErrExternal.Wrap(err)
	}
	resolver := NewPermissionResolver(s.log, s.db)
	rights, err := resolver.TeamPermissions(ctx, userOf(principal), teamID)
	if err != nil {
		return nil, err
	}
	return FilterMembers(members, userOf(principal), rights.Owner), nil
}

// Invite adds an unaccepted member row. The actor needs the manage
// invites bit on the team's associate and may only grant bits it holds
// itself.
func (s *TeamService) Invite(ctx context.Context, principal *Principal, teamID, inviteeID ident.ID, projectBits ProjectPermissions, orgBits *OrganizationPermissions) (err error) {
	defer mon.Task()(&ctx)(&err)

	actor, err := requireUser(principal)
	if err != nil {
		return err
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		resolver := NewPermissionResolver(s.log, tx)
		rights, err := resolver.TeamPermissions(ctx, actor, teamID)
		if err != nil {
			return err
		}
		if err := principal.RequireScope(teamScope(rights.Association)); err != nil {
			return err
		}
		if !rights.ManageInvites {
			return ErrPermission.New("managing invites requires MANAGE_INVITES")
		}
		if projectBits&^rights.GrantableBits != 0 {
			return ErrInvalidInput.New("cannot grant a permission the actor does not hold")
		}
		if orgBits != nil {
			if !rights.Association.IsOrganization() {
				return ErrInvalidInput.New("organization permissions on a project team")
			}
			if *orgBits&^rights.GrantableOrg != 0 {
				return ErrInvalidInput.New("cannot grant a permission the actor does not hold")
			}
		}

		if _, err := tx.Users().Get(ctx, inviteeID); err != nil {
			return err
		}
		existing, err := tx.TeamMembers().Find(ctx, teamID, inviteeID)
		if err != nil {
			return ErrExternal.Wrap(err)
		}
		if existing != nil {
			return ErrInvalidInput.New("user is already a member of this team")
		}

		members, err := tx.TeamMembers().List(ctx, teamID)
		if err != nil {
			return ErrExternal.Wrap(err)
		}
		return tx.TeamMembers().Insert(ctx, &TeamMember{
			TeamID:                  teamID,
			UserID:                  inviteeID,
			Role:                    "Member",
			Permissions:             projectBits,
			OrganizationPermissions: orgBits,
			Accepted:                false,
			PayoutsSplit:            decimal.Zero,
			Ordering:                int64(len(members)),
		})
	})
	if err != nil {
		return err
	}
	return invalidateTeam(ctx, s.cache, s.db, teamID)
}

// Accept marks the principal's own invitation accepted.
func (s *TeamService) Accept(ctx context.Context, principal *Principal, teamID ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	user, err := requireUser(principal)
	if err != nil {
		return err
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		member, err := tx.TeamMembers().Find(ctx, teamID, user.ID)
		if err != nil {
			return ErrExternal.Wrap(err)
		}
		if member == nil {
			return ErrNotFound.New("no invitation for this team")
		}
		if member.Accepted {
			return ErrPrecondition.New("invitation already accepted")
		}
		member.Accepted = true
		return tx.TeamMembers().Update(ctx, member)
	})
	if err != nil {
		return err
	}
	return invalidateTeam(ctx, s.cache, s.db, teamID)
}

// TeamMemberUpdate is the patch applied by EditMember; nil fields are
// left unchanged.
type TeamMemberUpdate struct {
	Role                    *string
	Permissions             *ProjectPermissions
	OrganizationPermissions *OrganizationPermissions
	PayoutsSplit            *decimal.Decimal
	Ordering                *int64
}

// EditMember patches a member row. The actor cannot grant bits beyond
// its own, cannot hand out the reserved owner role and cannot touch the
// owner row unless it is the owner.
func (s *TeamService) EditMember(ctx context.Context, principal *Principal, teamID, targetID ident.ID, update TeamMemberUpdate) (err error) {
	defer mon.Task()(&ctx)(&err)

	actor, err := requireUser(principal)
	if err != nil {
		return err
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		resolver := NewPermissionResolver(s.log, tx)
		rights, err := resolver.TeamPermissions(ctx, actor, teamID)
		if err != nil {
			return err
		}
		if err := principal.RequireScope(teamScope(rights.Association)); err != nil {
			return err
		}
		if !rights.EditMember {
			return ErrPermission.New("editing members requires EDIT_MEMBER")
		}

		member, err := tx.TeamMembers().Find(ctx, teamID, targetID)
		if err != nil {
			return ErrExternal.Wrap(err)
		}
		if member == nil {
			return ErrNotFound.New("user is not a member of this team")
		}
		if member.IsOwner && !rights.Owner {
			return ErrPermission.New("only the owner may edit the owner row")
		}

		if update.Role != nil {
			if *update.Role == RoleNameOwner {
				return ErrInvalidInput.New("the Owner role is reserved")
			}
			member.Role = *update.Role
		}
		if update.Permissions != nil {
			if *update.Permissions&^rights.GrantableBits != 0 {
				return ErrInvalidInput.New("cannot grant a permission the actor does not hold")
			}
			member.Permissions = *update.Permissions
		}
		if update.OrganizationPermissions != nil {
			if !rights.Association.IsOrganization() {
				return ErrInvalidInput.New("organization permissions on a project team")
			}
			if *update.OrganizationPermissions&^rights.GrantableOrg != 0 {
				return ErrInvalidInput.New("cannot grant a permission the actor does not hold")
			}
			member.OrganizationPermissions = update.OrganizationPermissions
		}
		if update.PayoutsSplit != nil {
			if err := ValidatePayoutsSplit(*update.PayoutsSplit); err != nil {
				return err
			}
			member.PayoutsSplit = *update.PayoutsSplit
		}
		if update.Ordering != nil {
			member.Ordering = *update.Ordering
		}
		return tx.TeamMembers().Update(ctx, member)
	})
	if err != nil {
		return err
	}
	return invalidateTeam(ctx, s.cache, s.db, teamID)
}

// Remove deletes a member row. The owner row cannot be removed.
func (s *TeamService) Remove(ctx context.Context, principal *Principal, teamID, targetID ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	actor, err := requireUser(principal)
	if err != nil {
		return err
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		resolver := NewPermissionResolver(s.log, tx)
		rights, err := resolver.TeamPermissions(ctx, actor, teamID)
		if err != nil {
			return err
		}
		if err := principal.RequireScope(teamScope(rights.Association)); err != nil {
			return err
		}
		member, err := tx.TeamMembers().Find(ctx, teamID, targetID)
		if err != nil {
			return ErrExternal.Wrap(err)
		}
		if member == nil {
			return ErrNotFound.New("user is not a member of this team")
		}
		// members may always leave; removing others needs the bit
		if targetID != actor.ID && !rights.RemoveMember {
			return ErrPermission.New("removing members requires REMOVE_MEMBER")
		}
		if member.IsOwner {
			return ErrPermission.New("the owner cannot be removed")
		}
		return tx.TeamMembers().Delete(ctx, teamID, targetID)
	})
	if err != nil {
		return err
	}
	return invalidateTeam(ctx, s.cache, s.db, teamID)
}

// TransferOwnership moves the owner flag to an accepted member. The
// prior owner stays on the team with the full bit set.
func (s *TeamService) TransferOwnership(ctx context.Context, principal *Principal, teamID, newOwnerID ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	actor, err := requireUser(principal)
	if err != nil {
		return err
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		resolver := NewPermissionResolver(s.log, tx)
		rights, err := resolver.TeamPermissions(ctx, actor, teamID)
		if err != nil {
			return err
		}
		if err := principal.RequireScope(teamScope(rights.Association)); err != nil {
			return err
		}
		if !rights.Owner {
			return ErrPermission.New("only the owner may transfer ownership")
		}

		prior, err := tx.TeamMembers().Find(ctx, teamID, actor.ID)
		if err != nil {
			return ErrExternal.Wrap(err)
		}
		target, err := tx.TeamMembers().Find(ctx, teamID, newOwnerID)
		if err != nil {
			return ErrExternal.Wrap(err)
		}
		if target == nil || !target.Accepted {
			return ErrInvalidInput.New("new owner must be an accepted member")
		}
		if prior == nil {
			return ErrPrecondition.New("owner row is not on this team")
		}

		prior.IsOwner = false
		prior.Permissions = AllProjectPermissions
		if rights.Association.IsOrganization() {
			all := AllOrganizationPermissions
			prior.OrganizationPermissions = &all
		}
		if err := tx.TeamMembers().Update(ctx, prior); err != nil {
			return err
		}

		target.IsOwner = true
		target.Role = RoleNameOwner
		target.Permissions = AllProjectPermissions
		if rights.Association.IsOrganization() {
			all := AllOrganizationPermissions
			target.OrganizationPermissions = &all
		}
		return tx.TeamMembers().Update(ctx, target)
	})
	if err != nil {
		return err
	}
	return invalidateTeam(ctx, s.cache, s.db, teamID)
}
