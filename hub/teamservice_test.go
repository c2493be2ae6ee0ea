// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"modhost.io/modhost/hub"
	"modhost.io/modhost/hub/hubdb/hubdbtest"
	"modhost.io/modhost/private/testcontext"
)

func TestTeamInviteAcceptRemove(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		env := newEnv(ctx, t, db)

		owner := newUser(ctx, t, db, "team-owner")
		invitee := newUser(ctx, t, db, "team-invitee")
		outsider := newUser(ctx, t, db, "team-outsider")
		project := createProject(ctx, t, env, owner, uniqueSlug("team-project"))

		t.Run("OutsiderCannotInvite", func(t *testing.T) {
			err := env.Teams.Invite(ctx, asPrincipal(outsider), project.TeamID, invitee.ID,
				hub.PermUploadVersion, nil)
			require.True(t, hub.ErrPermission.Has(err))
		})

		t.Run("InviteAndAccept", func(t *testing.T) {
			err := env.Teams.Invite(ctx, asPrincipal(owner), project.TeamID, invitee.ID,
				hub.PermUploadVersion, nil)
			require.NoError(t, err)

			// double invite is rejected
			err = env.Teams.Invite(ctx, asPrincipal(owner), project.TeamID, invitee.ID,
				hub.PermUploadVersion, nil)
			require.True(t, hub.ErrInvalidInput.Has(err))

			require.NoError(t, env.Teams.Accept(ctx, asPrincipal(invitee), project.TeamID))
			err = env.Teams.Accept(ctx, asPrincipal(invitee), project.TeamID)
			require.True(t, hub.ErrPrecondition.Has(err))
		})

		t.Run("MemberCannotGrantBeyondOwnBits", func(t *testing.T) {
			// invitee holds UPLOAD_VERSION only, so cannot invite at all
			// (no MANAGE_INVITES), and the owner cannot grant bits it
			// holds for others beyond its own set is vacuous; check the
			// invitee path
			err := env.Teams.Invite(ctx, asPrincipal(invitee), project.TeamID, outsider.ID,
				hub.PermUploadVersion, nil)
			require.True(t, hub.ErrPermission.Has(err))
		})

		t.Run("SelfLeaveAlwaysAllowed", func(t *testing.T) {
			require.NoError(t, env.Teams.Remove(ctx, asPrincipal(invitee), project.TeamID, invitee.ID))
			member, err := db.TeamMembers().Find(ctx, project.TeamID, invitee.ID)
			require.NoError(t, err)
			require.Nil(t, member)
		})

		t.Run("OwnerRowCannotBeRemoved", func(t *testing.T) {
			err := env.Teams.Remove(ctx, asPrincipal(owner), project.TeamID, owner.ID)
			require.True(t, hub.ErrPermission.Has(err))
		})
	})
}

func TestTeamEditMember(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		env := newEnv(ctx, t, db)

		owner := newUser(ctx, t, db, "edit-owner")
		member := newUser(ctx, t, db, "edit-member")
		project := createProject(ctx, t, env, owner, uniqueSlug("edit-project"))

		require.NoError(t, env.Teams.Invite(ctx, asPrincipal(owner), project.TeamID, member.ID,
			hub.PermUploadVersion, nil))
		require.NoError(t, env.Teams.Accept(ctx, asPrincipal(member), project.TeamID))

		t.Run("OwnerRoleIsReserved", func(t *testing.T) {
			role := hub.RoleNameOwner
			err := env.Teams.EditMember(ctx, asPrincipal(owner), project.TeamID, member.ID,
				hub.TeamMemberUpdate{Role: &role})
			require.True(t, hub.ErrInvalidInput.Has(err))
		})

		t.Run("PayoutsSplitBounds", func(t *testing.T) {
			tooMuch := decimal.NewFromInt(5001)
			err := env.Teams.EditMember(ctx, asPrincipal(owner), project.TeamID, member.ID,
				hub.TeamMemberUpdate{PayoutsSplit: &tooMuch})
			require.True(t, hub.ErrInvalidInput.Has(err))

			ok := decimal.NewFromInt(2500)
			err = env.Teams.EditMember(ctx, asPrincipal(owner), project.TeamID, member.ID,
				hub.TeamMemberUpdate{PayoutsSplit: &ok})
			require.NoError(t, err)

			row, err := db.TeamMembers().Find(ctx, project.TeamID, member.ID)
			require.NoError(t, err)
			require.True(t, ok.Equal(row.PayoutsSplit))
		})

		t.Run("GrantWithinOwnBits", func(t *testing.T) {
			bits := hub.PermUploadVersion | hub.PermEditDetails
			err := env.Teams.EditMember(ctx, asPrincipal(owner), project.TeamID, member.ID,
				hub.TeamMemberUpdate{Permissions: &bits})
			require.NoError(t, err)

			// the member may not edit rows at all without EDIT_MEMBER
			downgrade := hub.PermUploadVersion
			err = env.Teams.EditMember(ctx, asPrincipal(member), project.TeamID, member.ID,
				hub.TeamMemberUpdate{Permissions: &downgrade})
			require.True(t, hub.ErrPermission.Has(err))
		})
	})
}

func TestTeamTransferOwnership(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		env := newEnv(ctx, t, db)

		first := newUser(ctx, t, db, "transfer-first")
		second := newUser(ctx, t, db, "transfer-second")
		project := createProject(ctx, t, env, first, uniqueSlug("transfer-project"))

		require.NoError(t, env.Teams.Invite(ctx, asPrincipal(first), project.TeamID, second.ID,
			hub.PermUploadVersion, nil))

		t.Run("TargetMustBeAccepted", func(t *testing.T) {
			err := env.Teams.TransferOwnership(ctx, asPrincipal(first), project.TeamID, second.ID)
			require.True(t, hub.ErrInvalidInput.Has(err))
		})

		require.NoError(t, env.Teams.Accept(ctx, asPrincipal(second), project.TeamID))

		t.Run("NonOwnerCannotTransfer", func(t *testing.T) {
			err := env.Teams.TransferOwnership(ctx, asPrincipal(second), project.TeamID, first.ID)
			require.True(t, hub.ErrPermission.Has(err))
		})

		t.Run("TransferTwiceRestoresOwnership", func(t *testing.T) {
			require.NoError(t, env.Teams.TransferOwnership(ctx, asPrincipal(first), project.TeamID, second.ID))

			row, err := db.TeamMembers().Find(ctx, project.TeamID, second.ID)
			require.NoError(t, err)
			require.True(t, row.IsOwner)
			require.Equal(t, hub.RoleNameOwner, row.Role)
			require.Equal(t, hub.AllProjectPermissions, row.Permissions)

			// the prior owner keeps the full bit set but loses the flag
			row, err = db.TeamMembers().Find(ctx, project.TeamID, first.ID)
			require.NoError(t, err)
			require.False(t, row.IsOwner)
			require.Equal(t, hub.AllProjectPermissions, row.Permissions)

			require.NoError(t, env.Teams.TransferOwnership(ctx, asPrincipal(second), project.TeamID, first.ID))
			row, err = db.TeamMembers().Find(ctx, project.TeamID, first.ID)
			require.NoError(t, err)
			require.True(t, row.IsOwner)
		})
	})
}

func TestTeamOrganizationMembership(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		env := newEnv(ctx, t, db)

		owner := newUser(ctx, t, db, "orgteam-owner")
		helper := newUser(ctx, t, db, "orgteam-helper")
		third := newUser(ctx, t, db, "orgteam-third")
		org, err := env.Orgs.Create(ctx, asPrincipal(owner), uniqueSlug("orgteam"), "Org", "")
		require.NoError(t, err)

		orgBits := hub.OrgPermManageInvites
		require.NoError(t, env.Teams.Invite(ctx, asPrincipal(owner), org.TeamID, helper.ID,
			hub.PermUploadVersion, &orgBits))
		require.NoError(t, env.Teams.Accept(ctx, asPrincipal(helper), org.TeamID))

		t.Run("MemberInvitesWithinFallbackBits", func(t *testing.T) {
			require.NoError(t, env.Teams.Invite(ctx, asPrincipal(helper), org.TeamID, third.ID,
				hub.PermUploadVersion, nil))

			row, err := db.TeamMembers().Find(ctx, org.TeamID, third.ID)
			require.NoError(t, err)
			require.NotNil(t, row)
			require.Equal(t, hub.PermUploadVersion, row.Permissions)
		})

		t.Run("MemberCannotGrantBeyondFallbackBits", func(t *testing.T) {
			fourth := newUser(ctx, t, db, "orgteam-fourth")
			err := env.Teams.Invite(ctx, asPrincipal(helper), org.TeamID, fourth.ID,
				hub.PermEditDetails, nil)
			require.True(t, hub.ErrInvalidInput.Has(err))
		})

		t.Run("MemberCannotGrantOrgBitsBeyondOwn", func(t *testing.T) {
			fifth := newUser(ctx, t, db, "orgteam-fifth")
			extra := hub.OrgPermEditMember
			err := env.Teams.Invite(ctx, asPrincipal(helper), org.TeamID, fifth.ID,
				hub.PermUploadVersion, &extra)
			require.True(t, hub.ErrInvalidInput.Has(err))
		})

		t.Run("OwnerGrantsAnyProjectBits", func(t *testing.T) {
			sixth := newUser(ctx, t, db, "orgteam-sixth")
			require.NoError(t, env.Teams.Invite(ctx, asPrincipal(owner), org.TeamID, sixth.ID,
				hub.AllProjectPermissions, nil))
		})
	})
}

func TestTeamMembersVisibility(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		env := newEnv(ctx, t, db)

		owner := newUser(ctx, t, db, "vis-owner")
		invitee := newUser(ctx, t, db, "vis-invitee")
		outsider := newUser(ctx, t, db, "vis-outsider")
		moderator := newModerator(ctx, t, db, "vis-moderator")
		project := createProject(ctx, t, env, owner, uniqueSlug("vis-team"))

		require.NoError(t, env.Teams.Invite(ctx, asPrincipal(owner), project.TeamID, invitee.ID,
			hub.PermUploadVersion, nil))

		memberCount := func(p *hub.Principal) int {
			members, err := env.Teams.Members(ctx, p, project.TeamID)
			require.NoError(t, err)
			return len(members)
		}

		// pending invitations are visible to the owner, the invitee and
		// moderators, hidden from everyone else
		require.Equal(t, 2, memberCount(asPrincipal(owner)))
		require.Equal(t, 2, memberCount(asPrincipal(invitee)))
		require.Equal(t, 2, memberCount(asPrincipal(moderator)))
		require.Equal(t, 1, memberCount(asPrincipal(outsider)))
		require.Equal(t, 1, memberCount(nil))

		require.NoError(t, env.Teams.Accept(ctx, asPrincipal(invitee), project.TeamID))
		require.Equal(t, 2, memberCount(asPrincipal(outsider)))
	})
}
