// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"modhost.io/modhost/hub/cache"
	"modhost.io/modhost/hub/hubauth"
	"modhost.io/modhost/hub/ident"
)

// OrgService handles organization lifecycle and project adoption with
// the owner-inheritance semantics.
//
// architecture: Service
type OrgService struct {
	log    *zap.Logger
	db     DB
	cache  cache.Client
	outbox *Outbox
}

// NewOrgService creates an organization service.
func NewOrgService(log *zap.Logger, db DB, cache cache.Client, outbox *Outbox) *OrgService {
	return &OrgService{log: log, db: db, cache: cache, outbox: outbox}
}

// checkOrgSlugFree rejects slugs colliding with an existing
// organization slug or with the base62 form of an existing organization
// id.
func checkOrgSlugFree(ctx context.Context, stores Stores, slug string) error {
	if err := ValidateSlug(slug); err != nil {
		return err
	}
	if _, err := stores.Organizations().GetBySlug(ctx, slug); err == nil {
		return ErrConflict.New("slug %q is taken", slug)
	} else if !ErrNotFound.Has(err) {
		return ErrExternal.Wrap(err)
	}
	if id, err := ident.Decode(ident.KindOrganization, slug); err == nil {
		if _, err := stores.Organizations().Get(ctx, id); err == nil {
			return ErrConflict.New("slug %q collides with an existing id", slug)
		} else if !ErrNotFound.Has(err) {
			return ErrExternal.Wrap(err)
		}
	}
	return nil
}

// Create allocates an organization and its team in one transaction and
// seats the creator as owner.
func (s *OrgService) Create(ctx context.Context, principal *Principal, slug, name, description string) (_ *Organization, err error) {
	defer mon.Task()(&ctx)(&err)

	creator, err := requireUser(principal)
	if err != nil {
		return nil, err
	}
	if err := principal.RequireScope(hubauth.ScopeOrganizationWrite); err != nil {
		return nil, err
	}

	var org *Organization
	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := checkOrgSlugFree(ctx, tx, slug); err != nil {
			return err
		}
		team, err := tx.Teams().Create(ctx)
		if err != nil {
			return ErrExternal.Wrap(err)
		}
		org, err = tx.Organizations().Insert(ctx, &Organization{
			TeamID:      team.ID,
			Slug:        slug,
			Name:        name,
			Description: description,
		})
		if err != nil {
			return err
		}
		allOrg := AllOrganizationPermissions
		return tx.TeamMembers().Insert(ctx, &TeamMember{
			TeamID:                  team.ID,
			UserID:                  creator.ID,
			Role:                    RoleNameOwner,
			IsOwner:                 true,
			Permissions:             AllProjectPermissions,
			OrganizationPermissions: &allOrg,
			Accepted:                true,
			PayoutsSplit:            decimal.Zero,
		})
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// Get returns an organization with its member list by id or slug,
// hiding unaccepted invitations from outsiders.
func (s *OrgService) Get(ctx context.Context, principal *Principal, idOrSlug string) (_ *Organization, _ []TeamMember, err error) {
	defer mon.Task()(&ctx)(&err)

	id, err := ident.Decode(ident.KindOrganization, idOrSlug)
	if err != nil {
		id, err = cachedOrgIDBySlug(ctx, s.cache, s.db, idOrSlug)
		if err != nil {
			return nil, nil, err
		}
	}
	org, err := s.db.Organizations().Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	members, err := s.db.TeamMembers().List(ctx, org.TeamID)
	if err != nil {
		return nil, nil, ErrExternal.Wrap(err)
	}
	resolver := NewPermissionResolver(s.log, s.db)
	rights, err := resolver.TeamPermissions(ctx, userOf(principal), org.TeamID)
	if err != nil {
		return nil, nil, err
	}
	return org, FilterMembers(members, userOf(principal), rights.Owner), nil
}

// OrganizationUpdate is the patch applied by Edit; nil fields are left
// unchanged.
type OrganizationUpdate struct {
	Slug        *string
	Name        *string
	Description *string
}

// Edit patches organization details; requires the organization
// EDIT_DETAILS bit.
func (s *OrgService) Edit(ctx context.Context, principal *Principal, orgID ident.ID, update OrganizationUpdate) (err error) {
	defer mon.Task()(&ctx)(&err)

	actor, err := requireUser(principal)
	if err != nil {
		return err
	}
	if err := principal.RequireScope(hubauth.ScopeOrganizationWrite); err != nil {
		return err
	}

	var priorSlug string
	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		org, err := tx.Organizations().Get(ctx, orgID)
		if err != nil {
			return err
		}
		priorSlug = org.Slug

		resolver := NewPermissionResolver(s.log, tx)
		membership, err := resolver.OrganizationPermissions(ctx, actor, org)
		if err != nil {
			return err
		}
		if !membership.Permissions.Has(OrgPermEditDetails) {
			return ErrPermission.New("editing the organization requires EDIT_DETAILS")
		}

		if update.Slug != nil && !strings.EqualFold(*update.Slug, org.Slug) {
			if err := checkOrgSlugFree(ctx, tx, *update.Slug); err != nil {
				return err
			}
			org.Slug = *update.Slug
		}
		if update.Name != nil {
			org.Name = *update.Name
		}
		if update.Description != nil {
			org.Description = *update.Description
		}
		return tx.Organizations().Update(ctx, org)
	})
	if err != nil {
		return err
	}

	_ = s.cache.Invalidate(ctx, cache.Organizations, ident.Encode(orgID))
	_ = s.cache.Invalidate(ctx, cache.OrgSlugs, strings.ToLower(priorSlug))
	org, err := s.db.Organizations().Get(ctx, orgID)
	if err == nil {
		invalidateOrganization(ctx, s.cache, org)
	}
	return nil
}

// Adopt moves a standalone project into the organization. The actor
// must be the project's direct owner (or a site admin) and hold
// ADD_PROJECT on the organization. The direct owner row is removed so
// ownership is inherited from the organization.
func (s *OrgService) Adopt(ctx context.Context, principal *Principal, projectID, orgID ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	actor, err := requireUser(principal)
	if err != nil {
		return err
	}
	if err := principal.RequireScope(hubauth.ScopeOrganizationWrite); err != nil {
		return err
	}

	var teamID ident.ID
	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Projects().Lock(ctx, projectID); err != nil {
			return err
		}
		project, err := tx.Projects().Get(ctx, projectID)
		if err != nil {
			return err
		}
		teamID = project.TeamID
		if !project.OrganizationID.IsZero() {
			return ErrPrecondition.New("project is already in an organization")
		}
		org, err := tx.Organizations().Get(ctx, orgID)
		if err != nil {
			return err
		}

		directOwner, err := tx.TeamMembers().Find(ctx, project.TeamID, actor.ID)
		if err != nil {
			return ErrExternal.Wrap(err)
		}
		isDirectOwner := directOwner != nil && directOwner.IsOwner
		if !isDirectOwner && actor.SiteRole != RoleAdmin {
			return ErrPermission.New("only the project owner may move it into an organization")
		}

		resolver := NewPermissionResolver(s.log, tx)
		membership, err := resolver.OrganizationPermissions(ctx, actor, org)
		if err != nil {
			return err
		}
		if !membership.Permissions.Has(OrgPermAddProject) {
			return ErrPermission.New("adopting a project requires ADD_PROJECT")
		}

		if err := tx.Projects().SetOrganization(ctx, project.ID, org.ID); err != nil {
			return err
		}

		// drop the direct owner row, and any project-team row of the
		// organization owner, so ownership is inherited only
		members, err := tx.TeamMembers().List(ctx, project.TeamID)
		if err != nil {
			return ErrExternal.Wrap(err)
		}
		orgOwnerID, err := teamOwnerID(ctx, tx, org.TeamID)
		if err != nil {
			return err
		}
		for _, member := range members {
			if member.IsOwner || member.UserID == orgOwnerID {
				if err := tx.TeamMembers().Delete(ctx, project.TeamID, member.UserID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := invalidateTeam(ctx, s.cache, s.db, teamID); err != nil {
		return err
	}
	return s.reindex(ctx, projectID)
}

// Release hands a project back out of the organization, materializing
// ownership onto new_owner. Requires REMOVE_PROJECT on the
// organization; new_owner must be an accepted organization member.
func (s *OrgService) Release(ctx context.Context, principal *Principal, projectID, orgID, newOwnerID ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	actor, err := requireUser(principal)
	if err != nil {
		return err
	}
	if err := principal.RequireScope(hubauth.ScopeOrganizationWrite); err != nil {
		return err
	}

	var teamID ident.ID
	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Projects().Lock(ctx, projectID); err != nil {
			return err
		}
		project, err := tx.Projects().Get(ctx, projectID)
		if err != nil {
			return err
		}
		teamID = project.TeamID
		if project.OrganizationID != orgID {
			return ErrPrecondition.New("project is not in this organization")
		}
		org, err := tx.Organizations().Get(ctx, orgID)
		if err != nil {
			return err
		}

		resolver := NewPermissionResolver(s.log, tx)
		membership, err := resolver.OrganizationPermissions(ctx, actor, org)
		if err != nil {
			return err
		}
		if !membership.Permissions.Has(OrgPermRemoveProject) {
			return ErrPermission.New("releasing a project requires REMOVE_PROJECT")
		}

		orgMember, err := tx.TeamMembers().Find(ctx, org.TeamID, newOwnerID)
		if err != nil {
			return ErrExternal.Wrap(err)
		}
		if orgMember == nil || !orgMember.Accepted {
			return ErrInvalidInput.New("new owner must be an accepted organization member")
		}

		return materializeOwner(ctx, tx, project, newOwnerID)
	})
	if err != nil {
		return err
	}

	if err := invalidateTeam(ctx, s.cache, s.db, teamID); err != nil {
		return err
	}
	return s.reindex(ctx, projectID)
}

// Delete removes the organization after materializing its owner onto
// every project still inside it. Requires DELETE_ORGANIZATION.
func (s *OrgService) Delete(ctx context.Context, principal *Principal, orgID ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	actor, err := requireUser(principal)
	if err != nil {
		return err
	}
	if err := principal.RequireScope(hubauth.ScopeOrganizationWrite); err != nil {
		return err
	}

	var org *Organization
	var projects []Project
	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		org, err = tx.Organizations().Get(ctx, orgID)
		if err != nil {
			return err
		}

		resolver := NewPermissionResolver(s.log, tx)
		membership, err := resolver.OrganizationPermissions(ctx, actor, org)
		if err != nil {
			return err
		}
		if !membership.Permissions.Has(OrgPermDeleteOrganization) {
			return ErrPermission.New("deleting the organization requires DELETE_ORGANIZATION")
		}

		ownerID, err := teamOwnerID(ctx, tx, org.TeamID)
		if err != nil {
			return err
		}
		projects, err = tx.Projects().ListByOrganization(ctx, orgID)
		if err != nil {
			return ErrExternal.Wrap(err)
		}
		for i := range projects {
			if err := tx.Projects().Lock(ctx, projects[i].ID); err != nil {
				return err
			}
			if err := materializeOwner(ctx, tx, &projects[i], ownerID); err != nil {
				return err
			}
		}
		if err := tx.Organizations().Delete(ctx, orgID); err != nil {
			return err
		}
		return tx.Teams().Delete(ctx, org.TeamID)
	})
	if err != nil {
		return err
	}

	invalidateOrganization(ctx, s.cache, org)
	_ = s.cache.Invalidate(ctx, cache.Teams, ident.Encode(org.TeamID))
	for i := range projects {
		invalidateProject(ctx, s.cache, &projects[i])
		_ = s.cache.Invalidate(ctx, cache.Teams, ident.Encode(projects[i].TeamID))
	}
	return nil
}

// teamOwnerID returns the user id of a team's owner row.
func teamOwnerID(ctx context.Context, stores Stores, teamID ident.ID) (ident.ID, error) {
	members, err := stores.TeamMembers().List(ctx, teamID)
	if err != nil {
		return 0, ErrExternal.Wrap(err)
	}
	for _, member := range members {
		if member.IsOwner {
			return member.UserID, nil
		}
	}
	return 0, ErrPrecondition.New("team has no owner")
}

// materializeOwner seats ownerID as the direct owner of the project and
// clears its organization reference.
func materializeOwner(ctx context.Context, tx Tx, project *Project, ownerID ident.ID) error {
	member, err := tx.TeamMembers().Find(ctx, project.TeamID, ownerID)
	if err != nil {
		return ErrExternal.Wrap(err)
	}
	if member == nil {
		member = &TeamMember{
			TeamID:       project.TeamID,
			UserID:       ownerID,
			PayoutsSplit: decimal.Zero,
		}
		if err := tx.TeamMembers().Insert(ctx, member); err != nil {
			return err
		}
	}
	member.IsOwner = true
	member.Role = RoleNameOwner
	member.Accepted = true
	member.Permissions = AllProjectPermissions
	if err := tx.TeamMembers().Update(ctx, member); err != nil {
		return err
	}
	return tx.Projects().SetOrganization(ctx, project.ID, 0)
}

func (s *OrgService) reindex(ctx context.Context, projectID ident.ID) error {
	project, err := s.db.Projects().Get(ctx, projectID)
	if err != nil {
		return err
	}
	aggregate, err := loadProjectAggregate(ctx, s.db, project)
	if err != nil {
		return err
	}
	batch := s.outbox.NewBatch()
	batch.Index(aggregate)
	batch.Commit(ctx)
	return nil
}
