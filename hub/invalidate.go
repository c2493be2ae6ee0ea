// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"
	"strings"

	"modhost.io/modhost/hub/cache"
	"modhost.io/modhost/hub/ident"
)

// Invalidation fan-out. A mutation must drop every alias of every
// directly mutated entity and every cached aggregate embedding a copy of
// the mutated field. These helpers run after commit; the cache layer
// absorbs backend failures, so errors here are advisory.

func invalidateUser(ctx context.Context, c cache.Client, user *User) {
	_ = c.Invalidate(ctx, cache.Users, ident.Encode(user.ID))
	_ = c.Invalidate(ctx, cache.Usernames, strings.ToLower(user.Username))
}

func invalidateProject(ctx context.Context, c cache.Client, project *Project) {
	_ = c.Invalidate(ctx, cache.Projects, ident.Encode(project.ID))
	_ = c.Invalidate(ctx, cache.ProjectSlugs, strings.ToLower(project.Slug))
}

func invalidateOrganization(ctx context.Context, c cache.Client, org *Organization) {
	_ = c.Invalidate(ctx, cache.Organizations, ident.Encode(org.ID))
	_ = c.Invalidate(ctx, cache.OrgSlugs, strings.ToLower(org.Slug))
}

func invalidateVersion(ctx context.Context, c cache.Client, version *Version) {
	_ = c.Invalidate(ctx, cache.Versions, ident.Encode(version.ID))
}

// invalidateTeam drops the team and whatever embeds its member list:
// the owning project, or the owning organization and every project that
// references it (their effective-permission views may have changed).
func invalidateTeam(ctx context.Context, c cache.Client, stores Stores, teamID ident.ID) error {
	_ = c.Invalidate(ctx, cache.Teams, ident.Encode(teamID))

	assoc, err := stores.Teams().Association(ctx, teamID)
	if err != nil {
		return err
	}
	switch {
	case assoc.IsProject():
		project, err := stores.Projects().Get(ctx, assoc.ProjectID)
		if err != nil {
			return err
		}
		invalidateProject(ctx, c, project)
	case assoc.IsOrganization():
		org, err := stores.Organizations().Get(ctx, assoc.OrganizationID)
		if err != nil {
			return err
		}
		invalidateOrganization(ctx, c, org)
		projects, err := stores.Projects().ListByOrganization(ctx, org.ID)
		if err != nil {
			return err
		}
		for i := range projects {
			invalidateProject(ctx, c, &projects[i])
		}
	}
	return nil
}
