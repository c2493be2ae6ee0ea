// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"
	"time"
)

// CanSeeProject reports whether the user may observe the project.
// Approved, archived and unlisted projects are public; anything else
// needs non-empty effective permissions or an elevated site role.
func (r *PermissionResolver) CanSeeProject(ctx context.Context, user *User, project *Project) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)

	if project.Status.Public() {
		return true, nil
	}
	membership, err := r.ProjectPermissions(ctx, user, project)
	if err != nil {
		return false, err
	}
	return membership.Permissions != 0, nil
}

// FilterProjects returns the subset of projects the user may observe,
// preserving order.
func (r *PermissionResolver) FilterProjects(ctx context.Context, user *User, projects []Project) (_ []Project, err error) {
	defer mon.Task()(&ctx)(&err)

	visible := make([]Project, 0, len(projects))
	for i := range projects {
		ok, err := r.CanSeeProject(ctx, user, &projects[i])
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, projects[i])
		}
	}
	return visible, nil
}

// CanSeeVersion reports whether the user may observe the version: the
// project must be visible and the version publicly observable, unless
// the user holds any project permission.
func (r *PermissionResolver) CanSeeVersion(ctx context.Context, user *User, project *Project, version *Version) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)

	projectVisible, err := r.CanSeeProject(ctx, user, project)
	if err != nil {
		return false, err
	}
	if !projectVisible {
		return false, nil
	}
	if version.Observable(time.Now()) {
		return true, nil
	}
	membership, err := r.ProjectPermissions(ctx, user, project)
	if err != nil {
		return false, err
	}
	return membership.Permissions != 0, nil
}

// FilterVersions returns the subset of a project's versions the user
// may observe, preserving order.
func (r *PermissionResolver) FilterVersions(ctx context.Context, user *User, project *Project, versions []Version) (_ []Version, err error) {
	defer mon.Task()(&ctx)(&err)

	projectVisible, err := r.CanSeeProject(ctx, user, project)
	if err != nil {
		return nil, err
	}
	if !projectVisible {
		return []Version{}, nil
	}
	membership, err := r.ProjectPermissions(ctx, user, project)
	if err != nil {
		return nil, err
	}
	if membership.Permissions != 0 {
		return versions, nil
	}
	now := time.Now()
	visible := make([]Version, 0, len(versions))
	for i := range versions {
		if versions[i].Observable(now) {
			visible = append(visible, versions[i])
		}
	}
	return visible, nil
}

// FilterMembers hides unaccepted member rows from principals that are
// not the invitee, the owner or a moderator.
func FilterMembers(members []TeamMember, viewer *User, viewerIsOwner bool) []TeamMember {
	elevated := viewer != nil && viewer.SiteRole.Elevated()
	visible := make([]TeamMember, 0, len(members))
	for _, member := range members {
		if member.Accepted || elevated || viewerIsOwner ||
			(viewer != nil && viewer.ID == member.UserID) {
			visible = append(visible, member)
		}
	}
	return visible
}
