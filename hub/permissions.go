// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import "strings"

// ProjectPermissions is the per-project permission bitset stored on team
// member rows and produced by the resolver.
type ProjectPermissions uint64

const (
	// PermUploadVersion allows creating versions.
	PermUploadVersion ProjectPermissions = 1 << iota
	// PermDeleteVersion allows deleting versions.
	PermDeleteVersion
	// PermEditDetails allows editing most project fields.
	PermEditDetails
	// PermEditBody allows editing the long description.
	PermEditBody
	// PermManageInvites allows inviting members.
	PermManageInvites
	// PermRemoveMember allows removing members.
	PermRemoveMember
	// PermEditMember allows editing member rows.
	PermEditMember
	// PermDeleteProject allows deleting the project.
	PermDeleteProject
	// PermViewAnalytics allows reading project analytics.
	PermViewAnalytics
	// PermViewPayouts allows reading project payout state.
	PermViewPayouts
)

// AllProjectPermissions is the owner/moderator sentinel: the OR of every
// known project bit. Callers compare against it with plain equality.
const AllProjectPermissions = PermViewPayouts<<1 - 1

// Has reports whether every bit in required is present.
func (p ProjectPermissions) Has(required ProjectPermissions) bool {
	return p&required == required
}

// Intersect returns the bits present in both sets.
func (p ProjectPermissions) Intersect(other ProjectPermissions) ProjectPermissions {
	return p & other
}

var projectPermissionNames = []struct {
	bit  ProjectPermissions
	name string
}{
	{PermUploadVersion, "UPLOAD_VERSION"},
	{PermDeleteVersion, "DELETE_VERSION"},
	{PermEditDetails, "EDIT_DETAILS"},
	{PermEditBody, "EDIT_BODY"},
	{PermManageInvites, "MANAGE_INVITES"},
	{PermRemoveMember, "REMOVE_MEMBER"},
	{PermEditMember, "EDIT_MEMBER"},
	{PermDeleteProject, "DELETE_PROJECT"},
	{PermViewAnalytics, "VIEW_ANALYTICS"},
	{PermViewPayouts, "VIEW_PAYOUTS"},
}

// String renders the set as comma separated bit names.
func (p ProjectPermissions) String() string {
	var names []string
	for _, entry := range projectPermissionNames {
		if p&entry.bit != 0 {
			names = append(names, entry.name)
		}
	}
	return strings.Join(names, ",")
}

// OrganizationPermissions is the per-organization permission bitset
// stored on organization team member rows.
type OrganizationPermissions uint64

const (
	// OrgPermEditDetails allows editing organization fields.
	OrgPermEditDetails OrganizationPermissions = 1 << iota
	// OrgPermManageInvites allows inviting organization members.
	OrgPermManageInvites
	// OrgPermRemoveMember allows removing organization members.
	OrgPermRemoveMember
	// OrgPermEditMember allows editing organization member rows.
	OrgPermEditMember
	// OrgPermAddProject allows adopting projects into the organization.
	OrgPermAddProject
	// OrgPermRemoveProject allows releasing projects from the
	// organization.
	OrgPermRemoveProject
	// OrgPermEditMemberDefaults allows editing the fallback project
	// bits of organization members.
	OrgPermEditMemberDefaults
	// OrgPermDeleteOrganization allows deleting the organization.
	OrgPermDeleteOrganization
)

// AllOrganizationPermissions is the owner/moderator sentinel for
// organization bits.
const AllOrganizationPermissions = OrgPermDeleteOrganization<<1 - 1

// Has reports whether every bit in required is present.
func (p OrganizationPermissions) Has(required OrganizationPermissions) bool {
	return p&required == required
}

// Intersect returns the bits present in both sets.
func (p OrganizationPermissions) Intersect(other OrganizationPermissions) OrganizationPermissions {
	return p & other
}

var organizationPermissionNames = []struct {
	bit  OrganizationPermissions
	name string
}{
	{OrgPermEditDetails, "EDIT_DETAILS"},
	{OrgPermManageInvites, "MANAGE_INVITES"},
	{OrgPermRemoveMember, "REMOVE_MEMBER"},
	{OrgPermEditMember, "EDIT_MEMBER"},
	{OrgPermAddProject, "ADD_PROJECT"},
	{OrgPermRemoveProject, "REMOVE_PROJECT"},
	{OrgPermEditMemberDefaults, "EDIT_MEMBER_DEFAULT_PERMISSIONS"},
	{OrgPermDeleteOrganization, "DELETE_ORGANIZATION"},
}

// String renders the set as comma separated bit names.
func (p OrganizationPermissions) String() string {
	var names []string
	for _, entry := range organizationPermissionNames {
		if p&entry.bit != 0 {
			names = append(names, entry.name)
		}
	}
	return strings.Join(names, ",")
}
