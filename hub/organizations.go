// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"

	"modhost.io/modhost/hub/ident"
)

// Organization groups projects under one team. The owner of the
// organization team is the de-facto owner of every project whose
// OrganizationID points here.
type Organization struct {
	ID          ident.ID
	TeamID      ident.ID
	Slug        string
	Name        string
	Description string
	IconURL     string
	RawIconURL  string
	Color       *int32
}

// Organizations exposes methods to manage the organizations table.
//
// architecture: Database
type Organizations interface {
	// Get returns the organization with the given id.
	Get(ctx context.Context, id ident.ID) (*Organization, error)
	// GetMany returns the organizations with the given ids, skipping
	// missing ones.
	GetMany(ctx context.Context, ids []ident.ID) ([]Organization, error)
	// GetBySlug looks an organization up case-insensitively by slug.
	GetBySlug(ctx context.Context, slug string) (*Organization, error)
	// GetByTeam returns the organization owning the given team, if any.
	GetByTeam(ctx context.Context, teamID ident.ID) (*Organization, error)
	// Insert adds an organization.
	Insert(ctx context.Context, org *Organization) (*Organization, error)
	// Update rewrites the mutable columns.
	Update(ctx context.Context, org *Organization) error
	// Delete removes the organization row.
	Delete(ctx context.Context, id ident.ID) error
}
