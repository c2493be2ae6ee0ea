// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"
	"regexp"
	"time"

	"modhost.io/modhost/hub/ident"
)

// ProjectStatus is the moderation state of a project.
type ProjectStatus string

const (
	// StatusDraft is a project still being written by its team.
	StatusDraft ProjectStatus = "draft"
	// StatusProcessing is a project waiting in the moderation queue.
	StatusProcessing ProjectStatus = "processing"
	// StatusApproved is a publicly listed project.
	StatusApproved ProjectStatus = "approved"
	// StatusRejected was declined by moderation.
	StatusRejected ProjectStatus = "rejected"
	// StatusUnlisted is reachable by link but not listed.
	StatusUnlisted ProjectStatus = "unlisted"
	// StatusArchived is read-only but public.
	StatusArchived ProjectStatus = "archived"
	// StatusWithheld was removed from listing by moderation.
	StatusWithheld ProjectStatus = "withheld"
	// StatusScheduled publishes automatically at a future time.
	StatusScheduled ProjectStatus = "scheduled"
	// StatusPrivate is visible to its team only.
	StatusPrivate ProjectStatus = "private"
)

// Valid reports whether the status is part of the vocabulary.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusProcessing, StatusApproved, StatusRejected,
		StatusUnlisted, StatusArchived, StatusWithheld, StatusScheduled,
		StatusPrivate:
		return true
	}
	return false
}

// Public reports whether the status is observable without membership.
func (s ProjectStatus) Public() bool {
	return s == StatusApproved || s == StatusArchived || s == StatusUnlisted
}

// ModerationControlled reports whether entering the status requires a
// moderator, not just permission bits.
func (s ProjectStatus) ModerationControlled() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusWithheld
}

// MonetizationStatus controls whether a project participates in payouts.
type MonetizationStatus string

const (
	// Monetized projects accrue payouts.
	Monetized MonetizationStatus = "monetized"
	// Demonetized projects opted out of payouts.
	Demonetized MonetizationStatus = "demonetized"
	// ForceDemonetized projects were demonetized by moderation.
	ForceDemonetized MonetizationStatus = "force-demonetized"
)

// GalleryItem is an ordered image attached to a project.
type GalleryItem struct {
	ID          ident.ID
	ProjectID   ident.ID
	ImageURL    string
	RawImageURL string
	Featured    bool
	Name        string
	Description string
	Ordering    int64
	CreatedAt   time.Time
}

// Project is the central entity. OrganizationID is zero for standalone
// projects; when set, ownership is inherited from the organization team
// and no direct member carries the owner flag.
type Project struct {
	ID                   ident.ID
	TeamID               ident.ID
	OrganizationID       ident.ID
	Slug                 string
	Name                 string
	Summary              string
	Description          string
	Status               ProjectStatus
	RequestedStatus      ProjectStatus
	Categories           []string
	AdditionalCategories []string
	License              string
	LicenseURL           string
	Links                map[string]string
	Gallery              []GalleryItem
	IconURL              string
	RawIconURL           string
	Color                *int32
	MonetizationStatus   MonetizationStatus
	ModerationTitle      string
	ModerationBody       string
	Downloads            int64
	Follows              int64
	PublishedAt          time.Time
	UpdatedAt            time.Time
	ApprovedAt           *time.Time
	QueuedAt             *time.Time
}

// Projects exposes methods to manage the mods table and its satellites
// (categories, links, gallery).
//
// architecture: Database
type Projects interface {
	// Get returns the project with the given id.
	Get(ctx context.Context, id ident.ID) (*Project, error)
	// GetMany returns the projects with the given ids, skipping missing
	// ones, preserving request order.
	GetMany(ctx context.Context, ids []ident.ID) ([]Project, error)
	// GetBySlug looks a project up case-insensitively by slug.
	GetBySlug(ctx context.Context, slug string) (*Project, error)
	// GetByTeam returns the project owning the given team, if any.
	GetByTeam(ctx context.Context, teamID ident.ID) (*Project, error)
	// ListByOrganization returns every project in the organization.
	ListByOrganization(ctx context.Context, orgID ident.ID) ([]Project, error)
	// Insert adds a project with its categories and links.
	Insert(ctx context.Context, project *Project) (*Project, error)
	// Update rewrites the mutable columns and satellite rows.
	Update(ctx context.Context, project *Project) error
	// SetOrganization points the project at an organization; a zero id
	// clears the reference.
	SetOrganization(ctx context.Context, projectID, orgID ident.ID) error
	// AddDownloads bumps the project download counter.
	AddDownloads(ctx context.Context, id ident.ID, delta int64) error
	// Lock acquires the row lock serializing mutations of the project.
	Lock(ctx context.Context, id ident.ID) error
	// Delete removes the project and its exclusively owned children.
	Delete(ctx context.Context, id ident.ID) error

	// AddGalleryItem appends a gallery item.
	AddGalleryItem(ctx context.Context, item *GalleryItem) (*GalleryItem, error)
	// UpdateGalleryItem rewrites a gallery item.
	UpdateGalleryItem(ctx context.Context, item *GalleryItem) error
	// DeleteGalleryItem removes a gallery item.
	DeleteGalleryItem(ctx context.Context, projectID, itemID ident.ID) error
}

var slugRx = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// ValidateSlug checks the slug shape at the API boundary. Collisions
// with ids and other slugs are checked against the store separately.
func ValidateSlug(slug string) error {
	if !slugRx.MatchString(slug) {
		return ErrInvalidInput.New("slug must be 3-64 characters of [A-Za-z0-9_-]")
	}
	return nil
}

// ValidateSummary checks the summary length.
func ValidateSummary(summary string) error {
	if len(summary) > 256 {
		return ErrInvalidInput.New("summary must be at most 256 characters")
	}
	return nil
}

// ValidateDescription checks the long description length.
func ValidateDescription(description string) error {
	if len(description) > 65536 {
		return ErrInvalidInput.New("description must be at most 65536 characters")
	}
	return nil
}
