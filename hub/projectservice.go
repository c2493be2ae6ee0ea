// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"modhost.io/modhost/hub/cache"
	"modhost.io/modhost/hub/hubauth"
	"modhost.io/modhost/hub/ident"
)

// ProjectService handles project lifecycle, moderation status and the
// gallery.
//
// architecture: Service
type ProjectService struct {
	log    *zap.Logger
	db     DB
	cache  cache.Client
	vocab  *VocabCache
	blobs  BlobStore
	outbox *Outbox
}

// NewProjectService creates a project service.
func NewProjectService(log *zap.Logger, db DB, cache cache.Client, vocab *VocabCache, blobs BlobStore, outbox *Outbox) *ProjectService {
	return &ProjectService{log: log, db: db, cache: cache, vocab: vocab, blobs: blobs, outbox: outbox}
}

// checkProjectSlugFree rejects slugs colliding with an existing project
// slug or with the base62 form of an existing project id.
func checkProjectSlugFree(ctx context.Context, stores Stores, slug string) error {
	if err := ValidateSlug(slug); err != nil {
		return err
	}
	if _, err := stores.Projects().GetBySlug(ctx, slug); err == nil {
		return ErrConflict.New("slug %q is taken", slug)
	} else if !ErrNotFound.Has(err) {
		return ErrExternal.Wrap(err)
	}
	if id, err := ident.Decode(ident.KindProject, slug); err == nil {
		if _, err := stores.Projects().Get(ctx, id); err == nil {
			return ErrConflict.New("slug %q collides with an existing id", slug)
		} else if !ErrNotFound.Has(err) {
			return ErrExternal.Wrap(err)
		}
	}
	return nil
}

// ProjectCreate carries the creation request.
type ProjectCreate struct {
	Slug        string
	Name        string
	Summary     string
	Description string
	Categories  []string
	License     string
	LicenseURL  string
}

// Create allocates a draft project with its team in one transaction and
// seats the creator as owner.
func (s *ProjectService) Create(ctx context.Context, principal *Principal, req ProjectCreate) (_ *Project, err error) {
	defer mon.Task()(&ctx)(&err)

	creator, err := requireUser(principal)
	if err != nil {
		return nil, err
	}
	if err := principal.RequireScope(hubauth.ScopeProjectCreate); err != nil {
		return nil, err
	}
	if err := ValidateSummary(req.Summary); err != nil {
		return nil, err
	}
	if err := ValidateDescription(req.Description); err != nil {
		return nil, err
	}
	if err := s.checkCategories(ctx, req.Categories, nil, maxCategories); err != nil {
		return nil, err
	}

	var project *Project
	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := checkProjectSlugFree(ctx, tx, req.Slug); err != nil {
			return err
		}
		team, err := tx.Teams().Create(ctx)
		if err != nil {
			return ErrExternal.Wrap(err)
		}
		now := time.Now().UTC()
		project, err = tx.Projects().Insert(ctx, &Project{
			TeamID:             team.ID,
			Slug:               req.Slug,
			Name:               req.Name,
			Summary:            req.Summary,
			Description:        req.Description,
			Status:             StatusDraft,
			Categories:         req.Categories,
			License:            req.License,
			LicenseURL:         req.LicenseURL,
			MonetizationStatus: Monetized,
			PublishedAt:        now,
			UpdatedAt:          now,
		})
		if err != nil {
			return err
		}
		return tx.TeamMembers().Insert(ctx, &TeamMember{
			TeamID:       team.ID,
			UserID:       creator.ID,
			Role:         RoleNameOwner,
			IsOwner:      true,
			Permissions:  AllProjectPermissions,
			Accepted:     true,
			PayoutsSplit: decimal.Zero,
		})
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Get returns the aggregate view of a project by id or slug. Invisible
// projects are indistinguishable from missing ones.
func (s *ProjectService) Get(ctx context.Context, principal *Principal, idOrSlug string) (_ *ProjectAggregate, err error) {
	defer mon.Task()(&ctx)(&err)

	id, err := ident.Decode(ident.KindProject, idOrSlug)
	if err != nil {
		id, err = cachedProjectIDBySlug(ctx, s.cache, s.db, idOrSlug)
		if err != nil {
			return nil, err
		}
	}

	aggregates, err := cachedProjectAggregates(ctx, s.cache, s.db, []ident.ID{id})
	if err != nil {
		return nil, err
	}
	if len(aggregates) == 0 {
		return nil, ErrNotFound.New("project %q", idOrSlug)
	}
	aggregate := &aggregates[0]

	resolver := NewPermissionResolver(s.log, s.db)
	visible, err := resolver.CanSeeProject(ctx, userOf(principal), &aggregate.Project)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, ErrNotFound.New("project %q", idOrSlug)
	}
	return s.redact(ctx, resolver, userOf(principal), aggregate)
}

// GetMany returns the aggregates of the requested ids, silently skipping
// missing and invisible projects and preserving request order.
func (s *ProjectService) GetMany(ctx context.Context, principal *Principal, ids []ident.ID) (_ []ProjectAggregate, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(ids) > MaxListLimit {
		return nil, ErrInvalidInput.New("at most %d ids per request", MaxListLimit)
	}
	aggregates, err := cachedProjectAggregates(ctx, s.cache, s.db, ids)
	if err != nil {
		return nil, err
	}

	resolver := NewPermissionResolver(s.log, s.db)
	visible := make([]ProjectAggregate, 0, len(aggregates))
	for i := range aggregates {
		ok, err := resolver.CanSeeProject(ctx, userOf(principal), &aggregates[i].Project)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		redacted, err := s.redact(ctx, resolver, userOf(principal), &aggregates[i])
		if err != nil {
			return nil, err
		}
		visible = append(visible, *redacted)
	}
	return visible, nil
}

// redact trims the aggregate down to what the viewer may observe:
// unaccepted member rows and non-public version summaries are hidden
// from outsiders.
func (s *ProjectService) redact(ctx context.Context, resolver *PermissionResolver, viewer *User, aggregate *ProjectAggregate) (*ProjectAggregate, error) {
	owner, err := resolver.isProjectOwner(ctx, viewer, &aggregate.Project)
	if err != nil {
		return nil, err
	}
	membership, err := resolver.ProjectPermissions(ctx, viewer, &aggregate.Project)
	if err != nil {
		return nil, err
	}

	out := *aggregate
	out.Members = FilterMembers(aggregate.Members, viewer, owner)
	if membership.Permissions == 0 {
		now := time.Now()
		summaries := make([]VersionSummary, 0, len(aggregate.Versions))
		for _, summary := range aggregate.Versions {
			if summary.Observable(now) {
				summaries = append(summaries, summary)
			}
		}
		out.Versions = summaries
	}
	return &out, nil
}

// ProjectUpdate is the patch applied by Edit; nil fields are left
// unchanged.
type ProjectUpdate struct {
	Slug                 *string
	Name                 *string
	Summary              *string
	Description          *string
	Status               *ProjectStatus
	Categories           *[]string
	AdditionalCategories *[]string
	License              *string
	LicenseURL           *string
	Links                *map[string]string
	MonetizationStatus   *MonetizationStatus
}

// Edit patches a project. Most fields need EDIT_DETAILS; the long
// description needs EDIT_BODY; moderation controlled status targets need
// a moderator regardless of team bits.
func (s *ProjectService) Edit(ctx context.Context, principal *Principal, projectID ident.ID, update ProjectUpdate) (err error) {
	defer mon.Task()(&ctx)(&err)

	actor, err := requireUser(principal)
	if err != nil {
		return err
	}
	if err := principal.RequireScope(hubauth.ScopeProjectWrite); err != nil {
		return err
	}

	// vocabulary checks stay outside the transaction: a cold snapshot
	// load must not wait on the connection the transaction holds
	if update.Categories != nil {
		if err := s.checkCategories(ctx, *update.Categories, nil, maxCategories); err != nil {
			return err
		}
	}
	if update.AdditionalCategories != nil {
		primary := update.Categories
		if primary == nil {
			current, err := s.db.Projects().Get(ctx, projectID)
			if err != nil {
				return err
			}
			primary = &current.Categories
		}
		if err := s.checkCategories(ctx, *update.AdditionalCategories, *primary, maxAdditionalCategories); err != nil {
			return err
		}
	}
	if update.Links != nil {
		if err := s.checkLinks(ctx, *update.Links); err != nil {
			return err
		}
	}

	var priorSlug string
	var moderationEvent string
	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Projects().Lock(ctx, projectID); err != nil {
			return err
		}
		project, err := tx.Projects().Get(ctx, projectID)
		if err != nil {
			return err
		}
		priorSlug = project.Slug

		resolver := NewPermissionResolver(s.log, tx)
		membership, err := resolver.ProjectPermissions(ctx, actor, project)
		if err != nil {
			return err
		}

		needsDetails := update.Slug != nil || update.Name != nil || update.Summary != nil ||
			update.Categories != nil || update.AdditionalCategories != nil ||
			update.License != nil || update.LicenseURL != nil || update.Links != nil ||
			update.MonetizationStatus != nil
		if needsDetails && !membership.Permissions.Has(PermEditDetails) {
			return ErrPermission.New("editing project details requires EDIT_DETAILS")
		}
		if update.Description != nil && !membership.Permissions.Has(PermEditBody) {
			return ErrPermission.New("editing the description requires EDIT_BODY")
		}

		if update.Slug != nil && !strings.EqualFold(*update.Slug, project.Slug) {
			if err := checkProjectSlugFree(ctx, tx, *update.Slug); err != nil {
				return err
			}
			project.Slug = *update.Slug
		}
		if update.Name != nil {
			project.Name = *update.Name
		}
		if update.Summary != nil {
			if err := ValidateSummary(*update.Summary); err != nil {
				return err
			}
			project.Summary = *update.Summary
		}
		if update.Description != nil {
			if err := ValidateDescription(*update.Description); err != nil {
				return err
			}
			project.Description = *update.Description
		}
		if update.Categories != nil {
			project.Categories = *update.Categories
		}
		if update.AdditionalCategories != nil {
			project.AdditionalCategories = *update.AdditionalCategories
		}
		if update.License != nil {
			project.License = *update.License
		}
		if update.LicenseURL != nil {
			project.LicenseURL = *update.LicenseURL
		}
		if update.Links != nil {
			project.Links = *update.Links
		}
		if update.MonetizationStatus != nil {
			if project.MonetizationStatus == ForceDemonetized && !actor.SiteRole.Elevated() {
				return ErrPermission.New("monetization is moderation controlled for this project")
			}
			if *update.MonetizationStatus == ForceDemonetized && !actor.SiteRole.Elevated() {
				return ErrPermission.New("force-demonetized is reserved to moderation")
			}
			if *update.MonetizationStatus == Monetized && project.Status != StatusApproved {
				return ErrPrecondition.New("only approved projects can be monetized")
			}
			project.MonetizationStatus = *update.MonetizationStatus
		}
		if update.Status != nil {
			event, err := s.applyStatus(project, actor, membership.Permissions, *update.Status)
			if err != nil {
				return err
			}
			moderationEvent = event
		}

		project.UpdatedAt = time.Now().UTC()
		return tx.Projects().Update(ctx, project)
	})
	if err != nil {
		return err
	}

	_ = s.cache.Invalidate(ctx, cache.ProjectSlugs, strings.ToLower(priorSlug))
	project, err := s.db.Projects().Get(ctx, projectID)
	if err != nil {
		return err
	}
	invalidateProject(ctx, s.cache, project)

	batch := s.outbox.NewBatch()
	if moderationEvent != "" {
		batch.Webhook(moderationEvent, map[string]interface{}{
			"project_id": project.ID,
			"status":     project.Status,
		})
	}
	aggregate, err := loadProjectAggregate(ctx, s.db, project)
	if err != nil {
		return err
	}
	batch.Index(aggregate)
	batch.Commit(ctx)
	return nil
}

// applyStatus validates and applies a status transition, returning the
// moderation webhook event when one should fire.
func (s *ProjectService) applyStatus(project *Project, actor *User, perms ProjectPermissions, target ProjectStatus) (string, error) {
	if !target.Valid() {
		return "", ErrInvalidInput.New("unknown status %q", target)
	}
	if target == project.Status {
		return "", nil
	}
	if target.ModerationControlled() || project.Status.ModerationControlled() {
		if !actor.SiteRole.Elevated() {
			// the team requests moderation instead of entering the
			// controlled status directly
			if target == StatusApproved && perms.Has(PermEditDetails) &&
				(project.Status == StatusDraft || project.Status == StatusRejected) {
				project.Status = StatusProcessing
				project.RequestedStatus = target
				now := time.Now().UTC()
				project.QueuedAt = &now
				return "project_queued", nil
			}
			return "", ErrPermission.New("status %q is moderation controlled", target)
		}
		project.Status = target
		project.RequestedStatus = ""
		if target == StatusApproved {
			now := time.Now().UTC()
			project.ApprovedAt = &now
		}
		return "project_status_changed", nil
	}
	if !perms.Has(PermEditDetails) {
		return "", ErrPermission.New("changing the status requires EDIT_DETAILS")
	}
	project.Status = target
	return "", nil
}

// Delete removes the project with its versions. Requires DELETE_PROJECT.
func (s *ProjectService) Delete(ctx context.Context, principal *Principal, projectID ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	actor, err := requireUser(principal)
	if err != nil {
		return err
	}
	if err := principal.RequireScope(hubauth.ScopeProjectDelete); err != nil {
		return err
	}

	var project *Project
	var versionIDs []ident.ID
	var filePaths []string
	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Projects().Lock(ctx, projectID); err != nil {
			return err
		}
		project, err = tx.Projects().Get(ctx, projectID)
		if err != nil {
			return err
		}
		resolver := NewPermissionResolver(s.log, tx)
		membership, err := resolver.ProjectPermissions(ctx, actor, project)
		if err != nil {
			return err
		}
		if !membership.Permissions.Has(PermDeleteProject) {
			return ErrPermission.New("deleting the project requires DELETE_PROJECT")
		}

		versions, err := tx.Versions().ListByProject(ctx, projectID)
		if err != nil {
			return ErrExternal.Wrap(err)
		}
		for i := range versions {
			versionIDs = append(versionIDs, versions[i].ID)
			for _, file := range versions[i].Files {
				filePaths = append(filePaths, versionFilePath(versions[i].ID, file.Filename))
			}
		}
		if err := tx.Projects().Delete(ctx, projectID); err != nil {
			return err
		}
		return tx.Teams().Delete(ctx, project.TeamID)
	})
	if err != nil {
		return err
	}

	invalidateProject(ctx, s.cache, project)
	_ = s.cache.Invalidate(ctx, cache.Teams, ident.Encode(project.TeamID))

	// blob deletes only after the commit so a rollback never loses bytes
	for _, path := range filePaths {
		if err := s.blobs.Delete(ctx, path); err != nil {
			s.log.Warn("orphaned blob", zap.String("path", path), zap.Error(err))
		}
	}

	batch := s.outbox.NewBatch()
	batch.Remove(versionIDs...)
	batch.Commit(ctx)
	return nil
}

// AddGalleryItem uploads an image and appends it to the gallery.
// Requires EDIT_DETAILS.
func (s *ProjectService) AddGalleryItem(ctx context.Context, principal *Principal, projectID ident.ID, contentType string, data []byte, item GalleryItem) (_ *GalleryItem, err error) {
	defer mon.Task()(&ctx)(&err)

	project, err := s.requireDetailsBit(ctx, principal, projectID)
	if err != nil {
		return nil, err
	}

	upload, err := s.blobs.Upload(ctx, contentType, galleryPath(projectID, item.Name), data, PublicBlob)
	if err != nil {
		return nil, ErrExternal.Wrap(err)
	}
	item.ProjectID = projectID
	item.ImageURL = upload.URL
	item.RawImageURL = upload.RawURL
	item.Ordering = int64(len(project.Gallery))

	created, err := s.db.Projects().AddGalleryItem(ctx, &item)
	if err != nil {
		return nil, err
	}
	invalidateProject(ctx, s.cache, project)
	return created, nil
}

// UpdateGalleryItem rewrites a gallery item's metadata. Requires
// EDIT_DETAILS.
func (s *ProjectService) UpdateGalleryItem(ctx context.Context, principal *Principal, projectID ident.ID, item GalleryItem) (err error) {
	defer mon.Task()(&ctx)(&err)

	project, err := s.requireDetailsBit(ctx, principal, projectID)
	if err != nil {
		return err
	}
	item.ProjectID = projectID
	if err := s.db.Projects().UpdateGalleryItem(ctx, &item); err != nil {
		return err
	}
	invalidateProject(ctx, s.cache, project)
	return nil
}

// DeleteGalleryItem removes a gallery item and its blob. Requires
// EDIT_DETAILS.
func (s *ProjectService) DeleteGalleryItem(ctx context.Context, principal *Principal, projectID, itemID ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	project, err := s.requireDetailsBit(ctx, principal, projectID)
	if err != nil {
		return err
	}

	var imageURL string
	for _, item := range project.Gallery {
		if item.ID == itemID {
			imageURL = item.ImageURL
		}
	}
	if err := s.db.Projects().DeleteGalleryItem(ctx, projectID, itemID); err != nil {
		return err
	}
	invalidateProject(ctx, s.cache, project)

	if imageURL != "" {
		if err := s.blobs.Delete(ctx, imageURL); err != nil {
			s.log.Warn("orphaned blob", zap.String("path", imageURL), zap.Error(err))
		}
	}
	return nil
}

func (s *ProjectService) requireDetailsBit(ctx context.Context, principal *Principal, projectID ident.ID) (*Project, error) {
	actor, err := requireUser(principal)
	if err != nil {
		return nil, err
	}
	if err := principal.RequireScope(hubauth.ScopeProjectWrite); err != nil {
		return nil, err
	}
	project, err := s.db.Projects().Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	resolver := NewPermissionResolver(s.log, s.db)
	membership, err := resolver.ProjectPermissions(ctx, actor, project)
	if err != nil {
		return nil, err
	}
	if !membership.Permissions.Has(PermEditDetails) {
		return nil, ErrPermission.New("editing the gallery requires EDIT_DETAILS")
	}
	return project, nil
}

const (
	// maxCategories caps the primary category set of a project.
	maxCategories = 3
	// maxAdditionalCategories caps the searchable-only category set.
	maxAdditionalCategories = 256
)

// checkCategories validates category names against the vocabulary,
// caps the set size and rejects overlap with the primary set.
func (s *ProjectService) checkCategories(ctx context.Context, names, primary []string, limit int) error {
	if len(names) > limit {
		return ErrInvalidInput.New("at most %d categories allowed, got %d", limit, len(names))
	}
	if len(names) == 0 {
		return nil
	}
	known, err := s.vocab.Categories(ctx)
	if err != nil {
		return err
	}
	valid := make(map[string]bool, len(known))
	for _, category := range known {
		valid[category.Name] = true
	}
	primarySet := make(map[string]bool, len(primary))
	for _, name := range primary {
		primarySet[name] = true
	}
	for _, name := range names {
		if !valid[name] {
			return ErrInvalidInput.New("unknown category %q", name)
		}
		if primarySet[name] {
			return ErrInvalidInput.New("category %q is already a primary category", name)
		}
	}
	return nil
}

// checkLinks validates link keys against the link platform vocabulary.
func (s *ProjectService) checkLinks(ctx context.Context, links map[string]string) error {
	if len(links) == 0 {
		return nil
	}
	known, err := s.vocab.LinkPlatforms(ctx)
	if err != nil {
		return err
	}
	valid := make(map[string]bool, len(known))
	for _, platform := range known {
		valid[platform.Name] = true
	}
	for key := range links {
		if !valid[key] {
			return ErrInvalidInput.New("unknown link platform %q", key)
		}
	}
	return nil
}

func galleryPath(projectID ident.ID, name string) string {
	return fmt.Sprintf("data/%s/images/%s", ident.Encode(projectID), name)
}

func versionFilePath(versionID ident.ID, filename string) string {
	return fmt.Sprintf("data/versions/%s/%s", ident.Encode(versionID), filename)
}
