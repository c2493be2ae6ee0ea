// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"modhost.io/modhost/hub/cache"
	"modhost.io/modhost/hub/hubauth"
	"modhost.io/modhost/hub/ident"
)

// VersionService handles version lifecycle: uploads, edits, downloads
// and deletion.
//
// architecture: Service
type VersionService struct {
	log    *zap.Logger
	db     DB
	cache  cache.Client
	vocab  *VocabCache
	blobs  BlobStore
	outbox *Outbox
}

// NewVersionService creates a version service.
func NewVersionService(log *zap.Logger, db DB, cache cache.Client, vocab *VocabCache, blobs BlobStore, outbox *Outbox) *VersionService {
	return &VersionService{log: log, db: db, cache: cache, vocab: vocab, blobs: blobs, outbox: outbox}
}

// FileUpload is one artifact of a version creation request.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
	Primary     bool
}

// VersionCreate carries the creation request.
type VersionCreate struct {
	ProjectID    ident.ID
	Number       string
	Name         string
	Changelog    string
	Type         VersionType
	Status       VersionStatus
	Loaders      []string
	Fields       map[string]json.RawMessage
	Dependencies []Dependency
	Featured     bool
	PublishAt    *time.Time
	Files        []FileUpload
}

// Create uploads a version with its files. Requires UPLOAD_VERSION on
// the project. Exactly one file must be flagged primary, the number must
// be unique within the project ignoring case, and a file whose digest is
// already recorded anywhere on the site is rejected.
func (s *VersionService) Create(ctx context.Context, principal *Principal, req VersionCreate) (_ *Version, err error) {
	defer mon.Task()(&ctx)(&err)

	actor, err := requireUser(principal)
	if err != nil {
		return nil, err
	}
	if err := principal.RequireScope(hubauth.ScopeVersionCreate); err != nil {
		return nil, err
	}
	if err := ValidateVersionNumber(req.Number); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, ErrInvalidInput.New("unknown version type %q", req.Type)
	}
	if req.Status == "" {
		req.Status = VersionListed
	}
	if !req.Status.Valid() {
		return nil, ErrInvalidInput.New("unknown version status %q", req.Status)
	}
	if err := checkPublishAt(req.Status, req.PublishAt); err != nil {
		return nil, err
	}
	if len(req.Files) == 0 {
		return nil, ErrInvalidInput.New("a version needs at least one file")
	}
	primaries := 0
	for _, file := range req.Files {
		if file.Primary {
			primaries++
		}
	}
	if primaries != 1 {
		return nil, ErrInvalidInput.New("exactly one file must be primary")
	}
	if err := s.checkLoaders(ctx, req.Loaders); err != nil {
		return nil, err
	}
	if err := s.checkFields(ctx, req.Fields); err != nil {
		return nil, err
	}

	var version *Version
	var uploaded []string
	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Projects().Lock(ctx, req.ProjectID); err != nil {
			return err
		}
		project, err := tx.Projects().Get(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		resolver := NewPermissionResolver(s.log, tx)
		membership, err := resolver.ProjectPermissions(ctx, actor, project)
		if err != nil {
			return err
		}
		if !membership.Permissions.Has(PermUploadVersion) {
			return ErrPermission.New("uploading versions requires UPLOAD_VERSION")
		}

		if _, err := tx.Versions().GetByNumber(ctx, req.ProjectID, req.Number); err == nil {
			return ErrInvalidInput.New("version number %q is taken", req.Number)
		} else if !ErrNotFound.Has(err) {
			return ErrExternal.Wrap(err)
		}
		deps, err := resolveDependencies(ctx, tx, req.ProjectID, req.Dependencies)
		if err != nil {
			return err
		}

		files := make([]VersionFile, 0, len(req.Files))
		for _, upload := range req.Files {
			hashes := digestFile(upload.Data)
			for algorithm, hash := range hashes {
				inUse, err := tx.Versions().HashInUse(ctx, algorithm, hash)
				if err != nil {
					return ErrExternal.Wrap(err)
				}
				if inUse {
					return ErrInvalidInput.New("file %q duplicates an existing upload", upload.Filename)
				}
			}
			files = append(files, VersionFile{
				Filename: upload.Filename,
				Size:     int64(len(upload.Data)),
				Primary:  upload.Primary,
				Hashes:   hashes,
			})
		}

		existing, err := tx.Versions().ListByProject(ctx, req.ProjectID)
		if err != nil {
			return ErrExternal.Wrap(err)
		}

		version = &Version{
			ProjectID:    req.ProjectID,
			AuthorID:     actor.ID,
			Number:       req.Number,
			Name:         req.Name,
			Changelog:    req.Changelog,
			Type:         req.Type,
			Status:       req.Status,
			Dependencies: deps,
			Loaders:      req.Loaders,
			Fields:       req.Fields,
			Featured:     req.Featured,
			Ordering:     int64(len(existing)),
			PublishAt:    req.PublishAt,
		}
		version, err = tx.Versions().Insert(ctx, version)
		if err != nil {
			return err
		}

		// bytes go out before the satellite rows commit; a rollback
		// orphans blobs rather than rows pointing at nothing
		for i, upload := range req.Files {
			path := versionFilePath(version.ID, upload.Filename)
			result, err := s.blobs.Upload(ctx, upload.ContentType, path, upload.Data, PublicBlob)
			if err != nil {
				return ErrExternal.Wrap(err)
			}
			uploaded = append(uploaded, path)
			files[i].VersionID = version.ID
			files[i].URL = result.URL
		}
		version.Files = files
		return tx.Versions().Update(ctx, version)
	})
	if err != nil {
		for _, path := range uploaded {
			if delErr := s.blobs.Delete(ctx, path); delErr != nil {
				s.log.Warn("orphaned blob", zap.String("path", path), zap.Error(delErr))
			}
		}
		return nil, err
	}

	s.invalidateAndReindex(ctx, req.ProjectID, version)
	return version, nil
}

// Get returns a version by id, applying project and version visibility.
func (s *VersionService) Get(ctx context.Context, principal *Principal, versionID ident.ID) (_ *Version, err error) {
	defer mon.Task()(&ctx)(&err)

	version, err := s.db.Versions().Get(ctx, versionID)
	if err != nil {
		return nil, err
	}
	project, err := s.db.Projects().Get(ctx, version.ProjectID)
	if err != nil {
		return nil, err
	}
	resolver := NewPermissionResolver(s.log, s.db)
	visible, err := resolver.CanSeeVersion(ctx, userOf(principal), project, version)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, ErrNotFound.New("version %s", ident.Encode(versionID))
	}
	return version, nil
}

// List returns the versions of a project the principal may observe.
func (s *VersionService) List(ctx context.Context, principal *Principal, projectID ident.ID) (_ []Version, err error) {
	defer mon.Task()(&ctx)(&err)

	project, err := s.db.Projects().Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	resolver := NewPermissionResolver(s.log, s.db)
	visible, err := resolver.CanSeeProject(ctx, userOf(principal), project)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, ErrNotFound.New("project %s", ident.Encode(projectID))
	}
	versions, err := s.db.Versions().ListByProject(ctx, projectID)
	if err != nil {
		return nil, ErrExternal.Wrap(err)
	}
	return resolver.FilterVersions(ctx, userOf(principal), project, versions)
}

// VersionUpdate is the patch applied by Edit; nil fields are left
// unchanged.
type VersionUpdate struct {
	Name         *string
	Changelog    *string
	Type         *VersionType
	Status       *VersionStatus
	Loaders      *[]string
	Fields       *map[string]json.RawMessage
	Dependencies *[]Dependency
	Featured     *bool
	Ordering     *int64
	PublishAt    *time.Time
	Downloads    *int64
}

// Edit patches a version. Requires UPLOAD_VERSION; rewriting the
// download counter is reserved to moderators.
func (s *VersionService) Edit(ctx context.Context, principal *Principal, versionID ident.ID, update VersionUpdate) (err error) {
	defer mon.Task()(&ctx)(&err)

	actor, err := requireUser(principal)
	if err != nil {
		return err
	}
	if err := principal.RequireScope(hubauth.ScopeVersionWrite); err != nil {
		return err
	}
	// vocabulary checks stay outside the transaction: a cold snapshot
	// load must not wait on the connection the transaction holds
	if update.Loaders != nil {
		if err := s.checkLoaders(ctx, *update.Loaders); err != nil {
			return err
		}
	}
	if update.Fields != nil {
		if err := s.checkFields(ctx, *update.Fields); err != nil {
			return err
		}
	}

	var projectID ident.ID
	var version *Version
	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		version, err = tx.Versions().Get(ctx, versionID)
		if err != nil {
			return err
		}
		projectID = version.ProjectID
		if err := tx.Projects().Lock(ctx, projectID); err != nil {
			return err
		}
		project, err := tx.Projects().Get(ctx, projectID)
		if err != nil {
			return err
		}
		resolver := NewPermissionResolver(s.log, tx)
		membership, err := resolver.ProjectPermissions(ctx, actor, project)
		if err != nil {
			return err
		}
		if !membership.Permissions.Has(PermUploadVersion) {
			return ErrPermission.New("editing versions requires UPLOAD_VERSION")
		}

		if update.Name != nil {
			version.Name = *update.Name
		}
		if update.Changelog != nil {
			version.Changelog = *update.Changelog
		}
		if update.Type != nil {
			if !update.Type.Valid() {
				return ErrInvalidInput.New("unknown version type %q", *update.Type)
			}
			version.Type = *update.Type
		}
		if update.PublishAt != nil {
			version.PublishAt = update.PublishAt
		}
		if update.Status != nil {
			if !update.Status.Valid() {
				return ErrInvalidInput.New("unknown version status %q", *update.Status)
			}
			if err := checkPublishAt(*update.Status, version.PublishAt); err != nil {
				return err
			}
			version.Status = *update.Status
		}
		if update.Loaders != nil {
			version.Loaders = *update.Loaders
		}
		if update.Fields != nil {
			version.Fields = *update.Fields
		}
		if update.Dependencies != nil {
			deps, err := resolveDependencies(ctx, tx, projectID, *update.Dependencies)
			if err != nil {
				return err
			}
			version.Dependencies = deps
		}
		if update.Featured != nil {
			version.Featured = *update.Featured
		}
		if update.Ordering != nil {
			version.Ordering = *update.Ordering
		}
		if update.Downloads != nil {
			if !actor.SiteRole.Elevated() {
				return ErrPermission.New("rewriting downloads is reserved to moderation")
			}
			version.Downloads = *update.Downloads
		}
		return tx.Versions().Update(ctx, version)
	})
	if err != nil {
		return err
	}

	s.invalidateAndReindex(ctx, projectID, version)
	return nil
}

// Delete removes a version with its files. Requires DELETE_VERSION.
func (s *VersionService) Delete(ctx context.Context, principal *Principal, versionID ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	actor, err := requireUser(principal)
	if err != nil {
		return err
	}
	if err := principal.RequireScope(hubauth.ScopeVersionDelete); err != nil {
		return err
	}

	var projectID ident.ID
	var filePaths []string
	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		version, err := tx.Versions().Get(ctx, versionID)
		if err != nil {
			return err
		}
		projectID = version.ProjectID
		if err := tx.Projects().Lock(ctx, projectID); err != nil {
			return err
		}
		project, err := tx.Projects().Get(ctx, projectID)
		if err != nil {
			return err
		}
		resolver := NewPermissionResolver(s.log, tx)
		membership, err := resolver.ProjectPermissions(ctx, actor, project)
		if err != nil {
			return err
		}
		if !membership.Permissions.Has(PermDeleteVersion) {
			return ErrPermission.New("deleting versions requires DELETE_VERSION")
		}
		for _, file := range version.Files {
			filePaths = append(filePaths, versionFilePath(versionID, file.Filename))
		}
		return tx.Versions().Delete(ctx, versionID)
	})
	if err != nil {
		return err
	}

	_ = s.cache.Invalidate(ctx, cache.Versions, ident.Encode(versionID))
	for _, path := range filePaths {
		if err := s.blobs.Delete(ctx, path); err != nil {
			s.log.Warn("orphaned blob", zap.String("path", path), zap.Error(err))
		}
	}

	project, err := s.db.Projects().Get(ctx, projectID)
	if err != nil {
		return err
	}
	invalidateProject(ctx, s.cache, project)

	batch := s.outbox.NewBatch()
	batch.Remove(versionID)
	aggregate, err := loadProjectAggregate(ctx, s.db, project)
	if err != nil {
		return err
	}
	batch.Index(aggregate)
	batch.Commit(ctx)
	return nil
}

// AddDownload bumps the version and project download counters in one
// transaction. Anonymous principals count too.
func (s *VersionService) AddDownload(ctx context.Context, versionID ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	var projectID ident.ID
	err = s.db.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		version, err := tx.Versions().Get(ctx, versionID)
		if err != nil {
			return err
		}
		projectID = version.ProjectID
		if err := tx.Versions().AddDownloads(ctx, versionID, 1); err != nil {
			return err
		}
		return tx.Projects().AddDownloads(ctx, projectID, 1)
	})
	if err != nil {
		return err
	}

	_ = s.cache.Invalidate(ctx, cache.Versions, ident.Encode(versionID))
	_ = s.cache.Invalidate(ctx, cache.Projects, ident.Encode(projectID))
	return nil
}

// checkPublishAt enforces that scheduled versions carry a future
// publication time.
func checkPublishAt(status VersionStatus, publishAt *time.Time) error {
	if status != VersionScheduled {
		return nil
	}
	if publishAt == nil || !publishAt.After(time.Now()) {
		return ErrInvalidInput.New("scheduled versions need a future publish time")
	}
	return nil
}

// resolveDependencies validates dependency references: each must name an
// existing project or version, and when both are given the version must
// belong to that project.
func resolveDependencies(ctx context.Context, tx Tx, selfProjectID ident.ID, deps []Dependency) ([]Dependency, error) {
	resolved := make([]Dependency, 0, len(deps))
	for _, dep := range deps {
		if !dep.Kind.Valid() {
			return nil, ErrInvalidInput.New("unknown dependency kind %q", dep.Kind)
		}
		if dep.ProjectID.IsZero() && dep.VersionID.IsZero() {
			return nil, ErrInvalidInput.New("a dependency needs a project or a version")
		}
		if !dep.VersionID.IsZero() {
			version, err := tx.Versions().Get(ctx, dep.VersionID)
			if err != nil {
				if ErrNotFound.Has(err) {
					return nil, ErrInvalidInput.New("dependency version does not exist")
				}
				return nil, err
			}
			if !dep.ProjectID.IsZero() && dep.ProjectID != version.ProjectID {
				return nil, ErrInvalidInput.New("dependency version belongs to another project")
			}
			dep.ProjectID = version.ProjectID
		} else {
			if _, err := tx.Projects().Get(ctx, dep.ProjectID); err != nil {
				if ErrNotFound.Has(err) {
					return nil, ErrInvalidInput.New("dependency project does not exist")
				}
				return nil, err
			}
		}
		if dep.ProjectID == selfProjectID {
			return nil, ErrInvalidInput.New("a version cannot depend on its own project")
		}
		resolved = append(resolved, dep)
	}
	return resolved, nil
}

// digestFile records both tracked digests of an artifact.
func digestFile(data []byte) map[string]string {
	s1 := sha1.Sum(data)
	s512 := sha512.Sum512(data)
	return map[string]string{
		HashSHA1:   hex.EncodeToString(s1[:]),
		HashSHA512: hex.EncodeToString(s512[:]),
	}
}

// checkLoaders validates loader names against the vocabulary.
func (s *VersionService) checkLoaders(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return ErrInvalidInput.New("a version needs at least one loader")
	}
	known, err := s.vocab.Loaders(ctx)
	if err != nil {
		return err
	}
	valid := make(map[string]bool, len(known))
	for _, loader := range known {
		valid[loader.Name] = true
	}
	for _, name := range names {
		if !valid[name] {
			return ErrInvalidInput.New("unknown loader %q", name)
		}
	}
	return nil
}

// checkFields validates the typed field map against the loader field
// vocabulary: unknown keys are rejected, required fields must be
// present, and values must match the declared type.
func (s *VersionService) checkFields(ctx context.Context, fields map[string]json.RawMessage) error {
	known, err := s.vocab.LoaderFields(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]LoaderField, len(known))
	for _, field := range known {
		byName[field.Name] = field
	}
	for name, raw := range fields {
		field, ok := byName[name]
		if !ok {
			return ErrInvalidInput.New("unknown field %q", name)
		}
		if err := checkFieldValue(field, raw); err != nil {
			return err
		}
	}
	for _, field := range known {
		if field.Optional {
			continue
		}
		if _, ok := fields[field.Name]; !ok {
			return ErrInvalidInput.New("field %q is required", field.Name)
		}
	}
	return nil
}

func checkFieldValue(field LoaderField, raw json.RawMessage) error {
	switch field.Type {
	case FieldInteger:
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return ErrInvalidInput.New("field %q must be an integer", field.Name)
		}
	case FieldText:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return ErrInvalidInput.New("field %q must be a string", field.Name)
		}
	case FieldBoolean:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return ErrInvalidInput.New("field %q must be a boolean", field.Name)
		}
	case FieldEnum:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil || !containsString(field.EnumValues, v) {
			return ErrInvalidInput.New("field %q must be one of its enum values", field.Name)
		}
	case FieldArrayEnum:
		var vs []string
		if err := json.Unmarshal(raw, &vs); err != nil {
			return ErrInvalidInput.New("field %q must be an array of enum values", field.Name)
		}
		for _, v := range vs {
			if !containsString(field.EnumValues, v) {
				return ErrInvalidInput.New("field %q must be an array of enum values", field.Name)
			}
		}
	default:
		return ErrInvalidInput.New("field %q has an unknown type", field.Name)
	}
	return nil
}

func containsString(list []string, v string) bool {
	for _, entry := range list {
		if entry == v {
			return true
		}
	}
	return false
}

func (s *VersionService) invalidateAndReindex(ctx context.Context, projectID ident.ID, version *Version) {
	invalidateVersion(ctx, s.cache, version)
	project, err := s.db.Projects().Get(ctx, projectID)
	if err != nil {
		s.log.Warn("stale cache after version write", zap.Error(err))
		return
	}
	invalidateProject(ctx, s.cache, project)

	aggregate, err := loadProjectAggregate(ctx, s.db, project)
	if err != nil {
		s.log.Warn("reindex skipped", zap.Error(err))
		return
	}
	batch := s.outbox.NewBatch()
	batch.Index(aggregate)
	batch.Commit(ctx)
}
