// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"modhost.io/modhost/hub/ident"
)

// VersionType is the release channel of a version.
type VersionType string

const (
	// Release is a stable version.
	Release VersionType = "release"
	// Beta is a pre-release version.
	Beta VersionType = "beta"
	// Alpha is an unstable version.
	Alpha VersionType = "alpha"
)

// Valid reports whether the type is part of the vocabulary.
func (t VersionType) Valid() bool {
	return t == Release || t == Beta || t == Alpha
}

// VersionStatus is the listing state of a version.
type VersionStatus string

const (
	// VersionListed is published and searchable.
	VersionListed VersionStatus = "listed"
	// VersionArchived is public but retired.
	VersionArchived VersionStatus = "archived"
	// VersionDraft is only visible to the project team.
	VersionDraft VersionStatus = "draft"
	// VersionUnlisted is reachable by link only.
	VersionUnlisted VersionStatus = "unlisted"
	// VersionScheduled publishes automatically at PublishAt.
	VersionScheduled VersionStatus = "scheduled"
)

// Valid reports whether the status is part of the vocabulary.
func (s VersionStatus) Valid() bool {
	switch s {
	case VersionListed, VersionArchived, VersionDraft, VersionUnlisted, VersionScheduled:
		return true
	}
	return false
}

// Public reports whether the status is observable without membership,
// given a visible project.
func (s VersionStatus) Public() bool {
	return s == VersionListed || s == VersionArchived || s == VersionUnlisted
}

// observableAt reports whether a version in the given status may be
// observed without membership at the given time. Scheduled versions
// become public once their publication time passes; no row rewrite is
// needed for that.
func observableAt(status VersionStatus, publishAt *time.Time, now time.Time) bool {
	if status.Public() {
		return true
	}
	return status == VersionScheduled && publishAt != nil && !publishAt.After(now)
}

// HashSHA1 and HashSHA512 are the recorded file digest algorithms.
const (
	HashSHA1   = "sha1"
	HashSHA512 = "sha512"
)

// VersionFile is an uploaded artifact. The core stores urls and digests
// only; bytes live in the blob store.
type VersionFile struct {
	VersionID ident.ID
	Filename  string
	URL       string
	Size      int64
	Primary   bool
	Hashes    map[string]string
}

// DependencyKind describes how a version relates to its dependency.
type DependencyKind string

const (
	// DepRequired must be installed alongside.
	DepRequired DependencyKind = "required"
	// DepOptional integrates when present.
	DepOptional DependencyKind = "optional"
	// DepIncompatible cannot be installed alongside.
	DepIncompatible DependencyKind = "incompatible"
	// DepEmbedded ships inside the version file.
	DepEmbedded DependencyKind = "embedded"
)

// Valid reports whether the kind is part of the vocabulary.
func (k DependencyKind) Valid() bool {
	switch k {
	case DepRequired, DepOptional, DepIncompatible, DepEmbedded:
		return true
	}
	return false
}

// Dependency points at a project, a version, or both when the version
// belongs to that project.
type Dependency struct {
	ProjectID ident.ID
	VersionID ident.ID
	Kind      DependencyKind
	FileName  string
}

// Version is a released artifact set of a project.
type Version struct {
	ID           ident.ID
	ProjectID    ident.ID
	AuthorID     ident.ID
	Number       string
	Name         string
	Changelog    string
	Type         VersionType
	Status       VersionStatus
	Files        []VersionFile
	Dependencies []Dependency
	Loaders      []string
	Fields       map[string]json.RawMessage
	Featured     bool
	Downloads    int64
	Ordering     int64
	CreatedAt    time.Time
	PublishAt    *time.Time
}

// Observable reports whether the version may be observed without
// membership at the given time.
func (v *Version) Observable(now time.Time) bool {
	return observableAt(v.Status, v.PublishAt, now)
}

// PrimaryFile returns the file flagged primary, or nil when the version
// has no files.
func (v *Version) PrimaryFile() *VersionFile {
	for i := range v.Files {
		if v.Files[i].Primary {
			return &v.Files[i]
		}
	}
	return nil
}

// Versions exposes methods to manage the versions table and its
// satellites (files, hashes, dependencies, loaders, fields).
//
// architecture: Database
type Versions interface {
	// Get returns the version with the given id.
	Get(ctx context.Context, id ident.ID) (*Version, error)
	// GetMany returns the versions with the given ids, skipping missing
	// ones.
	GetMany(ctx context.Context, ids []ident.ID) ([]Version, error)
	// GetByNumber looks a version up case-insensitively by number
	// within a project.
	GetByNumber(ctx context.Context, projectID ident.ID, number string) (*Version, error)
	// ListByProject returns every version of a project ordered by
	// ordering then creation time.
	ListByProject(ctx context.Context, projectID ident.ID) ([]Version, error)
	// Insert adds a version with its satellite rows.
	Insert(ctx context.Context, version *Version) (*Version, error)
	// Update rewrites the mutable columns and satellite rows.
	Update(ctx context.Context, version *Version) error
	// AddDownloads bumps the version download counter.
	AddDownloads(ctx context.Context, id ident.ID, delta int64) error
	// HashInUse reports whether any file already records the digest.
	HashInUse(ctx context.Context, algorithm, hash string) (bool, error)
	// Delete removes the version and its satellite rows.
	Delete(ctx context.Context, id ident.ID) error
}

var versionNumberRx = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// ValidateVersionNumber checks the version number shape at the API
// boundary; uniqueness within the project is checked at the store.
func ValidateVersionNumber(number string) error {
	if !versionNumberRx.MatchString(number) {
		return ErrInvalidInput.New("version number must be 1-32 characters of [A-Za-z0-9_-]")
	}
	return nil
}
