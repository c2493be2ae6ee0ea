// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"
	"regexp"
	"time"

	"modhost.io/modhost/hub/ident"
)

// SiteRole is the site wide role of a user.
type SiteRole string

const (
	// RoleDeveloper is the default role.
	RoleDeveloper SiteRole = "developer"
	// RoleModerator may moderate any project.
	RoleModerator SiteRole = "moderator"
	// RoleAdmin may do anything a moderator can, plus administration.
	RoleAdmin SiteRole = "admin"
)

// Elevated reports whether the role grants the full permission set on
// every entity.
func (r SiteRole) Elevated() bool {
	return r == RoleModerator || r == RoleAdmin
}

// User is a registered account. Rows are soft retired rather than
// deleted so historical versions, messages and payouts keep a referent.
type User struct {
	ID                  ident.ID
	Username            string
	DisplayName         string
	Email               string
	Bio                 string
	AvatarURL           string
	RawAvatarURL        string
	SiteRole            SiteRole
	Badges              uint64
	AllowFriendRequests bool
	CreatedAt           time.Time
}

// Users exposes methods to manage the users table.
//
// architecture: Database
type Users interface {
	// Get returns the user with the given id.
	Get(ctx context.Context, id ident.ID) (*User, error)
	// GetMany returns the users with the given ids, skipping missing ones.
	GetMany(ctx context.Context, ids []ident.ID) ([]User, error)
	// GetByUsername looks a user up case-insensitively by username.
	GetByUsername(ctx context.Context, username string) (*User, error)
	// Insert adds a new user.
	Insert(ctx context.Context, user *User) (*User, error)
	// Update rewrites the mutable columns of the user row.
	Update(ctx context.Context, user *User) error
	// Retire anonymizes the user row, keeping the id referenceable.
	Retire(ctx context.Context, id ident.ID) error
}

var usernameRx = regexp.MustCompile(`^[A-Za-z0-9_-]{1,39}$`)

// ValidateUsername checks the username shape at the API boundary.
func ValidateUsername(username string) error {
	if !usernameRx.MatchString(username) {
		return ErrInvalidInput.New("username must be 1-39 characters of [A-Za-z0-9_-]")
	}
	return nil
}
