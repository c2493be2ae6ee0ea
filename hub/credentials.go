// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"
	"time"

	"modhost.io/modhost/hub/hubauth"
	"modhost.io/modhost/hub/ident"
)

// Credential is a stored bearer credential: a session, a personal access
// token or an OAuth access token. Only the digest of the secret is kept.
type Credential struct {
	Digest    string
	UserID    ident.ID
	Kind      hubauth.CredentialKind
	Scopes    hubauth.Scopes
	Name      string
	ClientID  string
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Expired reports whether the credential is past its expiration.
func (c *Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now)
}

// Credentials exposes methods to manage stored bearer credentials.
//
// architecture: Database
type Credentials interface {
	// Insert stores a credential.
	Insert(ctx context.Context, credential *Credential) error
	// GetByDigest returns the credential with the given digest.
	GetByDigest(ctx context.Context, digest string) (*Credential, error)
	// Revoke marks the credential revoked.
	Revoke(ctx context.Context, digest string) error
	// DeleteExpiredBefore removes credentials that expired before the
	// given time.
	DeleteExpiredBefore(ctx context.Context, before time.Time) error
}
