// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hubdb

import (
	"context"
	"database/sql"
	"time"

	"modhost.io/modhost/hub"
	"modhost.io/modhost/hub/hubauth"
)

// credentials implements hub.Credentials.
//
// architecture: Database
type credentials struct {
	stores
}

func (s *credentials) Insert(ctx context.Context, credential *hub.Credential) (err error) {
	defer mon.Task()(&ctx)(&err)

	createdAt := credential.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var expiresAt sql.NullTime
	if !credential.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: credential.ExpiresAt, Valid: true}
	}
	_, err = s.q.ExecContext(ctx, s.Rebind(`
		INSERT INTO credentials (digest, user_id, kind, scopes, name, client_id,
			created_at, expires_at, revoked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		credential.Digest, idArg(credential.UserID), int64(credential.Kind),
		int64(uint64(credential.Scopes)), credential.Name, credential.ClientID,
		createdAt, expiresAt, credential.Revoked)
	if isUniqueViolation(err) {
		return hub.ErrConflict.New("credential exists")
	}
	return Error.Wrap(err)
}

func (s *credentials) GetByDigest(ctx context.Context, digest string) (_ *hub.Credential, err error) {
	defer mon.Task()(&ctx)(&err)

	var c hub.Credential
	var userID, scopes, kind int64
	var expiresAt sql.NullTime
	err = s.q.QueryRowContext(ctx, s.Rebind(`
		SELECT digest, user_id, kind, scopes, name, client_id, created_at,
			expires_at, revoked
		FROM credentials WHERE digest = ?`), digest).Scan(
		&c.Digest, &userID, &kind, &scopes, &c.Name, &c.ClientID,
		&c.CreatedAt, &expiresAt, &c.Revoked)
	if err == sql.ErrNoRows {
		return nil, hub.ErrNotFound.New("credential")
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	c.UserID = scanID(userID)
	c.Kind = hubauth.CredentialKind(kind)
	c.Scopes = hubauth.Scopes(uint64(scopes))
	if expiresAt.Valid {
		c.ExpiresAt = expiresAt.Time
	}
	return &c, nil
}

func (s *credentials) Revoke(ctx context.Context, digest string) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := s.q.ExecContext(ctx, s.Rebind(
		`UPDATE credentials SET revoked = TRUE WHERE digest = ?`), digest)
	if err != nil {
		return Error.Wrap(err)
	}
	return requireAffected(result, "credential")
}

func (s *credentials) DeleteExpiredBefore(ctx context.Context, before time.Time) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = s.q.ExecContext(ctx, s.Rebind(
		`DELETE FROM credentials WHERE expires_at IS NOT NULL AND expires_at < ?`), before)
	return Error.Wrap(err)
}
