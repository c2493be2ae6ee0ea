// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"modhost.io/modhost/hub/hubauth"
)

const sessionLifetime = 14 * 24 * time.Hour

// Principal is a resolved authenticated identity with the scope set its
// credential carries. A nil *Principal is an anonymous request.
type Principal struct {
	User   *User
	Scopes hubauth.Scopes
}

// RequireScope checks that the credential carries the scope; a missing
// scope is an authorization failure, not an authentication one, so the
// caller can also choose degraded output instead.
func (p *Principal) RequireScope(required hubauth.Scopes) error {
	if p == nil {
		return ErrUnauthenticated.New("authentication required")
	}
	if !p.Scopes.Has(required) {
		return ErrPermission.New("credential lacks scope %s", required)
	}
	return nil
}

// Authenticator resolves bearer credentials into principals.
type Authenticator struct {
	log    *zap.Logger
	db     DB
	signer *hubauth.Signer
}

// NewAuthenticator creates an authenticator over the store.
func NewAuthenticator(log *zap.Logger, db DB, signer *hubauth.Signer) *Authenticator {
	return &Authenticator{log: log, db: db, signer: signer}
}

// Authenticate resolves the Authorization header value. Absent, revoked,
// expired and malformed credentials fail with ErrUnauthenticated.
func (a *Authenticator) Authenticate(ctx context.Context, authorization string) (_ *Principal, err error) {
	defer mon.Task()(&ctx)(&err)

	raw := strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer "))
	if raw == "" {
		return nil, ErrUnauthenticated.New("missing credential")
	}

	kind := hubauth.KindOf(raw)
	if kind == hubauth.KindUnknown {
		return nil, ErrUnauthenticated.New("unrecognized credential")
	}

	now := time.Now()
	if kind == hubauth.KindSession {
		// signature check first so forged tokens never hit the store
		if _, err := a.signer.VerifySession(raw, now); err != nil {
			return nil, ErrUnauthenticated.Wrap(err)
		}
	}

	credential, err := a.db.Credentials().GetByDigest(ctx, hubauth.Digest(raw))
	if err != nil {
		if ErrNotFound.Has(err) {
			return nil, ErrUnauthenticated.New("unknown credential")
		}
		return nil, ErrExternal.Wrap(err)
	}
	if credential.Revoked {
		return nil, ErrUnauthenticated.New("credential revoked")
	}
	if credential.Expired(now) {
		return nil, ErrUnauthenticated.New("credential expired")
	}

	user, err := a.db.Users().Get(ctx, credential.UserID)
	if err != nil {
		if ErrNotFound.Has(err) {
			return nil, ErrUnauthenticated.New("credential user is gone")
		}
		return nil, ErrExternal.Wrap(err)
	}

	return &Principal{User: user, Scopes: credential.Scopes}, nil
}

// IssueSession creates a signed session token for the user and stores
// its revocable credential row.
func (a *Authenticator) IssueSession(ctx context.Context, user *User) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	expires := time.Now().Add(sessionLifetime)
	token, err := a.signer.SignSession(hubauth.Claims{
		UserID:     user.ID,
		Expiration: expires,
	})
	if err != nil {
		return "", ErrExternal.Wrap(err)
	}
	err = a.db.Credentials().Insert(ctx, &Credential{
		Digest:    hubauth.Digest(token),
		UserID:    user.ID,
		Kind:      hubauth.KindSession,
		Scopes:    hubauth.AllScopes,
		ExpiresAt: expires,
	})
	if err != nil {
		return "", ErrExternal.Wrap(err)
	}
	return token, nil
}

// IssuePersonalToken creates a personal access token with the given
// scope set. Session-only scopes are not grantable.
func (a *Authenticator) IssuePersonalToken(ctx context.Context, user *User, name string, scopes hubauth.Scopes, expires time.Time) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	if scopes.Intersect(hubauth.RestrictedScopes) != 0 {
		return "", ErrInvalidInput.New("requested scopes are session only")
	}
	secret, err := hubauth.NewSecret(hubauth.PersonalTokenPrefix)
	if err != nil {
		return "", ErrExternal.Wrap(err)
	}
	err = a.db.Credentials().Insert(ctx, &Credential{
		Digest:    hubauth.Digest(secret),
		UserID:    user.ID,
		Kind:      hubauth.KindPersonalToken,
		Scopes:    scopes,
		Name:      name,
		ExpiresAt: expires,
	})
	if err != nil {
		return "", ErrExternal.Wrap(err)
	}
	return secret, nil
}

// Revoke invalidates a credential by its raw value.
func (a *Authenticator) Revoke(ctx context.Context, raw string) (err error) {
	defer mon.Task()(&ctx)(&err)
	return a.db.Credentials().Revoke(ctx, hubauth.Digest(raw))
}

// userOf returns the principal's user, or nil for anonymous requests.
func userOf(p *Principal) *User {
	if p == nil {
		return nil
	}
	return p.User
}

// requireUser returns the principal's user or ErrUnauthenticated.
func requireUser(p *Principal) (*User, error) {
	if p == nil || p.User == nil {
		return nil, ErrUnauthenticated.New("authentication required")
	}
	return p.User, nil
}
