// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hubauth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modhost.io/modhost/hub/hubauth"
	"modhost.io/modhost/hub/ident"
)

func TestSessionRoundTrip(t *testing.T) {
	signer, err := hubauth.NewSigner([]byte("test secret"))
	require.NoError(t, err)

	userID, err := ident.New(ident.KindUser, 17)
	require.NoError(t, err)

	now := time.Now()
	token, err := signer.SignSession(hubauth.Claims{
		UserID:     userID,
		Expiration: now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, hubauth.KindSession, hubauth.KindOf(token))

	claims, err := signer.VerifySession(token, now)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestSessionExpired(t *testing.T) {
	signer, err := hubauth.NewSigner([]byte("test secret"))
	require.NoError(t, err)

	userID, err := ident.New(ident.KindUser, 17)
	require.NoError(t, err)

	now := time.Now()
	token, err := signer.SignSession(hubauth.Claims{
		UserID:     userID,
		Expiration: now.Add(-time.Minute),
	})
	require.NoError(t, err)

	_, err = signer.VerifySession(token, now)
	require.Error(t, err)
	assert.True(t, hubauth.ErrToken.Has(err))
}

func TestSessionForged(t *testing.T) {
	signer, err := hubauth.NewSigner([]byte("test secret"))
	require.NoError(t, err)
	other, err := hubauth.NewSigner([]byte("other secret"))
	require.NoError(t, err)

	userID, err := ident.New(ident.KindUser, 3)
	require.NoError(t, err)

	token, err := other.SignSession(hubauth.Claims{
		UserID:     userID,
		Expiration: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = signer.VerifySession(token, time.Now())
	require.Error(t, err)

	_, err = signer.VerifySession("mhs_garbage", time.Now())
	require.Error(t, err)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, hubauth.KindSession, hubauth.KindOf("mhs_abc"))
	assert.Equal(t, hubauth.KindPersonalToken, hubauth.KindOf("mhp_abc"))
	assert.Equal(t, hubauth.KindOAuthToken, hubauth.KindOf("mho_abc"))
	assert.Equal(t, hubauth.KindUnknown, hubauth.KindOf("Bearer nope"))
}

func TestNewSecretDigest(t *testing.T) {
	secret, err := hubauth.NewSecret(hubauth.PersonalTokenPrefix)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(secret, "mhp_"))

	again, err := hubauth.NewSecret(hubauth.PersonalTokenPrefix)
	require.NoError(t, err)
	assert.NotEqual(t, secret, again)

	assert.Equal(t, hubauth.Digest(secret), hubauth.Digest(secret))
	assert.NotEqual(t, hubauth.Digest(secret), hubauth.Digest(again))
}

func TestScopes(t *testing.T) {
	scopes := hubauth.ScopeProjectRead | hubauth.ScopeProjectWrite
	assert.True(t, scopes.Has(hubauth.ScopeProjectRead))
	assert.False(t, scopes.Has(hubauth.ScopeVersionDelete))
	assert.True(t, hubauth.AllScopes.Has(hubauth.ScopeSessionAccess))

	parsed, err := hubauth.ParseScopes("PROJECT_READ, PROJECT_WRITE")
	require.NoError(t, err)
	assert.Equal(t, scopes, parsed)

	_, err = hubauth.ParseScopes("PROJECT_EXPLODE")
	require.Error(t, err)

	assert.Equal(t, "PROJECT_READ,PROJECT_WRITE", scopes.String())
}
