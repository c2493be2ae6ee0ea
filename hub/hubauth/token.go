// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hubauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/gtank/cryptopasta"
	"github.com/zeebo/errs"

	"modhost.io/modhost/hub/ident"
)

// Error is the default hubauth errs class.
var Error = errs.Class("hubauth")

// ErrToken is returned for malformed, forged or expired credentials.
var ErrToken = errs.Class("token")

// CredentialKind distinguishes the supported bearer credential families
// by their prefix.
type CredentialKind int

const (
	// KindUnknown is a credential with no recognized prefix.
	KindUnknown CredentialKind = iota
	// KindSession is a signed browser session token.
	KindSession
	// KindPersonalToken is a long lived personal access token.
	KindPersonalToken
	// KindOAuthToken is an access token issued to an OAuth client.
	KindOAuthToken
)

const (
	// SessionPrefix starts every session token.
	SessionPrefix = "mhs_"
	// PersonalTokenPrefix starts every personal access token.
	PersonalTokenPrefix = "mhp_"
	// OAuthTokenPrefix starts every OAuth access token.
	OAuthTokenPrefix = "mho_"
)

// KindOf returns the credential kind indicated by the bearer prefix.
func KindOf(raw string) CredentialKind {
	switch {
	case strings.HasPrefix(raw, SessionPrefix):
		return KindSession
	case strings.HasPrefix(raw, PersonalTokenPrefix):
		return KindPersonalToken
	case strings.HasPrefix(raw, OAuthTokenPrefix):
		return KindOAuthToken
	default:
		return KindUnknown
	}
}

// Claims is the payload carried inside a session token.
type Claims struct {
	UserID     ident.ID  `json:"uid"`
	Expiration time.Time `json:"exp"`
}

// Signer issues and verifies session tokens with a process wide secret.
type Signer struct {
	key [32]byte
}

// NewSigner derives a signer from the configured session secret.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, Error.New("session secret is empty")
	}
	signer := &Signer{}
	copy(signer.key[:], cryptopasta.Hash("modhost session key", secret))
	return signer, nil
}

// SignSession creates a session token for the given claims.
func (signer *Signer) SignSession(claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", Error.Wrap(err)
	}
	mac := cryptopasta.GenerateHMAC(payload, &signer.key)
	return SessionPrefix +
		base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(mac), nil
}

// VerifySession checks the signature and expiration of a session token
// and returns its claims.
func (signer *Signer) VerifySession(raw string, now time.Time) (Claims, error) {
	body, ok := strings.CutPrefix(raw, SessionPrefix)
	if !ok {
		return Claims{}, ErrToken.New("not a session token")
	}
	payloadPart, macPart, ok := strings.Cut(body, ".")
	if !ok {
		return Claims{}, ErrToken.New("malformed session token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return Claims{}, ErrToken.Wrap(err)
	}
	mac, err := base64.RawURLEncoding.DecodeString(macPart)
	if err != nil {
		return Claims{}, ErrToken.Wrap(err)
	}
	if !cryptopasta.CheckHMAC(payload, mac, &signer.key) {
		return Claims{}, ErrToken.New("signature mismatch")
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, ErrToken.Wrap(err)
	}
	if !claims.Expiration.After(now) {
		return Claims{}, ErrToken.New("session expired")
	}
	return claims, nil
}

// NewSecret returns a fresh personal or OAuth token secret with the
// given prefix. Only the digest is ever stored.
func NewSecret(prefix string) (string, error) {
	var raw [24]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", Error.Wrap(err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// Digest returns the stored lookup digest of a secret credential.
func Digest(raw string) string {
	return hex.EncodeToString(cryptopasta.Hash("modhost credential", []byte(raw)))
}

// ConstantTimeEquals compares two digests without leaking a prefix match.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
