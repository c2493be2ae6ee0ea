// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"net/http"

	"github.com/zeebo/errs"

	"modhost.io/modhost/hub/ident"
)

// The error taxonomy the HTTP glue maps onto status codes. Services
// always return errors wrapped in one of these classes.
var (
	// ErrNotFound covers missing entities and entities hidden by the
	// visibility rules; the two are indistinguishable on purpose.
	ErrNotFound = errs.Class("not found")
	// ErrUnauthenticated covers missing, malformed, expired and revoked
	// credentials.
	ErrUnauthenticated = errs.Class("unauthenticated")
	// ErrPermission covers valid credentials lacking a required scope,
	// permission bit or site role.
	ErrPermission = errs.Class("insufficient permission")
	// ErrInvalidInput covers boundary validation failures and
	// cross-entity precondition failures.
	ErrInvalidInput = errs.Class("invalid input")
	// ErrConflict covers slug collisions with existing slugs or ids.
	ErrConflict = errs.Class("conflict")
	// ErrPrecondition covers state machine rejections.
	ErrPrecondition = errs.Class("precondition violated")
	// ErrExternal covers store, cache, blob and indexer failures; the
	// operation did not commit.
	ErrExternal = errs.Class("external")
	// ErrRateLimited is returned by the rate limiting glue.
	ErrRateLimited = errs.Class("rate limited")
)

// Status maps an error to the HTTP status code of the API surface.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case ErrNotFound.Has(err):
		return http.StatusNotFound
	case ErrUnauthenticated.Has(err), ErrPermission.Has(err):
		return http.StatusUnauthorized
	case ErrConflict.Has(err):
		return http.StatusConflict
	case ErrRateLimited.Has(err):
		return http.StatusTooManyRequests
	case ErrInvalidInput.Has(err), ErrPrecondition.Has(err), ident.ErrDecoding.Has(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorKind returns the snake_case kind identifier used in API error
// bodies.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case ErrNotFound.Has(err):
		return "not_found"
	case ErrUnauthenticated.Has(err):
		return "unauthorized"
	case ErrPermission.Has(err):
		return "insufficient_permission"
	case ErrConflict.Has(err):
		return "conflict"
	case ErrRateLimited.Has(err):
		return "rate_limited"
	case ErrInvalidInput.Has(err), ident.ErrDecoding.Has(err):
		return "invalid_input"
	case ErrPrecondition.Has(err):
		return "precondition_violated"
	default:
		return "internal_error"
	}
}

// ErrorBody is the JSON error response of the API surface.
type ErrorBody struct {
	Error       string `json:"error"`
	Description string `json:"description"`
}

// BodyFor renders an error into the API error body.
func BodyFor(err error) ErrorBody {
	return ErrorBody{
		Error:       ErrorKind(err),
		Description: err.Error(),
	}
}
