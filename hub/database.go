// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"

	"modhost.io/modhost/hub/ident"
)

// Stores bundles the typed query families; both the database and its
// transactions expose them.
type Stores interface {
	// Users is a getter for Users repository.
	Users() Users
	// Teams is a getter for Teams repository.
	Teams() Teams
	// TeamMembers is a getter for TeamMembers repository.
	TeamMembers() TeamMembers
	// Projects is a getter for Projects repository.
	Projects() Projects
	// Versions is a getter for Versions repository.
	Versions() Versions
	// Organizations is a getter for Organizations repository.
	Organizations() Organizations
	// Vocabulary is a getter for the vocabulary repository.
	Vocabulary() Vocabulary
	// Credentials is a getter for the credentials repository.
	Credentials() Credentials
	// IDs is a getter for the id allocator.
	IDs() ident.Allocator
}

// Tx is the scoped transaction handle. Everything done through it
// commits or rolls back atomically.
type Tx interface {
	Stores
}

// DB is the storage contract of the core.
//
// architecture: Master Database
type DB interface {
	Stores

	// WithTx runs fn inside a single transaction; fn returning an error
	// rolls everything back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// MigrateToLatest brings the schema up to date.
	MigrateToLatest(ctx context.Context) error
	// Close releases the underlying connections.
	Close() error
}
