// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

// Package hub holds the domain model of the content distribution core:
// users, teams, projects, versions and organizations, the database
// interfaces the store implements, and the services that mutate them
// under the permission rules.
package hub

import (
	monkit "gopkg.in/spacemonkeygo/monkit.v2"
)

var mon = monkit.Package()

const (
	// MaxListLimit bounds the limit parameter of list operations.
	MaxListLimit = 100
	// DefaultListLimit is used when no limit is requested.
	DefaultListLimit = 10
)
