// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hubdb

import "context"

// schema is the full DDL, written in the dialect subset both drivers
// accept. Id columns hold the signed form of ident ids.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		raw_avatar_url TEXT NOT NULL DEFAULT '',
		site_role TEXT NOT NULL DEFAULT 'developer',
		badges BIGINT NOT NULL DEFAULT 0,
		allow_friend_requests BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_username ON users (LOWER(username))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email
		ON users (LOWER(email)) WHERE email <> ''`,

	`CREATE TABLE IF NOT EXISTS teams (
		id BIGINT NOT NULL PRIMARY KEY
	)`,

	`CREATE TABLE IF NOT EXISTS team_members (
		team_id BIGINT NOT NULL REFERENCES teams (id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES users (id),
		role TEXT NOT NULL DEFAULT '',
		is_owner BOOLEAN NOT NULL DEFAULT FALSE,
		permissions BIGINT NOT NULL DEFAULT 0,
		org_permissions BIGINT,
		accepted BOOLEAN NOT NULL DEFAULT FALSE,
		payouts_split TEXT NOT NULL DEFAULT '0',
		ordering BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (team_id, user_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS team_members_owner
		ON team_members (team_id) WHERE is_owner`,

	`CREATE TABLE IF NOT EXISTS organizations (
		id BIGINT NOT NULL PRIMARY KEY,
		team_id BIGINT NOT NULL REFERENCES teams (id),
		slug TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		icon_url TEXT NOT NULL DEFAULT '',
		raw_icon_url TEXT NOT NULL DEFAULT '',
		color INTEGER
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS organizations_slug ON organizations (LOWER(slug))`,

	`CREATE TABLE IF NOT EXISTS mods (
		id BIGINT NOT NULL PRIMARY KEY,
		team_id BIGINT NOT NULL REFERENCES teams (id),
		organization_id BIGINT NOT NULL DEFAULT 0,
		slug TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		requested_status TEXT NOT NULL DEFAULT '',
		categories TEXT NOT NULL DEFAULT '[]',
		additional_categories TEXT NOT NULL DEFAULT '[]',
		license TEXT NOT NULL DEFAULT '',
		license_url TEXT NOT NULL DEFAULT '',
		links TEXT NOT NULL DEFAULT '{}',
		icon_url TEXT NOT NULL DEFAULT '',
		raw_icon_url TEXT NOT NULL DEFAULT '',
		color INTEGER,
		monetization_status TEXT NOT NULL DEFAULT 'monetized',
		moderation_title TEXT NOT NULL DEFAULT '',
		moderation_body TEXT NOT NULL DEFAULT '',
		downloads BIGINT NOT NULL DEFAULT 0,
		follows BIGINT NOT NULL DEFAULT 0,
		published_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		approved_at TIMESTAMP,
		queued_at TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS mods_slug ON mods (LOWER(slug))`,
	`CREATE INDEX IF NOT EXISTS mods_organization ON mods (organization_id)`,

	`CREATE TABLE IF NOT EXISTS mods_gallery (
		id BIGINT NOT NULL PRIMARY KEY,
		mod_id BIGINT NOT NULL REFERENCES mods (id) ON DELETE CASCADE,
		image_url TEXT NOT NULL DEFAULT '',
		raw_image_url TEXT NOT NULL DEFAULT '',
		featured BOOLEAN NOT NULL DEFAULT FALSE,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		ordering BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS versions (
		id BIGINT NOT NULL PRIMARY KEY,
		mod_id BIGINT NOT NULL REFERENCES mods (id) ON DELETE CASCADE,
		author_id BIGINT NOT NULL,
		number TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		changelog TEXT NOT NULL DEFAULT '',
		version_type TEXT NOT NULL DEFAULT 'release',
		status TEXT NOT NULL DEFAULT 'listed',
		dependencies TEXT NOT NULL DEFAULT '[]',
		loaders TEXT NOT NULL DEFAULT '[]',
		fields TEXT NOT NULL DEFAULT '{}',
		featured BOOLEAN NOT NULL DEFAULT FALSE,
		downloads BIGINT NOT NULL DEFAULT 0,
		ordering BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		publish_at TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS versions_number ON versions (mod_id, LOWER(number))`,

	`CREATE TABLE IF NOT EXISTS files (
		version_id BIGINT NOT NULL REFERENCES versions (id) ON DELETE CASCADE,
		filename TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		size BIGINT NOT NULL DEFAULT 0,
		is_primary BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (version_id, filename)
	)`,

	`CREATE TABLE IF NOT EXISTS hashes (
		algorithm TEXT NOT NULL,
		hash TEXT NOT NULL,
		version_id BIGINT NOT NULL REFERENCES versions (id) ON DELETE CASCADE,
		filename TEXT NOT NULL,
		PRIMARY KEY (algorithm, hash)
	)`,

	`CREATE TABLE IF NOT EXISTS categories (
		id BIGINT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		icon TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS loaders (
		id BIGINT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		icon TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS loader_fields (
		id BIGINT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		field_type TEXT NOT NULL,
		optional BOOLEAN NOT NULL DEFAULT TRUE,
		enum_values TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS link_platforms (
		id BIGINT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		donation BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS credentials (
		digest TEXT NOT NULL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users (id),
		kind INTEGER NOT NULL,
		scopes BIGINT NOT NULL DEFAULT 0,
		name TEXT NOT NULL DEFAULT '',
		client_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP,
		revoked BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS id_sequences (
		kind INTEGER NOT NULL PRIMARY KEY,
		next BIGINT NOT NULL
	)`,
}

// MigrateToLatest brings the schema up to date.
func (db *DB) MigrateToLatest(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	for _, stmt := range schema {
		if _, err := db.db.ExecContext(ctx, stmt); err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}
