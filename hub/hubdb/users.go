// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hubdb

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/zeebo/errs"

	"modhost.io/modhost/hub"
	"modhost.io/modhost/hub/ident"
)

// users implements hub.Users.
//
// architecture: Database
type users struct {
	stores
}

const userColumns = `id, username, display_name, email, bio, avatar_url,
	raw_avatar_url, site_role, badges, allow_friend_requests, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*hub.User, error) {
	var u hub.User
	var id int64
	var badges int64
	err := row.Scan(&id, &u.Username, &u.DisplayName, &u.Email, &u.Bio,
		&u.AvatarURL, &u.RawAvatarURL, &u.SiteRole, &badges,
		&u.AllowFriendRequests, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.ID = scanID(id)
	u.Badges = uint64(badges)
	return &u, nil
}

func (s *users) Get(ctx context.Context, id ident.ID) (_ *hub.User, err error) {
	defer mon.Task()(&ctx)(&err)

	user, err := scanUser(s.q.QueryRowContext(ctx, s.Rebind(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), idArg(id)))
	if err == sql.ErrNoRows {
		return nil, hub.ErrNotFound.New("user %s", ident.Encode(id))
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return user, nil
}

func (s *users) GetMany(ctx context.Context, ids []ident.ID) (_ []hub.User, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(ids) == 0 {
		return []hub.User{}, nil
	}
	query, args := inClause(`SELECT `+userColumns+` FROM users WHERE id IN `, ids)
	rows, err := s.q.QueryContext(ctx, s.Rebind(query), args...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Close())) }()

	byID := make(map[ident.ID]hub.User, len(ids))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		byID[user.ID] = *user
	}
	if err := rows.Err(); err != nil {
		return nil, Error.Wrap(err)
	}
	out := make([]hub.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := byID[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (s *users) GetByUsername(ctx context.Context, username string) (_ *hub.User, err error) {
	defer mon.Task()(&ctx)(&err)

	user, err := scanUser(s.q.QueryRowContext(ctx, s.Rebind(
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER(?)`), username))
	if err == sql.ErrNoRows {
		return nil, hub.ErrNotFound.New("user %q", username)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return user, nil
}

func (s *users) Insert(ctx context.Context, user *hub.User) (_ *hub.User, err error) {
	defer mon.Task()(&ctx)(&err)

	id, err := s.IDs().Allocate(ctx, ident.KindUser)
	if err != nil {
		return nil, err
	}
	created := *user
	created.ID = id
	if created.SiteRole == "" {
		created.SiteRole = hub.RoleDeveloper
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	_, err = s.q.ExecContext(ctx, s.Rebind(`
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		idArg(created.ID), created.Username, created.DisplayName, created.Email,
		created.Bio, created.AvatarURL, created.RawAvatarURL, created.SiteRole,
		int64(created.Badges), created.AllowFriendRequests, created.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, hub.ErrConflict.New("username %q or email already in use", created.Username)
		}
		return nil, Error.Wrap(err)
	}
	return &created, nil
}

func (s *users) Update(ctx context.Context, user *hub.User) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := s.q.ExecContext(ctx, s.Rebind(`
		UPDATE users SET username = ?, display_name = ?, email = ?, bio = ?,
			avatar_url = ?, raw_avatar_url = ?, site_role = ?, badges = ?,
			allow_friend_requests = ?
		WHERE id = ?`),
		user.Username, user.DisplayName, user.Email, user.Bio,
		user.AvatarURL, user.RawAvatarURL, user.SiteRole, int64(user.Badges),
		user.AllowFriendRequests, idArg(user.ID))
	if err != nil {
		if isUniqueViolation(err) {
			return hub.ErrConflict.New("username %q or email already in use", user.Username)
		}
		return Error.Wrap(err)
	}
	return requireAffected(result, "user %s", ident.Encode(user.ID))
}

// Retire anonymizes the row in place so foreign keys stay satisfied.
func (s *users) Retire(ctx context.Context, id ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := s.q.ExecContext(ctx, s.Rebind(`
		UPDATE users SET username = ?, display_name = '', email = '', bio = '',
			avatar_url = '', raw_avatar_url = '', badges = 0,
			allow_friend_requests = FALSE
		WHERE id = ?`),
		"ghost-"+ident.Encode(id), idArg(id))
	if err != nil {
		return Error.Wrap(err)
	}
	return requireAffected(result, "user %s", ident.Encode(id))
}

// inClause renders "prefix (?, ?, ...)" with the ids as args.
func inClause(prefix string, ids []ident.ID) (string, []interface{}) {
	marks := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = idArg(id)
	}
	return prefix + "(" + strings.Join(marks, ", ") + ")", args
}

// requireAffected maps a zero row count to not found.
func requireAffected(result sql.Result, format string, args ...interface{}) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected == 0 {
		return hub.ErrNotFound.New(format, args...)
	}
	return nil
}

// isUniqueViolation matches the unique constraint errors of both
// drivers without importing their error types here.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres
}
