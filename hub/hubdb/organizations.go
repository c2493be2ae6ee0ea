// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hubdb

import (
	"context"
	"database/sql"

	"github.com/zeebo/errs"

	"modhost.io/modhost/hub"
	"modhost.io/modhost/hub/ident"
)

// organizations implements hub.Organizations.
//
// architecture: Database
type organizations struct {
	stores
}

const orgColumns = `id, team_id, slug, name, description, icon_url,
	raw_icon_url, color`

func scanOrg(row interface{ Scan(...interface{}) error }) (*hub.Organization, error) {
	var o hub.Organization
	var id, teamID int64
	var color sql.NullInt32
	err := row.Scan(&id, &teamID, &o.Slug, &o.Name, &o.Description,
		&o.IconURL, &o.RawIconURL, &color)
	if err != nil {
		return nil, err
	}
	o.ID = scanID(id)
	o.TeamID = scanID(teamID)
	o.Color = int32Ptr(color)
	return &o, nil
}

func (s *organizations) Get(ctx context.Context, id ident.ID) (_ *hub.Organization, err error) {
	defer mon.Task()(&ctx)(&err)

	return s.getWhere(ctx, `WHERE id = ?`, "organization "+ident.Encode(id), idArg(id))
}

func (s *organizations) GetBySlug(ctx context.Context, slug string) (_ *hub.Organization, err error) {
	defer mon.Task()(&ctx)(&err)

	return s.getWhere(ctx, `WHERE LOWER(slug) = LOWER(?)`, "organization "+slug, slug)
}

func (s *organizations) GetByTeam(ctx context.Context, teamID ident.ID) (_ *hub.Organization, err error) {
	defer mon.Task()(&ctx)(&err)

	return s.getWhere(ctx, `WHERE team_id = ?`,
		"organization of team "+ident.Encode(teamID), idArg(teamID))
}

func (s *organizations) getWhere(ctx context.Context, where, what string, args ...interface{}) (*hub.Organization, error) {
	org, err := scanOrg(s.q.QueryRowContext(ctx, s.Rebind(
		`SELECT `+orgColumns+` FROM organizations `+where), args...))
	if err == sql.ErrNoRows {
		return nil, hub.ErrNotFound.New("%s", what)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return org, nil
}

func (s *organizations) GetMany(ctx context.Context, ids []ident.ID) (_ []hub.Organization, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(ids) == 0 {
		return []hub.Organization{}, nil
	}
	query, args := inClause(`SELECT `+orgColumns+` FROM organizations WHERE id IN `, ids)
	rows, err := s.q.QueryContext(ctx, s.Rebind(query), args...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Close())) }()

	byID := make(map[ident.ID]hub.Organization, len(ids))
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		byID[org.ID] = *org
	}
	if err := rows.Err(); err != nil {
		return nil, Error.Wrap(err)
	}
	out := make([]hub.Organization, 0, len(ids))
	for _, id := range ids {
		if org, ok := byID[id]; ok {
			out = append(out, org)
		}
	}
	return out, nil
}

func (s *organizations) Insert(ctx context.Context, org *hub.Organization) (_ *hub.Organization, err error) {
	defer mon.Task()(&ctx)(&err)

	id, err := s.IDs().Allocate(ctx, ident.KindOrganization)
	if err != nil {
		return nil, err
	}
	created := *org
	created.ID = id
	_, err = s.q.ExecContext(ctx, s.Rebind(`
		INSERT INTO organizations (`+orgColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		idArg(created.ID), idArg(created.TeamID), created.Slug, created.Name,
		created.Description, created.IconURL, created.RawIconURL,
		nullInt32(created.Color))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, hub.ErrConflict.New("slug %q is taken", created.Slug)
		}
		return nil, Error.Wrap(err)
	}
	return &created, nil
}

func (s *organizations) Update(ctx context.Context, org *hub.Organization) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := s.q.ExecContext(ctx, s.Rebind(`
		UPDATE organizations SET slug = ?, name = ?, description = ?,
			icon_url = ?, raw_icon_url = ?, color = ?
		WHERE id = ?`),
		org.Slug, org.Name, org.Description, org.IconURL, org.RawIconURL,
		nullInt32(org.Color), idArg(org.ID))
	if err != nil {
		if isUniqueViolation(err) {
			return hub.ErrConflict.New("slug %q is taken", org.Slug)
		}
		return Error.Wrap(err)
	}
	return requireAffected(result, "organization %s", ident.Encode(org.ID))
}

func (s *organizations) Delete(ctx context.Context, id ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := s.q.ExecContext(ctx, s.Rebind(
		`DELETE FROM organizations WHERE id = ?`), idArg(id))
	if err != nil {
		return Error.Wrap(err)
	}
	return requireAffected(result, "organization %s", ident.Encode(id))
}
