// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hubdb

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
	"github.com/zeebo/errs"

	"modhost.io/modhost/hub"
	"modhost.io/modhost/hub/ident"
)

// teams implements hub.Teams.
//
// architecture: Database
type teams struct {
	stores
}

func (s *teams) Create(ctx context.Context) (_ *hub.Team, err error) {
	defer mon.Task()(&ctx)(&err)

	id, err := s.IDs().Allocate(ctx, ident.KindTeam)
	if err != nil {
		return nil, err
	}
	_, err = s.q.ExecContext(ctx, s.Rebind(`INSERT INTO teams (id) VALUES (?)`), idArg(id))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &hub.Team{ID: id}, nil
}

func (s *teams) Get(ctx context.Context, id ident.ID) (_ *hub.Team, err error) {
	defer mon.Task()(&ctx)(&err)

	var got int64
	err = s.q.QueryRowContext(ctx, s.Rebind(`SELECT id FROM teams WHERE id = ?`), idArg(id)).Scan(&got)
	if err == sql.ErrNoRows {
		return nil, hub.ErrNotFound.New("team %s", ident.Encode(id))
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &hub.Team{ID: scanID(got)}, nil
}

func (s *teams) Association(ctx context.Context, id ident.ID) (_ hub.TeamAssociation, err error) {
	defer mon.Task()(&ctx)(&err)

	var projectID int64
	err = s.q.QueryRowContext(ctx, s.Rebind(
		`SELECT id FROM mods WHERE team_id = ?`), idArg(id)).Scan(&projectID)
	if err == nil {
		return hub.TeamAssociation{ProjectID: scanID(projectID)}, nil
	}
	if err != sql.ErrNoRows {
		return hub.TeamAssociation{}, Error.Wrap(err)
	}

	var orgID int64
	err = s.q.QueryRowContext(ctx, s.Rebind(
		`SELECT id FROM organizations WHERE team_id = ?`), idArg(id)).Scan(&orgID)
	if err == nil {
		return hub.TeamAssociation{OrganizationID: scanID(orgID)}, nil
	}
	if err != sql.ErrNoRows {
		return hub.TeamAssociation{}, Error.Wrap(err)
	}
	// a team referenced by neither table has no association yet
	return hub.TeamAssociation{}, nil
}

func (s *teams) Delete(ctx context.Context, id ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := s.q.ExecContext(ctx, s.Rebind(
		`DELETE FROM team_members WHERE team_id = ?`), idArg(id)); err != nil {
		return Error.Wrap(err)
	}
	result, err := s.q.ExecContext(ctx, s.Rebind(
		`DELETE FROM teams WHERE id = ?`), idArg(id))
	if err != nil {
		return Error.Wrap(err)
	}
	return requireAffected(result, "team %s", ident.Encode(id))
}

// teamMembers implements hub.TeamMembers.
//
// architecture: Database
type teamMembers struct {
	stores
}

const memberColumns = `team_id, user_id, role, is_owner, permissions,
	org_permissions, accepted, payouts_split, ordering`

func scanMember(row interface{ Scan(...interface{}) error }) (*hub.TeamMember, error) {
	var m hub.TeamMember
	var teamID, userID, perms int64
	var orgPerms sql.NullInt64
	var split string
	err := row.Scan(&teamID, &userID, &m.Role, &m.IsOwner, &perms,
		&orgPerms, &m.Accepted, &split, &m.Ordering)
	if err != nil {
		return nil, err
	}
	m.TeamID = scanID(teamID)
	m.UserID = scanID(userID)
	m.Permissions = hub.ProjectPermissions(uint64(perms))
	if orgPerms.Valid {
		bits := hub.OrganizationPermissions(uint64(orgPerms.Int64))
		m.OrganizationPermissions = &bits
	}
	m.PayoutsSplit, err = decimal.NewFromString(split)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func orgPermsArg(bits *hub.OrganizationPermissions) sql.NullInt64 {
	if bits == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(uint64(*bits)), Valid: true}
}

func (s *teamMembers) Find(ctx context.Context, teamID, userID ident.ID) (_ *hub.TeamMember, err error) {
	defer mon.Task()(&ctx)(&err)

	member, err := scanMember(s.q.QueryRowContext(ctx, s.Rebind(
		`SELECT `+memberColumns+` FROM team_members WHERE team_id = ? AND user_id = ?`),
		idArg(teamID), idArg(userID)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return member, nil
}

func (s *teamMembers) List(ctx context.Context, teamID ident.ID) (_ []hub.TeamMember, err error) {
	defer mon.Task()(&ctx)(&err)

	return s.list(ctx, `SELECT `+memberColumns+` FROM team_members
		WHERE team_id = ? ORDER BY ordering, user_id`, idArg(teamID))
}

func (s *teamMembers) ListByUser(ctx context.Context, userID ident.ID) (_ []hub.TeamMember, err error) {
	defer mon.Task()(&ctx)(&err)

	return s.list(ctx, `SELECT `+memberColumns+` FROM team_members
		WHERE user_id = ? ORDER BY team_id`, idArg(userID))
}

func (s *teamMembers) list(ctx context.Context, query string, args ...interface{}) (_ []hub.TeamMember, err error) {
	rows, err := s.q.QueryContext(ctx, s.Rebind(query), args...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Close())) }()

	members := []hub.TeamMember{}
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		members = append(members, *member)
	}
	return members, Error.Wrap(rows.Err())
}

func (s *teamMembers) Insert(ctx context.Context, member *hub.TeamMember) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = s.q.ExecContext(ctx, s.Rebind(`
		INSERT INTO team_members (`+memberColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		idArg(member.TeamID), idArg(member.UserID), member.Role, member.IsOwner,
		int64(uint64(member.Permissions)), orgPermsArg(member.OrganizationPermissions),
		member.Accepted, member.PayoutsSplit.String(), member.Ordering)
	if err != nil {
		if isUniqueViolation(err) {
			return hub.ErrConflict.New("user is already on the team")
		}
		return Error.Wrap(err)
	}
	return nil
}

func (s *teamMembers) Update(ctx context.Context, member *hub.TeamMember) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := s.q.ExecContext(ctx, s.Rebind(`
		UPDATE team_members SET role = ?, is_owner = ?, permissions = ?,
			org_permissions = ?, accepted = ?, payouts_split = ?, ordering = ?
		WHERE team_id = ? AND user_id = ?`),
		member.Role, member.IsOwner, int64(uint64(member.Permissions)),
		orgPermsArg(member.OrganizationPermissions), member.Accepted,
		member.PayoutsSplit.String(), member.Ordering,
		idArg(member.TeamID), idArg(member.UserID))
	if err != nil {
		return Error.Wrap(err)
	}
	return requireAffected(result, "member %s of team %s",
		ident.Encode(member.UserID), ident.Encode(member.TeamID))
}

func (s *teamMembers) Delete(ctx context.Context, teamID, userID ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := s.q.ExecContext(ctx, s.Rebind(
		`DELETE FROM team_members WHERE team_id = ? AND user_id = ?`),
		idArg(teamID), idArg(userID))
	if err != nil {
		return Error.Wrap(err)
	}
	return requireAffected(result, "member %s of team %s",
		ident.Encode(userID), ident.Encode(teamID))
}
