// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hubdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/zeebo/errs"

	"modhost.io/modhost/hub"
	"modhost.io/modhost/hub/ident"
)

// projects implements hub.Projects over the mods table.
//
// architecture: Database
type projects struct {
	stores
}

const projectColumns = `id, team_id, organization_id, slug, name, summary,
	description, status, requested_status, categories, additional_categories,
	license, license_url, links, icon_url, raw_icon_url, color,
	monetization_status, moderation_title, moderation_body, downloads, follows,
	published_at, updated_at, approved_at, queued_at`

func scanProject(row interface{ Scan(...interface{}) error }) (*hub.Project, error) {
	var p hub.Project
	var id, teamID, orgID int64
	var categories, additional, links string
	var color sql.NullInt32
	var approvedAt, queuedAt sql.NullTime
	err := row.Scan(&id, &teamID, &orgID, &p.Slug, &p.Name, &p.Summary,
		&p.Description, &p.Status, &p.RequestedStatus, &categories, &additional,
		&p.License, &p.LicenseURL, &links, &p.IconURL, &p.RawIconURL, &color,
		&p.MonetizationStatus, &p.ModerationTitle, &p.ModerationBody,
		&p.Downloads, &p.Follows, &p.PublishedAt, &p.UpdatedAt, &approvedAt, &queuedAt)
	if err != nil {
		return nil, err
	}
	p.ID = scanID(id)
	p.TeamID = scanID(teamID)
	p.OrganizationID = scanID(orgID)
	p.Color = int32Ptr(color)
	p.ApprovedAt = timePtr(approvedAt)
	p.QueuedAt = timePtr(queuedAt)
	if err := fromJSON(categories, &p.Categories); err != nil {
		return nil, err
	}
	if err := fromJSON(additional, &p.AdditionalCategories); err != nil {
		return nil, err
	}
	if err := fromJSON(links, &p.Links); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *projects) Get(ctx context.Context, id ident.ID) (_ *hub.Project, err error) {
	defer mon.Task()(&ctx)(&err)

	return s.getWhere(ctx, `WHERE id = ?`, "project "+ident.Encode(id), idArg(id))
}

func (s *projects) GetBySlug(ctx context.Context, slug string) (_ *hub.Project, err error) {
	defer mon.Task()(&ctx)(&err)

	return s.getWhere(ctx, `WHERE LOWER(slug) = LOWER(?)`, "project "+slug, slug)
}

func (s *projects) GetByTeam(ctx context.Context, teamID ident.ID) (_ *hub.Project, err error) {
	defer mon.Task()(&ctx)(&err)

	return s.getWhere(ctx, `WHERE team_id = ?`, "project of team "+ident.Encode(teamID), idArg(teamID))
}

func (s *projects) getWhere(ctx context.Context, where, what string, args ...interface{}) (*hub.Project, error) {
	project, err := scanProject(s.q.QueryRowContext(ctx, s.Rebind(
		`SELECT `+projectColumns+` FROM mods `+where), args...))
	if err == sql.ErrNoRows {
		return nil, hub.ErrNotFound.New("%s", what)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	project.Gallery, err = s.gallery(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *projects) GetMany(ctx context.Context, ids []ident.ID) (_ []hub.Project, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(ids) == 0 {
		return []hub.Project{}, nil
	}
	query, args := inClause(`SELECT `+projectColumns+` FROM mods WHERE id IN `, ids)
	byID, err := s.queryMap(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]hub.Project, 0, len(ids))
	for _, id := range ids {
		if project, ok := byID[id]; ok {
			out = append(out, project)
		}
	}
	return out, nil
}

func (s *projects) ListByOrganization(ctx context.Context, orgID ident.ID) (_ []hub.Project, err error) {
	defer mon.Task()(&ctx)(&err)

	byID, err := s.queryMap(ctx,
		`SELECT `+projectColumns+` FROM mods WHERE organization_id = ? ORDER BY id`,
		idArg(orgID))
	if err != nil {
		return nil, err
	}
	out := make([]hub.Project, 0, len(byID))
	for _, project := range byID {
		out = append(out, project)
	}
	sortProjectsByID(out)
	return out, nil
}

func (s *projects) queryMap(ctx context.Context, query string, args ...interface{}) (map[ident.ID]hub.Project, error) {
	byID, err := s.scanAll(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	// gallery queries only after the project rows are fully drained;
	// interleaved result sets stall on a single connection
	for id, project := range byID {
		project.Gallery, err = s.gallery(ctx, id)
		if err != nil {
			return nil, err
		}
		byID[id] = project
	}
	return byID, nil
}

func (s *projects) scanAll(ctx context.Context, query string, args ...interface{}) (_ map[ident.ID]hub.Project, err error) {
	rows, err := s.q.QueryContext(ctx, s.Rebind(query), args...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Close())) }()

	byID := map[ident.ID]hub.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		byID[project.ID] = *project
	}
	return byID, Error.Wrap(rows.Err())
}

func sortProjectsByID(projects []hub.Project) {
	for i := 1; i < len(projects); i++ {
		for j := i; j > 0 && projects[j].ID < projects[j-1].ID; j-- {
			projects[j], projects[j-1] = projects[j-1], projects[j]
		}
	}
}

func (s *projects) Insert(ctx context.Context, project *hub.Project) (_ *hub.Project, err error) {
	defer mon.Task()(&ctx)(&err)

	id, err := s.IDs().Allocate(ctx, ident.KindProject)
	if err != nil {
		return nil, err
	}
	created := *project
	created.ID = id
	categories, err := asJSON(created.Categories)
	if err != nil {
		return nil, err
	}
	additional, err := asJSON(created.AdditionalCategories)
	if err != nil {
		return nil, err
	}
	links, err := asJSON(created.Links)
	if err != nil {
		return nil, err
	}
	_, err = s.q.ExecContext(ctx, s.Rebind(`
		INSERT INTO mods (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		idArg(created.ID), idArg(created.TeamID), idArg(created.OrganizationID),
		created.Slug, created.Name, created.Summary, created.Description,
		created.Status, created.RequestedStatus, categories, additional,
		created.License, created.LicenseURL, links, created.IconURL,
		created.RawIconURL, nullInt32(created.Color), created.MonetizationStatus,
		created.ModerationTitle, created.ModerationBody, created.Downloads,
		created.Follows, created.PublishedAt, created.UpdatedAt,
		nullTime(created.ApprovedAt), nullTime(created.QueuedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, hub.ErrConflict.New("slug %q is taken", created.Slug)
		}
		return nil, Error.Wrap(err)
	}
	return &created, nil
}

func (s *projects) Update(ctx context.Context, project *hub.Project) (err error) {
	defer mon.Task()(&ctx)(&err)

	categories, err := asJSON(project.Categories)
	if err != nil {
		return err
	}
	additional, err := asJSON(project.AdditionalCategories)
	if err != nil {
		return err
	}
	links, err := asJSON(project.Links)
	if err != nil {
		return err
	}
	result, err := s.q.ExecContext(ctx, s.Rebind(`
		UPDATE mods SET slug = ?, name = ?, summary = ?, description = ?,
			status = ?, requested_status = ?, categories = ?,
			additional_categories = ?, license = ?, license_url = ?, links = ?,
			icon_url = ?, raw_icon_url = ?, color = ?, monetization_status = ?,
			moderation_title = ?, moderation_body = ?, updated_at = ?,
			approved_at = ?, queued_at = ?
		WHERE id = ?`),
		project.Slug, project.Name, project.Summary, project.Description,
		project.Status, project.RequestedStatus, categories, additional,
		project.License, project.LicenseURL, links, project.IconURL,
		project.RawIconURL, nullInt32(project.Color), project.MonetizationStatus,
		project.ModerationTitle, project.ModerationBody, project.UpdatedAt,
		nullTime(project.ApprovedAt), nullTime(project.QueuedAt), idArg(project.ID))
	if err != nil {
		if isUniqueViolation(err) {
			return hub.ErrConflict.New("slug %q is taken", project.Slug)
		}
		return Error.Wrap(err)
	}
	return requireAffected(result, "project %s", ident.Encode(project.ID))
}

func (s *projects) SetOrganization(ctx context.Context, projectID, orgID ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := s.q.ExecContext(ctx, s.Rebind(
		`UPDATE mods SET organization_id = ? WHERE id = ?`),
		idArg(orgID), idArg(projectID))
	if err != nil {
		return Error.Wrap(err)
	}
	return requireAffected(result, "project %s", ident.Encode(projectID))
}

func (s *projects) AddDownloads(ctx context.Context, id ident.ID, delta int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := s.q.ExecContext(ctx, s.Rebind(
		`UPDATE mods SET downloads = downloads + ? WHERE id = ?`),
		delta, idArg(id))
	if err != nil {
		return Error.Wrap(err)
	}
	return requireAffected(result, "project %s", ident.Encode(id))
}

// Lock serializes mutations of a project row. Postgres takes a row
// lock; sqlite already serializes writers on the single connection, so
// the existence check is enough.
func (s *projects) Lock(ctx context.Context, id ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	query := `SELECT id FROM mods WHERE id = ?`
	if s.driver == driverPostgres {
		query += ` FOR UPDATE`
	}
	var got int64
	err = s.q.QueryRowContext(ctx, s.Rebind(query), idArg(id)).Scan(&got)
	if err == sql.ErrNoRows {
		return hub.ErrNotFound.New("project %s", ident.Encode(id))
	}
	return Error.Wrap(err)
}

func (s *projects) Delete(ctx context.Context, id ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	// version satellites cascade from versions; versions and gallery
	// cascade from mods
	result, err := s.q.ExecContext(ctx, s.Rebind(`DELETE FROM mods WHERE id = ?`), idArg(id))
	if err != nil {
		return Error.Wrap(err)
	}
	return requireAffected(result, "project %s", ident.Encode(id))
}

const galleryColumns = `id, mod_id, image_url, raw_image_url, featured, name,
	description, ordering, created_at`

func (s *projects) gallery(ctx context.Context, projectID ident.ID) (_ []hub.GalleryItem, err error) {
	rows, err := s.q.QueryContext(ctx, s.Rebind(
		`SELECT `+galleryColumns+` FROM mods_gallery WHERE mod_id = ? ORDER BY ordering, id`),
		idArg(projectID))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Close())) }()

	var items []hub.GalleryItem
	for rows.Next() {
		var item hub.GalleryItem
		var id, modID int64
		err := rows.Scan(&id, &modID, &item.ImageURL, &item.RawImageURL,
			&item.Featured, &item.Name, &item.Description, &item.Ordering,
			&item.CreatedAt)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		item.ID = scanID(id)
		item.ProjectID = scanID(modID)
		items = append(items, item)
	}
	return items, Error.Wrap(rows.Err())
}

func (s *projects) AddGalleryItem(ctx context.Context, item *hub.GalleryItem) (_ *hub.GalleryItem, err error) {
	defer mon.Task()(&ctx)(&err)

	id, err := s.IDs().Allocate(ctx, ident.KindGalleryItem)
	if err != nil {
		return nil, err
	}
	created := *item
	created.ID = id
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	_, err = s.q.ExecContext(ctx, s.Rebind(`
		INSERT INTO mods_gallery (`+galleryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		idArg(created.ID), idArg(created.ProjectID), created.ImageURL,
		created.RawImageURL, created.Featured, created.Name, created.Description,
		created.Ordering, created.CreatedAt)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &created, nil
}

func (s *projects) UpdateGalleryItem(ctx context.Context, item *hub.GalleryItem) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := s.q.ExecContext(ctx, s.Rebind(`
		UPDATE mods_gallery SET image_url = ?, raw_image_url = ?, featured = ?,
			name = ?, description = ?, ordering = ?
		WHERE id = ? AND mod_id = ?`),
		item.ImageURL, item.RawImageURL, item.Featured, item.Name,
		item.Description, item.Ordering, idArg(item.ID), idArg(item.ProjectID))
	if err != nil {
		return Error.Wrap(err)
	}
	return requireAffected(result, "gallery item %s", ident.Encode(item.ID))
}

func (s *projects) DeleteGalleryItem(ctx context.Context, projectID, itemID ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := s.q.ExecContext(ctx, s.Rebind(
		`DELETE FROM mods_gallery WHERE id = ? AND mod_id = ?`),
		idArg(itemID), idArg(projectID))
	if err != nil {
		return Error.Wrap(err)
	}
	return requireAffected(result, "gallery item %s", ident.Encode(itemID))
}
