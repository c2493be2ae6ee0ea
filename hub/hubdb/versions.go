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

// versions implements hub.Versions.
//
// architecture: Database
type versions struct {
	stores
}

const versionColumns = `id, mod_id, author_id, number, name, changelog,
	version_type, status, dependencies, loaders, fields, featured, downloads,
	ordering, created_at, publish_at`

func scanVersion(row interface{ Scan(...interface{}) error }) (*hub.Version, error) {
	var v hub.Version
	var id, modID, authorID int64
	var dependencies, loaders, fields string
	var publishAt sql.NullTime
	err := row.Scan(&id, &modID, &authorID, &v.Number, &v.Name, &v.Changelog,
		&v.Type, &v.Status, &dependencies, &loaders, &fields, &v.Featured,
		&v.Downloads, &v.Ordering, &v.CreatedAt, &publishAt)
	if err != nil {
		return nil, err
	}
	v.ID = scanID(id)
	v.ProjectID = scanID(modID)
	v.AuthorID = scanID(authorID)
	v.PublishAt = timePtr(publishAt)
	if err := fromJSON(dependencies, &v.Dependencies); err != nil {
		return nil, err
	}
	if err := fromJSON(loaders, &v.Loaders); err != nil {
		return nil, err
	}
	if err := fromJSON(fields, &v.Fields); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *versions) Get(ctx context.Context, id ident.ID) (_ *hub.Version, err error) {
	defer mon.Task()(&ctx)(&err)

	return s.getWhere(ctx, `WHERE id = ?`, "version "+ident.Encode(id), idArg(id))
}

func (s *versions) GetByNumber(ctx context.Context, projectID ident.ID, number string) (_ *hub.Version, err error) {
	defer mon.Task()(&ctx)(&err)

	return s.getWhere(ctx, `WHERE mod_id = ? AND LOWER(number) = LOWER(?)`,
		"version "+number, idArg(projectID), number)
}

func (s *versions) getWhere(ctx context.Context, where, what string, args ...interface{}) (*hub.Version, error) {
	version, err := scanVersion(s.q.QueryRowContext(ctx, s.Rebind(
		`SELECT `+versionColumns+` FROM versions `+where), args...))
	if err == sql.ErrNoRows {
		return nil, hub.ErrNotFound.New("%s", what)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	version.Files, err = s.files(ctx, version.ID)
	if err != nil {
		return nil, err
	}
	return version, nil
}

func (s *versions) GetMany(ctx context.Context, ids []ident.ID) (_ []hub.Version, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(ids) == 0 {
		return []hub.Version{}, nil
	}
	query, args := inClause(`SELECT `+versionColumns+` FROM versions WHERE id IN `, ids)
	scanned, err := s.scanAll(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	byID := make(map[ident.ID]hub.Version, len(scanned))
	for i := range scanned {
		byID[scanned[i].ID] = scanned[i]
	}
	out := make([]hub.Version, 0, len(ids))
	for _, id := range ids {
		if version, ok := byID[id]; ok {
			out = append(out, version)
		}
	}
	return out, nil
}

func (s *versions) ListByProject(ctx context.Context, projectID ident.ID) (_ []hub.Version, err error) {
	defer mon.Task()(&ctx)(&err)

	return s.scanAll(ctx, `SELECT `+versionColumns+` FROM versions
		WHERE mod_id = ? ORDER BY ordering, created_at, id`, idArg(projectID))
}

func (s *versions) scanAll(ctx context.Context, query string, args ...interface{}) ([]hub.Version, error) {
	scanned, err := func() (_ []hub.Version, err error) {
		rows, err := s.q.QueryContext(ctx, s.Rebind(query), args...)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		defer func() { err = Error.Wrap(errs.Combine(err, rows.Close())) }()

		out := []hub.Version{}
		for rows.Next() {
			version, err := scanVersion(rows)
			if err != nil {
				return nil, Error.Wrap(err)
			}
			out = append(out, *version)
		}
		return out, Error.Wrap(rows.Err())
	}()
	if err != nil {
		return nil, err
	}
	for i := range scanned {
		scanned[i].Files, err = s.files(ctx, scanned[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return scanned, nil
}

func (s *versions) Insert(ctx context.Context, version *hub.Version) (_ *hub.Version, err error) {
	defer mon.Task()(&ctx)(&err)

	id, err := s.IDs().Allocate(ctx, ident.KindVersion)
	if err != nil {
		return nil, err
	}
	created := *version
	created.ID = id
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	dependencies, err := asJSON(created.Dependencies)
	if err != nil {
		return nil, err
	}
	loaders, err := asJSON(created.Loaders)
	if err != nil {
		return nil, err
	}
	fields, err := asJSON(created.Fields)
	if err != nil {
		return nil, err
	}
	_, err = s.q.ExecContext(ctx, s.Rebind(`
		INSERT INTO versions (`+versionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		idArg(created.ID), idArg(created.ProjectID), idArg(created.AuthorID),
		created.Number, created.Name, created.Changelog, created.Type,
		created.Status, dependencies, loaders, fields, created.Featured,
		created.Downloads, created.Ordering, created.CreatedAt,
		nullTime(created.PublishAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, hub.ErrInvalidInput.New("version number %q is taken", created.Number)
		}
		return nil, Error.Wrap(err)
	}
	if err := s.writeFiles(ctx, created.ID, created.Files); err != nil {
		// undo the partial insert so a rejected upload leaves no row behind
		_, hashesErr := s.q.ExecContext(ctx, s.Rebind(
			`DELETE FROM hashes WHERE version_id = ?`), idArg(created.ID))
		_, filesErr := s.q.ExecContext(ctx, s.Rebind(
			`DELETE FROM files WHERE version_id = ?`), idArg(created.ID))
		_, versionErr := s.q.ExecContext(ctx, s.Rebind(
			`DELETE FROM versions WHERE id = ?`), idArg(created.ID))
		return nil, errs.Combine(err,
			Error.Wrap(hashesErr), Error.Wrap(filesErr), Error.Wrap(versionErr))
	}
	return &created, nil
}

func (s *versions) Update(ctx context.Context, version *hub.Version) (err error) {
	defer mon.Task()(&ctx)(&err)

	dependencies, err := asJSON(version.Dependencies)
	if err != nil {
		return err
	}
	loaders, err := asJSON(version.Loaders)
	if err != nil {
		return err
	}
	fields, err := asJSON(version.Fields)
	if err != nil {
		return err
	}
	result, err := s.q.ExecContext(ctx, s.Rebind(`
		UPDATE versions SET name = ?, changelog = ?, version_type = ?,
			status = ?, dependencies = ?, loaders = ?, fields = ?, featured = ?,
			downloads = ?, ordering = ?, publish_at = ?
		WHERE id = ?`),
		version.Name, version.Changelog, version.Type, version.Status,
		dependencies, loaders, fields, version.Featured, version.Downloads,
		version.Ordering, nullTime(version.PublishAt), idArg(version.ID))
	if err != nil {
		return Error.Wrap(err)
	}
	if err := requireAffected(result, "version %s", ident.Encode(version.ID)); err != nil {
		return err
	}

	// satellite rows are rewritten wholesale
	if _, err := s.q.ExecContext(ctx, s.Rebind(
		`DELETE FROM hashes WHERE version_id = ?`), idArg(version.ID)); err != nil {
		return Error.Wrap(err)
	}
	if _, err := s.q.ExecContext(ctx, s.Rebind(
		`DELETE FROM files WHERE version_id = ?`), idArg(version.ID)); err != nil {
		return Error.Wrap(err)
	}
	return s.writeFiles(ctx, version.ID, version.Files)
}

func (s *versions) writeFiles(ctx context.Context, versionID ident.ID, files []hub.VersionFile) error {
	for _, file := range files {
		_, err := s.q.ExecContext(ctx, s.Rebind(`
			INSERT INTO files (version_id, filename, url, size, is_primary)
			VALUES (?, ?, ?, ?, ?)`),
			idArg(versionID), file.Filename, file.URL, file.Size, file.Primary)
		if err != nil {
			return Error.Wrap(err)
		}
		for algorithm, hash := range file.Hashes {
			_, err := s.q.ExecContext(ctx, s.Rebind(`
				INSERT INTO hashes (algorithm, hash, version_id, filename)
				VALUES (?, ?, ?, ?)`),
				algorithm, hash, idArg(versionID), file.Filename)
			if err != nil {
				if isUniqueViolation(err) {
					return hub.ErrInvalidInput.New("file %q duplicates an existing upload", file.Filename)
				}
				return Error.Wrap(err)
			}
		}
	}
	return nil
}

func (s *versions) files(ctx context.Context, versionID ident.ID) (_ []hub.VersionFile, err error) {
	files, err := func() (_ []hub.VersionFile, err error) {
		rows, err := s.q.QueryContext(ctx, s.Rebind(`
			SELECT version_id, filename, url, size, is_primary FROM files
			WHERE version_id = ? ORDER BY filename`), idArg(versionID))
		if err != nil {
			return nil, Error.Wrap(err)
		}
		defer func() { err = Error.Wrap(errs.Combine(err, rows.Close())) }()

		var out []hub.VersionFile
		for rows.Next() {
			var file hub.VersionFile
			var vid int64
			if err := rows.Scan(&vid, &file.Filename, &file.URL, &file.Size, &file.Primary); err != nil {
				return nil, Error.Wrap(err)
			}
			file.VersionID = scanID(vid)
			file.Hashes = map[string]string{}
			out = append(out, file)
		}
		return out, Error.Wrap(rows.Err())
	}()
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, s.Rebind(`
		SELECT algorithm, hash, filename FROM hashes WHERE version_id = ?`),
		idArg(versionID))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Close())) }()

	for rows.Next() {
		var algorithm, hash, filename string
		if err := rows.Scan(&algorithm, &hash, &filename); err != nil {
			return nil, Error.Wrap(err)
		}
		for i := range files {
			if files[i].Filename == filename {
				files[i].Hashes[algorithm] = hash
			}
		}
	}
	return files, Error.Wrap(rows.Err())
}

func (s *versions) AddDownloads(ctx context.Context, id ident.ID, delta int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	result, err := s.q.ExecContext(ctx, s.Rebind(
		`UPDATE versions SET downloads = downloads + ? WHERE id = ?`),
		delta, idArg(id))
	if err != nil {
		return Error.Wrap(err)
	}
	return requireAffected(result, "version %s", ident.Encode(id))
}

func (s *versions) HashInUse(ctx context.Context, algorithm, hash string) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)

	var count int64
	err = s.q.QueryRowContext(ctx, s.Rebind(
		`SELECT COUNT(*) FROM hashes WHERE algorithm = ? AND hash = ?`),
		algorithm, hash).Scan(&count)
	if err != nil {
		return false, Error.Wrap(err)
	}
	return count > 0, nil
}

func (s *versions) Delete(ctx context.Context, id ident.ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := s.q.ExecContext(ctx, s.Rebind(
		`DELETE FROM hashes WHERE version_id = ?`), idArg(id)); err != nil {
		return Error.Wrap(err)
	}
	if _, err := s.q.ExecContext(ctx, s.Rebind(
		`DELETE FROM files WHERE version_id = ?`), idArg(id)); err != nil {
		return Error.Wrap(err)
	}
	result, err := s.q.ExecContext(ctx, s.Rebind(
		`DELETE FROM versions WHERE id = ?`), idArg(id))
	if err != nil {
		return Error.Wrap(err)
	}
	return requireAffected(result, "version %s", ident.Encode(id))
}
