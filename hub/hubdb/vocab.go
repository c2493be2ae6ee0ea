// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hubdb

import (
	"context"

	"github.com/zeebo/errs"

	"modhost.io/modhost/hub"
)

// vocabulary implements hub.Vocabulary. Vocabulary ids come from a
// max+1 subselect; admin mutations are rare and serialized.
type vocabulary struct {
	stores
}

func (s *vocabulary) Categories(ctx context.Context) (_ []hub.Category, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := s.q.QueryContext(ctx, `SELECT id, name, icon FROM categories ORDER BY name`)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Close())) }()

	out := []hub.Category{}
	for rows.Next() {
		var c hub.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
			return nil, Error.Wrap(err)
		}
		out = append(out, c)
	}
	return out, Error.Wrap(rows.Err())
}

func (s *vocabulary) Loaders(ctx context.Context) (_ []hub.Loader, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := s.q.QueryContext(ctx, `SELECT id, name, icon FROM loaders ORDER BY name`)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Close())) }()

	out := []hub.Loader{}
	for rows.Next() {
		var l hub.Loader
		if err := rows.Scan(&l.ID, &l.Name, &l.Icon); err != nil {
			return nil, Error.Wrap(err)
		}
		out = append(out, l)
	}
	return out, Error.Wrap(rows.Err())
}

func (s *vocabulary) LoaderFields(ctx context.Context) (_ []hub.LoaderField, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, field_type, optional, enum_values FROM loader_fields ORDER BY name`)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Close())) }()

	out := []hub.LoaderField{}
	for rows.Next() {
		var f hub.LoaderField
		var enumValues string
		if err := rows.Scan(&f.ID, &f.Name, &f.Type, &f.Optional, &enumValues); err != nil {
			return nil, Error.Wrap(err)
		}
		if err := fromJSON(enumValues, &f.EnumValues); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, Error.Wrap(rows.Err())
}

func (s *vocabulary) LinkPlatforms(ctx context.Context) (_ []hub.LinkPlatform, err error) {
	defer mon.Task()(&ctx)(&err)

	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, donation FROM link_platforms ORDER BY name`)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = Error.Wrap(errs.Combine(err, rows.Close())) }()

	out := []hub.LinkPlatform{}
	for rows.Next() {
		var p hub.LinkPlatform
		if err := rows.Scan(&p.ID, &p.Name, &p.Donation); err != nil {
			return nil, Error.Wrap(err)
		}
		out = append(out, p)
	}
	return out, Error.Wrap(rows.Err())
}

func (s *vocabulary) InsertCategory(ctx context.Context, category hub.Category) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = s.q.ExecContext(ctx, s.Rebind(`
		INSERT INTO categories (id, name, icon)
		SELECT COALESCE(MAX(id), 0) + 1, ?, ? FROM categories`),
		category.Name, category.Icon)
	if isUniqueViolation(err) {
		return hub.ErrConflict.New("category %q exists", category.Name)
	}
	return Error.Wrap(err)
}

func (s *vocabulary) InsertLoader(ctx context.Context, loader hub.Loader) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = s.q.ExecContext(ctx, s.Rebind(`
		INSERT INTO loaders (id, name, icon)
		SELECT COALESCE(MAX(id), 0) + 1, ?, ? FROM loaders`),
		loader.Name, loader.Icon)
	if isUniqueViolation(err) {
		return hub.ErrConflict.New("loader %q exists", loader.Name)
	}
	return Error.Wrap(err)
}

func (s *vocabulary) InsertLoaderField(ctx context.Context, field hub.LoaderField) (err error) {
	defer mon.Task()(&ctx)(&err)

	enumValues, err := asJSON(field.EnumValues)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, s.Rebind(`
		INSERT INTO loader_fields (id, name, field_type, optional, enum_values)
		SELECT COALESCE(MAX(id), 0) + 1, ?, ?, ?, ? FROM loader_fields`),
		field.Name, field.Type, field.Optional, enumValues)
	if isUniqueViolation(err) {
		return hub.ErrConflict.New("loader field %q exists", field.Name)
	}
	return Error.Wrap(err)
}

func (s *vocabulary) InsertLinkPlatform(ctx context.Context, platform hub.LinkPlatform) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = s.q.ExecContext(ctx, s.Rebind(`
		INSERT INTO link_platforms (id, name, donation)
		SELECT COALESCE(MAX(id), 0) + 1, ?, ? FROM link_platforms`),
		platform.Name, platform.Donation)
	if isUniqueViolation(err) {
		return hub.ErrConflict.New("link platform %q exists", platform.Name)
	}
	return Error.Wrap(err)
}
