// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hubdb

import (
	"context"

	"modhost.io/modhost/hub/ident"
)

// allocator hands out ids from the per-kind sequence rows.
type allocator struct {
	stores
}

// Allocate returns the next id of the kind. The upsert bumps the
// sequence atomically, so concurrent allocations never collide.
func (a *allocator) Allocate(ctx context.Context, kind ident.Kind) (_ ident.ID, err error) {
	defer mon.Task()(&ctx)(&err)

	if !kind.Valid() {
		return 0, Error.New("invalid kind %d", kind)
	}
	var seq uint64
	err = a.q.QueryRowContext(ctx, a.Rebind(`
		INSERT INTO id_sequences (kind, next) VALUES (?, 2)
		ON CONFLICT (kind) DO UPDATE SET next = id_sequences.next + 1
		RETURNING next - 1
	`), int64(kind)).Scan(&seq)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	return ident.New(kind, seq)
}
