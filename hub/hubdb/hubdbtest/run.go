// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

// Package hubdbtest runs tests against a real hub.DB. By default each
// test gets a private in-memory sqlite database; setting
// MODHOST_TEST_POSTGRES to a postgres url runs them there instead.
package hubdbtest

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"

	"modhost.io/modhost/hub"
	"modhost.io/modhost/hub/hubdb"
	"modhost.io/modhost/private/testcontext"
)

var counter int64

// Run opens a migrated database and calls test with it.
func Run(t *testing.T, test func(ctx *testcontext.Context, t *testing.T, db hub.DB)) {
	t.Helper()

	url := os.Getenv("MODHOST_TEST_POSTGRES")
	if url == "" {
		// a unique name per test keeps shared-cache databases apart
		url = fmt.Sprintf("sqlite://file:hubdbtest-%d?mode=memory&cache=shared",
			atomic.AddInt64(&counter, 1))
	}

	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	db, err := hubdb.Open(zaptest.NewLogger(t), url)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Check(db.Close)

	if err := db.MigrateToLatest(ctx); err != nil {
		t.Fatal(err)
	}
	test(ctx, t, db)
}
