// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"modhost.io/modhost/hub"
	"modhost.io/modhost/hub/ident"
)

func TestOutboxDelivery(t *testing.T) {
	ctx := context.Background()
	indexer := &fakeIndexer{indexed: map[ident.ID]int{}}
	outbox := hub.NewOutbox(zaptest.NewLogger(t), indexer, nil)

	projectID, err := ident.New(ident.KindProject, 1)
	require.NoError(t, err)
	versionID, err := ident.New(ident.KindVersion, 1)
	require.NoError(t, err)
	aggregate := &hub.ProjectAggregate{Project: hub.Project{ID: projectID}}

	t.Run("DroppedBatchDeliversNothing", func(t *testing.T) {
		batch := outbox.NewBatch()
		batch.Index(aggregate)
		require.Equal(t, 0, indexer.indexCount(projectID))
	})

	t.Run("CommitDelivers", func(t *testing.T) {
		batch := outbox.NewBatch()
		batch.Index(aggregate)
		batch.Remove(versionID)
		batch.Commit(ctx)

		require.Equal(t, 1, indexer.indexCount(projectID))
		require.Contains(t, indexer.removedIDs(), versionID)
		require.Zero(t, outbox.FailedCount())
	})

	t.Run("FailedRecordsAreRetried", func(t *testing.T) {
		indexer.setFail(true)
		batch := outbox.NewBatch()
		batch.Index(aggregate)
		batch.Commit(ctx)

		require.Equal(t, 1, indexer.indexCount(projectID))
		require.Equal(t, 1, outbox.FailedCount())

		// still down: the record stays queued
		outbox.RetryFailed(ctx)
		require.Equal(t, 1, outbox.FailedCount())

		indexer.setFail(false)
		outbox.RetryFailed(ctx)
		require.Zero(t, outbox.FailedCount())
		require.Equal(t, 2, indexer.indexCount(projectID))
	})

	t.Run("NilCollaboratorsDropRecords", func(t *testing.T) {
		silent := hub.NewOutbox(zaptest.NewLogger(t), nil, nil)
		batch := silent.NewBatch()
		batch.Index(aggregate)
		batch.Webhook("project_queued", projectID)
		batch.Commit(ctx)
		require.Zero(t, silent.FailedCount())
	})
}
