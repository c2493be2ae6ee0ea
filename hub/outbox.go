// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"modhost.io/modhost/hub/ident"
)

// Indexer is the external search index collaborator. It is expected to
// be idempotent by project id.
type Indexer interface {
	// Index writes or rewrites the searchable view of a project.
	Index(ctx context.Context, aggregate *ProjectAggregate) error
	// Remove drops versions from the index.
	Remove(ctx context.Context, versionIDs []ident.ID) error
}

// WebhookSink receives moderation event notifications.
type WebhookSink interface {
	// Send delivers one event.
	Send(ctx context.Context, event string, payload interface{}) error
}

// RecordKind tags outbox records.
type RecordKind string

const (
	// RecordIndex reindexes a project.
	RecordIndex RecordKind = "index"
	// RecordRemove removes versions from the index.
	RecordRemove RecordKind = "remove"
	// RecordWebhook notifies a moderation event.
	RecordWebhook RecordKind = "webhook"
)

// Record is one queued side effect.
type Record struct {
	Kind       RecordKind
	Aggregate  *ProjectAggregate
	VersionIDs []ident.ID
	Event      string
	Payload    interface{}
}

// Outbox queues the index and webhook effects of successful writes.
// Records become visible to the collaborators only after the write
// committed; delivery is best effort and never fails the originating
// request. Failed records are retried out of band.
type Outbox struct {
	log      *zap.Logger
	indexer  Indexer
	webhooks WebhookSink

	mu     sync.Mutex
	failed []Record
}

// NewOutbox creates an outbox delivering to the given collaborators;
// either may be nil, which drops the corresponding records.
func NewOutbox(log *zap.Logger, indexer Indexer, webhooks WebhookSink) *Outbox {
	return &Outbox{log: log, indexer: indexer, webhooks: webhooks}
}

// Batch accumulates records during one request; nothing is delivered
// until Commit, and a dropped batch delivers nothing.
type Batch struct {
	outbox  *Outbox
	records []Record
}

// NewBatch starts an empty batch.
func (o *Outbox) NewBatch() *Batch {
	return &Batch{outbox: o}
}

// Index queues a project reindex.
func (b *Batch) Index(aggregate *ProjectAggregate) {
	b.records = append(b.records, Record{Kind: RecordIndex, Aggregate: aggregate})
}

// Remove queues an index removal for versions.
func (b *Batch) Remove(versionIDs ...ident.ID) {
	if len(versionIDs) == 0 {
		return
	}
	b.records = append(b.records, Record{Kind: RecordRemove, VersionIDs: versionIDs})
}

// Webhook queues a moderation event.
func (b *Batch) Webhook(event string, payload interface{}) {
	b.records = append(b.records, Record{Kind: RecordWebhook, Event: event, Payload: payload})
}

// Commit hands the batch to the collaborators, at most once per commit.
// Failures are logged and kept for the retry loop.
func (b *Batch) Commit(ctx context.Context) {
	records := b.records
	b.records = nil
	b.outbox.deliver(ctx, records)
}

func (o *Outbox) deliver(ctx context.Context, records []Record) {
	var failed []Record
	for _, record := range records {
		if err := o.deliverOne(ctx, record); err != nil {
			o.log.Warn("outbox delivery failed",
				zap.String("kind", string(record.Kind)), zap.Error(err))
			failed = append(failed, record)
		}
	}
	if len(failed) > 0 {
		o.mu.Lock()
		o.failed = append(o.failed, failed...)
		o.mu.Unlock()
	}
}

func (o *Outbox) deliverOne(ctx context.Context, record Record) error {
	switch record.Kind {
	case RecordIndex:
		if o.indexer == nil {
			return nil
		}
		return o.indexer.Index(ctx, record.Aggregate)
	case RecordRemove:
		if o.indexer == nil {
			return nil
		}
		return o.indexer.Remove(ctx, record.VersionIDs)
	case RecordWebhook:
		if o.webhooks == nil {
			return nil
		}
		return o.webhooks.Send(ctx, record.Event, record.Payload)
	default:
		return nil
	}
}

// RetryFailed redelivers previously failed records once.
func (o *Outbox) RetryFailed(ctx context.Context) {
	o.mu.Lock()
	pending := o.failed
	o.failed = nil
	o.mu.Unlock()

	if len(pending) > 0 {
		o.deliver(ctx, pending)
	}
}

// Run retries failed deliveries until the context is done.
func (o *Outbox) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.RetryFailed(ctx)
		}
	}
}

// FailedCount reports how many records await retry.
func (o *Outbox) FailedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.failed)
}
