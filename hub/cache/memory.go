// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package cache

import (
	"context"
	"sync"
	"time"
)

// memoryClient keeps cached entries in a map. It backs tests and
// single node deployments; redis is the production backend.
type memoryClient struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemory returns an in-process cache client.
func NewMemory(ttl time.Duration) Client {
	return &memoryClient{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

// GetMany implements Client.
func (client *memoryClient) GetMany(ctx context.Context, ns Namespace, keys []string, fill FillFunc) (_ map[string][]byte, err error) {
	defer mon.Task()(&ctx)(&err)

	now := time.Now()
	values := make(map[string][]byte, len(keys))
	var missing []string

	client.mu.Lock()
	for _, key := range keys {
		entry, ok := client.entries[fullKey(ns, key)]
		if ok && entry.expires.After(now) {
			values[key] = entry.value
		} else {
			missing = append(missing, key)
		}
	}
	client.mu.Unlock()

	if len(missing) == 0 {
		return values, nil
	}

	filled, err := fill(ctx, missing)
	if err != nil {
		return nil, err
	}

	client.mu.Lock()
	for key, value := range filled {
		values[key] = value
		client.entries[fullKey(ns, key)] = memoryEntry{
			value:   value,
			expires: now.Add(client.ttl),
		}
	}
	client.mu.Unlock()

	return values, nil
}

// Invalidate implements Client.
func (client *memoryClient) Invalidate(ctx context.Context, ns Namespace, keys ...string) (err error) {
	defer mon.Task()(&ctx)(&err)

	client.mu.Lock()
	defer client.mu.Unlock()
	for _, key := range keys {
		delete(client.entries, fullKey(ns, key))
	}
	return nil
}

// Close implements Client.
func (client *memoryClient) Close() error { return nil }
