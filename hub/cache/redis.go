// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis"
	"go.uber.org/zap"
)

const (
	redisTimeout       = 250 * time.Millisecond
	invalidateRetryGap = 5 * time.Second
)

// redisClient is the redis backed cache. Read failures degrade to the
// fill function; invalidation failures are queued and retried out of
// band so a response is never blocked on the cache.
type redisClient struct {
	log *zap.Logger
	db  *redis.Client
	ttl time.Duration

	mu      sync.Mutex
	retry   []string
	stop    chan struct{}
	stopped sync.WaitGroup
}

// NewRedis returns a cache client connected to the redis instance named
// by the URL, verifying the connection.
func NewRedis(log *zap.Logger, url string, ttl time.Duration) (Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	opts.DialTimeout = redisTimeout
	opts.ReadTimeout = redisTimeout
	opts.WriteTimeout = redisTimeout

	db := redis.NewClient(opts)
	if err := db.Ping().Err(); err != nil {
		return nil, Error.New("ping failed: %v", err)
	}

	client := &redisClient{
		log:  log,
		db:   db,
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	client.stopped.Add(1)
	go client.retryLoop()
	return client, nil
}

// GetMany implements Client.
func (client *redisClient) GetMany(ctx context.Context, ns Namespace, keys []string, fill FillFunc) (_ map[string][]byte, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = fullKey(ns, key)
	}

	values := make(map[string][]byte, len(keys))
	var missing []string

	cached, err := client.db.MGet(full...).Result()
	if err != nil {
		// a broken cache degrades to a store read
		client.log.Warn("cache read failed, falling through",
			zap.String("namespace", string(ns)), zap.Error(err))
		missing = keys
	} else {
		for i, raw := range cached {
			if s, ok := raw.(string); ok {
				values[keys[i]] = []byte(s)
			} else {
				missing = append(missing, keys[i])
			}
		}
	}

	if len(missing) == 0 {
		return values, nil
	}

	filled, err := fill(ctx, missing)
	if err != nil {
		return nil, err
	}

	pipe := client.db.Pipeline()
	for key, value := range filled {
		values[key] = value
		pipe.Set(fullKey(ns, key), value, client.ttl)
	}
	if _, err := pipe.Exec(); err != nil {
		client.log.Warn("cache write-back failed",
			zap.String("namespace", string(ns)), zap.Error(err))
	}
	return values, nil
}

// Invalidate implements Client.
func (client *redisClient) Invalidate(ctx context.Context, ns Namespace, keys ...string) (err error) {
	defer mon.Task()(&ctx)(&err)

	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = fullKey(ns, key)
	}
	if err := client.db.Del(full...).Err(); err != nil {
		client.log.Warn("cache invalidation failed, queueing retry",
			zap.String("namespace", string(ns)), zap.Error(err))
		client.mu.Lock()
		client.retry = append(client.retry, full...)
		client.mu.Unlock()
	}
	return nil
}

func (client *redisClient) retryLoop() {
	defer client.stopped.Done()
	ticker := time.NewTicker(invalidateRetryGap)
	defer ticker.Stop()
	for {
		select {
		case <-client.stop:
			return
		case <-ticker.C:
			client.mu.Lock()
			pending := client.retry
			client.retry = nil
			client.mu.Unlock()

			if len(pending) == 0 {
				continue
			}
			if err := client.db.Del(pending...).Err(); err != nil {
				client.log.Warn("cache invalidation retry failed", zap.Error(err))
				client.mu.Lock()
				client.retry = append(client.retry, pending...)
				client.mu.Unlock()
			}
		}
	}
}

// Close implements Client.
func (client *redisClient) Close() error {
	close(client.stop)
	client.stopped.Wait()
	return client.db.Close()
}
