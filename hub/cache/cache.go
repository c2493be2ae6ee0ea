// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

// Package cache implements the namespaced read-through cache that sits in
// front of the store. Entities are cached as serialized bytes under
// per-kind namespaces; mutations invalidate every alias of the touched
// entities after commit.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"
)

var (
	mon = monkit.Package()

	// Error is the default cache errs class.
	Error = errs.Class("cache")
)

// Namespace scopes cache keys by entity kind.
type Namespace string

const (
	// Users is keyed by user id.
	Users Namespace = "users"
	// Usernames maps lowercased username to user id.
	Usernames Namespace = "usernames"
	// Projects is keyed by project id and holds project aggregates.
	Projects Namespace = "projects"
	// ProjectSlugs maps lowercased project slug to project id.
	ProjectSlugs Namespace = "project_slugs"
	// Teams is keyed by team id and holds member lists.
	Teams Namespace = "teams"
	// Organizations is keyed by organization id.
	Organizations Namespace = "organizations"
	// OrgSlugs maps lowercased organization slug to organization id.
	OrgSlugs Namespace = "org_slugs"
	// Versions is keyed by version id.
	Versions Namespace = "versions"
	// LoaderFields is keyed by loader field id and holds enum value sets.
	LoaderFields Namespace = "loader_fields"
)

// FillFunc loads the values for keys that were not cached. Keys absent
// from the returned map are treated as not found and are not cached.
type FillFunc func(ctx context.Context, missing []string) (map[string][]byte, error)

// Client is the namespaced cache the services use.
//
// architecture: Database Cache
type Client interface {
	// GetMany returns the cached values for keys, batching misses
	// through fill and writing the results back with the configured TTL.
	GetMany(ctx context.Context, ns Namespace, keys []string, fill FillFunc) (map[string][]byte, error)
	// Invalidate synchronously drops the given keys from the namespace.
	Invalidate(ctx context.Context, ns Namespace, keys ...string) error
	// Close releases the backend connection.
	Close() error
}

// Config contains configurable values for the cache.
type Config struct {
	URL string        `help:"cache backend, either redis:// or memory:" default:"memory:" env:"CACHE_URL"`
	TTL time.Duration `help:"how long cached entries stay valid" default:"5m"`
}

// NewClient creates a cache client of the backend type named in the
// config URL.
func NewClient(log *zap.Logger, config Config) (Client, error) {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	switch {
	case config.URL == "" || strings.HasPrefix(config.URL, "memory:"):
		return NewMemory(ttl), nil
	case strings.HasPrefix(config.URL, "redis://"):
		return NewRedis(log, config.URL, ttl)
	default:
		return nil, Error.New("unrecognized cache backend specifier %q", config.URL)
	}
}

func fullKey(ns Namespace, key string) string {
	return string(ns) + ":" + key
}
