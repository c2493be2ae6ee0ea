// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v2"
	"github.com/zeebo/errs"
)

// Category is a server managed project tag.
type Category struct {
	ID   int64
	Name string
	Icon string
}

// Loader is a server managed mod loader name.
type Loader struct {
	ID   int64
	Name string
	Icon string
}

// LoaderFieldType types the values a loader field accepts.
type LoaderFieldType string

const (
	// FieldInteger accepts a JSON number.
	FieldInteger LoaderFieldType = "integer"
	// FieldText accepts a JSON string.
	FieldText LoaderFieldType = "text"
	// FieldBoolean accepts a JSON boolean.
	FieldBoolean LoaderFieldType = "boolean"
	// FieldEnum accepts one value from the field's enum set.
	FieldEnum LoaderFieldType = "enum"
	// FieldArrayEnum accepts an array of values from the enum set.
	FieldArrayEnum LoaderFieldType = "array_enum"
)

// LoaderField is a server managed typed key of the version field map,
// e.g. game versions or environment.
type LoaderField struct {
	ID         int64
	Name       string
	Type       LoaderFieldType
	Optional   bool
	EnumValues []string
}

// LinkPlatform is a server managed external link kind.
type LinkPlatform struct {
	ID       int64
	Name     string
	Donation bool
}

// Vocabulary exposes the server managed value sets.
//
// architecture: Database
type Vocabulary interface {
	// Categories returns all categories.
	Categories(ctx context.Context) ([]Category, error)
	// Loaders returns all loaders.
	Loaders(ctx context.Context) ([]Loader, error)
	// LoaderFields returns all loader fields with their enum sets.
	LoaderFields(ctx context.Context) ([]LoaderField, error)
	// LinkPlatforms returns all link platforms.
	LinkPlatforms(ctx context.Context) ([]LinkPlatform, error)

	// InsertCategory adds a category; admin vocabulary mutation.
	InsertCategory(ctx context.Context, category Category) error
	// InsertLoader adds a loader; admin vocabulary mutation.
	InsertLoader(ctx context.Context, loader Loader) error
	// InsertLoaderField adds a loader field; admin vocabulary mutation.
	InsertLoaderField(ctx context.Context, field LoaderField) error
	// InsertLinkPlatform adds a link platform; admin vocabulary mutation.
	InsertLinkPlatform(ctx context.Context, platform LinkPlatform) error
}

const (
	vocabKeyCategories    = "categories"
	vocabKeyLoaders       = "loaders"
	vocabKeyLoaderFields  = "loader_fields"
	vocabKeyLinkPlatforms = "link_platforms"
)

// VocabCache is the process wide snapshot of the vocabularies. It is
// loaded on first use, refreshed when an admin mutates a vocabulary and
// never written by ordinary request handlers.
type VocabCache struct {
	store Vocabulary
	cache *ttlcache.Cache
}

// NewVocabCache creates a vocabulary snapshot over the store.
func NewVocabCache(store Vocabulary, ttl time.Duration) *VocabCache {
	vc := &VocabCache{store: store, cache: ttlcache.NewCache()}
	_ = vc.cache.SetTTL(ttl)
	return vc
}

// get serves a snapshot, loading it with the caller's context on a
// miss so the query observes the caller's deadline.
func (vc *VocabCache) get(ctx context.Context, key string) (interface{}, error) {
	value, err := vc.cache.Get(key)
	if err == nil {
		return value, nil
	}
	if err != ttlcache.ErrNotFound {
		return nil, ErrExternal.Wrap(err)
	}
	value, err = vc.load(ctx, key)
	if err != nil {
		return nil, ErrExternal.Wrap(err)
	}
	_ = vc.cache.Set(key, value)
	return value, nil
}

func (vc *VocabCache) load(ctx context.Context, key string) (interface{}, error) {
	switch key {
	case vocabKeyCategories:
		return vc.store.Categories(ctx)
	case vocabKeyLoaders:
		return vc.store.Loaders(ctx)
	case vocabKeyLoaderFields:
		return vc.store.LoaderFields(ctx)
	case vocabKeyLinkPlatforms:
		return vc.store.LinkPlatforms(ctx)
	default:
		return nil, errs.New("unknown vocabulary %q", key)
	}
}

// Categories returns the cached category set.
func (vc *VocabCache) Categories(ctx context.Context) ([]Category, error) {
	value, err := vc.get(ctx, vocabKeyCategories)
	if err != nil {
		return nil, err
	}
	return value.([]Category), nil
}

// Loaders returns the cached loader set.
func (vc *VocabCache) Loaders(ctx context.Context) ([]Loader, error) {
	value, err := vc.get(ctx, vocabKeyLoaders)
	if err != nil {
		return nil, err
	}
	return value.([]Loader), nil
}

// LoaderFields returns the cached loader field set.
func (vc *VocabCache) LoaderFields(ctx context.Context) ([]LoaderField, error) {
	value, err := vc.get(ctx, vocabKeyLoaderFields)
	if err != nil {
		return nil, err
	}
	return value.([]LoaderField), nil
}

// LinkPlatforms returns the cached link platform set.
func (vc *VocabCache) LinkPlatforms(ctx context.Context) ([]LinkPlatform, error) {
	value, err := vc.get(ctx, vocabKeyLinkPlatforms)
	if err != nil {
		return nil, err
	}
	return value.([]LinkPlatform), nil
}

// Refresh drops the snapshot after an admin vocabulary mutation.
func (vc *VocabCache) Refresh() {
	_ = vc.cache.Purge()
}

// Close tears the snapshot down on shutdown.
func (vc *VocabCache) Close() error {
	return vc.cache.Close()
}
