// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"modhost.io/modhost/hub"
	"modhost.io/modhost/hub/cache"
	"modhost.io/modhost/hub/hubauth"
	"modhost.io/modhost/hub/ident"
	"modhost.io/modhost/private/testcontext"
)

// testEnv wires the services over a real database with a memory cache
// and fake collaborators.
type testEnv struct {
	DB       hub.DB
	Cache    cache.Client
	Vocab    *hub.VocabCache
	Blobs    *fakeBlobs
	Indexer  *fakeIndexer
	Outbox   *hub.Outbox
	Teams    *hub.TeamService
	Orgs     *hub.OrgService
	Projects *hub.ProjectService
	Versions *hub.VersionService
}

func newEnv(ctx *testcontext.Context, t *testing.T, db hub.DB) *testEnv {
	log := zaptest.NewLogger(t)

	cacheClient, err := cache.NewClient(log, cache.Config{URL: "memory://", TTL: time.Minute})
	require.NoError(t, err)

	vocab := hub.NewVocabCache(db.Vocabulary(), time.Minute)
	blobs := &fakeBlobs{uploads: map[string][]byte{}}
	indexer := &fakeIndexer{indexed: map[ident.ID]int{}}
	outbox := hub.NewOutbox(log, indexer, nil)

	seedVocabulary(ctx, t, db)

	return &testEnv{
		DB:       db,
		Cache:    cacheClient,
		Vocab:    vocab,
		Blobs:    blobs,
		Indexer:  indexer,
		Outbox:   outbox,
		Teams:    hub.NewTeamService(log, db, cacheClient),
		Orgs:     hub.NewOrgService(log, db, cacheClient, outbox),
		Projects: hub.NewProjectService(log, db, cacheClient, vocab, blobs, outbox),
		Versions: hub.NewVersionService(log, db, cacheClient, vocab, blobs, outbox),
	}
}

func seedVocabulary(ctx context.Context, t *testing.T, db hub.DB) {
	vocab := db.Vocabulary()
	require.NoError(t, vocab.InsertCategory(ctx, hub.Category{Name: "technology"}))
	require.NoError(t, vocab.InsertCategory(ctx, hub.Category{Name: "magic"}))
	require.NoError(t, vocab.InsertLoader(ctx, hub.Loader{Name: "fabric"}))
	require.NoError(t, vocab.InsertLoader(ctx, hub.Loader{Name: "forge"}))
	require.NoError(t, vocab.InsertLoaderField(ctx, hub.LoaderField{
		Name:       "game_versions",
		Type:       hub.FieldArrayEnum,
		Optional:   false,
		EnumValues: []string{"1-19", "1-20", "1-21"},
	}))
	require.NoError(t, vocab.InsertLoaderField(ctx, hub.LoaderField{
		Name:     "server_only",
		Type:     hub.FieldBoolean,
		Optional: true,
	}))
	require.NoError(t, vocab.InsertLinkPlatform(ctx, hub.LinkPlatform{Name: "github"}))
	require.NoError(t, vocab.InsertLinkPlatform(ctx, hub.LinkPlatform{Name: "kofi", Donation: true}))
}

var userCounter int

func newUser(ctx context.Context, t *testing.T, db hub.DB, username string) *hub.User {
	user, err := db.Users().Insert(ctx, &hub.User{Username: username})
	require.NoError(t, err)
	return user
}

func newModerator(ctx context.Context, t *testing.T, db hub.DB, username string) *hub.User {
	user, err := db.Users().Insert(ctx, &hub.User{Username: username, SiteRole: hub.RoleModerator})
	require.NoError(t, err)
	return user
}

func asPrincipal(user *hub.User) *hub.Principal {
	return &hub.Principal{User: user, Scopes: hubauth.AllScopes}
}

func uniqueSlug(prefix string) string {
	userCounter++
	return fmt.Sprintf("%s-%d", prefix, userCounter)
}

// createProject makes an approved project owned by the user.
func createProject(ctx context.Context, t *testing.T, env *testEnv, owner *hub.User, slug string) *hub.Project {
	project, err := env.Projects.Create(ctx, asPrincipal(owner), hub.ProjectCreate{
		Slug:       slug,
		Name:       slug,
		Summary:    "a test project",
		Categories: []string{"technology"},
	})
	require.NoError(t, err)
	return project
}

func approveProject(ctx context.Context, t *testing.T, env *testEnv, moderator *hub.User, projectID ident.ID) {
	status := hub.StatusApproved
	err := env.Projects.Edit(ctx, asPrincipal(moderator), projectID, hub.ProjectUpdate{Status: &status})
	require.NoError(t, err)
}

// fakeBlobs is an in-memory hub.BlobStore.
type fakeBlobs struct {
	mu      sync.Mutex
	uploads map[string][]byte
	deleted []string
}

func (f *fakeBlobs) Upload(ctx context.Context, contentType, path string, data []byte, publicity hub.Publicity) (*hub.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[path] = data
	url := "https://cdn.test/" + path
	return &hub.Upload{URL: url, RawURL: url}, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, path)
	f.deleted = append(f.deleted, path)
	return nil
}

func (f *fakeBlobs) stored(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.uploads[path]
	return ok
}

// fakeIndexer is an in-memory hub.Indexer.
type fakeIndexer struct {
	mu      sync.Mutex
	indexed map[ident.ID]int
	removed []ident.ID
	fail    bool
}

func (f *fakeIndexer) Index(ctx context.Context, aggregate *hub.ProjectAggregate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("index unavailable")
	}
	f.indexed[aggregate.ID]++
	return nil
}

func (f *fakeIndexer) Remove(ctx context.Context, versionIDs []ident.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("index unavailable")
	}
	f.removed = append(f.removed, versionIDs...)
	return nil
}

func (f *fakeIndexer) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeIndexer) indexCount(id ident.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indexed[id]
}

func (f *fakeIndexer) removedIDs() []ident.ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ident.ID(nil), f.removed...)
}
