// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"modhost.io/modhost/hub"
	"modhost.io/modhost/hub/hubdb/hubdbtest"
	"modhost.io/modhost/hub/ident"
	"modhost.io/modhost/private/testcontext"
)

func baseVersion(project *hub.Project, number string, data string) hub.VersionCreate {
	return hub.VersionCreate{
		ProjectID: project.ID,
		Number:    number,
		Name:      number,
		Type:      hub.Release,
		Status:    hub.VersionListed,
		Loaders:   []string{"fabric"},
		Fields: map[string]json.RawMessage{
			"game_versions": json.RawMessage(`["1-21"]`),
		},
		Files: []hub.FileUpload{{
			Filename:    number + ".jar",
			ContentType: "application/java-archive",
			Data:        []byte(data),
			Primary:     true,
		}},
	}
}

func TestVersionCreate(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		env := newEnv(ctx, t, db)

		owner := newUser(ctx, t, db, "ver-owner")
		outsider := newUser(ctx, t, db, "ver-outsider")
		project := createProject(ctx, t, env, owner, uniqueSlug("ver-project"))

		t.Run("Create", func(t *testing.T) {
			version, err := env.Versions.Create(ctx, asPrincipal(owner),
				baseVersion(project, "1-0-0", "artifact one"))
			require.NoError(t, err)
			require.Len(t, version.Files, 1)
			require.NotNil(t, version.PrimaryFile())
			require.Equal(t, owner.ID, version.AuthorID)
			require.Contains(t, version.Files[0].Hashes, hub.HashSHA1)
			require.Contains(t, version.Files[0].Hashes, hub.HashSHA512)
			require.True(t, env.Blobs.stored("data/versions/"+version.ID.String()+"/1-0-0.jar"))
		})

		t.Run("OutsiderRejected", func(t *testing.T) {
			_, err := env.Versions.Create(ctx, asPrincipal(outsider),
				baseVersion(project, "1-0-1", "artifact outsider"))
			require.True(t, hub.ErrPermission.Has(err))
		})

		t.Run("DuplicateNumberIgnoringCase", func(t *testing.T) {
			_, err := env.Versions.Create(ctx, asPrincipal(owner),
				baseVersion(project, "1-0-0a", "artifact a"))
			require.NoError(t, err)
			_, err = env.Versions.Create(ctx, asPrincipal(owner),
				baseVersion(project, "1-0-0A", "artifact b"))
			require.True(t, hub.ErrInvalidInput.Has(err))
		})

		t.Run("DuplicateFileHashRejected", func(t *testing.T) {
			_, err := env.Versions.Create(ctx, asPrincipal(owner),
				baseVersion(project, "1-0-2", "artifact one"))
			require.True(t, hub.ErrInvalidInput.Has(err))
		})

		t.Run("ExactlyOnePrimary", func(t *testing.T) {
			req := baseVersion(project, "1-0-3", "artifact three")
			req.Files = append(req.Files, hub.FileUpload{
				Filename: "extra.jar", Data: []byte("extra bytes"), Primary: true,
			})
			_, err := env.Versions.Create(ctx, asPrincipal(owner), req)
			require.True(t, hub.ErrInvalidInput.Has(err))
		})

		t.Run("UnknownLoaderRejected", func(t *testing.T) {
			req := baseVersion(project, "1-0-4", "artifact four")
			req.Loaders = []string{"quilt"}
			_, err := env.Versions.Create(ctx, asPrincipal(owner), req)
			require.True(t, hub.ErrInvalidInput.Has(err))
		})

		t.Run("FieldsValidatedAgainstVocabulary", func(t *testing.T) {
			req := baseVersion(project, "1-0-5", "artifact five")
			req.Fields = map[string]json.RawMessage{
				"game_versions": json.RawMessage(`["9-99"]`),
			}
			_, err := env.Versions.Create(ctx, asPrincipal(owner), req)
			require.True(t, hub.ErrInvalidInput.Has(err))

			// required field missing
			req = baseVersion(project, "1-0-6", "artifact six")
			req.Fields = map[string]json.RawMessage{}
			_, err = env.Versions.Create(ctx, asPrincipal(owner), req)
			require.True(t, hub.ErrInvalidInput.Has(err))
		})

		t.Run("ScheduledNeedsFutureTime", func(t *testing.T) {
			req := baseVersion(project, "2-0-0", "artifact scheduled")
			req.Status = hub.VersionScheduled
			_, err := env.Versions.Create(ctx, asPrincipal(owner), req)
			require.True(t, hub.ErrInvalidInput.Has(err))

			past := time.Now().Add(-time.Hour)
			req.PublishAt = &past
			_, err = env.Versions.Create(ctx, asPrincipal(owner), req)
			require.True(t, hub.ErrInvalidInput.Has(err))

			future := time.Now().Add(time.Hour)
			req.PublishAt = &future
			_, err = env.Versions.Create(ctx, asPrincipal(owner), req)
			require.NoError(t, err)
		})
	})
}

func TestVersionDependencies(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		env := newEnv(ctx, t, db)

		owner := newUser(ctx, t, db, "dep-owner")
		project := createProject(ctx, t, env, owner, uniqueSlug("dep-project"))
		library := createProject(ctx, t, env, owner, uniqueSlug("dep-library"))

		libVersion, err := env.Versions.Create(ctx, asPrincipal(owner),
			baseVersion(library, "1-0-0", "library artifact"))
		require.NoError(t, err)

		t.Run("VersionRefResolvesProject", func(t *testing.T) {
			req := baseVersion(project, "1-0-0", "consumer artifact")
			req.Dependencies = []hub.Dependency{{
				VersionID: libVersion.ID, Kind: hub.DepRequired,
			}}
			version, err := env.Versions.Create(ctx, asPrincipal(owner), req)
			require.NoError(t, err)
			require.Equal(t, library.ID, version.Dependencies[0].ProjectID)
		})

		t.Run("MismatchedRefsRejected", func(t *testing.T) {
			req := baseVersion(project, "1-1-0", "consumer artifact two")
			req.Dependencies = []hub.Dependency{{
				ProjectID: project.ID, VersionID: libVersion.ID, Kind: hub.DepRequired,
			}}
			_, err := env.Versions.Create(ctx, asPrincipal(owner), req)
			require.True(t, hub.ErrInvalidInput.Has(err))
		})

		t.Run("SelfDependencyRejected", func(t *testing.T) {
			req := baseVersion(project, "1-2-0", "consumer artifact three")
			req.Dependencies = []hub.Dependency{{
				ProjectID: project.ID, Kind: hub.DepRequired,
			}}
			_, err := env.Versions.Create(ctx, asPrincipal(owner), req)
			require.True(t, hub.ErrInvalidInput.Has(err))
		})
	})
}

func TestVersionVisibilityAndEdit(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		env := newEnv(ctx, t, db)

		owner := newUser(ctx, t, db, "vv-owner")
		outsider := newUser(ctx, t, db, "vv-outsider")
		moderator := newModerator(ctx, t, db, "vv-moderator")
		project := createProject(ctx, t, env, owner, uniqueSlug("vv-project"))
		approveProject(ctx, t, env, moderator, project.ID)

		listed, err := env.Versions.Create(ctx, asPrincipal(owner),
			baseVersion(project, "1-0-0", "vv listed"))
		require.NoError(t, err)

		draftReq := baseVersion(project, "1-1-0", "vv draft")
		draftReq.Status = hub.VersionDraft
		draft, err := env.Versions.Create(ctx, asPrincipal(owner), draftReq)
		require.NoError(t, err)

		t.Run("DraftHiddenFromOutsiders", func(t *testing.T) {
			_, err := env.Versions.Get(ctx, asPrincipal(outsider), draft.ID)
			require.True(t, hub.ErrNotFound.Has(err))
			_, err = env.Versions.Get(ctx, asPrincipal(owner), draft.ID)
			require.NoError(t, err)
			_, err = env.Versions.Get(ctx, nil, listed.ID)
			require.NoError(t, err)
		})

		t.Run("ListFiltersByStatus", func(t *testing.T) {
			versions, err := env.Versions.List(ctx, nil, project.ID)
			require.NoError(t, err)
			require.Len(t, versions, 1)

			versions, err = env.Versions.List(ctx, asPrincipal(owner), project.ID)
			require.NoError(t, err)
			require.Len(t, versions, 2)
		})

		t.Run("DownloadsRewriteIsModeratorOnly", func(t *testing.T) {
			downloads := int64(12345)
			err := env.Versions.Edit(ctx, asPrincipal(owner), listed.ID,
				hub.VersionUpdate{Downloads: &downloads})
			require.True(t, hub.ErrPermission.Has(err))

			err = env.Versions.Edit(ctx, asPrincipal(moderator), listed.ID,
				hub.VersionUpdate{Downloads: &downloads})
			require.NoError(t, err)

			got, err := db.Versions().Get(ctx, listed.ID)
			require.NoError(t, err)
			require.Equal(t, downloads, got.Downloads)
		})

		t.Run("EditChangelog", func(t *testing.T) {
			changelog := "fixed all the bugs"
			err := env.Versions.Edit(ctx, asPrincipal(owner), listed.ID,
				hub.VersionUpdate{Changelog: &changelog})
			require.NoError(t, err)

			got, err := db.Versions().Get(ctx, listed.ID)
			require.NoError(t, err)
			require.Equal(t, changelog, got.Changelog)
		})
	})
}

func TestVersionScheduledPublication(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		env := newEnv(ctx, t, db)

		owner := newUser(ctx, t, db, "sched-owner")
		moderator := newModerator(ctx, t, db, "sched-moderator")
		project := createProject(ctx, t, env, owner, uniqueSlug("sched-project"))
		approveProject(ctx, t, env, moderator, project.ID)

		past := time.Now().UTC().Add(-time.Hour)
		future := time.Now().UTC().Add(time.Hour)
		elapsed, err := db.Versions().Insert(ctx, &hub.Version{
			ProjectID: project.ID, AuthorID: owner.ID,
			Number: "2-0-0", Name: "elapsed", Type: hub.Release,
			Status: hub.VersionScheduled, PublishAt: &past,
		})
		require.NoError(t, err)
		pending, err := db.Versions().Insert(ctx, &hub.Version{
			ProjectID: project.ID, AuthorID: owner.ID,
			Number: "3-0-0", Name: "pending", Type: hub.Release,
			Status: hub.VersionScheduled, PublishAt: &future,
		})
		require.NoError(t, err)

		t.Run("ElapsedScheduleIsPublic", func(t *testing.T) {
			got, err := env.Versions.Get(ctx, nil, elapsed.ID)
			require.NoError(t, err)
			require.Equal(t, elapsed.ID, got.ID)
		})

		t.Run("PendingScheduleStaysHidden", func(t *testing.T) {
			_, err := env.Versions.Get(ctx, nil, pending.ID)
			require.True(t, hub.ErrNotFound.Has(err))
			_, err = env.Versions.Get(ctx, asPrincipal(owner), pending.ID)
			require.NoError(t, err)
		})

		t.Run("ListPromotesElapsedOnly", func(t *testing.T) {
			versions, err := env.Versions.List(ctx, nil, project.ID)
			require.NoError(t, err)
			ids := make([]ident.ID, 0, len(versions))
			for _, version := range versions {
				ids = append(ids, version.ID)
			}
			require.Contains(t, ids, elapsed.ID)
			require.NotContains(t, ids, pending.ID)
		})
	})
}

func TestVersionDeleteAndDownloads(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		env := newEnv(ctx, t, db)

		owner := newUser(ctx, t, db, "vd-owner")
		project := createProject(ctx, t, env, owner, uniqueSlug("vd-project"))

		version, err := env.Versions.Create(ctx, asPrincipal(owner),
			baseVersion(project, "1-0-0", "vd artifact"))
		require.NoError(t, err)

		t.Run("AddDownloadBumpsBothCounters", func(t *testing.T) {
			require.NoError(t, env.Versions.AddDownload(ctx, version.ID))
			require.NoError(t, env.Versions.AddDownload(ctx, version.ID))

			gotVersion, err := db.Versions().Get(ctx, version.ID)
			require.NoError(t, err)
			require.Equal(t, int64(2), gotVersion.Downloads)

			gotProject, err := db.Projects().Get(ctx, project.ID)
			require.NoError(t, err)
			require.Equal(t, int64(2), gotProject.Downloads)
		})

		t.Run("DeleteRemovesFilesAndIndexEntry", func(t *testing.T) {
			path := "data/versions/" + version.ID.String() + "/1-0-0.jar"
			require.True(t, env.Blobs.stored(path))

			require.NoError(t, env.Versions.Delete(ctx, asPrincipal(owner), version.ID))

			_, err := db.Versions().Get(ctx, version.ID)
			require.True(t, hub.ErrNotFound.Has(err))
			require.False(t, env.Blobs.stored(path))
			require.Contains(t, env.Indexer.removedIDs(), version.ID)

			// the freed digest may be uploaded again
			_, err = env.Versions.Create(ctx, asPrincipal(owner),
				baseVersion(project, "1-0-1", "vd artifact"))
			require.NoError(t, err)
		})
	})
}
