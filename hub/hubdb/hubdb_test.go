// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hubdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"modhost.io/modhost/hub"
	"modhost.io/modhost/hub/hubauth"
	"modhost.io/modhost/hub/hubdb/hubdbtest"
	"modhost.io/modhost/hub/ident"
	"modhost.io/modhost/private/testcontext"
)

func TestIDAllocator(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		kinds := []ident.Kind{
			ident.KindUser, ident.KindTeam, ident.KindProject,
			ident.KindVersion, ident.KindOrganization, ident.KindGalleryItem,
		}
		for _, kind := range kinds {
			first, err := db.IDs().Allocate(ctx, kind)
			require.NoError(t, err)
			require.Equal(t, kind, first.Kind())

			second, err := db.IDs().Allocate(ctx, kind)
			require.NoError(t, err)
			require.Equal(t, kind, second.Kind())
			require.Greater(t, second.Seq(), first.Seq())
		}

		_, err := db.IDs().Allocate(ctx, ident.Kind(0))
		require.Error(t, err)
	})
}

func TestUsersStore(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		users := db.Users()

		alice, err := users.Insert(ctx, &hub.User{Username: "Alice", Email: "alice@example.test"})
		require.NoError(t, err)
		require.Equal(t, ident.KindUser, alice.ID.Kind())
		require.Equal(t, hub.RoleDeveloper, alice.SiteRole)
		require.False(t, alice.CreatedAt.IsZero())

		bob, err := users.Insert(ctx, &hub.User{Username: "bob"})
		require.NoError(t, err)

		t.Run("UsernameUniqueIgnoringCase", func(t *testing.T) {
			_, err := users.Insert(ctx, &hub.User{Username: "ALICE"})
			require.True(t, hub.ErrConflict.Has(err))
		})

		t.Run("EmailUniqueIgnoringCase", func(t *testing.T) {
			_, err := users.Insert(ctx, &hub.User{
				Username: "alice2", Email: "ALICE@example.test",
			})
			require.True(t, hub.ErrConflict.Has(err))

			// users without an email do not collide with each other
			_, err = users.Insert(ctx, &hub.User{Username: "carol"})
			require.NoError(t, err)
		})

		t.Run("GetByUsernameIgnoresCase", func(t *testing.T) {
			got, err := users.GetByUsername(ctx, "aLiCe")
			require.NoError(t, err)
			require.Equal(t, alice.ID, got.ID)

			_, err = users.GetByUsername(ctx, "nobody")
			require.True(t, hub.ErrNotFound.Has(err))
		})

		t.Run("GetManyPreservesOrderSkipsMissing", func(t *testing.T) {
			missing, err := ident.New(ident.KindUser, 1<<40)
			require.NoError(t, err)

			got, err := users.GetMany(ctx, []ident.ID{bob.ID, missing, alice.ID})
			require.NoError(t, err)
			require.Len(t, got, 2)
			require.Equal(t, bob.ID, got[0].ID)
			require.Equal(t, alice.ID, got[1].ID)
		})

		t.Run("Update", func(t *testing.T) {
			alice.Bio = "makes mods"
			require.NoError(t, users.Update(ctx, alice))

			got, err := users.Get(ctx, alice.ID)
			require.NoError(t, err)
			require.Equal(t, "makes mods", got.Bio)

			ghost := *alice
			ghost.ID, err = ident.New(ident.KindUser, 1<<41)
			require.NoError(t, err)
			require.True(t, hub.ErrNotFound.Has(users.Update(ctx, &ghost)))
		})

		t.Run("RetireAnonymizes", func(t *testing.T) {
			require.NoError(t, users.Retire(ctx, bob.ID))

			got, err := users.Get(ctx, bob.ID)
			require.NoError(t, err)
			require.Equal(t, "ghost-"+ident.Encode(bob.ID), got.Username)
			require.Empty(t, got.Email)
			require.Empty(t, got.Bio)

			// the freed username can be registered again
			_, err = users.Insert(ctx, &hub.User{Username: "bob"})
			require.NoError(t, err)
		})
	})
}

func TestTeamsStore(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		team, err := db.Teams().Create(ctx)
		require.NoError(t, err)
		require.Equal(t, ident.KindTeam, team.ID.Kind())

		user, err := db.Users().Insert(ctx, &hub.User{Username: "teamstore-user"})
		require.NoError(t, err)

		t.Run("AssociationEmpty", func(t *testing.T) {
			assoc, err := db.Teams().Association(ctx, team.ID)
			require.NoError(t, err)
			require.False(t, assoc.IsProject())
			require.False(t, assoc.IsOrganization())
		})

		t.Run("AssociationProject", func(t *testing.T) {
			project, err := db.Projects().Insert(ctx, &hub.Project{
				TeamID: team.ID, Slug: "teamstore-project", Name: "p",
				Status: hub.StatusDraft, MonetizationStatus: hub.Monetized,
				PublishedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
			})
			require.NoError(t, err)

			assoc, err := db.Teams().Association(ctx, team.ID)
			require.NoError(t, err)
			require.Equal(t, project.ID, assoc.ProjectID)
		})

		t.Run("AssociationOrganization", func(t *testing.T) {
			orgTeam, err := db.Teams().Create(ctx)
			require.NoError(t, err)
			org, err := db.Organizations().Insert(ctx, &hub.Organization{
				TeamID: orgTeam.ID, Slug: "teamstore-org", Name: "o",
			})
			require.NoError(t, err)

			assoc, err := db.Teams().Association(ctx, orgTeam.ID)
			require.NoError(t, err)
			require.Equal(t, org.ID, assoc.OrganizationID)
		})

		t.Run("DeleteRemovesMembers", func(t *testing.T) {
			doomed, err := db.Teams().Create(ctx)
			require.NoError(t, err)
			require.NoError(t, db.TeamMembers().Insert(ctx, &hub.TeamMember{
				TeamID: doomed.ID, UserID: user.ID,
				PayoutsSplit: decimal.Zero,
			}))

			require.NoError(t, db.Teams().Delete(ctx, doomed.ID))
			_, err = db.Teams().Get(ctx, doomed.ID)
			require.True(t, hub.ErrNotFound.Has(err))

			member, err := db.TeamMembers().Find(ctx, doomed.ID, user.ID)
			require.NoError(t, err)
			require.Nil(t, member)
		})
	})
}

func TestTeamMembersStore(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		team, err := db.Teams().Create(ctx)
		require.NoError(t, err)
		first, err := db.Users().Insert(ctx, &hub.User{Username: "members-first"})
		require.NoError(t, err)
		second, err := db.Users().Insert(ctx, &hub.User{Username: "members-second"})
		require.NoError(t, err)

		split := decimal.NewFromInt(1250)
		require.NoError(t, db.TeamMembers().Insert(ctx, &hub.TeamMember{
			TeamID: team.ID, UserID: first.ID,
			Role: hub.RoleNameOwner, IsOwner: true, Accepted: true,
			Permissions: hub.AllProjectPermissions, PayoutsSplit: split,
		}))

		t.Run("DuplicateEdgeRejected", func(t *testing.T) {
			err := db.TeamMembers().Insert(ctx, &hub.TeamMember{
				TeamID: team.ID, UserID: first.ID, PayoutsSplit: decimal.Zero,
			})
			require.True(t, hub.ErrConflict.Has(err))
		})

		t.Run("SingleOwnerPerTeam", func(t *testing.T) {
			err := db.TeamMembers().Insert(ctx, &hub.TeamMember{
				TeamID: team.ID, UserID: second.ID, IsOwner: true,
				PayoutsSplit: decimal.Zero,
			})
			require.Error(t, err)

			// without the owner flag the row goes in fine
			require.NoError(t, db.TeamMembers().Insert(ctx, &hub.TeamMember{
				TeamID: team.ID, UserID: second.ID,
				PayoutsSplit: decimal.Zero, Ordering: 1,
			}))
		})

		t.Run("FindAbsentIsNil", func(t *testing.T) {
			stranger, err := db.Users().Insert(ctx, &hub.User{Username: "members-stranger"})
			require.NoError(t, err)
			member, err := db.TeamMembers().Find(ctx, team.ID, stranger.ID)
			require.NoError(t, err)
			require.Nil(t, member)
		})

		t.Run("PayoutsSplitSurvivesRoundTrip", func(t *testing.T) {
			member, err := db.TeamMembers().Find(ctx, team.ID, first.ID)
			require.NoError(t, err)
			require.True(t, split.Equal(member.PayoutsSplit))
		})

		t.Run("ListOrdering", func(t *testing.T) {
			members, err := db.TeamMembers().List(ctx, team.ID)
			require.NoError(t, err)
			require.Len(t, members, 2)
			require.Equal(t, first.ID, members[0].UserID)
			require.Equal(t, second.ID, members[1].UserID)
		})

		t.Run("ListByUser", func(t *testing.T) {
			rows, err := db.TeamMembers().ListByUser(ctx, first.ID)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			require.Equal(t, team.ID, rows[0].TeamID)
		})

		t.Run("UpdateDeleteMissingRow", func(t *testing.T) {
			stranger, err := db.Users().Insert(ctx, &hub.User{Username: "members-ghost"})
			require.NoError(t, err)
			err = db.TeamMembers().Update(ctx, &hub.TeamMember{
				TeamID: team.ID, UserID: stranger.ID, PayoutsSplit: decimal.Zero,
			})
			require.True(t, hub.ErrNotFound.Has(err))
			err = db.TeamMembers().Delete(ctx, team.ID, stranger.ID)
			require.True(t, hub.ErrNotFound.Has(err))
		})

		t.Run("OrganizationPermissionsNullable", func(t *testing.T) {
			member, err := db.TeamMembers().Find(ctx, team.ID, second.ID)
			require.NoError(t, err)
			require.Nil(t, member.OrganizationPermissions)

			orgPerms := hub.OrgPermEditDetails
			member.OrganizationPermissions = &orgPerms
			require.NoError(t, db.TeamMembers().Update(ctx, member))

			member, err = db.TeamMembers().Find(ctx, team.ID, second.ID)
			require.NoError(t, err)
			require.NotNil(t, member.OrganizationPermissions)
			require.Equal(t, orgPerms, *member.OrganizationPermissions)
		})
	})
}

func newStoreProject(ctx *testcontext.Context, t *testing.T, db hub.DB, slug string) *hub.Project {
	team, err := db.Teams().Create(ctx)
	require.NoError(t, err)
	project, err := db.Projects().Insert(ctx, &hub.Project{
		TeamID: team.ID, Slug: slug, Name: slug, Summary: "store test",
		Status: hub.StatusDraft, MonetizationStatus: hub.Monetized,
		Categories:  []string{"technology"},
		Links:       map[string]string{"github": "https://github.com/example"},
		PublishedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return project
}

func TestProjectsStore(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		project := newStoreProject(ctx, t, db, "store-project")

		t.Run("SlugUniqueIgnoringCase", func(t *testing.T) {
			team, err := db.Teams().Create(ctx)
			require.NoError(t, err)
			_, err = db.Projects().Insert(ctx, &hub.Project{
				TeamID: team.ID, Slug: "STORE-PROJECT", Name: "dup",
				Status: hub.StatusDraft, MonetizationStatus: hub.Monetized,
				PublishedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
			})
			require.True(t, hub.ErrConflict.Has(err))
		})

		t.Run("SatelliteRowsRoundTrip", func(t *testing.T) {
			got, err := db.Projects().GetBySlug(ctx, "STORE-project")
			require.NoError(t, err)
			require.Equal(t, project.ID, got.ID)
			require.Equal(t, []string{"technology"}, got.Categories)
			require.Equal(t, "https://github.com/example", got.Links["github"])
		})

		t.Run("GetByTeam", func(t *testing.T) {
			got, err := db.Projects().GetByTeam(ctx, project.TeamID)
			require.NoError(t, err)
			require.Equal(t, project.ID, got.ID)
		})

		t.Run("OrganizationReference", func(t *testing.T) {
			orgTeam, err := db.Teams().Create(ctx)
			require.NoError(t, err)
			org, err := db.Organizations().Insert(ctx, &hub.Organization{
				TeamID: orgTeam.ID, Slug: "store-org", Name: "o",
			})
			require.NoError(t, err)

			require.NoError(t, db.Projects().SetOrganization(ctx, project.ID, org.ID))
			listed, err := db.Projects().ListByOrganization(ctx, org.ID)
			require.NoError(t, err)
			require.Len(t, listed, 1)
			require.Equal(t, project.ID, listed[0].ID)

			require.NoError(t, db.Projects().SetOrganization(ctx, project.ID, 0))
			listed, err = db.Projects().ListByOrganization(ctx, org.ID)
			require.NoError(t, err)
			require.Empty(t, listed)
		})

		t.Run("AddDownloads", func(t *testing.T) {
			require.NoError(t, db.Projects().AddDownloads(ctx, project.ID, 7))
			got, err := db.Projects().Get(ctx, project.ID)
			require.NoError(t, err)
			require.Equal(t, int64(7), got.Downloads)
		})

		t.Run("GalleryRoundTrip", func(t *testing.T) {
			item, err := db.Projects().AddGalleryItem(ctx, &hub.GalleryItem{
				ProjectID: project.ID, ImageURL: "https://cdn.test/a.png",
				Name: "first", Featured: true,
			})
			require.NoError(t, err)
			require.Equal(t, ident.KindGalleryItem, item.ID.Kind())

			got, err := db.Projects().Get(ctx, project.ID)
			require.NoError(t, err)
			require.Len(t, got.Gallery, 1)

			item.Name = "renamed"
			require.NoError(t, db.Projects().UpdateGalleryItem(ctx, item))
			got, err = db.Projects().Get(ctx, project.ID)
			require.NoError(t, err)
			require.Equal(t, "renamed", got.Gallery[0].Name)

			require.NoError(t, db.Projects().DeleteGalleryItem(ctx, project.ID, item.ID))
			got, err = db.Projects().Get(ctx, project.ID)
			require.NoError(t, err)
			require.Empty(t, got.Gallery)
		})

		t.Run("GetManyPreservesOrder", func(t *testing.T) {
			other := newStoreProject(ctx, t, db, "store-project-b")
			got, err := db.Projects().GetMany(ctx, []ident.ID{other.ID, project.ID})
			require.NoError(t, err)
			require.Len(t, got, 2)
			require.Equal(t, other.ID, got[0].ID)
			require.Equal(t, project.ID, got[1].ID)
		})

		t.Run("LockMissing", func(t *testing.T) {
			missing, err := ident.New(ident.KindProject, 1<<40)
			require.NoError(t, err)
			require.True(t, hub.ErrNotFound.Has(db.Projects().Lock(ctx, missing)))
		})
	})
}

func TestVersionsStore(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		author, err := db.Users().Insert(ctx, &hub.User{Username: "verstore-author"})
		require.NoError(t, err)
		project := newStoreProject(ctx, t, db, "verstore-project")

		version, err := db.Versions().Insert(ctx, &hub.Version{
			ProjectID: project.ID, AuthorID: author.ID,
			Number: "1-0-0", Name: "first", Type: hub.Release,
			Status: hub.VersionListed, Loaders: []string{"fabric"},
			Files: []hub.VersionFile{{
				Filename: "mod.jar", URL: "https://cdn.test/mod.jar",
				Size: 4, Primary: true,
				Hashes: map[string]string{hub.HashSHA1: "aa11", hub.HashSHA512: "bb22"},
			}},
		})
		require.NoError(t, err)
		require.Equal(t, ident.KindVersion, version.ID.Kind())

		t.Run("FilesRoundTrip", func(t *testing.T) {
			got, err := db.Versions().Get(ctx, version.ID)
			require.NoError(t, err)
			require.Len(t, got.Files, 1)
			require.Equal(t, "aa11", got.Files[0].Hashes[hub.HashSHA1])
			require.Equal(t, "bb22", got.Files[0].Hashes[hub.HashSHA512])
			require.True(t, got.Files[0].Primary)
		})

		t.Run("NumberUniqueIgnoringCase", func(t *testing.T) {
			_, err := db.Versions().Insert(ctx, &hub.Version{
				ProjectID: project.ID, AuthorID: author.ID,
				Number: "1-0-0", Name: "dup", Type: hub.Release,
				Status: hub.VersionListed,
			})
			require.True(t, hub.ErrInvalidInput.Has(err))

			got, err := db.Versions().GetByNumber(ctx, project.ID, "1-0-0")
			require.NoError(t, err)
			require.Equal(t, version.ID, got.ID)
		})

		t.Run("HashUniqueAcrossVersions", func(t *testing.T) {
			inUse, err := db.Versions().HashInUse(ctx, hub.HashSHA512, "bb22")
			require.NoError(t, err)
			require.True(t, inUse)

			_, err = db.Versions().Insert(ctx, &hub.Version{
				ProjectID: project.ID, AuthorID: author.ID,
				Number: "1-0-1", Name: "clone", Type: hub.Release,
				Status: hub.VersionListed,
				Files: []hub.VersionFile{{
					Filename: "clone.jar", URL: "https://cdn.test/clone.jar",
					Primary: true,
					Hashes:  map[string]string{hub.HashSHA1: "aa11"},
				}},
			})
			require.True(t, hub.ErrInvalidInput.Has(err))

			// the rejected insert leaves no partial row behind
			_, err = db.Versions().GetByNumber(ctx, project.ID, "1-0-1")
			require.True(t, hub.ErrNotFound.Has(err))
		})

		t.Run("ListByProjectOrdering", func(t *testing.T) {
			second, err := db.Versions().Insert(ctx, &hub.Version{
				ProjectID: project.ID, AuthorID: author.ID,
				Number: "2-0-0", Name: "second", Type: hub.Release,
				Status: hub.VersionListed, Ordering: 1,
			})
			require.NoError(t, err)

			listed, err := db.Versions().ListByProject(ctx, project.ID)
			require.NoError(t, err)
			require.Len(t, listed, 2)
			require.Equal(t, version.ID, listed[0].ID)
			require.Equal(t, second.ID, listed[1].ID)
		})

		t.Run("UpdateRewritesSatellites", func(t *testing.T) {
			got, err := db.Versions().Get(ctx, version.ID)
			require.NoError(t, err)
			got.Files = []hub.VersionFile{{
				VersionID: version.ID, Filename: "replacement.jar",
				URL: "https://cdn.test/replacement.jar", Primary: true,
				Hashes: map[string]string{hub.HashSHA1: "cc33"},
			}}
			require.NoError(t, db.Versions().Update(ctx, got))

			got, err = db.Versions().Get(ctx, version.ID)
			require.NoError(t, err)
			require.Len(t, got.Files, 1)
			require.Equal(t, "replacement.jar", got.Files[0].Filename)

			// the old digest is released by the rewrite
			inUse, err := db.Versions().HashInUse(ctx, hub.HashSHA1, "aa11")
			require.NoError(t, err)
			require.False(t, inUse)
		})

		t.Run("DeleteReleasesDigests", func(t *testing.T) {
			require.NoError(t, db.Versions().Delete(ctx, version.ID))
			_, err := db.Versions().Get(ctx, version.ID)
			require.True(t, hub.ErrNotFound.Has(err))

			inUse, err := db.Versions().HashInUse(ctx, hub.HashSHA1, "cc33")
			require.NoError(t, err)
			require.False(t, inUse)
		})
	})
}

func TestCredentialsStore(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		user, err := db.Users().Insert(ctx, &hub.User{Username: "cred-user"})
		require.NoError(t, err)

		digest := hubauth.Digest("mhp_example")
		require.NoError(t, db.Credentials().Insert(ctx, &hub.Credential{
			Digest: digest, UserID: user.ID,
			Kind: hubauth.KindPersonalToken, Scopes: hubauth.ScopeProjectRead,
			Name: "ci", ExpiresAt: time.Now().Add(time.Hour),
		}))

		t.Run("GetByDigest", func(t *testing.T) {
			credential, err := db.Credentials().GetByDigest(ctx, digest)
			require.NoError(t, err)
			require.Equal(t, user.ID, credential.UserID)
			require.Equal(t, hubauth.KindPersonalToken, credential.Kind)
			require.Equal(t, hubauth.ScopeProjectRead, credential.Scopes)
			require.False(t, credential.Revoked)

			_, err = db.Credentials().GetByDigest(ctx, hubauth.Digest("mhp_other"))
			require.True(t, hub.ErrNotFound.Has(err))
		})

		t.Run("Revoke", func(t *testing.T) {
			require.NoError(t, db.Credentials().Revoke(ctx, digest))
			credential, err := db.Credentials().GetByDigest(ctx, digest)
			require.NoError(t, err)
			require.True(t, credential.Revoked)

			err = db.Credentials().Revoke(ctx, hubauth.Digest("mhp_other"))
			require.True(t, hub.ErrNotFound.Has(err))
		})

		t.Run("DeleteExpiredBefore", func(t *testing.T) {
			stale := hubauth.Digest("mhp_stale")
			require.NoError(t, db.Credentials().Insert(ctx, &hub.Credential{
				Digest: stale, UserID: user.ID,
				Kind:      hubauth.KindPersonalToken,
				ExpiresAt: time.Now().Add(-time.Hour),
			}))

			require.NoError(t, db.Credentials().DeleteExpiredBefore(ctx, time.Now()))

			_, err := db.Credentials().GetByDigest(ctx, stale)
			require.True(t, hub.ErrNotFound.Has(err))
			// the revoked but unexpired row stays
			_, err = db.Credentials().GetByDigest(ctx, digest)
			require.NoError(t, err)
		})
	})
}

func TestVocabularyStore(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		vocab := db.Vocabulary()

		require.NoError(t, vocab.InsertCategory(ctx, hub.Category{Name: "technology"}))
		require.NoError(t, vocab.InsertCategory(ctx, hub.Category{Name: "adventure"}))

		t.Run("NamesUnique", func(t *testing.T) {
			err := vocab.InsertCategory(ctx, hub.Category{Name: "technology"})
			require.True(t, hub.ErrConflict.Has(err))
		})

		t.Run("OrderedByName", func(t *testing.T) {
			categories, err := vocab.Categories(ctx)
			require.NoError(t, err)
			require.Len(t, categories, 2)
			require.Equal(t, "adventure", categories[0].Name)
			require.Equal(t, "technology", categories[1].Name)
		})

		t.Run("LoaderFieldEnumRoundTrip", func(t *testing.T) {
			require.NoError(t, vocab.InsertLoaderField(ctx, hub.LoaderField{
				Name: "game_versions", Type: hub.FieldArrayEnum,
				EnumValues: []string{"1-20", "1-21"},
			}))
			fields, err := vocab.LoaderFields(ctx)
			require.NoError(t, err)
			require.Len(t, fields, 1)
			require.Equal(t, []string{"1-20", "1-21"}, fields[0].EnumValues)
		})
	})
}

func TestWithTxRollback(t *testing.T) {
	hubdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db hub.DB) {
		abort := hub.ErrInvalidInput.New("abort")
		err := db.WithTx(ctx, func(ctx context.Context, tx hub.Tx) error {
			if _, err := tx.Users().Insert(ctx, &hub.User{Username: "tx-doomed"}); err != nil {
				return err
			}
			return abort
		})
		require.True(t, hub.ErrInvalidInput.Has(err))

		_, err = db.Users().GetByUsername(ctx, "tx-doomed")
		require.True(t, hub.ErrNotFound.Has(err))

		err = db.WithTx(ctx, func(ctx context.Context, tx hub.Tx) error {
			_, err := tx.Users().Insert(ctx, &hub.User{Username: "tx-kept"})
			return err
		})
		require.NoError(t, err)

		_, err = db.Users().GetByUsername(ctx, "tx-kept")
		require.NoError(t, err)
	})
}
