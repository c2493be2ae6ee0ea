// Copyright (C) 2025 Modhost Labs, Inc.
// See LICENSE for copying information.

package hub

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"modhost.io/modhost/hub/cache"
	"modhost.io/modhost/hub/ident"
)

// ProjectAggregate is the denormalized project view returned by read
// endpoints and handed to the search indexer: the project with its team
// members and version summaries. Gallery and links ride on the project.
type ProjectAggregate struct {
	Project
	Members  []TeamMember     `json:"members"`
	Versions []VersionSummary `json:"versions"`
}

// VersionSummary is the slice of a version embedded in project
// aggregates.
type VersionSummary struct {
	ID        ident.ID      `json:"id"`
	Number    string        `json:"version_number"`
	Type      VersionType   `json:"version_type"`
	Status    VersionStatus `json:"status"`
	Loaders   []string      `json:"loaders"`
	PublishAt *time.Time    `json:"publish_at,omitempty"`
}

// Observable reports whether the summarized version may be observed
// without membership at the given time.
func (s *VersionSummary) Observable(now time.Time) bool {
	return observableAt(s.Status, s.PublishAt, now)
}

func loadProjectAggregate(ctx context.Context, stores Stores, project *Project) (*ProjectAggregate, error) {
	members, err := stores.TeamMembers().List(ctx, project.TeamID)
	if err != nil {
		return nil, ErrExternal.Wrap(err)
	}
	versions, err := stores.Versions().ListByProject(ctx, project.ID)
	if err != nil {
		return nil, ErrExternal.Wrap(err)
	}
	summaries := make([]VersionSummary, 0, len(versions))
	for _, version := range versions {
		summaries = append(summaries, VersionSummary{
			ID:        version.ID,
			Number:    version.Number,
			Type:      version.Type,
			Status:    version.Status,
			Loaders:   version.Loaders,
			PublishAt: version.PublishAt,
		})
	}
	return &ProjectAggregate{
		Project:  *project,
		Members:  members,
		Versions: summaries,
	}, nil
}

// cachedProjectAggregates returns the aggregates for the given ids
// through the cache, skipping missing projects and preserving order.
func cachedProjectAggregates(ctx context.Context, c cache.Client, stores Stores, ids []ident.ID) ([]ProjectAggregate, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, ident.Encode(id))
	}

	values, err := c.GetMany(ctx, cache.Projects, keys, func(ctx context.Context, missing []string) (map[string][]byte, error) {
		missingIDs := make([]ident.ID, 0, len(missing))
		for _, key := range missing {
			id, err := ident.Decode(ident.KindProject, key)
			if err != nil {
				return nil, err
			}
			missingIDs = append(missingIDs, id)
		}
		projects, err := stores.Projects().GetMany(ctx, missingIDs)
		if err != nil {
			return nil, ErrExternal.Wrap(err)
		}
		filled := make(map[string][]byte, len(projects))
		for i := range projects {
			aggregate, err := loadProjectAggregate(ctx, stores, &projects[i])
			if err != nil {
				return nil, err
			}
			data, err := json.Marshal(aggregate)
			if err != nil {
				return nil, ErrExternal.Wrap(err)
			}
			filled[ident.Encode(projects[i].ID)] = data
		}
		return filled, nil
	})
	if err != nil {
		return nil, err
	}

	aggregates := make([]ProjectAggregate, 0, len(ids))
	for _, key := range keys {
		raw, ok := values[key]
		if !ok {
			continue
		}
		var aggregate ProjectAggregate
		if err := json.Unmarshal(raw, &aggregate); err != nil {
			return nil, ErrExternal.Wrap(err)
		}
		aggregates = append(aggregates, aggregate)
	}
	return aggregates, nil
}

// cachedProjectIDBySlug resolves a slug to a project id through the
// slug namespace.
func cachedProjectIDBySlug(ctx context.Context, c cache.Client, stores Stores, slug string) (ident.ID, error) {
	key := strings.ToLower(slug)
	values, err := c.GetMany(ctx, cache.ProjectSlugs, []string{key}, func(ctx context.Context, missing []string) (map[string][]byte, error) {
		project, err := stores.Projects().GetBySlug(ctx, key)
		if err != nil {
			if ErrNotFound.Has(err) {
				return map[string][]byte{}, nil
			}
			return nil, ErrExternal.Wrap(err)
		}
		return map[string][]byte{key: []byte(ident.Encode(project.ID))}, nil
	})
	if err != nil {
		return 0, err
	}
	raw, ok := values[key]
	if !ok {
		return 0, ErrNotFound.New("project %q", slug)
	}
	return ident.Decode(ident.KindProject, string(raw))
}

// cachedOrgIDBySlug resolves a slug to an organization id through the
// org slug namespace.
func cachedOrgIDBySlug(ctx context.Context, c cache.Client, stores Stores, slug string) (ident.ID, error) {
	key := strings.ToLower(slug)
	values, err := c.GetMany(ctx, cache.OrgSlugs, []string{key}, func(ctx context.Context, missing []string) (map[string][]byte, error) {
		org, err := stores.Organizations().GetBySlug(ctx, key)
		if err != nil {
			if ErrNotFound.Has(err) {
				return map[string][]byte{}, nil
			}
			return nil, ErrExternal.Wrap(err)
		}
		return map[string][]byte{key: []byte(ident.Encode(org.ID))}, nil
	})
	if err != nil {
		return 0, err
	}
	raw, ok := values[key]
	if !ok {
		return 0, ErrNotFound.New("organization %q", slug)
	}
	return ident.Decode(ident.KindOrganization, string(raw))
}
