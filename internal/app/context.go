package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gigline/internal/config"
	"gigline/internal/domain"
	"gigline/internal/repo"
)

// ResolveActor loads the caller's identity and role set, creating a plain
// USER row on first contact so a fresh workspace is usable without a
// separate registration step.
func ResolveActor(ctx context.Context, r repo.Repo, actorID string) (domain.RoleContext, error) {
	if actorID == "" {
		actorID = "local-user"
	}
	u, err := r.GetUser(ctx, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		now := time.Now().UTC().Format(time.RFC3339)
		u = domain.User{ID: actorID, Name: actorID, Roles: []string{domain.RoleUser}, CreatedAt: now}
		if err := r.InsertUser(ctx, u); err != nil {
			return domain.RoleContext{}, fmt.Errorf("seed actor: %w", err)
		}
	} else if err != nil {
		return domain.RoleContext{}, err
	}
	return domain.RoleContext{ActorID: u.ID, Roles: u.Roles}, nil
}

// SeedCatalog pushes the configured technology and activity-type catalogs
// into the reference tables. Existing ids keep working; names follow config.
func SeedCatalog(ctx context.Context, r repo.Repo, cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	for id, entry := range cfg.Catalog.Technologies {
		if err := r.UpsertTechnology(ctx, domain.Technology{ID: id, Name: entry.Name}); err != nil {
			return fmt.Errorf("seed technology %s: %w", id, err)
		}
	}
	for id, entry := range cfg.Catalog.Types {
		if err := r.UpsertActivityType(ctx, domain.ActivityType{ID: id, Name: entry.Name}); err != nil {
			return fmt.Errorf("seed activity type %s: %w", id, err)
		}
	}
	return nil
}
