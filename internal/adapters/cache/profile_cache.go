package cache

import (
	"context"
	"fmt"

	"heelbid-auction-service/internal/domain/shared"
	"heelbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

// ProfileCache keeps recently read profiles in memory in front of a ProfileRepository
type ProfileCache struct {
	next  outbound.ProfileRepository
	cache *lru.Cache
}

// NewProfileCache wraps next with an LRU of size entries
func NewProfileCache(next outbound.ProfileRepository, size int) (*ProfileCache, error) {
	if size <= 0 {
		size = 512
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile cache: %w", err)
	}
	return &ProfileCache{next: next, cache: cache}, nil
}

func (c *ProfileCache) GetByID(ctx context.Context, id uuid.UUID) (*shared.Profile, error) {
	if cached, ok := c.cache.Get(id); ok {
		profile := cached.(shared.Profile)
		return &profile, nil
	}

	profile, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, *profile)
	return profile, nil
}

// Upsert skips the write when the cached profile already carries the same names
func (c *ProfileCache) Upsert(ctx context.Context, profile *shared.Profile) error {
	if cached, ok := c.cache.Get(profile.ID); ok && covers(cached.(shared.Profile), profile) {
		return nil
	}

	if err := c.next.Upsert(ctx, profile); err != nil {
		return err
	}

	// the store merges names, so cache what it holds now
	merged, err := c.next.GetByID(ctx, profile.ID)
	if err != nil {
		c.cache.Remove(profile.ID)
		return nil
	}
	c.cache.Add(profile.ID, *merged)
	return nil
}

// covers reports whether every non-empty name in p already matches cached
func covers(cached shared.Profile, p *shared.Profile) bool {
	if p.Username != "" && p.Username != cached.Username {
		return false
	}
	if p.DisplayName != "" && p.DisplayName != cached.DisplayName {
		return false
	}
	return true
}
