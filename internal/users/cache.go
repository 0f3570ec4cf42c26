package users

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/stackit-qa/stackit/internal/platform/cache"
	"github.com/stackit-qa/stackit/internal/rbac"
)

const cacheKeyPrefix = "stackit:user:"

// CachedRepository is a Redis read-through cache in front of FindByID.
// Concurrent misses for one id share a single load, and every mutation
// evicts the entry. Cache failures fall through to the wrapped repository.
type CachedRepository struct {
	Repository
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedRepository wraps repo.
func NewCachedRepository(repo Repository, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRepository{Repository: repo, client: client, ttl: ttl, logger: logger}
}

// FindByID serves id from Redis, loading it on a miss.
func (c *CachedRepository) FindByID(ctx context.Context, id string) (*User, error) {
	key := cacheKeyPrefix + id
	var cached User
	err := cache.GetJSON(ctx, c.client, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		c.logger.Warn("user cache read", slog.String("user_id", id), slog.Any("error", err))
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		user, err := c.Repository.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := cache.SetJSON(ctx, c.client, key, user, c.ttl); err != nil {
			c.logger.Warn("user cache write", slog.String("user_id", id), slog.Any("error", err))
		}
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	user := *v.(*User)
	return &user, nil
}

// Invalidate evicts id from the cache.
func (c *CachedRepository) Invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, cacheKeyPrefix+id).Err(); err != nil {
		c.logger.Warn("user cache evict", slog.String("user_id", id), slog.Any("error", err))
	}
}

// UpdateRole updates and evicts.
func (c *CachedRepository) UpdateRole(ctx context.Context, id string, role rbac.Role) error {
	return c.evictAfter(ctx, id, c.Repository.UpdateRole(ctx, id, role))
}

// SetBanned updates and evicts.
func (c *CachedRepository) SetBanned(ctx context.Context, id string, banned bool, reason, bannedBy string) error {
	return c.evictAfter(ctx, id, c.Repository.SetBanned(ctx, id, banned, reason, bannedBy))
}

// AddCustomPermission updates and evicts.
func (c *CachedRepository) AddCustomPermission(ctx context.Context, id string, p rbac.Permission) error {
	return c.evictAfter(ctx, id, c.Repository.AddCustomPermission(ctx, id, p))
}

// RemoveCustomPermission updates and evicts.
func (c *CachedRepository) RemoveCustomPermission(ctx context.Context, id string, p rbac.Permission) error {
	return c.evictAfter(ctx, id, c.Repository.RemoveCustomPermission(ctx, id, p))
}

// AddRestrictedPermission updates and evicts.
func (c *CachedRepository) AddRestrictedPermission(ctx context.Context, id string, p rbac.Permission) error {
	return c.evictAfter(ctx, id, c.Repository.AddRestrictedPermission(ctx, id, p))
}

// RemoveRestrictedPermission updates and evicts.
func (c *CachedRepository) RemoveRestrictedPermission(ctx context.Context, id string, p rbac.Permission) error {
	return c.evictAfter(ctx, id, c.Repository.RemoveRestrictedPermission(ctx, id, p))
}

// TouchLastLogin updates and evicts.
func (c *CachedRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return c.evictAfter(ctx, id, c.Repository.TouchLastLogin(ctx, id, at))
}

// evictAfter evicts even when the write failed, since a failed write may
// still have been applied.
func (c *CachedRepository) evictAfter(ctx context.Context, id string, err error) error {
	c.Invalidate(ctx, id)
	return err
}

var _ Repository = (*CachedRepository)(nil)
