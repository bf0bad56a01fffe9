package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/scholarproof/api/model"
	"github.com/scholarproof/api/utils/cache"
)

var (
	// ErrNotAuthenticated means no usable identity was supplied
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrLookupFailed means the role lookup found no row or the query failed
	ErrLookupFailed = errors.New("role lookup failed")
)

// RoleResolver maps an authenticated identity to its stored dashboard role.
// The users table is the source of truth; tokens only carry an advisory
// copy of the role.
type RoleResolver interface {
	Resolve(ctx context.Context, userID uint) (model.Role, error)
}

// RoleService resolves roles with a point lookup against the users table
type RoleService struct {
	db *gorm.DB
}

// NewRoleService creates a new role service
func NewRoleService(db *gorm.DB) *RoleService {
	return &RoleService{db: db}
}

// Resolve looks up the stored role for a user ID
func (s *RoleService) Resolve(ctx context.Context, userID uint) (model.Role, error) {
	if userID == 0 {
		return "", ErrNotAuthenticated
	}

	var user model.User
	err := s.db.WithContext(ctx).Select("role").First(&user, userID).Error
	if err != nil {
		// Missing row and query failure both fail closed
		return "", ErrLookupFailed
	}

	role, ok := model.ParseRole(string(user.Role))
	if !ok {
		return "", ErrLookupFailed
	}
	return role, nil
}

// CachedRoleResolver wraps a RoleResolver with a short-TTL Redis cache so
// guarded navigations do not re-query the store every time. The cache is
// invalidated whenever a role changes (invite redemption, admin edit).
type CachedRoleResolver struct {
	inner RoleResolver
	cache *cache.RedisCache
	ttl   time.Duration
}

// NewCachedRoleResolver creates a caching resolver. A nil cache degrades to
// pass-through resolution.
func NewCachedRoleResolver(inner RoleResolver, redisCache *cache.RedisCache, ttl time.Duration) *CachedRoleResolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedRoleResolver{
		inner: inner,
		cache: redisCache,
		ttl:   ttl,
	}
}

func roleCacheKey(userID uint) string {
	return fmt.Sprintf("role:user:%d", userID)
}

// Resolve returns the cached role if present, otherwise resolves and caches
func (r *CachedRoleResolver) Resolve(ctx context.Context, userID uint) (model.Role, error) {
	if r.cache == nil {
		return r.inner.Resolve(ctx, userID)
	}

	if cached, err := r.cache.Get(ctx, roleCacheKey(userID)); err == nil {
		if role, ok := model.ParseRole(cached); ok {
			return role, nil
		}
	}

	role, err := r.inner.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}

	// Cache failures are not fatal; next navigation re-resolves
	_ = r.cache.Set(ctx, roleCacheKey(userID), string(role), r.ttl)

	return role, nil
}

// Invalidate drops the cached role for a user after a role change
func (r *CachedRoleResolver) Invalidate(ctx context.Context, userID uint) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Delete(ctx, roleCacheKey(userID))
}
