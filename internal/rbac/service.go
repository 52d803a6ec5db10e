package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	permCacheKeyFmt = "procura:rbac:perms:%d"
	permCacheTTL    = 5 * time.Minute
)

// Service resolves effective permissions for users.
type Service struct {
	pool  *pgxpool.Pool
	cache *redis.Client
}

// NewService constructs the RBAC service. cache may be nil.
func NewService(pool *pgxpool.Pool, cache *redis.Client) *Service {
	return &Service{pool: pool, cache: cache}
}

// EffectivePermissions returns the union of permissions across the user's roles.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	key := fmt.Sprintf(permCacheKeyFmt, userID)
	if s.cache != nil {
		payload, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var perms []string
			if err := json.Unmarshal(payload, &perms); err == nil {
				return perms, nil
			}
		}
	}

	const query = `
		SELECT DISTINCT p.name
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		ORDER BY p.name`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: query permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(perms); err == nil {
			_ = s.cache.Set(ctx, key, payload, permCacheTTL).Err()
		}
	}
	return perms, nil
}

// InvalidateUser drops the cached permission set after role changes.
func (s *Service) InvalidateUser(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, fmt.Sprintf(permCacheKeyFmt, userID)).Err()
}
