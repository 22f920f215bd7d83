package issuer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mamounbq1/Info-Plat-sub004/internal/model"
)

// RedisIssuer keeps the issuer's claims registry in Redis, one JSON
// value per principal. Single-key commands give the per-principal
// atomicity the synchronizer relies on.
type RedisIssuer struct {
	client *redis.Client
}

func NewRedisIssuer(client *redis.Client) *RedisIssuer {
	return &RedisIssuer{client: client}
}

func claimsKey(principalID string) string {
	return "claims:" + principalID
}

func (i *RedisIssuer) SetClaims(ctx context.Context, principalID string, claims model.Claims) error {
	payload, err := json.Marshal(claims)
	if err != nil {
		return &PermanentError{Err: err}
	}
	if err := i.client.Set(ctx, claimsKey(principalID), payload, 0).Err(); err != nil {
		return fmt.Errorf("set claims for %s: %w", principalID, err)
	}
	return nil
}

func (i *RedisIssuer) ClearClaims(ctx context.Context, principalID string) error {
	removed, err := i.client.Del(ctx, claimsKey(principalID)).Result()
	if err != nil {
		return fmt.Errorf("clear claims for %s: %w", principalID, err)
	}
	if removed == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func (i *RedisIssuer) GetClaims(ctx context.Context, principalID string) (model.Claims, error) {
	value, err := i.client.Get(ctx, claimsKey(principalID)).Result()
	if err == redis.Nil {
		return model.Claims{}, ErrPrincipalNotFound
	}
	if err != nil {
		return model.Claims{}, fmt.Errorf("get claims for %s: %w", principalID, err)
	}
	var claims model.Claims
	if err := json.Unmarshal([]byte(value), &claims); err != nil {
		return model.Claims{}, &PermanentError{Err: err}
	}
	return claims, nil
}
