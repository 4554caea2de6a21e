package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vpportal/vpportal/shared/config"
	"github.com/vpportal/vpportal/shared/domain"
)

const keyPrefix = "pending:"

// Redis keeps entries as JSON with a key TTL of remaining validity + grace,
// so they survive restarts and are shared between API instances.
type Redis struct {
	db    *redis.Client
	grace time.Duration
	now   func() time.Time
}

var _ Store = (*Redis)(nil)

func NewRedisClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	db := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return db, nil
}

func NewRedis(db *redis.Client, grace time.Duration) *Redis {
	return &Redis{db: db, grace: grace, now: time.Now}
}

func key(email domain.Email) string {
	return keyPrefix + domain.NormalizeEmail(email)
}

func (r *Redis) Put(ctx context.Context, p domain.PendingRegistration) error {
	p.Email = domain.NormalizeEmail(p.Email)

	ttl := p.Expires.Add(r.grace).Sub(r.now())
	if ttl <= 0 {
		return r.Delete(ctx, p.Email)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode pending registration: %w", err)
	}
	if err := r.db.Set(ctx, key(p.Email), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store pending registration: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, email domain.Email) (domain.PendingRegistration, error) {
	val, err := r.db.Get(ctx, key(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PendingRegistration{}, ErrNotFound
	}
	if err != nil {
		return domain.PendingRegistration{}, fmt.Errorf("failed to load pending registration: %w", err)
	}

	var p domain.PendingRegistration
	if err := json.Unmarshal(val, &p); err != nil {
		return domain.PendingRegistration{}, fmt.Errorf("failed to decode pending registration: %w", err)
	}
	return p, nil
}

func (r *Redis) Delete(ctx context.Context, email domain.Email) error {
	if err := r.db.Del(ctx, key(email)).Err(); err != nil {
		return fmt.Errorf("failed to delete pending registration: %w", err)
	}
	return nil
}
