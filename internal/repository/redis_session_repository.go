package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartrestaurant/gateway/internal/models"
)

const sessionKeyPrefix = "session:"

// RedisSessionRepository shares sessions between gateway replicas through Redis.
// Each session is a JSON value whose TTL ends at the session's ExpiresAt.
type RedisSessionRepository struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisSessionRepository wraps an existing client.
func NewRedisSessionRepository(client redis.UniversalClient) *RedisSessionRepository {
	return &RedisSessionRepository{client: client, now: time.Now}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:     []string{opts.Addr},
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}), nil
}

// Create stores the session until it expires
func (r *RedisSessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session == nil || session.TokenHash == "" {
		return fmt.Errorf("create session: token hash is required")
	}
	ttl := session.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("create session: already expired")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(session.TokenHash), payload, ttl).Err(); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash
func (r *RedisSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	payload, err := r.client.Get(ctx, sessionKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session by token: %w", err)
	}

	session := new(models.Session)
	if err := json.Unmarshal(payload, session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.Expired(r.now()) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete removes a session
func (r *RedisSessionRepository) Delete(ctx context.Context, tokenHash string) error {
	if err := r.client.Del(ctx, sessionKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func sessionKey(tokenHash string) string {
	return sessionKeyPrefix + tokenHash
}
