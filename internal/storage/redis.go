package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"ingrevia/internal/core"
)

// SessionTTL is the default session TTL
const SessionTTL = 40 * time.Minute

// RedisSessionManager stores sessions as JSON under session:{id}. Reads refresh the TTL.
type RedisSessionManager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionManager connects to redisURL and verifies the connection
func NewRedisSessionManager(ctx context.Context, redisURL string, ttl time.Duration) (*RedisSessionManager, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required for the redis session backend")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &RedisSessionManager{client: client, ttl: ttl}, nil
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// GetSession loads a session and extends its TTL
func (r *RedisSessionManager) GetSession(ctx context.Context, sessionID string) (*core.Session, error) {
	data, err := r.client.GetEx(ctx, sessionKey(sessionID), r.ttl).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get session data: %w", err)
	}

	var session core.Session
	if err := sonic.UnmarshalString(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	if session.Metadata == nil {
		session.Metadata = make(map[string]any)
	}
	return &session, nil
}

// SaveSession stores session data with the configured TTL
func (r *RedisSessionManager) SaveSession(ctx context.Context, session *core.Session) error {
	if err := ValidateSession(session); err != nil {
		return err
	}

	now := time.Now().Unix()
	if session.CreatedAt == 0 {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	data, err := sonic.MarshalString(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(session.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session data: %w", err)
	}
	return nil
}

// DeleteSession removes session from Redis
func (r *RedisSessionManager) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// GetTTL gets remaining TTL for a session
func (r *RedisSessionManager) GetTTL(ctx context.Context, sessionID string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get TTL: %w", err)
	}
	return ttl, nil
}

// Close closes the Redis connection
func (r *RedisSessionManager) Close() error {
	return r.client.Close()
}
