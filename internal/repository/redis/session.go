// Package redis stores cart sessions in Redis as JSON with a sliding TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/tgshop/internal/domain"
	apperrors "github.com/utafrali/tgshop/pkg/errors"
)

// KeyPrefix namespaces session keys.
const KeyPrefix = "tgshop:session:"

// SessionRepository implements repository.SessionRepository.
type SessionRepository struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionRepository creates a repository whose sessions expire ttl after
// their last save.
func NewSessionRepository(client *redis.Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{client: client, ttl: ttl, now: time.Now}
}

func key(userID string) string { return KeyPrefix + userID }

// Get loads the session for userID.
func (r *SessionRepository) Get(ctx context.Context, userID string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NotFound("session", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return decode(data)
}

// SaveIfVersion writes s inside WATCH/MULTI so a concurrent writer that got
// there first makes this call fail with a conflict instead of being
// overwritten.
func (r *SessionRepository) SaveIfVersion(ctx context.Context, s *domain.Session, expected int) error {
	k := key(s.UserID)

	var saved domain.Session
	txf := func(tx *redis.Tx) error {
		current := 0
		data, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("redis get session: %w", err)
		default:
			stored, err := decode(data)
			if err != nil {
				return err
			}
			current = stored.Version
		}
		if current != expected {
			return apperrors.Conflict(fmt.Sprintf("session %s is at version %d, expected %d", s.UserID, current, expected))
		}

		now := r.now().UTC()
		saved = *s
		saved.Version = expected + 1
		if saved.CreatedAt.IsZero() {
			saved.CreatedAt = now
		}
		saved.UpdatedAt = now
		saved.ExpiresAt = now.Add(r.ttl)

		payload, err := json.Marshal(saved)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, payload, r.ttl)
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txf, k)
	if errors.Is(err, redis.TxFailedErr) {
		return apperrors.Conflict(fmt.Sprintf("session %s was modified concurrently", s.UserID))
	}
	if err != nil {
		return err
	}

	s.Version = saved.Version
	s.CreatedAt = saved.CreatedAt
	s.UpdatedAt = saved.UpdatedAt
	s.ExpiresAt = saved.ExpiresAt
	return nil
}

// Ping checks the Redis connection.
func (r *SessionRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decode(data []byte) (*domain.Session, error) {
	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if s.Cart.Items == nil {
		s.Cart.Items = []domain.CartLineItem{}
	}
	return &s, nil
}
