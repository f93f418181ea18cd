package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrTooManyAttempts = errors.New("too many attempts")

// RateLimiter throttles grant-issuing operations per actor. HTTP-level rate
// limiting caps raw request volume; this layer caps the social operations
// (share offers, projections, invites) that notify another user.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redis *redis.Client) *RateLimiter {
	return &RateLimiter{
		redis: redis,
	}
}

func (r *RateLimiter) CheckShareOffer(ctx context.Context, actorID uuid.UUID) error {
	key := fmt.Sprintf("share_offer_attempts:%s", actorID)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}

	if count == 1 {
		r.redis.Expire(ctx, key, 1*time.Hour)
	}

	if count > 30 {
		return ErrTooManyAttempts
	}

	return nil
}

func (r *RateLimiter) CheckProjectionOffer(ctx context.Context, actorID uuid.UUID) error {
	key := fmt.Sprintf("projection_offer_attempts:%s", actorID)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}

	if count == 1 {
		r.redis.Expire(ctx, key, 1*time.Hour)
	}

	if count > 60 {
		return ErrTooManyAttempts
	}

	return nil
}

func (r *RateLimiter) CheckGroupInvite(ctx context.Context, actorID uuid.UUID) error {
	key := fmt.Sprintf("group_invite_attempts:%s", actorID)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}

	if count == 1 {
		r.redis.Expire(ctx, key, 1*time.Hour)
	}

	if count > 20 {
		return ErrTooManyAttempts
	}

	return nil
}

func (r *RateLimiter) ResetAttempts(ctx context.Context, actorID uuid.UUID, operation string) error {
	key := fmt.Sprintf("%s_attempts:%s", operation, actorID)
	return r.redis.Del(ctx, key).Err()
}
