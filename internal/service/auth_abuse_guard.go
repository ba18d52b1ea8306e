package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// AuthAbuseGuard applies an escalating cooldown to repeated login failures
// for one (identity, origin) pair. It is advisory: storage failures fail
// open so an unreachable redis never locks every operator out.
type AuthAbuseGuard interface {
	Check(ctx context.Context, identity, ip string) (time.Duration, error)
	RegisterFailure(ctx context.Context, identity, ip string) (time.Duration, error)
	Reset(ctx context.Context, identity, ip string) error
}

type AuthAbusePolicy struct {
	FreeAttempts int
	BaseDelay    time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	ResetWindow  time.Duration
}

func DefaultAuthAbusePolicy() AuthAbusePolicy {
	return AuthAbusePolicy{
		FreeAttempts: 3,
		BaseDelay:    2 * time.Second,
		Multiplier:   2,
		MaxDelay:     5 * time.Minute,
		ResetWindow:  15 * time.Minute,
	}
}

type RedisAuthAbuseGuard struct {
	client redis.UniversalClient
	prefix string
	policy AuthAbusePolicy
}

func NewRedisAuthAbuseGuard(client redis.UniversalClient, prefix string, policy AuthAbusePolicy) *RedisAuthAbuseGuard {
	if prefix == "" {
		prefix = "auth_abuse"
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 1
	}
	return &RedisAuthAbuseGuard{client: client, prefix: prefix, policy: policy}
}

func (g *RedisAuthAbuseGuard) Check(ctx context.Context, identity, ip string) (time.Duration, error) {
	raw, err := g.client.HGet(ctx, g.stateKey(identity, ip), "cooldown_until_ms").Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	until, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed cooldown value: %w", err)
	}
	remaining := time.Until(time.UnixMilli(until))
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func (g *RedisAuthAbuseGuard) RegisterFailure(ctx context.Context, identity, ip string) (time.Duration, error) {
	key := g.stateKey(identity, ip)
	failures, err := g.client.HIncrBy(ctx, key, "failures", 1).Result()
	if err != nil {
		return 0, err
	}
	if err := g.client.Expire(ctx, key, g.policy.ResetWindow).Err(); err != nil {
		return 0, err
	}
	over := failures - int64(g.policy.FreeAttempts)
	if over <= 0 {
		return 0, nil
	}
	delay := g.policy.BaseDelay
	for i := int64(1); i < over; i++ {
		delay = time.Duration(float64(delay) * g.policy.Multiplier)
		if delay >= g.policy.MaxDelay {
			delay = g.policy.MaxDelay
			break
		}
	}
	if g.policy.MaxDelay > 0 && delay > g.policy.MaxDelay {
		delay = g.policy.MaxDelay
	}
	until := time.Now().Add(delay).UnixMilli()
	if err := g.client.HSet(ctx, key, "cooldown_until_ms", until).Err(); err != nil {
		return 0, err
	}
	return delay, nil
}

func (g *RedisAuthAbuseGuard) Reset(ctx context.Context, identity, ip string) error {
	return g.client.Del(ctx, g.stateKey(identity, ip)).Err()
}

func (g *RedisAuthAbuseGuard) stateKey(identity, ip string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(identity))))
	return fmt.Sprintf("%s:login:%s:%s", g.prefix, hex.EncodeToString(sum[:8]), ip)
}

// NoopAuthAbuseGuard is used when no redis is configured.
type NoopAuthAbuseGuard struct{}

func (NoopAuthAbuseGuard) Check(context.Context, string, string) (time.Duration, error) {
	return 0, nil
}

func (NoopAuthAbuseGuard) RegisterFailure(context.Context, string, string) (time.Duration, error) {
	return 0, nil
}

func (NoopAuthAbuseGuard) Reset(context.Context, string, string) error { return nil }
