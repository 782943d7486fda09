package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCooldown is the minimum gap between two notifications of the same signal type.
const DefaultCooldown = 4 * time.Hour

// CooldownStore tracks when each key last notified.
type CooldownStore interface {
	// Acquire records a send for key and reports true if no send was recorded within window.
	Acquire(ctx context.Context, key string, window time.Duration) (bool, error)
	// Release forgets the last send for key.
	Release(ctx context.Context, key string) error
}

// Cooldown rate limits notifications per signal type, optionally per asset as well.
type Cooldown struct {
	Store    CooldownStore
	Window   time.Duration
	PerAsset bool
}

// NewCooldown creates a limiter. A non-positive window falls back to DefaultCooldown.
func NewCooldown(store CooldownStore, window time.Duration, perAsset bool) *Cooldown {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Cooldown{Store: store, Window: window, PerAsset: perAsset}
}

// Key returns the limiter key for an alert.
func (c *Cooldown) Key(alert Alert) string {
	if c.PerAsset && alert.Asset != "" {
		return fmt.Sprintf("%s:%s", alert.Decision.Signal, alert.Asset)
	}
	return string(alert.Decision.Signal)
}

// Allow reserves the alert's slot and reports whether it may be sent.
func (c *Cooldown) Allow(ctx context.Context, alert Alert) (bool, error) {
	return c.Store.Acquire(ctx, c.Key(alert), c.Window)
}

// Release frees the alert's slot so the next run may retry.
func (c *Cooldown) Release(ctx context.Context, alert Alert) error {
	return c.Store.Release(ctx, c.Key(alert))
}

// MemoryCooldownStore keeps last-sent times in process.
type MemoryCooldownStore struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time
}

// NewMemoryCooldownStore creates a store. now may be nil to use the wall clock.
func NewMemoryCooldownStore(now func() time.Time) *MemoryCooldownStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryCooldownStore{lastSent: make(map[string]time.Time), now: now}
}

func (s *MemoryCooldownStore) Acquire(_ context.Context, key string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if last, ok := s.lastSent[key]; ok && now.Sub(last) < window {
		return false, nil
	}
	s.lastSent[key] = now
	return true, nil
}

func (s *MemoryCooldownStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.lastSent, key)
	s.mu.Unlock()
	return nil
}

// LastSent returns the recorded send time for key.
func (s *MemoryCooldownStore) LastSent(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastSent[key]
	return t, ok
}

// RedisCooldownStore shares cooldowns across instances using SET NX with expiry.
type RedisCooldownStore struct {
	cli    *redis.Client
	prefix string
}

func NewRedisCooldownStore(cli *redis.Client, prefix string) *RedisCooldownStore {
	return &RedisCooldownStore{cli: cli, prefix: prefix}
}

func (s *RedisCooldownStore) key(k string) string {
	if s.prefix == "" {
		return "cooldown:" + k
	}
	return s.prefix + ":cooldown:" + k
}

func (s *RedisCooldownStore) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := s.cli.SetNX(ctx, s.key(key), time.Now().Unix(), window).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown acquire: %w", err)
	}
	return ok, nil
}

func (s *RedisCooldownStore) Release(ctx context.Context, key string) error {
	if err := s.cli.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("cooldown release: %w", err)
	}
	return nil
}
