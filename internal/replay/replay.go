// Package replay rejects assertions that were already presented once.
package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/containifyci/assertion-login/pkg/model"
)

type Guard interface {
	// Claim reports true the first time an assertion is seen within ttl.
	Claim(ctx context.Context, assertion model.Assertion, ttl time.Duration) (bool, error)
	// Release forgets a claim whose assertion could not be checked.
	Release(ctx context.Context, assertion model.Assertion) error
}

func key(assertion model.Assertion) string {
	sum := sha256.Sum256([]byte(assertion))
	return "login:assertion:" + hex.EncodeToString(sum[:])
}

type Memory struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{seen: map[string]time.Time{}, now: time.Now}
}

func (m *Memory) Claim(_ context.Context, assertion model.Assertion, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, expires := range m.seen {
		if !now.Before(expires) {
			delete(m.seen, k)
		}
	}

	k := key(assertion)
	if _, ok := m.seen[k]; ok {
		return false, nil
	}
	m.seen[k] = now.Add(ttl)
	return true, nil
}

func (m *Memory) Release(_ context.Context, assertion model.Assertion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, key(assertion))
	return nil
}

type Redis struct {
	client *redis.Client
}

// NewRedis connects to addr and checks the connection with a ping.
func NewRedis(ctx context.Context, addr, password string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Claim(ctx context.Context, assertion model.Assertion, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key(assertion), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis replay guard: %w", err)
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, assertion model.Assertion) error {
	if err := r.client.Del(ctx, key(assertion)).Err(); err != nil {
		return fmt.Errorf("redis replay guard: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
