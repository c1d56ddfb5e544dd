package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReplayStore implements ports.ReplayStore on plain Redis keys. The marker
// is written only after the guarded operation succeeded, so Seen and Mark
// are separate calls rather than one SET NX.
type ReplayStore struct {
	client *goredis.Client
	prefix string
}

// NewReplayStore creates a new Redis-backed replay store.
func NewReplayStore(client *goredis.Client) *ReplayStore {
	return &ReplayStore{
		client: client,
		prefix: "replay:",
	}
}

// Seen reports whether the marker was already recorded within its scope.
func (s *ReplayStore) Seen(ctx context.Context, scope, marker string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(scope, marker)).Result()
	if err != nil {
		return false, fmt.Errorf("redis replay check: %w", err)
	}
	return n > 0, nil
}

// Mark records the marker for the replay window.
func (s *ReplayStore) Mark(ctx context.Context, scope, marker string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(scope, marker), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis replay mark: %w", err)
	}
	return nil
}

func (s *ReplayStore) key(scope, marker string) string {
	return s.prefix + scope + ":" + marker
}
