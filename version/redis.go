package version

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "forecaster:version:"

// SeedFunc returns the highest version number already stored for an organization.
type SeedFunc func(ctx context.Context, orgID string) (int, error)

// RedisSequencer hands out version numbers with Redis INCR. The counter of an organization is
// seeded from the store maximum the first time it is used so numbering continues where the
// store left off.
type RedisSequencer struct {
	client *redis.Client
	prefix string
	seed   SeedFunc
}

var _ Sequencer = (*RedisSequencer)(nil)

// NewRedisSequencer connects to the Redis server at redisURL.
func NewRedisSequencer(redisURL string, seed SeedFunc) (*RedisSequencer, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisSequencerWithClient(client, seed), nil
}

// NewRedisSequencerWithClient creates a sequencer from an existing client.
func NewRedisSequencerWithClient(client *redis.Client, seed SeedFunc) *RedisSequencer {
	return &RedisSequencer{
		client: client,
		prefix: redisKeyPrefix,
		seed:   seed,
	}
}

func (s *RedisSequencer) key(orgID string) string {
	return s.prefix + orgID + ":counter"
}

// Next increments and returns the counter of the organization.
func (s *RedisSequencer) Next(ctx context.Context, orgID string) (int, error) {
	key := s.key(orgID)

	if s.seed != nil {
		exists, err := s.client.Exists(ctx, key).Result()
		if err != nil {
			return 0, fmt.Errorf("check counter: %w", err)
		}
		if exists == 0 {
			highest, err := s.seed(ctx, orgID)
			if err != nil {
				return 0, fmt.Errorf("seed counter: %w", err)
			}
			// only the first writer seeds, concurrent callers fall through to INCR
			if err := s.client.SetNX(ctx, key, highest, 0).Err(); err != nil {
				return 0, fmt.Errorf("seed counter: %w", err)
			}
		}
	}

	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	return int(n), nil
}

// Reset removes the counter of the organization so it is seeded again on next use.
func (s *RedisSequencer) Reset(ctx context.Context, orgID string) error {
	if err := s.client.Del(ctx, s.key(orgID)).Err(); err != nil {
		return fmt.Errorf("delete counter: %w", err)
	}
	return nil
}

func (s *RedisSequencer) Close() error {
	return s.client.Close()
}
