package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/fulfilment/internal/core/domain"
)

const locationKeyPrefix = "location:"

// seedLocationScript writes a location hash only if the key is absent, so
// operator edits made directly in Redis survive a restart.
var seedLocationScript = redis.NewScript(`
local key = KEYS[1]

if redis.call('EXISTS', key) == 1 then
	return 0
end

redis.call('HSET', key, 'identifier', ARGV[1], 'min_capacity', ARGV[2], 'max_capacity', ARGV[3])
return 1
`)

// RedisLocationResolver reads location reference data from Redis hashes
// keyed location:<identifier>.
type RedisLocationResolver struct {
	client *redis.Client
}

func NewRedisLocationResolver(client *redis.Client) *RedisLocationResolver {
	return &RedisLocationResolver{client: client}
}

func (r *RedisLocationResolver) Resolve(ctx context.Context, identifier string) (*domain.Location, error) {
	fields, err := r.client.HGetAll(ctx, locationKeyPrefix+identifier).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	minCapacity, err := strconv.Atoi(fields["min_capacity"])
	if err != nil {
		return nil, fmt.Errorf("location %q: min_capacity: %w", identifier, err)
	}
	maxCapacity, err := strconv.Atoi(fields["max_capacity"])
	if err != nil {
		return nil, fmt.Errorf("location %q: max_capacity: %w", identifier, err)
	}

	return &domain.Location{
		Identifier:  identifier,
		MinCapacity: minCapacity,
		MaxCapacity: maxCapacity,
	}, nil
}

// Seed stores each location unless a hash for it already exists. It returns
// the number of locations written.
func (r *RedisLocationResolver) Seed(ctx context.Context, locations []domain.Location) (int, error) {
	written := 0
	for _, location := range locations {
		key := locationKeyPrefix + location.Identifier
		result, err := seedLocationScript.Run(ctx, r.client, []string{key},
			location.Identifier, location.MinCapacity, location.MaxCapacity).Int()
		if err != nil {
			return written, fmt.Errorf("seed location %q: %w", location.Identifier, err)
		}
		written += result
	}
	return written, nil
}

// SetLocation overwrites a location hash.
func (r *RedisLocationResolver) SetLocation(ctx context.Context, location domain.Location) error {
	return r.client.HSet(ctx, locationKeyPrefix+location.Identifier,
		"identifier", location.Identifier,
		"min_capacity", location.MinCapacity,
		"max_capacity", location.MaxCapacity,
	).Err()
}
