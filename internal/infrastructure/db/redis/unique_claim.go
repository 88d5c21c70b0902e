package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const claimTTL = 10 * time.Second

// releaseScript deletes a claim only if it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// UniqueClaimer holds short-lived Redis locks on unique field values so that
// concurrent writers of the same value are serialised before the store check.
// Key format: claim:<entity>:<field>:<value>, holding the claimant's token.
type UniqueClaimer struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUniqueClaimer creates a UniqueClaimer wrapping the given Redis client.
func NewUniqueClaimer(client *redis.Client) *UniqueClaimer {
	return &UniqueClaimer{client: client, ttl: claimTTL}
}

// Claim reports whether the value was free and is now held under token.
// Each write request uses its own token.
func (c *UniqueClaimer) Claim(ctx context.Context, entity, field, value, token string) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(entity, field, value), token, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s.%s: %w", entity, field, err)
	}
	return ok, nil
}

// Release drops a claim held under token. Expired claims and claims taken
// over by another token are left alone.
func (c *UniqueClaimer) Release(ctx context.Context, entity, field, value, token string) error {
	if err := releaseScript.Run(ctx, c.client, []string{c.key(entity, field, value)}, token).Err(); err != nil {
		return fmt.Errorf("release %s.%s: %w", entity, field, err)
	}
	return nil
}

func (c *UniqueClaimer) key(entity, field, value string) string {
	return fmt.Sprintf("claim:%s:%s:%s", entity, field, value)
}
