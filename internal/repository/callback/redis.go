package callback

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "storefront:callback:"

type redisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis stores ledger entries with SET NX so concurrent instances agree
// on the first delivery. Entries expire after ttl.
func NewRedis(client *redis.Client, ttl time.Duration) Ledger {
	return &redisLedger{client: client, ttl: ttl}
}

func (l *redisLedger) FirstSeen(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339Nano), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("callback ledger: %w", err)
	}
	return ok, nil
}
