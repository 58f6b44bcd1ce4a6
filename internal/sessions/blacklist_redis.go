package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger implements Ledger with Redis keys that expire on their own.
//
//	consumed:temp:<jti>          set once with SETNX
//	blacklist:access:<sha256>    revoked access tokens
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func (l *RedisLedger) ConsumeOnce(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	return l.client.SetNX(ctx, "consumed:temp:"+id, "1", ttl).Result()
}

// Revoke stores the token in the blacklist. A non-positive ttl means the
// token already expired and nothing is stored.
func (l *RedisLedger) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return l.client.Set(ctx, "blacklist:access:"+tokenKey(token), "1", ttl).Err()
}

func (l *RedisLedger) IsRevoked(ctx context.Context, token string) (bool, error) {
	exists, err := l.client.Exists(ctx, "blacklist:access:"+tokenKey(token)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
