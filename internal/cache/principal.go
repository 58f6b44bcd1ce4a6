package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zelosify/zelosify/server/internal/models"
	"github.com/zelosify/zelosify/server/pkg/metrics"
)

// DefaultPrincipalTTL is how long a resolved principal may be served without
// going back to the store of record.
const DefaultPrincipalTTL = 5 * time.Minute

// PrincipalCache maps an IdP subject to a resolved principal snapshot.
type PrincipalCache interface {
	Lookup(ctx context.Context, subject string) (*models.Principal, bool, error)
	Store(ctx context.Context, subject string, p *models.Principal) error
}

// MemoryPrincipalCache keeps principals in-process. Lookups return copies.
type MemoryPrincipalCache struct {
	c *TTL[*models.Principal]
}

func NewMemoryPrincipalCache(size int, ttl time.Duration, now Clock) (*MemoryPrincipalCache, error) {
	if ttl <= 0 {
		ttl = DefaultPrincipalTTL
	}
	c, err := NewTTL[*models.Principal](size, ttl, now)
	if err != nil {
		return nil, err
	}
	return &MemoryPrincipalCache{c: c}, nil
}

func (m *MemoryPrincipalCache) Lookup(_ context.Context, subject string) (*models.Principal, bool, error) {
	p, ok := m.c.Get(subject)
	if !ok {
		metrics.UserCacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	metrics.UserCacheLookups.WithLabelValues("hit").Inc()
	return p.Clone(), true, nil
}

func (m *MemoryPrincipalCache) Store(_ context.Context, subject string, p *models.Principal) error {
	if subject == "" || p == nil {
		return nil
	}
	m.c.Set(subject, p.Clone())
	return nil
}

func (m *MemoryPrincipalCache) Len() int { return m.c.Len() }

// RedisPrincipalCache shares principals between replicas. Expiry is delegated
// to Redis key TTLs.
type RedisPrincipalCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisPrincipalCache(client *redis.Client, ttl time.Duration) *RedisPrincipalCache {
	if ttl <= 0 {
		ttl = DefaultPrincipalTTL
	}
	return &RedisPrincipalCache{client: client, ttl: ttl, prefix: "principal:"}
}

func (r *RedisPrincipalCache) key(subject string) string { return r.prefix + subject }

func (r *RedisPrincipalCache) Lookup(ctx context.Context, subject string) (*models.Principal, bool, error) {
	raw, err := r.client.Get(ctx, r.key(subject)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.UserCacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.UserCacheLookups.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("principal cache get: %w", err)
	}
	var p models.Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		// a corrupt entry is treated as a miss and overwritten on the next store
		metrics.UserCacheLookups.WithLabelValues("error").Inc()
		return nil, false, nil
	}
	metrics.UserCacheLookups.WithLabelValues("hit").Inc()
	return &p, true, nil
}

func (r *RedisPrincipalCache) Store(ctx context.Context, subject string, p *models.Principal) error {
	if subject == "" || p == nil {
		return nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(subject), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("principal cache set: %w", err)
	}
	return nil
}
