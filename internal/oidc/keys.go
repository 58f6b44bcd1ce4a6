package oidc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"golang.org/x/time/rate"

	"github.com/zelosify/zelosify/server/internal/cache"
	"github.com/zelosify/zelosify/server/pkg/logger"
	"github.com/zelosify/zelosify/server/pkg/metrics"
)

var (
	ErrKeyNotFound = errors.New("signing key not found")
	ErrRateLimited = errors.New("signing key fetch rate limited")
)

const (
	DefaultKeyTTL           = 24 * time.Hour
	DefaultFetchesPerMinute = 10
)

const maxKeySetBytes int64 = 1 << 20

// KeySource returns the provider's currently published key set.
type KeySource interface {
	Fetch(ctx context.Context) (jwk.Set, error)
}

// HTTPKeySource fetches a JWKS document over HTTP.
type HTTPKeySource struct {
	URL    string
	Client *http.Client
}

func NewHTTPKeySource(url string, client *http.Client) *HTTPKeySource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPKeySource{URL: url, Client: client}
}

func (s *HTTPKeySource) Fetch(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return nil, fmt.Errorf("read jwks: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse jwks: %w", err)
	}
	return set, nil
}

// KeyResolver maps key ids to public keys. Keys are cached per kid for ttl;
// a miss triggers a fetch of the whole set, bounded by a limiter shared by
// every caller. Callers over the limit fail immediately with ErrRateLimited.
type KeyResolver struct {
	src     KeySource
	keys    *cache.TTL[any]
	limiter *rate.Limiter
}

type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	ttl       time.Duration
	perMinute int
	now       cache.Clock
	limiter   *rate.Limiter
}

func WithKeyTTL(d time.Duration) ResolverOption {
	return func(o *resolverOptions) { o.ttl = d }
}

func WithFetchesPerMinute(n int) ResolverOption {
	return func(o *resolverOptions) { o.perMinute = n }
}

func WithClock(now cache.Clock) ResolverOption {
	return func(o *resolverOptions) { o.now = now }
}

// WithLimiter replaces the default per-minute limiter.
func WithLimiter(l *rate.Limiter) ResolverOption {
	return func(o *resolverOptions) { o.limiter = l }
}

func NewKeyResolver(src KeySource, opts ...ResolverOption) (*KeyResolver, error) {
	o := resolverOptions{ttl: DefaultKeyTTL, perMinute: DefaultFetchesPerMinute}
	for _, fn := range opts {
		fn(&o)
	}
	if o.perMinute <= 0 {
		o.perMinute = DefaultFetchesPerMinute
	}
	keys, err := cache.NewTTL[any](256, o.ttl, o.now)
	if err != nil {
		return nil, err
	}
	lim := o.limiter
	if lim == nil {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(o.perMinute)), o.perMinute)
	}
	return &KeyResolver{src: src, keys: keys, limiter: lim}, nil
}

// Resolve returns the raw public key (e.g. *rsa.PublicKey) for kid.
func (r *KeyResolver) Resolve(ctx context.Context, kid string) (any, error) {
	if kid == "" {
		return nil, ErrKeyNotFound
	}
	if k, ok := r.keys.Get(kid); ok {
		return k, nil
	}
	if !r.limiter.Allow() {
		metrics.JWKSFetches.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}
	set, err := r.src.Fetch(ctx)
	if err != nil {
		metrics.JWKSFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.JWKSFetches.WithLabelValues("ok").Inc()

	var found any
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		id, ok := key.KeyID()
		if !ok || id == "" {
			continue
		}
		var raw any
		if err := jwk.Export(key, &raw); err != nil {
			logger.Warnf("jwks: skipping key %s: %v", id, err)
			continue
		}
		r.keys.Set(id, raw)
		if id == kid {
			found = raw
		}
	}
	if found == nil {
		return nil, ErrKeyNotFound
	}
	return found, nil
}
