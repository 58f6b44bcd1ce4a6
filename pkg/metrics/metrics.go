package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "zelosify", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "zelosify", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	AuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "zelosify", Name: "auth_failures_total", Help: "Rejected requests by failure reason."},
		[]string{"reason"},
	)
	JWKSFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "zelosify", Name: "jwks_fetches_total", Help: "Signing key set fetches by result (ok, error, rate_limited)."},
		[]string{"result"},
	)
	UserCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "zelosify", Name: "user_cache_lookups_total", Help: "Principal cache lookups by result (hit, miss, error)."},
		[]string{"result"},
	)
	LoginSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "zelosify", Name: "login_steps_total", Help: "Login state machine transitions by step and outcome."},
		[]string{"step", "outcome"},
	)
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "zelosify", Name: "identity_provider_calls_total", Help: "Identity provider calls by operation and outcome."},
		[]string{"operation", "outcome"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(AuthFailures)
	reg.MustRegister(JWKSFetches)
	reg.MustRegister(UserCacheLookups)
	reg.MustRegister(LoginSteps)
	reg.MustRegister(ProviderCalls)
}
