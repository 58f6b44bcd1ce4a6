package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zelosify/zelosify/server/handlers"
	"github.com/zelosify/zelosify/server/internal/cache"
	"github.com/zelosify/zelosify/server/internal/config"
	"github.com/zelosify/zelosify/server/internal/database"
	"github.com/zelosify/zelosify/server/internal/keycloak"
	"github.com/zelosify/zelosify/server/internal/login"
	"github.com/zelosify/zelosify/server/internal/oidc"
	openingshandler "github.com/zelosify/zelosify/server/internal/openings/handler"
	"github.com/zelosify/zelosify/server/internal/openings/repository"
	"github.com/zelosify/zelosify/server/internal/openings/service"
	"github.com/zelosify/zelosify/server/internal/sessions"
	"github.com/zelosify/zelosify/server/internal/storage"
	"github.com/zelosify/zelosify/server/internal/tokens"
	"github.com/zelosify/zelosify/server/internal/users"
	"github.com/zelosify/zelosify/server/pkg/logger"
	"github.com/zelosify/zelosify/server/pkg/metrics"
	"github.com/zelosify/zelosify/server/pkg/middleware"
)

var startTime = time.Now()

// stores is the selected store of record.
type stores struct {
	users    users.UserRepository
	openings repository.Repository
	// ledger is set when the store can hold token state without Redis
	ledger sessions.Ledger
	ping   func(ctx context.Context) error
	close  func()
}

func main() {
	// initialize logging (LOG_LEVEL: debug|info|warn|error|fatal, LOG_FORMAT: text|json)
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.SetFormat(os.Getenv("LOG_FORMAT"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: env=%s store=%s keycloak=%v redis=%v storage=%s",
		cfg.Server.Environment, cfg.Store.Driver, cfg.Keycloak.URL != "", cfg.Redis.Host != "", cfg.Storage.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), corsMiddleware(cfg.Server.CORSOrigins))

	// Redis backs the shared principal cache, the revocation ledger and the
	// distributed rate limiter. Everything degrades to in-process without it.
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", cfg.Redis.Addr(), err)
			_ = rdb.Close()
			rdb = nil
		} else {
			logger.Infof("connected to Redis at %s", cfg.Redis.Addr())
			defer rdb.Close()
		}
	}

	// Optional global rate limiter (per-user when authenticated, otherwise per-IP)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
		logger.Infof("rate limiter enabled: rps=%.1f burst=%d redis=%v", cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.UseRedis && rdb != nil)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to open %s store: %v", cfg.Store.Driver, err)
	}
	defer st.close()

	// Identity provider endpoints, verifier and client
	if cfg.Keycloak.URL == "" || cfg.Keycloak.ClientID == "" {
		logger.Fatalf("KEYCLOAK_URL and KEYCLOAK_CLIENT_ID are required")
	}
	ep := oidc.KeycloakEndpoints(cfg.Keycloak.URL, cfg.Keycloak.Realm)
	if cfg.Keycloak.Discovery {
		dctx, cancel := context.WithTimeout(ctx, cfg.Auth.IdPTimeout)
		found, err := oidc.Discover(dctx, ep.Issuer, ep)
		cancel()
		if err != nil {
			logger.Warnf("OIDC discovery failed, using derived realm endpoints: %v", err)
		} else {
			ep = found
		}
	}
	idpHTTP := &http.Client{Timeout: cfg.Auth.IdPTimeout}

	keys, err := oidc.NewKeyResolver(oidc.NewHTTPKeySource(ep.JWKSURL, idpHTTP),
		oidc.WithKeyTTL(cfg.Auth.JWKSCacheTTL),
		oidc.WithFetchesPerMinute(cfg.Auth.JWKSPerMinute),
	)
	if err != nil {
		logger.Fatalf("failed to create key resolver: %v", err)
	}
	var verifierOpts []oidc.VerifierOption
	if cfg.Auth.AllowInsecureToken {
		verifierOpts = append(verifierOpts, oidc.WithTrustPolicy(oidc.TrustDecodeOnly))
	}
	verifier := oidc.NewVerifier(keys, ep.Issuer, verifierOpts...)

	var secrets keycloak.SecretSource = keycloak.StaticSecret(cfg.Keycloak.ClientSecret)
	if cfg.Keycloak.ClientSecret == "" {
		secrets = keycloak.NewAdminSecretSource(cfg.Keycloak.URL, cfg.Keycloak.Realm, cfg.Keycloak.ClientID,
			cfg.Keycloak.AdminClientID, cfg.Keycloak.AdminClientSecret, idpHTTP)
	}
	kc, err := keycloak.NewClient(keycloak.Config{
		TokenURL:        ep.TokenURL,
		LogoutURL:       ep.LogoutURL,
		ClientID:        cfg.Keycloak.ClientID,
		Secrets:         secrets,
		Timeout:         cfg.Auth.IdPTimeout,
		ExchangeRetries: cfg.Auth.ExchangeRetries,
		LogoutRetries:   cfg.Auth.LogoutRetries,
		HTTPClient:      idpHTTP,
	})
	if err != nil {
		logger.Fatalf("failed to create keycloak client: %v", err)
	}

	userSvc := users.NewService(st.users)

	var principals cache.PrincipalCache
	var ledger sessions.Ledger = sessions.NoopLedger{}
	if rdb != nil {
		principals = cache.NewRedisPrincipalCache(rdb, cfg.Auth.UserCacheTTL)
		ledger = sessions.NewRedisLedger(rdb)
	} else {
		mem, err := cache.NewMemoryPrincipalCache(cfg.Auth.UserCacheSize, cfg.Auth.UserCacheTTL, nil)
		if err != nil {
			logger.Fatalf("failed to create user cache: %v", err)
		}
		principals = mem
		if st.ledger != nil {
			ledger = st.ledger
			logger.Warnf("Redis unavailable: user cache is per-process")
		} else {
			logger.Warnf("Redis unavailable: user cache is per-process and temp tokens are not single use")
		}
	}

	tempSecret := cfg.JWT.TempSecret
	if tempSecret == "" {
		// development only; config rejects this in production
		tempSecret = uuid.NewString()
	}
	temp, err := tokens.NewTempIssuer(tempSecret, cfg.JWT.TempTTL)
	if err != nil {
		logger.Fatalf("failed to create temp token issuer: %v", err)
	}
	loginSvc := login.NewService(kc, verifier, userSvc, temp, login.WithLedger(ledger))

	requireAuth := middleware.AuthMiddleware(verifier, userSvc, principals, middleware.WithRevocationCheck(ledger))
	optionalAuth := middleware.OptionalAuth(verifier, userSvc, principals, middleware.WithRevocationCheck(ledger))

	api := r.Group("/api/v1")
	handlers.NewAuthHandler(loginSvc, handlers.CookieConfig{Secure: cfg.Cookies.Secure, Domain: cfg.Cookies.Domain}).
		Register(api, requireAuth, optionalAuth)

	// Vendor openings need object storage for profile files
	presigner, err := storage.New(ctx, storageConfig(cfg))
	storageReady := err == nil
	if err != nil {
		logger.Warnf("vendor routes not registered: object storage unavailable: %v", err)
	} else {
		if m, ok := presigner.(*storage.MinIOPresigner); ok {
			if err := m.EnsureBucket(ctx); err != nil {
				logger.Warnf("failed to ensure bucket %s: %v", cfg.Storage.MinIOBucket, err)
			}
		}
		svc := service.New(st.openings, userSvc, presigner, cfg.Storage.PresignTTL)
		openingshandler.RegisterVendorRoutes(r, svc, requireAuth)
	}

	handlers.RegisterSwagger(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when critical dependencies are available
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{"oidc": true}

		pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps["store"] = st.ping(pctx) == nil
		if !deps["store"] {
			ready = false
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = rdb != nil && rdb.Ping(pctx).Err() == nil
			if !deps["redis"] {
				ready = false
			}
		}
		deps["storage"] = storageReady

		status, label := http.StatusOK, "ready"
		if !ready {
			status, label = http.StatusServiceUnavailable, "not_ready"
		}
		c.JSON(status, gin.H{"status": label, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("Starting zelosify server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

// openStores connects the store of record the config selects.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warnf("using in-memory store: data is lost on restart")
		return &stores{
			users:    users.NewMemoryUserRepository(),
			openings: repository.NewMemoryRepo(),
			ping:     func(context.Context) error { return nil },
			close:    func() {},
		}, nil

	case "mongo":
		// tolerate startup races with the database container
		client, err := backoff.Retry(ctx, func() (*mongo.Client, error) {
			c, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if err != nil {
				logger.Warnf("failed to connect to MongoDB: %v", err)
			}
			return c, err
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDB.Database)
		userRepo := users.NewMongoUserRepository(db.Collection("users"))
		if err := userRepo.EnsureIndexes(ctx); err != nil {
			logger.Warnf("failed to ensure user indexes: %v", err)
		}
		openRepo := repository.NewMongoRepo(db)
		if err := openRepo.EnsureIndexes(ctx); err != nil {
			logger.Warnf("failed to ensure opening indexes: %v", err)
		}
		ledger := sessions.NewMongoLedger(db.Collection("token_ledger"))
		if err := ledger.EnsureIndexes(ctx); err != nil {
			logger.Warnf("failed to ensure token ledger indexes: %v", err)
		}
		return &stores{
			users:    userRepo,
			openings: openRepo,
			ledger:   ledger,
			ping:     func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:    func() { _ = client.Disconnect(context.Background()) },
		}, nil

	default:
		pool, err := backoff.Retry(ctx, func() (*pgxpool.Pool, error) {
			p, err := database.ConnectPostgres(ctx, cfg.Postgres.URL, cfg.Postgres.Timeout)
			if err != nil {
				logger.Warnf("failed to connect to Postgres: %v", err)
			}
			return p, err
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
		if err != nil {
			return nil, err
		}
		return &stores{
			users:    users.NewPostgresUserRepository(pool),
			openings: repository.NewPostgresRepo(pool),
			ping:     pool.Ping,
			close:    pool.Close,
		}, nil
	}
}

func storageConfig(cfg *config.Config) storage.Config {
	s := cfg.Storage
	return storage.Config{
		Driver:     s.Driver,
		PresignTTL: s.PresignTTL,
		MinIO: storage.MinIOConfig{
			Endpoint:  s.MinIOEndpoint,
			AccessKey: s.MinIOAccessKey,
			SecretKey: s.MinIOSecretKey,
			UseSSL:    s.MinIOUseSSL,
			Bucket:    s.MinIOBucket,
			Region:    s.MinIORegion,
		},
		S3: storage.S3Config{
			Region:    s.S3Region,
			Bucket:    s.S3Bucket,
			Endpoint:  s.S3Endpoint,
			AccessKey: s.S3AccessKey,
			SecretKey: s.S3SecretKey,
			PathStyle: s.S3PathStyle,
		},
	}
}

// corsMiddleware allows credentialed requests from the configured origins.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); allowed[origin] {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
			h.Set("Access-Control-Expose-Headers", "Content-Length")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
