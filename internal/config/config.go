package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/zelosify/zelosify/server/pkg/logger"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	MongoDB   MongoDBConfig
	Store     StoreConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	Auth      AuthConfig
	Cookies   CookieConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// Production reports whether the service runs with production defaults.
func (s ServerConfig) Production() bool {
	return strings.EqualFold(s.Environment, "production")
}

type PostgresConfig struct {
	URL     string
	Timeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// StoreConfig selects the store of record: postgres|mongo|memory.
type StoreConfig struct {
	Driver string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

type KeycloakConfig struct {
	URL               string
	Realm             string
	ClientID          string
	ClientSecret      string
	AdminClientID     string
	AdminClientSecret string
	Discovery         bool
}

type JWTConfig struct {
	TempSecret string
	TempTTL    time.Duration
}

type AuthConfig struct {
	UserCacheTTL       time.Duration
	UserCacheSize      int
	JWKSCacheTTL       time.Duration
	JWKSPerMinute      int
	IdPTimeout         time.Duration
	ExchangeRetries    int
	LogoutRetries      int
	AllowInsecureToken bool
}

type CookieConfig struct {
	Secure bool
	Domain string
}

type StorageConfig struct {
	Driver         string
	PresignTTL     time.Duration
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
	MinIORegion    string
	S3Region       string
	S3Bucket       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3PathStyle    bool
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "5000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("POSTGRES_TIMEOUT", 10)
	v.SetDefault("MONGODB_DATABASE", "zelosify")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KEYCLOAK_REALM", "Zelosify")
	v.SetDefault("KEYCLOAK_DISCOVERY", true)
	v.SetDefault("TEMP_TOKEN_TTL", 300)
	v.SetDefault("USER_CACHE_TTL", 300)
	v.SetDefault("USER_CACHE_SIZE", 10000)
	v.SetDefault("JWKS_CACHE_TTL", 86400)
	v.SetDefault("JWKS_REQUESTS_PER_MINUTE", 10)
	v.SetDefault("IDP_TIMEOUT", 10)
	v.SetDefault("EXCHANGE_RETRIES", 0)
	v.SetDefault("LOGOUT_RETRIES", 2)
	v.SetDefault("ALLOW_INSECURE_TOKEN", false)
	v.SetDefault("STORAGE_DRIVER", "minio")
	v.SetDefault("PRESIGN_TTL", 900)
	v.SetDefault("MINIO_BUCKET", "zelosify-profiles")
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	setDefaults(v)

	env := v.GetString("SERVER_ENVIRONMENT")
	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  env,
			ReadTimeout:  seconds(v, "SERVER_READ_TIMEOUT"),
			WriteTimeout: seconds(v, "SERVER_WRITE_TIMEOUT"),
			CORSOrigins:  splitList(v.GetString("CORS_ORIGINS")),
		},
		Postgres: PostgresConfig{
			URL:     v.GetString("DATABASE_URL"),
			Timeout: seconds(v, "POSTGRES_TIMEOUT"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  seconds(v, "MONGODB_TIMEOUT"),
		},
		Store: StoreConfig{Driver: strings.ToLower(v.GetString("STORE_DRIVER"))},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:               v.GetString("KEYCLOAK_URL"),
			Realm:             v.GetString("KEYCLOAK_REALM"),
			ClientID:          v.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret:      v.GetString("KEYCLOAK_CLIENT_SECRET"),
			AdminClientID:     v.GetString("KEYCLOAK_ADMIN_CLIENT_ID"),
			AdminClientSecret: v.GetString("KEYCLOAK_ADMIN_CLIENT_SECRET"),
			Discovery:         v.GetBool("KEYCLOAK_DISCOVERY"),
		},
		JWT: JWTConfig{
			TempSecret: v.GetString("JWT_SECRET"),
			TempTTL:    seconds(v, "TEMP_TOKEN_TTL"),
		},
		Auth: AuthConfig{
			UserCacheTTL:       seconds(v, "USER_CACHE_TTL"),
			UserCacheSize:      v.GetInt("USER_CACHE_SIZE"),
			JWKSCacheTTL:       seconds(v, "JWKS_CACHE_TTL"),
			JWKSPerMinute:      v.GetInt("JWKS_REQUESTS_PER_MINUTE"),
			IdPTimeout:         seconds(v, "IDP_TIMEOUT"),
			ExchangeRetries:    v.GetInt("EXCHANGE_RETRIES"),
			LogoutRetries:      v.GetInt("LOGOUT_RETRIES"),
			AllowInsecureToken: v.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		Cookies: CookieConfig{
			Domain: v.GetString("COOKIE_DOMAIN"),
		},
		Storage: StorageConfig{
			Driver:         strings.ToLower(v.GetString("STORAGE_DRIVER")),
			PresignTTL:     seconds(v, "PRESIGN_TTL"),
			MinIOEndpoint:  v.GetString("MINIO_ENDPOINT"),
			MinIOAccessKey: v.GetString("MINIO_ACCESS_KEY"),
			MinIOSecretKey: v.GetString("MINIO_SECRET_KEY"),
			MinIOBucket:    v.GetString("MINIO_BUCKET"),
			MinIOUseSSL:    v.GetBool("MINIO_USE_SSL"),
			MinIORegion:    v.GetString("MINIO_REGION"),
			S3Region:       v.GetString("AWS_REGION"),
			S3Bucket:       v.GetString("S3_BUCKET"),
			S3Endpoint:     v.GetString("S3_ENDPOINT"),
			S3AccessKey:    v.GetString("AWS_ACCESS_KEY_ID"),
			S3SecretKey:    v.GetString("AWS_SECRET_ACCESS_KEY"),
			S3PathStyle:    v.GetBool("S3_PATH_STYLE"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	// secure cookies unless explicitly disabled outside production
	cfg.Cookies.Secure = cfg.Server.Production()
	if v.IsSet("COOKIE_SECURE") {
		cfg.Cookies.Secure = v.GetBool("COOKIE_SECURE")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.TempSecret == "" {
		if c.Server.Production() {
			return fmt.Errorf("config: JWT_SECRET is required in production")
		}
		logger.Warn("JWT_SECRET is not set; set a secure value in production")
	}
	if c.Auth.AllowInsecureToken && c.Server.Production() {
		return fmt.Errorf("config: ALLOW_INSECURE_TOKEN cannot be enabled in production")
	}
	switch c.Store.Driver {
	case "postgres", "mongo", "memory":
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.Store.Driver)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
