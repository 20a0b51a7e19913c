package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"

	UploadDriverLocal = "local"
	UploadDriverS3    = "s3"

	NotifierLog   = "log"
	NotifierRedis = "redis"
	NotifierNone  = "none"
)

type Config struct {
	Env  string
	Port int

	StoreDriver string
	DBURL       string
	DBMaxConns  int
	MongoURI    string
	MongoDB     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret   string
	JWTTTLHours int
	BcryptCost  int

	UploadDriver  string
	UploadDir     string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3Prefix      string
	S3AccessKey   string
	S3SecretKey   string
	MaxImages     int
	MaxImageBytes int64

	SuggestionsOwnerScoped bool
	CacheTTLSeconds        int
	Notifier               string
	CORSOrigins            []string
	AuthRateLimit          int
	CreateRateLimit        int
	TrustedProxies         []string

	AdminEmail     string
	AdminPassword  string
	AdminFirstName string
	AdminLastName  string

	OTLPEndpoint string
	SentryDSN    string
}

func Load() Config {
	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DBURL:       buildDBURL(),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),
		MongoURI:    getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:     getEnv("MONGO_DB", "civicfix"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTTTLHours: getEnvInt("JWT_TTL_HOURS", 7*24),
		BcryptCost:  getEnvInt("BCRYPT_COST", 10),

		UploadDriver:  strings.ToLower(getEnv("UPLOAD_DRIVER", UploadDriverLocal)),
		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		S3Bucket:      getEnv("S3_BUCKET", ""),
		S3Region:      getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:    getEnv("S3_ENDPOINT", ""),
		S3Prefix:      getEnv("S3_PREFIX", "defects"),
		S3AccessKey:   getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:   getEnv("S3_SECRET_KEY", ""),
		MaxImages:     getEnvInt("MAX_IMAGES", 6),
		MaxImageBytes: int64(getEnvInt("MAX_IMAGE_BYTES", 5<<20)),

		SuggestionsOwnerScoped: getEnvBool("SUGGESTIONS_OWNER_SCOPED", false),
		CacheTTLSeconds:        getEnvInt("CACHE_TTL_SECONDS", 30),
		Notifier:               strings.ToLower(getEnv("NOTIFIER", NotifierLog)),
		CORSOrigins:            getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		AuthRateLimit:          getEnvInt("AUTH_RATE_LIMIT", 20),
		CreateRateLimit:        getEnvInt("CREATE_RATE_LIMIT", 30),
		TrustedProxies:         getEnvList("TRUSTED_PROXIES", nil),

		AdminEmail:     getEnv("ADMIN_EMAIL", ""),
		AdminPassword:  getEnv("ADMIN_PASSWORD", ""),
		AdminFirstName: getEnv("ADMIN_FIRST_NAME", "Site"),
		AdminLastName:  getEnv("ADMIN_LAST_NAME", "Admin"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		SentryDSN:    getEnv("SENTRY_DSN", ""),
	}
}

// Validate reports the first setting that would make the server misbehave.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMongo, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.UploadDriver {
	case UploadDriverLocal:
	case UploadDriverS3:
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when UPLOAD_DRIVER=s3")
		}
	default:
		return fmt.Errorf("unknown UPLOAD_DRIVER %q", c.UploadDriver)
	}

	switch c.Notifier {
	case NotifierLog, NotifierNone:
	case NotifierRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when NOTIFIER=redis")
		}
	default:
		return fmt.Errorf("unknown NOTIFIER %q", c.Notifier)
	}

	if c.MaxImages <= 0 {
		return errors.New("MAX_IMAGES must be positive")
	}
	if c.MaxImageBytes <= 0 {
		return errors.New("MAX_IMAGE_BYTES must be positive")
	}
	if c.JWTTTLHours <= 0 {
		return errors.New("JWT_TTL_HOURS must be positive")
	}
	if c.Env == "prod" && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in prod")
	}

	for _, p := range c.TrustedProxies {
		if net.ParseIP(p) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(p); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES: %q is not an IP or CIDR", p)
		}
	}

	return nil
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Secret falls back to a fixed development key outside prod.
func (c Config) Secret() string {
	if c.JWTSecret != "" {
		return c.JWTSecret
	}
	return "civicfix-dev-secret"
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "civicfix")
	pass := getEnv("DB_PASSWORD", "civicfix")
	name := getEnv("DB_NAME", "civicfix")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
