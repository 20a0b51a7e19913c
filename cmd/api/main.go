package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/civicfix/internal/auth"
	"github.com/geocoder89/civicfix/internal/cache"
	"github.com/geocoder89/civicfix/internal/config"
	"github.com/geocoder89/civicfix/internal/db"
	httpx "github.com/geocoder89/civicfix/internal/http"
	"github.com/geocoder89/civicfix/internal/http/handlers"
	"github.com/geocoder89/civicfix/internal/notifications"
	"github.com/geocoder89/civicfix/internal/observability"
	"github.com/geocoder89/civicfix/internal/redisclient"
	"github.com/geocoder89/civicfix/internal/repo/memory"
	"github.com/geocoder89/civicfix/internal/repo/mongodb"
	"github.com/geocoder89/civicfix/internal/repo/postgres"
	"github.com/geocoder89/civicfix/internal/security"
	"github.com/geocoder89/civicfix/internal/service"
	"github.com/geocoder89/civicfix/internal/storage"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const serviceName = "civicfix-api"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type stores struct {
	defects service.DefectStore
	users   service.UserStore
	ping    handlers.Pinger
	close   func()
}

func main() {
	// a missing .env is fine; real deployments use the environment
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OTLPEndpoint, cfg.Env)
		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				sctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdownTracer(sctx)
			}()
		}
	}

	flushSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, version)
	if err != nil {
		log.Error("sentry init failed", "err", err)
	}
	defer flushSentry()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	st, err := openStores(ctx, cfg, prom, log)
	if err != nil {
		log.Error("store init failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer st.close()

	checks := map[string]handlers.Pinger{"store": st.ping}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.Open(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	files, uploadDir, err := openFileStore(ctx, cfg)
	if err != nil {
		log.Error("file storage init failed", "driver", cfg.UploadDriver, "err", err)
		os.Exit(1)
	}

	var suggestionCache service.Cache = cache.New(cfg.CacheTTL())
	if rdb != nil {
		suggestionCache = cache.NewRedis(rdb, "civicfix:cache:", cfg.CacheTTL())
	}

	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	tokens := auth.NewManager(cfg.Secret(), cfg.TokenTTL())

	seeded, err := db.EnsureAdminUser(ctx, st.users, hasher, cfg)
	if err != nil {
		log.Error("admin seeding failed", "err", err)
		os.Exit(1)
	}
	if seeded {
		log.Info("admin user created", "email", cfg.AdminEmail)
	}

	accounts := service.NewAccounts(st.users, hasher, tokens, log)
	defects := service.NewDefects(service.DefectsDeps{
		Store:     st.defects,
		Users:     st.users,
		Files:     files,
		Sanitizer: security.NewSanitizer(),
		Notifier:  buildNotifier(cfg, rdb, prom, log),
		Cache:     suggestionCache,
		Events:    prom,
		Log:       log,
	}, service.DefectsConfig{
		MaxImages:              cfg.MaxImages,
		SuggestionsOwnerScoped: cfg.SuggestionsOwnerScoped,
	})

	tracingName := ""
	if cfg.OTLPEndpoint != "" {
		tracingName = serviceName
	}

	router := httpx.NewRouter(httpx.RouterDeps{
		Env:             cfg.Env,
		ServiceName:     tracingName,
		Log:             log,
		Accounts:        accounts,
		Defects:         defects,
		Tokens:          tokens,
		Checks:          checks,
		Prom:            prom,
		Gatherer:        reg,
		CORSOrigins:     cfg.CORSOrigins,
		UploadDir:       uploadDir,
		MaxImages:       cfg.MaxImages,
		MaxImageBytes:   cfg.MaxImageBytes,
		AuthRateLimit:   cfg.AuthRateLimit,
		CreateRateLimit: cfg.CreateRateLimit,
		TrustedProxies:  cfg.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver, "uploads", cfg.UploadDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return
	}

	log.Info("shutdown complete")
}

func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return stores{
			defects: memory.NewDefectsRepo(),
			users:   memory.NewUsersRepo(),
			ping:    func(context.Context) error { return nil },
			close:   func() {},
		}, nil

	case config.StoreDriverMongo:
		client, database, err := db.NewMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return stores{}, err
		}
		defectsStore := mongodb.NewDefectsStore(database, prom)
		usersStore := mongodb.NewUsersStore(database, prom)
		if err := mongodb.EnsureIndexes(ctx, defectsStore, usersStore); err != nil {
			_ = client.Disconnect(context.Background())
			return stores{}, err
		}
		return stores{
			defects: defectsStore,
			users:   usersStore,
			ping:    func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:   func() { _ = client.Disconnect(context.Background()) },
		}, nil

	default:
		pool, err := db.NewPool(ctx, cfg.DBURL, cfg.DBMaxConns)
		if err != nil {
			return stores{}, err
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return stores{}, err
		}
		return stores{
			defects: postgres.NewDefectsRepo(pool, prom),
			users:   postgres.NewUsersRepo(pool, prom),
			ping:    pool.Ping,
			close:   pool.Close,
		}, nil
	}
}

// openFileStore returns the configured storage and, for local disk, the
// directory the router serves at /uploads.
func openFileStore(ctx context.Context, cfg config.Config) (storage.FileStore, string, error) {
	if cfg.UploadDriver == config.UploadDriverS3 {
		s3cfg := storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Prefix:    cfg.S3Prefix,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			MaxBytes:  cfg.MaxImageBytes,
		}
		client, err := storage.NewS3Client(ctx, s3cfg)
		if err != nil {
			return nil, "", err
		}
		return storage.NewS3Store(client, s3cfg), "", nil
	}

	local, err := storage.NewLocalStore(cfg.UploadDir, cfg.MaxImageBytes)
	if err != nil {
		return nil, "", err
	}
	return local, local.Dir(), nil
}

func buildNotifier(cfg config.Config, rdb *redis.Client, prom *observability.Prom, log *slog.Logger) service.Notifier {
	var inner notifications.Notifier

	switch cfg.Notifier {
	case config.NotifierNone:
		return notifications.Nop{}
	case config.NotifierRedis:
		inner = notifications.NewRedisNotifier(rdb)
	default:
		inner = notifications.NewLogNotifier(log)
	}

	return notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		Timeout:          2 * time.Second,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		OnStateChange: func(from, to string) {
			log.Warn("notifier circuit changed", "from", from, "to", to, "notifier", cfg.Notifier)
			prom.SetNoticeCircuit(to)
		},
	})
}
