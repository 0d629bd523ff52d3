package main

import (
	"context"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"momentiq.app/pipeline/common/crypto"
	"momentiq.app/pipeline/common/id"
	"momentiq.app/pipeline/common/logger"
	"momentiq.app/pipeline/common/otel"
	"momentiq.app/pipeline/core/config"
	"momentiq.app/pipeline/core/db"
	"momentiq.app/pipeline/internal/http/middleware"
	httprouter "momentiq.app/pipeline/internal/http/router"
	"momentiq.app/pipeline/internal/queue"
	"momentiq.app/pipeline/internal/service"
	"momentiq.app/pipeline/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "ingress server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	keeper, err := crypto.NewKeeper(cfg.Secrets.EncryptionKey)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize credential keeper", "error", err)
		os.Exit(1)
	}

	var anonymizer *crypto.Anonymizer
	if cfg.Secrets.AnonymizationSalt != "" {
		anonymizer = crypto.NewAnonymizer(cfg.Secrets.AnonymizationSalt)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Queue.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "pending_set", cfg.Queue.PendingSet)

	backend := queue.NewRedisBackend(redisClient)
	jobQueue := queue.New(backend, backend, queue.Config{
		PendingSet:    cfg.Queue.PendingSet,
		DeadLetterSet: cfg.Queue.DeadLetterSet,
		PollInterval:  cfg.Queue.PollInterval,
		BatchSize:     cfg.Queue.BatchSize,
		LockTTL:       cfg.Queue.LockTTL,
		MaxAttempts:   cfg.Queue.MaxAttempts,
	})

	stores := store.NewStores(database.Pool())
	services := service.NewServices(
		stores,
		service.NewTxRunner(database),
		jobQueue,
		keeper,
		anonymizer,
		cfg.Webhook.TimestampTolerance,
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(ctx, cfg, services, jobQueue)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(ctx context.Context, cfg config.Config, services *service.Services, jobQueue *queue.Queue) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, jobQueue, httprouter.RouterConfig{
		AdminAPIKey:   cfg.AdminAPIKey,
		AppStoreRoots: loadAppStoreRoots(ctx, cfg.Webhook.AppStoreRootCA),
	})

	return router
}

// loadAppStoreRoots builds the provider root pool for JWS verification. With
// no bundle configured, store notifications are rejected rather than trusted.
func loadAppStoreRoots(ctx context.Context, pemBundle string) *x509.CertPool {
	if pemBundle == "" {
		return nil
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(pemBundle)) {
		slog.WarnContext(ctx, "no usable certificates in APPSTORE_ROOT_CA_PEM")
		return nil
	}
	return pool
}

const banner = `
███╗   ███╗ ██████╗ ███╗   ███╗███████╗███╗   ██╗████████╗██╗ ██████╗
████╗ ████║██╔═══██╗████╗ ████║██╔════╝████╗  ██║╚══██╔══╝██║██╔═══██╗
██╔████╔██║██║   ██║██╔████╔██║█████╗  ██╔██╗ ██║   ██║   ██║██║   ██║
██║╚██╔╝██║██║   ██║██║╚██╔╝██║██╔══╝  ██║╚██╗██║   ██║   ██║██║▄▄ ██║
██║ ╚═╝ ██║╚██████╔╝██║ ╚═╝ ██║███████╗██║ ╚████║   ██║   ██║╚██████╔╝
╚═╝     ╚═╝ ╚═════╝ ╚═╝     ╚═╝╚══════╝╚═╝  ╚═══╝   ╚═╝   ╚═╝ ╚══▀▀═╝
`
