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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	specpkg "github.com/snowballr/snowballr-api/api"
	"github.com/snowballr/snowballr-api/internal/api"
	"github.com/snowballr/snowballr-api/internal/api/middleware"
	"github.com/snowballr/snowballr-api/internal/auth"
	"github.com/snowballr/snowballr-api/internal/author"
	"github.com/snowballr/snowballr-api/internal/config"
	"github.com/snowballr/snowballr-api/internal/database"
	"github.com/snowballr/snowballr-api/internal/janitor"
	"github.com/snowballr/snowballr-api/internal/mail"
	"github.com/snowballr/snowballr-api/internal/metrics"
	"github.com/snowballr/snowballr-api/internal/paper"
	"github.com/snowballr/snowballr-api/internal/project"
	"github.com/snowballr/snowballr-api/internal/source"
	"github.com/snowballr/snowballr-api/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	pool := db.Pool()
	userRepo := user.NewRepository(pool)
	projectRepo := project.NewRepository(pool)

	tokenLifetime := time.Duration(cfg.TokenLifetimeDays) * 24 * time.Hour
	issuer, err := auth.NewIssuer(cfg.JWTSecret, tokenLifetime)
	if err != nil {
		slog.Error("failed to create token issuer", "error", err)
		os.Exit(1)
	}
	tokenRepo := auth.NewTokenRepository(pool)
	authService := auth.NewService(userRepo, tokenRepo, issuer, cfg.BcryptCost)

	if _, err := authService.BootstrapAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		slog.Error("failed to bootstrap admin", "error", err)
		os.Exit(1)
	}
	if cfg.SiteURL == "" {
		slog.Warn("SITE_URL not set; invitations and password resets are disabled")
	}

	paperSources, authorSources, closeSources, err := initSourceStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize source cache", "error", err)
		os.Exit(1)
	}
	defer closeSources()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := api.NewRouter(api.RouterDeps{
		DBPinger:      db,
		Version:       cfg.Version,
		OpenAPISpec:   specpkg.OpenAPISpec,
		Metrics:       metrics.NewHTTP(reg),
		LoginLimiter:  middleware.NewRateLimiter(cfg.LoginRatePerSec, cfg.LoginRateBurst, middleware.TrustForwardedFor(cfg.TrustProxy)),
		AuthService:   authService,
		Authorizer:    auth.NewAuthorizer(projectRepo),
		UserRepo:      userRepo,
		ProjectRepo:   projectRepo,
		PaperRepo:     paper.NewRepository(pool),
		AuthorRepo:    author.NewRepository(pool),
		PaperSources:  paperSources,
		AuthorSources: authorSources,
		Mailer:        initMailer(cfg),
		SiteURL:       cfg.SiteURL,
	})

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go janitor.New(tokenRepo, tokenLifetime, cfg.TokenSweepEvery).Start(janitorCtx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting snowballR API", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	stopJanitor()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// initSourceStores returns Redis-backed stores when REDIS_ADDR is set and
// process-local stores otherwise.
func initSourceStores(ctx context.Context, cfg *config.Config) (papers, authors source.Store, closeFn func(), err error) {
	if cfg.RedisAddr == "" {
		slog.Info("REDIS_ADDR not set; source cache is process-local")
		return source.NewMemoryStore(), source.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, nil, fmt.Errorf("pinging redis: %w", err)
	}

	closeFn = func() {
		if err := client.Close(); err != nil {
			slog.Warn("closing redis client", "error", err)
		}
	}
	return source.NewRedisStore(client, "source:paper:"), source.NewRedisStore(client, "source:author:"), closeFn, nil
}

func initMailer(cfg *config.Config) mail.Sender {
	if cfg.MailHost == "" {
		slog.Warn("MAIL_HOST not set; emails are logged instead of sent")
		return mail.LogSender{}
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.MailHost,
		Port:     cfg.MailPort,
		User:     cfg.MailUser,
		Password: cfg.MailPassword,
		From:     cfg.MailFrom,
	})
}
