package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iliyamo/wetwo-backend/internal/auth"
	"github.com/iliyamo/wetwo-backend/internal/config"
	"github.com/iliyamo/wetwo-backend/internal/database"
	"github.com/iliyamo/wetwo-backend/internal/handler"
	"github.com/iliyamo/wetwo-backend/internal/logger"
	"github.com/iliyamo/wetwo-backend/internal/metrics"
	"github.com/iliyamo/wetwo-backend/internal/queue"
	"github.com/iliyamo/wetwo-backend/internal/repository"
	"github.com/iliyamo/wetwo-backend/internal/router"
	"github.com/iliyamo/wetwo-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.SetupDefault(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	dsn := database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if cfg.RunMigrations {
		if err := database.RunMigrations(dsn); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied")
	}
	db, err := database.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		log.Warn("redis unavailable, using in-memory rate limiting")
	} else {
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(reg)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	profiles := repository.NewProfileRepo(db)
	partnerships := repository.NewPartnershipRepo(db)
	notifications := repository.NewNotificationRepo(db)

	sessions, err := auth.NewSessionManager(cfg.JWTSecret)
	if err != nil {
		return err
	}
	keys := auth.NewRemoteKeySet(cfg.AppleKeysURL, auth.WithKeySetLogger(log))
	svc := auth.NewService(auth.Deps{
		Users:      users,
		Identities: repository.NewIdentityRepo(db),
		Profiles:   profiles,
		Denylist:   tokens,
		Passwords:  auth.NewPasswords(),
		Sessions:   sessions,
		Apple:      auth.NewAppleVerifier(keys, log),
		AppleCfg:   auth.AppleConfig{Audience: cfg.AppleAudience, Issuer: cfg.AppleIssuer},
		Logger:     log,
	})

	var notifier service.Notifier = service.NewDirectNotifier(notifications, m)
	if cfg.RabbitMQURL != "" {
		notifier = service.NewPublisher(cfg.RabbitMQURL, notifier, m, log)
		go func() {
			if err := queue.StartNotificationConsumer(ctx, cfg.RabbitMQURL, notifications, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("notification consumer stopped", slog.Any("error", err))
			}
		}()
	}
	go service.RunRevokedCleanup(ctx, tokens, 24*time.Hour, m, log)

	e := router.New(router.Handlers{
		Auth:         handler.NewAuthHandler(svc, m),
		Profile:      handler.NewProfileHandler(profiles, log),
		Mood:         handler.NewMoodHandler(repository.NewMoodRepo(db), log),
		Memory:       handler.NewMemoryHandler(repository.NewMemoryRepo(db), log),
		Partnership:  handler.NewPartnershipHandler(partnerships, notifier, log),
		LoveMessage:  handler.NewLoveMessageHandler(repository.NewLoveMessageRepo(db), users, partnerships, notifier, log),
		Notification: handler.NewNotificationHandler(notifications),
	}, router.Options{
		Logger:     log,
		Authn:      svc,
		Metrics:    m,
		Gatherer:   reg,
		Limits:     config.LoadRateLimitConfig(),
		Redis:      rdb,
		CORSOrigin: cfg.CORSOrigin,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", srv.Addr), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
