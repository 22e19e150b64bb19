// Package main is the entry point of the student management dashboard.
//
// The process serves the JSON API and runs the background jobs:
// - periodic board refresh from the records service
// - sweeping of expired edit sessions
//
// Postgres (edit journal) and Redis (shared board, edit lock) are optional.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sms-hub/sms-dashboard/config"
	"github.com/sms-hub/sms-dashboard/internal/application/command"
	"github.com/sms-hub/sms-dashboard/internal/application/query"
	"github.com/sms-hub/sms-dashboard/internal/application/refresh"
	"github.com/sms-hub/sms-dashboard/internal/domain/editsession"
	"github.com/sms-hub/sms-dashboard/internal/infrastructure/external/sms"
	"github.com/sms-hub/sms-dashboard/internal/infrastructure/persistence/postgres"
	"github.com/sms-hub/sms-dashboard/internal/infrastructure/persistence/redis"
	"github.com/sms-hub/sms-dashboard/internal/infrastructure/scheduler"
	"github.com/sms-hub/sms-dashboard/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/sms-hub/sms-dashboard/internal/interface/http"
	"github.com/sms-hub/sms-dashboard/internal/interface/http/handlers"
	"github.com/sms-hub/sms-dashboard/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration & logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting sms dashboard",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"features", cfg.Features.EnabledNames(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Records service client
	// ─────────────────────────────────────────────────────────────────────────
	smsConfig := sms.DefaultClientConfig(cfg.SMSAPI.BaseURL)
	smsConfig.Timeout = cfg.SMSAPI.Timeout
	smsConfig.MaxAttempts = cfg.SMSAPI.MaxAttempts
	smsConfig.BreakerFailureThreshold = cfg.SMSAPI.BreakerThreshold
	smsConfig.BreakerOpenTimeout = cfg.SMSAPI.BreakerTimeout
	smsConfig.RateLimiterConfig.RequestsPerSecond = cfg.SMSAPI.RequestsPerSecond
	smsConfig.RateLimiterConfig.BurstSize = cfg.SMSAPI.RateLimitBurst
	smsConfig.Logger = log
	smsConfig.Debug = cfg.SMSAPI.Debug
	smsClient := sms.NewClient(smsConfig)

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("sms_api", handlers.NewExternalAPICheck(smsClient))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Redis (optional): shared board and edit lock
	// ─────────────────────────────────────────────────────────────────────────
	var (
		boardCache refresh.BoardCache
		editLock   command.EditLock
	)
	if !cfg.Redis.Disabled {
		cache, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, running without shared board and edit lock", "error", err)
		} else {
			defer func() { _ = cache.Close() }()
			health.AddOptionalCheck("redis", handlers.NewPingCheck(cache))

			if cfg.Features.IsEnabled(config.FeatureBoardCache) {
				boardCache = redis.NewBoardCache(cache, cfg.Redis.BoardTTL)
			}
			if cfg.Features.IsEnabled(config.FeatureDistributedEditLock) {
				lock := redis.NewEditLock(cache, cfg.Session.LockTTL)
				if holder, err := lock.Holder(ctx); err == nil && holder != "" {
					log.Info("edit lock is held by another replica", "session_id", holder)
				}
				editLock = lock
			}
			log.Info("redis connection established", "addr", cfg.Redis.Host)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Postgres (optional): edit journal
	// ─────────────────────────────────────────────────────────────────────────
	var journal editsession.Journal
	if cfg.Database.Enabled() && cfg.Features.IsEnabled(config.FeatureEditJournal) {
		conn, err := connectPostgres(ctx, cfg.Database, log)
		if err != nil {
			log.Warn("database unavailable, edit journal disabled", "error", err)
		} else {
			defer conn.Close()
			health.AddOptionalCheck("postgres", handlers.NewPingCheck(conn))
			journal = postgres.NewJournalRepository(conn)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Application services
	// ─────────────────────────────────────────────────────────────────────────
	totals := cfg.SMSAPI.TotalsConcurrency
	if !cfg.Features.IsEnabled(config.FeatureParallelTotals) {
		totals = 1
	}
	refresher := refresh.NewService(smsClient, boardCache, refresh.Config{
		TotalsConcurrency: totals,
		FetchTimeout:      cfg.SMSAPI.RefreshTimeout,
		Logger:            log,
	})
	sessions := editsession.NewManager(editsession.ManagerConfig{TTL: cfg.Session.TTL})

	refreshHandler := command.NewRefreshDashboardHandler(refresher, log)
	cancelHandler := command.NewCancelSessionHandler(sessions, editLock, log)

	operatorAuth, err := handlers.NewOperatorAuth(cfg.Security.OperatorTokenHash)
	if err != nil {
		return fmt.Errorf("operator token: %w", err)
	}
	if operatorAuth == nil {
		log.Warn("SECURITY_OPERATOR_TOKEN_HASH is not set, mutating routes are open")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Scheduler
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:     log,
		RunOnStart: cfg.Scheduler.RefreshOnStart,
	})
	// Jobs are registered even when the loop is off so operators can run them by hand.
	refreshJob := jobs.NewRefreshDashboardJob(refreshHandler, cfg.Scheduler.JobTimeout, log)
	if err := sched.Register(refreshJob, scheduler.Every(cfg.Scheduler.RefreshInterval)); err != nil {
		return fmt.Errorf("register refresh job: %w", err)
	}
	if !cfg.Features.IsEnabled(config.FeaturePeriodicRefresh) {
		if err := sched.SetEnabled(jobs.RefreshDashboardJobName, false); err != nil {
			return fmt.Errorf("disable refresh job: %w", err)
		}
	}
	if err := sched.Register(jobs.NewSweepSessionsJob(cancelHandler), scheduler.Every(cfg.Scheduler.SweepInterval)); err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}
	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP API
	// ─────────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(httpapi.Config{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		EnableCORS:         cfg.HTTP.EnableCORS,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
		Version:            cfg.App.Version,
	}, httpapi.Dependencies{
		GetDashboard:      query.NewGetDashboardHandler(refresher),
		ListStudents:      query.NewListStudentsHandler(refresher),
		GetStudentDetails: query.NewGetStudentDetailsHandler(smsClient, log),
		ListAttendance:    query.NewListAttendanceHandler(refresher),
		ListMarks:         query.NewListMarksHandler(refresher),
		ListCourses:       query.NewListCoursesHandler(refresher),
		GetJournal:        query.NewGetJournalHandler(journal),
		GetSession:        query.NewGetSessionHandler(sessions),

		RefreshDashboard: refreshHandler,
		CreateStudent:    command.NewCreateStudentHandler(smsClient, smsClient, refresher, log),
		UpdateStudent:    command.NewUpdateStudentHandler(smsClient, smsClient, refresher, log),
		EvictStudent:     command.NewEvictStudentHandler(smsClient, smsClient, sessions, editLock, refresher, log),
		UpdateAttendance: command.NewUpdateAttendanceHandler(smsClient, smsClient, refresher, log),
		CreateCourse:     command.NewCreateCourseHandler(smsClient, refresher, log),
		OpenSession:      command.NewOpenSessionHandler(smsClient, sessions, editLock, log),
		EditField:        command.NewEditFieldHandler(sessions, editLock, log),
		CommitSession: command.NewCommitSessionHandler(sessions, smsClient, refresher, journal, editLock,
			command.CommitSessionConfig{Logger: log}),
		CancelSession: cancelHandler,

		Logger: logger.New(logger.Options{
			Level:   logger.ParseLevel(cfg.Observability.LogLevel),
			Service: cfg.App.Name,
		}),
		HealthChecker: health,
		OperatorAuth:  operatorAuth,
		Jobs:          sched,
	})

	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-errCh:
		if ok && err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
		log.Error("scheduler shutdown failed", "error", err)
	}

	// Release the lock of an open edit session so other replicas can edit.
	if s := sessions.Active(); s != nil && editLock != nil {
		if err := editLock.Release(shutdownCtx, string(s.ID())); err != nil {
			log.Warn("edit lock release failed", "session_id", string(s.ID()), "error", err)
		}
	}

	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger uses JSON in production and text elsewhere.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	format := cfg.Observability.LogFormat
	if format == "" && cfg.IsProduction() {
		format = "json"
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func connectRedis(ctx context.Context, rc config.RedisConfig) (*redis.Cache, error) {
	cfg := redis.DefaultConfig()
	cfg.Host = rc.Host
	cfg.Port = rc.Port
	cfg.Password = rc.Password
	cfg.DB = rc.DB
	cfg.KeyPrefix = rc.KeyPrefix
	cfg.PoolSize = rc.PoolSize
	cfg.MinIdleConns = rc.MinIdleConns
	cfg.DialTimeout = rc.DialTimeout
	cfg.ReadTimeout = rc.ReadTimeout
	cfg.WriteTimeout = rc.WriteTimeout
	return redis.NewCache(ctx, cfg)
}

func connectPostgres(ctx context.Context, dc config.DatabaseConfig, log *slog.Logger) (*postgres.Connection, error) {
	cfg := postgres.DefaultConfig()
	cfg.URL = dc.URL
	cfg.MaxConns = int32(dc.MaxConns)
	cfg.MinConns = int32(dc.MinConns)
	cfg.MaxConnLifetime = dc.ConnMaxLifetime
	cfg.MaxConnIdleTime = dc.ConnMaxIdleTime
	cfg.ConnectTimeout = dc.ConnectTimeout

	conn, err := postgres.NewConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if dc.AutoMigrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			conn.Close()
			return nil, err
		}
		log.Info("database schema is up to date", "applied", applied)
	}
	return conn, nil
}
