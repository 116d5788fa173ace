package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"clinicbook/internal/api"
	"clinicbook/internal/audit"
	"clinicbook/internal/booking"
	"clinicbook/internal/closure"
	"clinicbook/internal/config"
	"clinicbook/internal/db"
	"clinicbook/internal/events"
	"clinicbook/internal/lock"
	"clinicbook/internal/metrics"
	"clinicbook/internal/slots"
	"clinicbook/internal/tz"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("SCHEDULER_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		logger = logger.Level(level)
	}

	database, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = config.WatchSchedule(ctx, cfg.Scheduling.SchedulePath, cfg.WatchInterval(),
		func(schedule *config.ScheduleConfig) {
			syncCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := database.SyncScheduleFromConfig(syncCtx, schedule); err != nil {
				logger.Error().Err(err).Msg("schedule sync failed")
				return
			}
			logger.Info().Str("schedule", schedule.String()).Msg("schedule synced")
		},
		func(err error) {
			logger.Error().Err(err).Msg("schedule reload rejected, keeping previous")
		},
	)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Scheduling.SchedulePath).Msg("failed to load schedule")
	}

	var rdb *redis.Client
	var locker lock.Locker = lock.NewLocalLocker(cfg.LockWait())
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL(), cfg.LockWait())
		logger.Info().Str("address", cfg.Redis.Address).Msg("using redis slot locks")
	}

	bus := events.NewEventBus()
	bus.Subscribe("*", func(e events.Event) error {
		logger.Debug().Str("event", e.Type).RawJSON("payload", e.Payload).Msg("event")
		return nil
	})

	calendar := closure.NewCalendar(database)
	resolver := slots.NewResolver(database, database, calendar)
	svc := booking.NewService(database, resolver, locker, tz.NewTranslator(), bus, booking.Config{
		LockAdjacentHalfHour: cfg.Scheduling.LockAdjacentHalfHour,
		DefaultTimezone:      cfg.Scheduling.DefaultTimezone,
	}, &logger)

	exporter := audit.NewExporter(database, &logger)
	if cfg.Audit.Enabled {
		go exporter.Start(ctx, cfg.Audit.Path)
	}

	backups := db.NewBackupService(database, cfg.Backup, &logger)
	go backups.Start(ctx)

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API disabled, running housekeeping only")
		<-ctx.Done()
		return
	}

	server := api.NewServer(svc, database, calendar, exporter, api.Config{
		APIKey:         cfg.API.APIKey,
		AdminKey:       cfg.API.AdminKey,
		RateLimitRPS:   cfg.API.RateLimitRPS,
		RateLimitBurst: cfg.API.RateLimitBurst,
	}, &logger)

	logger.Info().Int("port", cfg.API.Port).Bool("lock_adjacent_half_hour", cfg.Scheduling.LockAdjacentHalfHour).Msg("clinicbook scheduler started")
	serve(ctx, "api", cfg.API.Port, server.Handler(), &logger)
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	serve(ctx, "health", port, mux, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serve(ctx, "metrics", port, mux, logger)
}

// serve runs an HTTP server until ctx is done.
func serve(ctx context.Context, name string, port int, handler http.Handler, logger *zerolog.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
