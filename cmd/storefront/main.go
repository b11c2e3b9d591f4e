package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"leihlokal/internal/api"
	"leihlokal/internal/cart"
	"leihlokal/internal/config"
	"leihlokal/internal/database"
	"leihlokal/internal/events"
	"leihlokal/internal/metrics"
	"leihlokal/internal/notify"
	"leihlokal/internal/proxy"
	"leihlokal/internal/recordapi"
	"leihlokal/internal/reservation"
	"leihlokal/internal/search"
	"leihlokal/internal/sheets"
	"leihlokal/internal/slots"
	"leihlokal/shared/audit"
	"leihlokal/shared/reminders"
)

const (
	cleanupInterval = 10 * time.Minute
	cartRetention   = 90 * 24 * time.Hour
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	logger := newLogger(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	client := recordapi.NewClient(cfg.API.BaseURL, cfg.APITimeout())
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if ttl := cfg.CacheTTL(); ttl > 0 {
			client.UseRedisCache(rdb, ttl)
		}
	}

	var storage cart.Storage
	switch cfg.Storage.Cart {
	case "redis":
		storage = cart.NewRedisStorage(rdb, cartRetention)
	case "memory":
		storage = cart.NewMemoryStorage()
	default:
		storage = cart.NewSQLiteStorage(db)
	}
	carts := cart.NewService(cfg.Limits.CartItems, storage, &logger)

	var (
		tokens       reservation.TokenStore
		memoryTokens *reservation.MemoryTokenStore
	)
	if rdb != nil {
		tokens = reservation.NewRedisTokenStore(rdb, cfg.TokenTTL())
	} else {
		memoryTokens = reservation.NewMemoryTokenStore(cfg.TokenTTL())
		tokens = memoryTokens
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus(&logger)
	bus.Subscribe(events.ReservationConfirmed, journalHandler(db))
	bus.Subscribe(events.ReservationConfirmed, confirmedMetrics)
	bus.Subscribe(events.ReservationFailed, failedMetrics)

	var telegram *notify.Telegram
	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.ChatIDs) > 0 {
		telegram, err = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatIDs, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifications disabled")
		} else {
			bus.Subscribe(events.ReservationConfirmed, telegram.HandleEvent)
		}
	}

	if telegram != nil && cfg.Telegram.Digest {
		digest := reminders.NewService(reminders.Config{
			LeadTime: time.Duration(cfg.Telegram.DigestLeadMinutes) * time.Minute,
			Brand:    cfg.Brand.Name,
		}, cfg.Hours, db, telegram, &logger)
		digest.Start()
		defer digest.Stop()
	}

	if cfg.Sheets.CredentialsFile != "" && cfg.Sheets.SpreadsheetID != "" {
		sheetsSvc, err := sheets.NewService(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("sheets mirror disabled")
		} else {
			if err := sheetsSvc.EnsureHeader(ctx); err != nil {
				logger.Warn().Err(err).Msg("sheets header check failed")
			}
			bus.Subscribe(events.ReservationConfirmed, sheetsSvc.HandleEvent)
		}
	}

	var notifier audit.Notifier
	if telegram != nil {
		notifier = telegram
	}
	auditSvc := audit.NewService(audit.Config{
		RetentionDays: cfg.Audit.RetentionDays,
		Brand:         cfg.Brand.Name,
	}, db, audit.NewWorkbook, notifier, db, &logger)
	auditSvc.Start()
	defer auditSvc.Stop()

	backup := database.NewBackupService(db, database.BackupConfig{
		Enabled:       cfg.Backup.Enabled,
		Interval:      time.Duration(cfg.Backup.IntervalHours) * time.Hour,
		StoragePath:   backupDir(cfg),
		RetentionDays: cfg.Backup.RetentionDays,
	}, &logger)
	go backup.Start(ctx)

	generator := slots.NewGenerator(cfg.Hours)
	searcher := search.New(client, search.DefaultDelay)
	searcher.OnStale = metrics.IncSearchStale
	submitter := reservation.NewSubmitter(client, generator, tokens, asyncBus{bus}, &logger)

	server := api.NewHTTPServer(api.Deps{
		Config:    cfg,
		Carts:     carts,
		Catalog:   client,
		Searcher:  searcher,
		Submitter: submitter,
		Generator: generator,
		Exporter:  auditSvc,
		Proxy:     proxy.New(cfg.API.BaseURL, "/api/proxy", cfg.APITimeout(), &logger),
		Publisher: bus,
		Logger:    &logger,
	})

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, client, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	go runCleanup(ctx, cleanupInterval, func(now time.Time) {
		idle := now.Add(-time.Hour)
		n := searcher.Cleanup(idle) + submitter.Cleanup(idle) + server.Cleanup(idle) + carts.Cleanup(idle)
		if memoryTokens != nil {
			n += memoryTokens.Cleanup()
		}
		purged, err := db.PurgeCarts(ctx, now.Add(-cartRetention))
		if err != nil {
			logger.Error().Err(err).Msg("purge carts")
		}
		logger.Debug().Int("sessions", n).Int64("carts", purged).Msg("cleanup")
	})

	logger.Info().Str("api", cfg.API.BaseURL).Str("cart_storage", cfg.Storage.Cart).Msg("Storefront started")
	if err := server.Start(ctx, cfg.HTTP.Addr); err != nil {
		logger.Error().Err(err).Msg("http server error")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, format := "info", "console"
	if cfg != nil {
		level, format = cfg.Log.Level, cfg.Log.Format
	}
	var logger zerolog.Logger
	if strings.EqualFold(format, "json") {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		logger = zerolog.New(output).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && lvl != zerolog.NoLevel {
		logger = logger.Level(lvl)
	}
	return logger
}

func runCleanup(ctx context.Context, interval time.Duration, fn func(now time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fn(now)
		}
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, client *recordapi.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if err := client.HealthCheck(ctxPing); err != nil {
			http.Error(w, "record api not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

// backupDir keeps relative backup paths next to the database.
func backupDir(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Backup.Path) {
		return cfg.Backup.Path
	}
	return filepath.Join(filepath.Dir(cfg.Database.Path), cfg.Backup.Path)
}
