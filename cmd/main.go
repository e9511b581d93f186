package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinoosan/expenses/internal/config"
	httpapi "github.com/tinoosan/expenses/internal/httpapi/v1"
	"github.com/tinoosan/expenses/internal/ledger"
	"github.com/tinoosan/expenses/internal/notify"
	"github.com/tinoosan/expenses/internal/service/expense"
	"github.com/tinoosan/expenses/internal/settings"
	"github.com/tinoosan/expenses/internal/storage"
	"github.com/tinoosan/expenses/internal/storage/instrumented"
	"github.com/tinoosan/expenses/internal/storage/local"
	"github.com/tinoosan/expenses/internal/storage/memory"
	pgstore "github.com/tinoosan/expenses/internal/storage/postgres"
	"github.com/tinoosan/expenses/internal/storage/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("expenses service stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := buildLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return err
	}

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// The local medium always backs preferences and, for the local backend, the ledger blob too.
	kv, closeKV, err := openMedium(ctx, cfg)
	if err != nil {
		return err
	}
	closers = append(closers, closeKV)

	var (
		store ledger.Store
		ready ledger.ReadyChecker
		fixed string
	)
	switch cfg.Backend {
	case config.BackendRemote:
		if cfg.Migrate {
			if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
				return fmt.Errorf("migrate postgres: %w", err)
			}
		}
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pg.Close)
		store, ready = instrumented.Wrap(pg, pg.Backend(), logger), pg
	default:
		ls := local.New(kv, local.WithLogger(logger))
		store, ready = instrumented.Wrap(ls, ls.Backend(), logger), ls
		fixed = ledger.LocalOwner
	}
	logger.Info("storage backend selected", "backend", cfg.Backend, "medium", cfg.LocalMedium)

	prefs, err := settings.Load(ctx, kv, logger)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	feed := notify.NewFeed(cfg.NotificationFeed)
	notifiers := notify.Multi{notify.Log{L: logger}, feed}
	if cfg.AMQPURL != "" {
		pub, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			// notices are best effort; the ledger works without the broker
			logger.Warn("amqp notifier disabled", "err", err)
		} else {
			closers = append(closers, func() { _ = pub.Close() })
			notifiers = append(notifiers, pub)
		}
	}

	svc := expense.New(store, notifiers, expense.WithLogger(logger), expense.WithCurrency(cfg.Currency))
	api := httpapi.New(svc, prefs, feed, logger, httpapi.Options{
		Auth:       httpapi.AuthConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience},
		Ready:      ready,
		FixedOwner: fixed,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("expenses service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
			return err
		}
		return nil
	})
	return g.Wait()
}

// openMedium opens the configured local key/value medium.
func openMedium(ctx context.Context, cfg *config.Config) (storage.KV, func(), error) {
	if cfg.LocalMedium == config.MediumMemory {
		return memory.New(), func() {}, nil
	}
	kv, err := sqlite.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite medium: %w", err)
	}
	return kv, func() { _ = kv.Close() }, nil
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(strings.TrimSpace(level))}
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
