package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"crmpilates/internal/adapters/api"
	"crmpilates/internal/adapters/email"
	web "crmpilates/internal/adapters/http"
	"crmpilates/internal/adapters/http/perf"
	"crmpilates/internal/adapters/storage"
	"crmpilates/internal/adapters/storage/kv"
	"crmpilates/internal/application/orchestrators"
	"crmpilates/internal/application/store"
	"crmpilates/internal/config"
	"crmpilates/internal/logging"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// shutdownTimeout bounds how long in-flight requests get on SIGTERM.
const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server_failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return err
	}
	csrfKey, sessionKey, storageKey := cfg.Keys()

	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.MigrateDB(db); err != nil {
		return err
	}

	// Performance instrumentation: one collector for requests, queries and API calls
	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQuery)

	kvStore, err := kv.NewSQLiteStore(timedDB, storageKey)
	if err != nil {
		return err
	}

	gateway := api.NewClient(cfg.APIBaseURL, api.Options{
		Timeout:       cfg.APITimeout,
		MaxRetries:    cfg.APIMaxRetries,
		SlowThreshold: cfg.SlowUpstream,
		Location:      cfg.Location(),
		Collector:     collector,
	})

	var notifier email.Sender
	if cfg.ResendKey != "" {
		notifier = email.NewResendSender(cfg.ResendKey, cfg.ResendFrom)
		slog.Info("email_event", "event", "sender_configured", "provider", "resend")
	} else {
		notifier = email.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_event", "event", "delivery_disabled", "reason", "CRM_RESEND_KEY is not set")
		}
	}

	srv, err := web.NewServer(web.Deps{
		Gateway: gateway,
		Persistence: func(sessionID string) store.Persistence {
			return kv.NewScoped(kvStore, sessionID)
		},
		DB:                 timedDB,
		Notifier:           notifier,
		AlertTo:            alertRecipients(cfg.AlertEmail),
		LowCreditThreshold: cfg.LowCreditThreshold,
		Collector:          collector,
		Location:           cfg.Location(),
		CSRFKey:            csrfKey,
		SessionKey:         sessionKey,
		Secure:             cfg.IsProduction(),
		TrustedOrigins:     cfg.TrustedOrigins,
		SessionTTL:         cfg.SessionTTL,
		SlowRequest:        cfg.SlowRequest,
	})
	if err != nil {
		return err
	}

	purge, err := orchestrators.StartPurgeSchedule(cfg.PurgeSchedule, orchestrators.PurgeStaleSessionsDeps{
		Store:    kvStore,
		Sessions: srv.Sessions(),
		TTL:      cfg.SessionTTL,
	})
	if err != nil {
		return err
	}
	defer func() { <-purge.Stop().Done() }()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_started", "version", version, "addr", cfg.Addr, "env", cfg.Env, "api", cfg.APIBaseURL)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// alertRecipients splits a comma separated address list.
func alertRecipients(raw string) []string {
	var out []string
	for _, addr := range strings.Split(raw, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
