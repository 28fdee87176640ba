package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Chirag4452/sportsclub-core/internal/api"
	"github.com/Chirag4452/sportsclub-core/internal/audit"
	"github.com/Chirag4452/sportsclub-core/internal/auth"
	"github.com/Chirag4452/sportsclub-core/internal/config"
	"github.com/Chirag4452/sportsclub-core/internal/domain"
	"github.com/Chirag4452/sportsclub-core/internal/faults"
	"github.com/Chirag4452/sportsclub-core/internal/realtime"
	"github.com/Chirag4452/sportsclub-core/internal/retry"
	"github.com/Chirag4452/sportsclub-core/internal/schedule"
	"github.com/Chirag4452/sportsclub-core/internal/store"
	"github.com/Chirag4452/sportsclub-core/internal/store/memory"
	"github.com/Chirag4452/sportsclub-core/internal/store/postgres"
	httptransport "github.com/Chirag4452/sportsclub-core/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.AuthSecret == "" {
		log.Fatal("SPORTSCLUB_AUTH_SECRET is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer closeStore()

	classifier := faults.NewClassifier(logger)
	retrier := retry.New(classifier)
	service := schedule.New(st, classifier, retrier, audit.NewLogger(st, logger), logger)

	rt := realtime.NewMultiplexer(st, logger)
	defer rt.UnsubscribeAll()

	// Keep a live session subscription for the lifetime of the process so the
	// mirror stays current and /v1/realtime/status reflects the change feed.
	_, err = rt.Subscribe(ctx, domain.CollectionSessions, func(e realtime.Event) {
		logger.Debug("session change observed",
			slog.String("eventType", string(e.Type)),
			slog.String("id", e.Document.ID))
	})
	if err != nil {
		log.Fatalf("subscribe to session changes: %v", err)
	}

	handler := api.NewHandler(service, rt, classifier)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(
		auth.Config{Secret: cfg.AuthSecret, Issuer: cfg.AuthIssuer},
		func(r *http.Request) bool {
			return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
		},
		handler.AuthErrorWriter(),
	)

	address := net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(cfg.HTTPPort))
	server := httptransport.NewServer(httptransport.ServerConfig{
		Address: address,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.AccessLog(logger),
			authMiddleware.Wrap,
		},
	}, mux)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("scheduling api listening", slog.String("address", address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	logger.Info("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

// openStore picks the backing store from config. The memory driver exists for
// local development without Postgres.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Client, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		st, err := postgres.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	case "memory":
		st := memory.New(memory.WithUniqueIndex(memory.UniqueIndex{
			Collection: domain.CollectionSessions,
			Fields:     []string{"date", "batch"},
			Where:      map[string]string{"status": string(domain.StatusScheduled)},
		}))
		return st, func() { _ = st.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
