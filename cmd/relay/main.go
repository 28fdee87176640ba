package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Chirag4452/sportsclub-core/internal/config"
	"github.com/Chirag4452/sportsclub-core/internal/domain"
	"github.com/Chirag4452/sportsclub-core/internal/realtime"
	"github.com/Chirag4452/sportsclub-core/internal/relay"
	"github.com/Chirag4452/sportsclub-core/internal/store"
	"github.com/Chirag4452/sportsclub-core/internal/store/memory"
	"github.com/Chirag4452/sportsclub-core/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
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

	rt := realtime.NewMultiplexer(st, logger)
	defer rt.UnsubscribeAll()

	producer := relay.NewProducer(cfg.KafkaBrokers)
	defer func() { _ = producer.Close() }()

	rel := relay.New(rt, producer, logger, relay.WithTopicPrefix(cfg.RelayTopicPrefix))
	if err := rel.Start(ctx, cfg.RelayCollections...); err != nil {
		log.Fatalf("start relay: %v", err)
	}

	metricsAddr := fmt.Sprintf(":%d", cfg.MetricsPort)
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
	go func() {
		logger.Info("relay metrics listening", slog.String("address", metricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	logger.Info("relay started",
		slog.Any("collections", cfg.RelayCollections),
		slog.String("topicPrefix", cfg.RelayTopicPrefix),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("relay shutdown requested")
	rel.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", slog.String("error", err.Error()))
	}

	rel.Wait()
}

// openStore picks the backing store from config. The memory driver only sees
// writes made by this process, so it is useful for smoke testing the Kafka
// path, not for following the real schedule.
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
