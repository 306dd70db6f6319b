package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"

	posofferservice "github.com/Cheertaboi/pos-offer-service"
	"github.com/Cheertaboi/pos-offer-service/internal/api"
	"github.com/Cheertaboi/pos-offer-service/internal/cache"
	"github.com/Cheertaboi/pos-offer-service/internal/config"
	"github.com/Cheertaboi/pos-offer-service/internal/events"
	"github.com/Cheertaboi/pos-offer-service/internal/repository"
	"github.com/Cheertaboi/pos-offer-service/internal/service"
	"github.com/Cheertaboi/pos-offer-service/pkg/db"
)

func main() {
	if err := run(); err != nil {
		slog.Error("offer-service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.NewPostgresConnection(ctx, cfg.DB)
	if err != nil {
		return errors.Wrap(err, "db connect")
	}
	defer conn.Close()

	if cfg.MigrateOnStart {
		if err := db.RunMigrations(cfg.DB.URL(), posofferservice.MigrationsFS); err != nil {
			return err
		}
	}

	itemRepo := repository.NewItemRepo(conn)
	offerRepo := repository.NewOfferRepo(conn, itemRepo)
	sessionRepo := repository.NewSessionRepo(conn)
	usageRepo := repository.NewUsageRepo(conn)
	customerRepo := repository.NewCustomerRepo(conn)

	catalog := service.NewCachedCatalog(offerRepo, cache.NewCatalogCache(cfg.CatalogTTL))
	evaluator := service.NewEvaluator(customerRepo,
		service.WithLocation(loc),
		service.WithCurrency(cfg.CurrencySymbol),
		service.WithLookupTimeout(cfg.LookupTimeout),
		service.WithConcurrency(cfg.EvalConcurrency),
	)

	opts := []service.CoordinatorOption{
		service.WithMenu(itemRepo),
		service.WithOfferWriter(offerRepo),
	}
	if cfg.AMQPURL != "" {
		pub, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		opts = append(opts, service.WithPublisher(pub))
		slog.Info("publishing offer usage events", "exchange", cfg.AMQPExchange)
	}
	coordinator := service.NewCoordinator(evaluator, catalog, sessionRepo, usageRepo, opts...)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(coordinator),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown", "error", err)
		}
		close(idleConnsClosed)
	}()

	slog.Info("starting offer-service", "addr", cfg.HTTPAddr, "timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen")
	}

	<-idleConnsClosed
	slog.Info("server stopped")
	return nil
}
