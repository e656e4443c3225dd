// README: Entry point; loads config, wires services, starts HTTP server and optional sweeper.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"rally/internal/config"
	httptransport "rally/internal/http"
	"rally/internal/infra"
	"rally/internal/maps"
	"rally/internal/modules/arrival"
	"rally/internal/modules/event"
	"rally/internal/modules/location"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		slog.Error("connect postgres", "err", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
	if err != nil {
		slog.Error("maps route service", "err", err)
		os.Exit(1)
	}
	geocodeSvc, err := maps.NewGeocodeService(cfg.Maps.APIKey)
	if err != nil {
		slog.Error("maps geocode service", "err", err)
		os.Exit(1)
	}

	eventStore := event.NewStore(dbPool)
	eventSvc := event.NewService(eventStore, geocodeSvc)

	locationStore := location.NewStore(dbPool, redisClient)
	locationSvc := location.NewService(locationStore)

	arrivalStore := arrival.NewStore(dbPool)
	aggregator := arrival.NewAggregator(arrivalStore, routeSvc, locationSvc, cfg.Aggregation)

	if cfg.Sweep.Enabled {
		sweeper := arrival.NewSweeper(aggregator, eventSvc, cfg.Sweep.Interval)
		go sweeper.Run(ctx)
		slog.Info("sweeper enabled", "interval", cfg.Sweep.Interval)
	}

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Events:   eventSvc,
		Location: locationSvc,
		Arrivals: aggregator,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	slog.Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server", "err", err)
		os.Exit(1)
	}
}
