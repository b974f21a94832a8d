package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"va-tasks/internal/api"
	"va-tasks/internal/config"
	"va-tasks/internal/logging"
	"va-tasks/internal/storage"
	"va-tasks/pkg/eventgraph"
	"va-tasks/pkg/suggest"
)

func main() {
	configPath := flag.String("config", os.Getenv("VA_CONFIG"), "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "va-tasks: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := storage.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer stores.Close()

	bus := eventgraph.NewBus(stores.Events)
	engine := suggest.New(stores.Tasks, bus, logger, suggest.WithListLimit(cfg.Suggest.ListLimit))
	handler := api.New(stores.Tasks, bus, engine, api.Options{
		Suggest: suggest.Options{
			Threshold:    cfg.Suggest.Threshold,
			TopK:         cfg.Suggest.TopK,
			IncludeSplit: cfg.Suggest.IncludeSplit,
		},
		Location:    cfg.Location(),
		CORSOrigins: cfg.Server.CORSOrigins,
		JWTSecret:   []byte(cfg.Auth.JWTSecret),
	}, logger)

	// Requests inherit ctx so open event streams end on shutdown.
	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     handler,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("va-tasks listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.Bool("auth", cfg.Auth.JWTSecret != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
