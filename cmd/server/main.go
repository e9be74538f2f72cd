package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/colibrishin/dx-api-sub000/internal/config"
	"github.com/colibrishin/dx-api-sub000/internal/httpapi"
	"github.com/colibrishin/dx-api-sub000/internal/hub"
	"github.com/colibrishin/dx-api-sub000/internal/logging"
	"github.com/colibrishin/dx-api-sub000/internal/server"
	"github.com/colibrishin/dx-api-sub000/internal/session"
	"github.com/colibrishin/dx-api-sub000/internal/store"
	"github.com/colibrishin/dx-api-sub000/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	log, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func openStore(cfg config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("no database configured, keeping match results in memory")
		return store.NewMemoryStore(), nil
	}
	return store.OpenPostgres(cfg.DatabaseURL)
}

func run(cfg config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Without the session socket there is nothing to serve.
	ep, err := transport.Listen(cfg.UDPAddr,
		transport.WithLogger(log.Named("transport")),
		transport.WithQueueCapacity(cfg.QueueCapacity),
	)
	if err != nil {
		return err
	}
	st, err := openStore(cfg, log)
	if err != nil {
		return multierr.Append(err, ep.Close())
	}

	h := hub.NewHub(ctx)
	defer h.Close()
	reg := session.NewRegistry()
	srv := server.New(server.Config{
		LobbyBroadcastInterval: cfg.LobbyBroadcastInterval,
		SweepInterval:          cfg.SweepInterval,
		StaleAfter:             cfg.StaleAfter,
	}, ep, reg, h, st, log.Named("server"))
	defer func() { err = multierr.Append(err, srv.Close()) }()

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:      h,
			Registry: reg,
			Store:    st,
			Log:      log.Named("http"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("shutting down")
	return err
}
