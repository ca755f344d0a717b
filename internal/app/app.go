package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/yungbote/karatrack-backend/internal/data/repos"
	apphttp "github.com/yungbote/karatrack-backend/internal/http"
	"github.com/yungbote/karatrack-backend/internal/observability"
	"github.com/yungbote/karatrack-backend/internal/platform/envutil"
	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Server   *apphttp.Server
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)
	if err := cfg.Validate(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("config: %w", err)
	}

	otelShutdown := observability.InitOTel(context.Background(), log, cfg.Otel)
	if cfg.MetricsEnabled {
		observability.Init(log)
	}

	clients, err := wireClients(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}
	reposet, err := wireRepos(log, cfg)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}
	serviceset, err := wireServices(log, cfg, clients, reposet)
	if err != nil {
		reposet.Close()
		clients.Close()
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		otelShutdown: otelShutdown,
	}
	if cfg.RunAPI {
		handlerset := wireHandlers(log, serviceset, reposet)
		middleware := wireMiddleware(log, cfg)
		a.Server = wireServer(log, cfg, handlerset, middleware)
	}
	return a, nil
}

// Start launches background work: the job worker and the Redis collector.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if rb, ok := a.Repos.JobRun.(repos.RedisBacked); ok && a.Cfg.MetricsEnabled {
		observability.Current().StartRedisCollector(ctx, a.Log, rb.Redis(), 15*time.Second)
	}
	if a.Services.JobWorker != nil {
		if err := a.Services.JobWorker.Start(ctx); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
	}
	return nil
}

// Run serves the API (when enabled) until SIGINT/SIGTERM, then drains.
func (a *App) Run() error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	if err := a.Start(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	if a.Server != nil {
		go func() {
			a.Log.Info("HTTP server listening", "addr", a.Cfg.Addr())
			errCh <- a.Server.Run(a.Cfg.Addr())
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.Log.Info("Shutdown signal received")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("http shutdown: %w", err))
		}
	}
	return runErr
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Wait()
	}
	a.Repos.Close()
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
