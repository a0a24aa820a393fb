package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/visual-search/internal/cfg"
	v1Grpc "github.com/DRSN-tech/visual-search/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/visual-search/internal/delivery/v1/http"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg       *config.Config
	logger    logger.Logger
	container *Container
	health    *v1Grpc.HealthService
	grpcSrv   *v1Grpc.GRPCServer
	httpSrv   *v1Http.Server
}

func NewApp(cfg *config.Config, logger logger.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	container, err := NewContainer(initCtx, cfg, logger)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	health := v1Grpc.NewHealthService(logger)
	grpcSrv := v1Grpc.NewGRPCServer(cfg.Grpc, logger)
	grpcSrv.RegisterServices(health)

	r := chi.NewRouter()
	v1Http.NewRouter(r, logger).Init(container.SearchUC, container.CatalogUC, cfg.Http)
	httpSrv := v1Http.NewServer(r, cfg.Http)

	// Closer закрывает в обратном порядке: сначала серверы, затем ресурсы контейнера.
	container.Closer.AddSimple("health", func() error {
		health.Shutdown()
		return nil
	})
	container.Closer.Add("grpc server", grpcSrv.Stop)
	container.Closer.Add("http server", httpSrv.Stop)

	return &App{
		cfg:       cfg,
		logger:    logger,
		container: container,
		health:    health,
		grpcSrv:   grpcSrv,
		httpSrv:   httpSrv,
	}, nil
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.initBackbone(ctx)

	errCh := make(chan error, 2)
	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			a.logger.Errorf(err, "gRPC server failed")
			errCh <- err
		}
	}()

	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf(err, "HTTP server failed")
			errCh <- err
		}
	}()

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "server fatal error")
	case <-ctx.Done():
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.container.Closer.Close(shutdownCtx); err != nil {
		a.logger.Errorf(err, "shutdown error")
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}

// initBackbone загружает модель в фоне. До её готовности health-сервис отвечает NOT_SERVING,
// а поиск возвращает ErrModelNotReady.
func (a *App) initBackbone(ctx context.Context) {
	initCtx, cancel := context.WithTimeout(ctx, a.cfg.Backbone.InitTimeout)
	defer cancel()

	start := time.Now()
	if err := a.container.Backbone.Init(initCtx); err != nil {
		a.logger.Errorf(err, "failed to initialize backbone %s", a.container.Backbone.Name())
		return
	}

	a.logger.Infof("backbone %s ready in %s", a.container.Backbone.Name(), time.Since(start).Round(time.Millisecond))
	a.health.SetServing(true)
}
