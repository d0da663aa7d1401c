package main

import (
	"context"
	"log"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/groupbuy/api/handler"
	"github.com/fastygo/groupbuy/internal/config"
	"github.com/fastygo/groupbuy/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/groupbuy/internal/infrastructure/postgres"
	"github.com/fastygo/groupbuy/internal/middleware"
	"github.com/fastygo/groupbuy/internal/router"
	"github.com/fastygo/groupbuy/internal/services/lifecycle"
	"github.com/fastygo/groupbuy/pkg/httpcontext"
	"github.com/fastygo/groupbuy/pkg/logger"
	"github.com/fastygo/groupbuy/repository"
	"github.com/fastygo/groupbuy/repository/memory"
	"github.com/fastygo/groupbuy/repository/postgres"
	storeUC "github.com/fastygo/groupbuy/usecase/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Output:   cfg.Logger.Output,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	var (
		campaigns repository.CampaignStore
		checks    []monitor.Check
	)
	switch cfg.Store.Driver {
	case "memory":
		zapLogger.Warn("using in-memory campaign store; data is lost on restart")
		campaigns = memory.NewCampaignStore()
	default:
		if _, err := pgInfra.RunMigrations(appCtx, cfg.Database, cfg.Migrations, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}

		pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("postgres connection failed", zap.Error(err))
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pgInfra.Close(pool, zapLogger)
			return nil
		})
		campaigns = postgres.NewCampaignRepository(pool)
		checks = append(checks, monitor.PostgresCheck(pool, true))
	}

	mon := monitor.New(cfg.Monitor.Interval, zapLogger, checks...)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	storeUseCase := storeUC.New(campaigns, zapLogger)
	ctxAdapter := httpcontext.NewAdapter(appCtx, cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Campaign: apiHandler.NewCampaignHandler(storeUseCase, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, cfg.Store.Driver, ctxAdapter, zapLogger),
	}
	r := router.New(handlers, middleware.Recover(zapLogger), middleware.AccessLog(zapLogger))

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()), zap.String("store", cfg.Store.Driver))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
