package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tamos/tamos-client-go/internal/api"
	"github.com/tamos/tamos-client-go/internal/bridge"
	"github.com/tamos/tamos-client-go/internal/config"
	"github.com/tamos/tamos-client-go/internal/middleware"
	"github.com/tamos/tamos-client-go/internal/poller"
	"github.com/tamos/tamos-client-go/internal/remote"
	"github.com/tamos/tamos-client-go/internal/repository"
	"github.com/tamos/tamos-client-go/internal/service"
	"github.com/tamos/tamos-client-go/internal/transport/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger := log.Default()

	// 初始化本地存储
	// The client keeps running without the store.
	policy := repository.LoadSkipCorrupt
	if cfg.Store.LoadPolicy == config.LoadPolicyStrict {
		policy = repository.LoadStrict
	}
	store := repository.NewShapeRepository(repository.ShapeStoreOptions{
		Path:       cfg.DBPath,
		LoadPolicy: policy,
		Logger:     logger,
	})
	if err := store.Initialize(); err != nil {
		logger.Printf("[shapes] store unavailable: %v", err)
	}
	defer store.Close()

	client, err := remote.NewClient(remote.Config{
		BaseURL:    cfg.Remote.BaseURL,
		Timeout:    cfg.RemoteTimeout(),
		AuthSecret: cfg.Remote.AuthSecret,
		ClientID:   cfg.ClientID,
		Logger:     logger,
	})
	if err != nil {
		log.Fatal("Failed to create remote client:", err)
	}

	b := bridge.New()
	coord := poller.New(client, client, b, poller.Options{
		Period:         cfg.PollInterval(),
		StartDelay:     cfg.StartDelay(),
		StrictOrdering: cfg.Polling.StrictOrdering,
		Logger:         logger,
	})
	simSvc := service.NewSimulationService(client, coord, b, logger)
	shapeSvc := service.NewShapeService(store, b, logger)
	feed := ws.NewServer(b, logger)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
		defer limiter.Close()
	}

	// 初始化路由
	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRouter(api.Deps{
		Simulation: simSvc,
		Shapes:     shapeSvc,
		Feed:       feed,
		Limiter:    limiter,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Server starting on port %s (remote %s)", cfg.Port, cfg.Remote.BaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("Server failed: %v", err)
		}
	}

	logger.Printf("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	coord.Close()
	simSvc.Close()
}
