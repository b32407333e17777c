package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"todo_backend/internal/cache"
	"todo_backend/internal/config"
	"todo_backend/internal/db"
	httpServer "todo_backend/internal/http"
	"todo_backend/internal/http/handlers"
	"todo_backend/internal/http/middleware"
	"todo_backend/internal/logger"
	"todo_backend/internal/migrations"
	"todo_backend/internal/repository"
	"todo_backend/internal/rpc"
	"todo_backend/internal/service"
	"todo_backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("open store", "driver", cfg.StoreDriver, "error", err)
	}
	defer closeStore()

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = db.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			// Redis only adds caching and fan-out; run without it.
			logger.Warn("redis unavailable, continuing without it", "error", err)
			rdb = nil
		}
	} else {
		logger.Info("redis not configured; cache and cross-instance fan-out disabled")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var todoCache service.ListCache
	if rdb != nil {
		todoCache = cache.NewTodoCache(rdb, cfg.CacheTTL)
	}
	middleware.InitRedisRateLimiter(rdb)

	svc := service.NewTodoService(store, todoCache)
	dispatcher := rpc.NewDispatcher(svc)
	hub := ws.NewHub(svc, dispatcher)
	svc.AddNotifier(hub)
	go hub.Run(ctx)

	checks := map[string]handlers.Pinger{}
	if rdb != nil {
		bridge := ws.NewRedisBridge(rdb, hub)
		hub.SetPublisher(bridge)
		go bridge.Run(ctx)
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	gin.SetMode(gin.ReleaseMode)
	r := httpServer.NewRouter(httpServer.Deps{
		Todos:  svc,
		RPC:    dispatcher,
		Hub:    hub,
		Config: cfg,
		Checks: checks,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "store", cfg.StoreDriver, "redis", rdb != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.TodoStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return repository.NewMemoryTodoRepository(), func() {}, nil

	case config.StorePostgres:
		if cfg.MigrateOnStart {
			if err := migrations.Up(ctx, cfg.DatabaseURL); err != nil {
				return nil, nil, err
			}
		}
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewTodoRepository(pool), pool.Close, nil

	case config.StoreSQLite:
		store, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("sqlite store opened", "path", cfg.SQLitePath)
		return store, func() { _ = store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
