package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mamounbq1/Info-Plat-sub004/internal/claimsync"
	"github.com/mamounbq1/Info-Plat-sub004/internal/config"
	internalhttp "github.com/mamounbq1/Info-Plat-sub004/internal/http"
	"github.com/mamounbq1/Info-Plat-sub004/internal/issuer"
	"github.com/mamounbq1/Info-Plat-sub004/internal/jobs"
	"github.com/mamounbq1/Info-Plat-sub004/internal/repository"
)

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatalf("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()
	store := repository.NewStore(pool)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("redis ping failed: %v", err)
	}
	cancel()
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
	}()

	claimsIssuer := issuer.NewRedisIssuer(redisClient)
	synchronizer := claimsync.NewSynchronizer(claimsIssuer, store, claimsync.RetryPolicy{
		BaseDelay:   cfg.SyncRetryBaseDelay,
		MaxAttempts: cfg.SyncRetryMaxAttempts,
	})
	refresher := claimsync.NewRefreshService(store, synchronizer)

	jobs.StartOutboxDispatcher(ctx, cfg, store, synchronizer)

	server := internalhttp.NewServer(cfg, store, claimsIssuer, refresher)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("authsync http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
