package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/cache"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/config"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/fairness"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/handler"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/middleware"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/repository"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/router"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/service"

	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Mochi API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	if cfg.App.IsProduction() && cfg.Pack.ServerSeed == "dev-server-seed" {
		log.Fatal("PACK_SERVER_SEED must be set in production")
	}

	// Initialize pack store based on config
	var store *repository.Store
	var err error
	switch cfg.Database.Type {
	case "mysql":
		store, err = repository.OpenMySQL(cfg.Database.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL: %v", err)
		}
		log.Println("MySQL pack store initialized")
	default: // sqlite
		store, err = repository.OpenSQLite(cfg.Database.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		log.Println("SQLite pack store initialized")
	}
	defer store.Close()

	// Initialize Redis client (optional; memory fallbacks below)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddress(),
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed: %v", err)
		redisClient = nil
	} else {
		log.Println("Redis client initialized")
	}
	cancel()

	// Cache, token sessions and rate limits all ride on the same Redis.
	var appCache cache.Cache
	var tokenService *service.TokenService
	var limiter *service.RateLimiter
	if redisClient != nil && cfg.Cache.Type == "redis" {
		appCache = cache.NewRedisCache(redisClient)
	} else {
		memCache := cache.NewMemoryCache()
		defer memCache.Close()
		appCache = memCache
	}
	if redisClient != nil {
		tokenService = service.NewTokenService(redisClient)
		limiter = service.NewRateLimiter(redisClient)
	}

	// Initialize services
	authority := fairness.New(cfg.Pack.ServerSeed)
	log.Printf("Fairness commitment: %s", authority.Commitment())

	packService := service.NewPackService(store, authority, appCache, limiter).
		WithSessionTTL(cfg.Pack.SessionTTL)

	sweeper := service.NewExpirySweeper(store, service.SweeperConfig{
		Interval: cfg.Pack.SweepInterval,
	})
	sweeper.Start()
	defer sweeper.Stop()

	gateway := service.LogGateway{}

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Version)
	packHandler := handler.NewPackHandler(packService, gateway)
	fairnessHandler := handler.NewFairnessHandler(packService)
	adminHandler := handler.NewAdminHandler(packService, sweeper, tokenService, store, cfg.App.AdminKey, cfg.Database.Type)
	catalogHandler := handler.NewCatalogHandler(store, packService)

	// Admin auth middleware with injected dependencies (NO GLOBALS!)
	adminAuth := middleware.NewAdminAuth(middleware.AdminAuthConfig{
		TokenService: tokenService,
		AdminKey:     cfg.App.AdminKey,
	})

	// Create router
	r := router.New(router.Config{
		Handler:         healthHandler,
		PackHandler:     packHandler,
		FairnessHandler: fairnessHandler,
		AdminHandler:    adminHandler,
		CatalogHandler:  catalogHandler,
		AdminAuth:       adminAuth,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
