package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iampurna/habit-island-core/internal/adapters/cache"
	adapterHTTP "github.com/iampurna/habit-island-core/internal/adapters/handler/http"
	"github.com/iampurna/habit-island-core/internal/adapters/repository"
	"github.com/iampurna/habit-island-core/internal/config"
	"github.com/iampurna/habit-island-core/internal/core/domain"
	"github.com/iampurna/habit-island-core/internal/core/growth"
	"github.com/iampurna/habit-island-core/internal/core/services"
	"github.com/iampurna/habit-island-core/internal/core/timeutil"
	"github.com/iampurna/habit-island-core/internal/core/workers"
)

func main() {
	startTime := time.Now()
	cfg := config.Load()

	log.Println("Connecting to database...")

	db, err := sqlx.Connect("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("Critical: Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Println("Database connected successfully.")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var habits domain.HabitRepository = repository.NewPostgresHabitRepository(db)
	completionRepo := repository.NewPostgresCompletionRepository(db)
	xpRepo := repository.NewPostgresXPEventRepository(db)
	userRepo := repository.NewPostgresUserRepository(db)

	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Printf("Redis unavailable, running without cache and rate limiter: %v", err)
		redisClient = nil
	} else {
		habits = repository.NewCachedHabitRepository(habits, redisClient)
	}

	localStore, err := repository.NewSQLiteLocalStore(cfg.LocalDBPath, cfg.Rules.SyncQueueMax)
	if err != nil {
		log.Fatalf("Critical: Failed to open local store: %v", err)
	}
	defer localStore.Close()

	clock := timeutil.SystemClock{}
	days := timeutil.NewDayResolver(cfg.Rules.GracePeriod)
	growthEngine := growth.NewEngine(cfg.Rules.StageThresholds, cfg.Rules.ShieldWindow, days)

	auditWorker := workers.NewLedgerAuditWorker(habits, completionRepo, days, clock)
	auditWorker.Start(ctx)

	xpService := services.NewXPService(xpRepo, userRepo, days, clock, cfg.Rules)
	habitService := services.NewHabitService(habits, completionRepo, userRepo, xpService, growthEngine, days, clock, cfg.Rules, localStore)
	syncService := services.NewSyncService(localStore, habits, completionRepo, userRepo, auditWorker, clock, cfg.Rules)
	statsService := services.NewStatsService(habits, completionRepo, days)
	tokenService := services.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, 24*time.Hour)

	router := adapterHTTP.NewRouter(adapterHTTP.RouterDependencies{
		HabitHandler: adapterHTTP.NewHabitHandler(habitService),
		XPHandler:    adapterHTTP.NewXPHandler(xpService),
		SyncHandler:  adapterHTTP.NewSyncHandler(syncService),
		StatsHandler: adapterHTTP.NewStatsHandler(statsService),
		Validator:    tokenService,
		DB:           db,
		Redis:        redisClient,
		StartTime:    startTime,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Habit Island Core running on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Critical server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Stop signal received. Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Forced shutdown error:", err)
	}

	log.Println("Server stopped gracefully.")
}
