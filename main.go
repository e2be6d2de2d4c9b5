package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"lesson-sync/internal/auth"
	"lesson-sync/internal/common/logging"
	"lesson-sync/internal/config"
	"lesson-sync/internal/handlers"
	"lesson-sync/internal/redis"
	"lesson-sync/internal/scheduler"
	"lesson-sync/internal/sources"
	"lesson-sync/internal/sources/caldotcom"
	"lesson-sync/internal/sources/googlecal"
	"lesson-sync/internal/sources/icsfeed"
	"lesson-sync/internal/storage"
	"lesson-sync/internal/syncer"
)

func main() {
	godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	store, err := storage.NewStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	var locker syncer.Locker
	if cfg.RedisAddress != "" {
		redisDB, _ := strconv.Atoi(cfg.RedisDB)
		poolSize, _ := strconv.Atoi(cfg.RedisPoolSize)
		redisClient, err := redis.NewClient(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       redisDB,
			PoolSize: poolSize,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		locker = redisClient
		logger.Info("distributed sync lock enabled", logging.String("redis", cfg.RedisAddress))
	}

	srcs, err := buildSources(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize booking sources: %v", err)
	}
	if len(srcs) == 0 {
		logger.Warn("no booking sources configured, only webhook ingestion is active")
	}
	for _, src := range srcs {
		logger.Info("booking source configured", logging.String("source", string(src.Name())))
	}

	syncCore := syncer.New(store, srcs, syncer.Options{
		WindowDays:      cfg.WindowDays(),
		DefaultLocation: cfg.DefaultLessonLocation,
		Locker:          locker,
		Logger:          logger,
	})

	sched, err := scheduler.New(syncCore, cfg.SyncSchedule, cfg.MinInterval(), logger)
	if err != nil {
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	h := handlers.New(store, syncCore, sched, cfg)
	authHandler := auth.New(cfg.JWTSecret)

	router := mux.NewRouter()
	h.RegisterRoutes(router, authHandler)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server starting", logging.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server exited")
}

// buildSources assembles the pull sources the configuration enables.
// Each source is optional; a deployment may run on webhooks alone.
func buildSources(cfg *config.Config) ([]sources.Source, error) {
	var srcs []sources.Source

	if cfg.GoogleClientID != "" {
		src, err := googlecal.NewSource(context.Background(), &googlecal.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RefreshToken: cfg.GoogleRefreshToken,
			CalendarID:   cfg.GoogleCalendarID,
		})
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, src)
	}

	if cfg.CalComAPIKey != "" {
		src, err := caldotcom.NewSource(&caldotcom.Config{
			BaseURL: cfg.CalComAPIURL,
			APIKey:  cfg.CalComAPIKey,
		})
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, src)
	}

	if cfg.ICSFeedURL != "" {
		src, err := icsfeed.NewSource(&icsfeed.Config{FeedURL: cfg.ICSFeedURL})
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, src)
	}

	return srcs, nil
}
