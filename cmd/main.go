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

	"chatgogo/minichat/internal/api/handler"
	"chatgogo/minichat/internal/chathub"
	"chatgogo/minichat/internal/config"
	"chatgogo/minichat/internal/localization"
	"chatgogo/minichat/internal/metrics"
	"chatgogo/minichat/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func setupBroker(ctx context.Context, cfg config.ServerConfig) chathub.Broker {
	if cfg.RedisURL == "" {
		log.Println("INFO: REDIS_URL not set, broadcasting in process.")
		return chathub.NewLocalBroker()
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opts)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}
	log.Printf("INFO: broadcasting over Redis topic %q.", cfg.BroadcastTopic)
	return chathub.NewRedisBroker(rdb, cfg.BroadcastTopic)
}

func main() {
	log.Println("Starting minichat server...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := storage.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := storage.MigrateServer(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	users := storage.NewStorageService(db)

	loc, err := localization.NewLocalizer()
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	broker := setupBroker(ctx, cfg)
	defer broker.Close()

	hub := chathub.NewManagerService(users, broker, metrics.NewServer(reg), loc)
	hub.Language = cfg.Locale
	go func() {
		if err := hub.Run(ctx); err != nil {
			log.Printf("ERROR: chat hub stopped: %v", err)
			stop()
		}
	}()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := handler.NewRouter(handler.NewHandler(hub, cfg.FrameRate, cfg.FrameBurst, reg))

	server := &http.Server{
		Addr:           cfg.Addr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("INFO: listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("INFO: shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: HTTP shutdown: %v", err)
	}
	<-hub.Done()
}
