package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transcript-tool/internal/app"
	"transcript-tool/internal/config"
	"transcript-tool/internal/database"
	"transcript-tool/internal/handlers"
	"transcript-tool/internal/middleware"
	"transcript-tool/internal/router"
	"transcript-tool/internal/services"
	"transcript-tool/internal/websocket"
	"transcript-tool/internal/worker"
)

func main() {
	log.Println("🚀 Starting transcript server...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Configuration loaded")

	// ──── Step 2: Run Database Migrations ────
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Step 3: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 4: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 5: Transcription Stack ────
	core, err := app.NewCore(context.Background(), cfg, pool, services.NewGeminiBackend)
	if err != nil {
		log.Fatalf("✗ Service initialization failed: %v", err)
	}
	log.Printf("✓ Key pool loaded (%d usable keys)", len(core.KeyPool.ListCandidates()))

	// ──── Step 6: Start Job Worker Pool ────
	publisher := services.NewUpdatePublisher(redisClients.Queue)
	workerPool := worker.NewPool(redisClients.Queue, core.Transcriber, core.Jobs, publisher, cfg.WorkerCount)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, core.Sessions)
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	submitLimiter := middleware.NewRateLimiter(10, time.Minute)
	defer submitLimiter.Stop()

	r := router.New(router.Handlers{
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"postgres": pool,
			"redis":    handlers.PingFunc(func(ctx context.Context) error { return redisClients.Queue.Ping(ctx).Err() }),
		}),
		Session:       handlers.NewSessionHandler(core.Sessions),
		Transcription: handlers.NewTranscriptionHandler(core.Sessions, core.Jobs, worker.NewQueue(redisClients.Queue), cfg.StoragePath, cfg.MaxUploadMB),
		Transcript:    handlers.NewTranscriptHandler(core.Sessions, core.Transcripts),
		Chat:          handlers.NewChatHandler(core.Sessions, core.Messages, core.Chat),
		Keys:          handlers.NewKeyHandler(core.Credentials, core.KeyPool),
		WebSocket:     wsHub.HandleWebSocket,
	}, submitLimiter, cfg.FrontendURL)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 5 * time.Minute,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Transcript server ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws?session=<id>", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
