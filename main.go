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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Tom-dlhy/local-llm-consensus-engine/api"
	"github.com/Tom-dlhy/local-llm-consensus-engine/broadcast"
	"github.com/Tom-dlhy/local-llm-consensus-engine/config"
	"github.com/Tom-dlhy/local-llm-consensus-engine/council"
	"github.com/Tom-dlhy/local-llm-consensus-engine/ollama"
	"github.com/Tom-dlhy/local-llm-consensus-engine/policy"
	"github.com/Tom-dlhy/local-llm-consensus-engine/store"
	"github.com/Tom-dlhy/local-llm-consensus-engine/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting consensus engine...")
	log.Printf("Role: %s", cfg.Role)
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Inference endpoint: %s", cfg.InferenceBaseURL())

	// Initialize store
	var sessionStore store.Store
	if cfg.DatabaseURL != "" {
		sqliteStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize store: %v", err)
		}
		sessionStore = sqliteStore
		log.Printf("Sessions persisted to %s", cfg.DatabaseURL)
	} else {
		sessionStore = store.NewMemoryStore()
		log.Printf("Sessions kept in memory")
	}
	defer sessionStore.Close()

	// Initialize inference client
	ollamaClient := ollama.NewClient(cfg.InferenceBaseURL(), cfg.ConnectTimeout, cfg.GenerateTimeout)

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize service and transports
	broker := broadcast.NewBroker()
	svc := council.New(sessionStore, ollamaClient, broker, policyEngine, cfg)
	wsServer := ws.NewServer(svc)
	h := api.NewHandler(svc, ollamaClient, wsServer, cfg)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register routes
	h.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down consensus engine...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Consensus engine stopped")
}
