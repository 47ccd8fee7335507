package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"speakup/internal/ai"
	"speakup/internal/api"
	"speakup/internal/config"
	"speakup/internal/conversation"
	"speakup/internal/db"
	"speakup/internal/evaluation"
	"speakup/internal/realtime"
	"speakup/internal/repository"
	"speakup/internal/scenario"
	"speakup/internal/scheduler"
	"speakup/internal/storage"
	"speakup/internal/stt"
	"speakup/internal/tts"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode (default to release mode)
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := openStore(cfg)

	catalog, err := scenario.Load(cfg.ScenarioConfig)
	if err != nil {
		log.Fatalf("Failed to load scenarios: %v", err)
	}
	templates, err := ai.LoadTemplates(cfg.PromptTemplates)
	if err != nil {
		log.Fatalf("Failed to load prompt templates: %v", err)
	}

	gen, err := ai.NewGenerator(cfg)
	if err != nil {
		log.Fatalf("Failed to create text generator: %v", err)
	}
	transcriber, err := stt.CreateProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create STT provider: %v", err)
	}
	log.Printf("Providers: generator=%s stt=%s", gen.Name(), transcriber.Name())

	var synthesizer tts.Synthesizer
	if s, err := tts.NewSynthesizer(cfg); err != nil {
		log.Printf("Warning: speech synthesis disabled: %v", err)
	} else {
		synthesizer = s
	}

	hub := realtime.NewHub()
	svc := conversation.NewService(conversation.Deps{
		Store:       store,
		Catalog:     catalog,
		Templates:   templates,
		Generator:   gen,
		Transcriber: transcriber,
		Synthesizer: synthesizer,
		Audio:       storage.NewAudioStore(cfg.AudioBaseDir),
		Evaluator:   evaluation.NewEngine(gen, store.Messages, store.Evaluations),
		Notifier:    hub,
	})

	if seeds, err := conversation.LoadSeed(cfg.ScenarioSeed); err != nil {
		log.Printf("Warning: %v", err)
	} else if _, err := svc.SeedScenarios(ctx, seeds); err != nil {
		log.Printf("Warning: failed to seed scenarios: %v", err)
	}

	sweeper := scheduler.New(svc, cfg.IdleSessionTimeout, scheduler.DefaultSweepInterval)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sweeper.Stop()

	r := gin.Default()
	r.Use(corsMiddleware(cfg.CORSOrigins))
	api.RegisterRoutes(r, api.NewHandler(svc, hub, cfg.JWTSecret, cfg.CORSOrigins))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("SpeakUp backend running on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// openStore falls back to process memory when no database can be opened.
func openStore(cfg *config.Config) *repository.Store {
	conn, err := db.Open(cfg)
	if err != nil {
		log.Printf("Warning: Failed to initialize database: %v. Continuing with in-memory storage.", err)
		return repository.NewMemoryStore().Store()
	}
	log.Println("Database and repository initialized successfully")
	return repository.NewGormStore(conn)
}

// corsMiddleware allows the configured browser origins
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{
			"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "accept", "origin", "Cache-Control", "X-Requested-With",
		}, ", "))
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
