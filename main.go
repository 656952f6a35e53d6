package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dropdeck/dropdeck/pkg/api"
	"github.com/dropdeck/dropdeck/pkg/config"
	"github.com/dropdeck/dropdeck/pkg/history"
	"github.com/dropdeck/dropdeck/pkg/seed"
	"github.com/dropdeck/dropdeck/pkg/service"
	"github.com/dropdeck/dropdeck/pkg/store"
	"github.com/dropdeck/dropdeck/pkg/transfer"
	"github.com/dropdeck/dropdeck/pkg/types"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg, err := config.NewConfigManager().Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	files := store.NewFileStore()
	sessions := store.NewSessionStore()

	var events *history.Repository
	if cfg.History.Enabled {
		events, err = history.NewRepository(cfg.History.DSN)
		if err != nil {
			log.Fatal("Failed to open history log:", err)
		}
		defer events.Close()
	}

	seededSessions, seededFiles, err := seed.Load(cfg.Seed.Path, files, sessions)
	if err != nil {
		log.Fatal("Failed to load sample data:", err)
	}
	if seededSessions > 0 || seededFiles > 0 {
		log.Printf("Seeded %d sessions and %d files from %s", seededSessions, seededFiles, cfg.Seed.Path)
	}

	simulator := transfer.NewSimulator(transfer.Config{
		TickInterval: cfg.Upload.TickInterval,
		MaxIncrement: cfg.Upload.MaxIncrement,
		BaseURL:      cfg.Upload.RemoteBaseURL,
	})

	svcConfig := service.DefaultServiceConfig()
	svcConfig.MaxBatchSize = cfg.Upload.MaxBatchSize
	svcConfig.Constraints = types.Constraints{
		MaxFileSizeBytes: cfg.Upload.MaxFileSizeBytes,
		AcceptedTypes:    cfg.Upload.AcceptedTypes,
	}

	registry := service.NewServiceRegistry(files, sessions, simulator, events, svcConfig)

	hub := api.NewProgressHub(registry.StatsService, cfg.API.PollInterval)
	defer hub.Shutdown()
	registry.UploadService.AddListener(hub)

	router := gin.Default()
	api.NewAPI(registry, hub, cfg.API.Key).RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	registry.UploadService.Shutdown()
}
