package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ticket-sync-service/internal/api"
	"ticket-sync-service/internal/config"
	"ticket-sync-service/internal/database"
	"ticket-sync-service/internal/logger"
	"ticket-sync-service/internal/remote"
	"ticket-sync-service/internal/store"
	"ticket-sync-service/internal/sync"
)

func main() {
	// Load Config
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Init Logger
	if err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Log.Info("Starting ticket sync service")

	// Init Local Store. Initialization failure is fatal.
	localStore, err := openStore(cfg.Storage)
	if err != nil {
		logger.Log.Fatal("Failed to open local store", zap.Error(err))
	}
	defer localStore.Close()

	if err := localStore.Initialize(context.Background()); err != nil {
		logger.Log.Fatal("Failed to initialize local store", zap.Error(err))
	}

	// Remote backend client
	client := remote.NewHTTPClient(cfg.Backend)

	// Network monitor polling the backend
	probe := sync.HTTPProbe(cfg.Backend.BaseURL, cfg.Backend.GetRequestTimeout())
	monitor := sync.NewNetworkMonitor(probe, cfg.Sync.GetMonitorInterval())

	// Sync orchestrator
	orchestrator := sync.NewOrchestrator(localStore, client, monitor, cfg.Sync.AutoSync)

	if err := monitor.Start(); err != nil {
		logger.Log.Fatal("Failed to start network monitor", zap.Error(err))
	}
	defer monitor.Stop()

	// Init API
	handler := api.NewHandler(orchestrator, localStore, cfg.Server)
	router := handler.Routes()

	// Start Server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down...")
	if err := server.Shutdown(context.Background()); err != nil {
		logger.Log.Error("Server shutdown failed", zap.Error(err))
	}
}

// openStore selects the storage backend once at startup: SQLite where a
// storage engine is available, the in-memory key-value fallback otherwise.
func openStore(cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "", "sqlite":
		db, err := database.NewDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return store.NewSQLiteStore(db), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
