package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"atelier-sync-core/internal/adapter"
	"atelier-sync-core/internal/config"
	"atelier-sync-core/internal/domain"
	"atelier-sync-core/internal/handler"
	"atelier-sync-core/internal/logging"
	"atelier-sync-core/internal/middleware"
	"atelier-sync-core/internal/notification"
	"atelier-sync-core/internal/repository"
	"atelier-sync-core/internal/service"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.SetDefault(logging.New(logging.Options{
		Level: parseLogLevel(cfg.Logging.Level),
		JSON:  cfg.Logging.JSON,
	}))

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		log.Fatalf("Failed to connect to CouchDB: %v", err)
	}

	exists, err := client.DBExists(context.Background(), cfg.Database.Name)
	if err != nil {
		log.Fatalf("Failed to check database existence: %v", err)
	}

	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Database.Name); err != nil {
			log.Fatalf("Failed to create database: %v", err)
		}
		logging.Info("created database", slog.String("name", cfg.Database.Name))
	}

	conflictRepo := repository.NewConflictRepository(client, cfg.Database.Name)
	changeRepo := repository.NewChangeRepository(client, cfg.Database.Name)
	deviceRepo := repository.NewDeviceRepository(client, cfg.Database.Name)
	settingsRepo := repository.NewSettingsRepository(client, cfg.Database.Name)

	bus := notification.NewBus()
	audit := notification.NewSlogAudit(logging.Default())
	bus.Subscribe(notification.AuditSubscriber(audit))

	hub := notification.NewHub(
		cfg.WebSocket.MaxClients,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
	)
	go hub.Run()
	bus.Subscribe(hub.EventHandler())

	defaults := domain.SyncSettings{
		Backend:          domain.SyncBackend(cfg.Adapter.Backend),
		AutoSync:         cfg.Sync.AutoSync,
		SyncIntervalSecs: int(cfg.Sync.SyncInterval / time.Second),
	}

	merger := service.NewMerger()
	conflictService := service.NewConflictService(conflictRepo, merger, bus)
	suggestionService := service.NewSuggestionService()
	changeService := service.NewChangeService(changeRepo, cfg.Sync.DeviceID)
	locks := service.NewLockManager(cfg.Sync.LockTTL)
	settings := service.NewStoredSettings(settingsRepo, defaults)

	transport, err := buildAdapter(cfg)
	if err != nil {
		log.Fatalf("Failed to configure sync backend: %v", err)
	}

	orchestrator := service.NewSyncOrchestrator(
		cfg.Sync.DeviceID,
		changeRepo,
		deviceRepo,
		conflictService,
		transport,
		service.NewRetryPolicy(),
		locks,
		bus,
		settings,
	)

	if err := registerLocalDevice(deviceRepo, cfg); err != nil {
		log.Fatalf("Failed to register local device: %v", err)
	}

	syncHandler := handler.NewSyncHandler(orchestrator, changeService)
	conflictHandler := handler.NewConflictHandler(conflictService, suggestionService)
	deviceHandler := handler.NewDeviceHandler(deviceRepo, cfg.Sync.DeviceID)
	settingsHandler := handler.NewSettingsHandler(settingsRepo, &defaults)
	wsHandler := handler.NewWebSocketHandler(hub)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/sync", syncHandler.Trigger).Methods("POST", "OPTIONS")
	api.HandleFunc("/sync/state", syncHandler.State).Methods("GET", "OPTIONS")

	api.HandleFunc("/changes", syncHandler.RecordChange).Methods("POST", "OPTIONS")
	api.HandleFunc("/changes", syncHandler.ChangeHistory).Methods("GET", "OPTIONS")

	api.HandleFunc("/conflicts", conflictHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/conflicts/{id}", conflictHandler.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/conflicts/{id}/resolve", conflictHandler.Resolve).Methods("POST", "OPTIONS")
	api.HandleFunc("/conflicts/{id}/suggestion", conflictHandler.Suggestion).Methods("GET", "OPTIONS")

	api.HandleFunc("/devices", deviceHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/devices/register", deviceHandler.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/devices/{id}", deviceHandler.Remove).Methods("DELETE", "OPTIONS")

	api.HandleFunc("/settings", settingsHandler.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/settings", settingsHandler.Update).Methods("PUT", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.Serve)
	r.HandleFunc("/health", healthHandler).Methods("GET")

	orchestrator.AutoSyncFromSettings()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Info("starting sync daemon",
			slog.String("addr", addr),
			slog.String("backend", cfg.Adapter.Backend),
			logging.Device(cfg.Sync.DeviceID),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("shutting down sync daemon")

	orchestrator.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logging.Info("sync daemon stopped")
}

func buildAdapter(cfg *config.Config) (adapter.Adapter, error) {
	switch domain.SyncBackend(cfg.Adapter.Backend) {
	case domain.BackendCloud:
		if cfg.Adapter.CloudURL == "" {
			return nil, fmt.Errorf("CLOUD_RELAY_URL is required for the cloud backend")
		}
		return adapter.NewCloudAdapter(cfg.Adapter.CloudURL, cfg.Sync.DeviceID, cfg.Adapter.CloudTokenSecret), nil

	case domain.BackendFilesystem:
		if cfg.Adapter.FilesystemDir == "" {
			return nil, fmt.Errorf("SHARED_SYNC_DIR is required for the filesystem backend")
		}
		return adapter.NewFilesystemAdapter(cfg.Adapter.FilesystemDir, cfg.Sync.DeviceID), nil

	case domain.BackendPeer:
		if cfg.Adapter.PeerAddr == "" {
			return nil, fmt.Errorf("PEER_ADDR is required for the peer backend")
		}
		return adapter.NewPeerAdapter(
			cfg.Adapter.PeerAddr,
			cfg.Sync.DeviceID,
			cfg.Adapter.PeerPairingSecret,
			cfg.Adapter.PeerSecretHash,
		), nil

	default:
		return nil, fmt.Errorf("unknown sync backend: %s", cfg.Adapter.Backend)
	}
}

func registerLocalDevice(devices repository.DeviceRepository, cfg *config.Config) error {
	return devices.Register(&domain.DeviceInfo{
		DeviceID:    cfg.Sync.DeviceID,
		Name:        cfg.Sync.DeviceName,
		OS:          runtime.GOOS,
		IsCurrent:   true,
		SyncEnabled: true,
		LastSeenAt:  time.Now().UTC(),
	})
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
