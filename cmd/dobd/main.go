package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"dob-backend/config"
	"dob-backend/internal/api"
	"dob-backend/internal/assignment"
	"dob-backend/internal/bridge"
	"dob-backend/internal/db"
	"dob-backend/internal/geo"
	"dob-backend/internal/logbook"
	"dob-backend/internal/model"
	"dob-backend/internal/mw"
	"dob-backend/internal/notification"
	"dob-backend/internal/observer"
	"dob-backend/internal/store"
)

// fanout forwards stored entries to every configured notifier.
type fanout []logbook.Notifier

func (f fanout) Publish(entry model.Entry) {
	for _, n := range f {
		n.Publish(entry)
	}
}

func main() {
	logger := log.New(os.Stdout, "dob-backend ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entryStore := store.NewGormStore(gormDB)
	logger.Println("entry store initialized")

	entryBridge := bridge.New()
	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
	workerPool.Start(ctx)

	responseCache := mw.NewOfficerCache(time.Duration(cfg.Server.CacheTTLSeconds) * time.Second)

	// The cache rides the notifier fan-out so auto-logged entries expire
	// cached reads, not just manual submissions.
	logbookSvc := logbook.NewService(entryStore, fanout{entryBridge, workerPool, responseCache})

	assignmentSvc := assignment.NewClient(cfg.Assignment.URL, cfg.Assignment.Headers, cfg.Assignment.PollInterval)
	geoProvider := geo.NewHTTPProvider(cfg.Geolocation.URL, cfg.Geolocation.Headers, cfg.Geolocation.Timeout)

	observerMgr := observer.NewManager(assignmentSvc, geoProvider, logbookSvc, observer.Options{
		GPSTimeout:      cfg.Geolocation.Timeout,
		PollInterval:    cfg.Geofence.PollInterval,
		ThresholdMeters: cfg.Geofence.ThresholdMeters,
	})
	defer observerMgr.StopAll()

	router := api.NewRouter(entryStore, logbookSvc, observerMgr, &webpushOptions, responseCache, api.RouterConfig{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
