package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/takk/backend/internal/config"
	"github.com/takk/backend/internal/handler"
	"github.com/takk/backend/internal/logging"
	"github.com/takk/backend/internal/repository"
	"github.com/takk/backend/internal/service"
	"github.com/takk/backend/internal/storage"
	"github.com/takk/backend/internal/store"
	"github.com/takk/backend/pkg/vipps"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("invalid configuration", "error", err)
	}

	recordStore, cleanup, err := newStore(context.Background(), cfg)
	if err != nil {
		logging.Fatal("failed to open record store", "error", err)
	}
	defer cleanup()

	donationRepo := repository.NewDonationRepository(recordStore)
	grantRepo := repository.NewGrantRepository(recordStore)
	indexRepo := repository.NewIndexRepository(recordStore)

	providerClient := vipps.NewClient(vipps.Config{
		ClientID:        cfg.ProviderClientID,
		ClientSecret:    cfg.ProviderClientSecret,
		SubscriptionKey: cfg.ProviderSubscriptionKey,
		MerchantSerial:  cfg.MerchantSerialNumber,
		BaseURL:         cfg.ProviderBaseURL,
	})

	paymentService := service.NewPaymentService(providerClient, donationRepo, grantRepo, indexRepo, cfg.AssetKey)
	downloadService := service.NewDownloadService(grantRepo, donationRepo)
	assets := storage.NewLocalAssetStore(cfg.AssetDir)

	healthHandler := handler.NewHealthHandler(recordStore)
	webhookHandler := handler.NewWebhookHandler(paymentService, secretBytes(cfg.WebhookSecret))
	downloadHandler := handler.NewDownloadHandler(downloadService, assets)
	adminHandler := handler.NewAdminHandler(paymentService, indexRepo, cfg.AdminSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", healthHandler.Health)
	mux.HandleFunc("POST /api/webhooks/payment", webhookHandler.Webhook)
	mux.HandleFunc("GET /api/downloads/{downloadId}", downloadHandler.Download)
	mux.HandleFunc("POST /api/admin/capture", adminHandler.Capture)
	mux.HandleFunc("GET /api/admin/donations", adminHandler.ListDonations)

	rate := handler.NewRateLimiter(cfg.RateLimitPerMinute)
	root := handler.RequestLogger(handler.SecurityHeaders(rate.Middleware(mux)))

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      root,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", server.Addr, "store", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newStore opens the configured Record Store backend. The cleanup func is
// a no-op for backends without pooled connections.
func newStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		pool, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store.NewPgStore(pool), pool.Close, nil
	case "s3":
		s, err := store.NewS3StoreFromEnv(ctx, cfg.S3Bucket, cfg.S3Region)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		slog.Warn("using in-memory record store; data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}
}

func secretBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}
