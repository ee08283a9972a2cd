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

	"github.com/safar/go-pos-store/internal/api"
	"github.com/safar/go-pos-store/internal/cache"
	"github.com/safar/go-pos-store/internal/checkout"
	"github.com/safar/go-pos-store/internal/config"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/receipt"
	"github.com/safar/go-pos-store/internal/report"
	"github.com/safar/go-pos-store/internal/session"
	"github.com/safar/go-pos-store/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database successfully")

	applied, err := database.Migrate(ctx, db)
	if err != nil {
		log.Fatalf("Run migrations: %v", err)
	}
	if applied > 0 {
		log.Printf("Applied %d migration(s)", applied)
	}

	seeded, err := store.SeedDefaultCategories(ctx, db)
	if err != nil {
		log.Fatalf("Seed categories: %v", err)
	}
	if seeded > 0 {
		log.Printf("Created %d default categories", seeded)
	}

	reader := report.NewReader(db)
	deps := api.Deps{
		Catalog:  store.NewCatalog(db),
		Checkout: checkout.NewRecorder(db, store.StockPolicyFor(cfg.Stock.AllowNegative)),
		Reports:  reader,
		Exporter: reader,
		Sessions: session.NewManager(cfg.Scanner.DetectionInterval),
		Receipts: receipt.NewRenderer(cfg.Receipt.StoreName, cfg.Receipt.Currency),
	}

	if cfg.Redis.Enabled {
		rdb, err := cache.ConnectRedis(&cfg.Redis)
		if err != nil {
			log.Fatalf("Connect to redis: %v", err)
		}
		defer rdb.Close()

		cached := cache.NewCachedReports(reader, rdb, cfg.Redis.ReportTTL)
		deps.Reports = cached
		deps.Invalidate = cached.Invalidate
		log.Printf("Report cache enabled at %s", cfg.Redis.Addr)
	}

	go deps.Sessions.RunExpiry(ctx, cfg.Session.IdleTimeout, time.Minute)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewServer(deps).Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
	log.Printf("Server stopped")
}
