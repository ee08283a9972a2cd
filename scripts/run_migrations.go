package main

import (
	"context"
	"log"
	"os"

	"github.com/safar/go-pos-store/internal/config"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down|seed]")
	}

	direction := os.Args[1]
	if direction != "up" && direction != "down" && direction != "seed" {
		log.Fatal("Direction must be 'up', 'down' or 'seed'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	switch direction {
	case "up":
		n, err := database.Migrate(ctx, db)
		if err != nil {
			log.Fatalf("Migrate up: %v", err)
		}
		log.Printf("Successfully ran %d migration(s) up", n)
	case "down":
		n, err := database.Rollback(ctx, db)
		if err != nil {
			log.Fatalf("Migrate down: %v", err)
		}
		log.Printf("Successfully ran %d migration(s) down", n)
	case "seed":
		n, err := store.SeedDefaultCategories(ctx, db)
		if err != nil {
			log.Fatalf("Seed categories: %v", err)
		}
		log.Printf("Created %d default categories", n)
	}
}
