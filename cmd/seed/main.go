package main

import (
	"context"
	"log"
	"os"
	"time"

	"casehub-backend/internal/casestudies"
	"casehub-backend/internal/config"
	"casehub-backend/internal/db"
)

// seed loads a cases.json export into an empty case_studies collection.
// SEED_FORCE=true replaces a non-empty collection.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	path := envOrDefault("SEED_CASES_FILE", "./content/cases.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("seed read %s: %v", path, err)
	}
	items, err := casestudies.DecodeCollection(raw)
	if err != nil {
		log.Fatalf("seed decode %s: %v", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close(context.Background())

	if err := database.EnsureIndexes(ctx); err != nil {
		log.Fatal(err)
	}

	service := casestudies.NewService(casestudies.NewRepository(database.CaseStudies), nil, 0, cfg.Timezone, nil)
	existing, err := service.LoadAll(ctx)
	if err != nil {
		log.Fatal(err)
	}
	if len(existing) > 0 && envOrDefault("SEED_FORCE", "false") != "true" {
		log.Printf("seed skipped: %d case studies already stored (set SEED_FORCE=true to replace)", len(existing))
		return
	}

	if err := service.SaveAll(ctx, items); err != nil {
		log.Fatalf("seed save: %v", err)
	}
	log.Printf("seed completed: %d case studies from %s", len(items), path)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
