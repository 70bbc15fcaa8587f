package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/lumenforge/hdriatlas/biz/dal/model"
	"github.com/lumenforge/hdriatlas/biz/service"
	"github.com/lumenforge/hdriatlas/pkg/config"
	"github.com/lumenforge/hdriatlas/pkg/database"
	"github.com/lumenforge/hdriatlas/pkg/storage"
)

// Maintenance tool: removes pending ingest records left behind by crashes,
// releasing their fingerprints for re-ingest.
// Usage: go run script/purge_pending.go -older-than=24h

var olderThan = flag.Duration("older-than", 24*time.Hour, "purge pending records older than this")

func main() {
	flag.Parse()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&model.Asset{}); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}

	svc, err := service.NewService(db, store, cfg)
	if err != nil {
		log.Fatalf("init service: %v", err)
	}

	cutoff := time.Now().Add(-*olderThan)
	log.Printf("purging pending records older than %s (before %s)", *olderThan, cutoff.UTC().Format(time.RFC3339))

	purged, err := svc.PurgePendingBefore(context.Background(), cutoff)
	if err != nil {
		log.Fatalf("purge failed after %d records: %v", purged, err)
	}
	log.Printf("purged %d pending records", purged)
}
