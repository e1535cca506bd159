package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/visionwell/vision-screening/backend/internal/adapters/database"
	"github.com/visionwell/vision-screening/backend/internal/adapters/providers/directory"
	"github.com/visionwell/vision-screening/backend/internal/adapters/search"
	"github.com/visionwell/vision-screening/backend/internal/application/services"
	domainproviders "github.com/visionwell/vision-screening/backend/internal/domain/providers"
	"github.com/visionwell/vision-screening/backend/internal/infrastructure/clients/postgres"
	"github.com/visionwell/vision-screening/backend/internal/infrastructure/clients/typesense"
	"github.com/visionwell/vision-screening/backend/pkg/config"
)

const outcomesCollection = "screening_outcomes"

// Backfills the outcome search index from completed sessions in Postgres.
// Runs once by default; with -interval it keeps reindexing on a timer.
func main() {
	var reset bool
	var batchSize int
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete the existing Typesense collection before reindexing")
	flag.IntVar(&batchSize, "batch", 100, "number of sessions fetched per page")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	var err error
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatalf("Invalid interval %q: %v", intervalValue, err)
		}
		if interval <= 0 {
			log.Fatalf("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, reset, batchSize); err != nil {
			log.Printf("Reindex failed: %v", err)
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Printf("Reindex complete. Next run in %s.", interval)

		select {
		case <-ctx.Done():
			log.Println("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, reset bool, batchSize int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	sessionRepo := database.NewSessionAdapter(pgClient)

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Println("Deleting outcomes collection before reindexing")
		if _, err := tsClient.Client().Collection(outcomesCollection).Delete(ctx); err != nil {
			log.Printf("Warning: failed to delete collection: %v", err)
		}
	}

	searchAdapter := search.NewTypesenseAdapter(tsClient)
	if err := searchAdapter.InitSchema(ctx); err != nil {
		return err
	}

	// Directory lookups are best-effort and need a service credential. Without
	// one, outcomes are indexed from session data alone.
	var directoryProvider domainproviders.DirectoryProvider
	if token := os.Getenv("SERVICE_TOKEN"); token != "" {
		ctx = domainproviders.WithToken(ctx, token)
		directoryProvider = directory.NewDirectoryProvider(cfg.Directory.BaseURL, cfg.Directory.Timeout, domainproviders.ContextCredentialProvider{})
	} else {
		log.Println("SERVICE_TOKEN not set; indexing without student display fields")
	}

	historyService := services.NewHistoryService(sessionRepo, searchAdapter, directoryProvider)

	indexed, err := historyService.Backfill(ctx, batchSize)
	if err != nil {
		return err
	}

	log.Printf("Indexed %d completed sessions", indexed)
	return nil
}
