package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stayops/guest-insights/internal/api"
	"github.com/stayops/guest-insights/internal/config"
	"github.com/stayops/guest-insights/internal/enrich"
	"github.com/stayops/guest-insights/internal/geocode"
	"github.com/stayops/guest-insights/internal/openphone"
	"github.com/stayops/guest-insights/internal/repository/postgres"
	"github.com/stayops/guest-insights/internal/storage"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Printf("Storage initialized (type=%s)", cfg.Storage.Type)

	engine := enrich.NewEngine(cfg.Enrich.ChunkSize)

	var aggregator *openphone.Aggregator
	if cfg.OpenPhone.Enabled {
		aggregator, err = openphone.NewAggregator(cfg.OpenPhone)
		if err != nil {
			log.Fatalf("Failed to initialize communications aggregator: %v", err)
		}
		log.Printf("Communications aggregator initialized (%d credentials)", len(cfg.OpenPhone.APIKeys))
	}

	svc := api.NewService(store, engine, summaryProvider(aggregator))

	if cfg.OpenPhone.Enabled {
		svc.Register(enrich.NewCommsEnricher(aggregator, cfg.OpenPhone.Workers))
	}
	if cfg.Geocode.Enabled {
		svc.Register(enrich.NewGeocodeEnricher(geocode.NewClient(cfg.Geocode)))
		log.Println("Geocode enricher registered")
	}
	if cfg.Distance.Enabled {
		svc.Register(enrich.NewDistanceEnricher(
			geocode.NewDistanceClient(cfg.Distance, cfg.Property.Address)))
		log.Printf("Distance enricher registered (origin=%s)", cfg.Property.Name)
	}
	log.Printf("Enrichment kinds available: %v", svc.Kinds())

	// Optional durable job archive: lets in-memory sessions resume after
	// a restart.
	if cfg.Storage.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.Storage.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()

		repo := postgres.NewJobRepo(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := repo.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatalf("Failed to ensure job archive schema: %v", err)
		}
		cancel()
		svc.SetArchive(repo)
		log.Println("Job archive initialized (postgres)")
	}

	server := api.NewServer(cfg.Server, svc)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// summaryProvider avoids handing the service a non-nil interface wrapping
// a nil *Aggregator when communications are disabled.
func summaryProvider(agg *openphone.Aggregator) api.SummaryProvider {
	if agg == nil {
		return nil
	}
	return agg
}
