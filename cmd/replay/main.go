package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"fleet-monitor/reconciler/internal/config"
	"fleet-monitor/reconciler/internal/logging"
	"fleet-monitor/reconciler/internal/reconcile"
	"fleet-monitor/reconciler/internal/store"
)

// replay re-drives one telemetry batch through the reconciler. With -dry-run
// the batch runs against an in-memory store seeded from the same file;
// otherwise it runs against the configured Postgres and Redis.
func main() {
	path := flag.String("file", "", "YAML batch file")
	dryRun := flag.Bool("dry-run", false, "run against an in-memory store seeded from the file")
	flag.Parse()

	if *path == "" {
		log.Fatal("-file is required")
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using system environment variables")
	}
	cfg := config.Load()
	logger := logging.New(os.Stderr, cfg.LogLevel, "text")

	fx, err := loadFixture(*path)
	if err != nil {
		log.Fatalf("Load failed: %v", err)
	}

	opts := []reconcile.Option{reconcile.WithLogger(logger)}
	if fx.Now != nil {
		now := fx.Now.UTC()
		opts = append(opts, reconcile.WithClock(func() time.Time { return now }))
	}

	ctx := context.Background()
	var processor *reconcile.Processor

	if *dryRun {
		mem := store.NewMemoryStore()
		if err := seed(mem, fx); err != nil {
			log.Fatalf("Seed failed: %v", err)
		}
		opts = append(opts, reconcile.WithHighWaterMarks(mem))
		processor = reconcile.NewProcessor(mem, mem, mem, opts...)
	} else {
		pg, err := store.NewPostgresStore(ctx, cfg)
		if err != nil {
			log.Fatalf("Connection failed: %v", err)
		}
		defer pg.Close()
		if cfg.HighWaterMarkEnabled {
			rdb, err := store.NewRedisStore(ctx, cfg)
			if err != nil {
				log.Fatalf("Connection failed: %v", err)
			}
			defer rdb.Close()
			opts = append(opts, reconcile.WithHighWaterMarks(rdb))
		}
		processor = reconcile.NewProcessor(pg, pg, pg, opts...)
	}

	res, procErr := processor.Process(ctx, fx.Events)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, g := range res.Groups {
		line := map[string]interface{}{
			"vehicle_id":    g.VehicleID,
			"odometer_high": g.OdometerHigh,
			"outcome":       g.Status,
			"trip_id":       g.TripID,
			"trip_status":   g.TripStatus,
			"alerts":        len(g.Alerts),
		}
		if g.Err != nil {
			line["error"] = g.Err.Error()
		}
		enc.Encode(line)
	}
	fmt.Fprintf(os.Stderr, "%d groups, %d failed, %d events dropped\n", len(res.Groups), res.Failed(), res.Dropped)

	if procErr != nil {
		os.Exit(1)
	}
}

func seed(mem *store.MemoryStore, fx *Fixture) error {
	trips, err := fx.trips()
	if err != nil {
		return err
	}
	consignments, err := fx.consignments()
	if err != nil {
		return err
	}
	for _, t := range trips {
		mem.PutTrip(t)
	}
	for _, c := range consignments {
		mem.PutConsignment(c)
	}
	return nil
}
