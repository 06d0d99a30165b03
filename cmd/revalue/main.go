package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"assetflow.org/internal/lifecycle"
	"assetflow.org/internal/obs"
	"assetflow.org/internal/rbac"
	"assetflow.org/internal/store/pg"
)

// revalue recomputes the book value of every non-retired asset. Run it from
// cron at period close; reruns are harmless because unchanged assets are
// skipped without a version bump.
func main() {
	log.SetFlags(0)
	var (
		dsn   = flag.String("dsn", os.Getenv("ASSETFLOW_PG_DSN"), "PostgreSQL DSN")
		asOf  = flag.String("as-of", "", "Valuation date (YYYY-MM-DD), defaults to now")
		asRaw = flag.String("role", string(rbac.RoleFinance), "Acting role for the batch")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or ASSETFLOW_PG_DSN")
	}

	role, err := rbac.ParseRole(*asRaw)
	if err != nil {
		log.Fatalf("role: %v", err)
	}

	var when time.Time
	if *asOf != "" {
		when, err = time.Parse(time.DateOnly, *asOf)
		if err != nil {
			log.Fatalf("as-of: %v", err)
		}
	}

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	engine, err := lifecycle.New(store)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := engine.Revalue(ctx, role, when)
	if err != nil {
		log.Fatalf("revalue: %v", err)
	}
	obs.ObserveRevaluedAssets(report.Updated)

	log.Printf("revalued as of %s: examined=%d updated=%d unchanged=%d failed=%d",
		report.AsOf.Format(time.RFC3339), report.Examined, report.Updated, report.Unchanged, report.Failed)
	if report.Failed > 0 {
		os.Exit(1)
	}
}
