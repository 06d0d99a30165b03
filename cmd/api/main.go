package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assetflow.org/internal/config"
	"assetflow.org/internal/httpapi"
	"assetflow.org/internal/lifecycle"
	"assetflow.org/internal/notify"
	"assetflow.org/internal/obs"
	"assetflow.org/internal/store/memory"
	"assetflow.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "none"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.AuthSecret == "" {
		log.Println("no ASSETFLOW_AUTH_SECRET set, bearer tokens cannot be validated; X-Role header auth only")
	}

	// Postgres when a DSN is configured, in-memory otherwise. The memory
	// store suits local development and demos; state is lost on restart.
	var (
		store httpapi.Store
		db    *sql.DB
	)
	if cfg.PostgresDSN != "" {
		pgStore, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		db = pgStore.DB()
	} else {
		log.Println("no ASSETFLOW_PG_DSN set, using in-memory store")
		store = memory.New()
	}

	engine, err := lifecycle.New(store)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	stream := notify.NewStream()
	api := httpapi.New(engine, store, stream, httpapi.ReadyProbe{DB: db}, version)
	api.SetLimits(httpapi.Limits{
		RateBurst:    cfg.RateLimitBurst,
		RatePerSec:   cfg.RateLimitPerSec,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting assetflow-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
