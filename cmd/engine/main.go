package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"jobboard-engine/internal/config"
	"jobboard-engine/internal/domain"
	"jobboard-engine/internal/events"
	"jobboard-engine/internal/geo"
	"jobboard-engine/internal/httpapi"
	"jobboard-engine/internal/identity"
	"jobboard-engine/internal/index"
	"jobboard-engine/internal/ledger"
	"jobboard-engine/internal/rank"
	"jobboard-engine/internal/store"
	"jobboard-engine/internal/sweep"
	"jobboard-engine/internal/taxonomy"
)

func main() {
	dataDir := os.Getenv("JOBBOARD_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// Single-instance guard: two engines over one sqlite file would fight
	// over the counters.
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("lock failed: %v", err)
	}
	if !locked {
		log.Fatalf("another engine instance holds %s", lock.Path())
	}
	defer lock.Unlock()

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		c, err := config.Load(userCfgPath)
		if err != nil {
			return c, err
		}
		if err := config.Validate(c); err != nil {
			return c, err
		}
		return c, nil
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	cfgVal.Store(cfg)
	currentCfg := func() config.Config { return cfgVal.Load().(config.Config) }

	dbPath := filepath.Join(dataDir, "jobboard.db")
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := store.Migrate(db.Pool); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub()

	// Projections: taxonomy counters and the search index are rebuilt from
	// the store on every start.
	tree := taxonomy.NewTree()
	cats, err := store.ListCategories(ctx, db.Pool)
	if err != nil {
		log.Fatalf("load categories: %v", err)
	}
	tree.Load(cats)
	openByLeaf, err := store.CountOpenJobsByCategory(ctx, db.Pool)
	if err != nil {
		log.Fatalf("count open jobs: %v", err)
	}
	if err := tree.Reconcile(ctx, openByLeaf); err != nil {
		log.Fatalf("reconcile counters: %v", err)
	}

	view := index.NewView()
	openJobs, err := store.ListOpenJobs(ctx, db.Pool)
	if err != nil {
		log.Fatalf("load open jobs: %v", err)
	}
	effectsByJob := make(map[int64][]domain.JobPromotionEffect, len(openJobs))
	for _, j := range openJobs {
		fx, err := store.ListEffectsByJob(ctx, db.Pool, j.ID)
		if err != nil {
			log.Fatalf("load effects for job %d: %v", j.ID, err)
		}
		if len(fx) > 0 {
			effectsByJob[j.ID] = fx
		}
	}
	view.Rebuild(openJobs, effectsByJob, time.Now().UTC())
	log.Printf("level=info msg=\"index rebuilt\" jobs=%d categories=%d", view.Len(), len(cats))

	ldg := ledger.New(db.Pool, view, hub)

	var resolver geo.Resolver
	if r, err := geo.LoadStatic(filepath.Join("config", "geo.yml")); err != nil {
		log.Printf("level=warn msg=\"geo data unavailable\" err=%v", err)
	} else {
		resolver = r
	}

	engine := rank.NewEngine(tree, view, resolver, currentCfg)

	var sweepStatus atomic.Value
	sweeper := sweep.New(db.Pool, ldg, tree, view, hub, &sweepStatus, time.Duration(cfg.Sweep.IntervalSeconds)*time.Second)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("sweeper start failed: %v", err)
	}
	defer sweeper.Stop()

	deps := httpapi.Deps{
		DB:          db.Pool,
		Hub:         hub,
		Tree:        tree,
		View:        view,
		Ledger:      ldg,
		Engine:      engine,
		Identity:    identity.ContextProvider{},
		CfgVal:      &cfgVal,
		SweepStatus: &sweepStatus,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
		RunSweep: func() (int, error) {
			return sweeper.RunOnce(ctx)
		},
	}
	handler := httpapi.Chain(
		httpapi.NewMux(deps),
		httpapi.Cors,
		httpapi.RequestID,
		httpapi.AccessLog,
		httpapi.Recover,
		httpapi.Identity,
		httpapi.RateLimit(cfg.Limits.SearchPerSecond, cfg.Limits.SearchBurst),
	)

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.App.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("level=info msg=\"engine listening\" addr=http://%s db=%s", addr, dbPath)

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("level=info msg=\"shutting down\"")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
