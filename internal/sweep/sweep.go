// Package sweep runs the periodic expiry pass: promotion effects and
// entitlements whose windows closed are transitioned, and the category
// counters are reconciled against the store.
package sweep

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"jobboard-engine/internal/domain"
	"jobboard-engine/internal/events"
	"jobboard-engine/internal/httpapi"
	"jobboard-engine/internal/index"
	"jobboard-engine/internal/ledger"
	"jobboard-engine/internal/store"
	"jobboard-engine/internal/taxonomy"
)

type Sweeper struct {
	cron   *cron.Cron
	db     *sql.DB
	ledger *ledger.Ledger
	tree   *taxonomy.Tree
	view   *index.View
	hub    *events.Hub
	status *atomic.Value // stores httpapi.SweepStatus
	spec   string

	mu    sync.Mutex // one sweep at a time
	total int64
}

func New(db *sql.DB, l *ledger.Ledger, tree *taxonomy.Tree, view *index.View, hub *events.Hub, status *atomic.Value, interval time.Duration) *Sweeper {
	status.Store(httpapi.SweepStatus{})
	return &Sweeper{
		cron:   cron.New(),
		db:     db,
		ledger: l,
		tree:   tree,
		view:   view,
		hub:    hub,
		status: status,
		spec:   fmt.Sprintf("@every %ds", int(interval.Seconds())),
	}
}

// Start registers the job and runs one sweep immediately so restarts do
// not leave stale ACTIVE rows around until the first tick.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			log.Printf("level=error msg=\"sweep failed\" err=%v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("level=info msg=\"sweeper started\" spec=%q", s.spec)

	go func() {
		if _, err := s.RunOnce(ctx); err != nil {
			log.Printf("level=error msg=\"startup sweep failed\" err=%v", err)
		}
	}()
	return nil
}

func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	log.Printf("level=info msg=\"sweeper stopped\"")
}

// RunOnce sweeps expired rows and reconciles counters. Safe to call
// concurrently with the scheduled runs; the sweep itself is idempotent.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now().UTC()
	s.setStatus(func(st *httpapi.SweepStatus) {
		st.Running = true
		st.LastRunAt = started.Format(time.RFC3339)
	})

	expired, err := s.ledger.Sweep(ctx)
	if err == nil {
		var jobsExpired int
		jobsExpired, err = s.expireJobs(ctx)
		expired += jobsExpired
	}
	if err == nil {
		err = s.reconcile(ctx)
	}

	s.setStatus(func(st *httpapi.SweepStatus) {
		st.Running = false
		if err != nil {
			st.LastError = err.Error()
			return
		}
		st.LastError = ""
		st.LastOkAt = time.Now().UTC().Format(time.RFC3339)
		st.LastSwept = expired
		s.total += int64(expired)
		st.TotalSwept = s.total
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		log.Printf("level=info msg=\"sweep completed\" expired=%d dur_ms=%d", expired, time.Since(started).Milliseconds())
	}
	return expired, nil
}

// expireJobs transitions OPEN jobs past their window to EXPIRED and drops
// them from the search projection.
func (s *Sweeper) expireJobs(ctx context.Context) (int, error) {
	jobs, err := store.ListExpiredOpenJobs(ctx, s.db, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("list expired jobs: %w", err)
	}
	for _, j := range jobs {
		if err := store.UpdateJobStatus(ctx, s.db, j.ID, domain.JobExpired); err != nil {
			return 0, fmt.Errorf("expire job %d: %w", j.ID, err)
		}
		if err := s.tree.OnJobClosedOrRemoved(j.CategoryID); err != nil {
			log.Printf("level=warn msg=\"counter roll-down failed\" job_id=%d category_id=%d err=%v", j.ID, j.CategoryID, err)
		}
		s.view.Remove(j.ID)
		s.hub.Publish(events.MakeEvent("", events.TypeJobClosed, 1,
			map[string]any{"id": j.ID, "status": domain.JobExpired}))
	}
	return len(jobs), nil
}

func (s *Sweeper) reconcile(ctx context.Context) error {
	openByLeaf, err := store.CountOpenJobsByCategory(ctx, s.db)
	if err != nil {
		return fmt.Errorf("count open jobs: %w", err)
	}
	return s.tree.Reconcile(ctx, openByLeaf)
}

func (s *Sweeper) setStatus(mut func(*httpapi.SweepStatus)) {
	st, _ := s.status.Load().(httpapi.SweepStatus)
	mut(&st)
	s.status.Store(st)
}
