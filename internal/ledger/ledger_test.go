package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"jobboard-engine/internal/domain"
	"jobboard-engine/internal/index"
	"jobboard-engine/internal/store"
)

type fixture struct {
	ledger *Ledger
	view   *index.View
	db     *store.DB
	now    time.Time
	clock  *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db.Pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	view := index.NewView()
	l := New(db.Pool, view, nil).WithClock(func() time.Time { return clock })
	return &fixture{ledger: l, view: view, db: db, now: now, clock: &clock}
}

func (f *fixture) seedUnit(t *testing.T, id string, action domain.PromotionAction, value float64, days, usageLimit int) {
	t.Helper()
	u := domain.PromotionUnit{
		ID:          id,
		Action:      action,
		Target:      domain.TargetJobPost,
		DayDuration: days,
		Value:       value,
	}
	if usageLimit > 0 {
		u.IsUsageLimited = true
		u.UsageLimit = usageLimit
	}
	if days == 0 {
		u.IsLifeTime = true
	}
	if err := store.UpsertPromotionUnit(context.Background(), f.db.Pool, u); err != nil {
		t.Fatalf("seed unit: %v", err)
	}
}

func (f *fixture) seedOpenJob(t *testing.T) int64 {
	t.Helper()
	j := domain.Job{
		CategoryID:      3,
		EmploymentType:  domain.EmploymentFullTime,
		PositionType:    domain.PositionStaff,
		ExperienceLevel: domain.ExpOneToTwo,
		Title:           "Backend Engineer",
		Status:          domain.JobOpen,
		PostedAt:        f.now,
		ExpiresAt:       f.now.AddDate(0, 1, 0),
	}
	id, err := store.InsertJob(context.Background(), f.db.Pool, j)
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
	j.ID = id
	f.view.Upsert(j)
	return id
}

func (f *fixture) boostOf(t *testing.T, jobID int64) (float64, bool) {
	t.Helper()
	for _, e := range f.view.QueryCandidates(index.Filter{}) {
		if e.JobID == jobID {
			return e.BoostScore, e.IsTopListed
		}
	}
	t.Fatalf("job %d not in view", jobID)
	return 0, false
}

func TestGrantActivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUnit(t, "boost-30", domain.ActionBoostScoreJob, 20, 30, 0)

	e, err := f.ledger.Grant(ctx, "u1", "boost-30", f.now)
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != domain.StatusActive {
		t.Errorf("grant with start<=now should be ACTIVE, got %s", e.Status)
	}
	if e.EndDate == nil || !e.EndDate.Equal(f.now.AddDate(0, 0, 30)) {
		t.Errorf("EndDate = %v, want start+30d", e.EndDate)
	}

	future, err := f.ledger.Grant(ctx, "u1", "boost-30", f.now.AddDate(0, 0, 7))
	if err != nil {
		t.Fatal(err)
	}
	if future.Status != domain.StatusInactive {
		t.Errorf("future grant should be INACTIVE, got %s", future.Status)
	}
}

func TestGrantLifetimeHasNoEndDate(t *testing.T) {
	f := newFixture(t)
	f.seedUnit(t, "badge-life", domain.ActionVerifiedBadge, 0, 0, 0)
	e, err := f.ledger.Grant(context.Background(), "u1", "badge-life", f.now)
	if err != nil {
		t.Fatal(err)
	}
	if e.EndDate != nil {
		t.Errorf("lifetime entitlement must have nil EndDate, got %v", e.EndDate)
	}
}

func TestApplyEffectNotOwned(t *testing.T) {
	f := newFixture(t)
	f.seedUnit(t, "boost-30", domain.ActionBoostScoreJob, 20, 30, 0)
	jobID := f.seedOpenJob(t)

	_, err := f.ledger.ApplyEffect(context.Background(), "stranger", "boost-30", jobID)
	if !errors.Is(err, domain.ErrEntitlementNotOwned) {
		t.Errorf("expected ErrEntitlementNotOwned, got %v", err)
	}
}

func TestApplyEffectConsumesUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUnit(t, "boost-30", domain.ActionBoostScoreJob, 20, 30, 2)
	jobID := f.seedOpenJob(t)
	if _, err := f.ledger.Grant(ctx, "u1", "boost-30", f.now); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if _, err := f.ledger.ApplyEffect(ctx, "u1", "boost-30", jobID); err != nil {
			t.Fatalf("apply %d: %v", i+1, err)
		}
	}
	_, err := f.ledger.ApplyEffect(ctx, "u1", "boost-30", jobID)
	if !errors.Is(err, domain.ErrEntitlementExhausted) {
		t.Errorf("third apply should exhaust, got %v", err)
	}

	ents, err := f.ledger.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ents) != 1 || ents[0].Status != domain.StatusExpired {
		t.Errorf("usage-exhausted entitlement should be EXPIRED, got %+v", ents)
	}
}

func TestSameActionSupersedesNeverStacks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUnit(t, "boost-small", domain.ActionBoostScoreJob, 10, 30, 0)
	f.seedUnit(t, "boost-big", domain.ActionBoostScoreJob, 25, 30, 0)
	f.seedUnit(t, "toplist", domain.ActionTopList, 0, 30, 0)
	jobID := f.seedOpenJob(t)
	for _, u := range []string{"boost-small", "boost-big", "toplist"} {
		if _, err := f.ledger.Grant(ctx, "u1", u, f.now); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := f.ledger.ApplyEffect(ctx, "u1", "boost-small", jobID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.ApplyEffect(ctx, "u1", "toplist", jobID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.ApplyEffect(ctx, "u1", "boost-big", jobID); err != nil {
		t.Fatal(err)
	}

	boost, top := f.boostOf(t, jobID)
	if boost != 25 {
		t.Errorf("boost = %v, want 25 (second boost supersedes, different actions compose)", boost)
	}
	if !top {
		t.Error("toplist effect should survive a boost supersede")
	}

	// post-condition: never two ACTIVE effects of one action
	effects, err := f.ledger.EffectsForJob(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	activeBoosts := 0
	for _, e := range effects {
		if e.Action == domain.ActionBoostScoreJob && e.Status == domain.StatusActive {
			activeBoosts++
		}
	}
	if activeBoosts != 1 {
		t.Errorf("active boost effects = %d, want 1", activeBoosts)
	}
}

func TestEffectWindowSubsetOfEntitlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// entitlement window is 15 days from 10 days ago: 5 days remain
	f.seedUnit(t, "boost-15", domain.ActionBoostScoreJob, 20, 15, 0)
	jobID := f.seedOpenJob(t)
	granted := f.now.AddDate(0, 0, -10)
	if _, err := f.ledger.Grant(ctx, "u1", "boost-15", granted); err != nil {
		t.Fatal(err)
	}

	effect, err := f.ledger.ApplyEffect(ctx, "u1", "boost-15", jobID)
	if err != nil {
		t.Fatal(err)
	}
	wantEnd := granted.AddDate(0, 0, 15)
	if effect.EndDate == nil || !effect.EndDate.Equal(wantEnd) {
		t.Errorf("effect end = %v, want clipped to entitlement end %v", effect.EndDate, wantEnd)
	}
}

func TestApplyRejectsTimeExpiredEntitlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUnit(t, "boost-5", domain.ActionBoostScoreJob, 20, 5, 0)
	jobID := f.seedOpenJob(t)
	if _, err := f.ledger.Grant(ctx, "u1", "boost-5", f.now.AddDate(0, 0, -10)); err != nil {
		t.Fatal(err)
	}

	_, err := f.ledger.ApplyEffect(ctx, "u1", "boost-5", jobID)
	if !errors.Is(err, domain.ErrEntitlementExhausted) {
		t.Errorf("expired window should reject with exhausted, got %v", err)
	}
}

func TestSweepExpiresAndRefreshesIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUnit(t, "boost-3", domain.ActionBoostScoreJob, 20, 3, 0)
	jobID := f.seedOpenJob(t)
	if _, err := f.ledger.Grant(ctx, "u1", "boost-3", f.now); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.ApplyEffect(ctx, "u1", "boost-3", jobID); err != nil {
		t.Fatal(err)
	}
	if boost, _ := f.boostOf(t, jobID); boost != 20 {
		t.Fatalf("boost before sweep = %v, want 20", boost)
	}

	*f.clock = f.now.AddDate(0, 0, 4)
	expired, err := f.ledger.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if expired != 2 { // entitlement + effect
		t.Errorf("sweep expired %d rows, want 2", expired)
	}
	if boost, _ := f.boostOf(t, jobID); boost != 0 {
		t.Errorf("boost after sweep = %v, want 0", boost)
	}

	// idempotent: nothing left to expire
	expired, err = f.ledger.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if expired != 0 {
		t.Errorf("second sweep expired %d rows, want 0", expired)
	}
}

func TestRevokeExpiresLiveEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUnit(t, "boost-30", domain.ActionBoostScoreJob, 20, 30, 0)
	jobID := f.seedOpenJob(t)
	e, err := f.ledger.Grant(ctx, "u1", "boost-30", f.now)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.ApplyEffect(ctx, "u1", "boost-30", jobID); err != nil {
		t.Fatal(err)
	}

	if err := f.ledger.Revoke(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	if boost, _ := f.boostOf(t, jobID); boost != 0 {
		t.Errorf("boost after revoke = %v, want 0", boost)
	}
}

func TestApplyRejectsNonJobTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := domain.PromotionUnit{ID: "cv-boost", Action: domain.ActionBoostScoreCv, Target: domain.TargetCv, Value: 5, IsLifeTime: true}
	if err := store.UpsertPromotionUnit(ctx, f.db.Pool, u); err != nil {
		t.Fatal(err)
	}
	jobID := f.seedOpenJob(t)
	if _, err := f.ledger.Grant(ctx, "u1", "cv-boost", f.now); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ledger.ApplyEffect(ctx, "u1", "cv-boost", jobID); !errors.Is(err, domain.ErrUnitNotApplicable) {
		t.Errorf("applying a CV-targeted unit to a job: got %v, want ErrUnitNotApplicable", err)
	}
}
