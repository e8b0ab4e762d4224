// Package ledger owns promotion entitlements and per-job promotion effects.
// Both share the INACTIVE → ACTIVE → EXPIRED machine from the domain
// package; every ACTIVE → EXPIRED transition, live or swept, goes through
// expireEffect/expireEntitlement so there is exactly one code path.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"jobboard-engine/internal/domain"
	"jobboard-engine/internal/events"
	"jobboard-engine/internal/index"
	"jobboard-engine/internal/store"
)

type Ledger struct {
	db   *sql.DB
	view *index.View
	hub  *events.Hub
	now  func() time.Time
}

func New(db *sql.DB, view *index.View, hub *events.Hub) *Ledger {
	return &Ledger{db: db, view: view, hub: hub, now: time.Now}
}

// WithClock overrides the time source. Tests only.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Grant records a purchased entitlement (driven by the billing
// collaborator's "entitlement granted" event). Active immediately when the
// start date is not in the future.
func (l *Ledger) Grant(ctx context.Context, userID, unitID string, startAt time.Time) (domain.UserEntitlement, error) {
	unit, err := store.GetPromotionUnit(ctx, l.db, unitID)
	if err != nil {
		return domain.UserEntitlement{}, fmt.Errorf("promotion unit %s: %w", unitID, err)
	}

	now := l.now()
	e := domain.UserEntitlement{
		ID:              uuid.NewString(),
		UserID:          userID,
		PromotionUnitID: unitID,
		Status:          domain.StatusInactive,
		StartDate:       startAt,
	}
	if unit.IsUsageLimited {
		e.UsageLimit = unit.UsageLimit
	}
	if !unit.IsLifeTime {
		end := startAt.AddDate(0, 0, unit.DayDuration)
		e.EndDate = &end
	}
	if !startAt.After(now) {
		e.Status = domain.StatusActive
	}
	if err := store.InsertEntitlement(ctx, l.db, e); err != nil {
		return domain.UserEntitlement{}, err
	}
	return e, nil
}

// ApplyEffect applies one of the user's purchased units to a job. The
// effect window is the intersection of [now, now+dayDuration] with what
// remains of the entitlement window, so a job is never promoted beyond
// what was paid for. A live same-action effect on the job is superseded.
func (l *Ledger) ApplyEffect(ctx context.Context, userID, unitID string, jobID int64) (domain.JobPromotionEffect, error) {
	var zero domain.JobPromotionEffect

	unit, err := store.GetPromotionUnit(ctx, l.db, unitID)
	if err != nil {
		return zero, fmt.Errorf("promotion unit %s: %w", unitID, err)
	}
	if unit.Target != domain.TargetJobPost {
		return zero, fmt.Errorf("unit %s targets %s, not a job post: %w", unitID, unit.Target, domain.ErrUnitNotApplicable)
	}

	job, err := store.GetJob(ctx, l.db, jobID)
	if err != nil {
		return zero, fmt.Errorf("job %d: %w", jobID, err)
	}
	now := l.now()
	if !job.Searchable(now) {
		return zero, fmt.Errorf("job %d is not open: %w", jobID, domain.ErrNotFound)
	}

	ent, err := store.FindUsableEntitlement(ctx, l.db, userID, unitID)
	if errors.Is(err, domain.ErrNotFound) {
		owned, herr := store.HasEntitlement(ctx, l.db, userID, unitID)
		if herr != nil {
			return zero, herr
		}
		if owned {
			return zero, fmt.Errorf("all entitlements of user %s for unit %s are spent: %w", userID, unitID, domain.ErrEntitlementExhausted)
		}
		return zero, fmt.Errorf("user %s has no entitlement for unit %s: %w", userID, unitID, domain.ErrEntitlementNotOwned)
	}
	if err != nil {
		return zero, err
	}

	ent, err = l.reevaluateEntitlement(ctx, ent, now)
	if err != nil {
		return zero, err
	}
	switch {
	case ent.Status == domain.StatusInactive && !ent.StartDate.After(now):
		// immediately activatable
		if err := l.transitionEntitlement(ctx, &ent, domain.StatusActive); err != nil {
			return zero, err
		}
	case ent.Status != domain.StatusActive:
		return zero, fmt.Errorf("entitlement %s is %s: %w", ent.ID, ent.Status, domain.ErrEntitlementExhausted)
	}
	if ent.UsageExhausted() {
		return zero, fmt.Errorf("entitlement %s: %w", ent.ID, domain.ErrEntitlementExhausted)
	}

	// Effect window ⊆ entitlement window (lifetime units excepted).
	var end *time.Time
	if !unit.IsLifeTime {
		e := now.AddDate(0, 0, unit.DayDuration)
		end = &e
	}
	if ent.EndDate != nil && (end == nil || end.After(*ent.EndDate)) {
		e := *ent.EndDate
		end = &e
	}

	// Same-action effects never stack; the newest one wins.
	existing, err := store.ListEffectsByJob(ctx, l.db, jobID)
	if err != nil {
		return zero, err
	}
	for _, f := range existing {
		if f.Action == unit.Action && f.Status == domain.StatusActive {
			if err := l.expireEffect(ctx, f); err != nil {
				return zero, err
			}
		}
	}

	effect := domain.JobPromotionEffect{
		ID:              uuid.NewString(),
		JobID:           jobID,
		EntitlementID:   ent.ID,
		PromotionUnitID: unit.ID,
		Action:          unit.Action,
		Value:           unit.Value,
		Status:          domain.StatusActive,
		StartDate:       now,
		EndDate:         end,
	}
	if err := store.InsertEffect(ctx, l.db, effect); err != nil {
		return zero, err
	}

	if unit.IsUsageLimited {
		ent.UsedTime++
		if ent.UsageExhausted() {
			ent.Status = domain.StatusExpired
		}
		if err := store.UpdateEntitlement(ctx, l.db, ent); err != nil {
			return zero, err
		}
	}

	if err := l.refreshJob(ctx, jobID, now); err != nil {
		return zero, err
	}
	l.hub.Publish(events.MakeEvent("", events.TypeEffectActivated, 1, map[string]any{
		"effect_id": effect.ID, "job_id": jobID, "action": effect.Action,
	}))
	return effect, nil
}

// Revoke force-expires an entitlement (refund path) and every live effect
// it produced.
func (l *Ledger) Revoke(ctx context.Context, entitlementID string) error {
	ent, err := store.GetEntitlement(ctx, l.db, entitlementID)
	if err != nil {
		return fmt.Errorf("entitlement %s: %w", entitlementID, err)
	}
	if ent.Status != domain.StatusExpired {
		if err := l.transitionEntitlement(ctx, &ent, domain.StatusExpired); err != nil {
			return err
		}
	}

	effects, err := store.ListEffectsByEntitlement(ctx, l.db, entitlementID)
	if err != nil {
		return err
	}
	now := l.now()
	touched := make(map[int64]struct{})
	for _, f := range effects {
		if f.Status != domain.StatusActive {
			continue
		}
		if err := l.expireEffect(ctx, f); err != nil {
			return err
		}
		touched[f.JobID] = struct{}{}
	}
	for jobID := range touched {
		if err := l.refreshJob(ctx, jobID, now); err != nil {
			return err
		}
	}
	return nil
}

// ListForUser returns the user's entitlements after lazy re-evaluation, so
// a stale ACTIVE row never reaches the caller.
func (l *Ledger) ListForUser(ctx context.Context, userID string) ([]domain.UserEntitlement, error) {
	ents, err := store.ListEntitlementsByUser(ctx, l.db, userID)
	if err != nil {
		return nil, err
	}
	now := l.now()
	for i, e := range ents {
		e, err = l.reevaluateEntitlement(ctx, e, now)
		if err != nil {
			return nil, err
		}
		ents[i] = e
	}
	return ents, nil
}

// EffectsForJob returns the job's effect rows, used by the HTTP surface
// and by index refresh.
func (l *Ledger) EffectsForJob(ctx context.Context, jobID int64) ([]domain.JobPromotionEffect, error) {
	return store.ListEffectsByJob(ctx, l.db, jobID)
}

// Sweep expires every ACTIVE entitlement and effect whose window has
// closed, then refreshes the index entries of the touched jobs. Running it
// when nothing has expired is a no-op.
func (l *Ledger) Sweep(ctx context.Context) (expired int, err error) {
	now := l.now()

	ents, err := store.ListExpirableEntitlements(ctx, l.db, now)
	if err != nil {
		return 0, err
	}
	for _, e := range ents {
		if err := l.transitionEntitlement(ctx, &e, domain.StatusExpired); err != nil {
			return expired, err
		}
		expired++
	}

	effects, err := store.ListExpirableEffects(ctx, l.db, now)
	if err != nil {
		return expired, err
	}
	touched := make(map[int64]struct{})
	for _, f := range effects {
		if err := l.expireEffect(ctx, f); err != nil {
			return expired, err
		}
		expired++
		touched[f.JobID] = struct{}{}
	}
	for jobID := range touched {
		if err := l.refreshJob(ctx, jobID, now); err != nil {
			return expired, err
		}
	}

	if expired > 0 {
		l.hub.Publish(events.MakeEvent("", events.TypeSweepCompleted, 1, map[string]any{
			"expired": expired,
		}))
	}
	return expired, nil
}

// reevaluateEntitlement applies the lazy expiry check: a stored-ACTIVE row
// whose expiry condition now holds transitions before anyone relies on it.
func (l *Ledger) reevaluateEntitlement(ctx context.Context, e domain.UserEntitlement, now time.Time) (domain.UserEntitlement, error) {
	if e.Status == domain.StatusActive && (e.TimeExpired(now) || e.UsageExhausted()) {
		if err := l.transitionEntitlement(ctx, &e, domain.StatusExpired); err != nil {
			return e, err
		}
	}
	return e, nil
}

func (l *Ledger) transitionEntitlement(ctx context.Context, e *domain.UserEntitlement, to domain.EffectStatus) error {
	if !domain.CanTransition(e.Status, to) {
		return fmt.Errorf("entitlement %s: invalid transition %s -> %s", e.ID, e.Status, to)
	}
	e.Status = to
	return store.UpdateEntitlement(ctx, l.db, *e)
}

func (l *Ledger) expireEffect(ctx context.Context, f domain.JobPromotionEffect) error {
	if !domain.CanTransition(f.Status, domain.StatusExpired) {
		log.Printf("level=warn msg=\"effect already terminal\" effect_id=%s status=%s", f.ID, f.Status)
		return nil
	}
	if err := store.UpdateEffectStatus(ctx, l.db, f.ID, domain.StatusExpired); err != nil {
		return err
	}
	l.hub.Publish(events.MakeEvent("", events.TypeEffectExpired, 1, map[string]any{
		"effect_id": f.ID, "job_id": f.JobID, "action": f.Action,
	}))
	return nil
}

func (l *Ledger) refreshJob(ctx context.Context, jobID int64, now time.Time) error {
	effects, err := store.ListEffectsByJob(ctx, l.db, jobID)
	if err != nil {
		return err
	}
	l.view.RefreshPromotionState(jobID, effects, now)
	return nil
}
