package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jobboard-engine/internal/domain"
)

func UpsertPromotionUnit(ctx context.Context, db *sql.DB, u domain.PromotionUnit) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO promotion_units(id, plan_id, action, target, is_lifetime,
  is_usage_limited, usage_limit, day_duration, value)
VALUES(?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  plan_id=excluded.plan_id, action=excluded.action, target=excluded.target,
  is_lifetime=excluded.is_lifetime, is_usage_limited=excluded.is_usage_limited,
  usage_limit=excluded.usage_limit, day_duration=excluded.day_duration,
  value=excluded.value;`,
		u.ID, u.PlanID, string(u.Action), string(u.Target), boolToInt(u.IsLifeTime),
		boolToInt(u.IsUsageLimited), u.UsageLimit, u.DayDuration, u.Value)
	if err != nil {
		return fmt.Errorf("upsert promotion unit: %w", err)
	}
	return nil
}

func GetPromotionUnit(ctx context.Context, db *sql.DB, id string) (domain.PromotionUnit, error) {
	var u domain.PromotionUnit
	var action, target string
	var lifetime, limited int
	err := db.QueryRowContext(ctx, `
SELECT id, plan_id, action, target, is_lifetime, is_usage_limited,
  usage_limit, day_duration, value
FROM promotion_units WHERE id = ?;`, id).
		Scan(&u.ID, &u.PlanID, &action, &target, &lifetime, &limited,
			&u.UsageLimit, &u.DayDuration, &u.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return u, domain.ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.Action = domain.PromotionAction(action)
	u.Target = domain.PromotionTarget(target)
	u.IsLifeTime = lifetime != 0
	u.IsUsageLimited = limited != 0
	return u, nil
}

func InsertEntitlement(ctx context.Context, db *sql.DB, e domain.UserEntitlement) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO entitlements(id, user_id, promotion_unit_id, status, used_time,
  usage_limit, start_date, end_date)
VALUES(?,?,?,?,?,?,?,?);`,
		e.ID, e.UserID, e.PromotionUnitID, string(e.Status), e.UsedTime,
		e.UsageLimit, fmtTime(e.StartDate), fmtTimePtr(e.EndDate))
	if err != nil {
		return fmt.Errorf("insert entitlement: %w", err)
	}
	return nil
}

func UpdateEntitlement(ctx context.Context, db *sql.DB, e domain.UserEntitlement) error {
	res, err := db.ExecContext(ctx, `
UPDATE entitlements SET status = ?, used_time = ? WHERE id = ?;`,
		string(e.Status), e.UsedTime, e.ID)
	if err != nil {
		return fmt.Errorf("update entitlement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const entitlementColumns = `id, user_id, promotion_unit_id, status, used_time,
usage_limit, start_date, end_date`

func GetEntitlement(ctx context.Context, db *sql.DB, id string) (domain.UserEntitlement, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+entitlementColumns+` FROM entitlements WHERE id = ?;`, id)
	e, err := scanEntitlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserEntitlement{}, domain.ErrNotFound
	}
	return e, err
}

// FindUsableEntitlement picks the user's oldest entitlement for the unit
// that is not yet expired. Oldest-first so purchases are consumed in order.
func FindUsableEntitlement(ctx context.Context, db *sql.DB, userID, unitID string) (domain.UserEntitlement, error) {
	row := db.QueryRowContext(ctx, `
SELECT `+entitlementColumns+`
FROM entitlements
WHERE user_id = ? AND promotion_unit_id = ? AND status != 'EXPIRED'
ORDER BY start_date, id
LIMIT 1;`, userID, unitID)
	e, err := scanEntitlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserEntitlement{}, domain.ErrNotFound
	}
	return e, err
}

// HasEntitlement reports whether the user ever purchased the unit,
// regardless of status. Distinguishes "exhausted" from "never owned".
func HasEntitlement(ctx context.Context, db *sql.DB, userID, unitID string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `
SELECT 1 FROM entitlements
WHERE user_id = ? AND promotion_unit_id = ? LIMIT 1;`, userID, unitID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func ListEntitlementsByUser(ctx context.Context, db *sql.DB, userID string) ([]domain.UserEntitlement, error) {
	rows, err := db.QueryContext(ctx, `
SELECT `+entitlementColumns+`
FROM entitlements WHERE user_id = ? ORDER BY start_date, id;`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.UserEntitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListExpirableEntitlements returns ACTIVE entitlements whose time window
// has closed. Usage exhaustion is handled at apply time, so the sweep only
// needs the time condition.
func ListExpirableEntitlements(ctx context.Context, db *sql.DB, now time.Time) ([]domain.UserEntitlement, error) {
	rows, err := db.QueryContext(ctx, `
SELECT `+entitlementColumns+`
FROM entitlements
WHERE status = 'ACTIVE' AND end_date IS NOT NULL AND end_date < ?;`, fmtTime(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.UserEntitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntitlement(r rowScanner) (domain.UserEntitlement, error) {
	var e domain.UserEntitlement
	var status, start string
	var end sql.NullString
	err := r.Scan(&e.ID, &e.UserID, &e.PromotionUnitID, &status, &e.UsedTime,
		&e.UsageLimit, &start, &end)
	if err != nil {
		return domain.UserEntitlement{}, err
	}
	e.Status = domain.EffectStatus(status)
	e.StartDate, _ = time.Parse(time.RFC3339, start)
	if end.Valid {
		t, _ := time.Parse(time.RFC3339, end.String)
		e.EndDate = &t
	}
	return e, nil
}

func InsertEffect(ctx context.Context, db *sql.DB, f domain.JobPromotionEffect) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO job_promotion_effects(id, job_id, entitlement_id,
  promotion_unit_id, action, value, status, start_date, end_date)
VALUES(?,?,?,?,?,?,?,?,?);`,
		f.ID, f.JobID, f.EntitlementID, f.PromotionUnitID, string(f.Action),
		f.Value, string(f.Status), fmtTime(f.StartDate), fmtTimePtr(f.EndDate))
	if err != nil {
		return fmt.Errorf("insert effect: %w", err)
	}
	return nil
}

func UpdateEffectStatus(ctx context.Context, db *sql.DB, id string, status domain.EffectStatus) error {
	res, err := db.ExecContext(ctx,
		`UPDATE job_promotion_effects SET status = ? WHERE id = ?;`, string(status), id)
	if err != nil {
		return fmt.Errorf("update effect status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const effectColumns = `id, job_id, entitlement_id, promotion_unit_id, action,
value, status, start_date, end_date`

func ListEffectsByJob(ctx context.Context, db *sql.DB, jobID int64) ([]domain.JobPromotionEffect, error) {
	rows, err := db.QueryContext(ctx, `
SELECT `+effectColumns+`
FROM job_promotion_effects WHERE job_id = ? ORDER BY start_date, id;`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEffects(rows)
}

func ListEffectsByEntitlement(ctx context.Context, db *sql.DB, entitlementID string) ([]domain.JobPromotionEffect, error) {
	rows, err := db.QueryContext(ctx, `
SELECT `+effectColumns+`
FROM job_promotion_effects WHERE entitlement_id = ? ORDER BY start_date, id;`, entitlementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEffects(rows)
}

// ListExpirableEffects returns ACTIVE effects whose end date has passed.
func ListExpirableEffects(ctx context.Context, db *sql.DB, now time.Time) ([]domain.JobPromotionEffect, error) {
	rows, err := db.QueryContext(ctx, `
SELECT `+effectColumns+`
FROM job_promotion_effects
WHERE status = 'ACTIVE' AND end_date IS NOT NULL AND end_date < ?;`, fmtTime(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEffects(rows)
}

func collectEffects(rows *sql.Rows) ([]domain.JobPromotionEffect, error) {
	var out []domain.JobPromotionEffect
	for rows.Next() {
		var f domain.JobPromotionEffect
		var action, status, start string
		var end sql.NullString
		if err := rows.Scan(&f.ID, &f.JobID, &f.EntitlementID, &f.PromotionUnitID,
			&action, &f.Value, &status, &start, &end); err != nil {
			return nil, err
		}
		f.Action = domain.PromotionAction(action)
		f.Status = domain.EffectStatus(status)
		f.StartDate, _ = time.Parse(time.RFC3339, start)
		if end.Valid {
			t, _ := time.Parse(time.RFC3339, end.String)
			f.EndDate = &t
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}
