package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jobboard-engine/internal/domain"
)

func InsertJob(ctx context.Context, db *sql.DB, j domain.Job) (int64, error) {
	res, err := db.ExecContext(ctx, `
INSERT INTO jobs(category_id, province_code, district_code, employment_type,
  position_type, experience_level, salary_min, salary_max, salary_negotiable,
  title, description, status, posted_at, expires_at, is_urgent)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		j.CategoryID, j.ProvinceCode, j.DistrictCode, string(j.EmploymentType),
		string(j.PositionType), string(j.ExperienceLevel), j.SalaryMin, j.SalaryMax,
		boolToInt(j.SalaryNegotiable), j.Title, j.Description, string(j.Status),
		j.PostedAt.UTC().Format(time.RFC3339), j.ExpiresAt.UTC().Format(time.RFC3339),
		boolToInt(j.IsUrgent))
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	return res.LastInsertId()
}

func UpdateJobStatus(ctx context.Context, db *sql.DB, id int64, status domain.JobStatus) error {
	res, err := db.ExecContext(ctx,
		`UPDATE jobs SET status = ? WHERE id = ?;`, string(status), id)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const jobColumns = `id, category_id, province_code, district_code, employment_type,
position_type, experience_level, salary_min, salary_max, salary_negotiable,
title, description, status, posted_at, expires_at, is_urgent`

func GetJob(ctx context.Context, db *sql.DB, id int64) (domain.Job, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?;`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, domain.ErrNotFound
	}
	return j, err
}

// ListOpenJobs streams every OPEN job, used to rebuild the search index at
// startup and by consistency self-healing.
func ListOpenJobs(ctx context.Context, db *sql.DB) ([]domain.Job, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = 'OPEN' ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ListExpiredOpenJobs returns OPEN jobs whose posting window has closed,
// for the sweep to transition to EXPIRED.
func ListExpiredOpenJobs(ctx context.Context, db *sql.DB, now time.Time) ([]domain.Job, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = 'OPEN' AND expires_at <= ? ORDER BY id;`,
		now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (domain.Job, error) {
	var j domain.Job
	var employment, position, experience, status string
	var negotiable, urgent int
	var postedAt, expiresAt string
	err := r.Scan(&j.ID, &j.CategoryID, &j.ProvinceCode, &j.DistrictCode,
		&employment, &position, &experience, &j.SalaryMin, &j.SalaryMax,
		&negotiable, &j.Title, &j.Description, &status, &postedAt, &expiresAt,
		&urgent)
	if err != nil {
		return domain.Job{}, err
	}
	j.EmploymentType = domain.EmploymentType(employment)
	j.PositionType = domain.PositionType(position)
	j.ExperienceLevel = domain.ExperienceLevel(experience)
	j.Status = domain.JobStatus(status)
	j.SalaryNegotiable = negotiable != 0
	j.IsUrgent = urgent != 0
	j.PostedAt, _ = time.Parse(time.RFC3339, postedAt)
	j.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	return j, nil
}
