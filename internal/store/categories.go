package store

import (
	"context"
	"database/sql"
	"fmt"

	"jobboard-engine/internal/domain"
)

func InsertCategory(ctx context.Context, db *sql.DB, c domain.Category) (int64, error) {
	var parent any
	if c.ParentID != nil {
		parent = *c.ParentID
	}
	res, err := db.ExecContext(ctx, `
INSERT INTO categories(name, slug, parent_id, sort_order, is_active)
VALUES(?,?,?,?,?);`,
		c.Name, c.Slug, parent, c.SortOrder, boolToInt(c.IsActive))
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return res.LastInsertId()
}

func SetCategoryActive(ctx context.Context, db *sql.DB, id int64, active bool) error {
	res, err := db.ExecContext(ctx,
		`UPDATE categories SET is_active = ? WHERE id = ?;`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("set category active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func ListCategories(ctx context.Context, db *sql.DB) ([]domain.Category, error) {
	rows, err := db.QueryContext(ctx, `
SELECT id, name, slug, parent_id, sort_order, is_active
FROM categories
ORDER BY sort_order, id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		var parent sql.NullInt64
		var active int
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &parent, &c.SortOrder, &active); err != nil {
			return nil, err
		}
		if parent.Valid {
			p := parent.Int64
			c.ParentID = &p
		}
		c.IsActive = active != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountOpenJobsByCategory returns open-job counts grouped by leaf category.
// Used by the reconciliation pass, never on the search path.
func CountOpenJobsByCategory(ctx context.Context, db *sql.DB) (map[int64]int64, error) {
	rows, err := db.QueryContext(ctx, `
SELECT category_id, COUNT(*)
FROM jobs
WHERE status = 'OPEN'
GROUP BY category_id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
