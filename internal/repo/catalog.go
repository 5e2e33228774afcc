package repo

import (
	"context"
	"strings"

	"gigline/internal/domain"
)

// The technology and activity-type catalogs are small reference tables,
// seeded from config and extendable at runtime.

func (r Repo) UpsertTechnology(ctx context.Context, t domain.Technology) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO technologies(id,name) VALUES (?,?) ON CONFLICT(id) DO UPDATE SET name=excluded.name`, t.ID, t.Name)
	return err
}

func (r Repo) ListTechnologies(ctx context.Context) ([]domain.Technology, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name FROM technologies ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Technology
	for rows.Next() {
		var t domain.Technology
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpsertActivityType(ctx context.Context, t domain.ActivityType) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO activity_types(id,name) VALUES (?,?) ON CONFLICT(id) DO UPDATE SET name=excluded.name`, t.ID, t.Name)
	return err
}

func (r Repo) ListActivityTypes(ctx context.Context) ([]domain.ActivityType, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name FROM activity_types ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityType
	for rows.Next() {
		var t domain.ActivityType
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) checkIDsExist(ctx context.Context, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `SELECT id FROM ` + table + ` WHERE id IN (` + placeholders(len(ids)) + `)`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	found := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return domain.NotFoundf("unknown %s: %s", table, strings.Join(missing, ", "))
	}
	return nil
}

// CheckTechnologies fails with NotFound when any id is absent from the catalog.
func (r Repo) CheckTechnologies(ctx context.Context, ids []string) error {
	return r.checkIDsExist(ctx, "technologies", ids)
}

func (r Repo) CheckActivityTypes(ctx context.Context, ids []string) error {
	return r.checkIDsExist(ctx, "activity_types", ids)
}
