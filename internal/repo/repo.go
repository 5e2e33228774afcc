package repo

import (
	"context"
	"database/sql"
	"strings"

	"gigline/internal/domain"
	"gigline/internal/listing"
)

type Repo struct {
	DB *sql.DB
}

// ErrNotFound is the storage-level not-found, re-exported so callers can
// keep matching on the domain kind.
var ErrNotFound = domain.ErrNotFound

const activityColumns = `a.id,a.name,COALESCE(a.description,''),a.owner_id,a.status,a.application_deadline,a.final_deadline,a.public,a.created_at,a.updated_at`

func scanActivity(scan func(dest ...any) error) (domain.Activity, error) {
	var a domain.Activity
	err := scan(&a.ID, &a.Name, &a.Description, &a.OwnerID, &a.Status,
		&a.ApplicationDeadline, &a.FinalDeadline, &a.Public, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) InsertActivity(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO activities(id,name,description,owner_id,status,application_deadline,final_deadline,public,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Name, nullable(a.Description), a.OwnerID, a.Status,
		a.ApplicationDeadline, a.FinalDeadline, a.Public, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return err
	}
	if err := r.replaceActivityLinks(ctx, tx, a.ID, "activity_technologies", "technology_id", a.Technologies); err != nil {
		return err
	}
	return r.replaceActivityLinks(ctx, tx, a.ID, "activity_type_links", "type_id", a.Types)
}

func (r Repo) UpdateActivity(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	res, err := tx.ExecContext(ctx, `UPDATE activities SET name=?, description=?, status=?, application_deadline=?, final_deadline=?, public=?, updated_at=? WHERE id=?`,
		a.Name, nullable(a.Description), a.Status, a.ApplicationDeadline, a.FinalDeadline, a.Public, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := r.replaceActivityLinks(ctx, tx, a.ID, "activity_technologies", "technology_id", a.Technologies); err != nil {
		return err
	}
	return r.replaceActivityLinks(ctx, tx, a.ID, "activity_type_links", "type_id", a.Types)
}

// UpdateActivityStatus is the lifecycle write path; nothing else changes.
func (r Repo) UpdateActivityStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE activities SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities a WHERE a.id=?`, id)
	a, err := scanActivity(row.Scan)
	if err != nil {
		return a, err
	}
	a.Technologies, err = r.activityLinks(ctx, id, "activity_technologies", "technology_id")
	if err != nil {
		return a, err
	}
	a.Types, err = r.activityLinks(ctx, id, "activity_type_links", "type_id")
	return a, err
}

// DeleteActivity removes the activity. Engagement rows go with it via the
// FK cascade; feedback rows survive with the activity reference severed by
// ON DELETE SET NULL.
func (r Repo) DeleteActivity(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) replaceActivityLinks(ctx context.Context, tx *sql.Tx, activityID, table, column string, ids []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE activity_id=?`, activityID); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO `+table+`(activity_id,`+column+`) VALUES (?,?)`, activityID, id); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) activityLinks(ctx context.Context, activityID, table, column string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+column+` FROM `+table+` WHERE activity_id=? ORDER BY `+column, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// activityQuery renders the WHERE clause shared by the list and count
// paths: the non-admin visibility baseline plus the AND-combined filters.
func activityQuery(f listing.ActivityFilter, viewer domain.RoleContext) (string, []any) {
	var clauses []string
	var args []any
	if !viewer.IsAdmin() {
		clauses = append(clauses, `(
 (a.public=1 AND a.status NOT IN (?,?))
 OR a.owner_id=?
 OR EXISTS (SELECT 1 FROM engagements v WHERE v.activity_id=a.id AND v.user_id=?)
)`)
		args = append(args, domain.StatusRejected, domain.StatusInValidation, viewer.ActorID, viewer.ActorID)
	}
	if f.Name != "" {
		clauses = append(clauses, "a.name LIKE ?")
		args = append(args, f.Name+"%")
	}
	if f.Status != "" {
		clauses = append(clauses, "a.status=?")
		args = append(args, f.Status)
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "a.owner_id=?")
		args = append(args, f.OwnerID)
	}
	if len(f.Technologies) > 0 {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM activity_technologies t WHERE t.activity_id=a.id AND t.technology_id IN (`+placeholders(len(f.Technologies))+`))`)
		for _, id := range f.Technologies {
			args = append(args, id)
		}
	}
	if len(f.Types) > 0 {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM activity_type_links l WHERE l.activity_id=a.id AND l.type_id IN (`+placeholders(len(f.Types))+`))`)
		for _, id := range f.Types {
			args = append(args, id)
		}
	}
	if f.AssignedUserID != "" {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM engagements s WHERE s.activity_id=a.id AND s.user_id=? AND s.type=?)`)
		args = append(args, f.AssignedUserID, domain.EngagementAssigned)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// CountActivities counts rows the viewer may see under the given filter.
func (r Repo) CountActivities(ctx context.Context, f listing.ActivityFilter, viewer domain.RoleContext) (int, error) {
	where, args := activityQuery(f, viewer)
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities a `+where, args...).Scan(&n)
	return n, err
}

// ListActivities fetches a validated window of the filtered listing.
func (r Repo) ListActivities(ctx context.Context, f listing.ActivityFilter, s listing.ActivitySort, viewer domain.RoleContext, w listing.Window) ([]domain.Activity, error) {
	where, args := activityQuery(f, viewer)
	query := `SELECT ` + activityColumns + ` FROM activities a ` + where
	order := s.OrderBy()
	if len(order) == 0 {
		order = []string{"a.created_at DESC", "a.id DESC"}
	}
	query += " ORDER BY " + strings.Join(order, ", ")
	if !w.All {
		query += " LIMIT ? OFFSET ?"
		args = append(args, w.Limit, w.Offset)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// ListActivitiesForValidation returns IN_VALIDATION activities. A PM sees
// only those of the owners they manage; an admin sees them all.
func (r Repo) ListActivitiesForValidation(ctx context.Context, viewer domain.RoleContext) ([]domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities a JOIN users u ON u.id=a.owner_id WHERE a.status=?`
	args := []any{domain.StatusInValidation}
	if !viewer.IsAdmin() {
		query += ` AND u.project_manager_id=?`
		args = append(args, viewer.ActorID)
	}
	query += ` ORDER BY a.created_at ASC, a.id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
