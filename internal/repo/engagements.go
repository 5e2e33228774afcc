package repo

import (
	"context"
	"database/sql"
	"strings"

	"gigline/internal/domain"
	"gigline/internal/listing"
)

// FindEngagement returns the row for the (activity,user) pair, or
// ErrNotFound. There is at most one by construction.
func (r Repo) FindEngagement(ctx context.Context, activityID, userID string) (domain.Engagement, error) {
	var e domain.Engagement
	err := r.DB.QueryRowContext(ctx, `SELECT id,activity_id,user_id,type,created_at,updated_at FROM engagements WHERE activity_id=? AND user_id=?`,
		activityID, userID).Scan(&e.ID, &e.ActivityID, &e.UserID, &e.Type, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

func (r Repo) FindEngagementTx(ctx context.Context, tx *sql.Tx, activityID, userID string) (domain.Engagement, error) {
	var e domain.Engagement
	err := tx.QueryRowContext(ctx, `SELECT id,activity_id,user_id,type,created_at,updated_at FROM engagements WHERE activity_id=? AND user_id=?`,
		activityID, userID).Scan(&e.ID, &e.ActivityID, &e.UserID, &e.Type, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

// InsertEngagement creates the pair row. The UNIQUE(activity_id,user_id)
// index is the real duplicate guard; a violation surfaces as ErrConflict so
// a lost check-then-insert race still reads as "already applied/invited".
func (r Repo) InsertEngagement(ctx context.Context, tx *sql.Tx, e domain.Engagement) (domain.Engagement, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO engagements(activity_id,user_id,type,created_at,updated_at) VALUES (?,?,?,?,?)`,
		e.ActivityID, e.UserID, e.Type, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return e, domain.Conflictf("engagement already exists for user %s on activity %s", e.UserID, e.ActivityID)
		}
		return e, err
	}
	e.ID, err = res.LastInsertId()
	return e, err
}

// UpdateEngagementType moves the pair to a new state. Rows are never
// deleted by the workflow.
func (r Repo) UpdateEngagementType(ctx context.Context, tx *sql.Tx, id int64, newType int, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE engagements SET type=?, updated_at=? WHERE id=?`, newType, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAssignedUsers returns the users holding an ASSIGNED engagement on
// the activity.
func (r Repo) ListAssignedUsers(ctx context.Context, activityID string) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users u JOIN engagements e ON e.user_id=u.id
WHERE e.activity_id=? AND e.type=? ORDER BY u.id ASC`, activityID, domain.EngagementAssigned)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// EngagedUser is a users-for-activity listing row.
type EngagedUser struct {
	User           domain.User `json:"user"`
	EngagementType int         `json:"engagement_type"`
}

func engagedUserQuery(activityID string, f listing.EngagedUserFilter) (string, []any) {
	clauses := []string{"e.activity_id=?"}
	args := []any{activityID}
	if f.EngagementType >= 0 {
		clauses = append(clauses, "e.type=?")
		args = append(args, f.EngagementType)
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (r Repo) CountEngagedUsers(ctx context.Context, activityID string, f listing.EngagedUserFilter) (int, error) {
	where, args := engagedUserQuery(activityID, f)
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM engagements e `+where, args...).Scan(&n)
	return n, err
}

func (r Repo) ListEngagedUsers(ctx context.Context, activityID string, f listing.EngagedUserFilter, s listing.UserSort, w listing.Window) ([]EngagedUser, error) {
	where, args := engagedUserQuery(activityID, f)
	query := `SELECT ` + userColumns + `, e.type FROM users u JOIN engagements e ON e.user_id=u.id ` + where
	order := s.OrderBy()
	if len(order) == 0 {
		order = []string{"e.created_at ASC", "e.id ASC"}
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
	var res []EngagedUser
	for rows.Next() {
		var eu EngagedUser
		var rolesJSON string
		var pm sql.NullString
		if err := rows.Scan(&eu.User.ID, &eu.User.Name, &eu.User.Email, &rolesJSON, &pm, &eu.User.Stars, &eu.User.CreatedAt, &eu.EngagementType); err != nil {
			return nil, err
		}
		if pm.Valid {
			eu.User.ProjectManagerID = &pm.String
		}
		eu.User.Roles = decodeRoles(rolesJSON)
		res = append(res, eu)
	}
	return res, rows.Err()
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite wraps SQLITE_CONSTRAINT_UNIQUE in an opaque error;
	// the message is the stable part.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
