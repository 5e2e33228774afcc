package repo

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
)

const commentColumns = `id,activity_id,user_id,parent_id,body,deleted,created_at,updated_at`

func scanComment(scan func(dest ...any) error) (domain.Comment, error) {
	var c domain.Comment
	var parent sql.NullInt64
	var deleted int
	if err := scan(&c.ID, &c.ActivityID, &c.UserID, &parent, &c.Body, &deleted, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return c, err
	}
	if parent.Valid {
		c.ParentID = &parent.Int64
	}
	c.Deleted = deleted != 0
	return c, nil
}

func (r Repo) InsertComment(ctx context.Context, tx *sql.Tx, c domain.Comment) (domain.Comment, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO comments(activity_id,user_id,parent_id,body,deleted,created_at,updated_at) VALUES (?,?,?,?,0,?,?)`,
		c.ActivityID, c.UserID, nullableInt64Ptr(c.ParentID), c.Body, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.ID, err = res.LastInsertId()
	return c, err
}

func (r Repo) GetComment(ctx context.Context, id int64) (domain.Comment, error) {
	c, err := scanComment(r.DB.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// ListComments returns every comment on the activity, oldest first.
// Deleted comments keep their row so reply threads stay navigable; callers
// decide how to present them.
func (r Repo) ListComments(ctx context.Context, activityID string) ([]domain.Comment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE activity_id=? ORDER BY created_at ASC, id ASC`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateCommentBody(ctx context.Context, tx *sql.Tx, id int64, body, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE comments SET body=?, updated_at=? WHERE id=?`, body, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteComment flips the deleted flag; the row stays.
func (r Repo) SoftDeleteComment(ctx context.Context, tx *sql.Tx, id int64, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE comments SET deleted=1, updated_at=? WHERE id=?`, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
