package repo

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
)

func (r Repo) InsertFeedback(ctx context.Context, tx *sql.Tx, f domain.Feedback) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO feedback(id,activity_id,from_user_id,to_user_id,stars,message,created_at) VALUES (?,?,?,?,?,?,?)`,
		f.ID, nullableStringPtr(f.ActivityID), nullableStringPtr(f.FromUserID), f.ToUserID, f.Stars, nullable(f.Message), f.CreatedAt)
	return err
}

func (r Repo) ListFeedbackForUser(ctx context.Context, toUserID string) ([]domain.Feedback, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,activity_id,from_user_id,to_user_id,stars,message,created_at FROM feedback WHERE to_user_id=? ORDER BY created_at DESC, id DESC`, toUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Feedback
	for rows.Next() {
		var f domain.Feedback
		var activityID, fromUserID, message sql.NullString
		if err := rows.Scan(&f.ID, &activityID, &fromUserID, &f.ToUserID, &f.Stars, &message, &f.CreatedAt); err != nil {
			return nil, err
		}
		if activityID.Valid {
			f.ActivityID = &activityID.String
		}
		if fromUserID.Valid {
			f.FromUserID = &fromUserID.String
		}
		f.Message = message.String
		res = append(res, f)
	}
	return res, rows.Err()
}
