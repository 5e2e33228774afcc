package repo

import (
	"context"
	"database/sql"

	"gigline/internal/domain"
)

// ListEvents returns the most recent audit events, newest first.
func (r Repo) ListEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityID sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		e.EntityID = entityID.String
		res = append(res, e)
	}
	return res, rows.Err()
}

// ListNotifications returns a user's notifications, newest first.
func (r Repo) ListNotifications(ctx context.Context, toUserID string, limit int) ([]domain.Notification, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,from_user_id,to_user_id,activity_id,kind FROM notifications WHERE to_user_id=? ORDER BY id DESC LIMIT ?`, toUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.TS, &n.FromUserID, &n.ToUserID, &n.ActivityID, &n.Kind); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}
