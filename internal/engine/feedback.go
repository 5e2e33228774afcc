package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/notify"
)

// GiveFeedback rates a user after working together on an activity. Feedback
// opens once the activity is FINISHED, between the owner and assigned users
// in either direction, or between two assigned users.
func (e Engine) GiveFeedback(ctx context.Context, rc domain.RoleContext, activityID, toUserID string, stars int, message string) (domain.Feedback, error) {
	if stars < 1 || stars > 5 {
		return domain.Feedback{}, domain.Invalidf("stars must be between 1 and 5")
	}
	a, err := e.Repo.GetActivity(ctx, activityID)
	if err != nil {
		return domain.Feedback{}, err
	}
	if _, err := e.Repo.GetUser(ctx, toUserID); err != nil {
		return domain.Feedback{}, err
	}
	ok, err := e.Policy.CanGiveFeedback(ctx, a, rc.ActorID, toUserID)
	if err != nil {
		return domain.Feedback{}, err
	}
	if !ok {
		return domain.Feedback{}, domain.Deniedf("feedback from %s to %s on activity %s is not allowed", rc.ActorID, toUserID, activityID)
	}
	from := rc.ActorID
	f := domain.Feedback{
		ID:         uuid.New().String(),
		ActivityID: &a.ID,
		FromUserID: &from,
		ToUserID:   toUserID,
		Stars:      stars,
		Message:    message,
		CreatedAt:  e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return f, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertFeedback(ctx, tx, f); err != nil {
		return f, err
	}
	if err := e.Events.Append(ctx, tx, "feedback.given", "feedback", f.ID, rc.ActorID, events.EventPayload{"to": toUserID, "stars": stars}); err != nil {
		return f, err
	}
	if err := tx.Commit(); err != nil {
		return f, err
	}
	e.notifyAfterCommit(ctx, rc.ActorID, toUserID, activityID, notify.KindFeedbackReceived)
	return f, nil
}
