// Package notify delivers best-effort notifications. Senders are fired
// after the surrounding transaction commits and their errors are not
// allowed to fail the operation that triggered them.
package notify

import (
	"context"
	"database/sql"
	"time"
)

// Notification kinds, one per workflow transition that alerts someone.
const (
	KindJobCreated          = "job.created"
	KindJobValidated        = "job.validated"
	KindJobRejected         = "job.rejected"
	KindApplied             = "engagement.applied"
	KindInvited             = "engagement.invited"
	KindApplicationAccepted = "application.accepted"
	KindApplicationRejected = "application.rejected"
	KindInvitationAccepted  = "invitation.accepted"
	KindInvitationDeclined  = "invitation.declined"
	KindFeedbackReceived    = "feedback.received"
)

type Notifier interface {
	Notify(ctx context.Context, fromID, toID, activityID, kind string) error
}

// Outbox records notifications in the workspace database. A real mail or
// push sender would drain this table.
type Outbox struct {
	DB  *sql.DB
	Now func() time.Time
}

func (o Outbox) Notify(ctx context.Context, fromID, toID, activityID, kind string) error {
	ts := o.Now().UTC().Format(time.RFC3339)
	_, err := o.DB.ExecContext(ctx, `INSERT INTO notifications(ts,from_user_id,to_user_id,activity_id,kind) VALUES (?,?,?,?,?)`,
		ts, fromID, toID, activityID, kind)
	return err
}

// Discard drops every notification. Used in tests that do not care.
type Discard struct{}

func (Discard) Notify(context.Context, string, string, string, string) error { return nil }
