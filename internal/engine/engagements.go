package engine

import (
	"context"
	"errors"
	"time"

	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/notify"
	"gigline/internal/repo"
)

// openForEngagement checks that the activity accepts new engagements: it
// must be NEW and the application deadline must not have passed. The
// boundary instant counts as expired.
func (e Engine) openForEngagement(a domain.Activity) error {
	if a.Status != domain.StatusNew {
		return domain.Preconditionf("activity %s is %s, not %s", a.ID, a.Status, domain.StatusNew)
	}
	deadline, err := time.Parse(time.RFC3339, a.ApplicationDeadline)
	if err != nil {
		return domain.Invalidf("application deadline: %v", err)
	}
	if !e.now().Before(deadline) {
		return domain.Preconditionf("application deadline for activity %s has passed", a.ID)
	}
	return nil
}

func (e Engine) createEngagement(ctx context.Context, a domain.Activity, userID string, engType int, evtType, actorID string) (domain.Engagement, error) {
	now := e.now().UTC().Format(time.RFC3339)
	eng := domain.Engagement{
		ActivityID: a.ID,
		UserID:     userID,
		Type:       engType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return eng, err
	}
	defer tx.Rollback()
	// The existence check runs inside the insert transaction so the answer
	// cannot go stale before the row lands. The unique index still backstops
	// a concurrent writer.
	if _, err := e.Repo.FindEngagementTx(ctx, tx, a.ID, userID); err == nil {
		return domain.Engagement{}, domain.Conflictf("engagement already exists for user %s on activity %s", userID, a.ID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Engagement{}, err
	}
	eng, err = e.Repo.InsertEngagement(ctx, tx, eng)
	if err != nil {
		return eng, err
	}
	if err := e.Events.Append(ctx, tx, evtType, "engagement", a.ID, actorID, events.EventPayload{"user": userID, "type": domain.EngagementTypeName(engType)}); err != nil {
		return eng, err
	}
	return eng, tx.Commit()
}

// Apply registers the caller's application for the activity. Owners cannot
// apply to their own postings, and private activities only take applications
// from admins.
func (e Engine) Apply(ctx context.Context, rc domain.RoleContext, activityID string) (domain.Engagement, error) {
	a, err := e.Repo.GetActivity(ctx, activityID)
	if err != nil {
		return domain.Engagement{}, err
	}
	if !a.Public && !rc.IsAdmin() {
		return domain.Engagement{}, domain.Deniedf("activity %s is not public", activityID)
	}
	if a.OwnerID == rc.ActorID {
		return domain.Engagement{}, domain.Preconditionf("cannot apply to your own activity")
	}
	if err := e.openForEngagement(a); err != nil {
		return domain.Engagement{}, err
	}
	eng, err := e.createEngagement(ctx, a, rc.ActorID, domain.EngagementApplied, "engagement.applied", rc.ActorID)
	if err != nil {
		return eng, err
	}
	e.notifyAfterCommit(ctx, rc.ActorID, a.OwnerID, activityID, notify.KindApplied)
	return eng, nil
}

// Invite asks a user to join the activity. Only the owner or an admin may
// invite, and the owner cannot invite themselves.
func (e Engine) Invite(ctx context.Context, rc domain.RoleContext, activityID, userID string) (domain.Engagement, error) {
	a, err := e.Repo.GetActivity(ctx, activityID)
	if err != nil {
		return domain.Engagement{}, err
	}
	if !e.Policy.IsOwnerOrAdmin(rc, a) {
		return domain.Engagement{}, domain.Deniedf("only the owner or an admin may invite to activity %s", activityID)
	}
	if userID == a.OwnerID {
		return domain.Engagement{}, domain.Preconditionf("cannot invite the activity owner")
	}
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return domain.Engagement{}, err
	}
	if err := e.openForEngagement(a); err != nil {
		return domain.Engagement{}, err
	}
	eng, err := e.createEngagement(ctx, a, userID, domain.EngagementInvited, "engagement.invited", rc.ActorID)
	if err != nil {
		return eng, err
	}
	e.notifyAfterCommit(ctx, rc.ActorID, userID, activityID, notify.KindInvited)
	return eng, nil
}

func (e Engine) settleEngagement(ctx context.Context, eng domain.Engagement, fromType, toType int, evtType, actorID string) (domain.Engagement, error) {
	if eng.Type != fromType {
		return eng, domain.Preconditionf("engagement for user %s on activity %s is %s, not %s",
			eng.UserID, eng.ActivityID, domain.EngagementTypeName(eng.Type), domain.EngagementTypeName(fromType))
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return eng, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateEngagementType(ctx, tx, eng.ID, toType, now); err != nil {
		return eng, err
	}
	if err := e.Events.Append(ctx, tx, evtType, "engagement", eng.ActivityID, actorID, events.EventPayload{
		"user": eng.UserID,
		"from": domain.EngagementTypeName(fromType),
		"to":   domain.EngagementTypeName(toType),
	}); err != nil {
		return eng, err
	}
	if err := tx.Commit(); err != nil {
		return eng, err
	}
	eng.Type = toType
	eng.UpdatedAt = now
	return eng, nil
}

func (e Engine) settleApplication(ctx context.Context, rc domain.RoleContext, activityID, userID string, toType int, evtType, kind string) (domain.Engagement, error) {
	a, err := e.Repo.GetActivity(ctx, activityID)
	if err != nil {
		return domain.Engagement{}, err
	}
	if !e.Policy.IsOwnerOrAdmin(rc, a) {
		return domain.Engagement{}, domain.Deniedf("only the owner or an admin may settle applications for activity %s", activityID)
	}
	eng, err := e.Repo.FindEngagement(ctx, activityID, userID)
	if err != nil {
		return eng, err
	}
	eng, err = e.settleEngagement(ctx, eng, domain.EngagementApplied, toType, evtType, rc.ActorID)
	if err != nil {
		return eng, err
	}
	e.notifyAfterCommit(ctx, rc.ActorID, userID, activityID, kind)
	return eng, nil
}

// AcceptApplicant assigns an applicant to the activity.
func (e Engine) AcceptApplicant(ctx context.Context, rc domain.RoleContext, activityID, userID string) (domain.Engagement, error) {
	return e.settleApplication(ctx, rc, activityID, userID, domain.EngagementAssigned, "application.accepted", notify.KindApplicationAccepted)
}

// RejectApplicant turns an applicant down. The pair row stays as the record
// of the rejected application.
func (e Engine) RejectApplicant(ctx context.Context, rc domain.RoleContext, activityID, userID string) (domain.Engagement, error) {
	return e.settleApplication(ctx, rc, activityID, userID, domain.EngagementRejected, "application.rejected", notify.KindApplicationRejected)
}

func (e Engine) settleInvitation(ctx context.Context, rc domain.RoleContext, activityID string, toType int, evtType, kind string) (domain.Engagement, error) {
	a, err := e.Repo.GetActivity(ctx, activityID)
	if err != nil {
		return domain.Engagement{}, err
	}
	eng, err := e.Repo.FindEngagement(ctx, activityID, rc.ActorID)
	if err != nil {
		return eng, err
	}
	eng, err = e.settleEngagement(ctx, eng, domain.EngagementInvited, toType, evtType, rc.ActorID)
	if err != nil {
		return eng, err
	}
	e.notifyAfterCommit(ctx, rc.ActorID, a.OwnerID, activityID, kind)
	return eng, nil
}

// AcceptInvitation lets the invited caller join the activity.
func (e Engine) AcceptInvitation(ctx context.Context, rc domain.RoleContext, activityID string) (domain.Engagement, error) {
	return e.settleInvitation(ctx, rc, activityID, domain.EngagementAssigned, "invitation.accepted", notify.KindInvitationAccepted)
}

// DeclineInvitation lets the invited caller turn the invitation down.
func (e Engine) DeclineInvitation(ctx context.Context, rc domain.RoleContext, activityID string) (domain.Engagement, error) {
	return e.settleInvitation(ctx, rc, activityID, domain.EngagementDeclined, "invitation.declined", notify.KindInvitationDeclined)
}
