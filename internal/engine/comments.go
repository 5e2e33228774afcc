package engine

import (
	"context"
	"time"

	"gigline/internal/domain"
	"gigline/internal/events"
)

// AddComment posts a comment on an activity the caller can see. Passing a
// parent id threads it as a reply; the parent must be a comment on the same
// activity.
func (e Engine) AddComment(ctx context.Context, rc domain.RoleContext, activityID, body string, parentID *int64) (domain.Comment, error) {
	if body == "" {
		return domain.Comment{}, domain.Invalidf("comment body is required")
	}
	a, err := e.Repo.GetActivity(ctx, activityID)
	if err != nil {
		return domain.Comment{}, err
	}
	ok, err := e.Policy.CanAccessActivity(ctx, rc, a)
	if err != nil {
		return domain.Comment{}, err
	}
	if !ok {
		return domain.Comment{}, domain.Deniedf("activity %s is not accessible", activityID)
	}
	if parentID != nil {
		parent, err := e.Repo.GetComment(ctx, *parentID)
		if err != nil {
			return domain.Comment{}, err
		}
		if parent.ActivityID != activityID {
			return domain.Comment{}, domain.Invalidf("parent comment %d belongs to another activity", *parentID)
		}
	}
	now := e.now().UTC().Format(time.RFC3339)
	c := domain.Comment{
		ActivityID: activityID,
		UserID:     rc.ActorID,
		ParentID:   parentID,
		Body:       body,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	c, err = e.Repo.InsertComment(ctx, tx, c)
	if err != nil {
		return c, err
	}
	payload := events.EventPayload{"comment_id": c.ID}
	if parentID != nil {
		payload["parent_id"] = *parentID
	}
	if err := e.Events.Append(ctx, tx, "comment.added", "comment", activityID, rc.ActorID, payload); err != nil {
		return c, err
	}
	return c, tx.Commit()
}

// ListComments returns the activity's discussion, oldest first, gated the
// same way the activity detail is. Deleted comments come back with an empty
// body so the replies under them keep their place.
func (e Engine) ListComments(ctx context.Context, rc domain.RoleContext, activityID string) ([]domain.Comment, error) {
	a, err := e.Repo.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	ok, err := e.Policy.CanAccessActivity(ctx, rc, a)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Deniedf("activity %s is not accessible", activityID)
	}
	comments, err := e.Repo.ListComments(ctx, activityID)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		if comments[i].Deleted {
			comments[i].Body = ""
		}
	}
	return comments, nil
}

// EditComment rewrites the body. Only the author or an admin may edit.
func (e Engine) EditComment(ctx context.Context, rc domain.RoleContext, commentID int64, body string) (domain.Comment, error) {
	if body == "" {
		return domain.Comment{}, domain.Invalidf("comment body is required")
	}
	c, err := e.Repo.GetComment(ctx, commentID)
	if err != nil {
		return domain.Comment{}, err
	}
	if c.UserID != rc.ActorID && !rc.IsAdmin() {
		return c, domain.Deniedf("only the author or an admin may edit comment %d", commentID)
	}
	if c.Deleted {
		return c, domain.Preconditionf("comment %d is deleted", commentID)
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateCommentBody(ctx, tx, commentID, body, now); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, tx, "comment.edited", "comment", c.ActivityID, rc.ActorID, events.EventPayload{"comment_id": c.ID}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	c.Body = body
	c.UpdatedAt = now
	return c, nil
}

// DeleteComment marks the comment deleted. The row stays so replies keep
// their thread. Only the author or an admin may delete.
func (e Engine) DeleteComment(ctx context.Context, rc domain.RoleContext, commentID int64) error {
	c, err := e.Repo.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if c.UserID != rc.ActorID && !rc.IsAdmin() {
		return domain.Deniedf("only the author or an admin may delete comment %d", commentID)
	}
	if c.Deleted {
		return domain.NotFoundf("comment %d is already deleted", commentID)
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.SoftDeleteComment(ctx, tx, commentID, now); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "comment.deleted", "comment", c.ActivityID, rc.ActorID, events.EventPayload{"comment_id": c.ID}); err != nil {
		return err
	}
	return tx.Commit()
}
