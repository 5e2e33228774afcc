package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gigline/internal/config"
	"gigline/internal/domain"
	"gigline/internal/events"
	"gigline/internal/listing"
	"gigline/internal/notify"
	"gigline/internal/policy"
	"gigline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Policy policy.Policy
	Events events.Writer
	Notify notify.Notifier
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Policy: policy.Policy{Repo: r},
		Events: events.Writer{DB: db},
		Notify: notify.Outbox{DB: db, Now: time.Now},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// notifyAfterCommit fires a notification once the transaction is already
// committed. Delivery failure must never undo a committed transition, so
// the error is dropped.
func (e Engine) notifyAfterCommit(ctx context.Context, fromID, toID, activityID, kind string) {
	if e.Notify == nil || toID == "" {
		return
	}
	_ = e.Notify.Notify(ctx, fromID, toID, activityID, kind)
}

// ActivityCreateOptions are parameters for posting a new activity.
type ActivityCreateOptions struct {
	ID                  string
	Name                string
	Description         string
	ApplicationDeadline string
	FinalDeadline       string
	Public              *bool
	Technologies        []string
	Types               []string
}

func (e Engine) checkDeadlines(applicationDeadline, finalDeadline string) (time.Time, time.Time, error) {
	app, err := time.Parse(time.RFC3339, applicationDeadline)
	if err != nil {
		return time.Time{}, time.Time{}, domain.Invalidf("application deadline: %v", err)
	}
	fin, err := time.Parse(time.RFC3339, finalDeadline)
	if err != nil {
		return time.Time{}, time.Time{}, domain.Invalidf("final deadline: %v", err)
	}
	if !app.Before(fin) {
		return time.Time{}, time.Time{}, domain.Invalidf("application deadline must precede the final deadline")
	}
	return app, fin, nil
}

// CreateActivity posts a new activity. It starts IN_VALIDATION and stays
// invisible to the marketplace until the owner's project manager validates it.
func (e Engine) CreateActivity(ctx context.Context, rc domain.RoleContext, opts ActivityCreateOptions) (domain.Activity, error) {
	if opts.Name == "" {
		return domain.Activity{}, domain.Invalidf("name is required")
	}
	if _, _, err := e.checkDeadlines(opts.ApplicationDeadline, opts.FinalDeadline); err != nil {
		return domain.Activity{}, err
	}
	if err := e.Repo.CheckTechnologies(ctx, opts.Technologies); err != nil {
		return domain.Activity{}, err
	}
	if err := e.Repo.CheckActivityTypes(ctx, opts.Types); err != nil {
		return domain.Activity{}, err
	}
	owner, err := e.Repo.GetUser(ctx, rc.ActorID)
	if err != nil {
		return domain.Activity{}, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	public := true
	if opts.Public != nil {
		public = *opts.Public
	} else if e.Config != nil {
		public = e.Config.DefaultPublic()
	}
	a := domain.Activity{
		ID:                  id,
		Name:                opts.Name,
		Description:         opts.Description,
		OwnerID:             rc.ActorID,
		Status:              domain.StatusInValidation,
		ApplicationDeadline: opts.ApplicationDeadline,
		FinalDeadline:       opts.FinalDeadline,
		Public:              public,
		Technologies:        opts.Technologies,
		Types:               opts.Types,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Activity{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertActivity(ctx, tx, a); err != nil {
		return domain.Activity{}, fmt.Errorf("insert activity: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "activity.created", "activity", a.ID, rc.ActorID, events.EventPayload{"name": a.Name, "status": a.Status}); err != nil {
		return domain.Activity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Activity{}, err
	}
	if owner.ProjectManagerID != nil {
		e.notifyAfterCommit(ctx, rc.ActorID, *owner.ProjectManagerID, a.ID, notify.KindJobCreated)
	}
	return a, nil
}

// GetActivity returns the activity detail, subject to access rules.
func (e Engine) GetActivity(ctx context.Context, rc domain.RoleContext, id string) (domain.Activity, error) {
	a, err := e.Repo.GetActivity(ctx, id)
	if err != nil {
		return a, err
	}
	ok, err := e.Policy.CanAccessActivity(ctx, rc, a)
	if err != nil {
		return a, err
	}
	if !ok {
		return domain.Activity{}, domain.Deniedf("no access to activity %s", id)
	}
	return a, nil
}

// ActivityEditOptions carries the editable fields; nil means unchanged.
type ActivityEditOptions struct {
	Name                *string
	Description         *string
	ApplicationDeadline *string
	FinalDeadline       *string
	Public              *bool
	Status              *string
	Technologies        []string
	Types               []string
}

// EditActivity updates an activity. Only the owner or an admin may edit,
// and a non-admin owner cannot move the status while the activity is still
// IN_VALIDATION or already REJECTED; those transitions belong to the
// validation workflow.
func (e Engine) EditActivity(ctx context.Context, rc domain.RoleContext, id string, opts ActivityEditOptions) (domain.Activity, error) {
	a, err := e.Repo.GetActivity(ctx, id)
	if err != nil {
		return a, err
	}
	if !e.Policy.IsOwnerOrAdmin(rc, a) {
		return a, domain.Deniedf("only the owner or an admin may edit activity %s", id)
	}
	if opts.Status != nil && *opts.Status != a.Status {
		if !domain.ValidStatus(*opts.Status) {
			return a, domain.Invalidf("unknown status %s", *opts.Status)
		}
		if !rc.IsAdmin() && (a.Status == domain.StatusInValidation || a.Status == domain.StatusRejected) {
			return a, domain.Preconditionf("activity %s is %s; its status is managed by the validation workflow", id, a.Status)
		}
		a.Status = *opts.Status
	}
	if opts.Name != nil {
		if *opts.Name == "" {
			return a, domain.Invalidf("name is required")
		}
		a.Name = *opts.Name
	}
	if opts.Description != nil {
		a.Description = *opts.Description
	}
	if opts.ApplicationDeadline != nil {
		a.ApplicationDeadline = *opts.ApplicationDeadline
	}
	if opts.FinalDeadline != nil {
		a.FinalDeadline = *opts.FinalDeadline
	}
	if _, _, err := e.checkDeadlines(a.ApplicationDeadline, a.FinalDeadline); err != nil {
		return a, err
	}
	if opts.Public != nil {
		a.Public = *opts.Public
	}
	if opts.Technologies != nil {
		if err := e.Repo.CheckTechnologies(ctx, opts.Technologies); err != nil {
			return a, err
		}
		a.Technologies = opts.Technologies
	}
	if opts.Types != nil {
		if err := e.Repo.CheckActivityTypes(ctx, opts.Types); err != nil {
			return a, err
		}
		a.Types = opts.Types
	}
	a.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateActivity(ctx, tx, a); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "activity.updated", "activity", a.ID, rc.ActorID, events.EventPayload{"status": a.Status}); err != nil {
		return a, err
	}
	return a, tx.Commit()
}

// DeleteActivity removes the activity. Engagements and catalog links go
// with it; feedback rows survive with their activity reference severed.
func (e Engine) DeleteActivity(ctx context.Context, rc domain.RoleContext, id string) error {
	a, err := e.Repo.GetActivity(ctx, id)
	if err != nil {
		return err
	}
	if !e.Policy.IsOwnerOrAdmin(rc, a) {
		return domain.Deniedf("only the owner or an admin may delete activity %s", id)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteActivity(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "activity.deleted", "activity", id, rc.ActorID, events.EventPayload{"name": a.Name}); err != nil {
		return err
	}
	return tx.Commit()
}

// ValidateJob moves an IN_VALIDATION activity to NEW, opening it to the
// marketplace. Only the owner's project manager or an admin may do this.
func (e Engine) ValidateJob(ctx context.Context, rc domain.RoleContext, id string) (domain.Activity, error) {
	return e.settleValidation(ctx, rc, id, domain.StatusNew, "activity.validated", notify.KindJobValidated)
}

// RejectJob moves an IN_VALIDATION activity to REJECTED.
func (e Engine) RejectJob(ctx context.Context, rc domain.RoleContext, id string) (domain.Activity, error) {
	return e.settleValidation(ctx, rc, id, domain.StatusRejected, "activity.rejected", notify.KindJobRejected)
}

func (e Engine) settleValidation(ctx context.Context, rc domain.RoleContext, id, newStatus, evtType, kind string) (domain.Activity, error) {
	a, err := e.Repo.GetActivity(ctx, id)
	if err != nil {
		return a, err
	}
	if !rc.IsAdmin() {
		isPM, err := e.Policy.IsProjectManagerOf(ctx, rc, a.OwnerID)
		if err != nil {
			return a, err
		}
		if !isPM {
			return a, domain.Deniedf("only the owner's project manager or an admin may settle validation of activity %s", id)
		}
	}
	if a.Status != domain.StatusInValidation {
		return a, domain.Preconditionf("activity %s is %s, not %s", id, a.Status, domain.StatusInValidation)
	}
	now := e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateActivityStatus(ctx, tx, id, newStatus, now); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, evtType, "activity", id, rc.ActorID, events.EventPayload{"from": a.Status, "to": newStatus}); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	a.Status = newStatus
	a.UpdatedAt = now
	e.notifyAfterCommit(ctx, rc.ActorID, a.OwnerID, id, kind)
	return a, nil
}

// ListActivities returns a page of activities visible to the caller.
func (e Engine) ListActivities(ctx context.Context, rc domain.RoleContext, f listing.ActivityFilter, s listing.ActivitySort, p listing.Pagination) (listing.Page[domain.Activity], error) {
	total, err := e.Repo.CountActivities(ctx, f, rc)
	if err != nil {
		return listing.Page[domain.Activity]{}, err
	}
	w, meta, err := listing.Paginate(p, total)
	if err != nil {
		return listing.Page[domain.Activity]{}, err
	}
	results, err := e.Repo.ListActivities(ctx, f, s, rc, w)
	if err != nil {
		return listing.Page[domain.Activity]{}, err
	}
	return listing.PageOf(results, meta), nil
}

// ListPendingValidation returns the IN_VALIDATION activities awaiting the
// caller. PMs see their reports' submissions; admins see all of them.
func (e Engine) ListPendingValidation(ctx context.Context, rc domain.RoleContext) ([]domain.Activity, error) {
	if !rc.IsAdmin() && !rc.HasRole(domain.RolePM) {
		return nil, domain.Deniedf("only project managers and admins review submissions")
	}
	return e.Repo.ListActivitiesForValidation(ctx, rc)
}

// ListEngagedUsers returns a page of users engaged on the activity.
func (e Engine) ListEngagedUsers(ctx context.Context, rc domain.RoleContext, activityID string, f listing.EngagedUserFilter, s listing.UserSort, p listing.Pagination) (listing.Page[repo.EngagedUser], error) {
	var page listing.Page[repo.EngagedUser]
	a, err := e.Repo.GetActivity(ctx, activityID)
	if err != nil {
		return page, err
	}
	if !e.Policy.IsOwnerOrAdmin(rc, a) {
		return page, domain.Deniedf("only the owner or an admin may list users for activity %s", activityID)
	}
	total, err := e.Repo.CountEngagedUsers(ctx, activityID, f)
	if err != nil {
		return page, err
	}
	w, meta, err := listing.Paginate(p, total)
	if err != nil {
		return page, err
	}
	results, err := e.Repo.ListEngagedUsers(ctx, activityID, f, s, w)
	if err != nil {
		return page, err
	}
	return listing.PageOf(results, meta), nil
}
