package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/listing"
	"gigline/internal/migrate"
)

const (
	appDeadline   = "2024-07-01T00:00:00Z"
	finalDeadline = "2024-12-01T00:00:00Z"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default("test"))
	eng.Now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	env := testEnv{Engine: eng, Ctx: context.Background()}

	env.addUser(t, "owner")
	env.addUser(t, "pm", domain.RolePM)
	env.addUser(t, "worker")
	env.addUser(t, "worker2")
	env.addUser(t, "admin", domain.RoleAdmin)
	if err := eng.Repo.SetProjectManager(env.Ctx, "owner", strPtr("pm")); err != nil {
		t.Fatalf("set pm: %v", err)
	}
	return env
}

func (env testEnv) addUser(t *testing.T, id string, extraRoles ...string) {
	t.Helper()
	u := domain.User{
		ID:        id,
		Name:      id,
		Roles:     append([]string{domain.RoleUser}, extraRoles...),
		CreatedAt: "2024-01-01T00:00:00Z",
	}
	if err := env.Engine.Repo.InsertUser(env.Ctx, u); err != nil {
		t.Fatalf("insert user %s: %v", id, err)
	}
}

func (env testEnv) rc(t *testing.T, id string) domain.RoleContext {
	t.Helper()
	u, err := env.Engine.Repo.GetUser(env.Ctx, id)
	if err != nil {
		t.Fatalf("get user %s: %v", id, err)
	}
	return domain.RoleContext{ActorID: u.ID, Roles: u.Roles}
}

func (env testEnv) createActivity(t *testing.T, name string) domain.Activity {
	t.Helper()
	a, err := env.Engine.CreateActivity(env.Ctx, env.rc(t, "owner"), engine.ActivityCreateOptions{
		Name:                name,
		ApplicationDeadline: appDeadline,
		FinalDeadline:       finalDeadline,
	})
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}
	return a
}

func (env testEnv) createValidatedActivity(t *testing.T, name string) domain.Activity {
	t.Helper()
	a := env.createActivity(t, name)
	a, err := env.Engine.ValidateJob(env.Ctx, env.rc(t, "pm"), a.ID)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	return a
}

func strPtr(s string) *string { return &s }

func TestActivityValidationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActivity(t, "build api")
	if a.Status != domain.StatusInValidation {
		t.Fatalf("new activity status = %s", a.Status)
	}
	// owner cannot bypass validation
	_, err := env.Engine.EditActivity(env.Ctx, env.rc(t, "owner"), a.ID, engine.ActivityEditOptions{Status: strPtr(domain.StatusNew)})
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("owner status bypass: %v", err)
	}
	// a random user cannot validate
	_, err = env.Engine.ValidateJob(env.Ctx, env.rc(t, "worker"), a.ID)
	if !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("worker validate: %v", err)
	}
	a, err = env.Engine.ValidateJob(env.Ctx, env.rc(t, "pm"), a.ID)
	if err != nil || a.Status != domain.StatusNew {
		t.Fatalf("pm validate: %v (status %s)", err, a.Status)
	}
	// validation settles exactly once
	_, err = env.Engine.ValidateJob(env.Ctx, env.rc(t, "pm"), a.ID)
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("second validate: %v", err)
	}
	// once NEW, the owner closes it out
	a, err = env.Engine.EditActivity(env.Ctx, env.rc(t, "owner"), a.ID, engine.ActivityEditOptions{Status: strPtr(domain.StatusFinished)})
	if err != nil || a.Status != domain.StatusFinished {
		t.Fatalf("finish: %v (status %s)", err, a.Status)
	}
}

func TestRejectedActivityAcceptsNoApplications(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActivity(t, "doomed")
	a, err := env.Engine.RejectJob(env.Ctx, env.rc(t, "pm"), a.ID)
	if err != nil || a.Status != domain.StatusRejected {
		t.Fatalf("reject: %v (status %s)", err, a.Status)
	}
	_, err = env.Engine.Apply(env.Ctx, env.rc(t, "worker"), a.ID)
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("apply to rejected: %v", err)
	}
}

func TestApplyRules(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActivity(t, "gig")
	// not open yet
	_, err := env.Engine.Apply(env.Ctx, env.rc(t, "worker"), a.ID)
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("apply before validation: %v", err)
	}
	if _, err := env.Engine.ValidateJob(env.Ctx, env.rc(t, "pm"), a.ID); err != nil {
		t.Fatal(err)
	}
	// owner cannot apply to their own posting
	_, err = env.Engine.Apply(env.Ctx, env.rc(t, "owner"), a.ID)
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("self apply: %v", err)
	}
	eng, err := env.Engine.Apply(env.Ctx, env.rc(t, "worker"), a.ID)
	if err != nil || eng.Type != domain.EngagementApplied {
		t.Fatalf("apply: %v", err)
	}
	// one engagement per pair
	_, err = env.Engine.Apply(env.Ctx, env.rc(t, "worker"), a.ID)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second apply: %v", err)
	}
}

func TestApplyDeadline(t *testing.T) {
	env := newTestEnv(t)
	a := env.createValidatedActivity(t, "deadline")
	// the deadline instant itself counts as expired
	env.Engine.Now = func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) }
	_, err := env.Engine.Apply(env.Ctx, env.rc(t, "worker"), a.ID)
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("apply at deadline: %v", err)
	}
}

func TestApplicationSettlement(t *testing.T) {
	env := newTestEnv(t)
	a := env.createValidatedActivity(t, "settle")
	if _, err := env.Engine.Apply(env.Ctx, env.rc(t, "worker"), a.ID); err != nil {
		t.Fatal(err)
	}
	// only the owner or an admin settles applications
	_, err := env.Engine.AcceptApplicant(env.Ctx, env.rc(t, "worker2"), a.ID, "worker")
	if !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("stranger accept: %v", err)
	}
	eng, err := env.Engine.AcceptApplicant(env.Ctx, env.rc(t, "owner"), a.ID, "worker")
	if err != nil || eng.Type != domain.EngagementAssigned {
		t.Fatalf("accept: %v", err)
	}
	// the pair row is terminal; applying again conflicts
	_, err = env.Engine.Apply(env.Ctx, env.rc(t, "worker"), a.ID)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("re-apply after accept: %v", err)
	}
	// settling an already settled engagement fails
	_, err = env.Engine.RejectApplicant(env.Ctx, env.rc(t, "owner"), a.ID, "worker")
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("reject after accept: %v", err)
	}

	if _, err := env.Engine.Apply(env.Ctx, env.rc(t, "worker2"), a.ID); err != nil {
		t.Fatal(err)
	}
	eng, err = env.Engine.RejectApplicant(env.Ctx, env.rc(t, "owner"), a.ID, "worker2")
	if err != nil || eng.Type != domain.EngagementRejected {
		t.Fatalf("reject: %v", err)
	}
}

func TestInvitationFlow(t *testing.T) {
	env := newTestEnv(t)
	a := env.createValidatedActivity(t, "invite")
	// only the owner or an admin invites
	_, err := env.Engine.Invite(env.Ctx, env.rc(t, "worker"), a.ID, "worker2")
	if !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("stranger invite: %v", err)
	}
	_, err = env.Engine.Invite(env.Ctx, env.rc(t, "owner"), a.ID, "owner")
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("invite owner: %v", err)
	}
	_, err = env.Engine.Invite(env.Ctx, env.rc(t, "owner"), a.ID, "nobody")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("invite unknown user: %v", err)
	}
	if _, err := env.Engine.Invite(env.Ctx, env.rc(t, "owner"), a.ID, "worker"); err != nil {
		t.Fatal(err)
	}
	// the invited user settles their own invitation
	_, err = env.Engine.AcceptApplicant(env.Ctx, env.rc(t, "owner"), a.ID, "worker")
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("accept-applicant on invitation: %v", err)
	}
	eng, err := env.Engine.AcceptInvitation(env.Ctx, env.rc(t, "worker"), a.ID)
	if err != nil || eng.Type != domain.EngagementAssigned {
		t.Fatalf("accept invitation: %v", err)
	}

	if _, err := env.Engine.Invite(env.Ctx, env.rc(t, "owner"), a.ID, "worker2"); err != nil {
		t.Fatal(err)
	}
	eng, err = env.Engine.DeclineInvitation(env.Ctx, env.rc(t, "worker2"), a.ID)
	if err != nil || eng.Type != domain.EngagementDeclined {
		t.Fatalf("decline: %v", err)
	}
	// declined is terminal
	_, err = env.Engine.AcceptInvitation(env.Ctx, env.rc(t, "worker2"), a.ID)
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("accept after decline: %v", err)
	}
}

func TestFeedbackRules(t *testing.T) {
	env := newTestEnv(t)
	a := env.createValidatedActivity(t, "rate me")
	if _, err := env.Engine.Apply(env.Ctx, env.rc(t, "worker"), a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AcceptApplicant(env.Ctx, env.rc(t, "owner"), a.ID, "worker"); err != nil {
		t.Fatal(err)
	}
	// nothing to rate until the work is finished
	_, err := env.Engine.GiveFeedback(env.Ctx, env.rc(t, "owner"), a.ID, "worker", 5, "great")
	if !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("feedback before finished: %v", err)
	}
	if _, err := env.Engine.EditActivity(env.Ctx, env.rc(t, "owner"), a.ID, engine.ActivityEditOptions{Status: strPtr(domain.StatusFinished)}); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.GiveFeedback(env.Ctx, env.rc(t, "owner"), a.ID, "worker", 6, "")
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("stars out of range: %v", err)
	}
	if _, err := env.Engine.GiveFeedback(env.Ctx, env.rc(t, "owner"), a.ID, "worker", 5, "great"); err != nil {
		t.Fatalf("owner rates worker: %v", err)
	}
	if _, err := env.Engine.GiveFeedback(env.Ctx, env.rc(t, "worker"), a.ID, "owner", 3, "slow payer"); err != nil {
		t.Fatalf("worker rates owner: %v", err)
	}
	// bystanders stay out
	_, err = env.Engine.GiveFeedback(env.Ctx, env.rc(t, "worker2"), a.ID, "worker", 1, "")
	if !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("bystander feedback: %v", err)
	}
	u, err := env.Engine.Repo.GetUser(env.Ctx, "worker")
	if err != nil {
		t.Fatal(err)
	}
	if u.Stars != 5 {
		t.Fatalf("worker stars = %v", u.Stars)
	}
}

func TestListVisibility(t *testing.T) {
	env := newTestEnv(t)
	env.createActivity(t, "pending") // stays IN_VALIDATION
	env.createValidatedActivity(t, "open")
	hidden, err := env.Engine.CreateActivity(env.Ctx, env.rc(t, "owner"), engine.ActivityCreateOptions{
		Name:                "private",
		ApplicationDeadline: appDeadline,
		FinalDeadline:       finalDeadline,
		Public:              boolPtr(false),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.ValidateJob(env.Ctx, env.rc(t, "pm"), hidden.ID); err != nil {
		t.Fatal(err)
	}

	page, err := env.Engine.ListActivities(env.Ctx, env.rc(t, "worker"), listing.ActivityFilter{}, listing.ActivitySort{}, listing.Pagination{Page: 1, PageSize: listing.AllRows})
	if err != nil {
		t.Fatal(err)
	}
	if page.NumResults != 1 || page.Results[0].Name != "open" {
		t.Fatalf("worker sees %d activities", page.NumResults)
	}
	// the owner sees everything they posted
	page, err = env.Engine.ListActivities(env.Ctx, env.rc(t, "owner"), listing.ActivityFilter{}, listing.ActivitySort{}, listing.Pagination{Page: 1, PageSize: listing.AllRows})
	if err != nil {
		t.Fatal(err)
	}
	if page.NumResults != 3 {
		t.Fatalf("owner sees %d activities", page.NumResults)
	}
	// engaged users see private activities they are part of
	if _, err := env.Engine.Invite(env.Ctx, env.rc(t, "owner"), hidden.ID, "worker"); err != nil {
		t.Fatal(err)
	}
	page, err = env.Engine.ListActivities(env.Ctx, env.rc(t, "worker"), listing.ActivityFilter{}, listing.ActivitySort{}, listing.Pagination{Page: 1, PageSize: listing.AllRows})
	if err != nil {
		t.Fatal(err)
	}
	if page.NumResults != 2 {
		t.Fatalf("invited worker sees %d activities", page.NumResults)
	}
}

func TestListPagination(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		env.createValidatedActivity(t, name)
	}
	rc := env.rc(t, "worker")

	page, err := env.Engine.ListActivities(env.Ctx, rc, listing.ActivityFilter{}, listing.ActivitySort{}, listing.Pagination{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Results) != 2 || page.NumResults != 5 || page.NumPages != 3 || page.PerPage != 2 {
		t.Fatalf("page = %+v", page)
	}
	// the sentinel returns everything as one page
	page, err = env.Engine.ListActivities(env.Ctx, rc, listing.ActivityFilter{}, listing.ActivitySort{}, listing.Pagination{Page: 1, PageSize: listing.AllRows})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Results) != 5 || page.NumPages != 1 || page.PerPage != 5 {
		t.Fatalf("sentinel page = %+v", page)
	}
	// invalid page sizes and out-of-range pages read as not found
	for _, p := range []listing.Pagination{
		{Page: 1, PageSize: 0},
		{Page: 1, PageSize: -2},
		{Page: 4, PageSize: 2},
	} {
		if _, err := env.Engine.ListActivities(env.Ctx, rc, listing.ActivityFilter{}, listing.ActivitySort{}, p); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("pagination %+v: %v", p, err)
		}
	}
}

func TestListSortAndFilter(t *testing.T) {
	env := newTestEnv(t)
	env.createValidatedActivity(t, "zeta")
	env.createValidatedActivity(t, "alpha")
	rc := env.rc(t, "worker")

	var sort listing.ActivitySort
	sort.Set("name", "ASC") // direction is case-insensitive
	page, err := env.Engine.ListActivities(env.Ctx, rc, listing.ActivityFilter{}, sort, listing.Pagination{Page: 1, PageSize: listing.AllRows})
	if err != nil {
		t.Fatal(err)
	}
	if page.Results[0].Name != "alpha" {
		t.Fatalf("sorted first = %s", page.Results[0].Name)
	}
	// an invalid direction is ignored, not an error
	var bad listing.ActivitySort
	bad.Set("name", "sideways")
	if _, err := env.Engine.ListActivities(env.Ctx, rc, listing.ActivityFilter{}, bad, listing.Pagination{Page: 1, PageSize: listing.AllRows}); err != nil {
		t.Fatalf("invalid direction: %v", err)
	}
	page, err = env.Engine.ListActivities(env.Ctx, rc, listing.ActivityFilter{Name: "ze"}, listing.ActivitySort{}, listing.Pagination{Page: 1, PageSize: listing.AllRows})
	if err != nil {
		t.Fatal(err)
	}
	if page.NumResults != 1 || page.Results[0].Name != "zeta" {
		t.Fatalf("name filter: %+v", page.Results)
	}
}

func TestAccessToActivityDetail(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActivity(t, "detail")
	// while IN_VALIDATION only the owner, their PM and admins see it
	if _, err := env.Engine.GetActivity(env.Ctx, env.rc(t, "owner"), a.ID); err != nil {
		t.Fatalf("owner: %v", err)
	}
	if _, err := env.Engine.GetActivity(env.Ctx, env.rc(t, "pm"), a.ID); err != nil {
		t.Fatalf("pm: %v", err)
	}
	if _, err := env.Engine.GetActivity(env.Ctx, env.rc(t, "admin"), a.ID); err != nil {
		t.Fatalf("admin: %v", err)
	}
	_, err := env.Engine.GetActivity(env.Ctx, env.rc(t, "worker"), a.ID)
	if !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("worker: %v", err)
	}
	if _, err := env.Engine.ValidateJob(env.Ctx, env.rc(t, "pm"), a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.GetActivity(env.Ctx, env.rc(t, "worker"), a.ID); err != nil {
		t.Fatalf("worker after validation: %v", err)
	}
}

func TestRejectedActivityDetailAccess(t *testing.T) {
	env := newTestEnv(t)
	// a rejected public activity reads like any other public one
	a := env.createActivity(t, "rejected but public")
	if _, err := env.Engine.RejectJob(env.Ctx, env.rc(t, "pm"), a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.GetActivity(env.Ctx, env.rc(t, "worker"), a.ID); err != nil {
		t.Fatalf("worker on rejected public: %v", err)
	}
	// a rejected private one stays restricted like any other private one
	b, err := env.Engine.CreateActivity(env.Ctx, env.rc(t, "owner"), engine.ActivityCreateOptions{
		Name:                "rejected and private",
		ApplicationDeadline: appDeadline,
		FinalDeadline:       finalDeadline,
		Public:              boolPtr(false),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.RejectJob(env.Ctx, env.rc(t, "pm"), b.ID); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.GetActivity(env.Ctx, env.rc(t, "worker"), b.ID)
	if !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("worker on rejected private: %v", err)
	}
	if _, err := env.Engine.GetActivity(env.Ctx, env.rc(t, "owner"), b.ID); err != nil {
		t.Fatalf("owner on rejected private: %v", err)
	}
}

func TestEventsAndNotifications(t *testing.T) {
	env := newTestEnv(t)
	a := env.createValidatedActivity(t, "observed")
	if _, err := env.Engine.Apply(env.Ctx, env.rc(t, "worker"), a.ID); err != nil {
		t.Fatal(err)
	}
	events, err := env.Engine.Repo.ListEvents(env.Ctx, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) < 3 {
		t.Fatalf("expected events for create/validate/apply, got %d", len(events))
	}
	// the owner was told about the application, the PM about the submission
	ownerNotes, err := env.Engine.Repo.ListNotifications(env.Ctx, "owner", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ownerNotes) < 2 {
		t.Fatalf("owner notifications = %d", len(ownerNotes))
	}
	pmNotes, err := env.Engine.Repo.ListNotifications(env.Ctx, "pm", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pmNotes) != 1 {
		t.Fatalf("pm notifications = %d", len(pmNotes))
	}
}

func TestListEngagedUsers(t *testing.T) {
	env := newTestEnv(t)
	a := env.createValidatedActivity(t, "crew")
	if _, err := env.Engine.Apply(env.Ctx, env.rc(t, "worker"), a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Invite(env.Ctx, env.rc(t, "owner"), a.ID, "worker2"); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.ListEngagedUsers(env.Ctx, env.rc(t, "worker"), a.ID, listing.EngagedUserFilter{EngagementType: -1}, listing.UserSort{}, listing.Pagination{Page: 1, PageSize: listing.AllRows})
	if !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("stranger listing: %v", err)
	}
	page, err := env.Engine.ListEngagedUsers(env.Ctx, env.rc(t, "owner"), a.ID, listing.EngagedUserFilter{EngagementType: -1}, listing.UserSort{}, listing.Pagination{Page: 1, PageSize: listing.AllRows})
	if err != nil {
		t.Fatal(err)
	}
	if page.NumResults != 2 {
		t.Fatalf("engaged users = %d", page.NumResults)
	}
	page, err = env.Engine.ListEngagedUsers(env.Ctx, env.rc(t, "owner"), a.ID, listing.EngagedUserFilter{EngagementType: domain.EngagementApplied}, listing.UserSort{}, listing.Pagination{Page: 1, PageSize: listing.AllRows})
	if err != nil {
		t.Fatal(err)
	}
	if page.NumResults != 1 || page.Results[0].User.ID != "worker" {
		t.Fatalf("applied filter: %+v", page.Results)
	}
}

func TestPendingValidationQueue(t *testing.T) {
	env := newTestEnv(t)
	env.createActivity(t, "queued")
	_, err := env.Engine.ListPendingValidation(env.Ctx, env.rc(t, "worker"))
	if !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("worker queue: %v", err)
	}
	pending, err := env.Engine.ListPendingValidation(env.Ctx, env.rc(t, "pm"))
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Name != "queued" {
		t.Fatalf("pm queue: %+v", pending)
	}
	// another PM with no reports sees nothing
	env.addUser(t, "pm2", domain.RolePM)
	pending, err = env.Engine.ListPendingValidation(env.Ctx, env.rc(t, "pm2"))
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("pm2 queue: %+v", pending)
	}
}

func TestCatalogValidation(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.Repo.UpsertTechnology(env.Ctx, domain.Technology{ID: "go", Name: "Go"}); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.CreateActivity(env.Ctx, env.rc(t, "owner"), engine.ActivityCreateOptions{
		Name:                "tagged",
		ApplicationDeadline: appDeadline,
		FinalDeadline:       finalDeadline,
		Technologies:        []string{"go", "cobol"},
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown technology: %v", err)
	}
	a, err := env.Engine.CreateActivity(env.Ctx, env.rc(t, "owner"), engine.ActivityCreateOptions{
		Name:                "tagged",
		ApplicationDeadline: appDeadline,
		FinalDeadline:       finalDeadline,
		Technologies:        []string{"go"},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.GetActivity(env.Ctx, env.rc(t, "owner"), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Technologies) != 1 || got.Technologies[0] != "go" {
		t.Fatalf("technologies = %v", got.Technologies)
	}
}

func TestDeadlineOrdering(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateActivity(env.Ctx, env.rc(t, "owner"), engine.ActivityCreateOptions{
		Name:                "backwards",
		ApplicationDeadline: finalDeadline,
		FinalDeadline:       appDeadline,
	})
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("reversed deadlines: %v", err)
	}
}

func TestDeleteActivity(t *testing.T) {
	env := newTestEnv(t)
	a := env.createValidatedActivity(t, "short lived")
	if _, err := env.Engine.Apply(env.Ctx, env.rc(t, "worker"), a.ID); err != nil {
		t.Fatal(err)
	}
	err := env.Engine.DeleteActivity(env.Ctx, env.rc(t, "worker"), a.ID)
	if !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("stranger delete: %v", err)
	}
	if err := env.Engine.DeleteActivity(env.Ctx, env.rc(t, "owner"), a.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	_, err = env.Engine.GetActivity(env.Ctx, env.rc(t, "owner"), a.ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("after delete: %v", err)
	}
}

func TestCommentAccessFollowsActivity(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActivity(t, "discussed")
	// while IN_VALIDATION outsiders can neither write nor read
	_, err := env.Engine.AddComment(env.Ctx, env.rc(t, "worker"), a.ID, "first!", nil)
	if !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("worker comment before validation: %v", err)
	}
	if _, err := env.Engine.AddComment(env.Ctx, env.rc(t, "owner"), a.ID, "notes to self", nil); err != nil {
		t.Fatalf("owner comment: %v", err)
	}
	_, err = env.Engine.ListComments(env.Ctx, env.rc(t, "worker"), a.ID)
	if !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("worker list before validation: %v", err)
	}
	if _, err := env.Engine.ValidateJob(env.Ctx, env.rc(t, "pm"), a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AddComment(env.Ctx, env.rc(t, "worker"), a.ID, "is this still open?", nil); err != nil {
		t.Fatalf("worker comment after validation: %v", err)
	}
	comments, err := env.Engine.ListComments(env.Ctx, env.rc(t, "worker"), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 2 {
		t.Fatalf("comments = %d", len(comments))
	}
}

func TestCommentThreading(t *testing.T) {
	env := newTestEnv(t)
	a := env.createValidatedActivity(t, "threaded")
	root, err := env.Engine.AddComment(env.Ctx, env.rc(t, "worker"), a.ID, "what stack is this?", nil)
	if err != nil {
		t.Fatal(err)
	}
	reply, err := env.Engine.AddComment(env.Ctx, env.rc(t, "owner"), a.ID, "go and sqlite", &root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reply.ParentID == nil || *reply.ParentID != root.ID {
		t.Fatalf("reply parent = %v", reply.ParentID)
	}
	// a reply must point at a comment on the same activity
	other := env.createValidatedActivity(t, "elsewhere")
	_, err = env.Engine.AddComment(env.Ctx, env.rc(t, "worker"), other.ID, "misplaced", &root.ID)
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("cross-activity reply: %v", err)
	}
	missing := root.ID + 1000
	_, err = env.Engine.AddComment(env.Ctx, env.rc(t, "worker"), a.ID, "ghost reply", &missing)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("reply to missing parent: %v", err)
	}
}

func TestCommentEditAndDelete(t *testing.T) {
	env := newTestEnv(t)
	a := env.createValidatedActivity(t, "moderated")
	c, err := env.Engine.AddComment(env.Ctx, env.rc(t, "worker"), a.ID, "tpyo", nil)
	if err != nil {
		t.Fatal(err)
	}
	reply, err := env.Engine.AddComment(env.Ctx, env.rc(t, "worker2"), a.ID, "you mean typo", &c.ID)
	if err != nil {
		t.Fatal(err)
	}
	// only the author or an admin may touch a comment
	_, err = env.Engine.EditComment(env.Ctx, env.rc(t, "worker2"), c.ID, "hijacked")
	if !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("stranger edit: %v", err)
	}
	if err := env.Engine.DeleteComment(env.Ctx, env.rc(t, "worker2"), c.ID); !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("stranger delete: %v", err)
	}
	edited, err := env.Engine.EditComment(env.Ctx, env.rc(t, "worker"), c.ID, "typo")
	if err != nil || edited.Body != "typo" {
		t.Fatalf("author edit: %v (%q)", err, edited.Body)
	}
	// deleting blanks the comment but keeps the thread under it
	if err := env.Engine.DeleteComment(env.Ctx, env.rc(t, "worker"), c.ID); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	comments, err := env.Engine.ListComments(env.Ctx, env.rc(t, "owner"), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 2 {
		t.Fatalf("comments after delete = %d", len(comments))
	}
	if !comments[0].Deleted || comments[0].Body != "" {
		t.Fatalf("deleted comment = %+v", comments[0])
	}
	if comments[1].ID != reply.ID || comments[1].Deleted {
		t.Fatalf("reply after parent delete = %+v", comments[1])
	}
	// a deleted comment is settled
	if _, err := env.Engine.EditComment(env.Ctx, env.rc(t, "worker"), c.ID, "resurrect"); !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("edit deleted: %v", err)
	}
	if err := env.Engine.DeleteComment(env.Ctx, env.rc(t, "admin"), c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("double delete: %v", err)
	}
	// an admin may moderate someone else's comment
	if err := env.Engine.DeleteComment(env.Ctx, env.rc(t, "admin"), reply.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestCommentsGoWithTheActivity(t *testing.T) {
	env := newTestEnv(t)
	a := env.createValidatedActivity(t, "short lived thread")
	if _, err := env.Engine.AddComment(env.Ctx, env.rc(t, "worker"), a.ID, "interested", nil); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteActivity(env.Ctx, env.rc(t, "owner"), a.ID); err != nil {
		t.Fatal(err)
	}
	comments, err := env.Engine.Repo.ListComments(env.Ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 0 {
		t.Fatalf("comments survived activity delete: %d", len(comments))
	}
}

func boolPtr(b bool) *bool { return &b }
