package domain

// Activity statuses. An activity is born IN_VALIDATION and only the
// lifecycle operations move it from there.
const (
	StatusInValidation = "IN_VALIDATION"
	StatusNew          = "NEW"
	StatusFinished     = "FINISHED"
	StatusClosed       = "CLOSED"
	StatusRejected     = "REJECTED"
)

// ActivityStatuses lists every valid activity status.
var ActivityStatuses = []string{
	StatusInValidation,
	StatusNew,
	StatusFinished,
	StatusClosed,
	StatusRejected,
}

// ValidStatus reports whether s is a known activity status.
func ValidStatus(s string) bool {
	for _, v := range ActivityStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Engagement types. The numeric values are part of the storage format.
const (
	EngagementInvited  = 0
	EngagementApplied  = 1
	EngagementAssigned = 2
	EngagementDeclined = 3
	EngagementRejected = 4
)

// EngagementTypeName maps an engagement type to its display name.
func EngagementTypeName(t int) string {
	switch t {
	case EngagementInvited:
		return "INVITED"
	case EngagementApplied:
		return "APPLIED"
	case EngagementAssigned:
		return "ASSIGNED"
	case EngagementDeclined:
		return "DECLINED"
	case EngagementRejected:
		return "REJECTED"
	}
	return "UNKNOWN"
}

// EngagementTypeByName resolves a display name back to its type value.
func EngagementTypeByName(name string) (int, bool) {
	for _, t := range []int{EngagementInvited, EngagementApplied, EngagementAssigned, EngagementDeclined, EngagementRejected} {
		if EngagementTypeName(t) == name {
			return t, true
		}
	}
	return 0, false
}

// Role names carried by users.
const (
	RoleUser  = "USER"
	RolePM    = "PM"
	RoleAdmin = "ADMIN"
)

type Activity struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description,omitempty"`
	OwnerID             string   `json:"owner_id"`
	Status              string   `json:"status" enum:"IN_VALIDATION,NEW,FINISHED,CLOSED,REJECTED"`
	ApplicationDeadline string   `json:"application_deadline" format:"date-time"`
	FinalDeadline       string   `json:"final_deadline" format:"date-time"`
	Public              bool     `json:"public"`
	Technologies        []string `json:"technologies,omitempty"`
	Types               []string `json:"types,omitempty"`
	CreatedAt           string   `json:"created_at" format:"date-time"`
	UpdatedAt           string   `json:"updated_at" format:"date-time"`
}

// Engagement is the one row per (activity,user) pair tracking how that user
// relates to the activity. Rows are never deleted by the workflow; they are
// the audit trail of who applied, was invited, and how it ended.
type Engagement struct {
	ID         int64  `json:"id"`
	ActivityID string `json:"activity_id"`
	UserID     string `json:"user_id"`
	Type       int    `json:"type"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	UpdatedAt  string `json:"updated_at" format:"date-time"`
}

type User struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Email            string   `json:"email,omitempty"`
	Roles            []string `json:"roles"`
	ProjectManagerID *string  `json:"project_manager_id,omitempty"`
	Stars            float64  `json:"stars"`
	CreatedAt        string   `json:"created_at" format:"date-time"`
}

// HasRole reports whether the user carries the given role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Comment is a discussion entry on an activity. Replies point at their
// parent; deleting one keeps the row with Deleted set so the thread under
// it stays readable.
type Comment struct {
	ID         int64  `json:"id"`
	ActivityID string `json:"activity_id"`
	UserID     string `json:"user_id"`
	ParentID   *int64 `json:"parent_id,omitempty"`
	Body       string `json:"body"`
	Deleted    bool   `json:"deleted"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	UpdatedAt  string `json:"updated_at" format:"date-time"`
}

type Feedback struct {
	ID         string  `json:"id"`
	ActivityID *string `json:"activity_id,omitempty"`
	FromUserID *string `json:"from_user_id,omitempty"`
	ToUserID   string  `json:"to_user_id"`
	Stars      int     `json:"stars"`
	Message    string  `json:"message,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

type Technology struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ActivityType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type Notification struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	ActivityID string `json:"activity_id"`
	Kind       string `json:"kind"`
}

// RoleContext is the caller's identity and role set, resolved per call.
// There is no ambient authentication state anywhere else.
type RoleContext struct {
	ActorID string
	Roles   []string
}

func (rc RoleContext) HasRole(role string) bool {
	for _, r := range rc.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (rc RoleContext) IsAdmin() bool {
	return rc.HasRole(RoleAdmin)
}
