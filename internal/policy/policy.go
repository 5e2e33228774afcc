// Package policy answers access questions about activities and feedback.
// It reads state and returns verdicts; it never mutates anything.
package policy

import (
	"context"
	"errors"

	"gigline/internal/domain"
	"gigline/internal/repo"
)

type Policy struct {
	Repo repo.Repo
}

// IsOwnerOrAdmin reports whether the caller owns the activity or is an admin.
func (p Policy) IsOwnerOrAdmin(rc domain.RoleContext, a domain.Activity) bool {
	return rc.IsAdmin() || a.OwnerID == rc.ActorID
}

// IsProjectManagerOf reports whether the caller is the owner's assigned PM.
func (p Policy) IsProjectManagerOf(ctx context.Context, rc domain.RoleContext, ownerID string) (bool, error) {
	owner, err := p.Repo.GetUser(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return owner.ProjectManagerID != nil && *owner.ProjectManagerID == rc.ActorID, nil
}

// CanAccessActivity decides whether the caller may see the activity detail.
// While awaiting validation the activity is restricted to the owner, the
// owner's PM, and admins. Any other status follows the plain rule: public
// activities are open to everyone, non-public ones to the owner, engaged
// users, and admins.
func (p Policy) CanAccessActivity(ctx context.Context, rc domain.RoleContext, a domain.Activity) (bool, error) {
	if p.IsOwnerOrAdmin(rc, a) {
		return true, nil
	}
	if a.Status == domain.StatusInValidation {
		return p.IsProjectManagerOf(ctx, rc, a.OwnerID)
	}
	if a.Public {
		return true, nil
	}
	_, err := p.Repo.FindEngagement(ctx, a.ID, rc.ActorID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// CanGiveFeedback decides whether from may rate to in the context of the
// activity. Feedback is only open once the work is FINISHED, between the
// owner and assigned users or between two assigned users.
func (p Policy) CanGiveFeedback(ctx context.Context, a domain.Activity, fromID, toID string) (bool, error) {
	if fromID == toID {
		return false, nil
	}
	if a.Status != domain.StatusFinished {
		return false, nil
	}
	assigned, err := p.Repo.ListAssignedUsers(ctx, a.ID)
	if err != nil {
		return false, err
	}
	isParty := func(userID string) bool {
		if a.OwnerID == userID {
			return true
		}
		for _, u := range assigned {
			if u.ID == userID {
				return true
			}
		}
		return false
	}
	return isParty(fromID) && isParty(toID), nil
}
