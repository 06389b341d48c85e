package chore

import (
	"time"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/profile"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

type Action string

const (
	ActionClaim    Action = "claim"
	ActionComplete Action = "complete"
	ActionReset    Action = "reset"
)

// StatusOf derives the lifecycle state from the chore's flags. Completed wins
// over in progress.
func StatusOf(c model.Chore) Status {
	switch {
	case c.Completed:
		return StatusCompleted
	case c.InProgress:
		return StatusInProgress
	default:
		return StatusPending
	}
}

// Next returns the state reached by applying a in from. Claiming an
// in-progress chore keeps it in progress with a new claimant. Resetting a
// pending chore is a no-op. A completed chore must be reset before it can be
// claimed or completed again.
func Next(from Status, a Action) (Status, error) {
	switch a {
	case ActionClaim:
		if from == StatusCompleted {
			return from, ErrInvalidTransition
		}
		return StatusInProgress, nil
	case ActionComplete:
		if from == StatusCompleted {
			return from, ErrInvalidTransition
		}
		return StatusCompleted, nil
	case ActionReset:
		return StatusPending, nil
	}
	return from, ErrInvalidTransition
}

// Actionable reports whether the chore can be claimed or completed at now.
// Chores scheduled in the future are listed but locked until then.
func Actionable(c model.Chore, now time.Time) bool {
	return c.ScheduledFor == nil || !now.Before(*c.ScheduledFor)
}

// View is a chore as listed to clients: snapshots resolved against live
// profiles, plus its derived status.
type View struct {
	model.Chore
	Status     Status `json:"status"`
	Actionable bool   `json:"actionable"`
}

// NewView builds the client view of c. users holds the live profiles known to
// the caller, keyed by user id; missing users keep their snapshot.
func NewView(c model.Chore, users map[string]*model.User, now time.Time) View {
	if c.ClaimedBy != "" {
		d := profile.Resolve(live(users, c.ClaimedBy, c.HouseholdID), c.ClaimedName, c.ClaimedAvatar)
		c.ClaimedName, c.ClaimedAvatar = d.Name, d.Avatar
	}
	if c.CompletedBy != "" {
		d := profile.Resolve(live(users, c.CompletedBy, c.HouseholdID), c.CompletedName, c.CompletedAvatar)
		c.CompletedName, c.CompletedAvatar = d.Name, d.Avatar
	}
	return View{Chore: c, Status: StatusOf(c), Actionable: Actionable(c, now)}
}

func live(users map[string]*model.User, id, householdID string) *profile.Display {
	u, ok := users[id]
	if !ok || u == nil {
		return nil
	}
	d := profile.Live(u, householdID)
	return &d
}
