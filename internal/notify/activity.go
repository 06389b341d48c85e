package notify

import (
	"context"
	"fmt"

	"github.com/dukerupert/chorely/internal/feed"
	"github.com/dukerupert/chorely/internal/leaderboard"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/push"
)

func completion(e feed.Event) *model.Activity {
	if !e.Created() {
		return nil
	}
	_, a := e.Activity()
	if a == nil || a.Type != model.ActivityChoreCompletion {
		return nil
	}
	return a
}

// ChoreCompleted tells the other members who finished a chore and how many
// points it earned.
func (n *Notifier) ChoreCompleted(ctx context.Context, e feed.Event) error {
	a := completion(e)
	if a == nil {
		return nil
	}

	h, err := n.households.GetByID(ctx, a.HouseholdID)
	if err != nil {
		return fmt.Errorf("get household: %w", err)
	}
	if h == nil {
		return nil
	}

	targets, err := n.targets(ctx, h, a.UserID)
	if err != nil || len(targets) == 0 {
		return err
	}

	completer, err := n.displayName(ctx, a.UserID, h.ID)
	if err != nil {
		return err
	}

	return n.send(ctx, targets, push.Notification{
		Title: "Chore completed",
		Body:  fmt.Sprintf("%s completed \"%s\" and earned %d pts", completer, a.ChoreTitle, a.Points),
		Route: "/chores",
		Tag:   "chore-completed-" + a.ChoreID,
	})
}

// LeaderboardOvertake compares all-time first place with and without the new
// completion and notifies each user who dropped out of it.
func (n *Notifier) LeaderboardOvertake(ctx context.Context, e feed.Event) error {
	a := completion(e)
	if a == nil {
		return nil
	}

	all, err := n.activities.ListByHousehold(ctx, a.HouseholdID)
	if err != nil {
		return fmt.Errorf("list activities: %w", err)
	}
	overtaken := leaderboard.Overtaken(all, a.ID)
	if len(overtaken) == 0 {
		return nil
	}

	h, err := n.households.GetByID(ctx, a.HouseholdID)
	if err != nil {
		return fmt.Errorf("get household: %w", err)
	}
	if h == nil {
		return nil
	}

	actor, err := n.displayName(ctx, a.UserID, h.ID)
	if err != nil {
		return err
	}

	note := push.Notification{
		Title: "You've been overtaken!",
		Body:  fmt.Sprintf("%s just passed you on the %s leaderboard", actor, h.Name),
		Route: "/leaderboard",
		Tag:   "leaderboard-" + h.ID,
	}
	for _, uid := range overtaken {
		targets, err := n.targetsFor(ctx, h.ID, []string{uid})
		if err != nil {
			return err
		}
		if err := n.send(ctx, targets, note); err != nil {
			return err
		}
	}
	return nil
}
