package notify

import (
	"context"
	"fmt"

	"github.com/dukerupert/chorely/internal/feed"
	"github.com/dukerupert/chorely/internal/push"
)

// ChoreCreated tells the other members about a new chore.
func (n *Notifier) ChoreCreated(ctx context.Context, e feed.Event) error {
	if !e.Created() {
		return nil
	}
	_, c := e.Chore()
	if c == nil {
		return nil
	}

	h, err := n.households.GetByID(ctx, c.HouseholdID)
	if err != nil {
		return fmt.Errorf("get household: %w", err)
	}
	if h == nil {
		return nil
	}

	targets, err := n.targets(ctx, h, c.CreatedBy)
	if err != nil || len(targets) == 0 {
		return err
	}

	creator, err := n.displayName(ctx, c.CreatedBy, h.ID)
	if err != nil {
		return err
	}

	return n.send(ctx, targets, push.Notification{
		Title: "New chore",
		Body:  fmt.Sprintf("%s added \"%s\" (%d pts)", creator, c.Title, c.Points),
		Route: "/chores",
		Tag:   "chore-created-" + c.ID,
	})
}

// ChoreClaimed fires only when a chore goes from not in progress to in
// progress. Re-claiming a chore that is already in progress stays silent.
func (n *Notifier) ChoreClaimed(ctx context.Context, e feed.Event) error {
	before, after := e.Chore()
	if before == nil || after == nil || before.InProgress || !after.InProgress {
		return nil
	}

	h, err := n.households.GetByID(ctx, after.HouseholdID)
	if err != nil {
		return fmt.Errorf("get household: %w", err)
	}
	if h == nil {
		return nil
	}

	targets, err := n.targets(ctx, h, after.ClaimedBy)
	if err != nil || len(targets) == 0 {
		return err
	}

	claimant, err := n.displayName(ctx, after.ClaimedBy, h.ID)
	if err != nil {
		return err
	}

	return n.send(ctx, targets, push.Notification{
		Title: "Chore claimed",
		Body:  fmt.Sprintf("%s is working on \"%s\"", claimant, after.Title),
		Route: "/chores",
		Tag:   "chore-claimed-" + after.ID,
	})
}
