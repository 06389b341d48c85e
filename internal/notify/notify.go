// Package notify holds the push notification triggers. Each trigger is a feed
// handler that reacts to one kind of document change, works out who should
// hear about it and hands the message to a push sender.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/dukerupert/chorely/internal/feed"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/profile"
	"github.com/dukerupert/chorely/internal/push"
)

type Households interface {
	GetByID(ctx context.Context, id string) (*model.Household, error)
}

type Users interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.User, error)
}

type Activities interface {
	ListByHousehold(ctx context.Context, householdID string) ([]model.Activity, error)
}

type Subscriptions interface {
	ListByUsers(ctx context.Context, householdID string, userIDs []string) ([]model.PushSubscription, error)
}

type Sender interface {
	Send(ctx context.Context, targets []push.Target, n push.Notification) error
}

// Subscriber is the registration side of the change feed.
type Subscriber interface {
	Subscribe(name string, c feed.Collection, h feed.Handler)
}

type Notifier struct {
	households Households
	users      Users
	activities Activities
	subs       Subscriptions
	sender     Sender
	logger     *slog.Logger
}

// New builds a Notifier. subs may be nil when browser push is not in use.
func New(households Households, users Users, activities Activities, subs Subscriptions, sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		households: households,
		users:      users,
		activities: activities,
		subs:       subs,
		sender:     sender,
		logger:     logger,
	}
}

// Register subscribes every trigger to the feed.
func (n *Notifier) Register(s Subscriber) {
	s.Subscribe("chore_created", feed.Chores, n.contain("chore_created", n.ChoreCreated))
	s.Subscribe("chore_claimed", feed.Chores, n.contain("chore_claimed", n.ChoreClaimed))
	s.Subscribe("chore_completed", feed.Activities, n.contain("chore_completed", n.ChoreCompleted))
	s.Subscribe("leaderboard_overtake", feed.Activities, n.contain("leaderboard_overtake", n.LeaderboardOvertake))
	s.Subscribe("member_joined", feed.Households, n.contain("member_joined", n.MemberJoined))
}

// contain turns errors and panics of a trigger into log lines. Triggers are
// never retried, so the wrapped handler always reports success.
func (n *Notifier) contain(name string, h feed.Handler) feed.Handler {
	return func(ctx context.Context, e feed.Event) (err error) {
		defer func() {
			if r := recover(); r != nil {
				n.logger.Error("trigger panicked", "trigger", name, "event_id", e.ID, "panic", r, "stack", string(debug.Stack()))
				err = nil
			}
		}()
		if err := h(ctx, e); err != nil {
			n.logger.Error("trigger failed", "trigger", name, "event_id", e.ID, "error", err)
		}
		return nil
	}
}

// targets resolves delivery targets for the members of h other than exclude.
func (n *Notifier) targets(ctx context.Context, h *model.Household, exclude string) ([]push.Target, error) {
	var ids []string
	for _, id := range h.MemberIDs() {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	return n.targetsFor(ctx, h.ID, ids)
}

func (n *Notifier) targetsFor(ctx context.Context, householdID string, ids []string) ([]push.Target, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	users, err := n.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	var subs []model.PushSubscription
	if n.subs != nil {
		subs, err = n.subs.ListByUsers(ctx, householdID, ids)
		if err != nil {
			return nil, fmt.Errorf("list recipient subscriptions: %w", err)
		}
	}
	return push.Targets(users, subs), nil
}

// displayName resolves a user's name in a household. A missing user resolves
// to the fallback name.
func (n *Notifier) displayName(ctx context.Context, userID, householdID string) (string, error) {
	u, err := n.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get user %s: %w", userID, err)
	}
	return profile.DisplayName(u, householdID), nil
}

func (n *Notifier) send(ctx context.Context, targets []push.Target, note push.Notification) error {
	if len(targets) == 0 {
		return nil
	}
	if err := n.sender.Send(ctx, targets, note); err != nil {
		return fmt.Errorf("send %q: %w", note.Title, err)
	}
	return nil
}
