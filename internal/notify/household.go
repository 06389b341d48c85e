package notify

import (
	"context"
	"fmt"
	"sort"

	"github.com/dukerupert/chorely/internal/feed"
	"github.com/dukerupert/chorely/internal/push"
)

// MemberJoined announces each member added to a household to everyone else in
// it. Added members are handled one at a time in id order.
func (n *Notifier) MemberJoined(ctx context.Context, e feed.Event) error {
	before, after := e.Household()
	if before == nil || after == nil {
		return nil
	}

	var added []string
	for id := range after.Members {
		if _, ok := before.Members[id]; !ok {
			added = append(added, id)
		}
	}
	if len(added) == 0 {
		return nil
	}
	sort.Strings(added)

	for _, id := range added {
		targets, err := n.targets(ctx, after, id)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			continue
		}
		name, err := n.displayName(ctx, id, after.ID)
		if err != nil {
			return err
		}
		if err := n.send(ctx, targets, push.Notification{
			Title: "New member",
			Body:  fmt.Sprintf("%s joined %s", name, after.Name),
			Route: "/household",
			Tag:   "member-joined-" + id,
		}); err != nil {
			return err
		}
	}
	return nil
}
