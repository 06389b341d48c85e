// Package profile resolves how a user is displayed inside a household.
//
// Chores and activities carry a name/avatar snapshot taken when the action
// happened. The snapshot is the durable record; a live profile, when one is
// available, overrides it at read time.
package profile

import (
	"strings"

	"github.com/dukerupert/chorely/internal/model"
)

// Fallback is the name shown when neither an override nor a global display
// name is set.
const Fallback = "Someone"

// Display is what a client renders for a user.
type Display struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Live returns the current profile of a user in a household: the household
// override first, then the global profile. Name may be empty.
func Live(u *model.User, householdID string) Display {
	if u == nil {
		return Display{}
	}
	d := Display{
		Name:   strings.TrimSpace(u.DisplayName),
		Avatar: u.Avatar,
	}
	if p, ok := u.ProfileIn(householdID); ok {
		if name := strings.TrimSpace(p.DisplayName); name != "" {
			d.Name = name
		}
		if p.Avatar != "" {
			d.Avatar = p.Avatar
		}
	}
	return d
}

// Resolve applies a live profile over a stored snapshot. Empty live fields
// keep the snapshot value.
func Resolve(live *Display, snapshotName, snapshotAvatar string) Display {
	d := Display{Name: snapshotName, Avatar: snapshotAvatar}
	if live == nil {
		return d
	}
	if live.Name != "" {
		d.Name = live.Name
	}
	if live.Avatar != "" {
		d.Avatar = live.Avatar
	}
	return d
}

// DisplayName walks the fallback chain: household override, global display
// name, then Fallback.
func DisplayName(u *model.User, householdID string) string {
	if name := Live(u, householdID).Name; name != "" {
		return name
	}
	return Fallback
}

// Snapshot captures the actor identity to store on a chore or activity.
func Snapshot(u *model.User, householdID string) model.ActorSnapshot {
	live := Live(u, householdID)
	s := model.ActorSnapshot{Name: live.Name, Avatar: live.Avatar}
	if u != nil {
		s.UserID = u.ID
	}
	if s.Name == "" {
		s.Name = Fallback
	}
	return s
}
