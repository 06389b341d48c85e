package feed

import (
	"time"

	"github.com/dukerupert/chorely/internal/model"
)

// Collection names a kind of document.
type Collection string

const (
	Users      Collection = "users"
	Households Collection = "households"
	Chores     Collection = "chores"
	Activities Collection = "activities"
)

// Event describes one document change. Before is nil for a create, After is
// nil for a delete. Both hold pointers to the model type of the collection.
type Event struct {
	Collection  Collection `json:"collection"`
	ID          string     `json:"id"`
	HouseholdID string     `json:"household_id"`
	Before      any        `json:"before,omitempty"`
	After       any        `json:"after,omitempty"`
	At          time.Time  `json:"at"`
}

func (e Event) Created() bool { return e.Before == nil && e.After != nil }
func (e Event) Updated() bool { return e.Before != nil && e.After != nil }
func (e Event) Deleted() bool { return e.Before != nil && e.After == nil }

// Action is the verb used on the wire: created, updated or deleted.
func (e Event) Action() string {
	switch {
	case e.Created():
		return "created"
	case e.Deleted():
		return "deleted"
	default:
		return "updated"
	}
}

func ChoreChanged(before, after *model.Chore) Event {
	e := Event{Collection: Chores, At: time.Now().UTC()}
	if before != nil {
		e.Before, e.ID, e.HouseholdID = before, before.ID, before.HouseholdID
	}
	if after != nil {
		e.After, e.ID, e.HouseholdID = after, after.ID, after.HouseholdID
	}
	return e
}

func HouseholdChanged(before, after *model.Household) Event {
	e := Event{Collection: Households, At: time.Now().UTC()}
	if before != nil {
		e.Before, e.ID, e.HouseholdID = before, before.ID, before.ID
	}
	if after != nil {
		e.After, e.ID, e.HouseholdID = after, after.ID, after.ID
	}
	return e
}

func ActivityChanged(before, after *model.Activity) Event {
	e := Event{Collection: Activities, At: time.Now().UTC()}
	if before != nil {
		e.Before, e.ID, e.HouseholdID = before, before.ID, before.HouseholdID
	}
	if after != nil {
		e.After, e.ID, e.HouseholdID = after, after.ID, after.HouseholdID
	}
	return e
}

// UserChanged builds a users event scoped to one household. The copies
// carried by the event omit the push token.
func UserChanged(householdID string, before, after *model.User) Event {
	e := Event{Collection: Users, HouseholdID: householdID, At: time.Now().UTC()}
	if before != nil {
		b := *before
		b.PushToken = ""
		e.Before, e.ID = &b, b.ID
	}
	if after != nil {
		a := *after
		a.PushToken = ""
		e.After, e.ID = &a, a.ID
	}
	return e
}

// Chore returns the before and after chore documents of a chores event.
func (e Event) Chore() (before, after *model.Chore) {
	before, _ = e.Before.(*model.Chore)
	after, _ = e.After.(*model.Chore)
	return before, after
}

func (e Event) Household() (before, after *model.Household) {
	before, _ = e.Before.(*model.Household)
	after, _ = e.After.(*model.Household)
	return before, after
}

func (e Event) User() (before, after *model.User) {
	before, _ = e.Before.(*model.User)
	after, _ = e.After.(*model.User)
	return before, after
}

func (e Event) Activity() (before, after *model.Activity) {
	before, _ = e.Before.(*model.Activity)
	after, _ = e.After.(*model.Activity)
	return before, after
}
