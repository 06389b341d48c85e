// Package leaderboard derives scores from completion activities. Point
// totals are never stored; every figure here is computed from the ledger.
package leaderboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/dukerupert/chorely/internal/model"
)

// Scores sums points per user over chore completion activities.
func Scores(acts []model.Activity) map[string]int {
	scores := make(map[string]int)
	for _, a := range acts {
		if a.Type != model.ActivityChoreCompletion {
			continue
		}
		scores[a.UserID] += a.Points
	}
	return scores
}

// FirstPlace returns the users attaining the maximum score. Ties are all
// included. The set is empty when nobody has a positive score.
func FirstPlace(scores map[string]int) map[string]bool {
	best := 0
	for _, s := range scores {
		if s > best {
			best = s
		}
	}
	leaders := make(map[string]bool)
	if best <= 0 {
		return leaders
	}
	for id, s := range scores {
		if s == best {
			leaders[id] = true
		}
	}
	return leaders
}

// Overtaken returns the users who held first place before the activity
// identified by triggeringID and no longer do after it. all must include the
// triggering activity. The result is sorted.
func Overtaken(all []model.Activity, triggeringID string) []string {
	prior := make([]model.Activity, 0, len(all))
	for _, a := range all {
		if a.ID != triggeringID {
			prior = append(prior, a)
		}
	}

	oldFirst := FirstPlace(Scores(prior))
	newFirst := FirstPlace(Scores(all))

	var out []string
	for id := range oldFirst {
		if !newFirst[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

type Period string

const (
	Week  Period = "week"
	Month Period = "month"
	All   Period = "all"
)

func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return Week, nil
	case Week, Month, All:
		return Period(s), nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Since returns the start of the window for p at now. Weeks start on Monday.
// A household reset later than the calendar boundary moves the start forward.
// The zero time means no lower bound.
func Since(p Period, now time.Time, lastReset *time.Time) time.Time {
	now = now.UTC()
	var start time.Time
	switch p {
	case Week:
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		start = day.AddDate(0, 0, -offset)
	case Month:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	if lastReset != nil && lastReset.UTC().After(start) {
		start = lastReset.UTC()
	}
	return start
}

type Entry struct {
	Rank            int    `json:"rank"`
	UserID          string `json:"user_id"`
	Name            string `json:"name"`
	Avatar          string `json:"avatar,omitempty"`
	Points          int    `json:"points"`
	ChoresCompleted int    `json:"chores_completed"`
}

// Standings ranks users by points earned in the window of p. Name and avatar
// come from each user's most recent activity snapshot.
func Standings(acts []model.Activity, p Period, now time.Time, lastReset *time.Time) []Entry {
	return Rank(Tally(acts, p, now, lastReset))
}

// Tally sums points and completions per user in the window of p. Entries are
// unranked and unordered.
func Tally(acts []model.Activity, p Period, now time.Time, lastReset *time.Time) []Entry {
	since := Since(p, now, lastReset)

	byUser := make(map[string]*Entry)
	latest := make(map[string]time.Time)
	for _, a := range acts {
		if a.Type != model.ActivityChoreCompletion || a.CompletedAt.Before(since) {
			continue
		}
		e, ok := byUser[a.UserID]
		if !ok {
			e = &Entry{UserID: a.UserID}
			byUser[a.UserID] = e
		}
		e.Points += a.Points
		e.ChoresCompleted++
		if !a.CompletedAt.Before(latest[a.UserID]) {
			latest[a.UserID] = a.CompletedAt
			e.Name, e.Avatar = a.UserName, a.UserAvatar
		}
	}

	entries := make([]Entry, 0, len(byUser))
	for _, e := range byUser {
		entries = append(entries, *e)
	}
	return entries
}

// Rank orders entries by points, then by the names they carry, and assigns
// ranks. Equal points share a rank. Names must be final before ranking.
func Rank(entries []Entry) []Entry {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		if i > 0 && entries[i].Points == entries[i-1].Points {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = i + 1
		}
	}
	return entries
}
