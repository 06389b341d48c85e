package chore

import (
	"context"
	"fmt"

	"github.com/dukerupert/chorely/internal/leaderboard"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/profile"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// RecentActivity returns the latest completions, newest first, with names and
// avatars resolved against live profiles.
func (s *Service) RecentActivity(ctx context.Context, userID, householdID string, limit int) ([]model.Activity, error) {
	if _, err := s.household(ctx, userID, householdID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	limit = min(limit, maxActivityLimit)

	acts, err := s.activities.ListRecent(ctx, householdID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	ids := make([]string, len(acts))
	for i, a := range acts {
		ids[i] = a.UserID
	}
	users, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range acts {
		d := profile.Resolve(live(users, acts[i].UserID, householdID), acts[i].UserName, acts[i].UserAvatar)
		acts[i].UserName, acts[i].UserAvatar = d.Name, d.Avatar
	}
	return acts, nil
}

// Standings ranks the household's members for a leaderboard period.
func (s *Service) Standings(ctx context.Context, userID, householdID string, period leaderboard.Period) ([]leaderboard.Entry, error) {
	h, err := s.household(ctx, userID, householdID)
	if err != nil {
		return nil, err
	}
	acts, err := s.activities.ListByHousehold(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	entries := leaderboard.Tally(acts, period, s.now(), h.LastResetAt)

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	users, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		d := profile.Resolve(live(users, entries[i].UserID, householdID), entries[i].Name, entries[i].Avatar)
		entries[i].Name, entries[i].Avatar = d.Name, d.Avatar
	}
	return leaderboard.Rank(entries), nil
}
