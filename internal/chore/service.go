// Package chore implements the chore lifecycle: creating chores, claiming
// them, completing them for points and resetting them.
package chore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/chorely/internal/feed"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/profile"
	"github.com/dukerupert/chorely/internal/store"
)

const (
	maxTitleLength = 100
	maxPoints      = 1000
)

type Store interface {
	Create(ctx context.Context, householdID, title string, points int, createdBy string, scheduledFor *time.Time) (*model.Chore, error)
	GetByID(ctx context.Context, id string) (*model.Chore, error)
	ListByHousehold(ctx context.Context, householdID string) ([]model.Chore, error)
	Update(ctx context.Context, id, title string, points int, scheduledFor *time.Time) (*model.Chore, error)
	Delete(ctx context.Context, id string) error
	DeleteByHousehold(ctx context.Context, householdID string) ([]model.Chore, error)
	Claim(ctx context.Context, id string, actor model.ActorSnapshot, at time.Time) ([]model.Chore, error)
	Complete(ctx context.Context, id string, actor model.ActorSnapshot, at time.Time) (*model.Activity, error)
	Reset(ctx context.Context, id string) ([]model.Activity, error)
}

type Activities interface {
	ListByHousehold(ctx context.Context, householdID string) ([]model.Activity, error)
	ListRecent(ctx context.Context, householdID string, limit int) ([]model.Activity, error)
}

type Households interface {
	GetByID(ctx context.Context, id string) (*model.Household, error)
}

type Users interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.User, error)
}

type Service struct {
	store      Store
	activities Activities
	households Households
	users      Users
	pub        feed.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(store Store, activities Activities, households Households, users Users, pub feed.Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		activities: activities,
		households: households,
		users:      users,
		pub:        pub,
		logger:     logger,
		now:        time.Now,
	}
}

// Input is the editable part of a chore.
type Input struct {
	Title        string     `json:"title"`
	Points       int        `json:"points"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

func (in Input) validate() (Input, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return in, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if utf8.RuneCountInString(in.Title) > maxTitleLength {
		return in, fmt.Errorf("%w: title must be at most %d characters", ErrValidation, maxTitleLength)
	}
	if in.Points <= 0 || in.Points > maxPoints {
		return in, fmt.Errorf("%w: points must be between 1 and %d", ErrValidation, maxPoints)
	}
	if in.ScheduledFor != nil {
		t := in.ScheduledFor.UTC()
		in.ScheduledFor = &t
	}
	return in, nil
}

func (s *Service) household(ctx context.Context, userID, householdID string) (*model.Household, error) {
	h, err := s.households.GetByID(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	if h == nil {
		return nil, ErrHouseholdNotFound
	}
	if !h.IsMember(userID) {
		return nil, ErrNotMember
	}
	return h, nil
}

// chore loads a chore and checks that userID belongs to its household.
func (s *Service) chore(ctx context.Context, userID, choreID string) (*model.Chore, *model.Household, error) {
	c, err := s.store.GetByID(ctx, choreID)
	if err != nil {
		return nil, nil, fmt.Errorf("get chore: %w", err)
	}
	if c == nil {
		return nil, nil, ErrChoreNotFound
	}
	h, err := s.household(ctx, userID, c.HouseholdID)
	if err != nil {
		return nil, nil, err
	}
	return c, h, nil
}

// usersByID loads the given users, skipping empty and unknown ids.
func (s *Service) usersByID(ctx context.Context, ids []string) (map[string]*model.User, error) {
	seen := make(map[string]bool)
	var unique []string
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	byID := make(map[string]*model.User, len(unique))
	if len(unique) == 0 {
		return byID, nil
	}
	users, err := s.users.ListByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	return byID, nil
}

func (s *Service) actor(ctx context.Context, userID, householdID string) (model.ActorSnapshot, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.ActorSnapshot{}, fmt.Errorf("get user: %w", err)
	}
	snap := profile.Snapshot(u, householdID)
	snap.UserID = userID
	return snap, nil
}

func (s *Service) Create(ctx context.Context, userID, householdID string, in Input) (*model.Chore, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}
	if _, err := s.household(ctx, userID, householdID); err != nil {
		return nil, err
	}

	c, err := s.store.Create(ctx, householdID, in.Title, in.Points, userID, in.ScheduledFor)
	if err != nil {
		return nil, fmt.Errorf("create chore: %w", err)
	}
	s.pub.Publish(feed.ChoreChanged(nil, c))
	return c, nil
}

// List returns the household's chores, newest first.
func (s *Service) List(ctx context.Context, userID, householdID string) ([]View, error) {
	if _, err := s.household(ctx, userID, householdID); err != nil {
		return nil, err
	}
	chores, err := s.store.ListByHousehold(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}

	var ids []string
	for _, c := range chores {
		ids = append(ids, c.ClaimedBy, c.CompletedBy)
	}
	users, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]View, len(chores))
	for i, c := range chores {
		views[i] = NewView(c, users, now)
	}
	return views, nil
}

func (s *Service) Update(ctx context.Context, userID, choreID string, in Input) (*model.Chore, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}
	before, _, err := s.chore(ctx, userID, choreID)
	if err != nil {
		return nil, err
	}

	after, err := s.store.Update(ctx, choreID, in.Title, in.Points, in.ScheduledFor)
	if err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	s.pub.Publish(feed.ChoreChanged(before, after))
	return after, nil
}

// Claim puts the chore in progress for userID. Any other chore of the
// household that was in progress goes back to pending.
func (s *Service) Claim(ctx context.Context, userID, choreID string) (*model.Chore, error) {
	before, h, err := s.chore(ctx, userID, choreID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !Actionable(*before, now) {
		return nil, ErrNotYetAvailable
	}
	if _, err := Next(StatusOf(*before), ActionClaim); err != nil {
		return nil, err
	}

	actor, err := s.actor(ctx, userID, h.ID)
	if err != nil {
		return nil, err
	}

	released, err := s.store.Claim(ctx, choreID, actor, now)
	if errors.Is(err, store.ErrChoreCompleted) {
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("claim chore: %w", err)
	}
	for i := range released {
		after, err := s.store.GetByID(ctx, released[i].ID)
		if err != nil {
			return nil, fmt.Errorf("reload released chore: %w", err)
		}
		if after != nil {
			s.pub.Publish(feed.ChoreChanged(&released[i], after))
		}
	}

	after, err := s.store.GetByID(ctx, choreID)
	if err != nil {
		return nil, fmt.Errorf("reload chore: %w", err)
	}
	s.logger.Debug("chore claimed", "chore_id", choreID, "user_id", userID, "released", len(released))
	s.pub.Publish(feed.ChoreChanged(before, after))
	return after, nil
}

// Complete marks the chore done and records the completion activity.
func (s *Service) Complete(ctx context.Context, userID, choreID string) (*model.Chore, error) {
	before, h, err := s.chore(ctx, userID, choreID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !Actionable(*before, now) {
		return nil, ErrNotYetAvailable
	}
	if _, err := Next(StatusOf(*before), ActionComplete); err != nil {
		return nil, err
	}

	actor, err := s.actor(ctx, userID, h.ID)
	if err != nil {
		return nil, err
	}
	activity, err := s.store.Complete(ctx, choreID, actor, now)
	if errors.Is(err, store.ErrChoreCompleted) {
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("complete chore: %w", err)
	}
	after, err := s.store.GetByID(ctx, choreID)
	if err != nil {
		return nil, fmt.Errorf("reload chore: %w", err)
	}

	s.logger.Debug("chore completed", "chore_id", choreID, "user_id", userID, "points", activity.Points)
	s.pub.Publish(feed.ChoreChanged(before, after))
	s.pub.Publish(feed.ActivityChanged(nil, activity))
	return after, nil
}

// Reset returns the chore to pending. A completed chore loses its
// completion activities.
func (s *Service) Reset(ctx context.Context, userID, choreID string) (*model.Chore, error) {
	before, _, err := s.chore(ctx, userID, choreID)
	if err != nil {
		return nil, err
	}
	if StatusOf(*before) == StatusPending {
		return before, nil
	}

	removed, err := s.store.Reset(ctx, choreID)
	if err != nil {
		return nil, fmt.Errorf("reset chore: %w", err)
	}
	after, err := s.store.GetByID(ctx, choreID)
	if err != nil {
		return nil, fmt.Errorf("reload chore: %w", err)
	}

	s.pub.Publish(feed.ChoreChanged(before, after))
	for i := range removed {
		s.pub.Publish(feed.ActivityChanged(&removed[i], nil))
	}
	return after, nil
}

// Delete removes a chore. Its completion history stays on the leaderboard.
func (s *Service) Delete(ctx context.Context, userID, choreID string) error {
	c, _, err := s.chore(ctx, userID, choreID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, choreID); err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	s.pub.Publish(feed.ChoreChanged(c, nil))
	return nil
}

// DeleteAll removes every chore of the household. Admins only.
func (s *Service) DeleteAll(ctx context.Context, userID, householdID string) (int, error) {
	h, err := s.household(ctx, userID, householdID)
	if err != nil {
		return 0, err
	}
	if !h.IsAdmin(userID) {
		return 0, ErrNotAdmin
	}

	deleted, err := s.store.DeleteByHousehold(ctx, householdID)
	if err != nil {
		return 0, fmt.Errorf("delete chores: %w", err)
	}
	for i := range deleted {
		s.pub.Publish(feed.ChoreChanged(&deleted[i], nil))
	}
	s.logger.Info("chores cleared", "household_id", householdID, "user_id", userID, "count", len(deleted))
	return len(deleted), nil
}
