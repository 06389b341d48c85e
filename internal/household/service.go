// Package household manages households and their membership.
package household

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/chorely/internal/feed"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/profile"
)

const maxNameLength = 60

type Store interface {
	Create(ctx context.Context, name, inviteCode, creatorID string) (*model.Household, error)
	GetByID(ctx context.Context, id string) (*model.Household, error)
	GetByInviteCode(ctx context.Context, code string) (*model.Household, error)
	CodeTaken(ctx context.Context, code string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]model.Household, error)
	Rename(ctx context.Context, id, name string) (*model.Household, error)
	SetLastReset(ctx context.Context, id string, at time.Time) (*model.Household, error)
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, householdID, userID string, role model.Role) error
	RemoveMember(ctx context.Context, householdID, userID string) error
	SetRole(ctx context.Context, householdID, userID string, role model.Role) error
}

type Users interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.User, error)
	SetMemberProfile(ctx context.Context, householdID, userID, displayName, avatar string) error
	SetActiveHousehold(ctx context.Context, id, householdID string) error
}

type Mailer interface {
	Configured() bool
	SendInvite(ctx context.Context, toEmail, inviterName, householdName, code string) error
}

type Service struct {
	store  Store
	users  Users
	mailer Mailer
	pub    feed.Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the service. mailer may be nil.
func NewService(store Store, users Users, mailer Mailer, pub feed.Publisher, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		users:  users,
		mailer: mailer,
		pub:    pub,
		logger: logger,
		now:    time.Now,
	}
}

// Member is a household member as shown to clients.
type Member struct {
	UserID string     `json:"user_id"`
	Role   model.Role `json:"role"`
	Name   string     `json:"name"`
	Avatar string     `json:"avatar,omitempty"`
	Email  string     `json:"email,omitempty"`
}

type Detail struct {
	Household *model.Household `json:"household"`
	Members   []Member         `json:"members"`
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: name must be at most %d characters", ErrValidation, maxNameLength)
	}
	return name, nil
}

// load fetches a household and checks that userID belongs to it.
func (s *Service) load(ctx context.Context, userID, householdID string) (*model.Household, error) {
	h, err := s.store.GetByID(ctx, householdID)
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

func (s *Service) loadAsAdmin(ctx context.Context, userID, householdID string) (*model.Household, error) {
	h, err := s.load(ctx, userID, householdID)
	if err != nil {
		return nil, err
	}
	if !h.IsAdmin(userID) {
		return nil, ErrNotAdmin
	}
	return h, nil
}

// Authorize returns the household if userID is a member of it.
func (s *Service) Authorize(ctx context.Context, userID, householdID string) (*model.Household, error) {
	return s.load(ctx, userID, householdID)
}

// Create makes a new household with userID as its only admin.
func (s *Service) Create(ctx context.Context, userID, name string) (*model.Household, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}

	code, err := generateUniqueCode(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("generate invite code: %w", err)
	}

	h, err := s.store.Create(ctx, name, code, userID)
	if err != nil {
		return nil, fmt.Errorf("create household: %w", err)
	}

	s.logger.Info("household created", "household_id", h.ID, "user_id", userID)
	s.pub.Publish(feed.HouseholdChanged(nil, h))
	return h, nil
}

// Join adds userID to the household holding code as a regular member.
func (s *Service) Join(ctx context.Context, userID, code string) (*model.Household, error) {
	code = NormalizeCode(code)
	if len(code) != codeLength {
		return nil, ErrInvalidCode
	}

	before, err := s.store.GetByInviteCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get household by code: %w", err)
	}
	if before == nil {
		return nil, ErrInvalidCode
	}
	if before.IsMember(userID) {
		return nil, ErrAlreadyMember
	}

	if err := s.store.AddMember(ctx, before.ID, userID, model.RoleMember); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	after, err := s.store.GetByID(ctx, before.ID)
	if err != nil {
		return nil, fmt.Errorf("reload household: %w", err)
	}

	s.logger.Info("member joined", "household_id", before.ID, "user_id", userID)
	s.pub.Publish(feed.HouseholdChanged(before, after))
	return after, nil
}

// Get returns the household with its resolved member list.
func (s *Service) Get(ctx context.Context, userID, householdID string) (*Detail, error) {
	h, err := s.load(ctx, userID, householdID)
	if err != nil {
		return nil, err
	}

	users, err := s.users.ListByIDs(ctx, h.MemberIDs())
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	byID := make(map[string]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	members := make([]Member, 0, len(h.Members))
	for _, id := range h.MemberIDs() {
		u := byID[id]
		live := profile.Live(u, h.ID)
		m := Member{
			UserID: id,
			Role:   h.Members[id],
			Name:   profile.DisplayName(u, h.ID),
			Avatar: live.Avatar,
		}
		if u != nil {
			m.Email = u.Email
		}
		members = append(members, m)
	}
	return &Detail{Household: h, Members: members}, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]model.Household, error) {
	households, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list households: %w", err)
	}
	return households, nil
}

// SetActive switches the household the user's clients open by default.
func (s *Service) SetActive(ctx context.Context, userID, householdID string) error {
	if _, err := s.load(ctx, userID, householdID); err != nil {
		return err
	}
	if err := s.users.SetActiveHousehold(ctx, userID, householdID); err != nil {
		return fmt.Errorf("set active household: %w", err)
	}
	return nil
}

func (s *Service) Rename(ctx context.Context, userID, householdID, name string) (*model.Household, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	before, err := s.loadAsAdmin(ctx, userID, householdID)
	if err != nil {
		return nil, err
	}

	after, err := s.store.Rename(ctx, householdID, name)
	if err != nil {
		return nil, fmt.Errorf("rename household: %w", err)
	}
	s.pub.Publish(feed.HouseholdChanged(before, after))
	return after, nil
}

// Delete removes the household with its chores and history.
func (s *Service) Delete(ctx context.Context, userID, householdID string) error {
	h, err := s.loadAsAdmin(ctx, userID, householdID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, householdID); err != nil {
		return fmt.Errorf("delete household: %w", err)
	}

	s.logger.Info("household deleted", "household_id", householdID, "user_id", userID)
	s.pub.Publish(feed.HouseholdChanged(h, nil))
	return nil
}

// Leave removes userID from the household. The last admin cannot leave while
// other members remain; the last member leaving deletes the household.
func (s *Service) Leave(ctx context.Context, userID, householdID string) error {
	h, err := s.load(ctx, userID, householdID)
	if err != nil {
		return err
	}

	if len(h.Members) == 1 {
		if err := s.store.Delete(ctx, householdID); err != nil {
			return fmt.Errorf("delete household: %w", err)
		}
		s.logger.Info("last member left, household deleted", "household_id", householdID, "user_id", userID)
		s.pub.Publish(feed.HouseholdChanged(h, nil))
		return nil
	}
	if h.IsAdmin(userID) && h.AdminCount() == 1 {
		return ErrLastAdmin
	}

	return s.removeMember(ctx, h, userID)
}

// RemoveMember lets an admin remove someone else from the household.
func (s *Service) RemoveMember(ctx context.Context, actorID, householdID, targetID string) error {
	if actorID == targetID {
		return fmt.Errorf("%w: use leave to remove yourself", ErrValidation)
	}
	h, err := s.loadAsAdmin(ctx, actorID, householdID)
	if err != nil {
		return err
	}
	if !h.IsMember(targetID) {
		return ErrNotMember
	}
	return s.removeMember(ctx, h, targetID)
}

func (s *Service) removeMember(ctx context.Context, before *model.Household, userID string) error {
	if err := s.store.RemoveMember(ctx, before.ID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	after, err := s.store.GetByID(ctx, before.ID)
	if err != nil {
		return fmt.Errorf("reload household: %w", err)
	}

	s.logger.Info("member removed", "household_id", before.ID, "user_id", userID)
	s.pub.Publish(feed.HouseholdChanged(before, after))
	return nil
}

// SetRole changes a member's role. Demoting the last admin is rejected.
func (s *Service) SetRole(ctx context.Context, actorID, householdID, targetID string, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	before, err := s.loadAsAdmin(ctx, actorID, householdID)
	if err != nil {
		return err
	}
	current, ok := before.Members[targetID]
	if !ok {
		return ErrNotMember
	}
	if current == role {
		return nil
	}
	if current == model.RoleAdmin && before.AdminCount() == 1 {
		return ErrLastAdmin
	}

	if err := s.store.SetRole(ctx, householdID, targetID, role); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	after, err := s.store.GetByID(ctx, householdID)
	if err != nil {
		return fmt.Errorf("reload household: %w", err)
	}
	s.pub.Publish(feed.HouseholdChanged(before, after))
	return nil
}

// SetProfile stores the caller's display name and avatar override for one
// household. Empty values fall back to the global profile.
func (s *Service) SetProfile(ctx context.Context, userID, householdID, displayName, avatar string) error {
	displayName = strings.TrimSpace(displayName)
	if utf8.RuneCountInString(displayName) > maxNameLength {
		return fmt.Errorf("%w: name must be at most %d characters", ErrValidation, maxNameLength)
	}
	if _, err := s.load(ctx, userID, householdID); err != nil {
		return err
	}

	before, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if err := s.users.SetMemberProfile(ctx, householdID, userID, displayName, avatar); err != nil {
		return fmt.Errorf("set member profile: %w", err)
	}
	after, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("reload user: %w", err)
	}
	s.pub.Publish(feed.UserChanged(householdID, before, after))
	return nil
}

// ResetLeaderboard starts a new scoring window. Activities are kept.
func (s *Service) ResetLeaderboard(ctx context.Context, userID, householdID string) (*model.Household, error) {
	before, err := s.loadAsAdmin(ctx, userID, householdID)
	if err != nil {
		return nil, err
	}
	after, err := s.store.SetLastReset(ctx, householdID, s.now())
	if err != nil {
		return nil, fmt.Errorf("reset leaderboard: %w", err)
	}
	s.pub.Publish(feed.HouseholdChanged(before, after))
	return after, nil
}

// Invite emails the household's invite code to an address.
func (s *Service) Invite(ctx context.Context, userID, householdID, email string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	h, err := s.loadAsAdmin(ctx, userID, householdID)
	if err != nil {
		return err
	}
	if s.mailer == nil || !s.mailer.Configured() {
		return ErrInviteUnavailable
	}

	inviter, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get inviter: %w", err)
	}
	if err := s.mailer.SendInvite(ctx, addr.Address, profile.DisplayName(inviter, h.ID), h.Name, h.InviteCode); err != nil {
		return fmt.Errorf("send invite: %w", err)
	}
	s.logger.Info("invite sent", "household_id", h.ID, "user_id", userID)
	return nil
}
