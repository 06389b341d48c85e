package household

import (
	"context"
	"database/sql"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/chorely/internal/database"
	"github.com/dukerupert/chorely/internal/feed"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/store"
)

type recorder struct {
	mu     sync.Mutex
	events []feed.Event
}

func (r *recorder) Publish(e feed.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) last() feed.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fakeMailer struct {
	configured bool
	to, code   string
	inviter    string
}

func (m *fakeMailer) Configured() bool { return m.configured }

func (m *fakeMailer) SendInvite(ctx context.Context, to, inviter, household, code string) error {
	m.to, m.inviter, m.code = to, inviter, code
	return nil
}

type env struct {
	db     *sql.DB
	svc    *Service
	users  *store.UserStore
	pub    *recorder
	mailer *fakeMailer
}

func setup(t *testing.T) *env {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	for id, name := range map[string]string{"alice": "Alice", "bob": "Bob", "carol": "Carol"} {
		_, err := users.Ensure(context.Background(), id, name, id+"@example.com", "")
		require.NoError(t, err)
	}

	pub := &recorder{}
	mailer := &fakeMailer{configured: true}
	svc := NewService(store.NewHouseholdStore(db), users, mailer, pub, slog.Default())
	return &env{db: db, svc: svc, users: users, pub: pub, mailer: mailer}
}

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func TestCreate(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	h, err := e.svc.Create(ctx, "alice", "  The Smiths ")
	require.NoError(t, err)
	assert.Equal(t, "The Smiths", h.Name)
	assert.Regexp(t, codePattern, h.InviteCode)
	assert.Equal(t, map[string]model.Role{"alice": model.RoleAdmin}, h.Members)

	u, err := e.users.GetByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, h.ID, u.ActiveHouseholdID)

	ev := e.pub.last()
	assert.True(t, ev.Created())
	assert.Equal(t, feed.Households, ev.Collection)

	_, err = e.svc.Create(ctx, "alice", "   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestJoin(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	h, err := e.svc.Create(ctx, "alice", "Home")
	require.NoError(t, err)

	joined, err := e.svc.Join(ctx, "bob", " "+strings.ToLower(h.InviteCode)+" ")
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, joined.Members["bob"])

	ev := e.pub.last()
	before, after := ev.Household()
	require.NotNil(t, before)
	require.NotNil(t, after)
	assert.False(t, before.IsMember("bob"))
	assert.True(t, after.IsMember("bob"))

	_, err = e.svc.Join(ctx, "bob", h.InviteCode)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, err = e.svc.Join(ctx, "carol", "ZZZZZZ")
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = e.svc.Join(ctx, "carol", "abc")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func newHousehold(t *testing.T, e *env, members ...string) *model.Household {
	t.Helper()
	ctx := context.Background()
	h, err := e.svc.Create(ctx, "alice", "Home")
	require.NoError(t, err)
	for _, m := range members {
		_, err := e.svc.Join(ctx, m, h.InviteCode)
		require.NoError(t, err)
	}
	return h
}

func TestGetResolvesMembers(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := newHousehold(t, e, "bob")

	require.NoError(t, e.svc.SetProfile(ctx, "bob", h.ID, "Dad", "dad.png"))

	d, err := e.svc.Get(ctx, "alice", h.ID)
	require.NoError(t, err)
	require.Len(t, d.Members, 2)
	assert.Equal(t, "alice", d.Members[0].UserID)
	assert.Equal(t, "Alice", d.Members[0].Name)
	assert.Equal(t, model.RoleAdmin, d.Members[0].Role)
	assert.Equal(t, "Dad", d.Members[1].Name)
	assert.Equal(t, "dad.png", d.Members[1].Avatar)

	_, err = e.svc.Get(ctx, "carol", h.ID)
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = e.svc.Get(ctx, "alice", "missing")
	assert.ErrorIs(t, err, ErrHouseholdNotFound)
}

func TestAdminOnlyOperations(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := newHousehold(t, e, "bob")

	_, err := e.svc.Rename(ctx, "bob", h.ID, "Mine")
	assert.ErrorIs(t, err, ErrNotAdmin)
	assert.ErrorIs(t, e.svc.Delete(ctx, "bob", h.ID), ErrNotAdmin)
	assert.ErrorIs(t, e.svc.RemoveMember(ctx, "bob", h.ID, "alice"), ErrNotAdmin)
	assert.ErrorIs(t, e.svc.SetRole(ctx, "bob", h.ID, "bob", model.RoleAdmin), ErrNotAdmin)
	_, err = e.svc.ResetLeaderboard(ctx, "bob", h.ID)
	assert.ErrorIs(t, err, ErrNotAdmin)
	assert.ErrorIs(t, e.svc.Invite(ctx, "bob", h.ID, "x@example.com"), ErrNotAdmin)

	renamed, err := e.svc.Rename(ctx, "alice", h.ID, "Castle")
	require.NoError(t, err)
	assert.Equal(t, "Castle", renamed.Name)
}

func TestLeave(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := newHousehold(t, e, "bob")

	assert.ErrorIs(t, e.svc.Leave(ctx, "alice", h.ID), ErrLastAdmin)

	require.NoError(t, e.svc.Leave(ctx, "bob", h.ID))
	d, err := e.svc.Get(ctx, "alice", h.ID)
	require.NoError(t, err)
	assert.Len(t, d.Members, 1)

	bob, err := e.users.GetByID(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bob.ActiveHouseholdID)

	// Last member leaving deletes the household.
	require.NoError(t, e.svc.Leave(ctx, "alice", h.ID))
	_, err = e.svc.Get(ctx, "alice", h.ID)
	assert.ErrorIs(t, err, ErrHouseholdNotFound)
	assert.True(t, e.pub.last().Deleted())
}

func TestSetRole(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := newHousehold(t, e, "bob")

	assert.ErrorIs(t, e.svc.SetRole(ctx, "alice", h.ID, "alice", model.RoleMember), ErrLastAdmin)
	assert.ErrorIs(t, e.svc.SetRole(ctx, "alice", h.ID, "bob", "owner"), ErrValidation)
	assert.ErrorIs(t, e.svc.SetRole(ctx, "alice", h.ID, "carol", model.RoleAdmin), ErrNotMember)

	require.NoError(t, e.svc.SetRole(ctx, "alice", h.ID, "bob", model.RoleAdmin))
	require.NoError(t, e.svc.SetRole(ctx, "alice", h.ID, "alice", model.RoleMember))

	d, err := e.svc.Get(ctx, "bob", h.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, d.Household.Members["bob"])
	assert.Equal(t, model.RoleMember, d.Household.Members["alice"])
}

func TestRemoveMember(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := newHousehold(t, e, "bob")

	assert.ErrorIs(t, e.svc.RemoveMember(ctx, "alice", h.ID, "alice"), ErrValidation)
	assert.ErrorIs(t, e.svc.RemoveMember(ctx, "alice", h.ID, "carol"), ErrNotMember)

	require.NoError(t, e.svc.RemoveMember(ctx, "alice", h.ID, "bob"))
	before, after := e.pub.last().Household()
	assert.True(t, before.IsMember("bob"))
	assert.False(t, after.IsMember("bob"))
}

func TestDelete(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := newHousehold(t, e, "bob")

	require.NoError(t, e.svc.Delete(ctx, "alice", h.ID))
	assert.True(t, e.pub.last().Deleted())

	list, err := e.svc.ListForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSetActive(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	first := newHousehold(t, e)
	_ = newHousehold(t, e)

	require.NoError(t, e.svc.SetActive(ctx, "alice", first.ID))
	u, err := e.users.GetByID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, u.ActiveHouseholdID)

	assert.ErrorIs(t, e.svc.SetActive(ctx, "bob", first.ID), ErrNotMember)
}

func TestResetLeaderboard(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := newHousehold(t, e)
	assert.Nil(t, h.LastResetAt)

	after, err := e.svc.ResetLeaderboard(ctx, "alice", h.ID)
	require.NoError(t, err)
	require.NotNil(t, after.LastResetAt)
}

func TestSetProfilePublishesUserEvent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := newHousehold(t, e)

	require.NoError(t, e.users.SetPushToken(ctx, "alice", "ExpoPushToken[a]"))
	require.NoError(t, e.svc.SetProfile(ctx, "alice", h.ID, "Mom", ""))

	ev := e.pub.last()
	assert.Equal(t, feed.Users, ev.Collection)
	assert.Equal(t, h.ID, ev.HouseholdID)
	_, u := ev.User()
	require.NotNil(t, u)
	assert.Empty(t, u.PushToken)
	assert.Equal(t, "Mom", u.HouseholdProfiles[h.ID].DisplayName)

	assert.ErrorIs(t, e.svc.SetProfile(ctx, "bob", h.ID, "Intruder", ""), ErrNotMember)
}

func TestInvite(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	h := newHousehold(t, e)

	require.NoError(t, e.svc.Invite(ctx, "alice", h.ID, "Bob <bob@example.com>"))
	assert.Equal(t, "bob@example.com", e.mailer.to)
	assert.Equal(t, "Alice", e.mailer.inviter)
	assert.Equal(t, h.InviteCode, e.mailer.code)

	assert.ErrorIs(t, e.svc.Invite(ctx, "alice", h.ID, "not an email"), ErrValidation)

	e.mailer.configured = false
	assert.ErrorIs(t, e.svc.Invite(ctx, "alice", h.ID, "bob@example.com"), ErrInviteUnavailable)
}

type takenChecker struct{ calls int }

func (c *takenChecker) CodeTaken(ctx context.Context, code string) (bool, error) {
	c.calls++
	return true, nil
}

func TestGenerateUniqueCodeGivesUp(t *testing.T) {
	c := &takenChecker{}
	_, err := generateUniqueCode(context.Background(), c)
	assert.ErrorIs(t, err, ErrCodeGeneration)
	assert.Equal(t, codeAttempts, c.calls)
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateCode(codeLength)
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "AB12CD", NormalizeCode("  ab12cd\n"))
}
