package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/feed"
	"github.com/dukerupert/chorely/internal/model"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, householdID, userID string) *Client {
	return &Client{
		hub:         hub,
		householdID: householdID,
		userID:      userID,
		send:        make(chan []byte, sendBufferSize),
	}
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			return Message{}, false
		}
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got, true
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
	return Message{}, false
}

func closed(c *Client) bool {
	for {
		select {
		case _, ok := <-c.send:
			if !ok {
				return true
			}
		default:
			return false
		}
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "h1", "u1")
	c2 := mockClient(hub, "h2", "u2")

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, "h1", "u1")
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastIsHouseholdScoped(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "h1", "u1")
	c2 := mockClient(hub, "h1", "u2")
	other := mockClient(hub, "h2", "u3")
	hub.Register(c1)
	hub.Register(c2)
	hub.Register(other)

	chore := &model.Chore{ID: "c1", HouseholdID: "h1", Title: "Dishes", Points: 10}
	hub.Broadcast("h1", NewMessage(feed.ChoreChanged(nil, chore)))

	for _, c := range []*Client{c1, c2} {
		got, ok := receive(t, c)
		if !ok {
			t.Fatal("channel closed")
		}
		if got.Type != "chores_created" {
			t.Errorf("expected type chores_created, got %s", got.Type)
		}
		if got.ID != "c1" {
			t.Errorf("expected id c1, got %s", got.ID)
		}
	}

	select {
	case <-other.send:
		t.Error("client of another household received the message")
	default:
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Broadcast("h1", Message{Type: "chores_updated"})
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, "h1", "u1")
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast("h1", Message{Type: "fill"})
	}

	// This should drop the message, not panic or block
	hub.Broadcast("h1", Message{Type: "dropped"})

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	before := &model.Chore{ID: "c1", HouseholdID: "h1"}
	msg := NewMessage(feed.ChoreChanged(before, nil))
	if msg.Type != "chores_deleted" {
		t.Errorf("expected type chores_deleted, got %s", msg.Type)
	}
	if msg.Collection != "chores" {
		t.Errorf("expected collection chores, got %s", msg.Collection)
	}
	if msg.Action != "deleted" {
		t.Errorf("expected action deleted, got %s", msg.Action)
	}
	if msg.Data != nil {
		t.Errorf("expected no data for a delete, got %v", msg.Data)
	}
}

func TestHandleEventEvictsRemovedMember(t *testing.T) {
	hub := NewHub(slog.Default())
	stay := mockClient(hub, "h1", "u1")
	gone := mockClient(hub, "h1", "u2")
	hub.Register(stay)
	hub.Register(gone)

	before := &model.Household{ID: "h1", Members: map[string]model.Role{"u1": model.RoleAdmin, "u2": model.RoleMember}}
	after := &model.Household{ID: "h1", Members: map[string]model.Role{"u1": model.RoleAdmin}}
	if err := hub.HandleEvent(context.Background(), feed.HouseholdChanged(before, after)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if got, ok := receive(t, stay); !ok || got.Type != "households_updated" {
		t.Errorf("remaining member got %+v, open=%v", got, ok)
	}
	if closed(stay) {
		t.Error("remaining member should stay connected")
	}
	if !closed(gone) {
		t.Error("removed member should be disconnected")
	}
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("expected 1 client, got %d", got)
	}
}

func TestHandleEventEvictsEveryoneOnDelete(t *testing.T) {
	hub := NewHub(slog.Default())
	c1 := mockClient(hub, "h1", "u1")
	c2 := mockClient(hub, "h1", "u2")
	hub.Register(c1)
	hub.Register(c2)

	h := &model.Household{ID: "h1", Members: map[string]model.Role{"u1": model.RoleAdmin, "u2": model.RoleMember}}
	hub.HandleEvent(context.Background(), feed.HouseholdChanged(h, nil))

	for _, c := range []*Client{c1, c2} {
		if got, ok := receive(t, c); !ok || got.Type != "households_deleted" {
			t.Errorf("got %+v, open=%v", got, ok)
		}
		if !closed(c) {
			t.Error("client should be disconnected")
		}
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients, got %d", got)
	}
}

func TestCloseAll(t *testing.T) {
	hub := NewHub(slog.Default())
	c1 := mockClient(hub, "h1", "u1")
	c2 := mockClient(hub, "h2", "u2")
	hub.Register(c1)
	hub.Register(c2)

	hub.CloseAll()

	if !closed(c1) || !closed(c2) {
		t.Error("expected all clients disconnected")
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients, got %d", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "h1", "u1")
			hub.Register(c)
			hub.Broadcast("h1", Message{Type: "concurrent"})
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

type fakeAuthorizer struct{}

func (fakeAuthorizer) Authorize(_ context.Context, userID, householdID string) (*model.Household, error) {
	if householdID != "h1" || userID != "u1" {
		return nil, errors.New("not a member")
	}
	return &model.Household{ID: "h1"}, nil
}

func testServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	h := HandleWebSocket(hub, fakeAuthorizer{}, nil, slog.Default())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid := r.URL.Query().Get("uid"); uid != "" {
			r = r.WithContext(auth.WithAuth(r.Context(), auth.AuthContext{UserID: uid}))
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleWebSocketRejects(t *testing.T) {
	hub := NewHub(slog.Default())
	srv := testServer(t, hub)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"no user", "?household_id=h1", http.StatusUnauthorized},
		{"no household", "?uid=u1", http.StatusBadRequest},
		{"not a member", "?uid=u2&household_id=h1", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.query)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestHandleWebSocketDeliversEvents(t *testing.T) {
	hub := NewHub(slog.Default())
	srv := testServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?uid=u1&household_id=h1"
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	chore := &model.Chore{ID: "c1", HouseholdID: "h1", Title: "Dishes", Points: 5}
	hub.HandleEvent(ctx, feed.ChoreChanged(nil, chore))

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "chores_created" || got.ID != "c1" {
		t.Errorf("got %+v", got)
	}
}
