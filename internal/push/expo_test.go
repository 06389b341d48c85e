package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidExpoToken(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"ExponentPushToken[abc123]", true},
		{"ExpoPushToken[abc123]", true},
		{"ExponentPushToken[]", false},
		{"ExpoPushToken[]", false},
		{"ExponentPushToken[abc", false},
		{"abc123", false},
		{"", false},
		{"FCM:abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidExpoToken(tt.token))
		})
	}
}

// expoServer records the batches posted to it and answers each message with
// an ok ticket.
type expoServer struct {
	mu      sync.Mutex
	batches [][]Message
}

func (s *expoServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msgs []Message
		if err := json.NewDecoder(r.Body).Decode(&msgs); err != nil {
			t.Errorf("decode batch: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.batches = append(s.batches, msgs)
		s.mu.Unlock()

		tickets := make([]Ticket, len(msgs))
		for i := range tickets {
			tickets[i] = Ticket{Status: "ok", ID: fmt.Sprintf("t%d", i)}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": tickets})
	}
}

func newTestExpo(url string) *Expo {
	return NewExpo(ExpoConfig{URL: url, MaxRetries: 3, Backoff: time.Millisecond}, slog.Default())
}

func TestExpoSendChunks(t *testing.T) {
	es := &expoServer{}
	srv := httptest.NewServer(es.handler(t))
	defer srv.Close()

	msgs := make([]Message, 250)
	for i := range msgs {
		msgs[i] = Message{To: fmt.Sprintf("ExpoPushToken[%d]", i), Sound: "default", Title: "t", Body: "b"}
	}

	tickets, err := newTestExpo(srv.URL).Send(context.Background(), msgs)
	require.NoError(t, err)
	assert.Len(t, tickets, 250)

	require.Len(t, es.batches, 3)
	assert.Len(t, es.batches[0], 100)
	assert.Len(t, es.batches[1], 100)
	assert.Len(t, es.batches[2], 50)
	assert.Equal(t, "ExpoPushToken[249]", es.batches[2][49].To)
}

func TestExpoSendRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	es := &expoServer{}
	ok := es.handler(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			ok(w, r)
		}
	}))
	defer srv.Close()

	tickets, err := newTestExpo(srv.URL).Send(context.Background(), []Message{{To: "ExpoPushToken[a]"}})
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExpoSendGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestExpo(srv.URL).Send(context.Background(), []Message{{To: "ExpoPushToken[a]"}})
	require.Error(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

func TestExpoSendDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"errors":[{"message":"bad"}]}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestExpo(srv.URL).Send(context.Background(), []Message{{To: "ExpoPushToken[a]"}})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExpoSendsAccessToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"data": []Ticket{{Status: "ok"}}})
	}))
	defer srv.Close()

	e := NewExpo(ExpoConfig{URL: srv.URL, AccessToken: "secret"}, slog.Default())
	_, err := e.Send(context.Background(), []Message{{To: "ExpoPushToken[a]"}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
}

func TestExpoSendAbortsInFlightRequestOnCancel(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	e := NewExpo(ExpoConfig{URL: srv.URL, Timeout: time.Minute, MaxRetries: 0}, slog.Default())

	errc := make(chan error, 1)
	go func() {
		_, err := e.Send(ctx, []Message{{To: "ExpoPushToken[a]"}})
		errc <- err
	}()

	<-started
	cancel()
	select {
	case err := <-errc:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("send did not return after cancel")
	}
}
