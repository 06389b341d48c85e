package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

	// expoChunkSize is the most messages Expo accepts in one request.
	expoChunkSize = 100
)

// Data is the custom payload delivered with an Expo message. The client
// navigates to Route when the notification is opened.
type Data struct {
	Route string `json:"route"`
}

// Message is one Expo push message.
type Message struct {
	To    string `json:"to"`
	Sound string `json:"sound"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Data  Data   `json:"data"`
}

// Ticket is Expo's per-message result.
type Ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

// ValidExpoToken reports whether token looks like an Expo push token:
// ExponentPushToken[...] or ExpoPushToken[...] with a non-empty body.
func ValidExpoToken(token string) bool {
	for _, prefix := range []string{"ExponentPushToken[", "ExpoPushToken["} {
		if strings.HasPrefix(token, prefix) && strings.HasSuffix(token, "]") {
			return len(token) > len(prefix)+1
		}
	}
	return false
}

type ExpoConfig struct {
	URL         string
	AccessToken string
	Timeout     time.Duration
	MaxRetries  uint64
	Backoff     time.Duration
}

// Expo posts messages to the Expo push API.
type Expo struct {
	cfg    ExpoConfig
	client *http.Client
	logger *slog.Logger
}

func NewExpo(cfg ExpoConfig, logger *slog.Logger) *Expo {
	if cfg.URL == "" {
		cfg.URL = DefaultExpoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 250 * time.Millisecond
	}
	return &Expo{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Send posts msgs in chunks of 100 and returns the tickets in message order.
// A chunk that fails after retries aborts the remaining chunks.
func (e *Expo) Send(ctx context.Context, msgs []Message) ([]Ticket, error) {
	var tickets []Ticket
	for start := 0; start < len(msgs); start += expoChunkSize {
		end := min(start+expoChunkSize, len(msgs))
		chunk, err := e.sendChunk(ctx, msgs[start:end])
		if err != nil {
			return tickets, fmt.Errorf("send expo chunk %d-%d: %w", start, end, err)
		}
		tickets = append(tickets, chunk...)
	}
	return tickets, nil
}

func (e *Expo) sendChunk(ctx context.Context, msgs []Message) ([]Ticket, error) {
	body, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}

	var tickets []Ticket
	backoff := retry.WithMaxRetries(e.cfg.MaxRetries, retry.NewExponential(e.cfg.Backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if e.cfg.AccessToken != "" {
			req.Header.Set("Authorization", "Bearer "+e.cfg.AccessToken)
		}

		resp, err := e.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("post: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			e.logger.Warn("expo transient failure", "status", resp.StatusCode)
			return retry.RetryableError(fmt.Errorf("expo returned %d", resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("expo returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		}

		var out struct {
			Data []Ticket `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		tickets = out.Data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}
