// Package email sends transactional mail through Postmark.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultAPIURL = "https://api.postmarkapp.com/email"
	inviteTag     = "household-invite"
)

// ErrNotConfigured is returned when no server token is set.
var ErrNotConfigured = errors.New("email client not configured")

// APIError is a non-2xx Postmark response.
type APIError struct {
	Status  int
	Code    int    `json:"ErrorCode"`
	Message string `json:"Message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("postmark: status %d, code %d: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	apiURL      string
	httpClient  *http.Client
	retries     uint64
	backoff     time.Duration
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithAPIURL points the client at a different Postmark-compatible endpoint.
func WithAPIURL(u string) Option {
	return func(cl *Client) { cl.apiURL = u }
}

// WithRetry sets how often a 5xx or transport failure is retried.
func WithRetry(retries uint64, backoff time.Duration) Option {
	return func(cl *Client) {
		cl.retries = retries
		cl.backoff = backoff
	}
}

// NewClient builds a Postmark client. baseURL is the public URL of the app,
// used for links in the message body.
func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		apiURL:      defaultAPIURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		retries:     2,
		backoff:     500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type message struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	Tag           string `json:"Tag,omitempty"`
	MessageStream string `json:"MessageStream"`
}

// SendInvite emails a household invite code with a join link.
func (c *Client) SendInvite(ctx context.Context, toEmail, inviterName, householdName, code string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	link := fmt.Sprintf("%s/join?code=%s", c.baseURL, url.QueryEscape(code))
	msg := message{
		From:    c.fromEmail,
		To:      toEmail,
		Subject: fmt.Sprintf("%s invited you to %s on Chorely", inviterName, householdName),
		TextBody: fmt.Sprintf(
			"%s invited you to join %s.\n\nOpen Chorely and enter the invite code %s, or follow this link:\n\n%s",
			inviterName, householdName, code, link,
		),
		HtmlBody: fmt.Sprintf(
			`<p>%s invited you to join <strong>%s</strong>.</p><p>Open Chorely and enter the invite code <strong>%s</strong>, or <a href="%s">join now</a>.</p>`,
			html.EscapeString(inviterName), html.EscapeString(householdName), html.EscapeString(code), html.EscapeString(link),
		),
		Tag:           inviteTag,
		MessageStream: "outbound",
	}
	return c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, msg message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Postmark-Server-Token", c.serverToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("send email: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode < 400 {
			io.Copy(io.Discard, resp.Body)
			return nil
		}

		apiErr := &APIError{Status: resp.StatusCode}
		json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(apiErr)
		if resp.StatusCode >= 500 {
			return retry.RetryableError(apiErr)
		}
		return apiErr
	})
}
