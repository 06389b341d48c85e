package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dukerupert/chorely/internal/model"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

// Payload is the JSON sent to the browser push service.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// WebPush sends VAPID-signed web push notifications.
type WebPush struct {
	publicKey  string
	privateKey string
	subscriber string
	client     webpush.HTTPClient
}

// NewWebPush builds a sender. subscriber is a contact e-mail address or an
// https URL.
func NewWebPush(publicKey, privateKey, subscriber string) *WebPush {
	if subscriber == "" {
		subscriber = "noreply@chorely.app"
	}
	return &WebPush{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		client:     http.DefaultClient,
	}
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *WebPush) VAPIDPublicKey() string {
	return s.publicKey
}

// Send delivers payload to one subscription.
func (s *WebPush) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}

// GenerateVAPIDKeys returns a new base64url-encoded P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate vapid keys: %w", err)
	}
	return publicKey, privateKey, nil
}
