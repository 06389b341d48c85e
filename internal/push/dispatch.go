package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/chorely/internal/model"
)

// Target is one delivery address of a user: an Expo token or a browser
// subscription.
type Target struct {
	UserID       string
	ExpoToken    string
	Subscription *model.PushSubscription
}

// Notification is the content of a push, independent of transport.
type Notification struct {
	Title string
	Body  string
	Route string
	Tag   string
}

// Targets builds delivery targets for users. Users without a valid Expo
// token contribute only their browser subscriptions.
func Targets(users []model.User, subs []model.PushSubscription) []Target {
	var targets []Target
	for _, u := range users {
		if ValidExpoToken(u.PushToken) {
			targets = append(targets, Target{UserID: u.ID, ExpoToken: u.PushToken})
		}
	}
	for i := range subs {
		targets = append(targets, Target{UserID: subs[i].UserID, Subscription: &subs[i]})
	}
	return targets
}

type SubscriptionRemover interface {
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

type TokenClearer interface {
	ClearPushToken(ctx context.Context, token string) error
}

// Dispatcher fans a notification out over Expo and web push. Either
// transport may be nil when it is not configured.
type Dispatcher struct {
	expo   *Expo
	web    *WebPush
	subs   SubscriptionRemover
	tokens TokenClearer
	logger *slog.Logger
}

func NewDispatcher(expo *Expo, web *WebPush, subs SubscriptionRemover, tokens TokenClearer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{expo: expo, web: web, subs: subs, tokens: tokens, logger: logger}
}

// Send delivers n to every target. Invalid Expo tokens are skipped, expired
// browser subscriptions are deleted and unregistered Expo tokens are cleared.
func (d *Dispatcher) Send(ctx context.Context, targets []Target, n Notification) error {
	msgs := ExpoMessages(targets, n)
	var errs []error

	if len(msgs) > 0 && d.expo != nil {
		tickets, err := d.expo.Send(ctx, msgs)
		if err != nil {
			errs = append(errs, err)
		}
		for i, t := range tickets {
			if i >= len(msgs) || t.Status != "error" {
				continue
			}
			d.logger.Warn("expo ticket error", "token", msgs[i].To, "message", t.Message, "detail", t.Details.Error)
			if t.Details.Error == "DeviceNotRegistered" && d.tokens != nil {
				if err := d.tokens.ClearPushToken(ctx, msgs[i].To); err != nil {
					d.logger.Error("clear push token", "error", err)
				}
			}
		}
	}

	if d.web != nil {
		payload := Payload{Title: n.Title, Body: n.Body, URL: n.Route, Tag: n.Tag}
		for _, t := range targets {
			if t.Subscription == nil {
				continue
			}
			err := d.web.Send(ctx, t.Subscription, payload)
			if errors.Is(err, ErrExpired) {
				if d.subs != nil {
					if err := d.subs.DeleteByEndpoint(ctx, t.Subscription.Endpoint); err != nil {
						d.logger.Error("delete expired subscription", "error", err)
					}
				}
				continue
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("web push to user %s: %w", t.UserID, err))
			}
		}
	}

	return errors.Join(errs...)
}

// ExpoMessages converts targets into Expo messages, one per distinct valid
// token.
func ExpoMessages(targets []Target, n Notification) []Message {
	seen := make(map[string]bool)
	var msgs []Message
	for _, t := range targets {
		if !ValidExpoToken(t.ExpoToken) || seen[t.ExpoToken] {
			continue
		}
		seen[t.ExpoToken] = true
		msgs = append(msgs, Message{
			To:    t.ExpoToken,
			Sound: "default",
			Title: n.Title,
			Body:  n.Body,
			Data:  Data{Route: n.Route},
		})
	}
	return msgs
}
