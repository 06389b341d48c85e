package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/dukerupert/chorely/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const subscriptionCols = `id, user_id, household_id, endpoint, p256dh_key, auth_key, device_name, created_at`

// CreateSubscription registers a web-push subscription. Re-subscribing the
// same endpoint refreshes its keys and ownership.
func (s *PushStore) CreateSubscription(ctx context.Context, userID, householdID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (id, user_id, household_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET user_id = excluded.user_id, household_id = excluded.household_id,
		   p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key, device_name = excluded.device_name`,
		xid.New().String(), userID, householdID, endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	return s.getByEndpoint(ctx, endpoint)
}

func (s *PushStore) GetByID(ctx context.Context, id, householdID string) (*model.PushSubscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE id = ? AND household_id = ?`, id, householdID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

func (s *PushStore) getByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription by endpoint: %w", err)
	}
	return sub, nil
}

func (s *PushStore) ListByUser(ctx context.Context, userID, householdID string) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE user_id = ? AND household_id = ? ORDER BY created_at DESC`,
		userID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by user: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ListByUsers returns the household's subscriptions owned by any of userIDs.
func (s *PushStore) ListByUsers(ctx context.Context, householdID string, userIDs []string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	for start := 0; start < len(userIDs); start += maxInIDs {
		end := min(start+maxInIDs, len(userIDs))
		args := []any{householdID}
		for _, id := range userIDs[start:end] {
			args = append(args, id)
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+subscriptionCols+` FROM push_subscriptions
			 WHERE household_id = ? AND user_id IN (`+placeholders(end-start)+`)
			 ORDER BY created_at ASC`,
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("list push subscriptions by users: %w", err)
		}
		batch, err := scanSubscriptions(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		subs = append(subs, batch...)
	}
	return subs, nil
}

func (s *PushStore) DeleteSubscription(ctx context.Context, id, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := scanner.Scan(&sub.ID, &sub.UserID, &sub.HouseholdID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}
