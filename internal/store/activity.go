package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorely/internal/model"
)

type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

const activityCols = `id, type, chore_id, household_id, user_id, user_name, user_avatar, chore_title, points, completed_at`

func scanActivity(scanner interface{ Scan(...any) error }) (*model.Activity, error) {
	var a model.Activity
	err := scanner.Scan(&a.ID, &a.Type, &a.ChoreID, &a.HouseholdID, &a.UserID, &a.UserName, &a.UserAvatar, &a.ChoreTitle, &a.Points, &a.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *ActivityStore) GetByID(ctx context.Context, id string) (*model.Activity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+activityCols+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

// ListByHousehold returns every activity of the household, newest first.
func (s *ActivityStore) ListByHousehold(ctx context.Context, householdID string) ([]model.Activity, error) {
	return s.list(ctx,
		`SELECT `+activityCols+` FROM activities WHERE household_id = ? ORDER BY completed_at DESC, id DESC`,
		householdID,
	)
}

// ListRecent returns at most limit activities of the household, newest first.
func (s *ActivityStore) ListRecent(ctx context.Context, householdID string, limit int) ([]model.Activity, error) {
	return s.list(ctx,
		`SELECT `+activityCols+` FROM activities WHERE household_id = ? ORDER BY completed_at DESC, id DESC LIMIT ?`,
		householdID, limit,
	)
}

func (s *ActivityStore) ListByChore(ctx context.Context, choreID string) ([]model.Activity, error) {
	return s.list(ctx,
		`SELECT `+activityCols+` FROM activities WHERE chore_id = ? ORDER BY completed_at DESC, id DESC`,
		choreID,
	)
}

func (s *ActivityStore) list(ctx context.Context, query string, args ...any) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}
