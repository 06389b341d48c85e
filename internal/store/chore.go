package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/dukerupert/chorely/internal/model"
)

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var claimedAt, completedAt, scheduledFor sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.HouseholdID, &c.Title, &c.Points, &c.CreatedBy,
		&c.Completed, &c.InProgress,
		&c.ClaimedBy, &c.ClaimedName, &c.ClaimedAvatar, &claimedAt,
		&c.CompletedBy, &c.CompletedName, &c.CompletedAvatar, &completedAt,
		&scheduledFor, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ClaimedAt = nullTime(claimedAt)
	c.CompletedAt = nullTime(completedAt)
	c.ScheduledFor = nullTime(scheduledFor)
	return &c, nil
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

const choreCols = `id, household_id, title, points, created_by, completed, in_progress,
	claimed_by, claimed_name, claimed_avatar, claimed_at,
	completed_by, completed_name, completed_avatar, completed_at,
	scheduled_for, created_at, updated_at`

func (s *ChoreStore) Create(ctx context.Context, householdID, title string, points int, createdBy string, scheduledFor *time.Time) (*model.Chore, error) {
	id := xid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chores (id, household_id, title, points, created_by, scheduled_for, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, householdID, title, points, createdBy, timeArg(scheduledFor), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ChoreStore) GetByID(ctx context.Context, id string) (*model.Chore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

// ListByHousehold returns the household's chores, newest first.
func (s *ChoreStore) ListByHousehold(ctx context.Context, householdID string) ([]model.Chore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+choreCols+` FROM chores WHERE household_id = ? ORDER BY created_at DESC, id DESC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func (s *ChoreStore) Update(ctx context.Context, id, title string, points int, scheduledFor *time.Time) (*model.Chore, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chores SET title = ?, points = ?, scheduled_for = ? WHERE id = ?`,
		title, points, timeArg(scheduledFor), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes a chore. Its activities are intentionally kept.
func (s *ChoreStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}

// DeleteByHousehold removes every chore of a household and returns the
// deleted chores.
func (s *ChoreStore) DeleteByHousehold(ctx context.Context, householdID string) ([]model.Chore, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT `+choreCols+` FROM chores WHERE household_id = ?`, householdID)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	var deleted []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		deleted = append(deleted, *c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate chores: %w", err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chores WHERE household_id = ?`, householdID); err != nil {
		return nil, fmt.Errorf("delete chores: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return deleted, nil
}

// ErrChoreCompleted is returned by Claim and Complete when the chore was
// completed by a concurrent request.
var ErrChoreCompleted = errors.New("chore already completed")

// Claim puts the chore in progress for actor and returns every other chore
// of the household that was in progress, as it was before being reset to
// pending. The chore must not be completed.
func (s *ChoreStore) Claim(ctx context.Context, id string, actor model.ActorSnapshot, at time.Time) ([]model.Chore, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Write before reading: the transaction takes the write lock here.
	res, err := tx.ExecContext(ctx,
		`UPDATE chores SET in_progress = 1,
		 claimed_by = ?, claimed_name = ?, claimed_avatar = ?, claimed_at = ?
		 WHERE id = ? AND completed = 0`,
		actor.UserID, actor.Name, actor.Avatar, at.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("claim chore: %w", err)
	}
	if err := oneRow(res); err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+choreCols+` FROM chores
		 WHERE household_id = (SELECT household_id FROM chores WHERE id = ?)
		 AND in_progress = 1 AND id != ?`,
		id, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list in-progress chores: %w", err)
	}
	var released []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		released = append(released, *c)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("list in-progress chores: %w", err)
	}

	for _, c := range released {
		if _, err := tx.ExecContext(ctx, resetSQL, c.ID); err != nil {
			return nil, fmt.Errorf("reset chore %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return released, nil
}

// Complete marks the chore completed and writes its activity row atomically.
// A chore that is already completed yields ErrChoreCompleted and no activity.
func (s *ChoreStore) Complete(ctx context.Context, id string, actor model.ActorSnapshot, at time.Time) (*model.Activity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE chores SET completed = 1, in_progress = 0,
		 completed_by = ?, completed_name = ?, completed_avatar = ?, completed_at = ?
		 WHERE id = ? AND completed = 0`,
		actor.UserID, actor.Name, actor.Avatar, at.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("complete chore: %w", err)
	}
	if err := oneRow(res); err != nil {
		return nil, err
	}

	c, err := scanChore(tx.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}

	a := model.Activity{
		ID:          xid.New().String(),
		Type:        model.ActivityChoreCompletion,
		ChoreID:     c.ID,
		HouseholdID: c.HouseholdID,
		UserID:      actor.UserID,
		UserName:    actor.Name,
		UserAvatar:  actor.Avatar,
		ChoreTitle:  c.Title,
		Points:      c.Points,
		CompletedAt: at.UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO activities (`+activityCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.ChoreID, a.HouseholdID, a.UserID, a.UserName, a.UserAvatar, a.ChoreTitle, a.Points, a.CompletedAt,
	); err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &a, nil
}

func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return ErrChoreCompleted
	}
	return nil
}

const resetSQL = `UPDATE chores SET in_progress = 0, completed = 0,
	claimed_by = '', claimed_name = '', claimed_avatar = '', claimed_at = NULL,
	completed_by = '', completed_name = '', completed_avatar = '', completed_at = NULL
	WHERE id = ?`

// Reset returns the chore to pending and deletes every activity recorded for
// it. The deleted activities are returned.
func (s *ChoreStore) Reset(ctx context.Context, id string) ([]model.Activity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT `+activityCols+` FROM activities WHERE chore_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("list chore activities: %w", err)
	}
	var removed []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		removed = append(removed, *a)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, resetSQL, id); err != nil {
		return nil, fmt.Errorf("reset chore: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE chore_id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete chore activities: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return removed, nil
}
