package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/dukerupert/chorely/internal/model"
)

type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	var lastReset sql.NullTime
	err := scanner.Scan(&h.ID, &h.Name, &h.InviteCode, &lastReset, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastReset.Valid {
		t := lastReset.Time
		h.LastResetAt = &t
	}
	return &h, nil
}

const householdCols = `id, name, invite_code, last_reset_at, created_at, updated_at`

// Create inserts a household and makes the creator its sole admin. The
// creator's active household is switched to the new one.
func (s *HouseholdStore) Create(ctx context.Context, name, inviteCode, creatorID string) (*model.Household, error) {
	id := xid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO households (id, name, invite_code) VALUES (?, ?, ?)`,
		id, name, inviteCode,
	); err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO household_members (household_id, user_id, role) VALUES (?, ?, ?)`,
		id, creatorID, model.RoleAdmin,
	); err != nil {
		return nil, fmt.Errorf("insert admin: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET active_household_id = ? WHERE id = ?`,
		id, creatorID,
	); err != nil {
		return nil, fmt.Errorf("set active household: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *HouseholdStore) GetByID(ctx context.Context, id string) (*model.Household, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	if err := s.loadMembers(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *HouseholdStore) GetByInviteCode(ctx context.Context, code string) (*model.Household, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+householdCols+` FROM households WHERE invite_code = ? ORDER BY created_at ASC LIMIT 1`,
		code,
	)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household by code: %w", err)
	}
	if err := s.loadMembers(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *HouseholdStore) CodeTaken(ctx context.Context, code string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM households WHERE invite_code = ?`, code).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check invite code: %w", err)
	}
	return count > 0, nil
}

func (s *HouseholdStore) loadMembers(ctx context.Context, h *model.Household) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, role FROM household_members WHERE household_id = ?`,
		h.ID,
	)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	h.Members = make(map[string]model.Role)
	for rows.Next() {
		var uid string
		var role model.Role
		if err := rows.Scan(&uid, &role); err != nil {
			return fmt.Errorf("scan member: %w", err)
		}
		h.Members[uid] = role
	}
	return rows.Err()
}

func (s *HouseholdStore) Rename(ctx context.Context, id, name string) (*model.Household, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE households SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return nil, fmt.Errorf("rename household: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *HouseholdStore) SetLastReset(ctx context.Context, id string, at time.Time) (*model.Household, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE households SET last_reset_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("set last reset: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes the household. Memberships, profiles, chores and activities
// cascade; users pointing at it as their active household are cleared.
func (s *HouseholdStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET active_household_id = '' WHERE active_household_id = ?`, id,
	); err != nil {
		return fmt.Errorf("clear active household: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM households WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete household: %w", err)
	}
	return tx.Commit()
}

// AddMember inserts a membership and makes the household the user's active one.
func (s *HouseholdStore) AddMember(ctx context.Context, householdID, userID string, role model.Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO household_members (household_id, user_id, role) VALUES (?, ?, ?)`,
		householdID, userID, role,
	); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET active_household_id = ? WHERE id = ?`,
		householdID, userID,
	); err != nil {
		return fmt.Errorf("set active household: %w", err)
	}
	return tx.Commit()
}

// RemoveMember deletes a membership and the member's household profile.
func (s *HouseholdStore) RemoveMember(ctx context.Context, householdID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM household_members WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM member_profiles WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	); err != nil {
		return fmt.Errorf("remove member profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET active_household_id = '' WHERE id = ? AND active_household_id = ?`,
		userID, householdID,
	); err != nil {
		return fmt.Errorf("clear active household: %w", err)
	}
	return tx.Commit()
}

func (s *HouseholdStore) SetRole(ctx context.Context, householdID, userID string, role model.Role) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE household_members SET role = ? WHERE household_id = ? AND user_id = ?`,
		role, householdID, userID,
	)
	if err != nil {
		return fmt.Errorf("set member role: %w", err)
	}
	return nil
}

// ListForUser returns the households the user belongs to, ordered by name.
func (s *HouseholdStore) ListForUser(ctx context.Context, userID string) ([]model.Household, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT h.id, h.name, h.invite_code, h.last_reset_at, h.created_at, h.updated_at
		 FROM households h
		 JOIN household_members hm ON h.id = hm.household_id
		 WHERE hm.user_id = ?
		 ORDER BY h.name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list households for user: %w", err)
	}

	var households []*model.Household
	for rows.Next() {
		h, err := scanHousehold(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan household: %w", err)
		}
		households = append(households, h)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate households: %w", err)
	}
	rows.Close()

	result := make([]model.Household, 0, len(households))
	for _, h := range households {
		if err := s.loadMembers(ctx, h); err != nil {
			return nil, err
		}
		result = append(result, *h)
	}
	return result, nil
}
