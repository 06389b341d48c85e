package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/chorely/internal/model"
)

// maxInIDs caps the number of ids bound into a single IN filter. Larger
// lookups are split into batches.
const maxInIDs = 30

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.DisplayName, &u.Email, &u.Avatar, &u.PushToken, &u.ActiveHouseholdID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, display_name, email, avatar, push_token, active_household_id, created_at, updated_at`

// Ensure creates the user row if it does not exist yet. Existing rows are
// left untouched so profile edits are never overwritten by token claims.
func (s *UserStore) Ensure(ctx context.Context, id, displayName, email, avatar string) (*model.User, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, email, avatar) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, displayName, email, avatar,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := s.attach(ctx, []*model.User{u}); err != nil {
		return nil, err
	}
	return u, nil
}

// ListByIDs returns the users with the given ids. Unknown ids are skipped.
func (s *UserStore) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	var users []*model.User
	for start := 0; start < len(ids); start += maxInIDs {
		end := min(start+maxInIDs, len(ids))
		batch := ids[start:end]

		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+userCols+` FROM users WHERE id IN (`+placeholders(len(batch))+`) ORDER BY id`,
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan user: %w", err)
			}
			users = append(users, u)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate users: %w", err)
		}
		rows.Close()
	}

	if err := s.attach(ctx, users); err != nil {
		return nil, err
	}
	result := make([]model.User, len(users))
	for i, u := range users {
		result[i] = *u
	}
	return result, nil
}

// attach loads household membership ids and per-household profiles.
func (s *UserStore) attach(ctx context.Context, users []*model.User) error {
	for _, u := range users {
		u.HouseholdIDs = []string{}
		rows, err := s.db.QueryContext(ctx,
			`SELECT household_id FROM household_members WHERE user_id = ? ORDER BY created_at ASC, household_id ASC`,
			u.ID,
		)
		if err != nil {
			return fmt.Errorf("list user households: %w", err)
		}
		for rows.Next() {
			var hid string
			if err := rows.Scan(&hid); err != nil {
				rows.Close()
				return fmt.Errorf("scan household id: %w", err)
			}
			u.HouseholdIDs = append(u.HouseholdIDs, hid)
		}
		rows.Close()

		prows, err := s.db.QueryContext(ctx,
			`SELECT household_id, display_name, avatar FROM member_profiles WHERE user_id = ?`,
			u.ID,
		)
		if err != nil {
			return fmt.Errorf("list member profiles: %w", err)
		}
		for prows.Next() {
			var hid string
			var p model.MemberProfile
			if err := prows.Scan(&hid, &p.DisplayName, &p.Avatar); err != nil {
				prows.Close()
				return fmt.Errorf("scan member profile: %w", err)
			}
			if u.HouseholdProfiles == nil {
				u.HouseholdProfiles = make(map[string]model.MemberProfile)
			}
			u.HouseholdProfiles[hid] = p
		}
		prows.Close()
	}
	return nil
}

func (s *UserStore) UpdateProfile(ctx context.Context, id, displayName, avatar string) (*model.User, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, avatar = ? WHERE id = ?`,
		displayName, avatar, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) SetPushToken(ctx context.Context, id, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET push_token = ? WHERE id = ?`, token, id)
	if err != nil {
		return fmt.Errorf("set push token: %w", err)
	}
	return nil
}

// ClearPushToken removes token from every user holding it. Used when the push
// service reports the device as unregistered.
func (s *UserStore) ClearPushToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET push_token = '' WHERE push_token = ?`, token)
	if err != nil {
		return fmt.Errorf("clear push token: %w", err)
	}
	return nil
}

func (s *UserStore) SetActiveHousehold(ctx context.Context, id, householdID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET active_household_id = ? WHERE id = ?`, householdID, id)
	if err != nil {
		return fmt.Errorf("set active household: %w", err)
	}
	return nil
}

// SetMemberProfile upserts the per-household display name and avatar. Empty
// values fall back to the global profile at read time.
func (s *UserStore) SetMemberProfile(ctx context.Context, householdID, userID, displayName, avatar string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO member_profiles (household_id, user_id, display_name, avatar) VALUES (?, ?, ?, ?)
		 ON CONFLICT(household_id, user_id) DO UPDATE SET display_name = excluded.display_name, avatar = excluded.avatar`,
		householdID, userID, displayName, avatar,
	)
	if err != nil {
		return fmt.Errorf("set member profile: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
