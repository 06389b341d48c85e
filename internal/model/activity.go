package model

import "time"

const ActivityChoreCompletion = "chore_completion"

// Activity is the ledger row written when a chore is completed. Point totals
// are always derived from these rows.
type Activity struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	ChoreID     string    `json:"chore_id"`
	HouseholdID string    `json:"household_id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	UserAvatar  string    `json:"user_avatar"`
	ChoreTitle  string    `json:"chore_title"`
	Points      int       `json:"points"`
	CompletedAt time.Time `json:"completed_at"`
}
