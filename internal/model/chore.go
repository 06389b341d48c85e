package model

import "time"

type Chore struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Points          int        `json:"points"`
	HouseholdID     string     `json:"household_id"`
	CreatedBy       string     `json:"created_by"`
	Completed       bool       `json:"completed"`
	InProgress      bool       `json:"in_progress"`
	ClaimedBy       string     `json:"claimed_by,omitempty"`
	ClaimedName     string     `json:"claimed_name,omitempty"`
	ClaimedAvatar   string     `json:"claimed_avatar,omitempty"`
	ClaimedAt       *time.Time `json:"claimed_at,omitempty"`
	CompletedBy     string     `json:"completed_by,omitempty"`
	CompletedName   string     `json:"completed_name,omitempty"`
	CompletedAvatar string     `json:"completed_avatar,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ScheduledFor    *time.Time `json:"scheduled_for,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ActorSnapshot is the user identity copied onto a chore or activity at the
// moment of an action. It is not refreshed when the profile changes later.
type ActorSnapshot struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}
