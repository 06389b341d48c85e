package model

import "time"

// MemberProfile is a per-household override of a user's display name and avatar.
type MemberProfile struct {
	DisplayName string `json:"display_name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

type User struct {
	ID                string                   `json:"id"`
	DisplayName       string                   `json:"display_name"`
	Email             string                   `json:"email"`
	Avatar            string                   `json:"avatar"`
	PushToken         string                   `json:"push_token,omitempty"`
	HouseholdProfiles map[string]MemberProfile `json:"household_profiles,omitempty"`
	ActiveHouseholdID string                   `json:"active_household_id,omitempty"`
	HouseholdIDs      []string                 `json:"household_ids"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

// ProfileIn returns the user's override for a household, if any.
func (u *User) ProfileIn(householdID string) (MemberProfile, bool) {
	if u == nil || u.HouseholdProfiles == nil {
		return MemberProfile{}, false
	}
	p, ok := u.HouseholdProfiles[householdID]
	return p, ok
}
