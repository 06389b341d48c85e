package model

import (
	"sort"
	"time"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

type Household struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	InviteCode  string          `json:"invite_code"`
	Members     map[string]Role `json:"members"`
	LastResetAt *time.Time      `json:"last_reset_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// MemberIDs returns the ids of all members in ascending order.
func (h *Household) MemberIDs() []string {
	if h == nil {
		return nil
	}
	ids := make([]string, 0, len(h.Members))
	for id := range h.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Household) IsMember(userID string) bool {
	if h == nil {
		return false
	}
	_, ok := h.Members[userID]
	return ok
}

func (h *Household) IsAdmin(userID string) bool {
	if h == nil {
		return false
	}
	return h.Members[userID] == RoleAdmin
}

// AdminCount returns the number of members holding the admin role.
func (h *Household) AdminCount() int {
	n := 0
	for _, r := range h.Members {
		if r == RoleAdmin {
			n++
		}
	}
	return n
}
