package profile

import (
	"testing"

	"github.com/dukerupert/chorely/internal/model"
)

func TestDisplayNameFallbackChain(t *testing.T) {
	tests := []struct {
		name string
		user *model.User
		want string
	}{
		{"nil user", nil, "Someone"},
		{"empty names", &model.User{ID: "u1"}, "Someone"},
		{"global name", &model.User{ID: "u1", DisplayName: "Alice"}, "Alice"},
		{
			"household override wins",
			&model.User{ID: "u1", DisplayName: "Alice", HouseholdProfiles: map[string]model.MemberProfile{"h1": {DisplayName: "Mom"}}},
			"Mom",
		},
		{
			"override in other household ignored",
			&model.User{ID: "u1", DisplayName: "Alice", HouseholdProfiles: map[string]model.MemberProfile{"h2": {DisplayName: "Mom"}}},
			"Alice",
		},
		{
			"blank override falls through",
			&model.User{ID: "u1", DisplayName: "Alice", HouseholdProfiles: map[string]model.MemberProfile{"h1": {DisplayName: "  "}}},
			"Alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayName(tt.user, "h1"); got != tt.want {
				t.Errorf("DisplayName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveKeepsSnapshotWithoutLive(t *testing.T) {
	got := Resolve(nil, "Alice", "a.png")
	if got.Name != "Alice" || got.Avatar != "a.png" {
		t.Errorf("Resolve = %+v", got)
	}
}

func TestResolveLiveOverrides(t *testing.T) {
	got := Resolve(&Display{Name: "Ally"}, "Alice", "a.png")
	if got.Name != "Ally" {
		t.Errorf("name = %q, want Ally", got.Name)
	}
	if got.Avatar != "a.png" {
		t.Errorf("avatar = %q, want snapshot avatar", got.Avatar)
	}
}

func TestSnapshot(t *testing.T) {
	u := &model.User{
		ID: "u1", DisplayName: "Alice", Avatar: "a.png",
		HouseholdProfiles: map[string]model.MemberProfile{"h1": {Avatar: "mom.png"}},
	}
	s := Snapshot(u, "h1")
	if s.UserID != "u1" || s.Name != "Alice" || s.Avatar != "mom.png" {
		t.Errorf("Snapshot = %+v", s)
	}
}
