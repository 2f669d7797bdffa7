package models

import "github.com/google/uuid"

// Role is one of the community roles a user can hold. The three roles form a
// hierarchy used to break ties when picking a moderator: higher rank wins.
type Role string

const (
	RoleSafetyCommittee Role = "safety_committee"
	RoleLeader          Role = "leader"
	RoleModerator       Role = "moderator"
)

// Rank returns the position of the role in the hierarchy. Unknown roles rank 0
// and are never moderation-eligible.
func (r Role) Rank() int {
	switch r {
	case RoleSafetyCommittee:
		return 3
	case RoleLeader:
		return 2
	case RoleModerator:
		return 1
	default:
		return 0
	}
}

func (r Role) CanModerate() bool {
	return r.Rank() > 0
}

type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Roles    []Role    `json:"roles,omitempty"`
}

// CanModerate reports whether the user holds at least one moderation-eligible role.
func (u *User) CanModerate() bool {
	for _, role := range u.Roles {
		if role.CanModerate() {
			return true
		}
	}
	return false
}

// ModerationRank returns the highest rank among the user's moderation-eligible
// roles, or 0 when the user holds none.
func (u *User) ModerationRank() int {
	rank := 0
	for _, role := range u.Roles {
		if role.Rank() > rank {
			rank = role.Rank()
		}
	}
	return rank
}
