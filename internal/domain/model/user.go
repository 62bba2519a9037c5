package model

import (
	"time"
)

const (
	RoleUser      = "user"
	RoleModerator = "moderator"
)

// AutoVerifierUsername is the reserved account that autoverification edits
// are attributed to in the audit log.
const AutoVerifierUsername = "autoverifier"

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u *User) Moderator() bool {
	return u.Role == RoleModerator
}

type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
