// Package client keeps a local, persisted view of the signed-in user and
// reconciles it with the auth server.
package client

import (
	"slices"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserRef is the client's projection of the signed-in user.
type UserRef struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

func (u UserRef) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

func (u UserRef) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

func (u UserRef) equal(o UserRef) bool {
	return u.ID == o.ID && u.Email == o.Email && slices.Equal(u.Roles, o.Roles)
}

// withDefaultRoles returns u with roles set to ["user"] when none were
// reported.
func (u UserRef) withDefaultRoles() UserRef {
	if len(u.Roles) == 0 {
		u.Roles = []string{RoleUser}
	} else {
		u.Roles = slices.Clone(u.Roles)
	}
	return u
}

// Session is what the server reports about the current sign-in. It is
// advisory: the server may have revoked it since.
type Session struct {
	User      UserRef
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// State is a snapshot of the store. IsAuthenticated should not be trusted
// until HasHydrated is true.
type State struct {
	User            *UserRef `json:"user"`
	Token           *string  `json:"token"`
	IsAuthenticated bool     `json:"isAuthenticated"`
	HasHydrated     bool     `json:"-"`
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		u.Roles = slices.Clone(u.Roles)
		s.User = &u
	}
	if s.Token != nil {
		t := *s.Token
		s.Token = &t
	}
	return s
}
