// Package auth contains domain-level types for users, sessions, pre-auth tokens and permissions.
// It is pure and free of framework/adapter concerns.
package auth

import (
	"strings"
	"time"
)

// ClientBinding identifies a client by network origin and declared identity (User-Agent).
type ClientBinding struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

// User is a login-capable principal.
// PasswordHash is the client-computable digest that login challenges are salted against.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Active       bool       `json:"active"`
	IsAdmin      bool       `json:"is_admin"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CreateUserRequest carries the fields needed to register a user.
type CreateUserRequest struct {
	Username     string
	PasswordHash string
	IsAdmin      bool
}

// Normalize lowercases the password digest and trims the username.
func (r *CreateUserRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.PasswordHash = strings.ToLower(strings.TrimSpace(r.PasswordHash))
}

// Session is the server-side record binding a client to an authenticated user.
// Token is the public handle clients present; ID never leaves the server.
type Session struct {
	ID        string        `json:"-"`
	UserID    string        `json:"user_id"`
	Username  string        `json:"username"`
	Token     string        `json:"token"`
	IsAdmin   bool          `json:"is_admin"`
	Client    ClientBinding `json:"client"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// PreAuthToken salts a password challenge for one client binding.
type PreAuthToken struct {
	Token     string
	Client    ClientBinding
	ExpiresAt time.Time
}

// Permission is a grantable capability. An empty Parent marks a root.
type Permission struct {
	Key         string `json:"key"`
	Parent      string `json:"parent,omitempty"`
	Description string `json:"description,omitempty"`
}
