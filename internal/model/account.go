// Package model holds the persisted record types shared between the
// repository and the operations that act on them.
package model

import "time"

// Role mirrors session.Level for the subset of levels a stored account
// may hold (NONE is never persisted; a row always carries at least USER).
type Role int

const (
	RoleUser Role = iota + 1
	RoleAdmin
)

// Account is the single credentials record described in spec.md §3/§6.
type Account struct {
	ID                int64
	Username          string
	Salt              [64]byte
	Hash              [64]byte
	Role              Role
	FailedLoginCount  int
	LastLoginAt       *time.Time
	LastLogoutAt      *time.Time
	LastFailedLoginAt *time.Time
	IsActive          bool
	CreatedAt         time.Time
}

// AuthView is the subset of a row's fields the login operation needs,
// per spec.md §4.7's "fetch auth view by username" step.
type AuthView struct {
	ID                int64
	Salt              [64]byte
	Hash              [64]byte
	IsActive          bool
	FailedLoginCount  int
	LastFailedLoginAt *time.Time
	Role              Role
}

// PasswordChangeView is the subset the change-password operation needs.
type PasswordChangeView struct {
	ID       int64
	Salt     [64]byte
	Hash     [64]byte
	IsActive bool
}
