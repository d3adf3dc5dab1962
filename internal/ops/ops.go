// Package ops implements the five operations from spec.md §4.7: Handshake,
// Register, Login, Logout, ChangePassword. Each is a registry.HandlerFunc
// grounded on the teacher's internal/login/handler.go
// handleRequestAuthLogin fetch-verify-mutate-reply shape and its
// crypto/subtle.ConstantTimeCompare usage, generalized to PBKDF2 + salt.
package ops

import (
	"context"
	"regexp"

	"github.com/udisondev/la2go/internal/hub"
	"github.com/udisondev/la2go/internal/model"
)

// AccountRepository is the narrow contract spec.md §6 requires of the
// credentials store, decoupling these operations from any concrete DB
// engine. Defined here, on the consumer side, per the teacher's
// internal/login/repository.go pattern (internal/login defines
// AccountRepository; internal/db only implements it).
type AccountRepository interface {
	GetAuthViewByUsername(ctx context.Context, username string) (*model.AuthView, error)
	GetForPasswordChangeByUsername(ctx context.Context, username string) (*model.PasswordChangeView, error)
	InsertOrIgnore(ctx context.Context, username string, salt, hash [64]byte, role model.Role) (int64, error)
	IncrementFailed(ctx context.Context, id int64) error
	ResetFailedAndStampLogin(ctx context.Context, id int64) error
	StampLogout(ctx context.Context, id int64) error
	UpdatePasswordIfMatches(ctx context.Context, id int64, expectedOldHash, newSalt, newHash [64]byte) (int64, error)
}

// Deps bundles what every operation needs, passed in via explicit
// construction per spec.md §9's "replace process-wide service locator"
// note rather than a package-level singleton.
type Deps struct {
	Repo AccountRepository
	Hub  *hub.Hub
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,20}$`)

// ValidUsername reports whether username matches spec.md §4.7's
// `^[A-Za-z0-9_-]{3,20}$` constraint.
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// IsStrongPassword is the password-strength gate Register and
// ChangePassword apply to new passwords: length between 8 and 128, with
// at least one letter and one digit.
func IsStrongPassword(password string) bool {
	if len(password) < 8 || len(password) > 128 {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		}
	}
	return hasLetter && hasDigit
}
