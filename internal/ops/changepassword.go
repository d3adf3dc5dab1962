package ops

import (
	"context"
	"log/slog"

	"github.com/udisondev/la2go/internal/constants"
	"github.com/udisondev/la2go/internal/crypto"
	"github.com/udisondev/la2go/internal/packets"
	"github.com/udisondev/la2go/internal/registry"
	"github.com/udisondev/la2go/internal/session"
)

// ChangePassword implements spec.md §4.7's ChangePassword operation. Per
// Open Question 2's resolution, the registry descriptor's required_level
// gate is authoritative for "must be logged in"; we still resolve the
// hub association to know which account to update.
func (d Deps) ChangePassword(ctx context.Context, conn *session.Connection, payload []byte, sequenceID uint32) registry.Result {
	update, err := packets.DecodeCredsUpdate(payload)
	if err != nil {
		return registry.Reply(constants.ControlError, constants.ReasonValidationFailed, constants.AdviceFixAndRetry, 0, sequenceID)
	}
	if update.OldPassword == "" || update.NewPassword == "" {
		return registry.Reply(constants.ControlError, constants.ReasonMissingRequiredField, constants.AdviceFixAndRetry, 0, sequenceID)
	}
	if !IsStrongPassword(update.NewPassword) {
		return registry.Reply(constants.ControlError, constants.ReasonWeakPassword, constants.AdviceFixAndRetry, 0, sequenceID)
	}

	username, ok := d.Hub.GetUsername(conn.ID())
	if !ok {
		return registry.Reply(constants.ControlError, constants.ReasonSessionNotFound, constants.AdviceDoNotRetry, 0, sequenceID)
	}

	view, err := d.Repo.GetForPasswordChangeByUsername(ctx, username)
	if err != nil {
		slog.Error("changepassword: fetching account", "error", err, "username", username)
		return registry.Reply(constants.ControlError, constants.ReasonInternalError, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID)
	}
	if view == nil {
		return registry.Reply(constants.ControlError, constants.ReasonSessionNotFound, constants.AdviceDoNotRetry, 0, sequenceID)
	}
	if !view.IsActive {
		return registry.Reply(constants.ControlError, constants.ReasonAccountSuspended, constants.AdviceDoNotRetry, constants.DirectiveIsAuthRelated, sequenceID)
	}

	if !crypto.VerifyPassword(update.OldPassword, view.Salt, view.Hash) {
		return registry.Reply(constants.ControlError, constants.ReasonUnauthenticated, constants.AdviceReauthenticate, constants.DirectiveIsAuthRelated, sequenceID)
	}

	newSalt, newHash, err := crypto.HashPassword(update.NewPassword)
	defer func() { newSalt = [64]byte{}; newHash = [64]byte{} }()
	if err != nil {
		slog.Error("changepassword: hashing new password", "error", err, "account_id", view.ID)
		return registry.Reply(constants.ControlError, constants.ReasonInternalError, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID)
	}

	rows, err := d.Repo.UpdatePasswordIfMatches(ctx, view.ID, view.Hash, newSalt, newHash)
	if err != nil {
		slog.Error("changepassword: updating password", "error", err, "account_id", view.ID)
		return registry.Reply(constants.ControlError, constants.ReasonInternalError, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID)
	}
	if rows == 0 {
		return registry.Reply(constants.ControlError, constants.ReasonValidationFailed, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID)
	}

	return registry.Reply(constants.ControlACK, constants.ReasonNone, constants.AdviceNone, 0, sequenceID)
}
