package ops

import (
	"context"
	"log/slog"
	"time"

	"github.com/udisondev/la2go/internal/constants"
	"github.com/udisondev/la2go/internal/crypto"
	"github.com/udisondev/la2go/internal/model"
	"github.com/udisondev/la2go/internal/packets"
	"github.com/udisondev/la2go/internal/registry"
	"github.com/udisondev/la2go/internal/session"
)

const lockoutFailureThreshold = 5

// Login implements spec.md §4.7's Login operation.
func (d Deps) Login(ctx context.Context, conn *session.Connection, payload []byte, sequenceID uint32) registry.Result {
	creds, err := packets.DecodeCredentials(payload)
	if err != nil {
		return registry.Reply(constants.ControlError, constants.ReasonValidationFailed, constants.AdviceFixAndRetry, 0, sequenceID)
	}
	if creds.Username == "" || creds.Password == "" {
		return registry.Reply(constants.ControlError, constants.ReasonMissingRequiredField, constants.AdviceFixAndRetry, 0, sequenceID)
	}

	view, err := d.Repo.GetAuthViewByUsername(ctx, creds.Username)
	if err != nil {
		slog.Error("login: fetching auth view", "error", err, "username", creds.Username)
		return registry.Reply(constants.ControlError, constants.ReasonInternalError, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID)
	}

	if err := ctx.Err(); err != nil {
		return registry.Reply(constants.ControlError, constants.ReasonCancelled, constants.AdviceDoNotRetry, constants.DirectiveIsTransient, sequenceID)
	}

	if view == nil {
		crypto.FakeVerify(creds.Password)
		return registry.Reply(constants.ControlError, constants.ReasonUnauthenticated, constants.AdviceReauthenticate, constants.DirectiveIsAuthRelated, sequenceID)
	}

	if view.FailedLoginCount >= lockoutFailureThreshold && view.LastFailedLoginAt != nil &&
		time.Now().Before(view.LastFailedLoginAt.Add(constants.LoginLockoutWindow)) {
		return registry.Reply(constants.ControlError, constants.ReasonAccountLocked, constants.AdviceBackoffRetry, constants.DirectiveIsAuthRelated, sequenceID)
	}

	ok := crypto.VerifyPassword(creds.Password, view.Salt, view.Hash)
	if !ok {
		if err := d.Repo.IncrementFailed(ctx, view.ID); err != nil {
			slog.Error("login: recording failed attempt", "error", err, "account_id", view.ID)
		}
		return registry.Reply(constants.ControlError, constants.ReasonUnauthenticated, constants.AdviceReauthenticate, constants.DirectiveIsAuthRelated, sequenceID)
	}

	if !view.IsActive {
		return registry.Reply(constants.ControlError, constants.ReasonAccountSuspended, constants.AdviceDoNotRetry, constants.DirectiveIsAuthRelated, sequenceID)
	}

	if err := d.Repo.ResetFailedAndStampLogin(ctx, view.ID); err != nil {
		slog.Error("login: stamping login", "error", err, "account_id", view.ID)
	}

	conn.SetLevel(roleToLevel(view.Role))
	d.Hub.AssociateUsername(conn, creds.Username)

	return registry.Reply(constants.ControlACK, constants.ReasonNone, constants.AdviceNone, 0, sequenceID)
}

func roleToLevel(r model.Role) session.Level {
	if r == model.RoleAdmin {
		return session.LevelAdmin
	}
	return session.LevelUser
}
