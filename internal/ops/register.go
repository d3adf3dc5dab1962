package ops

import (
	"context"
	"log/slog"

	"github.com/udisondev/la2go/internal/constants"
	"github.com/udisondev/la2go/internal/crypto"
	"github.com/udisondev/la2go/internal/model"
	"github.com/udisondev/la2go/internal/packets"
	"github.com/udisondev/la2go/internal/registry"
	"github.com/udisondev/la2go/internal/session"
)

// Register implements spec.md §4.7's Register operation.
func (d Deps) Register(ctx context.Context, conn *session.Connection, payload []byte, sequenceID uint32) registry.Result {
	creds, err := packets.DecodeCredentials(payload)
	if err != nil {
		return registry.Reply(constants.ControlError, constants.ReasonValidationFailed, constants.AdviceFixAndRetry, 0, sequenceID)
	}

	if !ValidUsername(creds.Username) {
		return registry.Reply(constants.ControlError, constants.ReasonInvalidUsername, constants.AdviceFixAndRetry, 0, sequenceID)
	}
	if !IsStrongPassword(creds.Password) {
		return registry.Reply(constants.ControlError, constants.ReasonWeakPassword, constants.AdviceFixAndRetry, 0, sequenceID)
	}

	salt, hash, err := crypto.HashPassword(creds.Password)
	defer func() { salt = [64]byte{}; hash = [64]byte{} }()
	if err != nil {
		slog.Error("register: hashing password", "error", err, "connection_id", conn.ID())
		return registry.Reply(constants.ControlError, constants.ReasonInternalError, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID)
	}

	id, err := d.Repo.InsertOrIgnore(ctx, creds.Username, salt, hash, model.RoleUser)
	if err != nil {
		slog.Error("register: inserting account", "error", err, "username", creds.Username)
		return registry.Reply(constants.ControlError, constants.ReasonInternalError, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID)
	}
	if id <= 0 {
		return registry.Reply(constants.ControlError, constants.ReasonAlreadyExists, constants.AdviceFixAndRetry, 0, sequenceID)
	}

	return registry.Reply(constants.ControlACK, constants.ReasonNone, constants.AdviceNone, 0, sequenceID)
}
