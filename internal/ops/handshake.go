package ops

import (
	"context"
	"log/slog"

	"github.com/udisondev/la2go/internal/constants"
	"github.com/udisondev/la2go/internal/crypto"
	"github.com/udisondev/la2go/internal/frame"
	"github.com/udisondev/la2go/internal/packets"
	"github.com/udisondev/la2go/internal/registry"
	"github.com/udisondev/la2go/internal/session"
)

// Handshake implements spec.md §4.7's Handshake operation. Its
// precondition (required_level=NONE, no encryption) is enforced by the
// registry descriptor, not here.
//
// On success it writes the Handshake reply directly rather than
// returning a Directive, since the reply is itself a Handshake packet
// (not a control reply) and carries no string fields for the outbound
// Wrap stage to touch.
func Handshake(ctx context.Context, conn *session.Connection, payload []byte, sequenceID uint32) registry.Result {
	if len(payload) == 0 {
		return registry.Reply(constants.ControlError, constants.ReasonMissingRequiredField, constants.AdviceFixAndRetry, 0, sequenceID)
	}
	if len(payload) != constants.X25519KeySize {
		return registry.Reply(constants.ControlError, constants.ReasonValidationFailed, constants.AdviceFixAndRetry, 0, sequenceID)
	}

	clientHandshake, err := packets.DecodeHandshake(payload)
	if err != nil {
		return registry.Reply(constants.ControlError, constants.ReasonValidationFailed, constants.AdviceFixAndRetry, 0, sequenceID)
	}

	serverKeyPair, err := crypto.GenerateKeyPair()
	if err != nil {
		slog.Error("handshake: generating server key pair", "error", err, "connection_id", conn.ID())
		conn.ClearSecret()
		conn.SetLevel(session.LevelNone)
		return registry.Reply(constants.ControlError, constants.ReasonInternalError, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID)
	}

	shared, err := crypto.Agree(serverKeyPair.Private, clientHandshake.PublicKey)
	crypto.Wipe(&serverKeyPair.Private)
	if err != nil {
		slog.Error("handshake: key agreement failed", "error", err, "connection_id", conn.ID())
		conn.ClearSecret()
		conn.SetLevel(session.LevelNone)
		return registry.Reply(constants.ControlError, constants.ReasonInternalError, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID)
	}

	sessionKey := crypto.DeriveSessionKey(shared)
	crypto.Wipe(&shared)

	conn.SetSecret(sessionKey)
	conn.SetLevel(session.LevelGuest)

	replyPayload := make([]byte, constants.X25519KeySize)
	n, err := packets.EncodeHandshake(replyPayload, packets.Handshake{PublicKey: serverKeyPair.Public})
	if err != nil {
		return registry.Reply(constants.ControlError, constants.ReasonInternalError, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID)
	}

	buf := make([]byte, constants.HeaderSize+n)
	total, err := frame.Encode(buf, constants.MagicHandshake, constants.OpcodeHandshake, 0, sequenceID, replyPayload[:n])
	if err != nil {
		return registry.Reply(constants.ControlError, constants.ReasonInternalError, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID)
	}

	if !conn.Send(buf[:total]) {
		// Roll back per spec.md §9 open question 1: the source leaves the
		// connection at GUEST without a key after a failed send. Preserve
		// that observed behavior here rather than silently "fixing" it to
		// NONE.
		conn.ClearSecret()
		conn.Disconnect()
		return registry.Drop()
	}

	return registry.Drop()
}
