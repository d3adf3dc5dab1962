package ops

import (
	"context"
	"log/slog"

	"github.com/udisondev/la2go/internal/constants"
	"github.com/udisondev/la2go/internal/registry"
	"github.com/udisondev/la2go/internal/session"
)

// Logout implements spec.md §4.7's Logout operation. The registry
// descriptor's required_level gate already ensures the caller is at
// least USER; here we only need the hub's username association.
func (d Deps) Logout(ctx context.Context, conn *session.Connection, payload []byte, sequenceID uint32) registry.Result {
	username, ok := d.Hub.GetUsername(conn.ID())
	if !ok {
		return registry.Reply(constants.ControlError, constants.ReasonSessionNotFound, constants.AdviceDoNotRetry, 0, sequenceID)
	}

	view, err := d.Repo.GetForPasswordChangeByUsername(ctx, username)
	if err != nil {
		slog.Error("logout: fetching account", "error", err, "username", username)
		return registry.Reply(constants.ControlError, constants.ReasonInternalError, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID)
	}
	if view != nil {
		if err := d.Repo.StampLogout(ctx, view.ID); err != nil {
			slog.Error("logout: stamping logout", "error", err, "account_id", view.ID)
		}
	}

	conn.SetLevel(session.LevelNone)
	d.Hub.RemoveAssociation(conn)

	conn.SendDirective(constants.ControlDisconnect, constants.ReasonNone, constants.AdviceNone, 0, sequenceID)
	conn.Disconnect()

	return registry.Drop()
}
