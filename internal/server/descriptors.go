package server

import (
	"time"

	"github.com/udisondev/la2go/internal/constants"
	"github.com/udisondev/la2go/internal/ops"
	"github.com/udisondev/la2go/internal/registry"
	"github.com/udisondev/la2go/internal/session"
)

// buildRegistry wires the five operations to their opcodes with the
// required level, encryption, and rate-limit metadata spec.md §4.7
// assigns each, replacing the teacher's switch-on-opcode dispatch in
// internal/login/handler.go with the data-table approach from
// spec.md §9.
func buildRegistry(deps ops.Deps) *registry.Registry {
	return registry.Build([]registry.Descriptor{
		{
			Opcode:             constants.OpcodeHandshake,
			RequiredLevel:      session.LevelNone,
			RequiresEncryption: false,
			Handler:            ops.Handshake,
		},
		{
			Opcode:             constants.OpcodeRegister,
			RequiredLevel:      session.LevelNone,
			RequiresEncryption: true,
			RateLimit:          &registry.RateLimitSpec{MaxCalls: 3, Window: time.Minute},
			Handler:            deps.Register,
		},
		{
			Opcode:             constants.OpcodeLogin,
			RequiredLevel:      session.LevelGuest,
			RequiresEncryption: true,
			RateLimit:          &registry.RateLimitSpec{MaxCalls: 5, Window: time.Minute},
			Handler:            deps.Login,
		},
		{
			Opcode:             constants.OpcodeLogout,
			RequiredLevel:      session.LevelUser,
			RequiresEncryption: true,
			Handler:            deps.Logout,
		},
		{
			Opcode:             constants.OpcodeChangePassword,
			RequiredLevel:      session.LevelUser,
			RequiresEncryption: true,
			RateLimit:          &registry.RateLimitSpec{MaxCalls: 3, Window: time.Minute},
			Handler:            deps.ChangePassword,
		},
	})
}
