// Package registry holds the immutable opcode → handler descriptor table
// built at startup, replacing the teacher's internal/login/handler.go
// switch-on-opcode dispatch per spec.md §9's "replace attribute-driven
// metadata with a data table" note.
package registry

import (
	"context"
	"time"

	"github.com/udisondev/la2go/internal/constants"
	"github.com/udisondev/la2go/internal/ratelimit"
	"github.com/udisondev/la2go/internal/session"
)

// Outcome is the sum-typed handler result from spec.md §9, replacing
// exceptions for control flow in operations.
type Outcome int

const (
	// Continue lets the pipeline proceed to the next stage or handler.
	Continue Outcome = iota
	// ReplyAndStop sends the embedded directive and stops the pipeline.
	ReplyAndStop
	// DropSilently stops the pipeline without writing a reply.
	DropSilently
)

// Directive carries the four Directive payload fields plus the sequence
// id to echo, used whenever a stage or handler resolves to ReplyAndStop.
type Directive struct {
	ControlType byte
	Reason      byte
	Advice      byte
	Flags       byte
	SequenceID  uint32
}

// Result is returned by every middleware stage and every handler.
type Result struct {
	Outcome   Outcome
	Directive Directive
}

// ContinueResult is the shared "proceed" value.
var ContinueResult = Result{Outcome: Continue}

// Reply builds a ReplyAndStop result for the given directive fields.
func Reply(controlType, reason, advice, flags byte, sequenceID uint32) Result {
	return Result{
		Outcome: ReplyAndStop,
		Directive: Directive{
			ControlType: controlType,
			Reason:      reason,
			Advice:      advice,
			Flags:       flags,
			SequenceID:  sequenceID,
		},
	}
}

// Drop builds a DropSilently result.
func Drop() Result {
	return Result{Outcome: DropSilently}
}

// HandlerFunc processes a decoded payload for one opcode. Implementations
// must not panic; the dispatcher recovers but logs and disconnects if one
// escapes, per spec.md §7.
type HandlerFunc func(ctx context.Context, conn *session.Connection, payload []byte, sequenceID uint32) Result

// Descriptor is the static metadata spec.md §4.7 requires every handler
// to register: opcode, required permission level, encryption requirement,
// timeout, and optional per-handler rate limit.
type Descriptor struct {
	Opcode             uint16
	RequiredLevel      session.Level
	RequiresEncryption bool
	Timeout            time.Duration
	RateLimit          *RateLimitSpec
	Handler            HandlerFunc
}

// RateLimitSpec is the static (max_calls, window) pair read by the
// middleware's per-handler leaky-window stage.
type RateLimitSpec struct {
	MaxCalls int
	Window   time.Duration
}

// Registry is the immutable opcode → descriptor table, frozen after Build.
type Registry struct {
	descriptors map[uint16]Descriptor
}

// Build freezes a set of descriptors into a Registry. Panics on duplicate
// opcodes, since that is a startup-time programming error, not a runtime
// condition callers must recover from.
func Build(descriptors []Descriptor) *Registry {
	m := make(map[uint16]Descriptor, len(descriptors))
	for _, d := range descriptors {
		if _, dup := m[d.Opcode]; dup {
			panic("registry: duplicate opcode registered")
		}
		if d.Timeout == 0 {
			d.Timeout = constants.DefaultHandlerTimeout
		}
		m[d.Opcode] = d
	}
	return &Registry{descriptors: m}
}

// Lookup returns the descriptor for opcode, if registered.
func (r *Registry) Lookup(opcode uint16) (Descriptor, bool) {
	d, ok := r.descriptors[opcode]
	return d, ok
}

// NewHandlerWindow builds a fresh per-connection leaky-window limiter for
// a descriptor's static rate limit spec, or nil if the descriptor does
// not declare one.
func (d Descriptor) NewHandlerWindow() *ratelimit.HandlerWindow {
	if d.RateLimit == nil {
		return nil
	}
	return ratelimit.NewHandlerWindow(d.RateLimit.Window, d.RateLimit.MaxCalls)
}
