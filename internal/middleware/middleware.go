// Package middleware implements the inbound/outbound stage pipeline from
// spec.md §4.6: Permission, TokenBucket, Concurrency, RateLimit, Unwrap on
// the way in; Wrap on the way out. Each stage is a pure transform over
// (packet, connection) returning registry.Continue, registry.ReplyAndStop,
// or registry.DropSilently, grounded on the teacher's
// internal/login/handler.go validation-chain shape but restructured per
// spec.md §9's "replace exceptions with a sum-typed result" note.
package middleware

import (
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/udisondev/la2go/internal/constants"
	"github.com/udisondev/la2go/internal/frame"
	"github.com/udisondev/la2go/internal/packets"
	"github.com/udisondev/la2go/internal/ratelimit"
	"github.com/udisondev/la2go/internal/registry"
	"github.com/udisondev/la2go/internal/session"
)

// Permission compares the descriptor's required level against the
// connection's current level.
func Permission(conn *session.Connection, d registry.Descriptor, sequenceID uint32) registry.Result {
	if !conn.Level().Satisfies(d.RequiredLevel) {
		return registry.Reply(constants.ControlError, constants.ReasonUnauthorized, constants.AdviceDoNotRetry, 0, sequenceID)
	}
	return registry.ContinueResult
}

// TokenBucket consumes one token from the connection's global bucket.
func TokenBucket(limiter *ratelimit.ConnectionLimiter, sequenceID uint32) registry.Result {
	if !limiter.Allow() {
		return registry.Reply(constants.ControlError, constants.ReasonRateLimited, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID)
	}
	return registry.ContinueResult
}

// Concurrency attempts to reserve a global in-flight handler slot. Callers
// that receive registry.Continue must call the returned release func
// exactly once when the handler finishes; it is a no-op if acquisition
// failed.
func Concurrency(limiter *ratelimit.Concurrency, sequenceID uint32) (registry.Result, func()) {
	if !limiter.TryAcquire() {
		return registry.Reply(constants.ControlError, constants.ReasonConcurrencyExceeded, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID), func() {}
	}
	return registry.ContinueResult, limiter.Release
}

// RateLimit applies a descriptor's per-handler leaky window, if any. A nil
// window (no declared rate limit) always continues.
func RateLimit(window *ratelimit.HandlerWindow, now time.Time, sequenceID uint32) registry.Result {
	if window == nil {
		return registry.ContinueResult
	}
	if !window.Allow(now) {
		return registry.Reply(constants.ControlError, constants.ReasonRateLimited, constants.AdviceBackoffRetry, constants.DirectiveIsTransient, sequenceID)
	}
	return registry.ContinueResult
}

// Unwrap reverses the ENCRYPTED/COMPRESSED transforms on an inbound
// payload, per spec.md §4.6 stage 5: decompress the whole payload first
// (compression covers the payload bytes, so the string fields can only be
// located once it is undone), then decrypt string fields with the
// connection's session key. Wrap never compresses. It writes the rewritten
// payload into out and returns the byte count.
func Unwrap(conn *session.Connection, d registry.Descriptor, h frame.Header, payload []byte, out []byte, sequenceID uint32) (int, registry.Result) {
	working := payload

	if h.Compressed() {
		decompressed, err := decompress(working)
		if err != nil {
			return 0, registry.Reply(constants.ControlError, constants.ReasonValidationFailed, constants.AdviceFixAndRetry, 0, sequenceID)
		}
		working = decompressed
	}

	if h.Encrypted() {
		cs, ok, err := conn.CipherSuite()
		if err != nil || !ok {
			return 0, registry.Reply(constants.ControlError, constants.ReasonNotEncrypted, constants.AdviceDoNotRetry, 0, sequenceID)
		}
		n, err := packets.TransformStrings(h.Magic, working, out, cs.DecryptString)
		if err != nil {
			return 0, registry.Reply(constants.ControlError, constants.ReasonValidationFailed, constants.AdviceFixAndRetry, 0, sequenceID)
		}
		return n, registry.ContinueResult
	}

	if d.RequiresEncryption {
		return 0, registry.Reply(constants.ControlError, constants.ReasonNotEncrypted, constants.AdviceDoNotRetry, 0, sequenceID)
	}

	n := copy(out, working)
	return n, registry.ContinueResult
}

// Wrap applies the outbound transform: if the handler requested
// encryption and magic's payload carries string fields, encrypt those
// fields with the session key and return FlagEncrypted set in the
// returned flags byte. Payloads without string fields are copied unchanged
// with no flag set.
func Wrap(conn *session.Connection, magic uint32, payload []byte, out []byte, requiresEncryption bool) (int, byte, error) {
	if !requiresEncryption || !packets.HasStringFields(magic) {
		return copy(out, payload), 0, nil
	}

	cs, ok, err := conn.CipherSuite()
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return copy(out, payload), 0, nil
	}

	scratch := make([]byte, len(payload)*2+256)
	n, err := packets.TransformStrings(magic, payload, scratch, cs.EncryptString)
	if err != nil {
		return 0, 0, err
	}
	return copy(out, scratch[:n]), constants.FlagEncrypted, nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// Compress applies zstd to payload. Kept for parity with Unwrap's
// decompress path and for future handlers that opt large replies into
// FlagCompressed; none currently do.
func Compress(payload []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(payload, nil), nil
}
