// Package packets encodes and decodes the per-opcode payloads carried
// inside frame.Frame, matching spec.md §3's packet classes: Handshake,
// Credentials, CredsUpdate, Directive, Response. Every encoder follows the
// teacher's buffer-writer convention from internal/login/serverpackets:
// write into a caller-provided buffer, return the byte count.
package packets

import (
	"encoding/binary"
	"fmt"

	"github.com/udisondev/la2go/internal/constants"
)

// Handshake carries a raw 32-byte X25519 public key, in both directions.
type Handshake struct {
	PublicKey [32]byte
}

// Reset implements pool.Poolable.
func (h *Handshake) Reset() { h.PublicKey = [32]byte{} }

// EncodeHandshake writes a Handshake payload into buf.
func EncodeHandshake(buf []byte, h Handshake) (int, error) {
	if len(buf) < constants.X25519KeySize {
		return 0, fmt.Errorf("encode handshake: buffer too small")
	}
	copy(buf, h.PublicKey[:])
	return constants.X25519KeySize, nil
}

// DecodeHandshake reads a Handshake payload from buf.
func DecodeHandshake(buf []byte) (Handshake, error) {
	if len(buf) != constants.X25519KeySize {
		return Handshake{}, fmt.Errorf("decode handshake: expected %d bytes, got %d", constants.X25519KeySize, len(buf))
	}
	var h Handshake
	copy(h.PublicKey[:], buf)
	return h, nil
}

// Credentials carries a username/password pair (Register, Login).
type Credentials struct {
	Username string
	Password string
}

// Reset implements pool.Poolable.
func (c *Credentials) Reset() { c.Username, c.Password = "", "" }

// EncodeCredentials writes a length-prefixed username then password into buf.
func EncodeCredentials(buf []byte, c Credentials) (int, error) {
	return encodeStrings(buf, c.Username, c.Password)
}

// DecodeCredentials reads a Credentials payload from buf.
func DecodeCredentials(buf []byte) (Credentials, error) {
	strs, err := decodeStrings(buf, 2)
	if err != nil {
		return Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	return Credentials{Username: strs[0], Password: strs[1]}, nil
}

// CredsUpdate carries an old/new password pair (ChangePassword).
type CredsUpdate struct {
	OldPassword string
	NewPassword string
}

// Reset implements pool.Poolable.
func (c *CredsUpdate) Reset() { c.OldPassword, c.NewPassword = "", "" }

// EncodeCredsUpdate writes a CredsUpdate payload into buf.
func EncodeCredsUpdate(buf []byte, c CredsUpdate) (int, error) {
	return encodeStrings(buf, c.OldPassword, c.NewPassword)
}

// DecodeCredsUpdate reads a CredsUpdate payload from buf.
func DecodeCredsUpdate(buf []byte) (CredsUpdate, error) {
	strs, err := decodeStrings(buf, 2)
	if err != nil {
		return CredsUpdate{}, fmt.Errorf("decode creds update: %w", err)
	}
	return CredsUpdate{OldPassword: strs[0], NewPassword: strs[1]}, nil
}

// Directive is the server→client control reply described in spec.md §6.
type Directive struct {
	ControlType byte
	Reason      byte
	Advice      byte
	Flags       byte
}

// Reset implements pool.Poolable.
func (d *Directive) Reset() { *d = Directive{} }

// EncodeDirective writes a Directive payload into buf.
func EncodeDirective(buf []byte, d Directive) (int, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("encode directive: buffer too small")
	}
	buf[0] = d.ControlType
	buf[1] = d.Reason
	buf[2] = d.Advice
	buf[3] = d.Flags
	return 4, nil
}

// DecodeDirective reads a Directive payload from buf.
func DecodeDirective(buf []byte) (Directive, error) {
	if len(buf) != 4 {
		return Directive{}, fmt.Errorf("decode directive: expected 4 bytes, got %d", len(buf))
	}
	return Directive{
		ControlType: buf[0],
		Reason:      buf[1],
		Advice:      buf[2],
		Flags:       buf[3],
	}, nil
}

// Response carries a single status byte (generic ACK/ok-with-data replies).
type Response struct {
	Status byte
}

// Reset implements pool.Poolable.
func (r *Response) Reset() { r.Status = 0 }

// EncodeResponse writes a Response payload into buf.
func EncodeResponse(buf []byte, r Response) (int, error) {
	if len(buf) < 1 {
		return 0, fmt.Errorf("encode response: buffer too small")
	}
	buf[0] = r.Status
	return 1, nil
}

// DecodeResponse reads a Response payload from buf.
func DecodeResponse(buf []byte) (Response, error) {
	if len(buf) != 1 {
		return Response{}, fmt.Errorf("decode response: expected 1 byte, got %d", len(buf))
	}
	return Response{Status: buf[0]}, nil
}

// encodeStrings writes each string as a 2-byte length prefix followed by its
// UTF-8 bytes, per spec.md §6.
func encodeStrings(buf []byte, strs ...string) (int, error) {
	off := 0
	for _, s := range strs {
		b := []byte(s)
		if off+2+len(b) > len(buf) {
			return 0, fmt.Errorf("encode strings: buffer too small")
		}
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(b)))
		off += 2
		copy(buf[off:], b)
		off += len(b)
	}
	return off, nil
}

// decodeStrings reads exactly n length-prefixed strings from buf.
func decodeStrings(buf []byte, n int) ([]string, error) {
	out := make([]string, 0, n)
	off := 0
	for i := 0; i < n; i++ {
		if off+2 > len(buf) {
			return nil, fmt.Errorf("decode strings: truncated length prefix")
		}
		l := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		if off+l > len(buf) {
			return nil, fmt.Errorf("decode strings: truncated string body")
		}
		out = append(out, string(buf[off:off+l]))
		off += l
	}
	return out, nil
}
