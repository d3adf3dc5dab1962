// Package frame implements the wire frame codec: a fixed header
// (magic, length, opcode, flags, sequence id) followed by a per-opcode
// payload. The codec is pure — it never touches crypto keys and never
// allocates outside of the caller-provided buffer.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/udisondev/la2go/internal/constants"
)

// Header is the decoded fixed-size frame header.
type Header struct {
	Magic      uint32
	Length     uint16
	Opcode     uint16
	Flags      byte
	SequenceID uint32
}

// Encrypted reports whether the ENCRYPTED flag is set.
func (h Header) Encrypted() bool { return h.Flags&constants.FlagEncrypted != 0 }

// Compressed reports whether the COMPRESSED flag is set.
func (h Header) Compressed() bool { return h.Flags&constants.FlagCompressed != 0 }

// Frame is one decoded wire frame: header plus the payload slice that
// follows it. Payload aliases the buffer passed to Decode.
type Frame struct {
	Header  Header
	Payload []byte
}

// Decode reads exactly one frame from buf. On success it returns the frame
// and the number of bytes consumed from buf. If buf does not yet hold a
// complete frame, it returns ErrIncomplete and the caller should read more
// bytes and retry.
func Decode(buf []byte) (Frame, int, error) {
	if len(buf) < constants.HeaderSize {
		return Frame{}, 0, ErrIncomplete
	}

	h := Header{
		Magic:      binary.LittleEndian.Uint32(buf[constants.OffsetMagic:]),
		Length:     binary.LittleEndian.Uint16(buf[constants.OffsetLength:]),
		Opcode:     binary.LittleEndian.Uint16(buf[constants.OffsetOpcode:]),
		Flags:      buf[constants.OffsetFlags],
		SequenceID: binary.LittleEndian.Uint32(buf[constants.OffsetSequenceID:]),
	}

	if !KnownMagic(h.Magic) {
		return Frame{}, 0, ErrBadMagic
	}

	if int(h.Length) < constants.HeaderSize || int(h.Length) > constants.MaxFrameSize {
		return Frame{}, 0, ErrBadLength
	}

	if len(buf) < int(h.Length) {
		return Frame{}, 0, ErrIncomplete
	}

	payload := buf[constants.HeaderSize:h.Length]
	return Frame{Header: h, Payload: payload}, int(h.Length), nil
}

// Encode serializes header+payload into buf starting at offset 0 and
// returns the number of bytes written. buf must be at least
// HeaderSize+len(payload) bytes.
func Encode(buf []byte, magic uint32, opcode uint16, flags byte, sequenceID uint32, payload []byte) (int, error) {
	total := constants.HeaderSize + len(payload)
	if total > constants.MaxFrameSize {
		return 0, fmt.Errorf("frame encode: total size %d exceeds max frame size %d", total, constants.MaxFrameSize)
	}
	if len(buf) < total {
		return 0, ErrBufferTooSmall
	}

	binary.LittleEndian.PutUint32(buf[constants.OffsetMagic:], magic)
	binary.LittleEndian.PutUint16(buf[constants.OffsetLength:], uint16(total))
	binary.LittleEndian.PutUint16(buf[constants.OffsetOpcode:], opcode)
	buf[constants.OffsetFlags] = flags
	binary.LittleEndian.PutUint32(buf[constants.OffsetSequenceID:], sequenceID)
	copy(buf[constants.HeaderSize:total], payload)

	return total, nil
}

// KnownMagic reports whether magic identifies a registered packet class.
func KnownMagic(magic uint32) bool {
	switch magic {
	case constants.MagicHandshake,
		constants.MagicCredentials,
		constants.MagicCredsUpdate,
		constants.MagicDirective,
		constants.MagicResponse:
		return true
	default:
		return false
	}
}
