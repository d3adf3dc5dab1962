// Package session implements the per-connection state described in
// spec.md §3/§4.4: a stable id, remote endpoint, permission level, the
// post-handshake symmetric key, and the lifecycle flags that govern
// disconnection. Field access is mutex-guarded the way the teacher's
// internal/login/client.go guards Client state.
package session

import (
	"net"
	"sync"

	"github.com/udisondev/la2go/internal/constants"
	"github.com/udisondev/la2go/internal/crypto"
	"github.com/udisondev/la2go/internal/frame"
	"github.com/udisondev/la2go/internal/packets"
)

// Connection owns one TCP socket and the state spec.md §3 assigns to it.
type Connection struct {
	id             uint64
	conn           net.Conn
	remoteEndpoint string

	mu        sync.Mutex
	level     Level
	secret    *[32]byte
	incoming  frame.Frame
	accepting bool
	closing   bool

	writeMu sync.Mutex
}

// New wraps conn as a fresh connection with level NONE and no secret.
func New(id uint64, conn net.Conn) *Connection {
	return &Connection{
		id:             id,
		conn:           conn,
		remoteEndpoint: conn.RemoteAddr().String(),
		level:          LevelNone,
		accepting:      true,
	}
}

// ID returns the stable connection identifier assigned by the hub.
func (c *Connection) ID() uint64 { return c.id }

// RemoteEndpoint returns the peer's address as text.
func (c *Connection) RemoteEndpoint() string { return c.remoteEndpoint }

// Conn exposes the underlying socket for the listener's read loop.
func (c *Connection) Conn() net.Conn { return c.conn }

// Level returns the connection's current permission level.
func (c *Connection) Level() Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// SetLevel updates the connection's permission level.
func (c *Connection) SetLevel(l Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = l
}

// Secret returns the session key and whether the handshake has completed.
func (c *Connection) Secret() ([32]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.secret == nil {
		return [32]byte{}, false
	}
	return *c.secret, true
}

// SetSecret installs the post-handshake session key.
func (c *Connection) SetSecret(key [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secret = &key
}

// ClearSecret removes the session key, e.g. on handshake rollback.
func (c *Connection) ClearSecret() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.secret != nil {
		crypto.Wipe(c.secret)
	}
	c.secret = nil
}

// CipherSuite builds a crypto.CipherSuite from the current session key.
// Returns false if the handshake has not completed.
func (c *Connection) CipherSuite() (*crypto.CipherSuite, bool, error) {
	key, ok := c.Secret()
	if !ok {
		return nil, false, nil
	}
	cs, err := crypto.NewCipherSuite(key)
	if err != nil {
		return nil, true, err
	}
	return cs, true, nil
}

// IncomingPacket returns the most recently decoded frame for this
// connection, per spec.md §3's "incoming_packet slot".
func (c *Connection) IncomingPacket() frame.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.incoming
}

// SetIncomingPacket records the most recently decoded frame.
func (c *Connection) SetIncomingPacket(f frame.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incoming = f
}

// Closing reports whether Disconnect has been called.
func (c *Connection) Closing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

// Send serializes raw bytes and writes them to the socket. It returns false
// if the write fails (peer gone), matching spec.md §4.4's contract.
func (c *Connection) Send(b []byte) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(b); err != nil {
		return false
	}
	return true
}

// SendDirective encodes and sends a Directive frame with the given fields,
// per spec.md §4.4. sequenceID should echo the triggering request's
// sequence id, or 0 if the request carried none.
func (c *Connection) SendDirective(controlType, reason, advice, flags byte, sequenceID uint32) bool {
	payloadBuf := make([]byte, 4)
	payloadLen, err := packets.EncodeDirective(payloadBuf, packets.Directive{
		ControlType: controlType,
		Reason:      reason,
		Advice:      advice,
		Flags:       flags,
	})
	if err != nil {
		return false
	}

	buf := make([]byte, constants.HeaderSize+payloadLen)
	total, err := frame.Encode(buf, constants.MagicDirective, 0, 0, sequenceID, payloadBuf[:payloadLen])
	if err != nil {
		return false
	}
	return c.Send(buf[:total])
}

// Disconnect marks the connection as closing and closes the socket.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.closing = true
	c.accepting = false
	c.mu.Unlock()

	_ = c.conn.Close()
}
