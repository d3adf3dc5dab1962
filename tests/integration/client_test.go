package integration

import (
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/udisondev/la2go/internal/constants"
	"github.com/udisondev/la2go/internal/crypto"
	"github.com/udisondev/la2go/internal/frame"
	"github.com/udisondev/la2go/internal/packets"
)

var usernameCounter atomic.Uint64

// wireClient drives the binary protocol over a real TCP connection the
// way a game client would: handshake first, then encrypted opcodes once
// a session key is established.
type wireClient struct {
	t    testing.TB
	conn net.Conn
	sr   *frame.StreamReader
	cs   *crypto.CipherSuite
	seq  uint32
}

func dial(t testing.TB, addr string) *wireClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	return &wireClient{t: t, conn: conn, sr: frame.NewStreamReader(conn, 4096)}
}

func (c *wireClient) nextSeq() uint32 {
	c.seq++
	return c.seq
}

// handshake performs the X25519 key exchange and derives the session's
// ChaCha20-Poly1305 cipher suite.
func (c *wireClient) handshake() {
	c.t.Helper()

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		c.t.Fatalf("generating client key pair: %v", err)
	}

	payload := make([]byte, constants.X25519KeySize)
	n, err := packets.EncodeHandshake(payload, packets.Handshake{PublicKey: kp.Public})
	if err != nil {
		c.t.Fatalf("encoding handshake: %v", err)
	}
	c.send(constants.MagicHandshake, constants.OpcodeHandshake, 0, c.nextSeq(), payload[:n])

	f := c.recv()
	if f.Header.Magic != constants.MagicHandshake {
		c.t.Fatalf("handshake reply: expected handshake magic, got %x", f.Header.Magic)
	}
	serverHandshake, err := packets.DecodeHandshake(f.Payload)
	if err != nil {
		c.t.Fatalf("decoding server handshake: %v", err)
	}

	shared, err := crypto.Agree(kp.Private, serverHandshake.PublicKey)
	if err != nil {
		c.t.Fatalf("key agreement: %v", err)
	}
	key := crypto.DeriveSessionKey(shared)

	cs, err := crypto.NewCipherSuite(key)
	if err != nil {
		c.t.Fatalf("constructing cipher suite: %v", err)
	}
	c.cs = cs
}

// sendEncrypted encrypts each string field of payload with the session
// cipher suite and sends it with FlagEncrypted set.
func (c *wireClient) sendEncrypted(magic uint32, opcode uint16, payload []byte) uint32 {
	c.t.Helper()
	if c.cs == nil {
		c.t.Fatal("sendEncrypted called before handshake")
	}

	out := make([]byte, len(payload)*2+256)
	n, err := packets.TransformStrings(magic, payload, out, c.cs.EncryptString)
	if err != nil {
		c.t.Fatalf("encrypting payload: %v", err)
	}

	seq := c.nextSeq()
	c.send(magic, opcode, constants.FlagEncrypted, seq, out[:n])
	return seq
}

func (c *wireClient) send(magic uint32, opcode uint16, flags byte, sequenceID uint32, payload []byte) {
	c.t.Helper()
	buf := make([]byte, constants.HeaderSize+len(payload))
	n, err := frame.Encode(buf, magic, opcode, flags, sequenceID, payload)
	if err != nil {
		c.t.Fatalf("encoding frame: %v", err)
	}
	if _, err := c.conn.Write(buf[:n]); err != nil {
		c.t.Fatalf("writing frame: %v", err)
	}
}

func (c *wireClient) recv() frame.Frame {
	c.t.Helper()
	f, err := c.sr.Next()
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	return f
}

func (c *wireClient) recvDirective() packets.Directive {
	c.t.Helper()
	f := c.recv()
	if f.Header.Magic != constants.MagicDirective {
		c.t.Fatalf("expected directive magic, got %x", f.Header.Magic)
	}
	payload := f.Payload
	if f.Header.Encrypted() {
		c.t.Fatal("directive unexpectedly encrypted: Directive carries no string fields")
	}
	d, err := packets.DecodeDirective(payload)
	if err != nil {
		c.t.Fatalf("decoding directive: %v", err)
	}
	return d
}

// register sends a Register request and returns the ACK/error directive.
func (c *wireClient) register(username, password string) packets.Directive {
	c.t.Helper()
	payload := make([]byte, len(username)+len(password)+8)
	n, err := packets.EncodeCredentials(payload, packets.Credentials{Username: username, Password: password})
	if err != nil {
		c.t.Fatalf("encoding credentials: %v", err)
	}
	c.sendEncrypted(constants.MagicCredentials, constants.OpcodeRegister, payload[:n])
	return c.recvDirective()
}

func (c *wireClient) login(username, password string) packets.Directive {
	c.t.Helper()
	payload := make([]byte, len(username)+len(password)+8)
	n, err := packets.EncodeCredentials(payload, packets.Credentials{Username: username, Password: password})
	if err != nil {
		c.t.Fatalf("encoding credentials: %v", err)
	}
	c.sendEncrypted(constants.MagicCredentials, constants.OpcodeLogin, payload[:n])
	return c.recvDirective()
}

func (c *wireClient) changePassword(oldPassword, newPassword string) packets.Directive {
	c.t.Helper()
	payload := make([]byte, len(oldPassword)+len(newPassword)+8)
	n, err := packets.EncodeCredsUpdate(payload, packets.CredsUpdate{OldPassword: oldPassword, NewPassword: newPassword})
	if err != nil {
		c.t.Fatalf("encoding creds update: %v", err)
	}
	c.sendEncrypted(constants.MagicCredsUpdate, constants.OpcodeChangePassword, payload[:n])
	return c.recvDirective()
}

func (c *wireClient) logout() packets.Directive {
	c.t.Helper()
	seq := c.nextSeq()
	c.send(constants.MagicDirective, constants.OpcodeLogout, constants.FlagEncrypted, seq, nil)
	return c.recvDirective()
}

func uniqueUsername(t testing.TB, prefix string) string {
	t.Helper()
	return fmt.Sprintf("%s%d", prefix, usernameCounter.Add(1))
}
