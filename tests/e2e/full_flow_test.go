// Package e2e drives the five operations over a real TCP socket against a
// running server backed by Postgres, exercising spec.md §8's scenarios
// S1-S6 end to end.
package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/udisondev/la2go/internal/config"
	"github.com/udisondev/la2go/internal/constants"
	"github.com/udisondev/la2go/internal/db"
	"github.com/udisondev/la2go/internal/server"
	"github.com/udisondev/la2go/internal/testutil"
)

// newServerAddr starts a real server against DB_ADDR's Postgres instance
// and returns its listen address. Skips the test if DB_ADDR is unset,
// since this scenario needs a running database rather than a mock.
func newServerAddr(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("DB_ADDR")
	if dsn == "" {
		t.Skip("DB_ADDR not set, skipping end-to-end test")
	}

	ctx := context.Background()
	handle, err := db.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to database: %v", err)
	}
	t.Cleanup(handle.Close)

	if err := db.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	if _, err := handle.Pool().Exec(ctx, "TRUNCATE accounts CASCADE"); err != nil {
		t.Fatalf("truncating accounts: %v", err)
	}

	repo := db.NewPostgresAccountRepository(handle)
	cfg := config.DefaultServer()

	srv := server.New(cfg, repo)
	ln, addr := testutil.ListenTCP(t)

	runCtx, cancel := testutil.ContextWithCancel(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(runCtx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	})

	if err := testutil.WaitForTCPReady(addr, 5*time.Second); err != nil {
		t.Fatalf("waiting for server: %v", err)
	}

	return addr
}

// TestFullLoginFlow walks S1 (handshake) through S6 (logout) as one
// connected narrative against "alice".
func TestFullLoginFlow(t *testing.T) {
	addr := newServerAddr(t)

	// S1: handshake.
	c := dial(t, addr)
	c.handshake()

	// S2: register then login.
	reg := c.register("alice", "Str0ng!Pass")
	if reg.ControlType != constants.ControlACK {
		t.Fatalf("S2 register: expected ACK, got %+v", reg)
	}
	login := c.login("alice", "Str0ng!Pass")
	if login.ControlType != constants.ControlACK {
		t.Fatalf("S2 login: expected ACK, got %+v", login)
	}

	// S4: change password, then verify old fails and new succeeds on a
	// fresh connection (post-change the server disconnects on logout,
	// not on change-password, but we re-dial for isolation).
	changed := c.changePassword("Str0ng!Pass", "New0nger!Pass")
	if changed.ControlType != constants.ControlACK {
		t.Fatalf("S4 changepassword: expected ACK, got %+v", changed)
	}

	oldPassClient := dial(t, addr)
	oldPassClient.handshake()
	oldLogin := oldPassClient.login("alice", "Str0ng!Pass")
	if oldLogin.ControlType != constants.ControlError || oldLogin.Reason != constants.ReasonUnauthenticated {
		t.Fatalf("S4 login with old password: expected UNAUTHENTICATED, got %+v", oldLogin)
	}

	newPassClient := dial(t, addr)
	newPassClient.handshake()
	newLogin := newPassClient.login("alice", "New0nger!Pass")
	if newLogin.ControlType != constants.ControlACK {
		t.Fatalf("S4 login with new password: expected ACK, got %+v", newLogin)
	}

	// S6: logout on the connection that is actually authenticated.
	logout := newPassClient.logout()
	if logout.ControlType != constants.ControlDisconnect {
		t.Fatalf("S6 logout: expected DISCONNECT, got %+v", logout)
	}
}

// TestWrongPasswordLockout exercises S3: five failed logins, then a sixth
// within the lockout window is rejected even with the correct password.
func TestWrongPasswordLockout(t *testing.T) {
	addr := newServerAddr(t)

	setup := dial(t, addr)
	setup.handshake()
	if reg := setup.register("lockoutuser", "Str0ng!Pass"); reg.ControlType != constants.ControlACK {
		t.Fatalf("register: expected ACK, got %+v", reg)
	}

	for i := 0; i < 5; i++ {
		c := dial(t, addr)
		c.handshake()
		login := c.login("lockoutuser", "bad-password")
		if login.ControlType != constants.ControlError || login.Reason != constants.ReasonUnauthenticated {
			t.Fatalf("attempt %d: expected UNAUTHENTICATED, got %+v", i+1, login)
		}
	}

	sixth := dial(t, addr)
	sixth.handshake()
	locked := sixth.login("lockoutuser", "Str0ng!Pass")
	if locked.ControlType != constants.ControlError || locked.Reason != constants.ReasonAccountLocked {
		t.Fatalf("sixth attempt: expected ACCOUNT_LOCKED, got %+v", locked)
	}
}

// TestEncryptionEnforcement exercises S5: a handler that requires
// encryption rejects a plaintext frame without invoking the handler.
func TestEncryptionEnforcement(t *testing.T) {
	addr := newServerAddr(t)

	c := dial(t, addr)
	c.handshake()

	resp := c.loginUnencrypted("whoever", "whatever")
	if resp.ControlType != constants.ControlError || resp.Reason != constants.ReasonNotEncrypted {
		t.Fatalf("unencrypted login: expected NOT_ENCRYPTED, got %+v", resp)
	}
}
