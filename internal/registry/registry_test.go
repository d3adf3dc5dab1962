package registry

import (
	"context"
	"testing"
	"time"

	"github.com/udisondev/la2go/internal/session"
)

func noop(ctx context.Context, conn *session.Connection, payload []byte, sequenceID uint32) Result {
	return ContinueResult
}

func TestBuildAndLookup(t *testing.T) {
	r := Build([]Descriptor{
		{Opcode: 1, RequiredLevel: session.LevelNone, Handler: noop},
		{Opcode: 2, RequiredLevel: session.LevelUser, Timeout: 10 * time.Second, Handler: noop},
	})

	d, ok := r.Lookup(1)
	if !ok {
		t.Fatal("opcode 1 not found")
	}
	if d.Timeout == 0 {
		t.Fatal("default timeout was not applied")
	}

	d2, ok := r.Lookup(2)
	if !ok || d2.Timeout != 10*time.Second {
		t.Fatalf("opcode 2 timeout = %v, want 10s", d2.Timeout)
	}

	if _, ok := r.Lookup(99); ok {
		t.Fatal("unregistered opcode resolved")
	}
}

func TestBuildPanicsOnDuplicateOpcode(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Build did not panic on duplicate opcode")
		}
	}()
	Build([]Descriptor{
		{Opcode: 1, Handler: noop},
		{Opcode: 1, Handler: noop},
	})
}

func TestDescriptorNewHandlerWindow(t *testing.T) {
	d := Descriptor{RateLimit: &RateLimitSpec{MaxCalls: 3, Window: time.Second}}
	w := d.NewHandlerWindow()
	if w == nil {
		t.Fatal("NewHandlerWindow returned nil with a RateLimit set")
	}

	noLimit := Descriptor{}
	if noLimit.NewHandlerWindow() != nil {
		t.Fatal("NewHandlerWindow should return nil without a RateLimit")
	}
}
