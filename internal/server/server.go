// Package server implements the listener and per-connection pipeline
// from spec.md §4.6/§4.8: accept loop, dispatch queue, and the ordered
// Permission → TokenBucket → Concurrency → RateLimit → Unwrap → Handler
// → Wrap stage chain. Grounded directly on the teacher's
// internal/login/server.go Run/Serve/acceptLoop/handleConnection split,
// generalized from a single login-packet switch to the full middleware
// pipeline per spec.md §9's "replace attribute-driven metadata with a
// data table" note.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/la2go/internal/config"
	"github.com/udisondev/la2go/internal/constants"
	"github.com/udisondev/la2go/internal/dispatch"
	"github.com/udisondev/la2go/internal/frame"
	"github.com/udisondev/la2go/internal/hub"
	"github.com/udisondev/la2go/internal/middleware"
	"github.com/udisondev/la2go/internal/ops"
	"github.com/udisondev/la2go/internal/packets"
	"github.com/udisondev/la2go/internal/pool"
	"github.com/udisondev/la2go/internal/ratelimit"
	"github.com/udisondev/la2go/internal/registry"
	"github.com/udisondev/la2go/internal/session"
)

// Server accepts connections implementing spec.md's binary protocol and
// dispatches decoded frames through the registered operation handlers.
type Server struct {
	cfg      config.Server
	hub      *hub.Hub
	registry *registry.Registry

	concurrency *ratelimit.Concurrency
	readPool    *pool.BytePool
	sendPool    *pool.BytePool

	mu       sync.Mutex
	listener net.Listener
}

// New builds a Server wired to repo for account persistence, replacing
// the teacher's world.Instance() service locator with explicit
// construction per spec.md §9.
func New(cfg config.Server, repo ops.AccountRepository) *Server {
	h := hub.New()
	deps := ops.Deps{Repo: repo, Hub: h}

	return &Server{
		cfg:         cfg,
		hub:         h,
		registry:    buildRegistry(deps),
		concurrency: ratelimit.NewConcurrency(cfg.RateLimit.MaxConcurrentHandlers),
		readPool:    pool.NewBytePool(constants.DefaultReadBufSize),
		sendPool:    pool.NewBytePool(constants.DefaultSendBufSize),
	}
}

// Hub exposes the connection registry, e.g. for admin tooling.
func (s *Server) Hub() *hub.Hub { return s.hub }

// Addr returns the address the server is listening on, or nil if Run/Serve
// has not been called yet.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener, causing Run/Serve's accept loop to return.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run listens on cfg.BindAddress:cfg.Port and serves until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then waits up
// to the configured drain deadline for in-flight connections to finish
// before returning. The accept loop and every connection it spawns run
// under one errgroup, the teacher's cmd/gameserver.go pattern for
// supervising a set of concurrent long-running tasks bound to a shared
// context, generalized here from three fixed subsystems to an unbounded
// set of per-connection goroutines.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		ln.Close()
		return nil
	})

	g.Go(func() error {
		slog.Info("server started", "address", ln.Addr())
		return s.acceptLoop(gctx, g, ln)
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	select {
	case err := <-done:
		return err
	case <-time.After(s.cfg.ShutdownDrainDeadlineDuration()):
		slog.Warn("shutdown drain deadline exceeded, returning without waiting for stragglers")
		return nil
	}
}

func (s *Server) acceptLoop(ctx context.Context, g *errgroup.Group, ln net.Listener) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("accept failed", "error", err)
			continue
		}

		g.Go(func() error {
			s.handleConnection(ctx, conn)
			return nil
		})
	}
}

func (s *Server) handleConnection(ctx context.Context, netConn net.Conn) {
	defer netConn.Close()

	id := s.hub.NextID()
	conn := session.New(id, netConn)
	s.hub.Register(conn)
	defer s.hub.Unregister(conn)
	defer conn.Disconnect()

	slog.Info("connection accepted", "id", id, "remote", conn.RemoteEndpoint())

	tokens := ratelimit.NewConnectionLimiter(s.cfg.RateLimit.ConnectionRatePerSecond, s.cfg.RateLimit.ConnectionBurst)
	windows := make(map[uint16]*ratelimit.HandlerWindow)

	q := dispatch.New(conn, s.cfg.DispatchQueueDepth, func(ctx context.Context, conn *session.Connection, f frame.Frame) {
		s.process(ctx, conn, f, tokens, windows)
	}, func(sequenceID uint32) {
		s.sendDirective(conn, registry.Descriptor{}, registry.Directive{
			ControlType: constants.ControlError,
			Reason:      constants.ReasonBackpressure,
			Advice:      constants.AdviceBackoffRetry,
			Flags:       constants.DirectiveIsTransient,
			SequenceID:  sequenceID,
		})
	})

	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		q.Run(ctx)
	}()
	defer func() {
		q.Close()
		<-queueDone
	}()

	sr := frame.NewStreamReader(netConn, constants.DefaultReadBufSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		f, err := sr.Next()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				slog.Debug("connection read loop ended", "id", id, "error", err)
			}
			return
		}
		cf := copyFrame(f)
		conn.SetIncomingPacket(cf)
		q.Push(cf)
	}
}

// copyFrame detaches a frame from the StreamReader's internal buffer,
// since Payload is only valid until the next call to Next and the queue
// may hold it well past that point.
func copyFrame(f frame.Frame) frame.Frame {
	payload := make([]byte, len(f.Payload))
	copy(payload, f.Payload)
	return frame.Frame{Header: f.Header, Payload: payload}
}

// process runs one frame through the inbound stage chain, invokes the
// matched handler, and sends the resulting reply, if any.
func (s *Server) process(ctx context.Context, conn *session.Connection, f frame.Frame, tokens *ratelimit.ConnectionLimiter, windows map[uint16]*ratelimit.HandlerWindow) {
	seq := f.Header.SequenceID

	d, ok := s.registry.Lookup(f.Header.Opcode)
	if !ok {
		s.sendDirective(conn, registry.Descriptor{}, registry.Directive{
			ControlType: constants.ControlError,
			Reason:      constants.ReasonUnsupportedPacket,
			Advice:      constants.AdviceDoNotRetry,
			SequenceID:  seq,
		})
		return
	}

	if res := middleware.Permission(conn, d, seq); res.Outcome != registry.Continue {
		s.sendDirective(conn, d, res.Directive)
		return
	}
	if res := middleware.TokenBucket(tokens, seq); res.Outcome != registry.Continue {
		s.sendDirective(conn, d, res.Directive)
		return
	}

	res, release := middleware.Concurrency(s.concurrency, seq)
	if res.Outcome != registry.Continue {
		s.sendDirective(conn, d, res.Directive)
		return
	}
	defer release()

	window, ok := windows[d.Opcode]
	if !ok && d.RateLimit != nil {
		window = d.NewHandlerWindow()
		windows[d.Opcode] = window
	}
	if res := middleware.RateLimit(window, time.Now(), seq); res.Outcome != registry.Continue {
		s.sendDirective(conn, d, res.Directive)
		return
	}

	unwrapped := s.readPool.Get(len(f.Payload) + 256)
	defer s.readPool.Put(unwrapped)
	n, res := middleware.Unwrap(conn, d, f.Header, f.Payload, unwrapped, seq)
	if res.Outcome != registry.Continue {
		s.sendDirective(conn, d, res.Directive)
		return
	}

	handlerCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	result := d.Handler(handlerCtx, conn, unwrapped[:n], seq)
	if handlerCtx.Err() != nil && result.Outcome == registry.Continue {
		s.sendDirective(conn, d, registry.Directive{
			ControlType: constants.ControlError,
			Reason:      constants.ReasonTimeout,
			Advice:      constants.AdviceBackoffRetry,
			Flags:       constants.DirectiveIsTransient,
			SequenceID:  seq,
		})
		return
	}

	switch result.Outcome {
	case registry.ReplyAndStop:
		s.sendDirective(conn, d, result.Directive)
	case registry.DropSilently:
		// handler already sent its own reply, or chose not to.
	}
}

// sendDirective runs a Directive payload through the outbound Wrap stage
// and writes the resulting frame, mirroring Unwrap's decrypt path for
// symmetry even though no registered Directive currently carries string
// fields.
func (s *Server) sendDirective(conn *session.Connection, d registry.Descriptor, dir registry.Directive) {
	payloadBuf := make([]byte, 4)
	n, err := packets.EncodeDirective(payloadBuf, packets.Directive{
		ControlType: dir.ControlType,
		Reason:      dir.Reason,
		Advice:      dir.Advice,
		Flags:       dir.Flags,
	})
	if err != nil {
		slog.Error("encoding directive", "error", err)
		return
	}

	wrapped := s.sendPool.Get(n + 256)
	defer s.sendPool.Put(wrapped)
	wn, flags, err := middleware.Wrap(conn, constants.MagicDirective, payloadBuf[:n], wrapped, d.RequiresEncryption)
	if err != nil {
		slog.Error("wrapping directive", "error", err)
		wn = copy(wrapped, payloadBuf[:n])
		flags = 0
	}

	buf := make([]byte, constants.HeaderSize+wn)
	total, err := frame.Encode(buf, constants.MagicDirective, 0, flags, dir.SequenceID, wrapped[:wn])
	if err != nil {
		slog.Error("encoding directive frame", "error", err)
		return
	}
	conn.Send(buf[:total])
}
