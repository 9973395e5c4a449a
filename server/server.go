// Package server accepts TCP connections and runs one protocol session
// per connection.
//
// Sessions run in parallel; within a session requests are handled strictly
// in order, one response per request. Framing errors are answered and the
// session continues; a transport error ends only that session.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/netbackup/auth"
	"github.com/pithecene-io/netbackup/iox"
	"github.com/pithecene-io/netbackup/log"
	"github.com/pithecene-io/netbackup/metrics"
	"github.com/pithecene-io/netbackup/upload"
	"github.com/pithecene-io/netbackup/wire"
)

// DefaultSweepInterval is the stale-upload sweep period when none is set.
const DefaultSweepInterval = time.Minute

// Config configures a Server.
type Config struct {
	// Addr is the listen address for ListenAndServe.
	Addr string
	// MaxFrameBytes bounds total_length (default wire.DefaultMaxFrameSize).
	MaxFrameBytes uint32
	// StaleUploadAfter drops pending uploads idle this long. Zero disables.
	StaleUploadAfter time.Duration
	// SweepInterval is how often stale uploads are checked.
	SweepInterval time.Duration
}

// Server runs protocol sessions.
type Server struct {
	config  Config
	gate    *auth.Gate
	handler *Handler
	uploads *upload.Manager
	metrics *metrics.Collector
	logger  *log.Logger

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// New creates a server. uploads must be the manager the handler uses so
// the sweeper sees the same table.
func New(cfg Config, gate *auth.Gate, handler *Handler, uploads *upload.Manager, m *metrics.Collector, logger *log.Logger) *Server {
	if cfg.MaxFrameBytes == 0 {
		cfg.MaxFrameBytes = wire.DefaultMaxFrameSize
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Server{
		config:  cfg,
		gate:    gate,
		handler: handler,
		uploads: uploads,
		metrics: m,
		logger:  logger,
		conns:   make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes the
// listener and every live connection and waits for sessions, journal
// writes and notifications to finish. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.logger.Info("server listening", map[string]any{"addr": ln.Addr().String()})

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		_ = ln.Close()
		s.closeConns()
	}()

	if s.config.StaleUploadAfter > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.uploads.RunSweeper(ctx, s.config.SweepInterval, s.config.StaleUploadAfter, s.onSweep)
		}()
	}

	var serveErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				serveErr = fmt.Errorf("accept: %w", err)
			}
			break
		}
		if !s.track(conn) {
			iox.DiscardClose(conn)
			break
		}
		s.metrics.IncConnectionAccepted()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.serveConn(ctx, conn)
		}()
	}

	cancel()
	<-stopped
	s.wg.Wait()
	s.handler.Wait()

	s.logger.Info("server stopped", s.metrics.Snapshot().Fields())
	return serveErr
}

func (s *Server) onSweep(names []string) {
	s.metrics.AddUploadsSwept(len(names))
	s.logger.Info("stale uploads dropped", map[string]any{"filenames": names})
}

// track registers conn. It returns false once shutdown has begun.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
	s.metrics.IncConnectionClosed()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
}

// serveConn runs the request loop for one connection.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	sess := NewSession(uuid.NewString(), conn.RemoteAddr().String(), s.gate, s.logger)
	sess.logger.Info("connection opened", nil)

	reader := wire.NewReader(conn, s.config.MaxFrameBytes)
	for {
		resp, err := s.next(ctx, sess, reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				sess.logger.Info("client disconnected", nil)
			} else if ctx.Err() != nil {
				sess.logger.Debug("session closed by shutdown", nil)
			} else {
				sess.logger.Warn("session ended", map[string]any{"error": err.Error()})
			}
			return
		}

		s.metrics.IncResponse(resp.Status.String())
		if err := wire.WriteMessage(conn, resp); err != nil {
			sess.logger.Warn("write failed", map[string]any{"error": err.Error()})
			return
		}
	}
}

// next reads one request and produces its response. A non-nil error
// means the stream is unusable and the session must end.
func (s *Server) next(ctx context.Context, sess *Session, reader *wire.Reader) (*wire.Message, error) {
	length, body, err := reader.ReadFrame()
	if err == nil {
		var msg *wire.Message
		msg, err = wire.Decode(length, body)
		if err == nil {
			return s.handler.Handle(ctx, sess, msg), nil
		}
	}

	if errors.Is(err, io.EOF) || wire.IsFatalFrameError(err) {
		return nil, err
	}
	var frameErr *wire.FrameError
	if !errors.As(err, &frameErr) {
		return nil, err
	}

	s.metrics.IncDecodeError()
	sess.logger.Warn("invalid frame", map[string]any{
		"kind":   frameErr.Kind.String(),
		"length": length,
		"error":  err.Error(),
	})
	return invalidFrameResponse(body, err), nil
}
