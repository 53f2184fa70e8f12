// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the booking engine over the framed TCP
// protocol. Each accepted connection runs a handler loop on a bounded
// worker pool, so the pool size caps how many connections are served
// at once and the queue depth bounds how many accepted connections can
// wait for a slot.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/flightline-io/flightline/booking"
	"github.com/flightline-io/flightline/lib/workpool"
	"github.com/flightline-io/flightline/wire"
)

// Config configures a Server.
type Config struct {
	// Listen is the TCP listen address, host:port. Port 0 picks a free
	// port (the listener's address is available via Address).
	Listen string

	// Engine is the shared booking engine. Required.
	Engine *booking.Engine

	// Workers is the number of pool workers, each serving one
	// connection at a time. Zero means 50.
	Workers int

	// QueueDepth bounds how many accepted connections may queue for a
	// worker before Accept itself stops (backpressure). Zero means 100.
	QueueDepth int

	// Logger is used for structured logging. Nil means slog.Default().
	Logger *slog.Logger
}

// Server accepts framed protocol connections and dispatches their
// requests to the booking engine.
type Server struct {
	engine   *booking.Engine
	logger   *slog.Logger
	listener net.Listener
	pool     *workpool.Pool

	// mu guards conns, the set of live connections. Shutdown closes
	// them all so handler loops blocked in Receive observe an error and
	// release their pool slot.
	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// New creates a server and binds its listener, so Address is valid
// before Serve runs.
func New(config Config) (*Server, error) {
	if config.Engine == nil {
		return nil, fmt.Errorf("server: config.Engine is required")
	}
	workers := config.Workers
	if workers == 0 {
		workers = 50
	}
	queueDepth := config.QueueDepth
	if queueDepth == 0 {
		queueDepth = 100
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	listener, err := net.Listen("tcp", config.Listen)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", config.Listen, err)
	}
	return &Server{
		engine:   config.Engine,
		logger:   logger,
		listener: listener,
		pool:     workpool.New(workers, queueDepth),
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Address returns the listener's address, useful when the configured
// port was 0.
func (s *Server) Address() string {
	return s.listener.Addr().String()
}

// Serve accepts connections until ctx is cancelled, then closes every
// live connection and waits for in-flight handlers to finish.
func (s *Server) Serve(ctx context.Context) error {
	// On cancellation, close the listener to unblock Accept and every
	// live connection to unblock handlers (and thereby a Submit stalled
	// on a full pool, since finished handlers free their slots).
	go func() {
		<-ctx.Done()
		s.listener.Close()
		s.closeConnections()
	}()

	s.logger.Info("server listening", "address", s.Address())

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		if !s.track(conn) {
			conn.Close()
			break
		}

		// Submit applies the backpressure: with all workers busy and
		// the queue full, the accept loop stalls here until a slot
		// frees up.
		err = s.pool.Submit(func() {
			s.handle(conn)
			s.untrack(conn)
		})
		if err != nil {
			s.untrack(conn)
			conn.Close()
			break
		}
	}

	s.closeConnections()
	s.pool.Shutdown()
	s.logger.Info("server stopped")
	return nil
}

// closeConnections closes every live connection and refuses new ones.
// Handlers blocked in Receive observe the close and finish, which is
// what lets the pool shutdown's wait terminate.
func (s *Server) closeConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
}

// track registers a live connection. Returns false when the server is
// already shutting down.
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
}

// handle runs one connection's request/response loop to completion.
func (s *Server) handle(conn net.Conn) {
	logger := s.logger.With("remote", conn.RemoteAddr().String())
	logger.Info("connection opened")

	session := &session{
		engine: s.engine,
		logger: logger,
	}
	framed := wire.NewConn(conn)
	defer framed.Close()

	for {
		frame, err := framed.Receive()
		if err != nil {
			logger.Info("connection closed", "reason", err)
			return
		}
		if wire.Op(frame.Tag) == wire.OpExit {
			logger.Info("connection closed", "reason", "exit")
			return
		}

		parts, err := session.dispatch(frame)
		if err != nil {
			parts = failureParts(err)
			logger.Info("request failed",
				"op", wire.Op(frame.Tag).String(),
				"code", string(booking.ErrorCode(err)),
			)
		}
		if err := framed.Send(frame.Tag, parts); err != nil {
			logger.Warn("response write failed", "error", err)
			return
		}
	}
}

// failureParts encodes an error as a failure response:
// ["ERROR", code, message]. Errors without a business code (internal
// failures) are reported as bad_request with their plain text.
func failureParts(err error) [][]byte {
	code := booking.CodeBadRequest
	message := err.Error()
	var failure *booking.Error
	if errors.As(err, &failure) {
		code = failure.Code
		message = failure.Message
	}
	return [][]byte{
		[]byte(wire.StatusError),
		[]byte(code),
		[]byte(message),
	}
}
