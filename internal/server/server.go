// Package server runs the accept loop that turns each inbound connection
// into one pool task.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jzx17/gopool/pkg/types"
	"github.com/jzx17/gopool/pkg/worker"
	"github.com/sirupsen/logrus"
)

// Submitter accepts tasks for asynchronous execution
type Submitter interface {
	Submit(task types.Task) error
}

// ConnHandler serves one connection. It must not close the connection.
type ConnHandler interface {
	ServeConn(rw io.ReadWriter) error
}

// Config defines configuration for Server
type Config struct {
	Listener net.Listener
	Pool     Submitter
	Handler  ConnHandler

	// MaxConnections stops Serve after that many accepted connections; 0 means unbounded
	MaxConnections int

	// Backoff for temporary accept errors (optional)
	Backoff *Backoff

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	Logger logrus.FieldLogger
}

// Server feeds accepted connections into a worker pool. It does not own the
// pool; the caller closes it after Serve returns.
type Server struct {
	listener       net.Listener
	pool           Submitter
	handler        ConnHandler
	maxConnections int
	backoff        *Backoff
	clock          types.Clock
	logger         logrus.FieldLogger

	accepted int64
}

// New creates a Server
func New(config *Config) (*Server, error) {
	if config == nil {
		return nil, errors.New("server: config is required")
	}
	if config.Listener == nil || config.Pool == nil || config.Handler == nil {
		return nil, errors.New("server: listener, pool and handler are required")
	}
	if config.MaxConnections < 0 {
		return nil, fmt.Errorf("server: max connections must not be negative, got %d", config.MaxConnections)
	}

	s := &Server{
		listener:       config.Listener,
		pool:           config.Pool,
		handler:        config.Handler,
		maxConnections: config.MaxConnections,
		backoff:        config.Backoff,
		clock:          config.Clock,
		logger:         config.Logger,
	}
	if s.backoff == nil {
		s.backoff = DefaultBackoff()
	}
	if s.clock == nil {
		s.clock = types.NewRealClock()
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	return s, nil
}

// Serve accepts connections until ctx is cancelled, MaxConnections is
// reached, or the listener fails permanently. The listener is closed on
// return. A nil error means a clean stop.
func (s *Server) Serve(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.listener.Close()
		case <-stop:
		}
	}()
	defer s.listener.Close()

	for s.maxConnections == 0 || atomic.LoadInt64(&s.accepted) < int64(s.maxConnections) {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if isTemporary(err) {
				delay := s.backoff.Next()
				s.logger.WithError(err).WithField("retry_in", delay).Warn("accept failed; retrying")
				if !s.wait(ctx, delay) {
					return nil
				}
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.backoff.Reset()
		atomic.AddInt64(&s.accepted, 1)

		if err := s.dispatch(conn); err != nil {
			return err
		}
	}

	s.logger.WithField("connections", s.maxConnections).Info("connection limit reached")
	return nil
}

// dispatch hands conn to the pool as one task
func (s *Server) dispatch(conn net.Conn) error {
	connID := uuid.NewString()
	logger := s.logger.WithFields(logrus.Fields{
		"conn_id":     connID,
		"remote_addr": conn.RemoteAddr().String(),
	})
	logger.Info("connection established")

	task := worker.NewTaskWithID(connID, func() {
		defer conn.Close()
		if err := s.handler.ServeConn(conn); err != nil {
			logger.WithError(err).Warn("connection failed")
		}
	})

	if err := s.pool.Submit(task); err != nil {
		conn.Close()
		return fmt.Errorf("submit connection %s: %w", connID, err)
	}
	return nil
}

func (s *Server) wait(ctx context.Context, d time.Duration) bool {
	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C():
		return true
	case <-ctx.Done():
		return false
	}
}

// Accepted returns how many connections have been accepted
func (s *Server) Accepted() int64 {
	return atomic.LoadInt64(&s.accepted)
}

// isTemporary reports whether err advertises itself as transient
func isTemporary(err error) bool {
	var temp interface{ Temporary() bool }
	return errors.As(err, &temp) && temp.Temporary()
}
