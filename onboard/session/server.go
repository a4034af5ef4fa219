// Package session runs the control loop: it accepts one client at a time,
// decodes each line it sends and applies the result to the actuators. When a
// client goes away the actuators are returned to rest before the next client
// is accepted.
package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/CodedInternet/matthieu/internal/log"
	"github.com/CodedInternet/matthieu/onboard/actuation"
	"github.com/CodedInternet/matthieu/onboard/journal"
	"github.com/CodedInternet/matthieu/onboard/protocol"
	"github.com/google/uuid"
)

// ErrRestart is returned by Serve after a client asked for a restart and the
// Restarter came back, which only happens when it does not replace the process.
var ErrRestart = errors.New("restart requested")

type Config struct {
	Listen      string        `yaml:"listen"`
	MaxLine     int           `yaml:"max_line"`
	IdleTimeout time.Duration `yaml:"idle_timeout"` // 0 waits forever
	Keepalive   time.Duration `yaml:"keepalive"`    // 0 disables
}

func (c Config) WithDefaults() Config {
	if c.Listen == "" {
		c.Listen = ":2323"
	}
	if c.MaxLine <= 0 {
		c.MaxLine = protocol.DefaultMaxLine
	}
	return c
}

type Restarter interface {
	Restart()
}

type Journal interface {
	Start(rec *journal.Record) error
	Finish(rec *journal.Record) error
}

type Server struct {
	decoder   *protocol.Decoder
	machine   *actuation.Machine
	restarter Restarter
	journal   Journal
	config    Config

	lock    sync.RWMutex
	current *journal.Record
}

func NewServer(decoder *protocol.Decoder, machine *actuation.Machine, restarter Restarter, config Config) *Server {
	return &Server{
		decoder:   decoder,
		machine:   machine,
		restarter: restarter,
		config:    config.WithDefaults(),
	}
}

// UseJournal records every session in j. Must be called before Serve.
func (s *Server) UseJournal(j Journal) {
	s.journal = j
}

// Current returns the session being served, if any.
func (s *Server) Current() (journal.Record, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.current == nil {
		return journal.Record{}, false
	}
	return *s.current, true
}

// Serve handles clients from all listeners one after another until ctx is
// cancelled, every listener is closed, or a client requests a restart.
// The listeners are closed when Serve returns.
func (s *Server) Serve(ctx context.Context, listeners ...Listener) error {
	if len(listeners) == 0 {
		return errors.New("no listeners to serve")
	}

	done := make(chan struct{})
	incoming, wg := merge(listeners, done)
	defer func() {
		close(done)
		for _, l := range listeners {
			l.Close()
		}
		wg.Wait()
	}()

	for _, l := range listeners {
		log.Info("waiting for control clients", "network", l.Addr().Network(), "addr", l.Addr().String())
	}

	open := len(listeners)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case a := <-incoming:
			if a.err != nil {
				open--
				if open == 0 {
					return a.err
				}
				continue
			}

			if err := s.handle(ctx, a.conn, a.listener.Addr().Network()); err != nil {
				return err
			}
		}
	}
}

type input struct {
	line []byte
	err  error
}

func (s *Server) read(r io.Reader, out chan<- input, stop <-chan struct{}) {
	lines := protocol.NewLineReader(r, s.config.MaxLine)
	for {
		line, err := lines.ReadLine()
		select {
		case out <- input{line, err}:
		case <-stop:
			return
		}
		if err != nil && !errors.Is(err, protocol.ErrLineTooLong) {
			return
		}
	}
}

func (s *Server) handle(ctx context.Context, conn Conn, transport string) error {
	rec := &journal.Record{
		Session:   uuid.NewString(),
		Remote:    remoteString(conn),
		Transport: transport,
		Started:   time.Now(),
	}
	logger := log.With("session", rec.Session, "remote", rec.Remote, "transport", transport)
	logger.Info("client connected")

	if s.journal != nil {
		if err := s.journal.Start(rec); err != nil {
			logger.Warn("unable to journal session", "err", err)
		}
	}
	s.lock.Lock()
	s.current = rec
	s.lock.Unlock()

	lines := make(chan input)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.read(conn, lines, stop)
	}()

	reason := s.loop(ctx, rec, lines, logger)

	close(stop)
	conn.Close()
	wg.Wait()

	s.lock.Lock()
	rec.Ended = time.Now()
	rec.EndReason = reason
	s.current = nil
	s.lock.Unlock()

	logger.Info("client disconnected",
		"reason", reason,
		"applied", rec.Applied,
		"rejected", rec.Rejected,
		"duration", rec.Duration())

	if s.journal != nil && rec.ID != 0 {
		if err := s.journal.Finish(rec); err != nil {
			logger.Warn("unable to journal session", "err", err)
		}
	}

	if reason == journal.EndReset {
		s.restarter.Restart()
		return ErrRestart
	}

	if err := s.machine.Reset(); err != nil {
		logger.Error("unable to return actuators to rest", "err", err)
	}
	return nil
}

// loop processes lines in arrival order and returns why the session ended.
func (s *Server) loop(ctx context.Context, rec *journal.Record, lines <-chan input, logger *slog.Logger) string {
	var idle <-chan time.Time
	var idleTimer *time.Timer
	if s.config.IdleTimeout > 0 {
		idleTimer = time.NewTimer(s.config.IdleTimeout)
		defer idleTimer.Stop()
		idle = idleTimer.C
	}

	var keepalive <-chan time.Time
	if s.config.Keepalive > 0 {
		ticker := time.NewTicker(s.config.Keepalive)
		defer ticker.Stop()
		keepalive = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return journal.EndShutdown

		case <-idle:
			logger.Warn("client idle, dropping", "timeout", s.config.IdleTimeout)
			return journal.EndIdle

		case <-keepalive:
			if err := s.machine.Reapply(); err != nil {
				logger.Error("keepalive failed", "err", err)
			}

		case in := <-lines:
			tooLong := errors.Is(in.err, protocol.ErrLineTooLong)
			if idleTimer != nil && (in.err == nil || tooLong) {
				if !idleTimer.Stop() {
					select {
					case <-idleTimer.C:
					default:
					}
				}
				idleTimer.Reset(s.config.IdleTimeout)
			}

			switch {
			case tooLong:
				s.count(rec, false)
				logger.Debug("line dropped", "err", in.err)
				continue
			case in.err != nil:
				if !errors.Is(in.err, io.EOF) && !errors.Is(in.err, net.ErrClosed) {
					logger.Warn("read failed", "err", in.err)
				}
				return journal.EndDisconnect
			}

			if s.process(rec, in.line, logger) {
				return journal.EndReset
			}
		}
	}
}

// process handles one line and reports whether it was a reset request.
func (s *Server) process(rec *journal.Record, line []byte, logger *slog.Logger) bool {
	if len(bytes.TrimSpace(line)) == 0 {
		return false
	}

	res, err := s.decoder.Decode(line)
	if err != nil {
		s.count(rec, false)
		logger.Debug("line dropped", "line", string(line), "err", err)
		return false
	}

	if res.Reset {
		logger.Warn("client requested a restart")
		return true
	}

	s.count(rec, true)
	if err := s.machine.Apply(res.Command); err != nil {
		logger.Error("unable to drive actuator", "command", res.Command.String(), "err", err)
		return false
	}
	logger.Debug("applied", "command", res.Command.String())
	return false
}

func (s *Server) count(rec *journal.Record, applied bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if applied {
		rec.Applied++
	} else {
		rec.Rejected++
	}
}

func remoteString(conn Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
