// Package supervisor implements the command-driven event loop that owns
// the set of running workers.
//
// A Supervisor serializes every mutation of the worker registry through
// one command queue: callers submit Start and Stop requests and await a
// per-request reply, while a dedicated goroutine interleaves command
// handling, a heartbeat tick, and shutdown observation via a single
// select. No two operations ever race on the same role.
//
// The failure policy is fail-together: the two roles are mutually
// dependent (the indexer consumes the light client), so partial operation
// is not a meaningful state. The first failed heartbeat write to any
// worker fires the supervisor-wide shutdown signal and ends the loop.
package supervisor

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkrell/harbord"
	"github.com/mkrell/harbord/logmux"
)

// Config configures a Supervisor. The zero value is usable: every field
// has a default.
type Config struct {
	// HeartbeatInterval is the pause between liveness pings to every
	// registered worker. Default 1s.
	HeartbeatInterval time.Duration

	// AttachTimeout bounds how long a spawned worker may take to connect
	// back to the supervisor's listener. Default 10s.
	AttachTimeout time.Duration

	// CaptureLogs redirects worker stdout/stderr into the log
	// multiplexer. When false, workers inherit the supervisor's own
	// streams. Supervisor-wide; not per worker.
	CaptureLogs bool

	// LogBacklog is the number of recent log lines retained for late
	// subscribers. Default logmux.DefaultBacklog.
	LogBacklog int

	// Executable is the spawn target. Defaults to the running binary,
	// which doubles as every worker via role flags.
	Executable string

	// BaseArgs are prepended before the role and attach flags. The
	// daemon leaves this empty; tests use it to route spawns through
	// the test binary's helper-process entry.
	BaseArgs []string

	// Logger receives supervisor diagnostics. Defaults to a no-op logger.
	Logger *zerolog.Logger
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = time.Second
	}
	if cfg.AttachTimeout <= 0 {
		cfg.AttachTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	return cfg
}

// Supervisor is the single authority over the running workers. Create
// one with New; it is live until its shutdown signal fires.
type Supervisor struct {
	cfg      Config
	log      zerolog.Logger
	listener *net.TCPListener
	logs     *logmux.Mux // nil when capture is disabled
	shutdown *harbord.Signal

	cmds   chan request
	closed chan struct{} // closed when the event loop has exited

	spawn spawnFunc
}

// spawnFunc creates a worker for a role. Swapped out in tests.
type spawnFunc func(role harbord.Role, args []string) (*worker, error)

type reqKind int

const (
	reqStart reqKind = iota
	reqStop
)

// request is one command into the event loop. reply is single-use and
// buffered so the loop never blocks on a departed caller.
type request struct {
	kind  reqKind
	role  harbord.Role
	args  []string
	reply chan error
}

// New binds a loopback listener and starts the event loop on its own
// goroutine. The caller interacts only through Start, Stop, Logs and the
// shutdown signal; none of the loop's blocking work (spawn, accept) ever
// runs on the caller's goroutine.
func New(cfg Config) (*Supervisor, error) {
	return newSupervisor(cfg, nil)
}

func newSupervisor(cfg Config, spawn spawnFunc) (*Supervisor, error) {
	cfg = cfg.withDefaults()

	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, fmt.Errorf("supervisor: bind attach listener: %w", err)
	}

	s := &Supervisor{
		cfg:      cfg,
		log:      *cfg.Logger,
		listener: ln,
		shutdown: harbord.NewSignal(),
		cmds:     make(chan request, 20),
		closed:   make(chan struct{}),
	}
	if cfg.CaptureLogs {
		s.logs = logmux.New(cfg.LogBacklog, s.log)
	}
	s.spawn = spawn
	if s.spawn == nil {
		s.spawn = s.spawnWorker
	}

	go s.run()
	return s, nil
}

// Shutdown returns the supervisor-wide shutdown signal. It fires when any
// heartbeat fails, when the event loop exits, or when an external party
// fires it; all of those are equivalent to the caller.
func (s *Supervisor) Shutdown() *harbord.Signal { return s.shutdown }

// Logs returns the log multiplexer, or nil when capture is disabled.
func (s *Supervisor) Logs() *logmux.Mux { return s.logs }

// Close fires the shutdown signal and waits for the event loop to exit.
func (s *Supervisor) Close() {
	s.shutdown.Fire()
	<-s.closed
}

// Start spawns a worker for role in worker mode, waits for it to attach,
// and registers it. A previously registered worker for the same role is
// told to shut down strictly before the new one is admitted.
//
// Spawn failures, attach timeouts, and startup failures are all surfaced
// here and are fatal only to this request; the supervisor stays alive.
func (s *Supervisor) Start(ctx context.Context, role harbord.Role, args []string) error {
	return s.submit(ctx, request{kind: reqStart, role: role, args: args, reply: make(chan error, 1)})
}

// Stop sends a shutdown command to the worker registered for role and
// removes it. Stopping a role with no registered worker is a no-op
// success.
func (s *Supervisor) Stop(ctx context.Context, role harbord.Role) error {
	return s.submit(ctx, request{kind: reqStop, role: role, reply: make(chan error, 1)})
}

func (s *Supervisor) submit(ctx context.Context, req request) error {
	select {
	case s.cmds <- req:
	case <-s.closed:
		return harbord.ErrSupervisorClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-s.closed:
		// The loop may have replied just before exiting.
		select {
		case err := <-req.reply:
			return err
		default:
			return harbord.ErrSupervisorClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the event loop. Exactly one of the three sources is serviced
// per iteration, so registry mutations never race.
func (s *Supervisor) run() {
	defer close(s.closed)
	defer s.listener.Close()

	workers := make(map[harbord.Role]*worker)
	defer func() {
		for _, w := range workers {
			w.askShutdown()
			w.close()
		}
	}()

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case req := <-s.cmds:
			s.handle(workers, req)
		case <-ticker.C:
			if role, ok := s.pingAll(workers); !ok {
				s.log.Error().Stringer("role", role).Msg("heartbeat failed, shutting down")
				s.shutdown.Fire()
				return
			}
		case <-s.shutdown.Done():
			s.log.Info().Msg("shutdown signal received")
			return
		}
	}
}

func (s *Supervisor) handle(workers map[harbord.Role]*worker, req request) {
	switch req.kind {
	case reqStart:
		w, err := s.spawn(req.role, req.args)
		if err != nil {
			req.reply <- err
			return
		}
		// Shut the old worker down before the new one becomes the
		// registered entry for the role.
		if old, ok := workers[req.role]; ok {
			old.askShutdown()
			old.close()
			delete(workers, req.role)
		}
		workers[req.role] = w
		s.log.Info().Stringer("role", req.role).Msg("worker started")
		req.reply <- nil

	case reqStop:
		if w, ok := workers[req.role]; ok {
			w.askShutdown()
			w.close()
			delete(workers, req.role)
			s.log.Info().Stringer("role", req.role).Msg("worker stopped")
		}
		req.reply <- nil
	}
}

// pingAll writes one ping byte to every registered worker. The first
// write failure aborts the sweep and reports the failed role: a broken
// pipe means the worker died or wedged, and the policy is fail-together
// rather than per-worker restart.
func (s *Supervisor) pingAll(workers map[harbord.Role]*worker) (harbord.Role, bool) {
	for role, w := range workers {
		if !w.ping() {
			return role, false
		}
	}
	return "", true
}
