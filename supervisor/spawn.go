package supervisor

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"slices"
	"time"

	"github.com/mkrell/harbord"
	"github.com/mkrell/harbord/attach"
)

// spawnWorker launches the supervisor's own executable in worker mode and
// waits for it to connect back. One binary serves every role: the role
// and the listener address travel as flags, and the worker's attach
// runtime dials back before entering its run loop.
func (s *Supervisor) spawnWorker(role harbord.Role, args []string) (*worker, error) {
	exe := s.cfg.Executable
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return nil, fmt.Errorf("supervisor: resolve executable: %w", err)
		}
	}

	argv := slices.Clone(s.cfg.BaseArgs)
	argv = append(argv, attach.RoleFlag, role.String(), attach.AddrFlag, s.Addr())
	argv = append(argv, args...)

	cmd := exec.Command(exe, argv...)
	setArgv0(cmd, "harbord-"+role.String())
	cmd.Stdin = os.Stdin

	var stdoutR, stderrR *os.File
	if s.logs != nil {
		// Plain pipes instead of cmd.StdoutPipe: the multiplexer owns
		// the read ends, so reaping the process never races the pumps.
		var stdoutW, stderrW *os.File
		var err error
		stdoutR, stdoutW, err = os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("supervisor: stdout pipe: %w", err)
		}
		stderrR, stderrW, err = os.Pipe()
		if err != nil {
			stdoutR.Close()
			stdoutW.Close()
			return nil, fmt.Errorf("supervisor: stderr pipe: %w", err)
		}
		cmd.Stdout = stdoutW
		cmd.Stderr = stderrW
		defer stdoutW.Close()
		defer stderrW.Close()
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		if stdoutR != nil {
			stdoutR.Close()
			stderrR.Close()
		}
		return nil, fmt.Errorf("supervisor: spawn %s: %w", role, err)
	}
	if s.logs != nil {
		s.logs.Capture(stdoutR, stderrR)
	}
	// Reap the child whenever it exits. Liveness detection still comes
	// from ping write failures, not from observing the exit.
	go func() { _ = cmd.Wait() }()

	conn, err := s.accept()
	if err != nil {
		_ = cmd.Process.Kill()
		if errors.Is(err, harbord.ErrAttachTimeout) {
			// The worker may still have dialed in just before the kill.
			// Discard anything queued on the listener so the next spawn
			// cannot pair a stale connection with its own child.
			s.drainBacklog()
			return nil, fmt.Errorf("supervisor: %s: %w", role, harbord.ErrAttachTimeout)
		}
		return nil, fmt.Errorf("supervisor: accept %s attach: %w", role, err)
	}

	return &worker{role: role, conn: conn, cmd: cmd}, nil
}

// Addr returns the loopback address workers dial back to.
func (s *Supervisor) Addr() string {
	return s.listener.Addr().String()
}

// drainBacklog accepts and closes every connection already queued on the
// attach listener. Called after a timed-out spawn, whose worker may have
// dialed after the accept window closed; a short positive deadline is
// needed because an already-expired deadline fails the accept before the
// queue is checked.
func (s *Supervisor) drainBacklog() {
	for {
		if err := s.listener.SetDeadline(time.Now().Add(10 * time.Millisecond)); err != nil {
			return
		}
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}
}

// accept waits for the just-spawned worker's connection. The loop handles
// one spawn at a time, so the next inbound connection is that worker's.
func (s *Supervisor) accept() (net.Conn, error) {
	if err := s.listener.SetDeadline(time.Now().Add(s.cfg.AttachTimeout)); err != nil {
		return nil, err
	}
	conn, err := s.listener.Accept()
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, harbord.ErrAttachTimeout
		}
		return nil, err
	}
	return conn, nil
}
