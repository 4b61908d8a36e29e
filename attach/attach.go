// Package attach implements the worker side of supervision: the code that
// runs inside a spawned worker process to re-establish a control channel
// with its supervisor and obey remote commands.
//
// A worker invocation is recognized by the role flag on the command line.
// If the attach address flag is also present the runtime dials back to
// the supervisor and spawns a watcher that reads one command byte at a
// time; without it the worker runs standalone, which keeps direct
// invocation and testing possible.
//
// The watcher, an operator interrupt, and a remote shutdown byte all
// funnel into one worker-local shutdown signal, so every source reaches
// the same termination path exactly once.
package attach

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/mkrell/harbord"
)

// Command-line flags shared by the spawner and the worker-mode parser.
const (
	// RoleFlag selects the worker role.
	RoleFlag = "--role"

	// AddrFlag carries the supervisor's loopback listener address.
	AddrFlag = "--attach"
)

// Runner is a parsed worker-mode invocation.
type Runner struct {
	// Role is the worker kind to run.
	Role harbord.Role

	// Addr is the supervisor address to dial back to. Empty means the
	// worker runs standalone, unsupervised.
	Addr string

	// Args are the remaining role-specific arguments.
	Args []string
}

// Parse inspects a command line for a worker-mode invocation.
//
// The second return is false when the role flag is absent: the process
// was started as a supervisor, not a worker. A role flag with a value
// outside the closed role set is an error — it is a worker invocation,
// just a broken one. A trailing role flag with no value carries no role
// and reads the same as an absent flag.
func Parse(args []string) (*Runner, bool, error) {
	rest := append([]string(nil), args...)

	roleArg, ok := takeFlag(RoleFlag, &rest)
	if !ok {
		return nil, false, nil
	}
	role, err := harbord.ParseRole(roleArg)
	if err != nil {
		return nil, true, err
	}
	addr, _ := takeFlag(AddrFlag, &rest)

	return &Runner{Role: role, Addr: addr, Args: rest}, true, nil
}

// takeFlag removes "flag value" from args, returning the value.
func takeFlag(flag string, args *[]string) (string, bool) {
	for i, a := range *args {
		if a != flag {
			continue
		}
		if i+1 >= len(*args) {
			*args = append((*args)[:i], (*args)[i+1:]...)
			return "", false
		}
		value := (*args)[i+1]
		*args = append((*args)[:i], (*args)[i+2:]...)
		return value, true
	}
	return "", false
}

// Run connects back to the supervisor when an attach address is present,
// wires the operator interrupt into the worker-local shutdown signal, and
// invokes the role's entry point. It returns when the entry point does.
func (r *Runner) Run(entries map[harbord.Role]harbord.EntryPoint, log zerolog.Logger) error {
	entry, ok := entries[r.Role]
	if !ok {
		return fmt.Errorf("%w: no entry point registered for %q", harbord.ErrUnknownRole, r.Role)
	}

	shutdown := harbord.NewSignal()

	if r.Addr != "" {
		conn, err := net.Dial("tcp", r.Addr)
		if err != nil {
			return fmt.Errorf("attach: connect to supervisor at %s: %w", r.Addr, err)
		}
		go Watch(conn, shutdown, log.With().Stringer("role", r.Role).Logger())
		// Local cancellation also releases the watcher's blocked read.
		go func() {
			<-shutdown.Done()
			conn.Close()
		}()
	}

	// Operator interrupt and remote shutdown reach the same path.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			shutdown.Fire()
		case <-shutdown.Done():
		}
	}()

	return entry(r.Args, shutdown)
}

// Watch reads command bytes from the supervisor connection until a
// shutdown is ordered or the connection breaks. A ping needs no action —
// the supervisor's successful write is the acknowledgment. The supervisor
// disappearing (EOF or any read error) is equivalent to an explicit
// shutdown request.
func Watch(conn net.Conn, shutdown *harbord.Signal, log zerolog.Logger) {
	buf := make([]byte, 1)
	for {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			if shutdown.Fired() {
				// Local cancellation closed the connection under us.
				return
			}
			if errors.Is(err, io.EOF) {
				log.Info().Msg("supervisor disconnected, exiting")
			} else {
				log.Info().Err(err).Msg("control channel read failed, exiting")
			}
			shutdown.Fire()
			return
		}

		cmd, ok := harbord.ParseCommand(buf[0])
		if !ok {
			log.Warn().Uint8("byte", buf[0]).Msg("unknown command, ignoring")
			continue
		}
		switch cmd {
		case harbord.CommandPing:
			// Liveness probe; nothing to do.
		case harbord.CommandShutdown:
			log.Info().Msg("shutdown requested by supervisor")
			shutdown.Fire()
			return
		}
	}
}
