// Package harbord provides a local process supervisor for a small, fixed
// set of long-running worker roles: a light client and a ledger indexer.
//
// harbord launches each worker by re-executing the current binary in
// worker mode, health-checks every worker over a one-byte loopback
// control protocol, multiplexes worker logs to subscribers, and downloads
// a bootstrap snapshot from which it extracts the root anchor that seeds
// the light client.
//
// # Core Types
//
//   - [Role] — identifies a worker kind
//   - [Command] — the one-byte wire protocol (Ping, Shutdown)
//   - [Signal] — broadcast-style, idempotent shutdown signal
//   - [EntryPoint] — a worker role's main function
//
// The root package defines the shared vocabulary; the subpackages
// implement it:
//
//   - supervisor — command-driven event loop owning the workers
//   - attach     — worker-side runtime obeying supervisor commands
//   - logmux     — fan-out line feed for captured worker output
//   - checkpoint — snapshot download and root anchor extraction
//
// # Quick Start
//
//	sup, err := supervisor.New(supervisor.Config{CaptureLogs: true})
//	if err != nil { log.Fatal(err) }
//	if err := sup.Start(ctx, harbord.RoleIndexer, []string{"--port", "9000"}); err != nil {
//	    log.Fatal(err)
//	}
//	<-sup.Shutdown().Done()
package harbord

import "fmt"

// Role identifies a worker kind. The set of roles is closed: a supervisor
// manages at most one worker per role, and the role doubles as the
// `--role` flag value used when the binary re-executes itself in worker
// mode.
type Role string

// The supervised worker roles.
const (
	// RoleLightClient is the chain light client. Its prune point is
	// seeded from the root anchor extracted by the checkpoint loader.
	RoleLightClient Role = "lightclient"

	// RoleIndexer is the ledger-indexing service. It consumes the light
	// client, so neither role is useful without the other.
	RoleIndexer Role = "indexer"
)

// Roles lists every valid role.
var Roles = []Role{RoleLightClient, RoleIndexer}

// ParseRole converts a role flag value into a Role.
// Returns ErrUnknownRole for anything outside the closed set.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if s == string(r) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) String() string { return string(r) }

// EntryPoint is a worker role's main function. It receives the role's
// remaining command-line arguments and the worker-local shutdown signal,
// and must return promptly once the signal fires.
//
// Worker business logic is external to this module; the binary registers
// an EntryPoint per role and the attach runtime invokes it.
type EntryPoint func(args []string, shutdown *Signal) error
