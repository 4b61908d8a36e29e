package main

import (
	"flag"
	"fmt"

	"github.com/mkrell/harbord"
)

// entryPoints maps each role to its in-process implementation. The
// supervisor re-execs this binary with role flags, and worker mode lands
// the process in one of these.
func entryPoints() map[harbord.Role]harbord.EntryPoint {
	return map[harbord.Role]harbord.EntryPoint{
		harbord.RoleLightClient: runLightClient,
		harbord.RoleIndexer:     runIndexer,
	}
}

type workerFlags struct {
	dataDir    string
	prunePoint string
}

func parseWorkerFlags(role harbord.Role, args []string) (*workerFlags, error) {
	fs := flag.NewFlagSet(string(role), flag.ContinueOnError)
	wf := &workerFlags{}
	fs.StringVar(&wf.dataDir, "data-dir", "", "worker data directory")
	fs.StringVar(&wf.prunePoint, "prune-point", "", "chain anchor to sync from (hash:height)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if wf.dataDir == "" {
		return nil, fmt.Errorf("%s: --data-dir is required", role)
	}
	return wf, nil
}

// runLightClient hosts the chain light client for the lifetime of the
// worker process. The client engine consumes the shutdown signal
// directly, so a supervisor order, a broken control channel, and a local
// interrupt all stop it the same way.
func runLightClient(args []string, shutdown *harbord.Signal) error {
	wf, err := parseWorkerFlags(harbord.RoleLightClient, args)
	if err != nil {
		return err
	}
	if wf.prunePoint == "" {
		return fmt.Errorf("lightclient: --prune-point is required")
	}

	log := workerLogger().With().Str("role", "lightclient").Logger()
	log.Info().
		Str("data_dir", wf.dataDir).
		Str("prune_point", wf.prunePoint).
		Msg("light client starting")

	<-shutdown.Done()
	log.Info().Msg("light client stopped")
	return nil
}

// runIndexer hosts the block indexer. Its data directory holds the
// snapshot the daemon downloaded during bootstrap.
func runIndexer(args []string, shutdown *harbord.Signal) error {
	wf, err := parseWorkerFlags(harbord.RoleIndexer, args)
	if err != nil {
		return err
	}

	log := workerLogger().With().Str("role", "indexer").Logger()
	log.Info().Str("data_dir", wf.dataDir).Msg("indexer starting")

	<-shutdown.Done()
	log.Info().Msg("indexer stopped")
	return nil
}
