// Command harbord runs the protocol stack on a single machine: it
// downloads the bootstrap checkpoint, then spawns and supervises the
// light client and indexer workers.
//
// The binary doubles as every worker. A plain invocation is the
// supervisor CLI; an invocation carrying the worker role flag re-enters
// here in worker mode and attaches back to the parent.
package main

import (
	"os"

	"github.com/mkrell/harbord/attach"
)

func main() {
	// Worker mode is decided before the CLI ever sees the arguments, so
	// role flags never collide with supervisor flags.
	if code, isWorker := runWorker(os.Args[1:]); isWorker {
		os.Exit(code)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func runWorker(args []string) (code int, isWorker bool) {
	r, ok, err := attach.Parse(args)
	if !ok && err == nil {
		return 0, false
	}

	log := workerLogger()
	if err != nil {
		log.Error().Err(err).Msg("invalid worker invocation")
		return 2, true
	}
	if err := r.Run(entryPoints(), log); err != nil {
		log.Error().Err(err).Stringer("role", r.Role).Msg("worker failed")
		return 1, true
	}
	return 0, true
}
