package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mkrell/harbord"
	"github.com/mkrell/harbord/checkpoint"
	"github.com/mkrell/harbord/config"
	"github.com/mkrell/harbord/supervisor"
)

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          "harbord",
		Short:        "Local supervisor for the protocol workers",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to the config file")

	root.AddCommand(newRunCmd(&cfgPath))
	root.AddCommand(newVersionCmd())
	return root
}

func newRunCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Download the bootstrap checkpoint and run the worker stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Log)
			return runDaemon(cmd.Context(), cfg, log)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the harbord version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			version := "devel"
			if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
				version = info.Main.Version
			}
			fmt.Fprintln(cmd.OutOrStdout(), "harbord", version)
		},
	}
}

// runDaemon is the supervisor-mode main loop: bootstrap from the
// checkpoint, start both workers, then block until something fires the
// shutdown signal — a dead worker, an operator interrupt, or a worker
// asking the whole stack down.
func runDaemon(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	sup, err := supervisor.New(supervisor.Config{
		HeartbeatInterval: cfg.HeartbeatInterval,
		AttachTimeout:     cfg.AttachTimeout,
		CaptureLogs:       cfg.CaptureLogs,
		Logger:            &log,
	})
	if err != nil {
		return err
	}
	defer sup.Close()

	if mux := sup.Logs(); mux != nil {
		// Subscription channels are never closed, so this goroutine
		// runs until process exit — it lives exactly as long as the
		// daemon whose workers it is echoing.
		go func() {
			for line := range mux.Subscribe() {
				fmt.Println(line)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info().Stringer("signal", sig).Msg("interrupt received")
			sup.Shutdown().Fire()
		case <-sup.Shutdown().Done():
		}
	}()

	anchor, err := loadCheckpoint(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("bootstrap checkpoint: %w", err)
	}
	log.Info().
		Uint32("height", anchor.Block.Height).
		Str("prune_point", anchor.PrunePoint()).
		Msg("checkpoint ready")

	lcArgs := append([]string{
		"--data-dir", cfg.WorkerDataDir(string(harbord.RoleLightClient)),
		"--prune-point", anchor.PrunePoint(),
	}, cfg.LightClient.Args...)
	if err := sup.Start(ctx, harbord.RoleLightClient, lcArgs); err != nil {
		return fmt.Errorf("start light client: %w", err)
	}

	idxArgs := append([]string{
		"--data-dir", cfg.WorkerDataDir(string(harbord.RoleIndexer)),
	}, cfg.Indexer.Args...)
	if err := sup.Start(ctx, harbord.RoleIndexer, idxArgs); err != nil {
		return fmt.Errorf("start indexer: %w", err)
	}

	log.Info().Msg("worker stack running")
	<-sup.Shutdown().Done()
	log.Info().Msg("shutting down")
	return nil
}

// loadCheckpoint downloads the snapshot into the indexer's data
// directory and logs coarse progress along the way.
func loadCheckpoint(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*checkpoint.RootAnchor, error) {
	progress := make(chan checkpoint.Progress, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		lastDecile := -1
		for p := range progress {
			if p.Total <= 0 {
				continue
			}
			decile := int(p.Downloaded * 10 / p.Total)
			if decile > lastDecile {
				lastDecile = decile
				log.Info().
					Int64("downloaded", p.Downloaded).
					Int64("total", p.Total).
					Msg("downloading checkpoint")
			}
		}
	}()

	loader := &checkpoint.Loader{Log: log}
	anchor, err := loader.Load(ctx, cfg.CheckpointURL, cfg.WorkerDataDir(string(harbord.RoleIndexer)), progress)
	close(progress)
	<-done
	return anchor, err
}
