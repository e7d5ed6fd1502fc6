package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/plugmesh"
	"github.com/hupe1980/plugmesh/logging"
	"github.com/hupe1980/plugmesh/server"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the agent and serve it over HTTP",
		RunE:  runRun,
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")

	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, character, err := loadInputs(cmd)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.LoggerConfig())

	agent, err := plugmesh.New(character, func(o *plugmesh.Options) {
		o.Settings = cfg
		o.Chunking = cfg.ChunkOptions()
		o.StateCacheSize = cfg.State.CacheSize
		o.Logger = logger
	})
	if err != nil {
		return err
	}

	if err := agent.Start(ctx); err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := server.New(agent, agent, func(o *server.Options) {
		o.Addr = addr
		o.Logger = logging.Component(logger, "server")
		o.Debug = cfg.Log.Level == "debug"
	})

	errCh := make(chan error, 1)

	go func() { errCh <- srv.Start() }()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("server shutdown failed", "error", shutdownErr)
	}

	if stopErr := agent.Stop(shutdownCtx); stopErr != nil {
		logger.Warn("agent stop failed", "error", stopErr)
	}

	return err
}
