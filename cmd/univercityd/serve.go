package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thinkofname/univercity-core/command"
	"github.com/thinkofname/univercity-core/console"
	"github.com/thinkofname/univercity-core/game"
	"github.com/thinkofname/univercity-core/ids"
	"github.com/thinkofname/univercity-core/room"
	"github.com/thinkofname/univercity-core/script"
	"github.com/thinkofname/univercity-core/univercity"
)

func newServeCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		configPath    = "univercity.toml"
		allowlistPath = "allowlist.toml"
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := cmdServe(configPath, allowlistPath, stdout, stderr); err != nil {
				fmt.Fprintf(stderr, "univercityd: %v\n", err)
				return errExit
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", configPath, "path to the server's TOML config file")
	cmd.Flags().StringVar(&allowlistPath, "allowlist", allowlistPath, "path to the allowlist TOML file")
	return cmd
}

func cmdServe(configPath, allowlistPath string, stdout, _ io.Writer) error {
	log := slog.New(slog.NewTextHandler(stdout, nil))

	cfg, err := univercity.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Log = log

	allowlist, err := univercity.LoadAllowlist(allowlistPath)
	if err != nil {
		return fmt.Errorf("load allowlist: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engine := script.NewEngine(func(name, hook string, err error) {
		log.Warn("script error", "script", name, "hook", hook, "err", err)
	})
	world := game.NewWorld(nil, map[ids.ResourceKey]room.Descriptor{}, engine)

	pipeline := command.NewServerPipeline(world)
	srv := univercity.New(cfg, pipeline, allowlist)
	srv.SetAccountManager(world)
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer srv.Close()

	go func() {
		if err := srv.Serve(ctx); err != nil {
			log.Error("server stopped", "err", err)
		}
	}()

	pathfinding := univercity.NewPathfindingPool(cfg.PathfindingWorkers)
	defer pathfinding.Wait()

	ticker := univercity.NewTicker(cfg.TickRate, log)
	go ticker.Run(func(tick uint64) {
		pathfinding.Drain()
		world.Controllers.ProcessQuitting()
	})
	defer ticker.Stop()

	registry := console.NewRegistry()
	console.RegisterBuiltins(registry, srv, allowlist)
	log.Info("server started", "name", cfg.Name, "address", cfg.Address)
	console.New(registry, log).Run(ctx)

	return nil
}
