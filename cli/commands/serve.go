package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Usantos1/primecamp-ofc-sub009/cli/internal/config"
	"github.com/Usantos1/primecamp-ofc-sub009/cli/internal/ui"
	"github.com/Usantos1/primecamp-ofc-sub009/internal/debug"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/client"
	"github.com/Usantos1/primecamp-ofc-sub009/server"
	"github.com/Usantos1/primecamp-ofc-sub009/telemetry"
)

// NewServeCommand creates the serve command.
func NewServeCommand(flags *globalFlags) *cobra.Command {
	var (
		addr  string
		allow string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the table endpoint",
		Long:  "Serve /tables/{table}, /rpc/{name}, /healthz and /metrics over HTTP for the configured database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if allow != "" {
				cfg.Server.AllowList = allow
			}
			if cmd.Flags().Changed("watch") {
				cfg.Server.WatchAllowList = watch
			}
			if cfg.Remote.URL != "" {
				return fmt.Errorf("serve needs a database, not --remote")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :3000)")
	cmd.Flags().StringVar(&allow, "allow-list", "", "allow-list YAML file")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the allow-list when it changes")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	collector := telemetry.NewCollector(
		telemetry.WithVersion(client.Version),
		telemetry.WithExport(cfg.Telemetry.Endpoint, cfg.Telemetry.Interval),
	)
	collector.Start()
	defer collector.Close()

	spinner, _ := ui.PrintSpinner("Connecting to " + providerFor(cfg))
	retry := cfg.Retry
	c, err := client.Connect(ctx, client.Config{
		Provider: providerFor(cfg),
		URL:      cfg.Database.URL,
		Pool:     cfg.Pool,
		Retry:    &retry,
		Metrics:  collector,
	})
	if err != nil {
		if spinner != nil {
			spinner.Fail(err.Error())
		}
		return err
	}
	defer c.Close()
	if spinner != nil {
		spinner.Success("Connected")
	}

	var allowList *server.AllowList
	if cfg.Server.AllowList != "" {
		allowList, err = server.LoadAllowList(cfg.Server.AllowList)
		if err != nil {
			return err
		}
		defer allowList.Close()
		if cfg.Server.WatchAllowList {
			if err := allowList.Watch(); err != nil {
				return fmt.Errorf("watch allow-list: %w", err)
			}
		}
	}

	var auth server.Authenticator
	if len(cfg.Server.APIKeys) > 0 {
		auth = server.NewAPIKeys(cfg.Server.APIKeys...)
	} else {
		debug.Warn("no api keys configured, requests are anonymous")
	}

	srv, err := server.New(server.Config{
		Addr:             cfg.Server.Addr,
		Backend:          c.Service(),
		AllowList:        allowList,
		Auth:             auth,
		Pool:             c.Pool(),
		Telemetry:        collector,
		MinClientVersion: cfg.Server.MinClientVersion,
		MaxBodyBytes:     cfg.Server.MaxBodyBytes,
		CacheSize:        cfg.Server.CacheSize,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	ui.PrintSuccess("Serving tables on %s", cfg.Server.Addr)
	return srv.ListenAndServe(ctx)
}
