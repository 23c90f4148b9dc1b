// Package commands implements the tablequery CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Usantos1/primecamp-ofc-sub009/cli/internal/config"
	"github.com/Usantos1/primecamp-ofc-sub009/cli/internal/ui"
	"github.com/Usantos1/primecamp-ofc-sub009/cli/internal/version"
	"github.com/Usantos1/primecamp-ofc-sub009/internal/debug"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	remote     string
	apiKey     string
}

// NewRootCommand builds the tablequery command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "tablequery",
		Short:         "Query database tables through a PostgREST-style builder",
		Long:          "tablequery serves tables over HTTP and queries them from the terminal, locally or through a running endpoint.",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default .tablequery.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&flags.remote, "remote", "", "table endpoint URL; queries go over HTTP instead of the database")
	pf.StringVar(&flags.apiKey, "api-key", "", "API key for --remote")

	root.AddCommand(
		NewServeCommand(flags),
		NewQueryCommand(flags),
		NewExplainCommand(flags),
		NewRPCCommand(flags),
		NewTablesCommand(flags),
		NewInitCommand(),
		NewVersionCommand(),
	)
	return root
}

// Execute is the main entry point for the CLI
func Execute() error {
	err := NewRootCommand().Execute()
	if err != nil {
		ui.PrintError("%v", err)
	}
	return err
}

// load reads the configuration and applies flag overrides and logging.
func (f *globalFlags) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.remote != "" {
		cfg.Remote.URL = f.remote
	}
	if f.apiKey != "" {
		cfg.Remote.APIKey = f.apiKey
	}
	debug.Configure(debug.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})
	if cfg.File != "" {
		debug.Debug("config loaded", "file", cfg.File)
	}
	return cfg, nil
}

func requireArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("usage: %s %s", cmd.CommandPath(), usage)
		}
		return nil
	}
}
