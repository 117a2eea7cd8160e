package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tap_talos/internal/app"
	"tap_talos/internal/tap"

	"github.com/spf13/cobra"
)

type options struct {
	configPath  string
	statePath   string
	catalogPath string
	schemaPath  string
	discover    bool
	about       bool
	format      string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		slog.Error("Tap failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   tap.Name,
		Short: "Singer tap for the Talos trading API",
		Long: `Extracts Talos account balances and writes them to stdout as Singer messages.

Run with --discover to print the catalog, or with --about to print the tap's
capabilities and settings. Logs go to stderr.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (JSON)")
	flags.StringVar(&opts.statePath, "state", "", "State file to resume from")
	flags.StringVar(&opts.catalogPath, "catalog", "", "Catalog file selecting streams and fields")
	flags.StringVar(&opts.catalogPath, "properties", "", "Legacy alias of --catalog")
	flags.StringVar(&opts.schemaPath, "schema", "", "Override the bundled balances JSON schema")
	flags.BoolVar(&opts.discover, "discover", false, "Print the catalog and exit")
	flags.BoolVar(&opts.about, "about", false, "Print tap metadata and exit")
	flags.StringVar(&opts.format, "format", "json", "Output format for --about (json|markdown)")
	cmd.MarkFlagsMutuallyExclusive("catalog", "properties")
	cmd.MarkFlagsMutuallyExclusive("discover", "about")

	return cmd
}

func run(cmd *cobra.Command, opts options) error {
	out := cmd.OutOrStdout()

	if opts.about {
		return tap.WriteAbout(out, opts.format)
	}

	bootstrap := app.NewBootstrap(out)
	defer bootstrap.Close()

	if err := bootstrap.Initialize(opts.configPath, opts.schemaPath); err != nil {
		return err
	}

	if opts.discover {
		return bootstrap.Discover(out)
	}
	return bootstrap.Sync(cmd.Context(), opts.catalogPath, opts.statePath)
}
