package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joelahtinen/blobarchive/internal/blobstore"
	"github.com/joelahtinen/blobarchive/internal/config"
	"github.com/joelahtinen/blobarchive/internal/localindex"
	"github.com/joelahtinen/blobarchive/internal/reconciler"
	"github.com/joelahtinen/blobarchive/internal/remoteindex"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagVerbose bool
	flagDebug   bool
	flagQuiet   bool
)

// newRootCmd builds the single root command: one positional argument, the
// config file path, defaulting to config.DefaultConfigPath. This program
// does exactly one thing, so the root command itself performs the run
// instead of dispatching to subcommands.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "azure-blob-backup [config-path]",
		Short: "Incremental, versioned, one-way backup to an Azure Blob container",
		Long: "azure-blob-backup mirrors a local directory tree into an Azure Blob " +
			"Storage container as flat, versioned objects, retaining daily, " +
			"weekly, and monthly snapshots and pruning everything else.",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runRoot,
	}

	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	return cmd
}

// runRoot loads configuration, builds the local and remote indexes, and
// runs one reconciliation pass.
func runRoot(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	logger.Info("starting", slog.String("version", version))

	confPath := config.DefaultConfigPath
	if len(args) == 1 {
		confPath = args[0]
	}

	cfg, err := config.Load(confPath, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := blobstore.NewAzureStore(cfg.SASURL, logger)
	if err != nil {
		return fmt.Errorf("connecting to container: %w", err)
	}

	logger.Info("indexing local tree", slog.String("root", cfg.LocalRoot))

	local, err := localindex.Build(cfg.LocalRoot)
	if err != nil {
		return fmt.Errorf("indexing local tree: %w", err)
	}

	logger.Info("listing remote container")

	remote, err := remoteindex.Build(ctx, store)
	if err != nil {
		return fmt.Errorf("listing remote container: %w", err)
	}

	policy := reconciler.Policy{
		MinUpdateAge: cfg.MinUpdateAge,
		NumDaily:     cfg.NumDaily,
		NumWeekly:    cfg.NumWeekly,
		NumMonthly:   cfg.NumMonthly,
	}

	if err := reconciler.Reconcile(ctx, cfg.LocalRoot, local, remote, store, policy, time.Now().Unix(), logger); err != nil {
		return fmt.Errorf("reconciling: %w", err)
	}

	logger.Info("done")

	return nil
}

// buildLogger creates an slog.Logger whose level is selected by the
// mutually-exclusive -v/--debug/-q flags.
func buildLogger() *slog.Logger {
	level := slog.LevelWarn

	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	case flagQuiet:
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
