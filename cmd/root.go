package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zalepa/metas/metas"
)

// app carries state shared by all subcommands.
type app struct {
	verbose      bool
	registryPath string
	logger       *zap.Logger
	runID        string
}

// NewRootCmd builds the metas command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "metas",
		Short: "Compute judicial performance indices (Metas) per court",
		Long: `metas aggregates court case-count exports and evaluates each court's
branch-specific Metas formulas, producing a summary table with one row per
court.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger != nil {
				return nil
			}
			config := zap.NewProductionConfig()
			if a.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.runID = uuid.NewString()
			a.logger = logger.With(zap.String("run_id", a.runID))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.registryPath, "registry", "", "formula registry YAML (default: embedded table)")

	root.AddCommand(
		newRunCmd(a),
		newConsolidateCmd(a),
		newRegistryCmd(a),
		newVizCmd(a),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) loadRegistry() (*metas.Registry, error) {
	if a.registryPath == "" {
		return metas.DefaultRegistry()
	}
	return metas.LoadRegistry(a.registryPath)
}

func (a *app) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

// parseSep turns a separator flag into a rune. "tab" and `\t` are accepted
// for tab-separated files.
func parseSep(s string) (rune, error) {
	switch s {
	case "tab", `\t`:
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, fmt.Errorf("invalid separator %q", s)
	}
	return r[0], nil
}
