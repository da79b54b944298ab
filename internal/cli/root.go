// Package cli implements the procurectl command tree.
package cli

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/procurement-intake/internal/bootstrap"
	"github.com/joseph-ayodele/procurement-intake/internal/common"
)

var (
	version  = "dev"
	logLevel string
	logger   = slog.Default()
)

// newApp builds the pipelines from the environment. Tests replace it.
var newApp = func(ctx context.Context, logger *slog.Logger) (*bootstrap.App, error) {
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, logger)
}

var rootCmd = &cobra.Command{
	Use:           "procurectl",
	Short:         "Extract procurement documents and classify requests",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: bootstrap.ParseLevel(logLevel),
		}))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("procurectl version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd)
}

// ExecuteContext runs the command tree.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}
