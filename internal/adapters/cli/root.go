package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/annual-report-rag/internal/config"
	"github.com/kirillkom/annual-report-rag/internal/core/domain"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "finrag",
	Short: "Answer typed questions about annual-report PDFs",
	Long: `finrag ingests annual-report PDFs, builds a vector index over their pages
and answers typed questions with page references.

The usual sequence is:
  finrag setup
  finrag ingest
  finrag build-index
  finrag run-inference`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		if configFile != "" {
			return os.Setenv(config.ConfigFileEnv, configFile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML file with configuration defaults")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	rootCmd.PrintErrln("Error:", err)
	if errors.Is(err, domain.ErrArtifactMissing) {
		return 2
	}
	return 1
}
