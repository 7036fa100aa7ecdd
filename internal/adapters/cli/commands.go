package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create data directories and pull the configured models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := openRuntime(cmd.Context(), runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.Setup(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "setup complete")
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Extract, chunk and store every PDF in PDF_DIR",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := openRuntime(cmd.Context(), runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()

		n, err := rt.Ingest(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ingested %d chunks\n", n)
		return nil
	},
}

var buildIndexCmd = &cobra.Command{
	Use:   "build-index",
	Short: "Embed stored chunks into the vector index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := openRuntime(cmd.Context(), runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()

		n, err := rt.BuildIndex(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d chunks\n", n)
		return nil
	},
}

var runInferenceCmd = &cobra.Command{
	Use:   "run-inference",
	Short: "Answer the questions file and write the submission",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := openRuntime(cmd.Context(), runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()

		report, err := rt.RunInference(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "answered %d/%d questions (%d N/A) in %s, saved %s\n",
			report.Answered, report.Questions, report.NotAvailable,
			report.Duration.Round(time.Second), report.OutputKey)
		if report.UploadResponse != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "submission response: %s\n", report.UploadResponse)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the answer pipeline over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		port, err := cmd.Flags().GetString("port")
		if err != nil {
			return fmt.Errorf("getting port flag: %w", err)
		}
		rt, err := openRuntime(cmd.Context(), runtimeOptions{skipMetricsServer: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		return rt.Serve(cmd.Context(), port)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the answer pipeline as MCP tools over stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout exposing the
answer_question and list_companies tools. Logs are written to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := openRuntime(cmd.Context(), runtimeOptions{logToStderr: true})
		if err != nil {
			return err
		}
		defer rt.Close()

		return rt.ServeMCP(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "finrag version %s\n", version)
	},
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "HTTP port (defaults to API_PORT)")
	rootCmd.AddCommand(setupCmd, ingestCmd, buildIndexCmd, runInferenceCmd, serveCmd, mcpCmd, versionCmd)
}
