package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/vacancy/cmd/vacancy/commands"
	"github.com/teranos/vacancy/logger"
)

var rootCmd = &cobra.Command{
	Use:   "vacancy",
	Short: "vacancy - job board lifecycle service",
	Long: `vacancy - a job board with paid listings.

Companies publish job posts that go live once the payment gateway confirms
checkout and expire automatically at the end of the paid period. Job seekers
save posts and apply; companies review their applicants.

Available commands:
  am      - Manage configuration ("I am")
  db      - Migrate the database and show statistics
  pulse   - Inspect and run scheduled listing tasks
  server  - Start the HTTP API
  version - Show build information

Examples:
  vacancy am show          # Show current configuration
  vacancy server -v        # Start the API with info logging
  vacancy pulse ls         # Pending expirations and sweeps
  vacancy db stats         # Row counts by lifecycle state`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		logger.SetVerbosity(verbosity)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output results as JSON")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.PulseCmd)
	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
