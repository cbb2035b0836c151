package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/vacancy/display"
	"github.com/teranos/vacancy/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show vacancy version information",
	Long: `Display version, build time, commit hash, and platform information for the vacancy binary.

With --require the command exits non-zero unless the build satisfies the
given semantic version constraint, for use in deploy scripts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		require, _ := cmd.Flags().GetString("require")

		info := version.Get()

		if require != "" {
			ok, err := info.Satisfies(require)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("version %s does not satisfy %q", info.Version, require)
			}
		}

		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(cmd.OutOrStdout(), info)
		}
		fmt.Fprintln(cmd.OutOrStdout(), info.String())
		fmt.Fprintf(cmd.OutOrStdout(), "Platform: %s\n", info.Platform)
		fmt.Fprintf(cmd.OutOrStdout(), "Go: %s\n", info.GoVersion)
		return nil
	},
}

func init() {
	VersionCmd.Flags().String("require", "", "Fail unless the build satisfies this semver constraint (e.g. \">= 1.2\")")
}
