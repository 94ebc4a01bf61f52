package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/voicekit/internal/buildinfo"
)

// Command creates a new command that prints version information.
func Command(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.String())
		},
	}
}
