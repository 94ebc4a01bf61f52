package voices

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/voicekit/internal/app"
	"github.com/tphakala/voicekit/internal/buildinfo"
	"github.com/tphakala/voicekit/internal/conf"
	"github.com/tphakala/voicekit/internal/voice"
)

// Command creates a new command that lists the synthesis voices for the
// configured language family.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List available synthesis voices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, build, func(ctx context.Context, rt *app.Runtime) error {
				if !rt.Manager.Capabilities().Synthesis {
					fmt.Fprintln(os.Stderr, "Speech synthesis is not available.")
					return nil
				}
				return writeVoices(os.Stdout, rt.Manager.ListVoices(ctx))
			})
		},
	}

	return cmd
}

func writeVoices(w io.Writer, list []voice.Voice) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No voices found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLANGUAGE\tGENDER\t")
	for _, v := range list {
		name := v.Name
		if v.Default {
			name += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", v.ID, name, v.Language, v.Gender)
	}
	return tw.Flush()
}
