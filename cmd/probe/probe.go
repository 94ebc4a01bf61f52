package probe

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tphakala/voicekit/internal/app"
	"github.com/tphakala/voicekit/internal/buildinfo"
	"github.com/tphakala/voicekit/internal/conf"
)

// Command creates a new command that reports available capabilities and
// capture devices.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Report microphone, recognition and synthesis availability",
		Long:  "Detect which capabilities this environment offers and list capture devices. Nothing is opened and no permission prompt is triggered.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, build, func(ctx context.Context, rt *app.Runtime) error {
				caps := rt.Manager.Capabilities()
				fmt.Printf("Capture:     %s\n", yesNo(caps.Capture))
				fmt.Printf("Recognition: %s\n", yesNo(caps.Recognition))
				fmt.Printf("Synthesis:   %s\n", yesNo(caps.Synthesis))

				if !caps.Capture {
					return nil
				}

				devices, err := rt.Capture.Devices()
				if err != nil {
					fmt.Fprintf(os.Stderr, "Could not list capture devices: %v\n", err)
					return nil
				}

				fmt.Println("Available Capture Sources:")
				for _, d := range devices {
					output := fmt.Sprintf("  %d: %s", d.Index, d.Name)
					if runtime.GOOS == "linux" {
						output = fmt.Sprintf("%s, %s", output, d.ID)
					}
					if d.IsDefault {
						output += " (default)"
					}
					fmt.Println(output)
				}
				return nil
			})
		},
	}

	return cmd
}

func yesNo(b bool) string {
	if b {
		return "available"
	}
	return "unavailable"
}
