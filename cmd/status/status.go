package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/voicekit/internal/app"
	"github.com/tphakala/voicekit/internal/buildinfo"
	"github.com/tphakala/voicekit/internal/conf"
	"github.com/tphakala/voicekit/internal/voice"
)

type report struct {
	Version    string                `json:"version"`
	Permission voice.PermissionState `json:"permission"`
	voice.Status
}

// Command creates a new command that prints the manager status as JSON.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print capability and permission status as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, build, func(ctx context.Context, rt *app.Runtime) error {
				r := report{
					Version:    build.Version(),
					Permission: voice.PermissionUnknown,
					Status:     rt.Manager.Status(),
				}
				if q := rt.Permissions(); q != nil {
					if state, err := q.Query(ctx); err == nil {
						r.Permission = state
					}
				}

				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(r); err != nil {
					return fmt.Errorf("error encoding status: %w", err)
				}
				return nil
			})
		},
	}

	return cmd
}
