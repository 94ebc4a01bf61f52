package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/voicekit/cmd/config"
	"github.com/tphakala/voicekit/cmd/listen"
	"github.com/tphakala/voicekit/cmd/probe"
	"github.com/tphakala/voicekit/cmd/recognize"
	"github.com/tphakala/voicekit/cmd/speak"
	"github.com/tphakala/voicekit/cmd/status"
	"github.com/tphakala/voicekit/cmd/version"
	"github.com/tphakala/voicekit/cmd/voices"
	"github.com/tphakala/voicekit/internal/buildinfo"
	"github.com/tphakala/voicekit/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "voicekit",
		Short:        "Microphone, speech recognition and speech synthesis toolkit",
		SilenceUsage: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	subcommands := []*cobra.Command{
		probe.Command(settings, build),
		status.Command(settings, build),
		listen.Command(settings, build),
		speak.Command(settings, build),
		recognize.Command(settings, build),
		voices.Command(settings, build),
		config.Command(settings),
		version.Command(build),
	}

	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Flags were written into settings directly; revalidate the result.
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Capture.Device, "device", viper.GetString("capture.device"), "Capture device name or ID (\"sysdefault\", \"USB Audio\", \"hw:1,0\", etc.)")
	rootCmd.PersistentFlags().StringVar(&settings.Capture.Backend, "backend", viper.GetString("capture.backend"), "Audio backend (auto, alsa, pulseaudio, wasapi, coreaudio, null)")
	rootCmd.PersistentFlags().StringVar(&settings.Capture.Permission, "permission", viper.GetString("capture.permission"), "Microphone permission override (auto, granted, denied, prompt)")
	rootCmd.PersistentFlags().StringVar(&settings.Telemetry.MetricsListen, "metrics-listen", viper.GetString("telemetry.metricslisten"), "Serve Prometheus metrics on this address")

	if err := bindFlags(rootCmd, map[string]string{
		"debug":          "debug",
		"device":         "capture.device",
		"backend":        "capture.backend",
		"permission":     "capture.permission",
		"metrics-listen": "telemetry.metricslisten",
	}); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}
