package speak

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/voicekit/internal/app"
	"github.com/tphakala/voicekit/internal/buildinfo"
	"github.com/tphakala/voicekit/internal/conf"
	"github.com/tphakala/voicekit/internal/voice"
)

type options struct {
	rate   float64
	pitch  float64
	volume float64
	voice  string
}

// Command creates a new command that speaks text through the synthesis
// engine.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "speak [text]",
		Short: "Speak text aloud",
		Long:  "Synthesize text and play it on the default output device. Text is read from stdin when no argument is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), settings, build, func(ctx context.Context, rt *app.Runtime) error {
				err := rt.Manager.Speak(ctx, text, opts.speakOptions())
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}

	setupFlags(cmd, opts)

	return cmd
}

func setupFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().Float64Var(&opts.rate, "rate", 1, "Speaking rate, 1 is normal")
	cmd.Flags().Float64Var(&opts.pitch, "pitch", 1, "Voice pitch, 1 is normal")
	cmd.Flags().Float64Var(&opts.volume, "volume", 1, "Playback volume between 0 and 1")
	cmd.Flags().StringVar(&opts.voice, "voice", "", "Voice ID (see the voices command)")
}

func (o *options) speakOptions() voice.SpeakOptions {
	volume := o.volume
	return voice.SpeakOptions{
		Rate:   o.rate,
		Pitch:  o.pitch,
		Volume: &volume,
		Voice:  o.voice,
	}
}

func inputText(args []string, stdin io.Reader) (string, error) {
	text := strings.Join(args, " ")
	if text == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("error reading text from stdin: %w", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		fmt.Fprintln(os.Stderr, "Nothing to say.")
		return "", fmt.Errorf("no text given")
	}
	return text, nil
}
