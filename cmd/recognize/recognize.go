package recognize

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/voicekit/internal/app"
	"github.com/tphakala/voicekit/internal/buildinfo"
	"github.com/tphakala/voicekit/internal/conf"
	"github.com/tphakala/voicekit/internal/voice"
)

type options struct {
	language     string
	continuous   bool
	interim      bool
	alternatives int
}

// Command creates a new command that transcribes microphone speech.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "recognize",
		Short: "Transcribe speech from the microphone",
		Long:  "Start a recognition session and print transcripts as they arrive. Single-shot sessions end after the first phrase; continuous sessions run until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, build, func(ctx context.Context, rt *app.Runtime) error {
				session, err := rt.Manager.StartRecognition(ctx, opts.recognitionOptions(cmd))
				if err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, "Listening. Press Ctrl+C to stop.")
				return printResults(ctx, session, os.Stdout)
			})
		},
	}

	setupFlags(cmd, opts, settings)

	return cmd
}

func setupFlags(cmd *cobra.Command, opts *options, settings *conf.Settings) {
	cmd.Flags().StringVar(&opts.language, "language", settings.Recognition.Language, "Recognition language as a BCP 47 tag")
	cmd.Flags().BoolVar(&opts.continuous, "continuous", settings.Recognition.Continuous, "Keep listening after the first phrase")
	cmd.Flags().BoolVar(&opts.interim, "interim", settings.Recognition.InterimResults, "Request interim results")
	cmd.Flags().IntVar(&opts.alternatives, "alternatives", 0, "Maximum transcript alternatives per result")
}

// recognitionOptions passes through only the flags the user set so that
// configured defaults apply otherwise.
func (o *options) recognitionOptions(cmd *cobra.Command) voice.RecognitionOptions {
	ro := voice.RecognitionOptions{MaxAlternatives: o.alternatives}
	if cmd.Flags().Changed("language") {
		ro.Language = o.language
	}
	if cmd.Flags().Changed("continuous") {
		ro.Continuous = voice.Bool(o.continuous)
	}
	if cmd.Flags().Changed("interim") {
		ro.InterimResults = voice.Bool(o.interim)
	}
	return ro
}

// printResults writes each result until the session ends. Canceling ctx
// stops the session, which still delivers its pending final result.
func printResults(ctx context.Context, session voice.RecognitionSession, w io.Writer) error {
	done := ctx.Done()
	for {
		select {
		case res, ok := <-session.Results():
			if !ok {
				<-session.Done()
				return session.Err()
			}
			writeResult(w, res)
		case <-done:
			session.Stop()
			done = nil
		}
	}
}

func writeResult(w io.Writer, res voice.RecognitionResult) {
	if len(res.Alternatives) == 0 {
		return
	}
	marker := ">"
	if !res.Final {
		marker = "~"
	}
	best := res.Alternatives[0]
	fmt.Fprintf(w, "%s %s (%.0f%%)\n", marker, best.Transcript, best.Confidence*100)
	for _, alt := range res.Alternatives[1:] {
		fmt.Fprintf(w, "    %s (%.0f%%)\n", alt.Transcript, alt.Confidence*100)
	}
}
