package listen

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/tphakala/voicekit/internal/app"
	"github.com/tphakala/voicekit/internal/audiograph"
	"github.com/tphakala/voicekit/internal/buildinfo"
	"github.com/tphakala/voicekit/internal/conf"
	"github.com/tphakala/voicekit/internal/voice"
)

const meterWidth = 40

type options struct {
	interval time.Duration
	duration time.Duration
}

// Command creates a new command that acquires the microphone and prints a
// live level meter.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Acquire the microphone and show a live level meter",
		Long:  "Request microphone access, attach an analyser to the stream and print the input level and dominant frequency until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, build, func(ctx context.Context, rt *app.Runtime) error {
				return listen(ctx, rt, opts)
			})
		},
	}

	if err := setupFlags(cmd, opts); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, opts *options) error {
	cmd.Flags().DurationVar(&opts.interval, "interval", 100*time.Millisecond, "Meter refresh interval")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Stop after this long (0 runs until interrupted)")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

func listen(ctx context.Context, rt *app.Runtime, opts *options) error {
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	outcome := rt.Manager.AcquireCapture(ctx, voice.CaptureConfig{})
	if !outcome.Granted() {
		d := outcome.Denial
		fmt.Fprintf(os.Stderr, "Microphone unavailable: %s\n", d.Message)
		if d.Guidance != "" {
			fmt.Fprintf(os.Stderr, "%s\n", d.Guidance)
		}
		return d
	}

	graph, err := rt.Manager.BuildAnalysisGraph(outcome.Handle)
	if err != nil {
		return err
	}

	format := outcome.Handle.Format()
	fmt.Printf("Listening on %s at %d Hz, %d channel(s). Press Ctrl+C to stop.\n",
		trackLabel(outcome.Handle), format.SampleRate, format.Channels)

	limiter := rate.NewLimiter(rate.Every(opts.interval), 1)
	bins := make([]byte, graph.Analyser.FrequencyBinCount())

	for {
		// Wait only fails once ctx is done or its deadline is too close.
		if err := limiter.Wait(ctx); err != nil {
			fmt.Println()
			return nil
		}
		if !graph.Valid() {
			fmt.Println()
			return fmt.Errorf("capture stream ended")
		}

		level := graph.Analyser.Level()
		graph.Analyser.ByteFrequencyData(bins)
		fmt.Printf("\r%s %3d%% peak %6.0f Hz%s", meter(level), level.Level,
			peakFrequency(bins, graph.Context.SampleRate(), graph.Analyser.FFTSize()), clipMark(level))
	}
}

func trackLabel(h *voice.CaptureHandle) string {
	for _, t := range h.Tracks() {
		if t.Label() != "" {
			return t.Label()
		}
	}
	return h.ID()
}

func meter(l audiograph.Level) string {
	filled := l.Level * meterWidth / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", meterWidth-filled) + "]"
}

func clipMark(l audiograph.Level) string {
	if l.Clipping {
		return " CLIP"
	}
	return "     "
}

// peakFrequency returns the centre frequency of the loudest bin, skipping DC.
func peakFrequency(bins []byte, sampleRate, fftSize int) float64 {
	if fftSize == 0 || len(bins) < 2 {
		return 0
	}
	peak := 1
	for i := 2; i < len(bins); i++ {
		if bins[i] > bins[peak] {
			peak = i
		}
	}
	if bins[peak] == 0 {
		return 0
	}
	return float64(peak) * float64(sampleRate) / float64(fftSize)
}
