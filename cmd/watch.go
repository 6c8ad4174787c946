package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/andresmejia3/streamsnap/internal/capture"
	"github.com/andresmejia3/streamsnap/internal/config"
	"github.com/andresmejia3/streamsnap/internal/log"
	"github.com/andresmejia3/streamsnap/internal/match"
	"github.com/andresmejia3/streamsnap/internal/metrics"
	"github.com/andresmejia3/streamsnap/internal/ocr"
	"github.com/andresmejia3/streamsnap/internal/resolver"
	"github.com/andresmejia3/streamsnap/internal/source"
	"github.com/andresmejia3/streamsnap/internal/stop"
	"github.com/andresmejia3/streamsnap/internal/store"
	"github.com/andresmejia3/streamsnap/internal/utils"
)

var watchCmd = &cobra.Command{
	Use:   "watch [stream]",
	Short: "Watch a live stream and save a screenshot whenever the target text appears",
	Long: `Resolves the stream, decodes it with ffmpeg and runs OCR on one frame per interval.
A frame is saved as screenshot_<N>.jpg when its text matches the target at or above the
threshold and differs from the last saved text. Stop with Ctrl+C, by typing "stop", or by
creating the --stop-file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if len(args) == 1 {
			cfg.StreamRef = args[0]
		}
		return runWatch(cmd.Context(), cfg)
	},
}

func init() {
	f := watchCmd.Flags()
	f.StringVarP(&flagCfg.StreamRef, "stream", "s", "", "Stream page URL or direct media URL")
	f.StringVarP(&flagCfg.Target, "target", "t", "", "Text to look for")
	f.DurationVarP(&flagCfg.Interval, "interval", "i", flagCfg.Interval, "Minimum time between evaluated frames")
	f.IntVar(&flagCfg.Threshold, "threshold", flagCfg.Threshold, "Minimum partial-ratio score (0-100) for a match, inclusive")
	f.StringVar(&flagCfg.Resolver, "resolver", flagCfg.Resolver, "How to turn the stream reference into a media URL (ytdlp or direct)")
	f.StringVar(&flagCfg.YtDlpBin, "ytdlp-bin", flagCfg.YtDlpBin, "yt-dlp executable")
	f.StringVar(&flagCfg.YtDlpFormat, "format", flagCfg.YtDlpFormat, "yt-dlp format selector")
	f.StringVar(&flagCfg.FFmpegBin, "ffmpeg-bin", flagCfg.FFmpegBin, "ffmpeg executable")
	f.Float64Var(&flagCfg.DecodeFPS, "fps", flagCfg.DecodeFPS, "Cap the decode rate (0 keeps the native rate)")
	f.BoolVar(&flagCfg.Realtime, "realtime", flagCfg.Realtime, "Read file inputs at native speed")
	f.DurationVar(&flagCfg.OpenTimeout, "open-timeout", flagCfg.OpenTimeout, "How long to wait for the first frame")
	f.DurationVar(&flagCfg.ReadTimeout, "read-timeout", flagCfg.ReadTimeout, "How long one frame read may stall before retrying")
	f.DurationVar(&flagCfg.RetryDelay, "retry-delay", flagCfg.RetryDelay, "Wait between frame read retries")
	f.UintVar(&flagCfg.RetryMaxAttempts, "retry-max-attempts", flagCfg.RetryMaxAttempts, "Give up after this many consecutive failed reads (0 = never)")
	f.DurationVar(&flagCfg.RetryMaxElapsed, "retry-max-elapsed", flagCfg.RetryMaxElapsed, "Give up after reads have failed for this long (0 = never)")
	addOCRFlags(f)
	f.StringVar(&flagCfg.StopFile, "stop-file", flagCfg.StopFile, "Stop when this file is created")
	f.BoolVar(&flagCfg.StdinStop, "stdin-stop", flagCfg.StdinStop, "Accept stop commands (s, stop, q, quit) on stdin")
	f.StringVar(&flagCfg.MetricsAddr, "metrics-addr", flagCfg.MetricsAddr, "Serve /metrics and /healthz on this address")
	f.BoolVar(&flagCfg.Progress, "progress", flagCfg.Progress, "Show a progress spinner")

	rootCmd.AddCommand(watchCmd)
}

// runWatch orchestrates a capture run: output checks, stream resolution, decoder startup, stop
// triggers and the capture loop itself.
func runWatch(ctx context.Context, c *config.Config) error {
	if err := c.Validate(); err != nil {
		utils.ShowError("Invalid configuration", err, nil)
		return err
	}

	st, err := store.New(c.OutputDir)
	if err != nil {
		utils.ShowError("Cannot prepare output directory", err, nil)
		return err
	}
	existing, err := st.Count()
	if err != nil {
		utils.ShowError("Cannot read output directory", err, nil)
		return err
	}
	if existing > 0 {
		err := fmt.Errorf("%w: %s already holds %d captures (run `streamsnap reset` or pick another --output)",
			store.ErrCaptureExists, st.Dir(), existing)
		utils.ShowError("Output directory is not empty", err, nil)
		return err
	}

	runID := uuid.NewString()
	logger := log.WithComponent("watch").With().Str("run_id", runID).Logger()

	if c.MetricsAddr != "" {
		srv, err := metrics.StartServer(c.MetricsAddr, logger)
		if err != nil {
			utils.ShowError("Failed to start metrics server", err, nil)
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	res, err := resolver.New(c.Resolver, c.YtDlpBin, c.YtDlpFormat)
	if err != nil {
		utils.ShowError("Invalid resolver", err, nil)
		return err
	}
	fmt.Fprintf(os.Stderr, "🔗 Resolving %s...\n", c.StreamRef)
	url, err := res.Resolve(ctx, c.StreamRef)
	if err != nil {
		utils.ShowError("Failed to resolve stream", err, nil)
		return err
	}
	logger.Debug().Str("url", url).Msg("stream resolved")

	fmt.Fprintln(os.Stderr, "📼 Opening stream...")
	src, err := source.Open(ctx, url, source.Config{
		Bin:         c.FFmpegBin,
		FPS:         c.DecodeFPS,
		Realtime:    c.Realtime,
		OpenTimeout: c.OpenTimeout,
		ReadTimeout: c.ReadTimeout,
		Logger:      log.WithComponent("source").With().Str("run_id", runID).Logger(),
	})
	if err != nil {
		utils.ShowError("Failed to open stream", err, nil)
		return err
	}

	flag := stop.New()
	loop := &capture.Loop{
		Detector: &ocr.Recognizer{
			Engine: newTesseract(c),
			Logger: log.WithComponent("ocr").With().Str("run_id", runID).Logger(),
		},
		Scorer: match.Partial,
		Store:  st,
		Stop:   flag,
		Retry: capture.RetryPolicy{
			Delay:       c.RetryDelay,
			MaxAttempts: c.RetryMaxAttempts,
			MaxElapsed:  c.RetryMaxElapsed,
		},
		Logger: logger,
	}

	var bar *progressbar.ProgressBar
	if c.Progress {
		bar = newSpinner(c.Target)
		loop.Progress = spinner{bar: bar, target: c.Target}
	}

	// The loop runs detached from the signal context: a signal sets the stop flag and the current
	// tick finishes instead of having its ffmpeg and tesseract children killed underneath it.
	base := context.WithoutCancel(ctx)
	triggerCtx, cancelTriggers := context.WithCancel(base)
	defer cancelTriggers()

	triggers := startTriggers(triggerCtx, ctx, c, os.Stdin, flag, logger)

	logger.Info().
		Str("target", c.Target).
		Dur("interval", c.Interval).
		Int("threshold", c.Threshold).
		Str("output", st.Dir()).
		Msg("capture started")

	result, runErr := loop.Run(base, src, capture.Options{
		Target:    c.Target,
		Interval:  c.Interval,
		Threshold: c.Threshold,
	})

	cancelTriggers()
	_ = triggers.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	printSummary(result, st.Dir())

	if runErr != nil {
		utils.ShowError(failureContext(runErr), runErr, nil)
		return runErr
	}
	return nil
}

// startTriggers runs every configured stop trigger until ctx ends. Triggers are independent: one
// that fails is logged when it fails and the others keep running.
func startTriggers(ctx, signalCtx context.Context, c *config.Config, stdin io.Reader, flag *stop.Flag, logger zerolog.Logger) *errgroup.Group {
	g := &errgroup.Group{}
	run := func(name string, trigger func() error) {
		g.Go(func() error {
			if err := trigger(); err != nil {
				logger.Warn().Err(err).Str("trigger", name).Msg("stop trigger failed, the remaining triggers stay active")
			}
			return nil
		})
	}

	run("signal", func() error { return stop.WhenDone(ctx, signalCtx, flag, "signal") })
	if c.StdinStop {
		run("stdin", func() error { return stop.WatchReader(ctx, stdin, flag, logger) })
	}
	if c.StopFile != "" {
		run("stop-file", func() error { return stop.WatchFile(ctx, c.StopFile, flag, logger) })
	}
	return g
}

func failureContext(err error) string {
	switch {
	case errors.Is(err, capture.ErrRetriesExhausted):
		return "Stream stalled and retries are exhausted"
	case errors.Is(err, source.ErrSourceGone):
		return "Stream ended or decoder exited"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Capture cancelled"
	default:
		return "Capture failed"
	}
}

func newTesseract(c *config.Config) *ocr.Tesseract {
	return &ocr.Tesseract{
		Bin:       c.TesseractBin,
		Lang:      c.OCRLang,
		PSM:       c.OCRPSM,
		Timeout:   c.OCRTimeout,
		Grayscale: c.OCRGrayscale,
	}
}

func newSpinner(target string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(fmt.Sprintf("📡 Watching for %q", target)),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
	)
}

// spinner reports loop progress on a progressbar spinner, one step per tick.
type spinner struct {
	bar    *progressbar.ProgressBar
	target string
}

func (s spinner) Tick(r capture.Result) {
	s.bar.Describe(fmt.Sprintf("📡 Watching for %q (%d saved)", s.target, r.Saved))
	_ = s.bar.Add(1)
}

func printSummary(r capture.Result, dir string) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "📊 CAPTURE SUMMARY (%s)\n", r.State)
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🎞️  Frames pulled:     %d\n", r.Ticks)
	fmt.Fprintf(os.Stderr, "🔍 Frames evaluated:  %d\n", r.Evaluated)
	fmt.Fprintf(os.Stderr, "📸 Screenshots saved: %d (in %s)\n", r.Saved, dir)
	if r.LastSavedText != "" {
		fmt.Fprintf(os.Stderr, "📝 Last saved text:   %q\n", r.LastSavedText)
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}
