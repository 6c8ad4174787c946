package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/andresmejia3/streamsnap/internal/config"
	"github.com/andresmejia3/streamsnap/internal/log"
)

var (
	// cfg is the effective configuration shared by subcommands, loaded in PersistentPreRunE
	cfg *config.Config
	// flagCfg receives flag values. Only flags the user actually set are copied onto cfg.
	flagCfg    = config.Default()
	configPath string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "streamsnap",
	Short:   "Live-stream text watcher that saves a screenshot whenever a phrase appears",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		applyFlags(cmd.Flags(), loaded, flagCfg)
		if err := loaded.ValidateLogging(); err != nil {
			return err
		}
		cfg = loaded

		log.Configure(log.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
		return nil
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// After the first signal restore default handling, so a second Ctrl+C kills a stuck run
	go func() {
		<-ctx.Done()
		stop()
	}()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "streamsnap.yaml", "YAML config file (optional unless set explicitly)")
	rootCmd.PersistentFlags().StringVar(&flagCfg.LogLevel, "log-level", flagCfg.LogLevel, "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagCfg.LogFormat, "log-format", flagCfg.LogFormat, "Log format (console or json)")
	rootCmd.PersistentFlags().StringVarP(&flagCfg.OutputDir, "output", "o", flagCfg.OutputDir, "Directory captures are written to")
}

// flagFields maps a flag name to the config field it overrides.
var flagFields = map[string]func(dst, src *config.Config){
	"log-level":          func(d, s *config.Config) { d.LogLevel = s.LogLevel },
	"log-format":         func(d, s *config.Config) { d.LogFormat = s.LogFormat },
	"output":             func(d, s *config.Config) { d.OutputDir = s.OutputDir },
	"stream":             func(d, s *config.Config) { d.StreamRef = s.StreamRef },
	"target":             func(d, s *config.Config) { d.Target = s.Target },
	"interval":           func(d, s *config.Config) { d.Interval = s.Interval },
	"threshold":          func(d, s *config.Config) { d.Threshold = s.Threshold },
	"resolver":           func(d, s *config.Config) { d.Resolver = s.Resolver },
	"ytdlp-bin":          func(d, s *config.Config) { d.YtDlpBin = s.YtDlpBin },
	"format":             func(d, s *config.Config) { d.YtDlpFormat = s.YtDlpFormat },
	"ffmpeg-bin":         func(d, s *config.Config) { d.FFmpegBin = s.FFmpegBin },
	"fps":                func(d, s *config.Config) { d.DecodeFPS = s.DecodeFPS },
	"realtime":           func(d, s *config.Config) { d.Realtime = s.Realtime },
	"open-timeout":       func(d, s *config.Config) { d.OpenTimeout = s.OpenTimeout },
	"read-timeout":       func(d, s *config.Config) { d.ReadTimeout = s.ReadTimeout },
	"retry-delay":        func(d, s *config.Config) { d.RetryDelay = s.RetryDelay },
	"retry-max-attempts": func(d, s *config.Config) { d.RetryMaxAttempts = s.RetryMaxAttempts },
	"retry-max-elapsed":  func(d, s *config.Config) { d.RetryMaxElapsed = s.RetryMaxElapsed },
	"tesseract-bin":      func(d, s *config.Config) { d.TesseractBin = s.TesseractBin },
	"lang":               func(d, s *config.Config) { d.OCRLang = s.OCRLang },
	"psm":                func(d, s *config.Config) { d.OCRPSM = s.OCRPSM },
	"ocr-timeout":        func(d, s *config.Config) { d.OCRTimeout = s.OCRTimeout },
	"grayscale":          func(d, s *config.Config) { d.OCRGrayscale = s.OCRGrayscale },
	"stop-file":          func(d, s *config.Config) { d.StopFile = s.StopFile },
	"stdin-stop":         func(d, s *config.Config) { d.StdinStop = s.StdinStop },
	"metrics-addr":       func(d, s *config.Config) { d.MetricsAddr = s.MetricsAddr },
	"progress":           func(d, s *config.Config) { d.Progress = s.Progress },
}

// applyFlags copies every explicitly set flag from src onto dst, so flags beat the file and env
// but unset flags never clobber them with defaults.
func applyFlags(fs *pflag.FlagSet, dst, src *config.Config) {
	fs.Visit(func(f *pflag.Flag) {
		if set, ok := flagFields[f.Name]; ok {
			set(dst, src)
		}
	})
}
