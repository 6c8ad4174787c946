// Package config loads streamsnap settings from defaults, an optional YAML file and the environment.
// Command-line flags are layered on top by the cmd package.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultOutputDir matches the directory name the capture tool has always written to.
const DefaultOutputDir = "SKD"

// Config holds runtime configuration for one watch run. All values are immutable once the run starts.
type Config struct {
	// What to watch
	StreamRef string        `yaml:"stream" env:"STREAM"`
	Target    string        `yaml:"target" env:"TARGET"`
	Interval  time.Duration `yaml:"interval" env:"INTERVAL"`
	Threshold int           `yaml:"threshold" env:"THRESHOLD"`
	OutputDir string        `yaml:"output_dir" env:"OUTPUT_DIR"`

	// Stream resolution
	Resolver    string `yaml:"resolver" env:"RESOLVER"` // "ytdlp" or "direct"
	YtDlpBin    string `yaml:"ytdlp_bin" env:"YTDLP_BIN"`
	YtDlpFormat string `yaml:"ytdlp_format" env:"YTDLP_FORMAT"`

	// Decoding
	FFmpegBin   string        `yaml:"ffmpeg_bin" env:"FFMPEG_BIN"`
	DecodeFPS   float64       `yaml:"decode_fps" env:"DECODE_FPS"`
	Realtime    bool          `yaml:"realtime" env:"REALTIME"`
	OpenTimeout time.Duration `yaml:"open_timeout" env:"OPEN_TIMEOUT"`
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`

	// Read retry policy. Zero ceilings mean "retry forever".
	RetryDelay       time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"`
	RetryMaxAttempts uint          `yaml:"retry_max_attempts" env:"RETRY_MAX_ATTEMPTS"`
	RetryMaxElapsed  time.Duration `yaml:"retry_max_elapsed" env:"RETRY_MAX_ELAPSED"`

	// Recognition
	TesseractBin string        `yaml:"tesseract_bin" env:"TESSERACT_BIN"`
	OCRLang      string        `yaml:"ocr_lang" env:"OCR_LANG"`
	OCRPSM       int           `yaml:"ocr_psm" env:"OCR_PSM"`
	OCRTimeout   time.Duration `yaml:"ocr_timeout" env:"OCR_TIMEOUT"`
	OCRGrayscale bool          `yaml:"ocr_grayscale" env:"OCR_GRAYSCALE"`

	// Stop triggers and surfaces
	StopFile    string `yaml:"stop_file" env:"STOP_FILE"`
	StdinStop   bool   `yaml:"stdin_stop" env:"STDIN_STOP"`
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	Progress    bool   `yaml:"progress" env:"PROGRESS"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
}

// EnvPrefix is prepended to every env tag above.
const EnvPrefix = "STREAMSNAP_"

// Default returns a Config populated with standard defaults.
func Default() *Config {
	return &Config{
		Interval:     3 * time.Second,
		Threshold:    80,
		OutputDir:    DefaultOutputDir,
		Resolver:     "ytdlp",
		YtDlpBin:     "yt-dlp",
		YtDlpFormat:  "bestvideo",
		FFmpegBin:    "ffmpeg",
		OpenTimeout:  30 * time.Second,
		ReadTimeout:  5 * time.Second,
		RetryDelay:   time.Second,
		TesseractBin: "tesseract",
		OCRLang:      "eng",
		OCRPSM:       3,
		OCRTimeout:   30 * time.Second,
		OCRGrayscale: true,
		StdinStop:    true,
		Progress:     true,
		LogLevel:     "info",
		LogFormat:    "console",
	}
}

// Load reads configuration from the given YAML file path, then applies STREAMSNAP_* environment
// overrides. An empty path skips the file. A path that does not exist is an error only when
// required is true (the user named it explicitly).
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			dec := yaml.NewDecoder(bytes.NewReader(data))
			dec.KnownFields(true)
			if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err) && !required:
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the preconditions of a watch run.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.StreamRef) == "" {
		errs = append(errs, errors.New("stream reference is required"))
	}
	if strings.TrimSpace(c.Target) == "" {
		errs = append(errs, errors.New("target text is required"))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be > 0, got %s", c.Interval))
	}
	if c.Threshold < 0 || c.Threshold > 100 {
		errs = append(errs, fmt.Errorf("threshold must be between 0 and 100, got %d", c.Threshold))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	switch c.Resolver {
	case "ytdlp", "direct":
	default:
		errs = append(errs, fmt.Errorf("unknown resolver %q (use ytdlp or direct)", c.Resolver))
	}
	if c.RetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("retry delay must be > 0, got %s", c.RetryDelay))
	}
	if c.ReadTimeout <= 0 || c.OpenTimeout <= 0 {
		errs = append(errs, errors.New("open and read timeouts must be > 0"))
	}
	if c.DecodeFPS < 0 {
		errs = append(errs, fmt.Errorf("decode fps must be >= 0, got %g", c.DecodeFPS))
	}
	if c.StopFile != "" {
		// The watcher sits on the parent directory, which therefore has to exist up front
		dir := filepath.Dir(c.StopFile)
		if info, err := os.Stat(dir); err != nil {
			errs = append(errs, fmt.Errorf("stop file directory: %w", err))
		} else if !info.IsDir() {
			errs = append(errs, fmt.Errorf("stop file directory %s is not a directory", dir))
		}
	}
	errs = append(errs, c.ValidateLogging())
	return errors.Join(errs...)
}

// ValidateLogging checks the log settings. Every command runs it, not only watch.
func (c *Config) ValidateLogging() error {
	var errs []error
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil || c.LogLevel == "" {
		errs = append(errs, fmt.Errorf("unknown log level %q (use trace, debug, info, warn, error)", c.LogLevel))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q (use console or json)", c.LogFormat))
	}
	return errors.Join(errs...)
}
