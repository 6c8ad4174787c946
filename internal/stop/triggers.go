package stop

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Each trigger blocks until it either sets the flag or ctx ends, then returns.
// They are meant to run as errgroup members next to the capture loop.

// WhenDone sets the flag when trigger is cancelled (e.g. a signal.NotifyContext context).
func WhenDone(ctx, trigger context.Context, f *Flag, reason string) error {
	select {
	case <-trigger.Done():
		f.Set(reason)
	case <-ctx.Done():
	case <-f.Done():
	}
	return nil
}

// stopWords are the operator commands accepted on the control reader.
var stopWords = map[string]bool{"s": true, "stop": true, "q": true, "quit": true}

// WatchReader sets the flag when a stop command line (s, stop, q, quit) is read from r.
// Reading happens on a helper goroutine that stays parked on r until it yields a line or EOF;
// for os.Stdin that is until process exit.
func WatchReader(ctx context.Context, r io.Reader, f *Flag, logger zerolog.Logger) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			case <-f.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// EOF on the control stream is not a stop request (e.g. stdin redirected from /dev/null)
				return nil
			}
			cmd := strings.ToLower(strings.TrimSpace(line))
			if stopWords[cmd] {
				f.Set("operator command " + cmd)
				return nil
			}
			if cmd != "" {
				logger.Info().Str("input", cmd).Msg("unknown command, type 'stop' to end the capture")
			}
		}
	}
}

// WatchFile sets the flag as soon as path is created or written. The parent directory is watched
// so the file does not need to exist beforehand.
func WatchFile(ctx context.Context, path string, f *Flag, logger zerolog.Logger) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve stop file path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch stop file directory: %w", err)
	}

	// The file may have appeared between startup checks and Add
	if _, err := os.Stat(abs); err == nil {
		f.Set("stop file " + path)
		return nil
	}

	logger.Debug().Str("path", abs).Msg("watching stop file")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != abs {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				f.Set("stop file " + path)
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("stop file watcher error")
		}
	}
}
