// Package resolver turns a live-stream reference (e.g. a YouTube watch URL) into a URL the
// decoder can open. It runs once, before the capture loop starts.
package resolver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andresmejia3/streamsnap/internal/utils"
)

// ErrStreamResolution wraps every resolution failure. It is fatal to the run and never retried.
var ErrStreamResolution = errors.New("stream resolution failed")

// Resolver resolves a stream reference to a playable URL.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Direct passes the reference through unchanged, for inputs ffmpeg can already open
// (HLS playlists, RTSP cameras, local files).
type Direct struct{}

func (Direct) Resolve(_ context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty stream reference", ErrStreamResolution)
	}
	return ref, nil
}

// YtDlp resolves references with the yt-dlp command line tool.
type YtDlp struct {
	Bin    string // defaults to "yt-dlp"
	Format string // defaults to "bestvideo"
}

// Args returns the yt-dlp argument list for ref.
func (y YtDlp) Args(ref string) []string {
	format := y.Format
	if format == "" {
		format = "bestvideo"
	}
	return []string{"-f", format, "--force-ipv4", "--no-warnings", "--no-playlist", "-g", ref}
}

// Resolve runs yt-dlp and returns the first URL it prints.
func (y YtDlp) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty stream reference", ErrStreamResolution)
	}
	bin := y.Bin
	if bin == "" {
		bin = "yt-dlp"
	}

	cmd := utils.NewSafeCommand(ctx, bin, y.Args(ref)...)
	out, err := cmd.Output()
	if err != nil {
		if tail := cmd.StderrTail(512); tail != "" {
			return "", fmt.Errorf("%w: %s: %v: %s", ErrStreamResolution, bin, err, tail)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrStreamResolution, bin, err)
	}

	url := firstURL(out)
	if url == "" {
		return "", fmt.Errorf("%w: %s printed no stream URL for %s", ErrStreamResolution, bin, ref)
	}
	return url, nil
}

func firstURL(out []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024) // signed googlevideo URLs are long
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.Contains(line, "://") {
			return line
		}
	}
	return ""
}

// New returns the resolver registered under kind ("ytdlp" or "direct").
func New(kind, bin, format string) (Resolver, error) {
	switch kind {
	case "", "ytdlp":
		return YtDlp{Bin: bin, Format: format}, nil
	case "direct":
		return Direct{}, nil
	default:
		return nil, fmt.Errorf("unknown resolver %q", kind)
	}
}
