package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// fakeTool writes an executable shell script standing in for yt-dlp.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestYtDlpResolve(t *testing.T) {
	bin := fakeTool(t, `echo "[info] resolving"
echo "https://rr1.googlevideo.test/videoplayback?id=abc"
echo "https://rr1.googlevideo.test/second"
`)
	got, err := YtDlp{Bin: bin}.Resolve(context.Background(), "https://www.youtube.com/watch?v=live")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != "https://rr1.googlevideo.test/videoplayback?id=abc" {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestYtDlpResolveFailures(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		ref     string
		wantMsg string
	}{
		{name: "Tool fails", script: "echo 'ERROR: This live event has ended.' >&2\nexit 1\n", ref: "x", wantMsg: "live event has ended"},
		{name: "No URL printed", script: "echo nothing\n", ref: "x", wantMsg: "no stream URL"},
		{name: "Empty reference", script: "exit 0\n", ref: "  ", wantMsg: "empty stream reference"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := fakeTool(t, tt.script)
			_, err := YtDlp{Bin: bin}.Resolve(context.Background(), tt.ref)
			if !errors.Is(err, ErrStreamResolution) {
				t.Fatalf("expected ErrStreamResolution, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestYtDlpMissingBinary(t *testing.T) {
	_, err := YtDlp{Bin: filepath.Join(t.TempDir(), "absent")}.Resolve(context.Background(), "x")
	if !errors.Is(err, ErrStreamResolution) {
		t.Errorf("expected ErrStreamResolution, got %v", err)
	}
}

func TestYtDlpArgs(t *testing.T) {
	args := strings.Join(YtDlp{}.Args("REF"), " ")
	for _, want := range []string{"-f bestvideo", "--force-ipv4", "-g REF"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
	args = strings.Join(YtDlp{Format: "best[height<=720]"}.Args("REF"), " ")
	if !strings.Contains(args, "-f best[height<=720]") {
		t.Errorf("custom format not applied: %q", args)
	}
}

func TestDirectAndNew(t *testing.T) {
	got, err := Direct{}.Resolve(context.Background(), " rtsp://cam.local/stream ")
	if err != nil || got != "rtsp://cam.local/stream" {
		t.Errorf("Direct.Resolve() = %q, %v", got, err)
	}

	if r, err := New("direct", "", ""); err != nil {
		t.Errorf("New(direct) error: %v", err)
	} else if _, ok := r.(Direct); !ok {
		t.Errorf("New(direct) = %T", r)
	}
	if r, _ := New("", "ytdlp-custom", ""); r.(YtDlp).Bin != "ytdlp-custom" {
		t.Errorf("New default resolver not configured: %#v", r)
	}
	if _, err := New("bogus", "", ""); err == nil {
		t.Error("expected error for unknown resolver")
	}
}
