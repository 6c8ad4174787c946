package stop

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"
)

func TestFlagSetOnce(t *testing.T) {
	f := New()
	if f.IsSet() {
		t.Fatal("new flag must be unset")
	}
	select {
	case <-f.Done():
		t.Fatal("Done closed before Set")
	default:
	}

	if !f.Set("first") {
		t.Error("first Set should report true")
	}
	if f.Set("second") {
		t.Error("second Set should report false")
	}
	if !f.IsSet() {
		t.Error("flag should be set")
	}
	if f.Reason() != "first" {
		t.Errorf("Reason() = %q, want first", f.Reason())
	}
	select {
	case <-f.Done():
	default:
		t.Error("Done should be closed after Set")
	}
	if f.Context().Err() == nil {
		t.Error("Context should be cancelled after Set")
	}
}

func TestFlagConcurrentSet(t *testing.T) {
	f := New()
	var wg sync.WaitGroup
	wins := make(chan bool, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- f.Set("racer")
		}()
	}
	wg.Wait()
	close(wins)

	n := 0
	for w := range wins {
		if w {
			n++
		}
	}
	if n != 1 {
		t.Errorf("expected exactly one winning Set, got %d", n)
	}
}

func TestWhenDone(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := New()
	trigger, fire := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		WhenDone(context.Background(), trigger, f, "signal: interrupt")
		close(done)
	}()

	fire()
	<-done
	if f.Reason() != "signal: interrupt" {
		t.Errorf("Reason() = %q", f.Reason())
	}

	// A finished run must release the trigger without setting the flag
	g := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	WhenDone(ctx, context.Background(), g, "never")
	if g.IsSet() {
		t.Error("flag set although only the run context ended")
	}
}

func TestWatchReader(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantSet bool
	}{
		{name: "stop word", input: "hello\n  STOP \n", wantSet: true},
		{name: "short form", input: "q\n", wantSet: true},
		{name: "eof without command", input: "nothing here\n", wantSet: false},
		{name: "empty input", input: "", wantSet: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New()
			err := WatchReader(context.Background(), strings.NewReader(tt.input), f, zerolog.Nop())
			if err != nil {
				t.Fatalf("WatchReader error: %v", err)
			}
			if f.IsSet() != tt.wantSet {
				t.Errorf("IsSet() = %v, want %v", f.IsSet(), tt.wantSet)
			}
		})
	}
}

func TestWatchReaderCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r, w := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	f := New()
	done := make(chan struct{})
	go func() {
		WatchReader(ctx, r, f, zerolog.Nop())
		close(done)
	}()

	cancel()
	<-done
	// Release the parked reader goroutine
	w.Close()
	if f.IsSet() {
		t.Error("cancelled watcher must not set the flag")
	}
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "STOP")
	f := New()

	errCh := make(chan error, 1)
	go func() { errCh <- WatchFile(context.Background(), path, f, zerolog.Nop()) }()

	// Poll until the watcher has registered, then create the file
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	created := false
	for !f.IsSet() {
		select {
		case <-deadline:
			t.Fatal("stop file never observed")
		case <-tick.C:
			if !created {
				if err := os.WriteFile(path, []byte("stop"), 0644); err != nil {
					t.Fatal(err)
				}
				created = true
			} else {
				// Touch again in case the first write raced the watcher setup
				os.WriteFile(path, []byte("stop"), 0644)
			}
		}
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WatchFile error: %v", err)
	}
	if !strings.Contains(f.Reason(), "stop file") {
		t.Errorf("Reason() = %q", f.Reason())
	}
}

func TestWatchFileExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "STOP")
	os.WriteFile(path, nil, 0644)
	f := New()
	if err := WatchFile(context.Background(), path, f, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	if !f.IsSet() {
		t.Error("pre-existing stop file should stop immediately")
	}
}

func TestWatchFileMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "STOP")
	if err := WatchFile(context.Background(), path, New(), zerolog.Nop()); err == nil {
		t.Error("expected error watching a missing directory")
	}
}
