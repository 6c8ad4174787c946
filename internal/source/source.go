// Package source decodes a live stream into JPEG frames with an ffmpeg child process.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/andresmejia3/streamsnap/internal/types"
	"github.com/andresmejia3/streamsnap/internal/utils"
)

const megabyte = 1024 * 1024

var (
	// ErrSourceUnavailable means the stream could not be opened. Fatal, the loop never starts.
	ErrSourceUnavailable = errors.New("frame source unavailable")
	// ErrNoFrameYet means no new frame arrived within the read timeout. Transient.
	ErrNoFrameYet = errors.New("no frame yet")
	// ErrSourceGone means the decoder has exited and no more frames will arrive.
	ErrSourceGone = errors.New("frame source gone")
)

// Config controls the decoder process.
type Config struct {
	Bin         string        // ffmpeg binary, defaults to "ffmpeg"
	FPS         float64       // decode rate cap, 0 keeps the stream's native rate
	Realtime    bool          // pace file inputs at native speed (-re)
	OpenTimeout time.Duration // how long Open waits for the first frame
	ReadTimeout time.Duration // how long Read waits before reporting ErrNoFrameYet
	Logger      zerolog.Logger
}

// FFmpegSource is the stream handle. A pump goroutine drains ffmpeg's stdout into a one-slot
// mailbox, so Read always returns the freshest decoded frame and stale frames are dropped
// instead of queueing behind a slow reader.
type FFmpegSource struct {
	cfg    Config
	cmd    *utils.SafeCommand
	cancel context.CancelFunc

	frames chan types.Frame // capacity 1, latest frame wins
	first  chan struct{}    // closed when the first frame is in the mailbox
	done   chan struct{}    // closed when the pump has exited
	err    error            // why the pump exited, valid after done

	dropped   atomic.Uint64
	closeOnce sync.Once
}

// Open starts ffmpeg on url and waits for the first frame. The process lives until Close,
// independent of ctx, which only bounds the wait.
func Open(ctx context.Context, url string, cfg Config) (*FFmpegSource, error) {
	if cfg.Bin == "" {
		cfg.Bin = "ffmpeg"
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := utils.NewSafeCommand(procCtx, cfg.Bin, utils.FFmpegStreamArgs(url, cfg.FPS, cfg.Realtime)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSourceUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: start %s: %v", ErrSourceUnavailable, cfg.Bin, err)
	}

	s := &FFmpegSource{
		cfg:    cfg,
		cmd:    cmd,
		cancel: cancel,
		frames: make(chan types.Frame, 1),
		first:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.pump(stdout)

	// Wait for the first frame so a dead URL fails here instead of inside the loop
	timer := time.NewTimer(cfg.OpenTimeout)
	defer timer.Stop()
	select {
	case <-s.first:
		return s, nil
	case <-s.done:
		select {
		case <-s.first:
			// A short input can decode its only frame and exit before we get here
			return s, nil
		default:
		}
		err := s.err
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	case <-timer.C:
		s.Close()
		return nil, fmt.Errorf("%w: no frame within %s", ErrSourceUnavailable, cfg.OpenTimeout)
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}
}

// pump splits ffmpeg's MJPEG output into frames until the stream ends.
func (s *FFmpegSource) pump(stdout io.Reader) {
	defer close(s.done)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	var seq uint64
	for scanner.Scan() {
		seq++
		// The scanner reuses its buffer, so every frame gets its own copy
		data := make([]byte, len(scanner.Bytes()))
		copy(data, scanner.Bytes())
		s.offer(types.Frame{Seq: seq, DecodedAt: time.Now(), Data: data})
		if seq == 1 {
			close(s.first)
		}
	}

	scanErr := scanner.Err()
	waitErr := s.cmd.Wait()
	switch {
	case scanErr != nil:
		s.err = fmt.Errorf("frame scanner failed: %w", scanErr)
	case waitErr != nil:
		s.err = fmt.Errorf("%s exited: %w", s.cfg.Bin, waitErr)
	default:
		s.err = errors.New("end of stream")
	}
	if tail := s.cmd.StderrTail(1024); tail != "" {
		s.err = fmt.Errorf("%w: %s", s.err, tail)
	}
	s.cfg.Logger.Debug().Err(s.err).Uint64("frames", seq).Uint64("dropped", s.dropped.Load()).Msg("decoder stopped")
}

// offer places f in the mailbox, replacing an unread older frame.
func (s *FFmpegSource) offer(f types.Frame) {
	for {
		select {
		case s.frames <- f:
			return
		default:
		}
		select {
		case <-s.frames:
			s.dropped.Add(1)
		default:
		}
	}
}

// Read returns the next frame. It reports ErrNoFrameYet when nothing arrives within the read
// timeout and ErrSourceGone once the decoder has exited and the last frame was consumed.
func (s *FFmpegSource) Read(ctx context.Context) (types.Frame, error) {
	timer := time.NewTimer(s.cfg.ReadTimeout)
	defer timer.Stop()

	select {
	case f := <-s.frames:
		return f, nil
	case <-s.done:
		select {
		case f := <-s.frames:
			return f, nil
		default:
		}
		return types.Frame{}, fmt.Errorf("%w: %v", ErrSourceGone, s.err)
	case <-timer.C:
		return types.Frame{}, ErrNoFrameYet
	case <-ctx.Done():
		return types.Frame{}, ctx.Err()
	}
}

// Close kills the decoder and waits for the pump to exit. Safe to call multiple times.
func (s *FFmpegSource) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}
