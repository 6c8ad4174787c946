// Package capture runs the sampling loop: pull a frame, evaluate it once per interval, save it
// when the target text shows up with new wording, and stop when asked.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/andresmejia3/streamsnap/internal/match"
	"github.com/andresmejia3/streamsnap/internal/metrics"
	"github.com/andresmejia3/streamsnap/internal/source"
	"github.com/andresmejia3/streamsnap/internal/stop"
	"github.com/andresmejia3/streamsnap/internal/types"
)

// ErrRetriesExhausted is returned when a configured retry ceiling is hit while the source keeps
// reporting that no frame is available.
var ErrRetriesExhausted = errors.New("frame read retries exhausted")

// FrameSource is the stream handle the loop owns for its whole run.
type FrameSource interface {
	Read(ctx context.Context) (types.Frame, error)
	Close() error
}

// TextDetector returns the text recognized in a frame. It never fails; "" means nothing found.
type TextDetector interface {
	Recognize(ctx context.Context, frame types.Frame) string
}

// FrameWriter persists frame data as capture number n.
type FrameWriter interface {
	Save(n int, data []byte) (string, error)
}

// Progress receives a snapshot after every tick.
type Progress interface {
	Tick(r Result)
}

// State is where the loop is in its lifecycle.
type State int

const (
	StateRunning State = iota
	StateStoppedBySignal
	StateStoppedBySourceFailure
	StateStoppedByContext
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStoppedBySignal:
		return "stopped_by_signal"
	case StateStoppedBySourceFailure:
		return "stopped_by_source_failure"
	case StateStoppedByContext:
		return "stopped_by_context"
	default:
		return "unknown"
	}
}

// RetryPolicy governs pulls that find no frame yet. Zero ceilings mean retry forever.
type RetryPolicy struct {
	Delay       time.Duration
	MaxAttempts uint
	MaxElapsed  time.Duration
}

// DefaultRetryPolicy waits one second between pulls and never gives up: live streams stall and
// recover, and a decoder that has really died reports source.ErrSourceGone instead.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Delay: time.Second}
}

// Options are the per-run parameters.
type Options struct {
	Target    string
	Interval  time.Duration
	Threshold int // 0-100, inclusive
}

// Validate checks the run preconditions.
func (o Options) Validate() error {
	if o.Target == "" {
		return errors.New("target text is required")
	}
	if o.Interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %s", o.Interval)
	}
	if o.Threshold < 0 || o.Threshold > 100 {
		return fmt.Errorf("threshold must be between 0 and 100, got %d", o.Threshold)
	}
	return nil
}

// Result summarises a run.
type Result struct {
	State         State
	Ticks         int // loop iterations that obtained a frame
	Evaluated     int // frames passed to the detector
	Saved         int // captures written, equals the highest capture index
	LastSavedText string
}

// Loop holds the collaborators of the capture loop. Detector, Scorer, Store and Stop are required.
type Loop struct {
	Detector TextDetector
	Scorer   match.Scorer
	Store    FrameWriter
	Stop     *stop.Flag
	Retry    RetryPolicy
	Now      func() time.Time // defaults to time.Now
	Logger   zerolog.Logger
	Progress Progress // optional
}

// Run samples src until the stop flag is set, the source dies, or ctx ends. src is closed on
// every exit path. A clean stop returns a nil error; source failures and context cancellation
// are returned.
func (l *Loop) Run(ctx context.Context, src FrameSource, opts Options) (Result, error) {
	defer src.Close()

	res := Result{State: StateRunning}
	if err := opts.Validate(); err != nil {
		return res, err
	}
	if l.Detector == nil || l.Scorer == nil || l.Store == nil || l.Stop == nil {
		return res, errors.New("capture loop is missing a collaborator")
	}
	now := l.Now
	if now == nil {
		now = time.Now
	}
	retry := l.Retry
	if retry.Delay <= 0 {
		retry.Delay = DefaultRetryPolicy().Delay
	}

	// Pulls are interrupted by either the caller's context or the stop flag
	pullCtx, cancelPull := context.WithCancel(ctx)
	defer cancelPull()
	defer context.AfterFunc(l.Stop.Context(), cancelPull)()

	var lastEvaluated time.Time // zero until the first sample, which is always evaluated

	for {
		frame, err := l.pull(pullCtx, src, retry)
		if err != nil {
			switch {
			case l.Stop.IsSet():
				res.State = StateStoppedBySignal
				l.logStop(res)
				return res, nil
			case ctx.Err() != nil:
				res.State = StateStoppedByContext
				return res, ctx.Err()
			default:
				res.State = StateStoppedBySourceFailure
				l.Logger.Error().Err(err).Int("saved", res.Saved).Msg("frame source failed, stopping capture")
				return res, err
			}
		}

		res.Ticks++
		metrics.TicksTotal.Inc()
		sample := types.Sample{Frame: frame, PulledAt: now()}

		if lastEvaluated.IsZero() || sample.PulledAt.Sub(lastEvaluated) >= opts.Interval {
			// Reset the clock before evaluating so OCR latency does not stretch the cadence
			lastEvaluated = sample.PulledAt
			l.evaluate(ctx, sample, opts, &res)
		} else {
			l.Logger.Trace().Uint64("seq", frame.Seq).Msg("frame discarded, interval not elapsed")
		}

		if l.Progress != nil {
			l.Progress.Tick(res)
		}

		if l.Stop.IsSet() {
			res.State = StateStoppedBySignal
			l.logStop(res)
			return res, nil
		}
	}
}

// pull reads one frame, waiting retry.Delay between attempts while the source has nothing yet.
func (l *Loop) pull(ctx context.Context, src FrameSource, retry RetryPolicy) (types.Frame, error) {
	attempts := uint(0)
	op := func() (types.Frame, error) {
		attempts++
		f, err := src.Read(ctx)
		if err == nil || errors.Is(err, source.ErrNoFrameYet) {
			return f, err
		}
		return f, backoff.Permanent(err)
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(retry.Delay)),
		backoff.WithMaxElapsedTime(retry.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.FrameReadRetriesTotal.Inc()
			l.Logger.Debug().Err(err).Uint("attempt", attempts).Dur("retry_in", next).Msg("cannot read frame, retrying")
		}),
	}
	if retry.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(retry.MaxAttempts))
	}

	f, err := backoff.Retry(ctx, op, opts...)
	if err != nil && errors.Is(err, source.ErrNoFrameYet) {
		return f, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
	}
	return f, err
}

// evaluate runs detection and the dedup/threshold policy on one sample and saves it if it
// qualifies. A failed write is logged and leaves the counter and dedup state untouched.
func (l *Loop) evaluate(ctx context.Context, sample types.Sample, opts Options, res *Result) {
	res.Evaluated++
	metrics.SamplesEvaluatedTotal.Inc()

	text := l.Detector.Recognize(ctx, sample.Frame)
	score := l.Scorer.Score(opts.Target, text)
	metrics.MatchScore.Observe(float64(score))
	det := types.Detection{Matched: score >= opts.Threshold, Text: text, Score: score}

	ev := l.Logger.Debug().Uint64("seq", sample.Frame.Seq)
	if !sample.Frame.DecodedAt.IsZero() {
		// How stale the frame was when it was picked up, on the decoder's wall clock
		ev = ev.Dur("decode_lag", sample.PulledAt.Sub(sample.Frame.DecodedAt))
	}
	ev.Int("score", det.Score).
		Bool("matched", det.Matched).
		Str("text", det.Text).
		Msg("sample evaluated")

	if !match.ShouldSave(det.Text, res.LastSavedText, det.Score, opts.Threshold) {
		if det.Matched {
			l.Logger.Debug().Int("saved", res.Saved).Msg("target seen again with the same text, not saving")
		}
		return
	}

	n := res.Saved + 1
	path, err := l.Store.Save(n, sample.Frame.Data)
	if err != nil {
		metrics.CaptureWriteFailuresTotal.Inc()
		l.Logger.Error().Err(err).Int("capture", n).Msg("failed to save capture, continuing")
		return
	}

	res.Saved = n
	res.LastSavedText = det.Text
	metrics.CapturesSavedTotal.Inc()
	l.Logger.Info().Int("capture", n).Int("score", det.Score).Str("path", path).Str("text", det.Text).Msg("target detected, capture saved")
}

func (l *Loop) logStop(res Result) {
	l.Logger.Info().
		Str("reason", l.Stop.Reason()).
		Int("ticks", res.Ticks).
		Int("evaluated", res.Evaluated).
		Int("saved", res.Saved).
		Msg("stopping capture")
}
