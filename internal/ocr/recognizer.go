package ocr

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/andresmejia3/streamsnap/internal/metrics"
	"github.com/andresmejia3/streamsnap/internal/types"
)

// Recognizer adapts an Engine to the capture loop: recognition never fails, errors are logged
// and reported as empty text so sampling continues while OCR degrades.
type Recognizer struct {
	Engine Engine
	Logger zerolog.Logger
}

// Recognize returns the text found in frame, or "" if recognition failed.
func (r *Recognizer) Recognize(ctx context.Context, frame types.Frame) string {
	start := time.Now()
	text, err := r.Engine.Extract(ctx, frame.Data)
	metrics.OCRDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OCRFailuresTotal.Inc()
		r.Logger.Debug().Err(err).Uint64("seq", frame.Seq).Msg("text recognition failed, treating as empty")
		return ""
	}
	return text
}
