package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamsnap_ticks_total",
		Help: "Total number of capture loop iterations that obtained a frame",
	})

	SamplesEvaluatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamsnap_samples_evaluated_total",
		Help: "Total number of frames passed to text recognition",
	})

	CapturesSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamsnap_captures_saved_total",
		Help: "Total number of frames written to the output directory",
	})

	CaptureWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamsnap_capture_write_failures_total",
		Help: "Total number of qualifying frames that could not be written",
	})

	FrameReadRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamsnap_frame_read_retries_total",
		Help: "Total number of frame pulls retried because no frame was available yet",
	})

	OCRFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamsnap_ocr_failures_total",
		Help: "Total number of recognition calls that failed and were treated as empty text",
	})

	OCRDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamsnap_ocr_duration_seconds",
		Help:    "Latency of a single text recognition call",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	MatchScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamsnap_match_score",
		Help:    "Partial-match score of evaluated samples against the target",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})
)
