package types

import "time"

// Frame is a single decoded video frame as produced by the frame source.
type Frame struct {
	Seq       uint64    // Decoder sequence number, starts at 1
	DecodedAt time.Time // When the pump finished reading the frame
	Data      []byte    // Encoded JPEG bytes
}

// Sample is a frame plus the loop-clock time at which it was pulled.
type Sample struct {
	Frame    Frame
	PulledAt time.Time
}

// Detection is the outcome of running recognition and scoring on one sample.
type Detection struct {
	Matched bool
	Text    string
	Score   int // 0-100
}
