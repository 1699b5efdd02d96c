// Package verify turns a stream of positional samples into a directional
// verdict and drives the verification session state machine around it.
package verify

import (
	"time"

	"github.com/UniAttendHQ/uniattend"
	"github.com/UniAttendHQ/uniattend/lib/challenge"
)

// Sample is one positional observation of the tracked reference point (the
// nose tip landmark, for the stock capture frontend) in frame-relative
// coordinates.
type Sample struct {
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Window is a bounded, time-ordered sequence of the most recent samples.
// Oldest samples are evicted first. A window belongs to exactly one session
// and is never shared, so it needs no locking.
type Window struct {
	samples  []Sample
	capacity int
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = uniattend.DefaultWindowSize
	}

	return &Window{
		samples:  make([]Sample, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a sample, evicting the oldest one once the window is full.
func (w *Window) Push(s Sample) {
	if len(w.samples) == w.capacity {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:len(w.samples)-1]
	}

	w.samples = append(w.samples, s)
}

func (w *Window) Len() int { return len(w.samples) }

// Classifier holds the displacement-threshold rule's knobs. Detection
// sensitivity is a deployment tradeoff between false rejects and false
// accepts, so none of these are baked into the logic; zero values fall back
// to the package defaults.
type Classifier struct {
	// Threshold is the horizontal displacement (frame pixels) needed for a
	// left/right verdict. Vertical verdicts use 0.8x this value.
	Threshold float64 `yaml:"threshold"`

	// WindowSize is the sample window capacity.
	WindowSize int `yaml:"window_size"`

	// MinSamples is how many samples must be present before any verdict is
	// attempted.
	MinSamples int `yaml:"min_samples"`
}

func (c Classifier) threshold() float64 {
	if c.Threshold > 0 {
		return c.Threshold
	}
	return uniattend.DefaultThreshold
}

func (c Classifier) windowSize() int {
	if c.WindowSize > 0 {
		return c.WindowSize
	}
	return uniattend.DefaultWindowSize
}

func (c Classifier) minSamples() int {
	if c.MinSamples > 0 {
		return c.MinSamples
	}
	return uniattend.DefaultMinSamples
}

// Classify produces a directional verdict from the window, or ok=false when
// the window does not (yet) show a decisive movement. The call is stateless;
// all state lives in the window.
//
// Displacement is measured last-sample minus first-sample. The horizontal
// sign convention is mirrored relative to the subject's own frame of
// reference: the capture is flipped for on-screen display, so positive delta
// X corresponds to the subject's LEFT.
func (c Classifier) Classify(w *Window) (challenge.Direction, bool) {
	if w.Len() < c.minSamples() {
		return "", false
	}

	first := w.samples[0]
	last := w.samples[len(w.samples)-1]

	dx := last.X - first.X
	dy := last.Y - first.Y

	threshold := c.threshold()

	switch {
	case dx > threshold:
		return challenge.DirectionLeft, true
	case dx < -threshold:
		return challenge.DirectionRight, true
	case dy < -threshold*0.8:
		return challenge.DirectionUp, true
	case dy > threshold*0.8:
		return challenge.DirectionDown, true
	default:
		return "", false
	}
}
