package latency

import (
	"sync"
	"time"
)

const (
	// DefaultWindowSize is how many recent transcription completions are kept.
	DefaultWindowSize = 3
	// DefaultThreshold is the duration above which the network counts as slow.
	DefaultThreshold = 4 * time.Second
)

// Tracker watches transcription call timings and raises an advisory
// "degraded" signal when responses are consistently slow. It never blocks or
// alters session progression.
type Tracker struct {
	mu          sync.Mutex
	windowSize  int
	threshold   time.Duration
	completions []time.Time
	degraded    bool
}

// NewTracker creates a tracker with the given window size and slowness
// threshold. Zero values fall back to the defaults.
func NewTracker(windowSize int, threshold time.Duration) *Tracker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{windowSize: windowSize, threshold: threshold}
}

// Record notes a completed transcription call and re-evaluates the degraded
// signal. duration is the wall-clock time the call took; completedAt is when
// it finished.
func (t *Tracker) Record(completedAt time.Time, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.completions = append(t.completions, completedAt)
	if len(t.completions) > t.windowSize {
		t.completions = t.completions[len(t.completions)-t.windowSize:]
	}

	if len(t.completions) >= t.windowSize {
		// Average inter-completion interval across the window.
		first := t.completions[0]
		last := t.completions[len(t.completions)-1]
		avg := last.Sub(first) / time.Duration(len(t.completions)-1)
		t.degraded = avg > t.threshold
		return
	}

	// Not enough history; judge the single latest call.
	t.degraded = duration > t.threshold
}

// Degraded reports whether recent transcription calls look slow.
func (t *Tracker) Degraded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.degraded
}

// Reset clears all recorded completions.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completions = nil
	t.degraded = false
}
