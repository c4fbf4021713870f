// Package stats measures the frame rate of a continuous capture.
package stats

import (
	"math"
	"sync"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum FPS standard deviation as a
	// fraction of the mean. 25 FPS mean → stable if stddev < 3.75 FPS.
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of
	// the expected inter-frame interval. 25 FPS (40ms) → stable if jitter < 8ms.
	jitterStabilityThreshold = 0.20
)

// FPSStats summarizes frame arrival times.
type FPSStats struct {
	Frames       int           // Frames observed
	Duration     time.Duration // Wall time the frames were observed over
	FPSMean      float64       // Frames / Duration
	FPSStdDev    float64       // Standard deviation of instantaneous FPS
	FPSMin       float64       // Minimum instantaneous FPS
	FPSMax       float64       // Maximum instantaneous FPS
	JitterMean   float64       // Mean deviation from the expected interval (seconds)
	JitterStdDev float64       // Standard deviation of jitter (seconds)
	JitterMax    float64       // Maximum jitter observed (seconds)
	IsStable     bool          // stddev < 15% of mean AND jitter < 20% of interval
}

// Calculate computes FPS statistics from frame arrival times.
//
// Fewer than two frames, or frames that all arrived at the same instant,
// carry no interval information: only FPSMean is set and the capture is
// never stable.
func Calculate(frameTimes []time.Time, totalDuration time.Duration) FPSStats {
	n := len(frameTimes)
	out := FPSStats{Frames: n, Duration: totalDuration}
	if n == 0 || totalDuration <= 0 {
		return out
	}

	out.FPSMean = float64(n) / totalDuration.Seconds()

	intervals := make([]float64, 0, n-1)
	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		intervals = append(intervals, interval)
		if interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}
	if len(instantaneous) == 0 {
		return out
	}

	out.FPSMin, out.FPSMax = instantaneous[0], instantaneous[0]
	for _, fps := range instantaneous {
		out.FPSMin = math.Min(out.FPSMin, fps)
		out.FPSMax = math.Max(out.FPSMax, fps)
	}
	out.FPSStdDev = stddev(instantaneous, out.FPSMean)

	// Jitter = deviation from the interval the mean rate implies
	expectedInterval := 1.0 / out.FPSMean
	jitters := make([]float64, len(intervals))
	var sum float64
	for i, interval := range intervals {
		jitters[i] = math.Abs(interval - expectedInterval)
		sum += jitters[i]
		out.JitterMax = math.Max(out.JitterMax, jitters[i])
	}
	out.JitterMean = sum / float64(len(jitters))
	out.JitterStdDev = stddev(jitters, out.JitterMean)

	fpsStable := out.FPSStdDev < out.FPSMean*fpsStabilityThreshold
	jitterStable := out.JitterMean < expectedInterval*jitterStabilityThreshold
	out.IsStable = fpsStable && jitterStable

	return out
}

func stddev(values []float64, mean float64) float64 {
	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

// Recorder collects arrival times and presentation timestamps of rendered
// frames. It is safe for concurrent use.
type Recorder struct {
	now func() time.Time

	mu       sync.Mutex
	start    time.Time
	arrivals []time.Time
	firstPTS time.Duration
	lastPTS  time.Duration
	havePTS  bool
}

// NewRecorder starts a recorder at the current time.
func NewRecorder() *Recorder {
	return newRecorder(time.Now)
}

func newRecorder(now func() time.Time) *Recorder {
	return &Recorder{now: now, start: now(), arrivals: make([]time.Time, 0, 128)}
}

// Observe records a frame with the given presentation timestamp.
func (r *Recorder) Observe(pts time.Duration) {
	at := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.arrivals = append(r.arrivals, at)
	if !r.havePTS {
		r.firstPTS = pts
		r.havePTS = true
	}
	r.lastPTS = pts
}

// Summary is the statistics of a finished capture.
type Summary struct {
	FPSStats
	// MediaSpan is the presentation time covered by the observed frames.
	MediaSpan time.Duration
}

// Summary computes statistics over everything observed so far.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	arrivals := append([]time.Time(nil), r.arrivals...)
	span := r.lastPTS - r.firstPTS
	r.mu.Unlock()

	return Summary{
		FPSStats:  Calculate(arrivals, r.now().Sub(r.start)),
		MediaSpan: span,
	}
}
