package vision

import (
	"time"

	"gonum.org/v1/gonum/floats"
)

// smoothKernel is a small symmetric binomial blur applied to the buffered
// signal before feature extraction. It knocks out single-sample jitter from
// the landmark detector without flattening a real nod.
var smoothKernel = []float64{1, 4, 6, 4, 1}

// NodDetector recognizes a head-nod gesture in a rolling 1-D signal of
// relative vertical nose positions, sampled once per analysis cycle.
//
// A nod is reported only when the smoothed window shows enough amplitude
// (rejects slow drift), at least two direction reversals (rejects a single
// sweep), and the cooldown since the last report has elapsed (rejects rapid
// re-triggering on one motion). The window keeps sliding after a report; it
// is never cleared.
type NodDetector struct {
	hist []float64
	size int

	ampThresh float64
	cooldown  time.Duration
	lastNod   time.Time
	count     int

	now func() time.Time
}

func NewNodDetector(bufLen int, ampThresh float64, cooldown time.Duration) *NodDetector {
	return &NodDetector{
		hist:      make([]float64, 0, bufLen),
		size:      bufLen,
		ampThresh: ampThresh,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// SetClock replaces the detector's time source.
func (d *NodDetector) SetClock(now func() time.Time) {
	d.now = now
}

// Count returns the number of nods reported so far in this run.
func (d *NodDetector) Count() int {
	return d.count
}

// Update appends one sample (nose relative to the shoulder midpoint, so the
// signal is invariant to whole-body motion) and reports whether this sample
// completes a nod. Always false until the window has filled once.
func (d *NodDetector) Update(noseY, shoulderMidY float64) bool {
	rel := noseY - shoulderMidY
	if len(d.hist) == d.size {
		copy(d.hist, d.hist[1:])
		d.hist[d.size-1] = rel
	} else {
		d.hist = append(d.hist, rel)
		if len(d.hist) < d.size {
			return false
		}
	}

	smoothed := smooth(d.hist)
	amp := floats.Max(smoothed) - floats.Min(smoothed)
	reversals := signChanges(diff(smoothed))

	now := d.now()
	if amp > d.ampThresh && reversals >= 2 && now.Sub(d.lastNod) > d.cooldown {
		d.lastNod = now
		d.count++
		return true
	}
	return false
}

// smooth convolves the signal with smoothKernel, clamping at the edges.
func smooth(s []float64) []float64 {
	out := make([]float64, len(s))
	half := len(smoothKernel) / 2
	var norm float64
	for _, k := range smoothKernel {
		norm += k
	}
	for i := range s {
		var acc float64
		for j, k := range smoothKernel {
			idx := i + j - half
			if idx < 0 {
				idx = 0
			}
			if idx >= len(s) {
				idx = len(s) - 1
			}
			acc += k * s[idx]
		}
		out[i] = acc / norm
	}
	return out
}

func diff(s []float64) []float64 {
	out := make([]float64, len(s)-1)
	for i := range out {
		out[i] = s[i+1] - s[i]
	}
	return out
}

// signChanges counts transitions in the sign of consecutive elements, a
// proxy for the number of direction reversals in the original signal.
func signChanges(s []float64) int {
	sign := func(v float64) int {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		}
		return 0
	}
	changes := 0
	for i := 1; i < len(s); i++ {
		if sign(s[i]) != sign(s[i-1]) {
			changes++
		}
	}
	return changes
}
