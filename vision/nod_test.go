package vision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances a fixed step per sample so cooldown behavior is
// deterministic.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{t: time.Unix(1000, 0), step: step}
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

// nodTrajectory is a 48-sample nose signal with a single dip of amplitude
// 0.05 (two direction reversals) early enough that it sits fully inside the
// first full window.
func nodTrajectory() []float64 {
	s := make([]float64, 48)
	dip := []float64{-0.0125, -0.025, -0.0375, -0.05, -0.05, -0.0375, -0.025, -0.0125}
	copy(s[8:], dip)
	return s
}

func TestNodNeverFiresBeforeBufferFull(t *testing.T) {
	d := NewNodDetector(36, 0.03, time.Second)
	d.SetClock(newFakeClock(20 * time.Millisecond).now)

	// Huge oscillation, but only 35 samples.
	for i := 0; i < 35; i++ {
		y := 0.0
		if i%2 == 0 {
			y = 0.5
		}
		assert.False(t, d.Update(y, 0), "sample %d fired before the buffer filled", i)
	}
	assert.Equal(t, 0, d.Count())
}

func TestNodConstantSignalNeverFires(t *testing.T) {
	d := NewNodDetector(36, 0.03, time.Second)
	d.SetClock(newFakeClock(20 * time.Millisecond).now)

	for i := 0; i < 500; i++ {
		assert.False(t, d.Update(0.42, 0.3), "constant signal fired at sample %d", i)
	}
	assert.Equal(t, 0, d.Count())
}

func TestNodEndToEndTrajectory(t *testing.T) {
	d := NewNodDetector(36, 0.03, time.Second)
	d.SetClock(newFakeClock(20 * time.Millisecond).now)

	// 48 samples at 20ms simulated spacing is 0.96s, inside the 1.0s
	// cooldown, so the nod must fire exactly once: on the first cycle where
	// the buffer is full and the dip is resolved.
	fired := -1
	for i, y := range nodTrajectory() {
		if d.Update(y, 0) {
			require.Equal(t, -1, fired, "second nod at sample %d inside the cooldown", i)
			fired = i
		}
	}
	assert.Equal(t, 35, fired, "nod should fire on the buffer-filling sample")
	assert.Equal(t, 1, d.Count())
}

func TestNodOncePerCooldownWindow(t *testing.T) {
	d := NewNodDetector(36, 0.03, time.Second)
	clock := newFakeClock(10 * time.Millisecond)
	d.SetClock(clock.now)

	// A continuous oscillation always satisfies amplitude and reversal
	// conditions once the buffer fills; only the cooldown limits reports.
	var fires []time.Time
	for i := 0; i < 300; i++ {
		y := 0.0
		if (i/4)%2 == 0 {
			y = 0.1
		}
		if d.Update(y, 0) {
			fires = append(fires, clock.t)
		}
	}

	// 300 samples * 10ms = 3.0s simulated: fills at 0.36s, then one report
	// per elapsed cooldown.
	require.NotEmpty(t, fires)
	assert.Equal(t, 3, len(fires))
	for i := 1; i < len(fires); i++ {
		assert.Greater(t, fires[i].Sub(fires[i-1]), time.Second,
			"reports %d and %d are closer than the cooldown", i-1, i)
	}
}

func TestNodAmplitudeBelowThresholdNeverFires(t *testing.T) {
	d := NewNodDetector(36, 0.03, time.Second)
	d.SetClock(newFakeClock(20 * time.Millisecond).now)

	// Plenty of reversals, amplitude only 0.01.
	for i := 0; i < 500; i++ {
		y := 0.0
		if (i/4)%2 == 0 {
			y = 0.01
		}
		assert.False(t, d.Update(y, 0))
	}
	assert.Equal(t, 0, d.Count())
}

func TestSignChanges(t *testing.T) {
	assert.Equal(t, 0, signChanges([]float64{1, 2, 3}))
	assert.Equal(t, 2, signChanges([]float64{1, -1, 1}))
	assert.Equal(t, 1, signChanges([]float64{0, 0, -1}))
	assert.Equal(t, 0, signChanges(nil))
}

func TestSmoothPreservesConstant(t *testing.T) {
	out := smooth([]float64{2, 2, 2, 2, 2, 2})
	for _, v := range out {
		assert.InDelta(t, 2.0, v, 1e-9)
	}
}
