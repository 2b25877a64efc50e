package engine

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"dinesight/classify"
	"dinesight/vision"
)

// fakeSource produces synthetic frames and counts device lifecycle calls.
type fakeSource struct {
	opens    int32
	closes   int32
	failOpen bool
}

func (s *fakeSource) Open() error {
	atomic.AddInt32(&s.opens, 1)
	if s.failOpen {
		return errors.New("device busy")
	}
	return nil
}

func (s *fakeSource) Read(f *vision.Frame) bool {
	m := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer m.Close()
	m.CopyTo(&f.Mat)
	f.Time = time.Now()
	return true
}

func (s *fakeSource) Close() {
	atomic.AddInt32(&s.closes, 1)
}

type fakePose struct {
	ys []float64
	i  int
}

func (p *fakePose) DetectPose(gocv.Mat) (*vision.PoseLandmarks, bool) {
	if p.i >= len(p.ys) {
		return nil, false
	}
	y := p.ys[p.i]
	p.i++
	return &vision.PoseLandmarks{
		Nose:          vision.Landmark{X: 0.5, Y: y, Confidence: 0.9},
		LeftShoulder:  vision.Landmark{X: 0.4, Y: 0.5, Confidence: 0.9},
		RightShoulder: vision.Landmark{X: 0.6, Y: 0.5, Confidence: 0.9},
	}, true
}

type fakeFace struct {
	found bool
}

func (f *fakeFace) DetectFace(gocv.Mat) (image.Rectangle, float32, bool) {
	if !f.found {
		return image.Rectangle{}, 0, false
	}
	return image.Rect(10, 10, 50, 50), 0.9, true
}

type fakeClassifier struct {
	label classify.Label
	usage *classify.Usage
	err   error
	calls int32
}

func (c *fakeClassifier) Classify(context.Context, gocv.Mat) (classify.Label, *classify.Usage, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.label, c.usage, c.err
}

func testConfig() Config {
	return Config{
		QueueSize:       2,
		CaptureDelay:    5 * time.Millisecond,
		EmoteInterval:   time.Millisecond,
		ClassifyTimeout: time.Second,
		NodBufferLen:    4,
		NodAmpThreshold: 0.03,
		NodCooldown:     time.Second,
	}
}

func testFrame(t *testing.T) vision.Frame {
	t.Helper()
	f := vision.NewFrame()
	m := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer m.Close()
	m.CopyTo(&f.Mat)
	return f
}

func TestEngineStartIdempotent(t *testing.T) {
	src := &fakeSource{}
	e := New(src, ModelPack{}, testConfig())

	e.Start()
	e.Start()
	time.Sleep(50 * time.Millisecond)
	e.Stop()

	// One producer/worker pair only, so one device open and one release.
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.opens))
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.closes))

	// A restart spawns a fresh pair.
	e.Start()
	time.Sleep(50 * time.Millisecond)
	e.Stop()
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.opens))
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.closes))
}

func TestEngineStopWhenStoppedIsNoop(t *testing.T) {
	e := New(&fakeSource{}, ModelPack{}, testConfig())
	e.Stop()
	e.Stop()
}

func TestEngineFrameAndResultFlow(t *testing.T) {
	e := New(&fakeSource{}, ModelPack{}, testConfig())
	e.Start()
	defer e.Stop()

	require.Eventually(t, func() bool {
		f, ok := e.LatestFrame()
		if ok {
			f.Close()
		}
		return ok
	}, 2*time.Second, 10*time.Millisecond, "no display frame arrived")

	require.Eventually(t, func() bool {
		_, ok := e.LatestResult()
		return ok
	}, 2*time.Second, 10*time.Millisecond, "no analysis result arrived")
}

func TestEngineOpenFailureIsSilent(t *testing.T) {
	e := New(&fakeSource{failOpen: true}, ModelPack{}, testConfig())
	e.Start()
	time.Sleep(50 * time.Millisecond)

	// The consumer just never sees a frame.
	_, ok := e.LatestFrame()
	assert.False(t, ok)
	e.Stop()
}

func TestAnalyzeClassifierErrorDegradesCycle(t *testing.T) {
	cfg := testConfig()
	cfg.Options = Options{Emote: true}
	cl := &fakeClassifier{err: errors.New("rate limited")}
	e := New(&fakeSource{}, ModelPack{Face: &fakeFace{found: true}, Classifier: cl}, cfg)

	f := testFrame(t)
	defer f.Close()
	nod := vision.NewNodDetector(cfg.NodBufferLen, cfg.NodAmpThreshold, cfg.NodCooldown)
	var lastEmote time.Time
	res := e.analyze(&f, nod, &lastEmote)

	// "error" is distinct from "no face"; the event stays empty.
	assert.Equal(t, "error", res.Display.EmotionText)
	assert.Equal(t, EmotionNone, res.Emotion)
	assert.Nil(t, res.Tokens)
}

func TestAnalyzeNoFace(t *testing.T) {
	cfg := testConfig()
	cfg.Options = Options{Emote: true}
	cl := &fakeClassifier{label: classify.Positive}
	e := New(&fakeSource{}, ModelPack{Face: &fakeFace{found: false}, Classifier: cl}, cfg)

	f := testFrame(t)
	defer f.Close()
	nod := vision.NewNodDetector(cfg.NodBufferLen, cfg.NodAmpThreshold, cfg.NodCooldown)
	var lastEmote time.Time
	res := e.analyze(&f, nod, &lastEmote)

	assert.Equal(t, "no face", res.Display.EmotionText)
	assert.Equal(t, EmotionNone, res.Emotion)
	assert.Equal(t, int32(0), atomic.LoadInt32(&cl.calls), "classifier must not be called without a face")
}

func TestAnalyzeEmotionSuccess(t *testing.T) {
	cfg := testConfig()
	cfg.Options = Options{Emote: true}
	cl := &fakeClassifier{
		label: classify.Positive,
		usage: &classify.Usage{Prompt: 20, Completion: 1, Total: 21},
	}
	e := New(&fakeSource{}, ModelPack{Face: &fakeFace{found: true}, Classifier: cl}, cfg)

	f := testFrame(t)
	defer f.Close()
	nod := vision.NewNodDetector(cfg.NodBufferLen, cfg.NodAmpThreshold, cfg.NodCooldown)
	var lastEmote time.Time
	res := e.analyze(&f, nod, &lastEmote)

	assert.Equal(t, EmotionPositive, res.Emotion)
	require.NotNil(t, res.Tokens)
	assert.Equal(t, 21, res.Tokens.Total)
}

func TestAnalyzeEmotionThrottled(t *testing.T) {
	cfg := testConfig()
	cfg.Options = Options{Emote: true}
	cfg.EmoteInterval = time.Hour
	cl := &fakeClassifier{label: classify.Neutral}
	e := New(&fakeSource{}, ModelPack{Face: &fakeFace{found: true}, Classifier: cl}, cfg)

	nod := vision.NewNodDetector(cfg.NodBufferLen, cfg.NodAmpThreshold, cfg.NodCooldown)
	var lastEmote time.Time
	for i := 0; i < 5; i++ {
		f := testFrame(t)
		e.analyze(&f, nod, &lastEmote)
		f.Close()
	}

	// First cycle consumes the throttle window; the rest are no-ops.
	assert.Equal(t, int32(1), atomic.LoadInt32(&cl.calls))
}

func TestAnalyzeNodWiring(t *testing.T) {
	cfg := testConfig()
	cfg.Options = Options{Nod: true}
	cfg.NodBufferLen = 10
	cfg.NodAmpThreshold = 0.01
	// Nose dips and returns between flat stretches; the shoulder reference
	// stays fixed.
	pose := &fakePose{ys: []float64{
		0.3, 0.3, 0.3, 0.3, 0.34, 0.34, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3,
	}}
	e := New(&fakeSource{}, ModelPack{Pose: pose}, cfg)

	nod := vision.NewNodDetector(cfg.NodBufferLen, cfg.NodAmpThreshold, cfg.NodCooldown)
	var lastEmote time.Time
	fired := 0
	for range pose.ys {
		f := testFrame(t)
		if e.analyze(&f, nod, &lastEmote).Nod {
			fired++
		}
		f.Close()
	}
	assert.Equal(t, 1, fired)
}
