// Package engine runs the concurrent live-analysis pipeline: a camera
// producer goroutine fans captured frames out to a display queue and an
// analysis queue, and an analysis worker goroutine turns analysis frames
// into AnalysisResults. All cross-goroutine communication goes through
// bounded drop-on-overflow queues; producers never block on a full queue.
package engine

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"dinesight/classify"
	"dinesight/util"
	"dinesight/vision"
)

const (
	// queuePollTimeout bounds the worker's wait for the next frame; each
	// timeout is a cancellation check.
	queuePollTimeout = time.Second

	// readRetryDelay is the backoff after a transient camera read failure.
	readRetryDelay = 100 * time.Millisecond

	// stopTimeout bounds how long Stop waits for the two loops to exit.
	stopTimeout = 2 * time.Second

	// minFaceConfidence a face crop must clear before it is sent for
	// classification.
	minFaceConfidence = 0.6
)

// ModelPack bundles the capability providers the engine consumes. All are
// constructed by the caller and injected; the engine never builds or caches
// its own. Nil fields disable the corresponding analysis gracefully.
type ModelPack struct {
	Pose       vision.PoseDetector
	Face       vision.FaceDetector
	Classifier classify.Classifier
}

// Options selects which analysis passes run per cycle.
type Options struct {
	Nod   bool
	Emote bool
	Plate bool
}

// Config carries the externally supplied constants. Nothing here is
// hardcoded in the loop logic.
type Config struct {
	QueueSize       int
	CaptureDelay    time.Duration
	EmoteInterval   time.Duration
	ClassifyTimeout time.Duration
	NodBufferLen    int
	NodAmpThreshold float64
	NodCooldown     time.Duration
	Options         Options
}

// Engine owns the two pipeline goroutines, the three bounded queues and the
// run's cancellation signal. Lifecycle is Stopped -> Running -> Stopped; no
// state survives a stop/start boundary, and all cross-run accumulation
// belongs to the polling consumer, not here.
type Engine struct {
	src    vision.Source
	models ModelPack
	cfg    Config
	plate  *vision.PlateEstimator

	display  *queue[vision.Frame]
	analysis *queue[vision.Frame]
	results  *queue[AnalysisResult]

	mu      sync.Mutex
	running bool
	stop    *util.Event
	wg      *sync.WaitGroup
}

func New(src vision.Source, models ModelPack, cfg Config) *Engine {
	e := &Engine{
		src:    src,
		models: models,
		cfg:    cfg,
		plate:  vision.NewPlateEstimator(),
	}
	e.display = newQueue(cfg.QueueSize, func(f vision.Frame) {
		droppedFrame("display", &f)
	})
	e.analysis = newQueue(cfg.QueueSize, func(f vision.Frame) {
		droppedFrame("analysis", &f)
	})
	e.results = newQueue(cfg.QueueSize, func(AnalysisResult) {
		droppedResult()
	})
	return e
}

// Start spawns the camera producer and analysis worker. Calling Start on a
// running engine is a no-op; there is never more than one producer/worker
// pair alive per engine.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	stop := util.NewEvent()
	wg := &sync.WaitGroup{}
	wg.Add(2)
	go e.runProducer(stop, wg)
	go e.runWorker(stop, wg)
	e.stop = stop
	e.wg = wg
	e.running = true
	log.Info("Analysis engine started")
}

// Stop signals both loops and joins them with a bounded timeout, then
// releases any frames still queued. Thread handles are always cleared so a
// later Start spawns fresh goroutines. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	stop, wg := e.stop, e.wg
	e.running = false
	e.stop = nil
	e.wg = nil
	e.mu.Unlock()

	stop.Notify()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		log.Warnf("Engine loops did not exit within %v", stopTimeout)
	}

	e.display.drain()
	e.analysis.drain()
	e.results.drain()
	log.Info("Analysis engine stopped")
}

// LatestFrame returns the next display frame without blocking. The caller
// owns the frame and must Close it. A false return simply means nothing is
// ready yet.
func (e *Engine) LatestFrame() (vision.Frame, bool) {
	return e.display.tryGet()
}

// LatestResult returns the next analysis result without blocking.
func (e *Engine) LatestResult() (AnalysisResult, bool) {
	return e.results.tryGet()
}
