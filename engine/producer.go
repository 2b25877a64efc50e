package engine

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"dinesight/metrics"
	"dinesight/util"
	"dinesight/vision"
)

// runProducer is the camera loop. It opens the source, reads frames at the
// configured pace and offers each one to the display and analysis queues
// independently. An open failure is terminal and local to this goroutine:
// the loop exits silently and the consumer just never sees a frame. Read
// failures are transient by assumption and retried after a short backoff.
func (e *Engine) runProducer(stop *util.Event, wg *sync.WaitGroup) {
	defer wg.Done()

	if err := e.src.Open(); err != nil {
		log.Errorf("Camera open failed, producer exiting: %v", err)
		return
	}
	// Release the device exactly once, whatever the exit path.
	defer e.src.Close()

	for !stop.HasBeenNotified() {
		f := vision.NewFrame()
		if !e.src.Read(&f) {
			f.Close()
			metrics.ReadFailures.Inc()
			time.Sleep(readRetryDelay)
			continue
		}
		metrics.FramesCaptured.Inc()

		// Display gets a copy, analysis takes the original. Neither put can
		// block; a full queue evicts its oldest frame instead. The frame
		// handed to the analysis queue is never touched again here.
		e.display.put(f.Clone())
		e.analysis.put(f)

		time.Sleep(e.cfg.CaptureDelay)
	}
}

func droppedFrame(queue string, f *vision.Frame) {
	metrics.FramesDropped.WithLabelValues(queue).Inc()
	f.Close()
}

func droppedResult() {
	metrics.FramesDropped.WithLabelValues("result").Inc()
}
