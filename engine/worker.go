package engine

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"dinesight/metrics"
	"dinesight/util"
	"dinesight/vision"
)

// runWorker drains the analysis queue and produces one AnalysisResult per
// frame. Cycles are strictly sequential: while the remote classification
// call is in flight no new frame is pulled, which bounds memory and API
// cost at the expense of peak throughput. Per-run detector state (the nod
// detector, the classification throttle) lives on this goroutine's stack
// and dies with the run.
func (e *Engine) runWorker(stop *util.Event, wg *sync.WaitGroup) {
	defer wg.Done()

	nod := vision.NewNodDetector(e.cfg.NodBufferLen, e.cfg.NodAmpThreshold, e.cfg.NodCooldown)
	var lastEmote time.Time

	for !stop.HasBeenNotified() {
		f, ok := e.analysis.getWait(queuePollTimeout)
		if !ok {
			// Timeout; loop around to re-check the stop signal.
			continue
		}
		res := e.analyze(&f, nod, &lastEmote)
		f.Close()
		e.results.put(res)
		metrics.CyclesTotal.Inc()
	}
}

// analyze runs one cycle over a frame: throttled emotion classification,
// then nod detection, then plate estimation. A failure in any step degrades
// only that step's fields; the worker never dies on a bad cycle.
func (e *Engine) analyze(f *vision.Frame, nod *vision.NodDetector, lastEmote *time.Time) AnalysisResult {
	res := AnalysisResult{
		Time:    f.Time,
		Display: Display{PlateRatio: -1},
	}

	if e.cfg.Options.Emote && e.models.Classifier != nil && time.Since(*lastEmote) > e.cfg.EmoteInterval {
		// Throttle from the attempt, not from success, so a failing service
		// is not hammered every cycle.
		*lastEmote = time.Now()
		e.classifyEmotion(f, &res)
	}

	if e.cfg.Options.Nod && e.models.Pose != nil {
		if lm, ok := e.models.Pose.DetectPose(f.Mat); ok {
			if nod.Update(lm.Nose.Y, lm.ShoulderMidY()) {
				res.Nod = true
				metrics.NodsTotal.Inc()
			}
		}
	}

	if e.cfg.Options.Plate {
		est := e.plate.Estimate(f.Mat)
		res.Display.PlateLabel = string(est.Status)
		res.Display.PlateRatio = est.Ratio
		res.Display.PlateCircle = est.Circle
		switch est.Status {
		case vision.LeftoverMajor:
			res.Plate = PlateUntouched
		case vision.LeftoverNone:
			res.Plate = PlateMostlyConsumed
		}
	}

	return res
}

// classifyEmotion crops the face and calls the remote service. "no face"
// and "error" are kept distinct in the display text so the consumer can
// tell nothing-to-analyze from analysis-failed; only a successful call sets
// the emotion event and token usage.
func (e *Engine) classifyEmotion(f *vision.Frame, res *AnalysisResult) {
	if e.models.Face == nil {
		return
	}
	face, ok := vision.CropFace(f.Mat, e.models.Face, minFaceConfidence)
	if !ok {
		res.Display.EmotionText = "no face"
		return
	}
	defer face.Close()

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ClassifyTimeout)
	defer cancel()

	start := time.Now()
	label, usage, err := e.models.Classifier.Classify(ctx, face)
	metrics.ClassifierLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ClassifierCalls.WithLabelValues("error").Inc()
		log.Errorf("Emotion classification failed: %v", err)
		res.Display.EmotionText = "error"
		return
	}
	metrics.ClassifierCalls.WithLabelValues("ok").Inc()

	res.Display.EmotionText = string(label)
	res.Emotion = Emotion(label)
	if usage != nil {
		res.Tokens = &TokenUsage{
			Prompt:     usage.Prompt,
			Completion: usage.Completion,
			Total:      usage.Total,
		}
		metrics.TokensTotal.WithLabelValues("prompt").Add(float64(usage.Prompt))
		metrics.TokensTotal.WithLabelValues("completion").Add(float64(usage.Completion))
	}
}
