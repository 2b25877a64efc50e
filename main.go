package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"dinesight/classify"
	"dinesight/config"
	"dinesight/engine"
	"dinesight/history"
	"dinesight/metrics"
	"dinesight/serve"
	"dinesight/vision"
)

var (
	configPath = flag.String("config", "", "Path to JSON configuration file. Defaults apply when empty.")
	camera     = flag.String("camera", "", "Camera device index or URI, overriding the config file.")
	verbose    = flag.Bool("verbose", false, "Enable debug logging.")
)

// displayPollInterval paces the consumer loop; roughly the display rate.
const displayPollInterval = 33 * time.Millisecond

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Default()
	if *configPath != "" {
		if err := config.Load(ctx, *configPath); err != nil {
			log.Fatalf("Failed to load config from %v: %v", *configPath, err)
		}
		cfg = config.Get()
	}
	if *camera != "" {
		cfg.CameraURI = *camera
	}

	pack := buildModelPack(cfg)

	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}

	eng := engine.New(
		vision.NewCamera(cfg.CameraURI, cfg.CaptureWidth, cfg.CaptureHeight),
		pack,
		engine.Config{
			QueueSize:       cfg.QueueSize,
			CaptureDelay:    cfg.CaptureDelay(),
			EmoteInterval:   cfg.EmoteInterval(),
			ClassifyTimeout: cfg.ClassifyTimeout(),
			NodBufferLen:    cfg.NodBufferLen,
			NodAmpThreshold: cfg.NodAmpThreshold,
			NodCooldown:     cfg.NodCooldown(),
			Options: engine.Options{
				Nod:   cfg.Options.Nod,
				Emote: cfg.Options.Emote,
				Plate: cfg.Options.Plate,
			},
		})

	stream := serve.NewMJPEGStream()
	hub := serve.NewResultHub()

	http.Handle("/live", stream)
	http.Handle("/results", hub)
	http.Handle("/metrics", metrics.Handler())
	go func() {
		log.Infof("Hosting live view on port %d", cfg.Port)
		h := handlers.LoggingHandler(os.Stdout, http.DefaultServeMux)
		log.Error(http.ListenAndServe(fmt.Sprintf(":%d", cfg.Port), h))
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	eng.Start()
	sess := history.NewSession()
	log.WithField("session", sess.ID).Info("Session started")

	// Polling consumer: pulls the latest frame and the latest result,
	// renders, and owns every cross-cycle tally.
	var last engine.AnalysisResult
	ticker := time.NewTicker(displayPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if res, ok := eng.LatestResult(); ok {
				sess.Apply(res)
				hub.Broadcast(res)
				last = res
			}
			if f, ok := eng.LatestFrame(); ok {
				drawOverlay(&f, last, sess)
				stream.Put(f.Mat)
				f.Close()
			}
		case sig := <-sigs:
			log.Infof("Caught signal %v, shutting down", sig)
			eng.Stop()
			if err := store.Save(sess); err != nil {
				log.Errorf("Failed to save session: %v", err)
			}
			return
		}
	}
}

// buildModelPack constructs the capability providers once at startup and
// hands them to the engine by reference. Anything that cannot be built is
// left nil and its analysis pass degrades to disabled.
func buildModelPack(cfg *config.Config) engine.ModelPack {
	var pack engine.ModelPack

	if cfg.PoseProtoPath != "" && cfg.PoseModelPath != "" {
		pose, err := vision.NewDNNPose(cfg.PoseProtoPath, cfg.PoseModelPath)
		if err != nil {
			log.Errorf("Pose detector unavailable, nod detection disabled: %v", err)
		} else {
			pack.Pose = pose
		}
	}

	if cfg.FaceProtoPath != "" && cfg.FaceModelPath != "" {
		face, err := vision.NewDNNFace(cfg.FaceProtoPath, cfg.FaceModelPath)
		if err != nil {
			log.Errorf("Face detector unavailable, emotion analysis disabled: %v", err)
		} else {
			pack.Face = face
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		pack.Classifier = classify.NewOpenAI(key, cfg.EmotionModel)
	} else {
		log.Info("OPENAI_API_KEY not set; emotion classification disabled")
	}

	return pack
}

var (
	colorText   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorBG     = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	colorCircle = color.RGBA{R: 0, G: 220, B: 90, A: 255}
)

// drawOverlay renders the latest analysis state onto a display frame.
func drawOverlay(f *vision.Frame, res engine.AnalysisResult, sess *history.Session) {
	if c := res.Display.PlateCircle; c != nil {
		gocv.Circle(&f.Mat, image.Pt(c.X, c.Y), c.R, colorCircle, 2)
	}

	lines := []string{
		f.Time.Format("2006-01-02 15:04:05 MST"),
		fmt.Sprintf("nods: %d", sess.Nods),
	}
	if res.Display.EmotionText != "" {
		lines = append(lines, "emotion: "+res.Display.EmotionText)
	}
	if res.Display.PlateLabel != "" {
		lines = append(lines, "plate: "+res.Display.PlateLabel)
	}

	font := gocv.FontHersheySimplex
	scale := 0.5
	thickness := 1
	pad := 2
	y := 0
	for _, text := range lines {
		sz := gocv.GetTextSize(text, font, scale, thickness)
		gocv.Rectangle(&f.Mat, image.Rect(0, y, sz.X+pad*2, y+sz.Y+pad*2), colorBG, -1)
		gocv.PutText(&f.Mat, text, image.Pt(pad, y+sz.Y+pad), font, scale, colorText, thickness)
		y += sz.Y + pad*2
	}
}
