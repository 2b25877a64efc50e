package config

import (
	"fmt"
	"time"
)

// Options selects which analysis passes the worker runs per cycle.
type Options struct {
	Nod   bool
	Emote bool
	Plate bool
}

// Config holds all externally tunable constants. Fields left zero in the
// config file are filled from Default before validation, so a partial file
// is fine.
type Config struct {
	// CameraURI is a device index ("0") or a capture URI.
	CameraURI string

	// Capture resolution requested from the device.
	CaptureWidth  int
	CaptureHeight int

	// CaptureDelayMS is the pause between device reads, which caps the
	// capture rate against downstream analysis cost.
	CaptureDelayMS int

	// QueueSize is the capacity of the display, analysis and result queues.
	// Small values (1-2) keep end-to-end latency at its minimum.
	QueueSize int

	// EmoteIntervalSec is the minimum wall-clock spacing between two remote
	// classification calls.
	EmoteIntervalSec float64

	// ClassifyTimeoutSec bounds a single remote classification call.
	ClassifyTimeoutSec float64

	// Nod detector tuning.
	NodBufferLen    int
	NodAmpThreshold float64
	NodCooldownSec  float64

	// EmotionModel is the multimodal model used for face classification.
	EmotionModel string

	// Pose / face detector model files. Empty paths disable the detector.
	PoseProtoPath string
	PoseModelPath string
	FaceProtoPath string
	FaceModelPath string

	// HistoryPath is the sqlite file for per-session summaries.
	HistoryPath string

	// Port hosts the live view, result socket and metrics.
	Port int

	Options Options
}

// Default returns the documented baseline configuration.
func Default() *Config {
	return &Config{
		CameraURI:          "0",
		CaptureWidth:       640,
		CaptureHeight:      360,
		CaptureDelayMS:     20,
		QueueSize:          2,
		EmoteIntervalSec:   1.5,
		ClassifyTimeoutSec: 10,
		NodBufferLen:       36,
		NodAmpThreshold:    0.03,
		NodCooldownSec:     1.0,
		EmotionModel:       "gpt-4o-mini",
		HistoryPath:        "dinesight.db",
		Port:               8080,
		Options: Options{
			Nod:   true,
			Emote: true,
			Plate: true,
		},
	}
}

// merge fills zero-valued fields of c from the defaults.
func (c *Config) merge(d *Config) {
	if c.CameraURI == "" {
		c.CameraURI = d.CameraURI
	}
	if c.CaptureWidth == 0 {
		c.CaptureWidth = d.CaptureWidth
	}
	if c.CaptureHeight == 0 {
		c.CaptureHeight = d.CaptureHeight
	}
	if c.CaptureDelayMS == 0 {
		c.CaptureDelayMS = d.CaptureDelayMS
	}
	if c.QueueSize == 0 {
		c.QueueSize = d.QueueSize
	}
	if c.EmoteIntervalSec == 0 {
		c.EmoteIntervalSec = d.EmoteIntervalSec
	}
	if c.ClassifyTimeoutSec == 0 {
		c.ClassifyTimeoutSec = d.ClassifyTimeoutSec
	}
	if c.NodBufferLen == 0 {
		c.NodBufferLen = d.NodBufferLen
	}
	if c.NodAmpThreshold == 0 {
		c.NodAmpThreshold = d.NodAmpThreshold
	}
	if c.NodCooldownSec == 0 {
		c.NodCooldownSec = d.NodCooldownSec
	}
	if c.EmotionModel == "" {
		c.EmotionModel = d.EmotionModel
	}
	if c.HistoryPath == "" {
		c.HistoryPath = d.HistoryPath
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.CaptureWidth <= 0 || c.CaptureHeight <= 0 {
		return fmt.Errorf("invalid capture resolution %dx%d", c.CaptureWidth, c.CaptureHeight)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	}
	if c.CaptureDelayMS < 0 {
		return fmt.Errorf("capture delay must not be negative, got %dms", c.CaptureDelayMS)
	}
	if c.EmoteIntervalSec < 0 {
		return fmt.Errorf("emote interval must not be negative, got %v", c.EmoteIntervalSec)
	}
	if c.NodBufferLen < 2 {
		return fmt.Errorf("nod buffer length must be at least 2, got %d", c.NodBufferLen)
	}
	if c.NodAmpThreshold <= 0 {
		return fmt.Errorf("nod amplitude threshold must be positive, got %v", c.NodAmpThreshold)
	}
	return nil
}

func (c *Config) CaptureDelay() time.Duration {
	return time.Duration(c.CaptureDelayMS) * time.Millisecond
}

func (c *Config) EmoteInterval() time.Duration {
	return time.Duration(c.EmoteIntervalSec * float64(time.Second))
}

func (c *Config) ClassifyTimeout() time.Duration {
	return time.Duration(c.ClassifyTimeoutSec * float64(time.Second))
}

func (c *Config) NodCooldown() time.Duration {
	return time.Duration(c.NodCooldownSec * float64(time.Second))
}
