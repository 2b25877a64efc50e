package vision

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Camera captures from a local device or capture URI via OpenCV.
type Camera struct {
	// URI is a device index ("0") or any URI OpenCV can open.
	URI string

	// Requested capture resolution. The device may pick the nearest mode.
	Width, Height int

	cap *gocv.VideoCapture
}

func NewCamera(uri string, width, height int) *Camera {
	return &Camera{
		URI:    uri,
		Width:  width,
		Height: height,
	}
}

func (c *Camera) Open() error {
	cap, err := gocv.OpenVideoCapture(c.URI)
	if err != nil {
		return fmt.Errorf("failed to open capture %q: %w", c.URI, err)
	}
	cap.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	c.cap = cap
	log.WithField("uri", c.URI).Infof("Camera opened at %dx%d", c.Width, c.Height)
	return nil
}

func (c *Camera) Read(f *Frame) bool {
	f.Time = time.Now()
	if ok := c.cap.Read(&f.Mat); !ok {
		return false
	}
	return !f.Mat.Empty()
}

// Close releases the device handle. Repeated calls are no-ops so the
// producer's deferred release stays single-shot regardless of exit path.
func (c *Camera) Close() {
	if c.cap == nil {
		return
	}
	if err := c.cap.Close(); err != nil {
		log.Errorf("Error releasing capture device: %v", err)
	}
	c.cap = nil
}
