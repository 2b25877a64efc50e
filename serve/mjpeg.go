package serve

import (
	"fmt"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// MJPEG streaming, based on implementation by saljam:
// https://github.com/saljam/mjpeg/blob/master/stream.go

const boundaryWord = "MJPEGBOUNDARY"
const headerf = "\r\n" +
	"--" + boundaryWord + "\r\n" +
	"Content-Type: image/jpeg\r\n" +
	"Content-Length: %d\r\n" +
	"X-Timestamp: 0.000000\r\n" +
	"\r\n"

// MJPEGStream serves the annotated live view to any number of HTTP clients.
// Slow clients skip frames instead of backpressuring the publisher.
type MJPEGStream struct {
	m     map[chan []byte]bool
	frame []byte

	lock sync.Mutex
}

func NewMJPEGStream() *MJPEGStream {
	return &MJPEGStream{
		m:     make(map[chan []byte]bool),
		frame: make([]byte, len(headerf)),
	}
}

// ServeHTTP implements http.Handler, serving multipart MJPEG.
func (s *MJPEGStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.WithField("addr", r.RemoteAddr).Info("MJPEG viewer connected")
	w.Header().Add("Content-Type", "multipart/x-mixed-replace;boundary="+boundaryWord)

	c := make(chan []byte)
	s.lock.Lock()
	s.m[c] = true
	s.lock.Unlock()

	for b := range c {
		if _, err := w.Write(b); err != nil {
			break
		}
	}

	s.lock.Lock()
	delete(s.m, c)
	s.lock.Unlock()
	log.WithField("addr", r.RemoteAddr).Info("MJPEG viewer disconnected")
}

func (s *MJPEGStream) empty() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.m) == 0
}

// Put publishes one frame to all connected viewers.
func (s *MJPEGStream) Put(input gocv.Mat) {
	if s.empty() {
		// Nobody is listening; don't bother encoding.
		return
	}

	encoded, err := gocv.IMEncode(".jpg", input)
	if err != nil {
		log.Errorf("Error encoding frame for MJPEG stream: %v", err)
		return
	}
	jpeg := encoded.GetBytes()

	header := fmt.Sprintf(headerf, len(jpeg))
	if len(s.frame) < len(jpeg)+len(header) {
		s.frame = make([]byte, (len(jpeg)+len(header))*2)
	}

	copy(s.frame, header)
	copy(s.frame[len(header):], jpeg)

	s.lock.Lock()
	defer s.lock.Unlock()
	for c := range s.m {
		select {
		case c <- s.frame[:(len(header) + len(jpeg))]:
		default:
			// Skip viewers not ready for the next frame.
		}
	}
}
