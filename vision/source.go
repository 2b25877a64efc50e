package vision

import (
	"time"

	"gocv.io/x/gocv"
)

// Frame is one captured image sample. Ownership transfers with the value:
// whoever holds a Frame last must Close it exactly once. The engine's queues
// release frames they evict; consumers release frames they dequeue.
type Frame struct {
	Mat    gocv.Mat
	Time   time.Time
	closed bool
}

func NewFrame() Frame {
	return Frame{
		Mat:  gocv.NewMat(),
		Time: time.Now(),
	}
}

func (f *Frame) Close() {
	if f.closed {
		panic("frame already closed")
	}
	f.closed = true
	f.Mat.Close()
}

// Clone deep-copies the frame so the copy can be handed to another consumer.
func (f *Frame) Clone() Frame {
	n := Frame{
		Mat:  gocv.NewMat(),
		Time: f.Time,
	}
	f.Mat.CopyTo(&n.Mat)
	return n
}

// Source is a stream of frames, such as a camera device. The producer
// goroutine owns the full Open/Read/Close lifecycle; implementations are not
// safe for concurrent use.
type Source interface {
	// Open acquires the underlying device. Called once, from the producer
	// goroutine, before the first Read.
	Open() error

	// Read captures one frame into f, overwriting its Mat and Time. A false
	// return means a transient failure; the caller should back off and retry.
	Read(f *Frame) bool

	// Close releases the device. Safe to call after a failed Open.
	Close()
}
