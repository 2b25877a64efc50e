package vision

import (
	"fmt"
	"image"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// FaceDetector locates the most confident face in a frame. A false return
// means no face; like pose detection this is a normal per-frame outcome.
type FaceDetector interface {
	DetectFace(input gocv.Mat) (image.Rectangle, float32, bool)
}

// DNNFace wraps the res10 SSD face model. Detections come out of the
// network as rows of [_, class, confidence, left, top, right, bottom] with
// normalized coordinates.
type DNNFace struct {
	net gocv.Net

	// MinConfidence filters out weak detections before they are reported.
	MinConfidence float32
}

func NewDNNFace(prototxt, caffeModel string) (*DNNFace, error) {
	net := gocv.ReadNet(caffeModel, prototxt)
	if net.Empty() {
		return nil, fmt.Errorf("failed to read face network from %v / %v", prototxt, caffeModel)
	}
	return &DNNFace{
		net:           net,
		MinConfidence: 0.5,
	}, nil
}

func (d *DNNFace) DetectFace(input gocv.Mat) (image.Rectangle, float32, bool) {
	scale := image.Point{X: 300, Y: 300}
	blob := gocv.BlobFromImage(input, 1.0, scale, gocv.NewScalar(104, 177, 123, 0), false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	detections := gocv.GetBlobChannel(out, 0, 0)
	defer detections.Close()

	var best image.Rectangle
	var bestConf float32
	for r := 0; r < detections.Rows(); r++ {
		confidence := detections.GetFloatAt(r, 2)
		if confidence < d.MinConfidence || confidence <= bestConf {
			continue
		}
		left := int(detections.GetFloatAt(r, 3) * float32(input.Cols()))
		top := int(detections.GetFloatAt(r, 4) * float32(input.Rows()))
		right := int(detections.GetFloatAt(r, 5) * float32(input.Cols()))
		bottom := int(detections.GetFloatAt(r, 6) * float32(input.Rows()))
		best = image.Rect(left, top, right, bottom)
		bestConf = confidence
	}
	if bestConf == 0 {
		return image.Rectangle{}, 0, false
	}
	return best, bestConf, true
}

func (d *DNNFace) Close() {
	if err := d.net.Close(); err != nil {
		log.Errorf("Error closing face network: %v", err)
	}
}

// CropFace cuts the most confident face region out of the frame, clamped to
// the frame bounds. The returned Mat is a copy the caller must Close. A
// false return means no face cleared minConf.
func CropFace(input gocv.Mat, d FaceDetector, minConf float32) (gocv.Mat, bool) {
	rect, conf, ok := d.DetectFace(input)
	if !ok || conf < minConf {
		return gocv.Mat{}, false
	}
	bounds := image.Rect(0, 0, input.Cols(), input.Rows())
	rect = rect.Intersect(bounds)
	if rect.Empty() {
		return gocv.Mat{}, false
	}
	region := input.Region(rect)
	defer region.Close()
	crop := gocv.NewMat()
	region.CopyTo(&crop)
	return crop, true
}
