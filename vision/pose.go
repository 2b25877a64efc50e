package vision

import (
	"fmt"
	"image"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Landmark is a detected body keypoint in normalized [0,1] coordinates.
type Landmark struct {
	X, Y       float64
	Confidence float32
}

// PoseLandmarks carries the keypoints the nod detector needs.
type PoseLandmarks struct {
	Nose          Landmark
	LeftShoulder  Landmark
	RightShoulder Landmark
}

// ShoulderMidY is the vertical midpoint of the two shoulders, the reference
// the nose position is measured against.
func (p *PoseLandmarks) ShoulderMidY() float64 {
	return (p.LeftShoulder.Y + p.RightShoulder.Y) / 2
}

// PoseDetector produces body landmarks for a frame. A false return means no
// person was found, which is a normal outcome rather than an error.
type PoseDetector interface {
	DetectPose(input gocv.Mat) (*PoseLandmarks, bool)
}

// COCO keypoint heatmap channels for the OpenPose-style body model.
const (
	poseChanNose          = 0
	poseChanRightShoulder = 2
	poseChanLeftShoulder  = 5
)

// DNNPose runs an OpenPose-style body network and reads the nose and
// shoulder keypoints out of its heatmaps.
type DNNPose struct {
	net gocv.Net

	// InputSize is the square network input; 368 matches the stock model.
	InputSize int

	// MinConfidence is the heatmap peak value below which a keypoint is
	// treated as absent.
	MinConfidence float32
}

func NewDNNPose(prototxt, caffeModel string) (*DNNPose, error) {
	net := gocv.ReadNet(caffeModel, prototxt)
	if net.Empty() {
		return nil, fmt.Errorf("failed to read pose network from %v / %v", prototxt, caffeModel)
	}
	return &DNNPose{
		net:           net,
		InputSize:     368,
		MinConfidence: 0.1,
	}, nil
}

func (d *DNNPose) DetectPose(input gocv.Mat) (*PoseLandmarks, bool) {
	scale := image.Point{X: d.InputSize, Y: d.InputSize}
	blob := gocv.BlobFromImage(input, 1.0/255.0, scale, gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	nose, okN := d.keypoint(out, poseChanNose)
	rs, okR := d.keypoint(out, poseChanRightShoulder)
	ls, okL := d.keypoint(out, poseChanLeftShoulder)
	if !okN || !okR || !okL {
		return nil, false
	}
	return &PoseLandmarks{
		Nose:          nose,
		LeftShoulder:  ls,
		RightShoulder: rs,
	}, true
}

// keypoint finds the peak of one heatmap channel and normalizes its
// location to [0,1].
func (d *DNNPose) keypoint(out gocv.Mat, channel int) (Landmark, bool) {
	hm := gocv.GetBlobChannel(out, 0, channel)
	defer hm.Close()

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(hm)
	if maxVal < d.MinConfidence {
		return Landmark{}, false
	}
	return Landmark{
		X:          float64(maxLoc.X) / float64(hm.Cols()),
		Y:          float64(maxLoc.Y) / float64(hm.Rows()),
		Confidence: maxVal,
	}, true
}

func (d *DNNPose) Close() {
	if err := d.net.Close(); err != nil {
		log.Errorf("Error closing pose network: %v", err)
	}
}
