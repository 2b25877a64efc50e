package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// PlateStatus labels the outcome of one leftover estimate. Every status is
// renderable; only LeftoverMajor and LeftoverNone carry a judgment.
type PlateStatus string

const (
	// PlateNotFound means no plate-like circle was detected.
	PlateNotFound PlateStatus = "no plate detected"
	// PlateIncomplete means the plate circle extends outside the frame, so
	// no leftover judgment is made.
	PlateIncomplete PlateStatus = "incomplete plate"
	// PlateInvalid means the plate region degenerated to zero usable pixels.
	PlateInvalid PlateStatus = "invalid plate region"
	// LeftoverMajor means at least half the plate area still reads as food.
	LeftoverMajor PlateStatus = "leftover 50% or more"
	// LeftoverNone means no significant leftover remains.
	LeftoverNone PlateStatus = "no significant leftover"
)

// Circle is a detected plate boundary in pixel coordinates.
type Circle struct {
	X int `json:"x"`
	Y int `json:"y"`
	R int `json:"r"`
}

// PlateEstimate is the full per-frame result: the ratio and circle are
// populated whenever available, even for non-judgment statuses, so the UI
// can always render what was seen. Ratio is -1 when it was not computed.
type PlateEstimate struct {
	Status PlateStatus
	Ratio  float64
	Circle *Circle
}

// PlateEstimator finds the largest plate-like circle in a frame and measures
// the fraction of its area that is not bare plate surface. It is stateless;
// one instance may be reused across frames but not across goroutines.
type PlateEstimator struct {
	// Hough transform tuning.
	DP          float64
	MinDist     float64
	CannyThresh float64
	AccumThresh float64
	MinRadius   int
	MaxRadius   int

	// Bare plate surface: saturation below SatMax and brightness above
	// ValMin. Everything else inside the circle counts as food or residue.
	SatMax float32
	ValMin float32

	// LeftoverThresh is the food-pixel fraction at or above which the plate
	// counts as mostly unconsumed.
	LeftoverThresh float64
}

func NewPlateEstimator() *PlateEstimator {
	return &PlateEstimator{
		DP:             1.2,
		MinDist:        120,
		CannyThresh:    100,
		AccumThresh:    30,
		MinRadius:      60,
		MaxRadius:      0,
		SatMax:         35,
		ValMin:         210,
		LeftoverThresh: 0.5,
	}
}

// Estimate runs the full pipeline on one BGR frame.
func (e *PlateEstimator) Estimate(input gocv.Mat) PlateEstimate {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(input, &gray, gocv.ColorBGRToGray)
	gocv.GaussianBlur(gray, &gray, image.Pt(9, 9), 2, 2, gocv.BorderDefault)

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(gray, &circles, gocv.HoughGradient,
		e.DP, e.MinDist, e.CannyThresh, e.AccumThresh, e.MinRadius, e.MaxRadius)

	if circles.Empty() || circles.Cols() == 0 {
		return PlateEstimate{Status: PlateNotFound, Ratio: -1}
	}

	// Largest circle wins; plates dominate cups and bowls.
	best := Circle{R: -1}
	for i := 0; i < circles.Cols(); i++ {
		v := circles.GetVecfAt(0, i)
		if int(v[2]) > best.R {
			best = Circle{X: int(v[0]), Y: int(v[1]), R: int(v[2])}
		}
	}

	h, w := input.Rows(), input.Cols()
	if best.X-best.R < 0 || best.Y-best.R < 0 || best.X+best.R >= w || best.Y+best.R >= h {
		return PlateEstimate{Status: PlateIncomplete, Ratio: -1, Circle: &best}
	}

	roi := input.Region(image.Rect(best.X-best.R, best.Y-best.R, best.X+best.R, best.Y+best.R))
	defer roi.Close()

	mask := gocv.NewMatWithSize(2*best.R, 2*best.R, gocv.MatTypeCV8U)
	defer mask.Close()
	gocv.Circle(&mask, image.Pt(best.R, best.R), best.R-2, color.RGBA{255, 255, 255, 255}, -1)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(roi, &hsv, gocv.ColorBGRToHSV)
	channels := gocv.Split(hsv)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	// Bare plate surface = low saturation AND high brightness.
	satLow := gocv.NewMat()
	defer satLow.Close()
	gocv.Threshold(channels[1], &satLow, e.SatMax, 255, gocv.ThresholdBinaryInv)

	valHigh := gocv.NewMat()
	defer valHigh.Close()
	gocv.Threshold(channels[2], &valHigh, e.ValMin, 255, gocv.ThresholdBinary)

	food := gocv.NewMat()
	defer food.Close()
	gocv.BitwiseAnd(satLow, valHigh, &food)
	gocv.BitwiseNot(food, &food)
	gocv.BitwiseAnd(food, mask, &food)

	// Opening suppresses single-pixel speckle in the food mask.
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(3, 3))
	defer kernel.Close()
	gocv.MorphologyEx(food, &food, gocv.MorphOpen, kernel)

	total := gocv.CountNonZero(mask)
	if total == 0 {
		return PlateEstimate{Status: PlateInvalid, Ratio: -1, Circle: &best}
	}
	ratio := float64(gocv.CountNonZero(food)) / float64(total)

	status := LeftoverNone
	if ratio >= e.LeftoverThresh {
		status = LeftoverMajor
	}
	return PlateEstimate{Status: status, Ratio: ratio, Circle: &best}
}
