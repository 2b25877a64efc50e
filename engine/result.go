package engine

import (
	"time"

	"dinesight/vision"
)

// Emotion is the three-class facial emotion event. Empty means no
// classification happened (or none succeeded) this cycle.
type Emotion string

const (
	EmotionNone     Emotion = ""
	EmotionPositive Emotion = "positive"
	EmotionNeutral  Emotion = "neutral"
	EmotionNegative Emotion = "negative"
)

// PlateState is the plate leftover event. Empty means no judgment was made
// this cycle (disabled, no plate, or incomplete plate).
type PlateState string

const (
	PlateNone           PlateState = ""
	PlateMostlyConsumed PlateState = "mostly_consumed"
	PlateUntouched      PlateState = "untouched"
)

// TokenUsage meters one successful remote classification call.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Display carries render-only information for the UI overlay. It is
// populated even when the corresponding event field is empty, so the
// consumer can always show what the analyzers saw.
type Display struct {
	PlateLabel  string         `json:"plate_label,omitempty"`
	PlateRatio  float64        `json:"plate_ratio"`
	PlateCircle *vision.Circle `json:"plate_circle,omitempty"`
	EmotionText string         `json:"emotion_text,omitempty"`
}

// AnalysisResult is the output of one worker cycle. It is produced fresh
// each cycle, never mutated after being queued, and consumed at most once.
// Any combination of the three events may be set or empty; consumers must
// not assume ordering between them, and must tolerate missing cycles since
// both queue overflow and throttling shed load.
type AnalysisResult struct {
	Time    time.Time   `json:"time"`
	Nod     bool        `json:"nod_event"`
	Emotion Emotion     `json:"emotion_event,omitempty"`
	Plate   PlateState  `json:"plate_event,omitempty"`
	Tokens  *TokenUsage `json:"token_usage,omitempty"`
	Display Display     `json:"display_info"`
}
