// Package history keeps per-session summary rows. All accumulation happens
// in the polling consumer that owns the Session value; the engine itself
// persists nothing. One row is written per run, at shutdown.
package history

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"dinesight/engine"
)

// Session is the running tally for one engine run plus its stored form.
type Session struct {
	ID        string `gorm:"primaryKey"`
	StartedAt time.Time
	EndedAt   time.Time

	Nods             int
	EmotionPositive  int
	EmotionNeutral   int
	EmotionNegative  int
	PlateUntouched   int
	PlateConsumed    int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// Apply folds one analysis result into the tally. Single-owner: only the
// polling consumer calls this, so no locking is needed.
func (s *Session) Apply(res engine.AnalysisResult) {
	if res.Nod {
		s.Nods++
	}
	switch res.Emotion {
	case engine.EmotionPositive:
		s.EmotionPositive++
	case engine.EmotionNeutral:
		s.EmotionNeutral++
	case engine.EmotionNegative:
		s.EmotionNegative++
	}
	switch res.Plate {
	case engine.PlateUntouched:
		s.PlateUntouched++
	case engine.PlateMostlyConsumed:
		s.PlateConsumed++
	}
	if res.Tokens != nil {
		s.PromptTokens += res.Tokens.Prompt
		s.CompletionTokens += res.Tokens.Completion
		s.TotalTokens += res.Tokens.Total
	}
}

// Store persists session summaries to a sqlite file.
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.AutoMigrate(&Session{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save writes the finished session. EndedAt is stamped here if the caller
// hasn't already.
func (s *Store) Save(sess *Session) error {
	if sess.EndedAt.IsZero() {
		sess.EndedAt = time.Now()
	}
	if err := s.db.Create(sess).Error; err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	log.WithField("session", sess.ID).Infof("Session saved: %d nods, %d/%d/%d emotions, %d tokens",
		sess.Nods, sess.EmotionPositive, sess.EmotionNeutral, sess.EmotionNegative, sess.TotalTokens)
	return nil
}

// Recent returns up to n sessions, newest first.
func (s *Store) Recent(n int) ([]Session, error) {
	var out []Session
	if err := s.db.Order("started_at desc").Limit(n).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
