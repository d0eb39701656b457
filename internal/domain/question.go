package domain

import (
	"time"
)

const (
	// DefaultCategory is the storage default for questions without a category.
	DefaultCategory = "general"
	// CustomCategory is used for player-submitted questions without a category.
	CustomCategory = "custom"
	// DefaultDifficulty is assigned to seeded questions.
	DefaultDifficulty = "medium"
)

// Question is a trivia prompt with its correct answer.
type Question struct {
	QuestionID    int64     `json:"question_id"`
	Text          string    `json:"text"`
	CorrectAnswer string    `json:"-"`
	Category      string    `json:"category"`
	Difficulty    string    `json:"difficulty,omitempty"`
	CreatorID     *int64    `json:"creator_id,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// IsSystem returns true for questions loaded by the seeder.
func (q *Question) IsSystem() bool {
	return q.CreatorID == nil
}
