package domain

import (
	"time"
)

// Answer is one player's submission for a question within a session.
type Answer struct {
	AnswerID   int64     `json:"answer_id"`
	SessionID  int64     `json:"session_id"`
	QuestionID int64     `json:"question_id"`
	PlayerID   int64     `json:"player_id"`
	Text       string    `json:"text"`
	IsCorrect  bool      `json:"is_correct"`
	AnsweredAt time.Time `json:"answered_at"`
}

// Score aggregates a player's answers within a session.
type Score struct {
	PlayerID int64 `json:"player_id"`
	Correct  int   `json:"correct"`
	Total    int   `json:"total"`
}
