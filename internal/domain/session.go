// Package domain contains core domain types for the trivia bot.
package domain

import (
	"time"
)

// SessionState is the lifecycle state of a trivia session.
type SessionState string

const (
	SessionWaiting  SessionState = "waiting"
	SessionActive   SessionState = "active"
	SessionFinished SessionState = "finished"
)

// Valid reports whether s is one of the known states.
func (s SessionState) Valid() bool {
	switch s {
	case SessionWaiting, SessionActive, SessionFinished:
		return true
	}
	return false
}

// Session is one trivia game bound to a chat channel.
type Session struct {
	SessionID         int64        `json:"session_id"`
	ChannelID         int64        `json:"channel_id"`
	CreatorID         int64        `json:"creator_id"`
	State             SessionState `json:"state"`
	CurrentQuestionID *int64       `json:"current_question_id,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	FinishedAt        *time.Time   `json:"finished_at,omitempty"`
}

// HasCurrentQuestion returns true if a question has been served and the
// session is accepting answers for it.
func (s *Session) HasCurrentQuestion() bool {
	return s.State == SessionActive && s.CurrentQuestionID != nil
}

// Serve sets q as the current question and activates the session.
func (s *Session) Serve(questionID int64) {
	id := questionID
	s.CurrentQuestionID = &id
	s.State = SessionActive
}

// Finish marks the session finished at the given time.
func (s *Session) Finish(at time.Time) {
	s.State = SessionFinished
	s.FinishedAt = &at
}
