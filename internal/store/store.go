// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/trivia-bot/internal/domain"
)

// Repository opens transaction scopes against the trivia tables.
type Repository interface {
	// InTx runs fn inside a single transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(q Queries) error) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Queries are the reads and writes available inside a transaction.
// Lookups return nil, nil when no row matches.
type Queries interface {
	// OpenSession returns the channel's session that is not finished.
	OpenSession(ctx context.Context, channelID int64) (*domain.Session, error)

	// ActiveSession returns the channel's session in the active state.
	ActiveSession(ctx context.Context, channelID int64) (*domain.Session, error)

	// LatestSession returns the most recently created session for a channel in any state.
	LatestSession(ctx context.Context, channelID int64) (*domain.Session, error)

	// CreateSession inserts a session and sets its SessionID.
	CreateSession(ctx context.Context, session *domain.Session) error

	// UpdateSession persists state, current question and finish time.
	UpdateSession(ctx context.Context, session *domain.Session) error

	// GetQuestion retrieves a question by ID.
	GetQuestion(ctx context.Context, questionID int64) (*domain.Question, error)

	// ActiveQuestionIDs returns the IDs of all active questions in ascending order.
	ActiveQuestionIDs(ctx context.Context) ([]int64, error)

	// ListActiveQuestions returns active questions, filtered by exact category when non-empty.
	ListActiveQuestions(ctx context.Context, category string) ([]*domain.Question, error)

	// QuestionTextExists reports whether a question with exactly this text exists.
	QuestionTextExists(ctx context.Context, text string) (bool, error)

	// CreateQuestion inserts a question and sets its QuestionID.
	CreateQuestion(ctx context.Context, question *domain.Question) error

	// HasAnswered reports whether the player already answered the question in the session.
	HasAnswered(ctx context.Context, sessionID, questionID, playerID int64) (bool, error)

	// CreateAnswer inserts an answer and sets its AnswerID.
	CreateAnswer(ctx context.Context, answer *domain.Answer) error

	// SessionScores aggregates answers per player, best first.
	SessionScores(ctx context.Context, sessionID int64) ([]domain.Score, error)
}
