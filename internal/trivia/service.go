// Package trivia implements the trivia game rules: session lifecycle,
// question selection, answer checking and score aggregation.
package trivia

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ashureev/trivia-bot/internal/domain"
	"github.com/ashureev/trivia-bot/internal/shared"
	"github.com/ashureev/trivia-bot/internal/store"
)

// MinQuestionLength is the minimum number of characters in a trimmed question.
const MinQuestionLength = 10

// operation names an exported Service method for logs and generic errors.
type operation struct {
	name     string
	failure  string
	conflict *Error // returned when a unique index rejects the write
}

var (
	opCreateSession = operation{"create_session", "An error occurred while creating the trivia session.", ErrSessionExists}
	opStopSession   = operation{"stop_session", "An error occurred while stopping the trivia session.", nil}
	opNextQuestion  = operation{"next_question", "An error occurred while getting the next question.", nil}
	opAnswer        = operation{"answer_question", "An error occurred while submitting your answer.", ErrAlreadyAnswered}
	opAddQuestion   = operation{"add_question", "An error occurred while adding the question.", nil}
	opScores        = operation{"get_scores", "An error occurred while getting scores.", nil}
	opListQuestions = operation{"list_questions", "An error occurred while listing questions.", nil}
	opSessionStatus = operation{"session_status", "An error occurred while loading the trivia session.", nil}
)

// Service runs trivia operations. It holds no game state of its own; every
// call opens one transaction on the repository.
type Service struct {
	repo   store.Repository
	logger *slog.Logger
	now    func() time.Time
	intn   func(n int) int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRand makes question selection draw from r.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) {
		if r == nil {
			return
		}
		var mu sync.Mutex
		s.intn = func(n int) int {
			mu.Lock()
			defer mu.Unlock()
			return r.IntN(n)
		}
	}
}

// NewService creates a trivia service backed by repo.
func NewService(repo store.Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
		intn:   rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession starts a waiting session in the channel.
func (s *Service) CreateSession(ctx context.Context, channelID, creatorID int64) (string, error) {
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		existing, err := q.OpenSession(ctx, channelID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrSessionExists
		}

		return q.CreateSession(ctx, &domain.Session{
			ChannelID: channelID,
			CreatorID: creatorID,
			State:     domain.SessionWaiting,
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		return "", s.fail(opCreateSession, err, "channel_id", channelID, "user_id", creatorID)
	}

	s.logger.Info("Trivia session created", "channel_id", channelID, "creator_id", creatorID)
	return "Trivia session created! Use `!trivia next` to start the first question.", nil
}

// StopSession finishes the channel's session. Only its creator may stop it.
func (s *Service) StopSession(ctx context.Context, channelID, userID int64) (string, error) {
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		session, err := q.OpenSession(ctx, channelID)
		if err != nil {
			return err
		}
		if session == nil {
			return ErrNoSession
		}
		if session.CreatorID != userID {
			return ErrNotCreator
		}

		session.Finish(s.now())
		return q.UpdateSession(ctx, session)
	})
	if err != nil {
		return "", s.fail(opStopSession, err, "channel_id", channelID, "user_id", userID)
	}

	s.logger.Info("Trivia session stopped", "channel_id", channelID, "user_id", userID)
	return "Trivia session stopped.", nil
}

// Prompt is a question served to a channel.
type Prompt struct {
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
}

// NextQuestion picks an active question uniformly at random and makes it the
// session's current question. The same question may be served again.
func (s *Service) NextQuestion(ctx context.Context, channelID int64) (Prompt, error) {
	var prompt Prompt
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		session, err := q.OpenSession(ctx, channelID)
		if err != nil {
			return err
		}
		if session == nil {
			return ErrNoSession
		}

		ids, err := q.ActiveQuestionIDs(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return ErrNoQuestions
		}

		question, err := q.GetQuestion(ctx, ids[s.intn(len(ids))])
		if err != nil {
			return err
		}
		if question == nil {
			return ErrNoQuestions
		}

		session.Serve(question.QuestionID)
		if err := q.UpdateSession(ctx, session); err != nil {
			return err
		}

		prompt = Prompt{QuestionID: question.QuestionID, Text: question.Text}
		return nil
	})
	if err != nil {
		return Prompt{}, s.fail(opNextQuestion, err, "channel_id", channelID)
	}
	return prompt, nil
}

// Verdict is the outcome of a submitted answer.
type Verdict struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
}

// String renders the verdict for chat.
func (v Verdict) String() string {
	if v.Correct {
		return "🎉 Correct! The answer was: " + v.CorrectAnswer
	}
	return "❌ Incorrect. The correct answer was: " + v.CorrectAnswer
}

// AnswerQuestion records a player's answer to the current question. Each
// player may answer a given question once per session.
func (s *Service) AnswerQuestion(ctx context.Context, channelID, userID int64, text string) (Verdict, error) {
	var verdict Verdict
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		session, err := q.ActiveSession(ctx, channelID)
		if err != nil {
			return err
		}
		if session == nil || !session.HasCurrentQuestion() {
			return ErrNoActiveQuestion
		}
		questionID := *session.CurrentQuestionID

		answered, err := q.HasAnswered(ctx, session.SessionID, questionID, userID)
		if err != nil {
			return err
		}
		if answered {
			return ErrAlreadyAnswered
		}

		question, err := q.GetQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		if question == nil {
			return ErrQuestionMissing
		}

		correct := IsCorrect(text, question.CorrectAnswer)
		if err := q.CreateAnswer(ctx, &domain.Answer{
			SessionID:  session.SessionID,
			QuestionID: questionID,
			PlayerID:   userID,
			Text:       text,
			IsCorrect:  correct,
			AnsweredAt: s.now(),
		}); err != nil {
			return err
		}

		verdict = Verdict{Correct: correct, CorrectAnswer: question.CorrectAnswer}
		return nil
	})
	if err != nil {
		return Verdict{}, s.fail(opAnswer, err, "channel_id", channelID, "user_id", userID)
	}
	return verdict, nil
}

// IsCorrect compares a submission to the correct answer ignoring case and
// surrounding whitespace.
func IsCorrect(submitted, correct string) bool {
	return strings.ToLower(strings.TrimSpace(submitted)) == strings.ToLower(strings.TrimSpace(correct))
}

// AddQuestion stores a player-submitted question. A blank category becomes
// "custom".
func (s *Service) AddQuestion(ctx context.Context, userID int64, text, answer, category string) (string, error) {
	text = strings.TrimSpace(text)
	answer = strings.TrimSpace(answer)
	if category == "" {
		category = domain.CustomCategory
	}

	if utf8.RuneCountInString(text) < MinQuestionLength {
		return "", ErrQuestionTooShort
	}
	if answer == "" {
		return "", ErrEmptyAnswer
	}

	creator := userID
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		return q.CreateQuestion(ctx, &domain.Question{
			Text:          text,
			CorrectAnswer: answer,
			Category:      category,
			CreatorID:     &creator,
			IsActive:      true,
			CreatedAt:     s.now(),
		})
	})
	if err != nil {
		return "", s.fail(opAddQuestion, err, "user_id", userID)
	}

	s.logger.Info("Trivia question added", "user_id", userID, "category", category)
	return "Question added successfully! Category: " + category, nil
}

// Scores aggregates the answers of the channel's open session.
func (s *Service) Scores(ctx context.Context, channelID int64) (Scoreboard, error) {
	var board Scoreboard
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		session, err := q.OpenSession(ctx, channelID)
		if err != nil {
			return err
		}
		if session == nil {
			return ErrNoSession
		}

		scores, err := q.SessionScores(ctx, session.SessionID)
		if err != nil {
			return err
		}
		board = Scoreboard{SessionID: session.SessionID, Scores: scores}
		return nil
	})
	if err != nil {
		return Scoreboard{}, s.fail(opScores, err, "channel_id", channelID)
	}
	return board, nil
}

// ListQuestions returns active questions, filtered by exact category when
// category is non-empty.
func (s *Service) ListQuestions(ctx context.Context, category string) (QuestionList, error) {
	var list QuestionList
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		questions, err := q.ListActiveQuestions(ctx, category)
		if err != nil {
			return err
		}
		list = QuestionList{Category: category, Questions: questions}
		return nil
	})
	if err != nil {
		return QuestionList{}, s.fail(opListQuestions, err, "category", category)
	}
	return list, nil
}

// SessionStatus returns the channel's most recent session in any state.
func (s *Service) SessionStatus(ctx context.Context, channelID int64) (*domain.Session, error) {
	var session *domain.Session
	err := s.repo.InTx(ctx, func(q store.Queries) error {
		latest, err := q.LatestSession(ctx, channelID)
		if err != nil {
			return err
		}
		if latest == nil {
			return ErrNoSession
		}
		session = latest
		return nil
	})
	if err != nil {
		return nil, s.fail(opSessionStatus, err, "channel_id", channelID)
	}
	return session, nil
}

// fail passes rule violations through unchanged and converts everything
// else into a generic error after logging the cause.
func (s *Service) fail(op operation, err error, attrs ...any) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if op.conflict != nil && shared.IsSQLiteConstraintError(err) {
		s.logger.Warn("Trivia write rejected by unique index",
			append([]any{"op", op.name, "error", err}, attrs...)...)
		return op.conflict
	}

	if shared.IsSQLiteConflictError(err) {
		s.logger.Warn("Trivia operation hit a locked database",
			append([]any{"op", op.name, "error", err}, attrs...)...)
	} else {
		s.logger.Error("Trivia operation failed",
			append([]any{"op", op.name, "error", err}, attrs...)...)
	}
	return &Error{Code: CodeInternal, Message: op.failure, Cause: err}
}
