package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/trivia-bot/internal/domain"
	"github.com/ashureev/trivia-bot/internal/store/sqlitemigrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository and applies pending migrations.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// IMMEDIATE transactions take the write lock up front so the
	// check-then-insert sequences in a transaction cannot interleave.
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := sqlitemigrate.Apply(context.Background(), db, migrationFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithDB wraps an already-migrated database handle.
func NewWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// InTx runs fn inside a single transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("failed to roll back transaction", "error", rbErr)
		}
	}()

	if err := fn(&sqlQueries{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// sqlQueries implements Queries on top of a transaction.
type sqlQueries struct {
	tx *sql.Tx
}

const sessionColumns = `session_id, channel_id, creator_id, state,
	current_question_id, created_at, finished_at`

func scanSession(row interface{ Scan(...any) error }) (*domain.Session, error) {
	var session domain.Session
	var state string
	var currentQuestionID, finishedAt sql.NullInt64
	var createdAt int64

	err := row.Scan(
		&session.SessionID, &session.ChannelID, &session.CreatorID, &state,
		&currentQuestionID, &createdAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	session.State = domain.SessionState(state)
	if !session.State.Valid() {
		return nil, fmt.Errorf("unknown session state %q", state)
	}
	session.CreatedAt = time.Unix(createdAt, 0)
	if currentQuestionID.Valid {
		id := currentQuestionID.Int64
		session.CurrentQuestionID = &id
	}
	if finishedAt.Valid {
		ts := time.Unix(finishedAt.Int64, 0)
		session.FinishedAt = &ts
	}
	return &session, nil
}

func (q *sqlQueries) querySession(ctx context.Context, what, query string, args ...any) (*domain.Session, error) {
	session, err := scanSession(q.tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s session: %w", what, err)
	}
	return session, nil
}

// OpenSession returns the channel's session that is not finished.
func (q *sqlQueries) OpenSession(ctx context.Context, channelID int64) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM trivia_sessions
		WHERE channel_id = ? AND state <> ?
		ORDER BY session_id DESC LIMIT 1`
	return q.querySession(ctx, "open", query, channelID, string(domain.SessionFinished))
}

// ActiveSession returns the channel's session in the active state.
func (q *sqlQueries) ActiveSession(ctx context.Context, channelID int64) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM trivia_sessions
		WHERE channel_id = ? AND state = ?
		ORDER BY session_id DESC LIMIT 1`
	return q.querySession(ctx, "active", query, channelID, string(domain.SessionActive))
}

// LatestSession returns the newest session for a channel.
func (q *sqlQueries) LatestSession(ctx context.Context, channelID int64) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM trivia_sessions
		WHERE channel_id = ?
		ORDER BY session_id DESC LIMIT 1`
	return q.querySession(ctx, "latest", query, channelID)
}

// CreateSession inserts a session and sets its SessionID.
func (q *sqlQueries) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
	INSERT INTO trivia_sessions (channel_id, creator_id, state, current_question_id, created_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	result, err := q.tx.ExecContext(ctx, query,
		session.ChannelID, session.CreatorID, string(session.State),
		nullableID(session.CurrentQuestionID), session.CreatedAt.Unix(),
		nullableTime(session.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("session last insert id: %w", err)
	}
	session.SessionID = id
	return nil
}

// UpdateSession persists state, current question and finish time.
func (q *sqlQueries) UpdateSession(ctx context.Context, session *domain.Session) error {
	query := `UPDATE trivia_sessions
		SET state = ?, current_question_id = ?, finished_at = ?
		WHERE session_id = ?`

	result, err := q.tx.ExecContext(ctx, query,
		string(session.State), nullableID(session.CurrentQuestionID),
		nullableTime(session.FinishedAt), session.SessionID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %d not found", session.SessionID)
	}
	return nil
}

const questionColumns = `question_id, question_text, correct_answer, category,
	difficulty, creator_id, is_active, created_at`

func scanQuestion(row interface{ Scan(...any) error }) (*domain.Question, error) {
	var question domain.Question
	var category, difficulty sql.NullString
	var creatorID sql.NullInt64
	var createdAt int64

	err := row.Scan(
		&question.QuestionID, &question.Text, &question.CorrectAnswer, &category,
		&difficulty, &creatorID, &question.IsActive, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	question.Category = category.String
	question.Difficulty = difficulty.String
	question.CreatedAt = time.Unix(createdAt, 0)
	if creatorID.Valid {
		id := creatorID.Int64
		question.CreatorID = &id
	}
	return &question, nil
}

// GetQuestion retrieves a question by ID.
func (q *sqlQueries) GetQuestion(ctx context.Context, questionID int64) (*domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM trivia_questions WHERE question_id = ?`
	question, err := scanQuestion(q.tx.QueryRowContext(ctx, query, questionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan question row: %w", err)
	}
	return question, nil
}

// ActiveQuestionIDs returns the IDs of all active questions.
func (q *sqlQueries) ActiveQuestionIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.tx.QueryContext(ctx,
		`SELECT question_id FROM trivia_questions WHERE is_active = 1 ORDER BY question_id`)
	if err != nil {
		return nil, fmt.Errorf("query active question ids: %w", err)
	}
	defer closeRows(rows, "active question ids")

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan active question id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active question ids: %w", err)
	}
	return ids, nil
}

// ListActiveQuestions returns active questions, optionally filtered by category.
func (q *sqlQueries) ListActiveQuestions(ctx context.Context, category string) ([]*domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM trivia_questions WHERE is_active = 1`
	var args []any
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY question_id`

	rows, err := q.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query active questions: %w", err)
	}
	defer closeRows(rows, "active questions")

	var questions []*domain.Question
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan active question row: %w", err)
		}
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active questions: %w", err)
	}
	return questions, nil
}

// QuestionTextExists reports whether a question with exactly this text exists.
func (q *sqlQueries) QuestionTextExists(ctx context.Context, text string) (bool, error) {
	var found int
	err := q.tx.QueryRowContext(ctx,
		`SELECT 1 FROM trivia_questions WHERE question_text = ? LIMIT 1`, text).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check question text: %w", err)
	}
	return true, nil
}

// CreateQuestion inserts a question and sets its QuestionID.
func (q *sqlQueries) CreateQuestion(ctx context.Context, question *domain.Question) error {
	query := `
	INSERT INTO trivia_questions (question_text, correct_answer, category, difficulty, creator_id, is_active, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	if question.Category == "" {
		question.Category = domain.DefaultCategory
	}
	var difficulty interface{}
	if question.Difficulty != "" {
		difficulty = question.Difficulty
	}

	result, err := q.tx.ExecContext(ctx, query,
		question.Text, question.CorrectAnswer, question.Category, difficulty,
		nullableID(question.CreatorID), question.IsActive, question.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("question last insert id: %w", err)
	}
	question.QuestionID = id
	return nil
}

// HasAnswered reports whether the player already answered the question in the session.
func (q *sqlQueries) HasAnswered(ctx context.Context, sessionID, questionID, playerID int64) (bool, error) {
	query := `SELECT 1 FROM trivia_answers
		WHERE session_id = ? AND question_id = ? AND player_id = ? LIMIT 1`

	var found int
	err := q.tx.QueryRowContext(ctx, query, sessionID, questionID, playerID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check existing answer: %w", err)
	}
	return true, nil
}

// CreateAnswer inserts an answer and sets its AnswerID.
func (q *sqlQueries) CreateAnswer(ctx context.Context, answer *domain.Answer) error {
	query := `
	INSERT INTO trivia_answers (session_id, question_id, player_id, answer_text, is_correct, answered_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	result, err := q.tx.ExecContext(ctx, query,
		answer.SessionID, answer.QuestionID, answer.PlayerID,
		answer.Text, answer.IsCorrect, answer.AnsweredAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("answer last insert id: %w", err)
	}
	answer.AnswerID = id
	return nil
}

// SessionScores aggregates answers per player. Ties on correct answers are
// broken by fewer attempts, then by player ID.
func (q *sqlQueries) SessionScores(ctx context.Context, sessionID int64) ([]domain.Score, error) {
	query := `
		SELECT player_id, SUM(is_correct) AS correct, COUNT(answer_id) AS total
		FROM trivia_answers
		WHERE session_id = ?
		GROUP BY player_id
		ORDER BY correct DESC, total ASC, player_id ASC`

	rows, err := q.tx.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session scores: %w", err)
	}
	defer closeRows(rows, "session scores")

	var scores []domain.Score
	for rows.Next() {
		var score domain.Score
		if err := rows.Scan(&score.PlayerID, &score.Correct, &score.Total); err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session scores: %w", err)
	}
	return scores, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}

func nullableID(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}
