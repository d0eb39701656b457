package trivia

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/trivia-bot/internal/domain"
	"github.com/ashureev/trivia-bot/internal/store"
)

type harness struct {
	svc  *Service
	repo *store.SQLiteStore
	logs *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "trivia.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	logs := &bytes.Buffer{}
	svc := NewService(repo,
		WithLogger(slog.New(slog.NewTextHandler(logs, nil))),
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	)
	return &harness{svc: svc, repo: repo, logs: logs}
}

func (h *harness) latestSession(t *testing.T, channelID int64) *domain.Session {
	t.Helper()
	var session *domain.Session
	err := h.repo.InTx(context.Background(), func(q store.Queries) error {
		var err error
		session, err = q.LatestSession(context.Background(), channelID)
		return err
	})
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return session
}

func expectCode(t *testing.T, err error, code Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := CodeOf(err); got != code {
		t.Fatalf("expected code %s, got %s (%v)", code, got, err)
	}
}

func TestCreateSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	msg, err := h.svc.CreateSession(ctx, 12345, 67890)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if !strings.Contains(msg, "Trivia session created") {
		t.Errorf("unexpected message: %q", msg)
	}

	session := h.latestSession(t, 12345)
	if session == nil {
		t.Fatal("expected session to be stored")
	}
	if session.CreatorID != 67890 || session.State != domain.SessionWaiting {
		t.Errorf("unexpected session: %+v", session)
	}
}

func TestCreateDuplicateSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.svc.CreateSession(ctx, 12345, 67890); err != nil {
		t.Fatalf("first CreateSession failed: %v", err)
	}
	_, err := h.svc.CreateSession(ctx, 12345, 11111)
	expectCode(t, err, CodeSessionExists)
	if !strings.Contains(err.Error(), "already an active trivia session") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestCreateSessionAfterStop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.svc.CreateSession(ctx, 1, 10); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := h.svc.StopSession(ctx, 1, 10); err != nil {
		t.Fatalf("StopSession failed: %v", err)
	}
	if _, err := h.svc.CreateSession(ctx, 1, 20); err != nil {
		t.Fatalf("expected a new session after stop, got %v", err)
	}
	if got := h.latestSession(t, 1); got.CreatorID != 20 {
		t.Errorf("expected new session by 20, got %+v", got)
	}
}

func TestAddQuestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	msg, err := h.svc.AddQuestion(ctx, 12345, "What is the capital of France?", "Paris", "geography")
	if err != nil {
		t.Fatalf("AddQuestion failed: %v", err)
	}
	if !strings.Contains(msg, "Question added successfully") || !strings.Contains(msg, "geography") {
		t.Errorf("unexpected message: %q", msg)
	}

	list, err := h.svc.ListQuestions(ctx, "geography")
	if err != nil {
		t.Fatalf("ListQuestions failed: %v", err)
	}
	if len(list.Questions) != 1 {
		t.Fatalf("expected one question, got %d", len(list.Questions))
	}
	q := list.Questions[0]
	if q.CorrectAnswer != "Paris" || q.CreatorID == nil || *q.CreatorID != 12345 {
		t.Errorf("unexpected stored question: %+v", q)
	}
}

func TestAddQuestionValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		text     string
		answer   string
		wantCode Code
		wantMsg  string
	}{
		{name: "too short", text: "Short?", answer: "Answer", wantCode: CodeInvalidQuestion, wantMsg: "at least 10 characters"},
		{name: "short after trim", text: "   nine char  ", answer: "a", wantCode: CodeInvalidQuestion, wantMsg: "at least 10 characters"},
		{name: "empty answer", text: "Valid question text?", answer: "", wantCode: CodeInvalidAnswer, wantMsg: "Answer cannot be empty"},
		{name: "blank answer", text: "Valid question text?", answer: "   ", wantCode: CodeInvalidAnswer, wantMsg: "Answer cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.AddQuestion(ctx, 1, tt.text, tt.answer, "")
			expectCode(t, err, tt.wantCode)
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q in %q", tt.wantMsg, err.Error())
			}
		})
	}

	// Exactly ten characters is accepted and the category falls back to custom.
	msg, err := h.svc.AddQuestion(ctx, 1, "  abcdefghij  ", " x ", "")
	if err != nil {
		t.Fatalf("expected boundary length to be accepted: %v", err)
	}
	if !strings.HasSuffix(msg, "Category: custom") {
		t.Errorf("expected custom category, got %q", msg)
	}
	list, err := h.svc.ListQuestions(ctx, "custom")
	if err != nil {
		t.Fatalf("ListQuestions failed: %v", err)
	}
	if len(list.Questions) != 1 || list.Questions[0].Text != "abcdefghij" || list.Questions[0].CorrectAnswer != "x" {
		t.Errorf("expected trimmed question to be stored, got %+v", list.Questions)
	}
}

func TestNextQuestionNoSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.NextQuestion(context.Background(), 12345)
	expectCode(t, err, CodeNoSession)
	if !strings.Contains(err.Error(), "No active trivia session") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestNextQuestionNoQuestions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.CreateSession(ctx, 12345, 67890); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	_, err := h.svc.NextQuestion(ctx, 12345)
	expectCode(t, err, CodeNoQuestions)
	if !strings.Contains(err.Error(), "No trivia questions available") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestNextQuestionActivatesSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.AddQuestion(ctx, 12345, "Test question?", "Test answer", ""); err != nil {
		t.Fatalf("AddQuestion failed: %v", err)
	}
	if _, err := h.svc.CreateSession(ctx, 12345, 67890); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	prompt, err := h.svc.NextQuestion(ctx, 12345)
	if err != nil {
		t.Fatalf("NextQuestion failed: %v", err)
	}
	if prompt.Text != "Test question?" || prompt.QuestionID == 0 {
		t.Errorf("unexpected prompt: %+v", prompt)
	}

	session := h.latestSession(t, 12345)
	if session.State != domain.SessionActive || session.CurrentQuestionID == nil || *session.CurrentQuestionID != prompt.QuestionID {
		t.Errorf("expected active session on question %d, got %+v", prompt.QuestionID, session)
	}
}

func TestNextQuestionDrawsFromAllActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	texts := []string{"First question text?", "Second question text?", "Third question text?"}
	for _, text := range texts {
		if _, err := h.svc.AddQuestion(ctx, 1, text, "a", ""); err != nil {
			t.Fatalf("AddQuestion failed: %v", err)
		}
	}
	if _, err := h.svc.CreateSession(ctx, 5, 1); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	seen := make(map[string]int)
	for i := 0; i < 60; i++ {
		prompt, err := h.svc.NextQuestion(ctx, 5)
		if err != nil {
			t.Fatalf("NextQuestion failed: %v", err)
		}
		seen[prompt.Text]++
	}
	for _, text := range texts {
		if seen[text] == 0 {
			t.Errorf("question %q never selected in 60 draws: %v", text, seen)
		}
	}
}

func TestAnswerQuestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.AddQuestion(ctx, 12345, "Test question?", "Correct Answer", ""); err != nil {
		t.Fatalf("AddQuestion failed: %v", err)
	}
	if _, err := h.svc.CreateSession(ctx, 12345, 67890); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := h.svc.NextQuestion(ctx, 12345); err != nil {
		t.Fatalf("NextQuestion failed: %v", err)
	}

	verdict, err := h.svc.AnswerQuestion(ctx, 12345, 99999, "Correct Answer")
	if err != nil {
		t.Fatalf("AnswerQuestion failed: %v", err)
	}
	if !verdict.Correct || !strings.Contains(verdict.String(), "Correct!") {
		t.Errorf("expected correct verdict, got %+v (%s)", verdict, verdict)
	}

	_, err = h.svc.AnswerQuestion(ctx, 12345, 99999, "Another answer")
	expectCode(t, err, CodeAlreadyAnswered)
	if !strings.Contains(err.Error(), "already answered") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestAnswerQuestionIncorrect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.AddQuestion(ctx, 12345, "Test question?", "Correct Answer", ""); err != nil {
		t.Fatalf("AddQuestion failed: %v", err)
	}
	if _, err := h.svc.CreateSession(ctx, 12345, 67890); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := h.svc.NextQuestion(ctx, 12345); err != nil {
		t.Fatalf("NextQuestion failed: %v", err)
	}

	verdict, err := h.svc.AnswerQuestion(ctx, 12345, 99999, "Wrong Answer")
	if err != nil {
		t.Fatalf("AnswerQuestion failed: %v", err)
	}
	msg := verdict.String()
	if verdict.Correct || !strings.Contains(msg, "Incorrect") || !strings.Contains(msg, "Correct Answer") {
		t.Errorf("unexpected verdict: %+v (%s)", verdict, msg)
	}
}

func TestAnswerQuestionWithoutActiveQuestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AnswerQuestion(ctx, 1, 2, "anything")
	expectCode(t, err, CodeNoActiveQuestion)

	// A waiting session has no current question yet.
	if _, err := h.svc.CreateSession(ctx, 1, 2); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	_, err = h.svc.AnswerQuestion(ctx, 1, 2, "anything")
	expectCode(t, err, CodeNoActiveQuestion)
}

func TestIsCorrect(t *testing.T) {
	for _, submitted := range []string{"Paris", "paris", " Paris ", "PARIS\n"} {
		if !IsCorrect(submitted, "Paris") {
			t.Errorf("expected %q to match Paris", submitted)
		}
	}
	for _, submitted := range []string{"Pariss", "Par is", ""} {
		if IsCorrect(submitted, "Paris") {
			t.Errorf("expected %q not to match Paris", submitted)
		}
	}
	if !IsCorrect("the embers of muaat", " The Embers of Muaat") {
		t.Error("expected multi-word answer to match")
	}
}

func TestScores(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Scores(ctx, 12345)
	expectCode(t, err, CodeNoSession)

	if _, err := h.svc.CreateSession(ctx, 12345, 67890); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	board, err := h.svc.Scores(ctx, 12345)
	if err != nil {
		t.Fatalf("Scores failed: %v", err)
	}
	if !strings.Contains(board.String(), "No answers submitted") {
		t.Errorf("unexpected empty scoreboard: %q", board.String())
	}

	if _, err := h.svc.AddQuestion(ctx, 1, "What colour is the sky?", "blue", ""); err != nil {
		t.Fatalf("AddQuestion failed: %v", err)
	}
	if _, err := h.svc.NextQuestion(ctx, 12345); err != nil {
		t.Fatalf("NextQuestion failed: %v", err)
	}
	for _, a := range []struct {
		user int64
		text string
	}{{101, "red"}, {202, "Blue"}, {303, "blue "}} {
		if _, err := h.svc.AnswerQuestion(ctx, 12345, a.user, a.text); err != nil {
			t.Fatalf("AnswerQuestion(%d) failed: %v", a.user, err)
		}
	}

	board, err = h.svc.Scores(ctx, 12345)
	if err != nil {
		t.Fatalf("Scores failed: %v", err)
	}
	if len(board.Scores) != 3 {
		t.Fatalf("expected 3 players, got %+v", board.Scores)
	}
	for i := 1; i < len(board.Scores); i++ {
		if board.Scores[i-1].Correct < board.Scores[i].Correct {
			t.Fatalf("scores not ordered by correct desc: %+v", board.Scores)
		}
	}
	if board.Scores[2].PlayerID != 101 {
		t.Errorf("expected player 101 last, got %+v", board.Scores)
	}
	want := "**Trivia Scores:**\n1. <@202>: 1/1 correct\n2. <@303>: 1/1 correct\n3. <@101>: 0/1 correct"
	if board.String() != want {
		t.Errorf("scoreboard mismatch:\ngot  %q\nwant %q", board.String(), want)
	}
}

func TestStopSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.CreateSession(ctx, 12345, 67890); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	_, err := h.svc.StopSession(ctx, 12345, 11111)
	expectCode(t, err, CodeNotCreator)
	if !strings.Contains(err.Error(), "Only the session creator") {
		t.Errorf("unexpected message: %q", err.Error())
	}

	msg, err := h.svc.StopSession(ctx, 12345, 67890)
	if err != nil {
		t.Fatalf("StopSession failed: %v", err)
	}
	if !strings.Contains(msg, "Trivia session stopped") {
		t.Errorf("unexpected message: %q", msg)
	}

	session := h.latestSession(t, 12345)
	if session.State != domain.SessionFinished || session.FinishedAt == nil {
		t.Errorf("expected finished session, got %+v", session)
	}
	if !session.FinishedAt.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("expected finish time from clock, got %v", session.FinishedAt)
	}

	_, err = h.svc.StopSession(ctx, 12345, 67890)
	expectCode(t, err, CodeNoSession)
}

func TestListQuestionsTruncates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	list, err := h.svc.ListQuestions(ctx, "")
	if err != nil {
		t.Fatalf("ListQuestions failed: %v", err)
	}
	if list.String() != "No questions available." {
		t.Errorf("unexpected empty listing: %q", list.String())
	}
	list, err = h.svc.ListQuestions(ctx, "lore")
	if err != nil {
		t.Fatalf("ListQuestions failed: %v", err)
	}
	if list.String() != "No questions found in category 'lore'." {
		t.Errorf("unexpected empty category listing: %q", list.String())
	}

	long := "Is this an extremely long question " + strings.Repeat("x", 120) + "?"
	if _, err := h.svc.AddQuestion(ctx, 1, long, "yes", "rules"); err != nil {
		t.Fatalf("AddQuestion failed: %v", err)
	}
	for i := 0; i < 11; i++ {
		if _, err := h.svc.AddQuestion(ctx, 1, "Filler question number "+string(rune('A'+i)), "a", "rules"); err != nil {
			t.Fatalf("AddQuestion failed: %v", err)
		}
	}

	list, err = h.svc.ListQuestions(ctx, "rules")
	if err != nil {
		t.Fatalf("ListQuestions failed: %v", err)
	}
	out := list.String()
	lines := strings.Split(out, "\n")
	if lines[0] != "**Available Questions (12 total):**" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if len(lines) != 12 {
		t.Fatalf("expected header + 10 questions + remainder, got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasSuffix(lines[1], "... (Category: rules)") {
		t.Errorf("expected long question to be truncated: %q", lines[1])
	}
	if lines[11] != "... and 2 more questions" {
		t.Errorf("unexpected remainder line: %q", lines[11])
	}
}

// The walkthrough a channel goes through from setup to shutdown.
func TestGameScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const channel, userA, userB, userX = int64(1), int64(100), int64(200), int64(300)

	if _, err := h.svc.AddQuestion(ctx, userA, "What is the capital of France?", "Paris", "geography"); err != nil {
		t.Fatalf("AddQuestion failed: %v", err)
	}
	if _, err := h.svc.CreateSession(ctx, channel, userA); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	_, err := h.svc.CreateSession(ctx, channel, userB)
	if err == nil || !strings.Contains(err.Error(), "already an active trivia session") {
		t.Fatalf("expected duplicate session error, got %v", err)
	}

	prompt, err := h.svc.NextQuestion(ctx, channel)
	if err != nil {
		t.Fatalf("NextQuestion failed: %v", err)
	}
	if prompt.Text != "What is the capital of France?" || prompt.QuestionID == 0 {
		t.Fatalf("unexpected prompt: %+v", prompt)
	}

	verdict, err := h.svc.AnswerQuestion(ctx, channel, userX, "paris")
	if err != nil {
		t.Fatalf("AnswerQuestion failed: %v", err)
	}
	if !strings.Contains(verdict.String(), "Correct!") {
		t.Fatalf("expected correct answer, got %q", verdict)
	}
	_, err = h.svc.AnswerQuestion(ctx, channel, userX, "anything")
	if err == nil || !strings.Contains(err.Error(), "already answered") {
		t.Fatalf("expected already answered error, got %v", err)
	}

	if _, err := h.svc.StopSession(ctx, channel, userA); err != nil {
		t.Fatalf("StopSession failed: %v", err)
	}
	if got := h.latestSession(t, channel); got.State != domain.SessionFinished {
		t.Fatalf("expected finished session, got %+v", got)
	}
	_, err = h.svc.StopSession(ctx, channel, userB)
	if err == nil || !strings.Contains(err.Error(), "No active trivia session found") {
		t.Fatalf("expected no session error, got %v", err)
	}
}

// failingRepo fails every transaction with err.
type failingRepo struct {
	err error
}

func (f *failingRepo) InTx(context.Context, func(store.Queries) error) error { return f.err }
func (f *failingRepo) Ping(context.Context) error                          { return nil }
func (f *failingRepo) Close() error                                        { return nil }

func TestStoreFailureBecomesGenericError(t *testing.T) {
	logs := &bytes.Buffer{}
	cause := errors.New("disk I/O error")
	svc := NewService(&failingRepo{err: cause}, WithLogger(slog.New(slog.NewTextHandler(logs, nil))))

	_, err := svc.CreateSession(context.Background(), 1, 2)
	expectCode(t, err, CodeInternal)
	if err.Error() != "An error occurred while creating the trivia session." {
		t.Errorf("unexpected generic message: %q", err.Error())
	}
	if strings.Contains(err.Error(), "disk") {
		t.Error("generic message must not leak the cause")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be preserved for errors.Is")
	}
	if !strings.Contains(logs.String(), "disk I/O error") || !strings.Contains(logs.String(), "op=create_session") {
		t.Errorf("expected cause to be logged, got %q", logs.String())
	}

	_, err = svc.Scores(context.Background(), 1)
	if err == nil || err.Error() != "An error occurred while getting scores." {
		t.Errorf("unexpected scores error: %v", err)
	}
}

func TestUniqueIndexConflictMapsToRuleError(t *testing.T) {
	conflict := errors.New("insert answer: constraint failed: UNIQUE constraint failed: trivia_answers.player_id (2067)")
	svc := NewService(&failingRepo{err: conflict}, WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	_, err := svc.AnswerQuestion(context.Background(), 1, 2, "x")
	expectCode(t, err, CodeAlreadyAnswered)

	_, err = svc.CreateSession(context.Background(), 1, 2)
	expectCode(t, err, CodeSessionExists)

	// Operations without a unique write stay generic.
	_, err = svc.StopSession(context.Background(), 1, 2)
	expectCode(t, err, CodeInternal)
}

func TestLockedDatabaseIsLoggedAsWarning(t *testing.T) {
	logs := &bytes.Buffer{}
	svc := NewService(&failingRepo{err: errors.New("commit transaction: database is locked")},
		WithLogger(slog.New(slog.NewTextHandler(logs, nil))))

	_, err := svc.NextQuestion(context.Background(), 1)
	expectCode(t, err, CodeInternal)
	if err.Error() != "An error occurred while getting the next question." {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !strings.Contains(logs.String(), "level=WARN") || strings.Contains(logs.String(), "level=ERROR") {
		t.Errorf("expected a warning only, got %q", logs.String())
	}
}
