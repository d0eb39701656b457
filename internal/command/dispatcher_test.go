package command

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/trivia-bot/internal/domain"
	"github.com/ashureev/trivia-bot/internal/trivia"
)

type addCall struct {
	userID                 int64
	text, answer, category string
}

type fakeGame struct {
	created   []int64
	answers   []string
	adds      []addCall
	listed    []string
	createErr error
	prompt    trivia.Prompt
	verdict   trivia.Verdict
	board     trivia.Scoreboard
}

func (f *fakeGame) CreateSession(_ context.Context, channelID, _ int64) (string, error) {
	f.created = append(f.created, channelID)
	if f.createErr != nil {
		return "", f.createErr
	}
	return "Trivia session created!", nil
}

func (f *fakeGame) StopSession(context.Context, int64, int64) (string, error) {
	return "", trivia.ErrNotCreator
}

func (f *fakeGame) NextQuestion(context.Context, int64) (trivia.Prompt, error) {
	return f.prompt, nil
}

func (f *fakeGame) AnswerQuestion(_ context.Context, _, _ int64, text string) (trivia.Verdict, error) {
	f.answers = append(f.answers, text)
	return f.verdict, nil
}

func (f *fakeGame) AddQuestion(_ context.Context, userID int64, text, answer, category string) (string, error) {
	f.adds = append(f.adds, addCall{userID: userID, text: text, answer: answer, category: category})
	return "Question added successfully! Category: " + category, nil
}

func (f *fakeGame) Scores(context.Context, int64) (trivia.Scoreboard, error) {
	return f.board, nil
}

func (f *fakeGame) ListQuestions(_ context.Context, category string) (trivia.QuestionList, error) {
	f.listed = append(f.listed, category)
	return trivia.QuestionList{Category: category}, nil
}

type observed struct {
	name, outcome string
}

type fakeRecorder struct {
	calls []observed
}

func (r *fakeRecorder) ObserveCommand(name, outcome string, _ time.Duration) {
	r.calls = append(r.calls, observed{name, outcome})
}

func newTestDispatcher(game Game, opts ...Option) *Dispatcher {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewDispatcher(game, opts...)
}

func TestDispatchIgnoresOrdinaryChat(t *testing.T) {
	d := newTestDispatcher(&fakeGame{})
	for _, text := range []string{"", "hello", "!triviastart", "trivia start", "!other start"} {
		if res := d.Dispatch(context.Background(), Request{Text: text}); res.Handled {
			t.Errorf("expected %q to be ignored", text)
		}
	}
}

func TestDispatchHelp(t *testing.T) {
	d := newTestDispatcher(&fakeGame{})
	for _, text := range []string{"!trivia", "  !trivia  ", "!trivia dance", "!trivia help"} {
		res := d.Dispatch(context.Background(), Request{Text: text})
		if !res.Handled {
			t.Fatalf("expected %q to be handled", text)
		}
		out := res.Reply.Text()
		if !strings.HasPrefix(out, "**Trivia Game Commands:**") {
			t.Errorf("expected help for %q, got %q", text, out)
		}
		for _, sub := range []string{"start", "stop", "next", "answer", "scores", "add", "list"} {
			if !strings.Contains(out, "!trivia "+sub) {
				t.Errorf("help missing %q", sub)
			}
		}
	}
}

func TestDispatchStartTip(t *testing.T) {
	game := &fakeGame{}
	d := newTestDispatcher(game)

	res := d.Dispatch(context.Background(), Request{ChannelID: 7, UserID: 1, Text: "!trivia start"})
	if len(res.Reply.Messages) != 2 {
		t.Fatalf("expected tip and confirmation, got %+v", res.Reply.Messages)
	}
	if tip := res.Reply.Messages[0].Embed; tip == nil || !strings.Contains(tip.Title, "Temporary Channel") {
		t.Errorf("expected tip embed first, got %+v", res.Reply.Messages[0])
	}
	if res.Reply.Messages[1].Text != "Trivia session created!" {
		t.Errorf("unexpected confirmation: %+v", res.Reply.Messages[1])
	}

	res = d.Dispatch(context.Background(), Request{ChannelID: 7, UserID: 1, Text: "!trivia start", InThread: true})
	if len(res.Reply.Messages) != 1 {
		t.Errorf("expected no tip inside a thread, got %+v", res.Reply.Messages)
	}
	if len(game.created) != 2 || game.created[0] != 7 {
		t.Errorf("unexpected create calls: %v", game.created)
	}
}

func TestDispatchStartError(t *testing.T) {
	rec := &fakeRecorder{}
	d := newTestDispatcher(&fakeGame{createErr: trivia.ErrSessionExists}, WithRecorder(rec))

	res := d.Dispatch(context.Background(), Request{Text: "!trivia start", InThread: true})
	if got := res.Reply.Text(); got != trivia.ErrSessionExists.Message {
		t.Errorf("expected session exists message, got %q", got)
	}
	if len(rec.calls) != 1 || rec.calls[0] != (observed{"start", "session_exists"}) {
		t.Errorf("unexpected recorded calls: %+v", rec.calls)
	}
}

func TestDispatchNextEmbed(t *testing.T) {
	d := newTestDispatcher(&fakeGame{prompt: trivia.Prompt{QuestionID: 3, Text: "What is 2+2?"}})

	res := d.Dispatch(context.Background(), Request{Text: "!trivia NEXT"})
	if len(res.Reply.Messages) != 1 || res.Reply.Messages[0].Embed == nil {
		t.Fatalf("expected a single embed, got %+v", res.Reply.Messages)
	}
	embed := res.Reply.Messages[0].Embed
	if embed.Title != "🧠 Trivia Question" || embed.Description != "What is 2+2?" {
		t.Errorf("unexpected embed: %+v", embed)
	}
	if embed.Footer != "Use !trivia answer <your_answer> to respond" {
		t.Errorf("unexpected footer: %q", embed.Footer)
	}
	if want := "**🧠 Trivia Question**\nWhat is 2+2?\n_Use !trivia answer <your_answer> to respond_"; res.Reply.Text() != want {
		t.Errorf("unexpected flattened text: %q", res.Reply.Text())
	}
}

func TestDispatchAnswer(t *testing.T) {
	game := &fakeGame{verdict: trivia.Verdict{Correct: true, CorrectAnswer: "Paris"}}
	d := newTestDispatcher(game)

	res := d.Dispatch(context.Background(), Request{Text: "!trivia answer    "})
	if res.Reply.Text() != "Please provide an answer." {
		t.Errorf("unexpected blank answer reply: %q", res.Reply.Text())
	}
	if len(game.answers) != 0 {
		t.Fatalf("blank answer must not reach the game, got %v", game.answers)
	}

	res = d.Dispatch(context.Background(), Request{Text: "!trivia answer  the city of Paris "})
	if !strings.Contains(res.Reply.Text(), "Correct!") {
		t.Errorf("unexpected reply: %q", res.Reply.Text())
	}
	if len(game.answers) != 1 || game.answers[0] != "the city of Paris" {
		t.Errorf("unexpected answers: %q", game.answers)
	}
}

func TestDispatchAdd(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *addCall
	}{
		{
			name: "with category",
			text: "!trivia add What is the capital of France? | Paris | Geography",
			want: &addCall{userID: 9, text: "What is the capital of France?", answer: "Paris", category: "Geography"},
		},
		{
			name: "default category",
			text: "!trivia add Who wrote Hamlet?|Shakespeare",
			want: &addCall{userID: 9, text: "Who wrote Hamlet?", answer: "Shakespeare", category: "custom"},
		},
		{name: "missing answer", text: "!trivia add What is the capital of France?"},
		{name: "no arguments", text: "!trivia add"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := &fakeGame{}
			d := newTestDispatcher(game)
			res := d.Dispatch(context.Background(), Request{UserID: 9, Text: tt.text})

			if tt.want == nil {
				if len(game.adds) != 0 {
					t.Fatalf("expected no AddQuestion call, got %+v", game.adds)
				}
				if !strings.Contains(res.Reply.Text(), "Invalid format") ||
					!strings.Contains(res.Reply.Text(), "!trivia add What is the capital of France? | Paris | Geography") {
					t.Errorf("unexpected usage reply: %q", res.Reply.Text())
				}
				return
			}
			if len(game.adds) != 1 || game.adds[0] != *tt.want {
				t.Fatalf("expected %+v, got %+v", *tt.want, game.adds)
			}
		})
	}
}

func TestDispatchScoresAndList(t *testing.T) {
	game := &fakeGame{board: trivia.Scoreboard{Scores: []domain.Score{{PlayerID: 4, Correct: 2, Total: 3}}}}
	d := newTestDispatcher(game)

	res := d.Dispatch(context.Background(), Request{Text: "!trivia scores"})
	if res.Reply.Text() != "**Trivia Scores:**\n1. <@4>: 2/3 correct" {
		t.Errorf("unexpected scores reply: %q", res.Reply.Text())
	}

	res = d.Dispatch(context.Background(), Request{Text: "!trivia list history"})
	if res.Reply.Text() != "No questions found in category 'history'." {
		t.Errorf("unexpected list reply: %q", res.Reply.Text())
	}
	d.Dispatch(context.Background(), Request{Text: "!trivia list"})
	if len(game.listed) != 2 || game.listed[0] != "history" || game.listed[1] != "" {
		t.Errorf("unexpected list calls: %q", game.listed)
	}
}

func TestDispatchStopErrorAndCustomPrefix(t *testing.T) {
	rec := &fakeRecorder{}
	d := newTestDispatcher(&fakeGame{}, WithPrefix("?quiz"), WithRecorder(rec))

	if res := d.Dispatch(context.Background(), Request{Text: "!trivia stop"}); res.Handled {
		t.Fatal("old prefix must be ignored")
	}
	res := d.Dispatch(context.Background(), Request{Text: "?quiz stop"})
	if res.Command != "stop" || res.Reply.Text() != trivia.ErrNotCreator.Message {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(rec.calls) != 1 || rec.calls[0].outcome != "not_creator" {
		t.Errorf("unexpected recorded calls: %+v", rec.calls)
	}

	res = d.Dispatch(context.Background(), Request{Text: "?quiz next"})
	if footer := res.Reply.Messages[0].Embed.Footer; footer != "Use ?quiz answer <your_answer> to respond" {
		t.Errorf("footer should use the configured prefix, got %q", footer)
	}
}
