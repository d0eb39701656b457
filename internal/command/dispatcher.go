// Package command turns chat lines such as "!trivia answer Paris" into trivia
// operations and renders their results as chat replies.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/ashureev/trivia-bot/internal/trivia"
)

// DefaultPrefix introduces every trivia command.
const DefaultPrefix = "!trivia"

// Outcomes reported to the Recorder besides trivia error codes.
const (
	OutcomeOK    = "ok"
	OutcomeUsage = "usage"
)

// Game is the set of trivia operations the dispatcher drives.
type Game interface {
	CreateSession(ctx context.Context, channelID, creatorID int64) (string, error)
	StopSession(ctx context.Context, channelID, userID int64) (string, error)
	NextQuestion(ctx context.Context, channelID int64) (trivia.Prompt, error)
	AnswerQuestion(ctx context.Context, channelID, userID int64, text string) (trivia.Verdict, error)
	AddQuestion(ctx context.Context, userID int64, text, answer, category string) (string, error)
	Scores(ctx context.Context, channelID int64) (trivia.Scoreboard, error)
	ListQuestions(ctx context.Context, category string) (trivia.QuestionList, error)
}

// Recorder observes handled commands.
type Recorder interface {
	ObserveCommand(name, outcome string, elapsed time.Duration)
}

// Request is one chat line posted by a user in a channel.
type Request struct {
	ChannelID int64
	UserID    int64
	Text      string
	// InThread is set when the channel is already a thread or temporary channel.
	InThread bool
}

// Result is the dispatcher's answer to a Request. Handled is false when the
// line was not a trivia command and nothing should be sent.
type Result struct {
	Handled bool
	Command string
	Reply   Reply
}

// Dispatcher routes trivia commands to a Game.
type Dispatcher struct {
	game     Game
	prefix   string
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPrefix changes the command prefix.
func WithPrefix(prefix string) Option {
	return func(d *Dispatcher) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			d.prefix = prefix
		}
	}
}

// WithLogger sets the dispatcher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRecorder reports every handled command to r.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// NewDispatcher creates a dispatcher for game.
func NewDispatcher(game Game, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		game:   game,
		prefix: DefaultPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Prefix returns the configured command prefix.
func (d *Dispatcher) Prefix() string {
	return d.prefix
}

// Dispatch handles one chat line.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	name, args, ok := d.parse(req.Text)
	if !ok {
		return Result{}
	}

	start := time.Now()
	reply, outcome := d.run(ctx, name, args, req)
	if d.recorder != nil {
		d.recorder.ObserveCommand(name, outcome, time.Since(start))
	}
	d.logger.Debug("Trivia command handled",
		"command", name,
		"outcome", outcome,
		"channel_id", req.ChannelID,
		"user_id", req.UserID,
	)

	return Result{Handled: true, Command: name, Reply: reply}
}

// parse splits "<prefix> <sub> <args>". The prefix must be followed by
// whitespace or the end of the line.
func (d *Dispatcher) parse(text string) (name, args string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(text), d.prefix)
	if !found {
		return "", "", false
	}
	if rest != "" && strings.IndexFunc(rest, unicode.IsSpace) != 0 {
		return "", "", false
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "help", "", true
	}
	name, args = rest, ""
	if i := strings.IndexFunc(rest, unicode.IsSpace); i > 0 {
		name, args = rest[:i], strings.TrimSpace(rest[i:])
	}
	return strings.ToLower(name), args, true
}

func (d *Dispatcher) run(ctx context.Context, name, args string, req Request) (Reply, string) {
	switch name {
	case "start":
		return d.start(ctx, req)
	case "stop":
		return fromString(d.game.StopSession(ctx, req.ChannelID, req.UserID))
	case "next":
		return d.next(ctx, req)
	case "answer":
		return d.answer(ctx, args, req)
	case "scores":
		board, err := d.game.Scores(ctx, req.ChannelID)
		if err != nil {
			return fromError(err)
		}
		return textReply(board.String()), OutcomeOK
	case "add":
		return d.add(ctx, args, req)
	case "list":
		list, err := d.game.ListQuestions(ctx, args)
		if err != nil {
			return fromError(err)
		}
		return textReply(list.String()), OutcomeOK
	default:
		return textReply(d.help()), OutcomeUsage
	}
}

func (d *Dispatcher) start(ctx context.Context, req Request) (Reply, string) {
	var reply Reply
	if !req.InThread {
		reply.addEmbed(Embed{
			Title: "💡 Tip: Use a Temporary Channel",
			Description: "For the best trivia experience, consider creating a temporary channel or thread " +
				"so that answers aren't searchable later.",
			Color: ColorBlue,
		})
	}

	msg, err := d.game.CreateSession(ctx, req.ChannelID, req.UserID)
	if err != nil {
		reply.addText(err.Error())
		return reply, string(trivia.CodeOf(err))
	}
	reply.addText(msg)
	return reply, OutcomeOK
}

func (d *Dispatcher) next(ctx context.Context, req Request) (Reply, string) {
	prompt, err := d.game.NextQuestion(ctx, req.ChannelID)
	if err != nil {
		return fromError(err)
	}

	var reply Reply
	reply.addEmbed(Embed{
		Title:       "🧠 Trivia Question",
		Description: prompt.Text,
		Footer:      fmt.Sprintf("Use %s answer <your_answer> to respond", d.prefix),
		Color:       ColorGreen,
	})
	return reply, OutcomeOK
}

func (d *Dispatcher) answer(ctx context.Context, args string, req Request) (Reply, string) {
	if args == "" {
		return textReply("Please provide an answer."), OutcomeUsage
	}

	verdict, err := d.game.AnswerQuestion(ctx, req.ChannelID, req.UserID, args)
	if err != nil {
		return fromError(err)
	}
	return textReply(verdict.String()), OutcomeOK
}

func (d *Dispatcher) add(ctx context.Context, args string, req Request) (Reply, string) {
	parts := strings.Split(args, "|")
	if args == "" || len(parts) < 2 {
		return textReply(fmt.Sprintf(
			"Invalid format. Use: `%[1]s add <question> | <answer> | [category]`\n"+
				"Example: `%[1]s add What is the capital of France? | Paris | Geography`", d.prefix)), OutcomeUsage
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	category := "custom"
	if len(parts) > 2 {
		category = parts[2]
	}
	return fromString(d.game.AddQuestion(ctx, req.UserID, parts[0], parts[1], category))
}

func (d *Dispatcher) help() string {
	p := d.prefix
	return "**Trivia Game Commands:**\n" +
		"`" + p + " start` - Start a new trivia session\n" +
		"`" + p + " stop` - Stop the current trivia session\n" +
		"`" + p + " next` - Get the next question\n" +
		"`" + p + " answer <your_answer>` - Answer the current question\n" +
		"`" + p + " scores` - Show current scores\n" +
		"`" + p + " add <question> | <answer> [| category]` - Add a new question\n" +
		"`" + p + " list [category]` - List available questions\n" +
		"\n*Tip: Consider using a temporary channel for trivia to keep answers private!*"
}

func fromString(msg string, err error) (Reply, string) {
	if err != nil {
		return fromError(err)
	}
	return textReply(msg), OutcomeOK
}

func fromError(err error) (Reply, string) {
	return textReply(err.Error()), string(trivia.CodeOf(err))
}
