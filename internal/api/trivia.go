package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/trivia-bot/internal/command"
	"github.com/ashureev/trivia-bot/internal/domain"
	"github.com/ashureev/trivia-bot/internal/identity"
	"github.com/ashureev/trivia-bot/internal/trivia"
	"github.com/go-chi/chi/v5"
)

const maxCommandBodyBytes = 16 << 10

// Dispatcher handles chat commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request) command.Result
}

// Reader is the read side of the trivia game.
type Reader interface {
	Scores(ctx context.Context, channelID int64) (trivia.Scoreboard, error)
	ListQuestions(ctx context.Context, category string) (trivia.QuestionList, error)
	SessionStatus(ctx context.Context, channelID int64) (*domain.Session, error)
}

// TriviaHandler exposes the command surface and read-only game state.
type TriviaHandler struct {
	dispatcher Dispatcher
	reader     Reader
}

// NewTriviaHandler creates a new trivia handler.
func NewTriviaHandler(dispatcher Dispatcher, reader Reader) *TriviaHandler {
	return &TriviaHandler{dispatcher: dispatcher, reader: reader}
}

// RegisterRoutes registers trivia routes.
func (h *TriviaHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.With(identity.Require).Post("/channels/{channelID}/commands", h.PostCommand)
		r.Get("/channels/{channelID}/scores", h.GetScores)
		r.Get("/channels/{channelID}/session", h.GetSession)
		r.Get("/questions", h.ListQuestions)
	})
}

// CommandRequest is the body of a posted chat line.
type CommandRequest struct {
	Text string `json:"text"`
	// Thread marks the channel as a thread, which suppresses the start tip.
	Thread bool `json:"thread,omitempty"`
}

// CommandResponse is the bot's answer to a posted chat line.
type CommandResponse struct {
	Handled  bool              `json:"handled"`
	Command  string            `json:"command,omitempty"`
	Reply    string            `json:"reply"`
	Messages []command.Message `json:"messages"`
}

// NewCommandResponse converts a dispatch result for the wire.
func NewCommandResponse(res command.Result) CommandResponse {
	messages := res.Reply.Messages
	if messages == nil {
		messages = []command.Message{}
	}
	return CommandResponse{
		Handled:  res.Handled,
		Command:  res.Command,
		Reply:    res.Reply.Text(),
		Messages: messages,
	}
}

// PostCommand runs one chat line through the command surface. Game rule
// failures are ordinary replies, so a handled command always returns 200.
func (h *TriviaHandler) PostCommand(w http.ResponseWriter, r *http.Request) {
	channelID, ok := ChannelIDParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	userID, _ := identity.UserIDFromContext(r.Context())

	var body CommandRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCommandBodyBytes)).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			Error(w, http.StatusBadRequest, "empty request body")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res := h.dispatcher.Dispatch(r.Context(), command.Request{
		ChannelID: channelID,
		UserID:    userID,
		Text:      body.Text,
		InThread:  body.Thread,
	})
	if res.Handled {
		slog.Debug("Command handled over HTTP", "channel_id", channelID, "user_id", userID, "command", res.Command)
	}

	JSON(w, http.StatusOK, NewCommandResponse(res))
}

// GetScores returns the scoreboard of the channel's open session.
func (h *TriviaHandler) GetScores(w http.ResponseWriter, r *http.Request) {
	channelID, ok := ChannelIDParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid channel id")
		return
	}

	board, err := h.reader.Scores(r.Context(), channelID)
	if err != nil {
		TriviaError(w, err)
		return
	}
	if board.Scores == nil {
		board.Scores = []domain.Score{}
	}
	JSON(w, http.StatusOK, board)
}

// GetSession returns the channel's most recent session.
func (h *TriviaHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	channelID, ok := ChannelIDParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid channel id")
		return
	}

	session, err := h.reader.SessionStatus(r.Context(), channelID)
	if err != nil {
		TriviaError(w, err)
		return
	}
	JSON(w, http.StatusOK, session)
}

// ListQuestions returns every active question, optionally filtered by the
// category query parameter. Answers are never included.
func (h *TriviaHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	list, err := h.reader.ListQuestions(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		TriviaError(w, err)
		return
	}
	if list.Questions == nil {
		list.Questions = []*domain.Question{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"category":  list.Category,
		"total":     len(list.Questions),
		"questions": list.Questions,
	})
}
