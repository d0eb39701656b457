package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/trivia-bot/internal/command"
	"github.com/ashureev/trivia-bot/internal/identity"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

const maxFrameBytes = 16 << 10

// Frame types.
const (
	TypeMessage = "message"
	TypePing    = "ping"
	TypePong    = "pong"
	TypeChat    = "chat"
	TypeReply   = "reply"
	TypeError   = "error"
)

// Dispatcher handles chat commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request) command.Result
}

// ConnectionRecorder observes chat connections.
type ConnectionRecorder interface {
	ClientConnected()
	ClientDisconnected()
}

// inbound is a frame sent by a client.
type inbound struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Thread  bool   `json:"thread,omitempty"`
}

// Frame is a frame sent by the server.
type Frame struct {
	Type     string            `json:"type"`
	UserID   int64             `json:"user_id,omitempty"`
	Content  string            `json:"content,omitempty"`
	Command  string            `json:"command,omitempty"`
	Reply    string            `json:"reply,omitempty"`
	Messages []command.Message `json:"messages,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Handler upgrades requests to WebSocket chat connections.
type Handler struct {
	hub        *Hub
	dispatcher Dispatcher
	origins    []string
	recorder   ConnectionRecorder
}

// NewHandler creates a chat handler. origins are passed to the WebSocket
// origin check; "*" accepts any origin.
func NewHandler(hub *Hub, dispatcher Dispatcher, origins []string) *Handler {
	return &Handler{hub: hub, dispatcher: dispatcher, origins: origins}
}

// SetRecorder sets the connection recorder.
func (h *Handler) SetRecorder(r ConnectionRecorder) {
	h.recorder = r
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channelID, err := strconv.ParseInt(chi.URLParam(r, "channelID"), 10, 64)
	if err != nil || channelID <= 0 {
		http.Error(w, "invalid channel id", http.StatusBadRequest)
		return
	}
	userID, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "user id required", http.StatusUnauthorized)
		return
	}
	slog.Info("WebSocket connection request", "channel_id", channelID, "user_id", userID, "ip", r.RemoteAddr)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	ws.SetReadLimit(maxFrameBytes)

	h.hub.Register(channelID, ws)
	defer h.hub.Unregister(channelID, ws)
	if h.recorder != nil {
		h.recorder.ClientConnected()
		defer h.recorder.ClientDisconnected()
	}

	h.readLoop(r.Context(), ws, channelID, userID)
	slog.Info("Chat connection ended", "channel_id", channelID, "user_id", userID)
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, channelID, userID int64) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.writeFrame(ctx, ws, Frame{Type: TypeError, Error: "invalid frame"})
			continue
		}

		switch msg.Type {
		case TypeMessage:
			h.handleMessage(ctx, channelID, userID, msg)
		case TypePing:
			h.writeFrame(ctx, ws, Frame{Type: TypePong})
		default:
			h.writeFrame(ctx, ws, Frame{Type: TypeError, Error: "unknown frame type"})
		}
	}
}

// handleMessage posts a chat line to the channel. Commands are posted
// together with the bot's reply.
func (h *Handler) handleMessage(ctx context.Context, channelID, userID int64, msg inbound) {
	res := h.dispatcher.Dispatch(ctx, command.Request{
		ChannelID: channelID,
		UserID:    userID,
		Text:      msg.Content,
		InThread:  msg.Thread,
	})

	frame := Frame{Type: TypeChat, UserID: userID, Content: msg.Content}
	if res.Handled {
		frame.Type = TypeReply
		frame.Command = res.Command
		frame.Reply = res.Reply.Text()
		frame.Messages = res.Reply.Messages
	}

	if _, err := h.hub.Broadcast(ctx, channelID, frame); err != nil {
		slog.Error("Failed to broadcast chat frame", "error", err, "channel_id", channelID)
	}
}

func (h *Handler) writeFrame(ctx context.Context, ws *websocket.Conn, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		slog.Error("Failed to encode frame", "error", err)
		return
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("Failed to send frame", "error", err, "type", f.Type)
	}
}
