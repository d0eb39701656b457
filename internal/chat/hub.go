// Package chat provides WebSocket chat channels in which the trivia bot
// answers commands.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const memberWriteTimeout = 5 * time.Second

// Member is one connection in a channel. *websocket.Conn satisfies it.
type Member interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Hub tracks channel membership and fans frames out to members.
type Hub struct {
	mu       sync.RWMutex
	channels map[int64]map[Member]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		channels: make(map[int64]map[Member]struct{}),
	}
}

// Register adds a member to a channel.
func (h *Hub) Register(channelID int64, m Member) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.channels[channelID]
	if !ok {
		members = make(map[Member]struct{})
		h.channels[channelID] = members
	}
	members[m] = struct{}{}
	slog.Info("Chat member joined", "channel_id", channelID, "members", len(members))
}

// Unregister removes a member from a channel. Unknown members are ignored.
func (h *Hub) Unregister(channelID int64, m Member) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.channels[channelID]
	if !ok {
		return
	}
	if _, exists := members[m]; !exists {
		return
	}
	delete(members, m)
	if len(members) == 0 {
		delete(h.channels, channelID)
	}
	slog.Info("Chat member left", "channel_id", channelID, "members", len(members))
}

// Members returns the number of members in a channel.
func (h *Hub) Members(channelID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channelID])
}

// Broadcast sends v as a JSON text frame to every member of the channel and
// returns how many writes succeeded. Slow or broken members don't block the
// rest beyond the per-write timeout.
func (h *Hub) Broadcast(ctx context.Context, channelID int64, v interface{}) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	members := make([]Member, 0, len(h.channels[channelID]))
	for m := range h.channels[channelID] {
		members = append(members, m)
	}
	h.mu.RUnlock()

	sent := 0
	for _, m := range members {
		writeCtx, cancel := context.WithTimeout(ctx, memberWriteTimeout)
		err := m.Write(writeCtx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Debug("Chat broadcast write failed", "channel_id", channelID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// CloseAll disconnects every member, typically at shutdown.
func (h *Hub) CloseAll(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for channelID, members := range h.channels {
		for m := range members {
			_ = m.Close(websocket.StatusGoingAway, reason)
		}
		delete(h.channels, channelID)
	}
	slog.Info("Chat hub closed", "reason", reason)
}
