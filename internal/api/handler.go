// Package api provides HTTP handlers for the trivia API.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ashureev/trivia-bot/internal/trivia"
	"github.com/go-chi/chi/v5"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// TriviaError writes err with the status matching its trivia code.
func TriviaError(w http.ResponseWriter, err error) {
	code := trivia.CodeOf(err)
	JSON(w, StatusForCode(code), map[string]string{
		"error": err.Error(),
		"code":  string(code),
	})
}

// StatusForCode maps a trivia error code to an HTTP status.
func StatusForCode(code trivia.Code) int {
	switch code {
	case trivia.CodeNoSession, trivia.CodeNoActiveQuestion, trivia.CodeNoQuestions, trivia.CodeQuestionMissing:
		return http.StatusNotFound
	case trivia.CodeSessionExists, trivia.CodeAlreadyAnswered:
		return http.StatusConflict
	case trivia.CodeNotCreator:
		return http.StatusForbidden
	case trivia.CodeInvalidQuestion, trivia.CodeInvalidAnswer:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ChannelIDParam parses the {channelID} URL parameter.
func ChannelIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "channelID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
