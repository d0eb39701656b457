package trivia

import (
	"fmt"
	"strings"

	"github.com/ashureev/trivia-bot/internal/domain"
)

const (
	// listDisplayLimit caps how many questions a listing shows.
	listDisplayLimit = 10
	// listTextLimit caps how many characters of each question a listing shows.
	listTextLimit = 100
)

// Scoreboard holds per-player results for one session, best first.
type Scoreboard struct {
	SessionID int64          `json:"session_id"`
	Scores    []domain.Score `json:"scores"`
}

// String renders the scoreboard for chat. Players are shown as mentions.
func (b Scoreboard) String() string {
	if len(b.Scores) == 0 {
		return "No answers submitted yet."
	}

	lines := make([]string, 0, len(b.Scores)+1)
	lines = append(lines, "**Trivia Scores:**")
	for i, score := range b.Scores {
		lines = append(lines, fmt.Sprintf("%d. <@%d>: %d/%d correct", i+1, score.PlayerID, score.Correct, score.Total))
	}
	return strings.Join(lines, "\n")
}

// QuestionList is the result of listing active questions.
type QuestionList struct {
	Category  string             `json:"category,omitempty"`
	Questions []*domain.Question `json:"questions"`
}

// String renders at most ten questions and a count of the rest.
func (l QuestionList) String() string {
	if len(l.Questions) == 0 {
		if l.Category != "" {
			return fmt.Sprintf("No questions found in category '%s'.", l.Category)
		}
		return "No questions available."
	}

	lines := []string{fmt.Sprintf("**Available Questions (%d total):**", len(l.Questions))}
	for i, q := range l.Questions {
		if i == listDisplayLimit {
			break
		}
		lines = append(lines, fmt.Sprintf("• %s (Category: %s)", truncate(q.Text, listTextLimit), q.Category))
	}
	if remaining := len(l.Questions) - listDisplayLimit; remaining > 0 {
		lines = append(lines, fmt.Sprintf("... and %d more questions", remaining))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
