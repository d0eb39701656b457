// Package seed loads the built-in Twilight Imperium 4 question set.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/trivia-bot/internal/domain"
	"github.com/ashureev/trivia-bot/internal/store"
)

// Entry is one built-in question.
type Entry struct {
	Text     string
	Answer   string
	Category string
}

// Questions is the built-in question set.
var Questions = []Entry{
	{"What is the maximum number of strategy cards a player can hold?", "1", "rules"},
	{"Which faction has the ability to build War Suns without owning the technology?", "The Embers of Muaat", "factions"},
	{"What is the name of the central planet in Twilight Imperium?", "Mecatol Rex", "lore"},
	{"How many victory points are needed to win a standard game?", "10", "rules"},
	{"Which faction starts the game with 2 War Suns?", "The Embers of Muaat", "factions"},
	{"What is the name of the precursor race that once ruled the galaxy?", "Lazax", "lore"},
	{"How many trade goods does the Trade strategy card give its primary user?", "3", "rules"},
	{"Which faction has the racial ability called 'Fragile'?", "The Winnu", "factions"},
	{"What planet produces the most resources in the base game?", "Wellon", "planets"},
	{"How many command tokens does each player start with?", "8", "rules"},
	{"Which faction can produce units in any system containing their units?", "The Arborec", "factions"},
	{"What is the maximum fleet supply in the base game without technologies?", "3", "rules"},
	{"Which strategy card allows you to build a PDS or Space Dock on any planet you control?", "Construction", "strategy"},
	{"What faction has the ability to ignore planetary shields?", "The L1Z1X Mindnet", "factions"},
	{"How many plastic pieces does a standard TI4 game contain?", "354", "components"},
}

// Result counts what a Run did.
type Result struct {
	Inserted int
	Skipped  int
}

// Run inserts every entry whose text is not stored yet, in one transaction.
// Seeded questions have no creator.
func Run(ctx context.Context, repo store.Repository, entries []Entry) (Result, error) {
	var res Result
	now := time.Now()

	err := repo.InTx(ctx, func(q store.Queries) error {
		for _, e := range entries {
			exists, err := q.QuestionTextExists(ctx, e.Text)
			if err != nil {
				return err
			}
			if exists {
				res.Skipped++
				continue
			}

			if err := q.CreateQuestion(ctx, &domain.Question{
				Text:          e.Text,
				CorrectAnswer: e.Answer,
				Category:      e.Category,
				Difficulty:    domain.DefaultDifficulty,
				IsActive:      true,
				CreatedAt:     now,
			}); err != nil {
				return fmt.Errorf("seed %q: %w", e.Text, err)
			}
			res.Inserted++
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
