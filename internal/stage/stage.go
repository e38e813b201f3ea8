// Package stage implements the five-stage questionnaire state machine.
package stage

import "github.com/setlistapp/setlist/internal/models"

// The five ordinal questionnaire stages.
const (
	Setup     = 0
	Questions = 1
	SongSwipe = 2
	Requests  = 3
	Summary   = 4
)

// MinSwipes is the minimum number of swipes before a couple may opt to
// finish the swipe deck early.
const MinSwipes = 10

// Names maps stages to display names.
var Names = map[int]string{
	Setup:     "setup",
	Questions: "questions",
	SongSwipe: "song swipe",
	Requests:  "requests",
	Summary:   "summary",
}

// Name returns the display name for a stage, or "unknown" for out-of-range
// values. Out-of-range stages are not an error here: the store accepts any
// integer and the UI simply has no matching view.
func Name(n int) string {
	if name, ok := Names[n]; ok {
		return name
	}
	return "unknown"
}

// SetupComplete reports whether the setup stage is complete: the event
// exists.
func SetupComplete(event *models.Event) bool {
	return event != nil && event.ID != ""
}

// QuestionsComplete reports whether every question in the flow (including
// the synthetic trailing question appended at import time) has been answered
// or skipped. Skips are recorded as answers with an empty value.
func QuestionsComplete(questionIDs []string, answers []models.Answer) bool {
	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		answered[a.QuestionID] = true
	}
	for _, id := range questionIDs {
		if !answered[id] {
			return false
		}
	}
	return true
}

// SwipesComplete reports whether the swipe stage may be completed: the deck
// is exhausted, or at least MinSwipes swipes exist and the couple opted to
// finish early.
func SwipesComplete(deckSize int, swipes []models.Swipe, finishEarly bool) bool {
	if deckSize > 0 && len(swipes) >= deckSize {
		return true
	}
	return finishEarly && len(swipes) >= MinSwipes
}

// RequiresConfirm reports whether a backward transition needs interactive
// confirmation. Only questions back to setup is destructive (implies
// re-doing setup); all other backward transitions are unconfirmed.
func RequiresConfirm(from, to int) bool {
	return from == Questions && to == Setup
}
