package models

import (
	"encoding/json"
	"time"
)

// Swipe actions.
const (
	SwipeLike      = "like"
	SwipeDislike   = "dislike"
	SwipeSuperLike = "super_like"
	SwipeUnsure    = "unsure"
)

// ValidSwipeAction reports whether action is one of the known swipe actions.
func ValidSwipeAction(action string) bool {
	switch action {
	case SwipeLike, SwipeDislike, SwipeSuperLike, SwipeUnsure:
		return true
	}
	return false
}

// Swipe records a couple's verdict on a single song. Unique per
// (event, song); a later swipe on the same song replaces the earlier one,
// including its reason tags.
type Swipe struct {
	ID      string `gorm:"primaryKey;size:32" json:"id"`
	EventID string `gorm:"size:32;not null;uniqueIndex:idx_event_song" json:"eventId"`
	SongID  string `gorm:"size:64;not null;uniqueIndex:idx_event_song" json:"songId"`
	Action  string `gorm:"size:16;not null" json:"action"`
	// Reasons is a JSON array of free-form reason tags, only meaningful for
	// dislike swipes.
	Reasons   string    `gorm:"type:json" json:"reasons"`
	SwipedAt  time.Time `json:"swipedAt"`
}

// SetReasons stores the reason tags as a JSON array. A nil or empty list is
// stored as "[]" so that re-swiping clears stale reasons.
func (s *Swipe) SetReasons(reasons []string) error {
	if reasons == nil {
		reasons = []string{}
	}
	data, err := json.Marshal(reasons)
	if err != nil {
		return err
	}
	s.Reasons = string(data)
	return nil
}

// ReasonList decodes the stored reason tags. Returns an empty list for
// missing or malformed data.
func (s *Swipe) ReasonList() []string {
	if s.Reasons == "" {
		return []string{}
	}
	var reasons []string
	if err := json.Unmarshal([]byte(s.Reasons), &reasons); err != nil {
		return []string{}
	}
	return reasons
}
