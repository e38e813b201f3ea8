package models

import "time"

// Request kinds.
const (
	RequestFreeText      = "free_text"
	RequestDo            = "do"
	RequestDont          = "dont"
	RequestLink          = "link"
	RequestSpecialMoment = "special_moment"
)

// ValidRequestKind reports whether kind is one of the known request kinds.
func ValidRequestKind(kind string) bool {
	switch kind {
	case RequestFreeText, RequestDo, RequestDont, RequestLink, RequestSpecialMoment:
		return true
	}
	return false
}

// Request is a free-standing couple request (must-play note, do/don't,
// link, special moment). Append-only until explicitly removed by id; a
// couple may add duplicate free-text requests.
type Request struct {
	ID      string `gorm:"primaryKey;size:32" json:"id"`
	EventID string `gorm:"size:32;not null;index" json:"eventId"`
	Kind    string `gorm:"size:20;not null" json:"kind"`
	Content string `gorm:"type:text" json:"content"`
	// MomentType tags special_moment requests (e.g. "first_dance").
	MomentType string    `gorm:"size:32" json:"momentType"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UpsellClick is an append-only record of a couple clicking an upsell offer.
// Used only for downstream reporting, never read back into the flow.
type UpsellClick struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	EventID   string    `gorm:"size:32;not null;index" json:"eventId"`
	UpsellID  string    `gorm:"size:64;not null" json:"upsellId"`
	ClickedAt time.Time `json:"clickedAt"`
}
