package models

import "time"

// PhoneSession is one phone-verification attempt for an event. Unique per
// (event, phone): repeated sends for the same pair overwrite the standing
// code instead of creating duplicate rows, so the session id is stable
// across resends. The code is cleared on successful verification (one-time
// use); expired unverified rows are purged periodically.
type PhoneSession struct {
	ID      string `gorm:"primaryKey;size:32" json:"id"`
	EventID string `gorm:"size:32;not null;uniqueIndex:idx_event_phone" json:"eventId"`
	Phone   string `gorm:"size:20;not null;uniqueIndex:idx_event_phone" json:"phone"`
	Code    string `gorm:"size:6" json:"-"`
	// ExpiresAt bounds code validity (5 minutes from send).
	ExpiresAt time.Time `gorm:"index" json:"expiresAt"`
	Verified  bool      `gorm:"default:false" json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
