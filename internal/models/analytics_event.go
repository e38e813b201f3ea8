package models

import "time"

// AnalyticsEvent is a single write-once telemetry record. Rows arrive in
// batches from the client batcher and are never read back into the flow;
// the only consumers are the daily digest and offline reporting.
type AnalyticsEvent struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"size:64;not null;index" json:"eventName"`
	Category  string `gorm:"size:32;index" json:"category"`
	EventID   string `gorm:"size:32;index" json:"eventId"`
	SessionID string `gorm:"size:64" json:"sessionId"`
	DJID      string `gorm:"size:32" json:"djId"`
	// Metadata is a JSON object of free-form event attributes.
	Metadata   string    `gorm:"type:json" json:"metadata"`
	PagePath   string    `gorm:"size:128" json:"pagePath"`
	OccurredAt time.Time `json:"occurredAt"`
	CreatedAt  time.Time `json:"createdAt"`
}
