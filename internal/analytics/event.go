// Package analytics implements the shared telemetry batcher and its server
// side: batches of named events are queued on the client, flushed to the
// ingestion endpoint, and summarized in a daily digest. Telemetry is
// best-effort end to end; no failure here may surface to the couple.
package analytics

import "time"

// Event is a single telemetry record. Write-once: events are enqueued,
// flushed and never read back by the client.
type Event struct {
	Name       string                 `json:"eventName"`
	Category   string                 `json:"category"`
	EventID    string                 `json:"eventId,omitempty"`
	SessionID  string                 `json:"sessionId,omitempty"`
	DJID       string                 `json:"djId,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	PagePath   string                 `json:"pagePath,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// Event categories.
const (
	CategoryFlow   = "flow"
	CategoryAction = "action"
	CategoryUpsell = "upsell"
)
