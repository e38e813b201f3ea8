package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/setlistapp/setlist/internal/analytics"
	"github.com/setlistapp/setlist/internal/models"
	"gorm.io/gorm"
)

// handleAnalyticsTrack ingests telemetry batches. The contract is strict:
// this endpoint answers 200 {ok:true} no matter what — telemetry must
// never propagate failure back to the client.
func handleAnalyticsTrack(db *gorm.DB) gin.HandlerFunc {
	type trackRequest struct {
		// Batch form from the client batcher.
		Events []analytics.Event `json:"events"`
		// Single-event form for callers outside the batcher.
		analytics.Event
	}
	return func(c *gin.Context) {
		var req trackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Printf("api: analytics: bad payload: %v", err)
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}

		events := req.Events
		if len(events) == 0 && req.Name != "" {
			events = []analytics.Event{req.Event}
		}

		rows := make([]models.AnalyticsEvent, 0, len(events))
		for _, evt := range events {
			if evt.Name == "" {
				continue
			}
			metadata := ""
			if len(evt.Metadata) > 0 {
				if data, err := json.Marshal(evt.Metadata); err == nil {
					metadata = string(data)
				}
			}
			occurred := evt.OccurredAt
			if occurred.IsZero() {
				occurred = time.Now()
			}
			rows = append(rows, models.AnalyticsEvent{
				Name:       evt.Name,
				Category:   evt.Category,
				EventID:    evt.EventID,
				SessionID:  evt.SessionID,
				DJID:       evt.DJID,
				Metadata:   metadata,
				PagePath:   evt.PagePath,
				OccurredAt: occurred,
			})
		}

		if len(rows) > 0 {
			if err := db.Create(&rows).Error; err != nil {
				log.Printf("api: analytics: persist %d events: %v", len(rows), err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
