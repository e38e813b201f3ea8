package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/setlistapp/setlist/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// handleEventGet returns the event and its collections, the full remote
// snapshot.
func handleEventGet(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var event models.Event
		err := db.Where("id = ? OR share_token = ?", id, id).First(&event).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		if err != nil {
			log.Printf("api: get event %s: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load event"})
			return
		}

		var answers []models.Answer
		db.Where("event_id = ?", event.ID).Find(&answers)
		var swipes []models.Swipe
		db.Where("event_id = ?", event.ID).Find(&swipes)
		var requests []models.Request
		db.Where("event_id = ?", event.ID).Find(&requests)

		c.JSON(http.StatusOK, gin.H{
			"event":    event,
			"answers":  answers,
			"swipes":   swipes,
			"requests": requests,
		})
	}
}

// handleEventUpsert creates or updates an event by its client-generated
// id. Re-applying the same payload is a no-op remotely.
func handleEventUpsert(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var event models.Event
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		event.ID = c.Param("id")
		if event.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event id is required"})
			return
		}

		result := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"share_token", "type", "couple_names", "event_date", "venue",
				"phone", "dj_id", "current_stage", "updated_at",
			}),
		}).Create(&event)
		if result.Error != nil {
			log.Printf("api: upsert event %s: %v", event.ID, result.Error)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save event"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "id": event.ID})
	}
}

// handleAnswerUpsert upserts an answer. The logical key is
// (event, question): a re-answer from any device overwrites, last write
// wins. The row keeps its original id when the question was already
// answered, so re-applying the same client mutation stays idempotent.
func handleAnswerUpsert(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload models.Answer
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		payload.ID = c.Param("answerID")
		payload.EventID = c.Param("id")
		if payload.QuestionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "questionId is required"})
			return
		}
		if payload.AnsweredAt.IsZero() {
			payload.AnsweredAt = time.Now()
		}

		var existing models.Answer
		err := db.Where("event_id = ? AND question_id = ?", payload.EventID, payload.QuestionID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			err = db.Create(&payload).Error
		case err == nil:
			err = db.Model(&existing).Updates(map[string]interface{}{
				"value":       payload.Value,
				"answered_at": payload.AnsweredAt,
			}).Error
		}
		if err != nil {
			log.Printf("api: upsert answer %s/%s: %v", payload.EventID, payload.QuestionID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save answer"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// handleSwipeUpsert upserts a swipe by (event, song). Action and reason
// tags are replaced together as one record.
func handleSwipeUpsert(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload models.Swipe
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		payload.ID = c.Param("swipeID")
		payload.EventID = c.Param("id")
		if payload.SongID == "" || !models.ValidSwipeAction(payload.Action) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "songId and a valid action are required"})
			return
		}
		if payload.SwipedAt.IsZero() {
			payload.SwipedAt = time.Now()
		}

		var existing models.Swipe
		err := db.Where("event_id = ? AND song_id = ?", payload.EventID, payload.SongID).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			err = db.Create(&payload).Error
		case err == nil:
			err = db.Model(&existing).Updates(map[string]interface{}{
				"action":    payload.Action,
				"reasons":   payload.Reasons,
				"swiped_at": payload.SwipedAt,
			}).Error
		}
		if err != nil {
			log.Printf("api: upsert swipe %s/%s: %v", payload.EventID, payload.SongID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save swipe"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// handleRequestUpsert upserts a request by its own id. Requests are
// append-only client-side, so a re-applied mutation is the only update
// path.
func handleRequestUpsert(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload models.Request
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		payload.ID = c.Param("requestID")
		payload.EventID = c.Param("id")
		if !models.ValidRequestKind(payload.Kind) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "a valid kind is required"})
			return
		}

		result := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"kind", "content", "moment_type",
			}),
		}).Create(&payload)
		if result.Error != nil {
			log.Printf("api: upsert request %s: %v", payload.ID, result.Error)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save request"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// handleRequestDelete removes a request by id. Deleting an unknown id is
// a success: the mutation's goal state already holds.
func handleRequestDelete(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID := c.Param("id")
		requestID := c.Param("requestID")
		if err := db.Where("event_id = ?", eventID).Delete(&models.Request{}, "id = ?", requestID).Error; err != nil {
			log.Printf("api: delete request %s: %v", requestID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete request"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// handleUpsellClick appends an upsell click. Duplicate ids (a re-dispatched
// mutation) are dropped silently.
func handleUpsellClick(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload models.UpsellClick
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		payload.EventID = c.Param("id")
		if payload.ID == "" || payload.UpsellID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id and upsellId are required"})
			return
		}
		if payload.ClickedAt.IsZero() {
			payload.ClickedAt = time.Now()
		}

		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&payload)
		if result.Error != nil {
			log.Printf("api: record upsell click %s: %v", payload.ID, result.Error)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record click"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
