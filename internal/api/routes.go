package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/setlistapp/setlist/internal/otp"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, gate *otp.Gate) {
	router.POST("/otp/send", handleOTPSend(gate))
	router.POST("/otp/verify", handleOTPVerify(gate))

	router.POST("/analytics/track", handleAnalyticsTrack(db))

	// Idempotent upserts keyed by the entity's own client-generated id.
	router.GET("/events/:id", handleEventGet(db))
	router.PATCH("/events/:id", handleEventUpsert(db))
	router.PUT("/events/:id/answers/:answerID", handleAnswerUpsert(db))
	router.PUT("/events/:id/swipes/:swipeID", handleSwipeUpsert(db))
	router.PUT("/events/:id/requests/:requestID", handleRequestUpsert(db))
	router.DELETE("/events/:id/requests/:requestID", handleRequestDelete(db))
	router.POST("/events/:id/upsell-clicks", handleUpsellClick(db))
}

func handleOTPSend(gate *otp.Gate) gin.HandlerFunc {
	type sendRequest struct {
		Phone   string `json:"phone"`
		EventID string `json:"eventId"`
	}
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Phone == "" || req.EventID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "phone and eventId are required"})
			return
		}

		res, err := gate.SendCode(c.Request.Context(), req.Phone, req.EventID)
		switch {
		case errors.Is(err, otp.ErrEventNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		case errors.Is(err, otp.ErrInvalidPhone):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			log.Printf("api: otp send: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send code"})
			return
		}

		body := gin.H{"sessionId": res.SessionID, "sent": true}
		if res.DevCode != "" {
			body["devCode"] = res.DevCode
		}
		c.JSON(http.StatusOK, body)
	}
}

func handleOTPVerify(gate *otp.Gate) gin.HandlerFunc {
	type verifyRequest struct {
		SessionID string `json:"sessionId"`
		Code      string `json:"code"`
	}
	return func(c *gin.Context) {
		var req verifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		res, err := gate.VerifyCode(c.Request.Context(), req.SessionID, req.Code)
		switch {
		case errors.Is(err, otp.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "verification session not found"})
			return
		case errors.Is(err, otp.ErrCodeExpired):
			c.JSON(http.StatusGone, gin.H{"error": "code expired"})
			return
		case errors.Is(err, otp.ErrInvalidCode):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
			return
		case err != nil:
			log.Printf("api: otp verify: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify code"})
			return
		}

		body := gin.H{
			"verified":  true,
			"sessionId": res.SessionID,
			"event":     res.Event,
		}
		if res.Resume != nil {
			body["resumeData"] = res.Resume
		} else {
			body["resumeData"] = nil
		}
		c.JSON(http.StatusOK, body)
	}
}
