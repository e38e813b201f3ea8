package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/setlistapp/setlist/internal/db"
	"github.com/setlistapp/setlist/internal/models"
	"github.com/setlistapp/setlist/internal/otp"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ---------- helpers ----------

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := gdb.DB()
		sqlDB.Close()
	})

	gate, err := otp.NewGate(otp.GateOpts{DB: gdb})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	registerRoutes(router, gdb, gate)
	return router, gdb
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("parse response %q: %v", w.Body.String(), err)
		}
	}
	return w, parsed
}

func seedEvent(t *testing.T, gdb *gorm.DB, id string) models.Event {
	t.Helper()
	event := models.Event{
		ID:          id,
		ShareToken:  "tok-" + id,
		Type:        "wedding",
		CoupleNames: "Dana & Alex",
	}
	if err := gdb.Create(&event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return event
}

// ---------- event upsert ----------

func TestEventUpsert_CreateThenUpdate(t *testing.T) {
	router, gdb := setupRouter(t)

	body := map[string]interface{}{
		"shareToken":  "tok-abc",
		"type":        "wedding",
		"coupleNames": "Dana & Alex",
		"venue":       "The Barn",
	}
	w, _ := doJSON(t, router, http.MethodPatch, "/events/evt-abc", body)
	if w.Code != http.StatusOK {
		t.Fatalf("create status = %d, want 200: %s", w.Code, w.Body.String())
	}

	body["venue"] = "City Hall"
	body["currentStage"] = 2
	w, _ = doJSON(t, router, http.MethodPatch, "/events/evt-abc", body)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var count int64
	gdb.Model(&models.Event{}).Count(&count)
	if count != 1 {
		t.Errorf("event rows = %d, want 1 (upsert, not insert)", count)
	}
	var event models.Event
	if err := gdb.First(&event, "id = ?", "evt-abc").Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.Venue != "City Hall" {
		t.Errorf("venue = %q, want %q", event.Venue, "City Hall")
	}
	if event.CurrentStage != 2 {
		t.Errorf("current stage = %d, want 2", event.CurrentStage)
	}
}

func TestEventGet_ByIDAndToken(t *testing.T) {
	router, gdb := setupRouter(t)
	event := seedEvent(t, gdb, "evt-get")

	for _, ref := range []string{event.ID, event.ShareToken} {
		w, parsed := doJSON(t, router, http.MethodGet, "/events/"+ref, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("get %q status = %d, want 200", ref, w.Code)
		}
		got, ok := parsed["event"].(map[string]interface{})
		if !ok {
			t.Fatalf("get %q: missing event object in %v", ref, parsed)
		}
		if got["id"] != event.ID {
			t.Errorf("get %q: event id = %v, want %s", ref, got["id"], event.ID)
		}
	}
}

func TestEventGet_NotFound(t *testing.T) {
	router, _ := setupRouter(t)
	w, _ := doJSON(t, router, http.MethodGet, "/events/evt-missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ---------- answers ----------

func TestAnswerUpsert_SecondWriteWins(t *testing.T) {
	router, gdb := setupRouter(t)
	seedEvent(t, gdb, "evt-ans")

	first := map[string]interface{}{"questionId": "q-genres", "value": `["rock"]`}
	w, _ := doJSON(t, router, http.MethodPut, "/events/evt-ans/answers/ans-1", first)
	if w.Code != http.StatusOK {
		t.Fatalf("first write status = %d: %s", w.Code, w.Body.String())
	}

	// A second device answers the same question under a different row id.
	second := map[string]interface{}{"questionId": "q-genres", "value": `["rock","pop"]`}
	w, _ = doJSON(t, router, http.MethodPut, "/events/evt-ans/answers/ans-2", second)
	if w.Code != http.StatusOK {
		t.Fatalf("second write status = %d: %s", w.Code, w.Body.String())
	}

	var answers []models.Answer
	gdb.Where("event_id = ?", "evt-ans").Find(&answers)
	if len(answers) != 1 {
		t.Fatalf("answer rows = %d, want 1", len(answers))
	}
	if answers[0].ID != "ans-1" {
		t.Errorf("row id = %q, want original %q", answers[0].ID, "ans-1")
	}
	if answers[0].Value != `["rock","pop"]` {
		t.Errorf("value = %q, want the later write", answers[0].Value)
	}
}

func TestAnswerUpsert_MissingQuestion(t *testing.T) {
	router, gdb := setupRouter(t)
	seedEvent(t, gdb, "evt-ans2")

	w, _ := doJSON(t, router, http.MethodPut, "/events/evt-ans2/answers/ans-1",
		map[string]interface{}{"value": `"x"`})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---------- swipes ----------

func TestSwipeUpsert_ReplacesActionAndReasons(t *testing.T) {
	router, gdb := setupRouter(t)
	seedEvent(t, gdb, "evt-sw")

	w, _ := doJSON(t, router, http.MethodPut, "/events/evt-sw/swipes/sw-1", map[string]interface{}{
		"songId":  "song-42",
		"action":  models.SwipeDislike,
		"reasons": `["overplayed"]`,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("first swipe status = %d: %s", w.Code, w.Body.String())
	}

	w, _ = doJSON(t, router, http.MethodPut, "/events/evt-sw/swipes/sw-2", map[string]interface{}{
		"songId":  "song-42",
		"action":  models.SwipeLike,
		"reasons": `[]`,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("second swipe status = %d: %s", w.Code, w.Body.String())
	}

	var swipes []models.Swipe
	gdb.Where("event_id = ?", "evt-sw").Find(&swipes)
	if len(swipes) != 1 {
		t.Fatalf("swipe rows = %d, want 1", len(swipes))
	}
	if swipes[0].Action != models.SwipeLike {
		t.Errorf("action = %q, want %q", swipes[0].Action, models.SwipeLike)
	}
	if got := swipes[0].ReasonList(); len(got) != 0 {
		t.Errorf("reasons = %v, want cleared", got)
	}
}

func TestSwipeUpsert_InvalidAction(t *testing.T) {
	router, gdb := setupRouter(t)
	seedEvent(t, gdb, "evt-sw2")

	w, _ := doJSON(t, router, http.MethodPut, "/events/evt-sw2/swipes/sw-1",
		map[string]interface{}{"songId": "song-1", "action": "maybe"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---------- requests ----------

func TestRequestUpsertAndDelete(t *testing.T) {
	router, gdb := setupRouter(t)
	seedEvent(t, gdb, "evt-req")

	w, _ := doJSON(t, router, http.MethodPut, "/events/evt-req/requests/req-1", map[string]interface{}{
		"kind":    models.RequestDont,
		"content": "no line dances",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert status = %d: %s", w.Code, w.Body.String())
	}

	// Re-applying the same mutation is idempotent.
	w, _ = doJSON(t, router, http.MethodPut, "/events/evt-req/requests/req-1", map[string]interface{}{
		"kind":    models.RequestDont,
		"content": "no line dances",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("re-upsert status = %d: %s", w.Code, w.Body.String())
	}
	var count int64
	gdb.Model(&models.Request{}).Count(&count)
	if count != 1 {
		t.Errorf("request rows = %d, want 1", count)
	}

	w, _ = doJSON(t, router, http.MethodDelete, "/events/evt-req/requests/req-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	gdb.Model(&models.Request{}).Count(&count)
	if count != 0 {
		t.Errorf("request rows after delete = %d, want 0", count)
	}

	// Deleting an already-gone id still succeeds.
	w, _ = doJSON(t, router, http.MethodDelete, "/events/evt-req/requests/req-1", nil)
	if w.Code != http.StatusOK {
		t.Errorf("repeat delete status = %d, want 200", w.Code)
	}
}

func TestRequestUpsert_InvalidKind(t *testing.T) {
	router, gdb := setupRouter(t)
	seedEvent(t, gdb, "evt-req2")

	w, _ := doJSON(t, router, http.MethodPut, "/events/evt-req2/requests/req-1",
		map[string]interface{}{"kind": "complaint", "content": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---------- upsell clicks ----------

func TestUpsellClick_DuplicateDropped(t *testing.T) {
	router, gdb := setupRouter(t)
	seedEvent(t, gdb, "evt-up")

	body := map[string]interface{}{"id": "click-1", "upsellId": "photo-booth"}
	for i := 0; i < 2; i++ {
		w, _ := doJSON(t, router, http.MethodPost, "/events/evt-up/upsell-clicks", body)
		if w.Code != http.StatusOK {
			t.Fatalf("attempt %d status = %d: %s", i, w.Code, w.Body.String())
		}
	}

	var count int64
	gdb.Model(&models.UpsellClick{}).Count(&count)
	if count != 1 {
		t.Errorf("upsell click rows = %d, want 1", count)
	}
}

// ---------- analytics ingestion ----------

func TestAnalyticsTrack_BatchPersisted(t *testing.T) {
	router, gdb := setupRouter(t)

	body := map[string]interface{}{
		"events": []map[string]interface{}{
			{"eventName": "stage_enter", "category": "flow", "eventId": "evt-1", "metadata": map[string]interface{}{"stage": 1}},
			{"eventName": "song_swiped", "category": "action", "eventId": "evt-1"},
		},
	}
	w, parsed := doJSON(t, router, http.MethodPost, "/analytics/track", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ok, _ := parsed["ok"].(bool); !ok {
		t.Errorf("response = %v, want ok:true", parsed)
	}

	var rows []models.AnalyticsEvent
	gdb.Order("name").Find(&rows)
	if len(rows) != 2 {
		t.Fatalf("analytics rows = %d, want 2", len(rows))
	}
	if rows[1].Name != "stage_enter" || rows[1].Category != "flow" {
		t.Errorf("row = %+v, want stage_enter/flow", rows[1])
	}
	if !strings.Contains(rows[1].Metadata, `"stage":1`) {
		t.Errorf("metadata = %q, want to contain stage:1", rows[1].Metadata)
	}
}

func TestAnalyticsTrack_SingleEventForm(t *testing.T) {
	router, gdb := setupRouter(t)

	w, _ := doJSON(t, router, http.MethodPost, "/analytics/track",
		map[string]interface{}{"eventName": "page_view", "category": "flow", "pagePath": "/swipe"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var count int64
	gdb.Model(&models.AnalyticsEvent{}).Count(&count)
	if count != 1 {
		t.Errorf("analytics rows = %d, want 1", count)
	}
}

func TestAnalyticsTrack_GarbageStillOK(t *testing.T) {
	router, gdb := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/analytics/track", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("garbage payload status = %d, want 200", w.Code)
	}

	var count int64
	gdb.Model(&models.AnalyticsEvent{}).Count(&count)
	if count != 0 {
		t.Errorf("analytics rows = %d, want 0", count)
	}
}

// ---------- otp endpoints ----------

func TestOTPFlow_SendThenVerify(t *testing.T) {
	router, gdb := setupRouter(t)
	seedEvent(t, gdb, "evt-otp")

	w, parsed := doJSON(t, router, http.MethodPost, "/otp/send",
		map[string]interface{}{"phone": "050-123-4567", "eventId": "evt-otp"})
	if w.Code != http.StatusOK {
		t.Fatalf("send status = %d: %s", w.Code, w.Body.String())
	}
	sessionID, _ := parsed["sessionId"].(string)
	devCode, _ := parsed["devCode"].(string)
	if sessionID == "" || devCode == "" {
		t.Fatalf("send response = %v, want sessionId and devCode", parsed)
	}

	w, parsed = doJSON(t, router, http.MethodPost, "/otp/verify",
		map[string]interface{}{"sessionId": sessionID, "code": devCode})
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d: %s", w.Code, w.Body.String())
	}
	if verified, _ := parsed["verified"].(bool); !verified {
		t.Errorf("verified = %v, want true", parsed["verified"])
	}
	if parsed["resumeData"] != nil {
		t.Errorf("resumeData = %v, want null for a fresh event", parsed["resumeData"])
	}
}

func TestOTPVerify_ResumeDataWithProgress(t *testing.T) {
	router, gdb := setupRouter(t)
	seedEvent(t, gdb, "evt-otp2")

	answer := models.Answer{ID: "ans-1", EventID: "evt-otp2", QuestionID: "q-1", AnsweredAt: time.Now()}
	answer.EncodeValue("slow start")
	if err := gdb.Create(&answer).Error; err != nil {
		t.Fatalf("seed answer: %v", err)
	}

	w, parsed := doJSON(t, router, http.MethodPost, "/otp/send",
		map[string]interface{}{"phone": "0501234567", "eventId": "evt-otp2"})
	if w.Code != http.StatusOK {
		t.Fatalf("send status = %d", w.Code)
	}
	sessionID := parsed["sessionId"].(string)
	devCode := parsed["devCode"].(string)

	w, parsed = doJSON(t, router, http.MethodPost, "/otp/verify",
		map[string]interface{}{"sessionId": sessionID, "code": devCode})
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d", w.Code)
	}
	resume, ok := parsed["resumeData"].(map[string]interface{})
	if !ok {
		t.Fatalf("resumeData = %v, want object", parsed["resumeData"])
	}
	answers, _ := resume["answers"].([]interface{})
	if len(answers) != 1 {
		t.Errorf("resume answers = %d, want 1", len(answers))
	}
}

func TestOTPSend_ErrorMapping(t *testing.T) {
	router, gdb := setupRouter(t)
	seedEvent(t, gdb, "evt-otp3")

	tests := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"unknown event", map[string]interface{}{"phone": "0501234567", "eventId": "evt-nope"}, http.StatusNotFound},
		{"bad phone", map[string]interface{}{"phone": "12345", "eventId": "evt-otp3"}, http.StatusBadRequest},
		{"missing fields", map[string]interface{}{"phone": "0501234567"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := doJSON(t, router, http.MethodPost, "/otp/send", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestOTPVerify_WrongCodeAndUnknownSession(t *testing.T) {
	router, gdb := setupRouter(t)
	seedEvent(t, gdb, "evt-otp4")

	w, parsed := doJSON(t, router, http.MethodPost, "/otp/send",
		map[string]interface{}{"phone": "0501234567", "eventId": "evt-otp4"})
	if w.Code != http.StatusOK {
		t.Fatalf("send status = %d", w.Code)
	}
	sessionID := parsed["sessionId"].(string)

	w, _ = doJSON(t, router, http.MethodPost, "/otp/verify",
		map[string]interface{}{"sessionId": sessionID, "code": "000000"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong code status = %d, want 401", w.Code)
	}

	w, _ = doJSON(t, router, http.MethodPost, "/otp/verify",
		map[string]interface{}{"sessionId": "ps-nope", "code": "000000"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", w.Code)
	}
}

// ---------- server lifecycle ----------

func TestStart_RequiredOpts(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	if err == nil || !strings.Contains(err.Error(), "db is required") {
		t.Errorf("error = %v, want db required", err)
	}

	_, gdb := setupRouter(t)
	err = Start(context.Background(), StartOpts{DB: gdb})
	if err == nil || !strings.Contains(err.Error(), "gate is required") {
		t.Errorf("error = %v, want gate required", err)
	}
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	_, gdb := setupRouter(t)
	gate, err := otp.NewGate(otp.GateOpts{DB: gdb})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}

	port := 18080 + int(time.Now().UnixNano()%1000)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Start(ctx, StartOpts{DB: gdb, Gate: gate, Port: port})
	}()

	// Wait for the listener to come up, then cancel.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/events/none", port))
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v after cancel, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down after cancel")
	}
}
