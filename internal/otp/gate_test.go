package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/setlistapp/setlist/internal/models"
	"github.com/setlistapp/setlist/internal/sms"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openGateTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Event{},
		&models.Answer{},
		&models.Swipe{},
		&models.Request{},
		&models.PhoneSession{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func newTestGate(t *testing.T, db *gorm.DB) *Gate {
	t.Helper()
	g, err := NewGate(GateOpts{DB: db})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return g
}

func seedEvent(t *testing.T, db *gorm.DB) models.Event {
	t.Helper()
	evt := models.Event{ID: "evt-abc123", ShareToken: "tok-deadbeef", CurrentStage: 1}
	if err := db.Create(&evt).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return evt
}

// storedCode reads the current code for a session straight from the DB.
func storedCode(t *testing.T, db *gorm.DB, sessionID string) string {
	t.Helper()
	var session models.PhoneSession
	if err := db.First(&session, "id = ?", sessionID).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	return session.Code
}

// ---------------------------------------------------------------------------
// SendCode
// ---------------------------------------------------------------------------

func TestSendCode_DevFallbackReturnsCode(t *testing.T) {
	db := openGateTestDB(t)
	seedEvent(t, db)
	g := newTestGate(t, db)

	res, err := g.SendCode(context.Background(), "0501234567", "evt-abc123")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Sent {
		t.Error("Sent = true without a provider")
	}
	if len(res.DevCode) != 6 {
		t.Errorf("DevCode = %q, want 6 digits", res.DevCode)
	}
	if res.SessionID == "" {
		t.Error("missing session id")
	}
}

func TestSendCode_LookupByShareToken(t *testing.T) {
	db := openGateTestDB(t)
	seedEvent(t, db)
	g := newTestGate(t, db)

	res, err := g.SendCode(context.Background(), "0501234567", "tok-deadbeef")
	if err != nil {
		t.Fatalf("send by token: %v", err)
	}

	var session models.PhoneSession
	if err := db.First(&session, "id = ?", res.SessionID).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.EventID != "evt-abc123" {
		t.Errorf("session bound to %q, want evt-abc123", session.EventID)
	}
	if session.Phone != "+972501234567" {
		t.Errorf("phone = %q, want normalized +972501234567", session.Phone)
	}
}

func TestSendCode_UnknownEvent(t *testing.T) {
	db := openGateTestDB(t)
	g := newTestGate(t, db)

	_, err := g.SendCode(context.Background(), "0501234567", "evt-nope")
	if !errors.Is(err, ErrEventNotFound) {
		t.Errorf("err = %v, want ErrEventNotFound", err)
	}
}

func TestSendCode_MalformedPhone(t *testing.T) {
	db := openGateTestDB(t)
	seedEvent(t, db)
	g := newTestGate(t, db)

	for _, phone := range []string{"12345", "abc", "", "0 5 x"} {
		if _, err := g.SendCode(context.Background(), phone, "evt-abc123"); err == nil {
			t.Errorf("phone %q: expected validation error", phone)
		}
	}
}

func TestSendCode_ResendReusesSession(t *testing.T) {
	db := openGateTestDB(t)
	seedEvent(t, db)
	g := newTestGate(t, db)
	ctx := context.Background()

	first, err := g.SendCode(ctx, "0501234567", "evt-abc123")
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	second, err := g.SendCode(ctx, "050-123-4567", "evt-abc123")
	if err != nil {
		t.Fatalf("second send: %v", err)
	}

	// Upsert, not duplicate creation: same session id both times.
	if first.SessionID != second.SessionID {
		t.Errorf("session ids differ: %s vs %s", first.SessionID, second.SessionID)
	}
	var count int64
	db.Model(&models.PhoneSession{}).Count(&count)
	if count != 1 {
		t.Errorf("phone sessions = %d, want 1", count)
	}
}

func TestSendCode_ProviderDispatch(t *testing.T) {
	db := openGateTestDB(t)
	seedEvent(t, db)
	mock := sms.NewMock()
	g, err := NewGate(GateOpts{DB: db, Provider: mock})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}

	res, err := g.SendCode(context.Background(), "0501234567", "evt-abc123")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !res.Sent {
		t.Error("Sent = false with a provider configured")
	}
	if res.DevCode != "" {
		t.Error("DevCode leaked despite provider dispatch")
	}
	if mock.Count() != 1 || mock.Sent[0].To != "+972501234567" {
		t.Errorf("deliveries = %+v", mock.Sent)
	}
}

func TestSendCode_ProviderFailure(t *testing.T) {
	db := openGateTestDB(t)
	seedEvent(t, db)
	mock := sms.NewMock()
	mock.Err = errors.New("gateway down")
	g, _ := NewGate(GateOpts{DB: db, Provider: mock})

	if _, err := g.SendCode(context.Background(), "0501234567", "evt-abc123"); err == nil {
		t.Fatal("expected dispatch error")
	}
}

// ---------------------------------------------------------------------------
// VerifyCode
// ---------------------------------------------------------------------------

func TestVerifyCode_Success(t *testing.T) {
	db := openGateTestDB(t)
	seedEvent(t, db)
	g := newTestGate(t, db)
	ctx := context.Background()

	sent, err := g.SendCode(ctx, "0501234567", "evt-abc123")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	res, err := g.VerifyCode(ctx, sent.SessionID, sent.DevCode)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Event.ID != "evt-abc123" {
		t.Errorf("event = %q", res.Event.ID)
	}
	// Phone is stamped onto the parent event.
	if res.Event.Phone != "+972501234567" {
		t.Errorf("event phone = %q, want stamped number", res.Event.Phone)
	}
	// One-time use: the stored code is cleared.
	if code := storedCode(t, db, sent.SessionID); code != "" {
		t.Errorf("stored code = %q, want cleared", code)
	}
	// A second verify with the same code must fail.
	if _, err := g.VerifyCode(ctx, sent.SessionID, sent.DevCode); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("replay err = %v, want ErrInvalidCode", err)
	}
}

func TestVerifyCode_UnknownSession(t *testing.T) {
	db := openGateTestDB(t)
	g := newTestGate(t, db)

	_, err := g.VerifyCode(context.Background(), "ps-nope", "123456")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestVerifyCode_Expired(t *testing.T) {
	db := openGateTestDB(t)
	seedEvent(t, db)
	g := newTestGate(t, db)
	ctx := context.Background()

	sent, err := g.SendCode(ctx, "0501234567", "evt-abc123")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	// Jump past the expiry; the correct code must still fail.
	g.now = func() time.Time { return time.Now().Add(DefaultCodeTTL + time.Minute) }
	if _, err := g.VerifyCode(ctx, sent.SessionID, sent.DevCode); !errors.Is(err, ErrCodeExpired) {
		t.Errorf("err = %v, want ErrCodeExpired", err)
	}
}

func TestVerifyCode_WrongCode(t *testing.T) {
	db := openGateTestDB(t)
	seedEvent(t, db)
	g := newTestGate(t, db)
	ctx := context.Background()

	sent, err := g.SendCode(ctx, "0501234567", "evt-abc123")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	wrong := "000000"
	if wrong == sent.DevCode {
		wrong = "000001"
	}
	if _, err := g.VerifyCode(ctx, sent.SessionID, wrong); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("err = %v, want ErrInvalidCode", err)
	}
}

func TestVerifyCode_ResendInvalidatesFirstCode(t *testing.T) {
	db := openGateTestDB(t)
	seedEvent(t, db)
	g := newTestGate(t, db)
	ctx := context.Background()

	first, err := g.SendCode(ctx, "0501234567", "evt-abc123")
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	second, err := g.SendCode(ctx, "0501234567", "evt-abc123")
	if err != nil {
		t.Fatalf("second send: %v", err)
	}

	if first.DevCode != second.DevCode {
		if _, err := g.VerifyCode(ctx, first.SessionID, first.DevCode); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("stale code err = %v, want ErrInvalidCode", err)
		}
	}
	if _, err := g.VerifyCode(ctx, second.SessionID, second.DevCode); err != nil {
		t.Errorf("latest code failed: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Resume data
// ---------------------------------------------------------------------------

func TestVerifyCode_ResumeNilForFreshEvent(t *testing.T) {
	db := openGateTestDB(t)
	seedEvent(t, db)
	g := newTestGate(t, db)
	ctx := context.Background()

	sent, _ := g.SendCode(ctx, "0501234567", "evt-abc123")
	res, err := g.VerifyCode(ctx, sent.SessionID, sent.DevCode)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Resume != nil {
		t.Errorf("resume = %+v, want nil for an event with no progress", res.Resume)
	}
}

func TestVerifyCode_SingleAnswerFlipsResume(t *testing.T) {
	db := openGateTestDB(t)
	evt := seedEvent(t, db)
	db.Create(&models.Answer{ID: "ans-1", EventID: evt.ID, QuestionID: "q1", Value: `"yes"`})
	g := newTestGate(t, db)
	ctx := context.Background()

	sent, _ := g.SendCode(ctx, "0501234567", evt.ID)
	res, err := g.VerifyCode(ctx, sent.SessionID, sent.DevCode)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Resume == nil {
		t.Fatal("resume = nil, want snapshot with exactly one answer")
	}
	if len(res.Resume.Answers) != 1 || res.Resume.Answers[0].QuestionID != "q1" {
		t.Errorf("answers = %+v", res.Resume.Answers)
	}
	if res.Resume.CurrentStage != 1 {
		t.Errorf("currentStage = %d, want 1", res.Resume.CurrentStage)
	}
}

func TestVerifyCode_ResumeIncludesAllProgress(t *testing.T) {
	db := openGateTestDB(t)
	evt := seedEvent(t, db)
	db.Create(&models.Swipe{ID: "swp-1", EventID: evt.ID, SongID: "s1", Action: models.SwipeLike})
	db.Create(&models.Request{ID: "req-1", EventID: evt.ID, Kind: models.RequestDont, Content: "no polka"})
	g := newTestGate(t, db)
	ctx := context.Background()

	sent, _ := g.SendCode(ctx, "0501234567", evt.ID)
	res, err := g.VerifyCode(ctx, sent.SessionID, sent.DevCode)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Resume == nil {
		t.Fatal("resume = nil, want snapshot")
	}
	if len(res.Resume.Swipes) != 1 || len(res.Resume.Requests) != 1 {
		t.Errorf("resume = %+v", res.Resume)
	}
}

// ---------------------------------------------------------------------------
// Maintenance
// ---------------------------------------------------------------------------

func TestPurgeExpired(t *testing.T) {
	db := openGateTestDB(t)
	seedEvent(t, db)
	g := newTestGate(t, db)

	db.Create(&models.PhoneSession{
		ID: "ps-old", EventID: "evt-abc123", Phone: "+972500000001",
		Code: "111111", ExpiresAt: time.Now().Add(-time.Hour),
	})
	db.Create(&models.PhoneSession{
		ID: "ps-live", EventID: "evt-abc123", Phone: "+972500000002",
		Code: "222222", ExpiresAt: time.Now().Add(time.Hour),
	})
	db.Create(&models.PhoneSession{
		ID: "ps-done", EventID: "evt-abc123", Phone: "+972500000003",
		Verified: true, ExpiresAt: time.Now().Add(-time.Hour),
	})

	purged, err := g.PurgeExpired()
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	var remaining []models.PhoneSession
	db.Find(&remaining)
	if len(remaining) != 2 {
		t.Errorf("remaining sessions = %d, want 2 (live + verified)", len(remaining))
	}
}

func TestGenerateCode_SixDigits(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q, want 6 digits", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Error("50 generated codes were all identical")
	}
}
