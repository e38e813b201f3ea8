// Package otp implements the phone verification gate: a 6-digit one-time
// code bound to an (event, phone) pair, verified before a session may be
// resumed from the remote datastore.
package otp

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/setlistapp/setlist/internal/ids"
	"github.com/setlistapp/setlist/internal/models"
	"github.com/setlistapp/setlist/internal/sms"
	"gorm.io/gorm"
)

// Verification failure taxonomy. The API layer maps these onto status
// codes; nothing here is fatal.
var (
	ErrEventNotFound   = errors.New("otp: event not found")
	ErrSessionNotFound = errors.New("otp: verification session not found")
	ErrCodeExpired     = errors.New("otp: code expired")
	ErrInvalidCode     = errors.New("otp: invalid code")
)

// DefaultCodeTTL bounds code validity.
const DefaultCodeTTL = 5 * time.Minute

// Gate issues, stores and verifies one-time codes.
type Gate struct {
	db            *gorm.DB
	provider      sms.Provider
	ttl           time.Duration
	countryPrefix string
	now           func() time.Time
}

// GateOpts holds parameters for creating a Gate.
type GateOpts struct {
	DB            *gorm.DB
	Provider      sms.Provider  // nil: return codes inline (dev fallback)
	CodeTTL       time.Duration // defaults to DefaultCodeTTL
	CountryPrefix string        // defaults to "+972"
}

// NewGate creates a Gate.
func NewGate(opts GateOpts) (*Gate, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("otp: gate: db is required")
	}
	ttl := opts.CodeTTL
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	prefix := opts.CountryPrefix
	if prefix == "" {
		prefix = "+972"
	}
	return &Gate{
		db:            opts.DB,
		provider:      opts.Provider,
		ttl:           ttl,
		countryPrefix: prefix,
		now:           time.Now,
	}, nil
}

// GenerateCode returns a uniformly random 6-digit code.
func GenerateCode() (string, error) {
	// Rejection sampling keeps the distribution uniform over 000000-999999.
	const limit = 4294000000 // largest multiple of 1e6 that fits in uint32
	var buf [4]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return "", fmt.Errorf("otp: generate code: %w", err)
		}
		v := binary.BigEndian.Uint32(buf[:])
		if v < limit {
			return fmt.Sprintf("%06d", v%1000000), nil
		}
	}
}

// SendResult is the outcome of SendCode.
type SendResult struct {
	SessionID string
	Sent      bool   // true when a provider dispatched the code out-of-band
	DevCode   string // set only when no provider is configured
}

// SendCode normalizes the phone, resolves the event by id or share token,
// and upserts the (event, phone) verification session with a fresh code and
// expiry. Repeated sends for the same pair overwrite the standing code and
// return the same session id; only the most recent code is ever valid.
func (g *Gate) SendCode(ctx context.Context, phone, eventRef string) (SendResult, error) {
	normalized, err := NormalizePhone(phone, g.countryPrefix)
	if err != nil {
		return SendResult{}, err
	}

	var event models.Event
	err = g.db.Where("id = ? OR share_token = ?", eventRef, eventRef).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SendResult{}, ErrEventNotFound
	}
	if err != nil {
		return SendResult{}, fmt.Errorf("otp: look up event %s: %w", eventRef, err)
	}

	code, err := GenerateCode()
	if err != nil {
		return SendResult{}, err
	}
	expires := g.now().Add(g.ttl)

	var session models.PhoneSession
	err = g.db.Where("event_id = ? AND phone = ?", event.ID, normalized).First(&session).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		id, idErr := ids.New("ps")
		if idErr != nil {
			return SendResult{}, idErr
		}
		session = models.PhoneSession{
			ID:        id,
			EventID:   event.ID,
			Phone:     normalized,
			Code:      code,
			ExpiresAt: expires,
		}
		if err := g.db.Create(&session).Error; err != nil {
			return SendResult{}, fmt.Errorf("otp: create session: %w", err)
		}
	case err != nil:
		return SendResult{}, fmt.Errorf("otp: look up session: %w", err)
	default:
		// Resend: overwrite the standing code, invalidating the old one.
		updates := map[string]interface{}{
			"code":       code,
			"expires_at": expires,
			"verified":   false,
		}
		if err := g.db.Model(&session).Updates(updates).Error; err != nil {
			return SendResult{}, fmt.Errorf("otp: refresh session: %w", err)
		}
	}

	if g.provider == nil {
		// Deliberate non-production fallback: hand the code back inline so
		// local setups can verify without an SMS gateway.
		return SendResult{SessionID: session.ID, DevCode: code}, nil
	}
	body := fmt.Sprintf("Your Setlist verification code is %s", code)
	if err := g.provider.Send(ctx, normalized, body); err != nil {
		return SendResult{}, fmt.Errorf("otp: dispatch code: %w", err)
	}
	return SendResult{SessionID: session.ID, Sent: true}, nil
}

// ResumeData is the prior-progress snapshot returned after verification,
// used to distinguish a returning session from a brand-new one.
type ResumeData struct {
	Answers      []models.Answer  `json:"answers"`
	Swipes       []models.Swipe   `json:"swipes"`
	Requests     []models.Request `json:"requests"`
	CurrentStage int              `json:"currentStage"`
}

// VerifyResult is the outcome of a successful VerifyCode.
type VerifyResult struct {
	SessionID string
	Event     models.Event
	// Resume is non-nil iff the event already has at least one answer or
	// swipe; nil tells the caller to start fresh.
	Resume *ResumeData
}

// VerifyCode checks a submitted code against the stored session. On
// success the session is marked verified, the code is cleared (one-time
// use) and the phone number is stamped onto the event.
func (g *Gate) VerifyCode(ctx context.Context, sessionID, code string) (VerifyResult, error) {
	var session models.PhoneSession
	err := g.db.First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return VerifyResult{}, ErrSessionNotFound
	}
	if err != nil {
		return VerifyResult{}, fmt.Errorf("otp: look up session %s: %w", sessionID, err)
	}

	if g.now().After(session.ExpiresAt) {
		return VerifyResult{}, ErrCodeExpired
	}
	if session.Code == "" || session.Code != code {
		return VerifyResult{}, ErrInvalidCode
	}

	updates := map[string]interface{}{"verified": true, "code": ""}
	if err := g.db.Model(&session).Updates(updates).Error; err != nil {
		return VerifyResult{}, fmt.Errorf("otp: mark verified: %w", err)
	}

	var event models.Event
	if err := g.db.First(&event, "id = ?", session.EventID).Error; err != nil {
		return VerifyResult{}, fmt.Errorf("otp: load event %s: %w", session.EventID, err)
	}
	if event.Phone != session.Phone {
		event.Phone = session.Phone
		if err := g.db.Model(&event).Update("phone", session.Phone).Error; err != nil {
			return VerifyResult{}, fmt.Errorf("otp: stamp phone: %w", err)
		}
	}

	resume, err := g.buildResume(event)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{SessionID: session.ID, Event: event, Resume: resume}, nil
}

// buildResume loads prior progress, or returns nil when the event has no
// answers and no swipes yet. Exactly one answer is enough to flip it.
func (g *Gate) buildResume(event models.Event) (*ResumeData, error) {
	var answers []models.Answer
	if err := g.db.Where("event_id = ?", event.ID).Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("otp: load answers: %w", err)
	}
	var swipes []models.Swipe
	if err := g.db.Where("event_id = ?", event.ID).Find(&swipes).Error; err != nil {
		return nil, fmt.Errorf("otp: load swipes: %w", err)
	}
	if len(answers) == 0 && len(swipes) == 0 {
		return nil, nil
	}
	var requests []models.Request
	if err := g.db.Where("event_id = ?", event.ID).Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("otp: load requests: %w", err)
	}
	return &ResumeData{
		Answers:      answers,
		Swipes:       swipes,
		Requests:     requests,
		CurrentStage: event.CurrentStage,
	}, nil
}

// PurgeExpired deletes unverified sessions whose code expired. Run
// periodically; verified rows are kept as an audit of the phone binding.
func (g *Gate) PurgeExpired() (int64, error) {
	res := g.db.Where("verified = ? AND expires_at < ?", false, g.now()).
		Delete(&models.PhoneSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("otp: purge expired: %w", res.Error)
	}
	return res.RowsAffected, nil
}
