package syncer

import (
	"context"
	"sync"

	"github.com/setlistapp/setlist/internal/models"
)

// Mock is an in-memory Remote that records every mirrored write, used by
// store and CLI tests.
type Mock struct {
	mu           sync.Mutex
	Events       []models.Event
	Answers      []models.Answer
	Swipes       []models.Swipe
	Requests     []models.Request
	Deletes      []string // request ids
	UpsellClicks []models.UpsellClick
}

// NewMock creates an empty Mock.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) UpsertEvent(ctx context.Context, evt models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, evt)
}

func (m *Mock) UpsertAnswer(ctx context.Context, a models.Answer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Answers = append(m.Answers, a)
}

func (m *Mock) UpsertSwipe(ctx context.Context, s models.Swipe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Swipes = append(m.Swipes, s)
}

func (m *Mock) UpsertRequest(ctx context.Context, r models.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, r)
}

func (m *Mock) DeleteRequest(ctx context.Context, eventID, requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes = append(m.Deletes, requestID)
}

func (m *Mock) RecordUpsellClick(ctx context.Context, c models.UpsellClick) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsellClicks = append(m.UpsellClicks, c)
}

// EventWrites returns the number of mirrored event writes.
func (m *Mock) EventWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}

// LastEvent returns the most recently mirrored event write.
func (m *Mock) LastEvent() models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Events[len(m.Events)-1]
}
