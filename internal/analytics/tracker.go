package analytics

import (
	"sync"
	"time"

	"github.com/setlistapp/setlist/internal/stage"
)

// StageTracker is the stateful facade over the shared Batcher: it remembers
// when each stage was entered so stage-completion events carry a duration.
// It enqueues into the same queue as plain Batcher.Enqueue calls; it is a
// call convention, not a second batcher.
type StageTracker struct {
	batcher *Batcher
	eventID string

	mu        sync.Mutex
	enteredAt map[int]time.Time
	now       func() time.Time
}

// NewStageTracker creates a tracker bound to an event session.
func NewStageTracker(b *Batcher, eventID string) *StageTracker {
	return &StageTracker{
		batcher:   b,
		eventID:   eventID,
		enteredAt: make(map[int]time.Time),
		now:       time.Now,
	}
}

// SetEventID rebinds the tracker after an event reset.
func (t *StageTracker) SetEventID(eventID string) {
	t.mu.Lock()
	t.eventID = eventID
	t.enteredAt = make(map[int]time.Time)
	t.mu.Unlock()
}

// TrackStageEnter records the entry timestamp for a stage and emits a
// stage_enter event.
func (t *StageTracker) TrackStageEnter(n int) {
	t.mu.Lock()
	t.enteredAt[n] = t.now()
	eventID := t.eventID
	t.mu.Unlock()

	t.batcher.Enqueue(Event{
		Name:     "stage_enter",
		Category: CategoryFlow,
		EventID:  eventID,
		Metadata: map[string]interface{}{
			"stage":     n,
			"stageName": stage.Name(n),
		},
	})
}

// TrackStageComplete emits a stage_complete event with the time spent in
// the stage since TrackStageEnter. Duration is omitted when the entry
// timestamp is unknown (e.g. after a reload).
func (t *StageTracker) TrackStageComplete(n int) {
	t.mu.Lock()
	entered, ok := t.enteredAt[n]
	delete(t.enteredAt, n)
	eventID := t.eventID
	now := t.now()
	t.mu.Unlock()

	meta := map[string]interface{}{
		"stage":     n,
		"stageName": stage.Name(n),
	}
	if ok {
		meta["durationMs"] = now.Sub(entered).Milliseconds()
	}
	t.batcher.Enqueue(Event{
		Name:     "stage_complete",
		Category: CategoryFlow,
		EventID:  eventID,
		Metadata: meta,
	})
}

// TrackAction emits a generic action event through the shared queue.
func (t *StageTracker) TrackAction(name string, metadata map[string]interface{}) {
	t.mu.Lock()
	eventID := t.eventID
	t.mu.Unlock()

	t.batcher.Enqueue(Event{
		Name:     name,
		Category: CategoryAction,
		EventID:  eventID,
		Metadata: metadata,
	})
}
