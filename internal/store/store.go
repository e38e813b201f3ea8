// Package store implements the local-first session store: the single
// source of truth for the client. All reads and writes are synchronous
// against memory and the snapshot file; the remote mirror and telemetry
// are fired after the fact and never block or roll back a local mutation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/setlistapp/setlist/internal/analytics"
	"github.com/setlistapp/setlist/internal/ids"
	"github.com/setlistapp/setlist/internal/models"
	"github.com/setlistapp/setlist/internal/syncer"
)

// ErrNoEvent is returned by mutations that need an active event session.
var ErrNoEvent = errors.New("store: no active event")

// State is the serialized snapshot: one JSON document per store namespace.
// Absent fields default to type-appropriate empties on load; a schema
// change must never crash startup.
type State struct {
	Event        *models.Event        `json:"event"`
	Answers      []models.Answer      `json:"answers"`
	Swipes       []models.Swipe       `json:"swipes"`
	Requests     []models.Request     `json:"requests"`
	UpsellClicks []models.UpsellClick `json:"upsellClicks"`
}

// Store is the local persistent session store. Mutations are serialized by
// an internal mutex: the client has a single logical thread of control, the
// lock just keeps the Go rendition honest.
type Store struct {
	path    string
	remote  syncer.Remote
	batcher *analytics.Batcher

	mu    sync.Mutex
	state State
	now   func() time.Time
}

// Opts holds parameters for opening a Store.
type Opts struct {
	Path    string             // snapshot file path
	Remote  syncer.Remote      // defaults to syncer.Nop{}
	Batcher *analytics.Batcher // optional telemetry
}

// Open loads the snapshot at opts.Path, tolerating a missing or corrupt
// file: either yields a fresh empty state rather than an error.
func Open(opts Opts) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("store: path is required")
	}
	remote := opts.Remote
	if remote == nil {
		remote = syncer.Nop{}
	}

	s := &Store{
		path:    opts.Path,
		remote:  remote,
		batcher: opts.Batcher,
		now:     time.Now,
	}
	s.load()
	return s, nil
}

// load reads and normalizes the snapshot. Never fails: partial corruption
// degrades to whatever decoded plus empty defaults.
func (s *Store) load() {
	var state State
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// First run.
	case err != nil:
		log.Printf("store: read %s: %v (starting fresh)", s.path, err)
	default:
		if err := json.Unmarshal(data, &state); err != nil {
			log.Printf("store: decode %s: %v (starting fresh)", s.path, err)
			state = State{}
		}
	}
	normalize(&state)
	s.state = state
}

// normalize defaults absent collections to empty slices.
func normalize(state *State) {
	if state.Answers == nil {
		state.Answers = []models.Answer{}
	}
	if state.Swipes == nil {
		state.Swipes = []models.Swipe{}
	}
	if state.Requests == nil {
		state.Requests = []models.Request{}
	}
	if state.UpsellClicks == nil {
		state.UpsellClicks = []models.UpsellClick{}
	}
}

// persistLocked writes the whole state as one unit. Callers hold s.mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	return nil
}

// track enqueues a telemetry event when a batcher is wired.
func (s *Store) track(name, category, eventID string, meta map[string]interface{}) {
	if s.batcher == nil {
		return
	}
	s.batcher.Enqueue(analytics.Event{
		Name:     name,
		Category: category,
		EventID:  eventID,
		Metadata: meta,
	})
}

// Event returns a copy of the active event, or nil.
func (s *Store) Event() *models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Event == nil {
		return nil
	}
	evt := *s.state.Event
	return &evt
}

// Answers returns a copy of all answers.
func (s *Store) Answers() []models.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Answer(nil), s.state.Answers...)
}

// Swipes returns a copy of all swipes.
func (s *Store) Swipes() []models.Swipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Swipe(nil), s.state.Swipes...)
}

// Requests returns a copy of all requests.
func (s *Store) Requests() []models.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Request(nil), s.state.Requests...)
}

// UpsellClicks returns a copy of all upsell clicks.
func (s *Store) UpsellClicks() []models.UpsellClick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.UpsellClick(nil), s.state.UpsellClicks...)
}

// CreateEventOpts holds the setup-stage fields.
type CreateEventOpts struct {
	Type        string
	CoupleNames string
	EventDate   string
	Venue       string
}

// CreateEvent starts a new event session. All dependent collections are
// cleared in the same state transition, so nothing can reference a stale
// event id; the telemetry queue is flushed first for the same reason.
func (s *Store) CreateEvent(opts CreateEventOpts) (models.Event, error) {
	id, err := ids.New("evt")
	if err != nil {
		return models.Event{}, err
	}
	token, err := ids.NewShareToken()
	if err != nil {
		return models.Event{}, err
	}

	if s.batcher != nil {
		s.batcher.Flush()
	}

	eventType := opts.Type
	if eventType == "" {
		eventType = "wedding"
	}

	s.mu.Lock()
	evt := models.Event{
		ID:          id,
		ShareToken:  token,
		Type:        eventType,
		CoupleNames: opts.CoupleNames,
		EventDate:   opts.EventDate,
		Venue:       opts.Venue,
		CreatedAt:   s.now(),
	}
	s.state = State{Event: &evt}
	normalize(&s.state)
	persistErr := s.persistLocked()
	s.mu.Unlock()

	s.remote.UpsertEvent(context.Background(), evt)
	s.track("event_created", analytics.CategoryFlow, evt.ID, map[string]interface{}{
		"eventType": eventType,
	})
	return evt, persistErr
}

// UpdateEventDetails edits setup fields on the active event.
func (s *Store) UpdateEventDetails(opts CreateEventOpts) (models.Event, error) {
	s.mu.Lock()
	if s.state.Event == nil {
		s.mu.Unlock()
		return models.Event{}, ErrNoEvent
	}
	evt := s.state.Event
	if opts.Type != "" {
		evt.Type = opts.Type
	}
	if opts.CoupleNames != "" {
		evt.CoupleNames = opts.CoupleNames
	}
	if opts.EventDate != "" {
		evt.EventDate = opts.EventDate
	}
	if opts.Venue != "" {
		evt.Venue = opts.Venue
	}
	evt.UpdatedAt = s.now()
	updated := *evt
	persistErr := s.persistLocked()
	s.mu.Unlock()

	s.remote.UpsertEvent(context.Background(), updated)
	return updated, persistErr
}

// SaveAnswer upserts the answer for a question. Re-answering overwrites
// the prior record, keeping its id stable so the remote upsert stays
// idempotent. The scan is O(n) over the answer list; n is bounded by the
// question count.
func (s *Store) SaveAnswer(questionID string, value interface{}) (models.Answer, error) {
	s.mu.Lock()
	if s.state.Event == nil {
		s.mu.Unlock()
		return models.Answer{}, ErrNoEvent
	}

	var ans *models.Answer
	for i := range s.state.Answers {
		if s.state.Answers[i].QuestionID == questionID {
			ans = &s.state.Answers[i]
			break
		}
	}
	if ans == nil {
		id, err := ids.New("ans")
		if err != nil {
			s.mu.Unlock()
			return models.Answer{}, err
		}
		s.state.Answers = append(s.state.Answers, models.Answer{
			ID:         id,
			EventID:    s.state.Event.ID,
			QuestionID: questionID,
		})
		ans = &s.state.Answers[len(s.state.Answers)-1]
	}
	if err := ans.EncodeValue(value); err != nil {
		s.mu.Unlock()
		return models.Answer{}, fmt.Errorf("store: encode answer %s: %w", questionID, err)
	}
	ans.AnsweredAt = s.now()
	saved := *ans
	persistErr := s.persistLocked()
	s.mu.Unlock()

	s.remote.UpsertAnswer(context.Background(), saved)
	s.track("answer_saved", analytics.CategoryAction, saved.EventID, map[string]interface{}{
		"questionId": questionID,
	})
	return saved, persistErr
}

// SaveSwipe upserts the swipe for a song: action and reason tags are
// replaced together as one record. Callers switching away from dislike are
// responsible for passing an empty reason list to clear stale tags.
func (s *Store) SaveSwipe(songID, action string, reasons []string) (models.Swipe, error) {
	if !models.ValidSwipeAction(action) {
		return models.Swipe{}, fmt.Errorf("store: invalid swipe action %q", action)
	}

	s.mu.Lock()
	if s.state.Event == nil {
		s.mu.Unlock()
		return models.Swipe{}, ErrNoEvent
	}

	var swipe *models.Swipe
	for i := range s.state.Swipes {
		if s.state.Swipes[i].SongID == songID {
			swipe = &s.state.Swipes[i]
			break
		}
	}
	if swipe == nil {
		id, err := ids.New("swp")
		if err != nil {
			s.mu.Unlock()
			return models.Swipe{}, err
		}
		s.state.Swipes = append(s.state.Swipes, models.Swipe{
			ID:      id,
			EventID: s.state.Event.ID,
			SongID:  songID,
		})
		swipe = &s.state.Swipes[len(s.state.Swipes)-1]
	}
	swipe.Action = action
	if err := swipe.SetReasons(reasons); err != nil {
		s.mu.Unlock()
		return models.Swipe{}, fmt.Errorf("store: encode reasons for %s: %w", songID, err)
	}
	swipe.SwipedAt = s.now()
	saved := *swipe
	persistErr := s.persistLocked()
	s.mu.Unlock()

	s.remote.UpsertSwipe(context.Background(), saved)
	s.track("song_swipe", analytics.CategoryAction, saved.EventID, map[string]interface{}{
		"songId": songID,
		"action": action,
	})
	return saved, persistErr
}

// AddRequest appends a request. No upsert semantics: duplicate free-text
// requests are legal.
func (s *Store) AddRequest(kind, content, momentType string) (models.Request, error) {
	if !models.ValidRequestKind(kind) {
		return models.Request{}, fmt.Errorf("store: invalid request kind %q", kind)
	}

	s.mu.Lock()
	if s.state.Event == nil {
		s.mu.Unlock()
		return models.Request{}, ErrNoEvent
	}
	id, err := ids.New("req")
	if err != nil {
		s.mu.Unlock()
		return models.Request{}, err
	}
	req := models.Request{
		ID:         id,
		EventID:    s.state.Event.ID,
		Kind:       kind,
		Content:    content,
		MomentType: momentType,
		CreatedAt:  s.now(),
	}
	s.state.Requests = append(s.state.Requests, req)
	persistErr := s.persistLocked()
	s.mu.Unlock()

	s.remote.UpsertRequest(context.Background(), req)
	s.track("request_added", analytics.CategoryAction, req.EventID, map[string]interface{}{
		"kind": kind,
	})
	return req, persistErr
}

// RemoveRequest deletes a request by id. Removing an unknown id is a no-op
// locally and remotely.
func (s *Store) RemoveRequest(requestID string) error {
	s.mu.Lock()
	if s.state.Event == nil {
		s.mu.Unlock()
		return ErrNoEvent
	}
	eventID := s.state.Event.ID
	kept := s.state.Requests[:0]
	removed := false
	for _, r := range s.state.Requests {
		if r.ID == requestID {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	s.state.Requests = kept
	var persistErr error
	if removed {
		persistErr = s.persistLocked()
	}
	s.mu.Unlock()

	if removed {
		s.remote.DeleteRequest(context.Background(), eventID, requestID)
	}
	return persistErr
}

// RecordUpsellClick appends an upsell click. Append-only: never read back
// into the flow.
func (s *Store) RecordUpsellClick(upsellID string) (models.UpsellClick, error) {
	s.mu.Lock()
	if s.state.Event == nil {
		s.mu.Unlock()
		return models.UpsellClick{}, ErrNoEvent
	}
	id, err := ids.New("upc")
	if err != nil {
		s.mu.Unlock()
		return models.UpsellClick{}, err
	}
	click := models.UpsellClick{
		ID:        id,
		EventID:   s.state.Event.ID,
		UpsellID:  upsellID,
		ClickedAt: s.now(),
	}
	s.state.UpsellClicks = append(s.state.UpsellClicks, click)
	persistErr := s.persistLocked()
	s.mu.Unlock()

	s.remote.RecordUpsellClick(context.Background(), click)
	s.track("upsell_click", analytics.CategoryUpsell, click.EventID, map[string]interface{}{
		"upsellId": upsellID,
	})
	return click, persistErr
}

// SetStage unconditionally sets the current stage, fires a stage_change
// event and mirrors the update. No bounds validation: an out-of-range
// stage just has no matching view, which is the UI's concern.
func (s *Store) SetStage(n int) error {
	s.mu.Lock()
	if s.state.Event == nil {
		s.mu.Unlock()
		return ErrNoEvent
	}
	from := s.state.Event.CurrentStage
	s.state.Event.CurrentStage = n
	s.state.Event.UpdatedAt = s.now()
	evt := *s.state.Event
	persistErr := s.persistLocked()
	s.mu.Unlock()

	s.remote.UpsertEvent(context.Background(), evt)
	s.track("stage_change", analytics.CategoryFlow, evt.ID, map[string]interface{}{
		"from": from,
		"to":   n,
	})
	return persistErr
}

// Hydrate replaces local state with a remote resume snapshot after a
// successful phone verification. The snapshot is authoritative, so nothing
// is mirrored back.
func (s *Store) Hydrate(evt models.Event, answers []models.Answer, swipes []models.Swipe, requests []models.Request) error {
	s.mu.Lock()
	s.state = State{
		Event:    &evt,
		Answers:  answers,
		Swipes:   swipes,
		Requests: requests,
	}
	normalize(&s.state)
	persistErr := s.persistLocked()
	s.mu.Unlock()
	return persistErr
}
