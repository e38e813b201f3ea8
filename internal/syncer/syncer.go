// Package syncer mirrors local session mutations to the remote datastore.
// Writes are best-effort replication with no delivery guarantee: one
// attempt per mutation, never retried, never blocking the caller. The
// remote upsert key is the mutation's own client-generated id, so a
// duplicate dispatch of the same mutation is idempotent remotely even
// though the adapter itself does nothing to dedupe.
package syncer

import (
	"context"

	"github.com/setlistapp/setlist/internal/models"
)

// Remote is the interface the local store mirrors through. A stricter
// implementation (outbox + retry) can be swapped in behind it without
// touching the store.
type Remote interface {
	// UpsertEvent mirrors event creation and field/stage edits.
	UpsertEvent(ctx context.Context, evt models.Event)

	// UpsertAnswer mirrors an answer upsert.
	UpsertAnswer(ctx context.Context, a models.Answer)

	// UpsertSwipe mirrors a swipe upsert.
	UpsertSwipe(ctx context.Context, s models.Swipe)

	// UpsertRequest mirrors a request append.
	UpsertRequest(ctx context.Context, r models.Request)

	// DeleteRequest mirrors a request removal.
	DeleteRequest(ctx context.Context, eventID, requestID string)

	// RecordUpsellClick mirrors an upsell click append.
	RecordUpsellClick(ctx context.Context, c models.UpsellClick)
}

// Nop is a Remote that drops every write, used when the client runs
// local-only.
type Nop struct{}

func (Nop) UpsertEvent(context.Context, models.Event)             {}
func (Nop) UpsertAnswer(context.Context, models.Answer)           {}
func (Nop) UpsertSwipe(context.Context, models.Swipe)             {}
func (Nop) UpsertRequest(context.Context, models.Request)         {}
func (Nop) DeleteRequest(context.Context, string, string)         {}
func (Nop) RecordUpsellClick(context.Context, models.UpsellClick) {}
