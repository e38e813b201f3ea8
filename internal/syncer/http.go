package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/setlistapp/setlist/internal/models"
)

// HTTPRemote mirrors mutations to the Setlist API over HTTP. Every method
// dispatches its request in a detached goroutine: the caller's mutation
// path never waits on the network, and a failed write is logged and
// discarded. Two rapid edits to the same entity may arrive out of order;
// the last physical write wins remotely.
type HTTPRemote struct {
	base   string
	client *http.Client
}

// NewHTTPRemote creates a remote mirror against the given API base URL.
func NewHTTPRemote(base string) *HTTPRemote {
	return &HTTPRemote{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// dispatch fires one request attempt in the background. There is no retry
// and no cancellation once dispatched.
func (r *HTTPRemote) dispatch(method, path string, payload interface{}) {
	go func() {
		var body *bytes.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				log.Printf("syncer: marshal %s %s: %v", method, path, err)
				return
			}
			body = bytes.NewReader(data)
		} else {
			body = bytes.NewReader(nil)
		}

		req, err := http.NewRequest(method, r.base+path, body)
		if err != nil {
			log.Printf("syncer: build %s %s: %v", method, path, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			log.Printf("syncer: %s %s: %v", method, path, err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.Printf("syncer: %s %s: status %d", method, path, resp.StatusCode)
		}
	}()
}

func (r *HTTPRemote) UpsertEvent(ctx context.Context, evt models.Event) {
	r.dispatch(http.MethodPatch, "/events/"+evt.ID, evt)
}

func (r *HTTPRemote) UpsertAnswer(ctx context.Context, a models.Answer) {
	r.dispatch(http.MethodPut, fmt.Sprintf("/events/%s/answers/%s", a.EventID, a.ID), a)
}

func (r *HTTPRemote) UpsertSwipe(ctx context.Context, s models.Swipe) {
	r.dispatch(http.MethodPut, fmt.Sprintf("/events/%s/swipes/%s", s.EventID, s.ID), s)
}

func (r *HTTPRemote) UpsertRequest(ctx context.Context, req models.Request) {
	r.dispatch(http.MethodPut, fmt.Sprintf("/events/%s/requests/%s", req.EventID, req.ID), req)
}

func (r *HTTPRemote) DeleteRequest(ctx context.Context, eventID, requestID string) {
	r.dispatch(http.MethodDelete, fmt.Sprintf("/events/%s/requests/%s", eventID, requestID), nil)
}

func (r *HTTPRemote) RecordUpsellClick(ctx context.Context, c models.UpsellClick) {
	r.dispatch(http.MethodPost, fmt.Sprintf("/events/%s/upsell-clicks", c.EventID), c)
}
