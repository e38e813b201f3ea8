package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSink posts batches to the Setlist analytics ingestion endpoint.
type HTTPSink struct {
	base   string
	client *http.Client
}

// NewHTTPSink creates a sink posting to base+"/analytics/track".
func NewHTTPSink(base string) *HTTPSink {
	return &HTTPSink{
		base:   base,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Flush sends the batch as one request. The endpoint always answers 200 for
// well-formed batches; anything else is reported as an error for the
// batcher to log and drop.
func (s *HTTPSink) Flush(ctx context.Context, events []Event) error {
	body, err := json.Marshal(map[string]interface{}{"events": events})
	if err != nil {
		return fmt.Errorf("analytics: marshal batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/analytics/track", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("analytics: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("analytics: post batch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("analytics: post batch: status %d", resp.StatusCode)
	}
	return nil
}
