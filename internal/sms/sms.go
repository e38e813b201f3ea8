// Package sms delivers verification codes out-of-band. Providers are
// deliberately thin: code generation and session bookkeeping live in the
// otp package, delivery is the only concern here.
package sms

import (
	"context"
	"sync"
)

// Provider is the interface delivery backends must satisfy.
type Provider interface {
	// Send delivers body to the given phone number.
	Send(ctx context.Context, to, body string) error
}

// Mock records sent messages for tests.
type Mock struct {
	mu   sync.Mutex
	Sent []SentMessage
	Err  error
}

// SentMessage is one recorded delivery.
type SentMessage struct {
	To   string
	Body string
}

// NewMock creates an empty Mock.
func NewMock() *Mock {
	return &Mock{}
}

// Send records the message and returns the configured error.
func (m *Mock) Send(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMessage{To: to, Body: body})
	return nil
}

// Count returns the number of recorded deliveries.
func (m *Mock) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
