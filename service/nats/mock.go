package nats

import (
	"context"
	"sync"

	"github.com/brojonat/solsweep/service/reclaim"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu            sync.RWMutex
	reclaimEvents []*ReclaimEvent
	scanEvents    []*ScanEvent
	publishError  error
	closed        bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishReclaim records the event and returns any configured error.
func (m *MockPublisher) PublishReclaim(ctx context.Context, event *ReclaimEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishError != nil {
		return m.publishError
	}
	m.reclaimEvents = append(m.reclaimEvents, event)
	return nil
}

// PublishScan records the event and returns any configured error.
func (m *MockPublisher) PublishScan(ctx context.Context, event *ScanEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishError != nil {
		return m.publishError
	}
	m.scanEvents = append(m.scanEvents, event)
	return nil
}

// PublishWalletResult records the converted wallet result.
func (m *MockPublisher) PublishWalletResult(ctx context.Context, res reclaim.WalletResult) error {
	return m.PublishReclaim(ctx, FromWalletResult(res))
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ReclaimEvents returns a copy of the published reclaim events.
func (m *MockPublisher) ReclaimEvents() []*ReclaimEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]*ReclaimEvent, len(m.reclaimEvents))
	copy(events, m.reclaimEvents)
	return events
}

// ScanEvents returns a copy of the published scan events.
func (m *MockPublisher) ScanEvents() []*ScanEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]*ScanEvent, len(m.scanEvents))
	copy(events, m.scanEvents)
	return events
}

// SetPublishError configures the mock to fail every publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
