package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockScheduler is an in-memory Scheduler for testing.
type MockScheduler struct {
	mu        sync.Mutex
	schedules map[string]ScheduledScan
	upsertErr error
	deleteErr error
}

// ScheduledScan is what MockScheduler remembers about a schedule.
type ScheduledScan struct {
	Address       string
	Interval      time.Duration
	DustThreshold uint64
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{schedules: make(map[string]ScheduledScan)}
}

// UpsertScanSchedule records the schedule.
func (m *MockScheduler) UpsertScanSchedule(ctx context.Context, address string, interval time.Duration, dustThreshold uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.schedules[scheduleID(address)] = ScheduledScan{
		Address:       address,
		Interval:      interval,
		DustThreshold: dustThreshold,
	}
	return nil
}

// DeleteScanSchedule removes the schedule, failing if it does not exist.
func (m *MockScheduler) DeleteScanSchedule(ctx context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	id := scheduleID(address)
	if _, ok := m.schedules[id]; !ok {
		return fmt.Errorf("schedule %q not found", id)
	}
	delete(m.schedules, id)
	return nil
}

// Schedule returns the recorded schedule for address.
func (m *MockScheduler) Schedule(address string) (ScheduledScan, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[scheduleID(address)]
	return s, ok
}

// SetUpsertError makes UpsertScanSchedule fail.
func (m *MockScheduler) SetUpsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertErr = err
}

// SetDeleteError makes DeleteScanSchedule fail.
func (m *MockScheduler) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}
