package arrow_client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
)

// MockFlightClient is a mock implementation for testing
type MockFlightClient struct {
	mu        sync.RWMutex
	connected bool
	data      map[string]arrow.Record
	// FailPublish makes Publish return an error.
	FailPublish bool
}

// NewMockFlightClient creates a new mock client
func NewMockFlightClient() *MockFlightClient {
	return &MockFlightClient{
		data: make(map[string]arrow.Record),
	}
}

// Connect simulates connection
func (m *MockFlightClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// Close simulates disconnection
func (m *MockFlightClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// Publish keeps a reference to rec under its joined path.
func (m *MockFlightClient) Publish(ctx context.Context, path []string, rec arrow.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return fmt.Errorf("client not connected")
	}
	if m.FailPublish {
		return fmt.Errorf("publish refused")
	}

	key := strings.Join(path, "/")
	if old, ok := m.data[key]; ok {
		old.Release()
	}
	rec.Retain()
	m.data[key] = rec
	return nil
}

// Get returns the record stored under path, if any.
func (m *MockFlightClient) Get(path ...string) (arrow.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[strings.Join(path, "/")]
	return rec, ok
}

// Reset releases and clears all stored records
func (m *MockFlightClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.data {
		rec.Release()
	}
	m.data = make(map[string]arrow.Record)
}
