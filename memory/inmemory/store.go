package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KamdynS/go-swarm/memory"
)

// Store implements in-memory key/value storage
type Store struct {
	mu   sync.RWMutex
	data map[string]interface{}
}

// NewStore creates a new in-memory store
func NewStore() *Store {
	return &Store{
		data: make(map[string]interface{}),
	}
}

// Store implements memory.Store interface
func (s *Store) Store(ctx context.Context, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

// Retrieve implements memory.Store interface
func (s *Store) Retrieve(ctx context.Context, key string) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.data[key]
	if !exists {
		return nil, fmt.Errorf("key %s not found", key)
	}

	return value, nil
}

// Delete implements memory.Store interface
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// List implements memory.Store interface
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}

	return keys, nil
}

// Clear implements memory.Store interface
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]interface{})
	return nil
}

// TranscriptStore implements memory.TranscriptStore in memory. This is the
// default backend; all state lives for the lifetime of the process.
type TranscriptStore struct {
	Store
}

// NewTranscriptStore creates a new in-memory transcript store
func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{Store: Store{data: make(map[string]interface{})}}
}

func transcriptKey(instanceID string) string {
	return fmt.Sprintf("transcript:%s", instanceID)
}

// Append implements memory.TranscriptStore interface
func (ts *TranscriptStore) Append(ctx context.Context, instanceID string, entry memory.Entry) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	key := transcriptKey(instanceID)

	var entries []memory.Entry
	if existing, exists := ts.data[key]; exists {
		if es, ok := existing.([]memory.Entry); ok {
			entries = es
		}
	}

	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().Unix()
	}

	ts.data[key] = append(entries, entry)
	return nil
}

// Transcript implements memory.TranscriptStore interface
func (ts *TranscriptStore) Transcript(ctx context.Context, instanceID string) ([]memory.Entry, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	value, exists := ts.data[transcriptKey(instanceID)]
	if !exists {
		return []memory.Entry{}, nil
	}

	entries, ok := value.([]memory.Entry)
	if !ok {
		return nil, fmt.Errorf("invalid transcript format for instance %s", instanceID)
	}

	out := make([]memory.Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// ClearInstance implements memory.TranscriptStore interface
func (ts *TranscriptStore) ClearInstance(ctx context.Context, instanceID string) error {
	return ts.Delete(ctx, transcriptKey(instanceID))
}

// Ensure implementations satisfy interfaces
var _ memory.Store = (*Store)(nil)
var _ memory.TranscriptStore = (*TranscriptStore)(nil)
