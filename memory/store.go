package memory

import "context"

// Store defines the interface for generic key/value state
type Store interface {
	// Store saves data with the given key
	Store(ctx context.Context, key string, value interface{}) error

	// Retrieve gets data by key
	Retrieve(ctx context.Context, key string) (interface{}, error)

	// Delete removes data by key
	Delete(ctx context.Context, key string) error

	// List returns all keys
	List(ctx context.Context) ([]string, error)

	// Clear removes all stored data
	Clear(ctx context.Context) error
}

// TranscriptStore keeps the append-only output transcript of each agent
// instance. Appends never truncate prior entries; a transcript only goes
// away when its instance is cleared with the network.
type TranscriptStore interface {
	// Append adds an output entry to an instance's transcript
	Append(ctx context.Context, instanceID string, entry Entry) error

	// Transcript retrieves an instance's outputs in append order
	Transcript(ctx context.Context, instanceID string) ([]Entry, error)

	// ClearInstance removes the transcript for one instance
	ClearInstance(ctx context.Context, instanceID string) error
}

// Entry is one recorded output from an instance
type Entry struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}
