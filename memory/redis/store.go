// Package redis provides a Redis-backed TranscriptStore for deployments that
// want transcripts readable outside the orchestrating process. The in-memory
// store remains the default; core orchestration state never leaves the
// process.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KamdynS/go-swarm/memory"
	rds "github.com/redis/go-redis/v9"
)

// Store implements memory.Store on a Redis client
type Store struct {
	client *rds.Client
	ttl    time.Duration
	prefix string
}

// NewStore creates a Redis-backed store. A zero ttl means keys never expire.
func NewStore(client *rds.Client, ttl time.Duration, prefix string) *Store {
	return &Store{client: client, ttl: ttl, prefix: prefix}
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *Store) Store(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), b, s.ttl).Err()
}

func (s *Store) Retrieve(ctx context.Context, key string) (interface{}, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, rds.Nil) {
			return nil, fmt.Errorf("key %s not found", key)
		}
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(val, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	var cursor uint64
	keys := []string{}
	pattern := s.prefix + ":*"
	if s.prefix == "" {
		pattern = "*"
	}
	for {
		ks, cur, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, ks...)
		if cur == 0 {
			break
		}
		cursor = cur
	}
	return keys, nil
}

func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// TranscriptStore implements memory.TranscriptStore on Redis lists, one list
// per instance so appends stay append-only on the wire too.
type TranscriptStore struct {
	Store
}

// NewTranscriptStore creates a Redis-backed transcript store
func NewTranscriptStore(client *rds.Client, ttl time.Duration, prefix string) *TranscriptStore {
	return &TranscriptStore{Store: Store{client: client, ttl: ttl, prefix: prefix}}
}

func (ts *TranscriptStore) transcriptKey(instanceID string) string {
	return ts.key(fmt.Sprintf("transcript:%s", instanceID))
}

func (ts *TranscriptStore) Append(ctx context.Context, instanceID string, entry memory.Entry) error {
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().Unix()
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := ts.transcriptKey(instanceID)
	if err := ts.client.RPush(ctx, key, b).Err(); err != nil {
		return err
	}
	if ts.ttl > 0 {
		return ts.client.Expire(ctx, key, ts.ttl).Err()
	}
	return nil
}

func (ts *TranscriptStore) Transcript(ctx context.Context, instanceID string) ([]memory.Entry, error) {
	vals, err := ts.client.LRange(ctx, ts.transcriptKey(instanceID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, rds.Nil) {
			return []memory.Entry{}, nil
		}
		return nil, err
	}
	entries := make([]memory.Entry, 0, len(vals))
	for _, v := range vals {
		var e memory.Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("decode transcript entry for %s: %w", instanceID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (ts *TranscriptStore) ClearInstance(ctx context.Context, instanceID string) error {
	return ts.client.Del(ctx, ts.transcriptKey(instanceID)).Err()
}

// Ensure implementations satisfy interfaces
var _ memory.Store = (*Store)(nil)
var _ memory.TranscriptStore = (*TranscriptStore)(nil)
