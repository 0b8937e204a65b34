package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-docs/internal/documents/engine"
)

const previewKeyPrefix = "documents:preview:"

type storedPreview struct {
	FileName string `json:"file_name"`
	Pages    int    `json:"pages"`
	Data     []byte `json:"data"`
}

// RedisPreviewStore keeps previews in Redis; expiry is the key TTL.
type RedisPreviewStore struct {
	client    *redis.Client
	ttl       time.Duration
	urlPrefix string
	now       func() time.Time
}

// NewRedisPreviewStore builds a Redis-backed store. urlPrefix is joined with
// the handle id to form the preview URL.
func NewRedisPreviewStore(client *redis.Client, ttl time.Duration, urlPrefix string) *RedisPreviewStore {
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	return &RedisPreviewStore{client: client, ttl: ttl, urlPrefix: urlPrefix, now: time.Now}
}

// Put stores a under a fresh handle.
func (s *RedisPreviewStore) Put(ctx context.Context, a engine.Artifact) (engine.Preview, error) {
	raw, err := json.Marshal(storedPreview{FileName: a.FileName, Pages: a.Pages, Data: a.Data})
	if err != nil {
		return engine.Preview{}, fmt.Errorf("output: encode preview: %w", err)
	}
	id := uuid.NewString()
	if err := s.client.Set(ctx, previewKeyPrefix+id, raw, s.ttl).Err(); err != nil {
		return engine.Preview{}, fmt.Errorf("output: store preview: %w", err)
	}
	return engine.Preview{ID: id, URL: previewURL(s.urlPrefix, id), ExpiresAt: s.now().Add(s.ttl)}, nil
}

// Get returns the artifact behind id until it expires.
func (s *RedisPreviewStore) Get(ctx context.Context, id string) (engine.Artifact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return engine.Artifact{}, ErrPreviewNotFound
	}
	raw, err := s.client.Get(ctx, previewKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.Artifact{}, ErrPreviewNotFound
	}
	if err != nil {
		return engine.Artifact{}, fmt.Errorf("output: load preview: %w", err)
	}
	var stored storedPreview
	if err := json.Unmarshal(raw, &stored); err != nil {
		return engine.Artifact{}, fmt.Errorf("output: decode preview: %w", err)
	}
	return engine.Artifact{FileName: stored.FileName, Pages: stored.Pages, Data: stored.Data}, nil
}

// MemoryPreviewStore keeps previews in process and revokes each one with a
// timer once its TTL elapses.
type MemoryPreviewStore struct {
	ttl       time.Duration
	urlPrefix string

	mu      sync.Mutex
	entries map[string]engine.Artifact
	timers  map[string]*time.Timer
}

// NewMemoryPreviewStore returns an in-process store.
func NewMemoryPreviewStore(ttl time.Duration, urlPrefix string) *MemoryPreviewStore {
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	return &MemoryPreviewStore{
		ttl:       ttl,
		urlPrefix: urlPrefix,
		entries:   make(map[string]engine.Artifact),
		timers:    make(map[string]*time.Timer),
	}
}

// Put stores a and schedules its revocation.
func (s *MemoryPreviewStore) Put(_ context.Context, a engine.Artifact) (engine.Preview, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = a
	s.timers[id] = time.AfterFunc(s.ttl, func() { s.revoke(id) })
	return engine.Preview{ID: id, URL: previewURL(s.urlPrefix, id), ExpiresAt: time.Now().Add(s.ttl)}, nil
}

// Get returns the artifact behind id until it is revoked.
func (s *MemoryPreviewStore) Get(_ context.Context, id string) (engine.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.entries[id]
	if !ok {
		return engine.Artifact{}, ErrPreviewNotFound
	}
	return a, nil
}

// Len reports how many previews are live.
func (s *MemoryPreviewStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close revokes every preview immediately.
func (s *MemoryPreviewStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
		delete(s.entries, id)
	}
}

func (s *MemoryPreviewStore) revoke(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	delete(s.timers, id)
}
