package testutil

import (
	"context"
	"errors"
	"sync"

	"campushub/internal/models"
	"campushub/internal/services"

	"github.com/google/uuid"
)

// MemoryStorage is a services.AttachmentStorage backed by a map.
type MemoryStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// DeleteErr makes every Delete fail after removing nothing.
	DeleteErr error
}

var _ services.AttachmentStorage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

func (s *MemoryStorage) Save(_ context.Context, data []byte, name, mimeType string) (*models.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	p := "mem/" + uuid.NewString()
	s.blobs[p] = append([]byte(nil), data...)
	return &models.Attachment{Name: name, Path: p, Size: int64(len(data)), MimeType: mimeType}, nil
}

func (s *MemoryStorage) Delete(_ context.Context, a *models.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	if a == nil {
		return errors.New("nil attachment")
	}
	delete(s.blobs, a.Path)
	return nil
}

func (s *MemoryStorage) Has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[path]
	return ok
}

func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// Recorder is a services.Publisher that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	events []services.Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, ev services.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

func (r *Recorder) Events() []services.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]services.Event(nil), r.events...)
}

func (r *Recorder) Types() []services.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]services.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
