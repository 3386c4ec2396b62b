// Package testutil provides in-memory implementations of the messaging
// service's dependencies for tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"campushub/internal/models"
	"campushub/internal/services"

	"github.com/google/uuid"
)

// MemoryStore is a services.MessageStore kept in maps. Records are cloned on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu       sync.Mutex
	forums   map[uuid.UUID]models.Forum
	messages map[uuid.UUID]*models.Message
	clock    time.Time

	// Created records every id passed to CreateMessage, rolled back ones included.
	Created []uuid.UUID

	// AttachReplyErr makes AttachReply fail when set.
	AttachReplyErr error
	// BeforeUpdatePoll runs under the store lock before the version check. It may
	// modify the stored copy to simulate a concurrent writer.
	BeforeUpdatePoll func(stored *models.Message)
	// BeforeDeleteThread runs before DeleteThread takes the lock, so it can
	// write through the store like a concurrent request.
	BeforeDeleteThread func()
}

var _ services.MessageStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		forums:   make(map[uuid.UUID]models.Forum),
		messages: make(map[uuid.UUID]*models.Message),
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// AddForum seeds a forum and returns it.
func (s *MemoryStore) AddForum(name string) models.Forum {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	f := models.Forum{ID: uuid.New(), Name: name, CreatedAt: now, UpdatedAt: now}
	s.forums[f.ID] = f
	return f
}

// Has reports whether a message with id is stored.
func (s *MemoryStore) Has(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.messages[id]
	return ok
}

// Raw returns a copy of the stored record, including the replies cache.
func (s *MemoryStore) Raw(id uuid.UUID) *models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil
	}
	return m.Clone()
}

// tick 保证创建时间严格递增，排序稳定
func (s *MemoryStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *MemoryStore) GetForum(_ context.Context, id uuid.UUID) (*models.Forum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forums[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &f, nil
}

func (s *MemoryStore) ListForums(context.Context) ([]models.Forum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Forum, 0, len(s.forums))
	for _, f := range s.forums {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) CreateMessage(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Version == 0 {
		m.Version = 1
	}
	m.CreatedAt = s.tick()
	m.UpdatedAt = m.CreatedAt
	s.messages[m.ID] = m.Clone()
	s.Created = append(s.Created, m.ID)
	return nil
}

func (s *MemoryStore) GetMessage(_ context.Context, id uuid.UUID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryStore) ListTopLevel(_ context.Context, forumID uuid.UUID, offset, limit int) ([]models.Message, int64, error) {
	return s.list(offset, limit, func(m *models.Message) bool {
		return m.ForumID == forumID && m.ParentID == nil
	})
}

func (s *MemoryStore) ListReplies(_ context.Context, parentID uuid.UUID, offset, limit int) ([]models.Message, int64, error) {
	return s.list(offset, limit, func(m *models.Message) bool {
		return m.ParentID != nil && *m.ParentID == parentID
	})
}

func (s *MemoryStore) list(offset, limit int, keep func(*models.Message) bool) ([]models.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []models.Message
	for _, m := range s.messages {
		if keep(m) {
			all = append(all, *m.Clone())
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	total := int64(len(all))
	if offset >= len(all) {
		return []models.Message{}, total, nil
	}
	all = all[offset:]
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *MemoryStore) CountReplies(_ context.Context, parentIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(parentIDs))
	for _, id := range parentIDs {
		want[id] = true
	}
	counts := make(map[uuid.UUID]int64)
	for _, m := range s.messages {
		if m.ParentID != nil && want[*m.ParentID] {
			counts[*m.ParentID]++
		}
	}
	return counts, nil
}

func (s *MemoryStore) AttachReply(_ context.Context, parentID, childID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AttachReplyErr != nil {
		return s.AttachReplyErr
	}
	parent, ok := s.messages[parentID]
	if !ok {
		return services.ErrNotFound
	}
	parent.Replies = append(parent.Replies, childID.String())
	return nil
}

func (s *MemoryStore) UpdatePoll(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.messages[m.ID]
	if !ok {
		return services.ErrVersionConflict
	}
	if s.BeforeUpdatePoll != nil {
		s.BeforeUpdatePoll(stored)
	}
	if stored.Version != m.Version {
		return services.ErrVersionConflict
	}
	m.Version++
	m.UpdatedAt = s.tick()
	stored.SetPoll(m.PollData().Clone())
	stored.Version = m.Version
	stored.UpdatedAt = m.UpdatedAt
	return nil
}

func (s *MemoryStore) DeleteMessage(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return services.ErrNotFound
	}
	delete(s.messages, id)
	return nil
}

// DeleteThread mirrors the postgres schema: direct replies are deleted and
// their own replies get parent_id cleared (ON DELETE SET NULL).
func (s *MemoryStore) DeleteThread(_ context.Context, id uuid.UUID, parentID *uuid.UUID) ([]models.Message, error) {
	if s.BeforeDeleteThread != nil {
		s.BeforeDeleteThread()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return nil, services.ErrNotFound
	}
	var removed []models.Message
	for cid, m := range s.messages {
		if m.ParentID != nil && *m.ParentID == id {
			removed = append(removed, *m.Clone())
			delete(s.messages, cid)
		}
	}
	delete(s.messages, id)
	for _, r := range removed {
		for _, m := range s.messages {
			if m.ParentID != nil && *m.ParentID == r.ID {
				m.ParentID = nil
			}
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].CreatedAt.Before(removed[j].CreatedAt) })

	if parentID != nil {
		if parent, ok := s.messages[*parentID]; ok {
			kept := parent.Replies[:0]
			for _, r := range parent.Replies {
				if r != id.String() {
					kept = append(kept, r)
				}
			}
			parent.Replies = kept
		}
	}
	return removed, nil
}
