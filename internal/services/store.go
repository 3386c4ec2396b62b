package services

import (
	"context"

	"campushub/internal/models"

	"github.com/google/uuid"
)

// MessageStore is the persistence the messaging service needs.
// Implementations return ErrNotFound for missing records and
// ErrVersionConflict when UpdatePoll loses an optimistic-concurrency race.
type MessageStore interface {
	GetForum(ctx context.Context, id uuid.UUID) (*models.Forum, error)
	ListForums(ctx context.Context) ([]models.Forum, error)

	CreateMessage(ctx context.Context, m *models.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	// ListTopLevel and ListReplies order by created_at ascending. A negative
	// limit returns every row.
	ListTopLevel(ctx context.Context, forumID uuid.UUID, offset, limit int) ([]models.Message, int64, error)
	ListReplies(ctx context.Context, parentID uuid.UUID, offset, limit int) ([]models.Message, int64, error)
	CountReplies(ctx context.Context, parentIDs []uuid.UUID) (map[uuid.UUID]int64, error)

	// AttachReply appends childID to the parent's replies cache.
	AttachReply(ctx context.Context, parentID, childID uuid.UUID) error
	// UpdatePoll writes m's poll if m.Version still matches the stored version,
	// then bumps m.Version.
	UpdatePoll(ctx context.Context, m *models.Message) error
	// DeleteMessage removes a single record.
	DeleteMessage(ctx context.Context, id uuid.UUID) error
	// DeleteThread removes the direct replies of id, id itself, and detaches id
	// from parentID's replies cache when parentID is set, atomically. It returns
	// the replies it removed. Replies of those replies are kept with parent_id
	// cleared.
	DeleteThread(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) ([]models.Message, error)
}

// AttachmentStorage keeps attachment blobs outside the message record.
type AttachmentStorage interface {
	Save(ctx context.Context, data []byte, name, mimeType string) (*models.Attachment, error)
	Delete(ctx context.Context, a *models.Attachment) error
}

// Publisher fans message events out to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
