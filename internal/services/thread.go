package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"campushub/internal/models"

	"github.com/google/uuid"
)

// threadManager keeps parent/reply integrity. Replies are always found through
// parent_id; the parent's Replies array is only a cache kept in step here.
type threadManager struct {
	store   MessageStore
	storage AttachmentStorage
}

func (t *threadManager) createTopLevel(ctx context.Context, m *models.Message) error {
	m.ParentID = nil
	return t.store.CreateMessage(ctx, m)
}

// createReply stores m as a reply of parentID. The reply always lives in the
// parent's forum. If the parent's replies cache cannot be updated the reply is
// removed again, so a reply either fully exists or not at all.
func (t *threadManager) createReply(ctx context.Context, parentID uuid.UUID, m *models.Message) error {
	parent, err := t.store.GetMessage(ctx, parentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrParentNotFound, parentID)
		}
		return err
	}

	m.ForumID = parent.ForumID
	m.ParentID = &parent.ID
	if err := t.store.CreateMessage(ctx, m); err != nil {
		return err
	}

	if err := t.store.AttachReply(ctx, parent.ID, m.ID); err != nil {
		if delErr := t.store.DeleteMessage(ctx, m.ID); delErr != nil {
			log.Printf("rollback of reply %s failed: %v", m.ID, delErr)
			return errors.Join(err, delErr)
		}
		if errors.Is(err, ErrNotFound) {
			// 父消息在此期间被删除
			return fmt.Errorf("%w: %s", ErrParentNotFound, parentID)
		}
		return err
	}
	return nil
}

// deleteMessage removes id together with its direct replies (one level) and
// detaches it from its parent. Deeper replies become top-level messages of the
// same forum. Blob cleanup is best-effort.
func (t *threadManager) deleteMessage(ctx context.Context, m *models.Message) ([]models.Message, error) {
	children, err := t.store.DeleteThread(ctx, m.ID, m.ParentID)
	if err != nil {
		return nil, err
	}

	for i := range children {
		t.removeBlobs(ctx, &children[i])
	}
	t.removeBlobs(ctx, m)
	return children, nil
}

func (t *threadManager) removeBlobs(ctx context.Context, m *models.Message) {
	for _, a := range m.Attachments() {
		if err := t.storage.Delete(ctx, a); err != nil {
			log.Printf("remove attachment %s of message %s failed: %v", a.Path, m.ID, err)
		}
	}
}

func (t *threadManager) listTopLevel(ctx context.Context, forumID uuid.UUID, page, limit int) ([]models.Message, Pagination, error) {
	page, limit = normalizePage(page, limit)
	msgs, total, err := t.store.ListTopLevel(ctx, forumID, (page-1)*limit, limit)
	if err != nil {
		return nil, Pagination{}, err
	}
	return msgs, newPagination(total, page, limit), nil
}

func (t *threadManager) listReplies(ctx context.Context, parentID uuid.UUID, page, limit int) ([]models.Message, Pagination, error) {
	if _, err := t.store.GetMessage(ctx, parentID); err != nil {
		return nil, Pagination{}, err
	}

	page, limit = normalizePage(page, limit)
	msgs, total, err := t.store.ListReplies(ctx, parentID, (page-1)*limit, limit)
	if err != nil {
		return nil, Pagination{}, err
	}
	return msgs, newPagination(total, page, limit), nil
}
