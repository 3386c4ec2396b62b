package db

import (
	"context"
	"errors"
	"log"
	"time"

	"campushub/internal/models"
	"campushub/internal/poll"
	"campushub/internal/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageStore implements services.MessageStore on top of gorm/postgres.
type MessageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

var _ services.MessageStore = (*MessageStore)(nil)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrNotFound
	}
	return err
}

func (s *MessageStore) GetForum(ctx context.Context, id uuid.UUID) (*models.Forum, error) {
	var forum models.Forum
	if err := s.db.WithContext(ctx).First(&forum, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &forum, nil
}

func (s *MessageStore) ListForums(ctx context.Context) ([]models.Forum, error) {
	var forums []models.Forum
	err := s.db.WithContext(ctx).Order("name ASC").Find(&forums).Error
	return forums, err
}

func (s *MessageStore) CreateMessage(ctx context.Context, m *models.Message) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error
}

func (s *MessageStore) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var m models.Message
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	// 票数以 userVotes 为准，发现不一致时按账本修正
	if p := m.PollData(); p != nil && poll.Recount(p) {
		log.Printf("poll counts of message %s drifted, recounted from ledger", m.ID)
		m.SetPoll(p)
	}
	return &m, nil
}

func (s *MessageStore) ListTopLevel(ctx context.Context, forumID uuid.UUID, offset, limit int) ([]models.Message, int64, error) {
	return s.list(ctx, offset, limit, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("forum_id = ? AND parent_id IS NULL", forumID)
	})
}

func (s *MessageStore) ListReplies(ctx context.Context, parentID uuid.UUID, offset, limit int) ([]models.Message, int64, error) {
	return s.list(ctx, offset, limit, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("parent_id = ?", parentID)
	})
}

func (s *MessageStore) list(ctx context.Context, offset, limit int, filter func(*gorm.DB) *gorm.DB) ([]models.Message, int64, error) {
	var total int64
	if err := filter(s.db.WithContext(ctx).Model(&models.Message{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var msgs []models.Message
	err := filter(s.db.WithContext(ctx)).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// CountReplies 批量统计回复数量
func (s *MessageStore) CountReplies(ctx context.Context, parentIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(parentIDs))
	if len(parentIDs) == 0 {
		return counts, nil
	}

	type countResult struct {
		ParentID uuid.UUID
		Count    int64
	}
	var results []countResult
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Select("parent_id, COUNT(*) as count").
		Where("parent_id IN ?", parentIDs).
		Group("parent_id").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		counts[r.ParentID] = r.Count
	}
	return counts, nil
}

// AttachReply 原子地把子消息 ID 追加到父消息的 replies 缓存
func (s *MessageStore) AttachReply(ctx context.Context, parentID, childID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", parentID).
		UpdateColumn("replies", gorm.Expr(
			"(CASE WHEN jsonb_typeof(replies) = 'array' THEN replies ELSE '[]'::jsonb END) || jsonb_build_array(?::text)",
			childID.String(),
		))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

// UpdatePoll 乐观锁写入投票结果，version 不匹配时返回 ErrVersionConflict
func (s *MessageStore) UpdatePoll(ctx context.Context, m *models.Message) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND version = ?", m.ID, m.Version).
		UpdateColumns(map[string]interface{}{
			"poll":       m.Poll,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrVersionConflict
	}
	m.Version++
	m.UpdatedAt = now
	return nil
}

func (s *MessageStore) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Message{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrNotFound
	}
	return nil
}

func (s *MessageStore) DeleteThread(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) ([]models.Message, error) {
	var children []models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁住目标消息，阻止并发插入新的回复
		var target models.Message
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&target, "id = ?", id).Error; err != nil {
			return notFound(err)
		}

		// 删除直接回复并取回被删除的行，用于清理附件和推送事件
		if err := tx.Clauses(clause.Returning{}).Where("parent_id = ?", id).Delete(&children).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", id).Delete(&models.Message{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return services.ErrNotFound
		}

		if parentID == nil {
			return nil
		}
		return tx.Model(&models.Message{}).
			Where("id = ? AND jsonb_typeof(replies) = 'array'", *parentID).
			UpdateColumn("replies", gorm.Expr("replies - ?::text", id.String())).Error
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}
