package services

import (
	"context"
	"log"
	"time"

	"campushub/internal/models"

	"github.com/google/uuid"
)

type EventType string

const (
	EventMessageCreated EventType = "message.created"
	EventMessageDeleted EventType = "message.deleted"
	EventPollVoted      EventType = "poll.voted"
)

type Event struct {
	Type      EventType       `json:"type"`
	ForumID   uuid.UUID       `json:"forum_id"`
	MessageID uuid.UUID       `json:"message_id"`
	ParentID  *uuid.UUID      `json:"parent_id,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
	At        time.Time       `json:"at"`
}

// ForumChannel is the pub/sub channel carrying a forum's events.
func ForumChannel(forumID uuid.UUID) string {
	return "forum:" + forumID.String()
}

func newEvent(t EventType, m *models.Message) Event {
	ev := Event{
		Type:      t,
		ForumID:   m.ForumID,
		MessageID: m.ID,
		ParentID:  m.ParentID,
		At:        time.Now(),
	}
	if t != EventMessageDeleted {
		ev.Message = publicCopy(m)
	}
	return ev
}

// publicCopy 事件会推送给论坛所有订阅者，去掉投票账本只保留计数
func publicCopy(m *models.Message) *models.Message {
	cp := m.Clone()
	if p := cp.PollData(); p != nil {
		p.UserVotes = nil
		cp.SetPoll(p)
	}
	return cp
}

// publish 推送事件失败只记录日志，不影响主流程
func (s *MessageService) publish(ctx context.Context, ev Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Printf("publish %s for message %s failed: %v", ev.Type, ev.MessageID, err)
	}
}
