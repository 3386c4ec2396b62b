package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"campushub/internal/metrics"
	"campushub/internal/models"
	"campushub/internal/poll"
	"campushub/internal/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const defaultVoteRetries = 5

// Upload 一个待保存的附件，Field 为 "file" 或 "audio"
type Upload struct {
	Field    string
	Name     string
	MimeType string
	Data     []byte
}

type PollInput struct {
	Question string
	Options  []string
	Type     models.PollType
}

type CreateMessageInput struct {
	ForumID  string
	UserID   string
	Type     models.MessageType
	Text     string
	ParentID string
	Poll     *PollInput
}

// DeletePolicy decides whether userID may delete m. Returning an error aborts
// the delete; wrap ErrForbidden to get a 403.
type DeletePolicy func(m *models.Message, userID string) error

type Option func(*MessageService)

func WithPublisher(p Publisher) Option {
	return func(s *MessageService) {
		if p != nil {
			s.events = p
		}
	}
}

func WithMaxVoteRetries(n int) Option {
	return func(s *MessageService) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func WithDeletePolicy(p DeletePolicy) Option {
	return func(s *MessageService) {
		s.deletePolicy = p
	}
}

// MessageService 论坛消息服务：发帖、回复、投票、删除、列表
type MessageService struct {
	store        MessageStore
	storage      AttachmentStorage
	threads      *threadManager
	events       Publisher
	maxRetries   int
	deletePolicy DeletePolicy
}

func NewMessageService(store MessageStore, storage AttachmentStorage, opts ...Option) *MessageService {
	s := &MessageService{
		store:      store,
		storage:    storage,
		threads:    &threadManager{store: store, storage: storage},
		events:     nopPublisher{},
		maxRetries: defaultVoteRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func parseID(raw string, invalid error) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %q", invalid, raw)
	}
	return id, nil
}

func (s *MessageService) ListForums(ctx context.Context) ([]models.Forum, error) {
	return s.store.ListForums(ctx)
}

func (s *MessageService) GetForum(ctx context.Context, forumID string) (*models.Forum, error) {
	fid, err := parseID(forumID, ErrInvalidForumID)
	if err != nil {
		return nil, err
	}
	f, err := s.store.GetForum(ctx, fid)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrForumNotFound, fid)
	}
	return f, err
}

// ListTopLevel 列出论坛中的顶层消息（不含回复），按创建时间升序
func (s *MessageService) ListTopLevel(ctx context.Context, forumID string, page, limit int) ([]models.Message, Pagination, error) {
	fid, err := parseID(forumID, ErrInvalidForumID)
	if err != nil {
		return nil, Pagination{}, err
	}
	msgs, pg, err := s.threads.listTopLevel(ctx, fid, page, limit)
	if err != nil {
		return nil, Pagination{}, err
	}
	s.decorateAll(ctx, msgs)
	return msgs, pg, nil
}

// ListReplies 列出某条消息的直接回复
func (s *MessageService) ListReplies(ctx context.Context, messageID string, page, limit int) ([]models.Message, Pagination, error) {
	id, err := parseID(messageID, ErrInvalidMessageID)
	if err != nil {
		return nil, Pagination{}, err
	}
	msgs, pg, err := s.threads.listReplies(ctx, id, page, limit)
	if err != nil {
		return nil, Pagination{}, err
	}
	s.decorateAll(ctx, msgs)
	return msgs, pg, nil
}

func (s *MessageService) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	id, err := parseID(messageID, ErrInvalidMessageID)
	if err != nil {
		return nil, err
	}
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decorateOne(ctx, m)
	return m, nil
}

// CreateReply creates a reply to messageID. Any forum id in input is ignored:
// replies always belong to the parent's forum.
func (s *MessageService) CreateReply(ctx context.Context, messageID string, input CreateMessageInput, uploads []Upload) (*models.Message, error) {
	if _, err := parseID(messageID, ErrInvalidMessageID); err != nil {
		return nil, err
	}
	input.ParentID = messageID
	return s.CreateMessage(ctx, input, uploads)
}

// CreateMessage validates input, saves attachments and stores the message as a
// top-level post or, when ParentID is set, as a reply.
func (s *MessageService) CreateMessage(ctx context.Context, input CreateMessageInput, uploads []Upload) (*models.Message, error) {
	m, err := buildMessage(input, len(uploads) > 0)
	if err != nil {
		return nil, err
	}

	var parentID uuid.UUID
	isReply := strings.TrimSpace(input.ParentID) != ""
	if isReply {
		if parentID, err = parseID(input.ParentID, ErrInvalidMessageID); err != nil {
			return nil, err
		}
	} else {
		fid, err := parseID(input.ForumID, ErrInvalidForumID)
		if err != nil {
			return nil, err
		}
		if _, err := s.store.GetForum(ctx, fid); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrForumNotFound, fid)
			}
			return nil, err
		}
		m.ForumID = fid
	}

	if err := s.saveUploads(ctx, m, uploads); err != nil {
		return nil, err
	}

	if isReply {
		err = s.threads.createReply(ctx, parentID, m)
	} else {
		err = s.threads.createTopLevel(ctx, m)
	}
	if err != nil {
		// 消息未创建，清理已保存的附件
		s.threads.removeBlobs(ctx, m)
		return nil, err
	}

	metrics.MessagesCreated.WithLabelValues(string(m.Type), metrics.Kind(isReply)).Inc()
	s.decorate(m)
	s.publish(ctx, newEvent(EventMessageCreated, m))
	return m, nil
}

func buildMessage(input CreateMessageInput, hasUploads bool) (*models.Message, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, ErrMissingUser
	}

	msgType := input.Type
	if msgType == "" {
		msgType = models.MessageTypeText
		if input.Poll != nil {
			msgType = models.MessageTypePoll
		}
	}

	m := &models.Message{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    msgType,
		Text:    strings.TrimSpace(input.Text),
		Replies: datatypes.JSONSlice[string]{},
		Version: 1,
	}

	switch msgType {
	case models.MessageTypePoll:
		if input.Poll == nil {
			return nil, fmt.Errorf("%w: poll data is required", ErrInvalidPoll)
		}
		p, err := poll.NewPoll(input.Poll.Question, input.Poll.Options, input.Poll.Type)
		if err != nil {
			return nil, err
		}
		m.SetPoll(p)
	case models.MessageTypeText:
		if m.Text == "" && !hasUploads {
			return nil, ErrEmptyMessage
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMessageType, msgType)
	}
	return m, nil
}

func (s *MessageService) saveUploads(ctx context.Context, m *models.Message, uploads []Upload) error {
	for _, u := range uploads {
		if len(u.Data) == 0 {
			s.threads.removeBlobs(ctx, m)
			return fmt.Errorf("%w: %s is empty", ErrInvalidAttachment, u.Field)
		}
		a, err := s.storage.Save(ctx, u.Data, u.Name, u.MimeType)
		if err != nil {
			s.threads.removeBlobs(ctx, m)
			return err
		}
		switch u.Field {
		case "audio":
			if !strings.HasPrefix(a.MimeType, "audio/") {
				if err := s.storage.Delete(ctx, a); err != nil {
					log.Printf("remove rejected audio %s failed: %v", a.Path, err)
				}
				s.threads.removeBlobs(ctx, m)
				return fmt.Errorf("%w: audio must be audio/*, got %s", ErrInvalidAttachment, a.MimeType)
			}
			m.Audio = datatypes.NewJSONType(a)
		default:
			m.File = datatypes.NewJSONType(a)
		}
	}
	return nil
}

// UpdatePollVote toggles userID's vote on optionIndex. voteType is accepted for
// compatibility; whether the call adds or removes a vote depends only on the ledger.
//
// The write is version checked. On a conflict the message is reloaded and the
// vote reapplied, up to maxRetries attempts.
func (s *MessageService) UpdatePollVote(ctx context.Context, messageID, userID string, optionIndex int, voteType string) (*models.Message, error) {
	id, err := parseID(messageID, ErrInvalidMessageID)
	if err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}

	for attempt := 1; ; attempt++ {
		m, err := s.store.GetMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		p := m.PollData()
		if m.Type != models.MessageTypePoll || p == nil {
			return nil, ErrNotAPoll
		}

		transition, err := poll.ApplyVote(p, userID, optionIndex)
		if err != nil {
			return nil, err
		}
		m.SetPoll(p)

		err = s.store.UpdatePoll(ctx, m)
		if errors.Is(err, ErrVersionConflict) {
			metrics.PollVoteConflicts.Inc()
			if attempt >= s.maxRetries {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.PollVotes.WithLabelValues(string(transition)).Inc()
		s.decorateOne(ctx, m)
		s.publish(ctx, newEvent(EventPollVoted, m))
		return m, nil
	}
}

// DeleteMessage removes the message, its direct replies and their attachments.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID, userID string) error {
	id, err := parseID(messageID, ErrInvalidMessageID)
	if err != nil {
		return err
	}
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	if s.deletePolicy != nil {
		if err := s.deletePolicy(m, strings.TrimSpace(userID)); err != nil {
			return err
		}
	}

	children, err := s.threads.deleteMessage(ctx, m)
	if err != nil {
		return err
	}

	metrics.MessagesDeleted.Add(float64(len(children) + 1))
	for i := range children {
		s.publish(ctx, newEvent(EventMessageDeleted, &children[i]))
	}
	s.publish(ctx, newEvent(EventMessageDeleted, m))
	return nil
}

// AuthorOnly is a DeletePolicy that only lets authors delete their messages.
func AuthorOnly(m *models.Message, userID string) error {
	if userID == "" || m.UserID != userID {
		return ErrForbidden
	}
	return nil
}

func (s *MessageService) decorate(m *models.Message) {
	m.TextHTML = utils.RenderMarkdownCached(m.Text)
}

func (s *MessageService) decorateOne(ctx context.Context, m *models.Message) {
	one := []models.Message{*m}
	s.decorateAll(ctx, one)
	*m = one[0]
}

// decorateAll 填充渲染后的正文和回复数，计数失败只记录日志
func (s *MessageService) decorateAll(ctx context.Context, msgs []models.Message) {
	if len(msgs) == 0 {
		return
	}
	ids := make([]uuid.UUID, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].ID
	}
	counts, err := s.store.CountReplies(ctx, ids)
	if err != nil {
		log.Printf("count replies failed: %v", err)
	}
	for i := range msgs {
		s.decorate(&msgs[i])
		msgs[i].ReplyCount = counts[msgs[i].ID]
	}
}
