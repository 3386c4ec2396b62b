package models

import (
	"html/template"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MessageType string

const (
	MessageTypeText MessageType = "message"
	MessageTypePoll MessageType = "poll"
)

// Attachment 附件描述，文件本身保存在存储目录中
type Attachment struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type Message struct {
	ID       uuid.UUID                       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ForumID  uuid.UUID                       `gorm:"type:uuid;not null;index:idx_messages_forum_thread,priority:1" json:"forum_id"`
	Forum    Forum                           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID   string                          `gorm:"size:64;not null;index" json:"user_id"`
	Type     MessageType                     `gorm:"type:varchar(10);not null;default:'message'" json:"type"`
	Text     string                          `gorm:"type:text" json:"text,omitempty"`
	File     datatypes.JSONType[*Attachment] `json:"file"`
	Audio    datatypes.JSONType[*Attachment] `json:"audio"`
	Poll     datatypes.JSONType[*Poll]       `json:"poll"`
	ParentID *uuid.UUID                      `gorm:"type:uuid;index;index:idx_messages_forum_thread,priority:2" json:"parent_id"` // Nullable for top-level messages
	// 删除只级联一层，更深的回复保留并提升为顶层消息
	Parent   *Message                        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	// Replies 子消息 ID 缓存，列表查询始终以 parent_id 为准
	Replies   datatypes.JSONSlice[string] `json:"replies"`
	Version   int                         `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time                   `gorm:"index:idx_messages_forum_thread,priority:3" json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`

	// 非数据库字段，用于查询时填充
	TextHTML   template.HTML `gorm:"-" json:"text_html,omitempty"`
	ReplyCount int64         `gorm:"-" json:"reply_count"`
}

func (m *Message) IsReply() bool {
	return m.ParentID != nil
}

// PollData returns the embedded poll, nil for plain messages.
func (m *Message) PollData() *Poll {
	return m.Poll.Data()
}

func (m *Message) SetPoll(p *Poll) {
	m.Poll = datatypes.NewJSONType(p)
}

func (m *Message) Attachments() []*Attachment {
	var out []*Attachment
	if f := m.File.Data(); f != nil {
		out = append(out, f)
	}
	if a := m.Audio.Data(); a != nil {
		out = append(out, a)
	}
	return out
}

// Clone returns a deep copy that shares no mutable state with m.
func (m *Message) Clone() *Message {
	cp := *m
	cp.Parent = nil
	if m.ParentID != nil {
		pid := *m.ParentID
		cp.ParentID = &pid
	}
	cp.Poll = datatypes.NewJSONType(m.PollData().Clone())
	if f := m.File.Data(); f != nil {
		fc := *f
		cp.File = datatypes.NewJSONType(&fc)
	}
	if a := m.Audio.Data(); a != nil {
		ac := *a
		cp.Audio = datatypes.NewJSONType(&ac)
	}
	cp.Replies = append(datatypes.JSONSlice[string](nil), m.Replies...)
	return &cp
}
