package dto

import (
	"campushub/internal/models"
	"campushub/internal/services"
)

type PollRequest struct {
	Question string          `json:"question"`
	Options  []string        `json:"options" binding:"max=20"`
	Type     models.PollType `json:"type" binding:"omitempty,oneof=single multi"`
}

// CreateMessageRequest 创建消息或回复；multipart 请求时放在 payload 字段中，或作为普通表单字段
type CreateMessageRequest struct {
	ForumID  string             `json:"forum_id" form:"forum_id"`
	UserID   string             `json:"user_id" form:"user_id"`
	Type     models.MessageType `json:"type" form:"type"`
	Text     string             `json:"text" form:"text" binding:"max=20000"`
	ParentID string             `json:"parent_id" form:"parent_id"`
	Poll     *PollRequest       `json:"poll"`
}

func (r *CreateMessageRequest) Input() services.CreateMessageInput {
	in := services.CreateMessageInput{
		ForumID:  r.ForumID,
		UserID:   r.UserID,
		Type:     r.Type,
		Text:     r.Text,
		ParentID: r.ParentID,
	}
	if r.Poll != nil {
		in.Poll = &services.PollInput{
			Question: r.Poll.Question,
			Options:  r.Poll.Options,
			Type:     r.Poll.Type,
		}
	}
	return in
}

type VoteRequest struct {
	UserID      string `json:"userId"`
	OptionIndex *int   `json:"optionIndex" binding:"required"`
	VoteType    string `json:"voteType"`
}

type DeleteRequest struct {
	UserID string `json:"userId"`
}

type MessageListResponse struct {
	Messages   []models.Message    `json:"messages"`
	Pagination services.Pagination `json:"pagination"`
}

type ReplyListResponse struct {
	Replies    []models.Message    `json:"replies"`
	Pagination services.Pagination `json:"pagination"`
}

// VoteResponse 投票后的消息，附带当前用户已选的选项
type VoteResponse struct {
	*models.Message
	MyVotes []int `json:"my_votes"`
}
