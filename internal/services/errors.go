package services

import (
	"errors"

	"campushub/internal/poll"
)

var (
	ErrInvalidForumID     = errors.New("invalid forum id")
	ErrInvalidMessageID   = errors.New("invalid message id")
	ErrForumNotFound      = errors.New("forum not found")
	ErrNotFound           = errors.New("message not found")
	ErrParentNotFound     = errors.New("parent message not found")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrEmptyMessage       = errors.New("message text or attachment is required")
	ErrMissingUser        = errors.New("user id is required")
	ErrInvalidAttachment  = errors.New("invalid attachment")
	ErrForbidden          = errors.New("not allowed to modify this message")
	ErrVersionConflict    = errors.New("message was modified concurrently")

	// 投票相关错误由 poll 包定义
	ErrNotAPoll      = poll.ErrNotAPoll
	ErrInvalidOption = poll.ErrInvalidOption
	ErrInvalidPoll   = poll.ErrInvalidPoll
)
