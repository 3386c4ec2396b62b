package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"campushub/internal/handlers/dto"
	"campushub/internal/poll"
	"campushub/internal/services"
	"campushub/internal/storage"
	"campushub/internal/utils"

	"github.com/gin-gonic/gin"
)

var uploadFields = []string{"file", "audio"}

// formOverhead 表单字段和 multipart 边界的额外空间
const formOverhead = 1 << 20

type MessageHandler struct {
	svc            *services.MessageService
	maxUploadBytes int64
}

func NewMessageHandler(svc *services.MessageService, maxUploadBytes int64) *MessageHandler {
	return &MessageHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// List GET /api/forums/:forumId/messages
func (h *MessageHandler) List(c *gin.Context) {
	page := utils.StringToInt(c.Query("page"), services.DefaultPage)
	limit := utils.StringToInt(c.Query("limit"), services.DefaultLimit)

	msgs, pg, err := h.svc.ListTopLevel(c.Request.Context(), c.Param("forumId"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageListResponse{Messages: msgs, Pagination: pg})
}

// Create POST /api/forums/:forumId/messages
func (h *MessageHandler) Create(c *gin.Context) {
	req, uploads, ok := h.bindCreate(c)
	if !ok {
		return
	}
	in := req.Input()
	in.ForumID = c.Param("forumId")

	m, err := h.svc.CreateMessage(c.Request.Context(), in, uploads)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// Get GET /api/messages/:id
func (h *MessageHandler) Get(c *gin.Context) {
	m, err := h.svc.GetMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Vote PUT /api/messages/:id/vote
func (h *MessageHandler) Vote(c *gin.Context) {
	var req dto.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	userID := strings.TrimSpace(currentUser(c, req.UserID))

	m, err := h.svc.UpdatePollVote(c.Request.Context(), c.Param("id"), userID, *req.OptionIndex, req.VoteType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.VoteResponse{Message: m, MyVotes: poll.HasVoted(m.PollData(), userID)})
}

// Delete DELETE /api/messages/:id
func (h *MessageHandler) Delete(c *gin.Context) {
	var req dto.DeleteRequest
	// 请求体可选
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	if err := h.svc.DeleteMessage(c.Request.Context(), c.Param("id"), currentUser(c, req.UserID)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListReplies GET /api/messages/:id/replies
func (h *MessageHandler) ListReplies(c *gin.Context) {
	page := utils.StringToInt(c.Query("page"), services.DefaultPage)
	limit := utils.StringToInt(c.Query("limit"), services.DefaultLimit)

	replies, pg, err := h.svc.ListReplies(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ReplyListResponse{Replies: replies, Pagination: pg})
}

// CreateReply POST /api/messages/:id/replies
func (h *MessageHandler) CreateReply(c *gin.Context) {
	req, uploads, ok := h.bindCreate(c)
	if !ok {
		return
	}

	m, err := h.svc.CreateReply(c.Request.Context(), c.Param("id"), req.Input(), uploads)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// bindCreate 解析 JSON 或 multipart 请求；失败时已写入响应
func (h *MessageHandler) bindCreate(c *gin.Context) (*dto.CreateMessageRequest, []services.Upload, bool) {
	var req dto.CreateMessageRequest

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return nil, nil, false
		}
		req.UserID = currentUser(c, req.UserID)
		return &req, nil, true
	}

	if h.maxUploadBytes > 0 {
		limit := int64(len(uploadFields))*h.maxUploadBytes + formOverhead
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, fmt.Errorf("%w: request body exceeds %d bytes", storage.ErrTooLarge, tooLarge.Limit))
			return nil, nil, false
		}
		badRequest(c, err)
		return nil, nil, false
	}
	if payload := c.PostForm("payload"); payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			badRequest(c, fmt.Errorf("invalid payload: %w", err))
			return nil, nil, false
		}
	} else if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return nil, nil, false
	}
	req.UserID = currentUser(c, req.UserID)

	var uploads []services.Upload
	for _, field := range uploadFields {
		files := form.File[field]
		if len(files) == 0 {
			continue
		}
		u, err := h.readUpload(field, files[0])
		if err != nil {
			respondError(c, err)
			return nil, nil, false
		}
		uploads = append(uploads, u)
	}
	return &req, uploads, true
}

func (h *MessageHandler) readUpload(field string, fh *multipart.FileHeader) (services.Upload, error) {
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		return services.Upload{}, fmt.Errorf("%w: %s is larger than %d bytes", storage.ErrTooLarge, field, h.maxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return services.Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return services.Upload{}, err
	}
	return services.Upload{
		Field:    field,
		Name:     fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}
