package handlers

import (
	"errors"
	"log"
	"net/http"

	"campushub/internal/middleware"
	"campushub/internal/services"
	"campushub/internal/storage"

	"github.com/gin-gonic/gin"
)

// respondError 将服务层错误映射为 HTTP 状态码
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidForumID),
		errors.Is(err, services.ErrInvalidMessageID),
		errors.Is(err, services.ErrInvalidMessageType),
		errors.Is(err, services.ErrInvalidPoll),
		errors.Is(err, services.ErrInvalidOption),
		errors.Is(err, services.ErrNotAPoll),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrMissingUser),
		errors.Is(err, services.ErrInvalidAttachment):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrForumNotFound),
		errors.Is(err, services.ErrParentNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrVersionConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// currentUser 返回调用者身份：会话中的用户优先，否则使用请求体中的值
func currentUser(c *gin.Context, fromBody string) string {
	if v, ok := c.Get(middleware.CheckUserKey); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return fromBody
}
