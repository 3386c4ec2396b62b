package handlers

import (
	"net/http"

	"campushub/internal/services"

	"github.com/gin-gonic/gin"
)

type ForumHandler struct {
	svc *services.MessageService
}

func NewForumHandler(svc *services.MessageService) *ForumHandler {
	return &ForumHandler{svc: svc}
}

// List GET /api/forums
func (h *ForumHandler) List(c *gin.Context) {
	forums, err := h.svc.ListForums(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"forums": forums})
}
