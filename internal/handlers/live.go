package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"campushub/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Subscriber streams the raw events of one forum until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, forumID uuid.UUID) (<-chan []byte, error)
}

type LiveHandler struct {
	svc      *services.MessageService
	sub      Subscriber
	upgrader websocket.Upgrader
}

// NewLiveHandler 创建实时推送处理器，sub 为 nil 时接口返回 503
func NewLiveHandler(svc *services.MessageService, sub Subscriber) *LiveHandler {
	return &LiveHandler{
		svc: svc,
		sub: sub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Stream GET /api/forums/:forumId/live
func (h *LiveHandler) Stream(c *gin.Context) {
	if h.sub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates are disabled"})
		return
	}
	forum, err := h.svc.GetForum(c.Request.Context(), c.Param("forumId"))
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := h.sub.Subscribe(ctx, forum.ID)
	if err != nil {
		log.Printf("subscribe to forum %s failed: %v", forum.ID, err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"))
		return
	}

	// 读循环只处理 pong 和关闭，客户端断开时取消订阅
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket read error: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
