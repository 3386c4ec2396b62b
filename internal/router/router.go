package router

import (
	"net/http"

	"campushub/internal/handlers"
	"campushub/internal/middleware"
	"campushub/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps 路由依赖
type Deps struct {
	Service        *services.MessageService
	Live           handlers.Subscriber // nil 时关闭实时推送
	UploadDir      string
	MaxUploadBytes int64
}

// RegisterRoutes 注册所有路由；会话中间件需由调用方先行安装
func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.Metrics())
	r.Use(middleware.LoadUser())

	// Handlers
	forumHandler := handlers.NewForumHandler(d.Service)
	messageHandler := handlers.NewMessageHandler(d.Service, d.MaxUploadBytes)
	liveHandler := handlers.NewLiveHandler(d.Service, d.Live)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }) // 存活检查
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))                                         // Prometheus 指标
	if d.UploadDir != "" {
		r.Static("/uploads", d.UploadDir) // 附件静态文件
	}

	api := r.Group("/api")
	{
		api.GET("/forums", forumHandler.List)                         // 论坛列表
		api.GET("/forums/:forumId/messages", messageHandler.List)     // 顶层消息列表
		api.POST("/forums/:forumId/messages", messageHandler.Create)  // 发布消息或投票
		api.GET("/forums/:forumId/live", liveHandler.Stream)          // 实时事件 (websocket)
		api.GET("/messages/:id", messageHandler.Get)                  // 消息详情
		api.PUT("/messages/:id/vote", messageHandler.Vote)            // 投票/取消投票
		api.DELETE("/messages/:id", messageHandler.Delete)            // 删除消息及其回复
		api.GET("/messages/:id/replies", messageHandler.ListReplies)  // 回复列表
		api.POST("/messages/:id/replies", messageHandler.CreateReply) // 发表回复
	}
}
