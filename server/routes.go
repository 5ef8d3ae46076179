package server

import (
	"net/http"

	custommiddleware "OrgVerify/middleware"

	"github.com/labstack/echo/v4"
)

func (s *Server) SetupRoutes(authMiddleware echo.MiddlewareFunc, adminMiddleware echo.MiddlewareFunc) {
	e := s.Echo
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// 认证 + 限流
	guarded := []echo.MiddlewareFunc{authMiddleware}
	if s.apiLimiter != nil {
		guarded = append(guarded, custommiddleware.NewRateLimitMiddleware(s.apiLimiter, custommiddleware.RateLimitConfig{}))
	}
	adminGuarded := append(append([]echo.MiddlewareFunc{}, guarded...), adminMiddleware)

	api := e.Group("/api/v1")

	// 实时通道，鉴权失败在升级前返回 401
	api.GET("/ws", s.ChatWebSocketHandler.HandleWebSocket, authMiddleware)

	chat := api.Group("/chat", adminGuarded...)
	{
		chat.GET("/online", s.ChatWebSocketHandler.GetOnlineUsers) // 在线参与者
	}

	messages := api.Group("/messages", guarded...)
	{
		messages.POST("", s.MessageHandler.SendMessage)
		messages.GET("/conversation/:kind/:id", s.MessageHandler.GetConversation)
		messages.POST("/read", s.MessageHandler.MarkRead)
		messages.POST("/read-conversation/:kind/:id", s.MessageHandler.MarkConversationRead)
		messages.GET("/unread-count", s.MessageHandler.UnreadCount)
	}

	support := api.Group("/support", guarded...)
	{
		support.POST("/assign", s.SupportHandler.Assign) // 分配客服
	}

	admin := api.Group("/admin", adminGuarded...)
	{
		admin.PUT("/availability", s.SupportHandler.SetAvailability)
		admin.GET("/active-chats", s.SupportHandler.ActiveChats)
		admin.POST("/notifications", s.NotificationHandler.CreateNotification)
	}

	notifications := api.Group("/notifications", guarded...)
	{
		notifications.GET("", s.NotificationHandler.ListNotifications)
		notifications.GET("/unread-count", s.NotificationHandler.UnreadCount)
		notifications.PUT("/read-all", s.NotificationHandler.MarkAllRead)
		notifications.PUT("/:id/read", s.NotificationHandler.MarkRead)
		notifications.DELETE("/:id", s.NotificationHandler.DeleteNotification)
	}
}
