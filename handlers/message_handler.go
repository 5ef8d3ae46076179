package handlers

import (
	"net/http"

	custommiddleware "OrgVerify/middleware"
	"OrgVerify/models"
	"OrgVerify/services"

	"github.com/labstack/echo/v4"
)

const defaultConversationLimit = 50

type MessageHandler struct {
	messages        *services.MessageService
	conversationMax int
}

func NewMessageHandler(messages *services.MessageService, conversationMax int) *MessageHandler {
	if conversationMax <= 0 {
		conversationMax = 200
	}
	return &MessageHandler{messages: messages, conversationMax: conversationMax}
}

type sendMessageRequest struct {
	RecipientID   uint   `json:"recipient_id"`
	RecipientType string `json:"recipient_type"`
	Content       string `json:"content"`
}

// SendMessage 通过 HTTP 发送消息，投递与 websocket 路径一致
func (h *MessageHandler) SendMessage(c echo.Context) error {
	actor := custommiddleware.CurrentActor(c)
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil || req.RecipientID == 0 {
		return badRequest(c, "invalid request")
	}
	kind, err := recipientKind(req.RecipientType)
	if err != nil {
		return badRequest(c, "invalid recipient type")
	}

	msg, err := h.messages.Send(c.Request().Context(), actor, models.ActorRef{Kind: kind, ID: req.RecipientID}, req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// GetConversation 获取与某个参与者的历史消息（按时间升序）
func (h *MessageHandler) GetConversation(c echo.Context) error {
	partner, ok := partnerParam(c)
	if !ok {
		return badRequest(c, "invalid participant")
	}
	page := pageParams(c, defaultConversationLimit, h.conversationMax)

	messages, err := h.messages.Conversation(c.Request().Context(), custommiddleware.CurrentActor(c), partner, page)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

func (h *MessageHandler) MarkRead(c echo.Context) error {
	var req struct {
		MessageIDs []uint `json:"message_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	updated, err := h.messages.MarkRead(c.Request().Context(), custommiddleware.CurrentActor(c), req.MessageIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message_ids": req.MessageIDs,
		"updated":     updated,
	})
}

func (h *MessageHandler) MarkConversationRead(c echo.Context) error {
	partner, ok := partnerParam(c)
	if !ok {
		return badRequest(c, "invalid participant")
	}
	updated, err := h.messages.MarkConversationRead(c.Request().Context(), custommiddleware.CurrentActor(c), partner)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"updated": updated})
}

func (h *MessageHandler) UnreadCount(c echo.Context) error {
	count, err := h.messages.CountUnread(c.Request().Context(), custommiddleware.CurrentActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"count": count})
}
