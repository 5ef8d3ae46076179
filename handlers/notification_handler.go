package handlers

import (
	"net/http"
	"strings"

	custommiddleware "OrgVerify/middleware"
	"OrgVerify/models"
	"OrgVerify/services"

	"github.com/labstack/echo/v4"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotifications 获取当前参与者的通知，支持 unread/category 过滤
func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	actor := custommiddleware.CurrentActor(c)
	filter := services.NotificationFilter{
		UnreadOnly: c.QueryParam("unread") == "true",
		Page:       pageParams(c, defaultNotificationLimit, maxNotificationLimit),
	}
	if raw := c.QueryParam("category"); raw != "" {
		category, ok := models.ParseCategory(raw)
		if !ok {
			return badRequest(c, "invalid category")
		}
		filter.Category = category
	}

	list, err := h.notifications.List(c.Request().Context(), actor.Ref, filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": list,
		"limit":         filter.Limit,
		"offset":        filter.Offset,
	})
}

func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	count, err := h.notifications.CountUnread(c.Request().Context(), custommiddleware.CurrentActor(c).Ref)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"count": count})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return badRequest(c, "invalid notification ID")
	}
	n, err := h.notifications.MarkRead(c.Request().Context(), id, custommiddleware.CurrentActor(c).Ref)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	updated, err := h.notifications.MarkAllRead(c.Request().Context(), custommiddleware.CurrentActor(c).Ref)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"updated": updated})
}

// DeleteNotification 只有接收者本人可以删除，其他人得到 404
func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return badRequest(c, "invalid notification ID")
	}
	if err := h.notifications.Delete(c.Request().Context(), id, custommiddleware.CurrentActor(c).Ref); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type createNotificationRequest struct {
	RecipientID   uint    `json:"recipient_id"`
	RecipientKind string  `json:"recipient_kind"`
	CompanyID     *uint   `json:"company_id"`
	Category      string  `json:"category"`
	Title         string  `json:"title"`
	Body          string  `json:"body"`
	ActionLink    *string `json:"action_link"`
}

// CreateNotification lets an admin alert any actor; the admin is recorded
// as the sender.
func (h *NotificationHandler) CreateNotification(c echo.Context) error {
	var req createNotificationRequest
	if err := c.Bind(&req); err != nil || req.RecipientID == 0 {
		return badRequest(c, "invalid request")
	}
	kind, err := recipientKind(req.RecipientKind)
	if err != nil {
		return badRequest(c, "invalid recipient kind")
	}
	category := models.CategoryOther
	if req.Category != "" {
		parsed, ok := models.ParseCategory(strings.ToLower(req.Category))
		if !ok {
			return badRequest(c, "invalid category")
		}
		category = parsed
	}

	sender := custommiddleware.CurrentActor(c).Ref
	n, delivered, err := h.notifications.Notify(c.Request().Context(), services.NotifyEvent{
		Recipient:  models.ActorRef{Kind: kind, ID: req.RecipientID},
		Sender:     &sender,
		CompanyID:  req.CompanyID,
		Category:   category,
		Title:      req.Title,
		Body:       req.Body,
		ActionLink: req.ActionLink,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"notification": n,
		"delivered":    delivered,
	})
}
