package handlers

import (
	"net/http"

	custommiddleware "OrgVerify/middleware"
	"OrgVerify/services"

	"github.com/labstack/echo/v4"
)

type SupportHandler struct {
	balancer *services.AdminBalancer
}

func NewSupportHandler(balancer *services.AdminBalancer) *SupportHandler {
	return &SupportHandler{balancer: balancer}
}

// Assign 为用户分配最久未分配的在线客服
func (h *SupportHandler) Assign(c echo.Context) error {
	actor := custommiddleware.CurrentActor(c)
	profile, ok, err := h.balancer.Assign(c.Request().Context(), actor.Ref)
	if err != nil {
		return respondError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "no admin available",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"admin": profile,
	})
}

// SetAvailability 管理员切换接单状态
func (h *SupportHandler) SetAvailability(c echo.Context) error {
	var req struct {
		Available *bool `json:"available"`
	}
	if err := c.Bind(&req); err != nil || req.Available == nil {
		return badRequest(c, "available is required")
	}
	actor := custommiddleware.CurrentActor(c)
	admin, err := h.balancer.SetAvailability(c.Request().Context(), actor.Ref.ID, *req.Available)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"admin_id":         admin.ID,
		"is_available":     admin.IsAvailable,
		"last_assigned_at": admin.LastAssignedAt,
	})
}

func (h *SupportHandler) ActiveChats(c echo.Context) error {
	actor := custommiddleware.CurrentActor(c)
	ids, err := h.balancer.ActiveChats(c.Request().Context(), actor.Ref.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_ids": ids,
		"total":    len(ids),
	})
}
