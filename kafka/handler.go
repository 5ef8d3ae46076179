package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"OrgVerify/models"
	"OrgVerify/services"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
)

// InboundEvent is what collaborating services publish when something a
// recipient should hear about happens.
type InboundEvent struct {
	Type          string  `json:"type"`
	RecipientID   uint    `json:"recipient_id"`
	RecipientKind string  `json:"recipient_kind"`
	SenderID      *uint   `json:"sender_id"`
	SenderKind    string  `json:"sender_kind"`
	CompanyID     *uint   `json:"company_id"`
	Title         string  `json:"title"`
	Body          string  `json:"body"`
	ActionLink    *string `json:"action_link"`
}

type Notifier interface {
	Notify(ctx context.Context, ev services.NotifyEvent) (*models.Notification, bool, error)
}

// NotificationHandler turns inbound events into stored (and live pushed)
// notifications.
type NotificationHandler struct {
	notifier Notifier
}

func NewNotificationHandler(notifier Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

// CategoryFor maps an event type to a notification category.
func CategoryFor(eventType string) models.NotificationCategory {
	switch {
	case strings.HasPrefix(eventType, "message."):
		return models.CategoryChat
	case eventType == "company.verified", eventType == "company.rejected":
		return models.CategoryVerification
	case eventType == "employee.added", eventType == "employee.terminated":
		return models.CategoryEmployee
	case eventType == "performance.rated":
		return models.CategoryPerformance
	default:
		return models.CategoryOther
	}
}

// Handle returns an error only for failures worth retrying; events that can
// never succeed are logged and dropped.
func (h *NotificationHandler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event InboundEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		log.Warn().Err(err).Int64("offset", message.Offset).Msg("dropping malformed event")
		return nil
	}

	ev, err := event.toNotify()
	if err != nil {
		log.Warn().Err(err).Str("type", event.Type).Msg("dropping invalid event")
		return nil
	}

	n, delivered, err := h.notifier.Notify(ctx, ev)
	switch {
	case err == nil:
		log.Debug().Uint("notification_id", n.ID).Bool("delivered", delivered).Str("type", event.Type).Msg("inbound event stored")
		return nil
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrInvalidInput):
		log.Warn().Err(err).Str("type", event.Type).Msg("dropping event for unknown recipient")
		return nil
	default:
		return err
	}
}

func (e InboundEvent) toNotify() (services.NotifyEvent, error) {
	kind := models.KindEndUser
	if e.RecipientKind != "" {
		parsed, err := models.ParseActorKind(e.RecipientKind)
		if err != nil {
			return services.NotifyEvent{}, err
		}
		kind = parsed
	}
	if e.RecipientID == 0 {
		return services.NotifyEvent{}, errors.New("recipient_id is required")
	}

	ev := services.NotifyEvent{
		Recipient:  models.ActorRef{Kind: kind, ID: e.RecipientID},
		CompanyID:  e.CompanyID,
		Category:   CategoryFor(e.Type),
		Title:      e.Title,
		Body:       e.Body,
		ActionLink: e.ActionLink,
	}
	if e.SenderID != nil && e.SenderKind != "" {
		senderKind, err := models.ParseActorKind(e.SenderKind)
		if err != nil {
			return services.NotifyEvent{}, err
		}
		ev.Sender = &models.ActorRef{Kind: senderKind, ID: *e.SenderID}
	}
	return ev, nil
}
