package services

import (
	"context"
	"fmt"
	"strings"

	"OrgVerify/models"
	"OrgVerify/realtime"

	"github.com/rs/zerolog/log"
)

// NotifyEvent is a request to alert one recipient.
type NotifyEvent struct {
	Recipient  models.ActorRef
	Sender     *models.ActorRef
	CompanyID  *uint
	Category   models.NotificationCategory
	Title      string
	Body       string
	ActionLink *string
}

type NotificationService struct {
	store     NotificationStore
	directory Directory
	delivery  Deliverer
	publisher EventPublisher
	topic     string
}

func NewNotificationService(store NotificationStore, directory Directory, delivery Deliverer, publisher EventPublisher, topic string) *NotificationService {
	if publisher == nil {
		publisher = NoopPublisher
	}
	return &NotificationService{
		store:     store,
		directory: directory,
		delivery:  delivery,
		publisher: publisher,
		topic:     topic,
	}
}

// Notify stores the notification first and then pushes it to any live
// connection of the recipient. delivered is false when the recipient is
// offline; the stored record is what they will fetch later.
func (s *NotificationService) Notify(ctx context.Context, ev NotifyEvent) (n *models.Notification, delivered bool, err error) {
	if strings.TrimSpace(ev.Title) == "" {
		return nil, false, fmt.Errorf("notification title is required: %w", ErrInvalidInput)
	}
	if ev.Category == "" {
		ev.Category = models.CategoryOther
	}
	if _, ok := models.ParseCategory(string(ev.Category)); !ok {
		return nil, false, fmt.Errorf("category %q: %w", ev.Category, ErrInvalidInput)
	}
	if _, err := s.directory.Resolve(ctx, ev.Recipient); err != nil {
		return nil, false, err
	}

	record := &models.Notification{
		RecipientKind: ev.Recipient.Kind,
		RecipientID:   ev.Recipient.ID,
		SenderKind:    models.KindSystem,
		CompanyID:     ev.CompanyID,
		Title:         ev.Title,
		Body:          ev.Body,
		Category:      ev.Category,
		ActionLink:    ev.ActionLink,
	}
	if ev.Sender != nil {
		record.SenderKind = ev.Sender.Kind
		senderID := ev.Sender.ID
		record.SenderID = &senderID
	}

	n, err = s.store.Create(ctx, record)
	if err != nil {
		return nil, false, err
	}

	if s.delivery != nil {
		delivered = s.delivery.DeliverToActor(n.Recipient(), realtime.Event{Type: realtime.OutNotification, Payload: n}) > 0
	}
	if !delivered {
		log.Debug().Uint("notification_id", n.ID).Str("recipient", n.Recipient().String()).Msg("recipient offline, notification stored only")
	}

	if err := s.publisher.Publish(ctx, s.topic, n.Recipient().String(), DomainEvent{Type: EventNotificationCreated, Payload: n}); err != nil {
		log.Error().Err(err).Uint("notification_id", n.ID).Msg("failed to publish notification event")
	}
	return n, delivered, nil
}

func (s *NotificationService) List(ctx context.Context, recipient models.ActorRef, filter NotificationFilter) ([]models.Notification, error) {
	return s.store.List(ctx, recipient, filter)
}

func (s *NotificationService) CountUnread(ctx context.Context, recipient models.ActorRef) (int64, error) {
	return s.store.CountUnread(ctx, recipient)
}

func (s *NotificationService) MarkRead(ctx context.Context, id uint, recipient models.ActorRef) (*models.Notification, error) {
	return s.store.MarkRead(ctx, id, recipient)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipient models.ActorRef) (int64, error) {
	return s.store.MarkAllRead(ctx, recipient)
}

func (s *NotificationService) Delete(ctx context.Context, id uint, recipient models.ActorRef) error {
	return s.store.Delete(ctx, id, recipient)
}
