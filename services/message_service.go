package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"OrgVerify/models"
	"OrgVerify/realtime"

	"github.com/rs/zerolog/log"
)

const notificationPreviewLength = 120

type MessageService struct {
	directory Directory
	store     ConversationStore
	delivery  Deliverer
	notifier  *NotificationService
	publisher EventPublisher
	topic     string
	maxBody   int
}

type MessageServiceOptions struct {
	Publisher     EventPublisher
	Topic         string
	MaxBodyLength int
}

func NewMessageService(directory Directory, store ConversationStore, delivery Deliverer, notifier *NotificationService, opts MessageServiceOptions) *MessageService {
	if opts.Publisher == nil {
		opts.Publisher = NoopPublisher
	}
	if opts.MaxBodyLength <= 0 {
		opts.MaxBodyLength = 4000
	}
	return &MessageService{
		directory: directory,
		store:     store,
		delivery:  delivery,
		notifier:  notifier,
		publisher: opts.Publisher,
		topic:     opts.Topic,
		maxBody:   opts.MaxBodyLength,
	}
}

// Send checks the pairing, persists the message and delivers it. A denied
// pairing returns a *PolicyError and touches nothing.
func (s *MessageService) Send(ctx context.Context, sender *models.Actor, recipientRef models.ActorRef, body string) (*models.Message, error) {
	if sender == nil {
		return nil, ErrUnauthenticated
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("message content is empty: %w", ErrInvalidInput)
	}
	if utf8.RuneCountInString(body) > s.maxBody {
		return nil, fmt.Errorf("message content exceeds %d characters: %w", s.maxBody, ErrInvalidInput)
	}

	recipient, err := s.directory.Resolve(ctx, recipientRef)
	if err != nil {
		return nil, err
	}

	decision := Classify(sender, recipient)
	if !decision.Allow {
		log.Info().
			Str("sender", sender.Ref.String()).
			Str("recipient", recipientRef.String()).
			Str("reason", decision.Reason).
			Msg("message denied")
		return nil, decision.Err()
	}

	msg, err := s.store.Append(ctx, &models.Message{
		SenderKind:    sender.Ref.Kind,
		SenderID:      sender.Ref.ID,
		RecipientKind: recipient.Ref.Kind,
		RecipientID:   recipient.Ref.ID,
		Content:       body,
		RoutingClass:  decision.RoutingClass,
		CompanyID:     messageCompany(sender, recipient),
	})
	if err != nil {
		log.Error().Err(err).Str("sender", sender.Ref.String()).Msg("failed to persist message")
		return nil, err
	}

	s.deliver(sender, msg)
	s.notifyRecipient(ctx, sender, msg)

	if err := s.publisher.Publish(ctx, s.topic, msg.Recipient().String(), DomainEvent{Type: EventMessageSent, Payload: msg}); err != nil {
		log.Error().Err(err).Uint("message_id", msg.ID).Msg("failed to publish message event")
	}
	return msg, nil
}

func (s *MessageService) deliver(sender *models.Actor, msg *models.Message) {
	if s.delivery == nil {
		return
	}
	n := s.delivery.DeliverToActor(msg.Recipient(), realtime.Event{Type: realtime.OutReceiveMessage, Payload: msg})
	if n == 0 {
		log.Debug().Uint("message_id", msg.ID).Str("recipient", msg.Recipient().String()).Msg("recipient offline")
	}
	if msg.RoutingClass == models.RoutingSupport && !sender.IsSupportAdmin() {
		s.delivery.DeliverToBroadcast(realtime.Event{Type: realtime.OutNewConversation, Payload: msg})
	}
}

// notifyRecipient writes the companion alert. The message is already
// durable, so a failure here is logged rather than returned.
func (s *MessageService) notifyRecipient(ctx context.Context, sender *models.Actor, msg *models.Message) {
	if s.notifier == nil {
		return
	}
	link := fmt.Sprintf("/messages/%s/%d", sender.Ref.Kind, sender.Ref.ID)
	from := sender.Ref
	_, _, err := s.notifier.Notify(ctx, NotifyEvent{
		Recipient:  msg.Recipient(),
		Sender:     &from,
		CompanyID:  msg.CompanyID,
		Category:   models.CategoryChat,
		Title:      "New message from " + displayName(sender),
		Body:       preview(msg.Content),
		ActionLink: &link,
	})
	if err != nil {
		log.Error().Err(err).Uint("message_id", msg.ID).Msg("failed to create message notification")
	}
}

func (s *MessageService) Conversation(ctx context.Context, caller *models.Actor, partner models.ActorRef, page Page) ([]models.Message, error) {
	if _, err := s.directory.Resolve(ctx, partner); err != nil {
		return nil, err
	}
	return s.store.FindConversation(ctx, caller.Ref, partner, page)
}

// MarkRead flips the read flag on caller's inbound messages among ids.
func (s *MessageService) MarkRead(ctx context.Context, caller *models.Actor, ids []uint) (int64, error) {
	return s.store.MarkRead(ctx, ids, caller.Ref)
}

func (s *MessageService) MarkConversationRead(ctx context.Context, caller *models.Actor, partner models.ActorRef) (int64, error) {
	return s.store.MarkConversationRead(ctx, caller.Ref, partner)
}

func (s *MessageService) CountUnread(ctx context.Context, caller *models.Actor) (int64, error) {
	return s.store.CountUnread(ctx, caller.Ref)
}

func displayName(a *models.Actor) string {
	if a.Name != "" {
		return a.Name
	}
	return a.Ref.String()
}

func preview(body string) string {
	if utf8.RuneCountInString(body) <= notificationPreviewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:notificationPreviewLength]) + "…"
}
