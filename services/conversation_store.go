package services

import (
	"context"
	"time"

	"OrgVerify/models"

	"gorm.io/gorm"
)

// ConversationStore is the durable log of direct messages.
type ConversationStore interface {
	Append(ctx context.Context, msg *models.Message) (*models.Message, error)
	FindConversation(ctx context.Context, a, b models.ActorRef, page Page) ([]models.Message, error)
	MarkRead(ctx context.Context, ids []uint, recipient models.ActorRef) (int64, error)
	MarkConversationRead(ctx context.Context, recipient, partner models.ActorRef) (int64, error)
	CountUnread(ctx context.Context, recipient models.ActorRef) (int64, error)
}

// Page bounds a listing. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

type GormConversationStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewConversationStore(db *gorm.DB) *GormConversationStore {
	return &GormConversationStore{db: db, now: time.Now}
}

// Append assigns the id and timestamp server-side; whatever the caller put
// there is discarded.
func (s *GormConversationStore) Append(ctx context.Context, msg *models.Message) (*models.Message, error) {
	record := *msg
	record.ID = 0
	record.IsRead = false
	record.CreatedAt = s.now().UTC()

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, storeErr("append message", err)
	}
	return &record, nil
}

func (s *GormConversationStore) FindConversation(ctx context.Context, a, b models.ActorRef, page Page) ([]models.Message, error) {
	query := s.db.WithContext(ctx).
		Where("(sender_kind = ? AND sender_id = ? AND recipient_kind = ? AND recipient_id = ?) OR (sender_kind = ? AND sender_id = ? AND recipient_kind = ? AND recipient_id = ?)",
			a.Kind, a.ID, b.Kind, b.ID,
			b.Kind, b.ID, a.Kind, a.ID).
		Order("created_at ASC").
		Order("id ASC")
	if page.Limit > 0 {
		query = query.Limit(page.Limit)
	}
	if page.Offset > 0 {
		query = query.Offset(page.Offset)
	}

	messages := make([]models.Message, 0)
	if err := query.Find(&messages).Error; err != nil {
		return nil, storeErr("find conversation", err)
	}
	return messages, nil
}

// MarkRead only touches unread messages addressed to recipient, so ids that
// belong to someone else are silently skipped.
func (s *GormConversationStore) MarkRead(ctx context.Context, ids []uint, recipient models.ActorRef) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id IN ? AND recipient_kind = ? AND recipient_id = ? AND is_read = ?", ids, recipient.Kind, recipient.ID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, storeErr("mark read", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormConversationStore) MarkConversationRead(ctx context.Context, recipient, partner models.ActorRef) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient_kind = ? AND recipient_id = ? AND sender_kind = ? AND sender_id = ? AND is_read = ?",
			recipient.Kind, recipient.ID, partner.Kind, partner.ID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, storeErr("mark conversation read", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormConversationStore) CountUnread(ctx context.Context, recipient models.ActorRef) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient_kind = ? AND recipient_id = ? AND is_read = ?", recipient.Kind, recipient.ID, false).
		Count(&count).Error
	if err != nil {
		return 0, storeErr("count unread", err)
	}
	return count, nil
}
