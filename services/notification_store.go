package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"OrgVerify/models"

	"gorm.io/gorm"
)

type NotificationFilter struct {
	UnreadOnly bool
	Category   models.NotificationCategory
	Page
}

// NotificationStore is the durable log of notifications, keyed by recipient.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	List(ctx context.Context, recipient models.ActorRef, filter NotificationFilter) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipient models.ActorRef) (int64, error)
	MarkRead(ctx context.Context, id uint, recipient models.ActorRef) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipient models.ActorRef) (int64, error)
	Delete(ctx context.Context, id uint, recipient models.ActorRef) error
}

type GormNotificationStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewNotificationStore(db *gorm.DB) *GormNotificationStore {
	return &GormNotificationStore{db: db, now: time.Now}
}

func (s *GormNotificationStore) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	record := *n
	record.ID = 0
	record.IsRead = false
	record.ReadAt = nil
	record.CreatedAt = s.now().UTC()
	if record.SenderKind == "" {
		record.SenderKind = models.KindSystem
	}
	if record.Category == "" {
		record.Category = models.CategoryOther
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, storeErr("create notification", err)
	}
	return &record, nil
}

func (s *GormNotificationStore) List(ctx context.Context, recipient models.ActorRef, filter NotificationFilter) ([]models.Notification, error) {
	query := s.byRecipient(ctx, recipient).Order("created_at DESC").Order("id DESC")
	if filter.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	notifications := make([]models.Notification, 0)
	if err := query.Find(&notifications).Error; err != nil {
		return nil, storeErr("list notifications", err)
	}
	return notifications, nil
}

func (s *GormNotificationStore) CountUnread(ctx context.Context, recipient models.ActorRef) (int64, error) {
	var count int64
	if err := s.byRecipient(ctx, recipient).Where("is_read = ?", false).Count(&count).Error; err != nil {
		return 0, storeErr("count unread notifications", err)
	}
	return count, nil
}

// MarkRead is idempotent: an already-read notification keeps its ReadAt.
func (s *GormNotificationStore) MarkRead(ctx context.Context, id uint, recipient models.ActorRef) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND recipient_kind = ? AND recipient_id = ?", id, recipient.Kind, recipient.ID).
			First(&n).Error
		if err != nil {
			return err
		}
		if n.IsRead {
			return nil
		}
		now := s.now().UTC()
		n.IsRead = true
		n.ReadAt = &now
		return tx.Model(&n).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("notification %d: %w", id, ErrNotFound)
		}
		return nil, storeErr("mark notification read", err)
	}
	return &n, nil
}

func (s *GormNotificationStore) MarkAllRead(ctx context.Context, recipient models.ActorRef) (int64, error) {
	result := s.byRecipient(ctx, recipient).
		Where("is_read = ?", false).
		Updates(map[string]interface{}{"is_read": true, "read_at": s.now().UTC()})
	if result.Error != nil {
		return 0, storeErr("mark all notifications read", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete removes a notification owned by recipient; anything else is ErrNotFound.
func (s *GormNotificationStore) Delete(ctx context.Context, id uint, recipient models.ActorRef) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND recipient_kind = ? AND recipient_id = ?", id, recipient.Kind, recipient.ID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return storeErr("delete notification", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormNotificationStore) byRecipient(ctx context.Context, recipient models.ActorRef) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_kind = ? AND recipient_id = ?", recipient.Kind, recipient.ID)
}
