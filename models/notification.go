package models

import "time"

type NotificationCategory string

const (
	CategoryChat         NotificationCategory = "chat"
	CategoryVerification NotificationCategory = "verification"
	CategoryEmployee     NotificationCategory = "employee"
	CategoryPerformance  NotificationCategory = "performance"
	CategoryOther        NotificationCategory = "other"
)

func ParseCategory(s string) (NotificationCategory, bool) {
	switch c := NotificationCategory(s); c {
	case CategoryChat, CategoryVerification, CategoryEmployee, CategoryPerformance, CategoryOther:
		return c, true
	}
	return "", false
}

type Notification struct {
	ID            uint                 `json:"id" gorm:"primaryKey"`
	RecipientKind ActorKind            `json:"recipient_type" gorm:"size:32;index:idx_notifications_recipient"`
	RecipientID   uint                 `json:"recipient_id" gorm:"index:idx_notifications_recipient"`
	SenderKind    ActorKind            `json:"sender_type" gorm:"size:32;default:'System'"`
	SenderID      *uint                `json:"sender_id,omitempty"`
	CompanyID     *uint                `json:"company_id,omitempty" gorm:"index"`
	Title         string               `json:"title"`
	Body          string               `json:"body" gorm:"type:text"`
	Category      NotificationCategory `json:"category" gorm:"size:32;default:'other'"`
	ActionLink    *string              `json:"action_link,omitempty"`
	IsRead        bool                 `json:"is_read" gorm:"default:false;index"`
	ReadAt        *time.Time           `json:"read_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at" gorm:"index"`
}

func (n *Notification) Recipient() ActorRef {
	return ActorRef{Kind: n.RecipientKind, ID: n.RecipientID}
}
