package models

import "time"

type RoutingClass string

const (
	RoutingDirect  RoutingClass = "direct"
	RoutingSupport RoutingClass = "support"
	RoutingGroup   RoutingClass = "group"
)

// Message is immutable once written except for IsRead.
type Message struct {
	ID            uint         `json:"id" gorm:"primaryKey"`
	SenderKind    ActorKind    `json:"sender_type" gorm:"size:32;index:idx_messages_sender"`
	SenderID      uint         `json:"sender_id" gorm:"index:idx_messages_sender"`
	RecipientKind ActorKind    `json:"recipient_type" gorm:"size:32;index:idx_messages_recipient"`
	RecipientID   uint         `json:"recipient_id" gorm:"index:idx_messages_recipient"`
	Content       string       `json:"content" gorm:"type:text"`
	RoutingClass  RoutingClass `json:"routing_class" gorm:"size:16"`
	CompanyID     *uint        `json:"company_id,omitempty"`
	IsRead        bool         `json:"is_read" gorm:"default:false;index"`
	CreatedAt     time.Time    `json:"created_at" gorm:"index"`
}

func (m *Message) Sender() ActorRef {
	return ActorRef{Kind: m.SenderKind, ID: m.SenderID}
}

func (m *Message) Recipient() ActorRef {
	return ActorRef{Kind: m.RecipientKind, ID: m.RecipientID}
}
